package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/arvidstrom/storeagent/agent/approval"
	"github.com/arvidstrom/storeagent/agent/audit"
	contractx "github.com/arvidstrom/storeagent/agent/contract"
	"github.com/arvidstrom/storeagent/agent/conversation"
	"github.com/arvidstrom/storeagent/agent/dispatch"
	"github.com/arvidstrom/storeagent/agent/identity"
	"github.com/arvidstrom/storeagent/agent/orchestrator"
	"github.com/arvidstrom/storeagent/agent/prompt"
	"github.com/arvidstrom/storeagent/agent/service/accounting"
	"github.com/arvidstrom/storeagent/agent/service/listing"
	"github.com/arvidstrom/storeagent/agent/service/order"
	"github.com/arvidstrom/storeagent/agent/service/pricing"
	"github.com/arvidstrom/storeagent/agent/service/scout"
	"github.com/arvidstrom/storeagent/agent/storage"
	toolx "github.com/arvidstrom/storeagent/agent/tool"
	blocketx "github.com/arvidstrom/storeagent/pkg/blocket"
	configx "github.com/arvidstrom/storeagent/pkg/config"
	_ "github.com/arvidstrom/storeagent/pkg/logger/autoload"
	openrouterx "github.com/arvidstrom/storeagent/pkg/openrouter"
	postgresx "github.com/arvidstrom/storeagent/pkg/postgres"
	traderax "github.com/arvidstrom/storeagent/pkg/tradera"
)

type AppConfig struct {
	OperatorKey string `envconfig:"OPERATOR_KEY" split_words:"true" default:"local-operator"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("")

	store, auditSink, approvalStore := buildStores(ctx)

	machine := approval.NewMachine(approvalStore)

	traderaClient := buildTradera()
	blocketClient := buildBlocket()

	var traderaSearcher pricing.TraderaSearcher
	var blocketSearcher pricing.BlocketSearcher
	var publisher listing.Publisher
	var marketplace order.Marketplace
	if traderaClient != nil {
		traderaSearcher = traderaClient
		publisher = traderaClient
		marketplace = traderaClient
	}
	if blocketClient != nil {
		blocketSearcher = blocketClient
	}

	services := toolx.Services{
		Tradera:    traderaSearcher,
		Blocket:    blocketSearcher,
		Pricing:    pricing.NewService(traderaSearcher, blocketSearcher),
		Scout:      scout.NewService(store, traderaSearcher, blocketSearcher),
		Listing:    listing.NewService(store, machine, publisher),
		Orders:     order.NewService(store, store, machine, marketplace),
		Accounting: accounting.NewService(store),
	}
	registry := toolx.Catalog(services)

	dispatcher, err := dispatch.New(registry, auditSink)
	if err != nil {
		panic(err)
	}

	operator := identity.NewService(store)
	claimed, err := operator.EnsureClaimed(ctx, appCfg.OperatorKey)
	if err != nil {
		panic(err)
	}
	if !claimed {
		panic(fmt.Sprintf("operator key %q is not the registered operator", appCfg.OperatorKey))
	}

	openRouterCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")
	backend, err := openrouterx.NewBackend(ctx, openRouterCfg, prompt.System(), registry.Infos())
	if err != nil {
		panic(err)
	}

	manager := buildConversationManager(*openRouterCfg)

	orchCfg := configx.MustNew[orchestrator.Config]("AGENT")
	agent, err := orchestrator.New(manager, backend, dispatcher, nil, *orchCfg)
	if err != nil {
		panic(err)
	}

	log.Info().Int("tools", registry.Len()).Msg("storeagent ready")
	runREPL(ctx, agent, appCfg.OperatorKey)
}

// buildStores picks Postgres when a DSN is configured and falls back to the
// in-memory stores otherwise.
func buildStores(ctx context.Context) (storage.Store, audit.Sink, approval.Store) {
	pgCfg, err := configx.New[postgresx.Config]("POSTGRES")
	if err != nil || pgCfg.DSN == "" {
		log.Info().Msg("no postgres dsn, using in-memory stores")
		return storage.NewMemoryStore(), audit.NewMemorySink(), approval.NewMemoryStore()
	}

	db, err := postgresx.Connect(ctx, *pgCfg)
	if err != nil {
		panic(err)
	}

	bunStore := storage.NewBunStore(db)
	if err := bunStore.Init(ctx); err != nil {
		panic(err)
	}
	auditSink := audit.NewBunSink(db)
	if err := auditSink.ResetModel(ctx); err != nil {
		panic(err)
	}
	approvalStore := approval.NewBunStore(db)
	if err := approvalStore.ResetModel(ctx); err != nil {
		panic(err)
	}
	return bunStore, auditSink, approvalStore
}

func buildTradera() *traderax.Client {
	cfg, err := configx.New[traderax.Config]("TRADERA")
	if err != nil {
		log.Warn().Err(err).Msg("tradera disabled")
		return nil
	}
	client, err := traderax.NewClient(*cfg)
	if err != nil {
		log.Warn().Err(err).Msg("tradera disabled")
		return nil
	}
	return client
}

func buildBlocket() *blocketx.Client {
	cfg, err := configx.New[blocketx.Config]("BLOCKET")
	if err != nil {
		log.Warn().Err(err).Msg("blocket disabled")
		return nil
	}
	client, err := blocketx.NewClient(*cfg)
	if err != nil {
		log.Warn().Err(err).Msg("blocket disabled")
		return nil
	}
	return client
}

func buildConversationManager(orCfg openrouterx.Config) *conversation.Manager {
	var store conversation.Store
	upstashCfg, err := configx.New[conversation.UpstashRedisConfig]("UPSTASH")
	if err != nil || upstashCfg.URL == "" {
		log.Info().Msg("no upstash config, conversation history kept in memory")
		store = conversation.NewMemoryStore()
	} else {
		redisStore, err := conversation.NewUpstashRedisStore(*upstashCfg)
		if err != nil {
			panic(err)
		}
		store = redisStore
	}

	var summarizer contractx.Summarizer
	if s, err := openrouterx.NewSummarizer(orCfg); err == nil {
		summarizer = s
	} else {
		log.Warn().Err(err).Msg("summarizer disabled, pruned turns are dropped")
	}

	mgrCfg := configx.MustNew[conversation.ManagerConfig]("CONVERSATION")
	return conversation.NewManager(store, *mgrCfg, summarizer)
}

func runREPL(ctx context.Context, agent *orchestrator.Orchestrator, conversationKey string) {
	fmt.Println("storeagent — skriv ett meddelande, 'quit' avslutar")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}

		resp, err := agent.HandleTurn(ctx, conversationKey, line, nil)
		if err != nil {
			fmt.Printf("fel: %v\n", err)
			continue
		}
		if resp.ContextReset {
			fmt.Println("[ny konversation — tidigare historik har rensats efter inaktivitet]")
		}
		fmt.Println(resp.Reply)
	}
}
