package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
	"github.com/arvidstrom/storeagent/agent/conversation"
	agentnode "github.com/arvidstrom/storeagent/agent/nodes"
)

var (
	ErrInvalidMessage = agentnode.ErrInvalidMessage
	ErrInvalidKey     = agentnode.ErrInvalidKey
)

type Config struct {
	// MaxToolRounds caps backend round-trips per user message.
	MaxToolRounds int `envconfig:"MAX_TOOL_ROUNDS" split_words:"true" default:"8"`
}

// Orchestrator runs one user message through the handle-turn graph. Turns on
// the same conversation key are serialized; different conversations run
// concurrently.
type Orchestrator struct {
	manager  *conversation.Manager
	backend  contractx.Backend
	invoker  contractx.ToolInvoker
	resolver conversation.ImageResolver

	graphRunner compose.Runnable[agentnode.GraphInput, agentnode.GraphOutput]
	maxRounds   int
	now         func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(
	manager *conversation.Manager,
	backend contractx.Backend,
	invoker contractx.ToolInvoker,
	resolver conversation.ImageResolver,
	cfg Config,
) (*Orchestrator, error) {
	if manager == nil {
		return nil, errors.New("conversation manager is required")
	}
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if invoker == nil {
		return nil, errors.New("tool invoker is required")
	}
	if resolver == nil {
		resolver = conversation.FileImageResolver{}
	}

	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = 8
	}

	o := &Orchestrator{
		manager:   manager,
		backend:   backend,
		invoker:   invoker,
		resolver:  resolver,
		maxRounds: maxRounds,
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}

	graphRunner, err := o.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// WithClock replaces the orchestrator clock. Test hook.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

func (o *Orchestrator) HandleTurn(ctx context.Context, conversationKey, text string, imageRefs []string) (contractx.AgentResponse, error) {
	lock := o.lockFor(conversationKey)
	lock.Lock()
	defer lock.Unlock()

	out, err := o.graphRunner.Invoke(ctx, agentnode.GraphInput{
		ConversationKey: conversationKey,
		Text:            text,
		ImageRefs:       imageRefs,
	})
	if err != nil {
		return contractx.AgentResponse{}, err
	}
	return contractx.AgentResponse{
		Reply:        out.Reply,
		ContextReset: out.ContextReset,
		Artifacts:    out.Artifacts,
	}, nil
}

func (o *Orchestrator) lockFor(key string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[key] = lock
	}
	return lock
}
