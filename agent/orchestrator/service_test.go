package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/arvidstrom/storeagent/agent/audit"
	contractx "github.com/arvidstrom/storeagent/agent/contract"
	"github.com/arvidstrom/storeagent/agent/conversation"
	"github.com/arvidstrom/storeagent/agent/dispatch"
	toolx "github.com/arvidstrom/storeagent/agent/tool"
)

// scriptedBackend replays canned responses; once the script is exhausted it
// repeats the last response.
type scriptedBackend struct {
	mu        sync.Mutex
	script    []*schema.Message
	errAt     int
	err       error
	calls     int
	histories [][]*schema.Message
}

func (b *scriptedBackend) Send(_ context.Context, history []*schema.Message) (*schema.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.histories = append(b.histories, history)
	if b.err != nil && b.calls >= b.errAt {
		return nil, fmt.Errorf("%w: %v", contractx.ErrBackend, b.err)
	}
	idx := b.calls - 1
	if idx >= len(b.script) {
		idx = len(b.script) - 1
	}
	return b.script[idx], nil
}

func toolCallMsg(calls ...schema.ToolCall) *schema.Message {
	return &schema.Message{Role: schema.Assistant, ToolCalls: calls}
}

func textMsg(text string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: text}
}

func call(id, name, args string) schema.ToolCall {
	return schema.ToolCall{
		ID:       id,
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}
}

func newTestOrchestrator(t *testing.T, backend contractx.Backend, maxRounds int) (*Orchestrator, *audit.MemorySink, *conversation.Manager, *[]string) {
	t.Helper()

	invoked := &[]string{}
	registry := toolx.NewRegistry()
	registry.MustRegister(
		toolx.Definition{
			Name: "create_product",
			Params: map[string]*schema.ParameterInfo{
				"title": {Type: schema.String, Required: true},
			},
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				*invoked = append(*invoked, "create_product")
				return map[string]any{"id": "p-1"}, nil
			},
		},
		toolx.Definition{
			Name: "save_product_image",
			Params: map[string]*schema.ParameterInfo{
				"product_id": {Type: schema.String, Required: true},
				"ref":        {Type: schema.String, Required: true},
			},
			RefParam: "product_id",
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				*invoked = append(*invoked, "save_product_image")
				return map[string]any{"saved": true}, nil
			},
		},
		toolx.Definition{
			Name: "get_product",
			Params: map[string]*schema.ParameterInfo{
				"product_id": {Type: schema.String, Required: true},
			},
			RefParam: "product_id",
			Handler: func(_ context.Context, args map[string]any) (any, error) {
				*invoked = append(*invoked, "get_product")
				return map[string]any{
					"product":                map[string]any{"id": "p-1"},
					contractx.DisplayRefsKey: []string{"img/byra-front.jpg", "img/byra-sida.jpg"},
				}, nil
			},
		},
	)

	sink := audit.NewMemorySink()
	dispatcher, err := dispatch.New(registry, sink)
	if err != nil {
		t.Fatalf("dispatch.New() error = %v", err)
	}

	mgr := conversation.NewManager(conversation.NewMemoryStore(), conversation.ManagerConfig{MaxTurns: 100, IdleTimeout: time.Hour}, nil)

	o, err := New(mgr, backend, dispatcher, nil, Config{MaxToolRounds: maxRounds})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o, sink, mgr, invoked
}

func TestHandleTurnDispatchesToolsInRequestOrder(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{
		script: []*schema.Message{
			toolCallMsg(
				call("c1", "create_product", `{"title":"Teakbyrå"}`),
				call("c2", "save_product_image", `{"product_id":"p-1","ref":"img/byra.jpg"}`),
			),
			textMsg("Produkten är skapad med bild."),
		},
	}
	o, sink, mgr, invoked := newTestOrchestrator(t, backend, 5)

	resp, err := o.HandleTurn(context.Background(), "chat-1", "skapa produkt av bilden", nil)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if resp.Reply != "Produkten är skapad med bild." {
		t.Fatalf("reply = %q", resp.Reply)
	}
	if resp.ContextReset {
		t.Fatal("fresh conversation must not report a reset")
	}

	if got := *invoked; len(got) != 2 || got[0] != "create_product" || got[1] != "save_product_image" {
		t.Fatalf("invocation order = %v, want request order", got)
	}

	entries := sink.Entries()
	if len(entries) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(entries))
	}
	if entries[0].Tool != "create_product" || entries[1].Tool != "save_product_image" {
		t.Fatalf("audit order = [%s, %s], want request order", entries[0].Tool, entries[1].Tool)
	}

	// user, assistant tool-call turn, two tool results, final assistant.
	history, err := mgr.History(context.Background(), "chat-1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("history turns = %d, want 5", len(history))
	}
	if history[0].Role != conversation.RoleUser || history[len(history)-1].Role != conversation.RoleAssistant {
		t.Fatalf("history roles = %v ... %v", history[0].Role, history[len(history)-1].Role)
	}
}

func TestHandleTurnLoopBound(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{
		script: []*schema.Message{
			toolCallMsg(call("c1", "create_product", `{"title":"x"}`)),
		},
	}
	o, sink, mgr, _ := newTestOrchestrator(t, backend, 3)

	_, err := o.HandleTurn(context.Background(), "chat-loop", "gör något", nil)
	if !errors.Is(err, contractx.ErrLoopBound) {
		t.Fatalf("HandleTurn() error = %v, want ErrLoopBound", err)
	}
	if backend.calls != 3 {
		t.Fatalf("backend calls = %d, want exactly the cap", backend.calls)
	}
	if len(sink.Entries()) != 3 {
		t.Fatalf("audit entries = %d, want one per dispatched call", len(sink.Entries()))
	}

	// The turns completed before the cap are persisted: user plus three
	// rounds of assistant tool-call + tool result.
	history, _ := mgr.History(context.Background(), "chat-loop", 0)
	if len(history) != 7 {
		t.Fatalf("history turns = %d, want 7", len(history))
	}
}

func TestHandleTurnBackendFailureKeepsHistoryConsistent(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{
		script: []*schema.Message{
			toolCallMsg(call("c1", "create_product", `{"title":"x"}`)),
		},
		err:   errors.New("upstream 502"),
		errAt: 2,
	}
	o, sink, mgr, _ := newTestOrchestrator(t, backend, 5)

	_, err := o.HandleTurn(context.Background(), "chat-err", "skapa", nil)
	if !errors.Is(err, contractx.ErrBackend) {
		t.Fatalf("HandleTurn() error = %v, want ErrBackend", err)
	}

	// The tool executed in round one stays audited and its turns persisted.
	if len(sink.Entries()) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(sink.Entries()))
	}
	history, _ := mgr.History(context.Background(), "chat-err", 0)
	if len(history) != 3 {
		t.Fatalf("history turns = %d, want user + tool-call + tool result", len(history))
	}
}

func TestHandleTurnValidatesInput(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{script: []*schema.Message{textMsg("ok")}}
	o, _, _, _ := newTestOrchestrator(t, backend, 3)

	if _, err := o.HandleTurn(context.Background(), "", "hej", nil); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("empty key error = %v, want ErrInvalidKey", err)
	}
	if _, err := o.HandleTurn(context.Background(), "chat-v", "   ", nil); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("empty message error = %v, want ErrInvalidMessage", err)
	}
	if backend.calls != 0 {
		t.Fatalf("backend calls = %d, invalid requests must not reach the backend", backend.calls)
	}
}

func TestHandleTurnMalformedToolArgsBecomeValidationResult(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{
		script: []*schema.Message{
			toolCallMsg(call("c1", "create_product", `{"title":` /* truncated */)),
			textMsg("Argumenten gick inte att tolka."),
		},
	}
	o, sink, _, invoked := newTestOrchestrator(t, backend, 3)

	resp, err := o.HandleTurn(context.Background(), "chat-bad", "skapa", nil)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if resp.Reply == "" {
		t.Fatal("expected a reply after the failed tool round")
	}
	if len(*invoked) != 0 {
		t.Fatal("handler must not run on malformed arguments")
	}
	entries := sink.Entries()
	if len(entries) != 1 || entries[0].ErrKind != "validation" {
		t.Fatalf("audit = %+v, want one validation entry", entries)
	}
}

func TestHandleTurnSurfacesDisplayRefs(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{
		script: []*schema.Message{
			toolCallMsg(call("c1", "get_product", `{"product_id":"p-1"}`)),
			textMsg("Här är produkten med bilder."),
		},
	}
	o, _, _, _ := newTestOrchestrator(t, backend, 3)

	resp, err := o.HandleTurn(context.Background(), "chat-img", "visa byrån", nil)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	want := []string{"img/byra-front.jpg", "img/byra-sida.jpg"}
	if len(resp.Artifacts) != len(want) {
		t.Fatalf("artifacts = %v, want %v", resp.Artifacts, want)
	}
	for i, ref := range want {
		if resp.Artifacts[i] != ref {
			t.Fatalf("artifacts[%d] = %q, want %q", i, resp.Artifacts[i], ref)
		}
	}
}
