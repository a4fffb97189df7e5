package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/arvidstrom/storeagent/agent/audit"
	contractx "github.com/arvidstrom/storeagent/agent/contract"
	toolx "github.com/arvidstrom/storeagent/agent/tool"
)

type failingSink struct{}

func (failingSink) Record(context.Context, audit.Entry) error {
	return errors.New("disk full")
}

func testRegistry(t *testing.T, handlerCalls *int, preconditionErr error) *toolx.Registry {
	t.Helper()
	r := toolx.NewRegistry()
	r.MustRegister(toolx.Definition{
		Name: "publish_listing",
		Params: map[string]*schema.ParameterInfo{
			"draft_id": {Type: schema.String, Required: true},
		},
		RequiresApproval: true,
		RefParam:         "draft_id",
		Precondition: func(context.Context, map[string]any) error {
			return preconditionErr
		},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			*handlerCalls++
			return map[string]any{"published": args["draft_id"]}, nil
		},
	})
	r.MustRegister(toolx.Definition{
		Name: "broken_tool",
		Params: map[string]*schema.ParameterInfo{
			"q": {Type: schema.String},
		},
		Handler: func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("backend database melted")
		},
	})
	return r
}

func TestInvokeSuccessWritesOneAuditEntry(t *testing.T) {
	t.Parallel()

	var handlerCalls int
	sink := audit.NewMemorySink()
	d, err := New(testRegistry(t, &handlerCalls, nil), sink)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res := d.Invoke(context.Background(), "conv-1", contractx.ToolCall{
		ID:   "call-1",
		Name: "publish_listing",
		Args: map[string]any{"draft_id": "d-1"},
	})
	if !res.OK {
		t.Fatalf("result = %+v, want OK", res)
	}
	if handlerCalls != 1 {
		t.Fatalf("handler ran %d times, want 1", handlerCalls)
	}

	entries := sink.Entries()
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want exactly 1", len(entries))
	}
	e := entries[0]
	if e.Tool != "publish_listing" || e.Actor != contractx.ActorAgent {
		t.Fatalf("entry = %+v, want tool/actor recorded", e)
	}
	if e.EntityRef != "d-1" {
		t.Fatalf("entity ref = %q, want d-1", e.EntityRef)
	}
	if !e.Approved {
		t.Fatal("approval-gated success must record Approved")
	}
	if e.ErrKind != "" {
		t.Fatalf("err kind = %q, want empty", e.ErrKind)
	}
}

func TestInvokeUnknownToolStillAudited(t *testing.T) {
	t.Parallel()

	var handlerCalls int
	sink := audit.NewMemorySink()
	d, _ := New(testRegistry(t, &handlerCalls, nil), sink)

	res := d.Invoke(context.Background(), "conv-1", contractx.ToolCall{ID: "c", Name: "no_such_tool"})
	if res.OK || res.ErrKind != "unknown_tool" {
		t.Fatalf("result = %+v, want unknown_tool error", res)
	}
	if entries := sink.Entries(); len(entries) != 1 || entries[0].ErrKind != "unknown_tool" {
		t.Fatalf("audit = %+v, want one unknown_tool entry", entries)
	}
}

func TestInvokeValidationFailureSkipsHandler(t *testing.T) {
	t.Parallel()

	var handlerCalls int
	sink := audit.NewMemorySink()
	d, _ := New(testRegistry(t, &handlerCalls, nil), sink)

	res := d.Invoke(context.Background(), "conv-1", contractx.ToolCall{
		ID:   "c",
		Name: "publish_listing",
		Args: map[string]any{"draft_id": 42},
	})
	if res.OK || res.ErrKind != "validation" {
		t.Fatalf("result = %+v, want validation error", res)
	}
	if handlerCalls != 0 {
		t.Fatal("handler must not run on validation failure")
	}
	if entries := sink.Entries(); len(entries) != 1 {
		t.Fatalf("audit entries = %d, want exactly 1", len(entries))
	}
}

func TestInvokePreconditionFailureHasNoSideEffect(t *testing.T) {
	t.Parallel()

	var handlerCalls int
	sink := audit.NewMemorySink()
	preErr := fmt.Errorf("%w: draft is not approved", contractx.ErrPrecondition)
	d, _ := New(testRegistry(t, &handlerCalls, preErr), sink)

	res := d.Invoke(context.Background(), "conv-1", contractx.ToolCall{
		ID:   "c",
		Name: "publish_listing",
		Args: map[string]any{"draft_id": "d-1"},
	})
	if res.OK || res.ErrKind != "precondition" {
		t.Fatalf("result = %+v, want precondition error", res)
	}
	if handlerCalls != 0 {
		t.Fatal("handler must not run when the precondition fails")
	}
	entries := sink.Entries()
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want exactly 1", len(entries))
	}
	if entries[0].Approved {
		t.Fatal("failed invocation must not be marked approved")
	}
}

func TestInvokeHandlerErrorClassifiedAndAudited(t *testing.T) {
	t.Parallel()

	var handlerCalls int
	sink := audit.NewMemorySink()
	d, _ := New(testRegistry(t, &handlerCalls, nil), sink)

	res := d.Invoke(context.Background(), "conv-1", contractx.ToolCall{
		ID:   "c",
		Name: "broken_tool",
		Args: map[string]any{"q": "x"},
	})
	if res.OK || res.ErrKind != "tool_execution" {
		t.Fatalf("result = %+v, want tool_execution error", res)
	}
	entries := sink.Entries()
	if len(entries) != 1 || entries[0].ErrKind != "tool_execution" {
		t.Fatalf("audit = %+v, want one tool_execution entry", entries)
	}
}

func TestInvokeAuditFailureDowngradesSuccess(t *testing.T) {
	t.Parallel()

	var handlerCalls int
	d, _ := New(testRegistry(t, &handlerCalls, nil), failingSink{})

	res := d.Invoke(context.Background(), "conv-1", contractx.ToolCall{
		ID:   "c",
		Name: "publish_listing",
		Args: map[string]any{"draft_id": "d-1"},
	})
	if res.OK {
		t.Fatal("an unrecorded invocation must not report success")
	}
	if handlerCalls != 1 {
		t.Fatalf("handler ran %d times, want 1", handlerCalls)
	}
}
