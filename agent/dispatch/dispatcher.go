package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/arvidstrom/storeagent/agent/audit"
	contractx "github.com/arvidstrom/storeagent/agent/contract"
	toolx "github.com/arvidstrom/storeagent/agent/tool"
)

// Dispatcher routes one requested tool call: registry resolution, input
// validation, approval precondition, handler execution, audit. Exactly one
// audit entry is written per invocation, success and failure alike, and the
// entry is durable before Invoke returns.
type Dispatcher struct {
	registry *toolx.Registry
	sink     audit.Sink
	actor    contractx.Actor
	now      func() time.Time
}

func New(registry *toolx.Registry, sink audit.Sink) (*Dispatcher, error) {
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}
	if sink == nil {
		return nil, errors.New("audit sink is required")
	}
	return &Dispatcher{
		registry: registry,
		sink:     sink,
		actor:    contractx.ActorAgent,
		now:      time.Now,
	}, nil
}

// WithClock replaces the dispatcher's clock. Test hook.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

func (d *Dispatcher) Invoke(ctx context.Context, conversationKey string, call contractx.ToolCall) contractx.Result {
	logger := log.With().
		Str("conversation", conversationKey).
		Str("tool", call.Name).
		Str("call_id", call.ID).
		Logger()

	def, err := d.registry.Resolve(call.Name)
	if err != nil {
		logger.Warn().Err(err).Msg("tool resolution failed")
		return d.finish(ctx, def, call, nil, nil, err)
	}

	args, err := toolx.ValidateArgs(def, call.Args)
	if err != nil {
		logger.Warn().Err(err).Msg("tool input rejected")
		return d.finish(ctx, def, call, call.Args, nil, err)
	}

	if def.Precondition != nil {
		if err := def.Precondition(ctx, args); err != nil {
			logger.Warn().Err(err).Msg("tool precondition failed")
			return d.finish(ctx, def, call, args, nil, err)
		}
	}

	out, err := def.Handler(ctx, args)
	if err != nil {
		// Preconditions and transition conflicts keep their kind; anything
		// else from a collaborator is a tool execution failure.
		if contractx.ErrorKind(err) == "tool_execution" && !errors.Is(err, contractx.ErrToolExecution) {
			err = fmt.Errorf("%w: %s: %v", contractx.ErrToolExecution, call.Name, err)
		}
		logger.Error().Err(err).Msg("tool execution failed")
		return d.finish(ctx, def, call, args, nil, err)
	}

	logger.Info().Msg("tool executed")
	return d.finish(ctx, def, call, args, out, nil)
}

// finish writes the audit entry for every invocation path and shapes the
// result. An audit write failure downgrades the result: the handler's side
// effect may have happened, but an unrecorded action must not be reported
// as a clean success.
func (d *Dispatcher) finish(ctx context.Context, def toolx.Definition, call contractx.ToolCall, input map[string]any, output any, invokeErr error) contractx.Result {
	entry := audit.Entry{
		ID:        uuid.NewString(),
		Tool:      call.Name,
		Actor:     d.actor,
		Input:     input,
		Output:    output,
		EntityRef: entityRef(def, input),
		Approved:  def.RequiresApproval && invokeErr == nil,
		CreatedAt: d.now().UTC(),
	}
	if invokeErr != nil {
		entry.ErrKind = contractx.ErrorKind(invokeErr)
		entry.ErrDetail = invokeErr.Error()
	}

	if err := d.sink.Record(ctx, entry); err != nil {
		log.Error().Err(err).Str("tool", call.Name).Msg("audit write failed")
		if invokeErr == nil {
			invokeErr = fmt.Errorf("%w: audit write failed: %v", contractx.ErrToolExecution, err)
		}
	}

	if invokeErr != nil {
		return contractx.ErrResult(invokeErr)
	}
	return contractx.OKResult(output)
}

func entityRef(def toolx.Definition, input map[string]any) string {
	if def.RefParam == "" || input == nil {
		return ""
	}
	val, ok := input[def.RefParam]
	if !ok {
		return ""
	}
	return fmt.Sprint(val)
}
