package agentnode

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
	"github.com/arvidstrom/storeagent/agent/conversation"
)

// RunToolLoop drives the backend round-trips for one user message. Each
// round sends the full encoded history; tool calls are dispatched
// sequentially in the order the backend requested them, and every call
// produces a tool result turn whether it succeeded or not. The loop stops on
// a plain text reply, on the round cap, or on a backend failure. Failures
// are staged on the state instead of returned so the persist node still
// runs.
func RunToolLoop(
	ctx context.Context,
	in *GraphState,
	backend contractx.Backend,
	invoker contractx.ToolInvoker,
	resolver conversation.ImageResolver,
	maxRounds int,
) (*GraphState, error) {
	if maxRounds <= 0 {
		maxRounds = 8
	}

	for round := 0; ; round++ {
		if round >= maxRounds {
			in.Failure = fmt.Errorf("%w: %d backend rounds without a final reply", contractx.ErrLoopBound, maxRounds)
			log.Warn().
				Str("conversation", in.ConversationKey).
				Int("rounds", maxRounds).
				Msg("tool loop hit round cap")
			return in, nil
		}

		history, err := conversation.Encode(ctx, in.combinedState(), resolver)
		if err != nil {
			in.Failure = err
			return in, nil
		}

		msg, err := backend.Send(ctx, history)
		if err != nil {
			in.Failure = err
			return in, nil
		}

		if len(msg.ToolCalls) == 0 {
			in.Reply = msg.Content
			in.NewTurns = append(in.NewTurns, conversation.AssistantTurn(in.Now, msg.Content, nil))
			return in, nil
		}

		calls := make([]contractx.ToolCall, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			calls = append(calls, contractx.ToolCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: decodeArgs(tc.Function.Arguments),
			})
		}
		in.NewTurns = append(in.NewTurns, conversation.AssistantTurn(in.Now, msg.Content, calls))

		for _, call := range calls {
			result := invoker.Invoke(ctx, in.ConversationKey, call)
			if result.OK {
				in.Artifacts = append(in.Artifacts, displayRefs(result.Value)...)
			}
			in.NewTurns = append(in.NewTurns, conversation.ToolResultTurn(in.Now, call.ID, call.Name, result))
		}
	}
}

// displayRefs pulls image references out of a tool result map. Handlers tag
// them under contract.DisplayRefsKey; anything else is left alone.
func displayRefs(value any) []string {
	m, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	switch refs := m[contractx.DisplayRefsKey].(type) {
	case []string:
		return refs
	case []any:
		out := make([]string, 0, len(refs))
		for _, ref := range refs {
			if s, ok := ref.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// decodeArgs tolerates malformed JSON: the dispatcher's validation will then
// reject the call and the failure is recorded like any other tool error.
func decodeArgs(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		log.Warn().Err(err).Msg("tool call carried malformed arguments")
		return map[string]any{}
	}
	return args
}

func (in *GraphState) combinedState() *conversation.State {
	combined := &conversation.State{
		Key:       in.ConversationKey,
		Summary:   in.State.Summary,
		UpdatedAt: in.State.UpdatedAt,
	}
	combined.Turns = append(combined.Turns, in.State.Turns...)
	combined.Turns = append(combined.Turns, in.NewTurns...)
	return combined
}
