package agentnode

import (
	"context"
	"fmt"

	"github.com/arvidstrom/storeagent/agent/conversation"
)

// PersistTurns appends everything this request produced in one write. It
// runs after the tool loop even when the loop failed, so the stored history
// always covers the dispatched tool calls.
func PersistTurns(ctx context.Context, in *GraphState, mgr *conversation.Manager) (*GraphState, error) {
	if len(in.NewTurns) == 0 {
		return in, nil
	}
	if err := mgr.Append(ctx, in.State, in.NewTurns...); err != nil {
		return nil, fmt.Errorf("persist conversation %s: %w", in.ConversationKey, err)
	}
	return in, nil
}
