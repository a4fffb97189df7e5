package agentnode

import (
	"context"
	"fmt"

	"github.com/arvidstrom/storeagent/agent/conversation"
)

// LoadHistory opens the conversation state and records whether the idle
// timeout reset it, then stages the incoming user turn.
func LoadHistory(ctx context.Context, in *GraphState, mgr *conversation.Manager) (*GraphState, error) {
	st, wasReset, err := mgr.Open(ctx, in.ConversationKey)
	if err != nil {
		return nil, fmt.Errorf("open conversation %s: %w", in.ConversationKey, err)
	}
	in.State = st
	in.WasReset = wasReset
	in.NewTurns = append(in.NewTurns, conversation.UserTurn(in.Now, in.Text, in.ImageRefs...))
	return in, nil
}
