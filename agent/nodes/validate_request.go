package agentnode

import (
	"errors"
	"strings"
	"time"

	"github.com/arvidstrom/storeagent/agent/conversation"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidKey     = errors.New("conversation key is empty")
)

type GraphInput struct {
	ConversationKey string
	Text            string
	ImageRefs       []string
}

type GraphOutput struct {
	Reply        string
	ContextReset bool
	Artifacts    []string
}

type GraphState struct {
	ConversationKey string
	Text            string
	ImageRefs       []string
	Now             time.Time

	State    *conversation.State
	WasReset bool

	// NewTurns collects every turn produced by this request, in order. They
	// are persisted in one append so the stored history never contains a
	// half-written exchange.
	NewTurns []conversation.Turn

	Reply string

	// Artifacts are display references gathered from successful tool
	// results, surfaced to the transport alongside the reply.
	Artifacts []string

	// Failure carries a loop-terminating error (backend failure, iteration
	// cap) through the persist node so the turns completed so far are still
	// saved before the error is surfaced.
	Failure error
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	key := strings.TrimSpace(in.ConversationKey)
	if key == "" {
		return nil, ErrInvalidKey
	}

	text := strings.TrimSpace(in.Text)
	if text == "" && len(in.ImageRefs) == 0 {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		ConversationKey: key,
		Text:            text,
		ImageRefs:       in.ImageRefs,
		Now:             nowFn().UTC(),
	}, nil
}
