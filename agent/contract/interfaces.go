package contract

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// Backend is the reasoning backend contract. One call sends the full
// conversation (system prompt and tool schemas are bound at construction)
// and returns either terminal text or a message carrying tool calls.
type Backend interface {
	Send(ctx context.Context, history []*schema.Message) (*schema.Message, error)
}

// ToolInvoker routes one requested tool call through registry resolution,
// input validation, approval preconditions, execution and audit.
type ToolInvoker interface {
	Invoke(ctx context.Context, conversationKey string, call ToolCall) Result
}

// Summarizer condenses turns dropped by conversation pruning into a rolling
// summary carried in the system context.
type Summarizer interface {
	Summarize(ctx context.Context, previous string, dropped string) (string, error)
}
