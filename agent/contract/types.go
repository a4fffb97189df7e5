package contract

// Actor identifies who caused a tool invocation.
type Actor string

const (
	ActorAgent Actor = "agent"
	ActorHuman Actor = "human"
)

// ToolCall is one tool invocation requested by the reasoning backend.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Result is the structured outcome of one dispatcher invocation. Either
// Value is set (OK) or ErrKind/ErrMessage describe the failure.
type Result struct {
	OK         bool   `json:"ok"`
	Value      any    `json:"value,omitempty"`
	ErrKind    string `json:"err_kind,omitempty"`
	ErrMessage string `json:"err_message,omitempty"`
}

// OKResult wraps a successful handler output.
func OKResult(value any) Result {
	return Result{OK: true, Value: value}
}

// ErrResult classifies err into the taxonomy and wraps it for the backend.
func ErrResult(err error) Result {
	return Result{
		OK:         false,
		ErrKind:    ErrorKind(err),
		ErrMessage: err.Error(),
	}
}

// DisplayRefsKey marks image references in a tool result map that the chat
// transport should render alongside the final reply. The references stay
// opaque strings end to end; no image bytes travel through the loop.
const DisplayRefsKey = "display_refs"

// AgentResponse is what one inbound turn produces for the chat transport.
type AgentResponse struct {
	Reply        string   `json:"reply"`
	ContextReset bool     `json:"context_reset,omitempty"`
	Artifacts    []string `json:"artifacts,omitempty"`
}
