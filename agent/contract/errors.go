package contract

import "errors"

var (
	ErrUnknownTool       = errors.New("unknown tool")
	ErrDuplicateTool     = errors.New("duplicate tool")
	ErrValidation        = errors.New("validation failed")
	ErrPrecondition      = errors.New("precondition failed")
	ErrToolExecution     = errors.New("tool execution failed")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrLoopBound         = errors.New("loop bound exceeded")
	ErrBackend           = errors.New("backend failed")
)

// ErrorKind maps an error onto the stable kind identifiers recorded in audit
// entries and surfaced to the reasoning backend. Unclassified errors count as
// tool execution failures so nothing escapes the taxonomy.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnknownTool):
		return "unknown_tool"
	case errors.Is(err, ErrDuplicateTool):
		return "duplicate_tool"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrPrecondition):
		return "precondition"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrLoopBound):
		return "loop_bound"
	case errors.Is(err, ErrBackend):
		return "backend"
	default:
		return "tool_execution"
	}
}

// Recoverable reports whether an error can be surfaced to the reasoning
// backend as a tool-result error instead of terminating the turn.
func Recoverable(err error) bool {
	switch ErrorKind(err) {
	case "loop_bound", "backend":
		return false
	default:
		return true
	}
}
