package audit

import (
	"context"
	"time"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
)

// Entry is the immutable record of one tool invocation. Entries are
// append-only and outlive conversation resets.
type Entry struct {
	ID        string           `json:"id"`
	Tool      string           `json:"tool"`
	Actor     contractx.Actor  `json:"actor"`
	Input     map[string]any   `json:"input,omitempty"`
	Output    any              `json:"output,omitempty"`
	ErrKind   string           `json:"err_kind,omitempty"`
	ErrDetail string           `json:"err_detail,omitempty"`
	EntityRef string           `json:"entity_ref,omitempty"`
	Approved  bool             `json:"approved"`
	CreatedAt time.Time        `json:"created_at"`
}

// Sink persists entries. Record must be durable before it returns; the
// dispatcher does not hand a result back until the entry is written.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}
