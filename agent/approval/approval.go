package approval

import (
	"context"
	"time"
)

// Kind classifies the entities whose side effects are gated behind human
// approval.
type Kind string

const (
	KindListingDraft    Kind = "listing_draft"
	KindShipment        Kind = "shipment"
	KindOutboundMessage Kind = "outbound_message"
)

// Status is the approval lifecycle state. Published is terminal.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusPublished Status = "published"
)

// Approvable is one risk-bearing entity moving through the lifecycle.
// Known fields are typed; Extra carries per-kind attributes that have no
// dedicated column.
type Approvable struct {
	ID           string         `json:"id"`
	Kind         Kind           `json:"kind"`
	Status       Status         `json:"status"`
	Title        string         `json:"title,omitempty"`
	Body         string         `json:"body,omitempty"`
	EntityRef    string         `json:"entity_ref,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
	RejectReason string         `json:"reject_reason,omitempty"`
	ResubmitOf   string         `json:"resubmit_of,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Store persists approvables. Transition is a compare-and-set: it applies
// only when the entity's current status equals from, and reports whether the
// swap happened. Concurrent conflicting transitions must resolve so that
// exactly one caller observes applied=true.
// UpdateContent follows the same rule: it applies only while the entity is
// still a draft.
type Store interface {
	Insert(ctx context.Context, a *Approvable) error
	Get(ctx context.Context, id string) (*Approvable, error)
	Transition(ctx context.Context, id string, from, to Status, reason string, now time.Time) (applied bool, err error)
	UpdateContent(ctx context.Context, id, title, body string, extra map[string]any, now time.Time) (applied bool, err error)
	List(ctx context.Context, kind Kind, status Status) ([]*Approvable, error)
}
