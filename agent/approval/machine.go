package approval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
)

// Machine applies lifecycle transitions through conditional writes. Legal
// transitions:
//
//	submit            -> draft
//	draft --approve--> approved
//	draft --reject---> rejected
//	approved --execute--> published (terminal)
//	rejected --resubmit--> new draft entity
//
// Everything else fails with ErrInvalidTransition and performs no side
// effect. Two concurrent transitions on one entity resolve so that exactly
// one succeeds.
type Machine struct {
	store Store
	now   func() time.Time
}

func NewMachine(store Store) *Machine {
	return &Machine{store: store, now: time.Now}
}

// WithClock replaces the machine's clock. Test hook.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

// Submit creates a fresh draft.
func (m *Machine) Submit(ctx context.Context, kind Kind, title, body, entityRef string, extra map[string]any) (*Approvable, error) {
	if strings.TrimSpace(string(kind)) == "" {
		return nil, fmt.Errorf("%w: approvable kind is empty", contractx.ErrValidation)
	}
	now := m.now().UTC()
	a := &Approvable{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusDraft,
		Title:     title,
		Body:      body,
		EntityRef: entityRef,
		Extra:     extra,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Insert(ctx, a); err != nil {
		return nil, fmt.Errorf("submit %s: %w", kind, err)
	}
	log.Info().Str("kind", string(kind)).Str("id", a.ID).Msg("draft submitted")
	return a, nil
}

func (m *Machine) Approve(ctx context.Context, id string) (*Approvable, error) {
	return m.transition(ctx, id, StatusDraft, StatusApproved, "")
}

func (m *Machine) Reject(ctx context.Context, id, reason string) (*Approvable, error) {
	return m.transition(ctx, id, StatusDraft, StatusRejected, reason)
}

// Execute moves an approved entity to published. The caller performs the
// external side effect first and calls Execute only after it succeeded, so
// the transition is the commit point.
func (m *Machine) Execute(ctx context.Context, id string) (*Approvable, error) {
	return m.transition(ctx, id, StatusApproved, StatusPublished, "")
}

// Executable fails with ErrPrecondition unless the entity is approved. Used
// by dispatcher preconditions before any external call is made.
func (m *Machine) Executable(ctx context.Context, id string) error {
	a, err := m.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: approvable %s: %v", contractx.ErrPrecondition, id, err)
	}
	if a.Status != StatusApproved {
		return fmt.Errorf("%w: %s %s has status %q, must be approved", contractx.ErrPrecondition, a.Kind, id, a.Status)
	}
	return nil
}

// Resubmit clones a rejected entity into a new draft. The rejected row is
// left untouched so its audit trail stays intact.
func (m *Machine) Resubmit(ctx context.Context, id string, extra map[string]any) (*Approvable, error) {
	prev, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if prev.Status != StatusRejected {
		return nil, fmt.Errorf("%w: cannot resubmit %s with status %q", contractx.ErrInvalidTransition, id, prev.Status)
	}

	merged := make(map[string]any, len(prev.Extra)+len(extra))
	for k, v := range prev.Extra {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}

	now := m.now().UTC()
	next := &Approvable{
		ID:         uuid.NewString(),
		Kind:       prev.Kind,
		Status:     StatusDraft,
		Title:      prev.Title,
		Body:       prev.Body,
		EntityRef:  prev.EntityRef,
		Extra:      merged,
		ResubmitOf: prev.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := m.store.Insert(ctx, next); err != nil {
		return nil, fmt.Errorf("resubmit %s: %w", id, err)
	}
	return next, nil
}

// UpdateDraft edits the content of an entity still in draft. Once approved or
// rejected the content is frozen and edits fail with ErrInvalidTransition.
func (m *Machine) UpdateDraft(ctx context.Context, id, title, body string, extra map[string]any) (*Approvable, error) {
	applied, err := m.store.UpdateContent(ctx, id, title, body, extra, m.now().UTC())
	if err != nil {
		return nil, err
	}
	if !applied {
		current, getErr := m.store.Get(ctx, id)
		if getErr != nil {
			return nil, fmt.Errorf("%w: approvable %s not found", contractx.ErrInvalidTransition, id)
		}
		return nil, fmt.Errorf("%w: %s %s is %q, only drafts can be edited", contractx.ErrInvalidTransition, current.Kind, id, current.Status)
	}
	return m.store.Get(ctx, id)
}

func (m *Machine) Get(ctx context.Context, id string) (*Approvable, error) {
	return m.store.Get(ctx, id)
}

func (m *Machine) List(ctx context.Context, kind Kind, status Status) ([]*Approvable, error) {
	return m.store.List(ctx, kind, status)
}

func (m *Machine) transition(ctx context.Context, id string, from, to Status, reason string) (*Approvable, error) {
	applied, err := m.store.Transition(ctx, id, from, to, reason, m.now().UTC())
	if err != nil {
		return nil, err
	}
	if !applied {
		current, getErr := m.store.Get(ctx, id)
		if getErr != nil {
			return nil, fmt.Errorf("%w: approvable %s not found", contractx.ErrInvalidTransition, id)
		}
		return nil, fmt.Errorf("%w: %s %s is %q, expected %q", contractx.ErrInvalidTransition, current.Kind, id, current.Status, from)
	}
	a, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("kind", string(a.Kind)).
		Str("id", id).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("approval transition")
	return a, nil
}
