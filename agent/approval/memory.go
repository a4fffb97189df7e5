package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
)

// MemoryStore is a mutex-guarded in-memory Store. The transition check and
// the write happen under one lock acquisition, which gives the same
// exactly-one-winner guarantee as the database's conditional update.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Approvable
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Approvable)}
}

func (s *MemoryStore) Insert(_ context.Context, a *Approvable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[a.ID]; ok {
		return fmt.Errorf("%w: approvable %s already exists", contractx.ErrValidation, a.ID)
	}
	cp := *a
	s.entries[a.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Approvable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: approvable %s not found", contractx.ErrValidation, id)
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) Transition(_ context.Context, id string, from, to Status, reason string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.entries[id]
	if !ok {
		return false, nil
	}
	if a.Status != from {
		return false, nil
	}
	a.Status = to
	a.UpdatedAt = now
	if reason != "" {
		a.RejectReason = reason
	}
	return true, nil
}

func (s *MemoryStore) UpdateContent(_ context.Context, id, title, body string, extra map[string]any, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.entries[id]
	if !ok || a.Status != StatusDraft {
		return false, nil
	}
	if title != "" {
		a.Title = title
	}
	if body != "" {
		a.Body = body
	}
	if len(extra) > 0 {
		if a.Extra == nil {
			a.Extra = make(map[string]any, len(extra))
		}
		for k, v := range extra {
			a.Extra[k] = v
		}
	}
	a.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) List(_ context.Context, kind Kind, status Status) ([]*Approvable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Approvable
	for _, a := range s.entries {
		if kind != "" && a.Kind != kind {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}
