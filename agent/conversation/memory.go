package conversation

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore keeps conversation state in memory. States are copied through
// JSON on the way in and out so callers never share slices with the store.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.states[key]
	if !ok {
		return nil, ErrStateNotFound
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *MemoryStore) Save(_ context.Context, st *State) error {
	if st == nil {
		return ErrNilState
	}
	if st.Key == "" {
		return ErrInvalidKey
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.Key] = raw
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, key)
	return nil
}
