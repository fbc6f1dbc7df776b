// Package mem provides an in-process session store for tests and
// single-node development. Entries honor TTLs the same way the Redis
// store does, with lazy expiry on read.
package mem

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/adpilot-ai/adpilot/state"
)

type entry struct {
	raw       []byte
	expiresAt time.Time
}

type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func New() *Store {
	return &Store{
		entries: map[string]entry{},
		now:     time.Now,
	}
}

func (s *Store) Load(ctx context.Context, sessionID string) (*state.AgentState, error) {
	_ = ctx
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok {
		return nil, state.ErrNotFound
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, sessionID)
		return nil, state.ErrNotFound
	}

	var st state.AgentState
	if err := json.Unmarshal(e.raw, &st); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &st, nil
}

func (s *Store) Save(ctx context.Context, st *state.AgentState, ttl time.Duration) error {
	_ = ctx
	if st == nil {
		return fmt.Errorf("state is required")
	}
	if st.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if ttl <= 0 {
		ttl = state.DefaultSessionTTL
	}

	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[st.SessionID] = entry{
		raw:       raw,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = map[string]entry{}
	return nil
}
