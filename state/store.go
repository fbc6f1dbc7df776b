package state

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("state: session not found")

// Store persists AgentState between turns. Entries expire via TTL; the
// orchestrator never deletes them explicitly. A session is read once at
// turn start and written once at turn end, so implementations need no
// intra-turn consistency beyond last-writer-wins.
type Store interface {
	Load(ctx context.Context, sessionID string) (*AgentState, error)
	Save(ctx context.Context, st *AgentState, ttl time.Duration) error
	Close() error
}
