package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/adpilot-ai/adpilot/state"
)

const (
	defaultPrefix = "adpilot"
)

// Store keeps serialized sessions in Redis with a TTL, plus a per-user
// sorted-set index of sessions ordered by last update.
type Store struct {
	client   *goredis.Client
	ttl      time.Duration
	prefix   string
	addr     string
	db       int
	password string
}

type Option func(*Store)

func WithPassword(password string) Option {
	return func(s *Store) {
		s.password = password
	}
}

func WithDB(db int) Option {
	return func(s *Store) {
		s.db = db
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if strings.TrimSpace(prefix) != "" {
			s.prefix = strings.TrimSpace(prefix)
		}
	}
}

func WithClient(client *goredis.Client) Option {
	return func(s *Store) {
		if client != nil {
			s.client = client
		}
	}
}

func New(addr string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	s := &Store{
		ttl:    state.DefaultSessionTTL,
		prefix: defaultPrefix,
		addr:   addr,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = goredis.NewClient(&goredis.Options{
			Addr:     s.addr,
			Password: s.password,
			DB:       s.db,
		})
	}

	if err := s.client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return s, nil
}

func (s *Store) Load(ctx context.Context, sessionID string) (*state.AgentState, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}

	raw, err := s.client.Get(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, state.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session from redis: %w", err)
	}

	var st state.AgentState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("failed to decode session from redis: %w", err)
	}
	return &st, nil
}

func (s *Store) Save(ctx context.Context, st *state.AgentState, ttl time.Duration) error {
	if st == nil {
		return fmt.Errorf("state is required")
	}
	if st.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	sessionKey := s.sessionKey(st.SessionID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey, string(raw), ttl)
	if st.UserID != "" {
		userIdx := s.userIndexKey(st.UserID)
		pipe.ZAdd(ctx, userIdx, goredis.Z{
			Score:  float64(st.UpdatedAt.Unix()),
			Member: st.SessionID,
		})
		pipe.Expire(ctx, userIdx, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session in redis: %w", err)
	}
	return nil
}

// SessionsForUser lists session IDs for a user, most recently updated
// first. Expired sessions are pruned from the index lazily.
func (s *Store) SessionsForUser(ctx context.Context, userID string, limit int) ([]string, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if limit <= 0 {
		limit = 50
	}
	ids, err := s.client.ZRevRange(ctx, s.userIndexKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions by user: %w", err)
	}

	alive := make([]string, 0, len(ids))
	stale := make([]any, 0)
	for _, id := range ids {
		exists, err := s.client.Exists(ctx, s.sessionKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check session key: %w", err)
		}
		if exists == 0 {
			stale = append(stale, id)
			continue
		}
		alive = append(alive, id)
	}
	if len(stale) > 0 {
		_ = s.client.ZRem(ctx, s.userIndexKey(userID), stale...).Err()
	}
	return alive, nil
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) sessionKey(sessionID string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, sessionID)
}

func (s *Store) userIndexKey(userID string) string {
	return fmt.Sprintf("%s:sessionidx:user:%s", s.prefix, userID)
}
