package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/adpilot-ai/adpilot/memory"
	"github.com/adpilot-ai/adpilot/types"
)

//go:embed schema.sql
var schemaSQL string

const (
	defaultBusyTimeout = 5 * time.Second
	defaultLimit       = 50
)

type Store struct {
	db          *sql.DB
	busyTimeout time.Duration
	enableWAL   bool
	maxOpenConn int
}

type Option func(*Store)

func WithBusyTimeout(timeout time.Duration) Option {
	return func(s *Store) {
		if timeout >= 0 {
			s.busyTimeout = timeout
		}
	}
}

func WithWAL(enabled bool) Option {
	return func(s *Store) {
		s.enableWAL = enabled
	}
}

func WithMaxOpenConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxOpenConn = n
		}
	}
}

func New(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	s := &Store{
		busyTimeout: defaultBusyTimeout,
		enableWAL:   true,
		maxOpenConn: 1,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(s.maxOpenConn)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s.db = db
	if err := s.initialize(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	if s.busyTimeout > 0 {
		ms := int(s.busyTimeout / time.Millisecond)
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d;", ms)); err != nil {
			return fmt.Errorf("failed to set busy_timeout: %w", err)
		}
	}
	if s.enableWAL {
		if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("failed to enable wal: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, entry memory.Entry) error {
	if entry.ConversationID == "" {
		return fmt.Errorf("conversation_id is required")
	}
	if entry.Role == "" {
		return fmt.Errorf("role is required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	attachments := entry.Attachments
	if attachments == nil {
		attachments = []types.Attachment{}
	}
	attachmentsRaw, err := json.Marshal(attachments)
	if err != nil {
		return fmt.Errorf("failed to marshal attachments: %w", err)
	}

	const q = `
INSERT INTO conversation_memory
    (conversation_id, session_id, user_id, role, content, provider, model, attachments, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`
	_, err = s.db.ExecContext(ctx, q,
		entry.ConversationID,
		entry.SessionID,
		entry.UserID,
		string(entry.Role),
		entry.Content,
		entry.Provider,
		entry.Model,
		string(attachmentsRaw),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append memory entry: %w", err)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, conversationID string, limit int) ([]memory.Entry, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversation_id is required")
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	// Newest window, returned oldest first.
	const q = `
SELECT id, conversation_id, session_id, user_id, role, content, provider, model, attachments, created_at
FROM (
    SELECT * FROM conversation_memory
    WHERE conversation_id = ?
    ORDER BY id DESC
    LIMIT ?
)
ORDER BY id ASC;`
	rows, err := s.db.QueryContext(ctx, q, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory entries: %w", err)
	}
	defer rows.Close()

	out := make([]memory.Entry, 0, limit)
	for rows.Next() {
		var (
			entry          memory.Entry
			role           string
			attachmentsRaw string
			createdAt      string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.ConversationID,
			&entry.SessionID,
			&entry.UserID,
			&role,
			&entry.Content,
			&entry.Provider,
			&entry.Model,
			&attachmentsRaw,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan memory entry: %w", err)
		}
		entry.Role = types.Role(role)
		if attachmentsRaw != "" && attachmentsRaw != "[]" {
			if err := json.Unmarshal([]byte(attachmentsRaw), &entry.Attachments); err != nil {
				return nil, fmt.Errorf("failed to decode attachments: %w", err)
			}
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		entry.CreatedAt = ts
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memory entries: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
