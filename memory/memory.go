// Package memory defines the long-term conversation memory contract.
// Memory is append-only from the orchestrator's perspective: every user
// and assistant turn is recorded durably, independent of session-state
// persistence, so conversations survive session TTL expiry.
package memory

import (
	"context"
	"time"

	"github.com/adpilot-ai/adpilot/types"
)

// Entry is one recorded conversation turn.
type Entry struct {
	ID             int64              `json:"id,omitempty"`
	ConversationID string             `json:"conversation_id"`
	SessionID      string             `json:"session_id,omitempty"`
	UserID         string             `json:"user_id,omitempty"`
	Role           types.Role         `json:"role"`
	Content        string             `json:"content"`
	Provider       string             `json:"provider,omitempty"`
	Model          string             `json:"model,omitempty"`
	Attachments    []types.Attachment `json:"attachments,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

type Store interface {
	Append(ctx context.Context, entry Entry) error
	// Recent returns up to limit entries for a conversation, oldest first.
	Recent(ctx context.Context, conversationID string, limit int) ([]Entry, error)
	Close() error
}
