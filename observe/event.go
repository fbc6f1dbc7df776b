package observe

import "time"

type Kind string

type Status string

const (
	KindTurn     Kind = "turn"
	KindProvider Kind = "provider"
	KindTool     Kind = "tool"
	KindSession  Kind = "session"
	KindMemory   Kind = "memory"
	KindCustom   Kind = "custom"
)

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Event is one observability record emitted by the orchestrator or the
// tool adapter: turn lifecycle, tool executions, provider streams, and
// session persistence.
type Event struct {
	ID             string         `json:"id,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	TurnID         string         `json:"turnId,omitempty"`
	SessionID      string         `json:"sessionId,omitempty"`
	ConversationID string         `json:"conversationId,omitempty"`
	Kind           Kind           `json:"kind"`
	Status         Status         `json:"status,omitempty"`
	Name           string         `json:"name,omitempty"`
	Provider       string         `json:"provider,omitempty"`
	Model          string         `json:"model,omitempty"`
	ToolName       string         `json:"toolName,omitempty"`
	Message        string         `json:"message,omitempty"`
	Error          string         `json:"error,omitempty"`
	DurationMs     int64          `json:"durationMs,omitempty"`
	Attributes     map[string]any `json:"attributes,omitempty"`
}

func (e *Event) Normalize() {
	if e == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Kind == "" {
		e.Kind = KindCustom
	}
	if e.Attributes == nil {
		e.Attributes = map[string]any{}
	}
}
