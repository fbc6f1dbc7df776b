package state

import (
	"fmt"
	"time"

	"github.com/adpilot-ai/adpilot/types"
)

// Status is the lifecycle state of a conversation session.
type Status string

const (
	StatusIdle                Status = "idle"
	StatusPlanning            Status = "planning"
	StatusEvaluating          Status = "evaluating"
	StatusThinking            Status = "thinking"
	StatusActing              Status = "acting"
	StatusWaitingForUserInput Status = "waiting_for_user_input"
	StatusReflecting          Status = "reflecting"
	StatusCompleted           Status = "completed"
	StatusError               Status = "error"
)

// validTransitions encodes the session state machine. Error is reachable
// from every non-terminal state; the minimal loop only walks
// idle -> thinking -> completed, the intermediate states are legal for
// richer loops.
var validTransitions = map[Status][]Status{
	StatusIdle:                {StatusPlanning, StatusThinking},
	StatusPlanning:            {StatusEvaluating, StatusThinking},
	StatusEvaluating:          {StatusThinking, StatusActing, StatusWaitingForUserInput},
	StatusThinking:            {StatusActing, StatusWaitingForUserInput, StatusCompleted},
	StatusActing:              {StatusThinking, StatusReflecting, StatusWaitingForUserInput, StatusCompleted},
	StatusWaitingForUserInput: {StatusThinking, StatusActing},
	StatusReflecting:          {StatusThinking, StatusCompleted},
	StatusCompleted:           {StatusThinking},
	StatusError:               {StatusThinking},
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// CanTransition reports whether moving from s to next is legal. Error is
// always reachable from a non-terminal state; a terminal state may only
// re-enter thinking (a persisted session picking up a new turn).
func (s Status) CanTransition(next Status) bool {
	if next == StatusError {
		return !s.Terminal()
	}
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ExecutionStep records one cycle of the reason/act loop. Steps are
// append-only; observation and reflection fields are filled in after the
// action phase of the same step.
type ExecutionStep struct {
	StepNumber        int            `json:"step_number"`
	Thought           string         `json:"thought,omitempty"`
	Action            string         `json:"action,omitempty"`
	ActionInput       map[string]any `json:"action_input,omitempty"`
	NeedsConfirmation bool           `json:"needs_confirmation,omitempty"`
	EvaluationReason  string         `json:"evaluation_reason,omitempty"`
	Observation       string         `json:"observation,omitempty"`
	ToolResult        map[string]any `json:"tool_result,omitempty"`
	Reflection        string         `json:"reflection,omitempty"`
	ShouldContinue    bool           `json:"should_continue"`
	Timestamp         time.Time      `json:"timestamp"`
}

const (
	DefaultMaxSteps   = 10
	DefaultSessionTTL = 3600 * time.Second
)

// AgentState is the durable, resumable record of one conversation
// session. It is loaded once at turn start, mutated in process, and
// persisted once at turn end.
type AgentState struct {
	SessionID        string             `json:"session_id"`
	UserID           string             `json:"user_id"`
	ConversationID   string             `json:"conversation_id,omitempty"`
	UserMessage      string             `json:"user_message"`
	UserIntent       string             `json:"user_intent,omitempty"`
	Attachments      []types.Attachment `json:"attachments,omitempty"`
	Status           Status             `json:"status"`
	CurrentStep      int                `json:"current_step"`
	MaxSteps         int                `json:"max_steps"`
	Steps            []ExecutionStep    `json:"steps"`
	Messages         []types.Message    `json:"messages"`
	WaitingForInput  bool               `json:"waiting_for_user_input"`
	UserInputRequest map[string]any     `json:"user_input_request,omitempty"`
	FinalResponse    string             `json:"final_response,omitempty"`
	ErrorMessage     string             `json:"error_message,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

func NewAgentState(sessionID, userID string) *AgentState {
	now := time.Now().UTC()
	return &AgentState{
		SessionID: sessionID,
		UserID:    userID,
		Status:    StatusIdle,
		MaxSteps:  DefaultMaxSteps,
		Steps:     []ExecutionStep{},
		Messages:  []types.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the session to next, enforcing the state machine.
func (s *AgentState) Transition(next Status) error {
	if !s.Status.CanTransition(next) {
		return fmt.Errorf("invalid status transition %s -> %s", s.Status, next)
	}
	s.Status = next
	s.Touch()
	return nil
}

// Fail marks the session as errored, bypassing transition validation so
// that an error is recordable from any point.
func (s *AgentState) Fail(message string) {
	s.Status = StatusError
	s.ErrorMessage = message
	s.Touch()
}

// AddStep appends a new execution step with the next monotonic step
// number and returns a pointer into the step list so later phases of the
// same step can fill in observation and reflection fields. Callers must
// check the MaxSteps bound before adding; AddStep itself does not.
func (s *AgentState) AddStep(thought, action string, input map[string]any) *ExecutionStep {
	s.CurrentStep++
	s.Steps = append(s.Steps, ExecutionStep{
		StepNumber:     s.CurrentStep,
		Thought:        thought,
		Action:         action,
		ActionInput:    input,
		ShouldContinue: true,
		Timestamp:      time.Now().UTC(),
	})
	s.Touch()
	return &s.Steps[len(s.Steps)-1]
}

// LastStep returns the most recent step, or nil when none exist.
func (s *AgentState) LastStep() *ExecutionStep {
	if len(s.Steps) == 0 {
		return nil
	}
	return &s.Steps[len(s.Steps)-1]
}

func (s *AgentState) AppendMessage(role types.Role, content string) {
	s.Messages = append(s.Messages, types.Message{Role: role, Content: content})
	s.Touch()
}

func (s *AgentState) Touch() {
	s.UpdatedAt = time.Now().UTC()
}
