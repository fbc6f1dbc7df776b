package types

import "time"

// EventKind enumerates the closed set of events a turn can emit. Model
// runtimes stream chunks of wildly varying shapes; everything a caller
// sees is reduced to one of these.
type EventKind string

const (
	EventPlanning         EventKind = "planning"
	EventThought          EventKind = "thought"
	EventEvaluation       EventKind = "evaluation"
	EventAction           EventKind = "action"
	EventObservation      EventKind = "observation"
	EventReflection       EventKind = "reflection"
	EventText             EventKind = "text"
	EventUserInputRequest EventKind = "user_input_request"
	EventError            EventKind = "error"
	EventDone             EventKind = "done"
)

// Event is the tagged union delivered to turn consumers. Which fields are
// populated depends on Kind:
//
//   - text, thought, evaluation, reflection, error: Content
//   - action: Tool, Input
//   - observation: Tool, Success, Message, Attachments
//   - user_input_request: Request
//   - done: no payload
//
// Text events carry incremental fragments; concatenating their Content in
// arrival order reconstructs the final response.
type Event struct {
	Kind        EventKind      `json:"kind"`
	Timestamp   time.Time      `json:"timestamp,omitzero"`
	Content     string         `json:"content,omitempty"`
	Tool        string         `json:"tool,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
	Success     bool           `json:"success,omitempty"`
	Message     string         `json:"message,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	Request     map[string]any `json:"request,omitempty"`
}

func TextEvent(fragment string) Event {
	return Event{Kind: EventText, Content: fragment, Timestamp: time.Now().UTC()}
}

func ActionEvent(tool string, input map[string]any) Event {
	return Event{Kind: EventAction, Tool: tool, Input: input, Timestamp: time.Now().UTC()}
}

func ObservationEvent(tool string, success bool, message string, attachments []Attachment) Event {
	return Event{
		Kind:        EventObservation,
		Tool:        tool,
		Success:     success,
		Message:     message,
		Attachments: attachments,
		Timestamp:   time.Now().UTC(),
	}
}

func ErrorEvent(message string) Event {
	return Event{Kind: EventError, Content: message, Timestamp: time.Now().UTC()}
}

func DoneEvent() Event {
	return Event{Kind: EventDone, Timestamp: time.Now().UTC()}
}
