// Package agent implements the advertising orchestration core: the
// reason/act loop that streams a model runtime, adapts capability tools
// into model-callable functions, normalizes heterogeneous stream chunks
// into a uniform event protocol, and persists session state across turns.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adpilot-ai/adpilot/llm"
	"github.com/adpilot-ai/adpilot/memory"
	"github.com/adpilot-ai/adpilot/observe"
	"github.com/adpilot-ai/adpilot/state"
	"github.com/adpilot-ai/adpilot/tools"
	"github.com/adpilot-ai/adpilot/types"
)

const (
	defaultHistoryWindow = 10
	defaultFinalResponse = "Done."
	eventBuffer          = 64
)

// RuntimeResolver selects a model runtime for one turn. Model selection
// is a per-turn decision: every turn may use a different provider.
type RuntimeResolver func(provider string) (llm.Runtime, error)

type Orchestrator struct {
	sessions      state.Store
	memory        memory.Store
	resolve       RuntimeResolver
	observer      observe.Sink
	systemPrompt  string
	maxSteps      int
	sessionTTL    time.Duration
	historyWindow int
}

type Option func(*Orchestrator)

func WithObserver(observer observe.Sink) Option {
	return func(o *Orchestrator) {
		if observer != nil {
			o.observer = observer
		}
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) { o.systemPrompt = prompt }
}

func WithMaxSteps(max int) Option {
	return func(o *Orchestrator) {
		if max > 0 {
			o.maxSteps = max
		}
	}
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) {
		if ttl > 0 {
			o.sessionTTL = ttl
		}
	}
}

func WithHistoryWindow(turns int) Option {
	return func(o *Orchestrator) {
		if turns > 0 {
			o.historyWindow = turns
		}
	}
}

func New(sessions state.Store, mem memory.Store, resolve RuntimeResolver, opts ...Option) (*Orchestrator, error) {
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if mem == nil {
		return nil, errors.New("memory store is required")
	}
	if resolve == nil {
		return nil, errors.New("runtime resolver is required")
	}

	o := &Orchestrator{
		sessions:      sessions,
		memory:        mem,
		resolve:       resolve,
		observer:      observe.NoopSink{},
		maxSteps:      state.DefaultMaxSteps,
		sessionTTL:    state.DefaultSessionTTL,
		historyWindow: defaultHistoryWindow,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// TurnRequest describes one conversational turn.
type TurnRequest struct {
	SessionID      string
	UserID         string
	ConversationID string
	Message        string
	Attachments    []types.Attachment
	Provider       string
	Model          string
	// History is the caller-supplied prior conversation; the newest
	// turns are injected into the prompt, bounded by the history window.
	History []types.Message
	// Tools are pre-loaded capability modules for this turn. When nil,
	// every registered tool is used.
	Tools            []tools.Tool
	ModelPreferences map[string]any
}

// RunTurn executes one turn end-to-end and streams normalized events.
// Events arrive strictly in chunk-arrival order; the stream terminates
// with exactly one of: a done event, a user_input_request (when a tool
// suspended the turn for confirmation), or an error event when the turn
// failed outside the streaming phase.
//
// RunTurn never returns failures through a Go error: every failure layer
// is converted into an error event so consumers have one handling path.
func (o *Orchestrator) RunTurn(ctx context.Context, req TurnRequest) <-chan types.Event {
	ch := make(chan types.Event, eventBuffer)
	go func() {
		defer close(ch)
		o.runTurn(ctx, req, ch)
	}()
	return ch
}

// turn holds the in-flight bookkeeping for one RunTurn call.
type turn struct {
	id        string
	req       TurnRequest
	st        *state.AgentState
	norm      *Normalizer
	truncated bool
}

func (o *Orchestrator) runTurn(ctx context.Context, req TurnRequest, ch chan<- types.Event) {
	emit := func(ev types.Event) {
		select {
		case ch <- ev:
		case <-ctx.Done():
		}
	}

	t := &turn{id: uuid.NewString(), req: req, norm: NewNormalizer()}

	// Outer boundary: state loading and the initial memory write. A
	// failure here ends the stream with a terminal error event; no done
	// follows because no turn bookkeeping exists to flush.
	defer func() {
		if r := recover(); r != nil {
			emit(types.ErrorEvent(fmt.Sprintf("turn failed unexpectedly: %v", r)))
			o.observeTurn(ctx, t, observe.StatusFailed, fmt.Sprintf("panic: %v", r))
		}
	}()

	if req.Message == "" {
		emit(types.ErrorEvent("message is required"))
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
		t.req.SessionID = req.SessionID
	}

	o.observeTurn(ctx, t, observe.StatusStarted, "")

	st, err := o.loadOrCreate(ctx, req)
	if err != nil {
		emit(types.ErrorEvent(fmt.Sprintf("failed to load session: %v", err)))
		o.observeTurn(ctx, t, observe.StatusFailed, err.Error())
		return
	}
	t.st = st

	st.UserMessage = req.Message
	if len(req.Attachments) > 0 {
		st.Attachments = append(st.Attachments, req.Attachments...)
	}
	st.WaitingForInput = false
	st.UserInputRequest = nil
	st.AppendMessage(types.RoleUser, req.Message)

	if err := o.appendUserMemory(ctx, req); err != nil {
		emit(types.ErrorEvent(fmt.Sprintf("failed to record message: %v", err)))
		o.observeTurn(ctx, t, observe.StatusFailed, err.Error())
		return
	}

	// Inner boundary: streaming and tool execution. Failures here become
	// an error event, but memory and state persistence still run, and the
	// turn still terminates with done.
	streamErr := o.streamPhase(ctx, t, emit)

	switch {
	case streamErr != nil:
		st.Fail(streamErr.Error())
		emit(types.ErrorEvent(streamErr.Error()))
	case st.WaitingForInput:
		if err := st.Transition(state.StatusWaitingForUserInput); err != nil {
			st.Status = state.StatusWaitingForUserInput
			st.Touch()
		}
	default:
		final := t.norm.FinalResponse()
		if final == "" {
			final = defaultFinalResponse
		}
		if t.truncated {
			final += "\n\n(stopped: step limit reached)"
		}
		st.FinalResponse = final
		st.AppendMessage(types.RoleAssistant, final)
		if err := st.Transition(state.StatusCompleted); err != nil {
			st.Status = state.StatusCompleted
			st.Touch()
		}
	}

	if st.FinalResponse != "" && streamErr == nil && !st.WaitingForInput {
		o.appendAssistantMemory(ctx, t)
	}

	if err := o.persist(ctx, t); err != nil {
		emit(types.ErrorEvent(fmt.Sprintf("failed to persist session: %v", err)))
	}

	status := observe.StatusCompleted
	detail := ""
	if streamErr != nil {
		status = observe.StatusFailed
		detail = streamErr.Error()
	}
	o.observeTurn(ctx, t, status, detail)

	if st.WaitingForInput && streamErr == nil {
		emit(types.Event{
			Kind:      types.EventUserInputRequest,
			Request:   st.UserInputRequest,
			Timestamp: time.Now().UTC(),
		})
		return
	}
	emit(types.DoneEvent())
}

// streamPhase drives the model runtime for one turn, normalizing every
// chunk and forwarding each resulting event immediately.
func (o *Orchestrator) streamPhase(ctx context.Context, t *turn, emit func(types.Event)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("streaming failed unexpectedly: %v", r)
		}
	}()

	runtime, err := o.resolve(t.req.Provider)
	if err != nil {
		return fmt.Errorf("no runtime for provider %q: %w", t.req.Provider, err)
	}

	st := t.st
	if st.Status != state.StatusThinking {
		if terr := st.Transition(state.StatusThinking); terr != nil {
			// Stale in-flight status from an interrupted turn.
			st.Status = state.StatusThinking
			st.Touch()
		}
	}
	if st.MaxSteps <= 0 {
		st.MaxSteps = o.maxSteps
	}

	toolset := t.req.Tools
	if toolset == nil {
		toolset = tools.All()
	}
	tc := tools.Context{
		UserID:              t.req.UserID,
		SessionID:           t.req.SessionID,
		ConversationHistory: t.req.History,
		ModelPreferences:    t.req.ModelPreferences,
	}
	bound := make([]llm.BoundTool, 0, len(toolset))
	for _, tool := range toolset {
		bound = append(bound, BindTool(tool, tc, o.observer))
	}
	if len(bound) > 0 && !runtime.Capabilities().Tools {
		return fmt.Errorf("runtime %q cannot execute tools: %w", runtime.Name(), llm.ErrNotSupported)
	}

	chunks, err := runtime.Stream(ctx, llm.StreamRequest{
		Model:        t.req.Model,
		SystemPrompt: o.systemPrompt,
		Input:        o.buildInput(t.req.History, t.req.Message),
		Tools:        bound,
	})
	if err != nil {
		return fmt.Errorf("model stream failed to start: %w", err)
	}

	for item := range chunks {
		if item.Err != nil {
			return fmt.Errorf("model stream failed: %w", item.Err)
		}
		ev, ok := t.norm.Normalize(item.Data)
		if !ok {
			continue
		}
		o.applyEvent(t, ev)
		emit(ev)
	}
	return ctx.Err()
}

// applyEvent records normalized events into the session state machine.
// Steps are recorded opportunistically: an action opens a step, the
// matching observation fills it in.
func (o *Orchestrator) applyEvent(t *turn, ev types.Event) {
	st := t.st
	switch ev.Kind {
	case types.EventAction:
		if st.CurrentStep >= st.MaxSteps {
			t.truncated = true
			return
		}
		st.AddStep("", ev.Tool, ev.Input)

	case types.EventObservation:
		if step := st.LastStep(); step != nil && step.Observation == "" {
			step.Observation = ev.Message
			step.ToolResult = map[string]any{
				"success": ev.Success,
				"message": ev.Message,
			}
			if len(ev.Attachments) > 0 {
				step.ToolResult["attachments"] = ev.Attachments
			}
			if ev.Request != nil {
				step.NeedsConfirmation = true
			}
		}
		if ev.Request != nil {
			st.WaitingForInput = true
			st.UserInputRequest = ev.Request
		}
		if len(ev.Attachments) > 0 {
			st.Attachments = append(st.Attachments, ev.Attachments...)
		}

	case types.EventThought:
		if step := st.LastStep(); step != nil && step.Thought == "" {
			step.Thought = ev.Content
		}

	case types.EventReflection:
		if step := st.LastStep(); step != nil && step.Reflection == "" {
			step.Reflection = ev.Content
		}
	}
}

// buildInput injects the newest history window as an inline transcript
// ahead of the raw message, bounding prompt growth. Older turns remain
// reachable through long-term memory only.
func (o *Orchestrator) buildInput(history []types.Message, message string) string {
	if len(history) == 0 {
		return message
	}
	window := history
	if len(window) > o.historyWindow {
		window = window[len(window)-o.historyWindow:]
	}
	var b strings.Builder
	b.WriteString("conversation history:\n")
	for _, m := range window {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("\ncurrent question: ")
	b.WriteString(message)
	return b.String()
}

func (o *Orchestrator) loadOrCreate(ctx context.Context, req TurnRequest) (*state.AgentState, error) {
	st, err := o.sessions.Load(ctx, req.SessionID)
	if err != nil {
		if !errors.Is(err, state.ErrNotFound) {
			return nil, err
		}
		st = state.NewAgentState(req.SessionID, req.UserID)
		st.MaxSteps = o.maxSteps
	}
	if req.ConversationID != "" {
		st.ConversationID = req.ConversationID
	}
	return st, nil
}

func (o *Orchestrator) appendUserMemory(ctx context.Context, req TurnRequest) error {
	return o.memory.Append(ctx, memory.Entry{
		ConversationID: conversationID(req),
		SessionID:      req.SessionID,
		UserID:         req.UserID,
		Role:           types.RoleUser,
		Content:        req.Message,
		Attachments:    req.Attachments,
	})
}

func (o *Orchestrator) appendAssistantMemory(ctx context.Context, t *turn) {
	err := o.memory.Append(ctx, memory.Entry{
		ConversationID: conversationID(t.req),
		SessionID:      t.req.SessionID,
		UserID:         t.req.UserID,
		Role:           types.RoleAssistant,
		Content:        t.st.FinalResponse,
		Provider:       t.req.Provider,
		Model:          t.req.Model,
	})
	if err != nil {
		_ = o.observer.Emit(ctx, observe.Event{
			Kind:      observe.KindMemory,
			TurnID:    t.id,
			SessionID: t.req.SessionID,
			Status:    observe.StatusFailed,
			Error:     err.Error(),
		})
	}
}

func (o *Orchestrator) persist(ctx context.Context, t *turn) error {
	err := o.sessions.Save(ctx, t.st, o.sessionTTL)
	status := observe.StatusCompleted
	detail := ""
	if err != nil {
		status = observe.StatusFailed
		detail = err.Error()
	}
	_ = o.observer.Emit(ctx, observe.Event{
		Kind:      observe.KindSession,
		TurnID:    t.id,
		SessionID: t.req.SessionID,
		Status:    status,
		Error:     detail,
	})
	return err
}

func (o *Orchestrator) observeTurn(ctx context.Context, t *turn, status observe.Status, detail string) {
	_ = o.observer.Emit(ctx, observe.Event{
		Kind:           observe.KindTurn,
		TurnID:         t.id,
		SessionID:      t.req.SessionID,
		ConversationID: t.req.ConversationID,
		Provider:       t.req.Provider,
		Model:          t.req.Model,
		Status:         status,
		Error:          detail,
	})
}

func conversationID(req TurnRequest) string {
	if req.ConversationID != "" {
		return req.ConversationID
	}
	return req.SessionID
}
