package tools

import (
	"context"
	"fmt"

	"github.com/adpilot-ai/adpilot/types"
)

// Context carries the per-turn invocation context every tool receives.
// It is immutable for the duration of a turn; tools must not retain it.
type Context struct {
	UserID              string
	SessionID           string
	ConversationHistory []types.Message
	ModelPreferences    map[string]any
}

// Tool is a named capability module the agent can invoke. Execute returns
// a result map which should include "success" and a human-readable
// "message"; generated media goes under "attachments".
type Tool interface {
	Definition() types.ToolDefinition
	Execute(ctx context.Context, params map[string]any, tc Context) (map[string]any, error)
}

// ExecutionError is a domain tool failure with a machine-readable code.
// Tools raise it for expected failures (quota exhausted, campaign not
// found); anything else is treated as an unexpected error.
type ExecutionError struct {
	Code    string
	Message string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewExecutionError(code, message string) *ExecutionError {
	return &ExecutionError{Code: code, Message: message}
}

type FuncTool struct {
	def types.ToolDefinition
	fn  func(ctx context.Context, params map[string]any, tc Context) (map[string]any, error)
}

func NewFuncTool(name, description string, parameters []types.Parameter, fn func(ctx context.Context, params map[string]any, tc Context) (map[string]any, error)) *FuncTool {
	return &FuncTool{
		def: types.ToolDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
		fn: fn,
	}
}

func (t *FuncTool) Definition() types.ToolDefinition {
	return t.def
}

func (t *FuncTool) Execute(ctx context.Context, params map[string]any, tc Context) (map[string]any, error) {
	if t.fn == nil {
		return nil, fmt.Errorf("tool %q has no execute function", t.def.Name)
	}
	return t.fn(ctx, params, tc)
}
