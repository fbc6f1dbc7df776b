// Package llm defines the model-streaming contract the orchestrator
// consumes. Runtimes deliver raw, runtime-specific chunks; the chunk
// schema is deliberately not fixed here; absorbing that heterogeneity is
// the event normalizer's job.
package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/adpilot-ai/adpilot/types"
)

// ErrNotSupported reports a request that exceeds the runtime's declared
// capabilities, e.g. passing tools to a runtime without tool support.
// Callers check it with errors.Is against wrapped failures.
var ErrNotSupported = errors.New("operation not supported by runtime")

type Capabilities struct {
	Tools     bool
	Streaming bool
}

// EmitFunc lets a bound tool surface intermediate events (observations)
// while it executes. Runtimes forward emitted events into the chunk
// stream wrapped in an "event" envelope.
type EmitFunc func(types.Event)

// BoundTool is a tool already wrapped for runtime invocation: arguments
// arrive as the raw JSON the model produced, and the returned map is the
// tool's formal result fed back to the model.
type BoundTool struct {
	Definition types.ToolDefinition
	Invoke     func(ctx context.Context, args json.RawMessage, emit EmitFunc) (map[string]any, error)
}

type StreamRequest struct {
	Model           string
	SystemPrompt    string
	Input           string
	Tools           []BoundTool
	MaxOutputTokens int
}

// StreamItem is one element of a model stream: a raw chunk, or the error
// that ended the stream. After an item with Err set, the channel closes.
type StreamItem struct {
	Data json.RawMessage
	Err  error
}

// Runtime streams one model turn as a sequence of raw chunks. The channel
// is closed when the turn ends; a nil channel is never returned without an
// error. Implementations run any requested tool invocations themselves,
// feeding tool results back to the model and surfacing both as chunks.
type Runtime interface {
	Name() string
	Capabilities() Capabilities
	Stream(ctx context.Context, req StreamRequest) (<-chan StreamItem, error)
}
