package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/adpilot-ai/adpilot/llm"
	"github.com/adpilot-ai/adpilot/observe"
	"github.com/adpilot-ai/adpilot/tools"
	"github.com/adpilot-ai/adpilot/types"
)

// packingKey is the envelope key some model runtimes wrap tool arguments
// in instead of passing them flat.
const packingKey = "input"

const (
	codeInvalidParameters = "INVALID_PARAMETERS"
	codeToolExecution     = "TOOL_EXECUTION_ERROR"
)

// BindTool wraps a domain tool as a runtime-invokable bound tool, closing
// over the turn's invocation context. The returned invoke function never
// propagates a tool failure to the runtime: every failure becomes an
// error observation plus a formal error result, so one broken tool cannot
// abort the whole turn.
func BindTool(tool tools.Tool, tc tools.Context, observer observe.Sink) llm.BoundTool {
	def := tool.Definition()
	if observer == nil {
		observer = observe.NoopSink{}
	}

	return llm.BoundTool{
		Definition: def,
		Invoke: func(ctx context.Context, args json.RawMessage, emit llm.EmitFunc) (map[string]any, error) {
			if emit == nil {
				emit = func(types.Event) {}
			}

			params, err := normalizeArguments(def, args)
			if err != nil {
				return failResult(def.Name, codeInvalidParameters, err.Error(), emit), nil
			}
			if err := validateArguments(def, params); err != nil {
				return failResult(def.Name, codeInvalidParameters, err.Error(), emit), nil
			}

			startedAt := time.Now().UTC()
			result, err := tool.Execute(ctx, params, tc)
			_ = observer.Emit(ctx, observe.Event{
				Kind:       observe.KindTool,
				SessionID:  tc.SessionID,
				ToolName:   def.Name,
				Status:     toolStatus(err),
				Error:      errText(err),
				DurationMs: time.Since(startedAt).Milliseconds(),
			})
			if err != nil {
				var execErr *tools.ExecutionError
				if errors.As(err, &execErr) {
					return failResult(def.Name, execErr.Code, execErr.Message, emit), nil
				}
				return failResult(def.Name, codeToolExecution, err.Error(), emit), nil
			}

			if result != nil {
				emit(observationFromToolResult(def.Name, result))
			}
			return result, nil
		},
	}
}

// normalizeArguments reduces the three admissible argument shapes to a
// flat parameter map: a map nested under the packing key, a single scalar
// under the packing key (mapped to the first declared parameter), or the
// parameters already flat.
func normalizeArguments(def types.ToolDefinition, args json.RawMessage) (map[string]any, error) {
	if len(args) == 0 || strings.TrimSpace(string(args)) == "" {
		return map[string]any{}, nil
	}

	var flat map[string]any
	if err := json.Unmarshal(args, &flat); err != nil {
		return nil, fmt.Errorf("tool arguments are not an object: %w", err)
	}
	if flat == nil {
		return map[string]any{}, nil
	}

	packed, hasPacked := flat[packingKey]
	if !hasPacked || len(flat) != 1 {
		return flat, nil
	}

	switch v := packed.(type) {
	case map[string]any:
		return v, nil
	default:
		first := def.FirstParameter()
		if first == "" {
			// No declared parameters to map the scalar onto.
			return flat, nil
		}
		return map[string]any{first: v}, nil
	}
}

// validateArguments checks the normalized parameters against the tool's
// declared JSON schema.
func validateArguments(def types.ToolDefinition, params map[string]any) error {
	if len(def.Parameters) == 0 {
		return nil
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(def.Schema()),
		gojsonschema.NewGoLoader(params),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}
	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return fmt.Errorf("invalid arguments for tool %q: %s", def.Name, strings.Join(issues, "; "))
}

// observationFromToolResult translates a successful tool result map into
// the observation event surfaced to the turn consumer.
func observationFromToolResult(toolName string, result map[string]any) types.Event {
	success := true
	if v, ok := result["success"].(bool); ok {
		success = v
	}
	message := fmt.Sprintf("Tool %s succeeded", toolName)
	if v, ok := result["message"].(string); ok && v != "" {
		message = v
	} else if v, ok := result["error"].(string); ok && v != "" {
		message = v
	}

	ev := types.ObservationEvent(toolName, success, message, decodeAttachments(result["attachments"]))
	if request, ok := result["user_input_request"].(map[string]any); ok {
		ev.Request = request
	}
	return ev
}

func failResult(toolName, code, message string, emit llm.EmitFunc) map[string]any {
	emit(types.ObservationEvent(toolName, false, message, nil))
	return map[string]any{
		"success":    false,
		"error":      message,
		"error_code": code,
	}
}

func toolStatus(err error) observe.Status {
	if err != nil {
		return observe.StatusFailed
	}
	return observe.StatusCompleted
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
