package agent

import (
	"encoding/json"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/adpilot-ai/adpilot/types"
)

// Normalizer reduces raw model-runtime chunks to the closed event set.
// Runtimes disagree on where tool starts, tool results, and text deltas
// live, and the same fact may arrive through more than one channel, so
// each chunk is probed against an ordered classifier chain; the first
// match wins and a chunk yields at most one event. Classification is
// single-pass: no buffering or look-ahead across chunks.
//
// A Normalizer is stateful for the duration of one turn: it tracks which
// tool invocations have been announced (tool starts arrive repeatedly as
// arguments stream in), which tool is currently awaiting its result, and
// the accumulated response text.
type Normalizer struct {
	announced   map[string]struct{}
	currentTool string
	response    strings.Builder
}

func NewNormalizer() *Normalizer {
	return &Normalizer{announced: map[string]struct{}{}}
}

// FinalResponse returns the text accumulated from all deltas so far.
func (n *Normalizer) FinalResponse() string {
	return n.response.String()
}

type classifier func(chunk []byte) (types.Event, bool)

// Normalize classifies one chunk. Unknown or malformed chunks yield no
// event; a single bad chunk must never abort the turn.
func (n *Normalizer) Normalize(chunk json.RawMessage) (types.Event, bool) {
	if len(chunk) == 0 {
		return types.Event{}, false
	}
	for _, classify := range []classifier{
		n.classifyPassthrough,
		n.classifyToolStart,
		n.classifyToolResult,
		n.classifyTextDelta,
		n.classifyResidual,
	} {
		if ev, ok := classify(chunk); ok {
			return ev, true
		}
	}
	return types.Event{}, false
}

// classifyPassthrough forwards events a bound tool already emitted in
// normalized shape. Runtimes wrap those in an "event" envelope.
func (n *Normalizer) classifyPassthrough(chunk []byte) (types.Event, bool) {
	raw, dataType, _, err := jsonparser.Get(chunk, "event")
	if err != nil || dataType != jsonparser.Object {
		return types.Event{}, false
	}
	kind, err := jsonparser.GetString(raw, "kind")
	if err != nil || types.EventKind(kind) != types.EventObservation {
		return types.Event{}, false
	}
	var ev types.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return types.Event{}, false
	}
	// A forwarded observation resolves the pending tool, so a later
	// residual scan does not report it a second time.
	if ev.Tool == "" || ev.Tool == n.currentTool {
		n.currentTool = ""
	}
	return ev, true
}

// classifyToolStart recognizes a tool invocation announcement under any
// known spelling and emits exactly one action per invocation id. The same
// start may arrive several times (once naming the tool, again as its
// arguments stream in), so deduplication by id is mandatory.
func (n *Normalizer) classifyToolStart(chunk []byte) (types.Event, bool) {
	id, name, input := probeToolStart(chunk)
	if name == "" {
		return types.Event{}, false
	}
	if id == "" {
		id = name
	}
	if _, dup := n.announced[id]; dup {
		return types.Event{}, false
	}
	n.announced[id] = struct{}{}
	n.currentTool = name
	return types.ActionEvent(name, input), true
}

func probeToolStart(chunk []byte) (id, name string, input map[string]any) {
	// Anthropic-style: content_block_start with a tool_use block.
	if blockType, err := jsonparser.GetString(chunk, "content_block", "type"); err == nil && blockType == "tool_use" {
		id, _ = jsonparser.GetString(chunk, "content_block", "id")
		name, _ = jsonparser.GetString(chunk, "content_block", "name")
		if raw, dataType, _, err := jsonparser.Get(chunk, "content_block", "input"); err == nil && dataType == jsonparser.Object {
			_ = json.Unmarshal(raw, &input)
		}
		return id, name, input
	}

	// OpenAI-style: first streamed tool_call delta carries id and name.
	if raw, _, _, err := jsonparser.Get(chunk, "choices", "[0]", "delta", "tool_calls", "[0]"); err == nil {
		name, _ = jsonparser.GetString(raw, "function", "name")
		if name == "" {
			return "", "", nil
		}
		id, _ = jsonparser.GetString(raw, "id")
		if args, err := jsonparser.GetString(raw, "function", "arguments"); err == nil && args != "" {
			_ = json.Unmarshal([]byte(args), &input)
		}
		return id, name, input
	}

	// Flat spellings used by older runtime versions.
	for _, key := range []string{"tool_name", "toolName"} {
		if v, err := jsonparser.GetString(chunk, key); err == nil && v != "" {
			name = v
			break
		}
	}
	if name == "" {
		return "", "", nil
	}
	for _, key := range []string{"tool_use_id", "toolCallId", "id"} {
		if v, err := jsonparser.GetString(chunk, key); err == nil && v != "" {
			id = v
			break
		}
	}
	for _, key := range []string{"tool_input", "input", "arguments"} {
		if raw, dataType, _, err := jsonparser.Get(chunk, key); err == nil && dataType == jsonparser.Object {
			_ = json.Unmarshal(raw, &input)
			break
		}
	}
	return id, name, input
}

// classifyToolResult recognizes a completed tool result, decodes its
// payload from whichever shape it arrived in, and resolves the current
// tool. Malformed payloads still produce an observation with a default
// message rather than failing the turn.
func (n *Normalizer) classifyToolResult(chunk []byte) (types.Event, bool) {
	content, found := probeToolResult(chunk)
	if !found {
		return types.Event{}, false
	}
	ev := n.observationFromResult(content)
	n.currentTool = ""
	return ev, true
}

func probeToolResult(chunk []byte) ([]byte, bool) {
	for _, key := range []string{"tool_result", "toolResult"} {
		if raw, dataType, _, err := jsonparser.Get(chunk, key); err == nil && dataType != jsonparser.NotExist {
			if content, contentType, _, err := jsonparser.Get(raw, "content"); err == nil && contentType != jsonparser.NotExist {
				return content, true
			}
			return raw, true
		}
	}
	if chunkType, err := jsonparser.GetString(chunk, "type"); err == nil && chunkType == "tool_result" {
		if content, dataType, _, err := jsonparser.Get(chunk, "content"); err == nil && dataType != jsonparser.NotExist {
			return content, true
		}
		return nil, true
	}
	return nil, false
}

// observationFromResult builds the observation event for the tool
// currently awaiting resolution. The payload may be a structured object,
// a serialized JSON string, or unparseable junk.
func (n *Normalizer) observationFromResult(content []byte) types.Event {
	result := decodeResultPayload(content)

	success := true
	if v, ok := result["success"].(bool); ok {
		success = v
	}
	message := "Tool execution completed"
	if v, ok := result["message"].(string); ok && v != "" {
		message = v
	} else if v, ok := result["error"].(string); ok && v != "" {
		message = v
	}
	return types.ObservationEvent(n.currentTool, success, message, decodeAttachments(result["attachments"]))
}

// decodeResultPayload probes every admissible payload encoding: a JSON
// object, a JSON string containing serialized JSON, or bare text. Note
// jsonparser.Get already unquotes string values, so serialized-JSON
// payloads usually decode on the first attempt. Payloads that look like
// broken JSON decode to nil and get the default message.
func decodeResultPayload(content []byte) map[string]any {
	if len(content) == 0 {
		return nil
	}
	var asMap map[string]any
	if err := json.Unmarshal(content, &asMap); err == nil {
		return asMap
	}
	var asString string
	if err := json.Unmarshal(content, &asString); err == nil {
		if json.Unmarshal([]byte(asString), &asMap) == nil {
			return asMap
		}
		return map[string]any{"message": asString}
	}
	if text := strings.TrimSpace(string(content)); text != "" && !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		return map[string]any{"message": text}
	}
	return nil
}

func decodeAttachments(v any) []types.Attachment {
	raw, err := json.Marshal(v)
	if err != nil || string(raw) == "null" {
		return nil
	}
	var out []types.Attachment
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// classifyTextDelta recognizes an incremental response fragment, appends
// it to the accumulator, and emits exactly the fragment, never the
// accumulated total, preserving the runtime's streaming granularity.
func (n *Normalizer) classifyTextDelta(chunk []byte) (types.Event, bool) {
	fragment, found := probeTextDelta(chunk)
	if !found || fragment == "" {
		return types.Event{}, false
	}
	n.response.WriteString(fragment)
	return types.TextEvent(fragment), true
}

func probeTextDelta(chunk []byte) (string, bool) {
	// Anthropic-style content_block_delta.
	if deltaType, err := jsonparser.GetString(chunk, "delta", "type"); err == nil && deltaType == "text_delta" {
		text, _ := jsonparser.GetString(chunk, "delta", "text")
		return text, true
	}
	// OpenAI-style choice delta.
	if text, err := jsonparser.GetString(chunk, "choices", "[0]", "delta", "content"); err == nil {
		return text, true
	}
	// Flat delta.
	if text, err := jsonparser.GetString(chunk, "text"); err == nil {
		return text, true
	}
	return "", false
}

// classifyResidual inspects final-message envelopes that restate already
// streamed content. They normally produce no event, but a tool result
// embedded only in the final message (never streamed incrementally) must
// still surface as an observation, or attachment-bearing output would be
// silently dropped.
func (n *Normalizer) classifyResidual(chunk []byte) (types.Event, bool) {
	envelope, dataType, _, err := jsonparser.Get(chunk, "message")
	if err != nil || dataType != jsonparser.Object {
		// message_delta / message_stop / "data" passthrough envelopes
		// carry nothing new; they fall through to the ignore rule.
		return types.Event{}, false
	}

	if n.currentTool == "" {
		return types.Event{}, false
	}

	var event types.Event
	matched := false
	_, _ = jsonparser.ArrayEach(envelope, func(block []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if matched || dataType != jsonparser.Object {
			return
		}
		blockType, err := jsonparser.GetString(block, "type")
		if err != nil || blockType != "tool_result" {
			return
		}
		content, _, _, err := jsonparser.Get(block, "content")
		if err != nil {
			content = nil
		}
		event = n.observationFromResult(content)
		matched = true
	}, "content")
	if !matched {
		return types.Event{}, false
	}
	n.currentTool = ""
	return event, true
}
