package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adpilot-ai/adpilot/llm"
	"github.com/adpilot-ai/adpilot/types"
)

const (
	defaultModel      = "claude-3-5-sonnet-latest"
	anthropicVersion  = "2023-06-01"
	defaultMaxTokens  = 4096
	defaultAPIBaseURL = "https://api.anthropic.com"
	maxToolRounds     = 8
)

// Client streams the Anthropic Messages API. Raw SSE payloads are
// forwarded unmodified as chunks; tool invocations requested by the model
// are executed locally between rounds, with tool-emitted events wrapped
// in an "event" envelope.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func New(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	c := &Client{
		apiKey:  strings.TrimSpace(apiKey),
		model:   defaultModel,
		baseURL: defaultAPIBaseURL,
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Name() string { return "anthropic" }

func (c *Client) Capabilities() llm.Capabilities {
	return llm.Capabilities{Tools: true, Streaming: true}
}

func (c *Client) Stream(ctx context.Context, req llm.StreamRequest) (<-chan llm.StreamItem, error) {
	out := make(chan llm.StreamItem, 32)
	go func() {
		defer close(out)
		c.stream(ctx, req, out)
	}()
	return out, nil
}

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

type apiRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	MaxTokens int       `json:"max_tokens"`
	Stream    bool      `json:"stream"`
	Messages  []message `json:"messages"`
	Tools     []apiTool `json:"tools,omitempty"`
}

type apiTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// pendingToolUse is a tool_use block reconstructed from the SSE stream.
type pendingToolUse struct {
	id        string
	name      string
	inputJSON strings.Builder
}

func (c *Client) stream(ctx context.Context, req llm.StreamRequest, out chan<- llm.StreamItem) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	toolIndex := make(map[string]llm.BoundTool, len(req.Tools))
	apiTools := make([]apiTool, 0, len(req.Tools))
	for _, t := range req.Tools {
		toolIndex[t.Definition.Name] = t
		apiTools = append(apiTools, apiTool{
			Name:        t.Definition.Name,
			Description: t.Definition.Description,
			InputSchema: t.Definition.Schema(),
		})
	}

	messages := []message{{Role: "user", Content: req.Input}}

	for round := 0; round < maxToolRounds; round++ {
		turn, err := c.streamOnce(ctx, apiRequest{
			Model:     model,
			System:    req.SystemPrompt,
			MaxTokens: maxTokens,
			Stream:    true,
			Messages:  messages,
			Tools:     apiTools,
		}, out)
		if err != nil {
			out <- llm.StreamItem{Err: err}
			return
		}

		if turn.stopReason != "tool_use" || len(turn.toolUses) == 0 {
			return
		}

		assistantBlocks := make([]contentBlock, 0, len(turn.toolUses)+1)
		if turn.text.Len() > 0 {
			assistantBlocks = append(assistantBlocks, contentBlock{Type: "text", Text: turn.text.String()})
		}
		resultBlocks := make([]contentBlock, 0, len(turn.toolUses))
		for _, use := range turn.toolUses {
			input := map[string]any{}
			args := json.RawMessage(use.inputJSON.String())
			if len(args) > 0 {
				_ = json.Unmarshal(args, &input)
			} else {
				args = json.RawMessage(`{}`)
			}
			assistantBlocks = append(assistantBlocks, contentBlock{
				Type:  "tool_use",
				ID:    use.id,
				Name:  use.name,
				Input: input,
			})

			result := c.invokeTool(ctx, toolIndex, use.name, args, out)
			encoded, err := json.Marshal(result)
			if err != nil {
				encoded = []byte(fmt.Sprintf(`{"success":false,"error":%q}`, err.Error()))
			}
			resultBlocks = append(resultBlocks, contentBlock{
				Type:      "tool_result",
				ToolUseID: use.id,
				Content:   string(encoded),
			})
		}

		messages = append(messages,
			message{Role: "assistant", Content: assistantBlocks},
			message{Role: "user", Content: resultBlocks},
		)
	}

	out <- llm.StreamItem{Err: fmt.Errorf("anthropic stream exceeded %d tool rounds", maxToolRounds)}
}

func (c *Client) invokeTool(ctx context.Context, toolIndex map[string]llm.BoundTool, name string, args json.RawMessage, out chan<- llm.StreamItem) map[string]any {
	tool, ok := toolIndex[name]
	if !ok {
		return map[string]any{"success": false, "error": fmt.Sprintf("tool %q not found", name)}
	}
	emit := func(ev types.Event) {
		raw, err := json.Marshal(map[string]any{"type": "tool_stream", "event": ev})
		if err != nil {
			return
		}
		select {
		case out <- llm.StreamItem{Data: raw}:
		case <-ctx.Done():
		}
	}
	result, err := tool.Invoke(ctx, args, emit)
	if err != nil {
		// Bound tools convert their own failures; anything surfacing
		// here is a wiring bug, reported to the model as a plain error.
		return map[string]any{"success": false, "error": err.Error()}
	}
	if result == nil {
		result = map[string]any{"success": true}
	}
	return result
}

// turnResult captures what one streamed API round produced.
type turnResult struct {
	text       strings.Builder
	toolUses   []*pendingToolUse
	stopReason string
}

// streamOnce performs a single streamed Messages call, forwarding every
// SSE payload as a raw chunk while reconstructing the assistant message.
func (c *Client) streamOnce(ctx context.Context, payload apiRequest, out chan<- llm.StreamItem) (*turnResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to create anthropic request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return nil, fmt.Errorf("anthropic API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	turn := &turnResult{}
	blocks := map[int64]*pendingToolUse{}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
		if len(data) == 0 {
			continue
		}

		chunk := make(json.RawMessage, len(data))
		copy(chunk, data)
		select {
		case out <- llm.StreamItem{Data: chunk}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		c.track(turn, blocks, data)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("anthropic stream read failed: %w", err)
	}
	return turn, nil
}

// track folds one SSE payload into the reconstructed assistant message.
func (c *Client) track(turn *turnResult, blocks map[int64]*pendingToolUse, data []byte) {
	var ev struct {
		Type  string `json:"type"`
		Index int64  `json:"index"`
		Delta struct {
			Type        string `json:"type"`
			Text        string `json:"text"`
			PartialJSON string `json:"partial_json"`
			StopReason  string `json:"stop_reason"`
		} `json:"delta"`
		ContentBlock struct {
			Type string `json:"type"`
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"content_block"`
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}

	switch ev.Type {
	case "content_block_start":
		if ev.ContentBlock.Type == "tool_use" {
			use := &pendingToolUse{id: ev.ContentBlock.ID, name: ev.ContentBlock.Name}
			blocks[ev.Index] = use
			turn.toolUses = append(turn.toolUses, use)
		}
	case "content_block_delta":
		switch ev.Delta.Type {
		case "text_delta":
			turn.text.WriteString(ev.Delta.Text)
		case "input_json_delta":
			if use, ok := blocks[ev.Index]; ok {
				use.inputJSON.WriteString(ev.Delta.PartialJSON)
			}
		}
	case "message_delta":
		if ev.Delta.StopReason != "" {
			turn.stopReason = ev.Delta.StopReason
		}
	}
}
