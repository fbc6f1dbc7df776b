package openai

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
	defaultModel      = "gpt-4o"
	defaultAPIBaseURL = "https://api.openai.com"
	maxToolRounds     = 8
)

// Client streams the OpenAI Chat Completions API, forwarding raw SSE
// payloads as chunks and executing requested tool calls between rounds.
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
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
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

func (c *Client) Name() string { return "openai" }

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

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type apiRequest struct {
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
	Messages []chatMessage `json:"messages"`
	Tools    []apiTool     `json:"tools,omitempty"`
	MaxComp  int           `json:"max_completion_tokens,omitempty"`
}

type apiTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description,omitempty"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type pendingToolCall struct {
	id        string
	name      string
	arguments strings.Builder
}

func (c *Client) stream(ctx context.Context, req llm.StreamRequest, out chan<- llm.StreamItem) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	toolIndex := make(map[string]llm.BoundTool, len(req.Tools))
	apiTools := make([]apiTool, 0, len(req.Tools))
	for _, t := range req.Tools {
		toolIndex[t.Definition.Name] = t
		at := apiTool{Type: "function"}
		at.Function.Name = t.Definition.Name
		at.Function.Description = t.Definition.Description
		at.Function.Parameters = t.Definition.Schema()
		apiTools = append(apiTools, at)
	}

	messages := []chatMessage{}
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Input})

	for round := 0; round < maxToolRounds; round++ {
		turn, err := c.streamOnce(ctx, apiRequest{
			Model:    model,
			Stream:   true,
			Messages: messages,
			Tools:    apiTools,
			MaxComp:  req.MaxOutputTokens,
		}, out)
		if err != nil {
			out <- llm.StreamItem{Err: err}
			return
		}

		if turn.finishReason != "tool_calls" || len(turn.toolCalls) == 0 {
			return
		}

		assistant := chatMessage{Role: "assistant", Content: turn.text.String()}
		toolMessages := make([]chatMessage, 0, len(turn.toolCalls))
		for _, call := range turn.toolCalls {
			tc := chatToolCall{ID: call.id, Type: "function"}
			tc.Function.Name = call.name
			tc.Function.Arguments = call.arguments.String()
			assistant.ToolCalls = append(assistant.ToolCalls, tc)

			args := json.RawMessage(call.arguments.String())
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			result := c.invokeTool(ctx, toolIndex, call.name, args, out)
			encoded, err := json.Marshal(result)
			if err != nil {
				encoded = []byte(fmt.Sprintf(`{"success":false,"error":%q}`, err.Error()))
			}
			toolMessages = append(toolMessages, chatMessage{
				Role:       "tool",
				Name:       call.name,
				ToolCallID: call.id,
				Content:    string(encoded),
			})
		}

		messages = append(messages, assistant)
		messages = append(messages, toolMessages...)
	}

	out <- llm.StreamItem{Err: fmt.Errorf("openai stream exceeded %d tool rounds", maxToolRounds)}
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
		return map[string]any{"success": false, "error": err.Error()}
	}
	if result == nil {
		result = map[string]any{"success": true}
	}
	return result
}

type turnResult struct {
	text         strings.Builder
	toolCalls    []*pendingToolCall
	finishReason string
}

func (c *Client) streamOnce(ctx context.Context, payload apiRequest, out chan<- llm.StreamItem) (*turnResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to create openai request: %w", err)
	}
	httpReq.Header.Set("authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return nil, fmt.Errorf("openai API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	turn := &turnResult{}
	calls := map[int64]*pendingToolCall{}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := bytes.TrimSpace(bytes.TrimPrefix(line, []byte("data:")))
		if len(data) == 0 || bytes.Equal(data, []byte("[DONE]")) {
			continue
		}

		chunk := make(json.RawMessage, len(data))
		copy(chunk, data)
		select {
		case out <- llm.StreamItem{Data: chunk}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		c.track(turn, calls, data)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("openai stream read failed: %w", err)
	}
	return turn, nil
}

func (c *Client) track(turn *turnResult, calls map[int64]*pendingToolCall, data []byte) {
	var ev struct {
		Choices []struct {
			Delta struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					Index    int64  `json:"index"`
					ID       string `json:"id"`
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"delta"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &ev); err != nil || len(ev.Choices) == 0 {
		return
	}

	choice := ev.Choices[0]
	turn.text.WriteString(choice.Delta.Content)
	for _, tc := range choice.Delta.ToolCalls {
		call, ok := calls[tc.Index]
		if !ok {
			call = &pendingToolCall{}
			calls[tc.Index] = call
			turn.toolCalls = append(turn.toolCalls, call)
		}
		if tc.ID != "" {
			call.id = tc.ID
		}
		if tc.Function.Name != "" {
			call.name = tc.Function.Name
		}
		call.arguments.WriteString(tc.Function.Arguments)
	}
	if choice.FinishReason != "" {
		turn.finishReason = choice.FinishReason
	}
}
