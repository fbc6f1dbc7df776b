package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/adpilot-ai/adpilot/llm"
	"github.com/adpilot-ai/adpilot/types"
)

func sse(w http.ResponseWriter, payloads ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, p := range payloads {
		fmt.Fprintf(w, "data: %s\n\n", p)
	}
}

func drain(t *testing.T, ch <-chan llm.StreamItem) ([]json.RawMessage, error) {
	t.Helper()
	var chunks []json.RawMessage
	for item := range ch {
		if item.Err != nil {
			return chunks, item.Err
		}
		chunks = append(chunks, item.Data)
	}
	return chunks, nil
}

func TestClient_ForwardsRawChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "key-1" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != anthropicVersion {
			t.Errorf("anthropic-version = %q", got)
		}
		var req apiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if !req.Stream || req.Model != defaultModel {
			t.Errorf("unexpected request %+v", req)
		}
		sse(w,
			`{"type":"message_start"}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`,
			`{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`,
			`{"type":"message_stop"}`,
		)
	}))
	defer srv.Close()

	c, err := New("key-1", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	ch, err := c.Stream(context.Background(), llm.StreamRequest{Input: "hi"})
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	chunks, err := drain(t, ch)
	if err != nil {
		t.Fatalf("stream errored: %v", err)
	}
	if len(chunks) != 4 {
		t.Fatalf("expected all 4 SSE payloads forwarded, got %d", len(chunks))
	}
	var delta struct {
		Delta struct {
			Text string `json:"text"`
		} `json:"delta"`
	}
	if err := json.Unmarshal(chunks[1], &delta); err != nil || delta.Delta.Text != "Hello" {
		t.Fatalf("chunk not forwarded verbatim: %s", chunks[1])
	}
}

func TestClient_ToolRoundTrip(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req apiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		switch calls.Add(1) {
		case 1:
			if len(req.Tools) != 1 || req.Tools[0].Name != "manage_campaign" {
				t.Errorf("tool declarations missing: %+v", req.Tools)
			}
			sse(w,
				`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"manage_campaign"}}`,
				`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"action\":"}}`,
				`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"\"list\"}"}}`,
				`{"type":"message_delta","delta":{"stop_reason":"tool_use"}}`,
			)
		default:
			// The second round must carry the assistant tool_use and the
			// user tool_result built from the local invocation.
			if len(req.Messages) != 3 {
				t.Errorf("expected 3 messages in round 2, got %d", len(req.Messages))
			}
			raw, _ := json.Marshal(req.Messages)
			text := string(raw)
			if !json.Valid(raw) || !containsAll(text, `"tool_use"`, `"tool_result"`, `"toolu_1"`) {
				t.Errorf("tool round trip messages malformed: %s", text)
			}
			sse(w,
				`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"All listed."}}`,
				`{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`,
			)
		}
	}))
	defer srv.Close()

	var gotArgs json.RawMessage
	bound := llm.BoundTool{
		Definition: types.ToolDefinition{Name: "manage_campaign", Description: "campaigns"},
		Invoke: func(ctx context.Context, args json.RawMessage, emit llm.EmitFunc) (map[string]any, error) {
			gotArgs = args
			emit(types.ObservationEvent("manage_campaign", true, "Found 2 campaigns.", nil))
			return map[string]any{"success": true, "message": "Found 2 campaigns."}, nil
		},
	}

	c, err := New("key-1", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	ch, err := c.Stream(context.Background(), llm.StreamRequest{Input: "list", Tools: []llm.BoundTool{bound}})
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	chunks, err := drain(t, ch)
	if err != nil {
		t.Fatalf("stream errored: %v", err)
	}

	if calls.Load() != 2 {
		t.Fatalf("expected 2 API rounds, got %d", calls.Load())
	}
	if string(gotArgs) != `{"action":"list"}` {
		t.Fatalf("accumulated tool args = %s", gotArgs)
	}

	// The tool's emitted observation must appear in the stream wrapped in
	// an event envelope.
	foundEnvelope := false
	for _, chunk := range chunks {
		var env struct {
			Type  string `json:"type"`
			Event struct {
				Kind string `json:"kind"`
			} `json:"event"`
		}
		if json.Unmarshal(chunk, &env) == nil && env.Type == "tool_stream" && env.Event.Kind == "observation" {
			foundEnvelope = true
		}
	}
	if !foundEnvelope {
		t.Fatal("tool observation envelope missing from stream")
	}
}

func TestClient_APIErrorSurfacesInStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := New("key-1", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	ch, err := c.Stream(context.Background(), llm.StreamRequest{Input: "hi"})
	if err != nil {
		t.Fatalf("stream failed to open: %v", err)
	}
	if _, err := drain(t, ch); err == nil {
		t.Fatal("expected the API error as a stream item")
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("empty api key must be rejected")
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
