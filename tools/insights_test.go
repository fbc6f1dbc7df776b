package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adpilot-ai/adpilot/platform"
)

func TestMarketInsights(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("topic"); got != "running shoes" {
			t.Errorf("topic = %q", got)
		}
		if got := r.URL.Query().Get("region"); got != "US" {
			t.Errorf("region = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"trends": []map[string]any{
				{"keyword": "trail running", "region": "US", "interest": 82.0, "change": 12.5},
				{"keyword": "marathon", "region": "US", "interest": 44.0, "change": -3.0},
			},
		})
	}))
	defer srv.Close()
	client, err := platform.New(srv.URL, "")
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	tool := NewMarketInsights(client)
	result, err := tool.Execute(context.Background(), map[string]any{
		"topic": "running shoes", "region": "US",
	}, Context{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	trends, ok := result["trends"].([]map[string]any)
	if !ok || len(trends) != 2 {
		t.Fatalf("unexpected result %v", result)
	}
	if trends[0]["keyword"] != "trail running" {
		t.Fatalf("unexpected trend %v", trends[0])
	}
	if result["message"] != `Found 2 trends for "running shoes", 1 rising.` {
		t.Fatalf("message = %q", result["message"])
	}
}
