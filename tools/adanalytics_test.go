package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adpilot-ai/adpilot/platform"
)

func metricsServer(t *testing.T, rows []map[string]any) *platform.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"rows": rows})
	}))
	t.Cleanup(srv.Close)
	client, err := platform.New(srv.URL, "")
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	return client
}

func TestAdPerformanceReport_Aggregates(t *testing.T) {
	client := metricsServer(t, []map[string]any{
		{"date": "2026-08-27", "impressions": 1000, "clicks": 20, "spend": 10.0, "conversions": 2, "revenue": 40.0},
		{"date": "2026-08-28", "impressions": 3000, "clicks": 60, "spend": 30.0, "conversions": 6, "revenue": 120.0},
	})

	tool := NewAdPerformanceReport(client)
	result, err := tool.Execute(context.Background(), map[string]any{"account_id": "acct-1"}, Context{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	summary, ok := result["summary"].(map[string]any)
	if !ok {
		t.Fatalf("missing summary in %v", result)
	}
	if summary["impressions"] != int64(4000) || summary["clicks"] != int64(80) {
		t.Fatalf("unexpected totals %v", summary)
	}
	if summary["ctr"] != 0.02 {
		t.Fatalf("ctr = %v, want 0.02", summary["ctr"])
	}
	if summary["cpc"] != 0.5 {
		t.Fatalf("cpc = %v, want 0.5", summary["cpc"])
	}
	if summary["cpa"] != 5.0 {
		t.Fatalf("cpa = %v, want 5", summary["cpa"])
	}
	if summary["roas"] != 4.0 {
		t.Fatalf("roas = %v, want 4", summary["roas"])
	}
}

func TestAdPerformanceReport_EmptyWindow(t *testing.T) {
	client := metricsServer(t, []map[string]any{})

	tool := NewAdPerformanceReport(client)
	result, err := tool.Execute(context.Background(), map[string]any{"account_id": "acct-1"}, Context{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result["success"] != true {
		t.Fatalf("empty windows are not an error: %v", result)
	}
	if _, hasSummary := result["summary"]; hasSummary {
		t.Fatal("empty window must not produce a summary")
	}
}

func TestAdPerformanceReport_PlatformErrorBecomesDomainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": "RATE_LIMITED", "message": "quota exhausted"},
		})
	}))
	defer srv.Close()
	client, err := platform.New(srv.URL, "")
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	tool := NewAdPerformanceReport(client)
	_, err = tool.Execute(context.Background(), map[string]any{"account_id": "acct-1"}, Context{})
	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("err = %v, want ExecutionError", err)
	}
	if execErr.Code != "RATE_LIMITED" || execErr.Message != "quota exhausted" {
		t.Fatalf("unexpected error %+v", execErr)
	}
}

func TestAnomalyDetector_FlagsSpike(t *testing.T) {
	rows := []map[string]any{}
	for i := 1; i <= 6; i++ {
		rows = append(rows, map[string]any{
			"date": fmt.Sprintf("2026-08-2%d", i), "impressions": 1000, "clicks": 20,
			"spend": 10.0, "conversions": 2, "revenue": 40.0,
		})
	}
	// One day with a dramatic spend spike.
	rows = append(rows, map[string]any{
		"date": "2026-08-29", "impressions": 1000, "clicks": 20,
		"spend": 200.0, "conversions": 2, "revenue": 40.0,
	})
	client := metricsServer(t, rows)

	tool := NewPerformanceAnomalyDetector(client)
	result, err := tool.Execute(context.Background(), map[string]any{"account_id": "acct-1"}, Context{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	anomalies, ok := result["anomalies"].([]map[string]any)
	if !ok || len(anomalies) == 0 {
		t.Fatalf("expected at least one anomaly, got %v", result)
	}
	found := false
	for _, a := range anomalies {
		if a["metric"] == "spend" && a["date"] == "2026-08-29" {
			found = true
		}
	}
	if !found {
		t.Fatalf("spend spike not flagged: %v", anomalies)
	}
}

func TestAnomalyDetector_TooFewRows(t *testing.T) {
	client := metricsServer(t, []map[string]any{
		{"date": "2026-08-28", "impressions": 1000, "clicks": 20, "spend": 10.0},
		{"date": "2026-08-29", "impressions": 1000, "clicks": 20, "spend": 10.0},
	})

	tool := NewPerformanceAnomalyDetector(client)
	result, err := tool.Execute(context.Background(), map[string]any{"account_id": "acct-1"}, Context{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result["success"] != true {
		t.Fatalf("short windows are not an error: %v", result)
	}
	if _, hasAnomalies := result["anomalies"]; hasAnomalies {
		t.Fatal("short window must not run detection")
	}
}

func TestZScore(t *testing.T) {
	series := []float64{10, 10, 10, 10, 50}
	if z := zscore(series, 4); z < 1.9 {
		t.Fatalf("spike zscore = %v, expected clearly positive", z)
	}
	if z := zscore(series, 0); z > 0 {
		t.Fatalf("baseline zscore = %v, expected non-positive", z)
	}
	flat := []float64{5, 5, 5}
	if z := zscore(flat, 1); z != 0 {
		t.Fatalf("flat series zscore = %v, want 0", z)
	}
}

func TestRatioAndRounding(t *testing.T) {
	if got := ratio(1, 3); math.Abs(got-0.3333) > 1e-9 {
		t.Fatalf("ratio = %v, want 0.3333", got)
	}
	if got := ratio(1, 0); got != 0 {
		t.Fatalf("division by zero must yield 0, got %v", got)
	}
	if got := round2(1.234); got != 1.23 {
		t.Fatalf("round2 = %v", got)
	}
}
