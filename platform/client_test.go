package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_ListCampaigns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/campaigns" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("account_id"); got != "acct-1" {
			t.Errorf("account_id = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Errorf("authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"campaigns": []map[string]any{
				{"id": "c-1", "name": "Spring Sale", "status": "active", "daily_budget": 120.5},
			},
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL, "key-1")
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	campaigns, err := c.ListCampaigns(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(campaigns) != 1 || campaigns[0].ID != "c-1" || campaigns[0].DailyBudget != 120.5 {
		t.Fatalf("unexpected campaigns %+v", campaigns)
	}
}

func TestClient_UpdateCampaignPatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s, want PATCH", r.Method)
		}
		if r.URL.Path != "/v1/campaigns/c-7" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var patch map[string]any
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			t.Errorf("failed to decode patch: %v", err)
		}
		if patch["status"] != "paused" {
			t.Errorf("patch = %v", patch)
		}
		if _, hasBudget := patch["daily_budget"]; hasBudget {
			t.Error("unset budget must be omitted from the patch")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "c-7", "status": "paused"})
	}))
	defer srv.Close()

	c, err := New(srv.URL, "")
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	got, err := c.UpdateCampaign(context.Background(), "c-7", CampaignPatch{Status: "paused"})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got.Status != "paused" {
		t.Fatalf("unexpected campaign %+v", got)
	}
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": "RATE_LIMITED", "message": "daily quota exhausted"},
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL, "")
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	_, err = c.GetCampaign(context.Background(), "c-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Code != "RATE_LIMITED" {
		t.Fatalf("unexpected APIError %+v", apiErr)
	}
	if apiErr.Message != "daily quota exhausted" {
		t.Fatalf("message = %q", apiErr.Message)
	}
}

func TestClient_ErrorWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "")
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	_, err = c.GetCampaign(context.Background(), "c-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Code != "HTTP_502" {
		t.Fatalf("code = %q, want HTTP_502", apiErr.Code)
	}
}

func TestClient_MetricsReportDefaultsDays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("days"); got != "7" {
			t.Errorf("days = %q, want default 7", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"rows": []map[string]any{
				{"date": "2026-08-29", "impressions": 1000, "clicks": 40, "spend": 25.0, "conversions": 4, "revenue": 90.0},
			},
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL, "")
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	rows, err := c.MetricsReport(context.Background(), ReportQuery{AccountID: "acct-1"})
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Clicks != 40 {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestClient_RequiresBaseURL(t *testing.T) {
	if _, err := New("  ", ""); err == nil {
		t.Fatal("empty base URL must be rejected")
	}
}
