package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adpilot-ai/adpilot/platform"
)

func campaignServer(t *testing.T) (*platform.Client, *[]map[string]any) {
	t.Helper()
	patches := &[]map[string]any{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"campaigns": []map[string]any{
					{"id": "c-1", "name": "Spring Sale", "status": "active", "daily_budget": 100.0},
				},
			})
		case r.Method == http.MethodPatch:
			var patch map[string]any
			_ = json.NewDecoder(r.Body).Decode(&patch)
			*patches = append(*patches, patch)
			resp := map[string]any{"id": "c-1", "status": "active", "daily_budget": 100.0}
			for k, v := range patch {
				resp[k] = v
			}
			_ = json.NewEncoder(w).Encode(resp)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	client, err := platform.New(srv.URL, "")
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	return client, patches
}

func TestCampaignManager_List(t *testing.T) {
	client, _ := campaignServer(t)
	tool := NewCampaignManager(client)

	result, err := tool.Execute(context.Background(), map[string]any{
		"action": "list", "account_id": "acct-1",
	}, Context{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	campaigns, ok := result["campaigns"].([]map[string]any)
	if !ok || len(campaigns) != 1 {
		t.Fatalf("unexpected result %v", result)
	}
	if campaigns[0]["id"] != "c-1" {
		t.Fatalf("unexpected campaign %v", campaigns[0])
	}
}

func TestCampaignManager_Pause(t *testing.T) {
	client, patches := campaignServer(t)
	tool := NewCampaignManager(client)

	result, err := tool.Execute(context.Background(), map[string]any{
		"action": "pause", "account_id": "acct-1", "campaign_id": "c-1",
	}, Context{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if result["success"] != true {
		t.Fatalf("unexpected result %v", result)
	}
	if len(*patches) != 1 || (*patches)[0]["status"] != "paused" {
		t.Fatalf("unexpected patches %v", *patches)
	}
}

func TestCampaignManager_SmallBudgetAppliesDirectly(t *testing.T) {
	client, patches := campaignServer(t)
	tool := NewCampaignManager(client)

	result, err := tool.Execute(context.Background(), map[string]any{
		"action": "set_budget", "account_id": "acct-1", "campaign_id": "c-1", "budget": 250.0,
	}, Context{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if _, asked := result["user_input_request"]; asked {
		t.Fatal("small budget changes must not ask for confirmation")
	}
	if len(*patches) != 1 || (*patches)[0]["daily_budget"] != 250.0 {
		t.Fatalf("unexpected patches %v", *patches)
	}
}

func TestCampaignManager_LargeBudgetNeedsConfirmation(t *testing.T) {
	client, patches := campaignServer(t)
	tool := NewCampaignManager(client)

	result, err := tool.Execute(context.Background(), map[string]any{
		"action": "set_budget", "account_id": "acct-1", "campaign_id": "c-1", "budget": 5000.0,
	}, Context{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	request, ok := result["user_input_request"].(map[string]any)
	if !ok {
		t.Fatalf("expected a user_input_request, got %v", result)
	}
	if request["type"] != "confirmation" || request["budget"] != 5000.0 {
		t.Fatalf("unexpected request %v", request)
	}
	if len(*patches) != 0 {
		t.Fatal("unconfirmed budget change must not reach the platform")
	}

	// The confirmed retry applies.
	result, err = tool.Execute(context.Background(), map[string]any{
		"action": "set_budget", "account_id": "acct-1", "campaign_id": "c-1",
		"budget": 5000.0, "confirmed": true,
	}, Context{})
	if err != nil {
		t.Fatalf("confirmed execute failed: %v", err)
	}
	if _, asked := result["user_input_request"]; asked {
		t.Fatal("confirmed change must not ask again")
	}
	if len(*patches) != 1 || (*patches)[0]["daily_budget"] != 5000.0 {
		t.Fatalf("unexpected patches %v", *patches)
	}
}

func TestCampaignManager_Validation(t *testing.T) {
	client, _ := campaignServer(t)
	tool := NewCampaignManager(client)

	cases := []map[string]any{
		{"action": "pause", "account_id": "acct-1"},                                         // missing campaign_id
		{"action": "set_budget", "account_id": "acct-1", "campaign_id": "c-1"},              // missing budget
		{"action": "set_budget", "account_id": "acct-1", "campaign_id": "c-1", "budget": -5.0}, // negative budget
		{"action": "archive", "account_id": "acct-1"},                                       // unknown action
	}
	for i, params := range cases {
		_, err := tool.Execute(context.Background(), params, Context{})
		execErr, ok := err.(*ExecutionError)
		if !ok {
			t.Fatalf("case %d: err = %v, want ExecutionError", i, err)
		}
		if execErr.Code != "INVALID_PARAMETERS" {
			t.Fatalf("case %d: code = %q", i, execErr.Code)
		}
	}
}
