package tools

import (
	"context"
	"fmt"

	"github.com/adpilot-ai/adpilot/platform"
	"github.com/adpilot-ai/adpilot/types"
)

// Budget changes at or above this amount require a user confirmation
// before they are applied.
const budgetConfirmationThreshold = 1000.0

// NewCampaignManager returns the manage_campaign tool. The set_budget
// action asks for confirmation when the new budget is large, unless the
// caller passes confirmed=true.
func NewCampaignManager(client *platform.Client) Tool {
	params := []types.Parameter{
		{
			Name:        "action",
			Type:        "string",
			Description: "One of: list, pause, resume, set_budget.",
			Enum:        []any{"list", "pause", "resume", "set_budget"},
			Required:    true,
		},
		{
			Name:        "account_id",
			Type:        "string",
			Description: "Advertising account identifier.",
			Required:    true,
		},
		{
			Name:        "campaign_id",
			Type:        "string",
			Description: "Campaign identifier. Required for every action except list.",
		},
		{
			Name:        "budget",
			Type:        "number",
			Description: "New daily budget for set_budget.",
		},
		{
			Name:        "confirmed",
			Type:        "boolean",
			Description: "Set true to apply a large budget change without asking again.",
		},
	}

	return NewFuncTool(
		"manage_campaign",
		"List, pause, resume, or change the budget of advertising campaigns.",
		params,
		func(ctx context.Context, args map[string]any, tc Context) (map[string]any, error) {
			action := stringParam(args, "action")
			accountID := stringParam(args, "account_id")
			campaignID := stringParam(args, "campaign_id")

			switch action {
			case "list":
				return listCampaigns(ctx, client, accountID)
			case "pause", "resume":
				return setCampaignStatus(ctx, client, campaignID, action)
			case "set_budget":
				return setCampaignBudget(ctx, client, campaignID, args)
			default:
				return nil, &ExecutionError{
					Code:    "INVALID_PARAMETERS",
					Message: fmt.Sprintf("unknown action %q", action),
				}
			}
		},
	)
}

func listCampaigns(ctx context.Context, client *platform.Client, accountID string) (map[string]any, error) {
	campaigns, err := client.ListCampaigns(ctx, accountID)
	if err != nil {
		return nil, asExecutionError(err, "CAMPAIGN_LIST_FAILED")
	}
	rows := make([]map[string]any, 0, len(campaigns))
	for _, c := range campaigns {
		rows = append(rows, map[string]any{
			"id":           c.ID,
			"name":         c.Name,
			"status":       c.Status,
			"daily_budget": c.DailyBudget,
		})
	}
	return map[string]any{
		"success":   true,
		"message":   fmt.Sprintf("Found %d campaigns.", len(rows)),
		"campaigns": rows,
	}, nil
}

func setCampaignStatus(ctx context.Context, client *platform.Client, campaignID, action string) (map[string]any, error) {
	if campaignID == "" {
		return nil, &ExecutionError{Code: "INVALID_PARAMETERS", Message: "campaign_id is required"}
	}
	status := "paused"
	if action == "resume" {
		status = "active"
	}
	c, err := client.UpdateCampaign(ctx, campaignID, platform.CampaignPatch{Status: status})
	if err != nil {
		return nil, asExecutionError(err, "CAMPAIGN_UPDATE_FAILED")
	}
	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Campaign %s is now %s.", c.ID, c.Status),
	}, nil
}

func setCampaignBudget(ctx context.Context, client *platform.Client, campaignID string, args map[string]any) (map[string]any, error) {
	if campaignID == "" {
		return nil, &ExecutionError{Code: "INVALID_PARAMETERS", Message: "campaign_id is required"}
	}
	budget, _ := floatParam(args, "budget")
	if budget <= 0 {
		return nil, &ExecutionError{Code: "INVALID_PARAMETERS", Message: "budget must be positive"}
	}

	confirmed, _ := args["confirmed"].(bool)
	if budget >= budgetConfirmationThreshold && !confirmed {
		return map[string]any{
			"success": true,
			"message": fmt.Sprintf("Budget change to %.2f needs confirmation before it is applied.", budget),
			"user_input_request": map[string]any{
				"type":        "confirmation",
				"prompt":      fmt.Sprintf("Set the daily budget of campaign %s to %.2f?", campaignID, budget),
				"campaign_id": campaignID,
				"budget":      budget,
			},
		}, nil
	}

	c, err := client.UpdateCampaign(ctx, campaignID, platform.CampaignPatch{DailyBudget: &budget})
	if err != nil {
		return nil, asExecutionError(err, "CAMPAIGN_UPDATE_FAILED")
	}
	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Campaign %s daily budget set to %.2f.", c.ID, c.DailyBudget),
	}, nil
}
