package tools

import (
	"context"
	"fmt"

	"github.com/adpilot-ai/adpilot/automation"
	"github.com/adpilot-ai/adpilot/types"
)

// NewBudgetGuard returns the schedule_budget_guard tool. It manages
// recurring spend checks that pause a campaign once it exceeds a cap.
func NewBudgetGuard(sched *automation.Scheduler) Tool {
	params := []types.Parameter{
		{
			Name:        "action",
			Type:        "string",
			Description: "One of: create, remove, list.",
			Enum:        []any{"create", "remove", "list"},
			Required:    true,
		},
		{
			Name:        "name",
			Type:        "string",
			Description: "Guard name. Required for create and remove.",
		},
		{
			Name:        "account_id",
			Type:        "string",
			Description: "Advertising account identifier. Required for create.",
		},
		{
			Name:        "campaign_id",
			Type:        "string",
			Description: "Campaign to watch. Required for create.",
		},
		{
			Name:        "max_spend",
			Type:        "number",
			Description: "Daily spend cap that triggers a pause. Required for create.",
		},
		{
			Name:        "cron_expr",
			Type:        "string",
			Description: "Cron schedule for the check. Defaults to every hour.",
		},
	}

	return NewFuncTool(
		"schedule_budget_guard",
		"Create, remove, or list recurring budget guards that pause overspending campaigns.",
		params,
		func(ctx context.Context, args map[string]any, tc Context) (map[string]any, error) {
			switch action := stringParam(args, "action"); action {
			case "create":
				cronExpr := stringParam(args, "cron_expr")
				if cronExpr == "" {
					cronExpr = "@hourly"
				}
				maxSpend, _ := floatParam(args, "max_spend")
				guard := automation.Guard{
					Name:       stringParam(args, "name"),
					AccountID:  stringParam(args, "account_id"),
					CampaignID: stringParam(args, "campaign_id"),
					CronExpr:   cronExpr,
					MaxSpend:   maxSpend,
				}
				if err := sched.Add(guard); err != nil {
					return nil, &ExecutionError{Code: "GUARD_CREATE_FAILED", Message: err.Error()}
				}
				return map[string]any{
					"success": true,
					"message": fmt.Sprintf("Budget guard %q watches campaign %s, cap %.2f, schedule %s.", guard.Name, guard.CampaignID, guard.MaxSpend, guard.CronExpr),
				}, nil

			case "remove":
				name := stringParam(args, "name")
				if err := sched.Remove(name); err != nil {
					return nil, &ExecutionError{Code: "GUARD_REMOVE_FAILED", Message: err.Error()}
				}
				return map[string]any{
					"success": true,
					"message": fmt.Sprintf("Budget guard %q removed.", name),
				}, nil

			case "list":
				guards := sched.Guards()
				rows := make([]map[string]any, 0, len(guards))
				for _, g := range guards {
					rows = append(rows, map[string]any{
						"name":        g.Name,
						"campaign_id": g.CampaignID,
						"max_spend":   g.MaxSpend,
						"cron_expr":   g.CronExpr,
					})
				}
				return map[string]any{
					"success": true,
					"message": fmt.Sprintf("%d budget guards registered.", len(rows)),
					"guards":  rows,
				}, nil

			default:
				return nil, &ExecutionError{
					Code:    "INVALID_PARAMETERS",
					Message: fmt.Sprintf("unknown action %q", action),
				}
			}
		},
	)
}
