package tools

import (
	"github.com/adpilot-ai/adpilot/automation"
	"github.com/adpilot-ai/adpilot/platform"
)

// AdvertisingBundle is the bundle name covering every built-in
// advertising tool.
const AdvertisingBundle = "advertising"

// RegisterAdvertisingTools wires the built-in advertising tools to a
// platform client and scheduler and registers them together with the
// "advertising" bundle. Call once at startup.
func RegisterAdvertisingTools(client *platform.Client, sched *automation.Scheduler) error {
	specs := []struct {
		name, desc string
		factory    Factory
	}{
		{
			"generate_ad_creative",
			"Generate ad creative variants for a product.",
			func() Tool { return NewAdCreativeGenerator(client) },
		},
		{
			"ad_performance_report",
			"Aggregate campaign performance metrics over a date range.",
			func() Tool { return NewAdPerformanceReport(client) },
		},
		{
			"detect_performance_anomalies",
			"Flag days with anomalous spend or click-through rate.",
			func() Tool { return NewPerformanceAnomalyDetector(client) },
		},
		{
			"manage_campaign",
			"List, pause, resume, or change the budget of campaigns.",
			func() Tool { return NewCampaignManager(client) },
		},
		{
			"schedule_budget_guard",
			"Manage recurring budget guards that pause overspending campaigns.",
			func() Tool { return NewBudgetGuard(sched) },
		},
		{
			"market_insights",
			"Fetch market trend data for a topic.",
			func() Tool { return NewMarketInsights(client) },
		},
	}

	names := make([]string, 0, len(specs))
	for _, s := range specs {
		if err := RegisterTool(s.name, s.desc, s.factory); err != nil {
			return err
		}
		names = append(names, s.name)
	}
	return RegisterBundle(AdvertisingBundle, "Built-in advertising automation tools.", names)
}
