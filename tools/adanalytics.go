package tools

import (
	"context"
	"fmt"
	"math"

	"github.com/adpilot-ai/adpilot/platform"
	"github.com/adpilot-ai/adpilot/types"
)

func reportParameters() []types.Parameter {
	return []types.Parameter{
		{Name: "account_id", Type: "string", Description: "Ad account to report on.", Required: true},
		{Name: "campaign_id", Type: "string", Description: "Restrict the report to one campaign."},
		{Name: "days", Type: "number", Description: "Lookback window in days."},
	}
}

// NewAdPerformanceReport builds the ad_performance_report tool:
// aggregated funnel metrics (CTR, CPC, CPA, ROAS) over a recent window.
func NewAdPerformanceReport(client *platform.Client) Tool {
	params := reportParameters()

	return NewFuncTool(
		"ad_performance_report",
		"Summarize ad performance (impressions, clicks, CTR, CPC, CPA, ROAS) for an account or campaign.",
		params,
		func(ctx context.Context, args map[string]any, tc Context) (map[string]any, error) {
			_ = tc
			rows, err := client.MetricsReport(ctx, platform.ReportQuery{
				AccountID:  stringParam(args, "account_id"),
				CampaignID: stringParam(args, "campaign_id"),
				Days:       intParam(args, "days", 7),
			})
			if err != nil {
				return nil, asExecutionError(err, "REPORT_FAILED")
			}
			if len(rows) == 0 {
				return map[string]any{
					"success": true,
					"message": "No metric rows in the requested window",
				}, nil
			}

			var impressions, clicks, conversions int64
			var spend, revenue float64
			for _, r := range rows {
				impressions += r.Impressions
				clicks += r.Clicks
				conversions += r.Conversions
				spend += r.Spend
				revenue += r.Revenue
			}

			summary := map[string]any{
				"impressions": impressions,
				"clicks":      clicks,
				"conversions": conversions,
				"spend":       round2(spend),
				"revenue":     round2(revenue),
				"ctr":         ratio(float64(clicks), float64(impressions)),
				"cpc":         ratio(spend, float64(clicks)),
				"cpa":         ratio(spend, float64(conversions)),
				"roas":        ratio(revenue, spend),
			}
			return map[string]any{
				"success": true,
				"message": fmt.Sprintf("Report over %d day(s): %d impressions, %d clicks, %.2f spend", len(rows), impressions, clicks, spend),
				"summary": summary,
			}, nil
		},
	)
}

// NewPerformanceAnomalyDetector builds detect_performance_anomalies:
// flags days whose spend or CTR deviates more than the threshold (in
// standard deviations) from the window mean.
func NewPerformanceAnomalyDetector(client *platform.Client) Tool {
	params := append(reportParameters(),
		types.Parameter{Name: "threshold", Type: "number", Description: "Z-score threshold for flagging a day (default 2)."},
	)

	return NewFuncTool(
		"detect_performance_anomalies",
		"Detect days with abnormal spend or CTR in a recent metrics window.",
		params,
		func(ctx context.Context, args map[string]any, tc Context) (map[string]any, error) {
			_ = tc
			rows, err := client.MetricsReport(ctx, platform.ReportQuery{
				AccountID:  stringParam(args, "account_id"),
				CampaignID: stringParam(args, "campaign_id"),
				Days:       intParam(args, "days", 14),
			})
			if err != nil {
				return nil, asExecutionError(err, "REPORT_FAILED")
			}
			if len(rows) < 3 {
				return map[string]any{
					"success": true,
					"message": "Not enough data for anomaly detection (need at least 3 days)",
				}, nil
			}

			threshold, ok := floatParam(args, "threshold")
			if !ok || threshold <= 0 {
				threshold = 2.0
			}

			spendSeries := make([]float64, len(rows))
			ctrSeries := make([]float64, len(rows))
			for i, r := range rows {
				spendSeries[i] = r.Spend
				ctrSeries[i] = ratio(float64(r.Clicks), float64(r.Impressions))
			}

			anomalies := []map[string]any{}
			for i, r := range rows {
				if z := zscore(spendSeries, i); math.Abs(z) >= threshold {
					anomalies = append(anomalies, map[string]any{
						"date": r.Date, "metric": "spend", "value": round2(r.Spend), "zscore": round2(z),
					})
				}
				if z := zscore(ctrSeries, i); math.Abs(z) >= threshold {
					anomalies = append(anomalies, map[string]any{
						"date": r.Date, "metric": "ctr", "value": ctrSeries[i], "zscore": round2(z),
					})
				}
			}

			return map[string]any{
				"success":   true,
				"message":   fmt.Sprintf("Found %d anomalous metric day(s) in %d-day window", len(anomalies), len(rows)),
				"anomalies": anomalies,
			}, nil
		},
	)
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return round4(num / den)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func zscore(series []float64, i int) float64 {
	var sum float64
	for _, v := range series {
		sum += v
	}
	mean := sum / float64(len(series))
	var variance float64
	for _, v := range series {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(series))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return (series[i] - mean) / std
}
