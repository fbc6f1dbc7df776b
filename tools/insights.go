package tools

import (
	"context"
	"fmt"

	"github.com/adpilot-ai/adpilot/platform"
	"github.com/adpilot-ai/adpilot/types"
)

// NewMarketInsights returns the market_insights tool, which fetches
// keyword interest trends for a topic.
func NewMarketInsights(client *platform.Client) Tool {
	params := []types.Parameter{
		{
			Name:        "topic",
			Type:        "string",
			Description: "Topic or product category to look up.",
			Required:    true,
		},
		{
			Name:        "region",
			Type:        "string",
			Description: "Optional region code, e.g. US or DE.",
		},
	}

	return NewFuncTool(
		"market_insights",
		"Fetch market trend data for a topic to inform targeting and creative decisions.",
		params,
		func(ctx context.Context, args map[string]any, tc Context) (map[string]any, error) {
			topic := stringParam(args, "topic")
			region := stringParam(args, "region")

			trends, err := client.Trends(ctx, topic, region)
			if err != nil {
				return nil, asExecutionError(err, "INSIGHTS_FAILED")
			}

			rows := make([]map[string]any, 0, len(trends))
			var rising int
			for _, t := range trends {
				if t.Change > 0 {
					rising++
				}
				rows = append(rows, map[string]any{
					"keyword":  t.Keyword,
					"region":   t.Region,
					"interest": t.Interest,
					"change":   t.Change,
				})
			}

			return map[string]any{
				"success": true,
				"message": fmt.Sprintf("Found %d trends for %q, %d rising.", len(rows), topic, rising),
				"trends":  rows,
			}, nil
		},
	)
}
