package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/adpilot-ai/adpilot/platform"
	"github.com/adpilot-ai/adpilot/types"
)

// NewAdCreativeGenerator builds the generate_ad_creative tool. Rendering
// happens on the platform side; the tool surfaces the resulting media as
// attachments.
func NewAdCreativeGenerator(client *platform.Client) Tool {
	params := []types.Parameter{
		{Name: "product", Type: "string", Description: "Product or offer the creative advertises.", Required: true},
		{Name: "style", Type: "string", Description: "Visual or copy style, e.g. minimal, bold, playful."},
		{Name: "format", Type: "string", Description: "Creative format.", Enum: []any{"image", "video", "carousel"}},
		{Name: "variants", Type: "number", Description: "Number of variants to generate (1-6)."},
	}

	return NewFuncTool(
		"generate_ad_creative",
		"Generate ad creative variants (images, video, carousel) for a product or offer.",
		params,
		func(ctx context.Context, args map[string]any, tc Context) (map[string]any, error) {
			_ = tc
			variants := intParam(args, "variants", 1)
			if variants < 1 {
				variants = 1
			}
			if variants > 6 {
				variants = 6
			}

			creatives, err := client.RenderCreatives(ctx, platform.CreativeRequest{
				Product:  stringParam(args, "product"),
				Style:    stringParam(args, "style"),
				Format:   stringParam(args, "format"),
				Variants: variants,
			})
			if err != nil {
				return nil, asExecutionError(err, "CREATIVE_RENDER_FAILED")
			}

			attachments := make([]types.Attachment, 0, len(creatives))
			for _, cr := range creatives {
				attachments = append(attachments, types.Attachment{
					Type: cr.Format,
					URL:  cr.URL,
					Name: cr.Headline,
				})
			}
			return map[string]any{
				"success":     true,
				"message":     fmt.Sprintf("Generated %d creative(s)", len(creatives)),
				"attachments": attachments,
			}, nil
		},
	)
}

// asExecutionError maps platform failures onto domain tool errors so the
// adapter reports them with their platform code.
func asExecutionError(err error, fallbackCode string) error {
	var apiErr *platform.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.Code
		if code == "" {
			code = fallbackCode
		}
		return NewExecutionError(code, apiErr.Message)
	}
	return NewExecutionError(fallbackCode, err.Error())
}
