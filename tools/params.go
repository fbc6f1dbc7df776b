package tools

import "math"

// Helpers for reading normalized parameter maps. Model-produced JSON
// numbers decode as float64; these smooth over that.

func stringParam(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return v
}

func floatParam(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func intParam(params map[string]any, key string, fallback int) int {
	v, ok := floatParam(params, key)
	if !ok || math.IsNaN(v) {
		return fallback
	}
	return int(v)
}
