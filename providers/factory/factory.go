// Package factory builds model runtimes by provider name. Provider
// selection is a per-turn decision, so the factory returns a resolver
// suitable for handing to the orchestrator.
package factory

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/adpilot-ai/adpilot/llm"
	"github.com/adpilot-ai/adpilot/providers/anthropic"
	"github.com/adpilot-ai/adpilot/providers/openai"
)

const DefaultProvider = "anthropic"

// New constructs a runtime for the named provider using API keys from the
// environment.
func New(provider string) (llm.Runtime, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", DefaultProvider:
		return anthropic.New(os.Getenv("ANTHROPIC_API_KEY"))
	case "openai":
		return openai.New(os.Getenv("OPENAI_API_KEY"))
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

// Resolver caches constructed runtimes by provider name so repeated turns
// reuse one HTTP client per provider. Safe for concurrent turns.
func Resolver() func(provider string) (llm.Runtime, error) {
	var mu sync.Mutex
	cache := map[string]llm.Runtime{}
	return func(provider string) (llm.Runtime, error) {
		key := strings.ToLower(strings.TrimSpace(provider))
		if key == "" {
			key = DefaultProvider
		}
		mu.Lock()
		defer mu.Unlock()
		if rt, ok := cache[key]; ok {
			return rt, nil
		}
		rt, err := New(key)
		if err != nil {
			return nil, err
		}
		cache[key] = rt
		return rt, nil
	}
}
