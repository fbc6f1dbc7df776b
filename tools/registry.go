package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a fresh tool instance. Capability modules register a
// factory at init time; the orchestrator resolves instances per turn.
type Factory func() Tool

// Bundle groups tools that ship together, e.g. the full advertising
// capability set.
type Bundle struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tools       []string `json:"tools"`
}

type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

var (
	regMu         sync.RWMutex
	toolFactories = map[string]Factory{}
	toolDescs     = map[string]string{}
	bundles       = map[string]Bundle{}
)

func RegisterTool(name, description string, factory Factory) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if factory == nil {
		return fmt.Errorf("tool factory is required")
	}
	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := toolFactories[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	toolFactories[name] = factory
	toolDescs[name] = strings.TrimSpace(description)
	return nil
}

func MustRegisterTool(name, description string, factory Factory) {
	if err := RegisterTool(name, description, factory); err != nil {
		panic(err)
	}
}

func RegisterBundle(name, description string, toolNames []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("bundle name is required")
	}
	cleaned := make([]string, 0, len(toolNames))
	for _, t := range toolNames {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		cleaned = append(cleaned, t)
	}
	if len(cleaned) == 0 {
		return fmt.Errorf("bundle %q has no tools", name)
	}

	regMu.Lock()
	defer regMu.Unlock()
	if _, exists := bundles[name]; exists {
		return fmt.Errorf("bundle %q already registered", name)
	}
	bundles[name] = Bundle{Name: name, Description: strings.TrimSpace(description), Tools: cleaned}
	return nil
}

func MustRegisterBundle(name, description string, toolNames []string) {
	if err := RegisterBundle(name, description, toolNames); err != nil {
		panic(err)
	}
}

func ToolNames() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(toolFactories))
	for n := range toolFactories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func Catalog() []ToolInfo {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]ToolInfo, 0, len(toolFactories))
	for name := range toolFactories {
		out = append(out, ToolInfo{Name: name, Description: toolDescs[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resolve instantiates the named tools, expanding bundle names inline.
// Unknown names are an error: a turn must not silently run with a partial
// tool set.
func Resolve(names []string) ([]Tool, error) {
	regMu.RLock()
	defer regMu.RUnlock()

	expanded := make([]string, 0, len(names))
	seen := map[string]bool{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if bundle, ok := bundles[name]; ok {
			for _, t := range bundle.Tools {
				if !seen[t] {
					seen[t] = true
					expanded = append(expanded, t)
				}
			}
			continue
		}
		if !seen[name] {
			seen[name] = true
			expanded = append(expanded, name)
		}
	}

	out := make([]Tool, 0, len(expanded))
	for _, name := range expanded {
		factory, ok := toolFactories[name]
		if !ok {
			return nil, fmt.Errorf("tool %q not registered", name)
		}
		tool := factory()
		if tool == nil {
			return nil, fmt.Errorf("tool %q factory returned nil", name)
		}
		out = append(out, tool)
	}
	return out, nil
}

// All instantiates every registered tool, sorted by name.
func All() []Tool {
	tools, _ := Resolve(ToolNames())
	return tools
}
