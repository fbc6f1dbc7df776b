package tools

import (
	"context"
	"testing"

	"github.com/adpilot-ai/adpilot/types"
)

func stubTool(name string) Tool {
	return NewFuncTool(name, "stub", nil,
		func(ctx context.Context, params map[string]any, tc Context) (map[string]any, error) {
			return map[string]any{"success": true}, nil
		})
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	MustRegisterTool("reg_test_alpha", "alpha stub", func() Tool { return stubTool("reg_test_alpha") })
	MustRegisterTool("reg_test_beta", "beta stub", func() Tool { return stubTool("reg_test_beta") })
	MustRegisterBundle("reg_test_bundle", "both stubs", []string{"reg_test_alpha", "reg_test_beta"})

	resolved, err := Resolve([]string{"reg_test_bundle"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("expected 2 tools from bundle, got %d", len(resolved))
	}

	// Bundle plus an overlapping explicit name must not duplicate.
	resolved, err = Resolve([]string{"reg_test_bundle", "reg_test_alpha"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(resolved) != 2 {
		t.Fatalf("expected deduplicated set, got %d tools", len(resolved))
	}
}

func TestRegistry_RejectsDuplicatesAndUnknown(t *testing.T) {
	MustRegisterTool("reg_test_dup", "stub", func() Tool { return stubTool("reg_test_dup") })
	if err := RegisterTool("reg_test_dup", "stub again", func() Tool { return stubTool("reg_test_dup") }); err == nil {
		t.Fatal("duplicate registration must fail")
	}
	if _, err := Resolve([]string{"reg_test_never_registered"}); err == nil {
		t.Fatal("unknown tool names must fail resolution, not silently drop")
	}
}

func TestRegistry_CatalogSorted(t *testing.T) {
	MustRegisterTool("reg_test_zz", "last", func() Tool { return stubTool("reg_test_zz") })
	MustRegisterTool("reg_test_aa", "first", func() Tool { return stubTool("reg_test_aa") })

	catalog := Catalog()
	for i := 1; i < len(catalog); i++ {
		if catalog[i-1].Name > catalog[i].Name {
			t.Fatalf("catalog not sorted: %q before %q", catalog[i-1].Name, catalog[i].Name)
		}
	}
}

func TestFuncTool_Definition(t *testing.T) {
	tool := NewFuncTool("defined", "has params", []types.Parameter{
		{Name: "first", Type: "string", Required: true},
		{Name: "second", Type: "number"},
	}, nil)

	def := tool.Definition()
	if def.Name != "defined" || len(def.Parameters) != 2 {
		t.Fatalf("unexpected definition %+v", def)
	}
	if def.FirstParameter() != "first" {
		t.Fatalf("first parameter = %q", def.FirstParameter())
	}

	schema := def.Schema()
	if schema["type"] != "object" {
		t.Fatalf("schema type = %v", schema["type"])
	}
	required, _ := schema["required"].([]string)
	if len(required) != 1 || required[0] != "first" {
		t.Fatalf("schema required = %v", schema["required"])
	}
}
