package runtimeconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "adpilot.json")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"systemPrompt": "  You manage ad campaigns.  ",
		"provider": "anthropic",
		"model": " claude-3-5-sonnet-latest ",
		"tools": ["manage_campaign", "  ", "ad_performance_report"],
		"maxSteps": 12,
		"sessionTtlSeconds": 600,
		"historyWindow": 10,
		"memoryPath": "adpilot.db",
		"redis": {"addr": "localhost:6379", "prefix": "adpilot"},
		"platform": {"baseUrl": "https://ads.example.com ", "apiKey": "k"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.SystemPrompt != "You manage ad campaigns." {
		t.Errorf("systemPrompt not trimmed: %q", cfg.SystemPrompt)
	}
	if cfg.Model != "claude-3-5-sonnet-latest" {
		t.Errorf("model not trimmed: %q", cfg.Model)
	}
	if len(cfg.Tools) != 2 || cfg.Tools[0] != "manage_campaign" || cfg.Tools[1] != "ad_performance_report" {
		t.Errorf("blank tool entries not dropped: %v", cfg.Tools)
	}
	if cfg.MaxSteps != 12 || cfg.SessionTTLSeconds != 600 || cfg.HistoryWindow != 10 {
		t.Errorf("numeric fields wrong: %+v", cfg)
	}
	if cfg.Redis == nil || cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("redis config missing: %+v", cfg.Redis)
	}
	if cfg.Platform.BaseURL != "https://ads.example.com" {
		t.Errorf("platform baseUrl not trimmed: %q", cfg.Platform.BaseURL)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	if _, err := Load("   "); err == nil {
		t.Error("empty path must be rejected")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file must be rejected")
	}
	if _, err := Load(writeConfig(t, `{not json`)); err == nil {
		t.Error("malformed JSON must be rejected")
	}

	_, err := Load(writeConfig(t, `{"maxSteps": -1}`))
	if err == nil || !strings.Contains(err.Error(), "maxSteps") {
		t.Errorf("negative maxSteps must be rejected, got %v", err)
	}
	_, err = Load(writeConfig(t, `{"sessionTtlSeconds": -5}`))
	if err == nil || !strings.Contains(err.Error(), "sessionTtlSeconds") {
		t.Errorf("negative sessionTtlSeconds must be rejected, got %v", err)
	}
}

func TestLoadOmittedFieldsDefaultToZero(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"provider": "openai"}`))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Redis != nil {
		t.Errorf("redis should be nil when omitted, got %+v", cfg.Redis)
	}
	if cfg.MaxSteps != 0 || len(cfg.Tools) != 0 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
