// Package runtimeconfig loads the JSON runtime configuration file the
// CLI and embedding applications use to wire an orchestrator.
package runtimeconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
}

type PlatformConfig struct {
	BaseURL string `json:"baseUrl"`
	APIKey  string `json:"apiKey,omitempty"`
}

type Config struct {
	SystemPrompt      string         `json:"systemPrompt"`
	Provider          string         `json:"provider"`
	Model             string         `json:"model"`
	Tools             []string       `json:"tools"`
	MaxSteps          int            `json:"maxSteps"`
	SessionTTLSeconds int            `json:"sessionTtlSeconds"`
	HistoryWindow     int            `json:"historyWindow"`
	MemoryPath        string         `json:"memoryPath"`
	Redis             *RedisConfig   `json:"redis,omitempty"`
	Platform          PlatformConfig `json:"platform"`
}

func Load(path string) (Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Config{}, fmt.Errorf("config path is required")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to resolve config path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %q: %w", absPath, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config file %q as JSON: %w", absPath, err)
	}

	cfg.SystemPrompt = strings.TrimSpace(cfg.SystemPrompt)
	cfg.Provider = strings.TrimSpace(cfg.Provider)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.MemoryPath = strings.TrimSpace(cfg.MemoryPath)
	cfg.Platform.BaseURL = strings.TrimSpace(cfg.Platform.BaseURL)

	cleanTools := make([]string, 0, len(cfg.Tools))
	for _, t := range cfg.Tools {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		cleanTools = append(cleanTools, t)
	}
	cfg.Tools = cleanTools

	if cfg.MaxSteps < 0 {
		return Config{}, fmt.Errorf("maxSteps must not be negative")
	}
	if cfg.SessionTTLSeconds < 0 {
		return Config{}, fmt.Errorf("sessionTtlSeconds must not be negative")
	}
	return cfg, nil
}
