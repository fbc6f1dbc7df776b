// Package factory builds a session store from environment configuration.
package factory

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adpilot-ai/adpilot/internal/config"
	"github.com/adpilot-ai/adpilot/state"
	"github.com/adpilot-ai/adpilot/state/mem"
	redisstore "github.com/adpilot-ai/adpilot/state/redis"
)

// FromEnv selects a store backend from ADPILOT_STATE_BACKEND
// ("redis" or "memory", default redis when an address is set, memory
// otherwise).
func FromEnv() (state.Store, error) {
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("ADPILOT_STATE_BACKEND")))
	addr := strings.TrimSpace(os.Getenv("ADPILOT_REDIS_ADDR"))
	if backend == "" {
		if addr != "" {
			backend = "redis"
		} else {
			backend = "memory"
		}
	}

	switch backend {
	case "memory":
		return mem.New(), nil

	case "redis":
		if addr == "" {
			addr = "127.0.0.1:6379"
		}
		opts := []redisstore.Option{}
		if password := os.Getenv("ADPILOT_REDIS_PASSWORD"); password != "" {
			opts = append(opts, redisstore.WithPassword(password))
		}
		if db := config.ParseIntEnv("ADPILOT_REDIS_DB", 0); db > 0 {
			opts = append(opts, redisstore.WithDB(db))
		}
		if ttl := config.ParseIntEnv("ADPILOT_SESSION_TTL_SECONDS", 0); ttl > 0 {
			opts = append(opts, redisstore.WithTTL(time.Duration(ttl)*time.Second))
		}
		if prefix := os.Getenv("ADPILOT_REDIS_PREFIX"); prefix != "" {
			opts = append(opts, redisstore.WithPrefix(prefix))
		}
		return redisstore.New(addr, opts...)

	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}
