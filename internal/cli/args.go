package cli

import (
	"log"
	"strings"

	"github.com/adpilot-ai/adpilot/state"
)

type cliOptions struct {
	configPath   string
	provider     string
	model        string
	systemPrompt string
	sessionID    string
	userID       string
	tools        []string
}

func parseArgs(args []string) (cliOptions, []string) {
	opts := cliOptions{}
	positional := make([]string, 0, len(args))
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "--config="):
			opts.configPath = strings.TrimSpace(strings.TrimPrefix(arg, "--config="))
		case strings.HasPrefix(arg, "--provider="):
			opts.provider = strings.TrimSpace(strings.TrimPrefix(arg, "--provider="))
		case strings.HasPrefix(arg, "--model="):
			opts.model = strings.TrimSpace(strings.TrimPrefix(arg, "--model="))
		case strings.HasPrefix(arg, "--system-prompt="):
			opts.systemPrompt = strings.TrimSpace(strings.TrimPrefix(arg, "--system-prompt="))
		case strings.HasPrefix(arg, "--session="):
			opts.sessionID = strings.TrimSpace(strings.TrimPrefix(arg, "--session="))
		case strings.HasPrefix(arg, "--user="):
			opts.userID = strings.TrimSpace(strings.TrimPrefix(arg, "--user="))
		case strings.HasPrefix(arg, "--tools="):
			opts.tools = splitCSV(strings.TrimPrefix(arg, "--tools="))
		default:
			positional = append(positional, arg)
		}
	}
	return opts, positional
}

func normalizeInput(args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) == "--" {
		args = args[1:]
	}
	return strings.TrimSpace(strings.Join(args, " "))
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func closeStore(store state.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		log.Printf("session store close failed: %v", err)
	}
}
