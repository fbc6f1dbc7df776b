package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/adpilot-ai/adpilot/agent"
	"github.com/adpilot-ai/adpilot/automation"
	"github.com/adpilot-ai/adpilot/platform"
	statefactory "github.com/adpilot-ai/adpilot/state/factory"
	redisstore "github.com/adpilot-ai/adpilot/state/redis"
	"github.com/adpilot-ai/adpilot/tools"
	"github.com/adpilot-ai/adpilot/types"
)

func runSingle(ctx context.Context, args []string) {
	opts, positional := parseArgs(args)
	input := normalizeInput(positional)
	if input == "" {
		log.Fatal("input cannot be empty")
	}

	d, err := buildDeps(opts)
	if err != nil {
		log.Fatalf("failed to build runtime: %v", err)
	}
	defer d.cleanup()

	runOneTurn(ctx, d, opts, input)
}

func runChat(ctx context.Context, args []string) {
	opts, _ := parseArgs(args)

	d, err := buildDeps(opts)
	if err != nil {
		log.Fatalf("failed to build runtime: %v", err)
	}
	defer d.cleanup()

	// One session for the whole chat.
	if opts.sessionID == "" {
		opts.sessionID = uuid.NewString()
	}
	fmt.Printf("adpilot chat, session %s. Type a request, or \"exit\" to quit.\n", opts.sessionID)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return
		}
		runOneTurn(ctx, d, opts, input)
	}
}

func runOneTurn(ctx context.Context, d *deps, opts cliOptions, input string) {
	req := agent.TurnRequest{
		SessionID: opts.sessionID,
		UserID:    opts.userID,
		Message:   input,
		Provider:  d.provider,
		Model:     d.model,
		Tools:     d.tools,
	}
	for ev := range d.orch.RunTurn(ctx, req) {
		printEvent(ev)
	}
}

func printEvent(ev types.Event) {
	switch ev.Kind {
	case types.EventText:
		fmt.Print(ev.Content)
	case types.EventThought, types.EventPlanning, types.EventEvaluation, types.EventReflection:
		fmt.Printf("\n[%s] %s\n", ev.Kind, ev.Content)
	case types.EventAction:
		fmt.Printf("\n[action] %s %s\n", ev.Tool, compactJSON(ev.Input))
	case types.EventObservation:
		status := "ok"
		if !ev.Success {
			status = "failed"
		}
		fmt.Printf("[observation] %s %s: %s\n", ev.Tool, status, ev.Message)
	case types.EventUserInputRequest:
		fmt.Printf("\n[input needed] %s\n", compactJSON(ev.Request))
	case types.EventError:
		fmt.Printf("\n[error] %s\n", ev.Content)
	case types.EventDone:
		fmt.Println("\n[done]")
	}
}

func compactJSON(v any) string {
	if v == nil {
		return "{}"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// listTools prints the tool catalog. Registration needs a platform
// client; when none is configured a placeholder endpoint is used, which
// is fine because listing never executes a tool.
func listTools() {
	if len(tools.ToolNames()) == 0 {
		baseURL := strings.TrimSpace(os.Getenv("ADPILOT_PLATFORM_URL"))
		if baseURL == "" {
			baseURL = "http://127.0.0.1:8080"
		}
		client, err := platform.New(baseURL, os.Getenv("ADPILOT_PLATFORM_API_KEY"))
		if err != nil {
			log.Fatal(err)
		}
		if err := tools.RegisterAdvertisingTools(client, automation.NewScheduler(client)); err != nil {
			log.Fatal(err)
		}
	}
	for _, info := range tools.Catalog() {
		fmt.Printf("%-30s %s\n", info.Name, info.Description)
	}
}

// listSessions prints the recent session IDs of a user. Requires the
// Redis backend; the in-memory store keeps no user index.
func listSessions(ctx context.Context, args []string) {
	if len(args) < 1 || strings.TrimSpace(args[0]) == "" {
		log.Fatal("usage: sessions <user-id>")
	}
	userID := strings.TrimSpace(args[0])

	store, err := statefactory.FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	defer closeStore(store)

	rs, ok := store.(*redisstore.Store)
	if !ok {
		log.Fatal("sessions requires the redis state backend (set ADPILOT_REDIS_ADDR)")
	}
	ids, err := rs.SessionsForUser(ctx, userID, 100)
	if err != nil {
		log.Fatalf("list sessions failed: %v", err)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
}
