package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/adpilot-ai/adpilot/agent"
	"github.com/adpilot-ai/adpilot/automation"
	"github.com/adpilot-ai/adpilot/internal/config"
	"github.com/adpilot-ai/adpilot/memory/sqlite"
	"github.com/adpilot-ai/adpilot/observe"
	otelsink "github.com/adpilot-ai/adpilot/observe/otel"
	"github.com/adpilot-ai/adpilot/platform"
	providerfactory "github.com/adpilot-ai/adpilot/providers/factory"
	"github.com/adpilot-ai/adpilot/runtimeconfig"
	"github.com/adpilot-ai/adpilot/state"
	statefactory "github.com/adpilot-ai/adpilot/state/factory"
	redisstore "github.com/adpilot-ai/adpilot/state/redis"
	"github.com/adpilot-ai/adpilot/tools"
)

const defaultMemoryPath = "adpilot.db"

// deps holds everything a CLI command needs to run turns.
type deps struct {
	orch     *agent.Orchestrator
	cfg      runtimeconfig.Config
	provider string
	model    string
	tools    []tools.Tool
	cleanup  func()
}

// buildDeps wires the orchestrator from the optional JSON config file,
// environment variables, and command line flags. Flags win over the
// config file.
func buildDeps(opts cliOptions) (*deps, error) {
	var cfg runtimeconfig.Config
	if opts.configPath != "" {
		loaded, err := runtimeconfig.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	client, err := buildPlatformClient(cfg)
	if err != nil {
		return nil, err
	}

	sched := automation.NewScheduler(client)
	if err := tools.RegisterAdvertisingTools(client, sched); err != nil {
		return nil, err
	}
	sched.Start()

	sessions, err := buildSessionStore(cfg)
	if err != nil {
		sched.Stop()
		return nil, err
	}

	memPath := cfg.MemoryPath
	if memPath == "" {
		memPath = strings.TrimSpace(os.Getenv("ADPILOT_MEMORY_PATH"))
	}
	if memPath == "" {
		memPath = defaultMemoryPath
	}
	mem, err := sqlite.New(memPath)
	if err != nil {
		sched.Stop()
		closeStore(sessions)
		return nil, err
	}

	observer, closeObserver := buildObserver()
	agentOpts := []agent.Option{agent.WithObserver(observer)}
	systemPrompt := opts.systemPrompt
	if systemPrompt == "" {
		systemPrompt = cfg.SystemPrompt
	}
	if systemPrompt != "" {
		agentOpts = append(agentOpts, agent.WithSystemPrompt(systemPrompt))
	}
	if cfg.MaxSteps > 0 {
		agentOpts = append(agentOpts, agent.WithMaxSteps(cfg.MaxSteps))
	}
	if cfg.SessionTTLSeconds > 0 {
		agentOpts = append(agentOpts, agent.WithSessionTTL(time.Duration(cfg.SessionTTLSeconds)*time.Second))
	}
	if cfg.HistoryWindow > 0 {
		agentOpts = append(agentOpts, agent.WithHistoryWindow(cfg.HistoryWindow))
	}

	orch, err := agent.New(sessions, mem, providerfactory.Resolver(), agentOpts...)
	if err != nil {
		sched.Stop()
		closeStore(sessions)
		_ = mem.Close()
		closeObserver()
		return nil, err
	}

	toolNames := opts.tools
	if len(toolNames) == 0 {
		toolNames = cfg.Tools
	}
	var selected []tools.Tool
	if len(toolNames) > 0 {
		selected, err = tools.Resolve(toolNames)
		if err != nil {
			sched.Stop()
			closeStore(sessions)
			_ = mem.Close()
			closeObserver()
			return nil, err
		}
	}

	provider := opts.provider
	if provider == "" {
		provider = cfg.Provider
	}
	model := opts.model
	if model == "" {
		model = cfg.Model
	}

	return &deps{
		orch:     orch,
		cfg:      cfg,
		provider: provider,
		model:    model,
		tools:    selected,
		cleanup: func() {
			sched.Stop()
			closeStore(sessions)
			_ = mem.Close()
			closeObserver()
		},
	}, nil
}

func buildPlatformClient(cfg runtimeconfig.Config) (*platform.Client, error) {
	baseURL := cfg.Platform.BaseURL
	if baseURL == "" {
		baseURL = strings.TrimSpace(os.Getenv("ADPILOT_PLATFORM_URL"))
	}
	if baseURL == "" {
		return nil, fmt.Errorf("ads platform URL is required: set platform.baseUrl in the config file or ADPILOT_PLATFORM_URL")
	}
	apiKey := cfg.Platform.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ADPILOT_PLATFORM_API_KEY")
	}
	return platform.New(baseURL, apiKey)
}

func buildSessionStore(cfg runtimeconfig.Config) (state.Store, error) {
	if cfg.Redis == nil {
		return statefactory.FromEnv()
	}
	opts := []redisstore.Option{}
	if cfg.Redis.Password != "" {
		opts = append(opts, redisstore.WithPassword(cfg.Redis.Password))
	}
	if cfg.Redis.DB > 0 {
		opts = append(opts, redisstore.WithDB(cfg.Redis.DB))
	}
	if cfg.Redis.Prefix != "" {
		opts = append(opts, redisstore.WithPrefix(cfg.Redis.Prefix))
	}
	if cfg.SessionTTLSeconds > 0 {
		opts = append(opts, redisstore.WithTTL(time.Duration(cfg.SessionTTLSeconds)*time.Second))
	}
	return redisstore.New(cfg.Redis.Addr, opts...)
}

// buildObserver returns the turn observer and a closer that flushes it.
// Span emission runs behind an async sink so tracing never blocks the
// streaming hot path.
func buildObserver() (observe.Sink, func()) {
	if !config.ParseBoolString(os.Getenv("ADPILOT_TRACE"), false) {
		return observe.NoopSink{}, func() {}
	}
	async := observe.NewAsyncSink(otelsink.NewSink(otel.GetTracerProvider()), 256)
	return async, async.Close
}
