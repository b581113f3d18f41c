package main

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/rahul/mishri-pev/internal/agent"
	"github.com/rahul/mishri-pev/internal/governance"
	"github.com/rahul/mishri-pev/internal/observability"
	"github.com/rahul/mishri-pev/internal/pev"
	"github.com/rahul/mishri-pev/internal/store"
	"github.com/rahul/mishri-pev/internal/tools"
	"github.com/rahul/mishri-pev/pkg/config"
)

// runtime holds everything an engine needs apart from the confirmation
// channel, which differs between chat and terminal use.
type runtime struct {
	cfg      *config.Config
	history  *store.HistoryStore
	registry *tools.Registry
	notify   *tools.NotifyTool
	browser  *tools.BrowserTool
	policy   *governance.DefaultPolicyEngine
	planner  *agent.Planner
	logger   *observability.Logger
}

func newRuntime(cfg *config.Config, logOut io.Writer) (*runtime, error) {
	history, err := store.NewHistoryStore(cfg.Memory.Path)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		cfg:      cfg,
		history:  history,
		registry: tools.NewRegistry(),
		notify:   tools.NewNotifyTool(),
		browser:  tools.NewBrowserTool(cfg.Headless(), filepath.Join(cfg.App.Workspace, "screenshots")),
		logger:   observability.NewLoggerTo(logOut, "logs"),
	}

	searchTool, err := tools.NewSearchTool()
	if err != nil {
		log.Printf("Warning: Failed to initialize search tool: %v", err)
	} else {
		rt.registry.Register(searchTool)
	}
	rt.registry.Register(tools.NewFilesystemTool(cfg.App.Workspace))
	rt.registry.Register(tools.NewScraperTool())
	rt.registry.Register(tools.NewShellTool(cfg.App.Workspace))
	rt.registry.Register(rt.browser)
	rt.registry.Register(tools.NewCronTool(history))
	rt.registry.Register(tools.NewCalendarCreateTool(history))
	rt.registry.Register(tools.NewCalendarListTool(history))
	rt.registry.Register(rt.notify)

	if rt.policy, err = newPolicy(cfg.Governance); err != nil {
		history.Close()
		return nil, err
	}

	if llm, name, err := newModel(cfg); err != nil {
		log.Printf("Warning: planner disabled: %v", err)
	} else {
		rt.planner = agent.NewPlanner(llm, agent.NewPromptManager(cfg.App.Prompts), history, rt.logger)
		rt.planner.ModelName = name
	}

	return rt, nil
}

func newPolicy(gc config.GovernanceConfig) (*governance.DefaultPolicyEngine, error) {
	gov := governance.NewDefaultPolicyEngine()
	// Default safety rules: Block dangerous destructive commands
	for _, pattern := range append([]string{`rm\s+-rf`, `mkfs`, `shutdown`, `reboot`}, gc.DenyArguments...) {
		if err := gov.DenyArguments(pattern); err != nil {
			return nil, fmt.Errorf("invalid deny_arguments pattern %q: %w", pattern, err)
		}
	}
	gov.RequireConfirmation("shell")
	for _, name := range gc.ConfirmTools {
		gov.RequireConfirmation(name)
	}
	for _, name := range gc.DenyTools {
		gov.DenyTool(name)
	}
	return gov, nil
}

func newModel(cfg *config.Config) (llms.Model, string, error) {
	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		return nil, "", fmt.Errorf("no enabled provider found in config")
	}

	switch pName {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		return llm, pCfg.Model, err
	default:
		return nil, "", fmt.Errorf("provider %s not yet implemented", pName)
	}
}

func (rt *runtime) engine(confirmer pev.ConfirmationRequester) *pev.Engine {
	cfg := pev.Config{
		Executor:    governance.GuardExecutor(rt.policy, rt.registry),
		Permissions: rt.policy,
		Confirmer:   confirmer,
		Tools:       rt.registry.Describe(),
		MaxSteps:    rt.cfg.Engine.MaxSteps,
		MaxReplans:  rt.cfg.Engine.Replans(),
		Logger:      rt.logger,
	}
	if rt.planner != nil {
		cfg.Generator = rt.planner
	}
	return pev.NewEngine(cfg)
}

func (rt *runtime) confirmTimeout() time.Duration {
	return time.Duration(rt.cfg.Engine.ConfirmTimeoutSeconds) * time.Second
}

func (rt *runtime) Close() {
	rt.browser.Close()
	if err := rt.history.Close(); err != nil {
		log.Printf("Error closing history store: %v", err)
	}
}
