package main

import (
	"fmt"

	"orchestrator/internal/autobuild"
	"orchestrator/internal/decision"
	"orchestrator/internal/events"
	"orchestrator/internal/orchconfig"
	"orchestrator/internal/planner"
	"orchestrator/internal/runexec"
)

// app bundles the core components one CLI invocation needs, wired once in
// main and handed to whichever subcommand runs. Subcommands never construct
// these themselves, so there is exactly one Executor/Gate/Bus per process.
type app struct {
	Config     orchconfig.Config
	Bus        *events.Bus
	Gate       *decision.Gate
	Executor   *runexec.Executor
	Planner    *planner.Planner
	Controller *autobuild.Controller

	jsonOutput bool
}

func newApp(configPath string, jsonOutput bool) (*app, error) {
	cfg, err := orchconfig.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if _, err := cfg.EnsureRunsRoot(); err != nil {
		return nil, err
	}

	promptPaths := cfg.SystemPromptPaths
	if len(promptPaths) == 0 {
		promptPaths = planner.DefaultSystemPromptPaths()
	}

	client := planner.NewLazyEnvClient(cfg.PlannerEndpoint)

	bus := events.NewBus()
	gate := decision.NewGate()

	exec := &runexec.Executor{
		Bus:          bus,
		Gate:         gate,
		RunsRoot:     cfg.RunsRoot,
		Tool:         runexec.ExecutorTool{Binary: cfg.ExecutorBinary},
		RendererHint: cfg.RendererHint,
	}

	pl := &planner.Planner{
		Client:            client,
		SystemPromptPaths: promptPaths,
		RunsRoot:          cfg.RunsRoot,
	}

	ctrl := &autobuild.Controller{
		Bus:      bus,
		Planner:  pl,
		Executor: exec,
	}

	return &app{
		Config:     cfg,
		Bus:        bus,
		Gate:       gate,
		Executor:   exec,
		Planner:    pl,
		Controller: ctrl,
		jsonOutput: jsonOutput,
	}, nil
}
