package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"orchestrator/internal/autobuild"
)

var (
	autobuildWorkspace     string
	autobuildRequirement   string
	autobuildMaxIterations int
)

var autobuildCmd = &cobra.Command{
	Use:   "autobuild",
	Short: "Run the closed plan/run/evaluate loop until it stops itself or Ctrl-C cancels it",
	RunE:  runAutobuild,
}

func runAutobuild(cmd *cobra.Command, args []string) error {
	if autobuildWorkspace == "" {
		return fmt.Errorf("--workspace is required")
	}
	if autobuildRequirement == "" {
		return fmt.Errorf("--requirement is required")
	}

	a, err := newApp(configPath, jsonOutput)
	if err != nil {
		return err
	}

	closeControl, err := serveControl(a)
	if err != nil {
		return err
	}
	defer closeControl()

	stopRender := attachRenderer(a.Bus, jsonOutput)
	defer stopRender()

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		<-ctx.Done()
		a.Controller.CancelAutobuild()
	}()

	maxIterations := autobuildMaxIterations
	if maxIterations == 0 {
		maxIterations = a.Config.MaxIterations
	}

	if err := a.Controller.StartAutobuild(ctx, autobuild.Options{
		WorkspacePath: autobuildWorkspace,
		Requirement:   autobuildRequirement,
		MaxIterations: maxIterations,
	}); err != nil {
		return err
	}
	return nil
}

func init() {
	autobuildCmd.Flags().StringVar(&autobuildWorkspace, "workspace", "", "Path to the git workspace to run against")
	autobuildCmd.Flags().StringVar(&autobuildRequirement, "requirement", "", "Free-text requirement the planner re-plans against each iteration")
	autobuildCmd.Flags().IntVar(&autobuildMaxIterations, "max-iterations", 0, "Iteration ceiling; 0 uses the configured default")
}
