package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"orchestrator/internal/decision"
	"orchestrator/internal/orchconfig"
	"orchestrator/internal/runstore"
)

var decideCmd = &cobra.Command{
	Use:   "decide <run-id> <approved|rejected>",
	Short: "Resolve a pending dependency-change approval, live or already finalized",
	Args:  cobra.ExactArgs(2),
	RunE:  runDecide,
}

func runDecide(cmd *cobra.Command, args []string) error {
	runID, arg := args[0], args[1]
	if arg != "approved" && arg != "rejected" {
		return fmt.Errorf("result must be %q or %q, got %q", "approved", "rejected", arg)
	}

	cfg, err := orchconfig.Load(configPath)
	if err != nil {
		return err
	}

	reply, dialErr := dialControl(cfg.RunsRoot, fmt.Sprintf("decide %s %s", runID, arg))
	if dialErr == nil {
		fmt.Println(reply)
		return nil
	}

	// No orchestrator process is holding this runs root's control socket —
	// the normal state for a run that finalized decision_pending under
	// `autobuild`, since that CLI invocation has already exited. Merge the
	// decision straight into the run's persisted record instead of failing;
	// this is the same durable path runexec.Executor.SubmitDecision uses for
	// a finalized run when a process IS still alive to receive the command.
	var result decision.Result
	switch arg {
	case "approved":
		result = decision.Approved
	case "rejected":
		result = decision.Rejected
	}
	if _, mergeErr := runstore.MergeDecision(cfg.RunsRoot, runID, result); mergeErr != nil {
		return fmt.Errorf("no running orchestrator process reachable (%v); direct merge into run.json also failed: %w", dialErr, mergeErr)
	}
	fmt.Println("true")
	return nil
}
