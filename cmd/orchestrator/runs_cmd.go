package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"orchestrator/internal/orchconfig"
	"orchestrator/internal/runstore"
)

var runsListLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect past runs recorded under the runs root",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, most recent first",
	RunE:  runRunsList,
}

func runRunsList(cmd *cobra.Command, args []string) error {
	cfg, err := orchconfig.Load(configPath)
	if err != nil {
		return err
	}
	idx, err := openRunsIndex(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	rows, err := idx.List(cmd.Context(), runsListLimit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("no runs recorded yet")
		return nil
	}

	for _, r := range rows {
		status := "ok"
		switch {
		case r.Cancelled:
			status = "cancelled"
		case r.DecisionPending:
			status = "decision_pending"
		case r.Timeout:
			status = "timeout"
		case r.ExitCode != 0:
			status = "failed"
		}
		fmt.Printf("%-28s %-8s %-20s %2d steps  %s\n",
			r.RunID, status, r.PlanName, r.StepsCount, humanize.Time(r.StartTime))
	}
	return nil
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the full record for one run, including humanized duration and log size",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	cfg, err := orchconfig.Load(configPath)
	if err != nil {
		return err
	}
	runID := args[0]

	record, err := runstore.Load(cfg.RunsRoot, runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}

	fmt.Printf("run:         %s\n", record.RunID)
	fmt.Printf("workspace:   %s\n", record.WorkspacePath)
	fmt.Printf("plan:        %q (%d steps)\n", record.Plan.Name, record.Plan.StepsCount)
	fmt.Printf("exit code:   %d\n", record.ExitCode)
	fmt.Printf("cancelled:   %v\n", record.Cancelled)
	fmt.Printf("decision pending: %v\n", record.DecisionPending)

	if !record.EndTime.IsZero() {
		fmt.Printf("duration:    %s\n", humanize.RelTime(record.StartTime, record.EndTime, "", ""))
	} else {
		fmt.Printf("duration:    still running (started %s)\n", humanize.Time(record.StartTime))
	}

	logPath := filepath.Join(cfg.RunsRoot, runID, "output.log")
	if info, err := os.Stat(logPath); err == nil {
		fmt.Printf("output log:  %s (%s)\n", logPath, humanize.Bytes(uint64(info.Size())))
	}

	fmt.Printf("steps:\n")
	for _, s := range record.Steps {
		fmt.Printf("  %2d  %-10s exit=%-4d", s.StepIndex, s.Type, s.ExitCode)
		if s.Evaluation != nil {
			fmt.Printf("  has_changes=%v no_op=%v", s.Evaluation.HasChanges, s.Evaluation.NoOp)
		}
		fmt.Println()
	}
	return nil
}

func openRunsIndex(cfg orchconfig.Config) (*runstore.Index, error) {
	if _, err := cfg.EnsureRunsRoot(); err != nil {
		return nil, err
	}
	idx, err := runstore.OpenIndex(filepath.Join(cfg.RunsRoot, "runs.db"))
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	if err := idx.Init(ctx); err != nil {
		idx.Close()
		return nil, err
	}
	if err := idx.Rebuild(ctx, cfg.RunsRoot); err != nil {
		idx.Close()
		return nil, err
	}
	return idx, nil
}

func init() {
	runsListCmd.Flags().IntVar(&runsListLimit, "limit", 20, "Maximum number of runs to list")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
}
