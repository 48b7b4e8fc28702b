package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"orchestrator/internal/decision"
	"orchestrator/internal/events"
	"orchestrator/internal/plan"
	"orchestrator/internal/runexec"
)

var (
	runWorkspace   string
	runPlanFile    string
	runRequirement string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a plan against a workspace, suspending on dependency-change approval",
	Long: `run executes a plan step by step against --workspace. Supply either a
hand-edited plan with --plan, or a free-text --requirement to have the
planner generate one first.

If a step changes a dependency-manager file (package.json and friends), the
run suspends and prompts here for approval; a separate "orchestrator decide"
invocation against the same runs root can approve or reject it instead.`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	if runWorkspace == "" {
		return fmt.Errorf("--workspace is required")
	}
	if runPlanFile == "" && runRequirement == "" {
		return fmt.Errorf("one of --plan or --requirement is required")
	}

	a, err := newApp(configPath, jsonOutput)
	if err != nil {
		return err
	}

	var p *plan.Plan
	if runPlanFile != "" {
		data, err := os.ReadFile(runPlanFile)
		if err != nil {
			return err
		}
		p, err = plan.Parse(data)
		if err != nil {
			return err
		}
	} else {
		p, err = a.Planner.GeneratePlan(cmd.Context(), runRequirement)
		if err != nil {
			return fmt.Errorf("generate plan: %w", err)
		}
	}

	closeControl, err := serveControl(a)
	if err != nil {
		return err
	}
	defer closeControl()

	stopRender := attachRenderer(a.Bus, jsonOutput)
	defer stopRender()
	stopPrompt := promptOnDecision(a)
	defer stopPrompt()

	ctx, cancel := signalContext()
	defer cancel()

	record, err := a.Executor.RunPlan(ctx, p, runexec.Options{
		WorkspacePath: runWorkspace,
		Requirement:   runRequirement,
		DecisionMode:  runexec.DecisionSync,
	})
	if err != nil {
		return err
	}

	fmt.Printf("run %s finished: exit=%d cancelled=%v decision_pending=%v\n",
		record.RunID, record.ExitCode, record.Cancelled, record.DecisionPending)
	if record.ExitCode != 0 {
		os.Exit(1)
	}
	return nil
}

// promptOnDecision watches for run:decision events and, unless --json mode
// is active (where a human isn't necessarily reading stdout), asks for an
// approve/reject answer on stdin and submits it directly. Scripted callers
// can still reach the same run with "orchestrator decide" over the control
// socket; whichever answer arrives first wins, since Gate.Submit is a single
// buffered send.
func promptOnDecision(a *app) func() {
	if jsonOutput {
		return func() {}
	}
	return a.Bus.Subscribe(func(e events.Event) {
		if e.Name != events.RunDecision {
			return
		}
		p := e.Payload.(events.RunDecisionPayload)
		go func() {
			fmt.Printf("Approve dependency change in %v for run %s? [y/N] ", p.Files, p.RunID)
			reader := bufio.NewReader(os.Stdin)
			line, _ := reader.ReadString('\n')
			result := decision.Rejected
			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y") {
				result = decision.Approved
			}
			a.Executor.SubmitDecision(p.RunID, result)
		}()
	})
}

func init() {
	runCmd.Flags().StringVar(&runWorkspace, "workspace", "", "Path to the git workspace to run against")
	runCmd.Flags().StringVar(&runPlanFile, "plan", "", "Path to a hand-edited plan JSON file")
	runCmd.Flags().StringVar(&runRequirement, "requirement", "", "Free-text requirement; the planner generates a plan for it")
}
