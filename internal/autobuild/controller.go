// Package autobuild implements the closed-loop controller that wraps the
// Planner client and the Run executor in a bounded iteration loop: generate
// a plan, run it in asynchronous decision mode, inspect the evaluation, and
// decide whether to continue, stop, or fail.
package autobuild

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"orchestrator/internal/evaluate"
	"orchestrator/internal/events"
	"orchestrator/internal/planner"
	"orchestrator/internal/runexec"
	"orchestrator/internal/runstore"
)

// DefaultMaxIterations is used when Options.MaxIterations is zero.
const DefaultMaxIterations = 2

// Options configures one autobuild run.
type Options struct {
	WorkspacePath string
	Requirement   string
	MaxIterations int
}

// Controller drives the planner/executor loop. Like the Run executor, it
// admits at most one loop at a time; a second StartAutobuild call while one
// is active fails synchronously.
type Controller struct {
	Bus      *events.Bus
	Planner  *planner.Planner
	Executor *runexec.Executor

	active    atomic.Bool
	mu        sync.Mutex
	cancelled bool
}

// StartAutobuild runs the iteration loop to completion. It blocks the
// caller; callers that want startAutobuild's fire-and-forget request shape
// should invoke this in a goroutine and follow the event bus for progress.
func (c *Controller) StartAutobuild(ctx context.Context, opts Options) error {
	if !c.active.CompareAndSwap(false, true) {
		return ErrAnotherAutobuildActive
	}
	defer func() {
		c.active.Store(false)
		c.mu.Lock()
		c.cancelled = false
		c.mu.Unlock()
	}()

	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	var summaries []events.IterationSummary
	stopReason := ""
	iterationsRun := 0

	for k := 1; k <= maxIterations; k++ {
		iterationsRun = k

		if c.isCancelled() {
			stopReason = "cancelled"
			break
		}

		c.Bus.EmitAutobuildStatus(events.AutobuildStatusPayload{
			Iteration: k,
			Phase:     events.PhasePlanning,
			Message:   "Generating plan",
		})

		plan, err := c.Planner.GeneratePlan(ctx, opts.Requirement)
		if err != nil {
			c.Bus.EmitAutobuildStatus(events.AutobuildStatusPayload{
				Iteration: k,
				Phase:     events.PhaseDone,
				Message:   fmt.Sprintf("Planning failed: %v", err),
			})
			stopReason = "planning_failed"
			break
		}

		c.Bus.EmitAutobuildPlan(events.AutobuildPlanPayload{
			Iteration: k,
			Plan:      plan,
			PlanName:  plan.Name,
		})

		if c.isCancelled() {
			stopReason = "cancelled"
			break
		}

		c.Bus.EmitAutobuildStatus(events.AutobuildStatusPayload{
			Iteration: k,
			Phase:     events.PhaseRunning,
			Message:   "Running plan",
		})

		record, err := c.Executor.RunPlan(ctx, plan, runexec.Options{
			WorkspacePath: opts.WorkspacePath,
			Requirement:   opts.Requirement,
			DecisionMode:  runexec.DecisionAsync,
		})
		if err != nil {
			c.Bus.EmitAutobuildStatus(events.AutobuildStatusPayload{
				Iteration: k,
				Phase:     events.PhaseDone,
				Message:   fmt.Sprintf("Run failed to start: %v", err),
			})
			stopReason = "planning_failed"
			break
		}

		reason, done := classify(record, k, maxIterations)
		summaries = append(summaries, events.IterationSummary{
			Iteration:  k,
			StopReason: reason,
			RunID:      record.RunID,
			ExitCode:   record.ExitCode,
		})

		if done {
			stopReason = reason
			break
		}
	}

	slog.Info("autobuild: loop finished", "stop_reason", stopReason, "iterations_run", iterationsRun)
	c.Bus.EmitAutobuildDone(events.AutobuildDonePayload{
		StopReason:          stopReason,
		IterationsRun:       iterationsRun,
		PerIterationSummary: summaries,
	})
	return nil
}

// CancelAutobuild sets the cancel flag observed before each iteration's
// planning step and while admitting a run, and cancels the currently active
// run (if any) so the executor unwinds promptly.
func (c *Controller) CancelAutobuild() {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()

	if runID := c.Executor.CurrentRunID(); runID != "" {
		c.Executor.Cancel(runID)
	}
}

func (c *Controller) isCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// classify applies the post-run, first-match-wins stop taxonomy. done
// reports whether the loop should stop; when it's false the caller proceeds
// to iteration k+1.
func classify(record *runstore.RunRecord, k, maxIterations int) (reason string, done bool) {
	if record.DecisionPending {
		return "decision_pending", true
	}
	if record.Cancelled || record.CancelledByDecision {
		return "cancelled", true
	}

	eval := lastExecutorEvaluation(record)
	if eval != nil {
		if eval.NoOp {
			return "no_op", true
		}
		if eval.SuspiciousNoChange && eval.Retried && eval.RetryResult != nil && !eval.RetryResult.HasChanges {
			return "retry_no_change", true
		}
	}

	if record.ExitCode != 0 {
		if k < maxIterations {
			return "", false
		}
		return "failed", true
	}

	if k == maxIterations {
		return "max_iterations_reached", true
	}
	return "", false
}

// lastExecutorEvaluation returns the evaluation attached to the most recent
// executor step, or nil if the run had none.
func lastExecutorEvaluation(record *runstore.RunRecord) *evaluate.Evaluation {
	for i := len(record.Steps) - 1; i >= 0; i-- {
		if record.Steps[i].Evaluation != nil {
			return record.Steps[i].Evaluation
		}
	}
	return nil
}
