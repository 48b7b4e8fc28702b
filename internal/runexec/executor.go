// Package runexec implements the Run executor: the state machine that
// admits one Plan at a time and drives it step by step through the command
// policy, child supervisor, evidence collector, decision gate, and
// evaluator.
package runexec

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"orchestrator/internal/decision"
	"orchestrator/internal/events"
	"orchestrator/internal/plan"
	"orchestrator/internal/proc"
	"orchestrator/internal/runstore"
)

// Executor runs one Plan at a time. Admission is guarded by a compare-and-
// swap flag rather than a blocking lock, so a second caller is rejected
// immediately instead of queued behind the active run.
type Executor struct {
	Bus          *events.Bus
	Gate         *decision.Gate
	RunsRoot     string
	Tool         ExecutorTool
	RendererHint string

	active    atomic.Bool
	mu        sync.Mutex
	cancelFn  context.CancelFunc
	currentID string
}

// RunPlan admits p for execution against opts.WorkspacePath and blocks until
// the run finishes, including any synchronous decision wait. It returns a
// preflight error without creating a run record if admission fails.
func (e *Executor) RunPlan(ctx context.Context, p *plan.Plan, opts Options) (*runstore.RunRecord, error) {
	if !e.active.CompareAndSwap(false, true) {
		return nil, ErrAnotherRunActive
	}
	defer e.active.Store(false)

	if opts.WorkspacePath == "" {
		return nil, ErrWorkspaceUnset
	}
	if p == nil || p.StepCount() == 0 {
		return nil, ErrEmptyPlan
	}
	if !isRepository(opts.WorkspacePath) {
		return nil, ErrNotARepository
	}

	runID := runstore.NewRunID(time.Now())
	slog.Info("runexec: admitting plan", "run_id", runID, "plan", p.Name, "steps", p.StepCount(), "workspace", opts.WorkspacePath)
	store, err := runstore.Open(e.RunsRoot, runID)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	defer store.Close()

	record := runstore.NewRunRecord(runID, opts.WorkspacePath, opts.Requirement, p, time.Now())

	runCtx, cancelFn := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancelFn = cancelFn
	e.currentID = runID
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.cancelFn = nil
		e.currentID = ""
		e.mu.Unlock()
		cancelFn()
	}()

	rs := &runState{
		exec:   e,
		ctx:    runCtx,
		runID:  runID,
		plan:   p,
		opts:   opts,
		record: record,
		store:  store,
		sup:    &proc.Supervisor{},
	}
	rs.run()

	if err := runstore.Save(e.RunsRoot, runID, record); err != nil {
		rs.logSystem(fmt.Sprintf("failed to persist run record: %v", err))
		slog.Error("runexec: failed to persist run record", "run_id", runID, "error", err)
	}
	slog.Info("runexec: run finished", "run_id", runID, "exit_code", record.ExitCode, "cancelled", record.Cancelled, "decision_pending", record.DecisionPending)
	e.Bus.EmitRunDone(runID, record.ExitCode)
	return record, nil
}

// Cancel requests termination of the currently active run if runID matches
// it. Returns false if no such run is active. Cancellation terminates the
// in-flight child via the supervisor's own signal escalation and implicitly
// rejects any pending decision for the run.
func (e *Executor) Cancel(runID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.currentID != runID || e.cancelFn == nil {
		return false
	}
	e.Gate.Cancel(runID)
	e.cancelFn()
	return true
}

// CurrentRunID returns the run_id of the currently active run, or "" if
// none is active. Used by callers that need to correlate a just-admitted
// run with its generated id (e.g. to watch for a pending decision).
func (e *Executor) CurrentRunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentID
}

// SubmitDecision delivers a human decision for runID's pending
// dependency-change gate. If runID is the currently active run, this
// unblocks that run's in-flight WaitSync (DecisionSync mode) and the
// decision is merged into the record by checkDecisionGate as the run
// continues. Otherwise runID names a run that already finalized as
// decision_pending (DecisionAsync/autobuild mode, or a run left over from a
// previous process); there is no run loop left to merge into, so the
// decision is merged directly into the persisted run record via
// runstore.MergeDecision — the same fallback `orchestrator decide` uses
// when it cannot reach a live control socket at all (cmd/orchestrator's
// decide_cmd.go).
func (e *Executor) SubmitDecision(runID string, result decision.Result) bool {
	if e.CurrentRunID() == runID {
		return e.Gate.Submit(runID, result)
	}
	e.Gate.Take(runID)
	if _, err := runstore.MergeDecision(e.RunsRoot, runID, result); err != nil {
		slog.Error("runexec: failed to merge decision into finalized run", "run_id", runID, "error", err)
		return false
	}
	return true
}

func isRepository(workspacePath string) bool {
	info, err := os.Stat(filepath.Join(workspacePath, ".git"))
	return err == nil && info.IsDir()
}
