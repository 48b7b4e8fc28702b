package runexec

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"orchestrator/internal/decision"
	"orchestrator/internal/evaluate"
	"orchestrator/internal/evidence"
	"orchestrator/internal/events"
	"orchestrator/internal/plan"
	"orchestrator/internal/policy"
	"orchestrator/internal/proc"
	"orchestrator/internal/runstore"
)

// runState holds one RunPlan invocation's mutable state across its step
// loop: the precheck-hit flag the evaluator reads, the accumulating record,
// and the single child supervisor steps share (at most one child runs at a
// time).
type runState struct {
	exec   *Executor
	ctx    context.Context
	runID  string
	plan   *plan.Plan
	opts   Options
	record *runstore.RunRecord
	store  *runstore.Store
	sup    *proc.Supervisor

	lastPrecheckHit bool
}

func (rs *runState) run() {
	total := rs.plan.StepCount()
	for i, step := range rs.plan.Steps {
		stepIndex := i + 1

		if rs.ctx.Err() != nil {
			rs.finishCancelled()
			return
		}

		rs.exec.Bus.EmitRunStep(rs.runID, stepIndex, total)

		switch step.Type {
		case plan.StepNote:
			rs.dispatchNote(stepIndex, step)
		case plan.StepCmd:
			if rs.dispatchCmd(stepIndex, step) {
				return
			}
		case plan.StepExecutor:
			if rs.dispatchExecutor(stepIndex, step) {
				return
			}
		}
	}

	rs.finishNormal()
}

func (rs *runState) dispatchNote(stepIndex int, step plan.Step) {
	started := time.Now()
	rs.logSystem("Note: " + step.Message)
	rs.lastPrecheckHit = false
	rs.record.Steps = append(rs.record.Steps, runstore.StepRecord{
		StepIndex: stepIndex,
		Type:      plan.StepNote,
		StartedAt: started,
		EndedAt:   time.Now(),
	})
	rs.persist()
}

// dispatchCmd returns true if the run should end after this step.
func (rs *runState) dispatchCmd(stepIndex int, step plan.Step) bool {
	started := time.Now()

	if !policy.IsCommandAllowed(step.Command) || policy.HasForbiddenShellOperators(step.Command) {
		return rs.blockedStep(stepIndex, plan.StepCmd, started)
	}
	tokens, err := policy.Tokenize(step.Command)
	if err != nil {
		return rs.blockedStep(stepIndex, plan.StepCmd, started)
	}

	result := rs.sup.Run(rs.ctx, proc.Spec{
		Argv: tokens,
		Cwd:  rs.opts.WorkspacePath,
	}, rs.sink)

	isProbe := policy.IsContentSearchCommand(tokens)
	rs.lastPrecheckHit = isProbe && strings.TrimSpace(result.Stdout) != ""

	effectiveExit := policy.EffectiveExitCode(tokens, result.ExitCode)
	ev := evidence.Collect(rs.ctx, rs.opts.WorkspacePath, rs.logSystem)
	rs.mergeEvidence(ev)

	rs.record.Steps = append(rs.record.Steps, runstore.StepRecord{
		StepIndex: stepIndex,
		Type:      plan.StepCmd,
		StartedAt: started,
		EndedAt:   time.Now(),
		ExitCode:  effectiveExit,
		Cancelled: result.Cancelled,
		Timeout:   result.TimedOut,
		Evidence:  ev.Map(),
	})
	rs.persist()

	if result.Cancelled {
		rs.finishCancelled()
		return true
	}
	if result.TimedOut {
		rs.finishTimeout(effectiveExit)
		return true
	}
	if effectiveExit != 0 {
		rs.finishExit(effectiveExit)
		return true
	}

	return rs.checkDecisionGate(ev)
}

// dispatchExecutor returns true if the run should end after this step.
func (rs *runState) dispatchExecutor(stepIndex int, step plan.Step) bool {
	started := time.Now()

	if !policy.IsExecutorToolAllowed(step.Tool) {
		return rs.blockedStep(stepIndex, plan.StepExecutor, started)
	}

	baselineEv := evidence.Collect(rs.ctx, rs.opts.WorkspacePath, rs.logSystem)
	baseline := evidence.ParseNameOnly(baselineEv.DiffNameOnly)

	result := rs.runTwoPhase(step.Instructions)
	afterEv := evidence.Collect(rs.ctx, rs.opts.WorkspacePath, rs.logSystem)
	afterFiles := evidence.ParseNameOnly(afterEv.DiffNameOnly)
	eval := evaluate.Evaluate(baseline, afterFiles, result.ExitCode, rs.lastPrecheckHit)

	if evaluate.ShouldRetry(eval) {
		rs.logSystem("No detectable change from the previous attempt; retrying with a minimal-change instruction.")
		retryResult := rs.runTwoPhase(evaluate.RetryInstructions(rs.exec.RendererHint))
		retryEv := evidence.Collect(rs.ctx, rs.opts.WorkspacePath, rs.logSystem)
		retryFiles := evidence.ParseNameOnly(retryEv.DiffNameOnly)
		retryEval := evaluate.Evaluate(baseline, retryFiles, retryResult.ExitCode, rs.lastPrecheckHit)
		eval.Retried = true
		eval.RetryResult = &retryEval
		result = retryResult
		afterEv = retryEv
	} else if eval.NoOp {
		rs.logSystem("Precheck already confirmed no change was needed for this step; skipping retry.")
	}

	rs.mergeEvidence(afterEv)

	rs.record.Steps = append(rs.record.Steps, runstore.StepRecord{
		StepIndex:          stepIndex,
		Type:               plan.StepExecutor,
		StartedAt:          started,
		EndedAt:            time.Now(),
		ExitCode:           result.ExitCode,
		Cancelled:          result.Cancelled,
		Timeout:            result.TimedOut,
		Tool:               step.Tool,
		InstructionsLength: len(step.Instructions),
		Evidence:           afterEv.Map(),
		Evaluation:         &eval,
	})
	rs.lastPrecheckHit = false
	rs.persist()

	if result.Cancelled {
		rs.finishCancelled()
		return true
	}
	if result.TimedOut {
		rs.finishTimeout(result.ExitCode)
		return true
	}
	if result.ExitCode != 0 {
		rs.finishExit(result.ExitCode)
		return true
	}

	return rs.checkDecisionGate(afterEv)
}

// blockedStep records a policy-blocked step, still collects evidence and
// offers the decision gate a chance to fire, and always ends the run.
func (rs *runState) blockedStep(stepIndex int, stepType plan.StepType, started time.Time) bool {
	ev := evidence.Collect(rs.ctx, rs.opts.WorkspacePath, rs.logSystem)
	rs.mergeEvidence(ev)
	rs.record.Steps = append(rs.record.Steps, runstore.StepRecord{
		StepIndex:       stepIndex,
		Type:            stepType,
		StartedAt:       started,
		EndedAt:         time.Now(),
		ExitCode:        -1,
		BlockedByPolicy: true,
		Evidence:        ev.Map(),
	})
	rs.persist()

	rs.checkDecisionGate(ev)

	rs.record.BlockedByPolicy = true
	rs.record.ExitCode = -1
	rs.record.EndTime = time.Now()
	rs.persist()
	return true
}

// checkDecisionGate inspects ev for dependency-manager file changes and, if
// any matched, opens the gate and waits or defers per the run's decision
// mode. It returns true if the run should end now.
func (rs *runState) checkDecisionGate(ev evidence.Evidence) bool {
	changed := evidence.ParseNameOnly(ev.DiffNameOnly)
	matched := decision.MatchedFiles(changed)
	if len(matched) == 0 {
		return false
	}

	rs.exec.Gate.Open(rs.runID, matched)
	rs.exec.Bus.EmitRunDecision(rs.runID, matched)
	rs.logSystem("Awaiting approval for dependency changes: " + strings.Join(matched, ", "))

	if rs.opts.DecisionMode == DecisionAsync {
		rs.record.DecisionPending = true
		rs.record.PendingDecisionFiles = matched
		rs.record.EndTime = time.Now()
		rs.persist()
		return true
	}

	rs.persist()
	result := rs.exec.Gate.WaitSync(rs.ctx, rs.runID)
	rs.record.Decision = &decision.Decision{
		Type:      "dependency_change",
		Result:    result,
		Timestamp: time.Now(),
		Files:     matched,
	}

	// WaitSync resolves as Rejected both for a genuine human rejection and
	// for an explicit cancel (Cancel implicitly rejects the pending
	// decision before cancelling the run's context). Only the former is a
	// CancelledByDecision outcome; the latter must go through
	// finishCancelled so record.Cancelled and run:cancelled fire the way
	// every other cancellation path does.
	if rs.ctx.Err() != nil {
		rs.finishCancelled()
		rs.persist()
		return true
	}
	if result == decision.Rejected {
		rs.record.CancelledByDecision = true
		rs.record.ExitCode = -1
		rs.record.EndTime = time.Now()
		rs.persist()
		return true
	}
	rs.persist()
	return false
}

// runTwoPhase invokes the executor tool's propose phase, and its apply
// phase only if propose exits zero. Both phases run detached so the
// supervisor can kill the whole process group.
func (rs *runState) runTwoPhase(instructions string) proc.Result {
	propose := rs.sup.Run(rs.ctx, proc.Spec{
		Argv:         rs.exec.Tool.ProposeArgv(rs.opts.WorkspacePath, instructions),
		Cwd:          rs.opts.WorkspacePath,
		Detached:     true,
		OutputPrefix: "[executor] ",
		StderrPrefix: "[executor][stderr] ",
	}, rs.sink)

	if propose.ExitCode != 0 || propose.Cancelled || propose.TimedOut {
		return propose
	}

	return rs.sup.Run(rs.ctx, proc.Spec{
		Argv:         rs.exec.Tool.ApplyArgv(rs.opts.WorkspacePath),
		Cwd:          rs.opts.WorkspacePath,
		Detached:     true,
		OutputPrefix: "[executor] ",
		StderrPrefix: "[executor][stderr] ",
	}, rs.sink)
}

func (rs *runState) mergeEvidence(ev evidence.Evidence) {
	rs.record.Evidence = ev.Map()
}

// persist rewrites run.json now, mid-run, so an observer reading the run
// directory (the CLI's `runs show`, or a crash-recovery scan) sees a
// prefix-consistent view: every step record appended so far, never a
// half-written step. Errors are logged, not fatal — RunPlan's final Save
// after the step loop exits is the durability backstop.
func (rs *runState) persist() {
	if err := runstore.Save(rs.exec.RunsRoot, rs.runID, rs.record); err != nil {
		slog.Error("runexec: mid-run persist failed", "run_id", rs.runID, "error", err)
	}
}

func (rs *runState) sink(source proc.Source, text string) {
	var evSource events.Source
	switch source {
	case proc.SourceStdout:
		evSource = events.SourceStdout
	case proc.SourceStderr:
		evSource = events.SourceStderr
	default:
		evSource = events.SourceSystem
	}
	rs.exec.Bus.EmitRunOutput(rs.runID, evSource, text)
	_ = rs.store.AppendOutput(text)
}

func (rs *runState) logSystem(text string) {
	rs.exec.Bus.EmitRunOutput(rs.runID, events.SourceSystem, text)
	_ = rs.store.AppendOutput(text)
}

func (rs *runState) finishCancelled() {
	rs.exec.Bus.EmitRunCancelled(rs.runID)
	rs.record.Cancelled = true
	rs.record.ExitCode = -1
	rs.record.EndTime = time.Now()
}

func (rs *runState) finishTimeout(exitCode int) {
	rs.record.Timeout = true
	rs.record.ExitCode = exitCode
	rs.record.EndTime = time.Now()
}

func (rs *runState) finishExit(exitCode int) {
	rs.record.ExitCode = exitCode
	rs.record.EndTime = time.Now()
}

func (rs *runState) finishNormal() {
	rs.record.ExitCode = 0
	rs.record.EndTime = time.Now()
}
