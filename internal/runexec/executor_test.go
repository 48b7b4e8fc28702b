package runexec

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"orchestrator/internal/decision"
	"orchestrator/internal/events"
	"orchestrator/internal/plan"
	"orchestrator/internal/runstore"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@t.com", "GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@t.com")
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init", "-q")
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-q", "-m", "init")
	return dir
}

func commitFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, args := range [][]string{{"add", name}, {"commit", "-q", "-m", "add " + name}} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@t.com", "GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@t.com")
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
}

// writeFakeTool writes a shell script standing in for the external
// code-mutation tool: its apply phase appends a line to package.json in the
// workspace it's pointed at, so evidence collection has something to find.
func writeFakeTool(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "faketool.sh")
	script := `#!/bin/sh
phase="$1"; shift
workspace=""
while [ $# -gt 0 ]; do
  case "$1" in
    -C) workspace="$2"; shift 2 ;;
    *) shift ;;
  esac
done
if [ "$phase" = "apply" ]; then
  echo "{\"bumped\":true}" >> "$workspace/package.json"
fi
exit 0
`
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newExecutor(t *testing.T) *Executor {
	t.Helper()
	return &Executor{
		Bus:          events.NewBus(),
		Gate:         decision.NewGate(),
		RunsRoot:     t.TempDir(),
		Tool:         ExecutorTool{Binary: "true"},
		RendererHint: "src/renderer/panel.tsx",
	}
}

func TestRunPlan_NoteAndCmdSteps(t *testing.T) {
	dir := initRepo(t)
	e := newExecutor(t)
	p := &plan.Plan{
		Name: "inspect",
		Steps: []plan.Step{
			{Type: plan.StepNote, Message: "start"},
			{Type: plan.StepCmd, Command: "git status"},
		},
	}
	record, err := e.RunPlan(context.Background(), p, Options{WorkspacePath: dir, Requirement: "inspect repo"})
	if err != nil {
		t.Fatalf("RunPlan: %v", err)
	}
	if record.ExitCode != 0 {
		t.Fatalf("expected exitCode 0, got %d", record.ExitCode)
	}
	if len(record.Steps) != 2 {
		t.Fatalf("expected 2 step records, got %d", len(record.Steps))
	}
}

func TestRunPlan_WorkspaceUnset(t *testing.T) {
	e := newExecutor(t)
	p := &plan.Plan{Name: "x", Steps: []plan.Step{{Type: plan.StepNote, Message: "hi"}}}
	if _, err := e.RunPlan(context.Background(), p, Options{}); err != ErrWorkspaceUnset {
		t.Fatalf("expected ErrWorkspaceUnset, got %v", err)
	}
}

func TestRunPlan_NotARepository(t *testing.T) {
	e := newExecutor(t)
	dir := t.TempDir()
	p := &plan.Plan{Name: "x", Steps: []plan.Step{{Type: plan.StepNote, Message: "hi"}}}
	if _, err := e.RunPlan(context.Background(), p, Options{WorkspacePath: dir}); err != ErrNotARepository {
		t.Fatalf("expected ErrNotARepository, got %v", err)
	}
}

func TestRunPlan_EmptyPlan(t *testing.T) {
	e := newExecutor(t)
	dir := initRepo(t)
	if _, err := e.RunPlan(context.Background(), &plan.Plan{Name: "x"}, Options{WorkspacePath: dir}); err != ErrEmptyPlan {
		t.Fatalf("expected ErrEmptyPlan, got %v", err)
	}
}

func TestRunPlan_AnotherRunActive(t *testing.T) {
	e := newExecutor(t)
	dir := initRepo(t)
	e.active.Store(true)
	p := &plan.Plan{Name: "x", Steps: []plan.Step{{Type: plan.StepNote, Message: "hi"}}}
	if _, err := e.RunPlan(context.Background(), p, Options{WorkspacePath: dir}); err != ErrAnotherRunActive {
		t.Fatalf("expected ErrAnotherRunActive, got %v", err)
	}
}

func TestRunPlan_BlockedCommand(t *testing.T) {
	dir := initRepo(t)
	e := newExecutor(t)
	p := &plan.Plan{
		Name: "bad",
		Steps: []plan.Step{
			{Type: plan.StepNote, Message: "start"},
			{Type: plan.StepCmd, Command: "rm -rf /"},
		},
	}
	record, err := e.RunPlan(context.Background(), p, Options{WorkspacePath: dir})
	if err != nil {
		t.Fatalf("RunPlan: %v", err)
	}
	if !record.BlockedByPolicy || record.ExitCode != -1 {
		t.Fatalf("expected blocked_by_policy with exitCode -1, got %+v", record)
	}
}

func TestRunPlan_ExecutorStepSuspiciousNoChange(t *testing.T) {
	dir := initRepo(t)
	e := newExecutor(t) // Tool is "true": exits 0 and touches nothing
	p := &plan.Plan{
		Name: "mutate",
		Steps: []plan.Step{
			{Type: plan.StepNote, Message: "start"},
			{Type: plan.StepExecutor, Tool: plan.ToolCodex, Instructions: "add a comment"},
		},
	}
	record, err := e.RunPlan(context.Background(), p, Options{WorkspacePath: dir})
	if err != nil {
		t.Fatalf("RunPlan: %v", err)
	}
	if record.ExitCode != 0 {
		t.Fatalf("expected exitCode 0, got %d", record.ExitCode)
	}
	if len(record.Steps) != 2 || record.Steps[1].Evaluation == nil {
		t.Fatalf("expected executor step to carry an evaluation, got %+v", record.Steps)
	}
	if !record.Steps[1].Evaluation.SuspiciousNoChange {
		t.Fatal("expected suspicious_no_change since the fake tool makes no edits")
	}
	if !record.Steps[1].Evaluation.Retried {
		t.Fatal("expected the retry policy to have fired")
	}
}

func TestRunPlan_ExecutorStepAppliesChange(t *testing.T) {
	dir := initRepo(t)
	commitFile(t, dir, "package.json", "{}\n")
	e := newExecutor(t)
	e.Tool = ExecutorTool{Binary: writeFakeTool(t)}

	p := &plan.Plan{
		Name: "bump dependency",
		Steps: []plan.Step{
			{Type: plan.StepNote, Message: "start"},
			{Type: plan.StepExecutor, Tool: plan.ToolCodex, Instructions: "bump the dependency version"},
		},
	}

	done := make(chan struct{})
	go watchAndResolve(e, decision.Approved, done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	record, err := e.RunPlan(ctx, p, Options{WorkspacePath: dir, DecisionMode: DecisionSync})
	<-done
	if err != nil {
		t.Fatalf("RunPlan: %v", err)
	}
	if record.ExitCode != 0 {
		t.Fatalf("expected exitCode 0 after approval, got %d (cancelled=%v)", record.ExitCode, record.Cancelled)
	}
	if record.Decision == nil || record.Decision.Result != decision.Approved {
		t.Fatalf("expected an approved decision recorded, got %+v", record.Decision)
	}
}

func TestRunPlan_DecisionGateRejected(t *testing.T) {
	dir := initRepo(t)
	commitFile(t, dir, "package.json", "{}\n")
	e := newExecutor(t)
	e.Tool = ExecutorTool{Binary: writeFakeTool(t)}

	p := &plan.Plan{
		Name: "bump dependency",
		Steps: []plan.Step{
			{Type: plan.StepNote, Message: "start"},
			{Type: plan.StepExecutor, Tool: plan.ToolCodex, Instructions: "bump the dependency version"},
		},
	}

	done := make(chan struct{})
	go watchAndResolve(e, decision.Rejected, done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	record, err := e.RunPlan(ctx, p, Options{WorkspacePath: dir, DecisionMode: DecisionSync})
	<-done
	if err != nil {
		t.Fatalf("RunPlan: %v", err)
	}
	if !record.CancelledByDecision || record.ExitCode != -1 {
		t.Fatalf("expected cancelled_by_decision with exitCode -1, got %+v", record)
	}
}

func TestRunPlan_DecisionGateAsyncPending(t *testing.T) {
	dir := initRepo(t)
	commitFile(t, dir, "package.json", "{}\n")
	e := newExecutor(t)
	e.Tool = ExecutorTool{Binary: writeFakeTool(t)}

	p := &plan.Plan{
		Name: "bump dependency",
		Steps: []plan.Step{
			{Type: plan.StepNote, Message: "start"},
			{Type: plan.StepExecutor, Tool: plan.ToolCodex, Instructions: "bump the dependency version"},
		},
	}

	record, err := e.RunPlan(context.Background(), p, Options{WorkspacePath: dir, DecisionMode: DecisionAsync})
	if err != nil {
		t.Fatalf("RunPlan: %v", err)
	}
	if !record.DecisionPending {
		t.Fatalf("expected decision_pending, got %+v", record)
	}
	if !e.Gate.IsPending(record.RunID) {
		t.Fatal("expected the gate to still hold a pending request for later resolution")
	}
}

func TestSubmitDecision_MergesFinalizedAsyncRun(t *testing.T) {
	dir := initRepo(t)
	commitFile(t, dir, "package.json", "{}\n")
	e := newExecutor(t)
	e.Tool = ExecutorTool{Binary: writeFakeTool(t)}

	p := &plan.Plan{
		Name: "bump dependency",
		Steps: []plan.Step{
			{Type: plan.StepNote, Message: "start"},
			{Type: plan.StepExecutor, Tool: plan.ToolCodex, Instructions: "bump the dependency version"},
		},
	}

	record, err := e.RunPlan(context.Background(), p, Options{WorkspacePath: dir, DecisionMode: DecisionAsync})
	if err != nil {
		t.Fatalf("RunPlan: %v", err)
	}
	if !record.DecisionPending {
		t.Fatalf("expected decision_pending, got %+v", record)
	}

	// The run has already finalized and released the active-run slot, so
	// this must take the durable-merge path rather than unblocking a
	// WaitSync nobody is running.
	if !e.SubmitDecision(record.RunID, decision.Approved) {
		t.Fatal("expected SubmitDecision to report success")
	}

	reloaded, err := runstore.Load(e.RunsRoot, record.RunID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.DecisionPending {
		t.Fatalf("expected decision_pending cleared after merge, got %+v", reloaded)
	}
	if reloaded.Decision == nil || reloaded.Decision.Result != decision.Approved {
		t.Fatalf("expected an approved decision merged into the persisted record, got %+v", reloaded.Decision)
	}
}

// watchAndResolve polls the executor's current run for a pending decision
// and resolves it with result, signalling done either way so the caller
// never blocks forever even if detection fails.
func watchAndResolve(e *Executor, result decision.Result, done chan struct{}) {
	defer close(done)
	deadline := time.Now().Add(4 * time.Second)
	for time.Now().Before(deadline) {
		if id := e.CurrentRunID(); id != "" && e.Gate.IsPending(id) {
			e.SubmitDecision(id, result)
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// watchAndCancel polls the executor's current run for a pending decision
// and cancels the run instead of resolving the decision, exercising the
// path where WaitSync unblocks as Rejected because of an explicit cancel
// rather than a human rejection.
func watchAndCancel(e *Executor, done chan struct{}) {
	defer close(done)
	deadline := time.Now().Add(4 * time.Second)
	for time.Now().Before(deadline) {
		if id := e.CurrentRunID(); id != "" && e.Gate.IsPending(id) {
			e.Cancel(id)
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestRunPlan_CancelWhileAwaitingDecision(t *testing.T) {
	dir := initRepo(t)
	commitFile(t, dir, "package.json", "{}\n")
	e := newExecutor(t)
	e.Tool = ExecutorTool{Binary: writeFakeTool(t)}

	var gotCancelled bool
	unsub := e.Bus.Subscribe(func(ev events.Event) {
		if ev.Name == events.RunCancelled {
			gotCancelled = true
		}
	})
	defer unsub()

	p := &plan.Plan{
		Name: "bump dependency",
		Steps: []plan.Step{
			{Type: plan.StepNote, Message: "start"},
			{Type: plan.StepExecutor, Tool: plan.ToolCodex, Instructions: "bump the dependency version"},
		},
	}

	done := make(chan struct{})
	go watchAndCancel(e, done)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	record, err := e.RunPlan(ctx, p, Options{WorkspacePath: dir, DecisionMode: DecisionSync})
	<-done
	if err != nil {
		t.Fatalf("RunPlan: %v", err)
	}
	if !record.Cancelled {
		t.Fatalf("expected an explicit cancel while awaiting a decision to set record.Cancelled, got %+v", record)
	}
	if record.CancelledByDecision {
		t.Fatalf("explicit cancel must not be reported as a human decision rejection, got %+v", record)
	}
	if !gotCancelled {
		t.Fatal("expected a run:cancelled event to be emitted")
	}
}
