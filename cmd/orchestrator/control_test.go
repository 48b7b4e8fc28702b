package main

import (
	"testing"

	"orchestrator/internal/autobuild"
	"orchestrator/internal/decision"
	"orchestrator/internal/events"
	"orchestrator/internal/runexec"
	"orchestrator/internal/runstore"
)

func newTestApp() *app {
	bus := events.NewBus()
	gate := decision.NewGate()
	exec := &runexec.Executor{Bus: bus, Gate: gate, RunsRoot: "", Tool: runexec.ExecutorTool{Binary: "true"}}
	ctrl := &autobuild.Controller{Bus: bus, Executor: exec}
	return &app{Bus: bus, Gate: gate, Executor: exec, Controller: ctrl}
}

func TestDispatchControl_UnknownCommand(t *testing.T) {
	a := newTestApp()
	got := dispatchControl(a, []string{"frobnicate"})
	if got != `error: unknown command "frobnicate"` {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestDispatchControl_CancelRunMissingID(t *testing.T) {
	a := newTestApp()
	got := dispatchControl(a, []string{"cancel-run"})
	if got != "error: cancel-run requires a run id" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestDispatchControl_CancelRunNoActiveRun(t *testing.T) {
	a := newTestApp()
	got := dispatchControl(a, []string{"cancel-run", "20260101-000000-abc"})
	if got != "false" {
		t.Fatalf("expected false for no active run, got %q", got)
	}
}

func TestDispatchControl_CancelAutobuildIdle(t *testing.T) {
	a := newTestApp()
	got := dispatchControl(a, []string{"cancel-autobuild"})
	if got != "true" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestDispatchControl_DecideMissingArgs(t *testing.T) {
	a := newTestApp()
	got := dispatchControl(a, []string{"decide", "some-run"})
	if got != "error: decide requires a run id and a result" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestDispatchControl_DecideUnknownResult(t *testing.T) {
	a := newTestApp()
	got := dispatchControl(a, []string{"decide", "some-run", "maybe"})
	if got != `error: unknown result "maybe"` {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestDispatchControl_DecideNoPendingRequest(t *testing.T) {
	a := newTestApp()
	got := dispatchControl(a, []string{"decide", "some-run", "approved"})
	if got != "false" {
		t.Fatalf("expected false for no pending request, got %q", got)
	}
}

func TestDispatchControl_DecideResolvesPendingRequest(t *testing.T) {
	a := newTestApp()
	a.Executor.RunsRoot = t.TempDir()
	// "some-run" is not the executor's active run: it stands for a run that
	// finalized with decision_pending, as an async (autobuild) run does.
	pending := &runstore.RunRecord{RunID: "some-run", DecisionPending: true, PendingDecisionFiles: []string{"package.json"}}
	if err := runstore.Save(a.Executor.RunsRoot, "some-run", pending); err != nil {
		t.Fatalf("Save: %v", err)
	}
	a.Gate.Open("some-run", []string{"package.json"})

	got := dispatchControl(a, []string{"decide", "some-run", "approved"})
	if got != "true" {
		t.Fatalf("expected true for a pending request, got %q", got)
	}
	merged, err := runstore.Load(a.Executor.RunsRoot, "some-run")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if merged.Decision == nil || merged.Decision.Result != decision.Approved {
		t.Fatalf("expected the delivered decision merged into the run record, got %+v", merged.Decision)
	}
	if a.Gate.IsPending("some-run") {
		t.Fatalf("expected gate to clear the pending request once the decision was delivered")
	}
}
