package runstore

import (
	"testing"
	"time"

	"orchestrator/internal/decision"
)

func TestMergeDecision_ResolvesPendingRun(t *testing.T) {
	root := t.TempDir()
	runID := "run-pending-1"
	record := NewRunRecord(runID, "/workspace", "bump dependency", samplePlan(), time.Now())
	record.DecisionPending = true
	record.PendingDecisionFiles = []string{"package.json"}
	record.EndTime = time.Now()
	if err := Save(root, runID, record); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := MergeDecision(root, runID, decision.Approved)
	if err != nil {
		t.Fatalf("MergeDecision: %v", err)
	}
	if got.DecisionPending {
		t.Fatal("expected decision_pending cleared")
	}
	if got.PendingDecisionFiles != nil {
		t.Fatalf("expected pending_decision_files cleared, got %v", got.PendingDecisionFiles)
	}
	if got.Decision == nil || got.Decision.Result != decision.Approved {
		t.Fatalf("expected an approved decision merged, got %+v", got.Decision)
	}
	if len(got.Decision.Files) != 1 || got.Decision.Files[0] != "package.json" {
		t.Fatalf("expected merged decision to carry the pending files, got %+v", got.Decision.Files)
	}

	reloaded, err := Load(root, runID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.DecisionPending || reloaded.Decision == nil {
		t.Fatalf("expected the merge to persist to disk, got %+v", reloaded)
	}
}

func TestMergeDecision_NoPendingDecision(t *testing.T) {
	root := t.TempDir()
	runID := "run-no-pending"
	record := NewRunRecord(runID, "/workspace", "bump dependency", samplePlan(), time.Now())
	if err := Save(root, runID, record); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := MergeDecision(root, runID, decision.Approved); err != ErrNoPendingDecision {
		t.Fatalf("expected ErrNoPendingDecision, got %v", err)
	}
}

func TestMergeDecision_UnknownRun(t *testing.T) {
	root := t.TempDir()
	if _, err := MergeDecision(root, "does-not-exist", decision.Rejected); err == nil {
		t.Fatal("expected an error for a run with no run.json")
	}
}
