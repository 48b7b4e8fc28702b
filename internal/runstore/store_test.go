package runstore

import (
	"path/filepath"
	"testing"
	"time"

	"orchestrator/internal/plan"
)

func samplePlan() *plan.Plan {
	return &plan.Plan{
		Name: "add logging",
		Steps: []plan.Step{
			{Type: plan.StepNote, Message: "start"},
			{Type: plan.StepCmd, Command: "git status"},
		},
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	root := t.TempDir()
	runID := "run-test-1"
	record := NewRunRecord(runID, "/workspace", "add logging", samplePlan(), time.Now())
	record.Steps = append(record.Steps, StepRecord{StepIndex: 1, Type: plan.StepNote})

	if err := Save(root, runID, record); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(root, runID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.RunID != runID || got.Plan.Name != "add logging" || len(got.Steps) != 1 {
		t.Fatalf("unexpected record after round trip: %+v", got)
	}
}

func TestSave_OverwritesExisting(t *testing.T) {
	root := t.TempDir()
	runID := "run-test-2"
	record := NewRunRecord(runID, "/workspace", "req", samplePlan(), time.Now())
	if err := Save(root, runID, record); err != nil {
		t.Fatalf("Save: %v", err)
	}
	record.ExitCode = 7
	if err := Save(root, runID, record); err != nil {
		t.Fatalf("Save (2nd): %v", err)
	}
	got, err := Load(root, runID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ExitCode != 7 {
		t.Fatalf("expected exitCode 7, got %d", got.ExitCode)
	}
}

func TestOpen_AppendOutput(t *testing.T) {
	root := t.TempDir()
	runID := "run-test-3"
	s, err := Open(root, runID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.AppendOutput("hello"); err != nil {
		t.Fatalf("AppendOutput: %v", err)
	}
	if err := s.AppendOutput("world\n"); err != nil {
		t.Fatalf("AppendOutput: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := filepath.Glob(filepath.Join(root, runID, outputFileName))
	if err != nil || len(data) != 1 {
		t.Fatalf("expected output.log to exist: %v %v", data, err)
	}
}

func TestList_EmptyRoot(t *testing.T) {
	root := t.TempDir()
	ids, err := List(filepath.Join(root, "missing"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no runs, got %v", ids)
	}
}

func TestList_ReturnsRunDirectories(t *testing.T) {
	root := t.TempDir()
	for _, id := range []string{"run-a", "run-b"} {
		record := NewRunRecord(id, "/workspace", "req", samplePlan(), time.Now())
		if err := Save(root, id, record); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	ids, err := List(root)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 run dirs, got %v", ids)
	}
}

func TestNewRunID_Monotonic(t *testing.T) {
	a := NewRunID(time.Date(2026, 8, 3, 10, 0, 0, 100, time.UTC))
	b := NewRunID(time.Date(2026, 8, 3, 10, 0, 0, 200, time.UTC))
	if a >= b {
		t.Fatalf("expected %q < %q", a, b)
	}
}
