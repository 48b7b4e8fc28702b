package runstore

import (
	"time"

	"orchestrator/internal/decision"
	"orchestrator/internal/evaluate"
	"orchestrator/internal/plan"
)

// PlanSummary is the trimmed plan shape embedded in a RunRecord — just
// enough to identify which plan a run executed without duplicating the
// full step bodies.
type PlanSummary struct {
	Name       string `json:"name"`
	StepsCount int    `json:"stepsCount"`
}

// StepRecord is appended to RunRecord.Steps once per dispatched step, in
// order. Fields not meaningful for a step's type are left zero and omitted.
type StepRecord struct {
	StepIndex       int               `json:"step_index"` // 1-based
	Type            plan.StepType     `json:"type"`
	StartedAt       time.Time         `json:"started_at"`
	EndedAt         time.Time         `json:"ended_at"`
	ExitCode        int               `json:"exit_code"`
	Cancelled       bool              `json:"cancelled"`
	Timeout         bool              `json:"timeout"`
	BlockedByPolicy bool              `json:"blocked_by_policy,omitempty"`
	Evidence        map[string]string `json:"evidence,omitempty"`

	// executor steps only
	Tool               plan.Tool            `json:"tool,omitempty"`
	InstructionsLength int                  `json:"instructions_length,omitempty"`
	Evaluation         *evaluate.Evaluation `json:"evaluation,omitempty"`
}

// RunRecordSchemaVersion is written onto every RunRecord so a future
// orchestrator version can tell which record shape it is reading before it
// even looks at the fields.
const RunRecordSchemaVersion = 1

// RunRecord is the full persisted shape of <runs-root>/<run_id>/run.json.
type RunRecord struct {
	SchemaVersion int               `json:"schemaVersion"`
	RunID         string            `json:"run_id"`
	WorkspacePath string            `json:"workspacePath"`
	Requirement   string            `json:"requirement"`
	StartTime     time.Time         `json:"startTime"`
	EndTime       time.Time         `json:"endTime,omitempty"`
	Plan          PlanSummary       `json:"plan"`
	Steps         []StepRecord      `json:"steps"`
	Evidence      map[string]string `json:"evidence,omitempty"`
	ExitCode      int               `json:"exitCode"`

	BlockedByPolicy     bool               `json:"blocked_by_policy,omitempty"`
	Timeout             bool               `json:"timeout,omitempty"`
	Cancelled           bool               `json:"cancelled,omitempty"`
	CancelledByDecision bool               `json:"cancelled_by_decision,omitempty"`
	DecisionPending     bool               `json:"decision_pending,omitempty"`
	// PendingDecisionFiles carries the matched dependency files across the
	// gap between an async run finalizing with DecisionPending=true and a
	// later, possibly separate-process, `orchestrator decide` merging the
	// resolution — the in-memory decision.Gate that normally holds this is
	// not guaranteed to still exist by then.
	PendingDecisionFiles []string           `json:"pending_decision_files,omitempty"`
	Decision             *decision.Decision `json:"decision,omitempty"`
}

// NewRunRecord initializes a record at admission time; Steps/Evidence/
// Decision are filled in as the run progresses.
func NewRunRecord(runID, workspacePath, requirement string, p *plan.Plan, startTime time.Time) *RunRecord {
	return &RunRecord{
		SchemaVersion: RunRecordSchemaVersion,
		RunID:         runID,
		WorkspacePath: workspacePath,
		Requirement:   requirement,
		StartTime:     startTime,
		Plan:          PlanSummary{Name: p.Name, StepsCount: p.StepCount()},
		Steps:         make([]StepRecord, 0, p.StepCount()),
	}
}
