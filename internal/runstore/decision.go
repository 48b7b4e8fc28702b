package runstore

import (
	"errors"
	"time"

	"orchestrator/internal/decision"
)

// ErrNoPendingDecision is returned by MergeDecision when the named run's
// persisted record has no outstanding decision_pending gate to resolve.
var ErrNoPendingDecision = errors.New("run has no pending decision")

// MergeDecision resolves a run's finalized decision_pending state by
// loading run.json, attaching the delivered decision.Decision, clearing
// decision_pending, and rewriting the record. Unlike the in-process
// decision.Gate, run.json survives the CLI invocation that produced it, so
// a later, separate `orchestrator decide` invocation can still call this
// against a run whose owning process has already exited.
func MergeDecision(runsRoot, runID string, result decision.Result) (*RunRecord, error) {
	record, err := Load(runsRoot, runID)
	if err != nil {
		return nil, err
	}
	if !record.DecisionPending {
		return nil, ErrNoPendingDecision
	}

	record.Decision = &decision.Decision{
		Type:      "dependency_change",
		Result:    result,
		Timestamp: time.Now(),
		Files:     record.PendingDecisionFiles,
	}
	record.DecisionPending = false
	record.PendingDecisionFiles = nil

	if err := Save(runsRoot, runID, record); err != nil {
		return nil, err
	}
	return record, nil
}
