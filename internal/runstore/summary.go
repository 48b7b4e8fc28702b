package runstore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SummaryMaxLen is the truncation limit applied to the text handed to the
// planner as its Last-Run Summary block.
const SummaryMaxLen = 1200

// NoPreviousRuns is returned when runsRoot has no run directories yet.
const NoPreviousRuns = "(no previous runs)"

type summaryEntry struct {
	version string
	text    string
}

// summaryCache avoids re-reading and re-formatting run.json on every
// planner call when the most recent run hasn't changed since the last
// lookup. Keyed by run_id; invalidated by comparing the indexed row's
// terminal-state fingerprint.
var summaryCache, _ = lru.New[string, summaryEntry](16)

// LastRunSummary returns a truncated, human-readable rendering of the most
// recently started run under runsRoot, for the planner's Last-Run Summary
// block. Returns NoPreviousRuns if runsRoot is empty or unreadable.
func LastRunSummary(runsRoot string) string {
	id, version, ok := latestRunID(runsRoot)
	if !ok {
		return NoPreviousRuns
	}
	if entry, found := summaryCache.Get(id); found && entry.version == version {
		return entry.text
	}

	record, err := Load(runsRoot, id)
	if err != nil {
		return NoPreviousRuns
	}
	text := truncate(formatSummary(record), SummaryMaxLen)
	summaryCache.Add(id, summaryEntry{version: version, text: text})
	return text
}

// latestRunID finds the most recently started run by querying the sqlite
// run index rather than hand-rolling a directory-mtime scan: it opens (or
// creates) runsRoot/runs.db, rebuilds it from the on-disk run.json files —
// the same Init+Rebuild sequence cmd/orchestrator's `runs list`/`runs show`
// use, since the index is a derived, always-rebuildable cache rather than a
// separately-maintained store — and reads back row zero of an
// ORDER-BY-start_time query. version is a cheap fingerprint of that row's
// terminal-state columns, used to invalidate summaryCache when the run's
// recorded outcome changes.
func latestRunID(runsRoot string) (id, version string, ok bool) {
	idx, err := OpenIndex(filepath.Join(runsRoot, "runs.db"))
	if err != nil {
		return "", "", false
	}
	defer idx.Close()

	ctx := context.Background()
	if err := idx.Init(ctx); err != nil {
		return "", "", false
	}
	if err := idx.Rebuild(ctx, runsRoot); err != nil {
		return "", "", false
	}
	rows, err := idx.List(ctx, 1)
	if err != nil || len(rows) == 0 {
		return "", "", false
	}
	row := rows[0]
	return row.RunID, fmt.Sprintf("%d|%v|%v|%v", row.ExitCode, row.Cancelled, row.Timeout, row.DecisionPending), true
}

func formatSummary(r *RunRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run_id: %s\n", r.RunID)
	fmt.Fprintf(&b, "plan: %q (%d steps)\n", r.Plan.Name, r.Plan.StepsCount)
	fmt.Fprintf(&b, "exitCode: %d\n", r.ExitCode)
	if r.Cancelled {
		b.WriteString("cancelled: true\n")
	}
	if r.Timeout {
		b.WriteString("timeout: true\n")
	}
	if r.DecisionPending {
		b.WriteString("decision_pending: true\n")
	}
	for _, s := range r.Steps {
		fmt.Fprintf(&b, "- step %d (%s) exit=%d", s.StepIndex, s.Type, s.ExitCode)
		if s.Evaluation != nil {
			fmt.Fprintf(&b, " has_changes=%v no_op=%v", s.Evaluation.HasChanges, s.Evaluation.NoOp)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
