package runstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Index is a derived, rebuildable SQLite index over the run.json files
// under a runs root. It serves `runs list` and the planner's most-recent-run
// lookup (`runs show` reads run.json directly); run.json and output.log
// remain the source of truth and the index can always be thrown away and
// rebuilt from them.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if absent) the SQLite index file at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open run index: %w", err)
	}
	return &Index{db: db}, nil
}

// Init creates the index schema if it doesn't already exist.
func (idx *Index) Init(ctx context.Context) error {
	ddl := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			workspace_path TEXT NOT NULL,
			requirement TEXT NOT NULL,
			plan_name TEXT NOT NULL,
			steps_count INTEGER NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT,
			exit_code INTEGER NOT NULL,
			cancelled INTEGER NOT NULL DEFAULT 0,
			timeout INTEGER NOT NULL DEFAULT 0,
			decision_pending INTEGER NOT NULL DEFAULT 0,
			indexed_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_start_time ON runs(start_time);`,
	}
	for _, stmt := range ddl {
		if _, err := idx.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init run index: %w", err)
		}
	}
	return nil
}

// Upsert writes or replaces the indexed row for a RunRecord.
func (idx *Index) Upsert(ctx context.Context, r *RunRecord) error {
	_, err := idx.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, workspace_path, requirement, plan_name, steps_count,
			start_time, end_time, exit_code, cancelled, timeout, decision_pending, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			workspace_path=excluded.workspace_path,
			requirement=excluded.requirement,
			plan_name=excluded.plan_name,
			steps_count=excluded.steps_count,
			end_time=excluded.end_time,
			exit_code=excluded.exit_code,
			cancelled=excluded.cancelled,
			timeout=excluded.timeout,
			decision_pending=excluded.decision_pending,
			indexed_at=excluded.indexed_at`,
		r.RunID,
		r.WorkspacePath,
		r.Requirement,
		r.Plan.Name,
		r.Plan.StepsCount,
		r.StartTime.UTC().Format(time.RFC3339),
		formatOptionalTime(r.EndTime),
		r.ExitCode,
		boolToInt(r.Cancelled),
		boolToInt(r.Timeout),
		boolToInt(r.DecisionPending),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// RunSummaryRow is one row of `runs list` output.
type RunSummaryRow struct {
	RunID           string
	PlanName        string
	StepsCount      int
	StartTime       time.Time
	ExitCode        int
	Cancelled       bool
	Timeout         bool
	DecisionPending bool
}

// List returns up to limit rows, most recent start_time first.
func (idx *Index) List(ctx context.Context, limit int) ([]RunSummaryRow, error) {
	rows, err := idx.db.QueryContext(ctx, `
		SELECT run_id, plan_name, steps_count, start_time, exit_code, cancelled, timeout, decision_pending
		FROM runs ORDER BY start_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummaryRow
	for rows.Next() {
		var row RunSummaryRow
		var startTime string
		var cancelled, timeout, pending int
		if err := rows.Scan(&row.RunID, &row.PlanName, &row.StepsCount, &startTime,
			&row.ExitCode, &cancelled, &timeout, &pending); err != nil {
			return nil, err
		}
		row.StartTime, _ = time.Parse(time.RFC3339, startTime)
		row.Cancelled = cancelled != 0
		row.Timeout = timeout != 0
		row.DecisionPending = pending != 0
		out = append(out, row)
	}
	return out, rows.Err()
}

// Rebuild scans every run.json under runsRoot and upserts it. Existing rows
// are updated in place; rows whose run directory no longer exists are not
// removed. Safe to call at any time since the index is purely derived.
func (idx *Index) Rebuild(ctx context.Context, runsRoot string) error {
	ids, err := List(runsRoot)
	if err != nil {
		return err
	}
	for _, id := range ids {
		record, err := Load(runsRoot, id)
		if err != nil {
			continue // a run in progress or a corrupt record; skip rather than fail the whole rebuild
		}
		if err := idx.Upsert(ctx, record); err != nil {
			return fmt.Errorf("index run %s: %w", id, err)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (idx *Index) Close() error {
	if idx == nil || idx.db == nil {
		return nil
	}
	return idx.db.Close()
}

func formatOptionalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
