// Package evidence runs the three read-only VCS queries the Run executor
// fires after every non-note step and formats their output into the
// "system" log block both the Decision gate and the Evaluator consume.
package evidence

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// Keys are the stable mapping keys attached to step records and mirrored
// onto the run-level evidence field.
const (
	KeyStatus       = "status"
	KeyDiffStat     = "diff_stat"
	KeyDiffNameOnly = "diff_name_only"
)

// Evidence is the trio of query results collected after a step.
type Evidence struct {
	Status       string
	DiffStat     string
	DiffNameOnly string
	Err          string // non-empty iff collection failed
}

// Map returns the stable-key mapping attached to StepRecord.Evidence /
// RunRecord.Evidence.
func (e Evidence) Map() map[string]string {
	return map[string]string{
		KeyStatus:       e.Status,
		KeyDiffStat:     e.DiffStat,
		KeyDiffNameOnly: e.DiffNameOnly,
	}
}

// Emitter receives the formatted evidence block as a single system log
// entry per line; the caller decides where it goes (output.log, event bus).
type Emitter func(line string)

// Collect runs the three queries in sequence. On success it emits the
// fixed-order human-readable block via emit and returns the populated
// Evidence. On any query returning non-zero it emits a failed-evidence block
// and returns Evidence{Err: reason}.
func Collect(ctx context.Context, workspacePath string, emit Emitter) Evidence {
	status, err := runGit(ctx, workspacePath, "status", "--porcelain")
	if err != nil {
		return fail(emit, "status", err)
	}
	diffStat, err := runGit(ctx, workspacePath, "diff", "--stat")
	if err != nil {
		return fail(emit, "diff --stat", err)
	}
	diffNameOnly, err := runGit(ctx, workspacePath, "diff", "--name-only")
	if err != nil {
		return fail(emit, "diff --name-only", err)
	}

	ev := Evidence{Status: status, DiffStat: diffStat, DiffNameOnly: diffNameOnly}
	emitBlock(emit, ev)
	return ev
}

// ParseNameOnly splits `git diff --name-only` output into a sorted,
// deduplicated list of changed paths — the shape the Decision gate and
// Evaluator both consume.
func ParseNameOnly(nameOnly string) []string {
	seen := map[string]bool{}
	var out []string
	for _, line := range strings.Split(nameOnly, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, line)
	}
	sort.Strings(out)
	return out
}

func runGit(ctx context.Context, cwd string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", cwd}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%s", msg)
	}
	return stdout.String(), nil
}

func fail(emit Emitter, query string, err error) Evidence {
	reason := fmt.Sprintf("evidence query %q failed: %v", query, err)
	if emit != nil {
		emit("Evidence collection failed: " + reason)
	}
	return Evidence{Err: reason}
}

func emitBlock(emit Emitter, ev Evidence) {
	if emit == nil {
		return
	}
	emit("--- Evidence ---")
	emit("git status --porcelain:")
	emitIndented(emit, ev.Status)
	emit("git diff --stat:")
	emitIndented(emit, ev.DiffStat)
	emit("git diff --name-only:")
	emitIndented(emit, ev.DiffNameOnly)
	emit("--- End Evidence ---")
}

func emitIndented(emit Emitter, block string) {
	trimmed := strings.TrimRight(block, "\n")
	if trimmed == "" {
		emit("  (empty)")
		return
	}
	for _, line := range strings.Split(trimmed, "\n") {
		emit("  " + line)
	}
}
