// Package evaluate implements the baseline-diff evaluator: it compares the
// working tree before and after an executor step, classifies the result
// (no_op, suspicious_no_change, retried, retry_has_changes), and describes
// the one-shot retry policy for a suspicious no-change result.
package evaluate

// Evaluation is attached to an executor StepRecord and mirrors the same
// shape for a retried attempt.
type Evaluation struct {
	BaselineFiles      []string    `json:"baseline_files"`
	CurrentFiles       []string    `json:"current_files"`
	ChangedFiles       []string    `json:"changed_files"`
	HasChanges         bool        `json:"has_changes"`
	SuspiciousNoChange bool        `json:"suspicious_no_change"`
	NoOp               bool        `json:"no_op"`
	Retried            bool        `json:"retried"`
	RetryResult        *Evaluation `json:"retry_result,omitempty"`
}

// Evaluate computes changed_files = currentFiles \ baselineFiles, preserving
// currentFiles order, and classifies the result. exitCode is the executor
// step's exit code; precheckHit is whether the immediately preceding cmd
// step was a content-search probe with non-empty stdout.
func Evaluate(baselineFiles, currentFiles []string, exitCode int, precheckHit bool) Evaluation {
	changed := setDifference(currentFiles, baselineFiles)
	hasChanges := len(changed) > 0
	suspicious := exitCode == 0 && !hasChanges
	noOp := suspicious && precheckHit

	return Evaluation{
		BaselineFiles:      baselineFiles,
		CurrentFiles:       currentFiles,
		ChangedFiles:       changed,
		HasChanges:         hasChanges,
		SuspiciousNoChange: suspicious,
		NoOp:               noOp,
	}
}

// setDifference returns the elements of current not present in baseline,
// preserving current's order.
func setDifference(current, baseline []string) []string {
	in := make(map[string]bool, len(baseline))
	for _, f := range baseline {
		in[f] = true
	}
	var out []string
	for _, f := range current {
		if !in[f] {
			out = append(out, f)
		}
	}
	return out
}

// RetryInstructions is the fixed "minimal-change" prompt the Run executor
// sends to the executor tool when ShouldRetry holds. rendererHint names the
// file the retry should target a real diff under, kept configurable rather
// than hardcoded to one literal file name.
func RetryInstructions(rendererHint string) string {
	return "Make no dependency changes. Produce a real diff under " + rendererHint +
		". Do not duplicate existing UI."
}

// ShouldRetry reports whether the Run executor should invoke the retry
// policy: suspicious no-change that is not already explained as a no-op.
func ShouldRetry(e Evaluation) bool {
	return e.SuspiciousNoChange && !e.NoOp
}
