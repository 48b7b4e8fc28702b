package runexec

import "errors"

// Preflight admission errors: synchronous to the caller of RunPlan, never
// recorded on a run record because no run is ever admitted.
var (
	ErrAnotherRunActive = errors.New("another run is already active")
	ErrWorkspaceUnset   = errors.New("workspace path is unset")
	ErrEmptyPlan        = errors.New("plan has no steps")
	ErrNotARepository   = errors.New("workspace is not a git repository")
)
