package runexec

// DecisionMode selects how the Run executor reacts to a dependency-change
// decision gate hit. Synchronous mode suspends the step loop until a human
// resolves it; asynchronous mode (used by autobuild) records the pending
// request and ends the run immediately with DecisionPending set.
type DecisionMode int

const (
	DecisionSync DecisionMode = iota
	DecisionAsync
)

// Options configures one RunPlan invocation.
type Options struct {
	WorkspacePath string
	Requirement   string
	DecisionMode  DecisionMode
}

// ExecutorTool describes the external code-mutation tool's launch contract:
// Binary is invoked twice per executor step, propose then apply.
type ExecutorTool struct {
	Binary string
}

// ProposeArgv builds the first-phase invocation:
// `<binary> exec -C <workspacePath> --full-auto <instructions>`.
func (t ExecutorTool) ProposeArgv(workspacePath, instructions string) []string {
	return []string{t.Binary, "exec", "-C", workspacePath, "--full-auto", instructions}
}

// ApplyArgv builds the second-phase invocation, run only if propose exited
// zero: `<binary> apply -C <workspacePath>`.
func (t ExecutorTool) ApplyArgv(workspacePath string) []string {
	return []string{t.Binary, "apply", "-C", workspacePath}
}
