package main

import (
	"encoding/json"
	"fmt"
	"os"

	"orchestrator/internal/events"
	"orchestrator/internal/plan"
)

// attachRenderer subscribes to bus and prints every event either as a
// colorized console line or as a newline-delimited JSON object, depending on
// jsonMode. It returns the unsubscribe function the caller must invoke once
// the command it was watching has finished.
func attachRenderer(bus *events.Bus, jsonMode bool) func() {
	if jsonMode {
		return bus.Subscribe(renderJSON)
	}
	return bus.Subscribe(renderConsole)
}

type jsonEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

func renderJSON(e events.Event) {
	enc := json.NewEncoder(os.Stdout)
	enc.Encode(jsonEnvelope{Event: e.Name, Payload: e.Payload})
}

func renderConsole(e events.Event) {
	switch e.Name {
	case events.RunOutput:
		p := e.Payload.(events.RunOutputPayload)
		switch p.Source {
		case events.SourceStdout:
			fmt.Println(stdoutStyle.Render(p.Text))
		case events.SourceStderr:
			fmt.Println(stderrStyle.Render(p.Text))
		default:
			fmt.Println(systemStyle.Render(p.Text))
		}
	case events.RunStep:
		p := e.Payload.(events.RunStepPayload)
		fmt.Println(stepStyle.Render(fmt.Sprintf("[run %s] step %d/%d", p.RunID, p.StepIndex, p.Total)))
	case events.RunDecision:
		p := e.Payload.(events.RunDecisionPayload)
		fmt.Println(decisionStyle.Render(fmt.Sprintf("[run %s] dependency change pending approval: %v", p.RunID, p.Files)))
	case events.RunCancelled:
		p := e.Payload.(events.RunCancelledPayload)
		fmt.Println(cancelStyle.Render(fmt.Sprintf("[run %s] cancelled", p.RunID)))
	case events.RunDone:
		p := e.Payload.(events.RunDonePayload)
		style := doneOKStyle
		if p.ExitCode != 0 {
			style = doneFailStyle
		}
		fmt.Println(style.Render(fmt.Sprintf("[run %s] done, exit=%d", p.RunID, p.ExitCode)))
	case events.AutobuildStatus:
		p := e.Payload.(events.AutobuildStatusPayload)
		style := planningStyle
		if p.Phase == events.PhaseRunning {
			style = runningStyle
		}
		fmt.Println(style.Render(fmt.Sprintf("[autobuild %d] %s: %s", p.Iteration, p.Phase, p.Message)))
	case events.AutobuildPlan:
		p := e.Payload.(events.AutobuildPlanPayload)
		fmt.Println(headerStyle.Render(fmt.Sprintf("[autobuild %d] plan %q (%d steps)", p.Iteration, p.PlanName, p.Plan.StepCount())))
		if data, err := plan.Canonical(p.Plan); err == nil {
			printJSON(data)
		}
	case events.AutobuildDone:
		p := e.Payload.(events.AutobuildDonePayload)
		fmt.Println(headerStyle.Render(fmt.Sprintf("[autobuild] done: %s after %d iteration(s)", p.StopReason, p.IterationsRun)))
		for _, s := range p.PerIterationSummary {
			fmt.Printf("  iteration %d: run=%s exit=%d reason=%s\n", s.Iteration, s.RunID, s.ExitCode, s.StopReason)
		}
	}
}
