package events

import "sync"

// Bus fans out published events to every current subscriber, synchronously
// and in publish order. The core is single-worker, so a synchronous
// broadcast is sufficient and keeps ordering guarantees trivial to reason
// about. Publish copies the subscriber list under the lock and calls the
// subscribers after releasing it.
type Bus struct {
	mu   sync.Mutex
	subs []func(Event)
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn to receive every subsequently published event. It
// returns an unsubscribe function.
func (b *Bus) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := len(b.subs)
	b.subs = append(b.subs, fn)
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if idx < len(b.subs) {
			b.subs[idx] = nil
		}
	}
}

// Publish broadcasts event to every live subscriber.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	subs := make([]func(Event), len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, fn := range subs {
		if fn != nil {
			fn(event)
		}
	}
}

// EmitRunOutput is a typed convenience wrapper around Publish for run:output.
func (b *Bus) EmitRunOutput(runID string, source Source, text string) {
	b.Publish(Event{Name: RunOutput, Payload: RunOutputPayload{RunID: runID, Source: source, Text: text}})
}

// EmitRunStep is a typed convenience wrapper around Publish for run:step.
func (b *Bus) EmitRunStep(runID string, stepIndex, total int) {
	b.Publish(Event{Name: RunStep, Payload: RunStepPayload{RunID: runID, StepIndex: stepIndex, Total: total}})
}

// EmitRunDecision is a typed convenience wrapper around Publish for run:decision.
func (b *Bus) EmitRunDecision(runID string, files []string) {
	b.Publish(Event{Name: RunDecision, Payload: RunDecisionPayload{RunID: runID, Files: files}})
}

// EmitRunCancelled is a typed convenience wrapper around Publish for run:cancelled.
func (b *Bus) EmitRunCancelled(runID string) {
	b.Publish(Event{Name: RunCancelled, Payload: RunCancelledPayload{RunID: runID}})
}

// EmitRunDone is a typed convenience wrapper around Publish for run:done.
func (b *Bus) EmitRunDone(runID string, exitCode int) {
	b.Publish(Event{Name: RunDone, Payload: RunDonePayload{RunID: runID, ExitCode: exitCode}})
}

// EmitAutobuildStatus is a typed convenience wrapper around Publish for autobuild:status.
func (b *Bus) EmitAutobuildStatus(p AutobuildStatusPayload) {
	b.Publish(Event{Name: AutobuildStatus, Payload: p})
}

// EmitAutobuildPlan is a typed convenience wrapper around Publish for autobuild:plan.
func (b *Bus) EmitAutobuildPlan(p AutobuildPlanPayload) {
	b.Publish(Event{Name: AutobuildPlan, Payload: p})
}

// EmitAutobuildDone is a typed convenience wrapper around Publish for autobuild:done.
func (b *Bus) EmitAutobuildDone(p AutobuildDonePayload) {
	b.Publish(Event{Name: AutobuildDone, Payload: p})
}
