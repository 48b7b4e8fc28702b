package planner

import (
	"fmt"
	"os"
	"strings"
)

// capabilityCard is the fixed block describing what the planner is allowed
// to ask for: the plan shape, the step types, and the command/tool
// allowlists, so the model never has to be told this per call.
const capabilityCard = `You are planning work for a local, workspace-scoped orchestrator.

A plan is JSON: {"name": string, "steps": [step, ...]}.
A plan has at most 8 steps and must include at least one "note" step.

Each step is one of:
  {"type": "note", "message": string}
  {"type": "cmd", "command": string}       -- command must begin with "git"
  {"type": "executor", "tool": "codex", "instructions": string}

Commands may never contain: || && | > < ; $( or a backtick.
Respond with exactly one JSON object and nothing else.`

// DefaultSystemPromptPaths are the two locations the Planner checks, in
// order, for the packaged system prompt file.
func DefaultSystemPromptPaths() []string {
	return []string{
		"internal/planner/prompts/system.md",
		"/etc/orchestrator/prompts/system.md",
	}
}

// LoadSystemPrompt reads the first readable file among paths. Returns
// ErrPromptMissing if none can be read.
func LoadSystemPrompt(paths []string) (string, error) {
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err == nil {
			return string(data), nil
		}
	}
	return "", ErrPromptMissing
}

// BuildUserPrompt assembles the three user-role blocks, in order: the fixed
// capability card, the last-run summary, and the requirement verbatim.
func BuildUserPrompt(lastRunSummary, requirement string) string {
	var b strings.Builder
	b.WriteString(capabilityCard)
	b.WriteString("\n\n--- Last Run Summary ---\n")
	b.WriteString(lastRunSummary)
	b.WriteString("\n\n--- Requirement ---\n")
	b.WriteString(requirement)
	return b.String()
}

// forbiddenOperatorReminder is appended to the user prompt on the one
// retry attempt after a forbidden shell operator was found in the first
// response's plan.
func forbiddenOperatorReminder(userPrompt string) string {
	return fmt.Sprintf("%s\n\n--- Reminder ---\nYour previous plan contained a forbidden shell operator in a cmd step. Remove it and respond again with exactly one JSON object.", userPrompt)
}
