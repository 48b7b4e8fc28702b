// Package planner assembles the prompt the completion endpoint sees: a
// fixed capability card, the most recent run's summary, and the caller's
// requirement verbatim, then validates whatever plan comes back through the
// same validator the Run executor uses for hand-edited plans.
package planner

import (
	"context"
	"fmt"
	"strings"

	"orchestrator/internal/plan"
	"orchestrator/internal/policy"
	"orchestrator/internal/runstore"
)

// Planner generates a Plan from a free-text requirement.
type Planner struct {
	Client            Client
	SystemPromptPaths []string
	RunsRoot          string
}

// GeneratePlan assembles the prompt, calls the completion endpoint, and
// validates the result. On a forbidden-shell-operator violation it retries
// the call exactly once with a short reminder appended; any other failure,
// or a second forbidden-operator violation, is returned to the caller.
func (p *Planner) GeneratePlan(ctx context.Context, requirement string) (*plan.Plan, error) {
	systemPrompt, err := LoadSystemPrompt(p.SystemPromptPaths)
	if err != nil {
		return nil, err
	}

	summary := runstore.LastRunSummary(p.RunsRoot)
	userPrompt := BuildUserPrompt(summary, requirement)

	result, err := p.attempt(ctx, systemPrompt, userPrompt)
	if err == ErrForbiddenShellOperators {
		result, err = p.attempt(ctx, systemPrompt, forbiddenOperatorReminder(userPrompt))
		if err == ErrForbiddenShellOperators {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Planner) attempt(ctx context.Context, systemPrompt, userPrompt string) (*plan.Plan, error) {
	content, err := p.Client.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyOutput
	}

	raw, err := ExtractJSON(content)
	if err != nil {
		return nil, fmt.Errorf("extract plan JSON: %w", err)
	}

	parsed, err := plan.Parse([]byte(raw))
	if err != nil {
		return nil, err
	}

	if containsForbiddenOperators(parsed) {
		return nil, ErrForbiddenShellOperators
	}

	return parsed, nil
}

func containsForbiddenOperators(p *plan.Plan) bool {
	for _, s := range p.Steps {
		if s.Type == plan.StepCmd && policy.HasForbiddenShellOperators(s.Command) {
			return true
		}
	}
	return false
}
