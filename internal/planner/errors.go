package planner

import (
	"errors"
	"fmt"
)

// Planner-side error taxonomy: surfaced to the caller of GeneratePlan with
// the upstream message preserved where one is available.
var (
	ErrPromptMissing           = errors.New("planner system prompt file could not be read")
	ErrEmptyOutput             = errors.New("completion endpoint returned empty output")
	ErrForbiddenShellOperators = errors.New("planner output contained a forbidden shell operator after retry")
	ErrPlannerAuthMissing      = errors.New("OPENAI_API_KEY is not set")
)

// UpstreamError wraps a non-2xx response from the completion endpoint,
// preserving the upstream status and message where the provider sent one.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream error (%d)", e.StatusCode)
}
