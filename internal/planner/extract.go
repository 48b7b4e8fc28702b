package planner

import (
	"fmt"
	"strings"
)

// ExtractJSON pulls the plan JSON out of the model's raw text response:
// first it looks for a fenced code block, then it falls back to the
// substring between the first "{" and the last "}".
func ExtractJSON(content string) (string, error) {
	if fenced, ok := extractFencedBlock(content); ok {
		return strings.TrimSpace(fenced), nil
	}

	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object found in planner output")
	}
	return strings.TrimSpace(content[start : end+1]), nil
}

// extractFencedBlock returns the contents of the first ``` fenced block, if
// any, stripping an optional language tag on the opening fence line.
func extractFencedBlock(content string) (string, bool) {
	const fence = "```"
	start := strings.Index(content, fence)
	if start == -1 {
		return "", false
	}
	rest := content[start+len(fence):]
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, fence)
	if end == -1 {
		return "", false
	}
	return rest[:end], true
}
