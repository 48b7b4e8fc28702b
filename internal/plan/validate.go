package plan

import (
	"encoding/json"
	"fmt"
	"strings"
)

// allowedCommandPrefix is the literal token that names the VCS client. It is
// kept in sync with internal/policy.CommandPrefix so plan validation and
// step-time enforcement never disagree.
const allowedCommandPrefix = "git"

var allowedTools = map[Tool]bool{
	ToolCodex: true,
}

// Parse decodes and validates an untyped JSON plan document. Schema checks
// (shape) run first; policy checks (domain rules) run only once the shape is
// known-good.
func Parse(raw []byte) (*Plan, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, newErr(KindInvalidJSON, "", err.Error())
	}

	if verr := validateSchema(doc); verr != nil {
		return nil, verr
	}

	var p Plan
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, newErr(KindInvalidJSON, "", err.Error())
	}

	if verr := validatePolicy(&p); verr != nil {
		return nil, verr
	}

	return &p, nil
}

// validatePolicy runs the domain rules beyond bare shape: step count
// ceiling, presence of a note step, command-prefix/non-empty checks, and
// instructions/tool membership.
func validatePolicy(p *Plan) *ValidationError {
	if strings.TrimSpace(p.Name) == "" {
		return newErr(KindPolicyViolation, "name", "plan name must be non-empty after trim")
	}
	if len(p.Steps) == 0 {
		return newErr(KindPolicyViolation, "steps", "plan must contain at least one step")
	}
	if len(p.Steps) > MaxSteps {
		return newErr(KindPolicyViolation, "steps", fmt.Sprintf("plan has %d steps, exceeding the maximum of %d", len(p.Steps), MaxSteps))
	}
	if !p.HasNoteStep() {
		return newErr(KindPolicyViolation, "steps", "plan must contain at least one note step")
	}

	for i, s := range p.Steps {
		path := fmt.Sprintf("steps[%d]", i)
		switch s.Type {
		case StepNote:
			if strings.TrimSpace(s.Message) == "" {
				return newErr(KindPolicyViolation, path+".message", "note message must be non-empty after trim")
			}
		case StepCmd:
			if strings.TrimSpace(s.Command) == "" {
				return newErr(KindPolicyViolation, path+".command", "cmd command must be non-empty")
			}
			trimmed := strings.TrimLeft(s.Command, " \t")
			if !hasCommandPrefix(trimmed, allowedCommandPrefix) {
				return newErr(KindPolicyViolation, path+".command", fmt.Sprintf("command must begin with %q", allowedCommandPrefix))
			}
		case StepExecutor:
			if !allowedTools[s.Tool] {
				return newErr(KindPolicyViolation, path+".tool", fmt.Sprintf("unknown executor tool %q", s.Tool))
			}
			if strings.TrimSpace(s.Instructions) == "" {
				return newErr(KindPolicyViolation, path+".instructions", "executor instructions must be non-empty after trim")
			}
		default:
			return newErr(KindPolicyViolation, path+".type", fmt.Sprintf("unknown step type %q", s.Type))
		}
	}

	return nil
}

// hasCommandPrefix reports whether command begins with prefix followed by a
// word boundary (end of string or whitespace) — "gitx" does not match "git".
func hasCommandPrefix(command, prefix string) bool {
	if !strings.HasPrefix(command, prefix) {
		return false
	}
	rest := command[len(prefix):]
	if rest == "" {
		return true
	}
	return rest[0] == ' ' || rest[0] == '\t'
}

// Canonical re-serializes a Plan with stable key order and preserved array
// order, so a round trip through Parse and Canonical is byte-for-byte
// reproducible. encoding/json already emits struct fields in declaration
// order, so this is a thin, documented wrapper rather than a hand-rolled
// encoder.
func Canonical(p *Plan) ([]byte, error) {
	return json.Marshal(p)
}
