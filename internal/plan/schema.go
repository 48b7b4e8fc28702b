package plan

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// planSchemaJSON is the semantic (shape) schema for a Plan document. It is
// hand-assembled rather than reflected from the Go struct because Step is a
// tagged union, expressed below as one if/then rule per step type, which
// invopop/jsonschema cannot derive from the flattened Step struct.
const planSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "steps"],
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string"},
    "steps": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"type": "string", "enum": ["note", "cmd", "executor"]},
          "message": {"type": "string"},
          "command": {"type": "string"},
          "tool": {"type": "string"},
          "instructions": {"type": "string"}
        },
        "allOf": [
          {
            "if": {"properties": {"type": {"const": "note"}}},
            "then": {"required": ["message"]}
          },
          {
            "if": {"properties": {"type": {"const": "cmd"}}},
            "then": {"required": ["command"]}
          },
          {
            "if": {"properties": {"type": {"const": "executor"}}},
            "then": {"required": ["tool", "instructions"]}
          }
        ]
      }
    }
  }
}`

var (
	compileOnce sync.Once
	compiled    *sjsonschema.Schema
	compileErr  error
)

func compiledSchema() (*sjsonschema.Schema, error) {
	compileOnce.Do(func() {
		var doc any
		if err := json.Unmarshal([]byte(planSchemaJSON), &doc); err != nil {
			compileErr = err
			return
		}
		c := sjsonschema.NewCompiler()
		if err := c.AddResource("plan.json", doc); err != nil {
			compileErr = err
			return
		}
		compiled, compileErr = c.Compile("plan.json")
	})
	return compiled, compileErr
}

// validateSchema runs the semantic (shape) pass over an untyped JSON value
// and returns the first leaf validation error it finds, translated into the
// project's ValidationError shape.
func validateSchema(doc any) *ValidationError {
	schema, err := compiledSchema()
	if err != nil {
		return newErr(KindSchemaViolation, "", "internal schema compile failure: "+err.Error())
	}
	if err := schema.Validate(doc); err != nil {
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, leaf := range flattenSchemaErrors(ve) {
				path := strings.Join(leaf.InstanceLocation, "/")
				return newErr(KindSchemaViolation, path, fmt.Sprintf("%v", leaf.ErrorKind))
			}
		}
		return newErr(KindSchemaViolation, "", err.Error())
	}
	return nil
}

// DocumentationSchema reflects the Plan/Step Go structs into a JSON Schema
// document for `orchestrator plan schema`. It documents field shape for plan
// authors; it is not the schema used by validation, which must express the
// per-type Step requirements that a flattened-struct reflection cannot.
func DocumentationSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&Plan{})
	return json.MarshalIndent(schema, "", "  ")
}

func flattenSchemaErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var out []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		out = append(out, flattenSchemaErrors(cause)...)
	}
	return out
}
