package structured

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonschema"
)

// Validator turns a loosely parsed JSON value into T or explains why it cannot.
type Validator[T any] interface {
	Validate(value any) (T, error)
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc[T any] func(value any) (T, error)

// Validate calls f.
func (f ValidatorFunc[T]) Validate(value any) (T, error) {
	return f(value)
}

// Check is a semantic rule applied after schema validation succeeds.
type Check[T any] func(T) error

// SchemaValidator validates against a compiled JSON Schema, decodes into T,
// then runs semantic checks.
type SchemaValidator[T any] struct {
	schema *jsonschema.Schema
	checks []Check[T]
}

// NewSchemaValidator compiles schema once so it can be reused across calls.
func NewSchemaValidator[T any](schema []byte, checks ...Check[T]) (*SchemaValidator[T], error) {
	compiler := jsonschema.NewCompiler()
	compiled, err := compiler.Compile(schema)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &SchemaValidator[T]{schema: compiled, checks: checks}, nil
}

// Validate implements Validator.
func (v *SchemaValidator[T]) Validate(value any) (T, error) {
	var out T
	data, err := json.Marshal(value)
	if err != nil {
		return out, fmt.Errorf("encode value: %w", err)
	}
	result := v.schema.ValidateJSON(data)
	if !result.IsValid() {
		issues := collectIssues(result.ToList())
		if len(issues) == 0 {
			return out, fmt.Errorf("schema validation failed: %v", result.Errors)
		}
		return out, errors.New(strings.Join(issues, "; "))
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode value: %w", err)
	}
	for _, check := range v.checks {
		if err := check(out); err != nil {
			return out, err
		}
	}
	return out, nil
}

type issueNode struct {
	Valid            bool              `json:"valid"`
	InstanceLocation string            `json:"instanceLocation"`
	Errors           map[string]string `json:"errors"`
	Details          []issueNode       `json:"details"`
}

// collectIssues flattens the evaluation tree into "location: message" lines
// in a stable order.
func collectIssues(list any) []string {
	encoded, err := json.Marshal(list)
	if err != nil {
		return nil
	}
	var root issueNode
	if err := json.Unmarshal(encoded, &root); err != nil {
		return nil
	}
	seen := make(map[string]struct{})
	var issues []string
	var walk func(node issueNode)
	walk = func(node issueNode) {
		location := node.InstanceLocation
		if location == "" {
			location = "root"
		}
		keys := make([]string, 0, len(node.Errors))
		for key := range node.Errors {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			line := location + ": " + node.Errors[key]
			if _, ok := seen[line]; ok {
				continue
			}
			seen[line] = struct{}{}
			issues = append(issues, line)
		}
		for _, child := range node.Details {
			walk(child)
		}
	}
	walk(root)
	return issues
}
