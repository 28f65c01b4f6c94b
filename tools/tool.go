// Package tools provides the tool system for the agent loop.
//
// Information Hiding:
// - Tool execution details hidden behind interface
// - Tool parameters and schemas hidden in implementations
// - Registry implementation details hidden from consumers
// - Error handling internalized per tool
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ToolMetadata describes what a tool does and how to call it.
// Parameters is a JSON-Schema document for the tool's arguments object.
type ToolMetadata struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// String returns a string representation of the tool metadata.
func (m ToolMetadata) String() string {
	return fmt.Sprintf("%s: %s", m.Name, m.Description)
}

// ToolResult represents the result of a tool execution.
// Success is determined by whether Error is nil. Failures are values that
// flow back to the model as ordinary tool output; they never abort the run.
type ToolResult struct {
	Output string `json:"output"`
	Error  error  `json:"-"` // Excluded from JSON, use MarshalJSON for custom serialization
}

// MarshalJSON implements custom JSON marshaling for ToolResult.
func (t ToolResult) MarshalJSON() ([]byte, error) {
	if t.Error != nil {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Output  string `json:"output"`
			Error   string `json:"error"`
		}{
			Success: false,
			Output:  t.Output,
			Error:   t.Error.Error(),
		})
	}
	return json.Marshal(struct {
		Success bool   `json:"success"`
		Output  string `json:"output"`
	}{
		Success: true,
		Output:  t.Output,
	})
}

// Success returns true if the tool execution succeeded.
func (t ToolResult) Success() bool {
	return t.Error == nil
}

// Text returns the model-facing rendition of the result. Failures are
// prefixed so the model can distinguish them without parsing JSON.
func (t ToolResult) Text() string {
	if t.Error != nil {
		return "Error: " + t.Error.Error()
	}
	return t.Output
}

// SuccessResult creates a successful tool result.
func SuccessResult(output string) ToolResult {
	return ToolResult{Output: output}
}

// SuccessResultf creates a successful tool result with formatted output.
func SuccessResultf(format string, args ...interface{}) ToolResult {
	return ToolResult{Output: fmt.Sprintf(format, args...)}
}

// FailureResult creates a failed tool result.
func FailureResult(err error) ToolResult {
	return ToolResult{Error: err}
}

// FailureResultf creates a failed tool result with a formatted error message.
func FailureResultf(format string, args ...interface{}) ToolResult {
	return ToolResult{Error: fmt.Errorf(format, args...)}
}

// Tool is the interface that all tools must implement.
//
// Information Hiding: Tool implementations hide their internal execution
// logic, data structures, and error handling strategies behind this interface.
type Tool interface {
	// Metadata returns tool metadata (name, description, parameter schema).
	Metadata() ToolMetadata

	// Execute runs the tool with schema-validated arguments.
	Execute(ctx context.Context, args json.RawMessage) ToolResult
}

// compileSchema compiles a tool's parameter schema for argument validation.
func compileSchema(name string, params map[string]interface{}) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("tool '%s': invalid parameter schema: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	resource := fmt.Sprintf("tool://%s/schema.json", name)
	if err := compiler.AddResource(resource, strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("tool '%s': invalid parameter schema: %w", name, err)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("tool '%s': schema compilation failed: %w", name, err)
	}
	return schema, nil
}

// objectSchema builds a JSON-Schema object document from property
// definitions and the list of required property names.
func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// stringProperty is a shorthand for a string-typed schema property.
func stringProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}
