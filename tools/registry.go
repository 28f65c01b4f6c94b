// Tool registry and dispatch.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - Argument validation internalized in Dispatch
// - Registration and discovery mechanisms abstracted
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/polarishq/polaris/llm"
)

type registered struct {
	tool   Tool
	schema *jsonschema.Schema
}

// Registry manages available tools with dynamic registration.
// Dispatch validates arguments against each tool's declared schema before
// execution; every failure comes back as a ToolResult value, never an error
// across the dispatch boundary.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registered
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]registered),
	}
}

// Register adds a new tool to the registry, compiling its parameter schema.
// Returns error if a tool with the same name already exists or the schema
// does not compile.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	meta := tool.Metadata()
	if _, exists := r.tools[meta.Name]; exists {
		return fmt.Errorf("tool '%s' already registered", meta.Name)
	}

	schema, err := compileSchema(meta.Name, meta.Parameters)
	if err != nil {
		return err
	}

	r.tools[meta.Name] = registered{tool: tool, schema: schema}
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, exists := r.tools[name]
	if !exists {
		return nil, false
	}
	return reg.tool, true
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns metadata for all registered tools, sorted by name.
func (r *Registry) List() []ToolMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metadata := make([]ToolMetadata, 0, len(r.tools))
	for _, reg := range r.tools {
		metadata = append(metadata, reg.tool.Metadata())
	}
	sort.Slice(metadata, func(i, j int) bool { return metadata[i].Name < metadata[j].Name })
	return metadata
}

// Definitions returns the LLM-facing tool definitions, sorted by name.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0)
	for _, meta := range r.List() {
		defs = append(defs, llm.ToolDefinition{
			Name:        meta.Name,
			Description: meta.Description,
			Parameters:  meta.Parameters,
		})
	}
	return defs
}

// Dispatch validates and executes a tool call.
// Unknown tools, malformed arguments, and schema violations all come back
// as failure results so the model can react; the loop never aborts on them.
func (r *Registry) Dispatch(ctx context.Context, call llm.ToolCall) ToolResult {
	r.mu.RLock()
	reg, exists := r.tools[call.Name]
	r.mu.RUnlock()

	if !exists {
		return FailureResultf("unknown tool '%s'", call.Name)
	}

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	var decoded interface{}
	if err := json.Unmarshal(args, &decoded); err != nil {
		return FailureResultf("tool '%s': arguments are not valid JSON: %v", call.Name, err)
	}
	if err := reg.schema.Validate(decoded); err != nil {
		return FailureResultf("tool '%s': invalid arguments: %v", call.Name, err)
	}

	return reg.tool.Execute(ctx, args)
}
