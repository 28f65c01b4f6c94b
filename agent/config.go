// Agent configuration types.
//
// Information Hiding:
// - Default values hidden
// - Phase sequencing policy hidden behind DefaultPhases
package agent

import "fmt"

// Config holds agent loop configuration.
type Config struct {
	// SystemPrompt guides the agent's behavior in conversational mode.
	SystemPrompt string

	// MaxSteps bounds model round trips per conversational run.
	MaxSteps int

	// WorkingDir is the root for sandboxed command execution.
	WorkingDir string

	// Phases is the ordered multi-phase generation plan.
	// Empty means DefaultPhases().
	Phases []Phase
}

// DefaultSystemPrompt is used when no system prompt is configured.
const DefaultSystemPrompt = "You are a coding assistant working on a web application project. " +
	"Use the available tools to inspect and modify project files. " +
	"Prefer small, focused changes and confirm what you did in your final answer."

// DefaultMaxSteps bounds conversational runs when unconfigured.
const DefaultMaxSteps = 10

// DefaultConfig returns the standard agent configuration.
func DefaultConfig() Config {
	return Config{
		SystemPrompt: DefaultSystemPrompt,
		MaxSteps:     DefaultMaxSteps,
	}
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if len(c.Phases) == 0 {
		c.Phases = DefaultPhases()
	}
	return c
}

// Phase is one bounded sub-run of multi-phase project generation.
// Step budgets are policy, not invariants; callers may tune them.
type Phase struct {
	Name     string
	Prompt   string
	MaxSteps int
}

// DefaultPhases returns the standard generation plan: scaffold first, then
// source in dependency order, documentation, and a final verification pass.
func DefaultPhases() []Phase {
	return []Phase{
		{Name: "config files", Prompt: "Create the project configuration files (package.json, tsconfig.json, build tooling config).", MaxSteps: 8},
		{Name: "entry points", Prompt: "Create the application entry points (index.html, main entry module, root component).", MaxSteps: 4},
		{Name: "components", Prompt: "Create the UI components the application needs.", MaxSteps: 8},
		{Name: "pages", Prompt: "Create the application pages and routing.", MaxSteps: 6},
		{Name: "hooks", Prompt: "Create the custom hooks for shared state and effects.", MaxSteps: 4},
		{Name: "types", Prompt: "Create the shared type definitions.", MaxSteps: 3},
		{Name: "utilities", Prompt: "Create utility modules used across the codebase.", MaxSteps: 3},
		{Name: "readme", Prompt: "Write a README.md describing the project and how to run it.", MaxSteps: 2},
		{Name: "verification", Prompt: verificationPrompt, MaxSteps: 2},
	}
}

const verificationPrompt = "Review the project structure and key files. " +
	"Respond with a JSON object: {\"passed\": bool, \"reason\": string} " +
	"indicating whether the generated project looks complete and consistent."

// ConflictError indicates another run is already in flight for the project.
type ConflictError struct {
	ProjectID         string
	InFlightMessageID string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("project %s already has a run in flight (message %s)",
		e.ProjectID, e.InFlightMessageID)
}
