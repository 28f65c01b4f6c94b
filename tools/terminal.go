// Terminal tool delegating to the command sandbox.
package tools

import (
	"context"
	"encoding/json"

	"github.com/polarishq/polaris/sandbox"
)

// RunCommandTool executes a development command inside the sandbox.
// Sandbox rejections and non-zero exits are ordinary tool output.
type RunCommandTool struct {
	sandbox    *sandbox.Sandbox
	workingDir string
}

// NewRunCommandTool creates a run_command tool rooted at workingDir.
func NewRunCommandTool(sb *sandbox.Sandbox, workingDir string) *RunCommandTool {
	return &RunCommandTool{sandbox: sb, workingDir: workingDir}
}

// Metadata returns the tool metadata.
func (t *RunCommandTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "run_command",
		Description: "Run an allow-listed development command (npm, git, tsc, ...) and return its output.",
		Parameters: objectSchema(map[string]interface{}{
			"command": stringProperty("Shell command to run, e.g. npm install"),
		}, "command"),
	}
}

// Execute validates and runs the command. A rejected command or a non-zero
// exit is reported as result text so the model can react to it.
func (t *RunCommandTool) Execute(ctx context.Context, args json.RawMessage) ToolResult {
	var input struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return FailureResultf("run_command: bad arguments: %v", err)
	}

	if err := sandbox.Validate(input.Command); err != nil {
		return FailureResult(err)
	}

	result, err := t.sandbox.Execute(ctx, input.Command, t.workingDir)
	if err != nil {
		return FailureResultf("command failed to run: %v", err)
	}

	output := result.Output
	if output == "" {
		output = "(no output)"
	}
	if result.ExitCode != 0 {
		return SuccessResultf("exit code %d\n%s", result.ExitCode, output)
	}
	return SuccessResult(output)
}
