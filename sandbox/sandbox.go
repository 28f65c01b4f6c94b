// Package sandbox validates and executes shell commands for agent tool use.
//
// Two independent gates guard execution: a closed allow-list of development
// tool base executables, and a deny-list of regex patterns that rejects
// dangerous constructs even when the base command is allowed. Both gates
// must pass; either failing yields a rejection with a specific,
// human-readable reason, never a silent no-op.
//
// Information Hiding:
// - Policy pattern definitions internal
// - Process spawning and output capping hidden behind Execute
package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"regexp"
	"strings"
	"time"
)

// allowedExecutables is the closed set of base executables an agent may run.
// The base command is the first whitespace-delimited token, matched
// case-insensitively; path-qualified invocations match on the basename.
var allowedExecutables = map[string]struct{}{
	"npm": {}, "npx": {}, "yarn": {}, "pnpm": {}, "bun": {},
	"node": {}, "tsc": {}, "eslint": {}, "prettier": {},
	"vitest": {}, "jest": {},
	"git": {}, "go": {}, "gofmt": {},
	"python3": {}, "pip": {},
	"cargo": {},
}

// denyRule pairs a human-readable rule name with its pattern. The name is
// surfaced in rejection reasons so the model (and the user) can see which
// rule fired.
type denyRule struct {
	name    string
	pattern *regexp.Regexp
}

// Deny patterns are applied to the whole command line regardless of the
// base executable.
var denyRules = []denyRule{
	{"recursive force delete", regexp.MustCompile(`\brm\s+(-[a-zA-Z]*[rf][a-zA-Z]*\s*)+`)},
	{"privilege escalation", regexp.MustCompile(`\b(sudo|su|doas)\b`)},
	{"permission or ownership change", regexp.MustCompile(`\b(chmod|chown|chgrp)\b`)},
	{"network transfer tool", regexp.MustCompile(`\b(curl|wget|nc|netcat|telnet|ssh|scp|rsync)\b`)},
	{"process kill", regexp.MustCompile(`\b(kill|killall|pkill)\b`)},
	{"disk or mount operation", regexp.MustCompile(`\b(mkfs|mount|umount|fdisk|dd)\b`)},
	{"command substitution", regexp.MustCompile("`|\\$\\(")},
	{"environment mutation", regexp.MustCompile(`\b(export|unset)\s+\w+`)},
	{"redirection into system path", regexp.MustCompile(`>\s*/(etc|usr|bin|sbin|boot|dev|lib|sys|proc)\b`)},
	{"fork bomb", regexp.MustCompile(`:\s*\(\s*\)\s*\{`)},
	{"force push", regexp.MustCompile(`\bpush\b.*(--force\b|-f\b)`)},
	{"shell history or config tampering", regexp.MustCompile(`>>?\s*~/(\.bashrc|\.profile|\.zshrc|\.bash_history)`)},
}

// Limits applied to every execution.
const (
	// DefaultTimeout is the wall-clock bound per command.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxOutputBytes caps combined stdout+stderr.
	DefaultMaxOutputBytes = 1024 * 1024
)

const truncationNotice = "\n[output truncated at 1MB]"

// Result is the outcome of a sandboxed execution.
// A non-zero exit code is data, not an error: the model always receives
// usable output.
type Result struct {
	Output    string
	Truncated bool
	ExitCode  int
}

// Sandbox executes validated commands with bounded time and output.
type Sandbox struct {
	timeout        time.Duration
	maxOutputBytes int
}

// New creates a sandbox with the given limits.
// Non-positive values select the defaults.
func New(timeout time.Duration, maxOutputBytes int) *Sandbox {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxOutputBytes <= 0 {
		maxOutputBytes = DefaultMaxOutputBytes
	}
	return &Sandbox{timeout: timeout, maxOutputBytes: maxOutputBytes}
}

// Default returns a sandbox with default limits.
func Default() *Sandbox {
	return New(DefaultTimeout, DefaultMaxOutputBytes)
}

// Validate checks a command against both gates. It returns nil when the
// command may run, or an error naming the failed rule. Validation is
// all-or-nothing: a command is either fully allowed or rejected.
func Validate(command string) error {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return fmt.Errorf("command is empty")
	}

	fields := strings.Fields(trimmed)
	base := strings.ToLower(fields[0])
	if strings.Contains(base, "/") {
		base = path.Base(base)
	}

	if _, ok := allowedExecutables[base]; !ok {
		return fmt.Errorf("command %q rejected: base executable %q is not on the allow list", trimmed, base)
	}

	for _, rule := range denyRules {
		if rule.pattern.MatchString(trimmed) {
			return fmt.Errorf("command %q rejected: matches deny pattern (%s)", trimmed, rule.name)
		}
	}

	return nil
}

// Execute validates and runs a command in workingDirectory.
//
// The command runs under a wall-clock timeout with interactive prompts and
// color codes disabled so output is deterministic and parseable. Combined
// output is capped; truncation happens at the nearest line boundary with a
// notice appended rather than an error. A validation rejection or a spawn
// failure returns an error; a non-zero exit does not.
func (s *Sandbox) Execute(ctx context.Context, command, workingDirectory string) (Result, error) {
	if err := Validate(command); err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if workingDirectory != "" {
		cmd.Dir = workingDirectory
	}
	cmd.Env = append(os.Environ(),
		"CI=1",
		"NO_COLOR=1",
		"FORCE_COLOR=0",
		"TERM=dumb",
		"npm_config_yes=true",
	)

	output, err := cmd.CombinedOutput()

	if ctx.Err() == context.DeadlineExceeded {
		return Result{}, fmt.Errorf("command timed out after %s", s.timeout)
	}

	result := Result{}
	result.Output, result.Truncated = s.capOutput(string(output))

	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return Result{}, fmt.Errorf("failed to execute command: %w", err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	return result, nil
}

// capOutput truncates output at the nearest line boundary under the cap and
// appends a truncation notice.
func (s *Sandbox) capOutput(output string) (string, bool) {
	if len(output) <= s.maxOutputBytes {
		return output, false
	}

	cut := output[:s.maxOutputBytes]
	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		cut = cut[:idx]
	}
	return cut + truncationNotice, true
}
