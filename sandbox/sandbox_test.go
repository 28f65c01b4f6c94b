package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestValidateAllowList(t *testing.T) {
	tests := []struct {
		name    string
		command string
		allowed bool
	}{
		{"npm install", "npm install", true},
		{"npm test", "npm test", true},
		{"git status", "git status", true},
		{"go test", "go test ./...", true},
		{"tsc build", "tsc --noEmit", true},
		{"path-qualified node", "/usr/local/bin/node index.js", true},
		{"relative path eslint", "./node_modules/.bin/eslint .", true},
		{"case-insensitive base", "NPM install", true},

		{"curl rejected", "curl http://x", false},
		{"wget rejected", "wget http://x", false},
		{"bash rejected", "bash script.sh", false},
		{"rm rejected", "rm file.txt", false},
		{"empty command", "", false},
		{"whitespace only", "   ", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.command)
			if tc.allowed && err != nil {
				t.Errorf("Validate(%q) = %v, want pass", tc.command, err)
			}
			if !tc.allowed && err == nil {
				t.Errorf("Validate(%q) passed, want rejection", tc.command)
			}
		})
	}
}

func TestValidateDenyPatternsApplyToAllowedBases(t *testing.T) {
	// Deny patterns are a second, independent gate: an allowed base command
	// is still rejected when the command line matches a deny rule.
	tests := []struct {
		name    string
		command string
		reason  string
	}{
		{"git force push long flag", "git push --force origin main", "force push"},
		{"git force push short flag", "git push -f origin main", "force push"},
		{"npm with sudo", "sudo npm install -g typescript", "not on the allow list"},
		{"command substitution backticks", "npm run `echo build`", "command substitution"},
		{"command substitution dollar", "npm run $(cat cmd.txt)", "command substitution"},
		{"redirect into etc", "node gen.js > /etc/passwd", "redirection into system path"},
		{"chained rm -rf", "git clean && rm -rf /", "recursive force delete"},
		{"export env", "npm run build && export PATH=/tmp", "environment mutation"},
		{"kill process", "node -e 1 && kill -9 1", "process kill"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.command)
			if err == nil {
				t.Fatalf("Validate(%q) passed, want rejection", tc.command)
			}
			if !strings.Contains(err.Error(), tc.reason) {
				t.Errorf("rejection reason %q does not name the rule %q", err, tc.reason)
			}
		})
	}
}

func TestValidateRmRfRejectedBeforeSpawn(t *testing.T) {
	err := Validate("rm -rf /")
	if err == nil {
		t.Fatal("rm -rf / must be rejected")
	}
	// Base gate fires first; either way the reason must be legible.
	if !strings.Contains(err.Error(), "rejected") {
		t.Errorf("expected a rejection reason, got %v", err)
	}
}

func TestExecuteRejectsWithoutSpawning(t *testing.T) {
	s := Default()
	_, err := s.Execute(context.Background(), "curl http://evil.example", "")
	if err == nil {
		t.Fatal("expected rejection")
	}
	if !strings.Contains(err.Error(), "not on the allow list") {
		t.Errorf("unexpected reason: %v", err)
	}
}

func TestExecuteCapturesExitCode(t *testing.T) {
	s := Default()
	// `git` with a nonsense subcommand exits non-zero without side effects.
	result, err := s.Execute(context.Background(), "git definitely-not-a-subcommand", t.TempDir())
	if err != nil {
		t.Fatalf("non-zero exit should not be an error: %v", err)
	}
	if result.ExitCode == 0 {
		t.Error("expected non-zero exit code")
	}
	if result.Output == "" {
		t.Error("expected captured stderr output")
	}
}

func TestCapOutputTruncatesAtLineBoundary(t *testing.T) {
	s := New(time.Second, 100)

	lines := strings.Repeat("0123456789\n", 20) // 220 bytes
	capped, truncated := s.capOutput(lines)
	if !truncated {
		t.Fatal("expected truncation")
	}
	if !strings.HasSuffix(capped, truncationNotice) {
		t.Error("expected truncation notice suffix")
	}
	body := strings.TrimSuffix(capped, truncationNotice)
	if strings.Contains(body, "01234567890") {
		t.Error("truncation should fall on a line boundary")
	}
	if len(body) > 100 {
		t.Errorf("body exceeds cap: %d bytes", len(body))
	}
}

func TestCapOutputPassesSmallOutput(t *testing.T) {
	s := New(time.Second, 100)
	out, truncated := s.capOutput("short\n")
	if truncated || out != "short\n" {
		t.Errorf("small output should pass through, got %q (truncated=%v)", out, truncated)
	}
}
