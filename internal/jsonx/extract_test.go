package jsonx

import (
	"strings"
	"testing"
)

type verdict struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason"`
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		response string
		passed   bool
		wantErr  bool
	}{
		{
			name:     "bare JSON",
			response: `{"passed": true, "reason": "ok"}`,
			passed:   true,
		},
		{
			name:     "fenced JSON",
			response: "```json\n{\"passed\": true, \"reason\": \"ok\"}\n```",
			passed:   true,
		},
		{
			name:     "fence without language tag",
			response: "```\n{\"passed\": false, \"reason\": \"missing entry point\"}\n```",
			passed:   false,
		},
		{
			name:     "prose around object",
			response: `Here is my assessment: {"passed": false, "reason": "x"} Let me know.`,
			passed:   false,
		},
		{
			name:     "no JSON at all",
			response: "I could not produce a verdict.",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse[verdict](tt.response)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Passed != tt.passed {
				t.Errorf("passed = %v, want %v", got.Passed, tt.passed)
			}
		})
	}
}

func TestExtractErrorPreviewTruncated(t *testing.T) {
	_, err := Extract(strings.Repeat("x", 500))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(err.Error()) > 200 {
		t.Errorf("error preview too long: %d bytes", len(err.Error()))
	}
}
