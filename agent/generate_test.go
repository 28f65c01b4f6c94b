package agent

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/polarishq/polaris/llm"
	"github.com/polarishq/polaris/model"
)

// phaseScriptProvider answers each phase with one write_file call then a
// closing message, and the verification phase with a JSON verdict.
type phaseScriptProvider struct {
	scriptedProvider
	fileIndex int
}

func (p *phaseScriptProvider) ChatWithTools(ctx context.Context, messages []llm.ChatMessage, tools []llm.ToolDefinition) (llm.Response, error) {
	prompt := messages[len(messages)-1]

	if prompt.Role == "user" && strings.Contains(prompt.Content, "verification") {
		return llm.Response{Content: `{"passed": true, "reason": "all phases complete"}`}, nil
	}
	if prompt.Role == "tool" {
		return llm.Response{Content: "Phase complete."}, nil
	}

	p.mu.Lock()
	p.fileIndex++
	index := p.fileIndex
	p.mu.Unlock()

	return llm.Response{ToolCalls: []llm.ToolCall{
		toolCall("call", "write_file",
			`{"path":"generated/file`+strconv.Itoa(index)+`.ts","content":"x"}`),
	}}, nil
}

func TestGenerateProjectRunsAllPhases(t *testing.T) {
	provider := &phaseScriptProvider{scriptedProvider: scriptedProvider{name: "scripted"}}
	service, store := newTestService(t, provider)
	ctx := context.Background()

	agent, err := service.GenerateProject(ctx, "proj", "a todo app")
	if err != nil {
		t.Fatalf("GenerateProject failed: %v", err)
	}

	if agent.Status != model.AgentCompleted {
		t.Errorf("expected completed, got %s", agent.Status)
	}
	if agent.Progress != 100 {
		t.Errorf("expected 100%% progress, got %d", agent.Progress)
	}

	loaded, err := store.GetBackgroundAgent(ctx, agent.ID)
	if err != nil {
		t.Fatalf("GetBackgroundAgent failed: %v", err)
	}
	if loaded.Status != model.AgentCompleted {
		t.Errorf("persisted status = %s, want completed", loaded.Status)
	}

	// Every non-verification phase wrote at least one file.
	paths, err := store.GetProjectStructure(ctx, "proj")
	if err != nil {
		t.Fatalf("GetProjectStructure failed: %v", err)
	}
	if len(paths) < len(DefaultPhases())-1 {
		t.Errorf("expected at least %d files, got %d", len(DefaultPhases())-1, len(paths))
	}

	// The verification verdict lands in the audit log.
	verdictSeen := false
	for _, e := range store.GenerationEvents("proj") {
		if e.Type == model.EventVerification && strings.Contains(e.Message, "passed") {
			verdictSeen = true
		}
	}
	if !verdictSeen {
		t.Error("expected verification verdict event")
	}
}

func TestGenerateProjectPhaseFailureKeepsCompletedFiles(t *testing.T) {
	// Fails on the third model call: config phase completes (tool call +
	// closing message), the next phase's first call errors.
	provider := &flakyPhaseProvider{failAfter: 2}
	service, store := newTestService(t, provider)
	ctx := context.Background()

	agent, err := service.GenerateProject(ctx, "proj", "a todo app")
	if err == nil {
		t.Fatal("expected phase failure to propagate")
	}
	if agent.Status != model.AgentFailed {
		t.Errorf("expected failed status, got %s", agent.Status)
	}
	if !strings.Contains(agent.Error, "phase") {
		t.Errorf("expected phase name in error, got %q", agent.Error)
	}

	// Files from the completed phase survive.
	paths, err := store.GetProjectStructure(ctx, "proj")
	if err != nil {
		t.Fatalf("GetProjectStructure failed: %v", err)
	}
	if len(paths) == 0 {
		t.Error("expected files from completed phases to be kept")
	}

	// The failure is recorded in the audit log.
	failedSeen := false
	for _, e := range store.GenerationEvents("proj") {
		if e.Type == model.EventPhaseFailed {
			failedSeen = true
		}
	}
	if !failedSeen {
		t.Error("expected phase_failed audit event")
	}
}

func TestGenerateProjectProgressMonotonic(t *testing.T) {
	provider := &phaseScriptProvider{scriptedProvider: scriptedProvider{name: "scripted"}}
	service, store := newTestService(t, provider)
	ctx := context.Background()

	agent, err := service.GenerateProject(ctx, "proj", "a todo app")
	if err != nil {
		t.Fatalf("GenerateProject failed: %v", err)
	}

	// WithProgress never lowers a recorded value.
	lowered := agent.WithProgress(10, "late step")
	if lowered.Progress != 100 {
		t.Errorf("expected progress to stay at 100, got %d", lowered.Progress)
	}

	if _, err := store.GetBackgroundAgent(ctx, agent.ID); err != nil {
		t.Fatalf("GetBackgroundAgent failed: %v", err)
	}
}

// flakyPhaseProvider behaves like phaseScriptProvider until failAfter model
// calls have been served, then errors on every call.
type flakyPhaseProvider struct {
	phaseScriptProvider
	failAfter int
	served    int
}

func (p *flakyPhaseProvider) ChatWithTools(ctx context.Context, messages []llm.ChatMessage, tools []llm.ToolDefinition) (llm.Response, error) {
	p.mu.Lock()
	p.served++
	failed := p.served > p.failAfter
	p.mu.Unlock()

	if failed {
		return llm.Response{}, errSimulatedOutage
	}
	return p.phaseScriptProvider.ChatWithTools(ctx, messages, tools)
}

var errSimulatedOutage = &outageError{}

type outageError struct{}

func (*outageError) Error() string { return "simulated provider outage" }
