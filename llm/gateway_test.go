package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// fakeProvider returns scripted responses, or a fixed error when failing.
type fakeProvider struct {
	name      string
	model     string
	failWith  error
	responses []Response
	calls     int
	streamed  []string
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Model() string { return f.model }

func (f *fakeProvider) Chat(ctx context.Context, messages []ChatMessage) (Response, error) {
	return f.ChatWithTools(ctx, messages, nil)
}

func (f *fakeProvider) ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (Response, error) {
	if f.failWith != nil {
		return Response{}, f.failWith
	}
	if f.calls >= len(f.responses) {
		return Response{Content: "done"}, nil
	}
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func (f *fakeProvider) StreamChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, chunks chan<- string) (Response, error) {
	if f.failWith != nil {
		return Response{}, f.failWith
	}
	if len(f.streamed) > 0 {
		for _, c := range f.streamed {
			chunks <- c
		}
		return Response{
			Content: strings.Join(f.streamed, ""),
			Usage:   &TokenUsage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8},
		}, nil
	}

	// Replay the scripted response, emitting its text in two deltas.
	resp, err := f.ChatWithTools(ctx, messages, tools)
	if err != nil {
		return Response{}, err
	}
	if resp.Content != "" {
		half := len(resp.Content) / 2
		if half > 0 {
			chunks <- resp.Content[:half]
			chunks <- resp.Content[half:]
		} else {
			chunks <- resp.Content
		}
	}
	return resp, nil
}

func TestGatewayRequiresProviders(t *testing.T) {
	_, err := NewGateway()
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestGatewayFallsBackToSecondary(t *testing.T) {
	primary := &fakeProvider{name: "anthropic", model: "claude", failWith: errors.New("upstream 503")}
	secondary := &fakeProvider{name: "openrouter", model: "anthropic/claude-sonnet-4", responses: []Response{{Content: "hello"}}}

	gw, err := NewGateway(primary, secondary)
	if err != nil {
		t.Fatalf("NewGateway failed: %v", err)
	}

	result, err := gw.Generate(context.Background(), []ChatMessage{UserMessage("hi")})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if result.Provider != "openrouter" {
		t.Errorf("expected provider openrouter, got %s", result.Provider)
	}
	if result.Text != "hello" {
		t.Errorf("expected text %q, got %q", "hello", result.Text)
	}
}

func TestGatewayAllProvidersFail(t *testing.T) {
	a := &fakeProvider{name: "anthropic", failWith: errors.New("network down")}
	b := &fakeProvider{name: "openrouter", failWith: errors.New("quota exceeded")}

	gw, _ := NewGateway(a, b)
	_, err := gw.Generate(context.Background(), []ChatMessage{UserMessage("hi")})
	if err == nil {
		t.Fatal("expected error when every provider fails")
	}
	for _, want := range []string{"anthropic", "openrouter", "network down", "quota exceeded"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestGenerateWithToolsFoldsResultsInOrder(t *testing.T) {
	calls := []ToolCall{
		{ID: "c1", Name: "read_file", Arguments: json.RawMessage(`{"path":"a.ts"}`)},
		{ID: "c2", Name: "read_file", Arguments: json.RawMessage(`{"path":"b.ts"}`)},
	}
	p := &fakeProvider{
		name:  "anthropic",
		model: "claude",
		responses: []Response{
			{ToolCalls: calls},
			{Content: "both files read"},
		},
	}

	gw, _ := NewGateway(p)

	var steps []Step
	result, err := gw.GenerateWithTools(context.Background(), []ChatMessage{UserMessage("read them")}, nil, ToolRunOptions{
		MaxSteps: 5,
		Execute: func(ctx context.Context, call ToolCall) string {
			return "contents of " + call.ID
		},
		OnStepFinish: func(step Step) { steps = append(steps, step) },
	})
	if err != nil {
		t.Fatalf("GenerateWithTools failed: %v", err)
	}

	if result.Text != "both files read" {
		t.Errorf("unexpected result text %q", result.Text)
	}
	if result.Steps != 2 {
		t.Errorf("expected 2 steps, got %d", result.Steps)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 step callbacks, got %d", len(steps))
	}
	got := steps[0].ToolResults
	if len(got) != 2 || got[0].ToolCallID != "c1" || got[1].ToolCallID != "c2" {
		t.Errorf("tool results not in issue order: %+v", got)
	}
}

func TestGenerateWithToolsStepBudgetTerminates(t *testing.T) {
	// A model that always asks for another tool call must still terminate.
	loop := make([]Response, 20)
	for i := range loop {
		loop[i] = Response{ToolCalls: []ToolCall{{
			ID:        fmt.Sprintf("c%d", i),
			Name:      "list_files",
			Arguments: json.RawMessage(`{}`),
		}}}
	}
	p := &fakeProvider{name: "anthropic", model: "claude", responses: loop}

	gw, _ := NewGateway(p)
	result, err := gw.GenerateWithTools(context.Background(), []ChatMessage{UserMessage("loop")}, nil, ToolRunOptions{
		MaxSteps: 4,
		Execute:  func(ctx context.Context, call ToolCall) string { return "ok" },
	})
	if err != nil {
		t.Fatalf("GenerateWithTools failed: %v", err)
	}
	if result.Steps != 4 {
		t.Errorf("expected exactly 4 steps, got %d", result.Steps)
	}
	if p.calls != 4 {
		t.Errorf("expected 4 model calls, got %d", p.calls)
	}
}

func TestGenerateStreamDeliversCumulativeText(t *testing.T) {
	p := &fakeProvider{name: "anthropic", model: "claude", streamed: []string{"Hel", "lo ", "world"}}
	gw, _ := NewGateway(p)

	var last string
	result, err := gw.GenerateStream(context.Background(), []ChatMessage{UserMessage("hi")}, StreamOptions{
		OnChunk: func(cumulative string) { last = cumulative },
		// No throttling so every chunk is observable.
		Throttle: 1,
	})
	if err != nil {
		t.Fatalf("GenerateStream failed: %v", err)
	}
	if result.Text != "Hello world" {
		t.Errorf("expected aggregate %q, got %q", "Hello world", result.Text)
	}
	if last != "Hello world" {
		t.Errorf("final callback should carry the full aggregate, got %q", last)
	}
	if result.Usage.TotalTokens != 8 {
		t.Errorf("expected usage from final event, got %+v", result.Usage)
	}
}

func TestGenerateWithToolsStreamsText(t *testing.T) {
	p := &fakeProvider{
		name:  "anthropic",
		model: "claude",
		responses: []Response{
			{ToolCalls: []ToolCall{{ID: "c1", Name: "read_file", Arguments: json.RawMessage(`{"path":"a.ts"}`)}}},
			{Content: "file read, done"},
		},
	}

	gw, _ := NewGateway(p)

	var snapshots []string
	result, err := gw.GenerateWithTools(context.Background(), []ChatMessage{UserMessage("read a.ts")}, nil, ToolRunOptions{
		MaxSteps: 3,
		Execute:  func(ctx context.Context, call ToolCall) string { return "ok" },
		OnChunk:  func(cumulative string) { snapshots = append(snapshots, cumulative) },
		// No throttling so every delta is observable.
		Throttle: 1,
	})
	if err != nil {
		t.Fatalf("GenerateWithTools failed: %v", err)
	}

	if result.Text != "file read, done" {
		t.Errorf("unexpected result text %q", result.Text)
	}
	if len(snapshots) < 2 {
		t.Fatalf("expected partial snapshots before the final aggregate, got %v", snapshots)
	}
	first := snapshots[0]
	if first == result.Text || !strings.HasPrefix(result.Text, first) {
		t.Errorf("first snapshot should be a proper prefix of the final text, got %q", first)
	}
	if last := snapshots[len(snapshots)-1]; last != result.Text {
		t.Errorf("final callback should carry the full aggregate, got %q", last)
	}
	if result.TimeToFirstToken <= 0 {
		t.Error("expected time to first token to be recorded")
	}
}

func TestStreamChatWithToolsFallsBackBeforeFirstDelta(t *testing.T) {
	bad := &fakeProvider{name: "anthropic", failWith: errors.New("connection reset")}
	good := &fakeProvider{name: "openrouter", model: "m", streamed: []string{"he", "llo"}}

	gw, _ := NewGateway(bad, good)

	var deltas []string
	resp, p, err := gw.StreamChatWithTools(context.Background(), []ChatMessage{UserMessage("hi")}, nil, func(delta string) {
		deltas = append(deltas, delta)
	})
	if err != nil {
		t.Fatalf("StreamChatWithTools failed: %v", err)
	}
	if p.Name() != "openrouter" {
		t.Errorf("expected fallback to openrouter, got %s", p.Name())
	}
	if resp.Content != "hello" {
		t.Errorf("expected assembled content, got %q", resp.Content)
	}
	if len(deltas) != 2 {
		t.Errorf("expected 2 deltas, got %v", deltas)
	}
}

func TestPrimaryIsFirstProvider(t *testing.T) {
	a := &fakeProvider{name: "anthropic", model: "claude"}
	b := &fakeProvider{name: "openrouter", model: "m"}

	gw, _ := NewGateway(a, b)
	if got := gw.Primary().Name(); got != "anthropic" {
		t.Errorf("expected primary anthropic, got %s", got)
	}
}

func TestGenerateStreamFallsBackBeforeFirstChunk(t *testing.T) {
	bad := &fakeProvider{name: "anthropic", failWith: errors.New("connection reset")}
	good := &fakeProvider{name: "openrouter", model: "m", streamed: []string{"ok"}}

	gw, _ := NewGateway(bad, good)
	result, err := gw.GenerateStream(context.Background(), []ChatMessage{UserMessage("hi")}, StreamOptions{})
	if err != nil {
		t.Fatalf("GenerateStream failed: %v", err)
	}
	if result.Provider != "openrouter" {
		t.Errorf("expected fallback to openrouter, got %s", result.Provider)
	}
}
