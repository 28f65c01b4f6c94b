package cli

import (
	"context"
	"testing"

	"github.com/polarishq/polaris/llm"
)

// stubProvider satisfies llm.Provider for chain-description tests.
type stubProvider struct {
	name  string
	model string
}

func (s stubProvider) Name() string  { return s.name }
func (s stubProvider) Model() string { return s.model }

func (s stubProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.Response, error) {
	return llm.Response{}, nil
}

func (s stubProvider) ChatWithTools(ctx context.Context, messages []llm.ChatMessage, tools []llm.ToolDefinition) (llm.Response, error) {
	return llm.Response{}, nil
}

func (s stubProvider) StreamChatWithTools(ctx context.Context, messages []llm.ChatMessage, tools []llm.ToolDefinition, chunks chan<- string) (llm.Response, error) {
	return llm.Response{}, nil
}

func TestDescribeChainLeadsWithPrimary(t *testing.T) {
	gw, err := llm.NewGateway(
		stubProvider{name: "anthropic", model: "claude-sonnet-4-5"},
		stubProvider{name: "openrouter", model: "anthropic/claude-sonnet-4"},
	)
	if err != nil {
		t.Fatalf("NewGateway failed: %v", err)
	}

	got := describeChain(gw)
	want := "provider: anthropic (claude-sonnet-4-5), chain: anthropic, openrouter"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
