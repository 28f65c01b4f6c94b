// Package llm provides language-model provider abstractions.
//
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific error handling

package llm

import (
	"context"
)

// Provider defines the abstract interface for language-model backends.
// Implementations hide provider-specific details while exposing a
// consistent contract for plain and tool-augmented completions.
type Provider interface {
	// Name returns the provider name (for result attribution and logging).
	Name() string

	// Model returns the model identifier this provider is configured with.
	Model() string

	// Chat sends a plain chat completion request.
	Chat(ctx context.Context, messages []ChatMessage) (Response, error)

	// ChatWithTools sends a chat completion request with tool definitions.
	// The model may respond with tool calls in Response.ToolCalls.
	ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (Response, error)

	// StreamChatWithTools streams a chat completion, sending text deltas to
	// chunks as they arrive. Tool calls are collected across the stream and
	// returned on the final Response alongside the aggregate text and usage.
	// Pass nil tools for a plain streaming completion.
	StreamChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, chunks chan<- string) (Response, error)
}
