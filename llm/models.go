// Package llm provides shared data models for LLM providers.
package llm

import "encoding/json"

// ChatMessage represents a chat message with role and content.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // For assistant messages with tool calls
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool result messages
}

// ToolCall represents a tool call emitted by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition defines a tool the model may call.
// Parameters is a JSON Schema document in map form.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// SystemMessage creates a system message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: "system", Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: content}
}

// ToolResultMessage creates a tool-result message tied to a prior tool call.
func ToolResultMessage(toolCallID, content string) ChatMessage {
	return ChatMessage{Role: "tool", Content: content, ToolCallID: toolCallID}
}

// Response represents a completion response from a provider.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// TokenUsage contains token usage statistics.
type TokenUsage struct {
	PromptTokens     uint32
	CompletionTokens uint32
	TotalTokens      uint32
}

// Add accumulates usage from another response's usage into this one.
func (u *TokenUsage) Add(other *TokenUsage) {
	if other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Default model identifiers per provider.
const (
	// ModelAnthropicDefault is the default Anthropic model for agent runs.
	ModelAnthropicDefault = "claude-sonnet-4-20250514"
	// ModelOpenAIDefault is the default OpenAI model.
	ModelOpenAIDefault = "gpt-4o"
	// ModelOpenRouterDefault is the default model routed through OpenRouter.
	ModelOpenRouterDefault = "anthropic/claude-sonnet-4"
	// ModelGeminiDefault is the default Gemini model.
	ModelGeminiDefault = "gemini-2.5-flash"
)
