// OpenAI provider implementation using the go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for the Chat Completions API
// - Streaming via the go-openai stream reader

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the Provider interface for OpenAI.
type OpenAIProvider struct {
	client      *openai.Client
	name        string
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return &OpenAIProvider{
		client:      openai.NewClient(apiKey),
		name:        "openai",
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// newCompatibleProvider creates a provider for any OpenAI-compatible API
// reachable at a custom base URL. OpenRouter uses this.
func newCompatibleProvider(name, baseURL, apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(config),
		name:        name,
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Model returns the current model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Chat sends a plain chat completion request.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []ChatMessage) (Response, error) {
	return p.ChatWithTools(ctx, messages, nil)
}

// ChatWithTools sends a chat completion request with tool definitions.
func (p *OpenAIProvider) ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (Response, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    convertToOpenAIMessages(messages),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}

	if len(tools) > 0 {
		req.Tools = convertToOpenAITools(tools)
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion failed: %w", err)
	}

	content := ""
	var toolCalls []ToolCall
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		for _, tc := range resp.Choices[0].Message.ToolCalls {
			toolCalls = append(toolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: []byte(tc.Function.Arguments),
			})
		}
	}

	usage := &TokenUsage{
		PromptTokens:     uint32(resp.Usage.PromptTokens),
		CompletionTokens: uint32(resp.Usage.CompletionTokens),
		TotalTokens:      uint32(resp.Usage.TotalTokens),
	}

	return Response{Content: content, ToolCalls: toolCalls, Usage: usage}, nil
}

// StreamChatWithTools streams a chat completion. Text deltas go to chunks;
// tool-call fragments are reassembled by index and returned on the final
// Response.
func (p *OpenAIProvider) StreamChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, chunks chan<- string) (Response, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    convertToOpenAIMessages(messages),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Stream:      true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}

	if len(tools) > 0 {
		req.Tools = convertToOpenAITools(tools)
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("stream creation failed: %w", err)
	}
	defer stream.Close()

	var content strings.Builder
	var partialCalls []openai.ToolCall
	var usage *TokenUsage
	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Response{}, fmt.Errorf("stream recv failed: %w", err)
		}

		// Usage arrives on the final chunk when IncludeUsage is set.
		if response.Usage != nil {
			usage = &TokenUsage{
				PromptTokens:     uint32(response.Usage.PromptTokens),
				CompletionTokens: uint32(response.Usage.CompletionTokens),
				TotalTokens:      uint32(response.Usage.TotalTokens),
			}
		}

		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta

		if delta.Content != "" {
			content.WriteString(delta.Content)
			select {
			case chunks <- delta.Content:
			case <-ctx.Done():
				return Response{}, ctx.Err()
			}
		}

		// Tool calls stream as fragments keyed by index: the first
		// fragment carries the ID and name, the rest append argument JSON.
		for _, fragment := range delta.ToolCalls {
			index := len(partialCalls) - 1
			if fragment.Index != nil {
				index = *fragment.Index
			}
			for index >= len(partialCalls) {
				partialCalls = append(partialCalls, openai.ToolCall{Type: openai.ToolTypeFunction})
			}
			call := &partialCalls[index]
			if fragment.ID != "" {
				call.ID = fragment.ID
			}
			if fragment.Function.Name != "" {
				call.Function.Name = fragment.Function.Name
			}
			call.Function.Arguments += fragment.Function.Arguments
		}
	}

	var toolCalls []ToolCall
	for _, call := range partialCalls {
		toolCalls = append(toolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: []byte(call.Function.Arguments),
		})
	}

	return Response{Content: content.String(), ToolCalls: toolCalls, Usage: usage}, nil
}

// convertToOpenAIMessages converts ChatMessage values to the go-openai
// message type, carrying tool calls and tool-result correlation IDs.
func convertToOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}

		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}

		if msg.ToolCallID != "" {
			oaiMsg.ToolCallID = msg.ToolCallID
		}

		result[i] = oaiMsg
	}
	return result
}

// convertToOpenAITools converts tool definitions to OpenAI format.
func convertToOpenAITools(tools []ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return result
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
