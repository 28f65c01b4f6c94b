// Google Gemini provider implementation using google.golang.org/genai.
//
// Information Hiding:
// - API authentication and client creation
// - Request/response format for the Gemini API
// - System instruction handling via config
// - Streaming via the SDK iterator

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface for Google Gemini.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	initErr     error // Client initialization error, surfaced on first use
}

// NewGeminiProvider creates a new Gemini provider.
// If client initialization fails, the error is stored and returned on first use.
func NewGeminiProvider(apiKey, model string, maxTokens uint32, temperature float32) *GeminiProvider {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return &GeminiProvider{
			model:       model,
			maxTokens:   int32(maxTokens),
			temperature: temperature,
			initErr:     fmt.Errorf("failed to initialize Gemini client: %w", err),
		}
	}

	return &GeminiProvider{
		client:      client,
		model:       model,
		maxTokens:   int32(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model returns the current model.
func (p *GeminiProvider) Model() string {
	return p.model
}

func (p *GeminiProvider) ready() error {
	if p.initErr != nil {
		return p.initErr
	}
	if p.client == nil {
		return fmt.Errorf("gemini client not initialized")
	}
	return nil
}

// Chat sends a plain chat completion request.
func (p *GeminiProvider) Chat(ctx context.Context, messages []ChatMessage) (Response, error) {
	return p.ChatWithTools(ctx, messages, nil)
}

// ChatWithTools sends a chat completion request with tool definitions.
func (p *GeminiProvider) ChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (Response, error) {
	if err := p.ready(); err != nil {
		return Response{}, err
	}

	contents, systemInstruction := convertToGeminiMessages(messages)

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.temperature),
		MaxOutputTokens: p.maxTokens,
	}

	if len(tools) > 0 {
		config.Tools = convertToGeminiTools(tools)
	}

	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}

	response, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion failed: %w", err)
	}

	content := ""
	var toolCalls []ToolCall
	if len(response.Candidates) > 0 && response.Candidates[0].Content != nil {
		for _, part := range response.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
			if part.FunctionCall != nil {
				argsJSON, _ := json.Marshal(part.FunctionCall.Args)
				toolCalls = append(toolCalls, ToolCall{
					ID:        part.FunctionCall.Name, // Gemini correlates by name
					Name:      part.FunctionCall.Name,
					Arguments: argsJSON,
				})
			}
		}
	}

	var usage *TokenUsage
	if response.UsageMetadata != nil {
		usage = &TokenUsage{
			PromptTokens:     uint32(response.UsageMetadata.PromptTokenCount),
			CompletionTokens: uint32(response.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      uint32(response.UsageMetadata.TotalTokenCount),
		}
	}

	return Response{Content: content, ToolCalls: toolCalls, Usage: usage}, nil
}

// StreamChatWithTools streams a chat completion. Text parts go to chunks as
// they arrive; function-call parts are collected and returned on the final
// Response.
func (p *GeminiProvider) StreamChatWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition, chunks chan<- string) (Response, error) {
	if err := p.ready(); err != nil {
		return Response{}, err
	}

	contents, systemInstruction := convertToGeminiMessages(messages)

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.temperature),
		MaxOutputTokens: p.maxTokens,
	}

	if len(tools) > 0 {
		config.Tools = convertToGeminiTools(tools)
	}

	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}

	content := ""
	var toolCalls []ToolCall
	var usage *TokenUsage
	for response, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, config) {
		if err != nil {
			return Response{}, fmt.Errorf("stream error: %w", err)
		}

		if response.UsageMetadata != nil {
			usage = &TokenUsage{
				PromptTokens:     uint32(response.UsageMetadata.PromptTokenCount),
				CompletionTokens: uint32(response.UsageMetadata.CandidatesTokenCount),
				TotalTokens:      uint32(response.UsageMetadata.TotalTokenCount),
			}
		}

		if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
			continue
		}
		for _, part := range response.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
				select {
				case chunks <- part.Text:
				case <-ctx.Done():
					return Response{}, ctx.Err()
				}
			}
			if part.FunctionCall != nil {
				argsJSON, _ := json.Marshal(part.FunctionCall.Args)
				toolCalls = append(toolCalls, ToolCall{
					ID:        part.FunctionCall.Name, // Gemini correlates by name
					Name:      part.FunctionCall.Name,
					Arguments: argsJSON,
				})
			}
		}
	}

	return Response{Content: content, ToolCalls: toolCalls, Usage: usage}, nil
}

// convertToGeminiMessages converts ChatMessage values to Gemini format,
// handling tool calls and tool results. The system message is extracted and
// returned separately as a system instruction.
func convertToGeminiMessages(messages []ChatMessage) ([]*genai.Content, string) {
	var contents []*genai.Content
	var systemInstruction string

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemInstruction = msg.Content
		case "user":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				content := &genai.Content{Role: genai.RoleModel}
				if msg.Content != "" {
					content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
				}
				for _, tc := range msg.ToolCalls {
					var args map[string]any
					_ = json.Unmarshal(tc.Arguments, &args)
					content.Parts = append(content.Parts, &genai.Part{
						FunctionCall: &genai.FunctionCall{
							Name: tc.Name,
							Args: args,
						},
					})
				}
				contents = append(contents, content)
			} else {
				contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
			}
		case "tool":
			var result map[string]any
			_ = json.Unmarshal([]byte(msg.Content), &result)
			if result == nil {
				result = map[string]any{"result": msg.Content}
			}
			content := &genai.Content{
				Role: genai.RoleUser, // Gemini expects tool results as user
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     msg.ToolCallID,
						Response: result,
					},
				}},
			}
			contents = append(contents, content)
		}
	}

	return contents, systemInstruction
}

// convertToGeminiTools converts tool definitions to Gemini format.
func convertToGeminiTools(tools []ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	var declarations []*genai.FunctionDeclaration
	for _, t := range tools {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  convertToGeminiSchema(t.Parameters),
		})
	}

	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertToGeminiSchema converts a JSON-Schema parameter map to the Gemini
// schema type. Only the object/string/number/boolean/array subset the tool
// registry emits is handled.
func convertToGeminiSchema(params map[string]interface{}) *genai.Schema {
	schema := &genai.Schema{
		Type: genai.TypeObject,
	}

	if props, ok := params["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			prop, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			schema.Properties[name] = convertGeminiProperty(prop)
		}
	}

	if required, ok := params["required"].([]string); ok {
		schema.Required = required
	} else if rawRequired, ok := params["required"].([]interface{}); ok {
		for _, r := range rawRequired {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}

	return schema
}

func convertGeminiProperty(prop map[string]interface{}) *genai.Schema {
	s := &genai.Schema{}
	if desc, ok := prop["description"].(string); ok {
		s.Description = desc
	}
	switch prop["type"] {
	case "string":
		s.Type = genai.TypeString
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
		// Arrays require an items schema; default to strings.
		s.Items = &genai.Schema{Type: genai.TypeString}
		if items, ok := prop["items"].(map[string]interface{}); ok {
			s.Items = convertGeminiProperty(items)
		}
	default:
		s.Type = genai.TypeObject
	}
	return s
}

// Verify GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)
