// Provider construction by name.
//
// The gateway is assembled from configuration at startup; this factory maps
// canonical provider names to concrete implementations.

package llm

import (
	"fmt"
	"strings"
)

// DefaultModelFor returns the default model identifier for a provider name.
func DefaultModelFor(name string) string {
	switch strings.ToLower(name) {
	case "anthropic":
		return ModelAnthropicDefault
	case "openai":
		return ModelOpenAIDefault
	case "openrouter":
		return ModelOpenRouterDefault
	case "gemini":
		return ModelGeminiDefault
	default:
		return ""
	}
}

// NewProvider creates a provider by canonical name. An empty model selects
// the provider's default.
func NewProvider(name, apiKey, model string, maxTokens uint32, temperature float32) (Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("provider %s: API key is empty", name)
	}
	if model == "" {
		model = DefaultModelFor(name)
	}

	switch strings.ToLower(name) {
	case "anthropic":
		return NewAnthropicProvider(apiKey, model, maxTokens, temperature), nil
	case "openai":
		return NewOpenAIProvider(apiKey, model, maxTokens, temperature), nil
	case "openrouter":
		return NewOpenRouterProvider(apiKey, model, maxTokens, temperature), nil
	case "gemini":
		return NewGeminiProvider(apiKey, model, maxTokens, temperature), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}
