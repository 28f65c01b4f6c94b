// OpenRouter provider implementation.
//
// OpenRouter exposes an OpenAI-compatible API at a different base URL, so
// this provider is a thin wrapper over the go-openai client. It serves as
// the fallback backend when the primary provider is unavailable.

package llm

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// NewOpenRouterProvider creates a provider that routes requests through
// OpenRouter. The model identifier uses OpenRouter's vendor-prefixed form
// (for example "anthropic/claude-sonnet-4").
func NewOpenRouterProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return newCompatibleProvider("openrouter", openRouterBaseURL, apiKey, model, maxTokens, temperature)
}
