// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Settings holds all application configuration.
type Settings struct {
	LLM     LLMConfig
	Agent   AgentConfig
	Sandbox SandboxConfig
	Cache   CacheConfig
	Storage StorageConfig
}

// LLMConfig holds the provider chain configuration.
type LLMConfig struct {
	// Providers is the ordered fallback chain.
	Providers   []string
	MaxTokens   uint32
	Temperature float64
}

// AgentConfig holds agent execution configuration.
type AgentConfig struct {
	MaxSteps   int
	WorkingDir string
}

// SandboxConfig holds command execution limits.
type SandboxConfig struct {
	TimeoutSecs    int
	MaxOutputBytes int
}

// CacheConfig holds content cache sizing.
type CacheConfig struct {
	Capacity int
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Path is the SQLite database file; empty selects the in-memory store.
	Path string
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"anthropic":  {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY"},
	"openai":     {"OPENAI_MODEL", "gpt-4o", "OPENAI_API_KEY"},
	"openrouter": {"OPENROUTER_MODEL", "anthropic/claude-sonnet-4", "OPENROUTER_API_KEY"},
	"gemini":     {"GEMINI_MODEL", "gemini-2.5-flash", "GEMINI_API_KEY"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
}

// DefaultProviderChain is used when POLARIS_PROVIDERS is unset: attempt the
// primary, fall through to the router.
const DefaultProviderChain = "anthropic,openrouter"

// New loads settings from environment variables.
// Returns an error if a configured provider is unknown or a variable
// contains an invalid value.
func New() (Settings, error) {
	chain := os.Getenv("POLARIS_PROVIDERS")
	if chain == "" {
		chain = DefaultProviderChain
	}
	var names []string
	for _, name := range strings.Split(chain, ",") {
		name = normalizeProvider(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, err := getProviderInfo(name); err != nil {
			return Settings{}, err
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return Settings{}, fmt.Errorf("POLARIS_PROVIDERS is empty")
	}

	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", 8192)
	if err != nil {
		return Settings{}, err
	}
	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return Settings{}, err
	}
	maxSteps, err := getEnvInt("AGENT_MAX_STEPS", 10)
	if err != nil {
		return Settings{}, err
	}
	timeoutSecs, err := getEnvInt("SANDBOX_TIMEOUT_SECS", 30)
	if err != nil {
		return Settings{}, err
	}
	maxOutput, err := getEnvInt("SANDBOX_MAX_OUTPUT_BYTES", 1024*1024)
	if err != nil {
		return Settings{}, err
	}
	capacity, err := getEnvInt("CACHE_CAPACITY", 500)
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		LLM: LLMConfig{
			Providers:   names,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
		Agent: AgentConfig{
			MaxSteps:   maxSteps,
			WorkingDir: os.Getenv("AGENT_WORKING_DIR"),
		},
		Sandbox: SandboxConfig{
			TimeoutSecs:    timeoutSecs,
			MaxOutputBytes: maxOutput,
		},
		Cache: CacheConfig{
			Capacity: capacity,
		},
		Storage: StorageConfig{
			Path: os.Getenv("POLARIS_DB_PATH"),
		},
	}, nil
}

// MustNew loads settings, panicking on invalid configuration.
// Use this only when configuration errors should be fatal.
func MustNew() Settings {
	settings, err := New()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(provider)
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q", provider)
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
// An unset key is not an error here: callers skip keyless providers when
// assembling the chain.
func APIKeyFor(provider string) (string, error) {
	info, err := getProviderInfo(normalizeProvider(provider))
	if err != nil {
		return "", err
	}
	return os.Getenv(info.apiKeyEnv), nil
}

// ModelFor returns the model for a provider, checking environment first.
func ModelFor(provider string) (string, error) {
	info, err := getProviderInfo(normalizeProvider(provider))
	if err != nil {
		return "", err
	}
	if val := os.Getenv(info.modelEnv); val != "" {
		return val, nil
	}
	return info.defaultModel, nil
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	return result
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}
