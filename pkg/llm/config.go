package llm

import (
	"fmt"
	"strings"

	"frameworks/almanac/pkg/config"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"

	defaultOllamaURL = "http://localhost:11434"
)

// Config is the connection for one model. Chat models get theirs from a
// routing profile; the embedding model reads it from the environment.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	APIURL    string
	MaxTokens int
}

// LoadEmbeddingConfig reads EMBEDDING_* and falls back to LLM_* for each
// field left unset.
func LoadEmbeddingConfig() Config {
	return Config{
		Provider: config.GetEnv("EMBEDDING_PROVIDER", config.GetEnv("LLM_PROVIDER", ProviderOpenAI)),
		Model:    config.GetEnv("EMBEDDING_MODEL", config.GetEnv("LLM_MODEL", "")),
		APIKey:   config.GetEnv("EMBEDDING_API_KEY", config.GetEnv("LLM_API_KEY", "")),
		APIURL:   config.GetEnv("EMBEDDING_API_URL", config.GetEnv("LLM_API_URL", "")),
	}
}

// NewProvider builds the chat client for cfg.Provider. Ollama is served
// through its OpenAI-compatible endpoint.
func NewProvider(cfg Config) (Provider, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("%s: model is required", cfg.Provider)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(cfg), nil
	case ProviderOllama:
		if strings.TrimSpace(cfg.APIURL) == "" {
			cfg.APIURL = defaultOllamaURL + "/v1"
		}
		return NewOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
