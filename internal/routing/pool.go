package routing

import (
	"fmt"
	"os"
	"sync"

	"frameworks/almanac/pkg/llm"
)

// ProviderFactory builds a provider client from connection settings.
type ProviderFactory func(cfg llm.Config) (llm.Provider, error)

// Pool lazily creates one provider client per profile key.
type Pool struct {
	factory    ProviderFactory
	defaultKey string

	mu        sync.Mutex
	providers map[string]llm.Provider
}

// NewPool returns a pool using factory, or llm.NewProvider when nil.
// defaultAPIKey is used for profiles whose key env var is unset.
func NewPool(factory ProviderFactory, defaultAPIKey string) *Pool {
	if factory == nil {
		factory = llm.NewProvider
	}
	return &Pool{
		factory:    factory,
		defaultKey: defaultAPIKey,
		providers:  make(map[string]llm.Provider),
	}
}

// Provider returns the cached client for profile, creating it on first use.
func (p *Pool) Provider(profile ModelProfile) (llm.Provider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if provider, ok := p.providers[profile.Key]; ok {
		return provider, nil
	}
	apiKey := p.defaultKey
	if profile.APIKeyEnv != "" {
		if v := os.Getenv(profile.APIKeyEnv); v != "" {
			apiKey = v
		}
	}
	provider, err := p.factory(llm.Config{
		Provider:  profile.Provider,
		Model:     profile.Model,
		APIKey:    apiKey,
		APIURL:    profile.APIURL,
		MaxTokens: profile.MaxOutputTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("create provider for profile %q: %w", profile.Key, err)
	}
	p.providers[profile.Key] = provider
	return provider, nil
}
