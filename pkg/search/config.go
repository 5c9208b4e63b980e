package search

import (
	"fmt"
	"strings"
	"time"

	"frameworks/almanac/pkg/config"
)

const (
	providerTavily  = "tavily"
	providerBrave   = "brave"
	providerSearxng = "searxng"
	providerNone    = "none"

	defaultTimeout = 15 * time.Second
)

// Config selects and connects the web search backend.
type Config struct {
	Provider string
	APIKey   string
	APIURL   string
	Timeout  time.Duration
}

// LoadConfig reads SEARCH_* from the environment.
func LoadConfig() Config {
	return Config{
		Provider: config.GetEnv("SEARCH_PROVIDER", providerTavily),
		APIKey:   config.GetEnv("SEARCH_API_KEY", ""),
		APIURL:   config.GetEnv("SEARCH_API_URL", ""),
		Timeout:  config.GetEnvDuration("SEARCH_TIMEOUT", defaultTimeout),
	}
}

// NewProvider creates the configured backend. "none" or an empty provider
// yields one that always reports ErrNotConfigured, so investigation degrades
// instead of failing.
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case providerTavily:
		return NewTavilyProvider(cfg)
	case providerBrave:
		return NewBraveProvider(cfg)
	case providerSearxng:
		return NewSearxngProvider(cfg)
	case providerNone, "":
		return NewUnconfigured("web search disabled"), nil
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", cfg.Provider)
	}
}
