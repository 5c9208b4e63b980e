package config

import (
	"time"

	"frameworks/almanac/pkg/config"
	"frameworks/almanac/pkg/llm"
	"frameworks/almanac/pkg/redis"
	"frameworks/almanac/pkg/search"
)

// Config stores environment configuration for Almanac.
type Config struct {
	Port                  string
	DatabaseURL           string
	AppID                 string
	RoutingFile           string
	DefaultLLMAPIKey      string
	Embedding             llm.Config
	EmbeddingDimensions   int
	Search                search.Config
	SearchDepth           string
	Redis                 redis.Config
	SessionTTL            time.Duration
	KafkaBrokers          []string
	KafkaClientID         string
	ReviewTopic           string
	RetrievalLimit        int
	RetrievalThreshold    float64
	HighQualitySimilarity float64
	RetrievalTimeout      time.Duration
	EmbeddingCacheTTL     time.Duration
	EmbeddingCacheSize    int
	InvestigationWorkers  int
	MaxHistoryMessages    int
	ContextTokenBudget    int
}

// LoadConfig loads the Almanac configuration from environment variables.
// DATABASE_URL is required.
func LoadConfig() Config {
	return Config{
		Port:                  config.GetEnv("PORT", "18020"),
		DatabaseURL:           config.RequireEnv("DATABASE_URL"),
		AppID:                 config.GetEnv("ALMANAC_APP_ID", "almanac"),
		RoutingFile:           config.GetEnv("ALMANAC_ROUTING_FILE", ""),
		DefaultLLMAPIKey:      config.GetEnv("LLM_API_KEY", ""),
		Embedding:             llm.LoadEmbeddingConfig(),
		EmbeddingDimensions:   config.GetEnvInt("EMBEDDING_DIMENSIONS", 0),
		Search:                search.LoadConfig(),
		SearchDepth:           config.GetEnv("SEARCH_DEPTH", "basic"),
		Redis:                 redis.LoadConfig(),
		SessionTTL:            config.GetEnvDuration("ALMANAC_SESSION_TTL", 24*time.Hour),
		KafkaBrokers:          config.GetEnvList("KAFKA_BROKERS", nil),
		KafkaClientID:         config.GetEnv("KAFKA_CLIENT_ID", "almanac"),
		ReviewTopic:           config.GetEnv("ALMANAC_REVIEW_TOPIC", "almanac.review_events"),
		RetrievalLimit:        config.GetEnvInt("ALMANAC_RETRIEVAL_LIMIT", 5),
		RetrievalThreshold:    config.GetEnvFloat("ALMANAC_RETRIEVAL_THRESHOLD", 0.5),
		HighQualitySimilarity: config.GetEnvFloat("ALMANAC_HIGH_QUALITY_SIMILARITY", 0.75),
		RetrievalTimeout:      config.GetEnvDuration("ALMANAC_RETRIEVAL_TIMEOUT", 8*time.Second),
		EmbeddingCacheTTL:     config.GetEnvDuration("ALMANAC_EMBEDDING_CACHE_TTL", 10*time.Minute),
		EmbeddingCacheSize:    config.GetEnvInt("ALMANAC_EMBEDDING_CACHE_SIZE", 1000),
		InvestigationWorkers:  config.GetEnvInt("ALMANAC_INVESTIGATION_WORKERS", 4),
		MaxHistoryMessages:    config.GetEnvInt("ALMANAC_MAX_HISTORY_MESSAGES", 20),
		ContextTokenBudget:    config.GetEnvInt("ALMANAC_CONTEXT_TOKEN_BUDGET", 3000),
	}
}

// RedisEnabled reports whether conversation contexts go to Redis rather than
// process memory.
func (c Config) RedisEnabled() bool {
	return len(c.Redis.Addrs) > 0
}

// KafkaEnabled reports whether review events are published.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
