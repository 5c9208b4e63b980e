package main

import (
	"context"
	"time"

	"frameworks/almanac/internal/capture"
	"frameworks/almanac/internal/chat"
	"frameworks/almanac/internal/confidence"
	almanacconfig "frameworks/almanac/internal/config"
	"frameworks/almanac/internal/drafts"
	"frameworks/almanac/internal/investigation"
	"frameworks/almanac/internal/prompt"
	"frameworks/almanac/internal/retrieval"
	"frameworks/almanac/internal/routing"
	"frameworks/almanac/internal/schema"
	"frameworks/almanac/pkg/config"
	"frameworks/almanac/pkg/database"
	"frameworks/almanac/pkg/kafka"
	"frameworks/almanac/pkg/llm"
	"frameworks/almanac/pkg/logging"
	"frameworks/almanac/pkg/middleware"
	"frameworks/almanac/pkg/monitoring"
	"frameworks/almanac/pkg/redis"
	"frameworks/almanac/pkg/search"
	"frameworks/almanac/pkg/server"
	"frameworks/almanac/pkg/version"
)

func main() {
	logger := logging.NewLoggerWithService("almanac")
	config.LoadEnv(logger)

	logger.WithFields(logging.Fields{
		"version": version.Version,
		"commit":  version.GitCommit,
	}).Info("Starting Almanac")

	cfg := almanacconfig.LoadConfig()

	// Routing problems are configuration errors; refuse to start.
	routes, err := routing.LoadTable(cfg.RoutingFile)
	if err != nil {
		logger.WithError(err).Fatal("Invalid routing configuration")
	}
	thresholds, err := confidence.LoadThresholds(cfg.RoutingFile)
	if err != nil {
		logger.WithError(err).Fatal("Invalid confidence thresholds")
	}

	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.DatabaseURL
	db, err := database.Connect(dbConfig, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer func() { _ = db.Close() }()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()
	if err := schema.Apply(startupCtx, db); err != nil {
		logger.WithError(err).Fatal("Failed to apply almanac schema")
	}

	healthChecker := monitoring.NewHealthChecker("almanac", version.Version)
	metricsCollector := monitoring.NewMetricsCollector(nil, "almanac", version.Version, version.GitCommit)
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
	}))

	embedder, err := llm.NewEmbeddingClient(cfg.Embedding)
	if err != nil {
		logger.WithError(err).Warn("Embedding client not configured - knowledge base search disabled")
		embedder = nil
	} else {
		dims := cfg.EmbeddingDimensions
		if dims <= 0 {
			dims, err = llm.ProbeEmbeddingDimensions(startupCtx, embedder)
		}
		if err != nil {
			logger.WithError(err).Warn("Could not determine embedding dimensions; keeping existing column")
		} else if migrated, mErr := schema.EnsureEmbeddingDimensions(startupCtx, db, dims); mErr != nil {
			logger.WithError(mErr).Fatal("Failed to align embedding dimensions")
		} else if migrated {
			logger.WithField("dimensions", dims).Warn("Embedding dimensions changed; approved documents need re-embedding")
		}
	}

	searchProvider, err := search.NewProvider(cfg.Search)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize search provider - web investigation disabled")
		searchProvider = search.NewUnconfigured(err.Error())
	}

	var sessions capture.Store = capture.NewMemoryStore()
	if cfg.RedisEnabled() {
		redisClient, redisErr := redis.NewUniversalClient(startupCtx, cfg.Redis)
		if redisErr != nil {
			logger.WithError(redisErr).Warn("Redis unavailable - conversation contexts kept in memory")
		} else {
			defer func() { _ = redisClient.Close() }()
			sessions = capture.NewRedisStore(redisClient, cfg.SessionTTL)
			healthChecker.AddOptionalCheck("redis", monitoring.PingHealthCheck("Redis", redis.Pinger{Client: redisClient}))
		}
	} else {
		logger.Warn("REDIS_ADDRS not set - conversation contexts kept in memory")
	}

	var publisher drafts.EventPublisher
	if cfg.KafkaEnabled() {
		producer, kErr := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:  cfg.KafkaBrokers,
			ClientID: cfg.KafkaClientID,
		}, logger)
		if kErr != nil {
			logger.WithError(kErr).Warn("Failed to create Kafka producer - review events disabled")
		} else {
			defer func() { _ = producer.Close() }()
			kafkaPublisher, pErr := drafts.NewKafkaPublisher(producer, cfg.ReviewTopic)
			if pErr != nil {
				logger.WithError(pErr).Warn("Review events disabled")
			} else {
				publisher = kafkaPublisher
				healthChecker.AddOptionalCheck("kafka", monitoring.PingHealthCheck("Kafka", producer))
			}
		}
	} else {
		logger.Warn("KAFKA_BROKERS not set - review events disabled")
	}

	retriever := retrieval.NewService(retrieval.Config{
		Searcher:  retrieval.NewPostgresStore(db),
		Embedder:  embedder,
		Logger:    logger,
		Limit:     cfg.RetrievalLimit,
		Threshold: cfg.RetrievalThreshold,
		Timeout:   cfg.RetrievalTimeout,
		CacheTTL:  cfg.EmbeddingCacheTTL,
		CacheSize: cfg.EmbeddingCacheSize,
	})
	investigator := investigation.NewService(investigation.Config{
		Provider:    searchProvider,
		Logger:      logger,
		Concurrency: cfg.InvestigationWorkers,
		SearchDepth: cfg.SearchDepth,
	})

	orchestrator, err := chat.NewOrchestrator(chat.OrchestratorConfig{
		Routes:                routes,
		Providers:             routing.NewPool(nil, cfg.DefaultLLMAPIKey),
		Evaluator:             confidence.NewHeuristic(thresholds),
		Retriever:             retriever,
		Investigator:          investigator,
		Assembler:             prompt.DefaultAssembler{ContextTokenBudget: cfg.ContextTokenBudget},
		Logger:                logger,
		HighQualitySimilarity: cfg.HighQualitySimilarity,
		MaxHistoryMessages:    cfg.MaxHistoryMessages,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to build orchestrator")
	}

	manager, err := drafts.NewManager(drafts.ManagerConfig{
		Repository: drafts.NewPostgresRepository(db),
		Embedder:   embedder,
		Publisher:  publisher,
		Logger:     logger,
		AppID:      cfg.AppID,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to build draft manager")
	}

	chatHandler, err := chat.NewHandler(orchestrator, sessions, manager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build chat handler")
	}
	reviewAPI, err := drafts.NewReviewAPI(manager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build review API")
	}

	router := server.SetupServiceRouter(logger, "almanac", healthChecker, metricsCollector)
	apiGroup := router.Group("/api/almanac")
	apiGroup.Use(middleware.IdentityMiddleware())
	chatHandler.RegisterRoutes(apiGroup)
	reviewAPI.RegisterRoutes(apiGroup)

	serverConfig := server.DefaultConfig("almanac", cfg.Port)
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
