package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"frameworks/almanac/internal/almanac"
	"frameworks/almanac/pkg/cache"
	"frameworks/almanac/pkg/llm"
	"frameworks/almanac/pkg/logging"
)

const (
	defaultLimit                 = 5
	defaultThreshold             = 0.5
	DefaultHighQualitySimilarity = 0.75
	defaultTimeout               = 8 * time.Second
	maxContentRunes              = 1000

	// NoDocumentationFound is rendered in place of an empty result list so the
	// model can say so instead of inventing an answer.
	NoDocumentationFound = "No documentation found in the knowledge base for this question."
)

var (
	ErrNoTenant    = errors.New("retrieval: tenant id missing from context")
	ErrUnavailable = errors.New("retrieval: embedder or searcher not configured")
)

type Config struct {
	Searcher  DocumentSearcher
	Embedder  llm.EmbeddingClient
	Logger    logging.Logger
	Limit     int
	Threshold float64
	Timeout   time.Duration
	CacheTTL  time.Duration
	CacheSize int
}

// Result carries the documents for one query. Degraded is set when the
// embedder or the searcher failed; Documents is then empty.
type Result struct {
	Documents []Document
	Degraded  error
}

type Service struct {
	searcher   DocumentSearcher
	embedder   llm.EmbeddingClient
	logger     logging.Logger
	limit      int
	threshold  float64
	timeout    time.Duration
	embeddings *cache.Cache[[]float32]
}

func NewService(cfg Config) *Service {
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	threshold := cfg.Threshold
	if threshold < 0 {
		threshold = defaultThreshold
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 1024
	}
	return &Service{
		searcher:  cfg.Searcher,
		embedder:  cfg.Embedder,
		logger:    cfg.Logger,
		limit:     limit,
		threshold: threshold,
		timeout:   timeout,
		embeddings: cache.New[[]float32](cache.Options{TTL: cfg.CacheTTL, MaxEntries: size, LoadTimeout: timeout}, cache.MetricsHooks{
			OnHit:   func() { embeddingCacheTotal.WithLabelValues("hit").Inc() },
			OnMiss:  func() { embeddingCacheTotal.WithLabelValues("miss").Inc() },
			OnError: func() { embeddingCacheTotal.WithLabelValues("error").Inc() },
		}),
	}
}

// Retrieve runs RetrieveRelevant with the configured limit and threshold.
func (s *Service) Retrieve(ctx context.Context, query string) Result {
	return s.RetrieveRelevant(ctx, query, s.limit, s.threshold)
}

// RetrieveRelevant embeds query and returns the tenant's documents with
// similarity >= threshold, best first. It never fails: embedding or search
// errors (including the timeout) come back as Result.Degraded.
func (s *Service) RetrieveRelevant(ctx context.Context, query string, limit int, threshold float64) Result {
	query = strings.TrimSpace(query)
	if query == "" {
		retrievalQueriesTotal.WithLabelValues("skipped").Inc()
		return Result{}
	}
	if s == nil || s.searcher == nil || s.embedder == nil {
		retrievalQueriesTotal.WithLabelValues("degraded").Inc()
		return Result{Degraded: ErrUnavailable}
	}
	tenantID := almanac.GetTenantID(ctx)
	if tenantID == "" {
		retrievalQueriesTotal.WithLabelValues("degraded").Inc()
		return Result{Degraded: ErrNoTenant}
	}
	if limit <= 0 {
		limit = s.limit
	}
	if threshold < 0 {
		threshold = s.threshold
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	docs, err := s.search(ctx, tenantID, query, threshold, limit)
	retrievalDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		retrievalQueriesTotal.WithLabelValues("degraded").Inc()
		if s.logger != nil {
			s.logger.WithError(err).WithField("tenant_id", tenantID).Warn("Knowledge retrieval degraded")
		}
		return Result{Degraded: err}
	}
	retrievalResultsCount.Observe(float64(len(docs)))
	if len(docs) == 0 {
		retrievalQueriesTotal.WithLabelValues("empty").Inc()
	} else {
		retrievalQueriesTotal.WithLabelValues("ok").Inc()
	}
	return Result{Documents: docs}
}

func (s *Service) search(ctx context.Context, tenantID, query string, threshold float64, limit int) ([]Document, error) {
	embedding, err := s.embeddings.Get(ctx, query, func(ctx context.Context, key string) ([]float32, error) {
		return llm.EmbedText(ctx, s.embedder, key)
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	docs, err := s.searcher.SearchDocuments(ctx, tenantID, embedding, threshold, limit)
	if err != nil {
		return nil, err
	}
	// The store already filters, but a custom searcher might not.
	out := docs[:0]
	for _, doc := range docs {
		if doc.Similarity >= threshold {
			out = append(out, doc)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// HasHighQualityResults reports whether any document reaches minSimilarity.
// A non-positive minSimilarity uses DefaultHighQualitySimilarity.
func HasHighQualityResults(docs []Document, minSimilarity float64) bool {
	if minSimilarity <= 0 {
		minSimilarity = DefaultHighQualitySimilarity
	}
	for _, doc := range docs {
		if doc.Similarity >= minSimilarity {
			return true
		}
	}
	return false
}

// FormatContext renders documents for prompt injection.
func FormatContext(docs []Document) string {
	if len(docs) == 0 {
		return NoDocumentationFound
	}
	var builder strings.Builder
	builder.WriteString("Knowledge base results:\n\n")
	for i, doc := range docs {
		title := strings.TrimSpace(doc.Title)
		if title == "" {
			title = doc.SourceURL
		}
		fmt.Fprintf(&builder, "[%d. %s | Relevance: %.2f]\n", i+1, title, doc.Similarity)
		if doc.SourceURL != "" {
			fmt.Fprintf(&builder, "Source: %s\n", doc.SourceURL)
		}
		if content := strings.TrimSpace(doc.Content); content != "" {
			builder.WriteString(truncateRunes(content, maxContentRunes))
			builder.WriteString("\n")
		}
		if i < len(docs)-1 {
			builder.WriteString("---\n")
		}
	}
	return strings.TrimSpace(builder.String())
}

func truncateRunes(input string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(input)
	if len(runes) <= limit {
		return input
	}
	if limit == 1 {
		return string(runes[:1])
	}
	return string(runes[:limit-1]) + "…"
}
