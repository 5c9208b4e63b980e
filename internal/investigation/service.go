package investigation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"frameworks/almanac/pkg/logging"
	"frameworks/almanac/pkg/search"

	"golang.org/x/sync/errgroup"
)

const (
	defaultTopicLimit    = 10
	defaultQuestionLimit = 5
	defaultConcurrency   = 4
	maxQuestionable      = 5
	maxSnippetRunes      = 320
)

type Config struct {
	Provider      search.Provider
	Logger        logging.Logger
	TopicLimit    int
	QuestionLimit int
	Concurrency   int
	SearchDepth   string
}

type QuestionFinding struct {
	Question string          `json:"question"`
	Results  []search.Result `json:"results"`
}

// Result is one investigation. Sources is the URL-deduplicated union of the
// topic and question findings; Reliable and Questionable partition it.
type Result struct {
	Topic            string            `json:"topic"`
	MainFindings     []search.Result   `json:"main_findings"`
	QuestionFindings []QuestionFinding `json:"question_findings"`
	Sources          []search.Result   `json:"sources"`
	Reliable         []search.Result   `json:"reliable"`
	Questionable     []search.Result   `json:"questionable"`
	Degraded         []string          `json:"degraded,omitempty"`
}

type Service struct {
	provider      search.Provider
	logger        logging.Logger
	topicLimit    int
	questionLimit int
	concurrency   int
	depth         string
}

func NewService(cfg Config) *Service {
	s := &Service{
		provider:      cfg.Provider,
		logger:        cfg.Logger,
		topicLimit:    cfg.TopicLimit,
		questionLimit: cfg.QuestionLimit,
		concurrency:   cfg.Concurrency,
		depth:         cfg.SearchDepth,
	}
	if s.topicLimit <= 0 {
		s.topicLimit = defaultTopicLimit
	}
	if s.questionLimit <= 0 {
		s.questionLimit = defaultQuestionLimit
	}
	if s.concurrency <= 0 {
		s.concurrency = defaultConcurrency
	}
	if s.depth == "" {
		s.depth = "basic"
	}
	return s
}

type searchCall struct {
	kind    string
	query   string
	limit   int
	results []search.Result
	err     error
}

// InvestigateTopic searches the topic and every question concurrently.
// A failed search contributes no results and a Degraded note; the call itself
// never fails.
func (s *Service) InvestigateTopic(ctx context.Context, topic string, questions []string) Result {
	start := time.Now()
	topic = strings.TrimSpace(topic)
	res := Result{Topic: topic}

	calls := make([]*searchCall, 0, len(questions)+1)
	if topic != "" {
		calls = append(calls, &searchCall{kind: "topic", query: topic, limit: s.topicLimit})
	}
	for _, q := range questions {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		calls = append(calls, &searchCall{kind: "question", query: q, limit: s.questionLimit})
	}
	if len(calls) == 0 {
		return res
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, call := range calls {
		call := call
		g.Go(func() error {
			call.results, call.err = s.search(gctx, call.query, call.limit)
			status := "ok"
			if call.err != nil {
				status = "error"
			}
			webSearchesTotal.WithLabelValues(call.kind, status).Inc()
			return nil
		})
	}
	_ = g.Wait()

	var merged []search.Result
	for _, call := range calls {
		if call.err != nil {
			res.Degraded = append(res.Degraded, degradedNote(call.query, call.err))
			if s.logger != nil {
				s.logger.WithError(call.err).WithField("query", call.query).Warn("Web search degraded")
			}
		}
		if call.kind == "topic" {
			res.MainFindings = call.results
		} else {
			res.QuestionFindings = append(res.QuestionFindings, QuestionFinding{Question: call.query, Results: call.results})
		}
		merged = append(merged, call.results...)
	}

	res.Sources = dedupeByURL(merged)
	res.Reliable, res.Questionable = ValidateSources(res.Sources)
	investigationSourcesTotal.WithLabelValues("reliable").Add(float64(len(res.Reliable)))
	investigationSourcesTotal.WithLabelValues("questionable").Add(float64(len(res.Questionable)))
	investigationDuration.Observe(time.Since(start).Seconds())
	return res
}

func (s *Service) search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	if s.provider == nil {
		return nil, search.ErrNotConfigured
	}
	results, err := s.provider.Search(ctx, query, search.SearchOptions{Limit: limit, SearchDepth: s.depth})
	if err != nil {
		return nil, err
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func degradedNote(query string, err error) string {
	if errors.Is(err, search.ErrNotConfigured) {
		return fmt.Sprintf("web search unavailable for %q: provider not configured", query)
	}
	return fmt.Sprintf("web search failed for %q: %v", query, err)
}

// FormatInvestigationContext renders reliable sources, then per-question
// findings, then at most five questionable sources.
func FormatInvestigationContext(res Result) string {
	if len(res.Sources) == 0 {
		if res.Topic == "" {
			return "No web sources found."
		}
		return fmt.Sprintf("No web sources found for %q.", res.Topic)
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "Web investigation: %s\n\n", res.Topic)

	if len(res.Reliable) > 0 {
		builder.WriteString("Reliable sources:\n\n")
		for i, r := range res.Reliable {
			fmt.Fprintf(&builder, "[%d. %s | Relevance: %.2f]\n", i+1, titleOrURL(r), r.Score)
			fmt.Fprintf(&builder, "Source: %s\n", r.URL)
			if snippet := strings.TrimSpace(r.Content); snippet != "" {
				builder.WriteString(truncateRunes(snippet, maxSnippetRunes))
				builder.WriteString("\n")
			}
			if i < len(res.Reliable)-1 {
				builder.WriteString("---\n")
			}
		}
		builder.WriteString("\n")
	}

	for _, qf := range res.QuestionFindings {
		if len(qf.Results) == 0 {
			continue
		}
		fmt.Fprintf(&builder, "Findings for %q:\n", qf.Question)
		for _, r := range qf.Results {
			fmt.Fprintf(&builder, "- %s (%s)\n", titleOrURL(r), r.URL)
		}
		builder.WriteString("\n")
	}

	if len(res.Questionable) > 0 {
		builder.WriteString("Questionable sources (verify before relying on them):\n")
		for i, r := range res.Questionable {
			if i == maxQuestionable {
				break
			}
			fmt.Fprintf(&builder, "- %s (%s)\n", titleOrURL(r), r.URL)
		}
	}
	return strings.TrimSpace(builder.String())
}

// titleOrURL labels an untitled result by its host.
func titleOrURL(r search.Result) string {
	if title := strings.TrimSpace(r.Title); title != "" {
		return title
	}
	if host := r.Host(); host != "" {
		return host
	}
	return r.URL
}

func truncateRunes(input string, limit int) string {
	runes := []rune(input)
	if len(runes) <= limit {
		return input
	}
	return string(runes[:limit-1]) + "…"
}
