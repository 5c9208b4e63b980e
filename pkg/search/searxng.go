package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// SearxngProvider implements the SearXNG JSON API. SearXNG has no result
// count parameter, so the limit is applied client-side.
type SearxngProvider struct {
	backend
	apiURL string
}

// NewSearxngProvider needs only an instance URL; self-hosted SearXNG takes no
// API key.
func NewSearxngProvider(cfg Config) (*SearxngProvider, error) {
	if strings.TrimSpace(cfg.APIURL) == "" {
		return nil, fmt.Errorf("%w: searxng api url is required", ErrNotConfigured)
	}
	return &SearxngProvider{
		backend: newBackend("searxng", cfg.Timeout),
		apiURL:  strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"),
	}, nil
}

type searxngResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search executes a query against a SearXNG instance.
func (p *SearxngProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	endpoint, err := url.Parse(p.apiURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("parse searxng url: %w", err)
	}
	q := endpoint.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("safesearch", "1")
	endpoint.RawQuery = q.Encode()

	var decoded searxngResponse
	err = p.doJSON(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("create searxng request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, &decoded)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(decoded.Results))
	for _, item := range decoded.Results {
		results = append(results, Result{
			Title:   item.Title,
			URL:     item.URL,
			Content: strings.TrimSpace(item.Content),
			Score:   item.Score,
		})
	}
	return limitResults(results, opts.Limit), nil
}
