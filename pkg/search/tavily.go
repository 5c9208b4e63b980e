package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const defaultTavilyURL = "https://api.tavily.com/search"

// TavilyProvider implements the Tavily Search API. Tavily is the only backend
// that honors SearchDepth.
type TavilyProvider struct {
	backend
	apiKey string
	apiURL string
}

func NewTavilyProvider(cfg Config) (*TavilyProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: tavily api key is required", ErrNotConfigured)
	}
	apiURL := strings.TrimSpace(cfg.APIURL)
	if apiURL == "" {
		apiURL = defaultTavilyURL
	}
	return &TavilyProvider{
		backend: newBackend("tavily", cfg.Timeout),
		apiKey:  cfg.APIKey,
		apiURL:  apiURL,
	}, nil
}

type tavilyRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth,omitempty"`
	MaxResults        int    `json:"max_results,omitempty"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResult struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	RawContent string  `json:"raw_content"`
	Score      float64 `json:"score"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

// Search executes a query against the Tavily Search API. Raw page content is
// preferred over the snippet when Tavily returns it.
func (p *TavilyProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	payload, err := json.Marshal(tavilyRequest{
		APIKey:            p.apiKey,
		Query:             query,
		SearchDepth:       opts.SearchDepth,
		MaxResults:        opts.Limit,
		IncludeRawContent: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tavily request: %w", err)
	}

	var decoded tavilyResponse
	err = p.doJSON(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("create tavily request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, &decoded)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(decoded.Results))
	for _, item := range decoded.Results {
		content := strings.TrimSpace(item.RawContent)
		if content == "" {
			content = strings.TrimSpace(item.Content)
		}
		results = append(results, Result{
			Title:   item.Title,
			URL:     item.URL,
			Content: content,
			Score:   item.Score,
		})
	}
	return limitResults(results, opts.Limit), nil
}
