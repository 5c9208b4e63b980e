package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const defaultBraveURL = "https://api.search.brave.com/res/v1/web/search"

// BraveProvider implements the Brave Search API. An advanced search asks for
// extra snippets instead of a deeper crawl.
type BraveProvider struct {
	backend
	apiKey string
	apiURL string
}

func NewBraveProvider(cfg Config) (*BraveProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: brave api key is required", ErrNotConfigured)
	}
	apiURL := strings.TrimSpace(cfg.APIURL)
	if apiURL == "" {
		apiURL = defaultBraveURL
	}
	return &BraveProvider{
		backend: newBackend("brave", cfg.Timeout),
		apiKey:  cfg.APIKey,
		apiURL:  apiURL,
	}, nil
}

type braveResult struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Description   string   `json:"description"`
	ExtraSnippets []string `json:"extra_snippets"`
	Score         float64  `json:"score"`
}

type braveResponse struct {
	Web struct {
		Results []braveResult `json:"results"`
	} `json:"web"`
}

// Search executes a query against the Brave Search API. Extra snippets are
// appended to the description to give the prompt more to work with.
func (p *BraveProvider) Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error) {
	endpoint, err := url.Parse(p.apiURL)
	if err != nil {
		return nil, fmt.Errorf("parse brave url: %w", err)
	}
	q := endpoint.Query()
	q.Set("q", query)
	if opts.Limit > 0 {
		q.Set("count", strconv.Itoa(opts.Limit))
	}
	if opts.SearchDepth == "advanced" {
		q.Set("extra_snippets", "true")
	}
	endpoint.RawQuery = q.Encode()

	var decoded braveResponse
	err = p.doJSON(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("create brave request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Subscription-Token", p.apiKey)
		return req, nil
	}, &decoded)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(decoded.Web.Results))
	for _, item := range decoded.Web.Results {
		parts := append([]string{strings.TrimSpace(item.Description)}, item.ExtraSnippets...)
		results = append(results, Result{
			Title:   item.Title,
			URL:     item.URL,
			Content: strings.TrimSpace(strings.Join(parts, "\n")),
			Score:   item.Score,
		})
	}
	return limitResults(results, opts.Limit), nil
}
