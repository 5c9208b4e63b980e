package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTavilySearch(t *testing.T) {
	t.Parallel()

	errCh := make(chan error, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			errCh <- fmt.Errorf("expected POST, got %s", r.Method)
			return
		}
		var req tavilyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errCh <- fmt.Errorf("decode request: %w", err)
			return
		}
		if req.APIKey != "test-key" {
			errCh <- fmt.Errorf("expected api_key test-key, got %q", req.APIKey)
			return
		}
		if req.SearchDepth != "advanced" {
			errCh <- fmt.Errorf("expected search_depth advanced, got %q", req.SearchDepth)
			return
		}
		if req.MaxResults != 2 {
			errCh <- fmt.Errorf("expected max_results 2, got %d", req.MaxResults)
			return
		}

		resp := tavilyResponse{
			Results: []tavilyResult{
				{
					Title:      "Example",
					URL:        "https://example.com",
					Content:    "snippet",
					RawContent: "full content",
					Score:      0.99,
				},
				{
					Title:   "Snippet only",
					URL:     "https://example.org",
					Content: "  short  ",
				},
			},
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			errCh <- fmt.Errorf("encode response: %w", err)
			return
		}
	}))
	defer server.Close()

	provider, err := NewTavilyProvider(Config{APIKey: "test-key", APIURL: server.URL})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	results, err := provider.Search(context.Background(), "query", SearchOptions{Limit: 2, SearchDepth: "advanced"})
	select {
	case herr := <-errCh:
		t.Fatalf("handler error: %v", herr)
	default:
	}
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Content != "full content" {
		t.Fatalf("expected raw content, got %q", results[0].Content)
	}
	if results[1].Content != "short" {
		t.Fatalf("expected trimmed snippet fallback, got %q", results[1].Content)
	}
}

func TestNewProviderMissingCredentials(t *testing.T) {
	t.Parallel()

	_, err := NewProvider(Config{Provider: "tavily"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := NewProvider(Config{Provider: "bing"}); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestUnconfiguredProvider(t *testing.T) {
	t.Parallel()

	p, err := NewProvider(Config{Provider: "none"})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	_, err = p.Search(context.Background(), "anything", SearchOptions{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
