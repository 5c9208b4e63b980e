package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// ErrNotConfigured is returned by providers that have no usable credentials
// or endpoint. Callers treat it like any other transient search failure.
var ErrNotConfigured = errors.New("search provider not configured")

// Provider runs one web search.
type Provider interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]Result, error)
}

type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content,omitempty"`
	Score   float64 `json:"score"`
}

// Host returns the lower-cased host of the result URL, or "" when it does not
// parse.
func (r Result) Host() string {
	u, err := url.Parse(strings.TrimSpace(r.URL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// SearchOptions controls search behavior across providers. SearchDepth is
// "basic" or "advanced"; providers without a depth knob ignore it.
type SearchOptions struct {
	Limit       int
	SearchDepth string
}

type unconfigured struct {
	reason string
}

// NewUnconfigured returns a provider whose every search fails with
// ErrNotConfigured.
func NewUnconfigured(reason string) Provider {
	return unconfigured{reason: reason}
}

func (u unconfigured) Search(context.Context, string, SearchOptions) ([]Result, error) {
	if u.reason == "" {
		return nil, ErrNotConfigured
	}
	return nil, fmt.Errorf("%w: %s", ErrNotConfigured, u.reason)
}

const (
	searchRetries    = 2
	searchRetryDelay = 200 * time.Millisecond
	searchRetryMax   = time.Second
)

// backend is the HTTP plumbing shared by the providers.
type backend struct {
	name   string
	client *http.Client
}

func newBackend(name string, timeout time.Duration) backend {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return backend{name: name, client: &http.Client{Timeout: timeout}}
}

// doJSON sends the request built by newRequest, retrying rate limits and
// server errors, and decodes a 2xx JSON body into out.
func (b backend) doJSON(ctx context.Context, newRequest func() (*http.Request, error), out any) error {
	policy := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(searchRetryDelay, searchRetryMax).
		WithMaxRetries(searchRetries).
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return ctx.Err() == nil
			}
			return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
		}).
		OnRetry(func(e failsafe.ExecutionEvent[*http.Response]) {
			if resp := e.LastResult(); resp != nil && resp.Body != nil {
				resp.Body.Close()
			}
		}).
		ReturnLastFailure().
		Build()

	resp, err := failsafe.With(policy).WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := newRequest()
		if err != nil {
			return nil, err
		}
		return b.client.Do(req)
	})
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return fmt.Errorf("%s request failed: %w", b.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s request failed with status %d: %s", b.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", b.name, err)
	}
	return nil
}

// limitResults drops results past limit and any entry without a URL.
func limitResults(results []Result, limit int) []Result {
	out := results[:0]
	for _, r := range results {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
