package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

const (
	maxRetries     = 3
	retryBaseDelay = 100 * time.Millisecond
	retryMaxDelay  = 2 * time.Second
)

// doWithRetry sends the request built by newRequest, retrying on transport
// errors, 429 and 5xx responses. newRequest is called once per attempt so the
// body reader is fresh each time.
//
//nolint:bodyclose // the final response is returned to the caller
func doWithRetry(ctx context.Context, client *http.Client, newRequest func() (*http.Request, error)) (*http.Response, error) {
	policy := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(retryBaseDelay, retryMaxDelay).
		WithMaxRetries(maxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return ctx.Err() == nil
			}
			return retryableStatus(resp.StatusCode)
		}).
		OnRetry(func(e failsafe.ExecutionEvent[*http.Response]) {
			if resp := e.LastResult(); resp != nil && resp.Body != nil {
				resp.Body.Close()
			}
		}).
		Build()

	resp, err := failsafe.With(policy).WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := newRequest()
		if err != nil {
			return nil, err
		}
		return client.Do(req)
	})
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	return resp, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// postJSON POSTs payload with retries and returns the response once it is
// 2xx. A non-2xx body is folded into the error and the response is closed.
func postJSON(ctx context.Context, client *http.Client, endpoint string, payload []byte, headers map[string]string) (*http.Response, error) {
	resp, err := doWithRetry(ctx, client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			if v != "" {
				req.Header.Set(k, v)
			}
		}
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}

// StatusError is a non-2xx response from a model or embedding endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

func bearer(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	return "Bearer " + apiKey
}
