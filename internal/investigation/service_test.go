package investigation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"frameworks/almanac/pkg/logging"
	"frameworks/almanac/pkg/search"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubProvider struct {
	mu      sync.Mutex
	results map[string][]search.Result
	errs    map[string]error
	limits  map[string]int
	delay   time.Duration
}

func (p *stubProvider) Search(ctx context.Context, query string, opts search.SearchOptions) ([]search.Result, error) {
	p.mu.Lock()
	if p.limits == nil {
		p.limits = map[string]int{}
	}
	p.limits[query] = opts.Limit
	results, err := p.results[query], p.errs[query]
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return results, err
}

func TestInvestigateTopicMergesAndDedupes(t *testing.T) {
	provider := &stubProvider{results: map[string][]search.Result{
		"vat registration": {
			{Title: "HMRC VAT", URL: "https://www.gov.uk/vat-registration", Score: 0.9},
			{Title: "Blog", URL: "https://blog.example.com/vat", Score: 0.4},
		},
		"what is the threshold?": {
			{Title: "HMRC VAT again", URL: "https://www.gov.uk/vat-registration", Score: 0.8},
			{Title: "Forum", URL: "https://forum.example.net/t/1", Score: 0.3},
		},
		"who must register?": {
			{Title: "Wiki", URL: "https://en.wikipedia.org/wiki/VAT", Score: 0.7},
		},
	}}
	svc := NewService(Config{Provider: provider, Logger: logging.NewDiscardLogger()})

	res := svc.InvestigateTopic(context.Background(), "vat registration", []string{"what is the threshold?", "", "who must register?"})

	if len(res.Degraded) != 0 {
		t.Fatalf("unexpected degradation: %v", res.Degraded)
	}
	wantOrder := []string{
		"https://www.gov.uk/vat-registration",
		"https://blog.example.com/vat",
		"https://forum.example.net/t/1",
		"https://en.wikipedia.org/wiki/VAT",
	}
	if len(res.Sources) != len(wantOrder) {
		t.Fatalf("expected %d sources, got %d: %+v", len(wantOrder), len(res.Sources), res.Sources)
	}
	for i, url := range wantOrder {
		if res.Sources[i].URL != url {
			t.Fatalf("source %d: expected %s, got %s", i, url, res.Sources[i].URL)
		}
	}
	if res.Sources[0].Title != "HMRC VAT" {
		t.Fatalf("expected first occurrence to win, got %q", res.Sources[0].Title)
	}
	if len(res.QuestionFindings) != 2 || res.QuestionFindings[0].Question != "what is the threshold?" {
		t.Fatalf("unexpected question findings: %+v", res.QuestionFindings)
	}
	if len(res.Reliable) != 2 || len(res.Questionable) != 2 {
		t.Fatalf("unexpected partition: reliable=%d questionable=%d", len(res.Reliable), len(res.Questionable))
	}
	if provider.limits["vat registration"] != defaultTopicLimit || provider.limits["who must register?"] != defaultQuestionLimit {
		t.Fatalf("unexpected limits: %v", provider.limits)
	}
}

func TestInvestigateTopicDegradesPerCall(t *testing.T) {
	provider := &stubProvider{
		results: map[string][]search.Result{
			"q1": {{Title: "ISO", URL: "https://www.iso.org/standard/1"}},
		},
		errs: map[string]error{
			"topic": errors.New("upstream 503"),
		},
	}
	svc := NewService(Config{Provider: provider, Logger: logging.NewDiscardLogger()})

	res := svc.InvestigateTopic(context.Background(), "topic", []string{"q1"})
	if len(res.Degraded) != 1 || !strings.Contains(res.Degraded[0], "upstream 503") {
		t.Fatalf("expected one degraded note, got %v", res.Degraded)
	}
	if len(res.MainFindings) != 0 {
		t.Fatalf("expected empty main findings, got %+v", res.MainFindings)
	}
	if len(res.Sources) != 1 || res.Sources[0].URL != "https://www.iso.org/standard/1" {
		t.Fatalf("unexpected sources: %+v", res.Sources)
	}
}

func TestInvestigateTopicWithoutCredentials(t *testing.T) {
	svc := NewService(Config{Provider: search.NewUnconfigured("TAVILY_API_KEY is not set")})

	res := svc.InvestigateTopic(context.Background(), "topic", []string{"a", "b"})
	if len(res.Sources) != 0 {
		t.Fatalf("expected no sources, got %+v", res.Sources)
	}
	if len(res.Degraded) != 3 {
		t.Fatalf("expected three degraded notes, got %v", res.Degraded)
	}
	for _, note := range res.Degraded {
		if !strings.Contains(note, "not configured") {
			t.Fatalf("unexpected note: %s", note)
		}
	}

	nilProvider := NewService(Config{})
	if res := nilProvider.InvestigateTopic(context.Background(), "topic", nil); len(res.Degraded) != 1 {
		t.Fatalf("expected nil provider to degrade, got %v", res.Degraded)
	}
}

func TestInvestigateTopicHonoursCancellation(t *testing.T) {
	provider := &stubProvider{delay: 5 * time.Second}
	svc := NewService(Config{Provider: provider, Concurrency: 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	res := svc.InvestigateTopic(ctx, "topic", []string{"a", "b", "c"})
	if time.Since(start) > time.Second {
		t.Fatalf("investigation ignored cancellation")
	}
	if len(res.Degraded) != 4 {
		t.Fatalf("expected every call to degrade, got %v", res.Degraded)
	}
}

func TestInvestigateTopicEmptyInput(t *testing.T) {
	svc := NewService(Config{Provider: &stubProvider{}})
	res := svc.InvestigateTopic(context.Background(), "  ", []string{"", " "})
	if len(res.Sources) != 0 || len(res.Degraded) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestFormatInvestigationContext(t *testing.T) {
	var questionable []search.Result
	for i := 0; i < 8; i++ {
		questionable = append(questionable, search.Result{Title: fmt.Sprintf("Blog %d", i), URL: fmt.Sprintf("https://blog%d.example.com", i)})
	}
	reliable := []search.Result{{Title: "IRS", URL: "https://www.irs.gov/x", Content: "Form 1099 rules", Score: 0.88}}
	res := Result{
		Topic:            "1099 filing",
		QuestionFindings: []QuestionFinding{{Question: "deadline?", Results: reliable}},
		Reliable:         reliable,
		Questionable:     questionable,
	}
	res.Sources = append(append([]search.Result(nil), reliable...), questionable...)

	out := FormatInvestigationContext(res)
	reliableAt := strings.Index(out, "Reliable sources:")
	findingsAt := strings.Index(out, `Findings for "deadline?"`)
	questionableAt := strings.Index(out, "Questionable sources")
	if reliableAt < 0 || findingsAt < reliableAt || questionableAt < findingsAt {
		t.Fatalf("unexpected section order:\n%s", out)
	}
	if !strings.Contains(out, "[1. IRS | Relevance: 0.88]") {
		t.Fatalf("missing reliable entry:\n%s", out)
	}
	if !strings.Contains(out, "Blog 4") || strings.Contains(out, "Blog 5") {
		t.Fatalf("expected questionable sources capped at five:\n%s", out)
	}

	untitled := []search.Result{{URL: "https://www.ICO.org.uk/for-organisations/"}}
	out = FormatInvestigationContext(Result{Topic: "erasure", Sources: untitled, Questionable: untitled})
	if !strings.Contains(out, "- www.ico.org.uk (https://www.ICO.org.uk/for-organisations/)") {
		t.Fatalf("untitled result should be labelled by host:\n%s", out)
	}

	if got := FormatInvestigationContext(Result{Topic: "nothing"}); got != `No web sources found for "nothing".` {
		t.Fatalf("unexpected empty rendering: %q", got)
	}
}
