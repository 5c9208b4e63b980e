package capture

import (
	"errors"
	"strings"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func TestApplyUpdate(t *testing.T) {
	t.Parallel()

	c := NewContext(ModeKnowledgeCapture)
	c.AddMissingInfo("Which jurisdiction?")
	err := c.Apply(Update{
		Topic:            ptr("Data retention for invoices"),
		Domain:           ptr(DomainCompliance),
		Geographic:       &Geographic{Scope: ScopeCountry, CountryCode: "nl"},
		ResolvedInfo:     []string{"Which jurisdiction?"},
		ResearchedTopics: []string{"invoice retention"},
		Confidence:       ptr(0.75),
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !c.ReadyToDraft() {
		t.Fatalf("expected ready context: %+v", c.Snapshot())
	}
	if geo, _ := c.Geographic(); geo.CountryCode != "NL" {
		t.Fatalf("expected normalised country code, got %+v", geo)
	}
}

func TestApplyIsAllOrNothing(t *testing.T) {
	t.Parallel()

	c := NewContext(ModeKnowledgeCapture)
	err := c.Apply(Update{Topic: ptr("new topic"), Domain: ptr(Domain("astrology"))})
	if !errors.Is(err, ErrInvalidDomain) {
		t.Fatalf("expected ErrInvalidDomain, got %v", err)
	}
	if c.Topic() != "" {
		t.Fatalf("rejected update must not change the topic")
	}

	err = c.Apply(Update{Confidence: ptr(0.9), Geographic: &Geographic{Scope: ScopeCountry}})
	if !errors.Is(err, ErrInvalidGeographic) {
		t.Fatalf("expected ErrInvalidGeographic, got %v", err)
	}
	if c.Confidence() != 0 {
		t.Fatalf("rejected update must not change confidence")
	}
}

func TestExtractUpdates(t *testing.T) {
	t.Parallel()

	text := "Here is what I have so far.\n" +
		`[capture]{"topic":"Payroll tax","domain":"accounting","add_missing_info":["Which state?"],"confidence":0.4}[/capture]` +
		"\nWhich state are you in?"
	visible, updates, err := ExtractUpdates(text)
	if err != nil {
		t.Fatalf("ExtractUpdates: %v", err)
	}
	if strings.Contains(visible, "[capture]") || !strings.Contains(visible, "Which state are you in?") {
		t.Fatalf("unexpected visible text: %q", visible)
	}
	if len(updates) != 1 || *updates[0].Topic != "Payroll tax" || *updates[0].Confidence != 0.4 {
		t.Fatalf("unexpected updates: %+v", updates)
	}
}

func TestExtractUpdatesMalformed(t *testing.T) {
	t.Parallel()

	text := "before [capture]{not json}[/capture] middle [capture]{\"topic\":\"x\"}[/capture] after [capture]{\"confidence\":"
	visible, updates, err := ExtractUpdates(text)
	if err == nil {
		t.Fatalf("expected decode and unterminated errors")
	}
	if visible != "before  middle  after" {
		t.Fatalf("unexpected visible text: %q", visible)
	}
	if len(updates) != 1 || *updates[0].Topic != "x" {
		t.Fatalf("expected the valid block to survive, got %+v", updates)
	}

	plain, none, err := ExtractUpdates("no protocol here")
	if err != nil || plain != "no protocol here" || len(none) != 0 {
		t.Fatalf("unexpected result for plain text: %q %v %v", plain, none, err)
	}
}
