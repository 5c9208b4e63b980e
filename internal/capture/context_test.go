package capture

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"
)

func readyContext(t *testing.T) *Context {
	t.Helper()
	c := NewContext(ModeKnowledgeCapture)
	c.SetTopic("EU VAT registration for SaaS")
	if err := c.SetDomain(DomainAccounting); err != nil {
		t.Fatalf("SetDomain: %v", err)
	}
	if err := c.SetGeographic(Geographic{Scope: ScopeRegional, Region: "European Union"}); err != nil {
		t.Fatalf("SetGeographic: %v", err)
	}
	c.UpdateConfidence(0.8)
	return c
}

func TestReadyToDraftRequiresEveryField(t *testing.T) {
	t.Parallel()

	if !readyContext(t).ReadyToDraft() {
		t.Fatalf("expected fully populated context to be ready")
	}

	cases := []struct {
		name   string
		mutate func(c *Context)
	}{
		{"topic", func(c *Context) { c.SetTopic("  ") }},
		{"domain", func(c *Context) { _ = c.SetDomain("") }},
		{"geographic", func(c *Context) { c.ClearGeographic() }},
		{"missing info", func(c *Context) { c.AddMissingInfo("Which tax year?") }},
		{"confidence", func(c *Context) { c.UpdateConfidence(0.699) }},
		{"mode", func(c *Context) { c.mode = ModeValidation }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := readyContext(t)
			tc.mutate(c)
			if c.ReadyToDraft() {
				t.Fatalf("expected not ready after clearing %s", tc.name)
			}
		})
	}
}

func TestReadyToDraftConfidenceBoundary(t *testing.T) {
	t.Parallel()

	c := readyContext(t)
	c.UpdateConfidence(0.7)
	if !c.ReadyToDraft() {
		t.Fatalf("confidence 0.7 should be ready")
	}
	c.UpdateConfidence(0.699)
	if c.ReadyToDraft() {
		t.Fatalf("confidence 0.699 should not be ready")
	}
}

func TestReadyToDraftIsRecomputed(t *testing.T) {
	t.Parallel()

	c := readyContext(t)
	c.AddMissingInfo("Which threshold applies?")
	if c.ReadyToDraft() {
		t.Fatalf("expected open question to block readiness")
	}
	if !c.RemoveMissingInfo("Which threshold applies?") {
		t.Fatalf("expected question to be removed")
	}
	if !c.ReadyToDraft() {
		t.Fatalf("expected readiness once question resolved")
	}
}

func TestReadyToDraftProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := NewContext(rapid.SampledFrom([]Mode{ModeQuery, ModeKnowledgeCapture, ModeValidation, ModeInvestigation}).Draw(t, "mode"))
		hasTopic := rapid.Bool().Draw(t, "hasTopic")
		hasDomain := rapid.Bool().Draw(t, "hasDomain")
		hasGeo := rapid.Bool().Draw(t, "hasGeo")
		missing := rapid.IntRange(0, 2).Draw(t, "missing")
		confidence := rapid.Float64Range(0, 1).Draw(t, "confidence")

		if hasTopic {
			c.SetTopic("topic")
		}
		if hasDomain {
			_ = c.SetDomain(rapid.SampledFrom(Domains).Draw(t, "domain"))
		}
		if hasGeo {
			_ = c.SetGeographic(Geographic{Scope: ScopeGlobal})
		}
		for i := 0; i < missing; i++ {
			c.AddMissingInfo(string(rune('a' + i)))
		}
		c.UpdateConfidence(confidence)

		want := c.Mode() == ModeKnowledgeCapture && hasTopic && hasDomain && hasGeo && missing == 0 && confidence >= ReadyConfidence
		if got := c.ReadyToDraft(); got != want {
			t.Fatalf("ReadyToDraft()=%v want %v (%+v)", got, want, c.Snapshot())
		}
	})
}

func TestSwitchModeResetsEverything(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		c := readyContext(t)
		c.AddMissingInfo("open question")
		c.AddResearchedTopic("vat")
		c.AttachDraft(Draft{Title: "draft"}, "pending-1")

		target := rapid.SampledFrom([]Mode{ModeQuery, ModeKnowledgeCapture, ModeValidation, ModeInvestigation}).Draw(rt, "target")
		if err := c.SwitchMode(target); err != nil {
			rt.Fatalf("SwitchMode: %v", err)
		}
		if c.Mode() != target || c.Topic() != "" || c.Domain() != "" || c.Confidence() != 0 {
			rt.Fatalf("unexpected state after switch: %+v", c.Snapshot())
		}
		if len(c.MissingInfo()) != 0 || len(c.ResearchedTopics()) != 0 {
			rt.Fatalf("expected lists to be emptied: %+v", c.Snapshot())
		}
		if _, ok := c.Draft(); ok || c.PendingEntryID() != "" {
			rt.Fatalf("expected draft to be discarded")
		}
		if _, ok := c.Geographic(); ok {
			rt.Fatalf("expected geographic to be cleared")
		}
		if c.ReadyToDraft() {
			rt.Fatalf("expected not ready after switch")
		}
	})
}

func TestSwitchModeRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	c := readyContext(t)
	if err := c.SwitchMode("chaos"); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
	if !c.ReadyToDraft() {
		t.Fatalf("rejected switch must not touch the context")
	}
}

func TestResetKeepsMode(t *testing.T) {
	t.Parallel()

	c := readyContext(t)
	c.Reset()
	if c.Mode() != ModeKnowledgeCapture {
		t.Fatalf("expected mode to survive reset, got %s", c.Mode())
	}
	if c.Topic() != "" || c.ReadyToDraft() {
		t.Fatalf("expected fields cleared: %+v", c.Snapshot())
	}
}

func TestMutatorValidation(t *testing.T) {
	t.Parallel()

	c := NewContext(ModeKnowledgeCapture)
	if err := c.SetDomain("astrology"); !errors.Is(err, ErrInvalidDomain) {
		t.Fatalf("expected ErrInvalidDomain, got %v", err)
	}
	if err := c.SetDomain(" Legal "); err != nil || c.Domain() != DomainLegal {
		t.Fatalf("expected normalised domain, got %q (%v)", c.Domain(), err)
	}

	invalid := []Geographic{
		{Scope: "planetary"},
		{Scope: ScopeCountry},
		{Scope: ScopeCountry, CountryCode: "DEU"},
		{Scope: ScopeRegional},
	}
	for _, g := range invalid {
		if err := c.SetGeographic(g); !errors.Is(err, ErrInvalidGeographic) {
			t.Fatalf("expected ErrInvalidGeographic for %+v, got %v", g, err)
		}
	}
	if err := c.SetGeographic(Geographic{Scope: ScopeCountry, CountryCode: "de", State: " Bavaria "}); err != nil {
		t.Fatalf("SetGeographic: %v", err)
	}
	geo, _ := c.Geographic()
	if diff := cmp.Diff(Geographic{Scope: ScopeCountry, CountryCode: "DE", State: "Bavaria"}, geo); diff != "" {
		t.Fatalf("geographic mismatch (-want +got):\n%s", diff)
	}

	for _, tc := range []struct{ in, want float64 }{{-0.5, 0}, {1.7, 1}, {0.42, 0.42}, {math.NaN(), 0}} {
		c.UpdateConfidence(tc.in)
		if c.Confidence() != tc.want {
			t.Fatalf("UpdateConfidence(%v) stored %v, want %v", tc.in, c.Confidence(), tc.want)
		}
	}

	c.AddMissingInfo("a")
	c.AddMissingInfo(" a ")
	c.AddMissingInfo("")
	if len(c.MissingInfo()) != 1 {
		t.Fatalf("expected deduplicated missing info, got %v", c.MissingInfo())
	}
	if c.RemoveMissingInfo("b") {
		t.Fatalf("removing an unknown question should report false")
	}

	c.AddResearchedTopic("b")
	c.AddResearchedTopic("a")
	c.AddResearchedTopic("b")
	if diff := cmp.Diff([]string{"a", "b"}, c.ResearchedTopics()); diff != "" {
		t.Fatalf("researched topics mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildDraft(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	prev := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = prev })

	notReady := NewContext(ModeKnowledgeCapture)
	if _, err := notReady.BuildDraft(DraftInput{Content: "x"}); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	c := readyContext(t)
	if _, err := c.BuildDraft(DraftInput{Content: "  "}); !errors.Is(err, ErrEmptyDraft) {
		t.Fatalf("expected ErrEmptyDraft, got %v", err)
	}

	draft, err := c.BuildDraft(DraftInput{
		Summary:    "Thresholds and OSS",
		Content:    "Non-EU sellers register via OSS.",
		Tags:       []string{"vat", "", "vat", "oss"},
		SourceURLs: []string{"https://europa.eu/vat"},
	})
	if err != nil {
		t.Fatalf("BuildDraft: %v", err)
	}
	want := Draft{
		Title:   "EU VAT registration for SaaS",
		Summary: "Thresholds and OSS",
		Content: "Non-EU sellers register via OSS.",
		Metadata: DraftMetadata{
			Domain:      DomainAccounting,
			Geographic:  Geographic{Scope: ScopeRegional, Region: "European Union"},
			Tags:        []string{"vat", "oss"},
			SourceURLs:  []string{"https://europa.eu/vat"},
			Confidence:  0.8,
			NeedsReview: true,
			CreatedAt:   fixed,
		},
	}
	if diff := cmp.Diff(want, draft); diff != "" {
		t.Fatalf("draft mismatch (-want +got):\n%s", diff)
	}
	if _, ok := c.Draft(); ok {
		t.Fatalf("BuildDraft must not attach the draft")
	}
	c.AttachDraft(draft, "pending-42")
	if got, ok := c.Draft(); !ok || got.Title != want.Title || c.PendingEntryID() != "pending-42" {
		t.Fatalf("expected draft attached")
	}
	if c.Mode() != ModeKnowledgeCapture {
		t.Fatalf("drafting must not change the mode")
	}
}
