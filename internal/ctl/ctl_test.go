package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"frameworks/almanac/internal/drafts"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
)

type fakeReviewer struct {
	entries  []drafts.PendingEntry
	approved []string
	edits    []*drafts.Edit
	rejected map[string]string
	err      error
	released bool
}

func (f *fakeReviewer) ListPending(_ context.Context, tenantID string) ([]drafts.PendingEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []drafts.PendingEntry
	for _, e := range f.entries {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeReviewer) Approve(_ context.Context, tenantID, pendingID, reviewerID string, edit *drafts.Edit) (drafts.Document, error) {
	if f.err != nil {
		return drafts.Document{}, f.err
	}
	f.approved = append(f.approved, pendingID)
	f.edits = append(f.edits, edit)
	title := "Original"
	if edit != nil && edit.Title != nil {
		title = *edit.Title
	}
	return drafts.Document{ID: "doc-1", TenantID: tenantID, Title: title, ApprovedBy: reviewerID}, nil
}

func (f *fakeReviewer) Reject(_ context.Context, _, pendingID, _, reason string) error {
	if f.err != nil {
		return f.err
	}
	if f.rejected == nil {
		f.rejected = map[string]string{}
	}
	f.rejected[pendingID] = reason
	return nil
}

func run(t *testing.T, reviewer *fakeReviewer, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	open := func(context.Context, *viper.Viper) (Reviewer, func(), error) {
		return reviewer, func() { reviewer.released = true }, nil
	}
	root := NewRootCmd(open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPendingList(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	reviewer := &fakeReviewer{entries: []drafts.PendingEntry{
		{ID: "p-1", TenantID: "acme", Title: "GDPR retention", SourceType: drafts.SourceConversation, CreatedAt: created, Metadata: drafts.Metadata{NeedsReview: true}},
		{ID: "p-2", TenantID: "other", Title: "Not ours", CreatedAt: created},
	}}

	out, err := run(t, reviewer, "pending", "list", "--tenant", "acme")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "p-1") || !strings.Contains(out, "needs review") || !strings.Contains(out, "GDPR retention") {
		t.Fatalf("unexpected table:\n%s", out)
	}
	if strings.Contains(out, "p-2") {
		t.Fatalf("listed another tenant's entry:\n%s", out)
	}
	if !reviewer.released {
		t.Fatal("reviewer was not released")
	}

	out, err = run(t, reviewer, "pending", "list", "--tenant", "acme", "--output", "json")
	if err != nil {
		t.Fatalf("list json: %v", err)
	}
	var entries []drafts.PendingEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(entries) != 1 || entries[0].ID != "p-1" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	out, err = run(t, &fakeReviewer{}, "pending", "list", "--tenant", "acme")
	if err != nil || !strings.Contains(out, "No pending entries.") {
		t.Fatalf("empty list: %v %q", err, out)
	}
}

func TestPendingRequiresTenant(t *testing.T) {
	t.Setenv("ALMANAC_TENANT", "")
	if _, err := run(t, &fakeReviewer{}, "pending", "list"); err == nil || !strings.Contains(err.Error(), "tenant is required") {
		t.Fatalf("expected tenant error, got %v", err)
	}
}

func TestPendingTenantFromEnv(t *testing.T) {
	t.Setenv("ALMANAC_TENANT", "acme")
	reviewer := &fakeReviewer{entries: []drafts.PendingEntry{{ID: "p-1", TenantID: "acme", Title: "x"}}}
	out, err := run(t, reviewer, "pending", "list")
	if err != nil || !strings.Contains(out, "p-1") {
		t.Fatalf("env tenant: %v %q", err, out)
	}
}

func TestPendingApprove(t *testing.T) {
	reviewer := &fakeReviewer{}
	out, err := run(t, reviewer, "pending", "approve", "p-1", "--tenant", "acme", "--reviewer", "rev")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !strings.Contains(out, "Approved p-1 as document doc-1") {
		t.Fatalf("unexpected output %q", out)
	}
	if reviewer.edits[0] != nil {
		t.Fatalf("approval without edit flags should pass a nil edit, got %+v", reviewer.edits[0])
	}

	_, err = run(t, reviewer, "pending", "approve", "p-2", "--tenant", "acme", "--reviewer", "rev", "--title", "Better", "--tag", "gdpr", "--tag", "eu")
	if err != nil {
		t.Fatalf("approve with edit: %v", err)
	}
	edit := reviewer.edits[1]
	if edit == nil || edit.Title == nil || *edit.Title != "Better" || edit.Content != nil {
		t.Fatalf("unexpected edit %+v", edit)
	}
	if diff := cmp.Diff([]string{"gdpr", "eu"}, edit.Tags); diff != "" {
		t.Fatalf("tags (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"p-1", "p-2"}, reviewer.approved); diff != "" {
		t.Fatalf("approved (-want +got):\n%s", diff)
	}
}

func TestPendingApproveErrors(t *testing.T) {
	if _, err := run(t, &fakeReviewer{}, "pending", "approve", "p-1", "--tenant", "acme"); err == nil || !strings.Contains(err.Error(), "--reviewer") {
		t.Fatalf("expected reviewer error, got %v", err)
	}

	partial := &drafts.PartialApprovalError{PendingID: "p-1", DocumentID: "doc-9", Err: errors.New("conn reset")}
	_, err := run(t, &fakeReviewer{err: partial}, "pending", "approve", "p-1", "--tenant", "acme", "--reviewer", "rev")
	if !errors.Is(err, drafts.ErrPartialApproval) || !strings.Contains(err.Error(), "doc-9") {
		t.Fatalf("expected partial approval error naming the document, got %v", err)
	}

	_, err = run(t, &fakeReviewer{err: drafts.ErrAlreadyResolved}, "pending", "approve", "p-1", "--tenant", "acme", "--reviewer", "rev")
	if !errors.Is(err, drafts.ErrAlreadyResolved) {
		t.Fatalf("expected already resolved, got %v", err)
	}
}

func TestPendingReject(t *testing.T) {
	reviewer := &fakeReviewer{}
	out, err := run(t, reviewer, "pending", "reject", "p-1", "--tenant", "acme", "--reviewer", "rev", "--reason", "duplicate")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if reviewer.rejected["p-1"] != "duplicate" || !strings.Contains(out, "Rejected p-1") {
		t.Fatalf("unexpected reject result %v %q", reviewer.rejected, out)
	}

	_, err = run(t, &fakeReviewer{err: drafts.ErrNotFound}, "pending", "reject", "p-1", "--tenant", "acme", "--reviewer", "rev")
	if !errors.Is(err, drafts.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	out, err := run(t, nil, "classify", "please", "remember", "this", "policy")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !strings.Contains(out, "category: knowledge_ingestion") || !strings.Contains(out, "model: standard") {
		t.Fatalf("unexpected classify output:\n%s", out)
	}

	out, err = run(t, nil, "classify", "what is the retention period?", "--output", "json")
	if err != nil {
		t.Fatalf("classify json: %v", err)
	}
	var report routeReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if report.Category != "query" || report.Profile.Key != "economy" || report.Fallback.Key != "standard" {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestRoute(t *testing.T) {
	out, err := run(t, nil, "route", "verification", "--escalate")
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if !strings.Contains(out, "escalation: premium") || !strings.Contains(out, "fallback: economy") {
		t.Fatalf("unexpected route output:\n%s", out)
	}

	if _, err := run(t, nil, "route", "poetry"); err == nil {
		t.Fatal("expected unknown category error")
	}

	bad := filepath.Join(t.TempDir(), "routing.yaml")
	if err := os.WriteFile(bad, []byte("routes: [oops"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, nil, "route", "query", "--routing-file", bad); err == nil {
		t.Fatal("expected invalid routing file to fail")
	}
}

func TestVersion(t *testing.T) {
	out, err := run(t, nil, "version")
	if err != nil || !strings.HasPrefix(out, "almanacctl ") {
		t.Fatalf("version: %v %q", err, out)
	}
}
