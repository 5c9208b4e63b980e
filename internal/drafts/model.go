package drafts

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"frameworks/almanac/internal/capture"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusEdited   Status = "edited"
)

// Resolved reports whether the entry has left pending. Resolved entries are
// immutable.
func (s Status) Resolved() bool {
	return s != StatusPending
}

type SourceType string

const (
	SourceDocument     SourceType = "document"
	SourceWeb          SourceType = "web"
	SourceUserInput    SourceType = "user_input"
	SourceConversation SourceType = "conversation"
)

func (s SourceType) Valid() bool {
	switch s {
	case SourceDocument, SourceWeb, SourceUserInput, SourceConversation:
		return true
	}
	return false
}

// Metadata is the structured part of a pending entry that has no column of
// its own. It is stored as JSON but always decoded into this shape.
type Metadata struct {
	Domain           string              `json:"domain,omitempty"`
	Geographic       *capture.Geographic `json:"geographic,omitempty"`
	SourceURLs       []string            `json:"source_urls,omitempty"`
	ResearchedTopics []string            `json:"researched_topics,omitempty"`
	Confidence       float64             `json:"confidence,omitempty"`
	NeedsReview      bool                `json:"needs_review,omitempty"`
}

type PendingEntry struct {
	ID                string     `json:"id"`
	TenantID          string     `json:"tenant_id"`
	UserID            string     `json:"user_id"`
	ConversationID    string     `json:"conversation_id,omitempty"`
	Title             string     `json:"title"`
	Summary           string     `json:"summary,omitempty"`
	Content           string     `json:"content"`
	SourceType        SourceType `json:"source_type"`
	SourceURL         string     `json:"source_url,omitempty"`
	Category          string     `json:"category,omitempty"`
	Tags              []string   `json:"tags"`
	VerificationNotes string     `json:"verification_notes,omitempty"`
	Metadata          Metadata   `json:"metadata"`
	Status            Status     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ReviewedAt        *time.Time `json:"reviewed_at,omitempty"`
	ReviewerID        string     `json:"reviewer_id,omitempty"`
}

// NewEntry is a pending entry before the server assigns id, status and
// timestamps.
type NewEntry struct {
	TenantID          string     `json:"-"`
	UserID            string     `json:"-"`
	ConversationID    string     `json:"conversation_id,omitempty"`
	Title             string     `json:"title"`
	Summary           string     `json:"summary,omitempty"`
	Content           string     `json:"content"`
	SourceType        SourceType `json:"source_type"`
	SourceURL         string     `json:"source_url,omitempty"`
	Category          string     `json:"category,omitempty"`
	Tags              []string   `json:"tags,omitempty"`
	VerificationNotes string     `json:"verification_notes,omitempty"`
	Metadata          Metadata   `json:"metadata"`
}

// FromDraft turns a conversation draft into a pending entry request.
func FromDraft(tenantID, userID, conversationID string, d capture.Draft, researched []string) NewEntry {
	geo := d.Metadata.Geographic
	entry := NewEntry{
		TenantID:       tenantID,
		UserID:         userID,
		ConversationID: conversationID,
		Title:          d.Title,
		Summary:        d.Summary,
		Content:        d.Content,
		SourceType:     SourceConversation,
		Category:       string(d.Metadata.Domain),
		Tags:           d.Metadata.Tags,
		Metadata: Metadata{
			Domain:           string(d.Metadata.Domain),
			Geographic:       &geo,
			SourceURLs:       d.Metadata.SourceURLs,
			ResearchedTopics: researched,
			Confidence:       d.Metadata.Confidence,
			NeedsReview:      d.Metadata.NeedsReview,
		},
	}
	if len(d.Metadata.SourceURLs) > 0 {
		entry.SourceURL = d.Metadata.SourceURLs[0]
	}
	return entry
}

// Edit carries reviewer changes applied during approval. Nil fields keep the
// submitted value.
type Edit struct {
	Title      *string     `json:"title,omitempty"`
	Summary    *string     `json:"summary,omitempty"`
	Content    *string     `json:"content,omitempty"`
	SourceType *SourceType `json:"source_type,omitempty"`
	SourceURL  *string     `json:"source_url,omitempty"`
	Category   *string     `json:"category,omitempty"`
	Tags       []string    `json:"tags,omitempty"`
}

func (e *Edit) empty() bool {
	return e == nil || (e.Title == nil && e.Summary == nil && e.Content == nil && e.SourceType == nil &&
		e.SourceURL == nil && e.Category == nil && e.Tags == nil)
}

func (e *Edit) apply(entry *PendingEntry) {
	if e == nil {
		return
	}
	if e.Title != nil {
		entry.Title = strings.TrimSpace(*e.Title)
	}
	if e.Summary != nil {
		entry.Summary = strings.TrimSpace(*e.Summary)
	}
	if e.Content != nil {
		entry.Content = strings.TrimSpace(*e.Content)
	}
	if e.SourceType != nil {
		entry.SourceType = *e.SourceType
	}
	if e.SourceURL != nil {
		entry.SourceURL = strings.TrimSpace(*e.SourceURL)
	}
	if e.Category != nil {
		entry.Category = strings.TrimSpace(*e.Category)
	}
	if e.Tags != nil {
		entry.Tags = e.Tags
	}
}

// Document is an approved knowledge document. It is linked to the pending
// entry only through the review event.
type Document struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	AppID      string     `json:"app_id,omitempty"`
	Title      string     `json:"title"`
	Summary    string     `json:"summary,omitempty"`
	Content    string     `json:"content"`
	SourceType SourceType `json:"source_type"`
	SourceURL  string     `json:"source_url,omitempty"`
	Category   string     `json:"category,omitempty"`
	Tags       []string   `json:"tags"`
	Metadata   Metadata   `json:"metadata"`
	ApprovedBy string     `json:"approved_by"`
	ApprovedAt time.Time  `json:"approved_at"`
	Embedding  []float32  `json:"-"`
}

var (
	ErrNotFound        = errors.New("pending entry not found")
	ErrAlreadyResolved = errors.New("pending entry already resolved")
	ErrInvalidEntry    = errors.New("invalid pending entry")
	ErrPartialApproval = errors.New("partial approval")
)

// PartialApprovalError reports that the document was written but the pending
// entry could not be marked resolved. It needs manual reconciliation.
type PartialApprovalError struct {
	PendingID  string
	DocumentID string
	Err        error
}

func (e *PartialApprovalError) Error() string {
	return fmt.Sprintf("partial approval: document %s created but pending entry %s not updated: %v", e.DocumentID, e.PendingID, e.Err)
}

func (e *PartialApprovalError) Unwrap() error { return e.Err }

func (e *PartialApprovalError) Is(target error) bool { return target == ErrPartialApproval }

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidEntry, reason)
}
