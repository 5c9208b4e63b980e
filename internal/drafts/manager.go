package drafts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"frameworks/almanac/pkg/llm"
	"frameworks/almanac/pkg/logging"

	"github.com/google/uuid"
)

type ManagerConfig struct {
	Repository Repository
	Embedder   llm.EmbeddingClient
	Publisher  EventPublisher
	Logger     logging.Logger
	AppID      string
	Now        func() time.Time
}

type Manager struct {
	repo      Repository
	embedder  llm.EmbeddingClient
	publisher EventPublisher
	logger    logging.Logger
	appID     string
	now       func() time.Time
	newID     func() string
}

func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Repository == nil {
		return nil, errors.New("repository is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDiscardLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		repo:      cfg.Repository,
		embedder:  cfg.Embedder,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		appID:     cfg.AppID,
		now:       cfg.Now,
		newID:     uuid.NewString,
	}, nil
}

// CreatePendingEntry stores a new entry in pending status. Duplicates are
// allowed; review sorts them out.
func (m *Manager) CreatePendingEntry(ctx context.Context, in NewEntry) (PendingEntry, error) {
	if strings.TrimSpace(in.TenantID) == "" {
		return PendingEntry{}, invalid("tenant id is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return PendingEntry{}, invalid("content is required")
	}
	if in.SourceType != "" && !in.SourceType.Valid() {
		return PendingEntry{}, invalid(fmt.Sprintf("unknown source type %q", in.SourceType))
	}
	if err := ctx.Err(); err != nil {
		return PendingEntry{}, err
	}

	ts := m.now().UTC()
	entry := PendingEntry{
		ID:                m.newID(),
		TenantID:          strings.TrimSpace(in.TenantID),
		UserID:            in.UserID,
		ConversationID:    in.ConversationID,
		Title:             strings.TrimSpace(in.Title),
		Summary:           strings.TrimSpace(in.Summary),
		Content:           strings.TrimSpace(in.Content),
		SourceType:        in.SourceType,
		SourceURL:         strings.TrimSpace(in.SourceURL),
		Category:          strings.TrimSpace(in.Category),
		Tags:              in.Tags,
		VerificationNotes: in.VerificationNotes,
		Metadata:          in.Metadata,
		Status:            StatusPending,
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}
	if entry.Tags == nil {
		entry.Tags = []string{}
	}
	if err := m.repo.CreatePending(ctx, entry); err != nil {
		return PendingEntry{}, err
	}
	pendingCreatedTotal.WithLabelValues(string(entry.SourceType)).Inc()
	return entry, nil
}

func (m *Manager) Get(ctx context.Context, tenantID, id string) (PendingEntry, error) {
	return m.repo.GetPending(ctx, tenantID, id)
}

// ListPending returns the tenant's pending entries, newest first.
func (m *Manager) ListPending(ctx context.Context, tenantID string) ([]PendingEntry, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, invalid("tenant id is required")
	}
	return m.repo.ListPending(ctx, tenantID)
}

// Approve turns a pending entry into a knowledge document. With a
// transactional repository the document insert and the status change commit
// together. Otherwise they run in sequence and a failed status change after a
// successful insert is returned as *PartialApprovalError.
func (m *Manager) Approve(ctx context.Context, tenantID, pendingID, reviewerID string, edit *Edit) (Document, error) {
	if strings.TrimSpace(reviewerID) == "" {
		return Document{}, invalid("reviewer id is required")
	}
	entry, err := m.repo.GetPending(ctx, tenantID, pendingID)
	if err != nil {
		return Document{}, err
	}
	if entry.Status.Resolved() {
		reviewsTotal.WithLabelValues("approve", "already_resolved").Inc()
		return Document{}, ErrAlreadyResolved
	}

	edit.apply(&entry)
	if err := validateForApproval(entry); err != nil {
		return Document{}, err
	}

	reviewedAt := m.now().UTC()
	entry.Status = StatusApproved
	if !edit.empty() {
		entry.Status = StatusEdited
	}
	entry.ReviewerID = reviewerID
	entry.ReviewedAt = &reviewedAt
	entry.UpdatedAt = reviewedAt

	doc := Document{
		ID:         m.newID(),
		TenantID:   entry.TenantID,
		AppID:      m.appID,
		Title:      entry.Title,
		Summary:    entry.Summary,
		Content:    entry.Content,
		SourceType: entry.SourceType,
		SourceURL:  entry.SourceURL,
		Category:   entry.Category,
		Tags:       entry.Tags,
		Metadata:   entry.Metadata,
		ApprovedBy: reviewerID,
		ApprovedAt: reviewedAt,
	}
	doc.Embedding = m.embed(ctx, doc)

	if tx, ok := m.repo.(Transactor); ok {
		err = tx.WithinTx(ctx, func(repo Repository) error {
			return writeApproval(ctx, repo, doc, entry)
		})
		if err != nil {
			reviewsTotal.WithLabelValues("approve", "error").Inc()
			return Document{}, err
		}
	} else if err := m.approveTwoPhase(ctx, doc, entry); err != nil {
		return Document{}, err
	}

	reviewsTotal.WithLabelValues("approve", string(entry.Status)).Inc()
	m.publish(ctx, ReviewEvent{
		Type:       eventTypeFor(entry.Status),
		TenantID:   entry.TenantID,
		PendingID:  entry.ID,
		DocumentID: doc.ID,
		ReviewerID: reviewerID,
		Title:      doc.Title,
		OccurredAt: reviewedAt,
	})
	return doc, nil
}

func writeApproval(ctx context.Context, repo Repository, doc Document, entry PendingEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := repo.InsertDocument(ctx, doc); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return repo.ResolvePending(ctx, entry)
}

func (m *Manager) approveTwoPhase(ctx context.Context, doc Document, entry PendingEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.repo.InsertDocument(ctx, doc); err != nil {
		reviewsTotal.WithLabelValues("approve", "error").Inc()
		return err
	}
	// The document exists from here on; a cancelled context must not stop the
	// status write or the two records diverge.
	if err := m.repo.ResolvePending(context.WithoutCancel(ctx), entry); err != nil {
		partialApprovalsTotal.Inc()
		m.logger.WithError(err).WithFields(logging.Fields{
			"tenant_id":   entry.TenantID,
			"pending_id":  entry.ID,
			"document_id": doc.ID,
		}).Error("Knowledge document created but pending entry not resolved; manual reconciliation required")
		return &PartialApprovalError{PendingID: entry.ID, DocumentID: doc.ID, Err: err}
	}
	return nil
}

// Reject marks a pending entry rejected and records the reason. No document
// is created.
func (m *Manager) Reject(ctx context.Context, tenantID, pendingID, reviewerID, reason string) error {
	if strings.TrimSpace(reviewerID) == "" {
		return invalid("reviewer id is required")
	}
	entry, err := m.repo.GetPending(ctx, tenantID, pendingID)
	if err != nil {
		return err
	}
	if entry.Status.Resolved() {
		reviewsTotal.WithLabelValues("reject", "already_resolved").Inc()
		return ErrAlreadyResolved
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	reviewedAt := m.now().UTC()
	entry.Status = StatusRejected
	entry.ReviewerID = reviewerID
	entry.ReviewedAt = &reviewedAt
	entry.UpdatedAt = reviewedAt
	if reason = strings.TrimSpace(reason); reason != "" {
		entry.VerificationNotes = reason
	}
	if err := m.repo.ResolvePending(ctx, entry); err != nil {
		reviewsTotal.WithLabelValues("reject", "error").Inc()
		return err
	}

	reviewsTotal.WithLabelValues("reject", string(StatusRejected)).Inc()
	m.publish(ctx, ReviewEvent{
		Type:       EventRejected,
		TenantID:   entry.TenantID,
		PendingID:  entry.ID,
		ReviewerID: reviewerID,
		Title:      entry.Title,
		Reason:     reason,
		OccurredAt: reviewedAt,
	})
	return nil
}

func validateForApproval(e PendingEntry) error {
	if strings.TrimSpace(e.Title) == "" {
		return invalid("title is required for approval")
	}
	if strings.TrimSpace(e.Content) == "" {
		return invalid("content is required for approval")
	}
	if !e.SourceType.Valid() {
		return invalid(fmt.Sprintf("source type %q is not valid for approval", e.SourceType))
	}
	return nil
}

// embed is best-effort: a document without an embedding is still stored,
// it just stays out of vector search until re-embedded.
func (m *Manager) embed(ctx context.Context, doc Document) []float32 {
	if m.embedder == nil {
		return nil
	}
	text := doc.Title + "\n\n" + doc.Content
	vector, err := llm.EmbedText(ctx, m.embedder, text)
	if err != nil {
		documentEmbedTotal.WithLabelValues("error").Inc()
		m.logger.WithError(err).WithField("document_id", doc.ID).Warn("Failed to embed approved document")
		return nil
	}
	documentEmbedTotal.WithLabelValues("ok").Inc()
	return vector
}

func (m *Manager) publish(ctx context.Context, event ReviewEvent) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		m.logger.WithError(err).WithFields(logging.Fields{
			"pending_id": event.PendingID,
			"event":      event.Type,
		}).Warn("Failed to publish review event")
	}
}
