package drafts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"frameworks/almanac/pkg/database"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

type Repository interface {
	CreatePending(ctx context.Context, entry PendingEntry) error
	GetPending(ctx context.Context, tenantID, id string) (PendingEntry, error)
	ListPending(ctx context.Context, tenantID string) ([]PendingEntry, error)
	InsertDocument(ctx context.Context, doc Document) error
	// ResolvePending writes the resolved entry. It must only succeed while
	// the stored row is still pending and returns ErrAlreadyResolved
	// otherwise.
	ResolvePending(ctx context.Context, entry PendingEntry) error
}

// Transactor is implemented by repositories that can run several writes
// atomically.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(repo Repository) error) error
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresRepository struct {
	db *sql.DB
	q  querier
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, q: db}
}

func (r *PostgresRepository) WithinTx(ctx context.Context, fn func(repo Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&PostgresRepository{q: tx})
	})
}

const pendingColumns = `id, tenant_id, user_id, conversation_id, title, summary, content,
	source_type, source_url, category, tags, verification_notes, metadata, status,
	created_at, updated_at, reviewed_at, reviewer_id`

func (r *PostgresRepository) CreatePending(ctx context.Context, e PendingEntry) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO almanac.pending_knowledge (`+pendingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NULL, NULL)
	`, e.ID, e.TenantID, e.UserID, nullString(e.ConversationID), e.Title, e.Summary, e.Content,
		string(e.SourceType), nullString(e.SourceURL), e.Category, pq.Array(e.Tags), e.VerificationNotes,
		metadata, string(e.Status), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert pending entry: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetPending(ctx context.Context, tenantID, id string) (PendingEntry, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+pendingColumns+`
		FROM almanac.pending_knowledge
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	entry, err := scanPending(row)
	if errors.Is(err, sql.ErrNoRows) {
		return PendingEntry{}, ErrNotFound
	}
	if err != nil {
		return PendingEntry{}, fmt.Errorf("get pending entry: %w", err)
	}
	return entry, nil
}

func (r *PostgresRepository) ListPending(ctx context.Context, tenantID string) ([]PendingEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+pendingColumns+`
		FROM almanac.pending_knowledge
		WHERE tenant_id = $1 AND status = 'pending'
		ORDER BY created_at DESC, id DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list pending entries: %w", err)
	}
	defer rows.Close()

	var entries []PendingEntry
	for rows.Next() {
		entry, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending entries: %w", err)
	}
	return entries, nil
}

func (r *PostgresRepository) ResolvePending(ctx context.Context, e PendingEntry) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE almanac.pending_knowledge
		SET status = $3,
			title = $4,
			summary = $5,
			content = $6,
			source_type = $7,
			source_url = $8,
			category = $9,
			tags = $10,
			verification_notes = $11,
			reviewer_id = $12,
			reviewed_at = $13,
			updated_at = $13
		WHERE tenant_id = $1 AND id = $2 AND status = 'pending'
	`, e.TenantID, e.ID, string(e.Status), e.Title, e.Summary, e.Content, string(e.SourceType),
		nullString(e.SourceURL), e.Category, pq.Array(e.Tags), e.VerificationNotes, e.ReviewerID, e.ReviewedAt)
	if err != nil {
		return fmt.Errorf("resolve pending entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve pending entry: %w", err)
	}
	if n == 0 {
		return ErrAlreadyResolved
	}
	return nil
}

func (r *PostgresRepository) InsertDocument(ctx context.Context, d Document) error {
	metadata, err := json.Marshal(d.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	var embedding any
	if len(d.Embedding) > 0 {
		embedding = pgvector.NewVector(d.Embedding)
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO almanac.knowledge_documents (
			id, tenant_id, app_id, title, summary, content, source_type, source_url,
			category, tags, metadata, embedding, approved_by, approved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, d.ID, d.TenantID, nullString(d.AppID), d.Title, d.Summary, d.Content, string(d.SourceType),
		nullString(d.SourceURL), d.Category, pq.Array(d.Tags), metadata, embedding, d.ApprovedBy, d.ApprovedAt)
	if err != nil {
		return fmt.Errorf("insert knowledge document: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPending(row rowScanner) (PendingEntry, error) {
	var (
		e              PendingEntry
		conversationID sql.NullString
		sourceURL      sql.NullString
		reviewerID     sql.NullString
		reviewedAt     sql.NullTime
		sourceType     string
		status         string
		metadata       []byte
	)
	if err := row.Scan(
		&e.ID,
		&e.TenantID,
		&e.UserID,
		&conversationID,
		&e.Title,
		&e.Summary,
		&e.Content,
		&sourceType,
		&sourceURL,
		&e.Category,
		pq.Array(&e.Tags),
		&e.VerificationNotes,
		&metadata,
		&status,
		&e.CreatedAt,
		&e.UpdatedAt,
		&reviewedAt,
		&reviewerID,
	); err != nil {
		return PendingEntry{}, err
	}
	e.ConversationID = conversationID.String
	e.SourceURL = sourceURL.String
	e.ReviewerID = reviewerID.String
	e.SourceType = SourceType(sourceType)
	e.Status = Status(status)
	if reviewedAt.Valid {
		t := reviewedAt.Time
		e.ReviewedAt = &t
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return PendingEntry{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
