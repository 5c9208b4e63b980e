package retrieval

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
)

// Document is a knowledge-base match for a single query.
type Document struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	SourceURL  string  `json:"source_url,omitempty"`
	Similarity float64 `json:"similarity"`
}

// DocumentSearcher runs a nearest-neighbour search over approved documents.
type DocumentSearcher interface {
	SearchDocuments(ctx context.Context, tenantID string, embedding []float32, threshold float64, limit int) ([]Document, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SearchDocuments(ctx context.Context, tenantID string, embedding []float32, threshold float64, limit int) ([]Document, error) {
	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	if len(embedding) == 0 {
		return nil, errors.New("embedding is required")
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id,
			title,
			content,
			COALESCE(source_url, ''),
			1 - (embedding <=> $2) AS similarity
		FROM almanac.knowledge_documents
		WHERE tenant_id = $1
			AND embedding IS NOT NULL
			AND 1 - (embedding <=> $2) >= $3
		ORDER BY embedding <=> $2
		LIMIT $4
	`, tenantID, pgvector.NewVector(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.SourceURL, &doc.Similarity); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}
