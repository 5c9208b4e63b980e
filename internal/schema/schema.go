// Package schema owns the almanac Postgres schema.
package schema

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed sql/*.sql
var Content embed.FS

// Files returns the embedded schema files in apply order.
func Files() ([]string, error) {
	names, err := fs.Glob(Content, "sql/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Apply runs every embedded schema file. Files are written to be re-run on
// each start.
func Apply(ctx context.Context, db *sql.DB) error {
	names, err := Files()
	if err != nil {
		return fmt.Errorf("list schema files: %w", err)
	}
	for _, name := range names {
		body, err := Content.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read embedded SQL file %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// EnsureEmbeddingDimensions realigns knowledge_documents.embedding with the
// configured embedding model. Embeddings from the old model are cleared but
// the documents stay; they are not searchable until re-embedded.
// Returns true when a migration was performed.
func EnsureEmbeddingDimensions(ctx context.Context, db *sql.DB, target int) (bool, error) {
	if target <= 0 {
		return false, fmt.Errorf("invalid embedding dimensions: %d", target)
	}

	// pgvector stores the dimension count in atttypmod for vector(N) columns.
	var current int
	err := db.QueryRowContext(ctx, `
		SELECT atttypmod
		FROM pg_attribute
		WHERE attrelid = 'almanac.knowledge_documents'::regclass
		  AND attname = 'embedding'
	`).Scan(&current)
	if err != nil {
		return false, fmt.Errorf("query current embedding dimensions: %w", err)
	}

	if current == target {
		return false, nil
	}

	stmts := []string{
		`DROP INDEX IF EXISTS almanac.knowledge_documents_embedding_idx`,
		`UPDATE almanac.knowledge_documents SET embedding = NULL`,
		fmt.Sprintf(`ALTER TABLE almanac.knowledge_documents ALTER COLUMN embedding TYPE vector(%d)`, target),
		`CREATE INDEX knowledge_documents_embedding_idx ON almanac.knowledge_documents USING hnsw (embedding vector_cosine_ops) WITH (m = 24, ef_construction = 256)`,
	}
	for _, stmt := range stmts {
		if _, execErr := db.ExecContext(ctx, stmt); execErr != nil {
			return false, fmt.Errorf("migrate embedding dimensions (%d -> %d): %w", current, target, execErr)
		}
	}

	return true, nil
}
