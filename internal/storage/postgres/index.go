// Package postgres provides the approximate-nearest-neighbor embedding index
// backed by PostgreSQL with the pgvector extension. It serves candidate
// lookup only; the graph itself lives in SQLite.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/cortexkb/cortex/internal/storage"
)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS memory_embeddings (
    memory_id TEXT PRIMARY KEY,
    embedding vector(768) NOT NULL,
    model TEXT,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_memory_embeddings_vec
    ON memory_embeddings USING hnsw (embedding vector_cosine_ops);
`

// Index is an EmbeddingIndex over a pgvector table. Candidate lookup uses
// cosine distance, matching the semantic dimension's similarity measure.
type Index struct {
	db        *sql.DB
	dimension int
}

var _ storage.EmbeddingIndex = (*Index)(nil)

// Open connects to PostgreSQL and ensures the embeddings table and HNSW
// index exist. dimension must match the embedding model's output size.
func Open(dsn string, dimension int) (*Index, error) {
	if dimension < 1 {
		return nil, fmt.Errorf("postgres: embedding dimension must be positive, got %d", dimension)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to create schema: %w", err)
	}

	return &Index{db: db, dimension: dimension}, nil
}

// Close closes the underlying connection pool.
func (i *Index) Close() error {
	return i.db.Close()
}

// StoreEmbedding upserts a memory's embedding vector.
func (i *Index) StoreEmbedding(ctx context.Context, memoryID string, embedding []float64, model string) error {
	if memoryID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}
	if len(embedding) != i.dimension {
		return fmt.Errorf("%w: embedding has %d dimensions, index expects %d",
			storage.ErrInvalidInput, len(embedding), i.dimension)
	}

	_, err := i.db.ExecContext(ctx, `
		INSERT INTO memory_embeddings (memory_id, embedding, model, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (memory_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			model = EXCLUDED.model,
			updated_at = now()`,
		memoryID, toVector(embedding), model)
	if err != nil {
		return fmt.Errorf("postgres: failed to store embedding for %s: %w", memoryID, err)
	}
	return nil
}

// NearestNeighbors returns up to limit memory IDs ordered by cosine distance
// to the query embedding.
func (i *Index) NearestNeighbors(ctx context.Context, embedding []float64, limit int) ([]string, error) {
	if len(embedding) != i.dimension {
		return nil, fmt.Errorf("%w: query embedding has %d dimensions, index expects %d",
			storage.ErrInvalidInput, len(embedding), i.dimension)
	}
	if limit < 1 {
		limit = 50
	}

	rows, err := i.db.QueryContext(ctx, `
		SELECT memory_id FROM memory_embeddings
		ORDER BY embedding <=> $1
		LIMIT $2`,
		toVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query nearest neighbors: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan neighbor: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteEmbedding removes a memory's embedding from the index. Deleting a
// missing embedding is not an error.
func (i *Index) DeleteEmbedding(ctx context.Context, memoryID string) error {
	if _, err := i.db.ExecContext(ctx,
		"DELETE FROM memory_embeddings WHERE memory_id = $1", memoryID); err != nil {
		return fmt.Errorf("postgres: failed to delete embedding for %s: %w", memoryID, err)
	}
	return nil
}

func toVector(embedding []float64) pgvector.Vector {
	v := make([]float32, len(embedding))
	for i, x := range embedding {
		v[i] = float32(x)
	}
	return pgvector.NewVector(v)
}
