package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cortexkb/cortex/internal/storage"
	"github.com/cortexkb/cortex/pkg/types"
)

// PutMemory upserts a memory row. The external CRUD layer owns memory
// lifecycle; this method mirrors its records into the analysis store so the
// engine can read them locally.
func (s *Store) PutMemory(ctx context.Context, memory *types.Memory) error {
	if memory == nil {
		return storage.ErrInvalidInput
	}
	if err := memory.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	tagsJSON, err := json.Marshal(memory.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal tags: %w", err)
	}
	metadataJSON, err := json.Marshal(memory.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal metadata: %w", err)
	}

	const query = `
		INSERT INTO memories (id, content, memory_type, tags, importance_score, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			memory_type = excluded.memory_type,
			tags = excluded.tags,
			importance_score = excluded.importance_score,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC()
	createdAt := memory.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err = s.db.ExecContext(ctx, query,
		memory.ID, memory.Content, memory.MemoryType,
		string(tagsJSON), memory.ImportanceScore, string(metadataJSON),
		createdAt, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to store memory: %w", err)
	}

	if len(memory.Embedding) > 0 {
		if err := s.StoreEmbedding(ctx, memory.ID, memory.Embedding, memory.EmbeddingModel); err != nil {
			return err
		}
	}

	return nil
}

// GetMemory retrieves a memory by ID, including its embedding when present.
func (s *Store) GetMemory(ctx context.Context, id string) (*types.Memory, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}

	const query = `
		SELECT id, content, memory_type, tags, importance_score, metadata, created_at, updated_at
		FROM memories WHERE id = ?
	`

	memory, err := scanMemory(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("memory %s: %w", id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("sqlite: failed to get memory %s: %w", id, err)
	}

	embedding, err := s.GetEmbedding(ctx, id)
	if err == nil {
		memory.Embedding = embedding
		memory.EmbeddingDimension = len(embedding)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	return memory, nil
}

// ListMemories retrieves memories with pagination and filtering.
// Embeddings are not loaded here; callers that need vectors fetch them
// per memory or through GetEmbedding.
func (s *Store) ListMemories(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Memory], error) {
	opts.Normalize()

	where := []string{"1=1"}
	args := []interface{}{}

	if opts.MemoryType != "" {
		where = append(where, "memory_type = ?")
		args = append(args, opts.MemoryType)
	}
	if !opts.CreatedAfter.IsZero() {
		where = append(where, "created_at > ?")
		args = append(args, opts.CreatedAfter)
	}
	if !opts.CreatedBefore.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, opts.CreatedBefore)
	}
	if len(opts.Tags) > 0 {
		// Tags are stored as a JSON array; match any requested tag.
		tagClauses := make([]string, 0, len(opts.Tags))
		for _, tag := range opts.Tags {
			tagClauses = append(tagClauses, "tags LIKE ?")
			args = append(args, `%"`+tag+`"%`)
		}
		where = append(where, "("+strings.Join(tagClauses, " OR ")+")")
	}

	whereSQL := strings.Join(where, " AND ")

	var total int
	countSQL := "SELECT COUNT(*) FROM memories WHERE " + whereSQL
	if err := s.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: failed to count memories: %w", err)
	}

	querySQL := `
		SELECT id, content, memory_type, tags, importance_score, metadata, created_at, updated_at
		FROM memories WHERE ` + whereSQL + `
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.QueryContext(ctx, querySQL, append(args, opts.Limit, opts.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list memories: %w", err)
	}
	defer rows.Close()

	var memories []types.Memory
	for rows.Next() {
		memory, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan memory: %w", err)
		}
		memories = append(memories, *memory)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: error iterating memories: %w", err)
	}

	return &storage.PaginatedResult[types.Memory]{
		Items:    memories,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset()+len(memories) < total,
	}, nil
}

// StoreEmbedding upserts a memory's embedding vector.
func (s *Store) StoreEmbedding(ctx context.Context, memoryID string, embedding []float64, model string) error {
	if memoryID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: embedding vector cannot be empty", storage.ErrInvalidInput)
	}

	const query = `
		INSERT INTO embeddings (memory_id, embedding, dimension, model, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(memory_id) DO UPDATE SET
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			model = excluded.model,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		memoryID, serializeEmbedding(embedding), len(embedding), model, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sqlite: failed to store embedding for %s: %w", memoryID, err)
	}
	return nil
}

// GetEmbedding retrieves the stored embedding for a memory.
func (s *Store) GetEmbedding(ctx context.Context, memoryID string) ([]float64, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT embedding FROM embeddings WHERE memory_id = ?", memoryID).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("embedding for %s: %w", memoryID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("sqlite: failed to get embedding for %s: %w", memoryID, err)
	}
	return deserializeEmbedding(blob)
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row rowScanner) (*types.Memory, error) {
	var memory types.Memory
	var memoryType, tagsJSON, metadataJSON sql.NullString

	err := row.Scan(
		&memory.ID, &memory.Content, &memoryType, &tagsJSON,
		&memory.ImportanceScore, &metadataJSON,
		&memory.CreatedAt, &memory.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	memory.MemoryType = memoryType.String
	if tagsJSON.Valid && tagsJSON.String != "" && tagsJSON.String != "null" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &memory.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &memory.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &memory, nil
}
