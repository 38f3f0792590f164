package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cortexkb/cortex/internal/storage"
	"github.com/cortexkb/cortex/pkg/types"
)

// importanceHalfLifeDays is the number of days for an entity's recency factor
// to halve. Entities last seen 30 days ago keep half of their frequency
// score; at 60 days, a quarter.
const importanceHalfLifeDays = 30.0

// entityImportance computes importance from occurrence frequency and recency.
// Frequency saturates towards 1.0 with diminishing returns; recency applies
// exponential decay since the last mention.
func entityImportance(occurrenceCount int, lastSeen time.Time, now time.Time) float64 {
	frequency := 1.0 - math.Exp(-float64(occurrenceCount)/10.0)
	daysSince := now.Sub(lastSeen).Hours() / 24.0
	if daysSince < 0 {
		daysSince = 0
	}
	recency := math.Exp2(-daysSince / importanceHalfLifeDays)
	return math.Min(math.Max(frequency*recency, 0.0), 1.0)
}

// entityID builds a deterministic ID from the logically-unique (name, type)
// pair so concurrent upserts of the same entity can never mint two IDs.
func entityID(name, entityType string) string {
	slug := strings.Builder{}
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			slug.WriteRune(r)
		} else if slug.Len() > 0 && slug.String()[slug.Len()-1] != '-' {
			slug.WriteByte('-')
		}
	}
	return "ent:" + entityType + ":" + strings.Trim(slug.String(), "-")
}

// UpsertEntity creates the entity on first sight; on repeat it increments
// occurrence_count and extends last_seen in a single conflict-resolving
// statement, then recomputes importance_score. The increment happens at the
// database so concurrent upserts cannot lose updates.
func (s *Store) UpsertEntity(ctx context.Context, name, entityType string, mention storage.MentionObservation) (*types.Entity, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: entity name is required", storage.ErrInvalidInput)
	}
	if !types.IsValidEntityType(entityType) {
		return nil, fmt.Errorf("%w: invalid entity type %q", storage.ErrInvalidInput, entityType)
	}
	if mention.MemoryID != "" {
		check := types.EntityMention{
			EntityID:      entityID(name, entityType),
			MemoryID:      mention.MemoryID,
			PositionStart: mention.PositionStart,
			PositionEnd:   mention.PositionEnd,
			Confidence:    mention.Confidence,
		}
		if err := check.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
	}

	observedAt := mention.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO entities (id, name, type, occurrence_count, importance_score, first_seen, last_seen, created_at, updated_at)
		VALUES (?, ?, ?, 1, 0, ?, ?, ?, ?)
		ON CONFLICT(name, type) DO UPDATE SET
			occurrence_count = occurrence_count + 1,
			last_seen = max(last_seen, excluded.last_seen),
			updated_at = excluded.updated_at
		RETURNING id, name, type, occurrence_count, importance_score, first_seen, last_seen, created_at, updated_at
	`

	now := time.Now().UTC()
	entity, err := scanEntity(s.db.QueryRowContext(ctx, query,
		entityID(name, entityType), name, entityType, observedAt, observedAt, now, now))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to upsert entity %q: %w", name, err)
	}

	// Importance depends on the merged count and recency, so it is computed
	// from the row the upsert produced. A stale write here only lags the
	// score by one observation; the counter itself is already settled.
	entity.ImportanceScore = entityImportance(entity.OccurrenceCount, entity.LastSeen, now)
	if _, err := s.db.ExecContext(ctx,
		"UPDATE entities SET importance_score = ? WHERE id = ?",
		entity.ImportanceScore, entity.ID); err != nil {
		return nil, fmt.Errorf("sqlite: failed to update entity importance: %w", err)
	}

	if mention.MemoryID != "" {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO entity_mentions (entity_id, memory_id, position_start, position_end, confidence, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			entity.ID, mention.MemoryID, mention.PositionStart, mention.PositionEnd,
			mention.Confidence, observedAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to record mention: %w", err)
		}
	}

	return entity, nil
}

// GetEntity retrieves an entity by ID.
func (s *Store) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	entity, err := scanEntity(s.db.QueryRowContext(ctx, `
		SELECT id, name, type, occurrence_count, importance_score, first_seen, last_seen, created_at, updated_at
		FROM entities WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entity %s: %w", id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("sqlite: failed to get entity %s: %w", id, err)
	}
	return entity, nil
}

// GetEntityByName retrieves an entity by its (name, type) pair.
func (s *Store) GetEntityByName(ctx context.Context, name, entityType string) (*types.Entity, error) {
	entity, err := scanEntity(s.db.QueryRowContext(ctx, `
		SELECT id, name, type, occurrence_count, importance_score, first_seen, last_seen, created_at, updated_at
		FROM entities WHERE name = ? AND type = ?`, name, entityType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entity %s/%s: %w", name, entityType, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("sqlite: failed to get entity %s/%s: %w", name, entityType, err)
	}
	return entity, nil
}

// UpsertRelationship enforces uniqueness on (source, target, type). On
// conflict the new observation is merged into the existing edge: the
// occurrence count increments and confidence/weight move to their running
// averages, avoiding oscillation from noisy single observations. The merge
// arithmetic runs inside the single upsert statement, so concurrent
// observations of the same edge serialize at the database.
func (s *Store) UpsertRelationship(ctx context.Context, sourceID, targetID, relType string, confidence, weight float64) (*types.Relationship, error) {
	rel := &types.Relationship{
		ID:              "rel:" + uuid.NewString(),
		SourceID:        sourceID,
		TargetID:        targetID,
		Type:            relType,
		Confidence:      confidence,
		Weight:          weight,
		OccurrenceCount: 1,
	}
	if err := rel.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	const query = `
		INSERT INTO relationships (id, source_id, target_id, type, confidence, weight, occurrence_count, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(source_id, target_id, type) DO UPDATE SET
			confidence = confidence + (excluded.confidence - confidence) / (occurrence_count + 1),
			weight = weight + (excluded.weight - weight) / (occurrence_count + 1),
			occurrence_count = occurrence_count + 1,
			last_seen = max(last_seen, excluded.last_seen)
		RETURNING id, source_id, target_id, type, confidence, weight, occurrence_count, first_seen, last_seen
	`

	now := time.Now().UTC()
	var stored types.Relationship
	err := s.db.QueryRowContext(ctx, query,
		rel.ID, rel.SourceID, rel.TargetID, rel.Type, rel.Confidence, rel.Weight, now, now,
	).Scan(
		&stored.ID, &stored.SourceID, &stored.TargetID, &stored.Type,
		&stored.Confidence, &stored.Weight, &stored.OccurrenceCount,
		&stored.FirstSeen, &stored.LastSeen,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to upsert relationship %s-[%s]->%s: %w",
			sourceID, relType, targetID, err)
	}

	return &stored, nil
}

// UpsertMemoryRelationship stores one row per unordered memory pair. An
// existing row is replaced only when the new composite score is strictly
// higher (monotonic improvement), expressed as a conditional DO UPDATE so
// the comparison and write are one atomic statement.
func (s *Store) UpsertMemoryRelationship(ctx context.Context, rel *types.MemoryRelationship) error {
	if rel == nil {
		return storage.ErrInvalidInput
	}
	rel.Normalize()
	if err := rel.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	const query = `
		INSERT INTO memory_relationships (
			source_memory_id, target_memory_id, composite_score,
			semantic_score, temporal_score, content_score,
			hierarchy_score, causal_score, contextual_score,
			primary_type, strength, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_memory_id, target_memory_id) DO UPDATE SET
			composite_score = excluded.composite_score,
			semantic_score = excluded.semantic_score,
			temporal_score = excluded.temporal_score,
			content_score = excluded.content_score,
			hierarchy_score = excluded.hierarchy_score,
			causal_score = excluded.causal_score,
			contextual_score = excluded.contextual_score,
			primary_type = excluded.primary_type,
			strength = excluded.strength,
			created_at = excluded.created_at
		WHERE excluded.composite_score > composite_score
	`

	createdAt := rel.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		rel.SourceMemoryID, rel.TargetMemoryID, rel.CompositeScore,
		rel.Dimensions.Semantic, rel.Dimensions.Temporal, rel.Dimensions.Content,
		rel.Dimensions.Hierarchy, rel.Dimensions.Causal, rel.Dimensions.Contextual,
		rel.PrimaryType, rel.Strength, createdAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to upsert memory relationship %s/%s: %w",
			rel.SourceMemoryID, rel.TargetMemoryID, err)
	}
	return nil
}

// GetMemoryRelationships returns all persisted relationships involving the
// given memory, ordered by composite score descending.
func (s *Store) GetMemoryRelationships(ctx context.Context, memoryID string) ([]types.MemoryRelationship, error) {
	const query = `
		SELECT source_memory_id, target_memory_id, composite_score,
			semantic_score, temporal_score, content_score,
			hierarchy_score, causal_score, contextual_score,
			primary_type, strength, created_at
		FROM memory_relationships
		WHERE source_memory_id = ? OR target_memory_id = ?
		ORDER BY composite_score DESC
	`
	rows, err := s.db.QueryContext(ctx, query, memoryID, memoryID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query memory relationships: %w", err)
	}
	defer rows.Close()

	var rels []types.MemoryRelationship
	for rows.Next() {
		var rel types.MemoryRelationship
		if err := rows.Scan(
			&rel.SourceMemoryID, &rel.TargetMemoryID, &rel.CompositeScore,
			&rel.Dimensions.Semantic, &rel.Dimensions.Temporal, &rel.Dimensions.Content,
			&rel.Dimensions.Hierarchy, &rel.Dimensions.Causal, &rel.Dimensions.Contextual,
			&rel.PrimaryType, &rel.Strength, &rel.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan memory relationship: %w", err)
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

// ListEntities returns entities ordered by importance descending.
func (s *Store) ListEntities(ctx context.Context, limit int) ([]types.Entity, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, occurrence_count, importance_score, first_seen, last_seen, created_at, updated_at
		FROM entities ORDER BY importance_score DESC, occurrence_count DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list entities: %w", err)
	}
	defer rows.Close()

	var entities []types.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan entity: %w", err)
		}
		entities = append(entities, *entity)
	}
	return entities, rows.Err()
}

// EntitiesForMemory returns the distinct entity IDs mentioned in a memory.
func (s *Store) EntitiesForMemory(ctx context.Context, memoryID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT entity_id FROM entity_mentions WHERE memory_id = ?", memoryID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query entities for %s: %w", memoryID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan entity ID: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CoMentions returns entity pairs co-mentioned in at least minShared
// memories, with their shared-memory counts. Pairs are ordered so
// EntityA < EntityB.
func (s *Store) CoMentions(ctx context.Context, minShared int) ([]storage.CoMention, error) {
	if minShared < 1 {
		minShared = 2
	}
	const query = `
		SELECT a.entity_id, b.entity_id, COUNT(DISTINCT a.memory_id) AS shared
		FROM entity_mentions a
		JOIN entity_mentions b ON a.memory_id = b.memory_id AND a.entity_id < b.entity_id
		GROUP BY a.entity_id, b.entity_id
		HAVING shared >= ?
		ORDER BY shared DESC
	`
	rows, err := s.db.QueryContext(ctx, query, minShared)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query co-mentions: %w", err)
	}
	defer rows.Close()

	var pairs []storage.CoMention
	for rows.Next() {
		var cm storage.CoMention
		if err := rows.Scan(&cm.EntityA, &cm.EntityB, &cm.SharedCount); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan co-mention: %w", err)
		}
		pairs = append(pairs, cm)
	}
	return pairs, rows.Err()
}

// CountRelationshipsBetween counts direct relationship rows between two
// entities in either direction.
func (s *Store) CountRelationshipsBetween(ctx context.Context, entityA, entityB string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM relationships
		WHERE (source_id = ? AND target_id = ?) OR (source_id = ? AND target_id = ?)`,
		entityA, entityB, entityB, entityA).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to count relationships: %w", err)
	}
	return count, nil
}

// DeleteEntity removes an entity; mentions and relationships cascade via
// foreign keys.
func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM entities WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete entity %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("entity %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// DeleteMemory removes everything the graph holds about a memory: its
// mentions, its memory relationships, its embedding, and the mirrored row.
func (s *Store) DeleteMemory(ctx context.Context, memoryID string) error {
	if memoryID == "" {
		return fmt.Errorf("%w: memory ID is required", storage.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM entity_mentions WHERE memory_id = ?",
		"DELETE FROM memory_relationships WHERE source_memory_id = ? OR target_memory_id = ?",
		"DELETE FROM embeddings WHERE memory_id = ?",
		"DELETE FROM memories WHERE id = ?",
	} {
		args := []interface{}{memoryID}
		if strings.Contains(stmt, "target_memory_id") {
			args = append(args, memoryID)
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("sqlite: failed to cascade memory delete: %w", err)
		}
	}

	return tx.Commit()
}

func scanEntity(row rowScanner) (*types.Entity, error) {
	var entity types.Entity
	err := row.Scan(
		&entity.ID, &entity.Name, &entity.Type,
		&entity.OccurrenceCount, &entity.ImportanceScore,
		&entity.FirstSeen, &entity.LastSeen,
		&entity.CreatedAt, &entity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entity, nil
}
