package types

import (
	"fmt"
	"time"
)

// Entity represents a named concept, person or organization extracted from
// memories. The (name, type) pair is logically unique; repeat mentions
// increment the occurrence count rather than creating a duplicate.
type Entity struct {
	ID   string `json:"id"`   // Unique identifier (format: ent:type:slug)
	Name string `json:"name"` // Display name
	Type string `json:"type"` // Entity type (see EntityType constants)

	// Occurrence bookkeeping
	OccurrenceCount int       `json:"occurrence_count"` // Number of mentions across all memories (>= 1)
	FirstSeen       time.Time `json:"first_seen"`       // First occurrence in memories
	LastSeen        time.Time `json:"last_seen"`        // Most recent occurrence

	// ImportanceScore is a function of occurrence frequency and recency,
	// recomputed on every upsert (exponential-decay weighted).
	ImportanceScore float64 `json:"importance_score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the entity's invariants.
func (e *Entity) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("entity name is required")
	}
	if !IsValidEntityType(e.Type) {
		return fmt.Errorf("invalid entity type: %q", e.Type)
	}
	if e.OccurrenceCount < 1 {
		return fmt.Errorf("occurrence_count must be >= 1, got %d", e.OccurrenceCount)
	}
	return nil
}

// EntityMention records one occurrence of an entity inside a memory,
// with the character span and extraction confidence.
type EntityMention struct {
	EntityID      string  `json:"entity_id"`
	MemoryID      string  `json:"memory_id"`
	PositionStart int     `json:"position_start"`
	PositionEnd   int     `json:"position_end"`
	Confidence    float64 `json:"confidence"` // Extraction confidence (0.0-1.0)
}

// Validate checks the mention's invariants.
func (m *EntityMention) Validate() error {
	if m.EntityID == "" || m.MemoryID == "" {
		return fmt.Errorf("mention requires entity_id and memory_id")
	}
	if m.PositionEnd <= m.PositionStart {
		return fmt.Errorf("position_end (%d) must be greater than position_start (%d)", m.PositionEnd, m.PositionStart)
	}
	if m.Confidence < 0 || m.Confidence > 1 {
		return fmt.Errorf("confidence must be in [0,1], got %f", m.Confidence)
	}
	return nil
}
