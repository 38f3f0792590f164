package types

import (
	"fmt"
	"math"
	"time"
)

// Relationship represents a directed, typed link between two entities.
// Relationships are unique per (source, target, type); repeat observations
// merge into the existing row by incrementing occurrence_count and
// running-averaging confidence and weight, never by overwrite.
type Relationship struct {
	ID       string `json:"id"`        // Unique identifier (format: rel:uuid)
	SourceID string `json:"source_id"` // Source entity ID
	TargetID string `json:"target_id"` // Target entity ID
	Type     string `json:"type"`      // Relationship type (e.g. "works_on", "mentions")

	Confidence      float64 `json:"confidence"`       // Merged extraction confidence (0.0-1.0)
	Weight          float64 `json:"weight"`           // Merged strength of the link (0.0-1.0)
	OccurrenceCount int     `json:"occurrence_count"` // Number of observations merged into this edge

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Validate checks the relationship's invariants. Self-loops are rejected.
func (r *Relationship) Validate() error {
	if r.SourceID == "" || r.TargetID == "" {
		return fmt.Errorf("relationship requires source_id and target_id")
	}
	if r.SourceID == r.TargetID {
		return fmt.Errorf("self-loop relationship on %s is not allowed", r.SourceID)
	}
	if r.Type == "" {
		return fmt.Errorf("relationship type is required")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence must be in [0,1], got %f", r.Confidence)
	}
	if r.Weight < 0 || r.Weight > 1 {
		return fmt.Errorf("weight must be in [0,1], got %f", r.Weight)
	}
	return nil
}

// DimensionScores holds the six independent similarity scores computed for a
// memory pair. The field set is fixed: every dimension is always present,
// defaulting to 0.0 when its inputs were unavailable.
type DimensionScores struct {
	Semantic   float64 `json:"semantic"`
	Temporal   float64 `json:"temporal"`
	Content    float64 `json:"content"`
	Hierarchy  float64 `json:"hierarchy"`
	Causal     float64 `json:"causal"`
	Contextual float64 `json:"contextual"`
}

// Get returns the score for a named dimension, or 0.0 for unknown names.
func (d DimensionScores) Get(dimension string) float64 {
	switch dimension {
	case DimensionSemantic:
		return d.Semantic
	case DimensionTemporal:
		return d.Temporal
	case DimensionContent:
		return d.Content
	case DimensionHierarchy:
		return d.Hierarchy
	case DimensionCausal:
		return d.Causal
	case DimensionContextual:
		return d.Contextual
	}
	return 0.0
}

// MemoryRelationship is the composite relatedness between two memories.
// Memory relationships are undirected: the pair is normalized so that
// SourceMemoryID is always the lexically smaller ID, giving one row per
// unordered pair.
type MemoryRelationship struct {
	SourceMemoryID string `json:"source_memory_id"`
	TargetMemoryID string `json:"target_memory_id"`

	CompositeScore float64         `json:"composite_score"` // Weighted combination of dimensions (0.0-1.0)
	Dimensions     DimensionScores `json:"dimensions"`      // Per-dimension scores
	PrimaryType    string          `json:"primary_type"`    // Dimension with the highest score
	Strength       string          `json:"strength"`        // strong | moderate | weak

	CreatedAt time.Time `json:"created_at"`
}

// Normalize orders the pair so SourceMemoryID < TargetMemoryID.
func (m *MemoryRelationship) Normalize() {
	if m.TargetMemoryID < m.SourceMemoryID {
		m.SourceMemoryID, m.TargetMemoryID = m.TargetMemoryID, m.SourceMemoryID
	}
}

// Validate checks the memory relationship's invariants.
func (m *MemoryRelationship) Validate() error {
	if m.SourceMemoryID == "" || m.TargetMemoryID == "" {
		return fmt.Errorf("memory relationship requires both memory IDs")
	}
	if m.SourceMemoryID == m.TargetMemoryID {
		return fmt.Errorf("memory cannot relate to itself: %s", m.SourceMemoryID)
	}
	if math.IsNaN(m.CompositeScore) || m.CompositeScore < 0 || m.CompositeScore > 1 {
		return fmt.Errorf("composite_score must be in [0,1], got %f", m.CompositeScore)
	}
	if !IsValidDimension(m.PrimaryType) {
		return fmt.Errorf("invalid primary type: %q", m.PrimaryType)
	}
	return nil
}
