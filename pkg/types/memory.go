package types

import (
	"fmt"
	"time"
)

// Memory represents a single stored note with its embedding and metadata.
// Memories are owned by the external CRUD layer; the analysis engine treats
// them as read-only inputs to relationship scoring and clustering.
type Memory struct {
	ID        string    `json:"id"`         // Unique identifier (format: mem:domain:slug)
	Content   string    `json:"content"`    // Raw memory content
	CreatedAt time.Time `json:"created_at"` // When the memory was created
	UpdatedAt time.Time `json:"updated_at"` // Last update timestamp

	// Classification and organization
	MemoryType string   `json:"memory_type,omitempty"` // Memory type (note, decision, event, ...)
	Tags       []string `json:"tags,omitempty"`        // User-defined tags

	// Embedding fields
	Embedding          []float64 `json:"embedding,omitempty"`           // Vector embedding for semantic similarity
	EmbeddingModel     string    `json:"embedding_model,omitempty"`     // Model used for embedding
	EmbeddingDimension int       `json:"embedding_dimension,omitempty"` // Dimension of embedding vector

	// Quality signals
	ImportanceScore float64 `json:"importance_score"` // Importance score (0.0-10.0)

	// Arbitrary metadata from the CRUD layer
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks the memory's invariants. A memory without an embedding is
// valid: similarity dimensions that need one degrade to 0.0.
func (m *Memory) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("memory ID is required")
	}
	if m.Content == "" {
		return fmt.Errorf("memory content is required")
	}
	if m.ImportanceScore < 0 || m.ImportanceScore > 10 {
		return fmt.Errorf("importance_score must be in [0,10], got %f", m.ImportanceScore)
	}
	if len(m.Embedding) > 0 && m.EmbeddingDimension > 0 && len(m.Embedding) != m.EmbeddingDimension {
		return fmt.Errorf("embedding length (%d) does not match dimension (%d)", len(m.Embedding), m.EmbeddingDimension)
	}
	return nil
}
