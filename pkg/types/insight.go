package types

import (
	"fmt"
	"time"
)

// Insight is a derived narrative finding produced from metric trends,
// anomalies, clusters or knowledge gaps. Insights below a minimum
// confidence*impact product are not surfaced. Later runs supersede earlier
// insights rather than editing them.
type Insight struct {
	ID       string `json:"id"`       // Unique identifier (format: ins:uuid)
	Category string `json:"category"` // trend | anomaly | cluster | knowledge_gap

	Title       string `json:"title"`
	Description string `json:"description"`

	Confidence  float64 `json:"confidence"`   // Statistical confidence (0.0-1.0)
	ImpactScore float64 `json:"impact_score"` // Magnitude of effect (0.0-1.0)

	Timeframe       string   `json:"timeframe,omitempty"` // Window the insight covers (e.g. "30d")
	Recommendations []string `json:"recommendations,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Signal returns confidence multiplied by impact, the value insights are
// ranked and filtered on.
func (i *Insight) Signal() float64 {
	return i.Confidence * i.ImpactScore
}

// Validate checks the insight's invariants.
func (i *Insight) Validate() error {
	if i.Category == "" {
		return fmt.Errorf("insight category is required")
	}
	if i.Confidence < 0 || i.Confidence > 1 {
		return fmt.Errorf("confidence must be in [0,1], got %f", i.Confidence)
	}
	if i.ImpactScore < 0 || i.ImpactScore > 1 {
		return fmt.Errorf("impact_score must be in [0,1], got %f", i.ImpactScore)
	}
	return nil
}

// KnowledgeGap is an under-covered topic area: a pair or group of entities
// with strong co-occurrence signal but weak direct graph coverage.
type KnowledgeGap struct {
	Topic           string   `json:"topic"`
	RelatedConcepts []string `json:"related_concepts"`

	GapScore        float64 `json:"gap_score"`        // Higher = more adjacent mentions with less coverage (0.0-1.0)
	ImportanceScore float64 `json:"importance_score"` // Derived from the involved entities' importance

	SuggestedQueries []string `json:"suggested_queries,omitempty"`
}

// Validate checks the gap's invariants.
func (g *KnowledgeGap) Validate() error {
	if g.Topic == "" {
		return fmt.Errorf("gap topic is required")
	}
	if g.GapScore < 0 || g.GapScore > 1 {
		return fmt.Errorf("gap_score must be in [0,1], got %f", g.GapScore)
	}
	return nil
}
