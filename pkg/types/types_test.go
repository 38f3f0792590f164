package types

import (
	"math"
	"testing"
	"time"
)

func TestMemoryValidate(t *testing.T) {
	mem := &Memory{
		ID:              "mem:default:abc",
		Content:         "Met John to discuss the roadmap",
		CreatedAt:       time.Now(),
		ImportanceScore: 5.0,
	}
	if err := mem.Validate(); err != nil {
		t.Fatalf("valid memory rejected: %v", err)
	}

	mem.ImportanceScore = 11
	if err := mem.Validate(); err == nil {
		t.Error("expected error for importance_score > 10")
	}

	mem.ImportanceScore = 5
	mem.Embedding = []float64{0.1, 0.2}
	mem.EmbeddingDimension = 3
	if err := mem.Validate(); err == nil {
		t.Error("expected error for embedding/dimension mismatch")
	}
}

func TestEntityValidate(t *testing.T) {
	ent := &Entity{
		Name:            "Redis",
		Type:            EntityTypeTool,
		OccurrenceCount: 1,
		FirstSeen:       time.Now(),
		LastSeen:        time.Now(),
	}
	if err := ent.Validate(); err != nil {
		t.Fatalf("valid entity rejected: %v", err)
	}

	ent.OccurrenceCount = 0
	if err := ent.Validate(); err == nil {
		t.Error("expected error for occurrence_count < 1")
	}

	ent.OccurrenceCount = 1
	ent.Type = "spaceship"
	if err := ent.Validate(); err == nil {
		t.Error("expected error for unknown entity type")
	}
}

func TestEntityMentionValidate(t *testing.T) {
	m := &EntityMention{
		EntityID:      "ent:tool:redis",
		MemoryID:      "mem:default:abc",
		PositionStart: 10,
		PositionEnd:   15,
		Confidence:    0.9,
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("valid mention rejected: %v", err)
	}

	m.PositionEnd = 10
	if err := m.Validate(); err == nil {
		t.Error("expected error when position_end <= position_start")
	}
}

func TestRelationshipValidateRejectsSelfLoop(t *testing.T) {
	rel := &Relationship{
		SourceID:   "ent:person:john",
		TargetID:   "ent:person:john",
		Type:       "knows",
		Confidence: 0.8,
		Weight:     0.5,
	}
	if err := rel.Validate(); err == nil {
		t.Error("expected self-loop to be rejected")
	}

	rel.TargetID = "ent:person:jane"
	if err := rel.Validate(); err != nil {
		t.Errorf("valid relationship rejected: %v", err)
	}
}

func TestMemoryRelationshipNormalize(t *testing.T) {
	rel := &MemoryRelationship{
		SourceMemoryID: "mem:b",
		TargetMemoryID: "mem:a",
	}
	rel.Normalize()
	if rel.SourceMemoryID != "mem:a" || rel.TargetMemoryID != "mem:b" {
		t.Errorf("pair not normalized: %s / %s", rel.SourceMemoryID, rel.TargetMemoryID)
	}

	// Already ordered pairs are left alone.
	rel.Normalize()
	if rel.SourceMemoryID != "mem:a" {
		t.Error("normalize is not idempotent")
	}
}

func TestMemoryRelationshipValidateRejectsNaN(t *testing.T) {
	rel := &MemoryRelationship{
		SourceMemoryID: "mem:a",
		TargetMemoryID: "mem:b",
		CompositeScore: math.NaN(),
		PrimaryType:    DimensionSemantic,
	}
	if err := rel.Validate(); err == nil {
		t.Error("expected NaN composite_score to be rejected")
	}
}

func TestDimensionScoresGet(t *testing.T) {
	scores := DimensionScores{
		Semantic:   0.9,
		Temporal:   0.1,
		Content:    0.5,
		Hierarchy:  0.2,
		Causal:     0.3,
		Contextual: 0.4,
	}

	for _, tc := range []struct {
		dimension string
		want      float64
	}{
		{DimensionSemantic, 0.9},
		{DimensionTemporal, 0.1},
		{DimensionContent, 0.5},
		{DimensionHierarchy, 0.2},
		{DimensionCausal, 0.3},
		{DimensionContextual, 0.4},
		{"unknown", 0.0},
	} {
		if got := scores.Get(tc.dimension); got != tc.want {
			t.Errorf("Get(%q) = %f, want %f", tc.dimension, got, tc.want)
		}
	}
}

func TestAnomalyValidate(t *testing.T) {
	a := &Anomaly{
		MetricType:    "ingestion_count",
		Timestamp:     time.Now(),
		Severity:      0.8,
		ExpectedValue: 100,
		ActualValue:   500,
		AnomalyType:   AnomalySpike,
	}
	if err := a.Validate(); err != nil {
		t.Fatalf("valid anomaly rejected: %v", err)
	}

	a.AnomalyType = "weird"
	if err := a.Validate(); err == nil {
		t.Error("expected error for unknown anomaly type")
	}
}

func TestInsightSignal(t *testing.T) {
	ins := &Insight{Category: InsightTrend, Confidence: 0.5, ImpactScore: 0.4}
	if got := ins.Signal(); math.Abs(got-0.2) > 1e-9 {
		t.Errorf("Signal() = %f, want 0.2", got)
	}
}

func TestDimensionPriorityCoversAllDimensions(t *testing.T) {
	if len(DimensionPriority) != 6 {
		t.Fatalf("expected 6 dimensions, got %d", len(DimensionPriority))
	}
	for _, d := range DimensionPriority {
		if !IsValidDimension(d) {
			t.Errorf("dimension %q not reported valid", d)
		}
	}
}
