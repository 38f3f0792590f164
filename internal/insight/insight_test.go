package insight

import (
	"math"
	"testing"
	"time"

	"github.com/cortexkb/cortex/pkg/types"
)

func series(values []float64) []types.MetricSample {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := make([]types.MetricSample, len(values))
	for i, v := range values {
		samples[i] = types.MetricSample{
			MetricType:  "ingestion_count",
			Granularity: types.GranularityDay,
			Timestamp:   base.AddDate(0, 0, i),
			Value:       v,
		}
	}
	return samples
}

func TestTrendInsightDetectsGrowth(t *testing.T) {
	// A clean linear climb from 10 to 68 over 30 days.
	values := make([]float64, 30)
	for i := range values {
		values[i] = 10 + float64(i)*2
	}

	insight := TrendInsight(series(values), "30d")
	if insight == nil {
		t.Fatal("expected an insight from a strong trend")
	}
	if insight.Category != types.InsightTrend {
		t.Errorf("category %s", insight.Category)
	}
	if insight.Confidence < 0.9 {
		t.Errorf("perfect linear fit should score high confidence, got %f", insight.Confidence)
	}
	if insight.ImpactScore < 0.5 {
		t.Errorf("values more than tripled, impact %f is too low", insight.ImpactScore)
	}
	if insight.Timeframe != "30d" {
		t.Errorf("timeframe %s", insight.Timeframe)
	}
	if err := insight.Validate(); err != nil {
		t.Errorf("insight fails validation: %v", err)
	}
}

func TestTrendInsightDecliningGetsRecommendation(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 100 - float64(i)*3
	}
	insight := TrendInsight(series(values), "30d")
	if insight == nil {
		t.Fatal("expected an insight from a strong decline")
	}
	if len(insight.Recommendations) == 0 {
		t.Error("declining trend should carry a recommendation")
	}
}

func TestTrendInsightIgnoresNoise(t *testing.T) {
	// Values bouncing around a flat mean: weak fit, no insight.
	values := []float64{100, 95, 105, 98, 102, 97, 103, 100, 96, 104, 99, 101}
	if insight := TrendInsight(series(values), "12d"); insight != nil {
		t.Errorf("flat noisy series produced insight with signal %f", insight.Signal())
	}
}

func TestTrendInsightNeedsHistory(t *testing.T) {
	if insight := TrendInsight(series([]float64{1, 2, 3}), "3d"); insight != nil {
		t.Error("three samples are not enough for a trend")
	}
}

func TestFitTrendSlopeAndR2(t *testing.T) {
	values := make([]float64, 10)
	for i := range values {
		values[i] = 5 + float64(i)*1.5
	}
	fit := fitTrend(series(values))
	if math.Abs(fit.slope-1.5) > 1e-9 {
		t.Errorf("slope %f, want 1.5", fit.slope)
	}
	if math.Abs(fit.rSquared-1.0) > 1e-9 {
		t.Errorf("r² %f, want 1.0", fit.rSquared)
	}
	if fit.direction != "growing" {
		t.Errorf("direction %s", fit.direction)
	}
}

func TestAnomalyInsightsCarrySeverity(t *testing.T) {
	anomalies := []types.Anomaly{
		{
			MetricType:    "ingestion_count",
			Timestamp:     time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
			Severity:      1.0,
			ExpectedValue: 100,
			ActualValue:   500,
			AnomalyType:   types.AnomalySpike,
		},
		{
			MetricType:    "ingestion_count",
			Timestamp:     time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
			Severity:      0.05, // below the signal floor with 0.9 confidence
			ExpectedValue: 100,
			ActualValue:   110,
			AnomalyType:   types.AnomalySpike,
		},
	}

	insights := AnomalyInsights(anomalies)
	if len(insights) != 1 {
		t.Fatalf("expected the weak anomaly filtered out, got %d insights", len(insights))
	}
	if insights[0].ImpactScore != 1.0 {
		t.Errorf("impact should follow severity, got %f", insights[0].ImpactScore)
	}
}

func TestClusterInsightsRankBySignal(t *testing.T) {
	clusters := []types.Cluster{
		{ID: "clu:1", RunID: "run:1", Algorithm: types.AlgorithmKMeans, Label: "databases, storage", CoherenceScore: 0.9},
		{ID: "clu:2", RunID: "run:1", Algorithm: types.AlgorithmKMeans, Label: "hiking, trails", CoherenceScore: 0.5},
		{ID: "clu:3", RunID: "run:1", Algorithm: types.AlgorithmKMeans, Label: "singleton"},
	}
	members := []types.ClusterMembership{
		{ClusterID: "clu:1", MemoryID: "mem:1"},
		{ClusterID: "clu:1", MemoryID: "mem:2"},
		{ClusterID: "clu:1", MemoryID: "mem:3"},
		{ClusterID: "clu:2", MemoryID: "mem:4"},
		{ClusterID: "clu:2", MemoryID: "mem:5"},
		{ClusterID: "clu:3", MemoryID: "mem:6"},
	}

	insights := ClusterInsights(clusters, members)
	if len(insights) != 2 {
		t.Fatalf("expected 2 insights (singleton skipped), got %d", len(insights))
	}
	if insights[0].Signal() < insights[1].Signal() {
		t.Error("insights not ordered by signal")
	}
}

func TestGapInsightsFilterWeakGaps(t *testing.T) {
	gaps := []types.KnowledgeGap{
		{Topic: "Go / SQLite", RelatedConcepts: []string{"Go", "SQLite"}, GapScore: 0.8, ImportanceScore: 0.7},
		{Topic: "a / b", RelatedConcepts: []string{"a", "b"}, GapScore: 0.2, ImportanceScore: 0.1},
	}
	insights := GapInsights(gaps)
	if len(insights) != 1 {
		t.Fatalf("expected weak gap filtered, got %d insights", len(insights))
	}
	if insights[0].Category != types.InsightKnowledgeGap {
		t.Errorf("category %s", insights[0].Category)
	}
}
