package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cortexkb/cortex/internal/anomaly"
	"github.com/cortexkb/cortex/internal/cluster"
	"github.com/cortexkb/cortex/internal/insight"
	"github.com/cortexkb/cortex/internal/storage"
	"github.com/cortexkb/cortex/pkg/types"
)

// maxClusterInput caps how many memories one clustering run considers, most
// recent first.
const maxClusterInput = 2000

// Cluster runs a clustering pass and persists the run, superseding the
// previous one for the same algorithm. A nil memoryIDs slice clusters a
// snapshot of the whole corpus; an explicit slice restricts the run to
// those memories.
func (a *Analyzer) Cluster(ctx context.Context, memoryIDs []string, algorithm string, k int) (*cluster.Result, error) {
	if a.analysis == nil {
		return nil, fmt.Errorf("engine: no analysis store configured")
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.BatchTimeout)
	defer cancel()

	var items []cluster.Item
	var err error
	if len(memoryIDs) == 0 {
		items, err = a.clusterSnapshot(ctx)
	} else {
		items, err = a.clusterItems(ctx, memoryIDs)
	}
	if err != nil {
		return nil, err
	}

	result, err := cluster.Run(ctx, items, cluster.Options{
		Algorithm: algorithm,
		K:         k,
		Seed:      a.config.ClusterSeed,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: clustering failed: %w", err)
	}

	if result.Truncated {
		// A timed-out run is returned to the caller but never supersedes
		// the last complete one.
		log.Printf("engine: %s clustering hit the batch timeout, returning partial result", algorithm)
		return result, nil
	}

	if err := a.analysis.SaveClusterRun(ctx, result.Clusters, result.Members); err != nil {
		return nil, fmt.Errorf("engine: failed to persist cluster run: %w", err)
	}
	log.Printf("engine: %s clustering produced %d clusters over %d memories",
		algorithm, len(result.Clusters), len(items))
	return result, nil
}

// clusterSnapshot loads memories with embeddings. The pagination freezes a
// point-in-time view; memories ingested mid-run simply wait for the next
// pass.
func (a *Analyzer) clusterSnapshot(ctx context.Context) ([]cluster.Item, error) {
	var items []cluster.Item
	opts := storage.ListOptions{Limit: 500}
	for page := 1; len(items) < maxClusterInput; page++ {
		opts.Page = page
		result, err := a.memories.ListMemories(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("engine: failed to list memories for clustering: %w", err)
		}
		for _, memory := range result.Items {
			embedding, err := a.memories.GetEmbedding(ctx, memory.ID)
			if err != nil {
				continue // not embedded yet
			}
			items = append(items, cluster.Item{
				ID:      memory.ID,
				Vector:  embedding,
				Content: memory.Content,
			})
		}
		if !result.HasMore {
			break
		}
	}
	return items, nil
}

// clusterItems loads an explicit memory set. Memories that are missing or
// not yet embedded are skipped rather than failing the run.
func (a *Analyzer) clusterItems(ctx context.Context, memoryIDs []string) ([]cluster.Item, error) {
	items := make([]cluster.Item, 0, len(memoryIDs))
	for _, memoryID := range memoryIDs {
		memory, err := a.memories.GetMemory(ctx, memoryID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				log.Printf("engine: skipping unknown memory %s in cluster input", memoryID)
				continue
			}
			return nil, fmt.Errorf("engine: failed to load cluster input: %w", err)
		}
		embedding, err := a.memories.GetEmbedding(ctx, memoryID)
		if err != nil {
			continue
		}
		items = append(items, cluster.Item{
			ID:      memory.ID,
			Vector:  embedding,
			Content: memory.Content,
		})
	}
	return items, nil
}

// AggregateMetrics buckets memory activity over the window ending now and
// appends the resulting samples.
func (a *Analyzer) AggregateMetrics(ctx context.Context, granularity string, window time.Duration) (int, error) {
	if a.metrics == nil {
		return 0, fmt.Errorf("engine: no metric store configured")
	}
	aggregator := anomaly.NewAggregator(a.memories, a.metrics)
	now := time.Now().UTC()
	return aggregator.AggregateIngestion(ctx, granularity, now.Add(-window), now)
}

// DetectAnomalies scans a metric series over the trailing window and
// persists the findings, superseding the previous run for that metric.
func (a *Analyzer) DetectAnomalies(ctx context.Context, metricType, granularity string, window time.Duration) ([]types.Anomaly, error) {
	if a.metrics == nil || a.analysis == nil {
		return nil, fmt.Errorf("engine: metric and analysis stores are required")
	}

	now := time.Now().UTC()
	samples, err := a.metrics.GetSeries(ctx, metricType, granularity, now.Add(-window), now)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to load series: %w", err)
	}

	anomalies := anomaly.Detect(samples, anomaly.Options{})
	if err := a.analysis.SaveAnomalies(ctx, metricType, anomalies); err != nil {
		return nil, fmt.Errorf("engine: failed to persist anomalies: %w", err)
	}
	return anomalies, nil
}

// GenerateInsights produces a full insight run: the ingestion trend, recent
// anomalies, the latest cluster themes and knowledge gaps, persisted
// together with per-category supersession. A zero timeframe defaults to 30
// days; minConfidence and minImpact filter what gets persisted.
func (a *Analyzer) GenerateInsights(ctx context.Context, timeframe time.Duration, minConfidence, minImpact float64) ([]types.Insight, error) {
	if a.metrics == nil || a.analysis == nil {
		return nil, fmt.Errorf("engine: metric and analysis stores are required")
	}
	if timeframe <= 0 {
		timeframe = 30 * 24 * time.Hour
	}

	var insights []types.Insight

	now := time.Now().UTC()
	samples, err := a.metrics.GetSeries(ctx, anomaly.MetricIngestionCount, types.GranularityDay,
		now.Add(-timeframe), now)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to load trend series: %w", err)
	}
	label := fmt.Sprintf("%dd", int(timeframe.Hours()/24))
	if trendInsight := insight.TrendInsight(samples, label); trendInsight != nil {
		insights = append(insights, *trendInsight)
	}

	anomalies := anomaly.Detect(samples, anomaly.Options{})
	insights = append(insights, insight.AnomalyInsights(anomalies)...)

	clusters, members, err := a.analysis.LatestClusters(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to load clusters: %w", err)
	}
	insights = append(insights, insight.ClusterInsights(clusters, members)...)

	gaps, err := a.AnalyzeKnowledgeGaps(ctx, nil)
	if err != nil {
		return nil, err
	}
	insights = append(insights, insight.GapInsights(gaps)...)

	kept := insights[:0]
	for _, ins := range insights {
		if ins.Confidence >= minConfidence && ins.ImpactScore >= minImpact {
			kept = append(kept, ins)
		}
	}
	insights = kept

	if len(insights) == 0 {
		return nil, nil
	}
	if err := a.analysis.SaveInsights(ctx, insights); err != nil {
		return nil, fmt.Errorf("engine: failed to persist insights: %w", err)
	}
	log.Printf("engine: generated %d insights", len(insights))
	return insights, nil
}

// maxKnowledgeGaps bounds one gap-analysis pass.
const maxKnowledgeGaps = 25

// AnalyzeKnowledgeGaps finds under-covered entity pairs in the graph. When
// focusAreas is non-empty, only gaps touching one of those topics are
// returned.
func (a *Analyzer) AnalyzeKnowledgeGaps(ctx context.Context, focusAreas []string) ([]types.KnowledgeGap, error) {
	gaps, err := insight.NewGapFinder(a.graph).Find(ctx, maxKnowledgeGaps)
	if err != nil {
		return nil, err
	}
	if len(focusAreas) == 0 {
		return gaps, nil
	}

	matched := gaps[:0]
	for _, gap := range gaps {
		if gapMatchesFocus(gap, focusAreas) {
			matched = append(matched, gap)
		}
	}
	return matched, nil
}

func gapMatchesFocus(gap types.KnowledgeGap, focusAreas []string) bool {
	for _, area := range focusAreas {
		needle := strings.ToLower(area)
		if strings.Contains(strings.ToLower(gap.Topic), needle) {
			return true
		}
		for _, concept := range gap.RelatedConcepts {
			if strings.Contains(strings.ToLower(concept), needle) {
				return true
			}
		}
	}
	return false
}

// GetGraph serves a bounded subgraph for visualization.
func (a *Analyzer) GetGraph(ctx context.Context, scope string, bounds storage.GraphBounds) (*storage.GraphView, error) {
	return a.graph.GetGraph(ctx, scope, bounds)
}

// GetMemoryRelationships returns a memory's persisted relationships.
func (a *Analyzer) GetMemoryRelationships(ctx context.Context, memoryID string) ([]types.MemoryRelationship, error) {
	return a.graph.GetMemoryRelationships(ctx, memoryID)
}

// LatestInsights returns the current non-superseded insight set.
func (a *Analyzer) LatestInsights(ctx context.Context, limit int) ([]types.Insight, error) {
	if a.analysis == nil {
		return nil, fmt.Errorf("engine: no analysis store configured")
	}
	return a.analysis.LatestInsights(ctx, limit)
}
