package insight

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cortexkb/cortex/internal/storage"
	"github.com/cortexkb/cortex/pkg/types"
)

// GapFinder locates under-covered areas of the knowledge graph: entity
// pairs that keep showing up in the same memories without any direct
// relationship recorded between them. Heavy co-occurrence with thin
// coverage suggests a connection the graph has not captured yet.
type GapFinder struct {
	graph storage.GraphStore
}

// NewGapFinder creates a finder over the given graph store.
func NewGapFinder(graph storage.GraphStore) *GapFinder {
	return &GapFinder{graph: graph}
}

// minCoOccurrences is how many shared memories a pair needs before its
// missing edge counts as a gap rather than coincidence.
const minCoOccurrences = 3

// Find returns knowledge gaps ordered by gap score descending.
func (f *GapFinder) Find(ctx context.Context, limit int) ([]types.KnowledgeGap, error) {
	if limit < 1 {
		limit = 10
	}

	pairs, err := f.graph.CoMentions(ctx, minCoOccurrences)
	if err != nil {
		return nil, fmt.Errorf("gaps: failed to load co-mentions: %w", err)
	}

	var gaps []types.KnowledgeGap
	for _, pair := range pairs {
		edges, err := f.graph.CountRelationshipsBetween(ctx, pair.EntityA, pair.EntityB)
		if err != nil {
			return nil, fmt.Errorf("gaps: failed to count relationships: %w", err)
		}

		// Gap score grows with co-occurrence and shrinks with each edge
		// already covering the pair.
		score := (1.0 - math.Exp(-float64(pair.SharedCount)/5.0)) / float64(edges+1)
		if edges > 0 && score < 0.2 {
			continue
		}

		entityA, err := f.graph.GetEntity(ctx, pair.EntityA)
		if err != nil {
			return nil, err
		}
		entityB, err := f.graph.GetEntity(ctx, pair.EntityB)
		if err != nil {
			return nil, err
		}

		gaps = append(gaps, types.KnowledgeGap{
			Topic:           fmt.Sprintf("%s / %s", entityA.Name, entityB.Name),
			RelatedConcepts: []string{entityA.Name, entityB.Name},
			GapScore:        clamp01(score),
			ImportanceScore: clamp01((entityA.ImportanceScore + entityB.ImportanceScore) / 2),
			SuggestedQueries: []string{
				fmt.Sprintf("how does %s relate to %s", entityA.Name, entityB.Name),
			},
		})
	}

	sort.Slice(gaps, func(i, j int) bool {
		return gaps[i].GapScore*gaps[i].ImportanceScore > gaps[j].GapScore*gaps[j].ImportanceScore
	})
	if len(gaps) > limit {
		gaps = gaps[:limit]
	}
	return gaps, nil
}

// GapInsights converts knowledge gaps into insights for storage alongside
// the other categories.
func GapInsights(gaps []types.KnowledgeGap) []types.Insight {
	now := time.Now().UTC()
	var insights []types.Insight
	for _, gap := range gaps {
		insight := types.Insight{
			ID:       "ins:" + uuid.NewString(),
			Category: types.InsightKnowledgeGap,
			Title:    fmt.Sprintf("possible missing link: %s", gap.Topic),
			Description: fmt.Sprintf("%s appear together often but have no recorded relationship",
				gap.Topic),
			Confidence:      clamp01(gap.GapScore),
			ImpactScore:     clamp01(gap.ImportanceScore),
			Recommendations: gap.SuggestedQueries,
			CreatedAt:       now,
		}
		if insight.Signal() < MinSignal {
			continue
		}
		insights = append(insights, insight)
	}
	return insights
}
