package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cortexkb/cortex/internal/composer"
	"github.com/cortexkb/cortex/internal/similarity"
	"github.com/cortexkb/cortex/internal/storage"
	"github.com/cortexkb/cortex/pkg/types"
)

// ComputeRelationships scores the memory against its candidate set and
// persists every relationship that clears the composite threshold. Returns
// the persisted relationships. Recomputing is idempotent: upserts keep the
// best-known score per pair.
func (a *Analyzer) ComputeRelationships(ctx context.Context, memoryID string) ([]types.MemoryRelationship, error) {
	memory, err := a.memories.GetMemory(ctx, memoryID)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to load memory %s: %w", memoryID, err)
	}

	candidates, err := a.candidates(ctx, memory)
	if err != nil {
		return nil, err
	}

	comp := composer.New(a.weights.Current(), a.config.MinCompositeScore)
	entities, err := a.graph.EntitiesForMemory(ctx, memory.ID)
	if err != nil {
		return nil, err
	}
	entitySet := toSet(entities)

	var persisted []types.MemoryRelationship
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return persisted, ctx.Err()
		}

		scores, err := a.scorePair(ctx, memory, candidate, entitySet)
		if err != nil {
			return persisted, err
		}
		result := comp.Compose(scores)
		if !comp.Passes(result) {
			continue
		}

		rel := &types.MemoryRelationship{
			SourceMemoryID: memory.ID,
			TargetMemoryID: candidate.ID,
			CompositeScore: result.Composite,
			Dimensions:     result.Scores,
			PrimaryType:    result.PrimaryType,
			Strength:       result.Strength,
			CreatedAt:      time.Now().UTC(),
		}
		if err := a.graph.UpsertMemoryRelationship(ctx, rel); err != nil {
			return persisted, fmt.Errorf("engine: failed to persist relationship: %w", err)
		}
		persisted = append(persisted, *rel)
	}
	return persisted, nil
}

// candidates bounds pairwise comparison: instead of scoring against the
// whole corpus, a memory is compared to tag siblings, temporal neighbors
// and (when an ANN index is wired) its nearest embedding neighbors.
func (a *Analyzer) candidates(ctx context.Context, memory *types.Memory) ([]*types.Memory, error) {
	seen := map[string]*types.Memory{}

	add := func(m types.Memory) {
		if m.ID != memory.ID && len(seen) < a.config.CandidateLimit {
			copied := m
			seen[m.ID] = &copied
		}
	}

	if len(memory.Tags) > 0 {
		result, err := a.memories.ListMemories(ctx, storage.ListOptions{
			Tags:  memory.Tags,
			Limit: a.config.CandidateLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("engine: tag candidate scan failed: %w", err)
		}
		for _, m := range result.Items {
			add(m)
		}
	}

	result, err := a.memories.ListMemories(ctx, storage.ListOptions{
		CreatedAfter:  memory.CreatedAt.Add(-a.config.CandidateWindow),
		CreatedBefore: memory.CreatedAt.Add(a.config.CandidateWindow),
		Limit:         a.config.CandidateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: temporal candidate scan failed: %w", err)
	}
	for _, m := range result.Items {
		add(m)
	}

	if a.index != nil && len(memory.Embedding) > 0 {
		neighborIDs, err := a.index.NearestNeighbors(ctx, memory.Embedding, a.config.CandidateLimit/2)
		if err != nil {
			// The index is an accelerator, not a source of truth.
			log.Printf("engine: ANN candidate lookup failed: %v", err)
		} else {
			for _, id := range neighborIDs {
				if id == memory.ID || seen[id] != nil {
					continue
				}
				neighbor, err := a.memories.GetMemory(ctx, id)
				if err != nil {
					if errors.Is(err, storage.ErrNotFound) {
						continue // index entry outlived its memory
					}
					return nil, err
				}
				add(*neighbor)
			}
		}
	}

	candidates := make([]*types.Memory, 0, len(seen))
	for _, m := range seen {
		candidates = append(candidates, m)
	}
	return candidates, nil
}

// scorePair computes all six dimension scores for a memory pair.
func (a *Analyzer) scorePair(ctx context.Context, memory, candidate *types.Memory, memoryEntities map[string]struct{}) (types.DimensionScores, error) {
	candidateEntities, err := a.graph.EntitiesForMemory(ctx, candidate.ID)
	if err != nil {
		return types.DimensionScores{}, err
	}
	shared := 0
	for _, id := range candidateEntities {
		if _, ok := memoryEntities[id]; ok {
			shared++
		}
	}

	// Candidates from list scans arrive without their vectors.
	if len(candidate.Embedding) == 0 {
		embedding, err := a.memories.GetEmbedding(ctx, candidate.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return types.DimensionScores{}, err
		}
		candidate.Embedding = embedding
	}

	// Cosine returns 0 on dimension mismatch, which also guards against
	// comparing vectors from different models.
	semantic := similarity.Cosine(memory.Embedding, candidate.Embedding)

	return types.DimensionScores{
		Semantic:   semantic,
		Temporal:   similarity.TemporalProximity(memory.CreatedAt, candidate.CreatedAt, similarity.DefaultTemporalHalfLife),
		Content:    similarity.ContentOverlap(memory.Content, candidate.Content),
		Hierarchy:  similarity.ConceptualHierarchy(memory.Content, candidate.Content, shared),
		Causal:     similarity.Causal(memory.Content, candidate.Content, shared),
		Contextual: similarity.ContextualAssociation(memory.Tags, candidate.Tags, shared),
	}, nil
}

// BatchResult reports a batch recompute: per-memory failures don't abort
// the rest of the batch.
type BatchResult struct {
	Processed     int
	Relationships int
	Failed        map[string]error
}

// BatchRecompute recomputes relationships for a set of memories
// synchronously, retrying transient failures with backoff. The whole batch
// runs under the configured batch timeout; memories not reached in time are
// reported as failed.
func (a *Analyzer) BatchRecompute(ctx context.Context, memoryIDs []string) *BatchResult {
	ctx, cancel := context.WithTimeout(ctx, a.config.BatchTimeout)
	defer cancel()

	result := &BatchResult{Failed: map[string]error{}}
	for _, memoryID := range memoryIDs {
		if err := ctx.Err(); err != nil {
			result.Failed[memoryID] = fmt.Errorf("engine: batch timed out: %w", err)
			continue
		}

		rels, err := a.computeWithRetry(ctx, memoryID)
		if err != nil {
			result.Failed[memoryID] = err
			continue
		}
		result.Processed++
		result.Relationships += len(rels)
	}
	return result
}

// computeWithRetry retries up to 3 attempts with doubling backoff. Missing
// memories fail immediately: retrying cannot make them appear.
func (a *Analyzer) computeWithRetry(ctx context.Context, memoryID string) ([]types.MemoryRelationship, error) {
	backoff := 100 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		rels, err := a.ComputeRelationships(ctx, memoryID)
		if err == nil {
			return rels, nil
		}
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("engine: giving up on %s after retries: %w", memoryID, lastErr)
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
