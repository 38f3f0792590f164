// Package cluster groups memories into topic clusters by embedding
// proximity. Three algorithms are supported: k-means for balanced
// partitions, DBSCAN for density-based grouping with noise, and
// agglomerative hierarchical clustering for nested topics. Runs are
// deterministic for a fixed seed and input order.
package cluster

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cortexkb/cortex/internal/similarity"
	"github.com/cortexkb/cortex/pkg/types"
)

// Item is one memory presented for clustering.
type Item struct {
	ID      string
	Vector  []float64
	Content string
}

// Options selects and tunes the clustering algorithm.
type Options struct {
	// Algorithm is one of types.AlgorithmKMeans, AlgorithmDBSCAN,
	// AlgorithmHierarchical.
	Algorithm string

	// K fixes the cluster count for k-means and hierarchical. Zero means
	// adaptive: k-means picks k by silhouette score, hierarchical derives
	// it from the input size.
	K int

	// Seed drives centroid initialization. Equal seeds and equal inputs
	// produce equal partitions.
	Seed int64

	// Epsilon is the DBSCAN neighborhood radius in cosine distance
	// (default 0.25).
	Epsilon float64

	// MinPoints is the DBSCAN core-point threshold (default 3).
	MinPoints int
}

// Result is one complete clustering run.
type Result struct {
	RunID    string
	Clusters []types.Cluster
	Members  []types.ClusterMembership

	// Truncated is set when the run's context expired before the
	// algorithm converged; the clusters reflect the last completed pass.
	Truncated bool
}

// Run partitions items using the configured algorithm. Every item is
// assigned to at most one cluster; DBSCAN may leave noise items
// unassigned. Items without vectors are skipped.
func Run(ctx context.Context, items []Item, opts Options) (*Result, error) {
	usable := make([]Item, 0, len(items))
	for _, item := range items {
		if len(item.Vector) > 0 {
			usable = append(usable, item)
		}
	}
	if len(usable) < 2 {
		return nil, fmt.Errorf("cluster: need at least 2 items with embeddings, got %d", len(usable))
	}

	var (
		assignments []int // item index -> cluster ordinal, -1 for noise
		parents     []int // cluster ordinal -> parent ordinal, -1 for none
		err         error
	)
	switch opts.Algorithm {
	case types.AlgorithmKMeans:
		assignments, err = kmeans(ctx, usable, opts)
	case types.AlgorithmDBSCAN:
		assignments, err = dbscan(ctx, usable, opts)
	case types.AlgorithmHierarchical:
		assignments, parents, err = hierarchical(ctx, usable, opts)
	default:
		return nil, fmt.Errorf("cluster: unknown algorithm %q", opts.Algorithm)
	}
	if err != nil {
		return nil, err
	}

	result := buildResult(usable, assignments, parents, opts.Algorithm)
	result.Truncated = ctx.Err() != nil
	return result, nil
}

// buildResult converts raw assignments into persisted cluster artifacts,
// labeling each cluster from its members' shared vocabulary.
func buildResult(items []Item, assignments []int, parents []int, algorithm string) *Result {
	count := 0
	for _, a := range assignments {
		if a >= count {
			count = a + 1
		}
	}

	runID := "run:" + uuid.NewString()
	now := time.Now().UTC()
	ids := make([]string, count)
	memberIdx := make([][]int, count)
	for i := range ids {
		ids[i] = "clu:" + uuid.NewString()
	}
	for itemIdx, a := range assignments {
		if a >= 0 {
			memberIdx[a] = append(memberIdx[a], itemIdx)
		}
	}

	// Parent clusters from hierarchical runs carry no direct memberships;
	// for labeling and coherence they see their descendants' items.
	effective := make([][]int, count)
	copy(effective, memberIdx)
	if parents != nil {
		for ordinal, parent := range parents {
			if parent >= 0 {
				effective[parent] = append(effective[parent], memberIdx[ordinal]...)
			}
		}
	}

	result := &Result{RunID: runID}
	for ordinal := 0; ordinal < count; ordinal++ {
		if len(effective[ordinal]) == 0 {
			continue
		}
		cluster := types.Cluster{
			ID:             ids[ordinal],
			RunID:          runID,
			Algorithm:      algorithm,
			Label:          label(items, effective[ordinal]),
			CoherenceScore: coherence(items, effective[ordinal]),
			CreatedAt:      now,
		}
		if parents != nil && parents[ordinal] >= 0 {
			cluster.ParentID = ids[parents[ordinal]]
		}
		result.Clusters = append(result.Clusters, cluster)

		members := memberIdx[ordinal]
		centroid := centroidOf(items, members)
		for _, itemIdx := range members {
			result.Members = append(result.Members, types.ClusterMembership{
				ClusterID:          ids[ordinal],
				MemoryID:           items[itemIdx].ID,
				DistanceToCentroid: cosineDistance(items[itemIdx].Vector, centroid),
			})
		}
	}
	return result
}

// label names a cluster from the most frequent tokens across its members.
func label(items []Item, members []int) string {
	counts := map[string]int{}
	for _, idx := range members {
		for token := range similarity.Tokenize(items[idx].Content) {
			counts[token]++
		}
	}
	type tokenCount struct {
		token string
		count int
	}
	ranked := make([]tokenCount, 0, len(counts))
	for token, count := range counts {
		ranked = append(ranked, tokenCount{token, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].token < ranked[j].token
	})
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}
	tokens := make([]string, len(ranked))
	for i, tc := range ranked {
		tokens[i] = tc.token
	}
	return strings.Join(tokens, ", ")
}

// coherence is the mean pairwise cosine similarity among members. Large
// clusters are sampled to keep the computation quadratic in a constant.
func coherence(items []Item, members []int) float64 {
	const maxSample = 30
	sample := members
	if len(sample) > maxSample {
		sample = sample[:maxSample]
	}
	if len(sample) < 2 {
		return 1.0
	}

	var sum float64
	var pairs int
	for i := 0; i < len(sample); i++ {
		for j := i + 1; j < len(sample); j++ {
			sum += similarity.Cosine(items[sample[i]].Vector, items[sample[j]].Vector)
			pairs++
		}
	}
	return sum / float64(pairs)
}

func centroidOf(items []Item, members []int) []float64 {
	if len(members) == 0 {
		return nil
	}
	centroid := make([]float64, len(items[members[0]].Vector))
	for _, idx := range members {
		for d, x := range items[idx].Vector {
			centroid[d] += x
		}
	}
	for d := range centroid {
		centroid[d] /= float64(len(members))
	}
	return centroid
}

func cosineDistance(a, b []float64) float64 {
	return 1.0 - similarity.Cosine(a, b)
}
