package cluster

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/cortexkb/cortex/pkg/types"
)

// threeTopicItems builds three well-separated groups of vectors with a
// little seeded jitter, the shape a corpus with three distinct topics has.
func threeTopicItems(perGroup int) []Item {
	rng := rand.New(rand.NewSource(7))
	bases := [][]float64{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
	contents := []string{
		"notes about database schema migration",
		"thoughts on hiking trails and camping",
		"golang concurrency patterns and channels",
	}
	var items []Item
	for g, base := range bases {
		for i := 0; i < perGroup; i++ {
			vector := make([]float64, len(base))
			for d := range base {
				vector[d] = base[d] + rng.Float64()*0.05
			}
			items = append(items, Item{
				ID:      fmt.Sprintf("mem:%d-%d", g, i),
				Vector:  vector,
				Content: contents[g],
			})
		}
	}
	return items
}

func assignmentsByMemory(result *Result) map[string]string {
	byMemory := map[string]string{}
	for _, m := range result.Members {
		byMemory[m.MemoryID] = m.ClusterID
	}
	return byMemory
}

func TestKMeansSeparatesTopics(t *testing.T) {
	items := threeTopicItems(5)
	result, err := Run(context.Background(), items, Options{
		Algorithm: types.AlgorithmKMeans,
		K:         3,
		Seed:      42,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Clusters) != 3 {
		t.Fatalf("expected 3 clusters, got %d", len(result.Clusters))
	}
	if len(result.Members) != len(items) {
		t.Fatalf("expected %d memberships, got %d", len(items), len(result.Members))
	}

	// Items from the same topic land in the same cluster.
	byMemory := assignmentsByMemory(result)
	for g := 0; g < 3; g++ {
		first := byMemory[fmt.Sprintf("mem:%d-0", g)]
		for i := 1; i < 5; i++ {
			if byMemory[fmt.Sprintf("mem:%d-%d", g, i)] != first {
				t.Errorf("topic %d split across clusters", g)
			}
		}
	}

	for _, c := range result.Clusters {
		if c.CoherenceScore < 0.9 {
			t.Errorf("cluster %s coherence %f, expected tight cluster", c.Label, c.CoherenceScore)
		}
		if c.Label == "" {
			t.Error("cluster has no label")
		}
	}
}

func TestKMeansDeterministicForSeed(t *testing.T) {
	items := threeTopicItems(4)
	partition := func(seed int64) map[string][]string {
		result, err := Run(context.Background(), items, Options{
			Algorithm: types.AlgorithmKMeans,
			K:         3,
			Seed:      seed,
		})
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		groups := map[string][]string{}
		for _, m := range result.Members {
			groups[m.ClusterID] = append(groups[m.ClusterID], m.MemoryID)
		}
		// Re-key by smallest member so cluster UUIDs don't matter.
		canonical := map[string][]string{}
		for _, members := range groups {
			min := members[0]
			for _, id := range members {
				if id < min {
					min = id
				}
			}
			canonical[min] = members
		}
		return canonical
	}

	if !reflect.DeepEqual(partition(42), partition(42)) {
		t.Error("same seed produced different partitions")
	}
}

func TestKMeansAdaptiveK(t *testing.T) {
	items := threeTopicItems(6)
	result, err := Run(context.Background(), items, Options{
		Algorithm: types.AlgorithmKMeans,
		Seed:      42,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Clusters) != 3 {
		t.Errorf("silhouette selection picked %d clusters for 3 topics", len(result.Clusters))
	}
}

func TestDBSCANLeavesNoise(t *testing.T) {
	items := threeTopicItems(5)
	// An outlier far from every topic.
	items = append(items, Item{
		ID:      "mem:outlier",
		Vector:  []float64{0.5, -0.5, 0.5, -0.5},
		Content: "completely unrelated ramble",
	})

	result, err := Run(context.Background(), items, Options{
		Algorithm: types.AlgorithmDBSCAN,
		Epsilon:   0.1,
		MinPoints: 3,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Clusters) != 3 {
		t.Errorf("expected 3 dense clusters, got %d", len(result.Clusters))
	}

	byMemory := assignmentsByMemory(result)
	if _, assigned := byMemory["mem:outlier"]; assigned {
		t.Error("outlier should be noise, not a cluster member")
	}
	if len(result.Members) != len(items)-1 {
		t.Errorf("expected %d memberships, got %d", len(items)-1, len(result.Members))
	}
}

func TestHierarchicalNestsClusters(t *testing.T) {
	items := threeTopicItems(4)
	result, err := Run(context.Background(), items, Options{
		Algorithm: types.AlgorithmHierarchical,
		K:         3,
		Seed:      42,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	parents := map[string]bool{}
	children := 0
	for _, c := range result.Clusters {
		if c.ParentID == "" {
			parents[c.ID] = true
		} else {
			children++
		}
	}
	if len(parents) == 0 || children == 0 {
		t.Fatalf("expected both parent and child clusters, got %d parents / %d children",
			len(parents), children)
	}
	for _, c := range result.Clusters {
		if c.ParentID != "" && !parents[c.ParentID] {
			t.Errorf("cluster %s references missing parent %s", c.ID, c.ParentID)
		}
	}

	// Memberships attach to leaf clusters only, each item exactly once.
	byMemory := assignmentsByMemory(result)
	if len(byMemory) != len(items) {
		t.Errorf("expected every item assigned once, got %d of %d", len(byMemory), len(items))
	}
}

func TestRunRejectsTinyInput(t *testing.T) {
	_, err := Run(context.Background(), []Item{{ID: "mem:1", Vector: []float64{1}}}, Options{
		Algorithm: types.AlgorithmKMeans,
	})
	if err == nil {
		t.Fatal("expected error for single-item input")
	}
}

func TestRunSkipsItemsWithoutVectors(t *testing.T) {
	items := threeTopicItems(3)
	items = append(items, Item{ID: "mem:no-vector", Content: "pending embedding"})

	result, err := Run(context.Background(), items, Options{
		Algorithm: types.AlgorithmKMeans,
		K:         3,
		Seed:      42,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, assigned := assignmentsByMemory(result)["mem:no-vector"]; assigned {
		t.Error("item without a vector must not be clustered")
	}
}

func TestRunMarksTruncatedOnExpiredContext(t *testing.T) {
	items := threeTopicItems(5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Run(ctx, items, Options{
		Algorithm: types.AlgorithmKMeans,
		K:         3,
		Seed:      42,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Truncated {
		t.Error("expired context should mark the result truncated")
	}
	// The partial result is still a valid partition: every item assigned
	// exactly once.
	if len(result.Members) != len(items) {
		t.Errorf("partial run assigned %d of %d items", len(result.Members), len(items))
	}

	fresh, err := Run(context.Background(), items, Options{
		Algorithm: types.AlgorithmKMeans,
		K:         3,
		Seed:      42,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fresh.Truncated {
		t.Error("unconstrained run must not be truncated")
	}
}

func TestDBSCANStopsOnExpiredContext(t *testing.T) {
	items := threeTopicItems(5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Run(ctx, items, Options{Algorithm: types.AlgorithmDBSCAN})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Truncated {
		t.Error("expired context should mark the result truncated")
	}
	// Unreached items are noise, never half-assigned.
	if len(result.Members) != 0 {
		t.Errorf("cancelled scan still assigned %d items", len(result.Members))
	}
}

func TestSilhouettePrefersTruePartition(t *testing.T) {
	items := threeTopicItems(5)
	good, _ := kmeansRun(context.Background(), items, 3, 42)
	bad, _ := kmeansRun(context.Background(), items, 7, 42)

	goodScore := silhouette(items, good, 3)
	badScore := silhouette(items, bad, 7)
	if goodScore <= badScore {
		t.Errorf("silhouette should prefer the true partition: k=3 %f vs k=7 %f", goodScore, badScore)
	}
	if goodScore < 0.5 || math.IsNaN(goodScore) {
		t.Errorf("well-separated partition scored %f", goodScore)
	}
}
