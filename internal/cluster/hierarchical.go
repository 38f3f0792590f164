package cluster

import (
	"context"
	"math"
)

// hierarchical runs agglomerative clustering with average linkage at two
// levels of granularity: a fine cut producing child clusters, then a coarse
// cut over the children's centroids producing parents. The returned parents
// slice maps every cluster ordinal to its parent ordinal (-1 for the
// top-level parents themselves).
func hierarchical(ctx context.Context, items []Item, opts Options) ([]int, []int, error) {
	coarse := opts.K
	if coarse < 1 {
		coarse = int(math.Ceil(math.Sqrt(float64(len(items)) / 2.0)))
	}
	if coarse < 1 {
		coarse = 1
	}
	fine := coarse * 2
	if fine > len(items) {
		fine = len(items)
	}

	fineGroups := agglomerate(ctx, vectorsOf(items), fine)

	// Cluster the fine groups' centroids into coarse parents.
	centroids := make([][]float64, len(fineGroups))
	for g, members := range fineGroups {
		centroids[g] = meanVector(items, members)
	}
	if coarse > len(fineGroups) {
		coarse = len(fineGroups)
	}
	coarseGroups := agglomerate(ctx, centroids, coarse)

	// Ordinals: parents first, then children.
	parentOf := make([]int, len(coarseGroups)+len(fineGroups))
	assignments := make([]int, len(items))
	for p := range coarseGroups {
		parentOf[p] = -1
	}
	fineToParent := make([]int, len(fineGroups))
	for p, group := range coarseGroups {
		for _, fineIdx := range group {
			fineToParent[fineIdx] = p
		}
	}
	for g, members := range fineGroups {
		ordinal := len(coarseGroups) + g
		parentOf[ordinal] = fineToParent[g]
		for _, itemIdx := range members {
			assignments[itemIdx] = ordinal
		}
	}

	return assignments, parentOf, nil
}

// agglomerate merges the closest pair of groups (average linkage over
// cosine distance) until target groups remain. Returns member index lists.
func agglomerate(ctx context.Context, vectors [][]float64, target int) [][]int {
	groups := make([][]int, len(vectors))
	for i := range vectors {
		groups[i] = []int{i}
	}

	for len(groups) > target {
		if ctx.Err() != nil {
			break
		}
		bestA, bestB := 0, 1
		bestDist := math.Inf(1)
		for a := 0; a < len(groups); a++ {
			for b := a + 1; b < len(groups); b++ {
				if d := averageLinkage(vectors, groups[a], groups[b]); d < bestDist {
					bestDist = d
					bestA, bestB = a, b
				}
			}
		}
		groups[bestA] = append(groups[bestA], groups[bestB]...)
		groups = append(groups[:bestB], groups[bestB+1:]...)
	}
	return groups
}

func averageLinkage(vectors [][]float64, a, b []int) float64 {
	var sum float64
	for _, i := range a {
		for _, j := range b {
			sum += cosineDistance(vectors[i], vectors[j])
		}
	}
	return sum / float64(len(a)*len(b))
}

func vectorsOf(items []Item) [][]float64 {
	vectors := make([][]float64, len(items))
	for i, item := range items {
		vectors[i] = item.Vector
	}
	return vectors
}

func meanVector(items []Item, members []int) []float64 {
	mean := make([]float64, len(items[members[0]].Vector))
	for _, idx := range members {
		for d, x := range items[idx].Vector {
			mean[d] += x
		}
	}
	for d := range mean {
		mean[d] /= float64(len(members))
	}
	return mean
}
