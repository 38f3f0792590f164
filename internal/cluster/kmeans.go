package cluster

import (
	"context"
	"math"
	"math/rand"
)

const (
	maxKMeansIterations = 100
	maxAdaptiveK        = 15
	silhouetteSample    = 200
)

// kmeans partitions items into k clusters. When opts.K is zero the cluster
// count is chosen adaptively: candidate k values are scored by silhouette
// and the best one wins. Cancelling the context stops iterating and returns
// the assignment reached so far.
func kmeans(ctx context.Context, items []Item, opts Options) ([]int, error) {
	if opts.K > 0 {
		assignments, _ := kmeansRun(ctx, items, opts.K, opts.Seed)
		return assignments, nil
	}

	bestScore := math.Inf(-1)
	var bestAssignments []int
	upper := maxAdaptiveK
	if upper > len(items)-1 {
		upper = len(items) - 1
	}
	for k := 2; k <= upper; k++ {
		assignments, _ := kmeansRun(ctx, items, k, opts.Seed)
		score := silhouette(items, assignments, k)
		if score > bestScore {
			bestScore = score
			bestAssignments = assignments
		}
		if ctx.Err() != nil {
			break
		}
	}
	return bestAssignments, nil
}

// kmeansRun is one seeded k-means execution: k-means++ style initialization
// followed by Lloyd iterations until assignments stop changing.
func kmeansRun(ctx context.Context, items []Item, k int, seed int64) ([]int, []([]float64)) {
	rng := rand.New(rand.NewSource(seed))
	centroids := seedCentroids(items, k, rng)
	assignments := make([]int, len(items))

	for iter := 0; iter < maxKMeansIterations; iter++ {
		changed := false
		for i, item := range items {
			nearest := nearestCentroid(item.Vector, centroids)
			if assignments[i] != nearest {
				assignments[i] = nearest
				changed = true
			}
		}
		if !changed || ctx.Err() != nil {
			break
		}

		counts := make([]int, k)
		next := make([][]float64, k)
		for c := range next {
			next[c] = make([]float64, len(items[0].Vector))
		}
		for i, item := range items {
			c := assignments[i]
			counts[c]++
			for d, x := range item.Vector {
				next[c][d] += x
			}
		}
		for c := range next {
			if counts[c] == 0 {
				// Reseed an empty cluster to the point farthest from its
				// current centroid so no cluster silently vanishes.
				next[c] = append([]float64{}, items[farthestItem(items, centroids, assignments)].Vector...)
				continue
			}
			for d := range next[c] {
				next[c][d] /= float64(counts[c])
			}
		}
		centroids = next
	}

	return assignments, centroids
}

// seedCentroids picks k starting centroids with distance-weighted sampling:
// the first uniformly, each subsequent one proportional to squared distance
// from the nearest chosen centroid.
func seedCentroids(items []Item, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := rng.Intn(len(items))
	centroids = append(centroids, append([]float64{}, items[first].Vector...))

	for len(centroids) < k {
		weights := make([]float64, len(items))
		var total float64
		for i, item := range items {
			d := cosineDistance(item.Vector, centroids[nearestCentroid(item.Vector, centroids)])
			weights[i] = d * d
			total += weights[i]
		}
		if total == 0 {
			// All remaining points coincide with existing centroids.
			centroids = append(centroids, append([]float64{}, items[rng.Intn(len(items))].Vector...))
			continue
		}
		target := rng.Float64() * total
		var cumulative float64
		chosen := len(items) - 1
		for i, w := range weights {
			cumulative += w
			if cumulative >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, append([]float64{}, items[chosen].Vector...))
	}
	return centroids
}

func nearestCentroid(vector []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for c, centroid := range centroids {
		if d := cosineDistance(vector, centroid); d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

func farthestItem(items []Item, centroids [][]float64, assignments []int) int {
	farthest := 0
	maxDist := -1.0
	for i, item := range items {
		if d := cosineDistance(item.Vector, centroids[assignments[i]]); d > maxDist {
			maxDist = d
			farthest = i
		}
	}
	return farthest
}

// silhouette scores a partition in [-1, 1]: high when items sit close to
// their own cluster and far from the nearest other one. Input is sampled to
// bound the quadratic cost.
func silhouette(items []Item, assignments []int, k int) float64 {
	if k < 2 {
		return -1
	}
	n := len(items)
	if n > silhouetteSample {
		n = silhouetteSample
	}

	var total float64
	var scored int
	for i := 0; i < n; i++ {
		own := assignments[i]
		sums := make([]float64, k)
		counts := make([]int, k)
		for j := 0; j < len(items); j++ {
			if j == i {
				continue
			}
			c := assignments[j]
			sums[c] += cosineDistance(items[i].Vector, items[j].Vector)
			counts[c]++
		}
		if counts[own] == 0 {
			continue
		}
		a := sums[own] / float64(counts[own])
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c == own || counts[c] == 0 {
				continue
			}
			if mean := sums[c] / float64(counts[c]); mean < b {
				b = mean
			}
		}
		if math.IsInf(b, 1) {
			continue
		}
		if max := math.Max(a, b); max > 0 {
			total += (b - a) / max
		}
		scored++
	}
	if scored == 0 {
		return -1
	}
	return total / float64(scored)
}
