package cluster

import "context"

const (
	defaultEpsilon   = 0.25
	defaultMinPoints = 3
)

// dbscan groups items by density. Core points (those with at least
// MinPoints neighbors within Epsilon cosine distance) seed clusters that
// expand through density-reachable points; everything else is noise and
// gets assignment -1. Context expiry stops the scan; unreached items are
// reported as noise.
func dbscan(ctx context.Context, items []Item, opts Options) ([]int, error) {
	epsilon := opts.Epsilon
	if epsilon <= 0 {
		epsilon = defaultEpsilon
	}
	minPoints := opts.MinPoints
	if minPoints < 1 {
		minPoints = defaultMinPoints
	}

	const (
		unvisited = -2
		noise     = -1
	)
	assignments := make([]int, len(items))
	for i := range assignments {
		assignments[i] = unvisited
	}

	neighborsOf := func(i int) []int {
		var neighbors []int
		for j := range items {
			if j != i && cosineDistance(items[i].Vector, items[j].Vector) <= epsilon {
				neighbors = append(neighbors, j)
			}
		}
		return neighbors
	}

	cluster := 0
	for i := range items {
		if ctx.Err() != nil {
			break
		}
		if assignments[i] != unvisited {
			continue
		}
		neighbors := neighborsOf(i)
		if len(neighbors) < minPoints {
			assignments[i] = noise
			continue
		}

		assignments[i] = cluster
		// Expand the cluster through density-reachable points. Noise points
		// become border members when reached; only core points extend the
		// frontier.
		for cursor := 0; cursor < len(neighbors); cursor++ {
			if ctx.Err() != nil {
				break
			}
			j := neighbors[cursor]
			if assignments[j] == noise {
				assignments[j] = cluster
				continue
			}
			if assignments[j] != unvisited {
				continue
			}
			assignments[j] = cluster
			if next := neighborsOf(j); len(next) >= minPoints {
				neighbors = append(neighbors, next...)
			}
		}
		cluster++
	}

	for i := range assignments {
		if assignments[i] == unvisited {
			assignments[i] = noise
		}
	}
	return assignments, nil
}
