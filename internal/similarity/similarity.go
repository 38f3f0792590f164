// Package similarity provides the per-dimension scoring functions used to
// compare two memories. Every function returns a score in [0.0, 1.0], takes
// only the inputs it needs, and degrades to 0.0 on missing or malformed data
// instead of returning an error.
package similarity

import (
	"math"
	"time"
)

// DefaultTemporalHalfLife is the elapsed time at which temporal proximity
// halves. Memories created three days apart score 0.5.
const DefaultTemporalHalfLife = 72 * time.Hour

// Cosine computes cosine similarity between two embedding vectors, mapped
// into [0,1]. Returns 0.0 if either vector is absent, the dimensions
// mismatch, or either norm is zero.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) {
		return 0.0
	}

	// Raw cosine is in [-1,1]; anti-correlated embeddings carry no
	// relatedness signal here, so negative values floor at 0.
	return clamp01(sim)
}

// TemporalProximity scores how close two creation timestamps are using
// exponential decay: 1.0 at zero elapsed time, 0.5 after one half-life,
// approaching 0 asymptotically. A non-positive halfLife falls back to
// DefaultTemporalHalfLife. Zero timestamps score 0.0.
func TemporalProximity(t1, t2 time.Time, halfLife time.Duration) float64 {
	if t1.IsZero() || t2.IsZero() {
		return 0.0
	}
	if halfLife <= 0 {
		halfLife = DefaultTemporalHalfLife
	}

	elapsed := t1.Sub(t2)
	if elapsed < 0 {
		elapsed = -elapsed
	}

	return clamp01(math.Exp2(-float64(elapsed) / float64(halfLife)))
}

// ContentOverlap computes Jaccard similarity over the normalized,
// stop-word-filtered token sets of two contents. Empty content scores 0.0.
func ContentOverlap(a, b string) float64 {
	return clamp01(Jaccard(Tokenize(a), Tokenize(b)))
}

// ContextualAssociation scores the overlap of two tag sets plus a bonus for
// shared entity mentions. Tag overlap contributes up to 0.8 and shared
// entities up to 0.2, so a pair with identical tags and shared entities
// reaches 1.0.
func ContextualAssociation(tagsA, tagsB []string, sharedEntities int) float64 {
	tagScore := JaccardStrings(tagsA, tagsB)
	entityBonus := math.Min(float64(sharedEntities)*0.1, 0.2)
	return clamp01(tagScore*0.8 + entityBonus)
}

// clamp01 clamps v to [0,1] and maps NaN to 0.
func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0.0
	}
	if v < 0 {
		return 0.0
	}
	if v > 1 {
		return 1.0
	}
	return v
}
