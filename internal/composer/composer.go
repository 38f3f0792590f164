// Package composer combines per-dimension similarity scores into a single
// composite score with a primary relationship classification. Malformed
// dimension scores (NaN, out of range) are clamped rather than failing the
// whole computation.
package composer

import (
	"fmt"
	"math"

	"github.com/cortexkb/cortex/pkg/types"
)

// Strength bucket boundaries on the composite score.
const (
	StrongThreshold   = 0.75
	ModerateThreshold = 0.45
)

// DefaultMinCompositeScore is the persistence threshold: relationships
// scoring below it are discarded, not stored.
const DefaultMinCompositeScore = 0.3

// Weights holds the per-dimension weights used for the composite score.
// Weights must sum to 1.0.
type Weights struct {
	Semantic   float64 `yaml:"semantic"`
	Temporal   float64 `yaml:"temporal"`
	Content    float64 `yaml:"content"`
	Hierarchy  float64 `yaml:"hierarchy"`
	Causal     float64 `yaml:"causal"`
	Contextual float64 `yaml:"contextual"`
}

// DefaultWeights returns the standard dimension weighting.
func DefaultWeights() Weights {
	return Weights{
		Semantic:   0.35,
		Temporal:   0.10,
		Content:    0.20,
		Hierarchy:  0.10,
		Causal:     0.10,
		Contextual: 0.15,
	}
}

// sum returns the total of all dimension weights.
func (w Weights) sum() float64 {
	return w.Semantic + w.Temporal + w.Content + w.Hierarchy + w.Causal + w.Contextual
}

// Validate checks that all weights are non-negative and sum to 1.0
// within floating-point tolerance.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Semantic, w.Temporal, w.Content, w.Hierarchy, w.Causal, w.Contextual} {
		if math.IsNaN(v) || v < 0 {
			return fmt.Errorf("weights must be non-negative, got %+v", w)
		}
	}
	if math.Abs(w.sum()-1.0) > 1e-6 {
		return fmt.Errorf("weights must sum to 1.0, got %f", w.sum())
	}
	return nil
}

// Normalize rescales the weights to sum to 1.0. Returns DefaultWeights when
// the current sum is zero or not finite.
func (w Weights) Normalize() Weights {
	total := w.sum()
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return DefaultWeights()
	}
	return Weights{
		Semantic:   w.Semantic / total,
		Temporal:   w.Temporal / total,
		Content:    w.Content / total,
		Hierarchy:  w.Hierarchy / total,
		Causal:     w.Causal / total,
		Contextual: w.Contextual / total,
	}
}

// get returns the weight for a named dimension.
func (w Weights) get(dimension string) float64 {
	switch dimension {
	case types.DimensionSemantic:
		return w.Semantic
	case types.DimensionTemporal:
		return w.Temporal
	case types.DimensionContent:
		return w.Content
	case types.DimensionHierarchy:
		return w.Hierarchy
	case types.DimensionCausal:
		return w.Causal
	case types.DimensionContextual:
		return w.Contextual
	}
	return 0.0
}

// Result is the outcome of composing a set of dimension scores.
type Result struct {
	// Composite is the weighted sum of the (clamped) dimension scores.
	Composite float64

	// Scores are the dimension scores after clamping to [0,1].
	Scores types.DimensionScores

	// PrimaryType is the dimension with the highest individual score.
	// Ties break by types.DimensionPriority.
	PrimaryType string

	// Strength is the bucket derived from Composite.
	Strength string
}

// Composer turns dimension scores into classified composite results.
type Composer struct {
	weights           Weights
	minCompositeScore float64
}

// New creates a Composer. Invalid weights are normalized; a non-positive
// minimum score falls back to DefaultMinCompositeScore.
func New(weights Weights, minCompositeScore float64) *Composer {
	if err := weights.Validate(); err != nil {
		weights = weights.Normalize()
	}
	if minCompositeScore <= 0 {
		minCompositeScore = DefaultMinCompositeScore
	}
	return &Composer{weights: weights, minCompositeScore: minCompositeScore}
}

// MinCompositeScore returns the persistence threshold.
func (c *Composer) MinCompositeScore() float64 {
	return c.minCompositeScore
}

// Compose combines the dimension scores into one composite result.
// Each dimension is clamped to [0,1] first (NaN becomes 0), so a single
// malformed score never corrupts the composite.
func (c *Composer) Compose(scores types.DimensionScores) Result {
	clamped := types.DimensionScores{
		Semantic:   clamp01(scores.Semantic),
		Temporal:   clamp01(scores.Temporal),
		Content:    clamp01(scores.Content),
		Hierarchy:  clamp01(scores.Hierarchy),
		Causal:     clamp01(scores.Causal),
		Contextual: clamp01(scores.Contextual),
	}

	composite := 0.0
	primary := types.DimensionPriority[0]
	best := -1.0
	for _, dimension := range types.DimensionPriority {
		score := clamped.Get(dimension)
		composite += score * c.weights.get(dimension)

		// Strict > keeps the earlier (higher-priority) dimension on ties.
		if score > best {
			best = score
			primary = dimension
		}
	}

	return Result{
		Composite:   clamp01(composite),
		Scores:      clamped,
		PrimaryType: primary,
		Strength:    strengthBucket(clamp01(composite)),
	}
}

// Passes reports whether a composed result meets the persistence threshold.
func (c *Composer) Passes(r Result) bool {
	return r.Composite >= c.minCompositeScore
}

// strengthBucket maps a composite score to its strength label.
func strengthBucket(composite float64) string {
	switch {
	case composite >= StrongThreshold:
		return types.StrengthStrong
	case composite >= ModerateThreshold:
		return types.StrengthModerate
	default:
		return types.StrengthWeak
	}
}

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
