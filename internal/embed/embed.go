// Package embed generates and caches embedding vectors for memory content.
// The analysis engine compares memories in embedding space; this package
// isolates the inference backend behind a small interface so tests can stub
// it and production can point at a local model server.
package embed

import (
	"context"
	"errors"
)

// ErrEmbeddingUnavailable is returned when the backend cannot serve the
// request right now (circuit open, rate limited with no budget, backend
// down). Callers should degrade to non-semantic dimensions rather than fail
// the whole analysis.
var ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

// Generator produces embedding vectors for text.
type Generator interface {
	// Embed returns the embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float64, error)

	// Model returns the identifier of the model producing the vectors.
	// Vectors from different models are never compared to each other.
	Model() string

	// Dimension returns the length of the vectors this generator produces.
	Dimension() int
}
