package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache wraps a Generator with a bounded in-memory LRU keyed by content
// hash. Repeated analysis passes over unchanged memories hit the cache
// instead of the backend; the fixed capacity keeps memory use flat no
// matter how large the corpus grows.
type Cache struct {
	inner Generator
	lru   *lru.Cache[string, []float64]
}

var _ Generator = (*Cache)(nil)

// NewCache wraps gen with an LRU of the given capacity.
func NewCache(gen Generator, capacity int) (*Cache, error) {
	if capacity < 1 {
		capacity = 4096
	}
	cache, err := lru.New[string, []float64](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{inner: gen, lru: cache}, nil
}

// Embed returns a cached vector when the exact text has been embedded
// before, otherwise delegates to the wrapped generator. Backend errors are
// never cached.
func (c *Cache) Embed(ctx context.Context, text string) ([]float64, error) {
	key := contentKey(c.inner.Model(), text)
	if embedding, ok := c.lru.Get(key); ok {
		return embedding, nil
	}

	embedding, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, embedding)
	return embedding, nil
}

// Model returns the wrapped generator's model identifier.
func (c *Cache) Model() string { return c.inner.Model() }

// Dimension returns the wrapped generator's vector length.
func (c *Cache) Dimension() int { return c.inner.Dimension() }

// Len returns the number of cached embeddings.
func (c *Cache) Len() int { return c.lru.Len() }

// contentKey includes the model name so a model switch invalidates every
// entry rather than serving vectors from the wrong space.
func contentKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
