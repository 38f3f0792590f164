package embed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newEmbedServer(t *testing.T, calls *atomic.Int64, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float64{{0.1, 0.2, 0.3}}})
	}))
}

func newTestClient(url string) *OllamaClient {
	return NewOllamaClient(OllamaConfig{
		BaseURL:           url,
		Model:             "test-model",
		Dimension:         3,
		RequestsPerSecond: 1000,
	})
}

func TestEmbedRoundTrip(t *testing.T) {
	var calls atomic.Int64
	server := newEmbedServer(t, &calls, http.StatusOK)
	defer server.Close()

	client := newTestClient(server.URL)
	embedding, err := client.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(embedding) != 3 {
		t.Errorf("expected 3 dimensions, got %d", len(embedding))
	}
	if client.Model() != "test-model" || client.Dimension() != 3 {
		t.Errorf("unexpected model metadata: %s/%d", client.Model(), client.Dimension())
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	var calls atomic.Int64
	server := newEmbedServer(t, &calls, http.StatusOK)
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{
		BaseURL:           server.URL,
		Dimension:         768,
		RequestsPerSecond: 1000,
	})
	if _, err := client.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int64
	server := newEmbedServer(t, &calls, http.StatusInternalServerError)
	defer server.Close()

	client := NewOllamaClient(OllamaConfig{
		BaseURL:           server.URL,
		Dimension:         3,
		RequestsPerSecond: 1000,
		Breaker: BreakerConfig{
			MaxFailures:          3,
			Timeout:              time.Minute,
			HalfOpenMaxSuccesses: 1,
		},
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := client.Embed(ctx, "text"); err == nil {
			t.Fatal("expected backend error")
		}
	}
	before := calls.Load()

	// Circuit is open: the backend is not called again.
	if _, err := client.Embed(ctx, "text"); err == nil {
		t.Fatal("expected circuit-open error")
	} else if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Errorf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if calls.Load() != before {
		t.Errorf("breaker did not stop calls: %d -> %d", before, calls.Load())
	}
}

type stubGenerator struct {
	calls atomic.Int64
	fail  bool
}

func (s *stubGenerator) Embed(ctx context.Context, text string) ([]float64, error) {
	s.calls.Add(1)
	if s.fail {
		return nil, fmt.Errorf("stub failure")
	}
	return []float64{float64(len(text)), 0, 0}, nil
}

func (s *stubGenerator) Model() string  { return "stub" }
func (s *stubGenerator) Dimension() int { return 3 }

func TestCacheHitsSkipBackend(t *testing.T) {
	stub := &stubGenerator{}
	cache, err := NewCache(stub, 10)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := cache.Embed(ctx, "same text"); err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
	}
	if got := stub.calls.Load(); got != 1 {
		t.Errorf("expected 1 backend call, got %d", got)
	}
	if cache.Len() != 1 {
		t.Errorf("expected 1 cached entry, got %d", cache.Len())
	}
}

func TestCacheDoesNotCacheErrors(t *testing.T) {
	stub := &stubGenerator{fail: true}
	cache, err := NewCache(stub, 10)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := cache.Embed(ctx, "text"); err == nil {
			t.Fatal("expected error from failing backend")
		}
	}
	if got := stub.calls.Load(); got != 3 {
		t.Errorf("expected 3 backend calls, got %d", got)
	}
	if cache.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", cache.Len())
	}
}

func TestCacheEvictsAtCapacity(t *testing.T) {
	stub := &stubGenerator{}
	cache, err := NewCache(stub, 2)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}

	ctx := context.Background()
	for _, text := range []string{"a", "bb", "ccc"} {
		if _, err := cache.Embed(ctx, text); err != nil {
			t.Fatalf("Embed failed: %v", err)
		}
	}
	if cache.Len() != 2 {
		t.Errorf("expected capacity-bounded cache of 2, got %d", cache.Len())
	}
}
