// Package engine orchestrates the analysis pipeline: relationship
// computation between memories, clustering, anomaly detection and insight
// generation. Ingestion is non-blocking: memories are mirrored and queued,
// and a worker pool computes relationships asynchronously.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cortexkb/cortex/internal/composer"
	"github.com/cortexkb/cortex/internal/embed"
	"github.com/cortexkb/cortex/internal/storage"
	"github.com/cortexkb/cortex/pkg/types"
)

// Config tunes the analyzer.
type Config struct {
	// Workers is the relationship computation pool size.
	Workers int

	// QueueSize is the recompute queue capacity; a full queue rejects
	// rather than blocks.
	QueueSize int

	// CandidateLimit caps how many candidate memories each memory is
	// compared against.
	CandidateLimit int

	// CandidateWindow is the time radius for temporal candidate selection.
	CandidateWindow time.Duration

	// MinCompositeScore is the persistence threshold for relationships.
	MinCompositeScore float64

	// BatchTimeout bounds one batch recompute.
	BatchTimeout time.Duration

	// ClusterSeed drives deterministic clustering runs.
	ClusterSeed int64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Workers:           4,
		QueueSize:         256,
		CandidateLimit:    200,
		CandidateWindow:   7 * 24 * time.Hour,
		MinCompositeScore: 0.3,
		BatchTimeout:      5 * time.Minute,
		ClusterSeed:       1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue size must be positive, got %d", c.QueueSize)
	}
	if c.CandidateLimit < 1 {
		return fmt.Errorf("candidate limit must be positive, got %d", c.CandidateLimit)
	}
	if c.MinCompositeScore < 0 || c.MinCompositeScore > 1 {
		return fmt.Errorf("min composite score must be in [0,1], got %f", c.MinCompositeScore)
	}
	return nil
}

// MemoryWriter is the mutation half of the memory mirror: the analyzer
// ingests memories from the external CRUD layer and stores their
// embeddings.
type MemoryWriter interface {
	PutMemory(ctx context.Context, memory *types.Memory) error
	StoreEmbedding(ctx context.Context, memoryID string, embedding []float64, model string) error
}

// WeightsProvider serves the dimension weights currently in effect.
type WeightsProvider interface {
	Current() composer.Weights
}

// staticWeights is the fallback provider when no weights file is wired.
type staticWeights struct{ weights composer.Weights }

func (s staticWeights) Current() composer.Weights { return s.weights }

// Analyzer is the core orchestrator. All of its operations are safe for
// concurrent use once Start has returned.
type Analyzer struct {
	config Config

	memories storage.MemorySource
	writer   MemoryWriter
	graph    storage.GraphStore
	metrics  storage.MetricStore
	analysis storage.AnalysisStore
	index    storage.EmbeddingIndex // optional ANN candidate index
	embedder embed.Generator        // optional
	weights  WeightsProvider

	recomputeQueue  chan string
	workerWaitGroup sync.WaitGroup
	workerCtx       context.Context
	workerCancel    context.CancelFunc

	started      bool
	shuttingDown bool
	mu           sync.RWMutex

	onRelationshipsComputed func(memoryID string, count int)
}

// Stores bundles the persistence dependencies for NewAnalyzer. Index and
// Embedder may be nil: without them candidate selection falls back to tag
// and time-window scans, and the semantic dimension uses only stored
// embeddings.
type Stores struct {
	Memories storage.MemorySource
	Writer   MemoryWriter
	Graph    storage.GraphStore
	Metrics  storage.MetricStore
	Analysis storage.AnalysisStore
	Index    storage.EmbeddingIndex
	Embedder embed.Generator
	Weights  WeightsProvider
}

// NewAnalyzer creates an analyzer. Start must be called before queueing
// work.
func NewAnalyzer(stores Stores, config Config) (*Analyzer, error) {
	if stores.Memories == nil || stores.Writer == nil || stores.Graph == nil {
		return nil, fmt.Errorf("engine: memory source, writer and graph store are required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid config: %w", err)
	}
	if stores.Weights == nil {
		stores.Weights = staticWeights{weights: composer.DefaultWeights()}
	}

	return &Analyzer{
		config:         config,
		memories:       stores.Memories,
		writer:         stores.Writer,
		graph:          stores.Graph,
		metrics:        stores.Metrics,
		analysis:       stores.Analysis,
		index:          stores.Index,
		embedder:       stores.Embedder,
		weights:        stores.Weights,
		recomputeQueue: make(chan string, config.QueueSize),
	}, nil
}

// SetOnRelationshipsComputed sets a callback fired after a memory's
// relationships have been recomputed, with the number persisted.
func (a *Analyzer) SetOnRelationshipsComputed(callback func(memoryID string, count int)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onRelationshipsComputed = callback
}

// Start launches the worker pool. It must be called exactly once.
func (a *Analyzer) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("engine: already started")
	}

	a.workerCtx, a.workerCancel = context.WithCancel(ctx)
	for i := 0; i < a.config.Workers; i++ {
		a.workerWaitGroup.Add(1)
		go a.worker(i)
	}
	a.started = true
	log.Printf("engine: started with %d workers", a.config.Workers)
	return nil
}

// Shutdown drains the queue and stops the workers. It waits until workers
// finish or ctx expires.
func (a *Analyzer) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if !a.started || a.shuttingDown {
		a.mu.Unlock()
		return fmt.Errorf("engine: not running")
	}
	a.shuttingDown = true
	a.mu.Unlock()

	close(a.recomputeQueue)

	done := make(chan struct{})
	go func() {
		a.workerWaitGroup.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.workerCancel()
		log.Printf("engine: shut down cleanly")
		return nil
	case <-ctx.Done():
		a.workerCancel()
		return fmt.Errorf("engine: shutdown timed out: %w", ctx.Err())
	}
}

// QueueRecompute schedules a memory's relationships for asynchronous
// recomputation. Returns false when the engine is not running or the queue
// is full.
func (a *Analyzer) QueueRecompute(memoryID string) bool {
	a.mu.RLock()
	canQueue := a.started && !a.shuttingDown
	a.mu.RUnlock()
	if !canQueue {
		return false
	}

	select {
	case a.recomputeQueue <- memoryID:
		return true
	default:
		log.Printf("engine: recompute queue full, dropping %s", memoryID)
		return false
	}
}

// QueueDepth returns the number of queued recompute jobs.
func (a *Analyzer) QueueDepth() int {
	return len(a.recomputeQueue)
}

func (a *Analyzer) worker(id int) {
	defer a.workerWaitGroup.Done()
	for memoryID := range a.recomputeQueue {
		if a.workerCtx.Err() != nil {
			return
		}
		rels, err := a.ComputeRelationships(a.workerCtx, memoryID)
		if err != nil {
			log.Printf("engine: worker %d failed to recompute %s: %v", id, memoryID, err)
			continue
		}
		count := len(rels)

		a.mu.RLock()
		callback := a.onRelationshipsComputed
		a.mu.RUnlock()
		if callback != nil {
			callback(memoryID, count)
		}
	}
}

// Mention is a pre-extracted entity occurrence arriving with a memory.
// Extraction itself happens upstream; the analyzer only records the result.
type Mention struct {
	Name          string
	Type          string
	PositionStart int
	PositionEnd   int
	Confidence    float64
}

// Ingest mirrors a memory from the external CRUD layer, generates its
// embedding when an embedder is wired, records the memory's entity
// mentions, and queues relationship recomputation. The write is
// synchronous; everything expensive happens on the workers.
func (a *Analyzer) Ingest(ctx context.Context, memory *types.Memory, mentions []Mention) error {
	a.mu.RLock()
	if !a.started {
		a.mu.RUnlock()
		return fmt.Errorf("engine: not started")
	}
	a.mu.RUnlock()

	if err := memory.Validate(); err != nil {
		return fmt.Errorf("engine: invalid memory: %w", err)
	}

	if len(memory.Embedding) == 0 && a.embedder != nil {
		embedding, err := a.embedder.Embed(ctx, memory.Content)
		if err != nil {
			// Non-semantic dimensions still work without an embedding.
			log.Printf("engine: embedding failed for %s, continuing without: %v", memory.ID, err)
		} else {
			memory.Embedding = embedding
			memory.EmbeddingModel = a.embedder.Model()
			memory.EmbeddingDimension = len(embedding)
		}
	}

	if err := a.writer.PutMemory(ctx, memory); err != nil {
		return fmt.Errorf("engine: failed to store memory: %w", err)
	}

	for _, m := range mentions {
		_, err := a.graph.UpsertEntity(ctx, m.Name, m.Type, storage.MentionObservation{
			MemoryID:      memory.ID,
			PositionStart: m.PositionStart,
			PositionEnd:   m.PositionEnd,
			Confidence:    m.Confidence,
			ObservedAt:    memory.CreatedAt,
		})
		if err != nil {
			// A bad mention must not lose the memory itself.
			log.Printf("engine: failed to record mention %q on %s: %v", m.Name, memory.ID, err)
		}
	}

	if len(memory.Embedding) > 0 && a.index != nil {
		if err := a.index.StoreEmbedding(ctx, memory.ID, memory.Embedding, memory.EmbeddingModel); err != nil {
			log.Printf("engine: failed to index embedding for %s: %v", memory.ID, err)
		}
	}

	if !a.QueueRecompute(memory.ID) {
		return fmt.Errorf("engine: memory stored but recompute queue is full")
	}
	return nil
}

// RecordRelationship upserts a typed edge between two named entities,
// creating either entity if it has never been mentioned. Occurrence counts
// track mentions, so existing entities are looked up rather than
// re-observed.
func (a *Analyzer) RecordRelationship(ctx context.Context, sourceName, sourceType, targetName, targetType, relType string, confidence, weight float64) (*types.Relationship, error) {
	source, err := a.entityByName(ctx, sourceName, sourceType)
	if err != nil {
		return nil, err
	}
	target, err := a.entityByName(ctx, targetName, targetType)
	if err != nil {
		return nil, err
	}
	return a.graph.UpsertRelationship(ctx, source.ID, target.ID, relType, confidence, weight)
}

func (a *Analyzer) entityByName(ctx context.Context, name, entityType string) (*types.Entity, error) {
	entity, err := a.graph.GetEntityByName(ctx, name, entityType)
	if err == nil {
		return entity, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return a.graph.UpsertEntity(ctx, name, entityType, storage.MentionObservation{})
}
