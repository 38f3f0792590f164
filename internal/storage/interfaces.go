package storage

import (
	"context"
	"time"

	"github.com/cortexkb/cortex/pkg/types"
)

// MemorySource provides read access to memories and their embeddings.
// The CRUD layer that writes memories lives outside this engine; analysis
// components only ever read.
type MemorySource interface {
	// GetMemory retrieves a memory by ID.
	// Returns ErrNotFound if the memory doesn't exist.
	GetMemory(ctx context.Context, id string) (*types.Memory, error)

	// ListMemories retrieves memories with pagination and filtering.
	ListMemories(ctx context.Context, opts ListOptions) (*PaginatedResult[types.Memory], error)

	// GetEmbedding retrieves the stored embedding for a memory.
	// Returns ErrNotFound when no embedding has been generated yet.
	GetEmbedding(ctx context.Context, memoryID string) ([]float64, error)
}

// GraphStore persists and serves the entity/relationship graph with
// idempotent, atomic upsert semantics. Concurrent upserts targeting the same
// entity or edge must not lose updates: each upsert is a single conditional
// write at the database.
type GraphStore interface {
	// UpsertEntity creates the entity on first sight; on repeat it increments
	// occurrence_count, extends last_seen and recomputes importance_score.
	// Returns the stored entity.
	UpsertEntity(ctx context.Context, name, entityType string, mention MentionObservation) (*types.Entity, error)

	// GetEntity retrieves an entity by ID.
	GetEntity(ctx context.Context, id string) (*types.Entity, error)

	// GetEntityByName retrieves an entity by its logically-unique (name, type) pair.
	GetEntityByName(ctx context.Context, name, entityType string) (*types.Entity, error)

	// UpsertRelationship enforces uniqueness on (source, target, type). On
	// conflict it merges: occurrence_count++, running-average of confidence
	// and weight. Self-loops are rejected with ErrInvalidInput.
	UpsertRelationship(ctx context.Context, sourceID, targetID, relType string, confidence, weight float64) (*types.Relationship, error)

	// UpsertMemoryRelationship enforces uniqueness per unordered memory pair.
	// On conflict the existing row is replaced only when the new
	// composite_score is strictly higher (monotonic improvement).
	UpsertMemoryRelationship(ctx context.Context, rel *types.MemoryRelationship) error

	// GetMemoryRelationships returns all persisted relationships involving
	// the given memory.
	GetMemoryRelationships(ctx context.Context, memoryID string) ([]types.MemoryRelationship, error)

	// GetNeighbors performs cycle-safe breadth-first traversal from an entity
	// up to bounds.MaxHops, returning the discovered nodes with their
	// relationship chains. Partial results are returned together with
	// ErrGraphBoundsExceeded when a bound is hit.
	GetNeighbors(ctx context.Context, entityID string, bounds GraphBounds) ([]NeighborPath, error)

	// GetGraph returns a bounded subgraph. An empty scope means the whole
	// graph up to bounds.MaxNodes entities, ordered by importance.
	GetGraph(ctx context.Context, scope string, bounds GraphBounds) (*GraphView, error)

	// ListEntities returns entities ordered by importance descending.
	ListEntities(ctx context.Context, limit int) ([]types.Entity, error)

	// EntitiesForMemory returns the distinct entity IDs mentioned in a
	// memory.
	EntitiesForMemory(ctx context.Context, memoryID string) ([]string, error)

	// CoMentions returns, for each entity pair co-mentioned in at least
	// minShared memories, the pair and its co-mention count.
	CoMentions(ctx context.Context, minShared int) ([]CoMention, error)

	// CountRelationshipsBetween returns the number of directed relationship
	// rows between two entities (either direction).
	CountRelationshipsBetween(ctx context.Context, entityA, entityB string) (int, error)

	// DeleteEntity removes an entity and cascades deletion of all mentions
	// and relationships referencing it.
	DeleteEntity(ctx context.Context, id string) error

	// DeleteMemory removes all mentions and memory relationships referencing
	// the given memory ID (the memory row itself belongs to the CRUD layer).
	DeleteMemory(ctx context.Context, memoryID string) error
}

// CoMention is an entity pair observed together in multiple memories.
type CoMention struct {
	EntityA     string
	EntityB     string
	SharedCount int
}

// MetricStore persists time-bucketed metric samples.
type MetricStore interface {
	// AppendSample appends a sample to its (metric_type, granularity) series.
	// Timestamps must be strictly increasing per series; violations return
	// ErrOutOfOrderSample.
	AppendSample(ctx context.Context, sample types.MetricSample) error

	// GetSeries returns samples for a series within [from, to), ordered by
	// timestamp ascending.
	GetSeries(ctx context.Context, metricType, granularity string, from, to time.Time) ([]types.MetricSample, error)
}

// AnalysisStore persists derived artifacts (clusters, anomalies, insights,
// gaps). Artifacts are append-only: a new run soft-expires previous rows of
// the same kind via superseded_at, it never mutates them.
type AnalysisStore interface {
	// SaveClusterRun stores a complete clustering run and supersedes rows
	// from earlier runs of the same algorithm.
	SaveClusterRun(ctx context.Context, clusters []types.Cluster, members []types.ClusterMembership) error

	// SaveAnomalies stores a detection run's anomalies for a metric type,
	// superseding earlier rows for that metric type.
	SaveAnomalies(ctx context.Context, metricType string, anomalies []types.Anomaly) error

	// SaveInsights stores a generation run's insights, superseding earlier
	// rows of the same categories.
	SaveInsights(ctx context.Context, insights []types.Insight) error

	// LatestClusters returns the non-superseded clusters with memberships.
	LatestClusters(ctx context.Context) ([]types.Cluster, []types.ClusterMembership, error)

	// LatestInsights returns non-superseded insights ordered by
	// confidence*impact descending.
	LatestInsights(ctx context.Context, limit int) ([]types.Insight, error)
}

// EmbeddingIndex provides approximate-nearest-neighbor candidate lookup over
// memory embeddings, used to bound pairwise similarity to a candidate window.
type EmbeddingIndex interface {
	// StoreEmbedding upserts a memory's embedding vector.
	StoreEmbedding(ctx context.Context, memoryID string, embedding []float64, model string) error

	// NearestNeighbors returns up to limit memory IDs ordered by vector
	// distance to the query embedding.
	NearestNeighbors(ctx context.Context, embedding []float64, limit int) ([]string, error)

	// DeleteEmbedding removes a memory's embedding from the index.
	DeleteEmbedding(ctx context.Context, memoryID string) error
}
