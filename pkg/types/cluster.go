package types

import (
	"fmt"
	"time"
)

// Cluster is a discovered topic group from one clustering run. Clusters are
// ephemeral derived artifacts: a new run supersedes earlier clusters rather
// than mutating them.
type Cluster struct {
	ID        string `json:"id"`     // Unique identifier (format: clu:uuid)
	RunID     string `json:"run_id"` // Identifies the clustering run this cluster belongs to
	Algorithm string `json:"algorithm"`

	Label          string  `json:"label"`           // Generated from top shared keywords
	CoherenceScore float64 `json:"coherence_score"` // Mean intra-cluster pairwise similarity (0.0-1.0)

	// ParentID links nested clusters produced by hierarchical clustering.
	// Empty for flat algorithms.
	ParentID string `json:"parent_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the cluster's invariants.
func (c *Cluster) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("cluster ID is required")
	}
	if !IsValidAlgorithm(c.Algorithm) {
		return fmt.Errorf("invalid clustering algorithm: %q", c.Algorithm)
	}
	if c.CoherenceScore < 0 || c.CoherenceScore > 1 {
		return fmt.Errorf("coherence_score must be in [0,1], got %f", c.CoherenceScore)
	}
	return nil
}

// ClusterMembership assigns one memory to one cluster within a run.
// A memory belongs to at most one cluster per run; density-based clustering
// may leave memories out entirely (noise), never assigned twice.
type ClusterMembership struct {
	ClusterID string `json:"cluster_id"`
	MemoryID  string `json:"memory_id"`

	// DistanceToCentroid is set for partition-based algorithms, 0 otherwise.
	DistanceToCentroid float64 `json:"distance_to_centroid,omitempty"`
}
