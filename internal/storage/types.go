// Package storage provides composable storage interfaces for the Cortex
// analysis engine.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently and composed as needed, allowing flexible
// backend implementations.
package storage

import (
	"errors"
	"time"

	"github.com/cortexkb/cortex/pkg/types"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrGraphBoundsExceeded indicates that graph traversal exceeded bounds.
	ErrGraphBoundsExceeded = errors.New("graph bounds exceeded")

	// ErrOutOfOrderSample indicates a metric sample with a timestamp at or
	// before the newest stored sample for its series.
	ErrOutOfOrderSample = errors.New("metric sample out of order")
)

// ListOptions provides pagination and filtering options for list operations.
type ListOptions struct {
	// Page is the page number to retrieve (1-indexed, default: 1).
	Page int

	// Limit is the number of items per page (default: 50, max: 1000).
	Limit int

	// Tags filters to memories carrying at least one of these tags.
	Tags []string

	// MemoryType filters memories by their memory_type classification.
	// Empty string means no filter.
	MemoryType string

	// CreatedAfter filters to memories created strictly after this time.
	// Zero value means no lower bound.
	CreatedAfter time.Time

	// CreatedBefore filters to memories created strictly before this time.
	// Zero value means no upper bound.
	CreatedBefore time.Time
}

// Normalize applies defaults and validates the ListOptions.
func (o *ListOptions) Normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = 50
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
}

// Offset calculates the offset for SQL queries based on page and limit.
func (o *ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// PaginatedResult represents a paginated result set.
type PaginatedResult[T any] struct {
	// Items is the slice of results for the current page.
	Items []T

	// Total is the total number of items across all pages.
	Total int

	// Page is the current page number (1-indexed).
	Page int

	// PageSize is the number of items per page.
	PageSize int

	// HasMore indicates whether there are more pages available.
	HasMore bool
}

// GraphBounds prevents combinatorial explosion during graph traversal.
type GraphBounds struct {
	// MaxHops is the maximum number of hops from the starting node.
	MaxHops int

	// MaxNodes is the maximum number of nodes to visit.
	MaxNodes int

	// MaxEdges is the maximum number of edges to traverse.
	MaxEdges int

	// Timeout is the maximum duration for the traversal operation.
	Timeout time.Duration

	// RelationshipTypes restricts traversal to edges of these types.
	// Empty means all types.
	RelationshipTypes []string
}

// Normalize applies defaults and caps to the GraphBounds.
func (g *GraphBounds) Normalize() {
	if g.MaxHops < 1 {
		g.MaxHops = 3
	}
	if g.MaxHops > 10 {
		g.MaxHops = 10
	}
	if g.MaxNodes < 1 {
		g.MaxNodes = 100
	}
	if g.MaxNodes > 1000 {
		g.MaxNodes = 1000
	}
	if g.MaxEdges < 1 {
		g.MaxEdges = 500
	}
	if g.MaxEdges > 5000 {
		g.MaxEdges = 5000
	}
	if g.Timeout == 0 {
		g.Timeout = 30 * time.Second
	}
	if g.Timeout > 5*time.Minute {
		g.Timeout = 5 * time.Minute
	}
}

// AllowsType reports whether an edge of the given relationship type may be
// traversed under these bounds.
func (g *GraphBounds) AllowsType(relType string) bool {
	if len(g.RelationshipTypes) == 0 {
		return true
	}
	for _, t := range g.RelationshipTypes {
		if t == relType {
			return true
		}
	}
	return false
}

// NeighborPath is one node discovered by graph traversal, with the chain of
// relationships that led to it from the start node.
type NeighborPath struct {
	// EntityID is the discovered entity.
	EntityID string

	// Depth is the hop distance from the start node.
	Depth int

	// Path is the sequence of entity IDs from the start node to this one,
	// inclusive of both endpoints.
	Path []string

	// RelationshipChain holds the relationship types along Path, so
	// len(RelationshipChain) == len(Path)-1.
	RelationshipChain []string
}

// GraphView is a subgraph snapshot served to visualization consumers.
type GraphView struct {
	Entities      []types.Entity
	Relationships []types.Relationship
	Truncated     bool
}

// MentionObservation is one observed entity mention used for upserts.
type MentionObservation struct {
	MemoryID      string
	PositionStart int
	PositionEnd   int
	Confidence    float64
	ObservedAt    time.Time
}
