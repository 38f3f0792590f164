package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/cortexkb/cortex/internal/storage"
	"github.com/cortexkb/cortex/pkg/types"
)

// edge is one directed relationship row used during traversal.
type edge struct {
	otherID string
	relType string
}

// GetNeighbors runs a cycle-safe breadth-first traversal from entityID.
// Edges are followed in both directions. When a bound is hit the nodes
// discovered so far are returned together with ErrGraphBoundsExceeded, so
// callers can render partial results.
func (s *Store) GetNeighbors(ctx context.Context, entityID string, bounds storage.GraphBounds) ([]storage.NeighborPath, error) {
	bounds.Normalize()

	ctx, cancel := context.WithTimeout(ctx, bounds.Timeout)
	defer cancel()

	if _, err := s.GetEntity(ctx, entityID); err != nil {
		return nil, err
	}

	type frontierNode struct {
		id    string
		depth int
		path  []string
		chain []string
	}

	visited := map[string]bool{entityID: true}
	queue := []frontierNode{{id: entityID, depth: 0, path: []string{entityID}}}
	var results []storage.NeighborPath
	edgesTraversed := 0

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("%w: traversal timed out", storage.ErrGraphBoundsExceeded)
		}

		node := queue[0]
		queue = queue[1:]

		if node.depth >= bounds.MaxHops {
			continue
		}

		edges, err := s.entityEdges(ctx, node.id)
		if err != nil {
			return nil, err
		}

		for _, e := range edges {
			if !bounds.AllowsType(e.relType) {
				continue
			}
			edgesTraversed++
			if edgesTraversed > bounds.MaxEdges {
				return results, fmt.Errorf("%w: edge limit %d reached", storage.ErrGraphBoundsExceeded, bounds.MaxEdges)
			}
			if visited[e.otherID] {
				continue
			}
			visited[e.otherID] = true

			if len(visited) > bounds.MaxNodes {
				return results, fmt.Errorf("%w: node limit %d reached", storage.ErrGraphBoundsExceeded, bounds.MaxNodes)
			}

			path := append(append([]string{}, node.path...), e.otherID)
			chain := append(append([]string{}, node.chain...), e.relType)
			results = append(results, storage.NeighborPath{
				EntityID:          e.otherID,
				Depth:             node.depth + 1,
				Path:              path,
				RelationshipChain: chain,
			})
			queue = append(queue, frontierNode{id: e.otherID, depth: node.depth + 1, path: path, chain: chain})
		}
	}

	return results, nil
}

// entityEdges loads all directed edges touching an entity, reported from
// that entity's point of view.
func (s *Store) entityEdges(ctx context.Context, entityID string) ([]edge, error) {
	const query = `
		SELECT CASE WHEN source_id = ? THEN target_id ELSE source_id END, type
		FROM relationships
		WHERE source_id = ? OR target_id = ?
		ORDER BY weight DESC
	`
	rows, err := s.db.QueryContext(ctx, query, entityID, entityID, entityID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query edges for %s: %w", entityID, err)
	}
	defer rows.Close()

	var edges []edge
	for rows.Next() {
		var e edge
		if err := rows.Scan(&e.otherID, &e.relType); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// GetGraph returns a bounded subgraph. With a scope entity it is the BFS
// neighborhood of that entity; without one it is the MaxNodes most important
// entities and the edges among them. Truncated is set when bounds cut the
// view short.
func (s *Store) GetGraph(ctx context.Context, scope string, bounds storage.GraphBounds) (*storage.GraphView, error) {
	bounds.Normalize()

	view := &storage.GraphView{}

	var entityIDs []string
	if scope != "" {
		neighbors, err := s.GetNeighbors(ctx, scope, bounds)
		if err != nil {
			if !errors.Is(err, storage.ErrGraphBoundsExceeded) {
				return nil, err
			}
			view.Truncated = true
		}
		entityIDs = append(entityIDs, scope)
		for _, n := range neighbors {
			entityIDs = append(entityIDs, n.EntityID)
		}
	} else {
		entities, err := s.ListEntities(ctx, bounds.MaxNodes+1)
		if err != nil {
			return nil, err
		}
		if len(entities) > bounds.MaxNodes {
			entities = entities[:bounds.MaxNodes]
			view.Truncated = true
		}
		for _, e := range entities {
			entityIDs = append(entityIDs, e.ID)
		}
		view.Entities = entities
	}

	inView := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		inView[id] = true
	}

	if scope != "" {
		for _, id := range entityIDs {
			entity, err := s.GetEntity(ctx, id)
			if err != nil {
				return nil, err
			}
			view.Entities = append(view.Entities, *entity)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_id, target_id, type, confidence, weight, occurrence_count, first_seen, last_seen
		FROM relationships ORDER BY weight DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query graph relationships: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rel types.Relationship
		if err := rows.Scan(
			&rel.ID, &rel.SourceID, &rel.TargetID, &rel.Type,
			&rel.Confidence, &rel.Weight, &rel.OccurrenceCount,
			&rel.FirstSeen, &rel.LastSeen,
		); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan graph relationship: %w", err)
		}
		if !inView[rel.SourceID] || !inView[rel.TargetID] {
			continue
		}
		if !bounds.AllowsType(rel.Type) {
			continue
		}
		if len(view.Relationships) >= bounds.MaxEdges {
			view.Truncated = true
			break
		}
		view.Relationships = append(view.Relationships, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return view, nil
}
