package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cortexkb/cortex/internal/storage"
	"github.com/cortexkb/cortex/pkg/types"
)

// AppendSample appends a metric sample. Timestamps must be strictly
// increasing per (metric_type, granularity) series; the ordering check and
// the insert run as one conditional statement under the single-writer
// connection, so a racing append cannot slip between them.
func (s *Store) AppendSample(ctx context.Context, sample types.MetricSample) error {
	if err := sample.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	const query = `
		INSERT INTO metric_samples (metric_type, granularity, timestamp, value)
		SELECT ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM metric_samples
			WHERE metric_type = ? AND granularity = ? AND timestamp >= ?
		)
	`
	result, err := s.db.ExecContext(ctx, query,
		sample.MetricType, sample.Granularity, sample.Timestamp, sample.Value,
		sample.MetricType, sample.Granularity, sample.Timestamp)
	if err != nil {
		return fmt.Errorf("sqlite: failed to append sample: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to check append result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s/%s at %s: %w",
			sample.MetricType, sample.Granularity, sample.Timestamp.Format(time.RFC3339),
			storage.ErrOutOfOrderSample)
	}
	return nil
}

// GetSeries returns samples within [from, to) ordered by timestamp ascending.
func (s *Store) GetSeries(ctx context.Context, metricType, granularity string, from, to time.Time) ([]types.MetricSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT metric_type, granularity, timestamp, value
		FROM metric_samples
		WHERE metric_type = ? AND granularity = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC`,
		metricType, granularity, from, to)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query series %s/%s: %w", metricType, granularity, err)
	}
	defer rows.Close()

	var samples []types.MetricSample
	for rows.Next() {
		var sample types.MetricSample
		if err := rows.Scan(&sample.MetricType, &sample.Granularity, &sample.Timestamp, &sample.Value); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan sample: %w", err)
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// SaveClusterRun stores a clustering run and soft-expires clusters produced
// by earlier runs of the same algorithm. Superseded rows survive for
// historical comparison; readers filter on superseded_at IS NULL.
func (s *Store) SaveClusterRun(ctx context.Context, clusters []types.Cluster, members []types.ClusterMembership) error {
	if len(clusters) == 0 {
		return fmt.Errorf("%w: empty cluster run", storage.ErrInvalidInput)
	}
	for i := range clusters {
		if err := clusters[i].Validate(); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin cluster run transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	algorithm := clusters[0].Algorithm
	runID := clusters[0].RunID

	if _, err := tx.ExecContext(ctx, `
		UPDATE clusters SET superseded_at = ?
		WHERE algorithm = ? AND run_id != ? AND superseded_at IS NULL`,
		now, algorithm, runID); err != nil {
		return fmt.Errorf("sqlite: failed to supersede clusters: %w", err)
	}

	for _, c := range clusters {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO clusters (id, run_id, algorithm, label, coherence_score, parent_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.RunID, c.Algorithm, c.Label, c.CoherenceScore, nullString(c.ParentID), createdAt); err != nil {
			return fmt.Errorf("sqlite: failed to insert cluster %s: %w", c.ID, err)
		}
	}

	for _, m := range members {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cluster_members (cluster_id, memory_id, distance_to_centroid)
			VALUES (?, ?, ?)`,
			m.ClusterID, m.MemoryID, m.DistanceToCentroid); err != nil {
			return fmt.Errorf("sqlite: failed to insert cluster member: %w", err)
		}
	}

	return tx.Commit()
}

// SaveAnomalies stores a detection run's findings for one metric type and
// supersedes that metric's earlier rows. An empty slice still supersedes:
// a clean run retracts stale alerts.
func (s *Store) SaveAnomalies(ctx context.Context, metricType string, anomalies []types.Anomaly) error {
	if metricType == "" {
		return fmt.Errorf("%w: metric type is required", storage.ErrInvalidInput)
	}
	for i := range anomalies {
		if err := anomalies[i].Validate(); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin anomaly transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE anomalies SET superseded_at = ?
		WHERE metric_type = ? AND superseded_at IS NULL`, now, metricType); err != nil {
		return fmt.Errorf("sqlite: failed to supersede anomalies: %w", err)
	}

	for _, a := range anomalies {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO anomalies (metric_type, timestamp, severity, expected_value, actual_value, anomaly_type, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.MetricType, a.Timestamp, a.Severity, a.ExpectedValue, a.ActualValue, a.AnomalyType, now); err != nil {
			return fmt.Errorf("sqlite: failed to insert anomaly: %w", err)
		}
	}

	return tx.Commit()
}

// SaveInsights stores a generation run's insights and supersedes earlier
// rows of the categories present in this run. Categories the run did not
// produce keep their previous insights.
func (s *Store) SaveInsights(ctx context.Context, insights []types.Insight) error {
	if len(insights) == 0 {
		return nil
	}

	categories := map[string]bool{}
	for i := range insights {
		if err := insights[i].Validate(); err != nil {
			return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
		}
		categories[insights[i].Category] = true
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin insight transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for category := range categories {
		if _, err := tx.ExecContext(ctx, `
			UPDATE insights SET superseded_at = ?
			WHERE category = ? AND superseded_at IS NULL`, now, category); err != nil {
			return fmt.Errorf("sqlite: failed to supersede insights: %w", err)
		}
	}

	for _, ins := range insights {
		recommendations, err := json.Marshal(ins.Recommendations)
		if err != nil {
			return fmt.Errorf("sqlite: failed to marshal recommendations: %w", err)
		}
		createdAt := ins.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO insights (id, category, title, description, confidence, impact_score, timeframe, recommendations, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ins.ID, ins.Category, ins.Title, ins.Description,
			ins.Confidence, ins.ImpactScore, ins.Timeframe, string(recommendations), createdAt); err != nil {
			return fmt.Errorf("sqlite: failed to insert insight %s: %w", ins.ID, err)
		}
	}

	return tx.Commit()
}

// LatestClusters returns the non-superseded clusters with their memberships.
func (s *Store) LatestClusters(ctx context.Context) ([]types.Cluster, []types.ClusterMembership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, algorithm, COALESCE(label, ''), coherence_score, COALESCE(parent_id, ''), created_at
		FROM clusters WHERE superseded_at IS NULL
		ORDER BY coherence_score DESC`)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: failed to query clusters: %w", err)
	}
	defer rows.Close()

	var clusters []types.Cluster
	for rows.Next() {
		var c types.Cluster
		if err := rows.Scan(&c.ID, &c.RunID, &c.Algorithm, &c.Label, &c.CoherenceScore, &c.ParentID, &c.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("sqlite: failed to scan cluster: %w", err)
		}
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	memberRows, err := s.db.QueryContext(ctx, `
		SELECT m.cluster_id, m.memory_id, m.distance_to_centroid
		FROM cluster_members m
		JOIN clusters c ON c.id = m.cluster_id
		WHERE c.superseded_at IS NULL`)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: failed to query cluster members: %w", err)
	}
	defer memberRows.Close()

	var members []types.ClusterMembership
	for memberRows.Next() {
		var m types.ClusterMembership
		if err := memberRows.Scan(&m.ClusterID, &m.MemoryID, &m.DistanceToCentroid); err != nil {
			return nil, nil, fmt.Errorf("sqlite: failed to scan cluster member: %w", err)
		}
		members = append(members, m)
	}
	return clusters, members, memberRows.Err()
}

// LatestInsights returns non-superseded insights ordered by signal
// (confidence * impact) descending.
func (s *Store) LatestInsights(ctx context.Context, limit int) ([]types.Insight, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, title, COALESCE(description, ''), confidence, impact_score,
			COALESCE(timeframe, ''), COALESCE(recommendations, '[]'), created_at
		FROM insights WHERE superseded_at IS NULL
		ORDER BY confidence * impact_score DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query insights: %w", err)
	}
	defer rows.Close()

	var insights []types.Insight
	for rows.Next() {
		var ins types.Insight
		var recommendations string
		if err := rows.Scan(&ins.ID, &ins.Category, &ins.Title, &ins.Description,
			&ins.Confidence, &ins.ImpactScore, &ins.Timeframe, &recommendations, &ins.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan insight: %w", err)
		}
		if recommendations != "" && recommendations != "null" {
			if err := json.Unmarshal([]byte(recommendations), &ins.Recommendations); err != nil {
				return nil, fmt.Errorf("sqlite: failed to unmarshal recommendations: %w", err)
			}
		}
		insights = append(insights, ins)
	}
	return insights, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
