package types

import (
	"fmt"
	"time"
)

// MetricSample is one aggregated measurement in a time-bucketed series.
// Timestamps are strictly increasing per (metric_type, granularity) series.
type MetricSample struct {
	MetricType  string    `json:"metric_type"` // e.g. "ingestion_count", "edge_growth"
	Timestamp   time.Time `json:"timestamp"`   // Bucket start time
	Granularity string    `json:"granularity"` // minute | hour | day | week | month | quarter | year
	Value       float64   `json:"value"`
}

// Validate checks the sample's invariants.
func (s *MetricSample) Validate() error {
	if s.MetricType == "" {
		return fmt.Errorf("metric_type is required")
	}
	if !IsValidGranularity(s.Granularity) {
		return fmt.Errorf("invalid granularity: %q", s.Granularity)
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

// Anomaly is a detected deviation in a metric series. Anomalies are derived
// artifacts: each detection run produces fresh rows and supersedes earlier
// ones, it never edits them.
type Anomaly struct {
	MetricType    string    `json:"metric_type"`
	Timestamp     time.Time `json:"timestamp"`
	Severity      float64   `json:"severity"`       // 0.0-1.0, mapped from deviation magnitude
	ExpectedValue float64   `json:"expected_value"` // Rolling mean at detection time
	ActualValue   float64   `json:"actual_value"`
	AnomalyType   string    `json:"anomaly_type"` // spike | drop | pattern_break | threshold_breach
}

// Validate checks the anomaly's invariants.
func (a *Anomaly) Validate() error {
	if a.MetricType == "" {
		return fmt.Errorf("metric_type is required")
	}
	if a.Severity < 0 || a.Severity > 1 {
		return fmt.Errorf("severity must be in [0,1], got %f", a.Severity)
	}
	switch a.AnomalyType {
	case AnomalySpike, AnomalyDrop, AnomalyPatternBreak, AnomalyThresholdBreach:
	default:
		return fmt.Errorf("invalid anomaly type: %q", a.AnomalyType)
	}
	return nil
}
