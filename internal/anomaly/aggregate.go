package anomaly

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cortexkb/cortex/internal/storage"
	"github.com/cortexkb/cortex/pkg/types"
)

// MetricIngestionCount counts memories created per time bucket. It is the
// primary activity signal anomaly detection watches.
const MetricIngestionCount = "ingestion_count"

// Aggregator turns raw memory activity into time-bucketed metric samples.
type Aggregator struct {
	source  storage.MemorySource
	metrics storage.MetricStore
}

// NewAggregator creates an aggregator reading from source and appending to
// metrics.
func NewAggregator(source storage.MemorySource, metrics storage.MetricStore) *Aggregator {
	return &Aggregator{source: source, metrics: metrics}
}

// AggregateIngestion counts memory creations per bucket over [from, to) and
// appends one sample per bucket. Out-of-order rejections are skipped, not
// fatal: re-aggregating an already-covered window is a no-op.
func (a *Aggregator) AggregateIngestion(ctx context.Context, granularity string, from, to time.Time) (int, error) {
	if !types.IsValidGranularity(granularity) {
		return 0, fmt.Errorf("aggregate: invalid granularity %q", granularity)
	}

	counts := map[time.Time]float64{}
	opts := storage.ListOptions{CreatedAfter: from, CreatedBefore: to, Limit: 1000}
	for page := 1; ; page++ {
		opts.Page = page
		result, err := a.source.ListMemories(ctx, opts)
		if err != nil {
			return 0, fmt.Errorf("aggregate: failed to list memories: %w", err)
		}
		for _, memory := range result.Items {
			counts[BucketStart(memory.CreatedAt, granularity)]++
		}
		if !result.HasMore {
			break
		}
	}

	appended := 0
	for bucket := BucketStart(from, granularity); bucket.Before(to); bucket = nextBucket(bucket, granularity) {
		sample := types.MetricSample{
			MetricType:  MetricIngestionCount,
			Granularity: granularity,
			Timestamp:   bucket,
			Value:       counts[bucket],
		}
		err := a.metrics.AppendSample(ctx, sample)
		if err != nil {
			if errors.Is(err, storage.ErrOutOfOrderSample) {
				continue
			}
			return appended, fmt.Errorf("aggregate: failed to append sample: %w", err)
		}
		appended++
	}
	return appended, nil
}

// BucketStart truncates t to the start of its bucket at the given
// granularity, in UTC.
func BucketStart(t time.Time, granularity string) time.Time {
	t = t.UTC()
	switch granularity {
	case types.GranularityMinute:
		return t.Truncate(time.Minute)
	case types.GranularityHour:
		return t.Truncate(time.Hour)
	case types.GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case types.GranularityWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// Weeks start on Monday.
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case types.GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case types.GranularityQuarter:
		quarterMonth := time.Month(((int(t.Month())-1)/3)*3 + 1)
		return time.Date(t.Year(), quarterMonth, 1, 0, 0, 0, 0, time.UTC)
	case types.GranularityYear:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

func nextBucket(bucket time.Time, granularity string) time.Time {
	switch granularity {
	case types.GranularityMinute:
		return bucket.Add(time.Minute)
	case types.GranularityHour:
		return bucket.Add(time.Hour)
	case types.GranularityDay:
		return bucket.AddDate(0, 0, 1)
	case types.GranularityWeek:
		return bucket.AddDate(0, 0, 7)
	case types.GranularityMonth:
		return bucket.AddDate(0, 1, 0)
	case types.GranularityQuarter:
		return bucket.AddDate(0, 3, 0)
	case types.GranularityYear:
		return bucket.AddDate(1, 0, 0)
	default:
		return bucket.AddDate(0, 0, 1)
	}
}
