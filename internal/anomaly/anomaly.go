// Package anomaly detects deviations in metric time series with rolling
// z-scores. Each sample is judged against the mean and standard deviation
// of the window preceding it, so gradual drift re-baselines while sudden
// jumps stand out.
package anomaly

import (
	"math"

	"github.com/cortexkb/cortex/pkg/types"
)

const (
	// defaultWindow is how many preceding samples form the baseline.
	defaultWindow = 14

	// minBaseline is the fewest preceding samples a judgment needs; earlier
	// samples are warm-up and never flagged.
	minBaseline = 5

	// zThreshold is the deviation, in standard deviations, above which a
	// sample becomes an anomaly.
	zThreshold = 3.0

	// minPeriodicBaseline is the fewest same-weekday precedents needed
	// before a day sample is judged against its weekday cycle.
	minPeriodicBaseline = 3
)

// Options tunes detection.
type Options struct {
	// Window is the rolling baseline size (default 14 samples).
	Window int

	// UpperLimit, when positive, flags any sample above it as a
	// threshold_breach regardless of the rolling statistics.
	UpperLimit float64
}

// Detect scans a series in timestamp order and returns its anomalies. The
// input is expected sorted ascending, as MetricStore.GetSeries returns it.
func Detect(samples []types.MetricSample, opts Options) []types.Anomaly {
	window := opts.Window
	if window < minBaseline {
		window = defaultWindow
	}

	var anomalies []types.Anomaly
	for i, sample := range samples {
		if opts.UpperLimit > 0 && sample.Value > opts.UpperLimit {
			anomalies = append(anomalies, types.Anomaly{
				MetricType:    sample.MetricType,
				Timestamp:     sample.Timestamp,
				Severity:      1.0,
				ExpectedValue: opts.UpperLimit,
				ActualValue:   sample.Value,
				AnomalyType:   types.AnomalyThresholdBreach,
			})
			continue
		}

		start := i - window
		if start < 0 {
			start = 0
		}
		baseline := samples[start:i]
		if len(baseline) < minBaseline {
			continue
		}

		mean, stddev := meanStddev(baseline)
		if stddev == 0 {
			// A perfectly flat baseline has no scale for a z-score; any
			// departure from it breaks the pattern outright.
			if sample.Value != mean {
				anomalies = append(anomalies, types.Anomaly{
					MetricType:    sample.MetricType,
					Timestamp:     sample.Timestamp,
					Severity:      0.7,
					ExpectedValue: mean,
					ActualValue:   sample.Value,
					AnomalyType:   types.AnomalyPatternBreak,
				})
			}
			continue
		}

		z := (sample.Value - mean) / stddev
		if math.Abs(z) <= zThreshold {
			// The global window can absorb a weekday/weekend cycle; a
			// sample that looks sane overall may still break its own
			// weekday's pattern.
			if expected, broke := periodicBreak(samples, i); broke {
				anomalies = append(anomalies, types.Anomaly{
					MetricType:    sample.MetricType,
					Timestamp:     sample.Timestamp,
					Severity:      0.7,
					ExpectedValue: expected,
					ActualValue:   sample.Value,
					AnomalyType:   types.AnomalyPatternBreak,
				})
			}
			continue
		}

		anomalyType := types.AnomalySpike
		if z < 0 {
			anomalyType = types.AnomalyDrop
		}
		anomalies = append(anomalies, types.Anomaly{
			MetricType:    sample.MetricType,
			Timestamp:     sample.Timestamp,
			Severity:      severity(math.Abs(z)),
			ExpectedValue: mean,
			ActualValue:   sample.Value,
			AnomalyType:   anomalyType,
		})
	}
	return anomalies
}

// periodicBreak judges a day-granularity sample against the trailing values
// of its own weekday. Returns the weekday expectation and whether the sample
// deviates from it by more than the z threshold (or at all, when every
// precedent agrees exactly).
func periodicBreak(samples []types.MetricSample, i int) (float64, bool) {
	sample := samples[i]
	if sample.Granularity != types.GranularityDay {
		return 0, false
	}

	weekday := sample.Timestamp.Weekday()
	var peers []types.MetricSample
	for j := i - 1; j >= 0 && len(peers) < defaultWindow; j-- {
		if samples[j].Timestamp.Weekday() == weekday {
			peers = append(peers, samples[j])
		}
	}
	if len(peers) < minPeriodicBaseline {
		return 0, false
	}

	mean, stddev := meanStddev(peers)
	if stddev == 0 {
		return mean, sample.Value != mean
	}
	return mean, math.Abs((sample.Value-mean)/stddev) > zThreshold
}

// severity maps |z| to [0.7, 1.0]: 0.7 at the detection threshold, saturating
// at twice the threshold.
func severity(absZ float64) float64 {
	ramp := (absZ - zThreshold) / zThreshold
	if ramp > 1 {
		ramp = 1
	}
	return 0.7 + 0.3*ramp
}

func meanStddev(samples []types.MetricSample) (float64, float64) {
	var sum float64
	for _, s := range samples {
		sum += s.Value
	}
	mean := sum / float64(len(samples))

	var variance float64
	for _, s := range samples {
		d := s.Value - mean
		variance += d * d
	}
	variance /= float64(len(samples))
	return mean, math.Sqrt(variance)
}
