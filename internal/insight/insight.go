// Package insight turns analysis outputs into ranked narrative findings:
// metric trends, anomaly summaries, cluster themes and knowledge gaps.
// Every insight carries a statistical confidence and an impact score;
// findings whose product falls below the minimum signal are discarded
// rather than surfaced as noise.
package insight

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cortexkb/cortex/pkg/types"
)

// MinSignal is the default confidence*impact floor for surfacing an insight.
const MinSignal = 0.1

// trend summarizes a least-squares fit over a metric series.
type trend struct {
	slope     float64
	mean      float64
	rSquared  float64
	n         int
	direction string // "growing" | "declining"
}

// fitTrend fits value = a + b*index by ordinary least squares and reports
// the slope, series mean and goodness of fit.
func fitTrend(samples []types.MetricSample) trend {
	n := len(samples)
	if n < 2 {
		return trend{n: n}
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, s := range samples {
		x := float64(i)
		sumX += x
		sumY += s.Value
		sumXY += x * s.Value
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return trend{n: n}
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn
	mean := sumY / fn

	var ssRes, ssTot float64
	for i, s := range samples {
		predicted := intercept + slope*float64(i)
		ssRes += (s.Value - predicted) * (s.Value - predicted)
		ssTot += (s.Value - mean) * (s.Value - mean)
	}
	rSquared := 0.0
	if ssTot > 0 {
		rSquared = 1.0 - ssRes/ssTot
	}

	direction := "growing"
	if slope < 0 {
		direction = "declining"
	}
	return trend{slope: slope, mean: mean, rSquared: rSquared, n: n, direction: direction}
}

// TrendInsight produces an insight from a metric series, or nil when the
// series is too short or too weak a fit to say anything.
func TrendInsight(samples []types.MetricSample, timeframe string) *types.Insight {
	t := fitTrend(samples)
	if t.n < 7 || t.mean == 0 || t.slope == 0 {
		return nil
	}

	// Confidence combines fit quality with sample size: a clean fit over a
	// long window beats the same fit over a short one.
	sizeFactor := math.Min(float64(t.n)/30.0, 1.0)
	confidence := clamp01(t.rSquared * (0.5 + 0.5*sizeFactor))

	// Impact scales with the relative change over the window.
	relativeChange := math.Abs(t.slope*float64(t.n)) / math.Abs(t.mean)
	impact := clamp01(relativeChange)

	metricType := samples[0].MetricType
	insight := &types.Insight{
		ID:          "ins:" + uuid.NewString(),
		Category:    types.InsightTrend,
		Title:       fmt.Sprintf("%s is %s", metricType, t.direction),
		Description: fmt.Sprintf("%s changed about %.0f%% over the last %s (fit r²=%.2f)", metricType, relativeChange*100, timeframe, t.rSquared),
		Confidence:  confidence,
		ImpactScore: impact,
		Timeframe:   timeframe,
		CreatedAt:   time.Now().UTC(),
	}
	if t.direction == "declining" {
		insight.Recommendations = []string{
			fmt.Sprintf("review what changed around the start of the %s decline in %s", timeframe, metricType),
		}
	}
	if insight.Signal() < MinSignal {
		return nil
	}
	return insight
}

// AnomalyInsights summarizes a detection run. One insight per anomaly, with
// severity driving impact; weak findings are filtered out.
func AnomalyInsights(anomalies []types.Anomaly) []types.Insight {
	now := time.Now().UTC()
	var insights []types.Insight
	for _, a := range anomalies {
		insight := types.Insight{
			ID:       "ins:" + uuid.NewString(),
			Category: types.InsightAnomaly,
			Title:    fmt.Sprintf("%s %s on %s", a.MetricType, a.AnomalyType, a.Timestamp.Format("2006-01-02")),
			Description: fmt.Sprintf("observed %.0f against an expected %.0f",
				a.ActualValue, a.ExpectedValue),
			Confidence:  0.9, // detection already applied a 3-sigma bar
			ImpactScore: a.Severity,
			CreatedAt:   now,
		}
		if insight.Signal() < MinSignal {
			continue
		}
		insights = append(insights, insight)
	}
	return insights
}

// ClusterInsights surfaces the most coherent topic clusters from a run.
// Cluster size is unknown here, so impact follows coherence; incoherent
// clusters say little and are dropped by the signal floor.
func ClusterInsights(clusters []types.Cluster, members []types.ClusterMembership) []types.Insight {
	sizes := map[string]int{}
	for _, m := range members {
		sizes[m.ClusterID]++
	}
	total := len(members)

	now := time.Now().UTC()
	var insights []types.Insight
	for _, c := range clusters {
		size := sizes[c.ID]
		if size < 2 || c.Label == "" {
			continue
		}
		share := 0.0
		if total > 0 {
			share = float64(size) / float64(total)
		}
		insight := types.Insight{
			ID:          "ins:" + uuid.NewString(),
			Category:    types.InsightCluster,
			Title:       fmt.Sprintf("topic cluster: %s", c.Label),
			Description: fmt.Sprintf("%d memories group around %q (coherence %.2f)", size, c.Label, c.CoherenceScore),
			Confidence:  clamp01(c.CoherenceScore),
			ImpactScore: clamp01(0.3 + 0.7*share),
			CreatedAt:   now,
		}
		if insight.Signal() < MinSignal {
			continue
		}
		insights = append(insights, insight)
	}

	sort.Slice(insights, func(i, j int) bool {
		return insights[i].Signal() > insights[j].Signal()
	})
	return insights
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
