package anomaly

import (
	"testing"
	"time"

	"github.com/cortexkb/cortex/pkg/types"
)

func dailySeries(values []float64) []types.MetricSample {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := make([]types.MetricSample, len(values))
	for i, v := range values {
		samples[i] = types.MetricSample{
			MetricType:  MetricIngestionCount,
			Granularity: types.GranularityDay,
			Timestamp:   base.AddDate(0, 0, i),
			Value:       v,
		}
	}
	return samples
}

func TestDetectSpikeAfterSteadyBaseline(t *testing.T) {
	// 30 days oscillating mildly around 100, then a 5x spike on day 31.
	values := make([]float64, 31)
	for i := 0; i < 30; i++ {
		values[i] = 100 + float64((i%5)*2) - 4
	}
	values[30] = 500

	anomalies := Detect(dailySeries(values), Options{})
	if len(anomalies) != 1 {
		t.Fatalf("expected exactly the spike, got %d anomalies", len(anomalies))
	}
	spike := anomalies[0]
	if spike.AnomalyType != types.AnomalySpike {
		t.Errorf("expected spike, got %s", spike.AnomalyType)
	}
	if spike.Severity < 0.9 {
		t.Errorf("5x deviation should score high severity, got %f", spike.Severity)
	}
	if spike.ActualValue != 500 {
		t.Errorf("actual value %f", spike.ActualValue)
	}
	if spike.ExpectedValue < 85 || spike.ExpectedValue > 115 {
		t.Errorf("expected value should be near the rolling mean, got %f", spike.ExpectedValue)
	}
	if err := spike.Validate(); err != nil {
		t.Errorf("anomaly fails validation: %v", err)
	}
}

func TestDetectDrop(t *testing.T) {
	values := []float64{100, 102, 98, 101, 99, 100, 103, 97, 100, 2}
	anomalies := Detect(dailySeries(values), Options{})
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	if anomalies[0].AnomalyType != types.AnomalyDrop {
		t.Errorf("expected drop, got %s", anomalies[0].AnomalyType)
	}
}

func TestDetectPatternBreakOnFlatSeries(t *testing.T) {
	values := []float64{50, 50, 50, 50, 50, 50, 50, 50, 60}
	anomalies := Detect(dailySeries(values), Options{})
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	if anomalies[0].AnomalyType != types.AnomalyPatternBreak {
		t.Errorf("expected pattern_break, got %s", anomalies[0].AnomalyType)
	}
}

func TestDetectPatternBreakOnWeekendCycle(t *testing.T) {
	// Weekdays run at 100, weekends at 0. The series starts Thursday
	// 2026-01-01, so Saturdays fall on i%7 == 2. A Sunday suddenly running
	// at weekday volume looks sane to the global window (which always mixes
	// both levels) but breaks its own weekday's history.
	values := make([]float64, 25)
	for i := range values {
		switch i % 7 {
		case 2, 3: // Saturday, Sunday
			values[i] = 0
		default:
			values[i] = 100
		}
	}
	values[24] = 100 // the final Sunday

	anomalies := Detect(dailySeries(values), Options{})
	if len(anomalies) != 1 {
		t.Fatalf("expected exactly the cycle break, got %d anomalies", len(anomalies))
	}
	broke := anomalies[0]
	if broke.AnomalyType != types.AnomalyPatternBreak {
		t.Errorf("expected pattern_break, got %s", broke.AnomalyType)
	}
	if broke.ExpectedValue != 0 {
		t.Errorf("weekday expectation should be 0, got %f", broke.ExpectedValue)
	}
	if broke.ActualValue != 100 {
		t.Errorf("actual value %f", broke.ActualValue)
	}
}

func TestDetectThresholdBreach(t *testing.T) {
	values := []float64{100, 100, 100, 100, 100, 100, 250}
	anomalies := Detect(dailySeries(values), Options{UpperLimit: 200})
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	breach := anomalies[0]
	if breach.AnomalyType != types.AnomalyThresholdBreach {
		t.Errorf("expected threshold_breach, got %s", breach.AnomalyType)
	}
	if breach.Severity != 1.0 {
		t.Errorf("breach severity should be 1.0, got %f", breach.Severity)
	}
}

func TestDetectQuietDuringWarmup(t *testing.T) {
	// Too few preceding samples to judge: nothing is flagged even with a
	// wild swing.
	values := []float64{100, 100, 500}
	if anomalies := Detect(dailySeries(values), Options{}); len(anomalies) != 0 {
		t.Errorf("expected no anomalies during warm-up, got %d", len(anomalies))
	}
}

func TestDetectRebaselinesAfterShift(t *testing.T) {
	// A level shift produces one anomaly, then the rolling window absorbs
	// the new normal.
	values := make([]float64, 0, 40)
	for i := 0; i < 20; i++ {
		values = append(values, 100)
	}
	values = append(values, 101) // give the window a nonzero stddev
	for i := 0; i < 19; i++ {
		values = append(values, 300)
	}

	anomalies := Detect(dailySeries(values), Options{Window: 10})
	if len(anomalies) == 0 {
		t.Fatal("expected the shift itself to be flagged")
	}
	last := anomalies[len(anomalies)-1].Timestamp
	end := dailySeries(values)[len(values)-1].Timestamp
	if last.Equal(end) {
		t.Error("rolling baseline never absorbed the new level")
	}
}

func TestBucketStart(t *testing.T) {
	ts := time.Date(2026, 8, 26, 15, 42, 30, 0, time.UTC) // a Wednesday

	cases := map[string]time.Time{
		types.GranularityHour:    time.Date(2026, 8, 26, 15, 0, 0, 0, time.UTC),
		types.GranularityDay:     time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC),
		types.GranularityWeek:    time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		types.GranularityMonth:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		types.GranularityQuarter: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		types.GranularityYear:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for granularity, want := range cases {
		if got := BucketStart(ts, granularity); !got.Equal(want) {
			t.Errorf("%s: got %s, want %s", granularity, got, want)
		}
	}
}
