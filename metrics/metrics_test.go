package metrics_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/jguida941/adaptive-hashmap-studio/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservoirPercentileOrdering(t *testing.T) {
	r := metrics.NewReservoir(256, rand.New(rand.NewPCG(1, 2)))
	for i := 0; i < 5000; i++ {
		r.Observe(float64(i % 997))
	}
	p50, p90, p99 := r.Percentiles()
	assert.LessOrEqual(t, p50, p90)
	assert.LessOrEqual(t, p90, p99)
}

func TestReservoirKeepsAllBeforeFull(t *testing.T) {
	r := metrics.NewReservoir(10, nil)
	for i := 0; i < 5; i++ {
		r.Observe(float64(i))
	}
	assert.Equal(t, 5, r.Seen())
	// All five values 0..4 are retained, so the interpolated percentiles
	// are those of exactly that set.
	p50, _, p99 := r.Percentiles()
	assert.InDelta(t, 2.0, p50, 1e-9)
	assert.InDelta(t, 3.96, p99, 1e-9)
}

func TestHistogramSnapshotHasFinalInfBucket(t *testing.T) {
	h := metrics.NewHistogram("test_latency", metrics.PresetMillis)
	for i := 0; i < 100; i++ {
		h.Observe(float64(i) * 0.1)
	}
	buckets := h.Snapshot()
	require.NotEmpty(t, buckets)
	last := buckets[len(buckets)-1]
	assert.True(t, math.IsInf(last.UpperBound, 1))
	assert.EqualValues(t, 100, last.Count)
}

func TestAggregatorSnapshotInvariants(t *testing.T) {
	agg := metrics.NewAggregator(128, 1, metrics.PresetMillis, 42)
	for i := 0; i < 1000; i++ {
		agg.RecordOp(metrics.OpPut, float64(i%50))
		agg.RecordOp(metrics.OpGet, float64(i%30))
	}
	agg.RecordMigration()
	agg.PushEvent(metrics.Event{Type: metrics.EventSwitch, From: "chaining", To: "robinhood"})

	tick := agg.Snapshot(12.5, metrics.BackendTelemetry{
		Backend:     "robinhood",
		LoadFactor:  0.5,
		AvgProbe:    2.3,
		HasGroupLen: false,
	}, metrics.Thresholds{})

	assert.Equal(t, metrics.Schema, tick.Schema)
	assert.Equal(t, uint64(2000), tick.Ops)
	assert.Equal(t, uint64(1), tick.Migrations)
	assert.True(t, math.IsInf(tick.MaxGroupLen, 1))
	require.Len(t, tick.Events, 1)
	assert.Equal(t, metrics.EventSwitch, tick.Events[0].Type)

	for _, stats := range tick.LatencyMs {
		assert.LessOrEqual(t, stats.P50, stats.P90)
		assert.LessOrEqual(t, stats.P90, stats.P99)
	}

	// Events are drained after a snapshot.
	tick2 := agg.Snapshot(13.0, metrics.BackendTelemetry{Backend: "robinhood"}, metrics.Thresholds{})
	assert.Empty(t, tick2.Events)
}

func TestAlertsFireOnlyAboveThreshold(t *testing.T) {
	agg := metrics.NewAggregator(16, 1, metrics.PresetMillis, 1)
	tick := agg.Snapshot(0, metrics.BackendTelemetry{
		Backend:    "chaining",
		LoadFactor: 0.95,
	}, metrics.Thresholds{LoadFactorWarn: 0.9, LoadFactorWarnSet: true})

	require.Len(t, tick.Alerts, 1)
	assert.Equal(t, "load_factor", tick.Alerts[0].Metric)
}
