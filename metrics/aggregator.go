package metrics

import (
	"math"
	"math/rand/v2"
)

// BackendTelemetry is the subset of a back-end's telemetry the aggregator
// needs to populate a tick. hybrid.Map returns it from Telemetry; for a
// bare chaining or Robin Hood map the replay driver fills it from the
// map's own accessors.
type BackendTelemetry struct {
	Backend        string
	LoadFactor     float64
	MaxGroupLen    int  // meaningless when Backend == "robinhood"
	HasGroupLen    bool // true when Backend == "chaining"
	AvgProbe       float64
	TombstoneRatio float64
	ProbeHist      map[uint32]int
}

// Thresholds mirrors the subset of config.Guardrails the aggregator
// compares live telemetry against to raise alerts. Using float64 directly
// (rather than importing config) keeps this package free of a dependency
// on the CLI-facing configuration type.
type Thresholds struct {
	LoadFactorWarn     float64
	LoadFactorWarnSet  bool
	AvgProbeWarn       float64
	AvgProbeWarnSet    bool
	TombstoneRatioWarn float64
	TombstoneRatioSet  bool
}

// Aggregator accumulates per-op-kind reservoirs and histograms across a
// replay run and produces Tick snapshots on demand.
type Aggregator struct {
	sampleEvery int
	opCounter   uint64

	reservoirs map[OpKind]*Reservoir
	overallRes *Reservoir

	histograms map[OpKind]*Histogram
	overallHis *Histogram

	opsByType   map[OpKind]uint64
	migrations  uint64
	compactions uint64

	pendingEvents []Event
}

// NewAggregator creates an aggregator with one reservoir/histogram per op
// kind plus an overall pair, per spec §4.8.
func NewAggregator(reservoirSize, sampleEvery int, preset BucketPreset, seed uint64) *Aggregator {
	if sampleEvery <= 0 {
		sampleEvery = 1
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))

	a := &Aggregator{
		sampleEvery: sampleEvery,
		reservoirs:  make(map[OpKind]*Reservoir, 3),
		histograms:  make(map[OpKind]*Histogram, 3),
		opsByType:   make(map[OpKind]uint64, 3),
	}
	for _, k := range []OpKind{OpPut, OpGet, OpDel} {
		a.reservoirs[k] = NewReservoir(reservoirSize, rng)
		a.histograms[k] = NewHistogram("op_latency_"+string(k), preset)
	}
	a.overallRes = NewReservoir(reservoirSize, rng)
	a.overallHis = NewHistogram("op_latency_overall", preset)
	return a
}

// RecordOp registers one completed operation and its measured latency (ms).
// Every sample_every-th operation contributes to the reservoir (spec §4.6);
// counters always advance regardless of sampling.
func (a *Aggregator) RecordOp(kind OpKind, latencyMs float64) {
	a.opsByType[kind]++
	a.opCounter++

	if a.opCounter%uint64(a.sampleEvery) == 0 {
		a.reservoirs[kind].Observe(latencyMs)
		a.overallRes.Observe(latencyMs)
	}
	a.histograms[kind].Observe(latencyMs)
	a.overallHis.Observe(latencyMs)
}

// RecordMigration and RecordCompaction bump the cumulative event counters.
func (a *Aggregator) RecordMigration() { a.migrations++ }
func (a *Aggregator) RecordCompaction() { a.compactions++ }

// PushEvent queues a structural event to be attached to the next tick,
// ordered by the sequence in which it was pushed (spec §5).
func (a *Aggregator) PushEvent(e Event) {
	a.pendingEvents = append(a.pendingEvents, e)
}

// TotalOps is the cumulative op count across all kinds.
func (a *Aggregator) TotalOps() uint64 {
	var sum uint64
	for _, v := range a.opsByType {
		sum += v
	}
	return sum
}

// Snapshot builds a Tick from the current accumulator state, the given
// elapsed time, and live back-end telemetry, draining any pending events
// and evaluating the watchdog thresholds.
func (a *Aggregator) Snapshot(elapsed float64, telem BackendTelemetry, th Thresholds) Tick {
	tick := Tick{
		Schema:  Schema,
		T:       elapsed,
		Backend: telem.Backend,
		Ops:     a.TotalOps(),
		OpsByType: map[OpKind]uint64{
			OpPut: a.opsByType[OpPut],
			OpGet: a.opsByType[OpGet],
			OpDel: a.opsByType[OpDel],
		},
		Migrations:       a.migrations,
		Compactions:      a.compactions,
		LoadFactor:       telem.LoadFactor,
		AvgProbeEstimate: telem.AvgProbe,
		TombstoneRatio:   telem.TombstoneRatio,
		LatencyMs:        make(map[string]LatencyStats, 4),
		LatencyHistMs:    make(map[string][]Bucket, 4),
	}

	if telem.HasGroupLen {
		tick.MaxGroupLen = float64(telem.MaxGroupLen)
	} else {
		tick.MaxGroupLen = math.Inf(1)
	}

	for _, k := range []OpKind{OpPut, OpGet, OpDel} {
		p50, p90, p99 := a.reservoirs[k].Percentiles()
		tick.LatencyMs[string(k)] = LatencyStats{P50: p50, P90: p90, P99: p99}
		tick.LatencyHistMs[string(k)] = a.histograms[k].Snapshot()
	}
	p50, p90, p99 := a.overallRes.Percentiles()
	tick.LatencyMs["overall"] = LatencyStats{P50: p50, P90: p90, P99: p99}
	tick.LatencyHistMs["overall"] = a.overallHis.Snapshot()

	if len(telem.ProbeHist) > 0 {
		tick.ProbeHist = make([][2]float64, 0, len(telem.ProbeHist))
		for d, count := range telem.ProbeHist {
			tick.ProbeHist = append(tick.ProbeHist, [2]float64{float64(d), float64(count)})
		}
	}

	tick.Alerts = evaluateAlerts(telem, th)

	tick.Events = a.pendingEvents
	a.pendingEvents = nil

	return tick
}

func evaluateAlerts(telem BackendTelemetry, th Thresholds) []Alert {
	var alerts []Alert
	if th.LoadFactorWarnSet && telem.LoadFactor > th.LoadFactorWarn {
		alerts = append(alerts, Alert{
			Metric: "load_factor", Value: telem.LoadFactor, Threshold: th.LoadFactorWarn,
			Severity: "warn", Backend: telem.Backend,
			Message: "load factor above warn threshold",
		})
	}
	if th.AvgProbeWarnSet && telem.AvgProbe > th.AvgProbeWarn {
		alerts = append(alerts, Alert{
			Metric: "avg_probe_estimate", Value: telem.AvgProbe, Threshold: th.AvgProbeWarn,
			Severity: "warn", Backend: telem.Backend,
			Message: "average probe distance above warn threshold",
		})
	}
	if th.TombstoneRatioSet && telem.TombstoneRatio > th.TombstoneRatioWarn {
		alerts = append(alerts, Alert{
			Metric: "tombstone_ratio", Value: telem.TombstoneRatio, Threshold: th.TombstoneRatioWarn,
			Severity: "warn", Backend: telem.Backend,
			Message: "tombstone ratio above warn threshold",
		})
	}
	return alerts
}
