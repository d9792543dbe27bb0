package metrics

import (
	"math"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// BucketPreset names one of the two fixed-bin layouts spec §4.8 allows.
type BucketPreset int

const (
	// PresetMillis is the default, millisecond-scale bucket layout.
	PresetMillis BucketPreset = iota
	// PresetMicro is the sub-millisecond, microsecond-scale layout for
	// very fast workloads.
	PresetMicro
)

func bucketsFor(preset BucketPreset) []float64 {
	switch preset {
	case PresetMicro:
		// 1us .. ~2ms in exponentially growing microsecond buckets.
		return prometheus.ExponentialBuckets(0.001, 2, 12)
	default:
		// ~0.05ms .. ~100ms, matching typical in-memory map op latencies.
		return prometheus.ExponentialBuckets(0.05, 2, 12)
	}
}

// Histogram wraps a prometheus.Histogram as the cumulative-bucket
// representation behind latency_hist_ms. The HTTP exposition surface is
// out of scope (spec §1); only the bucket object and its observed counts
// are used here.
type Histogram struct {
	h      prometheus.Histogram
	preset BucketPreset
}

// NewHistogram creates a histogram for one op kind using the given preset.
func NewHistogram(name string, preset BucketPreset) *Histogram {
	return &Histogram{
		preset: preset,
		h: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name,
			Help:    "operation latency in milliseconds",
			Buckets: bucketsFor(preset),
		}),
	}
}

// Observe records a latency sample, in milliseconds.
func (h *Histogram) Observe(ms float64) { h.h.Observe(ms) }

// Bucket is one cumulative bucket: count of observations <= UpperBound.
type Bucket struct {
	UpperBound float64 `json:"le"`
	Count      uint64  `json:"count"`
}

// Snapshot reads the histogram's current cumulative bucket counts via its
// protobuf wire representation (the same path prometheus's HTTP exposition
// would use), appending a final +Inf bucket per spec §4.8/§6.
func (h *Histogram) Snapshot() []Bucket {
	var m dto.Metric
	if err := h.h.Write(&m); err != nil {
		return nil
	}
	hist := m.GetHistogram()
	buckets := make([]Bucket, 0, len(hist.GetBucket())+1)
	for _, b := range hist.GetBucket() {
		buckets = append(buckets, Bucket{
			UpperBound: b.GetUpperBound(),
			Count:      b.GetCumulativeCount(),
		})
	}
	buckets = append(buckets, Bucket{
		UpperBound: math.Inf(1),
		Count:      hist.GetSampleCount(),
	})
	return buckets
}
