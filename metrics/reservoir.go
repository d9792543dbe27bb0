// Package metrics implements the latency reservoir, fixed-bin histograms,
// and the metric-tick aggregation emitted during CSV replay (spec §3,
// §4.8).
package metrics

import (
	"math/rand/v2"
	"sort"
)

// Reservoir is a fixed-size Vitter-style reservoir sample (Algorithm R):
// every admitted observation has equal probability of surviving to any
// later percentile computation, regardless of how many observations have
// been seen.
type Reservoir struct {
	rng     *rand.Rand
	samples []float64
	seen    int
}

// NewReservoir creates a reservoir of the given capacity. A size of 0
// retains no samples, so Percentiles then reports zeros; a negative size
// panics. The CLI passes --latency-sample-k through without a range check.
func NewReservoir(size int, rng *rand.Rand) *Reservoir {
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 1))
	}
	return &Reservoir{
		rng:     rng,
		samples: make([]float64, 0, size),
	}
}

// Capacity is the reservoir's fixed size.
func (r *Reservoir) Capacity() int { return cap(r.samples) }

// Observe admits a new observation into the sample, per Algorithm R: the
// first `capacity` observations are kept unconditionally; thereafter
// observation k (0-indexed) replaces a uniformly random existing sample
// with probability capacity/(k+1).
func (r *Reservoir) Observe(v float64) {
	r.seen++
	if len(r.samples) < cap(r.samples) {
		r.samples = append(r.samples, v)
		return
	}
	if cap(r.samples) == 0 {
		return
	}
	j := r.rng.IntN(r.seen)
	if j < cap(r.samples) {
		r.samples[j] = v
	}
}

// Seen is the total number of observations offered to the reservoir,
// including ones that were not retained.
func (r *Reservoir) Seen() int { return r.seen }

// Percentiles computes p50/p90/p99 from the current sample via a sorted
// copy (the reservoir itself is left unsorted so future Observe calls
// remain uniform). Returns zeros if no samples were ever retained.
func (r *Reservoir) Percentiles() (p50, p90, p99 float64) {
	n := len(r.samples)
	if n == 0 {
		return 0, 0, 0
	}
	sorted := make([]float64, n)
	copy(sorted, r.samples)
	sort.Float64s(sorted)

	p50 = quantile(sorted, 0.50)
	p90 = quantile(sorted, 0.90)
	p99 = quantile(sorted, 0.99)
	// Percentile ordering must hold by construction (spec §8); guard the
	// rare floating rounding case where p90 and p99 fall on the same index
	// but reorder due to interpolation.
	if p90 < p50 {
		p90 = p50
	}
	if p99 < p90 {
		p99 = p90
	}
	return p50, p90, p99
}

func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
