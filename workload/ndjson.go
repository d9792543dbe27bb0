package workload

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/jguida941/adaptive-hashmap-studio/engineerr"
	"github.com/jguida941/adaptive-hashmap-studio/metrics"
)

// TickRing is an in-memory ring buffer of the most recent ticks, bounded
// by the maxSize its creator passes (run-csv uses a fixed 4096; no flag
// sets it). It is safe for concurrent reads from the metrics
// surface while the replay driver appends on its own goroutine (spec §5).
type TickRing struct {
	mu      sync.RWMutex
	ticks   []metrics.Tick
	maxSize int
}

// NewTickRing creates a ring holding at most maxSize ticks; maxSize <= 0
// means unbounded.
func NewTickRing(maxSize int) *TickRing {
	return &TickRing{maxSize: maxSize}
}

// Push appends a tick, evicting the oldest if the ring is at capacity.
func (r *TickRing) Push(t metrics.Tick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, t)
	if r.maxSize > 0 && len(r.ticks) > r.maxSize {
		r.ticks = r.ticks[len(r.ticks)-r.maxSize:]
	}
}

// Latest returns the most recently pushed tick and whether one exists.
// The returned value is a copy: a reader never observes a torn write
// (spec §5 "tick publication is atomic").
func (r *TickRing) Latest() (metrics.Tick, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.ticks) == 0 {
		return metrics.Tick{}, false
	}
	return r.ticks[len(r.ticks)-1], true
}

// All returns every tick currently retained, oldest first.
func (r *TickRing) All() []metrics.Tick {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]metrics.Tick, len(r.ticks))
	copy(out, r.ticks)
	return out
}

// NDJSONWriter appends one JSON object per tick to w, per line, and is
// used as a TickSink. A write failure is surfaced, never swallowed (spec
// §4.6: "if writing to NDJSON fails, the failure is surfaced and the run
// aborts").
type NDJSONWriter struct {
	w   io.Writer
	enc *json.Encoder
}

// NewNDJSONWriter wraps w for one tick-per-line JSON output.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{w: w, enc: json.NewEncoder(w)}
}

// Write implements TickSink.
func (n *NDJSONWriter) Write(t metrics.Tick) error {
	if err := n.enc.Encode(t); err != nil {
		return engineerr.Wrap(engineerr.IO, err, "appending NDJSON tick")
	}
	return nil
}

// FanOut combines a TickRing and an NDJSONWriter (and any other sinks)
// into a single TickSink, so Run only ever needs one.
func FanOut(sinks ...func(metrics.Tick) error) TickSink {
	return func(t metrics.Tick) error {
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s(t); err != nil {
				return err
			}
		}
		return nil
	}
}
