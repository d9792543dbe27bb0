// Package hybrid implements HybridAdaptiveMap: a controller that keeps one
// back-end (chaining or Robin Hood) active at a time and migrates between
// them, or compacts the active Robin Hood table, when the active back-end's
// telemetry crosses a guardrail (spec §4.4). Migration and compaction are
// both incremental: a bounded batch of entries moves per call to Put/Get/
// Delete, amortising the cost across normal traffic instead of a
// stop-the-world rehash.
package hybrid

import (
	"github.com/jguida941/adaptive-hashmap-studio/chaining"
	"github.com/jguida941/adaptive-hashmap-studio/config"
	"github.com/jguida941/adaptive-hashmap-studio/engineerr"
	"github.com/jguida941/adaptive-hashmap-studio/internal/kv"
	"github.com/jguida941/adaptive-hashmap-studio/internal/probe"
	"github.com/jguida941/adaptive-hashmap-studio/metrics"
	"github.com/jguida941/adaptive-hashmap-studio/robinhood"
)

// backend is the narrow shape both chaining.Map and robinhood.Map satisfy.
// It is kept intentionally small and unexported: callers outside this
// package interact with Map, never with a back-end directly, so there is
// no open-world polymorphism to guard against at this boundary.
type backend interface {
	Get(key []byte) ([]byte, bool)
	Put(key, val []byte) bool
	Delete(key []byte) bool
	Size() int
	Items(fn func(key, val []byte) bool)
	DrainBatch(n int) []kv.Pair
	DrainDone() bool
	Hasher() probe.HashFn
	SetHasher(h probe.HashFn)
}

// transitionKind distinguishes a backend switch from an in-place compaction;
// both reuse the same drain/step/complete machinery and differ only in
// which event fires at completion and how the target is sized.
type transitionKind int

const (
	transitionNone transitionKind = iota
	transitionMigrate
	transitionCompact
)

// transition holds the state of an in-flight migration or compaction. At
// most one is ever in flight (spec §4.4 "exactly one migration or
// compaction in flight").
type transition struct {
	kind   transitionKind
	source backend
	target backend
}

// Map is the adaptive controller. It always has exactly one active
// back-end; during a transition, source and target are both live and Get
// consults target first, falling back to source, so a key's most recent
// value is always visible regardless of how much of the migration has
// drained (spec §8 core invariant).
type Map struct {
	active     config.Backend
	backend    backend
	transition *transition

	guard config.Guardrails

	opsSinceTransition int
	migrations         uint64
	compactions        uint64
	events             []metrics.Event
}

// New builds a HybridAdaptiveMap starting on g.StartBackend, shaped by the
// remaining guardrail fields.
func New(g config.Guardrails) *Map {
	m := &Map{active: g.StartBackend, guard: g}
	hasher, _ := probe.ByName(g.HashFn)
	switch g.StartBackend {
	case config.BackendRobinHood:
		m.backend = robinhood.New(robinhood.Config{InitialCapacity: g.InitialCapacityRH, Hasher: hasher})
	default:
		m.backend = chaining.New(chaining.Config{Buckets: g.InitialBuckets, GroupsPerBucket: g.GroupsPerBucket, Hasher: hasher})
	}
	return m
}

// Get returns the value for key. Like Put and Delete, it first advances an
// in-flight transition by one batch. During a transition, target is checked
// first since it holds every key moved so far plus any key written after
// the transition began; source holds everything not yet drained.
func (m *Map) Get(key []byte) ([]byte, bool) {
	if m.transition != nil {
		m.stepTransition()
	}
	if m.transition != nil {
		if v, ok := m.transition.target.Get(key); ok {
			return v, true
		}
		return m.transition.source.Get(key)
	}
	return m.backend.Get(key)
}

// Put inserts or overwrites key. During a transition, writes always go to
// target: this keeps target authoritative for every key touched since the
// transition started, so draining never overwrites a newer value with a
// stale one from source. A key still parked in source counts as an
// overwrite, not a new insertion, so Put checks source membership first
// when target does not yet have it; any residual copy left in source is
// purged so the two sides never hold the same key at once (spec §4.4 tie-break).
func (m *Map) Put(key, val []byte) bool {
	var isNew bool
	if m.transition != nil {
		_, inTarget := m.transition.target.Get(key)
		if !inTarget {
			_, inSource := m.transition.source.Get(key)
			isNew = !inSource
		}
		m.transition.target.Put(key, val)
		m.transition.source.Delete(key)
	} else {
		isNew = m.backend.Put(key, val)
	}
	m.afterOp()
	return isNew
}

// Delete removes key from both sides during a transition: a residual copy
// can be left in source by a prior Put that overwrote a key not yet
// drained, and leaving it there would let stepTransition resurrect the
// deleted value once target no longer has the key (spec §8: get must
// never return a deleted key's value).
func (m *Map) Delete(key []byte) bool {
	var removed bool
	if m.transition != nil {
		removedTarget := m.transition.target.Delete(key)
		removedSource := m.transition.source.Delete(key)
		removed = removedTarget || removedSource
	} else {
		removed = m.backend.Delete(key)
	}
	m.afterOp()
	return removed
}

// Items yields every (key,value) pair. During a transition it yields
// target's entries followed by source's: Put/Delete above purge any
// residual copy from source the instant a key is touched, so the two
// sides never overlap.
func (m *Map) Items(fn func(key, val []byte) bool) {
	if m.transition != nil {
		done := false
		m.transition.target.Items(func(k, v []byte) bool {
			if fn(k, v) {
				done = true
				return true
			}
			return false
		})
		if done {
			return
		}
		m.transition.source.Items(fn)
		return
	}
	m.backend.Items(fn)
}

// Size is the number of live keys, summed across source/target while a
// transition is in flight.
func (m *Map) Size() int {
	if m.transition != nil {
		return m.transition.source.Size() + m.transition.target.Size()
	}
	return m.backend.Size()
}

// ActiveBackend names the currently-serving back-end. During a transition
// this is the target's eventual identity, since that is what callers should
// expect Telemetry to describe once the transition completes.
func (m *Map) ActiveBackend() config.Backend { return m.active }

// InTransition reports whether a migration or compaction is currently
// draining.
func (m *Map) InTransition() bool { return m.transition != nil }

// Migrations and Compactions are cumulative counts of completed transitions.
func (m *Map) Migrations() uint64  { return m.migrations }
func (m *Map) Compactions() uint64 { return m.compactions }

// DrainEvents removes and returns every structural event recorded since the
// last call, for the replay driver to attach to the next metrics tick.
func (m *Map) DrainEvents() []metrics.Event {
	ev := m.events
	m.events = nil
	return ev
}

// afterOp runs after every Put/Delete: it advances any in-flight
// transition by one batch, and otherwise checks whether the active
// back-end's telemetry now crosses a guardrail (spec §4.4 "at least one
// steady-state op before the next migration" falls out naturally here,
// since a just-completed transition's first subsequent call only checks
// thresholds, it does not immediately start another one without first
// being evaluated against the now-current backend).
func (m *Map) afterOp() {
	if m.transition != nil {
		m.stepTransition()
		return
	}
	m.opsSinceTransition++
	m.maybeTriggerTransition()
}

// stepTransition drains one incremental batch from source into target. On
// completion it swaps target in as the active back-end and emits the
// appropriate completion event.
func (m *Map) stepTransition() {
	t := m.transition
	batch := t.source.DrainBatch(m.guard.IncrementalBatch)
	for _, pair := range batch {
		if _, already := t.target.Get(pair.Key); !already {
			t.target.Put(pair.Key, pair.Value)
		}
	}
	if !t.source.DrainDone() {
		return
	}
	m.completeTransition()
}

// maybeTriggerTransition inspects the active back-end's telemetry and
// starts a migration or compaction if a guardrail is exceeded (strictly,
// per spec §8: a value exactly at the threshold does not trigger).
func (m *Map) maybeTriggerTransition() {
	switch b := m.backend.(type) {
	case *chaining.Map:
		if m.guard.MaxLFChaining.Enabled() && b.LoadFactor() > float64(m.guard.MaxLFChaining) {
			m.startMigration(config.BackendRobinHood)
			return
		}
		if m.guard.MaxGroupLen > 0 && b.MaxGroupLen() > m.guard.MaxGroupLen {
			m.startMigration(config.BackendRobinHood)
			return
		}
	case *robinhood.Map:
		if m.guard.MaxAvgProbeRobinHood.Enabled() && b.AvgProbe() > float64(m.guard.MaxAvgProbeRobinHood) {
			m.startMigration(config.BackendChaining)
			return
		}
		if m.guard.MaxTombstoneRatio.Enabled() && b.TombstoneRatio() > float64(m.guard.MaxTombstoneRatio) {
			m.startCompaction("tombstone ratio exceeded")
			return
		}
	}
}

// targetCapacity sizes a freshly-allocated migration target from the
// source's current occupancy, aiming to land just under the new back-end's
// own resize high-water mark so the migration does not immediately trigger
// a second resize of its own.
func targetCapacity(size int) uint64 {
	if size < 1 {
		size = 1
	}
	needed := uint64(float64(size)/0.7) + 1
	return probe.NextPowerOf2(needed)
}

// startMigration begins moving every entry from the active back-end to a
// freshly-allocated instance of to. Allocation is guarded: a pathological
// capacity request that would panic is recovered and turned into a Policy
// error, leaving the source back-end authoritative and the transition
// never started. Genuine OS-level out-of-memory is not recoverable this
// way and will still crash the process; this only defends against
// unreasonable capacity requests.
func (m *Map) startMigration(to config.Backend) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = engineerr.Policyf("migration to %s aborted: %v", to, r).
				WithHint("source backend remains active")
		}
	}()

	hasher := m.backend.Hasher()
	size := m.backend.Size()
	cap := targetCapacity(size)

	var target backend
	switch to {
	case config.BackendRobinHood:
		target = robinhood.New(robinhood.Config{InitialCapacity: cap, Hasher: hasher})
	default:
		buckets := probe.NextPowerOf2(cap / m.guard.GroupsPerBucket)
		if buckets < 1 {
			buckets = 1
		}
		target = chaining.New(chaining.Config{Buckets: buckets, GroupsPerBucket: m.guard.GroupsPerBucket, Hasher: hasher})
	}

	from := m.active
	m.transition = &transition{kind: transitionMigrate, source: m.backend, target: target}
	m.active = to
	m.events = append(m.events, metrics.Event{Type: metrics.EventSwitch, From: string(from), To: string(to)})
	return nil
}

// ForceCompact starts a compaction of the active Robin Hood table
// regardless of its tombstone ratio, for the replay driver's proactive
// compact_interval (spec §4.6). It is a no-op if the active back-end is
// chaining or a transition is already in flight.
func (m *Map) ForceCompact() error {
	if m.transition != nil {
		return nil
	}
	if _, ok := m.backend.(*robinhood.Map); !ok {
		return nil
	}
	return m.startCompaction("proactive compaction")
}

// startCompaction begins draining the active Robin Hood table into a
// freshly-allocated Robin Hood table of the same or a smaller capacity,
// dropping tombstones. Modeled as a migration where source and target are
// the same backend kind, so it reuses stepTransition/completeTransition.
// detail names the trigger in the emitted compaction event.
func (m *Map) startCompaction(detail string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = engineerr.Policyf("compaction aborted: %v", r).
				WithHint("source backend remains active")
		}
	}()

	rh, ok := m.backend.(*robinhood.Map)
	if !ok {
		return nil
	}
	cap := targetCapacity(rh.Size())
	if cap > rh.Capacity() {
		cap = rh.Capacity()
	}
	target := robinhood.New(robinhood.Config{InitialCapacity: cap, Hasher: rh.Hasher()})

	m.transition = &transition{kind: transitionCompact, source: rh, target: target}
	m.events = append(m.events, metrics.Event{Type: metrics.EventCompaction, Detail: detail})
	return nil
}

// completeTransition swaps the transition's target in as the active
// back-end, records the completion event and counters, and requires at
// least one steady-state op to pass before a new transition can start
// (spec §4.4): opsSinceTransition resets to zero here and
// maybeTriggerTransition only runs again from the next afterOp call.
func (m *Map) completeTransition() {
	t := m.transition
	kind := t.kind
	m.backend = t.target
	m.transition = nil
	m.opsSinceTransition = 0

	switch kind {
	case transitionMigrate:
		m.migrations++
		m.events = append(m.events, metrics.Event{Type: metrics.EventComplete, To: string(m.active)})
	case transitionCompact:
		m.compactions++
		m.events = append(m.events, metrics.Event{Type: metrics.EventComplete, Detail: "compaction"})
	}
}

// Telemetry reports the currently-active back-end's guardrail-relevant
// metrics for the aggregator (spec §4.8). During a transition it reports
// target's shape, since that is what the active backend will look like
// once the transition completes.
func (m *Map) Telemetry() metrics.BackendTelemetry {
	b := m.backend
	if m.transition != nil {
		b = m.transition.target
	}
	t := metrics.BackendTelemetry{Backend: string(m.active)}
	switch v := b.(type) {
	case *chaining.Map:
		t.LoadFactor = v.LoadFactor()
		t.MaxGroupLen = v.MaxGroupLen()
		t.HasGroupLen = true
	case *robinhood.Map:
		t.LoadFactor = v.LoadFactor()
		t.AvgProbe = v.AvgProbe()
		t.TombstoneRatio = v.TombstoneRatio()
		t.ProbeHist = v.ProbeHistogram()
	}
	return t
}

// CheckInvariants delegates to the active back-end's own invariant check
// (only Robin Hood defines one); used by verify-snapshot and property tests.
func (m *Map) CheckInvariants() error {
	if rh, ok := m.backend.(*robinhood.Map); ok {
		return rh.CheckInvariants()
	}
	return nil
}

// ExportedState exposes the controller's full internal state for the
// snapshot package, including an in-flight transition, so a cancelled
// migration or compaction can be persisted and later resumed (spec §5:
// "Migrating(source,target,cursor) is recoverable from the snapshot").
// Backend/Source/Target are always *chaining.Map or *robinhood.Map.
type ExportedState struct {
	Guardrails config.Guardrails
	Active     config.Backend
	Backend    any

	InTransition bool
	Compacting   bool
	Source       any
	Target       any
}

// Export returns the controller's current state for persistence.
func (m *Map) Export() ExportedState {
	st := ExportedState{Guardrails: m.guard, Active: m.active}
	if m.transition != nil {
		st.InTransition = true
		st.Compacting = m.transition.kind == transitionCompact
		st.Source = m.transition.source
		st.Target = m.transition.target
		return st
	}
	st.Backend = m.backend
	return st
}

// Restore rebuilds a controller from a previously exported state.
func Restore(st ExportedState) *Map {
	m := &Map{active: st.Active, guard: st.Guardrails}
	if st.InTransition {
		kind := transitionMigrate
		if st.Compacting {
			kind = transitionCompact
		}
		m.transition = &transition{kind: kind, source: st.Source.(backend), target: st.Target.(backend)}
		return m
	}
	m.backend = st.Backend.(backend)
	return m
}
