// Package robinhood implements RobinHoodMap: an open-addressed table with
// Robin Hood displacement, tombstones, and power-of-two capacity. Adapted
// from EinfachAndy/hashmaps' robin.RobinHood, which back-shifts on delete
// and never resizes below its high-water mark; this variant instead uses
// tombstones (spec §3/§4.3) so delete is O(1) and compaction is a separate,
// amortisable operation the hybrid controller can schedule.
package robinhood

import (
	"github.com/jguida941/adaptive-hashmap-studio/engineerr"
	"github.com/jguida941/adaptive-hashmap-studio/internal/kv"
	"github.com/jguida941/adaptive-hashmap-studio/internal/probe"
)

type slotState uint8

const (
	stateEmpty slotState = iota
	stateOccupied
	stateTombstone
)

type slot struct {
	state slotState
	key   []byte
	value []byte
	hash  uint64
	dib   uint32
}

// resizeHighWater is the load factor (size+tombstones)/capacity that
// triggers a doubling rehash, per spec §3.
const resizeHighWater = 0.85

// Map is the open-addressed Robin Hood table.
type Map struct {
	slots      []slot
	hasher     probe.HashFn
	size       int
	tombstones int
	capMinus1  uint64
	dibSum     uint64 // not maintained; AvgProbe sums dib by scanning the slots

	// drainIdx tracks incremental migration's drain cursor (spec §4.4): a
	// monotonically advancing slot index so repeated DrainBatch calls
	// together visit every slot exactly once.
	drainIdx uint64
}

// Config controls initial shape.
type Config struct {
	InitialCapacity uint64 // power of two, default 64
	Hasher          probe.HashFn
}

// New creates an empty RobinHoodMap.
func New(cfg Config) *Map {
	cap := cfg.InitialCapacity
	if cap == 0 {
		cap = 64
	}
	cap = probe.NextPowerOf2(cap)

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = probe.Xxhash
	}

	return &Map{
		slots:     make([]slot, cap),
		hasher:    hasher,
		capMinus1: cap - 1,
	}
}

func (m *Map) capacity() uint64 { return m.capMinus1 + 1 }
func (m *Map) home(hash uint64) uint64 {
	return probe.Home(hash, m.capMinus1)
}

// Get looks up key. Lookup terminates as absent at an Empty slot, or at an
// Occupied slot whose dib is smaller than the current probe distance
// (displacement-monotonicity early-exit, §4.3). Tombstones are skipped
// without terminating.
func (m *Map) Get(key []byte) ([]byte, bool) {
	hash := m.hasher(key)
	idx := m.home(hash)

	for d := uint64(0); ; d++ {
		s := &m.slots[idx]
		switch s.state {
		case stateEmpty:
			return nil, false
		case stateOccupied:
			if uint64(s.dib) < d {
				return nil, false
			}
			if s.hash == hash && string(s.key) == string(key) {
				return s.value, true
			}
		case stateTombstone:
			// does not terminate probing
		}
		idx = probe.Next(idx, m.capMinus1)
	}
}

// Put inserts or overwrites key. Returns true if the key is new.
//
// A single probe walk records the first tombstone seen while also looking
// for an existing copy of the key; if found, it overwrites in place,
// otherwise it inserts at the recorded tombstone (or the first Empty),
// reconciling tombstone recycling with update semantics (§4.3).
func (m *Map) Put(key, val []byte) bool {
	if float64(m.size+m.tombstones+1)/float64(m.capacity()) > resizeHighWater {
		m.resize(m.capacity() * 2)
	}

	hash := m.hasher(key)
	idx := m.home(hash)

	var (
		tombstoneIdx uint64
		haveTomb     bool
	)

	insert := func(dest uint64) bool {
		if haveTomb {
			dest = tombstoneIdx
		}
		carry := slot{
			state: stateOccupied,
			key:   append([]byte(nil), key...),
			value: append([]byte(nil), val...),
			hash:  hash,
			dib:   m.currentDIB(dest, hash),
		}
		m.emplace(carry, dest)
		m.size++
		return true
	}

	for d := uint64(0); ; d++ {
		s := &m.slots[idx]
		switch s.state {
		case stateEmpty:
			return insert(idx)
		case stateTombstone:
			if !haveTomb {
				tombstoneIdx = idx
				haveTomb = true
			}
		case stateOccupied:
			if s.hash == hash && string(s.key) == string(key) {
				s.value = append([]byte(nil), val...)
				return false
			}
			if uint64(s.dib) < d {
				// Robin Hood displacement monotonicity proves the key is
				// absent from here on; insert at the recorded tombstone,
				// or begin the Robin Hood swap chain at this richer slot.
				return insert(idx)
			}
		}
		idx = probe.Next(idx, m.capMinus1)
	}
}

func (m *Map) currentDIB(idx uint64, hash uint64) uint32 {
	return uint32(probe.Distance(idx, m.home(hash), m.capacity()))
}

// emplace runs the Robin Hood insertion loop starting at dest: place carry
// if the slot is empty, otherwise swap with any resident of strictly
// smaller dib and continue probing with the evicted entry.
func (m *Map) emplace(carry slot, dest uint64) {
	idx := dest
	for {
		s := &m.slots[idx]
		if s.state != stateOccupied {
			wasTomb := s.state == stateTombstone
			*s = carry
			if wasTomb {
				m.tombstones--
			}
			return
		}
		if carry.dib > s.dib {
			*s, carry = carry, *s
		} else if carry.dib == s.dib {
			// tie: do not swap, advance
		}
		idx = probe.Next(idx, m.capMinus1)
		carry.dib++
	}
}

// Delete locates key via the Get probe sequence; if present, writes a
// tombstone and returns true. No back-shifting happens at delete time;
// compaction handles cleanup (§4.3.2).
func (m *Map) Delete(key []byte) bool {
	hash := m.hasher(key)
	idx := m.home(hash)

	for d := uint64(0); ; d++ {
		s := &m.slots[idx]
		switch s.state {
		case stateEmpty:
			return false
		case stateOccupied:
			if uint64(s.dib) < d {
				return false
			}
			if s.hash == hash && string(s.key) == string(key) {
				s.state = stateTombstone
				s.key = nil
				s.value = nil
				m.size--
				m.tombstones++
				return true
			}
		case stateTombstone:
		}
		idx = probe.Next(idx, m.capMinus1)
	}
}

// resize allocates a new slot array of n (power of two) and reinserts
// every occupied slot, dropping tombstones. Atomic from the caller's
// perspective: the old array remains authoritative until the new one is
// fully built.
func (m *Map) resize(n uint64) {
	n = probe.NextPowerOf2(n)
	fresh := &Map{
		slots:     make([]slot, n),
		hasher:    m.hasher,
		capMinus1: n - 1,
	}
	for i := range m.slots {
		if m.slots[i].state == stateOccupied {
			fresh.reinsert(m.slots[i].key, m.slots[i].value, m.slots[i].hash)
		}
	}
	m.slots = fresh.slots
	m.capMinus1 = fresh.capMinus1
	m.size = fresh.size
	m.tombstones = 0
}

// reinsert places a key known absent from the table without re-hashing,
// used by resize/compact to rebuild from a scan of the old array.
func (m *Map) reinsert(key, val []byte, hash uint64) {
	idx := m.home(hash)
	carry := slot{state: stateOccupied, key: key, value: val, hash: hash, dib: 0}
	m.emplace(carry, idx)
	m.size++
}

// Compact rebuilds the table with tombstones dropped, at the same
// capacity unless the map is underfull relative to the resize low-water
// mark, in which case it shrinks to the smallest power of two that fits
// size (spec §4.3.2).
func (m *Map) Compact() {
	newCap := m.capacity()
	lowWater := uint64(float64(m.size) / resizeHighWater)
	shrink := probe.NextPowerOf2(lowWater)
	if shrink < 1 {
		shrink = 1
	}
	if shrink < newCap {
		newCap = shrink
	}
	m.resize(newCap)
}

// Size is the number of occupied slots.
func (m *Map) Size() int { return m.size }

// Tombstones is the number of tombstone slots.
func (m *Map) Tombstones() int { return m.tombstones }

// Capacity is the slot array length.
func (m *Map) Capacity() uint64 { return m.capacity() }

// LoadFactor is (size+tombstones)/capacity.
func (m *Map) LoadFactor() float64 {
	return float64(m.size+m.tombstones) / float64(m.capacity())
}

// TombstoneRatio is tombstones/capacity.
func (m *Map) TombstoneRatio() float64 {
	return float64(m.tombstones) / float64(m.capacity())
}

// AvgProbe is the mean dib over occupied slots, the robinhood→chaining
// migration guardrail input.
func (m *Map) AvgProbe() float64 {
	if m.size == 0 {
		return 0
	}
	var sum uint64
	for i := range m.slots {
		if m.slots[i].state == stateOccupied {
			sum += uint64(m.slots[i].dib)
		}
	}
	return float64(sum) / float64(m.size)
}

// ProbeHistogram samples the distribution of dib values over occupied
// slots (§3 probe_hist).
func (m *Map) ProbeHistogram() map[uint32]int {
	hist := make(map[uint32]int)
	for i := range m.slots {
		if m.slots[i].state == stateOccupied {
			hist[m.slots[i].dib]++
		}
	}
	return hist
}

// Items yields all (key,value) pairs in slot order (implementation-defined).
func (m *Map) Items(fn func(key, val []byte) bool) {
	for i := range m.slots {
		if m.slots[i].state == stateOccupied {
			if fn(m.slots[i].key, m.slots[i].value) {
				return
			}
		}
	}
}

// CheckInvariants verifies the displacement-monotonicity invariant of
// spec §4.3 for every occupied slot: dib must equal the actual distance
// from home(hash) to the slot's index, modulo capacity. Used by
// verify-snapshot and by property tests.
func (m *Map) CheckInvariants() error {
	cap := m.capacity()
	for i := range m.slots {
		s := &m.slots[i]
		if s.state != stateOccupied {
			continue
		}
		want := uint32(probe.Distance(uint64(i), m.home(s.hash), cap))
		if want != s.dib {
			return engineerr.Invariantf(
				"robinhood: slot %d dib mismatch: got %d want %d", i, s.dib, want)
		}
	}
	if m.size+m.tombstones > int(cap) {
		return engineerr.Invariantf("robinhood: size+tombstones exceeds capacity")
	}
	return nil
}

func (m *Map) Hasher() probe.HashFn     { return m.hasher }
func (m *Map) SetHasher(h probe.HashFn) { m.hasher = h }

// DrainBatch removes and returns up to n entries as tombstones, advancing
// an internal cursor so successive calls together visit every slot
// exactly once (the incremental migration drain step, spec §4.4).
func (m *Map) DrainBatch(n int) []kv.Pair {
	if n <= 0 {
		return nil
	}
	out := make([]kv.Pair, 0, n)
	for m.drainIdx < uint64(len(m.slots)) && len(out) < n {
		i := m.drainIdx
		if m.slots[i].state == stateOccupied {
			out = append(out, kv.Pair{Key: m.slots[i].key, Value: m.slots[i].value})
			m.slots[i].state = stateTombstone
			m.slots[i].key = nil
			m.slots[i].value = nil
			m.size--
			m.tombstones++
		}
		m.drainIdx++
	}
	return out
}

// DrainDone reports whether DrainBatch has visited every slot.
func (m *Map) DrainDone() bool { return m.drainIdx >= uint64(len(m.slots)) }
