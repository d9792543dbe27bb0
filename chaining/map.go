// Package chaining implements ChainingMap: a two-level bucket array of small
// groups, each group a short ordered list of (key,value) pairs. Adapted
// from EinfachAndy/hashmaps' unordered.Unordered (singly-linked buckets),
// reshaped into the fixed bucket×group layout spec.md §3 requires and with
// byte-string keys/values instead of comparable generics, since this
// engine's keys are opaque byte strings, never interpreted as numbers.
package chaining

import (
	"github.com/jguida941/adaptive-hashmap-studio/internal/kv"
	"github.com/jguida941/adaptive-hashmap-studio/internal/probe"
)

// entry is one (key,value) pair stored in a group.
type entry struct {
	key   []byte
	value []byte
}

// group is an ordered sequence of entries sharing a (bucket, group) slot.
// Deletion uses swap-with-last (spec §4.2): O(1), but it weakens intra-group
// order for the entry that was moved into the deleted slot. Callers must not
// rely on iteration order.
type group struct {
	entries []entry
}

func (g *group) find(key []byte) int {
	for i := range g.entries {
		if string(g.entries[i].key) == string(key) {
			return i
		}
	}
	return -1
}

// Map is the chained hash table. Bucket and group counts are fixed at
// construction and are both powers of two.
type Map struct {
	buckets         [][]group
	hasher          probe.HashFn
	bucketCount     uint64
	groupsPerBucket uint64
	bucketMask      uint64
	groupMask       uint64
	groupBits       uint
	size            int
	maxGroupLen     int

	// drainB/drainG track incremental migration's drain cursor (spec §4.4):
	// a monotonically advancing position so repeated DrainBatch calls together
	// visit every entry exactly once, in amortised O(1) per call.
	drainB, drainG int
}


// Config controls the fixed shape of a new ChainingMap.
type Config struct {
	Buckets         uint64 // power of two, default 64
	GroupsPerBucket uint64 // power of two, default 8
	Hasher          probe.HashFn
}

func bitsFor(n uint64) uint {
	var b uint
	for (uint64(1) << b) < n {
		b++
	}
	return b
}

// New creates an empty ChainingMap with the given shape.
func New(cfg Config) *Map {
	buckets := cfg.Buckets
	if buckets == 0 {
		buckets = 64
	}
	buckets = probe.NextPowerOf2(buckets)

	groups := cfg.GroupsPerBucket
	if groups == 0 {
		groups = 8
	}
	groups = probe.NextPowerOf2(groups)

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = probe.Xxhash
	}

	m := &Map{
		hasher:          hasher,
		bucketCount:     buckets,
		groupsPerBucket: groups,
		bucketMask:      buckets - 1,
		groupMask:       groups - 1,
		groupBits:       bitsFor(buckets),
	}
	m.buckets = make([][]group, buckets)
	for i := range m.buckets {
		m.buckets[i] = make([]group, groups)
	}
	return m
}

// locate resolves a key to its (bucket, group) coordinates: bucket is
// hash mod buckets, group is (hash >> bucket_bits) mod groups_per_bucket,
// per spec §3.
func (m *Map) locate(key []byte) (uint64, uint64) {
	h := m.hasher(key)
	bucket := h & m.bucketMask
	grp := (h >> m.groupBits) & m.groupMask
	return bucket, grp
}

// Put inserts or overwrites key with val. Returns true if the key is new.
func (m *Map) Put(key, val []byte) bool {
	b, g := m.locate(key)
	grp := &m.buckets[b][g]

	if i := grp.find(key); i >= 0 {
		grp.entries[i].value = append([]byte(nil), val...)
		return false
	}

	grp.entries = append(grp.entries, entry{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), val...),
	})
	m.size++
	if len(grp.entries) > m.maxGroupLen {
		m.maxGroupLen = len(grp.entries)
	}
	return true
}

// Get returns the value for key, or (nil, false) if absent.
func (m *Map) Get(key []byte) ([]byte, bool) {
	b, g := m.locate(key)
	grp := &m.buckets[b][g]
	if i := grp.find(key); i >= 0 {
		return grp.entries[i].value, true
	}
	return nil, false
}

// Delete removes key, swapping the last entry in its group into the
// deleted slot (§4.2). Returns true if the key was present.
func (m *Map) Delete(key []byte) bool {
	b, g := m.locate(key)
	grp := &m.buckets[b][g]
	i := grp.find(key)
	if i < 0 {
		return false
	}

	last := len(grp.entries) - 1
	grp.entries[i] = grp.entries[last]
	grp.entries = grp.entries[:last]
	m.size--

	if last+1 == m.maxGroupLen {
		m.recomputeMaxGroupLen()
	}
	return true
}

func (m *Map) recomputeMaxGroupLen() {
	max := 0
	for b := range m.buckets {
		for g := range m.buckets[b] {
			if n := len(m.buckets[b][g].entries); n > max {
				max = n
			}
		}
	}
	m.maxGroupLen = max
}

// Items yields all (key,value) pairs in group-major order (implementation-
// defined within a group, per §4.2). Iteration stops if fn returns true.
func (m *Map) Items(fn func(key, val []byte) bool) {
	for b := range m.buckets {
		for g := range m.buckets[b] {
			for _, e := range m.buckets[b][g].entries {
				if fn(e.key, e.value) {
					return
				}
			}
		}
	}
}

// Size is the number of (key,value) pairs currently stored.
func (m *Map) Size() int { return m.size }

// Capacity is bucket_count * groups_per_bucket, the telemetry denominator
// for load factor.
func (m *Map) Capacity() uint64 { return m.bucketCount * m.groupsPerBucket }

// LoadFactor is size / capacity.
func (m *Map) LoadFactor() float64 {
	return float64(m.size) / float64(m.Capacity())
}

// MaxGroupLen is the current longest group, the other chaining→robinhood
// migration guardrail input.
func (m *Map) MaxGroupLen() int { return m.maxGroupLen }

// BucketCount and GroupsPerBucket expose the fixed shape, e.g. for
// snapshot serialization.
func (m *Map) BucketCount() uint64      { return m.bucketCount }
func (m *Map) GroupsPerBucket() uint64  { return m.groupsPerBucket }
func (m *Map) Hasher() probe.HashFn     { return m.hasher }
func (m *Map) SetHasher(h probe.HashFn) { m.hasher = h }

// DrainBatch removes and returns up to n entries, advancing an internal
// cursor so that successive calls together visit every entry exactly
// once (the incremental migration drain step, spec §4.4).
func (m *Map) DrainBatch(n int) []kv.Pair {
	if n <= 0 {
		return nil
	}
	out := make([]kv.Pair, 0, n)
	for m.drainB < len(m.buckets) {
		for m.drainG < len(m.buckets[m.drainB]) {
			grp := &m.buckets[m.drainB][m.drainG]
			for len(grp.entries) > 0 && len(out) < n {
				last := len(grp.entries) - 1
				e := grp.entries[last]
				grp.entries = grp.entries[:last]
				out = append(out, kv.Pair{Key: e.key, Value: e.value})
				m.size--
			}
			if len(out) >= n {
				return out
			}
			m.drainG++
		}
		m.drainG = 0
		m.drainB++
	}
	return out
}

// DrainDone reports whether DrainBatch has visited every bucket/group.
func (m *Map) DrainDone() bool { return m.drainB >= len(m.buckets) }
