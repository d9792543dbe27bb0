// Package snapshot implements the on-disk container for a single top-level
// map (ChainingMap, RobinHoodMap, or HybridAdaptiveMap): a fixed magic
// prefix, a version integer, a payload length, a BLAKE2b-keyed checksum
// over the payload, then the serialized payload itself, with optional
// gzip framing (spec §4.7).
//
// The payload is encoded with encoding/gob, but never by calling
// gob.Register on arbitrary caller types: only the record types declared
// in this package are ever encoded or decoded, so a crafted file cannot
// cause construction of a type outside the allowlist below.
package snapshot

import (
	"github.com/jguida941/adaptive-hashmap-studio/config"
)

// magic identifies a valid snapshot file; version is bumped whenever the
// record layout changes in a way that breaks decoding of older files.
var magic = [4]byte{'A', 'H', 'M', 'S'}

const version uint32 = 1

// Kind tags which top-level map a snapshot holds.
type Kind uint8

const (
	KindChaining Kind = iota
	KindRobinHood
	KindHybrid
)

// entryRecord is one (key,value) pair, the only leaf record type payloads
// are built from. It is the sole member of the deserialization allowlist
// besides the container records below.
type entryRecord struct {
	Key   []byte
	Value []byte
}

// chainingRecord mirrors chaining.Map's fixed shape and contents.
type chainingRecord struct {
	BucketCount     uint64
	GroupsPerBucket uint64
	HashFn          string
	Entries         []entryRecord
}

// robinHoodRecord mirrors robinhood.Map's fixed shape and contents. Slots
// are not persisted individually: on load, entries are reinserted in
// stored order, which reconstructs a table satisfying the displacement
// invariant (insertion order does not change insertion mechanics).
type robinHoodRecord struct {
	Capacity uint64
	HashFn   string
	Entries  []entryRecord
}

// backendRecord is a tagged union over the two back-end record shapes, used
// wherever a snapshot needs to name an arbitrary one of them (the hybrid
// container's steady-state backend, or a migration's source/target).
type backendRecord struct {
	Kind      config.Backend
	Chaining  *chainingRecord
	RobinHood *robinHoodRecord
}

// hybridRecord persists the active back-end plus, if a transition was in
// flight at snapshot time, enough state to resume it: both source and
// target contents and whether it was a migration or a compaction. This is
// what makes a cancelled migration recoverable (spec §5).
type hybridRecord struct {
	Guardrails config.Guardrails
	Active     config.Backend

	// Steady holds the active back-end's contents when no transition is
	// in flight.
	Steady *backendRecord

	// InTransition and the pair below are populated instead when a
	// migration or compaction was interrupted mid-drain.
	InTransition bool
	Compacting   bool
	Source       *backendRecord
	Target       *backendRecord
}

// payload is the top-level gob-encoded structure; exactly one of its
// fields is non-nil, selected by Kind.
type payload struct {
	Kind      Kind
	Chaining  *chainingRecord
	RobinHood *robinHoodRecord
	Hybrid    *hybridRecord
}
