// Package probe holds the hashing and probe-sequence primitives shared by
// the chaining and Robin Hood back-ends: a stable 64-bit hash of byte-string
// keys and the linear probe sequence that gives Robin Hood's displacement
// (dib) a well-defined meaning.
package probe

import (
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// HashFn hashes a byte-string key to a 64-bit digest. It must be
// deterministic across runs and processes so that snapshots round-trip
// (spec §4.1); it need not be cryptographic.
type HashFn func(key []byte) uint64

// Xxhash is the default hasher: github.com/cespare/xxhash/v2, the same
// hash used by the in-memory stores in the retrieval pack (HyperCache,
// hydraide) to key their tables. It is fast, well distributed, and stable
// across platforms.
func Xxhash(key []byte) uint64 {
	return xxhash.Sum64(key)
}

// FNV1a is the teacher's own string hasher (EinfachAndy/hashmaps' modified
// FNV-1a, see hash.go), kept as a dependency-free fallback selectable via
// the configuration record's hash_fn field.
func FNV1a(key []byte) uint64 {
	const prime64 = uint64(1099511628211)
	h := uint64(14695981039346656037)

	b := key
	for len(b) >= 8 {
		z := beUint64(b[:8])
		b = b[8:]
		h = (h ^ z) * prime64
	}
	if len(b) >= 4 {
		z := uint64(beUint32(b[:4]))
		b = b[4:]
		h = (h ^ z) * prime64
	}
	if len(b) >= 2 {
		h = (h ^ uint64(b[0]^b[1])) * prime64
		b = b[2:]
	}
	if len(b) > 0 {
		h = (h ^ uint64(b[0])) * prime64
	}
	return h
}

func beUint64(b []byte) uint64 {
	_ = b[7]
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
}

func beUint32(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// ByName resolves a configuration hasher name to a HashFn. Returns false
// for unknown names so the caller can surface a BadInput error.
func ByName(name string) (HashFn, bool) {
	switch name {
	case "", "xxhash":
		return Xxhash, true
	case "fnv1a":
		return FNV1a, true
	default:
		return nil, false
	}
}

// NameOf is ByName's inverse, used when a back-end's live hasher must be
// recorded in a snapshot. Unrecognized functions (never constructed by
// this package) resolve to "xxhash", the default, since a snapshot must
// always record a name ByName can resolve back.
func NameOf(fn HashFn) string {
	p := reflect.ValueOf(fn).Pointer()
	switch p {
	case reflect.ValueOf(HashFn(FNV1a)).Pointer():
		return "fnv1a"
	default:
		return "xxhash"
	}
}
