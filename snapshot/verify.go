package snapshot

import (
	"github.com/jguida941/adaptive-hashmap-studio/engineerr"
)

// VerifyResult reports what Verify found.
type VerifyResult struct {
	Kind     Kind
	Size     int
	Repaired bool
}

// Verify checks magic, version, and checksum (via Peek/decode), fully
// deserializes the snapshot, and runs the back-end's own invariant check
// where one exists (only RobinHood defines one; spec §4.7). If repair is
// true and the snapshot is a RobinHoodMap, it is compacted and rewritten
// to outPath.
func Verify(inPath string, repair bool, outPath string, opts WriteOptions) (VerifyResult, error) {
	kind, err := Peek(inPath)
	if err != nil {
		return VerifyResult{}, err
	}

	switch kind {
	case KindChaining:
		m, err := LoadChaining(inPath)
		if err != nil {
			return VerifyResult{}, err
		}
		return VerifyResult{Kind: kind, Size: m.Size()}, nil

	case KindRobinHood:
		m, err := LoadRobinHood(inPath)
		if err != nil {
			return VerifyResult{}, err
		}
		if err := m.CheckInvariants(); err != nil {
			return VerifyResult{}, err
		}
		if repair {
			m.Compact()
			if outPath == "" {
				outPath = inPath
			}
			if err := SaveRobinHood(outPath, m, opts); err != nil {
				return VerifyResult{}, err
			}
			return VerifyResult{Kind: kind, Size: m.Size(), Repaired: true}, nil
		}
		return VerifyResult{Kind: kind, Size: m.Size()}, nil

	case KindHybrid:
		m, err := LoadHybrid(inPath)
		if err != nil {
			return VerifyResult{}, err
		}
		if err := m.CheckInvariants(); err != nil {
			return VerifyResult{}, err
		}
		return VerifyResult{Kind: kind, Size: m.Size()}, nil

	default:
		return VerifyResult{}, engineerr.Invariantf("snapshot: unknown kind %d", kind)
	}
}

// Compact applies §4.3.2 compaction to a RobinHoodMap snapshot and writes
// the result to outPath. Any other snapshot kind is rejected as Policy,
// since compaction is only meaningful for the tombstone-bearing back-end.
func Compact(inPath, outPath string, opts WriteOptions) (int, error) {
	kind, err := Peek(inPath)
	if err != nil {
		return 0, err
	}
	if kind != KindRobinHood {
		return 0, engineerr.Policyf("compact-snapshot: %s snapshots cannot be compacted", kindName(kind))
	}

	m, err := LoadRobinHood(inPath)
	if err != nil {
		return 0, err
	}
	m.Compact()
	if err := SaveRobinHood(outPath, m, opts); err != nil {
		return 0, err
	}
	return m.Size(), nil
}

// String renders k the way it appears in --json and human-readable
// command output (spec §6 command surface).
func (k Kind) String() string {
	switch k {
	case KindChaining:
		return "chaining"
	case KindRobinHood:
		return "robinhood"
	case KindHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

func kindName(k Kind) string { return k.String() }

// MarshalJSON renders Kind as its name rather than its numeric tag, so
// --json output matches the human-readable rendering.
func (k Kind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}
