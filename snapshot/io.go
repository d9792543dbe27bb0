package snapshot

import (
	"bytes"
	"os"

	"github.com/jguida941/adaptive-hashmap-studio/chaining"
	"github.com/jguida941/adaptive-hashmap-studio/engineerr"
	"github.com/jguida941/adaptive-hashmap-studio/hybrid"
	"github.com/jguida941/adaptive-hashmap-studio/robinhood"
	"github.com/natefinch/atomic"
)

func writeFile(path string, data []byte) error {
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return engineerr.Wrap(engineerr.IO, err, "writing snapshot "+path)
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.IO, err, "reading snapshot "+path)
	}
	return data, nil
}

// SaveChaining persists m to path.
func SaveChaining(path string, m *chaining.Map, opts WriteOptions) error {
	data, err := encode(payload{Kind: KindChaining, Chaining: chainingToRecord(m)}, opts)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// LoadChaining reads a ChainingMap snapshot from path.
func LoadChaining(path string) (*chaining.Map, error) {
	p, err := loadPayload(path, KindChaining)
	if err != nil {
		return nil, err
	}
	return chainingFromRecord(p.Chaining)
}

// SaveRobinHood persists m to path.
func SaveRobinHood(path string, m *robinhood.Map, opts WriteOptions) error {
	data, err := encode(payload{Kind: KindRobinHood, RobinHood: robinHoodToRecord(m)}, opts)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// LoadRobinHood reads a RobinHoodMap snapshot from path.
func LoadRobinHood(path string) (*robinhood.Map, error) {
	p, err := loadPayload(path, KindRobinHood)
	if err != nil {
		return nil, err
	}
	return robinHoodFromRecord(p.RobinHood)
}

// SaveHybrid persists m, including an in-flight migration/compaction if
// one is running, to path.
func SaveHybrid(path string, m *hybrid.Map, opts WriteOptions) error {
	rec, err := hybridToRecord(m)
	if err != nil {
		return err
	}
	data, err := encode(payload{Kind: KindHybrid, Hybrid: rec}, opts)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// LoadHybrid reads a HybridAdaptiveMap snapshot from path, resuming any
// migration or compaction that was in flight when it was written.
func LoadHybrid(path string) (*hybrid.Map, error) {
	p, err := loadPayload(path, KindHybrid)
	if err != nil {
		return nil, err
	}
	return hybridFromRecord(p.Hybrid)
}

func loadPayload(path string, want Kind) (payload, error) {
	data, err := readFile(path)
	if err != nil {
		return payload{}, err
	}
	p, err := decode(data)
	if err != nil {
		return payload{}, err
	}
	if p.Kind != want {
		return payload{}, engineerr.Invariantf("snapshot: expected kind %d, got %d", want, p.Kind)
	}
	return p, nil
}

// Peek reports which kind of map a snapshot file holds, without building
// a live chaining/robinhood/hybrid instance from it, for verify-snapshot's
// and compact-snapshot's type dispatch.
func Peek(path string) (Kind, error) {
	data, err := readFile(path)
	if err != nil {
		return 0, err
	}
	p, err := decode(data)
	if err != nil {
		return 0, err
	}
	return p.Kind, nil
}
