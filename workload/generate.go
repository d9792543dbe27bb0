// Package workload generates deterministic CSV traces and replays them
// against any of the three back-ends, producing metric ticks and a final
// summary (spec §4.6). Writing a final snapshot is left to the run-csv
// command.
package workload

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/jguida941/adaptive-hashmap-studio/engineerr"
	"github.com/jguida941/adaptive-hashmap-studio/internal/probe"
)

// GenerateOptions controls a synthetic CSV trace. Key skew follows a Zipf
// distribution over a fixed key space; math/rand/v2 is used directly
// (rather than an ecosystem Zipf library) since no generator in the
// retrieval pack exposes one and the engine needs a portable, seed-stable
// distribution for deterministic replay (spec §4.6 "deterministic in
// seed").
type GenerateOptions struct {
	Ops                int
	ReadRatio          float64
	KeySkew            float64 // Zipf exponent; 0 = uniform
	KeySpace           int
	Seed               uint64
	AdversarialRatio   float64 // fraction of keys drawn from the collision family
	AdversarialLowBits int     // low bits forced equal within that family
}

// Generate writes a deterministic CSV trace to w per opts. Rows are
// (op,key,value) with op one of put/get/del; a put always carries a
// non-empty value, get/del never do, matching the replay driver's
// validation rules (spec §4.6).
func Generate(w io.Writer, opts GenerateOptions) error {
	if opts.Ops < 0 {
		return engineerr.BadInputf("generate-csv: ops must be non-negative")
	}
	if opts.KeySpace <= 0 {
		return engineerr.BadInputf("generate-csv: key-space must be positive")
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0xD6E8FEB86659FD93))
	zipf := newZipf(rng, opts.KeySkew, opts.KeySpace)

	var adversarial *adversarialFamily
	if opts.AdversarialRatio > 0 {
		adversarial = buildAdversarialFamily(rng, opts.KeySpace, opts.AdversarialLowBits)
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("op,key,value\n"); err != nil {
		return engineerr.Wrap(engineerr.IO, err, "writing CSV header")
	}

	// deleted tracks which generated keys have already been issued a del,
	// so the uniform-baseline invariant (final size == puts - deletes)
	// holds for a generated trace: a key is only deleted once.
	deleted := make(map[int]bool)

	for i := 0; i < opts.Ops; i++ {
		var keyIdx int
		if adversarial != nil && rng.Float64() < opts.AdversarialRatio {
			keyIdx = adversarial.pick(rng)
		} else {
			keyIdx = zipf.next()
		}

		op := "put"
		roll := rng.Float64()
		switch {
		case roll < opts.ReadRatio:
			op = "get"
		case roll < opts.ReadRatio+(1-opts.ReadRatio)*0.1 && !deleted[keyIdx]:
			op = "del"
			deleted[keyIdx] = true
		}

		key := fmt.Sprintf("k%08d", keyIdx)
		var line string
		switch op {
		case "put":
			line = fmt.Sprintf("put,%s,v%08d\n", key, i)
		default:
			line = fmt.Sprintf("%s,%s,\n", op, key)
		}
		if _, err := bw.WriteString(line); err != nil {
			return engineerr.Wrap(engineerr.IO, err, "writing CSV row")
		}
	}

	if err := bw.Flush(); err != nil {
		return engineerr.Wrap(engineerr.IO, err, "flushing CSV output")
	}
	return nil
}

// adversarialFamilySize bounds how many distinct key indices the collision
// family holds; the generator cycles through this pool rather than
// searching for a fresh collision on every adversarial draw.
const adversarialFamilySize = 4096

// adversarialSearchBudget bounds the total number of candidate keys probed
// while building the family, so construction cost never scales with ops:
// it runs once per Generate call, not once per adversarial row.
const adversarialSearchBudget = 1 << 20

// adversarialFamily is a pool of key indices whose formatted keys ("k%08d")
// hash, under the engine's default hasher, to the same fixed pattern in
// their low lowbits bits — genuine low-order hash-bit collisions, not
// merely shared low bits of the numeric index (spec §3/§4.6 "adversarial
// low-bits collisions").
type adversarialFamily struct {
	indices []int
}

// buildAdversarialFamily searches keySpace for indices whose hash matches
// a fixed low-bits target, via rejection sampling against probe.Xxhash
// (the generator's default hasher). If lowbits is out of range, or the
// search budget is exhausted without a single hit (astronomically
// unlikely for any lowbits small enough to be useful), it falls back to a
// plain random pool so adversarial-ratio still has a bounded, well-defined
// family to draw from.
func buildAdversarialFamily(rng *rand.Rand, keySpace, lowbits int) *adversarialFamily {
	fam := &adversarialFamily{}

	if lowbits <= 0 || lowbits >= 63 {
		n := adversarialFamilySize
		if n > keySpace {
			n = keySpace
		}
		for i := 0; i < n; i++ {
			fam.indices = append(fam.indices, rng.IntN(keySpace))
		}
		return fam
	}

	mask := uint64(1)<<uint(lowbits) - 1
	target := uint64(0x5A5A5A5A5A5A5A5A) & mask

	for tries := 0; len(fam.indices) < adversarialFamilySize && tries < adversarialSearchBudget; tries++ {
		idx := rng.IntN(keySpace)
		key := fmt.Sprintf("k%08d", idx)
		if probe.Xxhash([]byte(key))&mask == target {
			fam.indices = append(fam.indices, idx)
		}
	}
	if len(fam.indices) == 0 {
		fam.indices = []int{rng.IntN(keySpace)}
	}
	return fam
}

// pick draws one index from the family, uniformly.
func (f *adversarialFamily) pick(rng *rand.Rand) int {
	return f.indices[rng.IntN(len(f.indices))]
}

// zipfSampler draws indices in [0,n) from a Zipf-like distribution with
// the given exponent, precomputing a cumulative weight table since the
// generator calls next() up to `ops` times and n is bounded by key_space.
type zipfSampler struct {
	rng   *rand.Rand
	cum   []float64
	total float64
}

func newZipf(rng *rand.Rand, exponent float64, n int) *zipfSampler {
	z := &zipfSampler{rng: rng, cum: make([]float64, n)}
	if exponent <= 0 {
		for i := range z.cum {
			z.total += 1.0
			z.cum[i] = z.total
		}
		return z
	}
	for i := 0; i < n; i++ {
		z.total += 1.0 / math.Pow(float64(i+1), exponent)
		z.cum[i] = z.total
	}
	return z
}

func (z *zipfSampler) next() int {
	target := z.rng.Float64() * z.total
	i := sort.Search(len(z.cum), func(i int) bool { return z.cum[i] >= target })
	if i >= len(z.cum) {
		i = len(z.cum) - 1
	}
	return i
}
