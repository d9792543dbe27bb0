// Package config defines the guardrail configuration record (spec §3) and
// its TOML decoding. A process-wide watchdog is never read from the
// environment implicitly: env overrides, if any, are resolved once at
// startup into this struct by the CLI layer, not read ambiently by the
// engine (spec §9, "Global mutable state").
package config

import (
	"bytes"
	"fmt"

	"github.com/jguida941/adaptive-hashmap-studio/engineerr"
	"github.com/jguida941/adaptive-hashmap-studio/internal/probe"
	"github.com/pelletier/go-toml/v2"
)

// Backend names the starting back-end of the hybrid controller.
type Backend string

const (
	BackendChaining  Backend = "chaining"
	BackendRobinHood Backend = "robinhood"
)

// noneSentinel disables an individual watchdog threshold (spec §3/§6).
const noneSentinel = -1

// Threshold is a float64 guardrail that can be individually disabled via
// the TOML sentinel "none", which decodes to a negative value internally.
type Threshold float64

// Enabled reports whether this threshold is active.
func (t Threshold) Enabled() bool { return float64(t) >= 0 }

// UnmarshalText lets go-toml/v2 decode the bare string "none" into a
// disabled threshold, alongside ordinary floats.
func (t *Threshold) UnmarshalText(data []byte) error {
	s := string(data)
	if s == "none" || s == `"none"` {
		*t = noneSentinel
		return nil
	}
	var f float64
	if _, err := fmt.Sscanf(s, "%g", &f); err != nil {
		return fmt.Errorf("threshold: %q is neither a number nor \"none\"", s)
	}
	*t = Threshold(f)
	return nil
}

// Guardrails holds the hybrid controller's tunable thresholds, spec §3.
type Guardrails struct {
	StartBackend Backend `toml:"start_backend"`

	InitialBuckets  uint64 `toml:"initial_buckets"`
	GroupsPerBucket uint64 `toml:"groups_per_bucket"`

	InitialCapacityRH uint64 `toml:"initial_capacity_rh"`

	IncrementalBatch int `toml:"incremental_batch"`

	MaxLFChaining        Threshold `toml:"max_lf_chaining"`
	MaxGroupLen          int       `toml:"max_group_len"`
	MaxAvgProbeRobinHood Threshold `toml:"max_avg_probe_robinhood"`
	MaxTombstoneRatio    Threshold `toml:"max_tombstone_ratio"`

	LoadFactorWarn     Threshold `toml:"load_factor_warn"`
	AvgProbeWarn       Threshold `toml:"avg_probe_warn"`
	TombstoneRatioWarn Threshold `toml:"tombstone_ratio_warn"`

	HashFn string `toml:"hash_fn"`
}

// Defaults returns the guardrail record with every field at its spec §3
// default.
func Defaults() Guardrails {
	return Guardrails{
		StartBackend:         BackendChaining,
		InitialBuckets:       64,
		GroupsPerBucket:      8,
		InitialCapacityRH:    64,
		IncrementalBatch:     2048,
		MaxLFChaining:        0.82,
		MaxGroupLen:          8,
		MaxAvgProbeRobinHood: 6.0,
		MaxTombstoneRatio:    0.25,
		LoadFactorWarn:       0.9,
		AvgProbeWarn:         8.0,
		TombstoneRatioWarn:   0.35,
		HashFn:               "xxhash",
	}
}

// Load decodes a TOML configuration file into the guardrail record,
// starting from Defaults() so that any field the file omits keeps its
// default. Unknown keys and type violations are rejected as BadInput,
// per spec §6.
func Load(data []byte) (Guardrails, error) {
	cfg := Defaults()

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Guardrails{}, engineerr.Wrap(engineerr.BadInput, err, "invalid configuration").
			WithHint("check for unknown keys or type mismatches")
	}

	if err := cfg.Validate(); err != nil {
		return Guardrails{}, err
	}

	return cfg, nil
}

// Validate rejects structurally legal but semantically out-of-range
// configuration values.
func (g Guardrails) Validate() error {
	if g.StartBackend != BackendChaining && g.StartBackend != BackendRobinHood {
		return engineerr.BadInputf("start_backend: unknown backend %q", g.StartBackend)
	}
	if g.InitialBuckets == 0 || g.GroupsPerBucket == 0 || g.InitialCapacityRH == 0 {
		return engineerr.BadInputf("shape fields must be positive powers of two")
	}
	if g.IncrementalBatch <= 0 {
		return engineerr.BadInputf("incremental_batch must be positive")
	}
	if _, ok := probe.ByName(g.HashFn); !ok {
		return engineerr.BadInputf("hash_fn: unknown hasher %q", g.HashFn)
	}
	return nil
}
