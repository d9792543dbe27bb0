package cli

import (
	"github.com/jguida941/adaptive-hashmap-studio/chaining"
	"github.com/jguida941/adaptive-hashmap-studio/config"
	"github.com/jguida941/adaptive-hashmap-studio/engineerr"
	"github.com/jguida941/adaptive-hashmap-studio/hybrid"
	"github.com/jguida941/adaptive-hashmap-studio/internal/probe"
	"github.com/jguida941/adaptive-hashmap-studio/metrics"
	"github.com/jguida941/adaptive-hashmap-studio/robinhood"
	"github.com/jguida941/adaptive-hashmap-studio/snapshot"
	"github.com/jguida941/adaptive-hashmap-studio/workload"
)

// Mode is the global --mode selector (spec §6). fast-insert and
// fast-lookup pin the engine to a single back-end with no adaptive
// migration; adaptive hands control to the hybrid controller;
// memory-tight is an alias.
type Mode string

const (
	ModeFastInsert  Mode = "fast-insert"
	ModeFastLookup  Mode = "fast-lookup"
	ModeMemoryTight Mode = "memory-tight"
	ModeAdaptive    Mode = "adaptive"
)

// resolveMode validates the --mode flag value. memory-tight aliases
// fast-lookup: the open-addressed Robin Hood table carries no per-entry
// slice/group overhead, which is the leaner layout of the two single
// back-end modes (see DESIGN.md for the full rationale — this is an Open
// Question spec.md leaves to implementer's discretion).
func resolveMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFastInsert:
		return ModeFastInsert, nil
	case ModeFastLookup:
		return ModeFastLookup, nil
	case ModeMemoryTight:
		return ModeFastLookup, nil
	case ModeAdaptive:
		return ModeAdaptive, nil
	default:
		return "", engineerr.BadInputf("--mode: unknown mode %q (want fast-insert|fast-lookup|memory-tight|adaptive)", s)
	}
}

// itemsEngine is the shape the items command needs: workload.Engine plus
// enumeration, satisfied structurally by all three back-ends.
type itemsEngine interface {
	workload.Engine
	Items(fn func(key, val []byte) bool)
}

// newEngine constructs a fresh, empty engine for mode, shaped by g.
func newEngine(mode Mode, g config.Guardrails) (itemsEngine, error) {
	hasher, ok := probe.ByName(g.HashFn)
	if !ok {
		return nil, engineerr.BadInputf("hash_fn: unknown hasher %q", g.HashFn)
	}
	switch mode {
	case ModeFastInsert:
		return chaining.New(chaining.Config{
			Buckets: g.InitialBuckets, GroupsPerBucket: g.GroupsPerBucket, Hasher: hasher,
		}), nil
	case ModeFastLookup:
		return robinhood.New(robinhood.Config{InitialCapacity: g.InitialCapacityRH, Hasher: hasher}), nil
	case ModeAdaptive:
		return hybrid.New(g), nil
	default:
		return nil, engineerr.BadInputf("--mode: unknown mode %q", mode)
	}
}

// loadEngineSnapshot loads an engine of the shape mode expects from path.
func loadEngineSnapshot(path string, mode Mode) (itemsEngine, error) {
	switch mode {
	case ModeFastInsert:
		return snapshot.LoadChaining(path)
	case ModeFastLookup:
		return snapshot.LoadRobinHood(path)
	case ModeAdaptive:
		return snapshot.LoadHybrid(path)
	default:
		return nil, engineerr.BadInputf("--mode: unknown mode %q", mode)
	}
}

// saveEngineSnapshot persists engine (built by newEngine/loadEngineSnapshot
// for the same mode) to path.
func saveEngineSnapshot(path string, mode Mode, engine itemsEngine, opts snapshot.WriteOptions) error {
	switch mode {
	case ModeFastInsert:
		m, ok := engine.(*chaining.Map)
		if !ok {
			return engineerr.Invariantf("snapshot: engine/mode mismatch for fast-insert")
		}
		return snapshot.SaveChaining(path, m, opts)
	case ModeFastLookup:
		m, ok := engine.(*robinhood.Map)
		if !ok {
			return engineerr.Invariantf("snapshot: engine/mode mismatch for fast-lookup")
		}
		return snapshot.SaveRobinHood(path, m, opts)
	case ModeAdaptive:
		m, ok := engine.(*hybrid.Map)
		if !ok {
			return engineerr.Invariantf("snapshot: engine/mode mismatch for adaptive")
		}
		return snapshot.SaveHybrid(path, m, opts)
	default:
		return engineerr.BadInputf("--mode: unknown mode %q", mode)
	}
}

// loadOrNew loads path if it names an existing file, otherwise builds a
// fresh engine for mode. Used by the one-shot put/get/del/items commands,
// which each run as a standalone process invocation and rely on
// --snapshot to persist state across calls.
func loadOrNew(path string, mode Mode, g config.Guardrails) (itemsEngine, error) {
	if path == "" {
		return newEngine(mode, g)
	}
	if !fileExists(path) {
		return newEngine(mode, g)
	}
	return loadEngineSnapshot(path, mode)
}

// thresholdsFromGuardrails projects the watchdog alert fields of g into
// the aggregator's Thresholds shape.
func thresholdsFromGuardrails(g config.Guardrails) metrics.Thresholds {
	th := metrics.Thresholds{}
	if g.LoadFactorWarn.Enabled() {
		th.LoadFactorWarn, th.LoadFactorWarnSet = float64(g.LoadFactorWarn), true
	}
	if g.AvgProbeWarn.Enabled() {
		th.AvgProbeWarn, th.AvgProbeWarnSet = float64(g.AvgProbeWarn), true
	}
	if g.TombstoneRatioWarn.Enabled() {
		th.TombstoneRatioWarn, th.TombstoneRatioSet = float64(g.TombstoneRatioWarn), true
	}
	return th
}

// resolveModeAndConfig loads the guardrail record from g.configPath and
// validates g.mode, the shared setup every command that touches an
// engine needs.
func resolveModeAndConfig(g *globals) (Mode, config.Guardrails, error) {
	guard, err := loadConfig(g.configPath)
	if err != nil {
		return "", config.Guardrails{}, err
	}
	mode, err := resolveMode(g.mode)
	if err != nil {
		return "", config.Guardrails{}, err
	}
	return mode, guard, nil
}
