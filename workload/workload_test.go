package workload_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jguida941/adaptive-hashmap-studio/chaining"
	"github.com/jguida941/adaptive-hashmap-studio/config"
	"github.com/jguida941/adaptive-hashmap-studio/hybrid"
	"github.com/jguida941/adaptive-hashmap-studio/internal/probe"
	"github.com/jguida941/adaptive-hashmap-studio/metrics"
	"github.com/jguida941/adaptive-hashmap-studio/workload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsDeterministicInSeed(t *testing.T) {
	opts := workload.GenerateOptions{Ops: 2000, ReadRatio: 0.5, KeySkew: 1.2, KeySpace: 500, Seed: 42}
	var a, b bytes.Buffer
	require.NoError(t, workload.Generate(&a, opts))
	require.NoError(t, workload.Generate(&b, opts))
	assert.Equal(t, a.String(), b.String())
}

func TestGenerateProducesValidHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	opts := workload.GenerateOptions{Ops: 500, ReadRatio: 0.8, KeySkew: 0, KeySpace: 100, Seed: 7}
	require.NoError(t, workload.Generate(&buf, opts))

	rows, err := workload.ReadRows(strings.NewReader(buf.String()), 0, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 500)
}

func TestGenerateAdversarialKeysShareLowBits(t *testing.T) {
	var buf bytes.Buffer
	opts := workload.GenerateOptions{
		Ops: 1000, ReadRatio: 0.2, KeySkew: 1.0, KeySpace: 50000, Seed: 1,
		AdversarialRatio: 1.0, AdversarialLowBits: 10,
	}
	require.NoError(t, workload.Generate(&buf, opts))

	rows, err := workload.ReadRows(strings.NewReader(buf.String()), 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	// AdversarialRatio 1.0 draws every key from the family, so every key's
	// hash carries the same low 10 bits.
	mask := uint64(1)<<10 - 1
	want := probe.Xxhash(rows[0].Key) & mask
	for _, row := range rows {
		assert.Equal(t, want, probe.Xxhash(row.Key)&mask, "key %s", row.Key)
	}
}

func TestReadRowsRejectsBadHeader(t *testing.T) {
	_, err := workload.ReadRows(strings.NewReader("op,key,val\nput,a,b\n"), 0, 0)
	assert.Error(t, err)
}

func TestReadRowsRejectsEmptyKey(t *testing.T) {
	_, err := workload.ReadRows(strings.NewReader("op,key,value\nput,,b\n"), 0, 0)
	assert.Error(t, err)
}

func TestReadRowsRejectsMissingPutValue(t *testing.T) {
	_, err := workload.ReadRows(strings.NewReader("op,key,value\nput,a,\n"), 0, 0)
	assert.Error(t, err)
}

func TestReadRowsRejectsValueOnGet(t *testing.T) {
	_, err := workload.ReadRows(strings.NewReader("op,key,value\nget,a,b\n"), 0, 0)
	assert.Error(t, err)
}

func TestReadRowsEnforcesMaxRows(t *testing.T) {
	_, err := workload.ReadRows(strings.NewReader("op,key,value\nput,a,b\nput,c,d\n"), 1, 0)
	assert.Error(t, err)
}

func fakeClock(step float64) func() float64 {
	t := 0.0
	return func() float64 {
		t += step
		return t
	}
}

func TestRunUniformBaselineMatchesExpectedInvariants(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, workload.Generate(&buf, workload.GenerateOptions{
		Ops: 2000, ReadRatio: 0.8, KeySkew: 0, KeySpace: 500, Seed: 42,
	}))
	rows, err := workload.ReadRows(strings.NewReader(buf.String()), 0, 0)
	require.NoError(t, err)

	m := chaining.New(chaining.Config{})
	summary, err := workload.Run(m, rows, workload.RunOptions{
		ReservoirSize: 64, SampleEvery: 1, BucketPreset: metrics.PresetMillis,
	}, fakeClock(0.0001), nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(len(rows)), summary.Ops)
	total := summary.OpsByType["put"] + summary.OpsByType["get"] + summary.OpsByType["del"]
	assert.Equal(t, summary.Ops, total)
}

func TestRunDryRunDoesNotMutate(t *testing.T) {
	rows := []workload.Row{{Op: "put", Key: []byte("a"), Value: []byte("b")}}
	m := chaining.New(chaining.Config{})
	summary, err := workload.Run(m, rows, workload.RunOptions{DryRun: true}, fakeClock(0.001), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), summary.Ops)
	assert.Equal(t, 0, m.Size())
}

func TestRunEmitsTicksAndAbortsOnSinkError(t *testing.T) {
	rows := []workload.Row{
		{Op: "put", Key: []byte("a"), Value: []byte("b")},
		{Op: "put", Key: []byte("c"), Value: []byte("d")},
	}
	m := chaining.New(chaining.Config{})
	boom := func(metrics.Tick) error { return assertError{} }
	_, err := workload.Run(m, rows, workload.RunOptions{
		ReservoirSize: 8, SampleEvery: 1, BucketPreset: metrics.PresetMillis, TickEveryOps: 1,
	}, fakeClock(0.001), boom)
	assert.Error(t, err)
}

type assertError struct{}

func (assertError) Error() string { return "sink failed" }

func TestRunWithHybridReportsMigrations(t *testing.T) {
	g := config.Defaults()
	g.InitialBuckets = 4
	g.GroupsPerBucket = 2
	g.MaxLFChaining = 0.1
	g.MaxGroupLen = 1 << 30
	g.IncrementalBatch = 1000
	m := hybrid.New(g)

	var rows []workload.Row
	for i := 0; i < 100; i++ {
		rows = append(rows, workload.Row{Op: "put", Key: []byte{byte(i), byte(i >> 8)}, Value: []byte("v")})
	}

	summary, err := workload.Run(m, rows, workload.RunOptions{
		ReservoirSize: 16, SampleEvery: 1, BucketPreset: metrics.PresetMillis,
	}, fakeClock(0.0001), nil)
	require.NoError(t, err)
	assert.Equal(t, config.BackendRobinHood, config.Backend(summary.FinalBackend))
	assert.GreaterOrEqual(t, summary.Migrations, uint64(1))
}
