package snapshot_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jguida941/adaptive-hashmap-studio/chaining"
	"github.com/jguida941/adaptive-hashmap-studio/config"
	"github.com/jguida941/adaptive-hashmap-studio/hybrid"
	"github.com/jguida941/adaptive-hashmap-studio/robinhood"
	"github.com/jguida941/adaptive-hashmap-studio/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func k(i int) []byte { return []byte(fmt.Sprintf("key-%06d", i)) }
func v(i int) []byte { return []byte(fmt.Sprintf("val-%06d", i)) }

func TestChainingRoundTrip(t *testing.T) {
	m := chaining.New(chaining.Config{})
	for i := 0; i < 500; i++ {
		m.Put(k(i), v(i))
	}
	path := filepath.Join(t.TempDir(), "snap.bin")
	require.NoError(t, snapshot.SaveChaining(path, m, snapshot.WriteOptions{}))

	loaded, err := snapshot.LoadChaining(path)
	require.NoError(t, err)
	assert.Equal(t, m.Size(), loaded.Size())
	for i := 0; i < 500; i++ {
		got, ok := loaded.Get(k(i))
		require.True(t, ok)
		assert.Equal(t, v(i), got)
	}
}

func TestRobinHoodRoundTripCompressed(t *testing.T) {
	m := robinhood.New(robinhood.Config{})
	for i := 0; i < 2000; i++ {
		m.Put(k(i), v(i))
	}
	for i := 0; i < 300; i++ {
		m.Delete(k(i))
	}
	path := filepath.Join(t.TempDir(), "snap.bin.gz")
	require.NoError(t, snapshot.SaveRobinHood(path, m, snapshot.WriteOptions{Compress: true}))

	loaded, err := snapshot.LoadRobinHood(path)
	require.NoError(t, err)
	assert.NoError(t, loaded.CheckInvariants())
	for i := 300; i < 2000; i++ {
		got, ok := loaded.Get(k(i))
		require.True(t, ok)
		assert.Equal(t, v(i), got)
	}
}

func TestHybridRoundTripSteadyState(t *testing.T) {
	g := config.Defaults()
	m := hybrid.New(g)
	for i := 0; i < 300; i++ {
		m.Put(k(i), v(i))
	}
	path := filepath.Join(t.TempDir(), "snap.bin")
	require.NoError(t, snapshot.SaveHybrid(path, m, snapshot.WriteOptions{}))

	loaded, err := snapshot.LoadHybrid(path)
	require.NoError(t, err)
	assert.Equal(t, m.Size(), loaded.Size())
	assert.Equal(t, m.ActiveBackend(), loaded.ActiveBackend())
	for i := 0; i < 300; i++ {
		got, ok := loaded.Get(k(i))
		require.True(t, ok)
		assert.Equal(t, v(i), got)
	}
}

func TestHybridRoundTripMidMigration(t *testing.T) {
	g := config.Defaults()
	g.InitialBuckets = 4
	g.GroupsPerBucket = 2
	g.MaxLFChaining = 0.1
	g.MaxGroupLen = 1 << 30
	g.IncrementalBatch = 1
	m := hybrid.New(g)

	for i := 0; i < 50 && !m.InTransition(); i++ {
		m.Put(k(i), v(i))
	}
	require.True(t, m.InTransition())

	path := filepath.Join(t.TempDir(), "snap.bin")
	require.NoError(t, snapshot.SaveHybrid(path, m, snapshot.WriteOptions{}))

	loaded, err := snapshot.LoadHybrid(path)
	require.NoError(t, err)
	assert.True(t, loaded.InTransition())
	assert.Equal(t, m.Size(), loaded.Size())
}

func TestVerifyDetectsChecksumCorruption(t *testing.T) {
	m := robinhood.New(robinhood.Config{})
	m.Put(k(1), v(1))
	path := filepath.Join(t.TempDir(), "snap.bin")
	require.NoError(t, snapshot.SaveRobinHood(path, m, snapshot.WriteOptions{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = snapshot.Verify(path, false, "", snapshot.WriteOptions{})
	require.Error(t, err)
}

func TestVerifyRepairCompactsTombstones(t *testing.T) {
	m := robinhood.New(robinhood.Config{})
	for i := 0; i < 200; i++ {
		m.Put(k(i), v(i))
	}
	for i := 0; i < 150; i++ {
		m.Delete(k(i))
	}
	inPath := filepath.Join(t.TempDir(), "in.bin")
	outPath := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, snapshot.SaveRobinHood(inPath, m, snapshot.WriteOptions{}))

	result, err := snapshot.Verify(inPath, true, outPath, snapshot.WriteOptions{})
	require.NoError(t, err)
	assert.True(t, result.Repaired)

	repaired, err := snapshot.LoadRobinHood(outPath)
	require.NoError(t, err)
	assert.Equal(t, 0, repaired.Tombstones())
}

func TestCompactSnapshotRejectsNonRobinHood(t *testing.T) {
	m := chaining.New(chaining.Config{})
	m.Put(k(1), v(1))
	inPath := filepath.Join(t.TempDir(), "in.bin")
	require.NoError(t, snapshot.SaveChaining(inPath, m, snapshot.WriteOptions{}))

	_, err := snapshot.Compact(inPath, filepath.Join(t.TempDir(), "out.bin"), snapshot.WriteOptions{})
	require.Error(t, err)
}
