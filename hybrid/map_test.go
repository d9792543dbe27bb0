package hybrid_test

import (
	"fmt"
	"testing"

	"github.com/jguida941/adaptive-hashmap-studio/config"
	"github.com/jguida941/adaptive-hashmap-studio/hybrid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func k(i int) []byte { return []byte(fmt.Sprintf("key-%06d", i)) }
func v(i int) []byte { return []byte(fmt.Sprintf("val-%06d", i)) }

func drive(m *hybrid.Map, n int) {
	for i := 0; i < n; i++ {
		m.Put(k(i), v(i))
	}
}

func TestSteadyStateCorrectness(t *testing.T) {
	g := config.Defaults()
	m := hybrid.New(g)
	for i := 0; i < 500; i++ {
		m.Put(k(i), v(i))
	}
	for i := 0; i < 500; i++ {
		got, ok := m.Get(k(i))
		require.True(t, ok)
		assert.Equal(t, v(i), got)
	}
	assert.Equal(t, 500, m.Size())
}

func TestMigratesFromChainingOnLoadFactor(t *testing.T) {
	g := config.Defaults()
	g.InitialBuckets = 8
	g.GroupsPerBucket = 2
	g.MaxLFChaining = 0.5
	g.MaxGroupLen = 1 << 30 // disable the other trigger for this test
	g.IncrementalBatch = 4
	m := hybrid.New(g)

	drive(m, 200)
	assert.Equal(t, config.BackendRobinHood, m.ActiveBackend())
	assert.Equal(t, uint64(1), m.Migrations())

	for i := 0; i < 200; i++ {
		got, ok := m.Get(k(i))
		require.True(t, ok)
		assert.Equal(t, v(i), got)
	}
}

func TestExactThresholdDoesNotTrigger(t *testing.T) {
	g := config.Defaults()
	g.InitialBuckets = 4
	g.GroupsPerBucket = 4
	g.MaxLFChaining = 0.5 // capacity 16, threshold crossed only strictly above load factor 0.5
	g.MaxGroupLen = 1 << 30
	m := hybrid.New(g)

	for i := 0; i < 8; i++ { // load factor exactly 8/16 = 0.5: must not trigger
		m.Put(k(i), v(i))
	}
	assert.Equal(t, config.BackendChaining, m.ActiveBackend())
	assert.False(t, m.InTransition())

	m.Put(k(8), v(8)) // 9/16 = 0.5625 > 0.5: must trigger
	assert.True(t, m.InTransition() || m.ActiveBackend() == config.BackendRobinHood)
}

func TestMigratesFromChainingOnMaxGroupLen(t *testing.T) {
	g := config.Defaults()
	g.InitialBuckets = 1
	g.GroupsPerBucket = 1
	g.MaxLFChaining = 1 << 30
	g.MaxGroupLen = 4
	g.IncrementalBatch = 8
	m := hybrid.New(g)

	for i := 0; i < 64 && m.ActiveBackend() == config.BackendChaining; i++ {
		m.Put(k(i), v(i))
	}
	assert.Equal(t, config.BackendRobinHood, m.ActiveBackend())
}

func TestMigratesFromRobinHoodOnAvgProbe(t *testing.T) {
	g := config.Defaults()
	g.StartBackend = config.BackendRobinHood
	g.InitialCapacityRH = 8
	g.MaxAvgProbeRobinHood = 1.5
	g.MaxTombstoneRatio = 1 << 30
	g.IncrementalBatch = 8
	m := hybrid.New(g)

	for i := 0; i < 2000 && m.ActiveBackend() == config.BackendRobinHood; i++ {
		m.Put([]byte(fmt.Sprintf("ADV-COLLISION-%03d", i&0xFF)), v(i))
	}
	require.Equal(t, config.BackendChaining, m.ActiveBackend())

	for i := 0; i < 2000 && m.InTransition(); i++ {
		m.Put([]byte(fmt.Sprintf("DRAIN-%06d", i)), v(i))
	}
	assert.False(t, m.InTransition())
	assert.Equal(t, uint64(1), m.Migrations())
}

func TestCompactsOnTombstoneRatio(t *testing.T) {
	g := config.Defaults()
	g.StartBackend = config.BackendRobinHood
	g.InitialCapacityRH = 256
	g.MaxAvgProbeRobinHood = 1 << 30
	g.MaxTombstoneRatio = 0.1
	g.IncrementalBatch = 16
	m := hybrid.New(g)

	for i := 0; i < 100; i++ {
		m.Put(k(i), v(i))
	}
	for i := 0; i < 40; i++ {
		m.Delete(k(i))
	}
	for i := 100; i < 140; i++ {
		m.Put(k(i), v(i))
	}

	assert.Equal(t, uint64(1), m.Compactions())
	assert.Equal(t, config.BackendRobinHood, m.ActiveBackend())
	for i := 40; i < 140; i++ {
		got, ok := m.Get(k(i))
		require.True(t, ok)
		assert.Equal(t, v(i), got)
	}
	for i := 0; i < 40; i++ {
		_, ok := m.Get(k(i))
		assert.False(t, ok)
	}
}

func TestOneSteadyStateOpBetweenTransitions(t *testing.T) {
	g := config.Defaults()
	g.InitialBuckets = 8
	g.GroupsPerBucket = 2
	g.MaxLFChaining = 0.1
	g.MaxGroupLen = 1 << 30
	g.IncrementalBatch = 1000 // large enough to finish a migration in one step
	m := hybrid.New(g)

	before := m.Migrations()
	m.Put(k(1), v(1))
	m.Put(k(2), v(2))
	after := m.Migrations()
	assert.LessOrEqual(t, after-before, uint64(1))
}

func TestDrainEventsAreConsumedOnce(t *testing.T) {
	g := config.Defaults()
	g.InitialBuckets = 4
	g.GroupsPerBucket = 2
	g.MaxLFChaining = 0.1
	g.MaxGroupLen = 1 << 30
	g.IncrementalBatch = 1000
	m := hybrid.New(g)

	for i := 0; i < 10 && m.Migrations() == 0; i++ {
		m.Put(k(i), v(i))
	}
	events := m.DrainEvents()
	require.NotEmpty(t, events)
	assert.Empty(t, m.DrainEvents())
}

func TestGetDuringInFlightMigrationSeesLatestValue(t *testing.T) {
	g := config.Defaults()
	g.InitialBuckets = 4
	g.GroupsPerBucket = 2
	g.MaxLFChaining = 0.1
	g.MaxGroupLen = 1 << 30
	g.IncrementalBatch = 1 // drains one entry per op, keeping the migration open
	m := hybrid.New(g)

	m.Put(k(1), v(1))
	for i := 0; i < 50 && !m.InTransition(); i++ {
		m.Put(k(i+10), v(i+10))
	}
	require.True(t, m.InTransition())

	m.Put(k(1), []byte("updated"))
	got, ok := m.Get(k(1))
	require.True(t, ok)
	assert.Equal(t, []byte("updated"), got)
}
