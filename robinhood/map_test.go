package robinhood_test

import (
	"fmt"
	"testing"

	"github.com/jguida941/adaptive-hashmap-studio/internal/probe"
	"github.com/jguida941/adaptive-hashmap-studio/robinhood"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func k(i int) []byte { return []byte(fmt.Sprintf("key-%06d", i)) }
func v(i int) []byte { return []byte(fmt.Sprintf("val-%06d", i)) }

func TestPutGetDelete(t *testing.T) {
	m := robinhood.New(robinhood.Config{})

	assert.True(t, m.Put(k(1), v(1)))
	assert.False(t, m.Put(k(1), v(2)))

	val, ok := m.Get(k(1))
	require.True(t, ok)
	assert.Equal(t, v(2), val)

	assert.True(t, m.Delete(k(1)))
	_, ok = m.Get(k(1))
	assert.False(t, ok)
	assert.Equal(t, 1, m.Tombstones())
	assert.NoError(t, m.CheckInvariants())
}

func TestManyInsertsPreserveInvariants(t *testing.T) {
	m := robinhood.New(robinhood.Config{InitialCapacity: 16})
	const n = 20000
	for i := 0; i < n; i++ {
		m.Put(k(i), v(i))
		require.NoError(t, m.CheckInvariants(), "after insert %d", i)
	}
	assert.Equal(t, n, m.Size())

	for i := 0; i < n; i++ {
		val, ok := m.Get(k(i))
		require.True(t, ok)
		assert.Equal(t, v(i), val)
	}
}

func TestDeleteThenCompactDropsTombstones(t *testing.T) {
	m := robinhood.New(robinhood.Config{InitialCapacity: 64})
	const n = 500
	for i := 0; i < n; i++ {
		m.Put(k(i), v(i))
	}
	for i := 0; i < n; i += 2 {
		m.Delete(k(i))
	}
	assert.Positive(t, m.Tombstones())

	m.Compact()
	assert.Equal(t, 0, m.Tombstones())
	assert.Equal(t, n/2, m.Size())
	assert.NoError(t, m.CheckInvariants())

	for i := 1; i < n; i += 2 {
		val, ok := m.Get(k(i))
		require.True(t, ok)
		assert.Equal(t, v(i), val)
	}
}

func TestCompactIsIdempotent(t *testing.T) {
	m := robinhood.New(robinhood.Config{InitialCapacity: 32})
	for i := 0; i < 200; i++ {
		m.Put(k(i), v(i))
	}
	for i := 0; i < 200; i += 3 {
		m.Delete(k(i))
	}
	m.Compact()
	sizeAfterFirst := m.Size()
	tombAfterFirst := m.Tombstones()

	m.Compact()
	assert.Equal(t, sizeAfterFirst, m.Size())
	assert.Equal(t, tombAfterFirst, m.Tombstones())
	assert.Equal(t, 0, m.Tombstones())
}

func TestAdversarialLowBitCollisionsPreserveInvariants(t *testing.T) {
	m := robinhood.New(robinhood.Config{InitialCapacity: 64})
	// All keys share the low 10 bits of their hash under the default hasher:
	// candidates are kept only when those bits are zero, the same rejection
	// sampling the workload generator uses for its adversarial key family.
	const mask = uint64(1)<<10 - 1
	for i, inserted := 0, 0; inserted < 5000; i++ {
		key := []byte(fmt.Sprintf("ADV-COLLISION-FAMILY-%d", i))
		if probe.Xxhash(key)&mask != 0 {
			continue
		}
		m.Put(key, v(inserted))
		require.NoError(t, m.CheckInvariants(), "after adversarial insert %d", inserted)
		inserted++
	}
}

func TestIdempotentPut(t *testing.T) {
	m := robinhood.New(robinhood.Config{})
	m.Put(k(1), v(1))
	m.Put(k(1), v(1))
	assert.Equal(t, 1, m.Size())
}

func TestLoadFactorNeverExceedsHighWater(t *testing.T) {
	m := robinhood.New(robinhood.Config{InitialCapacity: 8})
	for i := 0; i < 1000; i++ {
		m.Put(k(i), v(i))
		assert.LessOrEqual(t, m.LoadFactor(), 0.85)
	}
}
