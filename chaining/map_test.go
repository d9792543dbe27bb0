package chaining_test

import (
	"fmt"
	"testing"

	"github.com/jguida941/adaptive-hashmap-studio/chaining"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func k(i int) []byte { return []byte(fmt.Sprintf("key-%06d", i)) }
func v(i int) []byte { return []byte(fmt.Sprintf("val-%06d", i)) }

func TestPutGetDelete(t *testing.T) {
	m := chaining.New(chaining.Config{})

	isNew := m.Put(k(1), v(1))
	assert.True(t, isNew)
	assert.Equal(t, 1, m.Size())

	isNew = m.Put(k(1), v(2))
	assert.False(t, isNew)
	val, ok := m.Get(k(1))
	require.True(t, ok)
	assert.Equal(t, v(2), val)

	assert.True(t, m.Delete(k(1)))
	_, ok = m.Get(k(1))
	assert.False(t, ok)
	assert.Equal(t, 0, m.Size())
	assert.False(t, m.Delete(k(1)))
}

func TestSizeEqualsSumOfGroups(t *testing.T) {
	m := chaining.New(chaining.Config{Buckets: 16, GroupsPerBucket: 4})
	const n = 5000
	for i := 0; i < n; i++ {
		m.Put(k(i), v(i))
	}
	assert.Equal(t, n, m.Size())

	count := 0
	m.Items(func(key, val []byte) bool {
		count++
		return false
	})
	assert.Equal(t, n, count)
}

func TestDeleteHalfKeepsRestRetrievable(t *testing.T) {
	m := chaining.New(chaining.Config{})
	const n = 2000
	for i := 0; i < n; i++ {
		m.Put(k(i), v(i))
	}
	for i := 0; i < n; i += 2 {
		assert.True(t, m.Delete(k(i)))
	}
	for i := 1; i < n; i += 2 {
		val, ok := m.Get(k(i))
		require.True(t, ok, "key %d should survive", i)
		assert.Equal(t, v(i), val)
	}
	assert.Equal(t, n/2, m.Size())
}

func TestLoadFactorAndMaxGroupLen(t *testing.T) {
	m := chaining.New(chaining.Config{Buckets: 4, GroupsPerBucket: 2})
	assert.Equal(t, float64(0), m.LoadFactor())
	for i := 0; i < 10; i++ {
		m.Put(k(i), v(i))
	}
	assert.InDelta(t, float64(10)/float64(8), m.LoadFactor(), 1e-9)
	assert.GreaterOrEqual(t, m.MaxGroupLen(), 1)
}

func TestIdempotentPut(t *testing.T) {
	m := chaining.New(chaining.Config{})
	m.Put(k(1), v(1))
	m.Put(k(1), v(1))
	assert.Equal(t, 1, m.Size())
}
