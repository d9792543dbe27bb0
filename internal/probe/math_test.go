package probe_test

import (
	"testing"

	"github.com/jguida941/adaptive-hashmap-studio/internal/probe"
	"github.com/stretchr/testify/assert"
)

func TestNextPowerOfTwo(t *testing.T) {
	assert.Equal(t, uint64(1), probe.NextPowerOf2(0))
	assert.Equal(t, uint64(1), probe.NextPowerOf2(1))
	assert.Equal(t, uint64(2), probe.NextPowerOf2(2))
	assert.Equal(t, uint64(4), probe.NextPowerOf2(3))
	assert.Equal(t, uint64(4), probe.NextPowerOf2(4))
	assert.Equal(t, uint64(8), probe.NextPowerOf2(5))
	assert.Equal(t, uint64(8), probe.NextPowerOf2(7))
	assert.Equal(t, uint64(8), probe.NextPowerOf2(8))
	assert.Equal(t, uint64(1024), probe.NextPowerOf2(1000))
	assert.Equal(t, uint64(2048), probe.NextPowerOf2(2000))
}

func TestDistanceWraps(t *testing.T) {
	assert.Equal(t, uint64(3), probe.Distance(3, 0, 16))
	assert.Equal(t, uint64(1), probe.Distance(0, 15, 16))
	assert.Equal(t, uint64(0), probe.Distance(5, 5, 16))
}

func TestHashDeterministic(t *testing.T) {
	a := probe.Xxhash([]byte("adaptive-hashmap"))
	b := probe.Xxhash([]byte("adaptive-hashmap"))
	assert.Equal(t, a, b)

	f1 := probe.FNV1a([]byte("adaptive-hashmap"))
	f2 := probe.FNV1a([]byte("adaptive-hashmap"))
	assert.Equal(t, f1, f2)
}
