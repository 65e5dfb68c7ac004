package hash

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockHasher_Deterministic(t *testing.T) {
	a := NewBlockHasher(16, 42)
	b := NewBlockHasher(16, 42)

	for i := range 100 {
		key := []byte(fmt.Sprintf("key-%d", i))
		require.Equal(t, a.BlockOf(key), b.BlockOf(key), "key %s", key)
		require.Equal(t, a.BlockOf(key), a.BlockOfString(string(key)))
	}
}

func TestBlockHasher_Range(t *testing.T) {
	h := NewBlockHasher(7, 0)
	require.Equal(t, 7, h.NBlock())

	for i := range 1000 {
		block := h.BlockOfString(fmt.Sprintf("row-%d", i))
		require.GreaterOrEqual(t, block, 0)
		require.Less(t, block, 7)
	}
}

func TestBlockHasher_Distribution(t *testing.T) {
	const nblock = 8
	h := NewBlockHasher(nblock, 0)

	counts := make([]int, nblock)
	for i := range 8000 {
		counts[h.BlockOfString(fmt.Sprintf("walker-%d", i))]++
	}

	// Each block should get roughly 1/8 of keys (allow 20% variance)
	for block, count := range counts {
		require.InDelta(t, 1000, count, 200, "block %d", block)
	}
}

func TestBlockHasher_SeedChangesMapping(t *testing.T) {
	a := NewBlockHasher(1024, 1)
	b := NewBlockHasher(1024, 2)

	differ := 0
	for i := range 100 {
		key := []byte(fmt.Sprintf("key-%d", i))
		if a.BlockOf(key) != b.BlockOf(key) {
			differ++
		}
	}
	require.Greater(t, differ, 50)
}

func TestBlockHasher_ClampsNBlock(t *testing.T) {
	h := NewBlockHasher(0, 0)
	require.Equal(t, 1, h.NBlock())
	require.Equal(t, 0, h.BlockOf([]byte("anything")))
}
