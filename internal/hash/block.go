// Package hash maps record keys onto the fixed block partition of the key space.
package hash

import (
	"github.com/zeebo/xxh3"

	"github.com/arloliu/rankalloc/types"
)

// BlockHasher maps keys to blocks with a seeded xxh3 64-bit hash.
//
// The mapping only depends on the key bytes, the seed and nblock, so every
// rank constructing a BlockHasher with the same arguments agrees on it.
type BlockHasher struct {
	nblock uint64
	seed   uint64
}

// Compile-time assertion that BlockHasher implements StringBlockMapper.
var _ types.StringBlockMapper = (*BlockHasher)(nil)

// NewBlockHasher creates a key to block mapper.
//
// Parameters:
//   - nblock: Number of blocks (values < 1 are treated as 1)
//   - seed: Hash seed (0 means unseeded xxh3)
//
// Returns:
//   - *BlockHasher: Initialized mapper
//
// Example:
//
//	h := hash.NewBlockHasher(64, 0)
//	block := h.BlockOf([]byte("walker-17"))
func NewBlockHasher(nblock int, seed uint64) *BlockHasher {
	if nblock < 1 {
		nblock = 1
	}

	return &BlockHasher{nblock: uint64(nblock), seed: seed}
}

// NBlock returns the number of blocks.
func (h *BlockHasher) NBlock() int {
	return int(h.nblock) //nolint:gosec // constructed from an int
}

// Hash returns the raw 64-bit hash of key.
func (h *BlockHasher) Hash(key []byte) uint64 {
	if h.seed != 0 {
		return xxh3.HashSeed(key, h.seed)
	}

	return xxh3.Hash(key)
}

// BlockOf returns the block owning key.
func (h *BlockHasher) BlockOf(key []byte) int {
	return int(h.Hash(key) % h.nblock) //nolint:gosec // result < nblock
}

// BlockOfString is BlockOf for string keys without an intermediate copy.
func (h *BlockHasher) BlockOfString(key string) int {
	var sum uint64
	if h.seed != 0 {
		sum = xxh3.HashStringSeed(key, h.seed)
	} else {
		sum = xxh3.HashString(key)
	}

	return int(sum % h.nblock) //nolint:gosec // result < nblock
}
