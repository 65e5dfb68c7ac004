// Package routing holds the block<->rank routing tables of an allocator.
package routing

import (
	"fmt"
	"slices"

	"github.com/arloliu/rankalloc/types"
)

// Table is the pair of mappings block->rank and rank->ordered blocks.
//
// Table is not safe for concurrent use; the allocator guards it.
type Table struct {
	blockToRank  []int
	rankToBlocks [][]int
}

// NewRoundRobin creates a table with block b placed on rank b mod nrank.
//
// Each rank's block list is in ascending block order.
//
// Parameters:
//   - nblock: Number of blocks (>= 1)
//   - nrank: Number of ranks (>= 1)
//
// Returns:
//   - *Table: Consistent routing table
func NewRoundRobin(nblock, nrank int) *Table {
	t := &Table{
		blockToRank:  make([]int, nblock),
		rankToBlocks: make([][]int, nrank),
	}
	for b := range nblock {
		r := b % nrank
		t.blockToRank[b] = r
		t.rankToBlocks[r] = append(t.rankToBlocks[r], b)
	}

	return t
}

// NBlock returns the number of blocks.
func (t *Table) NBlock() int {
	return len(t.blockToRank)
}

// NRank returns the number of ranks.
func (t *Table) NRank() int {
	return len(t.rankToBlocks)
}

// RankOf returns the owner of block.
func (t *Table) RankOf(block int) int {
	return t.blockToRank[block]
}

// Blocks returns the ordered block list of rank. The slice must not be modified.
func (t *Table) Blocks(rank int) []int {
	return t.rankToBlocks[rank]
}

// Count returns the number of blocks owned by rank.
func (t *Table) Count(rank int) int {
	return len(t.rankToBlocks[rank])
}

// BlockAt returns the block at ordinal position in rank's list.
//
// Returns:
//   - int: Block id
//   - bool: false if ordinal is outside the list
func (t *Table) BlockAt(rank, ordinal int) (int, bool) {
	list := t.rankToBlocks[rank]
	if ordinal < 0 || ordinal >= len(list) {
		return 0, false
	}

	return list[ordinal], true
}

// Move reassigns block from its current owner to rank to.
//
// The sender's list is rebuilt rather than edited in place so that slices
// previously returned by Blocks stay valid. The block is appended to the end
// of the receiver's list.
//
// Returns:
//   - error: ErrRankOutOfRange for an invalid rank or block
func (t *Table) Move(block, to int) error {
	if block < 0 || block >= len(t.blockToRank) {
		return fmt.Errorf("block %d outside [0, %d): %w", block, len(t.blockToRank), types.ErrRankOutOfRange)
	}
	if to < 0 || to >= len(t.rankToBlocks) {
		return fmt.Errorf("rank %d outside [0, %d): %w", to, len(t.rankToBlocks), types.ErrRankOutOfRange)
	}

	from := t.blockToRank[block]
	if from == to {
		return nil
	}

	src := t.rankToBlocks[from]
	kept := make([]int, 0, len(src))
	for _, b := range src {
		if b != block {
			kept = append(kept, b)
		}
	}
	t.rankToBlocks[from] = kept
	t.rankToBlocks[to] = append(slices.Clip(t.rankToBlocks[to]), block)
	t.blockToRank[block] = to

	return nil
}

// Validate checks that the two mappings form a bijection covering every block.
//
// Returns:
//   - error: ErrInconsistentRouting describing the first disagreement found
func (t *Table) Validate() error {
	seen := make([]bool, len(t.blockToRank))
	total := 0
	for r, list := range t.rankToBlocks {
		for _, b := range list {
			if b < 0 || b >= len(t.blockToRank) {
				return fmt.Errorf("rank %d lists unknown block %d: %w", r, b, types.ErrInconsistentRouting)
			}
			if seen[b] {
				return fmt.Errorf("block %d listed more than once: %w", b, types.ErrInconsistentRouting)
			}
			seen[b] = true
			if t.blockToRank[b] != r {
				return fmt.Errorf("block %d listed on rank %d but mapped to rank %d: %w",
					b, r, t.blockToRank[b], types.ErrInconsistentRouting)
			}
			total++
		}
	}
	if total != len(t.blockToRank) {
		return fmt.Errorf("%d of %d blocks listed: %w", total, len(t.blockToRank), types.ErrInconsistentRouting)
	}

	return nil
}

// BlockToRank returns a copy of the block->rank mapping.
func (t *Table) BlockToRank() []int {
	return slices.Clone(t.blockToRank)
}

// RankToBlocks returns a deep copy of the rank->blocks mapping.
func (t *Table) RankToBlocks() [][]int {
	out := make([][]int, len(t.rankToBlocks))
	for r, list := range t.rankToBlocks {
		out[r] = slices.Clone(list)
	}

	return out
}
