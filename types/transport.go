package types

import "context"

// BlockMapper maps a record key to its block id.
type BlockMapper interface {
	// BlockOf returns the block id in [0, nblock) owning key.
	BlockOf(key []byte) int
}

// StringBlockMapper is implemented by mappers that hash string keys without
// converting them to a byte slice first.
type StringBlockMapper interface {
	BlockMapper

	// BlockOfString returns the same block as BlockOf([]byte(key)).
	BlockOfString(key string) int
}

// TransportAdapter enumerates the rows of a block and moves them between ranks.
//
// Transfer is called on every rank with identical from/to arguments. Only the
// sending and receiving ranks do any work; the others return immediately.
type TransportAdapter interface {
	// BlockRows returns the local indices of live rows mapped to block.
	//
	// Cleared slots are never returned. Ranks that hold no rows of the block
	// return an empty slice.
	BlockRows(block int) []int

	// Transfer moves rows from rank from to rank to.
	//
	// Parameters:
	//   - ctx: Context for cancellation of the blocking exchange
	//   - rows: Sender-local row indices (ignored on other ranks)
	//   - from: Sending rank
	//   - to: Receiving rank
	//   - onRow: Invoked on the receiver with the new local index of each landed row
	//
	// Returns:
	//   - error: Transport failure; ranks may have diverged and must abort
	Transfer(ctx context.Context, rows []int, from, to int, onRow func(newIndex int)) error
}
