package types

import "context"

// Collective provides the lock-step operations every rank must invoke in the
// same order for a rebalancing round to complete.
//
// Implementations block until every participant of the round has arrived.
// Calling the operations in a different order on different ranks is a host bug;
// implementations should detect it where they can and return ErrCollectiveMismatch.
type Collective interface {
	// Rank returns the index of this participant in [0, Size()).
	Rank() int

	// Size returns the number of participating ranks.
	Size() int

	// AllGather contributes value and returns every rank's contribution indexed by rank.
	AllGather(ctx context.Context, value float64) ([]float64, error)

	// Broadcast returns root's value on every rank. Non-root values are ignored.
	Broadcast(ctx context.Context, value int, root int) (int, error)
}
