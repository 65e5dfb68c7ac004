package testing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RunRanks runs fn once per rank, each on its own goroutine, and waits for all.
//
// The first failing rank cancels the context passed to the others, so ranks
// blocked in a collective waiting for the failed one are released.
//
// Parameters:
//   - ctx: Parent context
//   - nrank: Number of ranks to run
//   - fn: Per-rank body
//
// Returns:
//   - error: First error returned by any rank, tagged with its rank
//
// Example:
//
//	g := collective.NewGroup(4)
//	err := ratest.RunRanks(ctx, 4, func(ctx context.Context, rank int) error {
//	    return runCycles(ctx, g.Member(rank))
//	})
func RunRanks(ctx context.Context, nrank int, fn func(ctx context.Context, rank int) error) error {
	g, gctx := errgroup.WithContext(ctx)

	for rank := range nrank {
		g.Go(func() error {
			if err := fn(gctx, rank); err != nil {
				return fmt.Errorf("rank %d: %w", rank, err)
			}

			return nil
		})
	}

	return g.Wait()
}

// SessionPrefix returns a subject prefix unique to one computation.
//
// Ranks of the same computation must share it; distinct runs on the same NATS
// server must not.
//
// Returns:
//   - string: "rankalloc.<uuid>"
func SessionPrefix() string {
	return "rankalloc." + uuid.NewString()
}
