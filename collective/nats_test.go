package collective

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	ratest "github.com/arloliu/rankalloc/testing"
	"github.com/arloliu/rankalloc/types"
)

func newNATSRanks(t *testing.T, nc *nats.Conn, prefix string, n int) []*NATS {
	t.Helper()

	out := make([]*NATS, n)
	for rank := range n {
		c, err := NewNATS(nc, NATSConfig{
			Prefix: prefix,
			Rank:   rank,
			Size:   n,
			Logger: ratest.NewRankLogger(t, rank),
		})
		require.NoError(t, err)
		out[rank] = c
	}
	t.Cleanup(func() {
		for _, c := range out {
			_ = c.Close()
		}
	})

	return out
}

func TestNewNATS_Validation(t *testing.T) {
	_, nc := ratest.StartEmbeddedNATS(t)

	_, err := NewNATS(nil, NATSConfig{Prefix: "p", Size: 1})
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = NewNATS(nc, NATSConfig{Size: 1})
	require.ErrorIs(t, err, types.ErrInvalidConfig)

	_, err = NewNATS(nc, NATSConfig{Prefix: "p", Rank: 2, Size: 2})
	require.ErrorIs(t, err, types.ErrRankOutOfRange)
}

func TestNATS_Collectives(t *testing.T) {
	_, nc := ratest.StartEmbeddedNATS(t)

	const n = 3
	ranks := newNATSRanks(t, nc, ratest.SessionPrefix(), n)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	gathered := make([][]float64, n)
	broadcast := make([]int, n)

	err := ratest.RunRanks(ctx, n, func(ctx context.Context, rank int) error {
		c := ranks[rank]
		if err := c.WaitReady(ctx); err != nil {
			return err
		}

		var err error
		for round := range 5 {
			gathered[rank], err = c.AllGather(ctx, float64(rank*10+round))
			if err != nil {
				return err
			}
			broadcast[rank], err = c.Broadcast(ctx, rank*100+round, round%n)
			if err != nil {
				return err
			}
		}

		return nil
	})
	require.NoError(t, err)

	for rank := range n {
		require.Equal(t, []float64{4, 14, 24}, gathered[rank])
		// Last round broadcasts from rank 4%3 == 1.
		require.Equal(t, 104, broadcast[rank])
		require.Zero(t, ranks[rank].Pending())
	}
}

func TestNATS_AbandonedRoundIsForgotten(t *testing.T) {
	_, nc := ratest.StartEmbeddedNATS(t)
	ranks := newNATSRanks(t, nc, ratest.SessionPrefix(), 2)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()
	err := ratest.RunRanks(ctx, 2, func(ctx context.Context, rank int) error {
		return ranks[rank].WaitReady(ctx)
	})
	require.NoError(t, err)

	// Rank 0 gives up on call #1 before rank 1 joins it.
	short, stop := context.WithTimeout(ctx, 50*time.Millisecond)
	_, err = ranks[0].AllGather(short, 1)
	stop()
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Zero(t, ranks[0].Pending())

	// Rank 1 still completes #1 from the buffered envelope of rank 0, and its
	// late envelope must not be buffered again on rank 0.
	out, err := ranks[1].AllGather(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2}, out)
	require.NoError(t, nc.Flush())

	require.Never(t, func() bool {
		return ranks[0].Pending() != 0 || ranks[1].Pending() != 0
	}, 200*time.Millisecond, 10*time.Millisecond)
}

func TestNATS_Mismatch(t *testing.T) {
	_, nc := ratest.StartEmbeddedNATS(t)
	ranks := newNATSRanks(t, nc, "test.mismatch", 2)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	errs := make([]error, 2)
	_ = ratest.RunRanks(ctx, 2, func(ctx context.Context, rank int) error {
		c := ranks[rank]
		if err := c.WaitReady(ctx); err != nil {
			return err
		}
		if rank == 0 {
			_, errs[rank] = c.AllGather(ctx, 1)
		} else {
			_, errs[rank] = c.Broadcast(ctx, 1, 0)
		}

		return nil
	})

	require.ErrorIs(t, errs[0], types.ErrCollectiveMismatch)
	require.ErrorIs(t, errs[1], types.ErrCollectiveMismatch)
}

func TestNATS_SingleRank(t *testing.T) {
	_, nc := ratest.StartEmbeddedNATS(t)
	c := newNATSRanks(t, nc, "test.single", 1)[0]

	require.NoError(t, c.WaitReady(t.Context()))

	out, err := c.AllGather(t.Context(), 3)
	require.NoError(t, err)
	require.Equal(t, []float64{3}, out)
}

func TestNATS_Close(t *testing.T) {
	_, nc := ratest.StartEmbeddedNATS(t)
	c := newNATSRanks(t, nc, "test.close", 2)[0]

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.AllGather(t.Context(), 1)
	require.ErrorIs(t, err, types.ErrCollectiveClosed)
}
