package testing

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
)

func TestStartEmbeddedNATS(t *testing.T) {
	ns, nc := StartEmbeddedNATS(t)

	require.NotNil(t, ns)
	require.NotNil(t, nc)
	require.True(t, nc.IsConnected())

	// Verify server is running
	require.True(t, ns.ReadyForConnections(1*time.Second))

	// Verify JetStream is enabled
	js, err := jetstream.New(nc)
	require.NoError(t, err)
	_, err = js.AccountInfo(t.Context())
	require.NoError(t, err)
}

// TestStartEmbeddedNATS_ParallelTests verifies parallel test execution.
func TestStartEmbeddedNATS_ParallelTests(t *testing.T) {
	t.Parallel()

	// Run multiple tests in parallel to verify no port conflicts
	for range 3 {
		t.Run("parallel", func(t *testing.T) {
			t.Parallel()

			_, nc := StartEmbeddedNATS(t)
			require.NotNil(t, nc)
			require.True(t, nc.IsConnected())
		})
	}
}

func TestConnectRanks(t *testing.T) {
	ns, _ := StartEmbeddedNATS(t)
	conns := ConnectRanks(t, ns, 3)

	require.Len(t, conns, 3)
	for rank, nc := range conns {
		require.True(t, nc.IsConnected())
		require.Equal(t, fmt.Sprintf("rankalloc-rank-%d", rank), nc.Opts.Name)
	}

	// A message published on one rank's connection reaches another's.
	sub, err := conns[2].SubscribeSync("ranks.hello")
	require.NoError(t, err)
	require.NoError(t, conns[2].Flush())
	require.NoError(t, conns[0].Publish("ranks.hello", []byte("from 0")))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	require.Equal(t, []byte("from 0"), msg.Data)
}

func TestCreateJetStreamKV(t *testing.T) {
	_, nc := StartEmbeddedNATS(t)
	kv := CreateJetStreamKV(t, nc, "test-bucket")

	_, err := kv.Put(t.Context(), "k", []byte("v"))
	require.NoError(t, err)

	entry, err := kv.Get(t.Context(), "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), entry.Value())
}

func TestRunRanks(t *testing.T) {
	t.Run("runs every rank", func(t *testing.T) {
		var seen atomic.Int64
		err := RunRanks(t.Context(), 4, func(_ context.Context, rank int) error {
			seen.Add(int64(1) << rank)
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, int64(0b1111), seen.Load())
	})

	t.Run("first failure cancels the others", func(t *testing.T) {
		boom := errors.New("boom")
		err := RunRanks(t.Context(), 3, func(ctx context.Context, rank int) error {
			if rank == 1 {
				return boom
			}
			<-ctx.Done()

			return ctx.Err()
		})
		require.ErrorIs(t, err, boom)
		require.Contains(t, err.Error(), "rank 1")
	})
}

func TestSessionPrefix(t *testing.T) {
	a, b := SessionPrefix(), SessionPrefix()
	require.NotEqual(t, a, b)
	require.Regexp(t, `^rankalloc\.[0-9a-f-]{36}$`, a)
}
