package kvutil

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	ratest "github.com/arloliu/rankalloc/testing"
)

func TestRoutingBucketConfig(t *testing.T) {
	cfg := RoutingBucketConfig("routing", 0)
	require.Equal(t, "routing", cfg.Bucket)
	require.Equal(t, uint8(DefaultRoutingHistory), cfg.History)
	require.Zero(t, cfg.TTL)

	cfg = RoutingBucketConfig("routing", 1000)
	require.Equal(t, uint8(jetstream.KeyValueMaxHistory), cfg.History)
}

func TestEnsureBucket(t *testing.T) {
	_, nc := ratest.StartEmbeddedNATS(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	t.Run("creates missing bucket", func(t *testing.T) {
		kv, err := EnsureBucket(ctx, js, RoutingBucketConfig("routing-create", 0), 3)
		require.NoError(t, err)
		require.Equal(t, "routing-create", kv.Bucket())
	})

	t.Run("opens existing bucket", func(t *testing.T) {
		cfg := RoutingBucketConfig("routing-existing", 2)
		first, err := js.CreateKeyValue(ctx, cfg)
		require.NoError(t, err)
		_, err = first.Put(ctx, "k", []byte("v"))
		require.NoError(t, err)

		kv, err := EnsureBucket(ctx, js, cfg, 3)
		require.NoError(t, err)
		entry, err := kv.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, []byte("v"), entry.Value())
	})

	t.Run("every rank racing on the same bucket succeeds", func(t *testing.T) {
		cfg := RoutingBucketConfig("routing-race", 0)

		var g errgroup.Group
		for range 8 {
			g.Go(func() error {
				_, err := EnsureBucket(ctx, js, cfg, 5)
				return err
			})
		}
		require.NoError(t, g.Wait())
	})

	t.Run("cancelled context fails", func(t *testing.T) {
		cctx, ccancel := context.WithCancel(ctx)
		ccancel()

		_, err := EnsureBucket(cctx, js, RoutingBucketConfig("routing-cancelled", 0), 3)
		require.Error(t, err)
	})
}
