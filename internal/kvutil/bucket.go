// Package kvutil provides utilities for working with NATS JetStream KeyValue stores.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// DefaultRoutingHistory is the number of routing snapshots kept per key.
const DefaultRoutingHistory = 8

// RoutingBucketConfig returns the KV configuration used for routing snapshots.
//
// Snapshots never expire; History keeps the last few migrations inspectable
// with `nats kv history`.
//
// Parameters:
//   - bucket: Bucket name
//   - history: Revisions kept per key (DefaultRoutingHistory if <= 0)
//
// Returns:
//   - jetstream.KeyValueConfig: Bucket configuration
func RoutingBucketConfig(bucket string, history int) jetstream.KeyValueConfig {
	if history <= 0 {
		history = DefaultRoutingHistory
	}
	if history > jetstream.KeyValueMaxHistory {
		history = jetstream.KeyValueMaxHistory
	}

	return jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "rankalloc routing snapshots",
		History:     uint8(history), //nolint:gosec // bounded by KeyValueMaxHistory above
	}
}

// EnsureBucket creates or opens a KV bucket with retry logic.
//
// Every rank may call this concurrently for the same bucket. Losing the
// creation race is handled by opening the existing bucket, and transient
// failures are retried with exponential backoff.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - config: KV bucket configuration
//   - maxRetries: Maximum number of attempts (3 if <= 0)
//
// Returns:
//   - jetstream.KeyValue: The KV bucket instance
//   - error: Last error after all attempts, or the context error
//
// Example:
//
//	kv, err := kvutil.EnsureBucket(ctx, js, kvutil.RoutingBucketConfig("rankalloc-routing", 0), 3)
func EnsureBucket(
	ctx context.Context,
	js jetstream.JetStream,
	config jetstream.KeyValueConfig,
	maxRetries int,
) (jetstream.KeyValue, error) {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error

	for attempt := range maxRetries {
		kv, err := js.CreateKeyValue(ctx, config)
		if err == nil {
			return kv, nil
		}

		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, err := js.KeyValue(ctx, config.Bucket)
			if err == nil {
				return kv, nil
			}
			lastErr = fmt.Errorf("bucket exists but failed to open: %w", err)
		} else {
			lastErr = err
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("context cancelled during KV bucket creation: %w", ctx.Err())
		}

		// 10ms, 20ms, 40ms...
		if attempt < maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * 10 * time.Millisecond //nolint:gosec // attempt is bounded by maxRetries
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("failed to create/open KV bucket %s after %d attempts: %w",
		config.Bucket, maxRetries, lastErr)
}
