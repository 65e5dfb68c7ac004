// Package testing provides test utilities for the rankalloc library.
//
// This package offers helpers for setting up test environments: embedded NATS
// servers for the NATS-backed collective, transport and routing publisher, and
// an SPMD runner that drives one goroutine per rank. It follows Go's convention
// of providing testing utilities in a dedicated package (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - ConnectRanks: One named NATS connection per rank
//   - CreateJetStreamKV: Convenience wrapper for KV bucket creation
//   - RunRanks: Run a function on every rank concurrently and collect errors
//   - SessionPrefix: Unique subject prefix for one computation
//   - NewTestLogger: Logger writing through testing.TB
//
// Example usage:
//
//	import (
//	    "testing"
//	    ratest "github.com/arloliu/rankalloc/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := ratest.StartEmbeddedNATS(t)
//	    // Use nc for your tests
//	}
package testing
