// Package collective provides implementations of types.Collective.
//
// Three flavors are shipped:
//
//   - Group: in-process members, one goroutine per rank. Used by tests and
//     by single-process simulations.
//   - Local: a single-rank collective for hosts that run without peers.
//   - NATS: ranks in separate processes exchanging JSON envelopes over a core
//     NATS subject.
//
// Every rank must call the operations in the same order. Group and NATS
// detect diverging calls and report ErrCollectiveMismatch on every rank that
// observes it.
package collective
