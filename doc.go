// Package rankalloc provides a dynamic rank allocator for SPMD computations.
//
// The key space is partitioned into a fixed number of blocks. Every rank
// (participating process) owns a subset of the blocks, starting from a
// round-robin placement. While balancing is active, the host reports the time
// spent on each block and calls Update once per cycle; on every scheduled
// cycle the ranks gather their work totals, agree on the busiest and laziest
// rank, and move one block between them.
//
// Every rank reaches the same decision from collectively visible data only,
// so the routing tables stay identical on every rank without a coordinator.
//
// # Quick Start
//
//	cfg := rankalloc.DefaultConfig()
//	cfg.Name = "walkers"
//	cfg.Period = 10
//
//	ra, err := rankalloc.NewAllocator(&cfg, comm, transport)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ra.Activate(0)
//
//	for cycle := uint64(1); cycle <= ncycle; cycle++ {
//	    for _, w := range localWalkers {
//	        start := time.Now()
//	        w.Step()
//	        ra.RecordWorkKey(w.Key(), time.Since(start))
//	    }
//	    if err := ra.Update(ctx, cycle); err != nil {
//	        log.Fatal(err) // every rank must abort
//	    }
//	}
//
// # Collaborators
//
//   - Collective: lock-step AllGather and Broadcast (package collective ships
//     an in-process group, a single-rank collective and a NATS collective)
//   - TransportAdapter: enumerates a block's rows and moves them (package rows
//     ships an in-memory table with in-process and NATS transports)
//   - Dependent: structures keyed by row ownership, notified around each
//     migration (package dependent ships a key index and a routing publisher)
//
// # Decision Round
//
// On a scheduled cycle every rank:
//
//	gather totals → pick busiest/laziest → tolerance check → sender picks a block
//	→ broadcast ordinal → Before → rows move → After → routing update
//
// The round ends early, without migrating, when the busiest rank owns a single
// block (balancing is switched off), when the imbalance is within
// AcceptableImbalance (a null update; balancing is switched off after
// NNullUpdatesDeactivate of them in a row), or when every rank reported the
// same total.
//
// Any error returned by Update means ranks may disagree on routing; the host
// must abort the whole computation.
//
// See the examples/ directory for complete working examples.
package rankalloc
