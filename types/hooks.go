package types

// Hooks defines callbacks for allocator lifecycle events.
//
// All hooks are optional. Unlike dependents they carry no consistency duty:
// they run synchronously on the goroutine driving Update, so they must
// complete quickly and must not call back into the allocator.
//
// Example:
//
//	hooks := &rankalloc.Hooks{
//	    OnStateChanged: func(from, to rankalloc.State, reason string) {
//	        log.Printf("balancing %s -> %s (%s)", from, to, reason)
//	    },
//	}
type Hooks struct {
	// OnStateChanged is called when balancing is activated or deactivated.
	// reason is one of "activate", "request", "tolerance", "structural_limit".
	OnStateChanged func(from, to State, reason string)

	// OnRound is called after every scheduled round with its outcome
	// (one of the Round* constants) and the gathered per-rank work times.
	OnRound func(cycle uint64, outcome string, gathered []float64)
}
