// Package workmeter accumulates per-block work time for one rebalancing window.
package workmeter

import (
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// Meter holds one striped counter of nanoseconds per block.
//
// Record is safe to call from any goroutine of the rank. Reset and the
// readers are called by the goroutine driving Update.
type Meter struct {
	counters []*xsync.Counter
}

// New creates a meter for nblock blocks.
func New(nblock int) *Meter {
	counters := make([]*xsync.Counter, nblock)
	for i := range counters {
		counters[i] = xsync.NewCounter()
	}

	return &Meter{counters: counters}
}

// Len returns the number of blocks tracked.
func (m *Meter) Len() int {
	return len(m.counters)
}

// Record adds elapsed to block. Out-of-range blocks are rejected.
//
// Returns:
//   - bool: false if block is outside [0, Len())
func (m *Meter) Record(block int, elapsed time.Duration) bool {
	if block < 0 || block >= len(m.counters) {
		return false
	}
	m.counters[block].Add(int64(elapsed))

	return true
}

// Seconds returns the accumulated work time of block in seconds.
func (m *Meter) Seconds(block int) float64 {
	return time.Duration(m.counters[block].Value()).Seconds()
}

// Snapshot returns the accumulated work time of every block in seconds.
func (m *Meter) Snapshot() []float64 {
	out := make([]float64, len(m.counters))
	for i, c := range m.counters {
		out[i] = time.Duration(c.Value()).Seconds()
	}

	return out
}

// Sum returns the total work time over the given blocks in seconds.
func (m *Meter) Sum(blocks []int) float64 {
	var total time.Duration
	for _, b := range blocks {
		total += time.Duration(m.counters[b].Value())
	}

	return total.Seconds()
}

// Reset zeroes every counter for the next window.
func (m *Meter) Reset() {
	for _, c := range m.counters {
		c.Reset()
	}
}
