package collective

import (
	"context"
	"fmt"
	"sync"

	"github.com/arloliu/rankalloc/types"
)

type opKind uint8

const (
	opAllGather opKind = iota + 1
	opBroadcast
)

func (o opKind) String() string {
	switch o {
	case opAllGather:
		return "AllGather"
	case opBroadcast:
		return "Broadcast"
	default:
		return "Unknown"
	}
}

// round is one lock-step exchange shared by every member of a Group.
type round struct {
	op      opKind
	root    int
	floats  []float64
	value   int
	arrived int
	err     error
	closed  bool
	done    chan struct{}
}

func newRound(size int) *round {
	return &round{
		floats: make([]float64, size),
		done:   make(chan struct{}),
	}
}

// Group connects n in-process members.
//
// A failed or cancelled round poisons the group: every member blocked in it
// and every later call returns an error.
type Group struct {
	size    int
	members []*Member

	mu      sync.Mutex
	current *round
	err     error
}

// Member is the types.Collective view of one rank of a Group.
type Member struct {
	group *Group
	rank  int
}

var _ types.Collective = (*Member)(nil)

// NewGroup creates a group of n members. n is clamped to at least 1.
//
// Parameters:
//   - n: Number of ranks
//
// Returns:
//   - *Group: Group whose members are obtained with Member or Members
//
// Example:
//
//	g := collective.NewGroup(4)
//	for rank := range 4 {
//	    go runRank(g.Member(rank))
//	}
func NewGroup(n int) *Group {
	if n < 1 {
		n = 1
	}

	g := &Group{
		size:    n,
		current: newRound(n),
	}
	g.members = make([]*Member, n)
	for i := range n {
		g.members[i] = &Member{group: g, rank: i}
	}

	return g
}

// Size returns the number of members.
func (g *Group) Size() int {
	return g.size
}

// Member returns the member of rank. Panics when rank is outside [0, Size()).
func (g *Group) Member(rank int) *Member {
	return g.members[rank]
}

// Members returns every member indexed by rank.
func (g *Group) Members() []*Member {
	out := make([]*Member, len(g.members))
	copy(out, g.members)

	return out
}

// Close aborts the pending round and makes every further call fail with ErrCollectiveClosed.
func (g *Group) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.err == nil {
		g.err = types.ErrCollectiveClosed
	}
	g.abortLocked(g.current, types.ErrCollectiveClosed)
}

func (g *Group) abortLocked(r *round, err error) {
	if g.err == nil {
		g.err = fmt.Errorf("%w: %w", types.ErrCollectiveClosed, err)
	}
	if r.closed {
		return
	}
	r.err = err
	r.closed = true
	close(r.done)
}

// join enters rank into the current round and blocks until it completes.
func (g *Group) join(ctx context.Context, rank int, op opKind, root int, contribute func(r *round)) (*round, error) {
	g.mu.Lock()
	if g.err != nil {
		err := g.err
		g.mu.Unlock()

		return nil, err
	}

	r := g.current
	if r.arrived == 0 {
		r.op = op
		r.root = root
	} else if r.op != op || r.root != root {
		err := fmt.Errorf("rank %d entered %s(root=%d) while round is %s(root=%d): %w",
			rank, op, root, r.op, r.root, types.ErrCollectiveMismatch)
		g.abortLocked(r, err)
		g.mu.Unlock()

		return nil, err
	}

	contribute(r)
	r.arrived++
	if r.arrived == g.size {
		g.current = newRound(g.size)
		r.closed = true
		close(r.done)
		g.mu.Unlock()

		return r, nil
	}
	g.mu.Unlock()

	select {
	case <-r.done:
	case <-ctx.Done():
		g.mu.Lock()
		if !r.closed {
			g.abortLocked(r, fmt.Errorf("rank %d left %s: %w", rank, op, ctx.Err()))
		}
		g.mu.Unlock()
	}

	if r.err != nil {
		return nil, r.err
	}

	return r, nil
}

// Rank returns the rank of this member.
func (m *Member) Rank() int {
	return m.rank
}

// Size returns the number of members in the group.
func (m *Member) Size() int {
	return m.group.size
}

// AllGather contributes value and returns every member's contribution indexed by rank.
func (m *Member) AllGather(ctx context.Context, value float64) ([]float64, error) {
	r, err := m.group.join(ctx, m.rank, opAllGather, -1, func(r *round) {
		r.floats[m.rank] = value
	})
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(r.floats))
	copy(out, r.floats)

	return out, nil
}

// Broadcast returns root's value on every member.
func (m *Member) Broadcast(ctx context.Context, value int, root int) (int, error) {
	if root < 0 || root >= m.group.size {
		return 0, fmt.Errorf("broadcast root %d of size %d: %w", root, m.group.size, types.ErrRankOutOfRange)
	}

	r, err := m.group.join(ctx, m.rank, opBroadcast, root, func(r *round) {
		if m.rank == root {
			r.value = value
		}
	})
	if err != nil {
		return 0, err
	}

	return r.value, nil
}
