package rankalloc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/rankalloc/collective"
	"github.com/arloliu/rankalloc/internal/hash"
	"github.com/arloliu/rankalloc/rows"
	ratest "github.com/arloliu/rankalloc/testing"
)

// testRank bundles one rank of an in-process cluster.
type testRank struct {
	alloc    *Allocator
	table    *rows.Table
	endpoint *rows.Endpoint
	events   *eventLog
}

// eventLog records hook callbacks of one rank.
type eventLog struct {
	mu       sync.Mutex
	outcomes []string
	gathered [][]float64
	reasons  []string
}

func (l *eventLog) hooks() *Hooks {
	return &Hooks{
		OnStateChanged: func(_, _ State, reason string) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.reasons = append(l.reasons, reason)
		},
		OnRound: func(_ uint64, outcome string, gathered []float64) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.outcomes = append(l.outcomes, outcome)
			l.gathered = append(l.gathered, append([]float64(nil), gathered...))
		},
	}
}

func (l *eventLog) Outcomes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.outcomes...)
}

func (l *eventLog) Gathered() [][]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([][]float64(nil), l.gathered...)
}

func (l *eventLog) Reasons() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.reasons...)
}

// newCluster builds nrank allocators connected by an in-process group and row network.
//
// extra supplies per-rank options on top of the test logger and event hooks.
func newCluster(t *testing.T, nrank int, cfg Config, extra ...func(rank int) Option) []*testRank {
	t.Helper()

	SetDefaults(&cfg)
	mapper := hash.NewBlockHasher(cfg.resolveNBlock(nrank), cfg.HashSeed)
	group := collective.NewGroup(nrank)
	network := rows.NewNetwork(nrank)
	t.Cleanup(group.Close)

	out := make([]*testRank, nrank)
	for rank := range nrank {
		table := rows.NewTable(mapper)
		endpoint := network.Endpoint(rank, table)
		events := &eventLog{}

		opts := []Option{
			WithLogger(ratest.NewRankLogger(t, rank)),
			WithHooks(events.hooks()),
		}
		for _, fn := range extra {
			opts = append(opts, fn(rank))
		}

		rankCfg := cfg
		alloc, err := NewAllocator(&rankCfg, group.Member(rank), endpoint, opts...)
		require.NoError(t, err)

		out[rank] = &testRank{alloc: alloc, table: table, endpoint: endpoint, events: events}
	}

	return out
}

// activate activates every rank at cycle.
func activate(ranks []*testRank, cycle uint64) {
	for _, r := range ranks {
		r.alloc.Activate(cycle)
	}
}

// costFunc returns the work a rank records for one of its blocks in one cycle.
type costFunc func(rank, block int) time.Duration

// step records one cycle of work on every rank and calls Update on all of them.
func step(t *testing.T, ranks []*testRank, cycle uint64, cost costFunc) error {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	return ratest.RunRanks(ctx, len(ranks), func(ctx context.Context, rank int) error {
		a := ranks[rank].alloc
		if cost != nil {
			for _, b := range a.RankToBlocks()[rank] {
				a.RecordWork(b, cost(rank, b))
			}
		}

		return a.Update(ctx, cycle)
	})
}

// requireAgreement asserts every rank holds identical, consistent routing.
func requireAgreement(t *testing.T, ranks []*testRank) {
	t.Helper()

	want := ranks[0].alloc.BlockToRank()
	for _, r := range ranks {
		require.NoError(t, r.alloc.CheckRouting())
		require.Equal(t, want, r.alloc.BlockToRank(), "rank %d disagrees", r.alloc.Rank())

		total := 0
		for _, blocks := range r.alloc.RankToBlocks() {
			total += len(blocks)
		}
		require.Equal(t, r.alloc.NBlock(), total)
	}
}
