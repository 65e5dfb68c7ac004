package rankalloc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/rankalloc/internal/hash"
	"github.com/arloliu/rankalloc/internal/hooks"
	"github.com/arloliu/rankalloc/internal/logging"
	"github.com/arloliu/rankalloc/internal/metrics"
	"github.com/arloliu/rankalloc/internal/registry"
	"github.com/arloliu/rankalloc/internal/routing"
	"github.com/arloliu/rankalloc/internal/workmeter"
	"github.com/arloliu/rankalloc/types"
)

// Registration is the handle returned by Allocator.Register.
//
// Calling Unregister is the dependent's teardown hook. It is idempotent and
// must not be called while an Update on the same rank is in progress.
type Registration = registry.Registration

// Allocator partitions the key space into blocks, assigns blocks to ranks and
// migrates one block per scheduled round from the busiest to the laziest rank.
//
// Every rank owns one Allocator built from an identical Config. Activate,
// Deactivate and Update must be called from the single goroutine driving the
// rank, in the same order and with the same arguments on every rank.
// RecordWork and the read-only queries are safe from any goroutine.
type Allocator struct {
	cfg       Config
	nblock    int
	rank      int
	nrank     int
	comm      Collective
	transport TransportAdapter
	mapper    BlockMapper

	// routing is written only by Update, under mu.
	mu       sync.RWMutex
	routing  *routing.Table
	gathered []float64

	meter        *workmeter.Meter
	active       atomic.Bool
	icycleActive atomic.Uint64
	nnullUpdates atomic.Int64

	deps    *registry.Registry
	hooks   types.Hooks
	metrics MetricsCollector
	logger  Logger
}

// NewAllocator creates the allocator of this rank with round-robin initial placement.
//
// The allocator starts Inactive; call Activate to enable balancing.
//
// Parameters:
//   - cfg: Configuration (defaults are applied in place, must be identical on every rank)
//   - comm: Collective connecting every rank
//   - transport: Row transport of this rank
//   - opts: Optional logger, metrics, hooks and block mapper
//
// Returns:
//   - *Allocator: Allocator for comm.Rank()
//   - error: ErrInvalidConfig, ErrCollectiveRequired or ErrTransportRequired
//
// Example:
//
//	cfg := rankalloc.DefaultConfig()
//	cfg.Name = "walkers"
//	ra, err := rankalloc.NewAllocator(&cfg, comm, transport, rankalloc.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	ra.Activate(0)
func NewAllocator(cfg *Config, comm Collective, transport TransportAdapter, opts ...Option) (*Allocator, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if comm == nil {
		return nil, ErrCollectiveRequired
	}
	if transport == nil {
		return nil, ErrTransportRequired
	}

	SetDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	nrank := comm.Size()
	rank := comm.Rank()
	if nrank < 1 || rank < 0 || rank >= nrank {
		return nil, fmt.Errorf("collective rank %d of size %d: %w", rank, nrank, ErrInvalidConfig)
	}

	options := &allocatorOptions{}
	for _, opt := range opts {
		opt(options)
	}

	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logging.NewNop()
	}

	cfg.ValidateWithWarnings(loggerInstance, nrank)

	nblock := cfg.resolveNBlock(nrank)
	mapper := options.mapper
	if mapper == nil {
		mapper = hash.NewBlockHasher(nblock, cfg.HashSeed)
	}

	a := &Allocator{
		cfg:       *cfg,
		nblock:    nblock,
		rank:      rank,
		nrank:     nrank,
		comm:      comm,
		transport: transport,
		mapper:    mapper,
		routing:   routing.NewRoundRobin(nblock, nrank),
		gathered:  make([]float64, nrank),
		meter:     workmeter.New(nblock),
		deps:      registry.New(),
		hooks:     hooks.Fill(options.hooks),
		metrics:   metricsCollector,
		logger:    loggerInstance,
	}

	a.metrics.RecordActive(false)
	a.metrics.RecordLocalBlocks(a.routing.Count(rank))

	return a, nil
}

// Name returns the configured allocator name.
func (a *Allocator) Name() string {
	return a.cfg.Name
}

// Rank returns the index of this rank.
func (a *Allocator) Rank() int {
	return a.rank
}

// NRank returns the number of ranks.
func (a *Allocator) NRank() int {
	return a.nrank
}

// NBlock returns the number of blocks.
func (a *Allocator) NBlock() int {
	return a.nblock
}

// State returns the current balancing state.
func (a *Allocator) State() State {
	if a.active.Load() {
		return StateActive
	}

	return StateInactive
}

// IsActive reports whether balancing is active.
func (a *Allocator) IsActive() bool {
	return a.active.Load()
}

// NullUpdates returns the number of consecutive rounds found within tolerance.
func (a *Allocator) NullUpdates() int {
	return int(a.nnullUpdates.Load())
}

// BlockOf returns the block owning key.
func (a *Allocator) BlockOf(key []byte) int {
	return a.mapper.BlockOf(key)
}

// RankOf returns the rank currently owning key.
func (a *Allocator) RankOf(key []byte) int {
	return a.RankOfBlock(a.mapper.BlockOf(key))
}

// BlockOfString returns the block owning a string key.
//
// It agrees with BlockOf([]byte(key)) for every mapper.
func (a *Allocator) BlockOfString(key string) int {
	if m, ok := a.mapper.(types.StringBlockMapper); ok {
		return m.BlockOfString(key)
	}

	return a.mapper.BlockOf([]byte(key))
}

// RankOfString returns the rank currently owning a string key.
func (a *Allocator) RankOfString(key string) int {
	return a.RankOfBlock(a.BlockOfString(key))
}

// RankOfBlock returns the rank currently owning block.
func (a *Allocator) RankOfBlock(block int) int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.routing.RankOf(block)
}

// IsLocal reports whether key is owned by this rank.
func (a *Allocator) IsLocal(key []byte) bool {
	return a.RankOf(key) == a.rank
}

// NBlockLocal returns the number of blocks owned by this rank.
func (a *Allocator) NBlockLocal() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.routing.Count(a.rank)
}

// BlockToRank returns a copy of the block->rank mapping.
func (a *Allocator) BlockToRank() []int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.routing.BlockToRank()
}

// RankToBlocks returns a deep copy of the rank->blocks mapping.
func (a *Allocator) RankToBlocks() [][]int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.routing.RankToBlocks()
}

// LastGatheredTimes returns the per-rank work seconds of the last decision round.
func (a *Allocator) LastGatheredTimes() []float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]float64, len(a.gathered))
	copy(out, a.gathered)

	return out
}

// BlockWorkTimes returns the work seconds recorded per block in the current window.
//
// Entries of blocks owned by other ranks stay zero. The window is cleared by
// every null update or migration.
func (a *Allocator) BlockWorkTimes() []float64 {
	return a.meter.Snapshot()
}

// CheckRouting verifies that block->rank and rank->blocks form a bijection.
//
// Returns:
//   - error: ErrInconsistentRouting on the first disagreement, nil otherwise
func (a *Allocator) CheckRouting() error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.routing.Validate()
}

// IsConsistent reports whether CheckRouting passes.
func (a *Allocator) IsConsistent() bool {
	return a.CheckRouting() == nil
}

// Register adds a dependent to be notified around every migration.
//
// The allocator keeps a non-owning reference. Dependents must be registered in
// the same order on every rank.
//
// Parameters:
//   - dep: Dependent to notify
//
// Returns:
//   - *Registration: Handle whose Unregister removes the dependent
func (a *Allocator) Register(dep Dependent) *Registration {
	return a.deps.Register(dep)
}

// NDependents returns the number of registered dependents.
func (a *Allocator) NDependents() int {
	return a.deps.Len()
}

// RecordWork accumulates elapsed work time against block for the current window.
//
// Local and non-blocking. Does nothing while balancing is inactive.
//
// Parameters:
//   - block: Block id the work is attributable to
//   - elapsed: Time spent
func (a *Allocator) RecordWork(block int, elapsed time.Duration) {
	if !a.active.Load() {
		return
	}
	if !a.meter.Record(block, elapsed) {
		a.logger.Debug("ignoring work for unknown block", "allocator", a.cfg.Name, "block", block)
	}
}

// RecordWorkKey accumulates elapsed work time against the block owning key.
func (a *Allocator) RecordWorkKey(key []byte, elapsed time.Duration) {
	if !a.active.Load() {
		return
	}
	a.meter.Record(a.mapper.BlockOf(key), elapsed)
}

// Activate enables balancing from cycle on, resetting the work window.
//
// No-op with a single rank or a zero period. Re-activating an active
// allocator restarts its schedule at cycle.
//
// Parameters:
//   - cycle: Cycle the balancing schedule is anchored to
func (a *Allocator) Activate(cycle uint64) {
	if a.nrank == 1 {
		return
	}
	if a.cfg.Period == 0 {
		a.logger.Info("dynamic load balancing disabled", "allocator", a.cfg.Name)
		return
	}

	a.logger.Info("activating dynamic load balancing", "allocator", a.cfg.Name, "cycle", cycle)
	a.icycleActive.Store(cycle)
	a.nnullUpdates.Store(0)
	a.meter.Reset()
	a.metrics.RecordNullUpdates(0)

	if a.active.CompareAndSwap(false, true) {
		a.metrics.RecordActive(true)
		a.hooks.OnStateChanged(StateInactive, StateActive, "activate")
	}
}

// Deactivate permanently disables migrations until the next Activate. Idempotent.
func (a *Allocator) Deactivate() {
	a.deactivate("request")
}

func (a *Allocator) deactivate(reason string) {
	if !a.active.CompareAndSwap(true, false) {
		return
	}
	a.logger.Info("deactivating dynamic load balancing", "allocator", a.cfg.Name, "reason", reason)
	a.metrics.RecordActive(false)
	a.hooks.OnStateChanged(StateActive, StateInactive, reason)
}

// Update runs the rebalancing decision if cycle is a scheduled cycle.
//
// Must be called once per cycle on every rank with the same monotonically
// increasing cycle. Outside its schedule, or while inactive, Update returns
// immediately without touching any state or communicating.
//
// Parameters:
//   - ctx: Context bounding the collective operations and the row transfer
//   - cycle: Current host cycle
//
// Returns:
//   - error: Any non-nil error (ErrProtocolViolation, ErrMigrationFailed,
//     ErrInconsistentRouting or a collective/transport error) is fatal for the
//     whole computation; every rank must abort.
func (a *Allocator) Update(ctx context.Context, cycle uint64) error {
	if !a.active.Load() {
		return nil
	}

	start := a.icycleActive.Load()
	if cycle <= start || (cycle-start)%a.cfg.Period != 0 {
		return nil
	}

	return a.rebalance(ctx, cycle)
}

func (a *Allocator) rebalance(ctx context.Context, cycle uint64) error {
	// routing is only written on this goroutine, so reads here need no lock.
	localTime := a.meter.Sum(a.routing.Blocks(a.rank))

	gathered, err := a.comm.AllGather(ctx, localTime)
	if err != nil {
		return fmt.Errorf("failed to gather work times on cycle %d: %w", cycle, err)
	}
	if len(gathered) != a.nrank {
		return fmt.Errorf("gathered %d work times from %d ranks: %w", len(gathered), a.nrank, ErrProtocolViolation)
	}

	a.mu.Lock()
	a.gathered = gathered
	a.mu.Unlock()

	recv, send := argMinMax(gathered)
	a.metrics.RecordImbalance(gathered[recv], gathered[send])

	if gathered[recv] == 0 {
		a.logger.Warn("the most idle rank appears to have done no work at all",
			"allocator", a.cfg.Name, "rank", recv, "cycle", cycle)
		a.logger.Debug("gathered work times", "allocator", a.cfg.Name, "times", gathered)
	}
	if !(gathered[send] > 0) {
		a.finishRound(cycle, types.RoundProtocolError, gathered)
		return fmt.Errorf("busiest rank %d reported no work on cycle %d, RecordWork must be called by the host: %w",
			send, cycle, ErrProtocolViolation)
	}

	switch a.routing.Count(send) {
	case 0:
		a.finishRound(cycle, types.RoundProtocolError, gathered)
		return fmt.Errorf("busiest rank %d owns no blocks but reported work: %w", send, ErrProtocolViolation)
	case 1:
		only := a.routing.Blocks(send)[0]
		a.logger.Warn("busiest rank has only one (very expensive) block remaining, load balance cannot be further improved",
			"allocator", a.cfg.Name, "rank", send, "block", only, "cycle", cycle)
		a.deactivate("structural_limit")
		a.finishRound(cycle, types.RoundStructuralLimit, gathered)

		return nil
	}

	if send == recv {
		a.finishRound(cycle, types.RoundSameRank, gathered)
		return nil
	}

	threshold := 1 - a.cfg.AcceptableImbalance
	if gathered[recv] > threshold*gathered[send] {
		n := a.nnullUpdates.Add(1)
		a.metrics.RecordNullUpdates(int(n))
		if n >= int64(a.cfg.NNullUpdatesDeactivate) {
			a.logger.Info("load imbalance within tolerance for consecutive periods",
				"allocator", a.cfg.Name,
				"acceptable_imbalance", a.cfg.AcceptableImbalance,
				"null_updates", n,
				"period", a.cfg.Period)
			a.deactivate("tolerance")
		}
		a.meter.Reset()
		a.finishRound(cycle, types.RoundNull, gathered)

		return nil
	}
	a.nnullUpdates.Store(0)
	a.metrics.RecordNullUpdates(0)

	block, err := a.agreeOnBlock(ctx, send)
	if err != nil {
		return err
	}

	a.meter.Reset()

	if err := a.migrate(ctx, cycle, block, send, recv); err != nil {
		return err
	}
	a.finishRound(cycle, types.RoundMigrated, gathered)

	return nil
}

// agreeOnBlock has the sender pick an ordinal in its block list and broadcasts
// it, so every rank resolves the same block id from already-agreed routing state.
func (a *Allocator) agreeOnBlock(ctx context.Context, send int) (int, error) {
	ordinal := 0
	if a.rank == send {
		ordinal = selectOrdinal(a.routing.Blocks(send), a.meter.Seconds)
	}

	ordinal, err := a.comm.Broadcast(ctx, ordinal, send)
	if err != nil {
		return 0, fmt.Errorf("failed to broadcast block selection from rank %d: %w", send, err)
	}

	block, ok := a.routing.BlockAt(send, ordinal)
	if !ok {
		return 0, fmt.Errorf("broadcast ordinal %d outside block list of rank %d (len %d): %w",
			ordinal, send, a.routing.Count(send), ErrProtocolViolation)
	}

	return block, nil
}

func (a *Allocator) migrate(ctx context.Context, cycle uint64, block, from, to int) error {
	var rows []int
	if a.rank == from {
		rows = a.transport.BlockRows(block)
	}

	m := Migration{Cycle: cycle, Block: block, From: from, To: to, Rows: rows}
	a.logger.Info("sending block",
		"allocator", a.cfg.Name, "block", block, "from", from, "to", to, "cycle", cycle)

	started := time.Now()
	notifier := a.deps.Notifier()

	if err := notifier.Before(ctx, m); err != nil {
		return fmt.Errorf("%w: dependent rejected transfer of block %d: %w", ErrMigrationFailed, block, err)
	}
	if err := a.transport.Transfer(ctx, rows, from, to, notifier.RowReceived); err != nil {
		return fmt.Errorf("%w: transfer of block %d from rank %d to %d: %w", ErrMigrationFailed, block, from, to, err)
	}
	if err := notifier.After(ctx, m); err != nil {
		return fmt.Errorf("%w: dependent failed after transfer of block %d: %w", ErrMigrationFailed, block, err)
	}

	a.mu.Lock()
	err := a.routing.Move(block, to)
	if err == nil && a.cfg.CheckConsistency {
		err = a.routing.Validate()
	}
	nlocal := a.routing.Count(a.rank)
	a.mu.Unlock()
	if err != nil {
		return fmt.Errorf("after moving block %d to rank %d: %w", block, to, err)
	}

	a.metrics.RecordMigration(from, to, len(rows), time.Since(started).Seconds())
	a.metrics.RecordLocalBlocks(nlocal)

	return nil
}

func (a *Allocator) finishRound(cycle uint64, outcome string, gathered []float64) {
	a.metrics.RecordRound(outcome)
	a.hooks.OnRound(cycle, outcome, gathered)
}

// argMinMax returns the indices of the first minimum and first maximum.
func argMinMax(values []float64) (imin, imax int) {
	for i, v := range values {
		if v < values[imin] {
			imin = i
		}
		if v > values[imax] {
			imax = i
		}
	}

	return imin, imax
}
