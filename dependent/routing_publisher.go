package dependent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/rankalloc/internal/logging"
	"github.com/arloliu/rankalloc/types"
)

// RoutingSource is the allocator state a RoutingPublisher mirrors.
//
// *rankalloc.Allocator satisfies it.
type RoutingSource interface {
	Name() string
	Rank() int
	NRank() int
	BlockToRank() []int
}

// MigrationRecord is the JSON form of the migration that produced a snapshot.
type MigrationRecord struct {
	Cycle uint64 `json:"cycle"`
	Block int    `json:"block"`
	From  int    `json:"from"`
	To    int    `json:"to"`
}

// Snapshot is the routing state stored in the KV bucket.
type Snapshot struct {
	Version       int64            `json:"version"`
	Allocator     string           `json:"allocator"`
	Cycle         uint64           `json:"cycle"`
	NRank         int              `json:"nrank"`
	BlockToRank   []int            `json:"blockToRank"`
	LastMigration *MigrationRecord `json:"lastMigration,omitempty"`
	PublishedAt   time.Time        `json:"publishedAt"`
}

// RankOfBlock returns the owner of block, or -1 when block is out of range.
func (s Snapshot) RankOfBlock(block int) int {
	if block < 0 || block >= len(s.BlockToRank) {
		return -1
	}

	return s.BlockToRank[block]
}

// RoutingPublisherConfig configures a RoutingPublisher.
type RoutingPublisherConfig struct {
	// Prefix of the snapshot key. The key is "<prefix>.<allocator name>". Default: "routing".
	Prefix string

	// PublisherRank is the single rank writing to the bucket. Default: 0.
	PublisherRank int

	// Logger for publishing events. Default: nop.
	Logger types.Logger
}

// RoutingPublisher mirrors the block to rank table into a JetStream KV bucket.
//
// It keeps its own copy of the table and applies each migration in
// AfterBlockTransfer, so every rank's copy stays identical to the allocator's
// post-migration routing. Only PublisherRank writes; the snapshot version
// increases by one per published migration.
type RoutingPublisher struct {
	kv      jetstream.KeyValue
	key     string
	name    string
	rank    int
	nrank   int
	writer  bool
	logger  types.Logger
	current []int

	mu             sync.Mutex
	currentVersion int64
	lastPublish    time.Time
}

var _ types.Dependent = (*RoutingPublisher)(nil)

// NewRoutingPublisher creates a publisher for src.
//
// Parameters:
//   - kv: JetStream KV bucket for routing snapshots
//   - src: Allocator whose routing is mirrored
//   - cfg: Publisher configuration
//
// Returns:
//   - *RoutingPublisher: A new publisher instance
//
// Example:
//
//	kv, _ := kvutil.EnsureBucket(ctx, js, kvutil.RoutingBucketConfig("rankalloc-routing", 0), 3)
//	pub := dependent.NewRoutingPublisher(kv, ra, dependent.RoutingPublisherConfig{})
//	if err := pub.PublishInitial(ctx); err != nil {
//	    return err
//	}
//	defer ra.Register(pub).Unregister()
func NewRoutingPublisher(kv jetstream.KeyValue, src RoutingSource, cfg RoutingPublisherConfig) *RoutingPublisher {
	if cfg.Prefix == "" {
		cfg.Prefix = "routing"
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}

	return &RoutingPublisher{
		kv:      kv,
		key:     cfg.Prefix + "." + src.Name(),
		name:    src.Name(),
		rank:    src.Rank(),
		nrank:   src.NRank(),
		writer:  src.Rank() == cfg.PublisherRank,
		logger:  cfg.Logger,
		current: src.BlockToRank(),
	}
}

// Key returns the KV key the snapshot is stored under.
func (p *RoutingPublisher) Key() string {
	return p.key
}

// IsWriter reports whether this rank writes snapshots.
func (p *RoutingPublisher) IsWriter() bool {
	return p.writer
}

// CurrentVersion returns the version of the last snapshot written or discovered.
//
// This method is thread-safe and can be called concurrently.
func (p *RoutingPublisher) CurrentVersion() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.currentVersion
}

// LastPublishTime returns the time of the last successful write (zero if none).
func (p *RoutingPublisher) LastPublishTime() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.lastPublish
}

// DiscoverVersion reads the stored snapshot so that versions keep increasing
// across restarts of the computation.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: Nil when no snapshot exists yet, KV error otherwise
func (p *RoutingPublisher) DiscoverVersion(ctx context.Context) error {
	snap, err := p.Load(ctx)
	if errors.Is(err, types.ErrNoSnapshot) {
		p.logger.Debug("no existing routing snapshot", "key", p.key)
		return nil
	}
	if err != nil {
		return err
	}

	p.mu.Lock()
	if snap.Version > p.currentVersion {
		p.currentVersion = snap.Version
	}
	p.mu.Unlock()

	p.logger.Info("discovered existing routing snapshot", "key", p.key, "version", snap.Version)

	return nil
}

// PublishInitial writes the current table before the first migration.
//
// Discovers the stored version first. No-op on ranks other than PublisherRank.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: Wrapped ErrPublishFailed on KV failure
func (p *RoutingPublisher) PublishInitial(ctx context.Context) error {
	if !p.writer {
		return nil
	}
	if err := p.DiscoverVersion(ctx); err != nil {
		return fmt.Errorf("%w: %w", types.ErrPublishFailed, err)
	}

	return p.publish(ctx, 0, nil)
}

// Load reads the stored snapshot.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - Snapshot: Stored routing snapshot
//   - error: ErrNoSnapshot if nothing was published yet
func (p *RoutingPublisher) Load(ctx context.Context) (Snapshot, error) {
	return LoadSnapshot(ctx, p.kv, p.key)
}

// LoadSnapshot reads the routing snapshot stored under key.
func LoadSnapshot(ctx context.Context, kv jetstream.KeyValue, key string) (Snapshot, error) {
	entry, err := kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return Snapshot{}, fmt.Errorf("key %s: %w", key, types.ErrNoSnapshot)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read routing snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(entry.Value(), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to unmarshal routing snapshot: %w", err)
	}

	return snap, nil
}

// Watch streams every snapshot written under key until ctx is done.
//
// The currently stored snapshot, if any, is delivered first. Malformed entries
// are skipped.
//
// Parameters:
//   - ctx: Context whose cancellation stops the watch and closes the channel
//   - kv: JetStream KV bucket
//   - key: Snapshot key (RoutingPublisher.Key)
//
// Returns:
//   - <-chan Snapshot: Snapshot stream
//   - error: Watch setup failure
func Watch(ctx context.Context, kv jetstream.KeyValue, key string) (<-chan Snapshot, error) {
	watcher, err := kv.Watch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", key, err)
	}

	out := make(chan Snapshot)
	go func() {
		defer close(out)
		defer func() { _ = watcher.Stop() }()

		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				// nil marks the end of the initial values.
				if entry == nil || entry.Operation() != jetstream.KeyValuePut {
					continue
				}

				var snap Snapshot
				if err := json.Unmarshal(entry.Value(), &snap); err != nil {
					continue
				}

				select {
				case out <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// BeforeBlockTransfer does nothing.
func (p *RoutingPublisher) BeforeBlockTransfer(context.Context, types.Migration) error {
	return nil
}

// OnRowReceived does nothing; routing changes per block, not per row.
func (p *RoutingPublisher) OnRowReceived(int) {}

// AfterBlockTransfer applies m to the mirrored table and publishes it from PublisherRank.
func (p *RoutingPublisher) AfterBlockTransfer(ctx context.Context, m types.Migration) error {
	if m.Block < 0 || m.Block >= len(p.current) {
		return fmt.Errorf("%w: block %d outside table of %d", types.ErrPublishFailed, m.Block, len(p.current))
	}
	p.mu.Lock()
	p.current[m.Block] = m.To
	p.mu.Unlock()

	if !p.writer {
		return nil
	}

	return p.publish(ctx, m.Cycle, &MigrationRecord{Cycle: m.Cycle, Block: m.Block, From: m.From, To: m.To})
}

// BlockToRank returns a copy of the mirrored table.
func (p *RoutingPublisher) BlockToRank() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]int, len(p.current))
	copy(out, p.current)

	return out
}

func (p *RoutingPublisher) publish(ctx context.Context, cycle uint64, last *MigrationRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		Version:       p.currentVersion + 1,
		Allocator:     p.name,
		Cycle:         cycle,
		NRank:         p.nrank,
		BlockToRank:   p.current,
		LastMigration: last,
		PublishedAt:   time.Now().UTC(),
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal snapshot: %w", types.ErrPublishFailed, err)
	}
	if _, err := p.kv.Put(ctx, p.key, data); err != nil {
		return fmt.Errorf("%w: %w", types.ErrPublishFailed, err)
	}

	p.currentVersion = snap.Version
	p.lastPublish = snap.PublishedAt
	p.logger.Debug("routing snapshot published", "key", p.key, "version", snap.Version, "cycle", cycle)

	return nil
}
