package collective

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/arloliu/rankalloc/internal/logging"
	"github.com/arloliu/rankalloc/internal/natsutil"
	"github.com/arloliu/rankalloc/types"
)

const (
	opHello = "hello"
	opAck   = "ack"
)

// NATSConfig configures a NATS-backed collective.
type NATSConfig struct {
	// Prefix namespaces the subjects of one computation (e.g., "rankalloc.<session>").
	Prefix string

	// Rank is the index of this process in [0, Size).
	Rank int

	// Size is the number of participating processes.
	Size int

	// HelloInterval is how often WaitReady re-announces this rank. Default: 50ms.
	HelloInterval time.Duration

	// Logger receives debug output. Default: nop.
	Logger types.Logger
}

// envelope is the wire message of one rank's contribution to a round.
type envelope struct {
	Seq   uint64  `json:"seq"`
	Rank  int     `json:"rank"`
	Op    string  `json:"op"`
	Root  int     `json:"root"`
	Value float64 `json:"value"`
	Int   int     `json:"int"`
}

type pendingRound struct {
	entries map[int]envelope
	ready   chan struct{}
}

// NATS is a types.Collective whose ranks exchange envelopes on the core NATS
// subject "<prefix>.coll".
//
// Every rank receives every envelope, including its own. Envelopes are keyed by
// a per-rank call sequence so that messages of a round that arrive before the
// local rank enters it are buffered.
type NATS struct {
	nc      *nats.Conn
	subject string
	rank    int
	size    int
	hello   time.Duration
	logger  types.Logger

	seq atomic.Uint64
	sub *nats.Subscription

	mu      sync.Mutex
	pending map[uint64]*pendingRound
	retired uint64 // highest local call sequence that has left exchange
	seen    map[int]struct{}
	seenAll chan struct{}
	closed  bool
	closeCh chan struct{}
}

var _ types.Collective = (*NATS)(nil)

// NewNATS subscribes to the collective subject and returns the collective of cfg.Rank.
//
// Call WaitReady before the first operation so that no rank publishes before
// every peer has subscribed.
//
// Parameters:
//   - nc: Connected NATS client
//   - cfg: Collective configuration
//
// Returns:
//   - *NATS: Collective for cfg.Rank
//   - error: Invalid configuration or subscription failure
func NewNATS(nc *nats.Conn, cfg NATSConfig) (*NATS, error) {
	if nc == nil {
		return nil, fmt.Errorf("nats connection is required: %w", types.ErrInvalidConfig)
	}
	if cfg.Prefix == "" {
		return nil, fmt.Errorf("subject prefix is required: %w", types.ErrInvalidConfig)
	}
	if cfg.Size < 1 || cfg.Rank < 0 || cfg.Rank >= cfg.Size {
		return nil, fmt.Errorf("rank %d of size %d: %w", cfg.Rank, cfg.Size, types.ErrRankOutOfRange)
	}
	if cfg.HelloInterval <= 0 {
		cfg.HelloInterval = 50 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}

	c := &NATS{
		nc:      nc,
		subject: cfg.Prefix + ".coll",
		rank:    cfg.Rank,
		size:    cfg.Size,
		hello:   cfg.HelloInterval,
		logger:  cfg.Logger,
		pending: make(map[uint64]*pendingRound),
		seen:    map[int]struct{}{cfg.Rank: {}},
		seenAll: make(chan struct{}),
		closeCh: make(chan struct{}),
	}
	if cfg.Size == 1 {
		close(c.seenAll)
	}

	sub, err := nc.Subscribe(c.subject, c.handle)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", c.subject, err)
	}
	if err := nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("failed to flush subscription: %w", err)
	}
	c.sub = sub

	return c, nil
}

// WaitReady blocks until every rank has announced itself on the subject.
//
// Parameters:
//   - ctx: Context bounding the wait
//
// Returns:
//   - error: Context error, or ErrCollectiveClosed
func (c *NATS) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(c.hello)
	defer ticker.Stop()

	for {
		if err := c.publish(envelope{Rank: c.rank, Op: opHello}); err != nil {
			return err
		}

		select {
		case <-c.seenAll:
			return nil
		case <-c.closeCh:
			return types.ErrCollectiveClosed
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d ranks on %s: %w", c.size, c.subject, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Rank returns the rank of this process.
func (c *NATS) Rank() int {
	return c.rank
}

// Size returns the number of ranks.
func (c *NATS) Size() int {
	return c.size
}

// AllGather contributes value and returns every rank's contribution indexed by rank.
func (c *NATS) AllGather(ctx context.Context, value float64) ([]float64, error) {
	entries, err := c.exchange(ctx, envelope{Op: opAllGather.String(), Root: -1, Value: value})
	if err != nil {
		return nil, err
	}

	out := make([]float64, c.size)
	for rank, e := range entries {
		out[rank] = e.Value
	}

	return out, nil
}

// Broadcast returns root's value on every rank.
func (c *NATS) Broadcast(ctx context.Context, value int, root int) (int, error) {
	if root < 0 || root >= c.size {
		return 0, fmt.Errorf("broadcast root %d of size %d: %w", root, c.size, types.ErrRankOutOfRange)
	}

	entries, err := c.exchange(ctx, envelope{Op: opBroadcast.String(), Root: root, Int: value})
	if err != nil {
		return 0, err
	}

	return entries[root].Int, nil
}

// Close unsubscribes and fails every pending and later operation.
func (c *NATS) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.closeCh)
	c.mu.Unlock()

	return c.sub.Unsubscribe()
}

func (c *NATS) exchange(ctx context.Context, env envelope) (map[int]envelope, error) {
	env.Seq = c.seq.Add(1)
	env.Rank = c.rank

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, types.ErrCollectiveClosed
	}
	r := c.roundLocked(env.Seq)
	c.mu.Unlock()
	defer c.retire(env.Seq)

	if err := c.publish(env); err != nil {
		return nil, err
	}

	select {
	case <-r.ready:
	case <-c.closeCh:
		return nil, types.ErrCollectiveClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("rank %d waiting in %s #%d: %w", c.rank, env.Op, env.Seq, ctx.Err())
	}

	for rank, e := range r.entries {
		if e.Op != env.Op || e.Root != env.Root {
			return nil, fmt.Errorf("rank %d sent %s(root=%d) in call #%d, rank %d sent %s(root=%d): %w",
				rank, e.Op, e.Root, env.Seq, c.rank, env.Op, env.Root, types.ErrCollectiveMismatch)
		}
	}

	return r.entries, nil
}

// retire forgets the round of seq. Envelopes arriving later for it are dropped.
func (c *NATS) retire(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.pending, seq)
	if seq > c.retired {
		c.retired = seq
	}
}

// Pending returns the number of rounds buffered but not yet retired.
func (c *NATS) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}

func (c *NATS) roundLocked(seq uint64) *pendingRound {
	r, ok := c.pending[seq]
	if !ok {
		r = &pendingRound{
			entries: make(map[int]envelope, c.size),
			ready:   make(chan struct{}),
		}
		c.pending[seq] = r
	}

	return r
}

func (c *NATS) publish(env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode %s envelope: %w", env.Op, err)
	}
	if err := c.nc.Publish(c.subject, data); err != nil {
		if natsutil.IsConnectivityError(err) {
			return fmt.Errorf("%w: %w", types.ErrCollectiveClosed, err)
		}

		return fmt.Errorf("failed to publish %s envelope: %w", env.Op, err)
	}

	return nil
}

func (c *NATS) handle(msg *nats.Msg) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		c.logger.Warn("dropping malformed collective envelope", "subject", c.subject, "error", err)
		return
	}
	if env.Rank < 0 || env.Rank >= c.size {
		c.logger.Warn("dropping collective envelope from unknown rank", "subject", c.subject, "rank", env.Rank)
		return
	}

	switch env.Op {
	case opHello, opAck:
		c.markSeen(env.Rank)
		if env.Op == opHello && env.Rank != c.rank {
			if err := c.publish(envelope{Rank: c.rank, Op: opAck}); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
				c.logger.Debug("failed to acknowledge hello", "rank", env.Rank, "error", err)
			}
		}

		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if env.Seq <= c.retired {
		c.logger.Debug("dropping envelope of a finished round", "seq", env.Seq, "rank", env.Rank)
		return
	}
	r := c.roundLocked(env.Seq)
	if _, dup := r.entries[env.Rank]; dup {
		c.logger.Warn("duplicate collective envelope", "seq", env.Seq, "rank", env.Rank)
		return
	}
	r.entries[env.Rank] = env
	if len(r.entries) == c.size {
		close(r.ready)
	}
}

func (c *NATS) markSeen(rank int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[rank]; ok {
		return
	}
	c.seen[rank] = struct{}{}
	if len(c.seen) == c.size {
		close(c.seenAll)
	}
}
