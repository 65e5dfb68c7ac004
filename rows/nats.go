package rows

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/arloliu/rankalloc/internal/logging"
	"github.com/arloliu/rankalloc/internal/natsutil"
	"github.com/arloliu/rankalloc/types"
)

// DefaultMaxBatchRecords bounds the number of records per NATS message.
const DefaultMaxBatchRecords = 256

// NATSTransportConfig configures a NATSTransport.
type NATSTransportConfig struct {
	// Prefix namespaces the subjects of one computation. Rows for rank r are
	// published on "<prefix>.rows.<r>".
	Prefix string

	// Rank is the index of this process.
	Rank int

	// MaxBatchRecords splits large blocks into several messages. Default: DefaultMaxBatchRecords.
	MaxBatchRecords int

	// Logger receives debug output. Default: nop.
	Logger types.Logger
}

// NATSTransport moves rows between processes over core NATS.
//
// Each rank holds a synchronous subscription on its own inbox subject, created
// before the first collective so that no batch can be published before the
// receiver listens.
type NATSTransport struct {
	nc       *nats.Conn
	prefix   string
	rank     int
	maxBatch int
	table    *Table
	logger   types.Logger

	mu     sync.Mutex
	sub    *nats.Subscription
	closed bool
}

var _ types.TransportAdapter = (*NATSTransport)(nil)

// NewNATSTransport subscribes to this rank's inbox and returns its transport.
//
// Parameters:
//   - nc: Connected NATS client
//   - table: Rows owned by this rank
//   - cfg: Transport configuration
//
// Returns:
//   - *NATSTransport: Transport for cfg.Rank
//   - error: Invalid configuration or subscription failure
func NewNATSTransport(nc *nats.Conn, table *Table, cfg NATSTransportConfig) (*NATSTransport, error) {
	if nc == nil || table == nil {
		return nil, fmt.Errorf("nats connection and table are required: %w", types.ErrInvalidConfig)
	}
	if cfg.Prefix == "" {
		return nil, fmt.Errorf("subject prefix is required: %w", types.ErrInvalidConfig)
	}
	if cfg.Rank < 0 {
		return nil, fmt.Errorf("rank %d: %w", cfg.Rank, types.ErrRankOutOfRange)
	}
	if cfg.MaxBatchRecords <= 0 {
		cfg.MaxBatchRecords = DefaultMaxBatchRecords
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}

	t := &NATSTransport{
		nc:       nc,
		prefix:   cfg.Prefix,
		rank:     cfg.Rank,
		maxBatch: cfg.MaxBatchRecords,
		table:    table,
		logger:   cfg.Logger,
	}

	sub, err := nc.SubscribeSync(t.inbox(cfg.Rank))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", t.inbox(cfg.Rank), err)
	}
	if err := nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("failed to flush subscription: %w", err)
	}
	t.sub = sub

	return t, nil
}

func (t *NATSTransport) inbox(rank int) string {
	return t.prefix + ".rows." + strconv.Itoa(rank)
}

// Table returns the rows owned by this rank.
func (t *NATSTransport) Table() *Table {
	return t.table
}

// BlockRows returns the live rows of block held by this rank.
func (t *NATSTransport) BlockRows(block int) []int {
	return t.table.BlockRows(block)
}

// Transfer moves rows from rank from to rank to.
func (t *NATSTransport) Transfer(ctx context.Context, rows []int, from, to int, onRow func(newIndex int)) error {
	if from == to {
		return nil
	}

	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return types.ErrTransportClosed
	}

	switch t.rank {
	case from:
		return t.send(ctx, rows, to)
	case to:
		return t.receive(ctx, from, onRow)
	}

	return nil
}

func (t *NATSTransport) send(ctx context.Context, rows []int, to int) error {
	records, err := t.table.take(rows)
	if err != nil {
		return err
	}

	subject := t.inbox(to)
	seq := 0
	for start := 0; start < len(records) || seq == 0; start += t.maxBatch {
		end := min(start+t.maxBatch, len(records))
		batch := Batch{
			From:    t.rank,
			Seq:     seq,
			Last:    end >= len(records),
			Records: records[start:end],
		}

		data, err := json.Marshal(batch)
		if err != nil {
			return fmt.Errorf("failed to encode row batch: %w", err)
		}
		if err := t.nc.Publish(subject, data); err != nil {
			return t.wrap(err, "failed to publish row batch")
		}
		seq++
	}

	if err := t.nc.FlushWithContext(ctx); err != nil {
		return t.wrap(err, "failed to flush row batches")
	}
	t.logger.Debug("sent rows", "to", to, "rows", len(records), "messages", seq)

	return nil
}

func (t *NATSTransport) receive(ctx context.Context, from int, onRow func(newIndex int)) error {
	for seq := 0; ; seq++ {
		msg, err := t.sub.NextMsgWithContext(ctx)
		if err != nil {
			return t.wrap(err, fmt.Sprintf("waiting for rows from rank %d", from))
		}

		var batch Batch
		if err := json.Unmarshal(msg.Data, &batch); err != nil {
			return fmt.Errorf("failed to decode row batch: %w", err)
		}
		if batch.From != from || batch.Seq != seq {
			return fmt.Errorf("expected batch %d from rank %d, got batch %d from rank %d: %w",
				seq, from, batch.Seq, batch.From, types.ErrUnexpectedBatch)
		}

		t.table.land(batch.Records, onRow)
		if batch.Last {
			t.logger.Debug("received rows", "from", from, "messages", seq+1)
			return nil
		}
	}
}

func (t *NATSTransport) wrap(err error, msg string) error {
	if natsutil.IsConnectivityError(err) {
		return fmt.Errorf("%s: %w: %w", msg, types.ErrTransportClosed, err)
	}

	return fmt.Errorf("%s: %w", msg, err)
}

// Close unsubscribes from this rank's inbox.
func (t *NATSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	return t.sub.Unsubscribe()
}
