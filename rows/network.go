package rows

import (
	"context"
	"fmt"

	"github.com/arloliu/rankalloc/types"
)

// Batch is the unit of rows sent from one rank to another.
type Batch struct {
	From    int      `json:"from"`
	Seq     int      `json:"seq"`
	Last    bool     `json:"last"`
	Records []Record `json:"records"`
}

// Network connects the in-process endpoints of n ranks.
type Network struct {
	inboxes []chan Batch
}

// NewNetwork creates a network of n ranks. n is clamped to at least 1.
func NewNetwork(n int) *Network {
	if n < 1 {
		n = 1
	}

	net := &Network{inboxes: make([]chan Batch, n)}
	for i := range net.inboxes {
		net.inboxes[i] = make(chan Batch, 1)
	}

	return net
}

// Size returns the number of ranks.
func (n *Network) Size() int {
	return len(n.inboxes)
}

// Endpoint returns the TransportAdapter of rank backed by table.
//
// Panics when rank is outside [0, Size()).
func (n *Network) Endpoint(rank int, table *Table) *Endpoint {
	if rank < 0 || rank >= len(n.inboxes) {
		panic(fmt.Sprintf("rows: endpoint rank %d outside network of %d", rank, len(n.inboxes)))
	}

	return &Endpoint{net: n, rank: rank, table: table}
}

// Endpoint is one rank's view of a Network.
type Endpoint struct {
	net   *Network
	rank  int
	table *Table
}

var _ types.TransportAdapter = (*Endpoint)(nil)

// Table returns the rows owned by this rank.
func (e *Endpoint) Table() *Table {
	return e.table
}

// BlockRows returns the live rows of block held by this rank.
func (e *Endpoint) BlockRows(block int) []int {
	return e.table.BlockRows(block)
}

// Transfer moves rows from rank from to rank to.
//
// The sender removes the rows from its table and hands them to the receiver's
// inbox. The receiver inserts them in order and reports each new index to onRow.
// Other ranks return immediately.
func (e *Endpoint) Transfer(ctx context.Context, rows []int, from, to int, onRow func(newIndex int)) error {
	if from == to {
		return nil
	}
	if to < 0 || to >= len(e.net.inboxes) || from < 0 || from >= len(e.net.inboxes) {
		return fmt.Errorf("transfer %d -> %d in network of %d: %w", from, to, len(e.net.inboxes), types.ErrRankOutOfRange)
	}

	switch e.rank {
	case from:
		records, err := e.table.take(rows)
		if err != nil {
			return err
		}

		select {
		case e.net.inboxes[to] <- Batch{From: from, Last: true, Records: records}:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("sending %d rows to rank %d: %w", len(records), to, ctx.Err())
		}

	case to:
		select {
		case batch := <-e.net.inboxes[to]:
			if batch.From != from {
				return fmt.Errorf("expected rows from rank %d, got rank %d: %w", from, batch.From, types.ErrUnexpectedBatch)
			}
			e.table.land(batch.Records, onRow)

			return nil
		case <-ctx.Done():
			return fmt.Errorf("receiving rows from rank %d: %w", from, ctx.Err())
		}
	}

	return nil
}
