// Package rows provides an in-memory row store and TransportAdapter
// implementations moving rows between ranks.
//
// A Table holds the rows a rank currently owns in numbered slots. Moving a
// row out clears its slot; moving a row in reuses a cleared slot or grows the
// table. Rows are assigned to blocks by a types.BlockMapper over their key,
// the same mapper the allocator uses for routing.
//
// Two transports are shipped:
//
//   - Network / Endpoint: ranks in one process connected by channels.
//   - NATSTransport: ranks exchanging JSON batches over core NATS subjects.
package rows
