package types

import "context"

// Migration describes a single block move between two ranks.
//
// The same value is observed by every dependent on every rank, except Rows,
// which is only populated on the sending rank.
type Migration struct {
	// Cycle is the host cycle on which the migration was decided.
	Cycle uint64

	// Block is the migrated block id.
	Block int

	// From is the sending rank.
	From int

	// To is the receiving rank.
	To int

	// Rows holds the sender's local row indices mapped to Block (nil elsewhere).
	Rows []int
}

// Dependent is a structure whose internal state is keyed by row ownership and
// must stay correct across a block migration.
//
// The allocator never owns a dependent. It keeps a non-owning registration
// that the dependent releases through Registration.Unregister when it is torn
// down. Dependents may be registered or unregistered between migrations, never
// during one.
//
// Ordering guarantee for one migration, identical on every rank:
//
//	BeforeBlockTransfer -> transport (OnRowReceived per row, receiver only) -> AfterBlockTransfer
type Dependent interface {
	// BeforeBlockTransfer fires on every rank before any row moves.
	//
	// Parameters:
	//   - ctx: Context of the Update call
	//   - m: Migration about to happen (m.Rows set on the sender only)
	//
	// Returns:
	//   - error: Non-nil aborts the migration; the host must abort every rank
	BeforeBlockTransfer(ctx context.Context, m Migration) error

	// OnRowReceived fires on the receiving rank once per landed row, in delivery order.
	//
	// Parameters:
	//   - newIndex: Local row index the transferred row now occupies
	OnRowReceived(newIndex int)

	// AfterBlockTransfer fires on every rank after all OnRowReceived calls of the migration.
	//
	// The routing tables still describe the pre-migration placement at this point;
	// dependents that cache placement should apply m themselves.
	//
	// Parameters:
	//   - ctx: Context of the Update call
	//   - m: Migration that just completed
	//
	// Returns:
	//   - error: Non-nil is reported as ErrMigrationFailed by Update
	AfterBlockTransfer(ctx context.Context, m Migration) error
}
