package rankalloc

import "github.com/arloliu/rankalloc/types"

// Sentinel errors returned by the Allocator.
//
// Apart from ErrInvalidConfig (returned synchronously by NewAllocator), every
// error surfaced by Update means ranks may hold divergent routing state and
// the host must abort the whole computation.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrCollectiveRequired is returned when NewAllocator gets a nil collective.
	ErrCollectiveRequired = types.ErrCollectiveRequired

	// ErrTransportRequired is returned when NewAllocator gets a nil transport adapter.
	ErrTransportRequired = types.ErrTransportRequired

	// ErrProtocolViolation is returned when no rank reported work in a decision round.
	ErrProtocolViolation = types.ErrProtocolViolation

	// ErrInconsistentRouting is returned when the routing bijection check fails.
	ErrInconsistentRouting = types.ErrInconsistentRouting

	// ErrMigrationFailed is returned when a dependent or the transport fails mid-migration.
	ErrMigrationFailed = types.ErrMigrationFailed
)
