package rankalloc

import "github.com/arloliu/rankalloc/types"

// Re-export types from the types package.
//
// Internal packages and the shipped collective/transport implementations
// depend on `types` rather than on the root package; these aliases give users
// a single import for the common names.
type (
	State     = types.State
	Migration = types.Migration
	Hooks     = types.Hooks
)

// Re-export interfaces from the types package for convenience.
type (
	Dependent         = types.Dependent
	Collective        = types.Collective
	TransportAdapter  = types.TransportAdapter
	BlockMapper       = types.BlockMapper
	StringBlockMapper = types.StringBlockMapper
	MetricsCollector  = types.MetricsCollector
	Logger            = types.Logger
)

// Re-export State constants from the types package.
const (
	StateInactive = types.StateInactive
	StateActive   = types.StateActive
)

// Re-export round outcomes reported to metrics and hooks.
const (
	RoundMigrated        = types.RoundMigrated
	RoundNull            = types.RoundNull
	RoundSameRank        = types.RoundSameRank
	RoundStructuralLimit = types.RoundStructuralLimit
	RoundProtocolError   = types.RoundProtocolError
)
