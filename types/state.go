package types

// State represents the balancing state of an allocator.
//
// The allocator starts Inactive and only the host can move it to Active:
//
//	StateInactive --Activate (nrank>1, period>0)--> StateActive
//	StateActive --Deactivate | tolerance reached | single-block sender--> StateInactive
type State int

const (
	// StateInactive indicates no migrations will be attempted.
	StateInactive State = iota

	// StateActive indicates Update runs the rebalancing decision on schedule.
	StateActive
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateInactive:
		return "Inactive"
	case StateActive:
		return "Active"
	default:
		return "Unknown"
	}
}
