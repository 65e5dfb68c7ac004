package types

// Round outcomes reported through RoundMetrics.RecordRound.
const (
	RoundMigrated        = "migrated"
	RoundNull            = "null"
	RoundSameRank        = "same_rank"
	RoundStructuralLimit = "structural_limit"
	RoundProtocolError   = "protocol_violation"
)

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and must be safe for concurrent use:
// RecordLocalBlocks may be called from a reader goroutine while Update runs.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	RoundMetrics
	MigrationMetrics
}

// RoundMetrics defines metrics for rebalancing decision rounds.
type RoundMetrics interface {
	// RecordRound records the outcome of one scheduled Update.
	//
	// Parameters:
	//   - outcome: One of the Round* constants
	RecordRound(outcome string)

	// RecordImbalance records the gathered minimum and maximum per-rank work time.
	//
	// Parameters:
	//   - minSeconds: Work time of the laziest rank in the window
	//   - maxSeconds: Work time of the busiest rank in the window
	RecordImbalance(minSeconds, maxSeconds float64)

	// RecordNullUpdates sets the consecutive null-update counter (gauge metric).
	RecordNullUpdates(count int)

	// RecordActive sets whether balancing is active (gauge metric).
	RecordActive(active bool)
}

// MigrationMetrics defines metrics for block migrations.
type MigrationMetrics interface {
	// RecordMigration records a completed block migration.
	//
	// Parameters:
	//   - from: Sending rank
	//   - to: Receiving rank
	//   - rows: Number of rows enumerated by the sending rank (0 on other ranks)
	//   - seconds: Wall time spent notifying dependents and moving rows
	RecordMigration(from, to, rows int, seconds float64)

	// RecordLocalBlocks sets the number of blocks owned by this rank (gauge metric).
	RecordLocalBlocks(count int)
}
