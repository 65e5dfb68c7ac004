package types

import "errors"

// Sentinel errors for the rankalloc library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// Components wrap them with context using fmt.Errorf("%s: %w", msg, err).
//
// Only configuration errors are recoverable. Every error returned from
// Allocator.Update means the ranks may no longer agree on routing and the
// host must abort the whole computation.

// Allocator errors - Public API errors returned by the allocator.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCollectiveRequired is returned when no collective is supplied.
	ErrCollectiveRequired = errors.New("collective is required")

	// ErrTransportRequired is returned when no transport adapter is supplied.
	ErrTransportRequired = errors.New("transport adapter is required")

	// ErrProtocolViolation is returned when gathered data carries no usable signal,
	// e.g. the busiest rank reported zero work in a decision round.
	ErrProtocolViolation = errors.New("rebalance protocol violation")

	// ErrInconsistentRouting is returned when block->rank and rank->blocks disagree.
	ErrInconsistentRouting = errors.New("routing tables are inconsistent")

	// ErrMigrationFailed is returned when a dependent or the transport fails mid-migration.
	ErrMigrationFailed = errors.New("block migration failed")
)

// Collective errors - Errors raised by Collective implementations.
var (
	// ErrCollectiveMismatch is returned when ranks enter different operations in the same round.
	ErrCollectiveMismatch = errors.New("collective operation mismatch")

	// ErrRankOutOfRange is returned when a rank index is outside [0, size).
	ErrRankOutOfRange = errors.New("rank out of range")

	// ErrCollectiveClosed is returned when a collective is used after Close.
	ErrCollectiveClosed = errors.New("collective closed")
)

// Transport errors - Errors raised by TransportAdapter implementations.
var (
	// ErrRowNotFound is returned when a row index does not refer to a live row.
	ErrRowNotFound = errors.New("row not found")

	// ErrTransportClosed is returned when a transport is used after Close.
	ErrTransportClosed = errors.New("transport closed")

	// ErrUnexpectedBatch is returned when a received batch does not match the expected sender.
	ErrUnexpectedBatch = errors.New("unexpected row batch")
)

// Dependent errors - Errors raised by the shipped dependents.
var (
	// ErrPublishFailed is returned when publishing a routing snapshot fails.
	ErrPublishFailed = errors.New("failed to publish routing snapshot")

	// ErrNoSnapshot is returned when no routing snapshot has been published yet.
	ErrNoSnapshot = errors.New("no routing snapshot found")
)
