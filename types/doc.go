// Package types provides core type definitions and interfaces for the rankalloc library.
//
// This package contains shared types that are used across multiple packages in the
// library. By keeping these types in a separate package, internal packages and the
// shipped collective/transport implementations avoid import cycles with the root
// rankalloc package.
//
// Key types:
//   - State: Allocator balancing state (Inactive, Active)
//   - Migration: Description of one block move between ranks
//   - Dependent: Observer kept consistent across a migration
//   - Collective: Lock-step aggregation and broadcast primitive
//   - TransportAdapter: Row enumeration and bulk move primitive
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
