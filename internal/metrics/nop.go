// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/arloliu/rankalloc/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RoundMetrics implementation

// RecordRound discards the round outcome metric.
func (n *NopMetrics) RecordRound(_ /* outcome */ string) {
	// No-op
}

// RecordImbalance discards the imbalance metric.
func (n *NopMetrics) RecordImbalance(_ /* minSeconds */, _ /* maxSeconds */ float64) {
	// No-op
}

// RecordNullUpdates discards the null-update counter metric.
func (n *NopMetrics) RecordNullUpdates(_ /* count */ int) {
	// No-op
}

// RecordActive discards the active-state metric.
func (n *NopMetrics) RecordActive(_ /* active */ bool) {
	// No-op
}

// MigrationMetrics implementation

// RecordMigration discards the migration metric.
func (n *NopMetrics) RecordMigration(_ /* from */, _ /* to */, _ /* rows */ int, _ /* seconds */ float64) {
	// No-op
}

// RecordLocalBlocks discards the local block count metric.
func (n *NopMetrics) RecordLocalBlocks(_ /* count */ int) {
	// No-op
}
