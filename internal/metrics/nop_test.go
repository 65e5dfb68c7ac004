package metrics

import (
	"testing"

	"github.com/arloliu/rankalloc/types"
	"github.com/stretchr/testify/require"
)

func TestNewNop(t *testing.T) {
	metrics := NewNop()

	require.NotNil(t, metrics)
	require.IsType(t, &NopMetrics{}, metrics)
}

func TestNopMetrics_AllMethods(t *testing.T) {
	var metrics types.MetricsCollector = NewNop()

	require.NotPanics(t, func() {
		metrics.RecordRound(types.RoundMigrated)
		metrics.RecordRound("")
		metrics.RecordImbalance(0, 0)
		metrics.RecordImbalance(-1, 1e9)
		metrics.RecordNullUpdates(3)
		metrics.RecordActive(true)
		metrics.RecordMigration(0, 1, 42, 0.5)
		metrics.RecordLocalBlocks(-1)
	})
}
