package metrics

import (
	"testing"

	"github.com/arloliu/rankalloc/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector_Rounds(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "", "walkers", 0)

	p.RecordRound(types.RoundMigrated)
	p.RecordRound(types.RoundNull)
	p.RecordRound(types.RoundNull)

	require.InDelta(t, 1.0, testutil.ToFloat64(p.rounds.WithLabelValues(types.RoundMigrated)), 1e-9)
	require.InDelta(t, 2.0, testutil.ToFloat64(p.rounds.WithLabelValues(types.RoundNull)), 1e-9)
}

func TestPrometheusCollector_Imbalance(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test", "walkers", 1)

	p.RecordImbalance(20, 80)

	require.InDelta(t, 20.0, testutil.ToFloat64(p.rankTimeMin), 1e-9)
	require.InDelta(t, 80.0, testutil.ToFloat64(p.rankTimeMax), 1e-9)
	require.InDelta(t, 0.75, testutil.ToFloat64(p.imbalanceRatio), 1e-9)
}

func TestPrometheusCollector_MigrationDirection(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "", "walkers", 2)

	p.RecordMigration(2, 0, 10, 0.01)
	p.RecordMigration(1, 2, 0, 0.01)
	p.RecordMigration(0, 1, 0, 0.01)

	require.InDelta(t, 1.0, testutil.ToFloat64(p.migrations.WithLabelValues("send")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(p.migrations.WithLabelValues("recv")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(p.migrations.WithLabelValues("observe")), 1e-9)
	require.InDelta(t, 10.0, testutil.ToFloat64(p.migratedRows), 1e-9)
}

func TestPrometheusCollector_Gauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "", "walkers", 0)

	p.RecordActive(true)
	p.RecordNullUpdates(4)
	p.RecordLocalBlocks(7)
	require.InDelta(t, 1.0, testutil.ToFloat64(p.active), 1e-9)
	require.InDelta(t, 4.0, testutil.ToFloat64(p.nullUpdates), 1e-9)
	require.InDelta(t, 7.0, testutil.ToFloat64(p.localBlocks), 1e-9)

	p.RecordActive(false)
	require.InDelta(t, 0.0, testutil.ToFloat64(p.active), 1e-9)
}

func TestPrometheusCollector_LazyRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewPrometheus(reg, "", "walkers", 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Empty(t, families, "nothing is registered before first use")
}
