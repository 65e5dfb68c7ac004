package metrics

import (
	"strconv"
	"sync"

	"github.com/arloliu/rankalloc/types"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use so that
// constructing a collector never panics on a duplicate registration.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	labels    prometheus.Labels
	once      sync.Once

	rounds            *prometheus.CounterVec
	rankTimeMin       prometheus.Gauge
	rankTimeMax       prometheus.Gauge
	imbalanceRatio    prometheus.Gauge
	nullUpdates       prometheus.Gauge
	active            prometheus.Gauge
	migrations        *prometheus.CounterVec
	migratedRows      prometheus.Counter
	migrationDuration prometheus.Histogram
	localBlocks       prometheus.Gauge
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "rankalloc" if empty)
//   - allocator: Allocator name attached as a constant "allocator" label
//   - rank: Rank index attached as a constant "rank" label
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace, allocator string, rank int) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "rankalloc"
	}

	return &PrometheusCollector{
		reg:       reg,
		namespace: namespace,
		labels:    prometheus.Labels{"allocator": allocator, "rank": strconv.Itoa(rank)},
	}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.rounds = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   p.namespace,
			Subsystem:   "balance",
			Name:        "rounds_total",
			Help:        "Scheduled rebalancing rounds by outcome.",
			ConstLabels: p.labels,
		}, []string{"outcome"})

		p.rankTimeMin = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   p.namespace,
			Subsystem:   "balance",
			Name:        "rank_work_seconds_min",
			Help:        "Work time of the laziest rank in the last window.",
			ConstLabels: p.labels,
		})

		p.rankTimeMax = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   p.namespace,
			Subsystem:   "balance",
			Name:        "rank_work_seconds_max",
			Help:        "Work time of the busiest rank in the last window.",
			ConstLabels: p.labels,
		})

		p.imbalanceRatio = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   p.namespace,
			Subsystem:   "balance",
			Name:        "imbalance_ratio",
			Help:        "1 - min/max of gathered per-rank work time in the last window.",
			ConstLabels: p.labels,
		})

		p.nullUpdates = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   p.namespace,
			Subsystem:   "balance",
			Name:        "null_updates",
			Help:        "Consecutive rounds with imbalance within tolerance.",
			ConstLabels: p.labels,
		})

		p.active = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   p.namespace,
			Subsystem:   "balance",
			Name:        "active",
			Help:        "Whether dynamic balancing is active (1) or not (0).",
			ConstLabels: p.labels,
		})

		p.migrations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   p.namespace,
			Subsystem:   "migration",
			Name:        "total",
			Help:        "Block migrations by direction relative to this rank (send, recv, observe).",
			ConstLabels: p.labels,
		}, []string{"direction"})

		p.migratedRows = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   p.namespace,
			Subsystem:   "migration",
			Name:        "rows_total",
			Help:        "Rows enumerated for migration by this rank.",
			ConstLabels: p.labels,
		})

		p.migrationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   p.namespace,
			Subsystem:   "migration",
			Name:        "duration_seconds",
			Help:        "Time spent notifying dependents and moving rows.",
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms .. ~8s
			ConstLabels: p.labels,
		})

		p.localBlocks = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   p.namespace,
			Subsystem:   "routing",
			Name:        "local_blocks",
			Help:        "Number of blocks owned by this rank.",
			ConstLabels: p.labels,
		})

		p.reg.MustRegister(p.rounds)
		p.reg.MustRegister(p.rankTimeMin)
		p.reg.MustRegister(p.rankTimeMax)
		p.reg.MustRegister(p.imbalanceRatio)
		p.reg.MustRegister(p.nullUpdates)
		p.reg.MustRegister(p.active)
		p.reg.MustRegister(p.migrations)
		p.reg.MustRegister(p.migratedRows)
		p.reg.MustRegister(p.migrationDuration)
		p.reg.MustRegister(p.localBlocks)
	})
}

// RecordRound increments the round counter for the given outcome.
func (p *PrometheusCollector) RecordRound(outcome string) {
	p.ensureRegistered()
	p.rounds.WithLabelValues(outcome).Inc()
}

// RecordImbalance sets the min/max gauges and the derived imbalance ratio.
func (p *PrometheusCollector) RecordImbalance(minSeconds, maxSeconds float64) {
	p.ensureRegistered()
	p.rankTimeMin.Set(minSeconds)
	p.rankTimeMax.Set(maxSeconds)
	if maxSeconds > 0 {
		p.imbalanceRatio.Set(1 - minSeconds/maxSeconds)
	}
}

// RecordNullUpdates sets the null-update gauge.
func (p *PrometheusCollector) RecordNullUpdates(count int) {
	p.ensureRegistered()
	p.nullUpdates.Set(float64(count))
}

// RecordActive sets the active gauge.
func (p *PrometheusCollector) RecordActive(active bool) {
	p.ensureRegistered()
	if active {
		p.active.Set(1)
	} else {
		p.active.Set(0)
	}
}

// RecordMigration counts a migration and observes its duration.
//
// The direction label is derived from the rank this collector was created for.
func (p *PrometheusCollector) RecordMigration(from, to, rows int, seconds float64) {
	p.ensureRegistered()

	direction := "observe"
	switch p.labels["rank"] {
	case strconv.Itoa(from):
		direction = "send"
	case strconv.Itoa(to):
		direction = "recv"
	}
	p.migrations.WithLabelValues(direction).Inc()
	p.migratedRows.Add(float64(rows))
	p.migrationDuration.Observe(seconds)
}

// RecordLocalBlocks sets the local block gauge.
func (p *PrometheusCollector) RecordLocalBlocks(count int) {
	p.ensureRegistered()
	p.localBlocks.Set(float64(count))
}
