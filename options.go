package rankalloc

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/rankalloc/internal/metrics"
)

// Option configures an Allocator with optional dependencies.
type Option func(*allocatorOptions)

// allocatorOptions holds optional Allocator configuration.
type allocatorOptions struct {
	hooks   *Hooks
	metrics MetricsCollector
	logger  Logger
	mapper  BlockMapper
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewAllocator
func WithHooks(hooks *Hooks) Option {
	return func(o *allocatorOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewAllocator
//
// Example:
//
//	m := rankalloc.NewPrometheusMetrics(prometheus.DefaultRegisterer, cfg.Name, comm.Rank())
//	ra, err := rankalloc.NewAllocator(cfg, comm, transport, rankalloc.WithMetrics(m))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *allocatorOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with slog and zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewAllocator
func WithLogger(logger Logger) Option {
	return func(o *allocatorOptions) {
		o.logger = logger
	}
}

// WithBlockMapper replaces the default seeded xxh3 key to block mapping.
//
// The mapper must return values in [0, nblock) and must be identical on every rank.
//
// Parameters:
//   - mapper: BlockMapper implementation
//
// Returns:
//   - Option: Functional option for NewAllocator
func WithBlockMapper(mapper BlockMapper) Option {
	return func(o *allocatorOptions) {
		o.mapper = mapper
	}
}

// NewPrometheusMetrics creates a Prometheus-backed MetricsCollector.
//
// Metrics are registered lazily on first use under the "rankalloc" namespace
// with constant "allocator" and "rank" labels.
//
// Parameters:
//   - reg: Registerer (prometheus.DefaultRegisterer if nil)
//   - allocator: Allocator name label
//   - rank: Rank label
//
// Returns:
//   - MetricsCollector: Prometheus collector
func NewPrometheusMetrics(reg prometheus.Registerer, allocator string, rank int) MetricsCollector {
	return metrics.NewPrometheus(reg, "", allocator, rank)
}
