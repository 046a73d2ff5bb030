// Package metrics instruments stores with Prometheus metrics.
//
// Usage:
//
//	m := metrics.New(metrics.WithNamespace("forge"), metrics.WithConstLabels(prometheus.Labels{"store": "todos"}))
//	store := state.NewStore(initial,
//	    state.WithMiddleware(m.Middleware()),
//	    state.WithErrorHandler(m.ErrorHandler(nil)),
//	)
package metrics

import (
	"time"

	"forge/pkg/state"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the store metrics.
type Config struct {
	// Namespace is the metrics namespace (default: "forge").
	Namespace string

	// Subsystem is the metrics subsystem (default: "store").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for commit duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the store metrics.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "forge",
		Subsystem: "store",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors for one store.
type Metrics struct {
	updatesTotal     prometheus.Counter
	commitDuration   prometheus.Histogram
	listenerFailures prometheus.Counter
	stateFields      prometheus.Gauge
}

// New registers the store collectors with the configured registry.
func New(opts ...Option) *Metrics {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		updatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "updates_total",
			Help:        "Total number of committed state updates",
			ConstLabels: config.ConstLabels,
		}),

		commitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commit_duration_seconds",
			Help:        "Time spent applying an update through the commit chain",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		listenerFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "listener_failures_total",
			Help:        "Total number of listeners that panicked during notification",
			ConstLabels: config.ConstLabels,
		}),

		stateFields: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "state_fields",
			Help:        "Number of top-level fields in the current state",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Middleware records every commit that passes through it.
func (m *Metrics) Middleware() state.Middleware {
	return func(s state.StateReader) func(next state.Commit) state.Commit {
		return func(next state.Commit) state.Commit {
			return func(partial state.State) {
				start := time.Now()
				next(partial)
				m.commitDuration.Observe(time.Since(start).Seconds())
				m.updatesTotal.Inc()
				m.stateFields.Set(float64(len(s.GetState())))
			}
		}
	}
}

// ErrorHandler counts listener failures and forwards them to next, if any.
func (m *Metrics) ErrorHandler(next state.ErrorHandler) state.ErrorHandler {
	return func(err error) {
		m.listenerFailures.Inc()
		if next != nil {
			next(err)
		}
	}
}
