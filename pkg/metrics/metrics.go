// Package metrics exposes Prometheus collectors for the binding pipeline.
//
// A nil *Metrics is valid and records nothing, so components can take an
// optional *Metrics without checking it.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "rxbind").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry receives the collectors and backs Handler.
	// Default: a fresh registry per Metrics.
	Registry *prometheus.Registry
}

// Option configures the collectors.
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
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "rxbind",
		Buckets:   prometheus.DefBuckets,
	}
}

// Metrics holds the collectors.
type Metrics struct {
	registry *prometheus.Registry

	renders         prometheus.Counter
	renderErrors    *prometheus.CounterVec
	renderDuration  prometheus.Histogram
	dirtySignals    prometheus.Counter
	changeSets      prometheus.Counter
	changes         *prometheus.CounterVec
	commandResults  *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	liveSessions    prometheus.Gauge
	dispatchPanics  prometheus.Counter
	droppedTasks    prometheus.Counter
}

// New registers the collectors on the configured registry.
func New(opts ...Option) *Metrics {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	if config.Buckets == nil {
		config.Buckets = prometheus.DefBuckets
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		registry: config.Registry,

		renders: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "renders_total",
			Help:        "Total number of render callbacks run",
			ConstLabels: config.ConstLabels,
		}),

		renderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "render_errors_total",
			Help:        "Total number of failed renders by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		renderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "render_duration_seconds",
			Help:        "Render callback duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		dirtySignals: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dirty_signals_total",
			Help:        "Total number of change signals received by bindings",
			ConstLabels: config.ConstLabels,
		}),

		changeSets: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "changesets_total",
			Help:        "Total number of change sets applied by views",
			ConstLabels: config.ConstLabels,
		}),

		changes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "changes_total",
			Help:        "Total number of individual changes applied by views, by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		commandResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "command_results_total",
			Help:        "Total number of command executions by terminal state",
			ConstLabels: config.ConstLabels,
		}, []string{"command", "state"}),

		commandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "command_duration_seconds",
			Help:        "Command execution duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"command"}),

		liveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_sessions",
			Help:        "Number of connected live sessions",
			ConstLabels: config.ConstLabels,
		}),

		dispatchPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_panics_total",
			Help:        "Total number of panics recovered by dispatch loops",
			ConstLabels: config.ConstLabels,
		}),

		droppedTasks: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dispatch_dropped_total",
			Help:        "Total number of tasks dropped because a dispatch queue was full",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRender records a completed render. errType is empty on success.
func (m *Metrics) RecordRender(d time.Duration, errType string) {
	if m == nil {
		return
	}
	m.renders.Inc()
	m.renderDuration.Observe(d.Seconds())
	if errType != "" {
		m.renderErrors.WithLabelValues(errType).Inc()
	}
}

// RecordDirtySignal records one change signal entering a binding.
func (m *Metrics) RecordDirtySignal() {
	if m == nil {
		return
	}
	m.dirtySignals.Inc()
}

// RecordChangeSet records one applied change set and its changes by kind.
func (m *Metrics) RecordChangeSet(kinds map[string]int) {
	if m == nil {
		return
	}
	m.changeSets.Inc()
	for kind, n := range kinds {
		m.changes.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordCommand records one finished command execution.
func (m *Metrics) RecordCommand(command, state string, d time.Duration) {
	if m == nil {
		return
	}
	m.commandResults.WithLabelValues(command, state).Inc()
	m.commandDuration.WithLabelValues(command).Observe(d.Seconds())
}

// RecordSessionOpen records a new live session.
func (m *Metrics) RecordSessionOpen() {
	if m == nil {
		return
	}
	m.liveSessions.Inc()
}

// RecordSessionClose records a closed live session.
func (m *Metrics) RecordSessionClose() {
	if m == nil {
		return
	}
	m.liveSessions.Dec()
}

// RecordDispatchPanic records a panic recovered by a dispatch loop.
func (m *Metrics) RecordDispatchPanic() {
	if m == nil {
		return
	}
	m.dispatchPanics.Inc()
}

// RecordDispatchDrop records a task dropped by a full dispatch queue.
func (m *Metrics) RecordDispatchDrop() {
	if m == nil {
		return
	}
	m.droppedTasks.Inc()
}
