package binding

import (
	"log/slog"
	"time"

	"github.com/vango-dev/rxbind/pkg/metrics"
	"github.com/vango-dev/rxbind/pkg/reactive"
)

// Option configures a Binding.
type Option func(*config)

type config struct {
	window  time.Duration
	maxWait time.Duration
	clock   reactive.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func defaultConfig() config {
	return config{
		window: reactive.DefaultThrottleWindow,
		clock:  reactive.SystemClock(),
		logger: slog.Default(),
	}
}

// WithThrottle sets the quiet window after which a burst of changes is
// rendered (default: 50ms).
func WithThrottle(d time.Duration) Option {
	return func(c *config) {
		c.window = d
	}
}

// WithMaxWait bounds how long a continuous burst may postpone a render.
// Zero (the default) means unbounded.
func WithMaxWait(d time.Duration) Option {
	return func(c *config) {
		c.maxWait = d
	}
}

// WithClock sets the time source of the throttle stage.
func WithClock(clock reactive.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithLogger sets the binding's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetrics records signals and renders.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}
