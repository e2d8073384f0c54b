package command

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/rxbind/pkg/metrics"
)

// Option configures a Command.
type Option func(*Command)

// WithName names the command in logs, spans and metrics.
func WithName(name string) Option {
	return func(c *Command) {
		c.name = name
	}
}

// WithLogger sets the command's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Command) {
		c.logger = logger
	}
}

// WithTracer sets the tracer used for execution spans.
// Default: otel.Tracer("rxbind").
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Command) {
		c.tracer = tracer
	}
}

// WithMetrics records execution results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Command) {
		c.metrics = m
	}
}

// WithContext sets the parent context of every execution. Canceling it
// cancels all executions.
func WithContext(ctx context.Context) Option {
	return func(c *Command) {
		c.base = ctx
	}
}
