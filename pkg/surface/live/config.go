package live

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/rxbind/pkg/datasource"
	"github.com/vango-dev/rxbind/pkg/dispatch"
	"github.com/vango-dev/rxbind/pkg/metrics"
	"github.com/vango-dev/rxbind/pkg/reactive"
)

// DefaultMaxWait bounds render postponement when a session's generator
// commits faster than the throttle window.
const DefaultMaxWait = 250 * time.Millisecond

// Config configures a Server.
type Config struct {
	// Factory creates the data source of each session's view-model.
	// Default: datasource.NewFactory().
	Factory datasource.Factory

	// Throttle is the render throttle window.
	// Default: 50ms.
	Throttle time.Duration

	// MaxWait bounds how long a continuous burst may postpone a render.
	// A negative value disables the bound.
	// Default: 250ms.
	MaxWait time.Duration

	// Interval is the interval-mode period. Zero uses the source default.
	Interval time.Duration

	// QueueSize is the per-session dispatch queue size.
	// Default: 256.
	QueueSize int

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 1024.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// WriteTimeout is the deadline for one frame write.
	// Default: 5 seconds.
	WriteTimeout time.Duration

	// CheckOrigin validates the WebSocket handshake origin. Nil accepts
	// same-origin requests only.
	CheckOrigin func(r *http.Request) bool

	// Logger is the structured logger for the server and its sessions.
	// Default: slog.Default().
	Logger *slog.Logger

	// Metrics records session, render and command metrics. Nil disables
	// recording.
	Metrics *metrics.Metrics

	// Tracer traces generator commands. Nil uses the global provider.
	Tracer trace.Tracer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Factory:         datasource.NewFactory(),
		Throttle:        reactive.DefaultThrottleWindow,
		MaxWait:         DefaultMaxWait,
		QueueSize:       dispatch.DefaultQueueSize,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		WriteTimeout:    5 * time.Second,
		Logger:          slog.Default(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Factory == nil {
		c.Factory = d.Factory
	}
	if c.Throttle <= 0 {
		c.Throttle = d.Throttle
	}
	if c.MaxWait == 0 {
		c.MaxWait = d.MaxWait
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = d.ReadBufferSize
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = d.WriteBufferSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	return c
}
