// Package dispatch provides a single-goroutine execution context that
// presentation surfaces use to run render callbacks in order.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/rxbind/pkg/metrics"
)

// DefaultQueueSize is the default capacity of a Loop's queue.
const DefaultQueueSize = 256

// ErrClosed is returned by Sync on a closed loop.
var ErrClosed = errors.New("dispatch: loop closed")

// Option configures a Loop.
type Option func(*Loop)

// WithQueueSize sets the queue capacity.
func WithQueueSize(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.queueSize = n
		}
	}
}

// WithLogger sets the loop's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithMetrics records recovered panics and dropped tasks.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loop) {
		l.metrics = m
	}
}

// Loop runs dispatched functions one at a time on its own goroutine, in
// the order they were queued. A panicking function is logged and the loop
// continues.
type Loop struct {
	queueSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics

	queue     chan func()
	done      chan struct{}
	exited    chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once

	// gid is the goroutine id of the loop, for OnLoop.
	gid atomic.Uint64
}

// NewLoop starts a Loop.
func NewLoop(opts ...Option) *Loop {
	l := &Loop{
		queueSize: DefaultQueueSize,
		logger:    slog.Default(),
		done:      make(chan struct{}),
		exited:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.queue = make(chan func(), l.queueSize)

	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.exited)
	l.gid.Store(goroutineID())

	for {
		select {
		case fn := <-l.queue:
			l.execute(fn)
		case <-l.done:
			// Drain what was queued before Close.
			for {
				select {
				case fn := <-l.queue:
					l.execute(fn)
				default:
					return
				}
			}
		}
	}
}

func (l *Loop) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.metrics.RecordDispatchPanic()
			l.logger.Error("dispatch panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Dispatch queues fn. It never blocks: when the queue is full fn is
// dropped and a warning logged. Dispatch on a closed loop is a no-op.
func (l *Loop) Dispatch(fn func()) {
	if fn == nil || l.closed.Load() {
		return
	}
	select {
	case l.queue <- fn:
	case <-l.done:
	default:
		l.metrics.RecordDispatchDrop()
		l.logger.Warn("dispatch queue full, discarding callback")
	}
}

// Sync queues fn and waits for it to run. Calling Sync from the loop
// itself runs fn inline.
func (l *Loop) Sync(ctx context.Context, fn func()) error {
	if l.OnLoop() {
		fn()
		return nil
	}
	if l.closed.Load() {
		return ErrClosed
	}

	ran := make(chan struct{})
	task := func() {
		defer close(ran)
		fn()
	}
	select {
	case l.queue <- task:
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ran:
		return nil
	case <-l.exited:
		select {
		case <-ran:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OnLoop reports whether the caller is running on the loop goroutine.
func (l *Loop) OnLoop() bool {
	gid := l.gid.Load()
	return gid != 0 && gid == goroutineID()
}

// Close stops accepting work, runs what is already queued and waits for
// the loop to exit. Safe to call more than once; calling it from the loop
// itself does not wait.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		close(l.done)
	})
	if !l.OnLoop() {
		<-l.exited
	}
}

// Done is closed once the loop has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.exited
}
