package observable

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/rxbind/pkg/changeset"
	"github.com/vango-dev/rxbind/pkg/metrics"
	"github.com/vango-dev/rxbind/pkg/reactive"
)

// ViewOption configures a View.
type ViewOption func(*viewConfig)

type viewConfig struct {
	name    string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// WithName labels the view in log output.
func WithName(name string) ViewOption {
	return func(c *viewConfig) {
		c.name = name
	}
}

// WithLogger sets the logger used to report ChangeSets that cannot be
// applied.
func WithLogger(logger *slog.Logger) ViewOption {
	return func(c *viewConfig) {
		c.logger = logger
	}
}

// WithMetrics records every applied ChangeSet.
func WithMetrics(m *metrics.Metrics) ViewOption {
	return func(c *viewConfig) {
		c.metrics = m
	}
}

// View is a read-only projection of a ChangeSet stream. It has no mutation
// API; its contents change only by applying upstream ChangeSets.
type View[T any] struct {
	mu    sync.RWMutex
	items []T

	changes  *reactive.Subject[changeset.ChangeSet[T]]
	sub      reactive.Disposable
	subMu    sync.Mutex
	disposed atomic.Bool

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Bind subscribes a new View to src. With a List's Connect stream the view
// is populated synchronously before Bind returns.
func Bind[T any](src reactive.Stream[changeset.ChangeSet[T]], opts ...ViewOption) *View[T] {
	config := viewConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&config)
	}

	logger := config.logger
	if config.name != "" {
		logger = logger.With("view", config.name)
	}

	v := &View[T]{
		changes: reactive.NewSubject[changeset.ChangeSet[T]](),
		logger:  logger,
		metrics: config.metrics,
	}

	sub := src.Subscribe(reactive.Observer[changeset.ChangeSet[T]]{
		Next:     v.apply,
		Complete: v.changes.Complete,
	})

	v.subMu.Lock()
	v.sub = sub
	v.subMu.Unlock()
	if v.disposed.Load() {
		sub.Dispose()
	}
	return v
}

func (v *View[T]) apply(cs changeset.ChangeSet[T]) {
	if v.disposed.Load() || len(cs) == 0 {
		return
	}

	v.mu.Lock()
	next, err := cs.Apply(v.items)
	if err != nil {
		v.mu.Unlock()
		v.logger.Error("change set rejected, keeping previous contents",
			"error", err,
			"changes", len(cs),
			"len", len(v.items))
		return
	}
	v.items = next
	v.mu.Unlock()

	v.metrics.RecordChangeSet(kinds(cs))
	v.changes.Next(cs)
}

func kinds[T any](cs changeset.ChangeSet[T]) map[string]int {
	out := make(map[string]int, 2)
	for _, c := range cs {
		out[c.Kind.String()]++
	}
	return out
}

// Changes re-emits every ChangeSet after it has been applied to the view.
func (v *View[T]) Changes() reactive.Stream[changeset.ChangeSet[T]] {
	return v.changes
}

// Changed emits once per applied ChangeSet.
func (v *View[T]) Changed() reactive.Stream[reactive.Unit] {
	return reactive.Signals[changeset.ChangeSet[T]](v.changes)
}

// Items returns a copy of the current contents.
func (v *View[T]) Items() []T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.items)
}

// Len returns the number of elements.
func (v *View[T]) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.items)
}

// At returns the element at index and whether it exists.
func (v *View[T]) At(index int) (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if index < 0 || index >= len(v.items) {
		var zero T
		return zero, false
	}
	return v.items[index], true
}

// Dispose unsubscribes from the source and completes Changes. The contents
// are frozen at their last state. Safe to call more than once.
func (v *View[T]) Dispose() {
	if v.disposed.Swap(true) {
		return
	}

	v.subMu.Lock()
	sub := v.sub
	v.subMu.Unlock()
	if sub != nil {
		sub.Dispose()
	}
	v.changes.Complete()
}

// IsDisposed reports whether Dispose has been called.
func (v *View[T]) IsDisposed() bool {
	return v.disposed.Load()
}
