// Package binding schedules renders of a view-model onto a presentation
// surface.
//
// A Binding merges the view-model's property changes, changes of the bound
// view-model reference and any structural sources added later into one
// dirty signal. Bursts are coalesced by a trailing throttle window and the
// render is dispatched onto the surface's execution context:
//
//	b := binding.New[*viewmodel.ViewModel](surface)
//	defer b.Dispose()
//	b.OnFirstPaint(func() { b.AddSource(vm.Numbers().Changed()) })
//	b.SetViewModel(vm)
package binding

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/vango-dev/rxbind/pkg/metrics"
	"github.com/vango-dev/rxbind/pkg/reactive"
)

// Bindable is a view-model a Binding can observe. The zero value means
// "no view-model".
type Bindable interface {
	comparable
	reactive.Notifier
}

// Binding connects one view-model at a time to a Surface.
type Binding[V Bindable] struct {
	id      string
	surface Surface
	clock   reactive.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics

	viewModel *reactive.Property[V]
	throttler *reactive.Throttler

	mu           sync.Mutex
	sources      []reactive.Stream[reactive.Unit]
	sub          reactive.Disposable
	active       bool
	painted      bool
	onFirstPaint []func()
	onActivate   []func(*reactive.Cleanups)
	attached     reactive.Cleanups

	disposed atomic.Bool
	renders  atomic.Uint64

	activated   *reactive.Subject[reactive.Unit]
	deactivated *reactive.Subject[reactive.Unit]
}

// New creates an inactive binding rendering to surface.
func New[V Bindable](surface Surface, opts ...Option) *Binding[V] {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.clock == nil {
		config.clock = reactive.SystemClock()
	}

	id := ulid.Make().String()
	b := &Binding[V]{
		id:          id,
		surface:     surface,
		clock:       config.clock,
		logger:      config.logger.With("binding_id", id),
		metrics:     config.metrics,
		viewModel:   reactive.NewProperty(*new(V)).WithEquals(func(a, b V) bool { return a == b }),
		activated:   reactive.NewSubject[reactive.Unit](),
		deactivated: reactive.NewSubject[reactive.Unit](),
	}
	b.throttler = reactive.NewThrottler(config.window, config.clock, b.dispatchRender).
		WithMaxWait(config.maxWait)
	return b
}

// ID returns the binding's unique id.
func (b *Binding[V]) ID() string {
	return b.id
}

// ViewModel returns the bound view-model.
func (b *Binding[V]) ViewModel() V {
	return b.viewModel.Get()
}

// Activated fires once, when the binding is first wired to a view-model.
func (b *Binding[V]) Activated() reactive.Stream[reactive.Unit] {
	return b.activated
}

// Deactivated fires once during Dispose, before the binding's
// subscriptions are released. It does not fire for a binding that was
// never activated.
func (b *Binding[V]) Deactivated() reactive.Stream[reactive.Unit] {
	return b.deactivated
}

// IsActive reports whether the binding is wired and not disposed.
func (b *Binding[V]) IsActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active && !b.disposed.Load()
}

// Renders returns the number of render callbacks run.
func (b *Binding[V]) Renders() uint64 {
	return b.renders.Load()
}

// SetViewModel binds vm. Rebinding to a different instance is itself a
// change and schedules a render. The first non-zero view-model activates
// the binding.
func (b *Binding[V]) SetViewModel(vm V) {
	if b.disposed.Load() {
		return
	}
	b.viewModel.Set(vm)

	var zero V
	if vm != zero {
		b.activate()
	}
}

// merged builds the dirty stream over the current view-model and sources.
func (b *Binding[V]) merged(sources []reactive.Stream[reactive.Unit]) reactive.Stream[reactive.Unit] {
	var zero V
	reference := reactive.Signals(b.viewModel.Changed())
	properties := reactive.Switch(reactive.Map(b.viewModel.Observe(), func(vm V) reactive.Stream[reactive.Unit] {
		if vm == zero {
			return reactive.Empty[reactive.Unit]()
		}
		return reactive.Signals(vm.Changed())
	}))

	streams := make([]reactive.Stream[reactive.Unit], 0, len(sources)+2)
	streams = append(streams, reference, properties)
	streams = append(streams, sources...)
	return reactive.Merge(streams...)
}

func (b *Binding[V]) subscribeLocked() reactive.Disposable {
	return b.merged(b.sources).Subscribe(reactive.OnNext(func(reactive.Unit) {
		b.signal()
	}))
}

func (b *Binding[V]) activate() {
	b.mu.Lock()
	if b.active || b.disposed.Load() {
		b.mu.Unlock()
		return
	}
	b.active = true
	b.sub = b.subscribeLocked()
	hooks := b.onActivate
	b.onActivate = nil
	b.mu.Unlock()

	b.logger.Debug("binding activated")
	for _, fn := range hooks {
		fn(&b.attached)
	}
	b.activated.Next(reactive.Unit{})
	b.signal()
}

// WhenActivated registers fn to run when the binding activates, or
// immediately if it already has. Resources added to the Cleanups are
// released on Dispose, right after Deactivated fires.
func (b *Binding[V]) WhenActivated(fn func(*reactive.Cleanups)) {
	b.mu.Lock()
	if b.disposed.Load() {
		b.mu.Unlock()
		return
	}
	if !b.active {
		b.onActivate = append(b.onActivate, fn)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	fn(&b.attached)
}

// AddSource merges src into the dirty stream. On an active binding the
// current subscription is replaced: the new one is live before the old
// one is released, and both feed the same throttle stage, so no change is
// missed and an in-flight burst still renders once.
func (b *Binding[V]) AddSource(src reactive.Stream[reactive.Unit]) {
	b.mu.Lock()
	if b.disposed.Load() {
		b.mu.Unlock()
		return
	}
	b.sources = append(b.sources, src)
	if !b.active {
		b.mu.Unlock()
		return
	}
	old := b.sub
	b.sub = b.subscribeLocked()
	n := len(b.sources)
	b.mu.Unlock()

	old.Dispose()
	b.logger.Debug("binding source added", "sources", n)
}

// OnFirstPaint registers fn to run when the surface reports its first
// paint, or immediately if it already has.
func (b *Binding[V]) OnFirstPaint(fn func()) {
	b.mu.Lock()
	if !b.painted {
		b.onFirstPaint = append(b.onFirstPaint, fn)
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	fn()
}

// FirstPaintComplete is the surface's first-paint hook. Only the first
// call runs the OnFirstPaint callbacks.
func (b *Binding[V]) FirstPaintComplete() {
	b.mu.Lock()
	if b.painted {
		b.mu.Unlock()
		return
	}
	b.painted = true
	hooks := b.onFirstPaint
	b.onFirstPaint = nil
	b.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func (b *Binding[V]) signal() {
	if b.disposed.Load() {
		return
	}
	b.metrics.RecordDirtySignal()
	b.throttler.Signal()
}

func (b *Binding[V]) dispatchRender() {
	if b.disposed.Load() {
		return
	}
	b.surface.Dispatch(b.render)
}

// render runs on the surface's context.
func (b *Binding[V]) render() {
	if b.disposed.Load() {
		return
	}

	start := b.clock.Now()
	errType := ""
	defer func() {
		if r := recover(); r != nil {
			errType = "panic"
			b.logger.Error("render panic",
				"panic", r,
				"stack", string(debug.Stack()))
		}
		b.renders.Add(1)
		b.metrics.RecordRender(b.clock.Now().Sub(start), errType)
	}()

	if err := b.surface.Render(); err != nil {
		errType = "error"
		b.logger.Error("render failed", "error", fmt.Errorf("binding %s: %w", b.id, err))
	}
}

// Dispose tears the binding down: Deactivated fires, then the
// subscriptions, the WhenActivated resources and the throttle stage are
// released. No render runs after Dispose returns, except one the surface
// was already executing. Safe to call more than once.
func (b *Binding[V]) Dispose() {
	if b.disposed.Swap(true) {
		return
	}

	b.mu.Lock()
	wasActive := b.active
	sub := b.sub
	b.sub = nil
	b.active = false
	b.onActivate = nil
	b.onFirstPaint = nil
	b.mu.Unlock()

	if wasActive {
		b.deactivated.Next(reactive.Unit{})
		b.logger.Debug("binding deactivated", "renders", b.renders.Load())
	}
	if sub != nil {
		sub.Dispose()
	}
	b.attached.Dispose()
	b.throttler.Stop()

	b.activated.Complete()
	b.deactivated.Complete()
	b.viewModel.Close()
}
