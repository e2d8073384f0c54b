// Package viewmodel exposes a data source and its generator command as
// observable state for a binding to render.
package viewmodel

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/rxbind/pkg/command"
	"github.com/vango-dev/rxbind/pkg/datasource"
	"github.com/vango-dev/rxbind/pkg/metrics"
	"github.com/vango-dev/rxbind/pkg/observable"
	"github.com/vango-dev/rxbind/pkg/reactive"
)

// ErrDisposed is returned by operations on a disposed ViewModel.
var ErrDisposed = errors.New("viewmodel: disposed")

// Property names published on Changed.
const (
	PropRunning           = "Running"
	PropRunningObservable = "RunningObservable"
	PropNumbersChanged    = "NumbersChanged"
)

// Option configures a ViewModel.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	interval time.Duration
}

// WithLogger sets the logger shared by the view-model's components.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records command results and applied change sets.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer sets the tracer for generator command spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithInterval sets the interval-mode period. Zero uses the source's
// default.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		o.interval = d
	}
}

// ViewModel drives one data source in either triggered mode (a Command
// running Source.Generate) or interval mode (Source.GenerateEvery).
//
// Running and RunningObservable are tracked independently. Starting both
// modes at once is not prevented; both generators then write to the same
// list and whichever committed last is visible.
type ViewModel struct {
	source   datasource.Source
	numbers  *observable.View[int]
	generate *command.Command
	logger   *slog.Logger
	interval time.Duration

	running           *reactive.Property[bool]
	runningObservable *reactive.Property[bool]
	numbersChanged    *reactive.Property[uint64]

	// mu serializes the public operations.
	mu       sync.Mutex
	exec     *command.Execution
	ticker   reactive.Disposable
	disposed bool

	cleanups reactive.Cleanups
}

// New resolves one Source from factory and wires the view-model around it.
func New(factory datasource.Factory, opts ...Option) *ViewModel {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	source := factory()
	vm := &ViewModel{
		source:            source,
		logger:            o.logger.With("component", "viewmodel"),
		interval:          o.interval,
		running:           reactive.NewProperty(false),
		runningObservable: reactive.NewProperty(false),
		numbersChanged:    reactive.NewProperty[uint64](0),
	}
	vm.cleanups.Add(source.Dispose)

	vm.numbers = observable.Bind(source.Changes(),
		observable.WithName("numbers"),
		observable.WithLogger(o.logger),
		observable.WithMetrics(o.metrics))
	vm.cleanups.Add(vm.numbers.Dispose)

	cmdOpts := []command.Option{
		command.WithName("generate"),
		command.WithLogger(o.logger),
		command.WithMetrics(o.metrics),
	}
	if o.tracer != nil {
		cmdOpts = append(cmdOpts, command.WithTracer(o.tracer))
	}
	vm.generate = command.New(source.Generate, cmdOpts...)

	executing := vm.generate.IsExecuting()
	vm.cleanups.AddDisposable(executing.Observe().Subscribe(reactive.OnNext(func(bool) {
		// Re-read under the update so racing notifications settle on the
		// latest value.
		vm.running.Update(func(bool) bool { return executing.Get() })
	})))
	vm.cleanups.AddDisposable(vm.numbers.Changed().Subscribe(reactive.OnNext(func(reactive.Unit) {
		vm.numbersChanged.Update(func(n uint64) uint64 { return n + 1 })
	})))
	vm.cleanups.Add(vm.generate.Dispose)

	return vm
}

// Numbers is the read-only view of the generated values.
func (vm *ViewModel) Numbers() *observable.View[int] {
	return vm.numbers
}

// Running reports whether the triggered-mode command is executing.
func (vm *ViewModel) Running() bool {
	return vm.running.Get()
}

// RunningObservable reports whether interval mode is active.
func (vm *ViewModel) RunningObservable() bool {
	return vm.runningObservable.Get()
}

// NumbersChanged counts structural batches applied to Numbers.
func (vm *ViewModel) NumbersChanged() uint64 {
	return vm.numbersChanged.Get()
}

// Changed emits the name of each property that changes.
func (vm *ViewModel) Changed() reactive.Stream[reactive.PropertyChange] {
	return reactive.Merge(
		reactive.Notify(PropRunning, vm.running),
		reactive.Notify(PropRunningObservable, vm.runningObservable),
		reactive.Notify(PropNumbersChanged, vm.numbersChanged),
	)
}

// Faults emits the error of every failed generator run.
func (vm *ViewModel) Faults() reactive.Stream[error] {
	return vm.generate.Errors()
}

// Results emits the outcome of every generator run.
func (vm *ViewModel) Results() reactive.Stream[command.Result] {
	return vm.generate.Results()
}

// Start runs the generator command, canceling and resetting a run already
// in progress first.
func (vm *ViewModel) Start() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.disposed {
		return ErrDisposed
	}

	if vm.running.Get() {
		vm.cancelLocked()
	}
	vm.exec = vm.generate.Start()
	return nil
}

// Cancel stops the generator command, waits for its body to return and
// clears the list. Afterwards Running is false and Numbers is empty.
func (vm *ViewModel) Cancel() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.disposed {
		return ErrDisposed
	}

	vm.cancelLocked()
	return nil
}

func (vm *ViewModel) cancelLocked() {
	if vm.exec != nil {
		vm.exec.Dispose()
		<-vm.exec.Done()
		vm.exec = nil
	}
	vm.clear()
}

func (vm *ViewModel) clear() {
	if err := vm.source.Clear(); err != nil {
		vm.logger.Warn("clear failed", "error", err)
	}
}

// StartObservable starts interval mode, restarting it if already active.
func (vm *ViewModel) StartObservable() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.disposed {
		return ErrDisposed
	}

	if vm.ticker != nil {
		vm.ticker.Dispose()
	}
	vm.runningObservable.Set(true)
	vm.ticker = vm.source.GenerateEvery(vm.interval)
	return nil
}

// CancelObservable stops interval mode and clears the list.
func (vm *ViewModel) CancelObservable() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.disposed {
		return ErrDisposed
	}

	vm.stopTickerLocked()
	vm.clear()
	vm.runningObservable.Set(false)
	return nil
}

func (vm *ViewModel) stopTickerLocked() {
	if vm.ticker != nil {
		vm.ticker.Dispose()
		vm.ticker = nil
	}
}

// Dispose stops whichever mode is active and releases the view and the
// source. Safe to call more than once.
func (vm *ViewModel) Dispose() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.disposed {
		return
	}
	vm.disposed = true

	vm.stopTickerLocked()
	vm.runningObservable.Set(false)
	vm.exec = nil
	vm.cleanups.Dispose()

	vm.running.Close()
	vm.runningObservable.Close()
	vm.numbersChanged.Close()
}
