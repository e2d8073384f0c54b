// Package command provides a cancellable asynchronous operation with at
// most one body running at a time and its execution state exposed as
// observable properties.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/rxbind/pkg/metrics"
	"github.com/vango-dev/rxbind/pkg/reactive"
)

const tracerName = "rxbind"

var (
	// ErrPanicked wraps a panic recovered from a command body.
	ErrPanicked = errors.New("command: body panicked")

	// ErrDisposed is the fault reported by Start after Dispose.
	ErrDisposed = errors.New("command: disposed")
)

// Func is the body of a command. It must return promptly once ctx is
// canceled.
type Func func(ctx context.Context) error

// Command runs a Func asynchronously.
//
// Start while an execution is in flight cancels it, and the new body does
// not begin until the previous body has returned. Faults are published on
// Errors and never stop later Starts from working.
type Command struct {
	name    string
	do      Func
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics.Metrics
	base    context.Context

	mu       sync.Mutex
	current  *Execution
	seq      uint64
	last     Result
	disposed bool

	executing *reactive.Property[bool]
	state     *reactive.Property[State]
	results   *reactive.Subject[Result]
	errs      *reactive.Subject[error]
}

// New creates an idle command running do.
func New(do Func, opts ...Option) *Command {
	c := &Command{
		name:      "command",
		do:        do,
		logger:    slog.Default(),
		base:      context.Background(),
		executing: reactive.NewProperty(false),
		state:     reactive.NewProperty(Idle),
		results:   reactive.NewSubject[Result](),
		errs:      reactive.NewSubject[error](),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	c.logger = c.logger.With("command", c.name)
	return c
}

// Name returns the command name.
func (c *Command) Name() string {
	return c.name
}

// IsExecuting is true from Start until the latest execution resolves.
func (c *Command) IsExecuting() *reactive.Property[bool] {
	return c.executing
}

// State is the command's lifecycle state. Terminal states are published
// briefly before it returns to Idle; use Results to observe them reliably.
func (c *Command) State() *reactive.Property[State] {
	return c.state
}

// Results emits one Result per execution, including superseded ones.
func (c *Command) Results() reactive.Stream[Result] {
	return c.results
}

// Errors emits the error of every faulted execution.
func (c *Command) Errors() reactive.Stream[error] {
	return c.errs
}

// LastResult returns the most recent Result and false if no execution has
// finished yet.
func (c *Command) LastResult() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.last.Seq != 0
}

// Current returns the in-flight execution, or nil when idle.
func (c *Command) Current() *Execution {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Start begins a new execution, canceling the one in flight.
func (c *Command) Start() *Execution {
	c.mu.Lock()
	c.seq++
	ctx, cancel := context.WithCancel(c.base)
	exec := &Execution{
		seq:     c.seq,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		started: time.Now(),
	}
	if c.disposed {
		c.mu.Unlock()
		cancel()
		exec.result = Result{Seq: exec.seq, State: Faulted, Err: ErrDisposed, Started: exec.started}
		close(exec.done)
		return exec
	}
	prev := c.current
	c.current = exec
	c.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}
	c.refresh(Idle)

	go c.run(exec, prev)
	return exec
}

// Cancel requests cancellation of the in-flight execution. Returns false
// if the command is idle.
func (c *Command) Cancel() bool {
	exec := c.Current()
	if exec == nil {
		return false
	}
	exec.Dispose()
	return true
}

// refresh recomputes the observable state from the in-flight execution.
// when is the state reported if nothing is in flight.
func (c *Command) refresh(when State) {
	c.executing.Update(func(bool) bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.current != nil
	})
	c.state.Update(func(State) State {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.current != nil {
			return Executing
		}
		return when
	})
}

func (c *Command) run(exec *Execution, prev *Execution) {
	if prev != nil {
		<-prev.done
	}

	var err error
	if exec.ctx.Err() == nil {
		err = c.invoke(exec)
	}

	state := classify(exec.ctx, err)
	if state != Faulted {
		err = nil
	}
	c.finish(exec, Result{
		Seq:      exec.seq,
		State:    state,
		Err:      err,
		Started:  exec.started,
		Duration: time.Since(exec.started),
	})
}

func (c *Command) invoke(exec *Execution) (err error) {
	ctx, span := c.tracer.Start(exec.ctx, "command."+c.name,
		trace.WithAttributes(
			attribute.String("rxbind.command", c.name),
			attribute.Int64("rxbind.seq", int64(exec.seq)),
		),
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
			c.logger.Error("command panic recovered",
				"seq", exec.seq,
				"panic", r,
				"stack", string(debug.Stack()))
		}

		state := classify(exec.ctx, err)
		span.SetAttributes(attribute.String("rxbind.state", state.String()))
		if state == Faulted {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	return c.do(ctx)
}

// classify maps a body's return value to a terminal state.
func classify(ctx context.Context, err error) State {
	switch {
	case err == nil && ctx.Err() != nil:
		return Canceled
	case err == nil:
		return Completed
	case errors.Is(err, context.Canceled):
		return Canceled
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return Canceled
	default:
		return Faulted
	}
}

func (c *Command) finish(exec *Execution, res Result) {
	exec.result = res

	c.mu.Lock()
	latest := c.current == exec
	if latest {
		c.current = nil
	}
	c.last = res
	c.mu.Unlock()

	if latest {
		c.refresh(res.State)
		c.refresh(Idle)
	}

	c.metrics.RecordCommand(c.name, res.State.String(), res.Duration)
	switch res.State {
	case Faulted:
		c.logger.Warn("command faulted", "seq", res.Seq, "error", res.Err, "duration", res.Duration)
	default:
		c.logger.Debug("command finished", "seq", res.Seq, "state", res.State.String(), "duration", res.Duration)
	}

	c.results.Next(res)
	if res.State == Faulted {
		c.errs.Next(res.Err)
	}

	exec.cancel()
	close(exec.done)
}

// Dispose cancels the in-flight execution, waits for it to resolve and
// completes the command's streams. Later Starts resolve immediately as
// Faulted with ErrDisposed. Safe to call more than once.
func (c *Command) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	exec := c.current
	c.mu.Unlock()

	if exec != nil {
		exec.Dispose()
		<-exec.Done()
	}

	c.results.Complete()
	c.errs.Complete()
	c.executing.Close()
	c.state.Close()
}

// Execution is the handle of one Start call.
type Execution struct {
	seq     uint64
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time
	result  Result
}

// Seq returns the execution's sequence number.
func (e *Execution) Seq() uint64 {
	return e.seq
}

// Dispose requests cooperative cancellation. It does not wait.
func (e *Execution) Dispose() {
	e.cancel()
}

// Done is closed once the execution has resolved and the command's state
// reflects it.
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Result returns the outcome. Only valid after Done is closed.
func (e *Execution) Result() Result {
	<-e.done
	return e.result
}

// Wait blocks until the execution resolves or ctx is done.
func (e *Execution) Wait(ctx context.Context) (Result, error) {
	select {
	case <-e.done:
		return e.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
