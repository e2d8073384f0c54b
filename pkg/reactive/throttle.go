package reactive

import (
	"sync"
	"time"
)

// DefaultThrottleWindow is the render coalescing window used by bindings.
const DefaultThrottleWindow = 50 * time.Millisecond

// Throttler coalesces bursts of signals into one trailing emission.
//
// After a Signal, emit runs once the window has elapsed with no further
// Signal. With a non-zero max wait, a continuous burst still emits no later
// than maxWait after its first signal.
//
// A Throttler is safe for concurrent use. emit runs on the clock's timer
// goroutine, never while the throttler's lock is held.
type Throttler struct {
	clock   Clock
	window  time.Duration
	maxWait time.Duration
	emit    func()

	mu      sync.Mutex
	timer   Timer
	due     time.Time
	gen     uint64
	first   time.Time
	pending bool
	stopped bool
}

// NewThrottler creates a Throttler calling emit after each quiet window.
// A nil clock means SystemClock.
func NewThrottler(window time.Duration, clock Clock, emit func()) *Throttler {
	if clock == nil {
		clock = SystemClock()
	}
	if window < 0 {
		window = 0
	}
	return &Throttler{clock: clock, window: window, emit: emit}
}

// WithMaxWait bounds how long a continuous burst may postpone the emission.
// Zero disables the bound. Returns t.
func (t *Throttler) WithMaxWait(d time.Duration) *Throttler {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maxWait = d
	return t
}

// Window returns the quiet period.
func (t *Throttler) Window() time.Duration {
	return t.window
}

// Signal records a dirty signal and (re)arms the trailing timer.
func (t *Throttler) Signal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	now := t.clock.Now()
	if !t.pending {
		t.pending = true
		t.first = now
	}

	due := now.Add(t.window)
	if t.maxWait > 0 {
		if deadline := t.first.Add(t.maxWait); due.After(deadline) {
			due = deadline
		}
	}
	// Once the deadline is armed, later signals must not postpone it.
	if t.timer != nil && due.Equal(t.due) {
		return
	}

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	g := t.gen
	t.due = due
	delay := due.Sub(now)
	if delay < 0 {
		delay = 0
	}
	t.timer = t.clock.AfterFunc(delay, func() { t.fire(g) })
}

func (t *Throttler) fire(g uint64) {
	t.mu.Lock()
	if t.stopped || g != t.gen || !t.pending {
		t.mu.Unlock()
		return
	}
	t.pending = false
	t.timer = nil
	t.mu.Unlock()

	t.emit()
}

// Pending reports whether an emission is scheduled.
func (t *Throttler) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Stop cancels any pending emission; later signals are ignored.
func (t *Throttler) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.pending = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Throttle emits the latest value of src once src has been quiet for
// window. A nil clock means SystemClock.
func Throttle[T any](src Stream[T], window time.Duration, clock Clock) Stream[T] {
	return StreamFunc[T](func(o Observer[T]) Disposable {
		var (
			mu   sync.Mutex
			last T
		)
		th := NewThrottler(window, clock, func() {
			mu.Lock()
			v := last
			mu.Unlock()
			o.next(v)
		})

		sub := src.Subscribe(Observer[T]{
			Next: func(v T) {
				mu.Lock()
				last = v
				mu.Unlock()
				th.Signal()
			},
			Complete: func() {
				flush := th.Pending()
				th.Stop()
				if flush {
					mu.Lock()
					v := last
					mu.Unlock()
					o.next(v)
				}
				o.complete()
			},
		})

		return NewDisposable(func() {
			th.Stop()
			sub.Dispose()
		})
	})
}
