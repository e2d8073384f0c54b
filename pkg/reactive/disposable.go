package reactive

import "sync"

// Disposable releases a resource such as a subscription, a timer or a
// running operation. Dispose must be safe to call more than once.
type Disposable interface {
	Dispose()
}

// disposeOnce runs fn at most once.
type disposeOnce struct {
	once sync.Once
	fn   func()
}

func (d *disposeOnce) Dispose() {
	d.once.Do(func() {
		if d.fn != nil {
			d.fn()
		}
	})
}

// NewDisposable wraps fn in an idempotent Disposable.
func NewDisposable(fn func()) Disposable {
	return &disposeOnce{fn: fn}
}

type nopDisposable struct{}

func (nopDisposable) Dispose() {}

// Disposed is a Disposable that holds nothing.
var Disposed Disposable = nopDisposable{}

// Cleanups is an ordered list of teardown actions. Dispose runs them
// back-to-front, so resources acquired later are released first.
//
// The zero value is ready to use.
type Cleanups struct {
	mu       sync.Mutex
	fns      []func()
	disposed bool
}

// Add registers fn. If the list was already disposed, fn runs immediately.
func (c *Cleanups) Add(fn func()) {
	if fn == nil {
		return
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		fn()
		return
	}
	c.fns = append(c.fns, fn)
	c.mu.Unlock()
}

// AddDisposable registers d.Dispose.
func (c *Cleanups) AddDisposable(d Disposable) {
	if d == nil {
		return
	}
	c.Add(d.Dispose)
}

// Len returns the number of pending actions.
func (c *Cleanups) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fns)
}

// IsDisposed reports whether Dispose has been called.
func (c *Cleanups) IsDisposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// Dispose runs all registered actions in reverse registration order.
// Subsequent calls are no-ops.
func (c *Cleanups) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	fns := c.fns
	c.fns = nil
	c.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
