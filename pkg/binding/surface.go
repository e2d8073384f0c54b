package binding

// Surface is the presentation collaborator a Binding renders to.
type Surface interface {
	// Dispatch runs fn on the surface's execution context.
	Dispatch(fn func())

	// Render redraws from live state. It is only called from a function
	// passed to Dispatch.
	Render() error
}

// Funcs adapts a pair of functions to a Surface. A nil DispatchFunc runs
// callbacks inline on the calling goroutine.
type Funcs struct {
	DispatchFunc func(fn func())
	RenderFunc   func() error
}

// Dispatch implements Surface.
func (f Funcs) Dispatch(fn func()) {
	if f.DispatchFunc == nil {
		fn()
		return
	}
	f.DispatchFunc(fn)
}

// Render implements Surface.
func (f Funcs) Render() error {
	if f.RenderFunc == nil {
		return nil
	}
	return f.RenderFunc()
}
