// Package reactive provides the stream primitives the rest of rxbind is built on.
//
// A Stream is a restartable producer: every Subscribe call starts a fresh
// subscription and returns a Disposable that stops it. Hot sources (Subject,
// Property) multicast to every current subscriber; cold sources built with
// StreamFunc run their producer once per subscriber.
//
// # Core Types
//
// Property[T] is an observable value container:
//
//	running := NewProperty(false)
//	running.Set(true)                  // notifies Changed() subscribers
//	sub := running.Changed().Subscribe(OnNext(func(v bool) {
//	    fmt.Println("running:", v)
//	}))
//	defer sub.Dispose()
//
// Subject[T] is a hot multicast stream with explicit completion.
//
// # Operators
//
// Map, Filter, Merge, Switch and Throttle compose streams without ambient
// schedulers. Throttle takes an explicit Clock so tests can drive time.
//
// # Teardown
//
// Every subscription returns a Disposable whose Dispose is idempotent.
// Cleanups collects teardown actions and runs them back-to-front.
package reactive
