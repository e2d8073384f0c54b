package reactive

import (
	"sync"
	"sync/atomic"
)

// Map transforms every value of src with fn.
func Map[T, R any](src Stream[T], fn func(T) R) Stream[R] {
	return StreamFunc[R](func(o Observer[R]) Disposable {
		return src.Subscribe(Observer[T]{
			Next:     func(v T) { o.next(fn(v)) },
			Complete: o.complete,
		})
	})
}

// Filter forwards only the values of src for which keep returns true.
func Filter[T any](src Stream[T], keep func(T) bool) Stream[T] {
	return StreamFunc[T](func(o Observer[T]) Disposable {
		return src.Subscribe(Observer[T]{
			Next: func(v T) {
				if keep(v) {
					o.next(v)
				}
			},
			Complete: o.complete,
		})
	})
}

// Signals discards the payload of src, keeping only the notification.
func Signals[T any](src Stream[T]) Stream[Unit] {
	return Map(src, func(T) Unit { return Unit{} })
}

// Merge interleaves the values of all streams. It completes once every
// source has completed.
//
// Merge does not serialize delivery: sources emitting from different
// goroutines call the observer concurrently.
func Merge[T any](streams ...Stream[T]) Stream[T] {
	return StreamFunc[T](func(o Observer[T]) Disposable {
		if len(streams) == 0 {
			o.complete()
			return Disposed
		}

		var (
			remaining atomic.Int32
			stopped   atomic.Bool
			subs      Cleanups
		)
		remaining.Store(int32(len(streams)))

		for _, s := range streams {
			subs.AddDisposable(s.Subscribe(Observer[T]{
				Next: func(v T) {
					if !stopped.Load() {
						o.next(v)
					}
				},
				Complete: func() {
					if remaining.Add(-1) == 0 && !stopped.Load() {
						o.complete()
					}
				},
			}))
		}

		return NewDisposable(func() {
			stopped.Store(true)
			subs.Dispose()
		})
	})
}

// Switch subscribes to the most recent inner stream emitted by src,
// disposing the previous inner subscription first. Values from a replaced
// inner stream are dropped. Completes when src and the current inner stream
// have both completed.
func Switch[T any](src Stream[Stream[T]]) Stream[T] {
	return StreamFunc[T](func(o Observer[T]) Disposable {
		var (
			mu        sync.Mutex
			gen       uint64
			inner     = Disposed
			innerDone = true
			outerDone bool
			stopped   bool
			once      sync.Once
		)
		complete := func() { once.Do(o.complete) }

		outer := src.Subscribe(Observer[Stream[T]]{
			Next: func(s Stream[T]) {
				mu.Lock()
				if stopped {
					mu.Unlock()
					return
				}
				gen++
				g := gen
				prev := inner
				inner = Disposed
				innerDone = false
				mu.Unlock()

				prev.Dispose()

				d := s.Subscribe(Observer[T]{
					Next: func(v T) {
						mu.Lock()
						current := g == gen && !stopped
						mu.Unlock()
						if current {
							o.next(v)
						}
					},
					Complete: func() {
						mu.Lock()
						if g != gen {
							mu.Unlock()
							return
						}
						innerDone = true
						done := outerDone
						mu.Unlock()
						if done {
							complete()
						}
					},
				})

				mu.Lock()
				if g == gen && !stopped {
					inner = d
					mu.Unlock()
					return
				}
				mu.Unlock()
				d.Dispose()
			},
			Complete: func() {
				mu.Lock()
				outerDone = true
				done := innerDone
				mu.Unlock()
				if done {
					complete()
				}
			},
		})

		return NewDisposable(func() {
			mu.Lock()
			stopped = true
			d := inner
			inner = Disposed
			mu.Unlock()

			outer.Dispose()
			d.Dispose()
		})
	})
}
