package reactive

import (
	"sync"
	"sync/atomic"
)

// Unit is the payload of pure notification streams.
type Unit struct{}

// Observer receives the values of a Stream. Either callback may be nil.
type Observer[T any] struct {
	// Next is called once per emitted value.
	Next func(T)

	// Complete is called once when the stream ends normally.
	Complete func()
}

// OnNext returns an Observer that only handles values.
func OnNext[T any](fn func(T)) Observer[T] {
	return Observer[T]{Next: fn}
}

func (o Observer[T]) next(v T) {
	if o.Next != nil {
		o.Next(v)
	}
}

func (o Observer[T]) complete() {
	if o.Complete != nil {
		o.Complete()
	}
}

// Stream is a source of values that can be subscribed to any number of
// times. Disposing the returned Disposable stops delivery to that observer.
type Stream[T any] interface {
	Subscribe(o Observer[T]) Disposable
}

// StreamFunc adapts a producer function to a Stream. The producer runs once
// per Subscribe call, which makes StreamFunc streams restartable.
type StreamFunc[T any] func(o Observer[T]) Disposable

// Subscribe runs the producer for o.
func (f StreamFunc[T]) Subscribe(o Observer[T]) Disposable {
	d := f(o)
	if d == nil {
		return Disposed
	}
	return d
}

// Empty returns a stream that completes immediately on subscribe.
func Empty[T any]() Stream[T] {
	return StreamFunc[T](func(o Observer[T]) Disposable {
		o.complete()
		return Disposed
	})
}

// Never returns a stream that never emits and never completes.
func Never[T any]() Stream[T] {
	return StreamFunc[T](func(Observer[T]) Disposable {
		return Disposed
	})
}

// subscriber is one registered observer of a Subject.
type subscriber[T any] struct {
	id  uint64
	obs Observer[T]

	// active is cleared on Dispose; deliveries that start afterwards are
	// skipped.
	active atomic.Bool
}

// Subject is a hot stream that multicasts values to its current subscribers
// in emission order. Values emitted before a Subscribe call are not replayed.
//
// Next and Complete deliver synchronously on the caller's goroutine.
type Subject[T any] struct {
	// subs are the observers subscribed to this subject.
	subs []*subscriber[T]

	// done is set once Complete has been called.
	done bool

	// mu protects subs and done.
	mu sync.RWMutex
}

// NewSubject creates an empty Subject.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{}
}

// Subscribe registers o. Subscribing to a completed subject completes o
// immediately.
func (s *Subject[T]) Subscribe(o Observer[T]) Disposable {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		o.complete()
		return Disposed
	}
	sub := &subscriber[T]{id: nextID(), obs: o}
	sub.active.Store(true)
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	return NewDisposable(func() {
		sub.active.Store(false)
		s.remove(sub.id)
	})
}

func (s *Subject[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.subs {
		if existing.id == id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// snapshot copies the subscriber list so delivery happens without s.mu held.
func (s *Subject[T]) snapshot() []*subscriber[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subs := make([]*subscriber[T], len(s.subs))
	copy(subs, s.subs)
	return subs
}

// Next delivers v to every current subscriber. It is a no-op after Complete.
func (s *Subject[T]) Next(v T) {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	if done {
		return
	}

	for _, sub := range s.snapshot() {
		sub.deliver(v)
	}
}

func (sub *subscriber[T]) deliver(v T) {
	if sub.active.Load() {
		sub.obs.next(v)
	}
}

// Complete ends the stream: every subscriber receives Complete once and is
// released. Later calls are no-ops.
func (s *Subject[T]) Complete() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		if sub.active.CompareAndSwap(true, false) {
			sub.obs.complete()
		}
	}
}

// IsCompleted reports whether Complete has been called.
func (s *Subject[T]) IsCompleted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

// Len returns the number of current subscribers.
func (s *Subject[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
