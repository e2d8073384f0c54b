package reactive

import (
	"reflect"
	"sync"
)

// Property is an observable value container. Set and Update notify
// Changed() subscribers only when the value actually changes.
type Property[T any] struct {
	// value is the current property value.
	value T

	// mu protects the value.
	mu sync.RWMutex

	// equal decides whether a write changes the value.
	// If nil, uses default equality checking.
	equal func(T, T) bool

	// changed carries every new value.
	changed *Subject[T]
}

// NewProperty creates a property holding initial.
func NewProperty[T any](initial T) *Property[T] {
	return &Property[T]{
		value:   initial,
		changed: NewSubject[T](),
	}
}

// Get returns the current value.
func (p *Property[T]) Get() T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Set stores value and notifies subscribers if it differs from the current
// value. Returns whether the value changed.
func (p *Property[T]) Set(value T) bool {
	p.mu.Lock()
	changed := !p.equals(p.value, value)
	if changed {
		p.value = value
	}
	p.mu.Unlock()

	// Notify after releasing the lock so subscribers may read the property.
	if changed {
		p.changed.Next(value)
	}
	return changed
}

// Update atomically reads and replaces the value. fn runs with the property
// locked, so it must not access this property.
func (p *Property[T]) Update(fn func(T) T) bool {
	p.mu.Lock()
	oldValue := p.value
	newValue := fn(oldValue)
	changed := !p.equals(oldValue, newValue)
	if changed {
		p.value = newValue
	}
	p.mu.Unlock()

	if changed {
		p.changed.Next(newValue)
	}
	return changed
}

// WithEquals configures a custom equality function and returns p.
func (p *Property[T]) WithEquals(fn func(T, T) bool) *Property[T] {
	p.equal = fn
	return p
}

// Changed returns a hot stream of new values. The current value is not
// replayed; use Observe for that.
func (p *Property[T]) Changed() Stream[T] {
	return p.changed
}

// Observe returns a stream that emits the current value on subscribe and
// every change afterwards.
func (p *Property[T]) Observe() Stream[T] {
	return StreamFunc[T](func(o Observer[T]) Disposable {
		sub := p.changed.Subscribe(o)
		o.next(p.Get())
		return sub
	})
}

// Close completes the Changed stream. Later writes still update the value
// but notify nobody.
func (p *Property[T]) Close() {
	p.changed.Complete()
}

func (p *Property[T]) equals(a, b T) bool {
	if p.equal != nil {
		return p.equal(a, b)
	}
	return defaultEquals(a, b)
}

// defaultEquals provides type-appropriate equality checking.
// Uses == for common comparable types and reflect.DeepEqual for others.
func defaultEquals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		return av == any(b).(int)
	case int64:
		return av == any(b).(int64)
	case uint64:
		return av == any(b).(uint64)
	case float64:
		return av == any(b).(float64)
	case string:
		return av == any(b).(string)
	case bool:
		return av == any(b).(bool)
	default:
		return reflect.DeepEqual(a, b)
	}
}

// PropertyChange names the property of a view-model that changed.
type PropertyChange struct {
	Name string
}

// Notifier is implemented by view-models that publish property changes.
type Notifier interface {
	Changed() Stream[PropertyChange]
}

// Notify maps a property's changes to PropertyChange notifications.
func Notify[T any](name string, p *Property[T]) Stream[PropertyChange] {
	return Map(p.Changed(), func(T) PropertyChange {
		return PropertyChange{Name: name}
	})
}
