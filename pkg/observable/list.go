package observable

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/rxbind/pkg/changeset"
	"github.com/vango-dev/rxbind/pkg/reactive"
)

// List is a mutable ordered collection that publishes one ChangeSet per
// committed edit batch.
//
// Edits from different goroutines are serialized. ChangeSets are delivered
// synchronously while the edit lock is held, so every subscriber sees them
// in commit order. A subscriber must not block on another goroutine that
// edits the same list.
type List[T any] struct {
	// mu serializes edits, subscription replay and disposal.
	mu sync.Mutex

	// owner is the goroutine currently holding mu, or 0.
	owner atomic.Uint64

	// editing is true while an edit callback runs. Only touched by the
	// goroutine holding mu.
	editing bool

	// nested is set when the running edit callback attempted another edit.
	nested bool

	// items is the committed state. Only written with mu held.
	items []T

	// snapshot mirrors items for lock-free reads.
	snapshot atomic.Pointer[[]T]

	changes  *reactive.Subject[changeset.ChangeSet[T]]
	disposed bool
}

// NewList creates an empty list.
func NewList[T any]() *List[T] {
	l := &List[T]{changes: reactive.NewSubject[changeset.ChangeSet[T]]()}
	l.snapshot.Store(&[]T{})
	return l
}

// lock acquires mu unless the calling goroutine already holds it.
// The returned function releases what was acquired.
func (l *List[T]) lock() (unlock func(), reentrant bool) {
	gid := goroutineID()
	if l.owner.Load() == gid {
		return func() {}, true
	}
	l.mu.Lock()
	l.owner.Store(gid)
	return func() {
		l.owner.Store(0)
		l.mu.Unlock()
	}, false
}

// Edit runs fn against a working copy of the list and commits the staged
// operations as one ChangeSet. Nothing is emitted for an empty batch.
//
// If fn records an invalid operation, panics, or attempts a nested edit,
// the batch is discarded, the list is left unchanged and the error is
// returned.
func (l *List[T]) Edit(fn func(*Editor[T])) error {
	unlock, reentrant := l.lock()
	defer unlock()

	if reentrant {
		if l.editing {
			l.nested = true
		}
		return ErrReentrantEdit
	}
	if l.disposed {
		return ErrDisposed
	}

	ed := &Editor[T]{items: slices.Clone(l.items)}
	l.editing, l.nested = true, false
	err := runEdit(ed, fn)
	nested := l.nested
	l.editing, l.nested = false, false
	if nested && err == nil {
		err = ErrReentrantEdit
	}
	if err == nil {
		err = ed.err
	}
	if err != nil {
		return err
	}
	if len(ed.changes) == 0 {
		return nil
	}

	l.items = ed.items
	committed := slices.Clone(ed.items)
	l.snapshot.Store(&committed)

	l.changes.Next(ed.changes)
	return nil
}

func runEdit[T any](ed *Editor[T], fn func(*Editor[T])) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrEditPanicked, r)
		}
	}()
	fn(ed)
	return nil
}

// Connect returns a stream of the list's ChangeSets. Each subscriber first
// receives the current contents as a single ChangeSet of Adds (omitted when
// the list is empty), then every later ChangeSet. Subscribing to a disposed
// list completes immediately.
func (l *List[T]) Connect() reactive.Stream[changeset.ChangeSet[T]] {
	return reactive.StreamFunc[changeset.ChangeSet[T]](func(o reactive.Observer[changeset.ChangeSet[T]]) reactive.Disposable {
		unlock, _ := l.lock()
		defer unlock()

		if l.disposed {
			if o.Complete != nil {
				o.Complete()
			}
			return reactive.Disposed
		}

		sub := l.changes.Subscribe(o)
		if initial := changeset.Initial(l.items); initial != nil && o.Next != nil {
			o.Next(initial)
		}
		return sub
	})
}

// Items returns a copy of the committed contents.
func (l *List[T]) Items() []T {
	return slices.Clone(*l.snapshot.Load())
}

// Len returns the committed length.
func (l *List[T]) Len() int {
	return len(*l.snapshot.Load())
}

// Add appends vs in one batch.
func (l *List[T]) Add(vs ...T) error {
	return l.Edit(func(e *Editor[T]) { e.AddRange(vs...) })
}

// Insert places v at index.
func (l *List[T]) Insert(index int, v T) error {
	return l.Edit(func(e *Editor[T]) { e.Insert(index, v) })
}

// RemoveAt deletes the element at index.
func (l *List[T]) RemoveAt(index int) error {
	return l.Edit(func(e *Editor[T]) { e.RemoveAt(index) })
}

// Replace overwrites the element at index.
func (l *List[T]) Replace(index int, v T) error {
	return l.Edit(func(e *Editor[T]) { e.Replace(index, v) })
}

// Move relocates the element at from to position to.
func (l *List[T]) Move(from, to int) error {
	return l.Edit(func(e *Editor[T]) { e.Move(from, to) })
}

// Clear removes every element.
func (l *List[T]) Clear() error {
	return l.Edit(func(e *Editor[T]) { e.Clear() })
}

// Reset replaces the contents with vs as a single {Clear, Add...} batch.
func (l *List[T]) Reset(vs ...T) error {
	return l.Edit(func(e *Editor[T]) {
		e.Clear()
		e.AddRange(vs...)
	})
}

// Dispose completes every subscription and rejects later edits. The last
// contents remain readable. Safe to call more than once.
func (l *List[T]) Dispose() {
	unlock, _ := l.lock()
	defer unlock()

	if l.disposed {
		return
	}
	l.disposed = true
	l.changes.Complete()
}

// IsDisposed reports whether Dispose has been called.
func (l *List[T]) IsDisposed() bool {
	unlock, _ := l.lock()
	defer unlock()
	return l.disposed
}
