package observable

import (
	"github.com/vango-dev/rxbind/pkg/changeset"
)

// Editor stages the operations of one edit batch against a working copy
// of the list. It is only valid inside the callback passed to Edit.
//
// The first invalid operation poisons the batch: later operations are
// ignored and Edit returns the error without committing anything.
type Editor[T any] struct {
	items   []T
	changes changeset.ChangeSet[T]
	err     error
}

func (e *Editor[T]) apply(c changeset.Change[T]) {
	if e.err != nil {
		return
	}
	items, err := c.ApplyTo(e.items)
	if err != nil {
		e.err = err
		return
	}
	e.items = items
	e.changes = append(e.changes, c)
}

// Add appends v.
func (e *Editor[T]) Add(v T) {
	e.apply(changeset.Add(len(e.items), v))
}

// AddRange appends vs in order.
func (e *Editor[T]) AddRange(vs ...T) {
	for _, v := range vs {
		e.Add(v)
	}
}

// Insert places v at index, shifting later elements.
func (e *Editor[T]) Insert(index int, v T) {
	e.apply(changeset.Add(index, v))
}

// RemoveAt deletes the element at index.
func (e *Editor[T]) RemoveAt(index int) {
	if e.err != nil {
		return
	}
	if index < 0 || index >= len(e.items) {
		e.apply(changeset.Remove(index, *new(T)))
		return
	}
	e.apply(changeset.Remove(index, e.items[index]))
}

// Replace overwrites the element at index with v.
func (e *Editor[T]) Replace(index int, v T) {
	if e.err != nil {
		return
	}
	var previous T
	if index >= 0 && index < len(e.items) {
		previous = e.items[index]
	}
	e.apply(changeset.Replace(index, previous, v))
}

// Move relocates the element at from so that it ends up at to.
func (e *Editor[T]) Move(from, to int) {
	if e.err != nil {
		return
	}
	var item T
	if from >= 0 && from < len(e.items) {
		item = e.items[from]
	}
	e.apply(changeset.Move(from, to, item))
}

// Clear removes all elements. Clearing an empty list records nothing.
func (e *Editor[T]) Clear() {
	if e.err != nil || len(e.items) == 0 {
		return
	}
	cleared := make([]T, len(e.items))
	copy(cleared, e.items)
	e.apply(changeset.Clear(cleared))
}

// Len returns the staged length.
func (e *Editor[T]) Len() int {
	return len(e.items)
}

// At returns the staged element at index. It panics if index is out of
// range, like a slice access.
func (e *Editor[T]) At(index int) T {
	return e.items[index]
}

// Err returns the error that poisoned the batch, if any.
func (e *Editor[T]) Err() error {
	return e.err
}
