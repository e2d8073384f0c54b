// Package changeset describes ordered, batched mutations of a list.
//
// A ChangeSet is the unit of notification emitted by an observable list:
// applying its changes in order to the prior contents yields the new
// contents exactly.
package changeset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIndexOutOfRange is returned when a change refers to a position that
// does not exist in the state it is applied to.
var ErrIndexOutOfRange = errors.New("changeset: index out of range")

// Kind identifies the operation a Change performs.
type Kind uint8

const (
	// KindAdd inserts Item at Index.
	KindAdd Kind = iota
	// KindRemove deletes the element at Index. Item holds the removed value.
	KindRemove
	// KindReplace overwrites the element at Index. Previous holds the old value.
	KindReplace
	// KindMove relocates the element at From to Index.
	KindMove
	// KindClear removes every element. Cleared holds the removed values.
	KindClear
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "Add"
	case KindRemove:
		return "Remove"
	case KindReplace:
		return "Replace"
	case KindMove:
		return "Move"
	case KindClear:
		return "Clear"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Change is a single positional operation.
type Change[T any] struct {
	Kind     Kind
	Index    int
	From     int
	Item     T
	Previous T
	Cleared  []T
}

// Add returns a change inserting item at index.
func Add[T any](index int, item T) Change[T] {
	return Change[T]{Kind: KindAdd, Index: index, Item: item}
}

// Remove returns a change deleting item, found at index.
func Remove[T any](index int, item T) Change[T] {
	return Change[T]{Kind: KindRemove, Index: index, Item: item}
}

// Replace returns a change overwriting previous with item at index.
func Replace[T any](index int, previous, item T) Change[T] {
	return Change[T]{Kind: KindReplace, Index: index, Previous: previous, Item: item}
}

// Move returns a change relocating item from one position to another.
// to is interpreted against the list after item has been taken out.
func Move[T any](from, to int, item T) Change[T] {
	return Change[T]{Kind: KindMove, From: from, Index: to, Item: item}
}

// Clear returns a change removing all of cleared.
func Clear[T any](cleared []T) Change[T] {
	return Change[T]{Kind: KindClear, Cleared: cleared}
}

func (c Change[T]) String() string {
	switch c.Kind {
	case KindAdd, KindRemove:
		return fmt.Sprintf("%s(%d, %v)", c.Kind, c.Index, c.Item)
	case KindReplace:
		return fmt.Sprintf("Replace(%d, %v -> %v)", c.Index, c.Previous, c.Item)
	case KindMove:
		return fmt.Sprintf("Move(%d -> %d, %v)", c.From, c.Index, c.Item)
	case KindClear:
		return fmt.Sprintf("Clear(%d)", len(c.Cleared))
	default:
		return c.Kind.String()
	}
}

// ApplyTo performs c on items in place and returns the result.
func (c Change[T]) ApplyTo(items []T) ([]T, error) {
	n := len(items)
	switch c.Kind {
	case KindAdd:
		if c.Index < 0 || c.Index > n {
			return items, fmt.Errorf("%w: add at %d, len %d", ErrIndexOutOfRange, c.Index, n)
		}
		var zero T
		items = append(items, zero)
		copy(items[c.Index+1:], items[c.Index:])
		items[c.Index] = c.Item
		return items, nil

	case KindRemove:
		if c.Index < 0 || c.Index >= n {
			return items, fmt.Errorf("%w: remove at %d, len %d", ErrIndexOutOfRange, c.Index, n)
		}
		return append(items[:c.Index], items[c.Index+1:]...), nil

	case KindReplace:
		if c.Index < 0 || c.Index >= n {
			return items, fmt.Errorf("%w: replace at %d, len %d", ErrIndexOutOfRange, c.Index, n)
		}
		items[c.Index] = c.Item
		return items, nil

	case KindMove:
		if c.From < 0 || c.From >= n || c.Index < 0 || c.Index >= n {
			return items, fmt.Errorf("%w: move %d -> %d, len %d", ErrIndexOutOfRange, c.From, c.Index, n)
		}
		item := items[c.From]
		items = append(items[:c.From], items[c.From+1:]...)
		items = append(items, item)
		copy(items[c.Index+1:], items[c.Index:])
		items[c.Index] = item
		return items, nil

	case KindClear:
		return items[:0], nil

	default:
		return items, fmt.Errorf("changeset: unknown kind %d", c.Kind)
	}
}

// ChangeSet is an ordered batch of changes published as one notification.
type ChangeSet[T any] []Change[T]

// Apply returns the result of applying cs to state. state is not modified.
// If any change fails the error is returned together with a nil slice.
func (cs ChangeSet[T]) Apply(state []T) ([]T, error) {
	out := make([]T, len(state), len(state)+cs.Adds())
	copy(out, state)

	var err error
	for i, c := range cs {
		out, err = c.ApplyTo(out)
		if err != nil {
			return nil, fmt.Errorf("change %d: %w", i, err)
		}
	}
	return out, nil
}

// Adds returns the number of Add changes.
func (cs ChangeSet[T]) Adds() int { return cs.count(KindAdd) }

// Removes returns the number of Remove changes.
func (cs ChangeSet[T]) Removes() int { return cs.count(KindRemove) }

// Replaced returns the number of Replace changes.
func (cs ChangeSet[T]) Replaced() int { return cs.count(KindReplace) }

// Moves returns the number of Move changes.
func (cs ChangeSet[T]) Moves() int { return cs.count(KindMove) }

// Clears returns the number of Clear changes.
func (cs ChangeSet[T]) Clears() int { return cs.count(KindClear) }

func (cs ChangeSet[T]) count(k Kind) int {
	n := 0
	for _, c := range cs {
		if c.Kind == k {
			n++
		}
	}
	return n
}

func (cs ChangeSet[T]) String() string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Initial returns the ChangeSet that builds items from an empty list.
// It is empty when items is.
func Initial[T any](items []T) ChangeSet[T] {
	if len(items) == 0 {
		return nil
	}
	cs := make(ChangeSet[T], len(items))
	for i, v := range items {
		cs[i] = Add(i, v)
	}
	return cs
}
