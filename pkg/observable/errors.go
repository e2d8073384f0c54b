package observable

import "errors"

var (
	// ErrReentrantEdit is returned when Edit is called while the same
	// goroutine is already inside an edit of that list, either from the
	// edit callback or from a subscriber receiving its ChangeSet.
	ErrReentrantEdit = errors.New("observable: re-entrant edit")

	// ErrDisposed is returned when editing a disposed list.
	ErrDisposed = errors.New("observable: list disposed")

	// ErrEditPanicked wraps a panic recovered from an edit callback.
	ErrEditPanicked = errors.New("observable: edit callback panicked")
)
