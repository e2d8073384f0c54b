package errors

import (
	stderrors "errors"

	"github.com/vango-dev/rxbind/pkg/changeset"
	"github.com/vango-dev/rxbind/pkg/command"
	"github.com/vango-dev/rxbind/pkg/dispatch"
	"github.com/vango-dev/rxbind/pkg/observable"
	"github.com/vango-dev/rxbind/pkg/viewmodel"
)

// sentinels maps library errors to codes, most specific first.
var sentinels = []struct {
	err  error
	code string
}{
	{observable.ErrReentrantEdit, "R001"},
	{changeset.ErrIndexOutOfRange, "R002"},
	{observable.ErrDisposed, "R003"},
	{observable.ErrEditPanicked, "R004"},
	{command.ErrPanicked, "R010"},
	{command.ErrDisposed, "R011"},
	{viewmodel.ErrDisposed, "R011"},
	{dispatch.ErrClosed, "R021"},
}

// Classify converts err into an RxError, choosing the code from the
// library sentinel it wraps. fallback is used when none matches.
func Classify(err error, fallback string) *RxError {
	if err == nil {
		return nil
	}
	var re *RxError
	if stderrors.As(err, &re) {
		return re
	}
	for _, s := range sentinels {
		if stderrors.Is(err, s.err) {
			return New(s.code).Wrap(err)
		}
	}
	return New(fallback).Wrap(err)
}
