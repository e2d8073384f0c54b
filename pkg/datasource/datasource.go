// Package datasource simulates external data arriving into an observable
// list, either as fast as the consumer allows (triggered mode) or on a
// fixed period (interval mode).
package datasource

import (
	"context"
	"time"

	"github.com/vango-dev/rxbind/pkg/changeset"
	"github.com/vango-dev/rxbind/pkg/reactive"
)

// Source produces bulk replacements of an integer list.
type Source interface {
	// Changes streams the list's ChangeSets, replaying current contents to
	// each new subscriber.
	Changes() reactive.Stream[changeset.ChangeSet[int]]

	// Generate repeatedly replaces the contents until ctx is canceled and
	// returns ctx.Err(). It yields between batches.
	Generate(ctx context.Context) error

	// GenerateEvery replaces the contents once per period until the
	// returned handle is disposed.
	GenerateEvery(period time.Duration) reactive.Disposable

	// Clear empties the list.
	Clear() error

	// Dispose stops accepting edits and completes Changes.
	Dispose()
}

// Factory provides the Source a view-model works against. It is called
// exactly once per view-model.
type Factory func() Source
