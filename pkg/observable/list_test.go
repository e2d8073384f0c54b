package observable

import (
	"errors"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/rxbind/pkg/changeset"
	"github.com/vango-dev/rxbind/pkg/reactive"
)

func record[T any](s reactive.Stream[changeset.ChangeSet[T]]) (*[]changeset.ChangeSet[T], reactive.Disposable) {
	var got []changeset.ChangeSet[T]
	d := s.Subscribe(reactive.OnNext(func(cs changeset.ChangeSet[T]) {
		got = append(got, cs)
	}))
	return &got, d
}

func TestEditEmitsOneChangeSetPerBatch(t *testing.T) {
	l := NewList[int]()
	require.NoError(t, l.Add(1, 2, 3))

	got, _ := record(l.Connect())
	require.Len(t, *got, 1, "initial replay")

	err := l.Edit(func(e *Editor[int]) {
		e.Clear()
		e.Insert(0, 5)
		e.Insert(1, 7)
	})
	require.NoError(t, err)

	require.Len(t, *got, 2)
	assert.Equal(t, changeset.ChangeSet[int]{
		changeset.Clear([]int{1, 2, 3}),
		changeset.Add(0, 5),
		changeset.Add(1, 7),
	}, (*got)[1])
	assert.Equal(t, []int{5, 7}, l.Items())
}

func TestEmptyBatchEmitsNothing(t *testing.T) {
	l := NewList[int]()
	got, _ := record(l.Connect())

	require.NoError(t, l.Edit(func(e *Editor[int]) {}))
	require.NoError(t, l.Clear())

	assert.Empty(t, *got)
}

func TestReplayThenLive(t *testing.T) {
	l := NewList[string]()
	require.NoError(t, l.Add("a", "b"))

	late, _ := record(l.Connect())
	require.NoError(t, l.Add("c"))

	mirror, err := replay(*late)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, mirror)
}

func TestEmptyListReplaysNothing(t *testing.T) {
	l := NewList[int]()
	got, _ := record(l.Connect())
	assert.Empty(t, *got)
}

func TestUnsubscribeAffectsOnlyThatSubscriber(t *testing.T) {
	l := NewList[int]()
	a, subA := record(l.Connect())
	b, _ := record(l.Connect())

	require.NoError(t, l.Add(1))
	subA.Dispose()
	require.NoError(t, l.Add(2))

	assert.Len(t, *a, 1)
	assert.Len(t, *b, 2)
	assert.Equal(t, []int{1, 2}, l.Items())
}

func TestRoundTripRandomBatches(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	l := NewList[int]()
	got, _ := record(l.Connect())

	for batch := 0; batch < 200; batch++ {
		err := l.Edit(func(e *Editor[int]) {
			ops := rng.IntN(6)
			for i := 0; i < ops; i++ {
				switch op := rng.IntN(6); {
				case op == 0:
					e.Clear()
				case op == 1 || e.Len() == 0:
					e.Insert(rng.IntN(e.Len()+1), rng.Int())
				case op == 2:
					e.RemoveAt(rng.IntN(e.Len()))
				case op == 3:
					e.Replace(rng.IntN(e.Len()), rng.Int())
				case op == 4:
					e.Move(rng.IntN(e.Len()), rng.IntN(e.Len()))
				default:
					e.Add(rng.Int())
				}
			}
		})
		require.NoError(t, err)
	}

	mirror, err := replay(*got)
	require.NoError(t, err)
	assert.Equal(t, l.Items(), mirror)
}

func replay[T any](sets []changeset.ChangeSet[T]) ([]T, error) {
	var state []T
	for _, cs := range sets {
		next, err := cs.Apply(state)
		if err != nil {
			return nil, err
		}
		state = next
	}
	if state == nil {
		state = []T{}
	}
	return state, nil
}

func TestNestedEditFromCallbackIsRejected(t *testing.T) {
	l := NewList[int]()
	require.NoError(t, l.Add(1))
	got, _ := record(l.Connect())

	var inner error
	err := l.Edit(func(e *Editor[int]) {
		e.Add(2)
		inner = l.Add(3)
	})

	assert.ErrorIs(t, inner, ErrReentrantEdit)
	assert.ErrorIs(t, err, ErrReentrantEdit)
	assert.Equal(t, []int{1}, l.Items())
	assert.Len(t, *got, 1, "only the initial replay")
}

func TestEditFromSubscriberIsRejected(t *testing.T) {
	l := NewList[int]()
	var inner error
	l.Connect().Subscribe(reactive.OnNext(func(changeset.ChangeSet[int]) {
		inner = l.Add(99)
	}))

	require.NoError(t, l.Add(1))
	assert.ErrorIs(t, inner, ErrReentrantEdit)
	assert.Equal(t, []int{1}, l.Items())

	// The rejection is not carried into the next batch.
	require.NoError(t, l.Add(2))
}

func TestEditDuringReplayDoesNotPoisonLaterEdits(t *testing.T) {
	l := NewList[int]()
	require.NoError(t, l.Add(1))

	var inner error
	replayed := false
	sub := l.Connect().Subscribe(reactive.OnNext(func(changeset.ChangeSet[int]) {
		if !replayed {
			replayed = true
			inner = l.Add(99)
		}
	}))
	defer sub.Dispose()

	assert.ErrorIs(t, inner, ErrReentrantEdit)
	assert.Equal(t, []int{1}, l.Items())

	require.NoError(t, l.Add(2))
	assert.Equal(t, []int{1, 2}, l.Items())
}

func TestInvalidOperationRejectsBatch(t *testing.T) {
	l := NewList[int]()
	require.NoError(t, l.Add(1, 2))
	got, _ := record(l.Connect())

	err := l.Edit(func(e *Editor[int]) {
		e.Add(3)
		e.RemoveAt(10)
		e.Add(4)
	})

	assert.ErrorIs(t, err, changeset.ErrIndexOutOfRange)
	assert.Equal(t, []int{1, 2}, l.Items())
	assert.Len(t, *got, 1)
}

func TestPanicInEditIsRecovered(t *testing.T) {
	l := NewList[int]()
	err := l.Edit(func(e *Editor[int]) {
		e.Add(1)
		panic("boom")
	})

	assert.ErrorIs(t, err, ErrEditPanicked)
	assert.Zero(t, l.Len())
	require.NoError(t, l.Add(1), "list remains usable")
}

func TestDispose(t *testing.T) {
	l := NewList[int]()
	require.NoError(t, l.Add(1))

	completed := 0
	l.Connect().Subscribe(reactive.Observer[changeset.ChangeSet[int]]{
		Complete: func() { completed++ },
	})

	l.Dispose()
	l.Dispose()

	assert.Equal(t, 1, completed)
	assert.True(t, l.IsDisposed())
	assert.True(t, errors.Is(l.Add(2), ErrDisposed))
	assert.Equal(t, []int{1}, l.Items())

	late := 0
	l.Connect().Subscribe(reactive.Observer[changeset.ChangeSet[int]]{
		Complete: func() { late++ },
	})
	assert.Equal(t, 1, late)
}

func TestConcurrentEditsSerialize(t *testing.T) {
	l := NewList[int]()
	got, _ := record(l.Connect())

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = l.Reset(g, i)
			}
		}(g)
	}
	wg.Wait()

	mirror, err := replay(*got)
	require.NoError(t, err)
	assert.Equal(t, l.Items(), mirror)
	assert.Len(t, mirror, 2)
}

func TestConvenienceMethods(t *testing.T) {
	l := NewList[string]()
	require.NoError(t, l.Add("a", "b", "c"))
	require.NoError(t, l.Insert(0, "z"))
	require.NoError(t, l.Replace(1, "A"))
	require.NoError(t, l.Move(0, 3))
	require.NoError(t, l.RemoveAt(0))
	assert.Equal(t, []string{"b", "c", "z"}, l.Items())
	assert.Equal(t, 3, l.Len())
}
