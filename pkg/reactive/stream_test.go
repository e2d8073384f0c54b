package reactive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector records everything an observer receives.
type collector[T any] struct {
	values    []T
	completed int
}

func (c *collector[T]) observer() Observer[T] {
	return Observer[T]{
		Next:     func(v T) { c.values = append(c.values, v) },
		Complete: func() { c.completed++ },
	}
}

func TestSubjectDeliversInOrder(t *testing.T) {
	s := NewSubject[int]()
	var a, b collector[int]
	s.Subscribe(a.observer())
	s.Subscribe(b.observer())

	for i := 1; i <= 3; i++ {
		s.Next(i)
	}

	assert.Equal(t, []int{1, 2, 3}, a.values)
	assert.Equal(t, []int{1, 2, 3}, b.values)
}

func TestSubjectUnsubscribeStopsOnlyThatObserver(t *testing.T) {
	s := NewSubject[string]()
	var a, b collector[string]
	subA := s.Subscribe(a.observer())
	s.Subscribe(b.observer())

	s.Next("x")
	subA.Dispose()
	subA.Dispose() // idempotent
	s.Next("y")

	assert.Equal(t, []string{"x"}, a.values)
	assert.Equal(t, []string{"x", "y"}, b.values)
	assert.Equal(t, 1, s.Len())
}

func TestSubjectComplete(t *testing.T) {
	s := NewSubject[int]()
	var a collector[int]
	s.Subscribe(a.observer())

	s.Complete()
	s.Complete()
	s.Next(1)

	assert.Empty(t, a.values)
	assert.Equal(t, 1, a.completed)
	assert.True(t, s.IsCompleted())

	var late collector[int]
	s.Subscribe(late.observer())
	assert.Equal(t, 1, late.completed, "late subscriber completes immediately")
}

func TestSubjectObserverMayUnsubscribeDuringDelivery(t *testing.T) {
	s := NewSubject[int]()
	var got []int
	var sub Disposable
	sub = s.Subscribe(OnNext(func(v int) {
		got = append(got, v)
		sub.Dispose()
	}))

	s.Next(1)
	s.Next(2)

	assert.Equal(t, []int{1}, got)
}

func TestEmptyAndNever(t *testing.T) {
	var e collector[int]
	Empty[int]().Subscribe(e.observer())
	assert.Equal(t, 1, e.completed)

	var n collector[int]
	d := Never[int]().Subscribe(n.observer())
	require.NotNil(t, d)
	assert.Zero(t, n.completed)
}

func TestCleanupsRunBackToFront(t *testing.T) {
	var c Cleanups
	var order []int
	c.Add(func() { order = append(order, 1) })
	c.AddDisposable(NewDisposable(func() { order = append(order, 2) }))
	c.Add(func() { order = append(order, 3) })
	require.Equal(t, 3, c.Len())

	c.Dispose()
	c.Dispose()

	assert.Equal(t, []int{3, 2, 1}, order)
	assert.True(t, c.IsDisposed())

	ran := false
	c.Add(func() { ran = true })
	assert.True(t, ran, "adding after dispose runs immediately")
}

func TestNewDisposableRunsOnce(t *testing.T) {
	n := 0
	d := NewDisposable(func() { n++ })
	d.Dispose()
	d.Dispose()
	assert.Equal(t, 1, n)
}
