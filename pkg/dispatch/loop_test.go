package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/rxbind/pkg/metrics"
)

func TestDispatchRunsInOrderOnOneGoroutine(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	var got []int
	var onLoop atomic.Int32
	for i := 0; i < 100; i++ {
		l.Dispatch(func() {
			got = append(got, i)
			if l.OnLoop() {
				onLoop.Add(1)
			}
		})
	}
	require.NoError(t, l.Sync(context.Background(), func() {}))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	assert.EqualValues(t, 100, onLoop.Load())
	assert.False(t, l.OnLoop())
}

func TestPanicDoesNotStopLoop(t *testing.T) {
	m := metrics.New()
	l := NewLoop(WithMetrics(m))
	defer l.Close()

	l.Dispatch(func() { panic("boom") })
	ran := false
	require.NoError(t, l.Sync(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestDispatchDropsWhenFull(t *testing.T) {
	l := NewLoop(WithQueueSize(1))
	defer l.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	l.Dispatch(func() {
		close(started)
		<-block
	})
	<-started

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		l.Dispatch(func() { ran.Add(1) })
	}
	close(block)
	require.NoError(t, l.Sync(context.Background(), func() {}))

	assert.EqualValues(t, 1, ran.Load(), "only one task fit in the queue")
}

func TestCloseDrainsQueue(t *testing.T) {
	l := NewLoop()
	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		l.Dispatch(func() { ran.Add(1) })
	}

	l.Close()
	l.Close()

	assert.EqualValues(t, 10, ran.Load())
	select {
	case <-l.Done():
	default:
		t.Fatal("Done not closed")
	}

	l.Dispatch(func() { ran.Add(1) })
	assert.EqualValues(t, 10, ran.Load())
	assert.ErrorIs(t, l.Sync(context.Background(), func() {}), ErrClosed)
}

func TestSyncFromLoopRunsInline(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	var inner bool
	require.NoError(t, l.Sync(context.Background(), func() {
		_ = l.Sync(context.Background(), func() { inner = true })
	}))
	assert.True(t, inner)
}

func TestSyncHonorsContext(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	block := make(chan struct{})
	l.Dispatch(func() { <-block })
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Sync(ctx, func() {}), context.DeadlineExceeded)
}

func TestCloseFromLoop(t *testing.T) {
	l := NewLoop()
	var wg sync.WaitGroup
	wg.Add(1)
	l.Dispatch(func() {
		defer wg.Done()
		l.Close()
	})
	wg.Wait()
	<-l.Done()
}
