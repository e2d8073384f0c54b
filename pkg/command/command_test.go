package command

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/rxbind/pkg/metrics"
	"github.com/vango-dev/rxbind/pkg/reactive"
)

// untilCanceled is a body that blocks until its context is canceled.
func untilCanceled(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func waitResult(t *testing.T, e *Execution) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := e.Wait(ctx)
	require.NoError(t, err, "execution did not resolve")
	return res
}

func TestCompleted(t *testing.T) {
	c := New(func(context.Context) error { return nil }, WithName("ok"))
	defer c.Dispose()

	res := waitResult(t, c.Start())
	assert.Equal(t, Completed, res.State)
	assert.NoError(t, res.Err)
	assert.EqualValues(t, 1, res.Seq)
	assert.False(t, c.IsExecuting().Get())
	assert.Equal(t, Idle, c.State().Get())

	last, ok := c.LastResult()
	assert.True(t, ok)
	assert.Equal(t, res, last)
}

func TestIsExecutingTracksExecution(t *testing.T) {
	c := New(untilCanceled)
	defer c.Dispose()

	var seen []bool
	var mu sync.Mutex
	c.IsExecuting().Changed().Subscribe(reactive.OnNext(func(v bool) {
		mu.Lock()
		seen = append(seen, v)
		mu.Unlock()
	}))

	exec := c.Start()
	assert.True(t, c.IsExecuting().Get())
	assert.Equal(t, Executing, c.State().Get())
	assert.Same(t, exec, c.Current())

	exec.Dispose()
	res := waitResult(t, exec)
	assert.Equal(t, Canceled, res.State)
	assert.NoError(t, res.Err, "cancellation is not an error")
	assert.False(t, c.IsExecuting().Get())
	assert.Nil(t, c.Current())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, seen)
}

func TestStartCancelsPreviousAndNeverOverlaps(t *testing.T) {
	var active, maxActive, ran atomic.Int32
	c := New(func(ctx context.Context) error {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		ran.Add(1)
		defer active.Add(-1)
		<-ctx.Done()
		time.Sleep(time.Millisecond)
		return ctx.Err()
	})
	defer c.Dispose()

	var execs []*Execution
	for i := 0; i < 20; i++ {
		execs = append(execs, c.Start())
	}
	last := execs[len(execs)-1]

	for _, e := range execs[:len(execs)-1] {
		assert.Equal(t, Canceled, waitResult(t, e).State)
	}
	select {
	case <-last.Done():
		t.Fatal("latest execution should still be running")
	default:
	}
	assert.True(t, c.IsExecuting().Get())

	require.True(t, c.Cancel())
	assert.Equal(t, Canceled, waitResult(t, last).State)
	assert.EqualValues(t, 1, maxActive.Load(), "bodies never overlap")
	assert.LessOrEqual(t, ran.Load(), int32(20))
}

func TestCanceledBeforeStartSkipsBody(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	c := New(func(ctx context.Context) error {
		calls.Add(1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		// Ignore cancellation so the next body has to wait for us.
		<-release
		return nil
	})
	defer c.Dispose()

	first := c.Start()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	second := c.Start()
	second.Dispose()
	third := c.Start()
	close(release)

	assert.Equal(t, Canceled, waitResult(t, first).State, "body returned nil after its context was canceled")
	assert.Equal(t, Canceled, waitResult(t, second).State)
	assert.Equal(t, Completed, waitResult(t, third).State)
	assert.EqualValues(t, 2, calls.Load(), "second body never ran")
}

func TestFaultPublishedAndRestartWorks(t *testing.T) {
	boom := errors.New("boom")
	var fail atomic.Bool
	fail.Store(true)
	c := New(func(context.Context) error {
		if fail.Load() {
			return boom
		}
		return nil
	})
	defer c.Dispose()

	var faults []error
	var mu sync.Mutex
	c.Errors().Subscribe(reactive.OnNext(func(err error) {
		mu.Lock()
		faults = append(faults, err)
		mu.Unlock()
	}))

	res := waitResult(t, c.Start())
	assert.Equal(t, Faulted, res.State)
	assert.ErrorIs(t, res.Err, boom)

	fail.Store(false)
	assert.Equal(t, Completed, waitResult(t, c.Start()).State)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, faults, 1)
	assert.ErrorIs(t, faults[0], boom)
}

func TestPanicBecomesFault(t *testing.T) {
	c := New(func(context.Context) error { panic("kaboom") })
	defer c.Dispose()

	res := waitResult(t, c.Start())
	assert.Equal(t, Faulted, res.State)
	assert.ErrorIs(t, res.Err, ErrPanicked)
	assert.False(t, c.IsExecuting().Get())
}

func TestCancelWhenIdleIsNoop(t *testing.T) {
	c := New(untilCanceled)
	defer c.Dispose()

	assert.False(t, c.Cancel())
	assert.Equal(t, Idle, c.State().Get())
	_, ok := c.LastResult()
	assert.False(t, ok)
}

func TestResultsStream(t *testing.T) {
	c := New(func(context.Context) error { return nil })

	results := make(chan Result, 4)
	c.Results().Subscribe(reactive.OnNext(func(r Result) { results <- r }))

	waitResult(t, c.Start())
	waitResult(t, c.Start())
	c.Dispose()

	close(results)
	var seqs []uint64
	for r := range results {
		seqs = append(seqs, r.Seq)
	}
	assert.Equal(t, []uint64{1, 2}, seqs)
}

func TestDispose(t *testing.T) {
	c := New(untilCanceled)
	exec := c.Start()

	c.Dispose()
	c.Dispose()

	assert.Equal(t, Canceled, exec.Result().State)
	assert.False(t, c.IsExecuting().Get())

	res := c.Start().Result()
	assert.Equal(t, Faulted, res.State)
	assert.ErrorIs(t, res.Err, ErrDisposed)
}

func TestBaseContextCancelsExecutions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := New(untilCanceled, WithContext(ctx))
	defer c.Dispose()

	exec := c.Start()
	cancel()
	assert.Equal(t, Canceled, waitResult(t, exec).State)
}

func TestMetricsRecorded(t *testing.T) {
	m := metrics.New()
	c := New(func(context.Context) error { return nil }, WithName("gen"), WithMetrics(m))
	defer c.Dispose()

	waitResult(t, c.Start())

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "rxbind_command_results_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "faulted", Faulted.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, Canceled.Terminal())
	assert.False(t, Executing.Terminal())
}
