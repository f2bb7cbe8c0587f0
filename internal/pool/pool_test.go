package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowWork holds each task inside its critical section briefly so that
// overlapping tasks are observable.
func slowWork(ran *atomic.Int64) Work {
	return func(ctx context.Context, id int) error {
		ran.Add(1)
		time.Sleep(5 * time.Millisecond)
		return nil
	}
}

// TestRunBounded verifies the concurrency cap and that every task completes
func TestRunBounded(t *testing.T) {
	ctx := context.Background()

	t.Run("ten tasks five at a time", func(t *testing.T) {
		var ran atomic.Int64
		stats, err := RunBounded(ctx, 10, 5, slowWork(&ran))
		require.NoError(t, err)

		assert.Equal(t, 10, stats.Completed)
		assert.Equal(t, 0, stats.Failed)
		assert.LessOrEqual(t, stats.Peak, 5)
		assert.GreaterOrEqual(t, stats.Peak, 1)
		assert.Equal(t, int64(10), ran.Load())
	})

	t.Run("limit of one serializes", func(t *testing.T) {
		var ran atomic.Int64
		stats, err := RunBounded(ctx, 8, 1, slowWork(&ran))
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Peak)
		assert.Equal(t, 8, stats.Completed)
	})

	t.Run("limit above task count", func(t *testing.T) {
		var ran atomic.Int64
		stats, err := RunBounded(ctx, 3, 10, slowWork(&ran))
		require.NoError(t, err)
		assert.LessOrEqual(t, stats.Peak, 3)
		assert.Equal(t, 3, stats.Completed)
	})

	t.Run("zero tasks", func(t *testing.T) {
		stats, err := RunBounded(ctx, 0, 5, func(context.Context, int) error { return nil })
		require.NoError(t, err)
		assert.Equal(t, Stats{}, stats)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		_, err := RunBounded(ctx, 1, 0, nil)
		assert.Error(t, err)
		_, err = RunBounded(ctx, -1, 1, nil)
		assert.Error(t, err)
	})

	t.Run("failures release their ticket", func(t *testing.T) {
		boom := errors.New("boom")
		var ran atomic.Int64
		stats, err := RunBounded(ctx, 10, 2, func(ctx context.Context, id int) error {
			ran.Add(1)
			switch id {
			case 1:
				return boom
			case 2:
				panic("bad record")
			}
			return nil
		})

		require.Error(t, err)
		assert.Equal(t, int64(10), ran.Load())
		assert.Equal(t, 10, stats.Completed)
		assert.Equal(t, 2, stats.Failed)
		assert.LessOrEqual(t, stats.Peak, 2)
	})

	t.Run("panic error carries a stack trace", func(t *testing.T) {
		_, err := RunBounded(ctx, 1, 1, func(context.Context, int) error {
			panic("bad record")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "task 1 panicked: bad record")
		_, ok := err.(interface{ StackTrace() errors.StackTrace })
		assert.True(t, ok, "expected a stack trace on %v", err)
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		release := make(chan struct{})

		var entered sync.WaitGroup
		entered.Add(1)
		var once sync.Once

		done := make(chan struct{})
		var stats Stats
		var err error
		go func() {
			defer close(done)
			stats, err = RunBounded(cctx, 4, 1, func(ctx context.Context, id int) error {
				once.Do(entered.Done)
				<-release
				return nil
			})
		}()

		entered.Wait()
		cancel()
		close(release)
		<-done

		assert.True(t, errors.Is(err, context.Canceled))
		assert.GreaterOrEqual(t, stats.Completed, 1)
		assert.Equal(t, 4, stats.Completed+stats.Failed)
	})
}

// TestRunMonitor verifies the condition-variable variant keeps the same guarantees
func TestRunMonitor(t *testing.T) {
	var ran atomic.Int64
	stats, err := RunMonitor(10, 5, slowWork(&ran))
	require.NoError(t, err)

	assert.Equal(t, 10, stats.Completed)
	assert.LessOrEqual(t, stats.Peak, 5)
	assert.Equal(t, int64(10), ran.Load())

	t.Run("panic does not leak a slot", func(t *testing.T) {
		stats, err := RunMonitor(6, 1, func(ctx context.Context, id int) error {
			if id%2 == 0 {
				panic("odd one out")
			}
			return nil
		})
		assert.Error(t, err)
		assert.Equal(t, 6, stats.Completed)
		assert.Equal(t, 3, stats.Failed)
		assert.Equal(t, 1, stats.Peak)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		_, err := RunMonitor(1, 0, nil)
		assert.Error(t, err)
	})
}

// TestSplit verifies chunking for the two-way read
func TestSplit(t *testing.T) {
	ctx := context.Background()

	t.Run("even split", func(t *testing.T) {
		items := []int{1, 2, 3, 4, 5, 6}
		var mu sync.Mutex
		got := map[int][]int{}

		err := Split(ctx, items, 2, func(ctx context.Context, part int, chunk []int) error {
			mu.Lock()
			defer mu.Unlock()
			got[part] = chunk
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, map[int][]int{1: {1, 2, 3}, 2: {4, 5, 6}}, got)
	})

	t.Run("odd split front-loads", func(t *testing.T) {
		var mu sync.Mutex
		sizes := map[int]int{}
		err := Split(ctx, []string{"a", "b", "c", "d", "e"}, 2, func(ctx context.Context, part int, chunk []string) error {
			mu.Lock()
			defer mu.Unlock()
			sizes[part] = len(chunk)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, map[int]int{1: 3, 2: 2}, sizes)
	})

	t.Run("more parts than items", func(t *testing.T) {
		var calls atomic.Int64
		var total atomic.Int64
		err := Split(ctx, []int{1}, 3, func(ctx context.Context, part int, chunk []int) error {
			calls.Add(1)
			total.Add(int64(len(chunk)))
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), calls.Load())
		assert.Equal(t, int64(1), total.Load())
	})

	t.Run("error is returned", func(t *testing.T) {
		err := Split(ctx, []int{1, 2}, 2, func(ctx context.Context, part int, chunk []int) error {
			if part == 2 {
				return errors.New("part failed")
			}
			return nil
		})
		assert.EqualError(t, err, "part failed")
	})

	t.Run("invalid parts", func(t *testing.T) {
		assert.Error(t, Split(ctx, []int{1}, 0, func(context.Context, int, []int) error { return nil }))
	})
}
