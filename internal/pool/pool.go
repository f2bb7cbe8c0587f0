// Package pool runs groups of goroutines over a shared, already loaded
// dataset with a cap on how many execute at once.
package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Work is one task's unit of work. id runs from 1 to the task count.
type Work func(ctx context.Context, id int) error

// Stats describes a finished bounded run.
type Stats struct {
	Completed int // Tasks whose work returned
	Failed    int // Tasks whose work returned an error or panicked
	Peak      int // Highest number of tasks observed inside work at once
}

// gauge tracks how many tasks are inside their critical section.
type gauge struct {
	active atomic.Int64
	peak   atomic.Int64
}

func (g *gauge) enter() {
	n := g.active.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (g *gauge) leave() { g.active.Add(-1) }

// RunBounded launches taskCount goroutines. Each acquires one of
// maxConcurrent admission tickets before calling work and releases it
// when work returns, fails or panics. Goroutines beyond the limit block
// until a ticket frees up. All goroutines are joined before RunBounded
// returns; the first work error is returned alongside the stats.
//
// ctx only bounds the wait for a ticket; work that already holds one runs
// to completion.
func RunBounded(ctx context.Context, taskCount, maxConcurrent int, work Work) (Stats, error) {
	if taskCount < 0 {
		return Stats{}, errors.Errorf("task count %d is negative", taskCount)
	}
	if maxConcurrent <= 0 {
		return Stats{}, errors.Errorf("max concurrency %d must be positive", maxConcurrent)
	}

	tickets := semaphore.NewWeighted(int64(maxConcurrent))
	var (
		g      errgroup.Group
		gg     gauge
		done   atomic.Int64
		failed atomic.Int64
	)

	for id := 1; id <= taskCount; id++ {
		g.Go(func() error {
			if err := tickets.Acquire(ctx, 1); err != nil {
				failed.Add(1)
				return errors.Wrapf(err, "task %d waiting for ticket", id)
			}
			defer tickets.Release(1)

			err := runGauged(ctx, &gg, id, work)
			done.Add(1)
			if err != nil {
				failed.Add(1)
			}
			return err
		})
	}

	err := g.Wait()
	return Stats{
		Completed: int(done.Load()),
		Failed:    int(failed.Load()),
		Peak:      int(gg.peak.Load()),
	}, err
}

func runGauged(ctx context.Context, gg *gauge, id int, work Work) (err error) {
	gg.enter()
	defer gg.leave()
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("task %d panicked: %v", id, p)
		}
	}()
	return work(ctx, id)
}

// RunMonitor is RunBounded built on a mutex and condition variable instead
// of a semaphore: a goroutine waits on the condition while the active
// count is at the limit and broadcasts when it leaves. It has no
// cancellation.
func RunMonitor(taskCount, maxConcurrent int, work Work) (Stats, error) {
	if taskCount < 0 {
		return Stats{}, errors.Errorf("task count %d is negative", taskCount)
	}
	if maxConcurrent <= 0 {
		return Stats{}, errors.Errorf("max concurrency %d must be positive", maxConcurrent)
	}

	var (
		mu     sync.Mutex
		cond   = sync.NewCond(&mu)
		active int
		gg     gauge
		done   atomic.Int64
		failed atomic.Int64
		g      errgroup.Group
	)

	for id := 1; id <= taskCount; id++ {
		g.Go(func() error {
			mu.Lock()
			for active >= maxConcurrent {
				cond.Wait()
			}
			active++
			mu.Unlock()

			defer func() {
				mu.Lock()
				active--
				cond.Broadcast()
				mu.Unlock()
			}()

			err := runGauged(context.Background(), &gg, id, work)
			done.Add(1)
			if err != nil {
				failed.Add(1)
			}
			return err
		})
	}

	err := g.Wait()
	return Stats{
		Completed: int(done.Load()),
		Failed:    int(failed.Load()),
		Peak:      int(gg.peak.Load()),
	}, err
}

// Split divides items into parts contiguous chunks and calls fn on each
// chunk from its own goroutine. part runs from 1 to parts. Chunks differ
// in length by at most one; with fewer items than parts some are empty.
func Split[T any](ctx context.Context, items []T, parts int, fn func(ctx context.Context, part int, chunk []T) error) error {
	if parts <= 0 {
		return errors.Errorf("parts %d must be positive", parts)
	}

	g, gctx := errgroup.WithContext(ctx)
	size, extra := len(items)/parts, len(items)%parts
	lo := 0
	for p := 1; p <= parts; p++ {
		hi := lo + size
		if p <= extra {
			hi++
		}
		chunk := items[lo:hi:hi]
		g.Go(func() error {
			return fn(gctx, p, chunk)
		})
		lo = hi
	}
	return g.Wait()
}
