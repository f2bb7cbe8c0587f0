// Package resort runs the background resorter: a long-lived goroutine that
// periodically replaces every collection in the keyed store with a sorted
// copy of itself.
package resort

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dreamware/shardsort/internal/logger"
	"github.com/dreamware/shardsort/internal/record"
	"github.com/dreamware/shardsort/internal/storage"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// State is the lifecycle position of a Resorter.
type State int32

const (
	// StateIdle means constructed, not started.
	StateIdle State = iota
	// StateRunning means the periodic loop is active.
	StateRunning
	// StateStopping means cancellation was requested and the loop has not exited yet.
	StateStopping
	// StateStopped means the loop has exited, or was abandoned by a timed-out
	// Stop and can no longer change the store. The resorter is disposed.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

var (
	// ErrDisposed is returned by Start after the resorter has been stopped.
	ErrDisposed = errors.New("resorter disposed")
	// ErrAlreadyStarted is returned by Start on a running resorter.
	ErrAlreadyStarted = errors.New("resorter already started")
	// ErrStopTimeout is returned by Stop when the loop did not exit in time.
	ErrStopTimeout = errors.New("resorter did not stop in time")
)

// Default timings, matching the console demo.
const (
	DefaultInterval    = 500 * time.Millisecond
	DefaultStopTimeout = 5 * time.Second
)

// Resorter keeps every collection in a storage.Store sorted by
// record.Compare. Each pass drains a key into a private copy, sorts it and
// swaps the result back with Store.Update; readers see either the old or
// the new collection for a key, and keys are not updated together.
//
// Thread-safe: All methods are safe for concurrent access.
type Resorter struct {
	store       *storage.Store
	logger      logger.Logger
	compare     func(a, b string) int // Ordering applied to each collection
	onPass      func(pass uint64)     // Called after each completed pass
	interval    time.Duration         // Pause between passes
	stopTimeout time.Duration         // Upper bound on Stop's wait

	mu     sync.Mutex         // Protects state, cancel and done
	state  State              // Lifecycle position
	cancel context.CancelFunc // Stops the loop
	done   chan struct{}      // Closed when the loop exits

	passes   atomic.Uint64 // Completed passes
	failures atomic.Uint64 // Passes that panicked
	loopErr  atomic.Value  // error that terminated the loop, if any
}

// Option configures a Resorter.
type Option func(*Resorter)

// WithInterval sets the pause between passes.
func WithInterval(d time.Duration) Option {
	return func(r *Resorter) { r.interval = d }
}

// WithStopTimeout bounds how long Stop waits for the loop to exit.
func WithStopTimeout(d time.Duration) Option {
	return func(r *Resorter) { r.stopTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Resorter) { r.logger = l }
}

// WithOnPass registers a callback run on the loop goroutine after every
// completed pass.
func WithOnPass(fn func(pass uint64)) Option {
	return func(r *Resorter) { r.onPass = fn }
}

// New creates an idle resorter over store.
//
// Example:
//
//	r := resort.New(store, resort.WithInterval(500*time.Millisecond))
//	if err := r.Start(); err != nil {
//	    return err
//	}
//	defer r.Stop()
func New(store *storage.Store, opts ...Option) *Resorter {
	r := &Resorter{
		store:       store,
		logger:      logger.NopLogger,
		compare:     record.Compare,
		interval:    DefaultInterval,
		stopTimeout: DefaultStopTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithPrefix("resorter")
	return r
}

// SetCompare overrides the ordering. It must be called before Start.
func (r *Resorter) SetCompare(compare func(a, b string) int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compare = compare
}

// State returns the current lifecycle state.
func (r *Resorter) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Passes returns how many passes have completed.
func (r *Resorter) Passes() uint64 { return r.passes.Load() }

// Failures returns how many passes failed and were skipped.
func (r *Resorter) Failures() uint64 { return r.failures.Load() }

// Err returns the error that terminated the loop, or nil.
func (r *Resorter) Err() error {
	if err, ok := r.loopErr.Load().(error); ok {
		return err
	}
	return nil
}

// Start launches the periodic loop. It fails with ErrAlreadyStarted if the
// loop is running and ErrDisposed once Stop has been called.
func (r *Resorter) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateRunning:
		return ErrAlreadyStarted
	case StateStopping, StateStopped:
		return ErrDisposed
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.state = StateRunning

	go r.loop(ctx, r.compare, r.done)
	r.logger.Infof("started with interval %v", r.interval)
	return nil
}

// Stop cancels the loop and waits up to the stop timeout for it to exit.
// A stopped resorter cannot be restarted. Calling Stop again is a no-op;
// stopping an idle resorter just disposes it.
func (r *Resorter) Stop() error {
	r.mu.Lock()
	switch r.state {
	case StateStopped:
		r.mu.Unlock()
		return nil
	case StateIdle:
		r.state = StateStopped
		r.mu.Unlock()
		return nil
	}
	r.state = StateStopping
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()

	timer := time.NewTimer(r.stopTimeout)
	defer timer.Stop()

	var err error
	select {
	case <-done:
	case <-timer.C:
		err = errors.Wrapf(ErrStopTimeout, "after %v", r.stopTimeout)
		r.logger.Warnf("loop still busy after %v, abandoning it", r.stopTimeout)
	}

	r.mu.Lock()
	r.state = StateStopped
	r.cancel = nil
	r.mu.Unlock()

	r.logger.Infof("stopped after %d passes", r.Passes())
	return err
}

// loop runs passes until ctx is cancelled. Cancellation is checked before
// every pass and during the wait between passes.
func (r *Resorter) loop(ctx context.Context, compare func(a, b string) int, done chan struct{}) {
	defer close(done)
	defer func() {
		if p := recover(); p != nil {
			err := errors.Errorf("resort loop terminated: %v", p)
			r.loopErr.Store(err)
			r.logger.Errorf("%v", err)
		}
	}()

	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		err := r.pass(ctx, compare)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			r.failures.Add(1)
			r.logger.Errorf("error in sorting pass: %v", err)
		default:
			n := r.passes.Add(1)
			if r.onPass != nil {
				r.onPass(n)
			}
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(r.interval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// SortOnce runs a single pass synchronously, independent of the loop.
func (r *Resorter) SortOnce(ctx context.Context) error {
	r.mu.Lock()
	compare := r.compare
	r.mu.Unlock()

	if err := r.pass(ctx, compare); err != nil {
		return err
	}
	r.passes.Add(1)
	return nil
}

// pass sorts every key currently in the store. A panic while sorting is
// turned into an error so one bad pass does not end the loop.
func (r *Resorter) pass(ctx context.Context, compare func(a, b string) int) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("sort panicked: %v", p)
		}
	}()

	for _, key := range r.store.Keys() {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := r.store.UpdateContext(ctx, key, func(items []string) []string {
			slices.SortStableFunc(items, compare)
			return items
		})
		switch {
		case errors.Is(err, storage.ErrKeyNotFound):
			// cleared while we were iterating
		case err != nil:
			return errors.Wrapf(err, "sorting %s", key)
		}
	}
	return nil
}
