// Package app wires the pipeline together. An App is the single context
// object built at start-up: it owns the keyed store, the shard set, the
// console and the background resorter, and exposes one method per
// pipeline action.
package app

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/dreamware/shardsort/internal/codec"
	"github.com/dreamware/shardsort/internal/config"
	"github.com/dreamware/shardsort/internal/display"
	"github.com/dreamware/shardsort/internal/logger"
	"github.com/dreamware/shardsort/internal/pool"
	"github.com/dreamware/shardsort/internal/record"
	"github.com/dreamware/shardsort/internal/resort"
	"github.com/dreamware/shardsort/internal/shard"
	"github.com/dreamware/shardsort/internal/storage"
)

// ErrNothingLoaded is returned by actions that need shards in the store.
var ErrNothingLoaded = errors.New("no shards loaded, run a read first")

// App holds everything the pipeline actions share.
type App struct {
	cfg     *config.Config
	codec   codec.Codec
	store   *storage.Store
	shards  []*shard.Shard
	console *display.Console
	logger  logger.Logger
	now     func() time.Time

	mu       sync.Mutex       // Protects resorter
	resorter *resort.Resorter // Current resorter, nil before the first resort
}

// New builds an App from a validated configuration. Console output goes
// to out.
func New(cfg *config.Config, out io.Writer, l logger.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c, err := codec.ForFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.NopLogger
	}
	return &App{
		cfg:     cfg,
		codec:   c,
		store:   storage.NewStore(),
		shards:  shard.NewShards(cfg.DataDir, cfg.Shards),
		console: display.NewConsole(out),
		logger:  l.WithPrefix("app"),
		now:     time.Now,
	}, nil
}

// Store returns the keyed store.
func (a *App) Store() *storage.Store { return a.store }

// Console returns the console all actions print to.
func (a *App) Console() *display.Console { return a.console }

// Generate creates the configured number of phone and manufacturer
// records, partitions them across the shards and writes every shard
// concurrently.
func (a *App) Generate(ctx context.Context) error {
	seed := a.cfg.Generate.Seed
	if seed == 0 {
		seed = a.now().UnixNano()
	}
	records := record.Generate(a.cfg.Generate.Phones, a.cfg.Generate.Manufacturers, seed)
	batches := record.Partition(records, len(a.shards), a.cfg.Generate.PerShard)

	a.console.Section("Generating and writing shards")
	a.logger.Debugf("generated %d records with seed %d", len(records), seed)
	if err := shard.NewWriter(a.codec, a.logger).WriteAll(ctx, a.shards, batches); err != nil {
		return errors.Wrap(err, "writing shards")
	}
	for i, s := range a.shards {
		info := s.Info()
		a.console.Line("%s: %d records -> %s", info.Name, len(batches[i]), info.Path)
	}
	a.console.StageDone("Generating and writing")
	return nil
}

// Read stops any running resorter, then loads every shard concurrently
// into the store with per-record progress. With samples set, missing
// shards are first filled with placeholder lines.
func (a *App) Read(ctx context.Context, samples bool) ([]shard.Result, error) {
	if err := a.stopResorter(); err != nil {
		a.logger.Warnf("stopping resorter before read: %v", err)
	}

	a.console.Section("Reading shards")
	if samples {
		created, err := shard.NewWriter(a.codec, a.logger).WritePlaceholders(ctx, a.shards, a.cfg.Generate.PerShard)
		if err != nil {
			return nil, err
		}
		for _, name := range created {
			a.console.Line("%s not found, created sample content", name)
		}
	}

	r := shard.NewReader(a.codec, a.logger, shard.WithLineDelay(time.Duration(a.cfg.Read.ProgressDelay)))
	results, err := r.ReadAll(ctx, a.shards, a.store, a.console.Progress)
	if err != nil {
		return results, errors.Wrap(err, "reading shards")
	}
	for _, res := range results {
		switch {
		case res.Missing:
			a.console.Line("%s not found. Skipping", res.Shard)
		case res.Err != nil:
			a.console.Error("reading "+res.Shard, res.Err)
		}
	}

	a.console.Contents(a.store.Snapshot(), 3)
	a.console.StageDone("Parallel read")
	return results, nil
}

// Resort starts a background resorter over the store. With a positive
// window it waits that long (or until ctx ends), stops the resorter and
// prints the sorted contents. Otherwise the resorter keeps running until
// the next Read or Close. It returns the number of completed passes.
func (a *App) Resort(ctx context.Context, window time.Duration) (uint64, error) {
	if a.store.Stats().Keys == 0 {
		return 0, ErrNothingLoaded
	}
	if err := a.stopResorter(); err != nil {
		a.logger.Warnf("stopping previous resorter: %v", err)
	}

	r := resort.New(a.store,
		resort.WithInterval(time.Duration(a.cfg.Resort.Interval)),
		resort.WithStopTimeout(time.Duration(a.cfg.Resort.StopTimeout)),
		resort.WithLogger(a.logger),
		resort.WithOnPass(func(n uint64) { a.logger.Debugf("resort pass %d done", n) }),
	)
	if err := r.Start(); err != nil {
		return 0, err
	}
	a.mu.Lock()
	a.resorter = r
	a.mu.Unlock()

	if window <= 0 {
		a.console.Line("Background resort running every %v", a.cfg.Resort.Interval)
		return 0, nil
	}

	a.console.Section("Background resort")
	a.console.Line("Sorting every %v for %v", a.cfg.Resort.Interval, window)
	timer := time.NewTimer(window)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	stopErr := a.stopResorter()
	passes := r.Passes()
	a.console.Detailed(a.store.Snapshot(), record.SortKey)
	a.console.Line("%d passes, %d failed", passes, r.Failures())
	a.console.StageDone("Background resort")
	if stopErr != nil {
		return passes, stopErr
	}
	return passes, ctx.Err()
}

// Bounded runs tasks readers over the loaded dataset with at most
// maxConcurrent of them inside their read at once.
func (a *App) Bounded(ctx context.Context, tasks, maxConcurrent int) (pool.Stats, error) {
	dataset, err := a.dataset()
	if err != nil {
		return pool.Stats{}, err
	}
	a.console.Section("Bounded read")
	stats, err := pool.RunBounded(ctx, tasks, maxConcurrent, a.readerWork(dataset))
	a.reportBounded(stats, maxConcurrent)
	return stats, err
}

// BoundedMonitor is Bounded on the condition-variable gate.
func (a *App) BoundedMonitor(tasks, maxConcurrent int) (pool.Stats, error) {
	dataset, err := a.dataset()
	if err != nil {
		return pool.Stats{}, err
	}
	a.console.Section("Bounded read (monitor)")
	stats, err := pool.RunMonitor(tasks, maxConcurrent, a.readerWork(dataset))
	a.reportBounded(stats, maxConcurrent)
	return stats, err
}

// readerWork prints every record of dataset, tagged with the reader id.
func (a *App) readerWork(dataset []string) pool.Work {
	return func(ctx context.Context, id int) error {
		a.console.Line("Reader %d started", id)
		for _, line := range dataset {
			if err := ctx.Err(); err != nil {
				return err
			}
			a.console.Line("  [reader %d] %s", id, line)
		}
		a.console.Line("Reader %d finished", id)
		return nil
	}
}

func (a *App) reportBounded(stats pool.Stats, maxConcurrent int) {
	a.console.Line("%d readers completed, %d failed, peak %d of %d allowed",
		stats.Completed, stats.Failed, stats.Peak, maxConcurrent)
}

// dataset flattens the store in key order.
func (a *App) dataset() ([]string, error) {
	var out []string
	a.store.Range(func(_ string, items []string) bool {
		out = append(out, items...)
		return true
	})
	if len(out) == 0 {
		return nil, ErrNothingLoaded
	}
	return out, nil
}

// Merge interleaves the two configured shards into the merge output file.
func (a *App) Merge(ctx context.Context) (int, error) {
	first := shard.NewShard(a.cfg.Merge.First, a.cfg.DataDir)
	second := shard.NewShard(a.cfg.Merge.Second, a.cfg.DataDir)
	out := shard.NewShard(a.cfg.Merge.Output, a.cfg.DataDir)

	n, err := shard.MergeAlternating(ctx, a.codec, first, second, out)
	if err != nil {
		return 0, err
	}
	a.console.Line("Merged %s and %s into %s: %d records", first.Name, second.Name, out.Name, n)
	return n, nil
}

// Split reads the configured split shard once and prints it from parts
// goroutines, each taking a contiguous slice of the records.
func (a *App) Split(ctx context.Context, parts int) error {
	s := shard.NewShard(a.cfg.Split.Shard, a.cfg.DataDir)
	lines, err := shard.NewReader(a.codec, a.logger).Read(ctx, s, nil)
	if err != nil {
		return err
	}

	a.console.Section("Split read of " + s.Name)
	err = pool.Split(ctx, lines, parts, func(ctx context.Context, part int, chunk []string) error {
		for _, line := range chunk {
			if err := ctx.Err(); err != nil {
				return err
			}
			a.console.Line("  [part %d] %s", part, line)
		}
		a.console.Line("Part %d read %d records", part, len(chunk))
		return nil
	})
	if err != nil {
		return err
	}
	a.console.StageDone("Split read")
	return nil
}

// Close stops the resorter if one is running.
func (a *App) Close() error {
	return a.stopResorter()
}

// ResorterState reports the current resorter's state, or StateIdle if
// none was started.
func (a *App) ResorterState() resort.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.resorter == nil {
		return resort.StateIdle
	}
	return a.resorter.State()
}

func (a *App) stopResorter() error {
	a.mu.Lock()
	r := a.resorter
	a.mu.Unlock()
	if r == nil {
		return nil
	}
	return r.Stop()
}
