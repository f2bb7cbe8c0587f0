package shard

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dreamware/shardsort/internal/codec"
	"github.com/dreamware/shardsort/internal/logger"
	"github.com/dreamware/shardsort/internal/storage"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Progress is called after each record a reader consumes. current runs
// from 1 to total for a given shard.
type Progress func(shard string, current, total int)

// Reader loads shard files back into record texts.
type Reader struct {
	codec     codec.Codec
	logger    logger.Logger
	lineDelay time.Duration
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithLineDelay pauses after every record so progress is visible on a
// console. Zero disables the pause.
func WithLineDelay(d time.Duration) ReaderOption {
	return func(r *Reader) {
		r.lineDelay = d
	}
}

// NewReader returns a Reader loading through c.
func NewReader(c codec.Codec, l logger.Logger, opts ...ReaderOption) *Reader {
	if l == nil {
		l = logger.NopLogger
	}
	r := &Reader{codec: c, logger: l.WithPrefix("shard-reader")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result describes what one shard contributed to a ReadAll.
type Result struct {
	Shard   string
	Count   int
	Missing bool
	Err     error
}

// Read returns every record text in s. It returns ErrShardMissing if the
// backing file does not exist. progress may be nil.
func (r *Reader) Read(ctx context.Context, s *Shard, progress Progress) ([]string, error) {
	if !s.Exists() {
		return nil, errors.Wrapf(ErrShardMissing, "shard %s at %s", s.Name, s.Path)
	}

	lines, err := r.codec.Load(s.Path)
	if err != nil {
		atomic.AddUint64(&s.Stats.Failures, 1)
		return nil, errors.Wrapf(err, "reading shard %s", s.Name)
	}

	total := len(lines)
	for i := range lines {
		if progress != nil {
			progress(s.Name, i+1, total)
		}
		if err := r.pause(ctx); err != nil {
			return nil, err
		}
	}

	atomic.AddUint64(&s.Stats.Reads, 1)
	atomic.AddUint64(&s.Stats.Lines, uint64(total))
	return lines, nil
}

func (r *Reader) pause(ctx context.Context) error {
	if r.lineDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(r.lineDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ReadAll reads every shard concurrently and publishes each successfully
// read shard into store under its name, replacing what was there.
//
// A missing or unreadable shard is logged and contributes nothing; its key
// in store is left untouched. The returned error is non-nil only if a
// reader goroutine itself faulted or ctx was cancelled.
func (r *Reader) ReadAll(ctx context.Context, shards []*Shard, store *storage.Store, progress Progress) ([]Result, error) {
	results := make([]Result, len(shards))

	var g errgroup.Group
	for i := range shards {
		i, s := i, shards[i]
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = errors.Errorf("reader for %s panicked: %v", s.Name, p)
				}
			}()

			res := Result{Shard: s.Name}
			lines, readErr := r.Read(ctx, s, progress)
			switch {
			case errors.Is(readErr, ErrShardMissing):
				res.Missing = true
				r.logger.Warnf("shard %s not found at %s, skipping", s.Name, s.Path)
			case readErr != nil:
				res.Err = readErr
				r.logger.Errorf("error reading %s: %v", s.Name, readErr)
			default:
				res.Count = len(lines)
				store.Set(s.Name, lines)
				r.logger.Infof("loaded %s: %d records", s.Name, len(lines))
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
