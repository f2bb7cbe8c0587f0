package shard

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dreamware/shardsort/internal/codec"
	"github.com/dreamware/shardsort/internal/logger"
	"github.com/dreamware/shardsort/internal/record"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Writer serializes record batches into shard files.
type Writer struct {
	codec  codec.Codec
	logger logger.Logger
}

// NewWriter returns a Writer saving through c.
func NewWriter(c codec.Codec, l logger.Logger) *Writer {
	if l == nil {
		l = logger.NopLogger
	}
	return &Writer{codec: c, logger: l.WithPrefix("shard-writer")}
}

// Write replaces the contents of s with records.
func (w *Writer) Write(ctx context.Context, s *Shard, records []record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.codec.Save(s.Path, record.Strings(records)); err != nil {
		atomic.AddUint64(&s.Stats.Failures, 1)
		return errors.Wrapf(err, "writing shard %s", s.Name)
	}
	atomic.AddUint64(&s.Stats.Writes, 1)
	w.logger.Debugf("wrote %d records to %s", len(records), s.Path)
	return nil
}

// WriteAll writes batches[i] to shards[i], one goroutine per shard, and
// waits for all of them. The first failure is returned after every writer
// has finished.
func (w *Writer) WriteAll(ctx context.Context, shards []*Shard, batches [][]record.Record) error {
	if len(shards) != len(batches) {
		return errors.Errorf("%d shards but %d batches", len(shards), len(batches))
	}
	if err := checkDistinct(shards); err != nil {
		return err
	}

	var g errgroup.Group
	for i := range shards {
		s, batch := shards[i], batches[i]
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Errorf("writer for %s panicked: %v", s.Name, r)
				}
			}()
			return w.Write(ctx, s, batch)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	w.logger.Infof("wrote %d shards", len(shards))
	return nil
}

// WritePlaceholders fills every shard whose file is missing with perShard
// "Sample object <i> in <name>" lines. Existing files are left alone.
// It returns the names of the shards it created.
func (w *Writer) WritePlaceholders(ctx context.Context, shards []*Shard, perShard int) ([]string, error) {
	var created []string
	for _, s := range shards {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		if s.Exists() {
			continue
		}
		lines := make([]string, perShard)
		for i := range lines {
			lines[i] = fmt.Sprintf("Sample object %d in %s", i+1, s.Name)
		}
		if err := w.codec.Save(s.Path, lines); err != nil {
			atomic.AddUint64(&s.Stats.Failures, 1)
			return created, errors.Wrapf(err, "creating sample shard %s", s.Name)
		}
		atomic.AddUint64(&s.Stats.Writes, 1)
		w.logger.Infof("created sample shard %s with %d lines", s.Name, perShard)
		created = append(created, s.Name)
	}
	return created, nil
}
