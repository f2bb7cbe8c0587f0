package shard

import (
	"context"

	"github.com/dreamware/shardsort/internal/codec"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// MergeAlternating loads a and b concurrently and writes their records to
// out interleaved: a[0], b[0], a[1], b[1], ... followed by the tail of the
// longer input. Missing inputs count as empty. It returns the number of
// records written.
func MergeAlternating(ctx context.Context, c codec.Codec, a, b, out *Shard) (int, error) {
	if out.Path == a.Path || out.Path == b.Path {
		return 0, errors.Errorf("merge output %s overlaps an input", out.Name)
	}

	var left, right []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		left, err = load(gctx, c, a)
		return err
	})
	g.Go(func() (err error) {
		right, err = load(gctx, c, b)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, err
	}

	merged := Interleave(left, right)
	if err := c.Save(out.Path, merged); err != nil {
		return 0, errors.Wrapf(err, "writing merged shard %s", out.Name)
	}
	return len(merged), nil
}

// Interleave alternates entries of a and b, then appends the remainder.
func Interleave(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if i < len(a) {
			out = append(out, a[i])
		}
		if i < len(b) {
			out = append(out, b[i])
		}
	}
	return out
}

func load(ctx context.Context, c codec.Codec, s *Shard) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lines, err := c.Load(s.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "loading shard %s", s.Name)
	}
	return lines, nil
}
