package shard

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ErrShardMissing is returned by Reader.Read when the shard file is absent
var ErrShardMissing = errors.New("shard file missing")

// Shard is a named partition of records backed by one file.
// The Name doubles as the shard's key in the keyed store.
type Shard struct {
	Name  string      // Shard identifier, e.g. "file1.txt"
	Path  string      // Backing file
	Stats *ShardStats // Operation statistics
}

// ShardStats tracks operation counts for a shard
type ShardStats struct {
	Writes   uint64 // Completed writes
	Reads    uint64 // Completed reads
	Lines    uint64 // Record texts read in total
	Failures uint64 // Failed reads or writes
}

// ShardInfo contains metadata about a shard
type ShardInfo struct {
	Name   string     // Shard identifier
	Path   string     // Backing file
	Exists bool       // Whether the backing file is present
	Stats  ShardStats // Point-in-time copy of the counters
}

// NewShard creates a shard named name stored under dir
func NewShard(name, dir string) *Shard {
	return &Shard{
		Name:  name,
		Path:  filepath.Join(dir, name),
		Stats: &ShardStats{},
	}
}

// NewShards creates one shard per name, all stored under dir
func NewShards(dir string, names []string) []*Shard {
	shards := make([]*Shard, len(names))
	for i, name := range names {
		shards[i] = NewShard(name, dir)
	}
	return shards
}

// Exists reports whether the backing file is present
func (s *Shard) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}

// GetStats returns current shard statistics
func (s *Shard) GetStats() ShardStats {
	return ShardStats{
		Writes:   atomic.LoadUint64(&s.Stats.Writes),
		Reads:    atomic.LoadUint64(&s.Stats.Reads),
		Lines:    atomic.LoadUint64(&s.Stats.Lines),
		Failures: atomic.LoadUint64(&s.Stats.Failures),
	}
}

// Info returns metadata about the shard
func (s *Shard) Info() ShardInfo {
	return ShardInfo{
		Name:   s.Name,
		Path:   s.Path,
		Exists: s.Exists(),
		Stats:  s.GetStats(),
	}
}

// checkDistinct rejects shard lists naming the same shard twice, since two
// concurrent writers must never target one file.
func checkDistinct(shards []*Shard) error {
	seen := make(map[string]bool, len(shards))
	for _, s := range shards {
		if s == nil {
			return errors.New("nil shard")
		}
		if seen[s.Path] {
			return errors.Errorf("shard %s listed twice", s.Name)
		}
		seen[s.Path] = true
	}
	return nil
}
