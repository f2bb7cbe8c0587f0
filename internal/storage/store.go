package storage

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// ErrKeyNotFound is returned when a key doesn't exist in the store
var ErrKeyNotFound = errors.New("key not found")

// maxUpdateAttempts bounds how often Update retries a contended key
const maxUpdateAttempts = 64

// ErrContended is returned when Update keeps losing races for a key
var ErrContended = errors.New("key update contended")

// Store maps shard names to the current multiset of record texts.
// All methods are safe for concurrent use without external locking.
//
// A value handed out by the store is an immutable snapshot: the store never
// writes into a slice after publishing it. Replacing a key swaps the whole
// slice, so a reader ranging over an old snapshot is never torn.
type Store struct {
	mu   sync.RWMutex      // Protects data and seq
	data map[string]*entry // Shard name to current snapshot
	seq  uint64            // Last version handed out, never reused
}

// entry is one published snapshot plus the version it was published at
type entry struct {
	items   []string
	version uint64
}

// StoreStats contains statistics about the store
type StoreStats struct {
	Keys    int // Number of shards
	Entries int // Total number of record texts across shards
}

// NewStore creates an empty keyed store
func NewStore() *Store {
	return &Store{
		data: make(map[string]*entry),
	}
}

// Get returns the snapshot stored at key.
// Returns ErrKeyNotFound if the key doesn't exist.
func (s *Store) Get(key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[key]
	if !exists {
		return nil, ErrKeyNotFound
	}
	return e.items, nil
}

// Set replaces the collection at key in a single step.
// The slice is copied so later caller mutations are not visible.
func (s *Store) Set(key string, items []string) {
	stored := clone(items)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, stored)
}

// GetOrCreate returns the snapshot at key, creating an empty one if absent
func (s *Store) GetOrCreate(key string) []string {
	s.mu.RLock()
	e, exists := s.data[key]
	s.mu.RUnlock()
	if exists {
		return e.items
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, exists := s.data[key]; exists {
		return e.items
	}
	s.setLocked(key, []string{})
	return s.data[key].items
}

// Add appends items to the collection at key, creating it if needed.
// Appending publishes a new slice; existing snapshots are left untouched.
func (s *Store) Add(key string, items ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current []string
	if e, exists := s.data[key]; exists {
		current = e.items
	}
	next := make([]string, 0, len(current)+len(items))
	next = append(next, current...)
	next = append(next, items...)
	s.setLocked(key, next)
}

// Update replaces the collection at key with fn(current).
//
// fn runs without the store lock held and receives a private copy it may
// reorder freely. If another writer replaces the key while fn runs, the
// result is discarded and fn is retried against the newer collection, so
// concurrent appends are never lost. A panic in fn leaves the key as it was.
func (s *Store) Update(key string, fn func([]string) []string) error {
	return s.UpdateContext(context.Background(), key, fn)
}

// UpdateContext is Update with a commit guard: once ctx is done, no result
// of fn is published and ctx.Err() is returned. The check is made under the
// write lock, so an update still computing when ctx is cancelled never
// lands afterwards.
func (s *Store) UpdateContext(ctx context.Context, key string, fn func([]string) []string) error {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		s.mu.RLock()
		e, exists := s.data[key]
		s.mu.RUnlock()
		if !exists {
			return ErrKeyNotFound
		}

		next := fn(clone(e.items))

		s.mu.Lock()
		if err := ctx.Err(); err != nil {
			s.mu.Unlock()
			return err
		}
		current, exists := s.data[key]
		if !exists {
			s.mu.Unlock()
			return ErrKeyNotFound
		}
		if current.version == e.version {
			s.setLocked(key, next)
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()
	}
	return ErrContended
}

// Keys returns all shard names in lexicographic order
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	s.mu.RUnlock()

	slices.Sort(keys)
	return keys
}

// Range calls fn for every key in lexicographic order with the snapshot
// current when the key is visited. No cross-key consistency is implied.
// Iteration stops early if fn returns false.
func (s *Store) Range(fn func(key string, items []string) bool) {
	for _, key := range s.Keys() {
		items, err := s.Get(key)
		if err != nil {
			continue
		}
		if !fn(key, items) {
			return
		}
	}
}

// Snapshot returns a copy of the whole map
func (s *Store) Snapshot() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]string, len(s.data))
	for key, e := range s.data {
		out[key] = e.items
	}
	return out
}

// Len returns the number of entries at key, or 0 if absent
func (s *Store) Len(key string) int {
	items, err := s.Get(key)
	if err != nil {
		return 0
	}
	return len(items)
}

// Clear removes every key
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]*entry)
}

// Stats returns storage statistics
func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, e := range s.data {
		total += len(e.items)
	}
	return StoreStats{
		Keys:    len(s.data),
		Entries: total,
	}
}

// setLocked publishes items at key; s.mu must be held for writing
func (s *Store) setLocked(key string, items []string) {
	if items == nil {
		items = []string{}
	}
	s.seq++
	s.data[key] = &entry{items: items, version: s.seq}
}

func clone(items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	return out
}
