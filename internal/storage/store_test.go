package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStore tests the basic keyed store operations
func TestStore(t *testing.T) {
	t.Run("new store is empty", func(t *testing.T) {
		store := NewStore()

		if keys := store.Keys(); len(keys) != 0 {
			t.Errorf("Expected empty store, got %d keys", len(keys))
		}

		_, err := store.Get("file1.txt")
		if err != ErrKeyNotFound {
			t.Errorf("Expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("set and get", func(t *testing.T) {
		store := NewStore()
		store.Set("file1.txt", []string{"b", "a"})

		items, err := store.Get("file1.txt")
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, items)
	})

	t.Run("set copies input", func(t *testing.T) {
		store := NewStore()
		in := []string{"a", "b"}
		store.Set("file1.txt", in)
		in[0] = "mutated"

		items, _ := store.Get("file1.txt")
		assert.Equal(t, "a", items[0])
	})

	t.Run("set nil stores empty collection", func(t *testing.T) {
		store := NewStore()
		store.Set("file1.txt", nil)

		items, err := store.Get("file1.txt")
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Len(t, items, 0)
	})

	t.Run("get or create", func(t *testing.T) {
		store := NewStore()

		items := store.GetOrCreate("file2.txt")
		assert.NotNil(t, items)
		assert.Len(t, items, 0)

		store.Add("file2.txt", "x")
		assert.Equal(t, []string{"x"}, store.GetOrCreate("file2.txt"))
	})

	t.Run("add keeps old snapshots intact", func(t *testing.T) {
		store := NewStore()
		store.Add("file1.txt", "a")
		before, _ := store.Get("file1.txt")

		store.Add("file1.txt", "b", "c")
		after, _ := store.Get("file1.txt")

		assert.Equal(t, []string{"a"}, before)
		assert.Equal(t, []string{"a", "b", "c"}, after)
	})

	t.Run("keys are sorted", func(t *testing.T) {
		store := NewStore()
		for _, k := range []string{"file3.txt", "file1.txt", "file2.txt"} {
			store.Set(k, nil)
		}
		assert.Equal(t, []string{"file1.txt", "file2.txt", "file3.txt"}, store.Keys())
	})

	t.Run("range stops early", func(t *testing.T) {
		store := NewStore()
		store.Set("a", []string{"1"})
		store.Set("b", []string{"2"})

		var visited []string
		store.Range(func(key string, items []string) bool {
			visited = append(visited, key)
			return false
		})
		assert.Equal(t, []string{"a"}, visited)
	})

	t.Run("snapshot and clear", func(t *testing.T) {
		store := NewStore()
		store.Set("a", []string{"1", "2"})
		snap := store.Snapshot()

		store.Clear()
		assert.Len(t, store.Keys(), 0)
		assert.Equal(t, []string{"1", "2"}, snap["a"])
		assert.Equal(t, 0, store.Len("a"))
	})
}

// TestStoreUpdate tests the read-compute-swap path used by the resorter
func TestStoreUpdate(t *testing.T) {
	t.Run("replaces collection", func(t *testing.T) {
		store := NewStore()
		store.Set("file1.txt", []string{"c", "a", "b"})

		err := store.Update("file1.txt", func(items []string) []string {
			sort.Strings(items)
			return items
		})
		require.NoError(t, err)

		items, _ := store.Get("file1.txt")
		assert.Equal(t, []string{"a", "b", "c"}, items)
	})

	t.Run("fn gets a private copy", func(t *testing.T) {
		store := NewStore()
		store.Set("file1.txt", []string{"c", "a"})
		before, _ := store.Get("file1.txt")

		_ = store.Update("file1.txt", func(items []string) []string {
			sort.Strings(items)
			return items
		})
		assert.Equal(t, []string{"c", "a"}, before)
	})

	t.Run("missing key", func(t *testing.T) {
		store := NewStore()
		err := store.Update("nope", func(items []string) []string { return items })
		assert.True(t, errors.Is(err, ErrKeyNotFound))
	})

	t.Run("retries when raced", func(t *testing.T) {
		store := NewStore()
		store.Set("file1.txt", []string{"b"})

		calls := 0
		err := store.Update("file1.txt", func(items []string) []string {
			calls++
			if calls == 1 {
				// A concurrent ingest lands while we compute.
				store.Add("file1.txt", "a")
			}
			sort.Strings(items)
			return items
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)

		items, _ := store.Get("file1.txt")
		assert.Equal(t, []string{"a", "b"}, items)
	})

	t.Run("gives up under permanent contention", func(t *testing.T) {
		store := NewStore()
		store.Set("file1.txt", nil)

		err := store.Update("file1.txt", func(items []string) []string {
			store.Add("file1.txt", "x")
			return items
		})
		assert.True(t, errors.Is(err, ErrContended))
		assert.Equal(t, maxUpdateAttempts, store.Len("file1.txt"))
	})

	t.Run("cancelled while computing does not commit", func(t *testing.T) {
		store := NewStore()
		store.Set("file1.txt", []string{"b", "a"})

		ctx, cancel := context.WithCancel(context.Background())
		err := store.UpdateContext(ctx, "file1.txt", func(items []string) []string {
			cancel()
			sort.Strings(items)
			return items
		})
		assert.True(t, errors.Is(err, context.Canceled))

		items, _ := store.Get("file1.txt")
		assert.Equal(t, []string{"b", "a"}, items)
	})

	t.Run("panic leaves key unchanged", func(t *testing.T) {
		store := NewStore()
		store.Set("file1.txt", []string{"b", "a"})

		assert.Panics(t, func() {
			_ = store.Update("file1.txt", func(items []string) []string {
				panic("bad record")
			})
		})
		items, _ := store.Get("file1.txt")
		assert.Equal(t, []string{"b", "a"}, items)
	})
}

// TestStoreConcurrency tests thread-safe concurrent access
func TestStoreConcurrency(t *testing.T) {
	t.Run("concurrent adds and updates lose nothing", func(t *testing.T) {
		store := NewStore()
		store.Set("shard", nil)

		numWriters := 20
		numOps := 50

		var wg sync.WaitGroup
		wg.Add(numWriters + 1)

		for i := 0; i < numWriters; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOps; j++ {
					store.Add("shard", fmt.Sprintf("writer-%d-%d", id, j))
				}
			}(i)
		}

		// Sorter keeps permuting while writers append
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				err := store.Update("shard", func(items []string) []string {
					sort.Strings(items)
					return items
				})
				if err != nil && !errors.Is(err, ErrContended) {
					t.Errorf("update failed: %v", err)
				}
			}
		}()

		wg.Wait()

		if got := store.Len("shard"); got != numWriters*numOps {
			t.Errorf("Expected %d entries, got %d", numWriters*numOps, got)
		}
	})

	t.Run("readers never see torn snapshots", func(t *testing.T) {
		store := NewStore()
		full := make([]string, 100)
		for i := range full {
			full[i] = fmt.Sprintf("%03d", i)
		}
		store.Set("shard", full)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				_ = store.Update("shard", func(items []string) []string {
					for l, r := 0, len(items)-1; l < r; l, r = l+1, r-1 {
						items[l], items[r] = items[r], items[l]
					}
					return items
				})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				items, _ := store.Get("shard")
				if len(items) != 100 {
					t.Errorf("Expected 100 items, got %d", len(items))
					return
				}
				seen := make(map[string]bool, len(items))
				for _, it := range items {
					seen[it] = true
				}
				if len(seen) != 100 {
					t.Errorf("Snapshot has duplicates: %d distinct", len(seen))
					return
				}
			}
		}()
		wg.Wait()
	})
}

// TestStoreStats tests the statistics functionality
func TestStoreStats(t *testing.T) {
	store := NewStore()

	stats := store.Stats()
	if stats.Keys != 0 || stats.Entries != 0 {
		t.Errorf("Initial stats should be zero, got keys=%d entries=%d", stats.Keys, stats.Entries)
	}

	store.Set("file1.txt", []string{"a", "b"})
	store.Set("file2.txt", []string{"c"})

	stats = store.Stats()
	assert.Equal(t, 2, stats.Keys)
	assert.Equal(t, 3, stats.Entries)
}
