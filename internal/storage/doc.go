// Package storage provides the keyed store that every shardsort pipeline
// stage meets at: a concurrency-safe map from shard name to the multiset of
// record texts currently loaded for that shard.
//
// # Overview
//
// Shard readers populate the store once per load, the background resorter
// rewrites each key on a fixed period, and the console iterates it for
// display. The store is the only state mutated by more than one goroutine.
//
//	┌──────────────┐   Set / Add    ┌──────────────┐   Update   ┌──────────────┐
//	│ Shard Reader │ ─────────────▶ │    Store     │ ◀───────── │   Resorter   │
//	└──────────────┘                └──────────────┘            └──────────────┘
//	                                       │ Get / Range / Snapshot
//	                                       ▼
//	                                ┌──────────────┐
//	                                │   Console    │
//	                                └──────────────┘
//
// # Snapshots
//
// Each key holds an immutable []string. Writers never modify a published
// slice; they publish a new one. Readers therefore either see the complete
// old collection or the complete new one for a key, never a mix.
//
// # Concurrency and Thread Safety
//
// Locking Strategy:
//   - Read operations use shared locks (RLock)
//   - Write operations use exclusive locks (Lock)
//   - Update computes outside the lock and publishes with a version check
//   - No locks held during I/O or sorting
//
// Consistency Guarantees:
//   - Per-key replacement is atomic
//   - No guarantees across multiple keys
//   - Range visits keys in name order, each at its then-current snapshot
//
// # Error Handling
//
// ErrKeyNotFound: Key doesn't exist in store
//   - Returned by Get(), Update() and UpdateContext()
//
// ErrContended: Update lost the version race too many times in a row
//   - The key is left at whatever the competing writer published
//
// # Usage Examples
//
//	store := storage.NewStore()
//	store.Set("file1.txt", lines)
//
//	err := store.Update("file1.txt", func(items []string) []string {
//	    record.Sort(items)
//	    return items
//	})
//
//	store.Range(func(key string, items []string) bool {
//	    fmt.Println(key, len(items))
//	    return true
//	})
package storage
