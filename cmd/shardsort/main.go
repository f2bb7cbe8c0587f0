// Package main implements shardsort, a console tool that generates sample
// records into shard files, reads them back concurrently into an in-memory
// keyed store and keeps that store sorted from a background goroutine.
//
// Architecture:
//
//	┌──────────────────────────────────────────────┐
//	│                  shardsort                   │
//	├──────────────────────────────────────────────┤
//	│  Commands:                                   │
//	│    menu      - Interactive numbered menu     │
//	│    generate  - Write records to shard files  │
//	│    read      - Parallel read into the store  │
//	│    resort    - Timed background resort       │
//	│    bounded   - Admission-controlled readers  │
//	│    merge     - Interleave two shards         │
//	│    split     - Read one shard from N parts   │
//	│    config    - Print effective config        │
//	├──────────────────────────────────────────────┤
//	│  Components:                                 │
//	│    App       - Store, shards, resorter       │
//	│    Console   - Serialized terminal output    │
//	└──────────────────────────────────────────────┘
//
// Configuration comes from flags, SHARDSORT_* environment variables and an
// optional TOML file given with --config, in that priority order.
//
// Example usage:
//
//	# Write five shards and browse them interactively
//	shardsort generate --data-dir /tmp/shards
//	shardsort --data-dir /tmp/shards
//
//	# Resort for one second with a faster period
//	SHARDSORT_RESORT_INTERVAL=100ms shardsort resort --resort.window 1s
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dreamware/shardsort/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCommand(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Stderr().Errorf("%v", err)
		os.Exit(1)
	}
}
