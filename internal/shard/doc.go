// Package shard writes record batches to shard files and reads them back,
// fanning out one goroutine per shard in both directions.
//
// # Overview
//
// A Shard is a name plus a backing file. The name is also the shard's key
// in the keyed store. Writing and reading are separate phases: the
// orchestration layer never writes and reads the same shard concurrently,
// and WriteAll refuses to run two writers against one file.
//
//	generate ──▶ Partition ──▶ WriteAll ──┬─▶ file1.txt ──┐
//	                                      ├─▶ file2.txt ──┼──▶ ReadAll ──▶ Store
//	                                      └─▶ fileN.txt ──┘
//
// # Failure Isolation
//
// ReadAll never fails because of one shard:
//   - A missing file is logged as a warning and contributes no records
//   - A codec error is logged and the shard's key is left untouched
//   - Only a faulting goroutine or a cancelled context fails the batch
//
// # Progress
//
// Reader.Read reports (shard, current, total) after every record. The
// callback may be invoked from several goroutines at once; callers that
// print must serialize output themselves (display.Console does).
//
// # Statistics
//
// Each Shard counts writes, reads, lines read and failures with atomic
// counters; Info returns a consistent copy.
package shard
