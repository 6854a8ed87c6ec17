// Package lsm implements the durable db.KVDB engine on top of the pebble
// LSM-tree (github.com/cockroachdb/pebble).
//
// The engine is a thin adapter:
//   - Get copies the value out of pebble's block buffer, so callers own the returned slice
//   - Batches map one to one onto pebble batches, including range deletions
//   - Snapshots and iterators are pebble snapshots and bounded pebble iterators
//   - Commits are synced to the write-ahead log unless DBOptions.Sync is false
//
// Pebble's own log output is forwarded to the "lsm" dragonboat logger, informational
// messages at debug level.
//
// Tests use InMemoryOptions, which backs the database with pebble's in-memory file system.
package lsm
