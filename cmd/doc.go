// Package cmd implements the command-line interface of zKV, a durable sorted-set store.
// The store runs in-process, every command opens the database, executes and closes it again.
//
// The package is organized into several subpackages:
//
//   - zset: Commands for sorted-set operations (add, range, rank, pop, etc.),
//     maintenance (gc, stats, dump, restore) and a performance test
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See zkv -help for a list of all commands.
package cmd
