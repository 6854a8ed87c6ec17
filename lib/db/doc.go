// Package db provides a standardized interface for ordered key-value database implementations.
// It defines the KVDB interface that the sorted-set store is layered on, so that
// the store does not depend on a particular storage engine.
//
// The package focuses on:
//   - A unified interface for point lookups, atomic write batches, snapshots and iterators
//   - Feature discovery through capability flags
//   - Standardized persistence operations (Save and Load share one dump format)
//   - Comprehensive metadata reporting
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must satisfy.
//     Keys are raw byte strings compared lexicographically. Reads go through Get and
//     NewIter, writes go exclusively through Batch, which is applied atomically.
//
//   - Snapshot: A consistent point-in-time view. Readers that need more than one
//     lookup (e.g. read a counter, then scan a range) use a snapshot so that a concurrent
//     batch can never be observed half applied.
//
//   - Iterator: Bounded forward and backward iteration. The bounds [LowerBound, UpperBound)
//     let callers confine a scan to one key prefix.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method.
//
//   - Database Information: The DatabaseInfo structure provides standardized
//     reporting on database state. Sizes are estimates for most implementations.
//
// Implementations:
//
// The engines/lsm package provides the durable implementation on top of the Pebble
// LSM-tree. It is the engine to use whenever the data has to survive a restart or can
// grow beyond memory.
//
// The engines/maple package provides a volatile implementation on a copy-on-write
// B-tree. Snapshots are O(1) copies of the tree. It is meant for tests and ephemeral data.
//
// The testing package provides standardized tests and benchmarks for KVDB implementations:
//   - RunKVDBTests: Runs a standardized test suite to validate implementations
//   - RunKVDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
