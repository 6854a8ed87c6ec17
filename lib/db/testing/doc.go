// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - testing: A test suite for validating conformance to the KVDB interface contract
//     (copy semantics, batch atomicity and ordering, range deletion, bounded forward and
//     backward iteration, snapshot isolation, Save/Load round trips)
//   - benchmark: Performance tests for measuring throughput of common database operations
//
// Tests of optional behavior call requireFeature and are skipped for engines that
// do not advertise the feature.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() db.KVDB {
//		return NewMyDatabase()
//	}
//
//	// Running the standard test suite
//	dbtesting.RunKVDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunKVDBBenchmarks(b, "MyDatabase", factory)
package testing
