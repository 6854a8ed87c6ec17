// Package testing provides a standardised test suite for implementations of the
// store.IStore interface.
//
// The suite covers the documented behavior of every operation: add flags, increments,
// removals, rank and score ranges, lexicographic ranges, pops, deletion and recreation,
// expiration, argument validation and concurrent mutations of one key. It also checks
// the ordering properties that every implementation must keep:
//   - Rank(m, false) + Rank(m, true) == Card - 1 for every member
//   - Range(i, i) returns the member with rank i
//   - repeated pops of the minimum drain a sorted set in ascending order
//
// Example usage:
//
//	factory := func() store.IStore {
//		s, _ := zstore.NewStore(maple.NewMapleDB(nil), zstore.DefaultOptions("zset_ns"))
//		return s
//	}
//
//	storetesting.RunStoreTests(t, "ZStore", factory)
package testing
