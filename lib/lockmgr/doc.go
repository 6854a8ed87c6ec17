// Package lockmgr implements an in-process, per-key exclusive latch.
//
// Every mutation of the sorted-set store runs read-modify-write over several rows
// of the same key. The latch serializes these sequences per key, so two writers of the
// same key never build their batches from the same stale state, while writers of
// different keys proceed in parallel.
//
// Implementation Approach:
//
//	Latches live in a concurrent map (xsync.MapOf) from key to a reference-counted
//	mutex. AcquireLock increments the reference count inside the map's atomic Compute
//	and then blocks on the mutex. Releasing unlocks the mutex and decrements the count;
//	the last reference removes the entry, so the map only holds keys that are currently
//	held or awaited and does not grow with the key space.
//
// Usage Example:
//
//	latches := lockmgr.NewLockManager()
//
//	release := latches.AcquireLock("zset-key")
//	defer release()
//	// read, build and commit the batch
//
// Readers do not take latches. They read from an engine snapshot instead.
package lockmgr
