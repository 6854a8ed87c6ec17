package lockmgr

// ReleaseFunc releases a latch. Calling it more than once has no effect.
type ReleaseFunc func()

// ILockManager defines the interface for a per-key latch provider.
type ILockManager interface {
	// AcquireLock blocks until the latch for the given key is held by the caller.
	// The returned function releases the latch and must be called on every exit path.
	AcquireLock(key string) (release ReleaseFunc)

	// TryAcquireLock acquires the latch for the given key if it is free.
	// Return a boolean indicating whether the latch was acquired and, if so, its release function.
	TryAcquireLock(key string) (release ReleaseFunc, ok bool)

	// Active returns the number of keys that currently have a holder or a waiter.
	Active() int
}
