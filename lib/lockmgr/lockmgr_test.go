package lockmgr

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	lm := NewLockManager()

	release := lm.AcquireLock("key")
	if lm.Active() != 1 {
		t.Errorf("Expected 1 active latch, got %d", lm.Active())
	}

	if _, ok := lm.TryAcquireLock("key"); ok {
		t.Errorf("Expected TryAcquireLock to fail while the latch is held")
	}

	other, ok := lm.TryAcquireLock("other-key")
	if !ok {
		t.Fatalf("Expected TryAcquireLock on a different key to succeed")
	}
	other()

	release()
	release() // second call is a no-op

	if lm.Active() != 0 {
		t.Errorf("Expected no active latches after release, got %d", lm.Active())
	}

	again, ok := lm.TryAcquireLock("key")
	if !ok {
		t.Fatalf("Expected TryAcquireLock to succeed after release")
	}
	again()
}

func TestMutualExclusion(t *testing.T) {
	lm := NewLockManager()

	const (
		workers    = 16
		increments = 500
	)

	counters := make(map[string]int)
	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", w%4)
			for i := 0; i < increments; i++ {
				release := lm.AcquireLock(key)
				// the map itself is not thread-safe, only the latch protects it
				mapMu.Lock()
				v := counters[key]
				mapMu.Unlock()
				v++
				mapMu.Lock()
				counters[key] = v
				mapMu.Unlock()
				release()
			}
		}(w)
	}
	wg.Wait()

	for key, v := range counters {
		if v != workers/4*increments {
			t.Errorf("Lost update on %s: expected %d, got %d", key, workers/4*increments, v)
		}
	}

	if lm.Active() != 0 {
		t.Errorf("Expected latch map to be empty, got %d entries", lm.Active())
	}
}

// mapMu only makes the map access race-free, the read-modify-write is protected by the latch
var mapMu sync.Mutex

func TestWaiterIsWokenUp(t *testing.T) {
	lm := NewLockManager()

	release := lm.AcquireLock("key")

	acquired := make(chan struct{})
	go func() {
		r := lm.AcquireLock("key")
		close(acquired)
		r()
	}()

	select {
	case <-acquired:
		t.Fatalf("Waiter acquired the latch while it was held")
	case <-time.After(20 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("Waiter was not woken up after release")
	}
}
