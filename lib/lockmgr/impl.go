package lockmgr

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// latch is a mutex shared by everyone holding or waiting for one key
type latch struct {
	mu   sync.Mutex
	refs int // guarded by the map bucket of the key
}

type lockMgrImpl struct {
	latches *xsync.MapOf[string, *latch]
}

// NewLockManager creates an empty latch manager
func NewLockManager() ILockManager {
	return &lockMgrImpl{
		latches: xsync.NewMapOf[string, *latch](),
	}
}

// ref returns the latch of the key and registers the caller as holder or waiter
func (lm *lockMgrImpl) ref(key string) *latch {
	var l *latch
	lm.latches.Compute(key, func(old *latch, loaded bool) (*latch, bool) {
		if !loaded {
			old = &latch{}
		}
		old.refs++
		l = old
		return old, false
	})
	return l
}

// unref drops the caller's reference, the last one removes the latch from the map
func (lm *lockMgrImpl) unref(key string) {
	lm.latches.Compute(key, func(old *latch, loaded bool) (*latch, bool) {
		if !loaded {
			return old, true
		}
		old.refs--
		return old, old.refs <= 0
	})
}

func (lm *lockMgrImpl) releaseFunc(key string, l *latch) ReleaseFunc {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			lm.unref(key)
		})
	}
}

func (lm *lockMgrImpl) AcquireLock(key string) ReleaseFunc {
	l := lm.ref(key)
	l.mu.Lock()
	return lm.releaseFunc(key, l)
}

func (lm *lockMgrImpl) TryAcquireLock(key string) (ReleaseFunc, bool) {
	l := lm.ref(key)
	if !l.mu.TryLock() {
		lm.unref(key)
		return nil, false
	}
	return lm.releaseFunc(key, l), true
}

func (lm *lockMgrImpl) Active() int {
	return lm.latches.Size()
}
