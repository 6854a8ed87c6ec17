package zstore

import (
	"sync"
	"time"

	"github.com/ValentinKolb/zKV/lib/db"
	"github.com/ValentinKolb/zKV/lib/db/util"
	"github.com/ValentinKolb/zKV/lib/store/zstore/internal"
	"github.com/cockroachdb/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

type gcEventKind uint8

const (
	gcReclaim gcEventKind = iota // rows of the key may be garbage
	gcExpire                     // the key expires at the given time
	gcPersist                    // the expiration of the key was removed
)

type gcEvent struct {
	kind gcEventKind
	key  string
	at   int64 // unix milliseconds (gcExpire only)
}

// collector reclaims the rows of deleted, recreated and expired sorted sets.
//
// Mutations hand keys to the collector through a lock-free queue, they never wait for it.
// A full sweep over all metadata rows of the namespace finds everything the queue missed
// (a full queue, a restart).
type collector struct {
	s      *storeImpl
	events *xsync.MPMCQueueOf[gcEvent]

	mu      sync.Mutex // serializes passes, guards expiry and pending
	expiry  *util.MapHeap[string]
	pending map[string]struct{}

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newCollector(s *storeImpl, queueSize int) *collector {
	return &collector{
		s:       s,
		events:  xsync.NewMPMCQueueOf[gcEvent](queueSize),
		expiry:  util.NewMapHeap[string](),
		pending: make(map[string]struct{}),
		stopCh:  make(chan struct{}),
	}
}

// schedule hands an event to the collector without blocking
func (c *collector) schedule(ev gcEvent) {
	if !c.events.TryEnqueue(ev) {
		log.Warningf("garbage collector queue is full, %q is left to the next sweep", ev.key)
	}
}

// start runs passes every interval and sweeps every sweepInterval in the background
func (c *collector) start(interval, sweepInterval time.Duration) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		if _, err := c.run(true); err != nil {
			log.Errorf("initial garbage collection failed: %v", err)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		lastSweep := time.Now()

		for {
			select {
			case <-c.stopCh:
				return
			case <-ticker.C:
				sweep := sweepInterval > 0 && time.Since(lastSweep) >= sweepInterval
				if sweep {
					lastSweep = time.Now()
				}
				if _, err := c.run(sweep); err != nil {
					log.Errorf("garbage collection failed: %v", err)
				}
			}
		}
	}()
}

func (c *collector) stop() {
	close(c.stopCh)
	c.wg.Wait()
}

// run executes one pass: it drains the queue, optionally sweeps the namespace, moves due
// expirations to the pending keys and reclaims every pending key.
// It returns the number of reclaimed sorted sets.
func (c *collector) run(sweep bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for ev, ok := c.events.TryDequeue(); ok; ev, ok = c.events.TryDequeue() {
		switch ev.kind {
		case gcReclaim:
			c.pending[ev.key] = struct{}{}
		case gcExpire:
			c.expiry.AddItem(ev.key, ev.at)
		case gcPersist:
			c.expiry.RemoveByKey(ev.key)
		}
	}

	if sweep {
		if err := c.sweep(); err != nil {
			return 0, err
		}
	}

	now := c.s.nowMs()
	for item, ok := c.expiry.Peek(); ok && item.Priority <= now; item, ok = c.expiry.Peek() {
		c.expiry.PopMin()
		c.pending[item.Key] = struct{}{}
	}

	reclaimed := 0
	for key := range c.pending {
		done, err := c.reclaim(key)
		if err != nil {
			return reclaimed, err
		}
		delete(c.pending, key)
		if done {
			reclaimed++
		}
	}

	if reclaimed > 0 {
		c.s.metrics.reclaimed.Add(reclaimed)
		log.Debugf("reclaimed %d sorted sets", reclaimed)
	}
	return reclaimed, nil
}

// sweep scans all metadata rows of the namespace and collects keys with garbage.
// Expiration times are (re)scheduled.
func (c *collector) sweep() error {
	prefix := internal.NamespacePrefix(internal.FamilyMeta, c.s.ns)
	now := c.s.nowMs()

	type candidate struct {
		key  string
		meta internal.Metadata
	}
	var live []candidate

	err := scan(c.s.db, prefix, internal.PrefixEnd(prefix), false, func(row, value []byte) (bool, error) {
		_, key, err := internal.ParseMetaKey(row)
		if err != nil {
			return false, err
		}
		meta, err := internal.DecodeMetadata(value)
		if err != nil {
			return false, err
		}
		if !meta.Live(now) {
			c.pending[key] = struct{}{}
			return true, nil
		}
		if meta.ExpireAt > 0 {
			c.expiry.AddItem(key, meta.ExpireAt)
		}
		live = append(live, candidate{key: key, meta: meta})
		return true, nil
	})
	if err != nil {
		return errors.Wrap(err, "sweeping metadata rows")
	}

	for _, cand := range live {
		orphans, err := c.hasOrphans(c.s.db, cand.key, cand.meta.Version)
		if err != nil {
			return err
		}
		if orphans {
			c.pending[cand.key] = struct{}{}
		}
	}
	return nil
}

// hasOrphans reports whether index rows of a version below version exist
func (c *collector) hasOrphans(r db.Reader, key string, version uint64) (bool, error) {
	for _, family := range []byte{internal.FamilyScore, internal.FamilyMember} {
		n := 0
		err := scan(r, internal.KeyPrefix(family, c.s.ns, key), internal.VersionPrefix(family, c.s.ns, key, version),
			false, func(_, _ []byte) (bool, error) {
				n++
				return false, nil
			})
		if err != nil || n > 0 {
			return n > 0, err
		}
	}
	return false, nil
}

// reclaim removes the garbage rows of key under its latch.
// It reports whether there was something to reclaim.
func (c *collector) reclaim(key string) (bool, error) {
	release := c.s.latches.AcquireLock(key)
	defer release()

	meta, ok, err := c.s.loadMeta(c.s.db, key)
	if err != nil {
		return false, err
	}

	batch := c.s.db.NewBatch()
	defer batch.Close()

	switch {
	case !ok:
		// no metadata row, no index rows either
		return false, nil
	case !meta.Live(c.s.nowMs()):
		if err := batch.Delete(internal.MetaKey(c.s.ns, key)); err != nil {
			return false, err
		}
		if err := dropIndexRows(batch, c.s.ns, key); err != nil {
			return false, err
		}
	default:
		orphans, err := c.hasOrphans(c.s.db, key, meta.Version)
		if err != nil || !orphans {
			return false, err
		}
		for _, family := range []byte{internal.FamilyScore, internal.FamilyMember} {
			start := internal.KeyPrefix(family, c.s.ns, key)
			end := internal.VersionPrefix(family, c.s.ns, key, meta.Version)
			if err := batch.DeleteRange(start, end); err != nil {
				return false, err
			}
		}
	}

	if err := batch.Commit(); err != nil {
		return false, errors.Wrapf(err, "reclaiming %q", key)
	}
	log.Debugf("reclaimed rows of %q (%s)", key, meta)
	return true, nil
}

// GarbageCollect runs a full pass including a sweep of the namespace
func (s *storeImpl) GarbageCollect() (reclaimed int, err error) {
	defer s.metrics.track(opGC, time.Now(), &err)
	return s.gc.run(true)
}
