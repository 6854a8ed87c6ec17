package zstore

import (
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/zKV/lib/db"
	"github.com/ValentinKolb/zKV/lib/lockmgr"
	"github.com/ValentinKolb/zKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("zstore")

// requiredFeatures are the database features the store is built on
const requiredFeatures = db.FeatureGet | db.FeatureBatch | db.FeatureDeleteRange |
	db.FeatureIterate | db.FeatureReverseIterate | db.FeatureSnapshot

// Options configure a store
type Options struct {
	// Namespace separates the sorted sets of multiple stores sharing one database
	Namespace string
	// GCInterval is the interval of the background garbage collector. <= 0 disables it,
	// rows are then only reclaimed by GarbageCollect.
	GCInterval time.Duration
	// SweepInterval is the interval of full scans over all metadata rows of the namespace.
	// The collector always sweeps once at startup. <= 0 disables further sweeps.
	SweepInterval time.Duration
	// GCQueueSize is the capacity of the queue of keys waiting for the collector.
	// If the queue is full, the key is found by the next sweep.
	GCQueueSize int
	// Now returns the current time, used for expiration. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the default options for the namespace
func DefaultOptions(namespace string) *Options {
	return &Options{
		Namespace:     namespace,
		GCInterval:    time.Second,
		SweepInterval: 10 * time.Minute,
		GCQueueSize:   4096,
		Now:           time.Now,
	}
}

type storeImpl struct {
	db      db.KVDB
	ns      string
	latches lockmgr.ILockManager
	gc      *collector
	metrics *storeMetrics
	now     func() time.Time
	closed  atomic.Bool
}

// NewStore creates a sorted-set store on top of the database.
// The database must support all features in requiredFeatures, otherwise an
// UnsupportedOperation error is returned. The store does not take ownership of the
// database: closing the store stops the garbage collector but leaves the database open.
func NewStore(database db.KVDB, opts *Options) (store.IStore, error) {
	if opts == nil {
		opts = DefaultOptions("")
	}
	if !database.SupportsFeature(requiredFeatures) {
		return nil, store.Errorf(store.RetCUnsupportedOperation,
			"database %s does not support the features required by the sorted-set store", database.GetInfo().DbType)
	}

	s := &storeImpl{
		db:      database,
		ns:      opts.Namespace,
		latches: lockmgr.NewLockManager(),
		metrics: newStoreMetrics(opts.Namespace),
		now:     opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}

	queueSize := opts.GCQueueSize
	if queueSize <= 0 {
		queueSize = 4096
	}
	s.gc = newCollector(s, queueSize)
	if opts.GCInterval > 0 {
		s.gc.start(opts.GCInterval, opts.SweepInterval)
	}

	log.Infof("opened sorted-set store (namespace: %q, db: %s, gc interval: %s)",
		s.ns, database.GetInfo().DbType, opts.GCInterval)
	return s, nil
}

// nowMs returns the current time in unix milliseconds
func (s *storeImpl) nowMs() int64 {
	return s.now().UnixMilli()
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}

func (s *storeImpl) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.gc.stop()
	log.Infof("closed sorted-set store (namespace: %q)", s.ns)
	return nil
}
