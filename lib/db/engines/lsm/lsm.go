package lsm

import (
	"io"
	"sync/atomic"

	"github.com/ValentinKolb/zKV/lib/db"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("lsm")

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultCacheSizeMB = 64 // Default size of the pebble block cache
)

// --------------------------------------------------------------------------
// Core LSM database structure
// --------------------------------------------------------------------------

// lsmImpl implements a durable ordered database on top of the pebble LSM-tree
type lsmImpl struct {
	pdb       *pebble.DB
	dir       string
	writeOpts *pebble.WriteOptions
	inMemory  bool

	commits atomic.Uint64 // Number of committed batches
}

// DBOptions configures the lsmImpl behavior during initialization
type DBOptions struct {
	Dir         string // Directory of the database files
	FS          vfs.FS // File system (nil = vfs.Default, vfs.NewMem() for tests)
	CacheSizeMB int    // Size of the block cache (0 = use default: 64 MB)
	Sync        bool   // Sync the write-ahead log on every commit
}

// DefaultOptions returns the default lsmImpl options for the given directory
func DefaultOptions(dir string) *DBOptions {
	return &DBOptions{
		Dir:         dir,
		CacheSizeMB: defaultCacheSizeMB,
		Sync:        true,
	}
}

// InMemoryOptions returns options for a database backed by an in-memory file system
func InMemoryOptions() *DBOptions {
	return &DBOptions{
		FS:          vfs.NewMem(),
		CacheSizeMB: 8,
		Sync:        false,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewLSMDB opens (or creates) a pebble database with the specified options
func NewLSMDB(opts *DBOptions) (db.KVDB, error) {
	if opts == nil {
		return nil, errors.New("lsm: options are required")
	}

	fs := opts.FS
	if fs == nil {
		fs = vfs.Default
	}

	cacheSize := opts.CacheSizeMB
	if cacheSize <= 0 {
		cacheSize = defaultCacheSizeMB
	}
	cache := pebble.NewCache(int64(cacheSize) << 20)
	defer cache.Unref() // the database holds its own reference

	pdb, err := pebble.Open(opts.Dir, &pebble.Options{
		FS:     fs,
		Cache:  cache,
		Logger: pebbleLogger{},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "lsm: open %q", opts.Dir)
	}

	writeOpts := pebble.NoSync
	if opts.Sync {
		writeOpts = pebble.Sync
	}

	log.Infof("opened database in %q (cache %d MB, sync %t)", opts.Dir, cacheSize, opts.Sync)

	return &lsmImpl{
		pdb:       pdb,
		dir:       opts.Dir,
		writeOpts: writeOpts,
		inMemory:  opts.FS != nil && opts.FS != vfs.Default,
	}, nil
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// getter is the read side shared by pebble.DB and pebble.Snapshot
type getter interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) *pebble.Iterator
}

// get copies the value out of pebble's buffer before releasing it
func get(r getter, key []byte) ([]byte, error) {
	value, closer, err := r.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "lsm: get")
	}
	defer closer.Close()

	data := make([]byte, len(value))
	copy(data, value)
	return data, nil
}

func newIter(r getter, opts db.IterOptions) db.Iterator {
	return &iterator{Iterator: r.NewIter(&pebble.IterOptions{
		LowerBound: opts.LowerBound,
		UpperBound: opts.UpperBound,
	})}
}

// Get retrieves a copy of the value for a key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (l *lsmImpl) Get(key []byte) ([]byte, error) {
	return get(l.pdb, key)
}

// NewIter returns an iterator over the current state of the database.
// Pebble pins the state at creation time, so the iterator is consistent.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (l *lsmImpl) NewIter(opts db.IterOptions) db.Iterator {
	return newIter(l.pdb, opts)
}

// NewSnapshot captures the current state of the database
func (l *lsmImpl) NewSnapshot() db.Snapshot {
	return &snapshot{snap: l.pdb.NewSnapshot()}
}

// --------------------------------------------------------------------------
// Snapshot and Iterator adapters
// --------------------------------------------------------------------------

type snapshot struct {
	snap *pebble.Snapshot
}

func (s *snapshot) Get(key []byte) ([]byte, error) {
	return get(s.snap, key)
}

func (s *snapshot) NewIter(opts db.IterOptions) db.Iterator {
	return newIter(s.snap, opts)
}

func (s *snapshot) Close() error {
	return s.snap.Close()
}

// iterator adapts *pebble.Iterator, which already matches db.Iterator except for Close
type iterator struct {
	*pebble.Iterator
}

func (it *iterator) Close() error {
	return errors.Wrap(it.Iterator.Close(), "lsm: close iterator")
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

type batch struct {
	l *lsmImpl
	b *pebble.Batch
}

// NewBatch creates an empty write batch
func (l *lsmImpl) NewBatch() db.Batch {
	return &batch{l: l, b: l.pdb.NewBatch()}
}

func (b *batch) Set(key, value []byte) error {
	return b.b.Set(key, value, nil)
}

func (b *batch) Delete(key []byte) error {
	return b.b.Delete(key, nil)
}

func (b *batch) DeleteRange(start, end []byte) error {
	return b.b.DeleteRange(start, end, nil)
}

func (b *batch) Count() int {
	return int(b.b.Count())
}

// Commit applies the batch atomically, syncing the WAL if configured
func (b *batch) Commit() error {
	if err := b.b.Commit(b.l.writeOpts); err != nil {
		return errors.Wrapf(err, "lsm: commit batch of %d operations", b.b.Count())
	}
	b.l.commits.Add(1)
	return nil
}

func (b *batch) Close() error {
	return b.b.Close()
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes a consistent snapshot of the database to the writer.
// Concurrent reading and writing is allowed during Save operation.
func (l *lsmImpl) Save(w io.Writer) error {
	snap := l.NewSnapshot()
	defer snap.Close()
	return db.WriteDump(w, snap)
}

// Load restores entries from the reader. Existing keys are overwritten.
func (l *lsmImpl) Load(r io.Reader) error {
	return db.ReadDump(r, l)
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (l *lsmImpl) GetInfo() db.DatabaseInfo {
	m := l.pdb.Metrics()

	// Metadata for this specific database implementation
	meta := &struct {
		Dir          string `json:"dir"`
		InMemory     bool   `json:"in_memory"`
		Commits      uint64 `json:"commits"`
		MemTableSize uint64 `json:"mem_table_size"`
		Flushes      int64  `json:"flushes"`
		Compactions  int64  `json:"compactions"`
		Info         string `json:"info"`
	}{
		Dir:          l.dir,
		InMemory:     l.inMemory,
		Commits:      l.commits.Load(),
		MemTableSize: m.MemTable.Size,
		Flushes:      m.Flush.Count,
		Compactions:  m.Compact.Count,
		Info:         "SizeBytes is the disk space used by all files of the database.",
	}

	return db.DatabaseInfo{
		SizeBytes:         int(m.DiskSpaceUsage()),
		DbType:            db.ImplLSM,
		SupportedFeatures: supportedFeatures,
		Metadata:          meta,
	}
}

var supportedFeatures = []db.Feature{
	db.FeatureGet, db.FeatureBatch, db.FeatureDeleteRange,
	db.FeatureIterate, db.FeatureReverseIterate,
	db.FeatureSnapshot,
	db.FeatureSave, db.FeatureLoad,
	db.FeatureDurable,
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (l *lsmImpl) SupportsFeature(feature db.Feature) bool {
	var supported db.Feature
	for _, f := range supportedFeatures {
		supported |= f
	}
	return supported&feature == feature
}

// Close flushes and closes the database
func (l *lsmImpl) Close() error {
	log.Infof("closing database in %q", l.dir)
	return errors.Wrap(l.pdb.Close(), "lsm: close")
}

// --------------------------------------------------------------------------
// Logging
// --------------------------------------------------------------------------

// pebbleLogger forwards pebble's log output to the lsm logger
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

func (pebbleLogger) Errorf(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

func (pebbleLogger) Fatalf(format string, args ...interface{}) {
	log.Panicf(format, args...)
}
