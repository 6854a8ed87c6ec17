package maple

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/zKV/lib/db"
	"github.com/ValentinKolb/zKV/lib/db/engines/maple/internal"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("maple")

// ErrClosed is returned by batches of a closed database
var ErrClosed = errors.New("maple: database closed")

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements an ordered in-memory database on a copy-on-write B-tree
type mapleImpl struct {
	// mu serializes batch commits against snapshot creation,
	// so a snapshot never observes half a batch
	mu   sync.RWMutex
	tree *internal.Tree

	sizeBytes atomic.Int64  // Sum of key and value lengths of all items
	commits   atomic.Uint64 // Number of committed batches
	closed    atomic.Bool
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	// Preload is applied as the first batch (nil = empty database)
	Preload map[string][]byte
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.KVDB {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}

	newDB := &mapleImpl{
		tree: internal.NewTree(),
	}

	if len(opts.Preload) > 0 {
		b := newDB.NewBatch()
		for k, v := range opts.Preload {
			_ = b.Set([]byte(k), v)
		}
		if err := b.Commit(); err != nil {
			log.Errorf("failed to preload %d entries: %v", len(opts.Preload), err)
		}
		_ = b.Close()
	}

	return newDB
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves a value for a key.
// The returned value is a copy of the stored data and therefore safe to use and modify.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key []byte) ([]byte, error) {
	maple.mu.RLock()
	item, ok := maple.tree.Get(internal.Item{Key: key})
	maple.mu.RUnlock()

	return copyValue(item, ok)
}

// NewIter returns an iterator over an implicit snapshot of the database.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) NewIter(opts db.IterOptions) db.Iterator {
	return internal.NewIterator(maple.freeze(), opts.LowerBound, opts.UpperBound)
}

// NewSnapshot captures the current state of the database in O(1)
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) NewSnapshot() db.Snapshot {
	return &snapshot{tree: maple.freeze()}
}

// freeze returns a copy-on-write copy of the tree that is never modified afterward
func (maple *mapleImpl) freeze() *internal.Tree {
	maple.mu.RLock()
	defer maple.mu.RUnlock()
	return maple.tree.Copy()
}

// copyValue turns a tree lookup into a Get result
func copyValue(item internal.Item, ok bool) ([]byte, error) {
	if !ok {
		return nil, db.ErrNotFound
	}
	data := make([]byte, len(item.Value))
	copy(data, item.Value)
	return data, nil
}

// --------------------------------------------------------------------------
// Snapshot
// --------------------------------------------------------------------------

type snapshot struct {
	tree *internal.Tree
}

func (s *snapshot) Get(key []byte) ([]byte, error) {
	return copyValue(s.tree.Get(internal.Item{Key: key}))
}

func (s *snapshot) NewIter(opts db.IterOptions) db.Iterator {
	return internal.NewIterator(s.tree, opts.LowerBound, opts.UpperBound)
}

func (s *snapshot) Close() error {
	s.tree = internal.NewTree() // help the go gc
	return nil
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

type opType uint8

const (
	opSet opType = iota
	opDelete
	opDeleteRange
)

type op struct {
	typ   opType
	key   []byte // also the start of a range
	value []byte // also the end of a range
}

type batch struct {
	maple     *mapleImpl
	ops       []op
	committed bool
}

// NewBatch creates an empty write batch
func (maple *mapleImpl) NewBatch() db.Batch {
	return &batch{maple: maple}
}

func (b *batch) Set(key, value []byte) error {
	// Copy key and value to prevent memory corruption
	b.ops = append(b.ops, op{typ: opSet, key: bytes.Clone(key), value: bytes.Clone(value)})
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.ops = append(b.ops, op{typ: opDelete, key: bytes.Clone(key)})
	return nil
}

func (b *batch) DeleteRange(start, end []byte) error {
	b.ops = append(b.ops, op{typ: opDeleteRange, key: bytes.Clone(start), value: bytes.Clone(end)})
	return nil
}

func (b *batch) Count() int {
	return len(b.ops)
}

// Commit applies all operations in order while holding the write lock
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (b *batch) Commit() error {
	if b.committed {
		return errors.New("maple: batch already committed")
	}
	if b.maple.closed.Load() {
		return ErrClosed
	}

	maple := b.maple
	maple.mu.Lock()
	defer maple.mu.Unlock()

	var delta int64
	for _, o := range b.ops {
		switch o.typ {
		case opSet:
			if o.value == nil {
				o.value = []byte{}
			}
			item := internal.Item{Key: o.key, Value: o.value}
			if prev, replaced := maple.tree.Set(item); replaced {
				delta -= int64(prev.Size())
			}
			delta += int64(item.Size())
		case opDelete:
			if prev, deleted := maple.tree.Delete(internal.Item{Key: o.key}); deleted {
				delta -= int64(prev.Size())
			}
		case opDeleteRange:
			delta -= maple.deleteRange(o.key, o.value)
		}
	}

	maple.sizeBytes.Add(delta)
	maple.commits.Add(1)
	b.committed = true
	return nil
}

// deleteRange removes all items in [start, end) and returns the number of freed bytes.
// The caller must hold the write lock.
func (maple *mapleImpl) deleteRange(start, end []byte) int64 {
	if bytes.Compare(start, end) >= 0 {
		return 0
	}

	// collect first, the tree can not be modified while it is being scanned
	var victims []internal.Item
	maple.tree.Ascend(internal.Item{Key: start}, func(item internal.Item) bool {
		if bytes.Compare(item.Key, end) >= 0 {
			return false
		}
		victims = append(victims, item)
		return true
	})

	var freed int64
	for _, item := range victims {
		maple.tree.Delete(item)
		freed += int64(item.Size())
	}
	return freed
}

func (b *batch) Close() error {
	b.ops = nil
	return nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists a consistent snapshot of the database to the writer.
// Concurrent reading and writing is allowed during Save operation.
func (maple *mapleImpl) Save(w io.Writer) error {
	snap := maple.NewSnapshot()
	defer snap.Close()
	return db.WriteDump(w, snap)
}

// Load restores entries from the reader. Existing keys are overwritten.
func (maple *mapleImpl) Load(r io.Reader) error {
	return db.ReadDump(r, maple)
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	maple.mu.RLock()
	entries := maple.tree.Len()
	maple.mu.RUnlock()

	// Metadata for this specific database implementation
	meta := &struct {
		Entries int    `json:"entries"`
		Commits uint64 `json:"commits"`
		Info    string `json:"info"`
	}{
		Entries: entries,
		Commits: maple.commits.Load(),
		Info:    "SizeBytes counts key and value bytes only, the tree overhead is not included.",
	}

	return db.DatabaseInfo{
		SizeBytes:         int(maple.sizeBytes.Load()),
		DbType:            db.ImplMaple,
		SupportedFeatures: supportedFeatures,
		Metadata:          meta,
	}
}

var supportedFeatures = []db.Feature{
	db.FeatureGet, db.FeatureBatch, db.FeatureDeleteRange,
	db.FeatureIterate, db.FeatureReverseIterate,
	db.FeatureSnapshot,
	db.FeatureSave, db.FeatureLoad,
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	var supported db.Feature
	for _, f := range supportedFeatures {
		supported |= f
	}
	return supported&feature == feature
}

// Close rejects all further commits
func (maple *mapleImpl) Close() error {
	maple.closed.Store(true)
	return nil
}
