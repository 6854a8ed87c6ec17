package db

import (
	"errors"
	"io"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplLSM   Implementation = "lsm"
	ImplMaple Implementation = "maple"
)

// ErrNotFound is returned by Get if the key does not exist.
var ErrNotFound = errors.New("db: not found")

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureGet            Feature = 1 << iota // Support for point lookups
	FeatureBatch                              // Support for atomic write batches
	FeatureDeleteRange                        // Support for range deletions inside a batch
	FeatureIterate                            // Support for forward iteration
	FeatureReverseIterate                     // Support for backward iteration
	FeatureSnapshot                           // Support for point-in-time snapshots
	FeatureSave                               // Support for Save operations
	FeatureLoad                               // Support for Load operations
	FeatureDurable                            // Data survives a process restart
)

func (f Feature) String() string {
	switch f {
	case FeatureGet:
		return "Get"
	case FeatureBatch:
		return "Batch"
	case FeatureDeleteRange:
		return "DeleteRange"
	case FeatureIterate:
		return "Iterate"
	case FeatureReverseIterate:
		return "ReverseIterate"
	case FeatureSnapshot:
		return "Snapshot"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	case FeatureDurable:
		return "Durable"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// IterOptions bounds an iterator to the key range [LowerBound, UpperBound).
// A nil bound means the iterator is unbounded in that direction.
type IterOptions struct {
	LowerBound []byte
	UpperBound []byte
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// Iterator walks over keys in byte-lexicographic order.
// Positioning methods return whether the iterator points at a valid entry afterward.
// The slices returned by Key and Value are only valid until the next positioning call.
type Iterator interface {
	First() bool
	Last() bool
	// SeekGE moves to the first key >= key.
	SeekGE(key []byte) bool
	// SeekLT moves to the last key < key.
	SeekLT(key []byte) bool
	Next() bool
	Prev() bool
	Valid() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// Reader is the read side shared by the database and its snapshots.
type Reader interface {
	// Get returns a copy of the value stored for key, or ErrNotFound.
	Get(key []byte) (value []byte, err error)

	// NewIter returns an iterator over the reader's keys within the given bounds.
	NewIter(opts IterOptions) Iterator
}

// Snapshot is a consistent point-in-time view of the database.
// Writes committed after the snapshot was taken are not visible through it.
type Snapshot interface {
	Reader
	Close() error
}

// Batch collects writes which are applied atomically on Commit.
// Either all operations of a batch become visible or none does, also across crashes.
type Batch interface {
	Set(key, value []byte) error
	Delete(key []byte) error
	// DeleteRange deletes all keys in [start, end).
	DeleteRange(start, end []byte) error
	// Count returns the number of operations in the batch.
	Count() int
	Commit() error
	// Close releases the batch. Closing an uncommitted batch discards its writes.
	Close() error
}

// KVDB defines an interface for ordered key-value database implementations.
// Keys are compared as raw bytes. All implementations must be safe for concurrent use.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type KVDB interface {
	Reader

	// NewBatch creates an empty write batch.
	NewBatch() Batch

	// NewSnapshot captures the current state of the database.
	NewSnapshot() Snapshot

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save writes all entries of a consistent snapshot to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores entries written by Save. Existing keys are overwritten.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}
