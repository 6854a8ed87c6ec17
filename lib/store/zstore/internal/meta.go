package internal

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/zKV/lib/store"
)

// TypeZSet marks a metadata row of a sorted set
const TypeZSet byte = 'z'

// MetaSize is the exact size of an encoded metadata row
const MetaSize = 1 + 8 + 8 + 8

// Metadata is the value of a metadata row
type Metadata struct {
	Version  uint64 // Version of the index rows that belong to the sorted set
	Count    uint64 // Number of members, 0 marks a deleted sorted set (tombstone)
	ExpireAt int64  // Unix milliseconds, 0 = no expiration
}

func (m Metadata) String() string {
	return fmt.Sprintf("Metadata{Version: %d, Count: %d, ExpireAt: %d}", m.Version, m.Count, m.ExpireAt)
}

// Encode serializes the metadata with the format:
// 1 byte type ('z'),
// 8 bytes version (big endian),
// 8 bytes count (big endian),
// 8 bytes expireAt (big endian)
func (m Metadata) Encode() []byte {
	result := make([]byte, MetaSize)
	result[0] = TypeZSet
	binary.BigEndian.PutUint64(result[1:9], m.Version)
	binary.BigEndian.PutUint64(result[9:17], m.Count)
	binary.BigEndian.PutUint64(result[17:25], uint64(m.ExpireAt))
	return result
}

// DecodeMetadata is the inverse of Encode
func DecodeMetadata(data []byte) (Metadata, error) {
	if len(data) != MetaSize {
		return Metadata{}, store.Errorf(store.RetCCorruption, "metadata has %d bytes, expected %d", len(data), MetaSize)
	}
	if data[0] != TypeZSet {
		return Metadata{}, store.Errorf(store.RetCCorruption, "metadata has type %q, expected %q", data[0], TypeZSet)
	}
	return Metadata{
		Version:  binary.BigEndian.Uint64(data[1:9]),
		Count:    binary.BigEndian.Uint64(data[9:17]),
		ExpireAt: int64(binary.BigEndian.Uint64(data[17:25])),
	}, nil
}

// Expired reports whether the expiration time has passed at now (unix milliseconds)
func (m Metadata) Expired(nowMs int64) bool {
	return m.ExpireAt > 0 && m.ExpireAt <= nowMs
}

// Tombstone reports whether the row marks a deleted sorted set
func (m Metadata) Tombstone() bool {
	return m.Count == 0
}

// Live reports whether the sorted set exists at now (unix milliseconds)
func (m Metadata) Live(nowMs int64) bool {
	return !m.Tombstone() && !m.Expired(nowMs)
}

// --------------------------------------------------------------------------
// Version generator
// --------------------------------------------------------------------------

var lastVersion atomic.Uint64

// NextVersion returns a process-wide unique, increasing version for a new sorted set.
// It is seeded with the wall clock, so versions also increase across restarts.
func NextVersion() uint64 {
	for {
		last := lastVersion.Load()
		next := uint64(time.Now().UnixNano())
		if next <= last {
			next = last + 1
		}
		if lastVersion.CompareAndSwap(last, next) {
			return next
		}
	}
}
