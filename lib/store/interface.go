package store

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/zKV/lib/db"
	"github.com/cockroachdb/errors"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() (db.KVDB, error)

// IStore is the interface of a sorted-set store. A sorted set is identified by its key
// and maps unique members to float64 scores.
// Errors returned by the store are either a *Error (see RetCode) or a wrapped engine error.
type IStore interface {
	// --------------------------------------------------------------------------
	// Mutations (serialized per key, one atomic batch each)
	// --------------------------------------------------------------------------

	// Add inserts or updates members. The flags control conditional updates and increments,
	// see AddFlags. AddResult.Count is the number of added members (plus changed ones with AddCH).
	Add(key string, flags AddFlags, members []MemberScore) (result AddResult, err error)
	// IncrBy adds delta to the score of member (a missing member starts at 0) and returns the new score.
	IncrBy(key, member string, delta float64) (score float64, err error)
	// Remove removes the members and returns how many existed.
	Remove(key string, members []string) (removed int, err error)
	// Pop removes and returns up to count members with the lowest (popMin) or highest scores.
	Pop(key string, count int, popMin bool) (entries []MemberScore, err error)
	// RemoveRangeByScore removes all members within the score bounds of spec. Offset, Count and Reversed are ignored.
	RemoveRangeByScore(key string, spec RangeSpec) (removed int, err error)
	// RemoveRangeByRank removes all members with a rank in [start, stop], negative ranks count from the end.
	RemoveRangeByRank(key string, start, stop int) (removed int, err error)
	// RemoveRangeByLex removes all members within the lexicographic bounds of spec. Offset, Count and Reversed are ignored.
	RemoveRangeByLex(key string, spec LexSpec) (removed int, err error)
	// Delete removes the whole sorted set. The boolean reports whether it existed.
	Delete(key string) (existed bool, err error)
	// Expire sets an absolute expiration time. The boolean reports whether the key exists.
	Expire(key string, at time.Time) (ok bool, err error)
	// Persist removes the expiration. The boolean reports whether an expiration was removed.
	Persist(key string) (ok bool, err error)

	// --------------------------------------------------------------------------
	// Reads (no latch, one snapshot each)
	// --------------------------------------------------------------------------

	// Score returns the score of member. NotFound if the key or the member does not exist.
	Score(key, member string) (score float64, err error)
	// MScore returns the scores of the members, nil for each missing member.
	MScore(key string, members []string) (scores []*float64, err error)
	// Rank returns the zero-based position of member in ascending (or descending if reverse) order, -1 if absent.
	// The cost is proportional to the rank.
	Rank(key, member string, reverse bool) (rank int, err error)
	// Range returns the members with a rank in [start, stop], negative ranks count from the end.
	Range(key string, start, stop int, reverse bool) (entries []MemberScore, err error)
	// RangeByScore returns the members within the score bounds of spec, honoring Offset, Count and Reversed.
	RangeByScore(key string, spec RangeSpec) (entries []MemberScore, err error)
	// RangeByLex returns the members within the lexicographic bounds of spec, honoring Offset, Count and Reversed.
	// The order is only meaningful if all members in the range share the same score.
	RangeByLex(key string, spec LexSpec) (members []string, err error)
	// Card returns the number of members, 0 for a missing key.
	Card(key string) (count int, err error)
	// Count returns the number of members within the score bounds of spec.
	Count(key string, spec RangeSpec) (count int, err error)
	// LexCount returns the number of members within the lexicographic bounds of spec.
	LexCount(key string, spec LexSpec) (count int, err error)
	// TTL returns the remaining time to live, -1 if the key has no expiration. NotFound if the key does not exist.
	TTL(key string) (ttl time.Duration, err error)

	// --------------------------------------------------------------------------
	// Maintenance
	// --------------------------------------------------------------------------

	// GarbageCollect physically removes rows of deleted, recreated and expired sorted sets
	// and returns the number of reclaimed sorted sets. It runs in the background as well.
	GarbageCollect() (reclaimed int, err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
	// Close stops the background work of the store. It does not close the database.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new store error with a formatted message.
func Errorf(code RetCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// CodeOf returns the code of the first *Error in the chain of err.
// RetCSuccess is returned for nil, RetCInternalError for any other error.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Code
	}
	return RetCInternalError
}

// IsNotFound reports whether err signals an absent key or member.
func IsNotFound(err error) bool { return err != nil && CodeOf(err) == RetCNotFound }

// IsInvalidArgument reports whether err signals a malformed request.
func IsInvalidArgument(err error) bool { return err != nil && CodeOf(err) == RetCInvalidArgument }

// IsCorruption reports whether err signals stored rows that are inconsistent with each other.
func IsCorruption(err error) bool { return err != nil && CodeOf(err) == RetCCorruption }

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCNotFound                            // 4: Key or member does not exist.
	RetCInvalidArgument                     // 5: Malformed flags, bounds or scores.
	RetCCorruption                          // 6: Stored rows are inconsistent.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCNotFound:
		return "NotFound"
	case RetCInvalidArgument:
		return "InvalidArgument"
	case RetCCorruption:
		return "Corruption"
	default:
		return "Unknown"
	}
}
