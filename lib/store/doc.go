// Package store provides the high-level interface of the sorted-set store together
// with its request types and its error taxonomy. It serves as an abstraction layer over
// the lower-level db.KVDB implementations.
//
// Key Components:
//
//   - IStore Interface: The operations on sorted sets (Add, IncrBy, Remove, Pop, the
//     RemoveRange family, Score, Rank, Range, RangeByScore, RangeByLex and friends) plus
//     maintenance (GarbageCollect, GetDBInfo). Mutations on the same key are serialized,
//     reads run against one consistent snapshot.
//
//   - Request Types: MemberScore, AddFlags (NX, XX, GT, LT, CH, INCR), RangeSpec for
//     score bounds and LexSpec for lexicographic bounds. ParseScoreRange and ParseLexSpec
//     accept the familiar command syntax ("(1.5", "+inf", "[a", "-", "+").
//
//   - Error System: A structured error reporting mechanism using typed error codes
//     and descriptive messages. IsNotFound, IsInvalidArgument and IsCorruption classify an
//     error even if it was wrapped. Failures of the underlying engine are passed through
//     wrapped with github.com/cockroachdb/errors and count as RetCInternalError.
//
//   - DBFactory: A function type that abstracts the creation of underlying db.KVDB
//     instances.
//
// Implementations:
//
//	- Sorted-Set Store (zstore): Stores each sorted set as a metadata row plus two index
//	  row families (score-ordered and member-ordered) inside one db.KVDB.
//	  Available in the "github.com/ValentinKolb/zKV/lib/store/zstore" package.
//
// The testing package provides RunStoreTests, a conformance suite every IStore
// implementation is expected to pass.
package store
