// Package maple implements a volatile, ordered key-value database (KVDB) on top of
// a copy-on-write B-tree (github.com/tidwall/btree). It provides a complete
// implementation of the db.KVDB interface and is the engine used by tests and by
// deployments that do not need the data to survive a restart.
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.KVDB. It owns a single
//     B-tree of items ordered by their raw key bytes and a read-write lock that
//     serializes batch commits against snapshot creation.
//
//   - Batch: Operations (Set, Delete, DeleteRange) are buffered in order and applied under
//     the write lock on Commit. Readers therefore observe either none or all operations of
//     a batch. Keys and values are copied on insertion, so callers may reuse their buffers.
//
//   - Snapshot: Taking a snapshot copies the tree in O(1). The B-tree shares its nodes
//     between the copies and clones a node lazily the first time one of the copies writes
//     to it. A snapshot is never written to, so reading from it needs no further locking.
//
//   - Iterator: Every iterator works on a frozen tree (an explicit snapshot, or an
//     implicit one taken by NewIter on the database). The bounds of db.IterOptions are
//     applied on top of the btree iterator.
//
// Persistence Format:
//
// Save and Load use the shared dump format of the db package (db.WriteDump and
// db.ReadDump). Save writes a consistent snapshot and does not block writers.
//
// Limitations:
//
//   - The whole data set lives in memory.
//   - Close does not free the tree, it only rejects further commits.
package maple
