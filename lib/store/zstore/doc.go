/*
Package zstore implements the store.IStore interface: sorted sets on top of an ordered
key-value database (see lib/db).

# Storage layout

Every sorted set is stored as three kinds of rows (see zstore/internal):

  - one metadata row per key: version, member count and expiration time
  - one score-index row per member, ordered by (score, member), value empty
  - one member-index row per member, ordered by member, value = score

Index rows carry the version of the metadata row they belong to. Rows of another version
are invisible to every read. This makes Delete and the recreation of an expired key a
single metadata write: the old rows become orphans that are reclaimed later by the
garbage collector, which runs in the background and can be triggered with
GarbageCollect.

A metadata row with count 0 is a tombstone (a deleted sorted set waiting for
reclamation). When the last member is removed by a regular mutation, the metadata row
and all index rows of the key are removed in the same batch, so there is never an index
row without a metadata row for longer than one garbage collection cycle.

# Concurrency

Every mutation holds the key's latch (see lib/lockmgr) from reading the metadata until its
batch is committed, so mutations of one key are serialized while mutations of different
keys run in parallel. Every mutation commits exactly one atomic batch, a failing mutation
commits nothing.

Reads take no latch. Each read opens one database snapshot and reads the metadata and
all index rows from it, so a read never observes a partially applied mutation.

# Usage

	database, err := lsm.NewLSMDB(lsm.DefaultOptions("/var/lib/zkv"))
	if err != nil {
	    return err
	}
	defer database.Close()

	zs, err := zstore.NewStore(database, zstore.DefaultOptions("leaderboards"))
	if err != nil {
	    return err
	}
	defer zs.Close()

	zs.Add("game-1", store.AddCH, []store.MemberScore{{Member: "alice", Score: 42}})
	top, err := zs.Range("game-1", 0, 9, true)

# Metrics

The store counts operations, errors and latencies with VictoriaMetrics/metrics in a
per-store set. Use the MetricsWriter interface to export them in the Prometheus text
format.
*/
package zstore
