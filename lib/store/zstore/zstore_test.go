package zstore

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/zKV/lib/db"
	"github.com/ValentinKolb/zKV/lib/db/engines/lsm"
	"github.com/ValentinKolb/zKV/lib/db/engines/maple"
	"github.com/ValentinKolb/zKV/lib/store"
	"github.com/ValentinKolb/zKV/lib/store/zstore/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ns = "zset_ns"

// fakeClock is a manually advanced clock for expiration tests
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestStore returns a store without background collection on a fresh in-memory LSM database
func newTestStore(t *testing.T, clock *fakeClock) (*storeImpl, db.KVDB) {
	t.Helper()
	database, err := lsm.NewLSMDB(lsm.InMemoryOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return openStore(t, database, clock), database
}

func openStore(t *testing.T, database db.KVDB, clock *fakeClock) *storeImpl {
	t.Helper()
	opts := DefaultOptions(ns)
	opts.GCInterval = 0
	if clock != nil {
		opts.Now = clock.Now
	}
	s, err := NewStore(database, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s.(*storeImpl)
}

// rowCount counts all rows of one family of key, across all versions
func rowCount(t *testing.T, r db.Reader, family byte, key string) int {
	t.Helper()
	prefix := internal.KeyPrefix(family, ns, key)
	n, err := countRows(r, prefix, internal.PrefixEnd(prefix))
	require.NoError(t, err)
	return n
}

func addMembers(t *testing.T, s store.IStore, key string, members ...string) {
	t.Helper()
	entries := make([]store.MemberScore, len(members))
	for i, m := range members {
		entries[i] = store.MemberScore{Member: m, Score: float64(i)}
	}
	_, err := s.Add(key, 0, entries)
	require.NoError(t, err)
}

func TestUnsupportedDatabase(t *testing.T) {
	database := &limitedDB{KVDB: maple.NewMapleDB(nil), missing: db.FeatureReverseIterate}
	defer database.Close()

	_, err := NewStore(database, nil)
	require.Error(t, err)
	assert.Equal(t, store.RetCUnsupportedOperation, store.CodeOf(err))
}

// limitedDB hides a feature of the wrapped database
type limitedDB struct {
	db.KVDB
	missing db.Feature
}

func (l *limitedDB) SupportsFeature(feature db.Feature) bool {
	return feature&l.missing == 0 && l.KVDB.SupportsFeature(feature)
}

func TestRowsFollowMembers(t *testing.T) {
	s, database := newTestStore(t, nil)

	addMembers(t, s, "k", "a", "b", "c")
	assert.Equal(t, 3, rowCount(t, database, internal.FamilyScore, "k"))
	assert.Equal(t, 3, rowCount(t, database, internal.FamilyMember, "k"))

	// a score update replaces the score-index row
	_, err := s.IncrBy("k", "a", 10)
	require.NoError(t, err)
	assert.Equal(t, 3, rowCount(t, database, internal.FamilyScore, "k"))

	meta, ok, err := s.loadMeta(database, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(3), meta.Count)

	// removing the last member removes every row of the key
	_, err = s.Remove("k", []string{"a", "b", "c"})
	require.NoError(t, err)
	_, ok, err = s.loadMeta(database, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, rowCount(t, database, internal.FamilyScore, "k"))
	assert.Zero(t, rowCount(t, database, internal.FamilyMember, "k"))
}

func TestNoOpMutationWritesNothing(t *testing.T) {
	s, database := newTestStore(t, nil)

	_, err := s.Add("k", store.AddXX, []store.MemberScore{{Member: "a", Score: 1}})
	require.NoError(t, err)
	_, ok, err := s.loadMeta(database, "k")
	require.NoError(t, err)
	assert.False(t, ok, "XX on a missing key must not create metadata")

	removed, err := s.Remove("missing", []string{"a"})
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestDeleteIsReclaimed(t *testing.T) {
	s, database := newTestStore(t, nil)
	addMembers(t, s, "k", "a", "b", "c")
	addMembers(t, s, "other", "x")

	existed, err := s.Delete("k")
	require.NoError(t, err)
	require.True(t, existed)

	// the rows are invisible but still stored
	meta, ok, err := s.loadMeta(database, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, meta.Tombstone())
	assert.Equal(t, 3, rowCount(t, database, internal.FamilyScore, "k"))

	reclaimed, err := s.GarbageCollect()
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)

	_, ok, err = s.loadMeta(database, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, rowCount(t, database, internal.FamilyScore, "k"))
	assert.Zero(t, rowCount(t, database, internal.FamilyMember, "k"))

	// other keys are untouched
	card, err := s.Card("other")
	require.NoError(t, err)
	assert.Equal(t, 1, card)

	reclaimed, err = s.GarbageCollect()
	require.NoError(t, err)
	assert.Zero(t, reclaimed)
}

func TestRecreateBumpsVersion(t *testing.T) {
	s, database := newTestStore(t, nil)
	addMembers(t, s, "k", "a", "b")

	before, _, err := s.loadMeta(database, "k")
	require.NoError(t, err)

	_, err = s.Delete("k")
	require.NoError(t, err)
	addMembers(t, s, "k", "c")

	after, ok, err := s.loadMeta(database, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, before.Version+2, after.Version)
	assert.Equal(t, uint64(1), after.Count)

	// old rows are orphans until the collector runs
	assert.Equal(t, 3, rowCount(t, database, internal.FamilyMember, "k"))
	orphans, err := s.gc.hasOrphans(database, "k", after.Version)
	require.NoError(t, err)
	assert.True(t, orphans)

	reclaimed, err := s.GarbageCollect()
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)
	assert.Equal(t, 1, rowCount(t, database, internal.FamilyMember, "k"))
	assert.Equal(t, 1, rowCount(t, database, internal.FamilyScore, "k"))

	members, err := s.RangeByLex("k", store.FullLexRange())
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, members)
}

func TestExpiration(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	s, database := newTestStore(t, clock)
	addMembers(t, s, "k", "a", "b")

	ok, err := s.Expire("k", clock.Now().Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	ttl, err := s.TTL("k")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	clock.Advance(30 * time.Second)
	ttl, err = s.TTL("k")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, ttl)

	// nothing is due yet
	reclaimed, err := s.GarbageCollect()
	require.NoError(t, err)
	assert.Zero(t, reclaimed)

	clock.Advance(30 * time.Second)
	_, err = s.TTL("k")
	assert.True(t, store.IsNotFound(err))
	_, err = s.Score("k", "a")
	assert.True(t, store.IsNotFound(err))

	reclaimed, err = s.GarbageCollect()
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)
	_, ok, err = s.loadMeta(database, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, rowCount(t, database, internal.FamilyScore, "k"))
}

func TestPersistCancelsExpiration(t *testing.T) {
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	s, _ := newTestStore(t, clock)
	addMembers(t, s, "k", "a")

	_, err := s.Expire("k", clock.Now().Add(time.Second))
	require.NoError(t, err)
	ok, err := s.Persist("k")
	require.NoError(t, err)
	require.True(t, ok)

	clock.Advance(time.Hour)
	reclaimed, err := s.GarbageCollect()
	require.NoError(t, err)
	assert.Zero(t, reclaimed)

	card, err := s.Card("k")
	require.NoError(t, err)
	assert.Equal(t, 1, card)
}

func TestSweepAfterRestart(t *testing.T) {
	database, err := lsm.NewLSMDB(lsm.InMemoryOptions())
	require.NoError(t, err)
	defer database.Close()

	first := openStore(t, database, nil)
	addMembers(t, first, "a", "x")
	addMembers(t, first, "b", "y")
	_, err = first.Delete("a")
	require.NoError(t, err)
	_, err = first.Delete("b")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// the queued events are lost with the first store, the sweep finds the tombstones
	second := openStore(t, database, nil)
	reclaimed, err := second.GarbageCollect()
	require.NoError(t, err)
	assert.Equal(t, 2, reclaimed)
}

func TestQueueOverflow(t *testing.T) {
	database := maple.NewMapleDB(nil)
	defer database.Close()

	opts := DefaultOptions(ns)
	opts.GCInterval = 0
	opts.GCQueueSize = 1
	zs, err := NewStore(database, opts)
	require.NoError(t, err)
	defer zs.Close()

	for _, key := range []string{"a", "b", "c"} {
		addMembers(t, zs, key, "m")
		_, err := zs.Delete(key)
		require.NoError(t, err)
	}

	reclaimed, err := zs.GarbageCollect()
	require.NoError(t, err)
	assert.Equal(t, 3, reclaimed)
}

func TestBackgroundCollector(t *testing.T) {
	database := maple.NewMapleDB(nil)
	defer database.Close()

	opts := DefaultOptions(ns)
	opts.GCInterval = 10 * time.Millisecond
	zs, err := NewStore(database, opts)
	require.NoError(t, err)
	defer zs.Close()

	addMembers(t, zs, "k", "a", "b")
	_, err = zs.Delete("k")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return rowCount(t, database, internal.FamilyMember, "k") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNamespaceIsolation(t *testing.T) {
	database := maple.NewMapleDB(nil)
	defer database.Close()

	opts := DefaultOptions("one")
	opts.GCInterval = 0
	one, err := NewStore(database, opts)
	require.NoError(t, err)
	defer one.Close()

	opts = DefaultOptions("two")
	opts.GCInterval = 0
	two, err := NewStore(database, opts)
	require.NoError(t, err)
	defer two.Close()

	addMembers(t, one, "k", "a", "b")
	addMembers(t, two, "k", "c")
	_, err = one.Delete("k")
	require.NoError(t, err)

	reclaimed, err := two.GarbageCollect()
	require.NoError(t, err)
	assert.Zero(t, reclaimed)

	members, err := two.RangeByLex("k", store.FullLexRange())
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, members)
}

func TestCorruptionIsReported(t *testing.T) {
	s, database := newTestStore(t, nil)
	addMembers(t, s, "k", "a", "b", "c")

	meta, _, err := s.loadMeta(database, "k")
	require.NoError(t, err)

	// drop the score-index row of b behind the store's back
	code, err := internal.EncodeScore(1)
	require.NoError(t, err)
	b := database.NewBatch()
	require.NoError(t, b.Delete(internal.ScoreKey(internal.ScorePrefix(ns, "k", meta.Version), code, "b")))
	require.NoError(t, b.Commit())
	require.NoError(t, b.Close())

	_, err = s.Rank("k", "b", false)
	assert.True(t, store.IsCorruption(err), "got %v", err)

	_, err = s.Range("k", 0, -1, false)
	assert.True(t, store.IsCorruption(err), "got %v", err)

	_, err = s.Pop("k", 3, true)
	assert.True(t, store.IsCorruption(err), "got %v", err)

	// a failed mutation commits nothing
	card, err := s.Card("k")
	require.NoError(t, err)
	assert.Equal(t, 3, card)

	// a foreign metadata row
	b = database.NewBatch()
	require.NoError(t, b.Set(internal.MetaKey(ns, "broken"), []byte("not metadata")))
	require.NoError(t, b.Commit())
	require.NoError(t, b.Close())

	_, err = s.Card("broken")
	assert.True(t, store.IsCorruption(err), "got %v", err)
}

func TestSnapshotReads(t *testing.T) {
	s, database := newTestStore(t, nil)
	addMembers(t, s, "k", "a", "b")

	// a reader on a snapshot does not observe later mutations
	snap := database.NewSnapshot()
	defer snap.Close()
	meta, ok, err := s.liveMeta(snap, "k")
	require.NoError(t, err)
	require.True(t, ok)

	addMembers(t, s, "k", "a", "b", "c")
	entries, err := scanByRank(snap, internal.ScorePrefix(ns, "k", meta.Version), meta, 0, -1, false)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestMetrics(t *testing.T) {
	s, _ := newTestStore(t, nil)
	addMembers(t, s, "k", "a")
	_, _ = s.Score("k", "missing")

	var zs store.IStore = s
	writer, ok := zs.(MetricsWriter)
	require.True(t, ok)

	var buf bytes.Buffer
	writer.WritePrometheus(&buf)
	out := buf.String()

	assert.Contains(t, out, `zstore_ops_total{op="add",namespace="zset_ns"} 1`)
	assert.Contains(t, out, `zstore_errors_total{op="score",code="NotFound",namespace="zset_ns"} 1`)
	assert.True(t, strings.Contains(out, "zstore_op_duration_seconds_bucket"), "missing latency histogram")
}

func TestRankOfManyMembers(t *testing.T) {
	s, _ := newTestStore(t, nil)

	members := make([]string, 200)
	for i := range members {
		members[i] = string(rune('a'+i%26)) + strings.Repeat("x", i/26)
	}
	addMembers(t, s, "k", members...)

	// ranks follow the (score, member) order, rank is computed by counting the rows below
	for i, m := range members {
		rank, err := s.Rank("k", m, false)
		require.NoError(t, err)
		require.Equal(t, i, rank)
	}
}
