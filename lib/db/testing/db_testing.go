package testing

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/zKV/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("BatchAtomicity", func(t *testing.T) {
			testBatchAtomicity(t, factory())
		})

		t.Run("DeleteRange", func(t *testing.T) {
			testDeleteRange(t, factory())
		})

		t.Run("IterateBounds", func(t *testing.T) {
			testIterateBounds(t, factory())
		})

		t.Run("ReverseIterate", func(t *testing.T) {
			testReverseIterate(t, factory())
		})

		t.Run("Seek", func(t *testing.T) {
			testSeek(t, factory())
		})

		t.Run("SnapshotIsolation", func(t *testing.T) {
			testSnapshotIsolation(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("ConcurrentBatches", func(t *testing.T) {
			testConcurrentBatches(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// set writes the key-value pairs (k1, v1, k2, v2, ...) in one batch
func set(t testing.TB, database db.KVDB, kv ...string) {
	t.Helper()
	b := database.NewBatch()
	defer b.Close()
	for i := 0; i+1 < len(kv); i += 2 {
		if err := b.Set([]byte(kv[i]), []byte(kv[i+1])); err != nil {
			t.Fatalf("Unexpected error during Set: %v", err)
		}
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("Unexpected error during Commit: %v", err)
	}
}

// collect returns all keys of the iterator from the current position in forward (or backward) direction
func collect(it db.Iterator, valid bool, reverse bool) []string {
	var keys []string
	for ; valid; valid = advance(it, reverse) {
		keys = append(keys, string(it.Key()))
	}
	return keys
}

func advance(it db.Iterator, reverse bool) bool {
	if reverse {
		return it.Prev()
	}
	return it.Next()
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureBatch)
	requireFeature(t, database, db.FeatureGet)

	testKey := "test-key"
	set(t, database, testKey, "test-value1")

	result, err := database.Get([]byte(testKey))
	if err != nil {
		t.Errorf("Expected key %s to exist after Set, got %v", testKey, err)
	}
	if !bytes.Equal(result, []byte("test-value1")) {
		t.Errorf("Expected value test-value1, got %s", result)
	}

	set(t, database, testKey, "test-value2")

	result, _ = database.Get([]byte(testKey))
	if !bytes.Equal(result, []byte("test-value2")) {
		t.Errorf("Expected value test-value2, got %s", result)
	}

	_, err = database.Get([]byte("nonexistent-key"))
	if !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for nonexistent key, got %v", err)
	}

	retrievedValue, _ := database.Get([]byte(testKey))
	retrievedValue[0] = 'X'

	originalValue, _ := database.Get([]byte(testKey))
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	// the batch must copy the value
	buf := []byte("buffered-value")
	b := database.NewBatch()
	_ = b.Set([]byte("buffered-key"), buf)
	if err := b.Commit(); err != nil {
		t.Fatalf("Unexpected error during Commit: %v", err)
	}
	_ = b.Close()
	buf[0] = 'X'

	result, _ = database.Get([]byte("buffered-key"))
	if !bytes.Equal(result, []byte("buffered-value")) {
		t.Errorf("Expected batch to copy its input, got %s", result)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureBatch)

	set(t, database, "delete-key", "value", "other-key", "value")

	b := database.NewBatch()
	_ = b.Delete([]byte("delete-key"))
	_ = b.Delete([]byte("nonexistent-key")) // deleting a missing key is a no-op
	if err := b.Commit(); err != nil {
		t.Fatalf("Unexpected error during Commit: %v", err)
	}
	_ = b.Close()

	if _, err := database.Get([]byte("delete-key")); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected key to be deleted, got %v", err)
	}
	if _, err := database.Get([]byte("other-key")); err != nil {
		t.Errorf("Expected other key to survive, got %v", err)
	}
}

func testBatchAtomicity(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureBatch)

	b := database.NewBatch()
	for i := 0; i < 100; i++ {
		_ = b.Set([]byte(fmt.Sprintf("atomic-%03d", i)), []byte("v"))
	}

	if b.Count() != 100 {
		t.Errorf("Expected batch count 100, got %d", b.Count())
	}

	// nothing is visible before the commit
	if _, err := database.Get([]byte("atomic-000")); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected uncommitted write to be invisible, got %v", err)
	}

	if err := b.Commit(); err != nil {
		t.Fatalf("Unexpected error during Commit: %v", err)
	}
	_ = b.Close()

	for i := 0; i < 100; i++ {
		if _, err := database.Get([]byte(fmt.Sprintf("atomic-%03d", i))); err != nil {
			t.Errorf("Expected key atomic-%03d to exist after Commit", i)
		}
	}

	// a closed uncommitted batch is discarded
	discarded := database.NewBatch()
	_ = discarded.Set([]byte("discarded"), []byte("v"))
	_ = discarded.Close()

	if _, err := database.Get([]byte("discarded")); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected discarded write to be invisible, got %v", err)
	}

	// operations inside one batch apply in order
	ordered := database.NewBatch()
	_ = ordered.Set([]byte("ordered"), []byte("first"))
	_ = ordered.Delete([]byte("ordered"))
	_ = ordered.Set([]byte("ordered"), []byte("last"))
	if err := ordered.Commit(); err != nil {
		t.Fatalf("Unexpected error during Commit: %v", err)
	}
	_ = ordered.Close()

	if value, _ := database.Get([]byte("ordered")); !bytes.Equal(value, []byte("last")) {
		t.Errorf("Expected value last, got %s", value)
	}
}

func testDeleteRange(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureDeleteRange)
	requireFeature(t, database, db.FeatureIterate)

	set(t, database, "a", "1", "b", "2", "b\x00", "3", "c", "4", "d", "5")

	b := database.NewBatch()
	_ = b.DeleteRange([]byte("b"), []byte("d")) // [b, d)
	// a write after the range deletion in the same batch survives
	_ = b.Set([]byte("c"), []byte("new"))
	if err := b.Commit(); err != nil {
		t.Fatalf("Unexpected error during Commit: %v", err)
	}
	_ = b.Close()

	it := database.NewIter(db.IterOptions{})
	defer it.Close()

	keys := collect(it, it.First(), false)
	expected := []string{"a", "c", "d"}
	if !equalKeys(keys, expected) {
		t.Errorf("Expected keys %v after DeleteRange, got %v", expected, keys)
	}

	if value, _ := database.Get([]byte("c")); !bytes.Equal(value, []byte("new")) {
		t.Errorf("Expected value new, got %s", value)
	}
}

func testIterateBounds(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureIterate)

	set(t, database,
		"p1/a", "1", "p1/b", "2", "p1/c", "3",
		"p2/a", "4", "p2/b", "5",
		"p0/z", "0",
	)

	tests := []struct {
		name     string
		opts     db.IterOptions
		expected []string
	}{
		{"unbounded", db.IterOptions{}, []string{"p0/z", "p1/a", "p1/b", "p1/c", "p2/a", "p2/b"}},
		{"prefix", db.IterOptions{LowerBound: []byte("p1/"), UpperBound: []byte("p10")}, []string{"p1/a", "p1/b", "p1/c"}},
		{"lower only", db.IterOptions{LowerBound: []byte("p2/")}, []string{"p2/a", "p2/b"}},
		{"upper only", db.IterOptions{UpperBound: []byte("p1/b")}, []string{"p0/z", "p1/a"}},
		{"empty", db.IterOptions{LowerBound: []byte("q"), UpperBound: []byte("r")}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			it := database.NewIter(tc.opts)
			defer it.Close()

			keys := collect(it, it.First(), false)
			if !equalKeys(keys, tc.expected) {
				t.Errorf("Expected keys %v, got %v", tc.expected, keys)
			}
			if it.Valid() {
				t.Errorf("Expected exhausted iterator to be invalid")
			}
			if err := it.Error(); err != nil {
				t.Errorf("Unexpected iterator error: %v", err)
			}
		})
	}

	// values are readable through the iterator
	it := database.NewIter(db.IterOptions{LowerBound: []byte("p2/b")})
	defer it.Close()
	if !it.First() || !bytes.Equal(it.Value(), []byte("5")) {
		t.Errorf("Expected value 5 at p2/b")
	}
}

func testReverseIterate(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureReverseIterate)

	set(t, database, "k1", "1", "k2", "2", "k3", "3", "k4", "4", "z", "9")

	it := database.NewIter(db.IterOptions{LowerBound: []byte("k2"), UpperBound: []byte("k9")})
	defer it.Close()

	keys := collect(it, it.Last(), true)
	expected := []string{"k4", "k3", "k2"}
	if !equalKeys(keys, expected) {
		t.Errorf("Expected keys %v, got %v", expected, keys)
	}

	// change direction in the middle of a scan
	if !it.First() || !it.Next() {
		t.Fatalf("Expected to move to the second key")
	}
	if string(it.Key()) != "k3" {
		t.Errorf("Expected k3, got %s", it.Key())
	}
	if !it.Prev() || string(it.Key()) != "k2" {
		t.Errorf("Expected Prev to return to k2")
	}
	if it.Prev() {
		t.Errorf("Expected Prev to stop at the lower bound, got %s", it.Key())
	}
}

func testSeek(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureReverseIterate)

	set(t, database, "b", "1", "d", "2", "f", "3")

	it := database.NewIter(db.IterOptions{})
	defer it.Close()

	tests := []struct {
		name    string
		seekGE  bool
		target  string
		valid   bool
		landsOn string
	}{
		{"GE exact", true, "d", true, "d"},
		{"GE between", true, "c", true, "d"},
		{"GE before first", true, "a", true, "b"},
		{"GE after last", true, "g", false, ""},
		{"LT exact", false, "d", true, "b"},
		{"LT between", false, "e", true, "d"},
		{"LT after last", false, "z", true, "f"},
		{"LT before first", false, "b", false, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var valid bool
			if tc.seekGE {
				valid = it.SeekGE([]byte(tc.target))
			} else {
				valid = it.SeekLT([]byte(tc.target))
			}
			if valid != tc.valid {
				t.Fatalf("Expected valid=%t, got %t", tc.valid, valid)
			}
			if valid && string(it.Key()) != tc.landsOn {
				t.Errorf("Expected to land on %s, got %s", tc.landsOn, it.Key())
			}
		})
	}

	// seeks are clamped to the bounds
	bounded := database.NewIter(db.IterOptions{LowerBound: []byte("c"), UpperBound: []byte("e")})
	defer bounded.Close()
	if !bounded.SeekGE([]byte("a")) || string(bounded.Key()) != "d" {
		t.Errorf("Expected SeekGE below the lower bound to land on d")
	}
	if !bounded.SeekLT([]byte("z")) || string(bounded.Key()) != "d" {
		t.Errorf("Expected SeekLT above the upper bound to land on d")
	}
}

func testSnapshotIsolation(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSnapshot)

	set(t, database, "snap-a", "old", "snap-b", "old")

	snap := database.NewSnapshot()
	defer snap.Close()

	b := database.NewBatch()
	_ = b.Set([]byte("snap-a"), []byte("new"))
	_ = b.Delete([]byte("snap-b"))
	_ = b.Set([]byte("snap-c"), []byte("new"))
	if err := b.Commit(); err != nil {
		t.Fatalf("Unexpected error during Commit: %v", err)
	}
	_ = b.Close()

	if value, _ := snap.Get([]byte("snap-a")); !bytes.Equal(value, []byte("old")) {
		t.Errorf("Expected snapshot to see the old value, got %s", value)
	}
	if _, err := snap.Get([]byte("snap-b")); err != nil {
		t.Errorf("Expected snapshot to still see snap-b, got %v", err)
	}
	if _, err := snap.Get([]byte("snap-c")); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected snapshot not to see snap-c, got %v", err)
	}

	it := snap.NewIter(db.IterOptions{LowerBound: []byte("snap-")})
	defer it.Close()
	keys := collect(it, it.First(), false)
	if !equalKeys(keys, []string{"snap-a", "snap-b"}) {
		t.Errorf("Expected snapshot iterator to see [snap-a snap-b], got %v", keys)
	}

	if value, _ := database.Get([]byte("snap-a")); !bytes.Equal(value, []byte("new")) {
		t.Errorf("Expected database to see the new value, got %s", value)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	database2 := factory()

	// close the databases after the test
	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeatureSave)
	requireFeature(t, database, db.FeatureLoad)

	numEntries := 3000 // more than one load batch
	kv := make([]string, 0, 2*numEntries)
	for i := 0; i < numEntries; i++ {
		kv = append(kv, fmt.Sprintf("save-load-test-key-%d", i), fmt.Sprintf("save-load-test-value-%d", i))
	}
	set(t, database, kv...)
	set(t, database, "binary\x00key", "\x00\xff")

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}

	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	for i := 0; i < len(kv); i += 2 {
		actualValue, err := database2.Get([]byte(kv[i]))
		if err != nil {
			t.Errorf("Key %s not found after Load", kv[i])
			continue
		}
		if !bytes.Equal(actualValue, []byte(kv[i+1])) {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", kv[i], kv[i+1], actualValue)
		}
	}

	if value, _ := database2.Get([]byte("binary\x00key")); !bytes.Equal(value, []byte("\x00\xff")) {
		t.Errorf("Binary value mismatch after Load: %x", value)
	}

	// corrupted input is rejected
	if err := database2.Load(bytes.NewReader([]byte("NOTADUMP"))); err == nil {
		t.Errorf("Expected an error when loading garbage")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureIterate)

	// empty value
	set(t, database, "empty-value", "")
	value, err := database.Get([]byte("empty-value"))
	if err != nil {
		t.Errorf("Expected empty value to exist, got %v", err)
	}
	if len(value) != 0 {
		t.Errorf("Expected empty value, got %x", value)
	}

	// keys that only differ in bytes around the delimiter values
	set(t, database, "x", "0", "x\x00", "1", "x\x00\x00", "2", "x\xff", "3", "x\xff\xff", "4")
	it := database.NewIter(db.IterOptions{LowerBound: []byte("x"), UpperBound: []byte("y")})
	keys := collect(it, it.First(), false)
	_ = it.Close()
	expected := []string{"x", "x\x00", "x\x00\x00", "x\xff", "x\xff\xff"}
	if !equalKeys(keys, expected) {
		t.Errorf("Expected byte-wise ordering %q, got %q", expected, keys)
	}

	// large value
	large := bytes.Repeat([]byte("L"), 1<<20)
	b := database.NewBatch()
	_ = b.Set([]byte("large"), large)
	if err := b.Commit(); err != nil {
		t.Fatalf("Unexpected error during Commit: %v", err)
	}
	_ = b.Close()

	value, _ = database.Get([]byte("large"))
	if !bytes.Equal(value, large) {
		t.Errorf("Large value mismatch, got %d bytes", len(value))
	}

	// empty batch
	empty := database.NewBatch()
	if err := empty.Commit(); err != nil {
		t.Errorf("Unexpected error committing an empty batch: %v", err)
	}
	_ = empty.Close()

	// info is always available
	info := database.GetInfo()
	if len(info.SupportedFeatures) == 0 {
		t.Errorf("Expected GetInfo to report the supported features")
	}
}

func testConcurrentBatches(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSnapshot)

	const (
		writers = 8
		rounds  = 200
	)

	var (
		wg        sync.WaitGroup
		failures  atomic.Int64
		stopRead  atomic.Bool
		readersWg sync.WaitGroup
	)

	// every batch writes the pair (w-i/a, w-i/b) with the same value,
	// a snapshot must never see the two keys disagree
	readersWg.Add(1)
	go func() {
		defer readersWg.Done()
		for !stopRead.Load() {
			snap := database.NewSnapshot()
			for w := 0; w < writers; w++ {
				a, errA := snap.Get([]byte(fmt.Sprintf("w-%d/a", w)))
				b, errB := snap.Get([]byte(fmt.Sprintf("w-%d/b", w)))
				if (errA == nil) != (errB == nil) || !bytes.Equal(a, b) {
					failures.Add(1)
				}
			}
			_ = snap.Close()
		}
	}()

	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				value := []byte(fmt.Sprintf("%d", i))
				b := database.NewBatch()
				_ = b.Set([]byte(fmt.Sprintf("w-%d/a", w)), value)
				_ = b.Set([]byte(fmt.Sprintf("w-%d/b", w)), value)
				if err := b.Commit(); err != nil {
					failures.Add(1)
				}
				_ = b.Close()
			}
		}(w)
	}

	wg.Wait()
	stopRead.Store(true)
	readersWg.Wait()

	if n := failures.Load(); n != 0 {
		t.Errorf("Observed %d torn batches or failed commits", n)
	}

	for w := 0; w < writers; w++ {
		value, err := database.Get([]byte(fmt.Sprintf("w-%d/a", w)))
		if err != nil || string(value) != fmt.Sprintf("%d", rounds-1) {
			t.Errorf("Expected final value %d for writer %d, got %s (%v)", rounds-1, w, value, err)
		}
	}
}
