package testing

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/zKV/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Set", func(b *testing.B) {
		benchmarkSet(b, factory())
	})

	b.Run("BatchSet", func(b *testing.B) {
		benchmarkBatchSet(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("Get(not)", func(b *testing.B) {
		benchmarkGetNot(b, factory())
	})

	b.Run("PrefixScan", func(b *testing.B) {
		benchmarkPrefixScan(b, factory())
	})

	b.Run("Snapshot", func(b *testing.B) {
		benchmarkSnapshot(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// populate writes numKeys keys "test-key-%08d" in batches of 1000
func populate(b *testing.B, database db.KVDB, numKeys int) {
	batch := database.NewBatch()
	for i := 0; i < numKeys; i++ {
		key := []byte(fmt.Sprintf("test-key-%08d", i))
		value := []byte(fmt.Sprintf("test-value-%d", i))
		_ = batch.Set(key, value)

		if batch.Count() >= 1000 {
			if err := batch.Commit(); err != nil {
				b.Fatalf("Unexpected error during Commit: %v", err)
			}
			_ = batch.Close()
			batch = database.NewBatch()
		}
	}
	if err := batch.Commit(); err != nil {
		b.Fatalf("Unexpected error during Commit: %v", err)
	}
	_ = batch.Close()
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for single-entry batches
func benchmarkSet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureBatch)

	var counter int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := atomic.AddInt64(&counter, 1)
			batch := database.NewBatch()
			_ = batch.Set([]byte(fmt.Sprintf("test-key-%d", i)), []byte(fmt.Sprintf("test-value-%d", i)))
			_ = batch.Commit()
			_ = batch.Close()
		}
	})
}

// Benchmark for batches of 100 entries (reported per entry)
func benchmarkBatchSet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureBatch)

	b.ResetTimer()
	batch := database.NewBatch()
	for i := 0; i < b.N; i++ {
		_ = batch.Set([]byte(fmt.Sprintf("test-key-%d", i)), []byte(fmt.Sprintf("test-value-%d", i)))
		if batch.Count() >= 100 {
			_ = batch.Commit()
			_ = batch.Close()
			batch = database.NewBatch()
		}
	}
	_ = batch.Commit()
	_ = batch.Close()
}

// Benchmark for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureGet)

	numKeys := 10000
	populate(b, database, numKeys)

	var counter int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := int(atomic.AddInt64(&counter, 1)) % numKeys
			_, _ = database.Get([]byte(fmt.Sprintf("test-key-%08d", i)))
		}
	})
}

// Benchmark for Get operation on missing keys
func benchmarkGetNot(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureGet)

	populate(b, database, 10000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _ = database.Get([]byte(fmt.Sprintf("missing-key-%d", counter)))
			counter++
		}
	})
}

// Benchmark for a bounded scan of 100 entries
func benchmarkPrefixScan(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureIterate)

	populate(b, database, 10000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// test-key-000012xx
		prefix := []byte(fmt.Sprintf("test-key-0000%02d", i%100))
		it := database.NewIter(db.IterOptions{LowerBound: prefix, UpperBound: append(bytes.Clone(prefix), 0xff)})
		for valid := it.First(); valid; valid = it.Next() {
			_ = it.Value()
		}
		_ = it.Close()
	}
}

// Benchmark for snapshot creation with a point lookup
func benchmarkSnapshot(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSnapshot)

	populate(b, database, 10000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			snap := database.NewSnapshot()
			_, _ = snap.Get([]byte(fmt.Sprintf("test-key-%08d", counter%10000)))
			_ = snap.Close()
			counter++
		}
	})
}

func benchmarkSaveLoad(b *testing.B, factory DBFactory) {

	database := factory()

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSave)
	requireFeature(b, database, db.FeatureLoad)

	// Create a database with some data
	populate(b, database, 10000)

	b.Run("Save", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var buf bytes.Buffer
			_ = database.Save(&buf)
		}
	})

	// Prepare a data buffer for Load benchmark
	var loadBuf bytes.Buffer
	_ = database.Save(&loadBuf)
	data := loadBuf.Bytes()

	b.Run("Load", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			loadDB := factory()
			_ = loadDB.Load(bytes.NewReader(data))
			_ = loadDB.Close()
		}
	})
}

func benchmarkMixedUsage(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureGet|db.FeatureBatch|db.FeatureIterate)

	// Number of pre-populated keys
	numKeys := 100000
	if b.N < numKeys {
		numKeys = b.N
	}
	populate(b, database, numKeys)

	// Counter for atomic access
	var counter int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		// Local counter for each goroutine
		localCounter := 0

		for pb.Next() {
			// Get a somewhat random index
			idx := int(atomic.AddInt64(&counter, 1)-1) % numKeys
			key := []byte(fmt.Sprintf("test-key-%08d", idx))

			// Select operation (0-3: get, set, delete, scan)
			switch localCounter % 4 {
			case 0: // Get
				_, _ = database.Get(key)
			case 1: // Set
				batch := database.NewBatch()
				_ = batch.Set(key, []byte(fmt.Sprintf("mixed-value-%d", localCounter)))
				_ = batch.Commit()
				_ = batch.Close()
			case 2: // Delete
				batch := database.NewBatch()
				_ = batch.Delete(key)
				_ = batch.Commit()
				_ = batch.Close()
			case 3: // Scan
				it := database.NewIter(db.IterOptions{LowerBound: key})
				for n, valid := 0, it.First(); valid && n < 10; n, valid = n+1, it.Next() {
				}
				_ = it.Close()
			}

			localCounter++
		}
	})
}
