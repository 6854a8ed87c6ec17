package maple

import (
	"testing"

	"github.com/ValentinKolb/zKV/lib/db"
	dbtesting "github.com/ValentinKolb/zKV/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "MapleDB", func() db.KVDB {
		return NewMapleDB(nil)
	})
}

func TestPreload(t *testing.T) {
	database := NewMapleDB(&DBOptions{Preload: map[string][]byte{"a": []byte("1"), "b": []byte("2")}})
	defer database.Close()

	value, err := database.Get([]byte("b"))
	if err != nil {
		t.Fatalf("Expected preloaded key to exist, got %v", err)
	}
	if string(value) != "2" {
		t.Errorf("Expected value 2, got %s", value)
	}

	info := database.GetInfo()
	if info.SizeBytes != 4 {
		t.Errorf("Expected size of 4 bytes, got %d", info.SizeBytes)
	}
}

func TestCommitAfterClose(t *testing.T) {
	database := NewMapleDB(nil)
	_ = database.Close()

	b := database.NewBatch()
	defer b.Close()
	_ = b.Set([]byte("k"), []byte("v"))
	if err := b.Commit(); err != ErrClosed {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func Benchmark(t *testing.B) {
	dbtesting.RunKVDBBenchmarks(t, "MapleDB", func() db.KVDB {
		return NewMapleDB(nil)
	})
}
