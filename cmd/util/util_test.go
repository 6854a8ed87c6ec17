package util

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/zKV/lib/common"
	"github.com/ValentinKolb/zKV/lib/db"
	"github.com/ValentinKolb/zKV/lib/store"
)

func TestWrapString(t *testing.T) {
	text := "Interval of full sweeps of the namespace by the background garbage collector"
	wrapped := WrapString(text)

	for _, line := range strings.Split(wrapped, "\n") {
		if len(line) > Wrap {
			t.Errorf("line longer than %d characters: %q", Wrap, line)
		}
	}
	if got := strings.Join(strings.Fields(wrapped), " "); got != text {
		t.Errorf("wrapping changed the words: %q", got)
	}
	if WrapString("") != "" {
		t.Errorf("empty text should stay empty")
	}
}

func TestOpenStore(t *testing.T) {
	config := common.DefaultConfig(t.TempDir())
	config.SyncWrites = false
	config.GCInterval = 0
	config.LogLevel = "error"

	s, database, closeFn, err := OpenStore(config)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	if database.GetInfo().DbType != db.ImplLSM {
		t.Errorf("expected the lsm engine, got %q", database.GetInfo().DbType)
	}

	if _, err := s.Add("k", 0, []store.MemberScore{{Member: "a", Score: 1}}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// the data survives reopening the store
	s, _, closeFn, err = OpenStore(config)
	if err != nil {
		t.Fatalf("reopening failed: %v", err)
	}
	defer closeFn()

	if n, err := s.Card("k"); err != nil || n != 1 {
		t.Errorf("Card after reopen = %d, %v; want 1", n, err)
	}
}

func TestOpenStoreInvalidConfig(t *testing.T) {
	config := common.DefaultConfig("")
	if _, _, _, err := OpenStore(config); err == nil {
		t.Error("expected an error for an lsm store without data directory")
	}
}
