package db_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ValentinKolb/zKV/lib/db"
	"github.com/ValentinKolb/zKV/lib/db/engines/maple"
)

// dumpHeader returns the magic and version of a valid dump
func dumpHeader() []byte {
	var buf bytes.Buffer
	if err := db.WriteDump(&buf, maple.NewMapleDB(nil)); err != nil {
		panic(err)
	}
	// drop the end marker
	return buf.Bytes()[:buf.Len()-1]
}

func TestReadDumpRejectsOversizedChunk(t *testing.T) {
	data := append(dumpHeader(), 1) // entry marker
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 0xFFFFFFF0)
	data = append(data, lenBuf[:]...)
	data = append(data, "short"...)

	database := maple.NewMapleDB(nil)
	defer database.Close()

	err := db.ReadDump(bytes.NewReader(data), database)
	if err == nil {
		t.Fatal("Expected an error for a chunk length beyond the limit")
	}
	iter := database.NewIter(db.IterOptions{})
	defer iter.Close()
	if iter.First() {
		t.Errorf("Expected no keys after a failed load")
	}
}

func TestReadDumpTruncated(t *testing.T) {
	source := maple.NewMapleDB(nil)
	defer source.Close()
	b := source.NewBatch()
	_ = b.Set([]byte("key"), []byte("value"))
	if err := b.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	var buf bytes.Buffer
	if err := db.WriteDump(&buf, source); err != nil {
		t.Fatalf("WriteDump failed: %v", err)
	}

	target := maple.NewMapleDB(nil)
	defer target.Close()
	if err := db.ReadDump(bytes.NewReader(buf.Bytes()[:buf.Len()-4]), target); err == nil {
		t.Error("Expected an error for a truncated dump")
	}
}

var errIterClose = errors.New("iterator close failed")

// failingCloseReader hands out iterators whose Close fails
type failingCloseReader struct {
	db.Reader
}

func (r failingCloseReader) NewIter(opts db.IterOptions) db.Iterator {
	return failingCloseIter{r.Reader.NewIter(opts)}
}

type failingCloseIter struct {
	db.Iterator
}

func (it failingCloseIter) Close() error {
	_ = it.Iterator.Close()
	return errIterClose
}

func TestWriteDumpReportsCloseError(t *testing.T) {
	source := maple.NewMapleDB(nil)
	defer source.Close()

	var buf bytes.Buffer
	err := db.WriteDump(&buf, failingCloseReader{source})
	if !errors.Is(err, errIterClose) {
		t.Errorf("Expected the iterator close error, got %v", err)
	}
}
