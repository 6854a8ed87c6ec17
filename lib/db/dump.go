package db

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// --------------------------------------------------------------------------
// Dump Format (shared Save/Load implementation of all engines)
// --------------------------------------------------------------------------

const (
	dumpMagic     = "ZKVDUMP\x00" // File format identifier
	dumpVersion   = 1             // Format version
	loadBatchSize = 1024          // Entries per batch during Load
	maxChunkSize  = 64 << 20      // Largest key or value accepted by Load

	entryMarker = 1
	endMarker   = 0
)

// WriteDump writes every entry visible through the reader to w.
// The format is:
// 8 bytes magic,
// 1 byte version,
// per entry: 1 byte marker (1), 4 bytes key length, key, 4 bytes value length, value
// 1 byte end marker (0)
func WriteDump(w io.Writer, r Reader) (err error) {
	// Use a buffered writer for better performance
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	if _, err := bw.WriteString(dumpMagic); err != nil {
		return err
	}
	if err := bw.WriteByte(dumpVersion); err != nil {
		return err
	}

	iter := r.NewIter(IterOptions{})
	defer func() {
		if closeErr := iter.Close(); err == nil {
			err = closeErr
		}
	}()

	var lenBuf [4]byte
	for valid := iter.First(); valid; valid = iter.Next() {
		if err := bw.WriteByte(entryMarker); err != nil {
			return err
		}

		key, value := iter.Key(), iter.Value()

		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(key)))
		if _, err := bw.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := bw.Write(key); err != nil {
			return err
		}

		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(value)))
		if _, err := bw.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := bw.Write(value); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return err
	}

	if err := bw.WriteByte(endMarker); err != nil {
		return err
	}

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

// ReadDump reads a dump written by WriteDump and applies it to the database in batches.
func ReadDump(r io.Reader, database KVDB) error {
	// Use a buffered reader for better performance
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	// Read and verify magic number
	magicBytes := make([]byte, len(dumpMagic))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != dumpMagic {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	version, err := br.ReadByte()
	if err != nil {
		return err
	}
	if version != dumpVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, dumpVersion)
	}

	batch := database.NewBatch()
	defer func() { _ = batch.Close() }()

	for {
		marker, err := br.ReadByte()
		if err != nil {
			return err
		}
		if marker == endMarker {
			break
		}
		if marker != entryMarker {
			return fmt.Errorf("invalid entry marker %d", marker)
		}

		key, err := readChunk(br)
		if err != nil {
			return err
		}
		value, err := readChunk(br)
		if err != nil {
			return err
		}
		if err := batch.Set(key, value); err != nil {
			return err
		}

		// commit in chunks to keep batches small
		if batch.Count() >= loadBatchSize {
			if err := batch.Commit(); err != nil {
				return err
			}
			_ = batch.Close()
			batch = database.NewBatch()
		}
	}

	return batch.Commit()
}

// readChunk reads a 4 byte length followed by that many bytes
func readChunk(br *bufio.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(lenBuf[:])
	if size > maxChunkSize {
		return nil, fmt.Errorf("invalid chunk length %d (max %d)", size, maxChunkSize)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(br, data); err != nil {
		return nil, err
	}
	return data, nil
}
