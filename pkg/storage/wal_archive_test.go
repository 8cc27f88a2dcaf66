package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWALArchiveCompressesPrefix(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWAL(filepath.Join(dir, "wal.log"), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	var lastLSN uint64
	for i := 0; i < 10; i++ {
		lsn, err := w.Append(&Record{Type: RecordInsert, Payload: []byte{byte(i)}})
		if err != nil {
			t.Fatal(err)
		}
		lastLSN = lsn
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	if err := w.Archive(dir, 1, lastLSN); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	archivePath := filepath.Join(dir, "wal.archive.1.zst")
	if _, err := os.Stat(archivePath); err != nil {
		t.Fatalf("expected archive file: %v", err)
	}

	// Replaying the truncated log should only surface the one record
	// at or after lastLSN (the archive boundary is exclusive).
	count := 0
	if err := w.Replay(func(rec *Record) error { count++; return nil }); err != nil {
		t.Fatalf("Replay after archive: %v", err)
	}
	if count != 1 {
		t.Fatalf("replayed %d records after archive, want 1 (the boundary record)", count)
	}
}

func TestWALArchiveReopenPreservesLSNOrdering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")

	w, err := NewWAL(path, 0)
	if err != nil {
		t.Fatal(err)
	}

	var archivedThrough uint64
	for i := 0; i < 5; i++ {
		lsn, err := w.Append(&Record{Type: RecordInsert, Payload: []byte{byte(i)}})
		if err != nil {
			t.Fatal(err)
		}
		archivedThrough = lsn
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}

	// Mimic Handle.Checkpoint: a checkpoint record lands after the
	// archived prefix, then Archive truncates everything before it
	// out of the live file, leaving the checkpoint record at physical
	// offset 0 with a non-zero LSN in its header.
	survivorLSN, err := w.Append(&Record{Type: RecordCheckpoint})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := w.Archive(dir, 1, archivedThrough+1); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewWAL(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	if got := reopened.NextLSN(); got <= survivorLSN {
		t.Fatalf("nextLSN after reopen = %d, want > %d (the already-durable checkpoint record's LSN)", got, survivorLSN)
	}

	lsn, err := reopened.Append(&Record{Type: RecordInsert, Payload: []byte("post-reopen")})
	if err != nil {
		t.Fatal(err)
	}
	if lsn <= survivorLSN {
		t.Fatalf("post-reopen append LSN = %d, want strictly greater than prior durable LSN %d", lsn, survivorLSN)
	}
}

func TestWALArchiveNoOpOnEmptyLog(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWAL(filepath.Join(dir, "wal.log"), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Archive(dir, 1, 100); err != nil {
		t.Fatalf("Archive on empty log: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "wal.archive.1.zst")); !os.IsNotExist(err) {
		t.Fatal("expected no archive file for an empty log")
	}
}
