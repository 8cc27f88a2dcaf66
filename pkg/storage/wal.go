package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// RecordHeaderSize is the size of a WAL record header:
// lsn(8) + transaction_id(4) + logical_time(8) + type(2) + length(2).
const RecordHeaderSize = 24

// DefaultWALBufferSize is the default in-memory buffer size (spec §6).
const DefaultWALBufferSize = 65536

// RecordType identifies a WAL record's payload shape.
type RecordType uint16

const (
	RecordInsert RecordType = iota + 1
	RecordUpdate
	RecordDelete
	RecordCommit
	RecordAbort
	RecordCheckpoint
)

// Record is one WAL entry: a 24-byte header plus a variable payload.
type Record struct {
	LSN           uint64
	TransactionID uint32
	LogicalTime   uint64
	Type          RecordType
	Payload       []byte
}

func (r *Record) size() int {
	return RecordHeaderSize + len(r.Payload)
}

func (r *Record) encode() []byte {
	buf := make([]byte, r.size())
	binary.LittleEndian.PutUint64(buf[0:8], r.LSN)
	binary.LittleEndian.PutUint32(buf[8:12], r.TransactionID)
	binary.LittleEndian.PutUint64(buf[12:20], r.LogicalTime)
	binary.LittleEndian.PutUint16(buf[20:22], uint16(r.Type))
	binary.LittleEndian.PutUint16(buf[22:24], uint16(len(r.Payload)))
	copy(buf[24:], r.Payload)
	return buf
}

func decodeRecord(buf []byte) (*Record, int, error) {
	if len(buf) < RecordHeaderSize {
		return nil, 0, nil // truncated trailing header; caller stops silently
	}
	length := binary.LittleEndian.Uint16(buf[22:24])
	total := RecordHeaderSize + int(length)
	if total > len(buf) {
		return nil, total, nil // truncated trailing record; caller stops silently
	}

	recType := RecordType(binary.LittleEndian.Uint16(buf[20:22]))
	if recType < RecordInsert || recType > RecordCheckpoint {
		return nil, 0, fmt.Errorf("storage: unknown WAL record type %d: %w", recType, ErrCorruption)
	}

	rec := &Record{
		LSN:           binary.LittleEndian.Uint64(buf[0:8]),
		TransactionID: binary.LittleEndian.Uint32(buf[8:12]),
		LogicalTime:   binary.LittleEndian.Uint64(buf[12:20]),
		Type:          recType,
		Payload:       append([]byte(nil), buf[24:total]...),
	}
	return rec, total, nil
}

// WAL is an append-only log with an in-memory buffer and group commit
// via fsync. Durability requires an explicit Flush call; Append alone
// carries no durability promise (spec §4.4).
type WAL struct {
	file      *os.File
	dir       string
	mu        sync.Mutex
	buffer    []byte
	bufferPos int
	bufferCap int
	nextLSN   uint64
	baseLSN   uint64
}

// baseLSNFileName is the sidecar recording the LSN that physical
// offset 0 of wal.log corresponds to. It only ever advances when
// Archive truncates a prefix out of the log; a fresh log has an
// implicit base LSN of 0 (no sidecar file yet).
const baseLSNFileName = "wal.base"

// NewWAL opens (creating if absent) <data_dir>/wal.log and seeds
// nextLSN from baseLSN + the file's current size. baseLSN is read
// from the wal.base sidecar beside path, defaulting to 0 for a log
// that has never been archived — plain file size alone cannot be
// trusted once Archive has truncated a prefix out of the log, since
// LSN then no longer equals raw byte offset (spec §3's "lsn equals
// the byte offset of the record in the log file" only holds relative
// to baseLSN).
func NewWAL(path string, bufferSize int) (*WAL, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultWALBufferSize
	}

	dir := filepath.Dir(path)
	baseLSN, err := readBaseLSN(dir)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("storage: open WAL file: %w: %v", ErrIO, err)
	}

	pos, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("storage: seek WAL file: %w: %v", ErrIO, err)
	}

	return &WAL{
		file:      file,
		dir:       dir,
		buffer:    make([]byte, 0, bufferSize),
		bufferCap: bufferSize,
		nextLSN:   baseLSN + uint64(pos),
		baseLSN:   baseLSN,
	}, nil
}

// readBaseLSN reads the wal.base sidecar from dir, returning 0 if it
// does not exist (a log that has never been archived).
func readBaseLSN(dir string) (uint64, error) {
	data, err := os.ReadFile(filepath.Join(dir, baseLSNFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("storage: read WAL base LSN: %w: %v", ErrIO, err)
	}
	val, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("storage: parse WAL base LSN: %w: %v", ErrCorruption, err)
	}
	return val, nil
}

// writeBaseLSN durably persists val to the wal.base sidecar in dir via
// write-temp-fsync-rename, so a crash mid-write never leaves a
// half-written sidecar behind. Callers that truncate wal.log must call
// this first and wait for it to return before truncating, so that a
// crash between the two only ever causes nextLSN to skip ahead on the
// next open (a harmless gap), never to regress into an LSN already
// durable on disk.
func writeBaseLSN(dir string, val uint64) error {
	tmp := filepath.Join(dir, baseLSNFileName+".tmp")
	if err := os.WriteFile(tmp, []byte(strconv.FormatUint(val, 10)), 0644); err != nil {
		return fmt.Errorf("storage: write WAL base LSN: %w: %v", ErrIO, err)
	}
	f, err := os.Open(tmp)
	if err != nil {
		return fmt.Errorf("storage: open WAL base LSN temp file: %w: %v", ErrIO, err)
	}
	syncErr := f.Sync()
	f.Close()
	if syncErr != nil {
		return fmt.Errorf("storage: sync WAL base LSN temp file: %w: %v", ErrIO, syncErr)
	}
	if err := os.Rename(tmp, filepath.Join(dir, baseLSNFileName)); err != nil {
		return fmt.Errorf("storage: install WAL base LSN: %w: %v", ErrIO, err)
	}
	return nil
}

// Append assigns the record the current nextLSN, buffers it (flushing
// first if the buffer cannot accommodate it), and advances nextLSN.
// It returns the assigned LSN and an explicit error on flush failure
// (spec §9's Open Question — an explicit error channel rather than an
// overloaded lsn=0 sentinel).
func (w *WAL) Append(rec *Record) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entrySize := rec.size()
	if w.bufferPos+entrySize > w.bufferCap {
		if err := w.flushLocked(); err != nil {
			return 0, err
		}
	}

	rec.LSN = w.nextLSN
	encoded := rec.encode()

	if cap(w.buffer) < w.bufferPos+entrySize {
		grown := make([]byte, w.bufferPos, w.bufferPos+entrySize)
		copy(grown, w.buffer[:w.bufferPos])
		w.buffer = grown
	}
	w.buffer = append(w.buffer[:w.bufferPos], encoded...)
	w.bufferPos += entrySize
	w.nextLSN += uint64(entrySize)

	return rec.LSN, nil
}

func (w *WAL) flushLocked() error {
	if w.bufferPos == 0 {
		return nil
	}
	if _, err := w.file.Write(w.buffer[:w.bufferPos]); err != nil {
		return fmt.Errorf("storage: write WAL buffer: %w: %v", ErrIO, err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("storage: sync WAL file: %w: %v", ErrIO, err)
	}
	w.bufferPos = 0
	return nil
}

// Flush writes the buffer to the file and fsyncs it. Every record
// appended before this call with lsn < nextLSN-at-call becomes
// durable on success.
func (w *WAL) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// RedoFunc is invoked once per record during Replay, in LSN order.
type RedoFunc func(rec *Record) error

// Replay seeks to the start of the log, reads it entirely, and walks
// records sequentially by entry size, dispatching each to redo. A
// truncated trailing record (offset+entrySize > file size) ends
// replay silently, modelling a crash mid-append.
func (w *WAL) Replay(redo RedoFunc) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flushLocked(); err != nil {
		return err
	}

	size, err := w.file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("storage: seek WAL file: %w: %v", ErrIO, err)
	}
	if size == 0 {
		return nil
	}

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("storage: seek WAL file: %w: %v", ErrIO, err)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(w.file, data); err != nil {
		return fmt.Errorf("storage: read WAL file: %w: %v", ErrIO, err)
	}

	offset := 0
	for offset < len(data) {
		rec, consumed, err := decodeRecord(data[offset:])
		if err != nil {
			return err
		}
		if rec == nil {
			break // truncated trailing record: stop, no error
		}
		if err := redo(rec); err != nil {
			return err
		}
		offset += consumed
	}

	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("storage: seek WAL file: %w: %v", ErrIO, err)
	}
	return nil
}

// NextLSN returns the LSN that would be assigned to the next Append.
func (w *WAL) NextLSN() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nextLSN
}

// Close flushes and closes the WAL file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.flushLocked(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("storage: close WAL file: %w: %v", ErrIO, err)
	}
	return nil
}
