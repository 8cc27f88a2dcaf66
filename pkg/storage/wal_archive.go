package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Archive compresses the log prefix strictly before beforeLSN into
// <data_dir>/wal.archive.<n>.zst and truncates the live log to the
// surviving suffix. The teacher leaves this as a stub
// ("In production, would implement WAL archival and truncation");
// this promotes it to a real feature, invoked by Handle.Checkpoint
// once the checkpoint record is durable.
//
// archiveDir is typically the WAL's own data directory; seq
// disambiguates successive archive files.
func (w *WAL) Archive(archiveDir string, seq int, beforeLSN uint64) error {
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

	splitAt := 0
	for splitAt < len(data) {
		rec, consumed, err := decodeRecord(data[splitAt:])
		if err != nil {
			return err
		}
		if rec == nil || rec.LSN >= beforeLSN {
			break
		}
		splitAt += consumed
	}
	if splitAt == 0 {
		if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
			return fmt.Errorf("storage: seek WAL file: %w: %v", ErrIO, err)
		}
		return nil // nothing durable before beforeLSN yet
	}

	archivePath := filepath.Join(archiveDir, fmt.Sprintf("wal.archive.%d.zst", seq))
	if err := writeZstd(archivePath, data[:splitAt]); err != nil {
		return err
	}

	// The base LSN sidecar must land (and be fsynced) before the file
	// is truncated: a crash in between leaves an untruncated file
	// paired with the new, larger base LSN, which only makes nextLSN
	// skip ahead on the next open. Writing truncatePrefix first would
	// instead leave a short file paired with the stale base LSN,
	// regressing nextLSN below records already durable on disk.
	newBase := w.baseLSN + uint64(splitAt)
	if err := writeBaseLSN(w.dir, newBase); err != nil {
		return err
	}

	if err := w.truncatePrefix(data[splitAt:]); err != nil {
		return err
	}
	w.baseLSN = newBase
	return nil
}

// highestArchiveSeq scans dataDir for wal.archive.<n>.zst files and
// returns the highest n found, or 0 if none exist. Handle.Open calls
// this to seed archiveN so that a restart resumes numbering after the
// last archive instead of starting back at 1 and clobbering it (seq 1
// is written with os.O_TRUNC).
func highestArchiveSeq(dataDir string) (int, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("storage: list data dir: %w: %v", ErrIO, err)
	}

	highest := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "wal.archive.") || !strings.HasSuffix(name, ".zst") {
			continue
		}
		middle := strings.TrimSuffix(strings.TrimPrefix(name, "wal.archive."), ".zst")
		n, err := strconv.Atoi(middle)
		if err != nil {
			continue // not a well-formed archive filename; ignore
		}
		if n > highest {
			highest = n
		}
	}
	return highest, nil
}

func writeZstd(path string, raw []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("storage: create WAL archive: %w: %v", ErrIO, err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("storage: create zstd encoder: %w: %v", ErrIO, err)
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return fmt.Errorf("storage: compress WAL archive: %w: %v", ErrIO, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("storage: finalize WAL archive: %w: %v", ErrIO, err)
	}
	return f.Sync()
}

// truncatePrefix rewrites the live log file to contain only suffix.
// The file now starts at LSN w.baseLSN (as just persisted by the
// caller) instead of LSN 0; NewWAL recovers this mapping by reading
// the wal.base sidecar on the next open, so offset-in-file plus
// baseLSN still equals a record's LSN.
func (w *WAL) truncatePrefix(suffix []byte) error {
	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("storage: truncate WAL file: %w: %v", ErrIO, err)
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("storage: seek WAL file: %w: %v", ErrIO, err)
	}
	if len(suffix) > 0 {
		if _, err := w.file.Write(suffix); err != nil {
			return fmt.Errorf("storage: rewrite WAL suffix: %w: %v", ErrIO, err)
		}
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("storage: sync WAL file: %w: %v", ErrIO, err)
	}
	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("storage: seek WAL file: %w: %v", ErrIO, err)
	}
	return nil
}
