package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mnohosten/embedstore/pkg/arena"
	"github.com/mnohosten/embedstore/pkg/index"
)

// Handle composes the page manager, buffer pool, WAL, and arena into
// a single storage-core surface, grounded on the teacher's
// StorageEngine: construct-then-recover ordering, teardown in
// reverse on any construction failure, and a Stats() map aggregating
// its components. Unlike the teacher, Handle keeps no process-wide
// counters of its own — row/transaction numbering belongs to a layer
// above this one (spec §9).
type Handle struct {
	mu       sync.Mutex
	dataDir  string
	pages    *PageManager
	pool     *BufferPool
	wal      *WAL
	arena    *arena.Arena
	open     bool
	archiveN int
}

// Open creates or reopens a storage handle rooted at cfg.DataDir,
// replaying the WAL against the page store before returning.
func Open(cfg *Config) (h *Handle, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage: nil config: %w", ErrInvalidArgument)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w: %v", ErrIO, err)
	}

	pages, err := NewPageManager(filepath.Join(cfg.DataDir, "pages.dat"))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			pages.Close()
		}
	}()

	wal, err := NewWAL(filepath.Join(cfg.DataDir, "wal.log"), cfg.WALBufferSize)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			wal.Close()
		}
	}()

	ar, err := arena.New(cfg.ArenaCapacity)
	if err != nil {
		return nil, fmt.Errorf("storage: create arena: %w", err)
	}
	defer func() {
		if err != nil {
			ar.Close()
		}
	}()

	pool := NewBufferPool(cfg.BufferPoolSize, pages)

	archiveN, err := highestArchiveSeq(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	h = &Handle{
		dataDir:  cfg.DataDir,
		pages:    pages,
		pool:     pool,
		wal:      wal,
		arena:    ar,
		open:     true,
		archiveN: archiveN,
	}

	if err = h.recover(); err != nil {
		return nil, fmt.Errorf("storage: recover: %w", err)
	}

	return h, nil
}

// recover replays the WAL, bumping each touched page's LSN and
// marking it dirty so the next checkpoint flushes it. It does not
// reconstruct index structures: those are volatile and rebuilt by a
// higher layer from the replayed pages (spec §1 Non-goals).
//
// A mutation record's payload is expected to open with the target
// page id as a little-endian uint32 — a convention this Handle owns,
// since the spec leaves record payload shape to the layer emitting
// them (spec §1: transaction manager semantics beyond WAL record
// emission are out of scope here).
func (h *Handle) recover() error {
	return h.wal.Replay(func(rec *Record) error {
		switch rec.Type {
		case RecordInsert, RecordUpdate, RecordDelete:
			if len(rec.Payload) < 4 {
				return nil
			}
			pageID := PageID(binary.LittleEndian.Uint32(rec.Payload[0:4]))
			page, err := h.pool.Get(pageID)
			if err != nil {
				return err
			}
			if page == nil {
				return nil
			}
			page.Header.LSN = rec.LSN
			page.MarkDirty()
			h.pool.Unpin(pageID, true)
		case RecordCommit, RecordAbort, RecordCheckpoint:
		}
		return nil
	})
}

// GetPage fetches and pins a page, faulting it in from disk if
// necessary. It returns (nil, nil) if the page does not exist or no
// unpinned frame was free to serve the fault.
func (h *Handle) GetPage(id PageID) (*Page, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	return h.pool.Get(id)
}

// NewPage allocates a fresh page and pins it.
func (h *Handle) NewPage() (*Page, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	return h.pool.NewPage()
}

// PutPage unpins a page, optionally marking it dirty.
func (h *Handle) PutPage(id PageID, dirty bool) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	h.pool.Unpin(id, dirty)
	return nil
}

// FlushPage writes a single resident page through if dirty.
func (h *Handle) FlushPage(id PageID) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	return h.pool.FlushPage(id)
}

// WALAppend assigns rec an LSN and buffers it for the next flush.
func (h *Handle) WALAppend(rec *Record) (uint64, error) {
	if err := h.checkOpen(); err != nil {
		return 0, err
	}
	return h.wal.Append(rec)
}

// WALFlush forces the WAL buffer to disk.
func (h *Handle) WALFlush() error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	return h.wal.Flush()
}

// Checkpoint flushes all dirty pages, writes a checkpoint record,
// fsyncs the page store, and archives the WAL prefix now covered by
// durable pages.
func (h *Handle) Checkpoint() error {
	if err := h.checkOpen(); err != nil {
		return err
	}

	if err := h.pool.FlushAll(); err != nil {
		return fmt.Errorf("storage: checkpoint flush: %w", err)
	}

	lsn, err := h.wal.Append(&Record{Type: RecordCheckpoint})
	if err != nil {
		return fmt.Errorf("storage: checkpoint record: %w", err)
	}
	if err := h.wal.Flush(); err != nil {
		return err
	}

	if err := h.pages.Sync(); err != nil {
		return err
	}

	h.mu.Lock()
	h.archiveN++
	seq := h.archiveN
	h.mu.Unlock()

	return h.wal.Archive(h.dataDir, seq, lsn)
}

// ArenaAlloc carves size bytes from the handle's scratch arena. The
// returned slice is invalidated by the next ArenaReset.
func (h *Handle) ArenaAlloc(size int) ([]byte, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	return h.arena.Alloc(size)
}

// ArenaReset invalidates every slice handed out by ArenaAlloc since
// the last reset.
func (h *Handle) ArenaReset() error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	h.arena.Reset()
	return nil
}

// CreateBTree returns a fresh, empty B-tree index of the given order;
// order <= 0 selects index.DefaultBTreeOrder. The handle's
// Config.BTreeOrder is not consulted.
func (h *Handle) CreateBTree(order int) *index.BTree {
	return index.NewBTree(order)
}

// CreateHashIndex returns a fresh, empty hash index.
func (h *Handle) CreateHashIndex(numBuckets int) *index.HashIndex {
	return index.NewHashIndex(numBuckets)
}

// CreateBloomFilter returns a fresh, empty bloom filter.
func (h *Handle) CreateBloomFilter(numBits, numHashes int) *index.BloomFilter {
	return index.NewBloomFilter(numBits, numHashes)
}

// Stats aggregates diagnostics from every owned component.
func (h *Handle) Stats() map[string]any {
	return map[string]any{
		"pages":        h.pages.Stats(),
		"buffer_pool":  h.pool.Stats(),
		"wal_next_lsn": h.wal.NextLSN(),
		"arena_used":   h.arena.Used(),
	}
}

func (h *Handle) checkOpen() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.open {
		return ErrClosed
	}
	return nil
}

// Close tears down every component in reverse construction order,
// flushing dirty pages and the WAL buffer first.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.open {
		return nil
	}
	h.open = false

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(h.pool.FlushAll())
	record(h.wal.Flush())
	record(h.arena.Close())
	record(h.wal.Close())
	record(h.pages.Close())

	return firstErr
}
