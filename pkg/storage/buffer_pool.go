package storage

import (
	"fmt"
	"sync"
)

// DefaultBufferPoolCapacity is the default number of frames (spec §6).
const DefaultBufferPoolCapacity = 1024

// frame is one slot of the buffer pool's fixed frame table, mirroring
// original_source/storage/buffer/buffer_pool.c's BufferEntry.
type frame struct {
	page       *Page
	pageID     PageID
	lastAccess uint64
	valid      bool
}

// BufferPool is a fixed-capacity frame table over a PageManager with
// pin/unpin and LRU-approximate (monotonic access counter) victim
// selection. All operations are serialized by a single mutex, held
// across the page-manager I/O performed during eviction and fault-in
// (spec §5): this trades throughput for the invariant that no two
// threads race on the same victim slot.
type BufferPool struct {
	mu            sync.Mutex
	frames        []frame
	pageMgr       *PageManager
	accessCounter uint64
	hits          uint64
	misses        uint64
	evictions     uint64
}

// NewBufferPool creates a pool of the given capacity backed by pm.
func NewBufferPool(capacity int, pm *PageManager) *BufferPool {
	if capacity <= 0 {
		capacity = DefaultBufferPoolCapacity
	}
	return &BufferPool{
		frames:  make([]frame, capacity),
		pageMgr: pm,
	}
}

// findSlot returns the index of the valid frame holding pageID, or -1.
func (bp *BufferPool) findSlot(pageID PageID) int {
	for i := range bp.frames {
		if bp.frames[i].valid && bp.frames[i].pageID == pageID {
			return i
		}
	}
	return -1
}

// findVictim returns the first invalid slot if any, else the unpinned
// valid slot with the smallest lastAccess (ties broken by ascending
// index). Returns -1 if every slot is pinned.
func (bp *BufferPool) findVictim() int {
	victim := -1
	var minAccess uint64
	for i := range bp.frames {
		f := &bp.frames[i]
		if !f.valid {
			return i
		}
		if f.page.IsPinned() {
			continue
		}
		if victim == -1 || f.lastAccess < minAccess {
			victim = i
			minAccess = f.lastAccess
		}
	}
	return victim
}

// evictSlot writes back a dirty victim and marks the slot invalid.
// Caller must hold bp.mu and have confirmed slot holds a valid,
// unpinned frame.
func (bp *BufferPool) evictSlot(slot int) error {
	f := &bp.frames[slot]
	if f.page.Dirty {
		if err := bp.pageMgr.Write(f.page); err != nil {
			return fmt.Errorf("storage: evict page %d: %w", f.pageID, err)
		}
	}
	f.valid = false
	f.page = nil
	bp.evictions++
	return nil
}

// Get fetches a page by id, pinning it. On a cache hit it bumps the
// frame's access timestamp and pin count. On a miss it evicts a
// victim if the pool is full (single combined fault-and-install
// path, per spec §9's resolution of the stated Open Question),
// reads the page through the PageManager, and installs it. Returns
// (nil, nil) if no unpinned frame exists to serve the fault or the
// page does not exist; returns a non-nil error on I/O failure.
func (bp *BufferPool) Get(pageID PageID) (*Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if slot := bp.findSlot(pageID); slot >= 0 {
		bp.accessCounter++
		bp.frames[slot].lastAccess = bp.accessCounter
		bp.frames[slot].page.Pin()
		bp.hits++
		return bp.frames[slot].page, nil
	}
	bp.misses++

	slot := bp.findVictim()
	if slot < 0 {
		return nil, nil
	}
	if bp.frames[slot].valid {
		if err := bp.evictSlot(slot); err != nil {
			return nil, err
		}
	}

	page, err := bp.pageMgr.Read(pageID)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, nil
	}

	bp.accessCounter++
	bp.frames[slot] = frame{page: page, pageID: pageID, lastAccess: bp.accessCounter, valid: true}
	page.PinCount = 1
	return page, nil
}

// NewPage allocates a fresh page through the PageManager and installs
// it in the pool, evicting a victim first if necessary.
func (bp *BufferPool) NewPage() (*Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	slot := bp.findVictim()
	if slot < 0 {
		return nil, nil
	}
	if bp.frames[slot].valid {
		if err := bp.evictSlot(slot); err != nil {
			return nil, err
		}
	}

	page, err := bp.pageMgr.Alloc()
	if err != nil {
		return nil, err
	}

	bp.accessCounter++
	bp.frames[slot] = frame{page: page, pageID: page.Header.PageID, lastAccess: bp.accessCounter, valid: true}
	return page, nil
}

// Unpin finds the frame holding pageID and decrements its pin count
// if positive; a no-op if the page is not resident.
func (bp *BufferPool) Unpin(pageID PageID, dirty bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	slot := bp.findSlot(pageID)
	if slot < 0 {
		return
	}
	bp.frames[slot].page.Unpin()
	if dirty {
		bp.frames[slot].page.MarkDirty()
	}
}

// FlushPage writes a resident page through if dirty, clearing Dirty.
func (bp *BufferPool) FlushPage(pageID PageID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	slot := bp.findSlot(pageID)
	if slot < 0 {
		return fmt.Errorf("storage: page %d not in buffer pool: %w", pageID, ErrInvalidArgument)
	}
	if !bp.frames[slot].page.Dirty {
		return nil
	}
	return bp.pageMgr.Write(bp.frames[slot].page)
}

// FlushAll writes every dirty resident page through, stopping at the
// first error.
func (bp *BufferPool) FlushAll() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for i := range bp.frames {
		f := &bp.frames[i]
		if f.valid && f.page.Dirty {
			if err := bp.pageMgr.Write(f.page); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stats returns pool counters useful for diagnostics.
func (bp *BufferPool) Stats() map[string]any {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	size := 0
	for i := range bp.frames {
		if bp.frames[i].valid {
			size++
		}
	}

	total := bp.hits + bp.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(bp.hits) / float64(total) * 100
	}

	return map[string]any{
		"capacity":  len(bp.frames),
		"size":      size,
		"hits":      bp.hits,
		"misses":    bp.misses,
		"evictions": bp.evictions,
		"hit_rate":  hitRate,
	}
}
