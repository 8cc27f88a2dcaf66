package storage

import (
	"fmt"
	"os"
	"sync"
)

// PageManager owns <data_dir>/pages.dat: reads and writes fixed-size
// pages and allocates new page ids. Every method takes the manager's
// own mutex, so it is also safe to call outside the BufferPool's lock
// (Handle.Checkpoint calls Sync that way).
type PageManager struct {
	file      *os.File
	mu        sync.Mutex
	numPages  uint32
	totalRead uint64
	totalWrit uint64
}

// NewPageManager opens (creating if absent) <data_dir>/pages.dat.
func NewPageManager(path string) (*PageManager, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("storage: open pages file: %w: %v", ErrIO, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("storage: stat pages file: %w: %v", ErrIO, err)
	}

	return &PageManager{
		file:     file,
		numPages: uint32(info.Size() / PageSize),
	}, nil
}

// NumPages returns the current page count.
func (pm *PageManager) NumPages() uint32 {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.numPages
}

// Read returns the page at pageID, or nil if pageID is out of range.
func (pm *PageManager) Read(pageID PageID) (*Page, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.readLocked(pageID)
}

func (pm *PageManager) readLocked(pageID PageID) (*Page, error) {
	if uint32(pageID) >= pm.numPages {
		return nil, nil
	}

	offset := int64(pageID) * PageSize
	buf := make([]byte, PageSize)
	n, err := pm.file.ReadAt(buf, offset)
	if err != nil && n != PageSize {
		return nil, fmt.Errorf("storage: read page %d: %w: %v", pageID, ErrIO, err)
	}
	if n != PageSize {
		return nil, fmt.Errorf("storage: short read of page %d: got %d bytes: %w", pageID, n, ErrIO)
	}

	page, err := Deserialize(buf)
	if err != nil {
		return nil, err
	}
	page.Dirty = false
	page.PinCount = 1
	pm.totalRead++
	return page, nil
}

// Write persists page to its slot, syncing the file before returning.
// Dirty is cleared on success.
func (pm *PageManager) Write(page *Page) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.writeLocked(page)
}

func (pm *PageManager) writeLocked(page *Page) error {
	offset := int64(page.Header.PageID) * PageSize
	data := page.Serialize()

	n, err := pm.file.WriteAt(data, offset)
	if err != nil || n != PageSize {
		return fmt.Errorf("storage: write page %d: %w: %v", page.Header.PageID, ErrIO, err)
	}
	if err := pm.file.Sync(); err != nil {
		return fmt.Errorf("storage: sync pages file: %w: %v", ErrIO, err)
	}

	page.Dirty = false
	pm.totalWrit++
	return nil
}

// Alloc produces a zeroed page at the next page id, extends
// pages.dat with it, and bumps NumPages on success.
func (pm *PageManager) Alloc() (*Page, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	id := PageID(pm.numPages)
	page := NewPage(id)
	page.Dirty = true
	page.PinCount = 1

	if err := pm.writeLocked(page); err != nil {
		return nil, err
	}
	pm.numPages++
	return page, nil
}

// Sync flushes the underlying file descriptor.
func (pm *PageManager) Sync() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if err := pm.file.Sync(); err != nil {
		return fmt.Errorf("storage: sync pages file: %w: %v", ErrIO, err)
	}
	return nil
}

// Close syncs and closes the pages file.
func (pm *PageManager) Close() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if err := pm.file.Sync(); err != nil {
		return fmt.Errorf("storage: sync pages file: %w: %v", ErrIO, err)
	}
	if err := pm.file.Close(); err != nil {
		return fmt.Errorf("storage: close pages file: %w: %v", ErrIO, err)
	}
	return nil
}

// Stats returns counters useful for diagnostics.
func (pm *PageManager) Stats() map[string]any {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return map[string]any{
		"num_pages":    pm.numPages,
		"total_reads":  pm.totalRead,
		"total_writes": pm.totalWrit,
	}
}
