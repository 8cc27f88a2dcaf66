package storage

import (
	"encoding/binary"
	"fmt"
)

// LinePointerSize is the size of one slot-directory entry:
// offset(2) + length(2) + flags(2).
const LinePointerSize = 6

// SlotDeleted is bit 0 of a line pointer's flags: the slot is
// tombstoned. Slot numbering is preserved across deletes.
const SlotDeleted uint16 = 1 << 0

// LinePointer is a fixed-size entry in a slotted page's slot directory.
type LinePointer struct {
	Offset uint16
	Length uint16
	Flags  uint16
}

// IsDeleted reports whether this slot has been tombstoned.
func (lp LinePointer) IsDeleted() bool {
	return lp.Flags&SlotDeleted != 0
}

// SlottedPage is a view over a Page's payload implementing the
// line-pointer-array-grows-forward, tuple-heap-grows-backward layout
// of spec §3/§4.2. It has no header of its own beyond the Page's;
// the slot count is derived from Lower.
type SlottedPage struct {
	page *Page
}

// NewSlottedPage wraps a freshly allocated page (Lower/Upper already
// initialized by PageManager.Alloc) as a slotted page.
func NewSlottedPage(page *Page) *SlottedPage {
	return &SlottedPage{page: page}
}

// slotCount derives the number of line pointers from Lower.
func (sp *SlottedPage) slotCount() uint16 {
	return (sp.page.Header.Lower - PageHeaderSize) / LinePointerSize
}

func (sp *SlottedPage) linePointerOffset(slot uint16) int {
	return PageHeaderSize + int(slot)*LinePointerSize
}

func (sp *SlottedPage) readLinePointer(slot uint16) LinePointer {
	off := sp.linePointerOffset(slot)
	data := sp.page.Payload
	base := off - PageHeaderSize
	return LinePointer{
		Offset: binary.LittleEndian.Uint16(data[base : base+2]),
		Length: binary.LittleEndian.Uint16(data[base+2 : base+4]),
		Flags:  binary.LittleEndian.Uint16(data[base+4 : base+6]),
	}
}

func (sp *SlottedPage) writeLinePointer(slot uint16, lp LinePointer) {
	off := sp.linePointerOffset(slot) - PageHeaderSize
	data := sp.page.Payload
	binary.LittleEndian.PutUint16(data[off:off+2], lp.Offset)
	binary.LittleEndian.PutUint16(data[off+2:off+4], lp.Length)
	binary.LittleEndian.PutUint16(data[off+4:off+6], lp.Flags)
}

// FreeSpace returns upper - lower.
func (sp *SlottedPage) FreeSpace() int {
	return sp.page.FreeSpace()
}

// AddTuple places data in the tuple heap and appends a new line
// pointer, returning the new slot's index. It requires
// free_space >= len(data) + sizeof(LinePointer).
func (sp *SlottedPage) AddTuple(data []byte) (uint16, error) {
	needed := len(data) + LinePointerSize
	if sp.FreeSpace() < needed {
		return 0, fmt.Errorf("storage: tuple of %d bytes needs %d, have %d: %w", len(data), needed, sp.FreeSpace(), ErrNoSpace)
	}

	slot := sp.slotCount()
	hdr := &sp.page.Header

	newUpper := hdr.Upper - uint16(len(data))
	base := int(newUpper) - PageHeaderSize
	copy(sp.page.Payload[base:base+len(data)], data)

	lp := LinePointer{Offset: newUpper, Length: uint16(len(data)), Flags: 0}
	sp.writeLinePointer(slot, lp)

	hdr.Lower += LinePointerSize
	hdr.Upper = newUpper
	sp.page.MarkDirty()

	return slot, nil
}

// GetTuple returns the bytes for slot, or nil if the slot is
// out-of-range or tombstoned.
func (sp *SlottedPage) GetTuple(slot uint16) []byte {
	if slot >= sp.slotCount() {
		return nil
	}
	lp := sp.readLinePointer(slot)
	if lp.IsDeleted() {
		return nil
	}
	base := int(lp.Offset) - PageHeaderSize
	out := make([]byte, lp.Length)
	copy(out, sp.page.Payload[base:base+int(lp.Length)])
	return out
}

// DeleteTuple tombstones a slot without reclaiming its space. Slot
// numbering is stable; compaction is deferred to a vacuum concern
// outside this core (spec §4.2).
func (sp *SlottedPage) DeleteTuple(slot uint16) error {
	if slot >= sp.slotCount() {
		return fmt.Errorf("storage: slot %d out of range (have %d): %w", slot, sp.slotCount(), ErrInvalidArgument)
	}
	lp := sp.readLinePointer(slot)
	lp.Flags |= SlotDeleted
	sp.writeLinePointer(slot, lp)
	sp.page.MarkDirty()
	return nil
}

// SlotCount returns the number of line pointers, live or tombstoned.
func (sp *SlottedPage) SlotCount() uint16 {
	return sp.slotCount()
}

// Page returns the underlying page.
func (sp *SlottedPage) Page() *Page {
	return sp.page
}
