package storage

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

const (
	// PageSize is the fixed on-disk size of a page, header included.
	PageSize = 8192

	// PageHeaderSize is the size of the on-disk page header.
	// page_id(4) + checksum(4) + lower(2) + upper(2) + special(2) + flags(2) + lsn(8)
	PageHeaderSize = 24
)

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// PageID identifies a page within pages.dat.
type PageID uint32

// PageHeader is the 24-byte on-disk page header described in spec §6.
type PageHeader struct {
	PageID   PageID
	Checksum uint32
	Lower    uint16 // first free offset in the line-pointer array
	Upper    uint16 // first used offset of the tuple heap, growing downward
	Special  uint16
	Flags    uint16
	LSN      uint64
}

// Page is a fixed-size, byte-addressable unit of storage.
//
// Dirty and PinCount are in-memory bookkeeping only — they are never
// persisted. Only the 24-byte header plus PageSize-PageHeaderSize
// payload bytes are written to pages.dat.
type Page struct {
	Header   PageHeader
	Payload  []byte
	Dirty    bool
	PinCount int
}

// NewPage creates a fresh in-memory page with an empty slotted layout.
func NewPage(id PageID) *Page {
	return &Page{
		Header: PageHeader{
			PageID: id,
			Lower:  PageHeaderSize,
			Upper:  PageSize,
		},
		Payload: make([]byte, PageSize-PageHeaderSize),
	}
}

// Pin increments the page's pin count.
func (p *Page) Pin() {
	p.PinCount++
}

// Unpin decrements the pin count, never going below zero.
func (p *Page) Unpin() {
	if p.PinCount > 0 {
		p.PinCount--
	}
}

// IsPinned reports whether the page has at least one outstanding pin.
func (p *Page) IsPinned() bool {
	return p.PinCount > 0
}

// MarkDirty flags the page as modified since its last write-back.
func (p *Page) MarkDirty() {
	p.Dirty = true
}

// FreeSpace returns upper - lower, the bytes available between the
// line-pointer array and the tuple heap.
func (p *Page) FreeSpace() int {
	return int(p.Header.Upper) - int(p.Header.Lower)
}

// computeChecksum computes CRC32C over the header (checksum field
// zeroed) followed by the payload.
func computeChecksum(hdr PageHeader, payload []byte) uint32 {
	hdr.Checksum = 0
	buf := make([]byte, PageHeaderSize)
	encodeHeader(buf, hdr)

	crc := crc32.New(crc32cTable)
	crc.Write(buf)
	crc.Write(payload)
	return crc.Sum32()
}

func encodeHeader(buf []byte, hdr PageHeader) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(hdr.PageID))
	binary.LittleEndian.PutUint32(buf[4:8], hdr.Checksum)
	binary.LittleEndian.PutUint16(buf[8:10], hdr.Lower)
	binary.LittleEndian.PutUint16(buf[10:12], hdr.Upper)
	binary.LittleEndian.PutUint16(buf[12:14], hdr.Special)
	binary.LittleEndian.PutUint16(buf[14:16], hdr.Flags)
	binary.LittleEndian.PutUint64(buf[16:24], hdr.LSN)
}

func decodeHeader(buf []byte) PageHeader {
	return PageHeader{
		PageID:   PageID(binary.LittleEndian.Uint32(buf[0:4])),
		Checksum: binary.LittleEndian.Uint32(buf[4:8]),
		Lower:    binary.LittleEndian.Uint16(buf[8:10]),
		Upper:    binary.LittleEndian.Uint16(buf[10:12]),
		Special:  binary.LittleEndian.Uint16(buf[12:14]),
		Flags:    binary.LittleEndian.Uint16(buf[14:16]),
		LSN:      binary.LittleEndian.Uint64(buf[16:24]),
	}
}

// Serialize produces the exact PageSize on-disk image: header then
// payload. Dirty/PinCount never appear in the output.
func (p *Page) Serialize() []byte {
	buf := make([]byte, PageSize)
	hdr := p.Header
	hdr.Checksum = computeChecksum(p.Header, p.Payload)
	encodeHeader(buf[:PageHeaderSize], hdr)
	copy(buf[PageHeaderSize:], p.Payload)
	return buf
}

// Deserialize loads a page from exactly PageSize bytes, verifying the
// stored checksum against the recomputed one.
func Deserialize(data []byte) (*Page, error) {
	if len(data) != PageSize {
		return nil, fmt.Errorf("storage: invalid page size: expected %d, got %d: %w", PageSize, len(data), ErrInvalidArgument)
	}

	hdr := decodeHeader(data[:PageHeaderSize])
	payload := make([]byte, PageSize-PageHeaderSize)
	copy(payload, data[PageHeaderSize:])

	want := computeChecksum(hdr, payload)
	if hdr.Checksum != want {
		return nil, fmt.Errorf("storage: page %d checksum mismatch: stored %08x, computed %08x: %w", hdr.PageID, hdr.Checksum, want, ErrCorruption)
	}

	return &Page{Header: hdr, Payload: payload}, nil
}
