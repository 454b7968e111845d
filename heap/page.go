// Package heap implements a slotted-page heap table: a slot directory
// growing forward from the page header, variable-length rows packed
// backward from the end of the page, tombstoned (zero-length) slots left
// in place so existing RIDs never shift.
package heap

import (
	"encoding/binary"

	"coredb/types"
)

// slotSize is the on-page width of one slot directory entry: a 2-byte
// offset plus a 2-byte length.
const slotSize = 4

// header is the fixed-size prefix of every heap page.
type header struct {
	NumSlots         uint16
	FreeSpacePointer uint16 // offset (from page start) where row data begins; grows downward
	NextPageID       types.PageID
}

const headerSize = 2 + 2 + 8 // NumSlots + FreeSpacePointer + NextPageID

// slot is one entry in a page's slot directory. Length == 0 marks a
// tombstone: the slot index stays valid (RIDs referencing it remain
// well-formed) but GetRow/iteration skip it.
type slot struct {
	Offset uint16
	Length uint16
}

// page wraps one heap page's raw bytes with slot-directory accessors.
// Unlike hashindex's BucketPage, page mutates the backing []byte directly
// slot-by-slot rather than decode-mutate-encode, since row bytes are
// variable-length and copying the whole payload on every read would be
// wasteful for a table scan.
type page struct {
	data []byte
}

func newPage(data []byte) *page {
	p := &page{data: data}
	p.writeHeader(header{
		NumSlots:         0,
		FreeSpacePointer: uint16(types.PageSize),
		NextPageID:       types.InvalidPageID,
	})
	return p
}

func (p *page) readHeader() header {
	return header{
		NumSlots:         binary.BigEndian.Uint16(p.data[0:2]),
		FreeSpacePointer: binary.BigEndian.Uint16(p.data[2:4]),
		NextPageID:       types.PageID(binary.BigEndian.Uint64(p.data[4:12])),
	}
}

func (p *page) writeHeader(h header) {
	binary.BigEndian.PutUint16(p.data[0:2], h.NumSlots)
	binary.BigEndian.PutUint16(p.data[2:4], h.FreeSpacePointer)
	binary.BigEndian.PutUint64(p.data[4:12], uint64(h.NextPageID))
}

func (p *page) slotOffset(idx int) int {
	return headerSize + idx*slotSize
}

func (p *page) readSlot(idx int) slot {
	off := p.slotOffset(idx)
	return slot{
		Offset: binary.BigEndian.Uint16(p.data[off : off+2]),
		Length: binary.BigEndian.Uint16(p.data[off+2 : off+4]),
	}
}

func (p *page) writeSlot(idx int, s slot) {
	off := p.slotOffset(idx)
	binary.BigEndian.PutUint16(p.data[off:off+2], s.Offset)
	binary.BigEndian.PutUint16(p.data[off+2:off+4], s.Length)
}

// freeSpace returns how many contiguous bytes remain between the slot
// directory's tail and the row data's head.
func (p *page) freeSpace() int {
	h := p.readHeader()
	directoryEnd := headerSize + int(h.NumSlots)*slotSize
	return int(h.FreeSpacePointer) - directoryEnd
}

// insertRow appends row bytes into this page's free space and a new slot
// pointing at them, returning the new slot index. Returns false if there
// is not enough room for the row plus one more slot entry.
func (p *page) insertRow(row []byte) (int, bool) {
	if p.freeSpace() < len(row)+slotSize {
		return 0, false
	}
	h := p.readHeader()
	newOffset := int(h.FreeSpacePointer) - len(row)
	copy(p.data[newOffset:newOffset+len(row)], row)

	idx := int(h.NumSlots)
	p.writeSlot(idx, slot{Offset: uint16(newOffset), Length: uint16(len(row))})

	h.NumSlots++
	h.FreeSpacePointer = uint16(newOffset)
	p.writeHeader(h)
	return idx, true
}

// getRow returns the bytes for slot idx, or ok=false if idx is out of
// range or tombstoned.
func (p *page) getRow(idx int) ([]byte, bool) {
	h := p.readHeader()
	if idx < 0 || idx >= int(h.NumSlots) {
		return nil, false
	}
	s := p.readSlot(idx)
	if s.Length == 0 {
		return nil, false
	}
	out := make([]byte, s.Length)
	copy(out, p.data[s.Offset:int(s.Offset)+int(s.Length)])
	return out, true
}

// deleteRow tombstones slot idx by zeroing its length. The row bytes stay
// in place (no compaction); the slot's offset is left alone too, since
// nothing addresses it once Length is 0.
func (p *page) deleteRow(idx int) bool {
	h := p.readHeader()
	if idx < 0 || idx >= int(h.NumSlots) {
		return false
	}
	s := p.readSlot(idx)
	if s.Length == 0 {
		return false
	}
	p.writeSlot(idx, slot{Offset: s.Offset, Length: 0})
	return true
}

// updateRow replaces slot idx's bytes in place when newRow fits in the
// old slot's reserved length, returning true. When it doesn't fit, the
// caller must delete the old slot and insert a new row elsewhere (possibly
// on another page); updateRow returns false in that case without
// modifying anything.
func (p *page) updateRow(idx int, newRow []byte) bool {
	h := p.readHeader()
	if idx < 0 || idx >= int(h.NumSlots) {
		return false
	}
	s := p.readSlot(idx)
	if s.Length == 0 || len(newRow) > int(s.Length) {
		return false
	}
	copy(p.data[s.Offset:int(s.Offset)+len(newRow)], newRow)
	// Shrinking in place leaves a gap inside the reserved span; tracked
	// only via the slot's Length, matching the offset/length-pair model.
	p.writeSlot(idx, slot{Offset: s.Offset, Length: uint16(len(newRow))})
	return true
}

func (p *page) numSlots() int {
	return int(p.readHeader().NumSlots)
}

func (p *page) nextPageID() types.PageID {
	return p.readHeader().NextPageID
}

func (p *page) setNextPageID(id types.PageID) {
	h := p.readHeader()
	h.NextPageID = id
	p.writeHeader(h)
}
