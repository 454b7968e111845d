package hashindex

import (
	"encoding/binary"

	"coredb/types"
)

const ridSize = 8 + 4 // PageID (int64) + SlotIndex (uint32)

// BucketCapacity returns how many (key, value) slots fit on one page for a
// key of the given codec's width, leaving room for the two occupied/
// readable bitmaps (ceil(capacity/8) bytes each).
func BucketCapacity(keySize int) int {
	slotSize := keySize + ridSize
	capacity := (types.PageSize * 8) / (8*slotSize + 2)
	for capacity > 0 && 2*bitmapBytes(capacity)+capacity*slotSize > types.PageSize {
		capacity--
	}
	return capacity
}

func bitmapBytes(capacity int) int {
	return (capacity + 7) / 8
}

// BucketPage is the in-memory image of one hash table bucket: a fixed
// number of (key, value) slots plus occupied/readable bitmaps. Load parses
// a page's raw bytes into this struct; Store serializes it back. Mutating
// methods only touch the in-memory struct — callers must Store before
// marking the underlying page dirty and unpinning it.
type BucketPage[K any] struct {
	codec    KeyCodec[K]
	capacity int
	occupied []byte
	readable []byte
	keys     []K
	values   []types.RID
}

// NewBucketPage returns an empty bucket sized for codec's key width.
func NewBucketPage[K any](codec KeyCodec[K]) *BucketPage[K] {
	capacity := BucketCapacity(codec.Size())
	return &BucketPage[K]{
		codec:    codec,
		capacity: capacity,
		occupied: make([]byte, bitmapBytes(capacity)),
		readable: make([]byte, bitmapBytes(capacity)),
		keys:     make([]K, capacity),
		values:   make([]types.RID, capacity),
	}
}

// Load decodes a bucket page from raw page bytes, using codec for key
// width (must match what Store originally used).
func (b *BucketPage[K]) Load(data []byte, codec KeyCodec[K]) {
	capacity := BucketCapacity(codec.Size())
	b.codec = codec
	b.capacity = capacity
	bmBytes := bitmapBytes(capacity)
	b.occupied = append([]byte(nil), data[0:bmBytes]...)
	b.readable = append([]byte(nil), data[bmBytes:2*bmBytes]...)

	offset := 2 * bmBytes
	keySize := codec.Size()
	b.keys = make([]K, capacity)
	b.values = make([]types.RID, capacity)
	for i := 0; i < capacity; i++ {
		keyBuf := data[offset : offset+keySize]
		offset += keySize
		b.keys[i] = codec.Decode(keyBuf)

		pid := types.PageID(binary.BigEndian.Uint64(data[offset : offset+8]))
		offset += 8
		slot := binary.BigEndian.Uint32(data[offset : offset+4])
		offset += 4
		b.values[i] = types.RID{PageID: pid, SlotIndex: slot}
	}
}

// Store serializes the bucket back into raw page bytes.
func (b *BucketPage[K]) Store(data []byte) {
	bmBytes := bitmapBytes(b.capacity)
	copy(data[0:bmBytes], b.occupied)
	copy(data[bmBytes:2*bmBytes], b.readable)

	offset := 2 * bmBytes
	keySize := b.codec.Size()
	for i := 0; i < b.capacity; i++ {
		b.codec.Encode(b.keys[i], data[offset:offset+keySize])
		offset += keySize
		binary.BigEndian.PutUint64(data[offset:offset+8], uint64(b.values[i].PageID))
		offset += 8
		binary.BigEndian.PutUint32(data[offset:offset+4], b.values[i].SlotIndex)
		offset += 4
	}
}

func testBit(bitmap []byte, idx int) bool {
	return bitmap[idx/8]&(1<<uint(idx%8)) != 0
}

func setBit(bitmap []byte, idx int) {
	bitmap[idx/8] |= 1 << uint(idx%8)
}

func clearBit(bitmap []byte, idx int) {
	bitmap[idx/8] &^= 1 << uint(idx%8)
}

func (b *BucketPage[K]) Capacity() int { return b.capacity }

func (b *BucketPage[K]) KeyAt(slot int) K { return b.keys[slot] }

func (b *BucketPage[K]) ValueAt(slot int) types.RID { return b.values[slot] }

func (b *BucketPage[K]) IsOccupied(slot int) bool { return testBit(b.occupied, slot) }

func (b *BucketPage[K]) IsReadable(slot int) bool { return testBit(b.readable, slot) }

func (b *BucketPage[K]) SetOccupied(slot int) { setBit(b.occupied, slot) }

func (b *BucketPage[K]) SetReadable(slot int) { setBit(b.readable, slot) }

// RemoveAt clears the readable bit only, keeping the occupied bit set as a
// tombstone recording that the slot was once used; Insert may fill the
// slot again since it only looks for non-readable slots. This is the
// bit-indexed form;
// zeroing whole bytes by slot index would corrupt the seven neighboring
// slots packed into the same byte.
func (b *BucketPage[K]) RemoveAt(slot int) {
	clearBit(b.readable, slot)
}

// SetPair writes a (key, value) pair into slot and marks it occupied and
// readable.
func (b *BucketPage[K]) SetPair(slot int, key K, value types.RID) {
	b.keys[slot] = key
	b.values[slot] = value
	b.SetOccupied(slot)
	b.SetReadable(slot)
}

func (b *BucketPage[K]) IsFull() bool {
	return b.NumReadable() >= b.capacity
}

func (b *BucketPage[K]) IsEmpty() bool {
	return b.NumReadable() == 0
}

func (b *BucketPage[K]) NumReadable() int {
	n := 0
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) {
			n++
		}
	}
	return n
}

// GetValue returns every value whose key compares equal to k.
func (b *BucketPage[K]) GetValue(k K, cmp KeyComparator[K]) []types.RID {
	var out []types.RID
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) && cmp.Equal(b.keys[i], k) {
			out = append(out, b.values[i])
		}
	}
	return out
}

// Insert rejects a duplicate (k, v) pair, otherwise fills the first
// non-readable slot. Returns ErrFull if every slot is readable and ErrFull
// wasn't already the case for duplicate detection purposes — callers must
// distinguish ErrDuplicate from ErrFull to decide whether to split.
func (b *BucketPage[K]) Insert(k K, v types.RID, cmp KeyComparator[K]) error {
	firstFree := -1
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) {
			if cmp.Equal(b.keys[i], k) && b.values[i] == v {
				return ErrDuplicate
			}
			continue
		}
		if firstFree == -1 {
			firstFree = i
		}
	}
	if firstFree == -1 {
		return ErrFull
	}
	b.SetPair(firstFree, k, v)
	return nil
}

// Remove clears the (k, v) pair's readable bit if present.
func (b *BucketPage[K]) Remove(k K, v types.RID, cmp KeyComparator[K]) error {
	for i := 0; i < b.capacity; i++ {
		if b.IsReadable(i) && cmp.Equal(b.keys[i], k) && b.values[i] == v {
			b.RemoveAt(i)
			return nil
		}
	}
	return ErrNotFound
}
