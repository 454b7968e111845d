// Package hashindex implements a disk-backed extendible hash table index:
// a directory page pointing at bucket pages, split/merge driven by the
// low bits of a 32-bit key hash.
package hashindex

import (
	"encoding/binary"
)

// KeyCodec fixes a key type to a constant-width on-page encoding. Every key
// used with one Table must encode to the same number of
// bytes, since bucket slot layout is computed once from Size().
type KeyCodec[K any] interface {
	Size() int
	Encode(k K, buf []byte)
	Decode(buf []byte) K
}

// KeyComparator decides key equality for GetValue/Insert/Remove. Kept
// separate from KeyCodec (rather than requiring comparable) so callers can
// index by types that need semantic rather than bitwise equality — a
// case-folded string, for instance.
type KeyComparator[K any] interface {
	Equal(a, b K) bool
}

// HashFunction produces the 32-bit hash a Table routes on.
type HashFunction[K any] interface {
	Hash(k K) uint32
}

// Int64Codec encodes an int64 key as 8 big-endian bytes.
type Int64Codec struct{}

func (Int64Codec) Size() int { return 8 }

func (Int64Codec) Encode(k int64, buf []byte) {
	binary.BigEndian.PutUint64(buf, uint64(k))
}

func (Int64Codec) Decode(buf []byte) int64 {
	return int64(binary.BigEndian.Uint64(buf))
}

// Int64Comparator compares int64 keys for exact equality.
type Int64Comparator struct{}

func (Int64Comparator) Equal(a, b int64) bool { return a == b }

// Int64Hash hashes an int64 key via xxhash applied to its big-endian bytes.
type Int64Hash struct{}

func (Int64Hash) Hash(k int64) uint32 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(k))
	return hashBytes(buf[:])
}

// FixedStringCodec encodes a string key into exactly width bytes: truncated
// if longer, zero-padded if shorter. Suitable for indexing on a bounded
// varchar column where the schema already caps the column width.
type FixedStringCodec struct {
	Width int
}

func (c FixedStringCodec) Size() int { return c.Width }

func (c FixedStringCodec) Encode(k string, buf []byte) {
	n := copy(buf, k)
	for i := n; i < c.Width; i++ {
		buf[i] = 0
	}
}

func (c FixedStringCodec) Decode(buf []byte) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

// FixedStringComparator compares decoded string keys for exact equality.
type FixedStringComparator struct{}

func (FixedStringComparator) Equal(a, b string) bool { return a == b }

// FixedStringHash hashes the raw bytes of a string key.
type FixedStringHash struct{}

func (FixedStringHash) Hash(k string) uint32 {
	return hashBytes([]byte(k))
}
