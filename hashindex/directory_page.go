package hashindex

import (
	"encoding/binary"
	"fmt"

	"coredb/types"
)

const (
	// MaxDepth bounds global_depth; 2^MaxDepth = DirectoryArraySize.
	MaxDepth = 9
	// DirectoryArraySize is the number of directory slots at full depth.
	DirectoryArraySize = 1 << MaxDepth

	// directoryPageIDSize is the on-page width of a bucket page-id slot.
	// Narrower than types.PageID's native int64 so the whole directory
	// (header + 512 local depths + 512 page-ids) fits in one 4KB page.
	directoryPageIDSize = 4
)

// DirectoryPage is the in-memory image of one extendible hash table's
// directory: global depth, per-slot local depth, and per-slot bucket
// page-id. Load/Store move it to and from a buffer pool page's raw bytes.
type DirectoryPage struct {
	GlobalDepth   uint32
	LocalDepths   [DirectoryArraySize]uint8
	BucketPageIDs [DirectoryArraySize]types.PageID
}

// NewDirectoryPage returns a fresh directory at global_depth 0 with a
// single slot, not yet pointing at any bucket (caller fills slot 0 after
// allocating the first bucket page).
func NewDirectoryPage() *DirectoryPage {
	d := &DirectoryPage{GlobalDepth: 0}
	for i := range d.BucketPageIDs {
		d.BucketPageIDs[i] = types.InvalidPageID
	}
	return d
}

// Load decodes a directory page from raw page bytes.
func (d *DirectoryPage) Load(data []byte) {
	d.GlobalDepth = binary.BigEndian.Uint32(data[0:4])
	offset := 4
	copy(d.LocalDepths[:], data[offset:offset+DirectoryArraySize])
	offset += DirectoryArraySize
	for i := 0; i < DirectoryArraySize; i++ {
		raw := int32(binary.BigEndian.Uint32(data[offset : offset+directoryPageIDSize]))
		offset += directoryPageIDSize
		if raw < 0 {
			d.BucketPageIDs[i] = types.InvalidPageID
		} else {
			d.BucketPageIDs[i] = types.PageID(raw)
		}
	}
}

// Store encodes the directory page into raw page bytes. data must be at
// least types.PageSize long.
func (d *DirectoryPage) Store(data []byte) {
	binary.BigEndian.PutUint32(data[0:4], d.GlobalDepth)
	offset := 4
	copy(data[offset:offset+DirectoryArraySize], d.LocalDepths[:])
	offset += DirectoryArraySize
	for i := 0; i < DirectoryArraySize; i++ {
		var raw int32
		if d.BucketPageIDs[i] == types.InvalidPageID {
			raw = -1
		} else {
			raw = int32(d.BucketPageIDs[i])
		}
		binary.BigEndian.PutUint32(data[offset:offset+directoryPageIDSize], uint32(raw))
		offset += directoryPageIDSize
	}
}

// GetGlobalDepthMask returns (1 << global_depth) - 1.
func (d *DirectoryPage) GetGlobalDepthMask() uint32 {
	return (uint32(1) << d.GlobalDepth) - 1
}

// Size returns 1 << global_depth, the number of live directory slots.
func (d *DirectoryPage) Size() uint32 {
	return uint32(1) << d.GlobalDepth
}

// GetSplitImageIndex returns i's buddy slot when splitting or merging
// around local_depth[i].
func (d *DirectoryPage) GetSplitImageIndex(i uint32) uint32 {
	ld := d.LocalDepths[i]
	if ld == 0 {
		return i
	}
	return i ^ (uint32(1) << (ld - 1))
}

// CanShrink reports whether every live slot's local depth is strictly less
// than the global depth, the precondition for halving the directory.
func (d *DirectoryPage) CanShrink() bool {
	size := d.Size()
	for i := uint32(0); i < size; i++ {
		if d.LocalDepths[i] >= uint8(d.GlobalDepth) {
			return false
		}
	}
	return true
}

// IncrGlobalDepth doubles the directory: the high half becomes a copy of
// the low half's bucket-page-ids and local-depths.
func (d *DirectoryPage) IncrGlobalDepth() error {
	if d.GlobalDepth >= MaxDepth {
		return ErrDirectoryFull
	}
	size := d.Size()
	for i := uint32(0); i < size; i++ {
		d.BucketPageIDs[i+size] = d.BucketPageIDs[i]
		d.LocalDepths[i+size] = d.LocalDepths[i]
	}
	d.GlobalDepth++
	return nil
}

// DecrGlobalDepth halves the directory. Caller must have verified
// CanShrink first.
func (d *DirectoryPage) DecrGlobalDepth() {
	d.GlobalDepth--
}

// VerifyIntegrity checks the invariants of §3: every live slot points at a
// valid bucket, slots sharing the low local_depth bits share a bucket
// page-id, and the fan-in of each bucket is exactly
// 2^(global_depth-local_depth).
func (d *DirectoryPage) VerifyIntegrity() error {
	size := d.Size()
	fanIn := make(map[types.PageID]uint32)
	for i := uint32(0); i < size; i++ {
		pid := d.BucketPageIDs[i]
		if pid == types.InvalidPageID {
			return fmt.Errorf("hashindex: directory slot %d has no bucket page", i)
		}
		ld := uint32(d.LocalDepths[i])
		if ld > d.GlobalDepth {
			return fmt.Errorf("hashindex: slot %d local depth %d exceeds global depth %d", i, ld, d.GlobalDepth)
		}
		mask := (uint32(1) << ld) - 1
		for j := uint32(0); j < size; j++ {
			if j&mask == i&mask && d.BucketPageIDs[j] != pid {
				return fmt.Errorf("hashindex: slots %d and %d share low %d bits but differ in bucket page", i, j, ld)
			}
		}
		fanIn[pid]++
	}
	for i := uint32(0); i < size; i++ {
		pid := d.BucketPageIDs[i]
		ld := uint32(d.LocalDepths[i])
		want := uint32(1) << (d.GlobalDepth - ld)
		if fanIn[pid] != want {
			return fmt.Errorf("hashindex: bucket page %d has fan-in %d, want %d", pid, fanIn[pid], want)
		}
	}
	return nil
}
