package types

// PageID identifies a page within the disk manager's page space. Sparse and
// allocator-assigned, unlike FrameID which is dense.
type PageID int64

// InvalidPageID marks the absence of a page.
const InvalidPageID PageID = -1

// FrameID identifies a slot in a buffer pool instance. Dense and small.
type FrameID int32

const PageSize = 4096 // 4KB page

// PageType tags what a page's raw bytes should be reinterpreted as. The
// buffer pool hands back undifferentiated []byte; everything above it
// (heap table, hash directory, hash bucket) casts based on this tag.
type PageType uint8

const (
	PageTypeUnknown PageType = iota
	PageTypeHeapData
	PageTypeHashDirectory
	PageTypeHashBucket
)
