package hashindex

import (
	"fmt"
	"sync"

	"coredb/buffer"
	"coredb/types"
)

// BufferPool is the subset of buffer.Instance (or buffer.Parallel) the
// table needs to fetch and mutate pages.
type BufferPool interface {
	NewPage() (*types.PageID, *buffer.Page, error)
	FetchPage(id types.PageID) (*buffer.Page, error)
	UnpinPage(id types.PageID, isDirty bool) bool
	DeletePage(id types.PageID) error
}

// Table is a disk-backed extendible hash table mapping keys of type K to
// record-ids. One reader-writer latch serializes structural operations
// (Insert/Remove and their splits/merges) against readers (GetValue);
// readers may overlap each other.
type Table[K any] struct {
	latch sync.RWMutex

	pool   BufferPool
	codec  KeyCodec[K]
	cmp    KeyComparator[K]
	hashFn HashFunction[K]

	directoryPageID types.PageID
}

// NewTable constructs a new, empty hash table: a fresh directory page at
// global_depth 0 pointing at a single fresh bucket page.
func NewTable[K any](pool BufferPool, codec KeyCodec[K], cmp KeyComparator[K], hashFn HashFunction[K]) (*Table[K], error) {
	dirID, dirPage, err := pool.NewPage()
	if err != nil {
		return nil, fmt.Errorf("hashindex: allocate directory page: %w", err)
	}
	bucketID, bucketPage, err := pool.NewPage()
	if err != nil {
		pool.UnpinPage(*dirID, false)
		return nil, fmt.Errorf("hashindex: allocate initial bucket page: %w", err)
	}

	dir := NewDirectoryPage()
	dir.BucketPageIDs[0] = *bucketID
	dir.LocalDepths[0] = 0
	dir.Store(dirPage.Data)

	bucket := NewBucketPage(codec)
	bucket.Store(bucketPage.Data)

	pool.UnpinPage(*bucketID, true)
	pool.UnpinPage(*dirID, true)

	return &Table[K]{
		pool:            pool,
		codec:           codec,
		cmp:             cmp,
		hashFn:          hashFn,
		directoryPageID: *dirID,
	}, nil
}

func (t *Table[K]) hash(k K) uint32 {
	return t.hashFn.Hash(k)
}

func (t *Table[K]) keyToDirectoryIndex(k K, dir *DirectoryPage) uint32 {
	return t.hash(k) & dir.GetGlobalDepthMask()
}

func (t *Table[K]) fetchDirectory() (types.PageID, *DirectoryPage, *buffer.Page, error) {
	page, err := t.pool.FetchPage(t.directoryPageID)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("hashindex: fetch directory page: %w", err)
	}
	dir := &DirectoryPage{}
	dir.Load(page.Data)
	return t.directoryPageID, dir, page, nil
}

func (t *Table[K]) fetchBucket(id types.PageID) (*BucketPage[K], *buffer.Page, error) {
	page, err := t.pool.FetchPage(id)
	if err != nil {
		return nil, nil, fmt.Errorf("hashindex: fetch bucket page %d: %w", id, err)
	}
	bucket := &BucketPage[K]{}
	bucket.Load(page.Data, t.codec)
	return bucket, page, nil
}

// GetValue returns every value stored under k.
func (t *Table[K]) GetValue(k K) ([]types.RID, error) {
	t.latch.RLock()
	defer t.latch.RUnlock()

	_, dir, dirPage, err := t.fetchDirectory()
	if err != nil {
		return nil, err
	}
	slot := t.keyToDirectoryIndex(k, dir)
	bucketID := dir.BucketPageIDs[slot]

	bucket, bucketPage, err := t.fetchBucket(bucketID)
	if err != nil {
		t.pool.UnpinPage(t.directoryPageID, false)
		return nil, err
	}
	values := bucket.GetValue(k, t.cmp)

	t.pool.UnpinPage(bucketPage.ID, false)
	t.pool.UnpinPage(dirPage.ID, false)
	return values, nil
}

// Insert adds (k, v). Returns ErrDuplicate if the exact pair already
// exists. Splits and retries automatically when the target bucket is full.
func (t *Table[K]) Insert(k K, v types.RID) error {
	t.latch.Lock()
	defer t.latch.Unlock()
	return t.insertLocked(k, v)
}

func (t *Table[K]) insertLocked(k K, v types.RID) error {
	_, dir, dirPage, err := t.fetchDirectory()
	if err != nil {
		return err
	}
	slot := t.keyToDirectoryIndex(k, dir)
	bucketID := dir.BucketPageIDs[slot]

	bucket, bucketPage, err := t.fetchBucket(bucketID)
	if err != nil {
		t.pool.UnpinPage(t.directoryPageID, false)
		return err
	}

	err = bucket.Insert(k, v, t.cmp)
	switch err {
	case nil:
		bucket.Store(bucketPage.Data)
		t.pool.UnpinPage(bucketPage.ID, true)
		t.pool.UnpinPage(dirPage.ID, false)
		return nil
	case ErrDuplicate:
		t.pool.UnpinPage(bucketPage.ID, false)
		t.pool.UnpinPage(dirPage.ID, false)
		return ErrDuplicate
	case ErrFull:
		t.pool.UnpinPage(bucketPage.ID, false)
		t.pool.UnpinPage(dirPage.ID, false)
		if err := t.splitInsert(k); err != nil {
			return err
		}
		return t.insertLocked(k, v)
	default:
		t.pool.UnpinPage(bucketPage.ID, false)
		t.pool.UnpinPage(dirPage.ID, false)
		return err
	}
}

// splitInsert grows the directory (if needed) and splits the bucket
// currently responsible for k's slot into two, rehashing its contents.
// It does not itself retry the insert; the caller loops.
func (t *Table[K]) splitInsert(k K) error {
	_, dir, dirPage, err := t.fetchDirectory()
	if err != nil {
		return err
	}

	kti := t.keyToDirectoryIndex(k, dir)
	if uint32(dir.LocalDepths[kti]) == dir.GlobalDepth {
		if err := dir.IncrGlobalDepth(); err != nil {
			t.pool.UnpinPage(dirPage.ID, false)
			return err
		}
		kti = t.keyToDirectoryIndex(k, dir)
	}

	newBucketID, newBucketPage, err := t.pool.NewPage()
	if err != nil {
		t.pool.UnpinPage(dirPage.ID, false)
		return fmt.Errorf("hashindex: allocate split bucket: %w", err)
	}
	newBucket := NewBucketPage(t.codec)

	ld := dir.LocalDepths[kti]
	size := dir.Size()
	ldBit := uint32(1) << ld
	for i := uint32(0); i < size; i++ {
		if i&((uint32(1)<<ld)-1) != kti&((uint32(1)<<ld)-1) {
			continue
		}
		dir.LocalDepths[i] = ld + 1
		if i&ldBit != kti&ldBit {
			dir.BucketPageIDs[i] = *newBucketID
		}
	}

	oldBucketID := dir.BucketPageIDs[kti]
	oldBucket, oldBucketPage, err := t.fetchBucket(oldBucketID)
	if err != nil {
		t.pool.UnpinPage(dirPage.ID, false)
		t.pool.UnpinPage(*newBucketID, false)
		return err
	}

	for j := 0; j < oldBucket.Capacity(); j++ {
		if !oldBucket.IsReadable(j) {
			continue
		}
		key := oldBucket.KeyAt(j)
		idx := t.keyToDirectoryIndex(key, dir)
		if dir.BucketPageIDs[idx] == *newBucketID {
			newBucket.Insert(key, oldBucket.ValueAt(j), t.cmp)
			oldBucket.RemoveAt(j)
		}
	}

	dir.Store(dirPage.Data)
	oldBucket.Store(oldBucketPage.Data)
	newBucket.Store(newBucketPage.Data)

	t.pool.UnpinPage(dirPage.ID, true)
	t.pool.UnpinPage(oldBucketPage.ID, true)
	t.pool.UnpinPage(*newBucketID, true)
	return nil
}

// Remove deletes (k, v). If that empties the owning bucket, Merge runs
// before returning.
func (t *Table[K]) Remove(k K, v types.RID) error {
	t.latch.Lock()
	defer t.latch.Unlock()

	_, dir, dirPage, err := t.fetchDirectory()
	if err != nil {
		return err
	}
	slot := t.keyToDirectoryIndex(k, dir)
	bucketID := dir.BucketPageIDs[slot]

	bucket, bucketPage, err := t.fetchBucket(bucketID)
	if err != nil {
		t.pool.UnpinPage(t.directoryPageID, false)
		return err
	}

	if err := bucket.Remove(k, v, t.cmp); err != nil {
		t.pool.UnpinPage(bucketPage.ID, false)
		t.pool.UnpinPage(dirPage.ID, false)
		return err
	}
	bucket.Store(bucketPage.Data)
	empty := bucket.IsEmpty()

	t.pool.UnpinPage(bucketPage.ID, true)
	t.pool.UnpinPage(dirPage.ID, false)

	if empty {
		t.merge(slot)
	}
	return nil
}

// merge attempts to fold the bucket at directory slot kti into its split
// image, then recursively halves the directory while possible.
func (t *Table[K]) merge(kti uint32) {
	_, dir, dirPage, err := t.fetchDirectory()
	if err != nil {
		return
	}

	ld := dir.LocalDepths[kti]
	if ld == 0 {
		t.pool.UnpinPage(dirPage.ID, false)
		return
	}
	img := dir.GetSplitImageIndex(kti)
	if dir.LocalDepths[img] != ld {
		t.pool.UnpinPage(dirPage.ID, false)
		return
	}
	emptyBucketID := dir.BucketPageIDs[kti]
	imgBucketID := dir.BucketPageIDs[img]
	if emptyBucketID == imgBucketID {
		t.pool.UnpinPage(dirPage.ID, false)
		return
	}

	size := dir.Size()
	lowMask := (uint32(1) << (ld - 1)) - 1
	for i := uint32(0); i < size; i++ {
		if i&lowMask != kti&lowMask {
			continue
		}
		dir.LocalDepths[i] = ld - 1
		if dir.BucketPageIDs[i] == emptyBucketID {
			dir.BucketPageIDs[i] = imgBucketID
		}
	}

	if err := t.pool.DeletePage(emptyBucketID); err != nil {
		// The directory no longer points at the page; it stays resident
		// in the pool and is not deleted later.
		dir.Store(dirPage.Data)
		t.pool.UnpinPage(dirPage.ID, true)
		return
	}

	// Halve the directory while every slot's local depth still trails the
	// global depth. A conservative approximation of "recursively merge
	// still-empty buckets": this shrinks as far as the depth invariant
	// allows but does not chase a further cascade of bucket merges beyond
	// what CanShrink already implies.
	for dir.CanShrink() {
		dir.DecrGlobalDepth()
	}

	dir.Store(dirPage.Data)
	t.pool.UnpinPage(dirPage.ID, true)
}
