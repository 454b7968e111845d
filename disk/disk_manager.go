// Package disk implements the fixed-size-page disk manager consumed by the
// buffer pool: ReadPage/WritePage/AllocatePage/DeallocatePage over a single
// backing file. No WAL, no journaling, no crash recovery — durability is an
// explicit non-goal of this repo; the buffer pool is what is under test
// here, not the disk layer beneath it.
package disk

import (
	"fmt"
	"os"
	"sync"

	"coredb/types"
)

// Manager owns one OS file handle and the monotonic page-id counter backing
// it. A single Manager backs exactly one extendible hash table or one heap
// table; callers that need several independent page spaces (a hash table
// plus a heap table, say) construct one Manager per file.
type Manager struct {
	mu         sync.Mutex
	file       *os.File
	nextPageID types.PageID
	freed      map[types.PageID]bool
}

// Open opens or creates path and resumes page allocation after whatever is
// already on disk.
func Open(path string) (*Manager, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	numPages := stat.Size() / types.PageSize
	return &Manager{
		file:       file,
		nextPageID: types.PageID(numPages),
		freed:      make(map[types.PageID]bool),
	}, nil
}

// ReadPage reads the PageSize bytes for id into buf, which must be exactly
// PageSize bytes long. Reading a page beyond the end of the file (never
// written) yields a page of zero bytes, matching a fresh AllocatePage.
func (m *Manager) ReadPage(id types.PageID, buf []byte) error {
	if len(buf) != types.PageSize {
		return fmt.Errorf("disk: read buffer must be %d bytes, got %d", types.PageSize, len(buf))
	}
	offset := int64(id) * types.PageSize
	n, err := m.file.ReadAt(buf, offset)
	if err != nil && n == 0 {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}

// WritePage writes data (exactly PageSize bytes) to id's slot on disk.
func (m *Manager) WritePage(id types.PageID, data []byte) error {
	if len(data) != types.PageSize {
		return fmt.Errorf("disk: write buffer must be %d bytes, got %d", types.PageSize, len(data))
	}
	offset := int64(id) * types.PageSize
	if _, err := m.file.WriteAt(data, offset); err != nil {
		return fmt.Errorf("disk: write page %d: %w", id, err)
	}
	return nil
}

// AllocatePage reserves the next page id. It does not write anything to
// disk — that happens the first time the buffer pool flushes the dirty
// page. Freed ids are reused, in no particular order, before extending the
// file.
func (m *Manager) AllocatePage() (types.PageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, free := range m.freed {
		if free {
			delete(m.freed, id)
			return id, nil
		}
	}
	id := m.nextPageID
	m.nextPageID++
	return id, nil
}

// DeallocatePage marks id as free for a future AllocatePage to reuse.
func (m *Manager) DeallocatePage(id types.PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.freed[id] = true
	return nil
}

// Sync flushes OS buffers for the backing file.
func (m *Manager) Sync() error {
	return m.file.Sync()
}

// Close syncs and closes the backing file.
func (m *Manager) Close() error {
	if err := m.file.Sync(); err != nil {
		return err
	}
	return m.file.Close()
}
