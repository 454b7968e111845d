package buffer

import "coredb/types"

// Page is a frame's resident content: a page-id, its pin count, its dirty
// bit, and the raw PageSize bytes. The buffer pool exclusively owns every
// Page; callers obtain a borrow via Fetch/New that must be returned through
// Unpin exactly once.
type Page struct {
	ID       types.PageID
	Data     []byte
	PinCount int
	Dirty    bool
}

func newPage() *Page {
	return &Page{
		ID:   types.InvalidPageID,
		Data: make([]byte, types.PageSize),
	}
}

func (p *Page) reset(id types.PageID) {
	p.ID = id
	p.Dirty = false
	for i := range p.Data {
		p.Data[i] = 0
	}
}
