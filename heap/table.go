package heap

import (
	"encoding/json"
	"fmt"

	"coredb/buffer"
	"coredb/types"
)

// BufferPool is the subset of buffer.Instance (or buffer.Parallel) the
// heap table needs.
type BufferPool interface {
	NewPage() (*types.PageID, *buffer.Page, error)
	FetchPage(id types.PageID) (*buffer.Page, error)
	UnpinPage(id types.PageID, isDirty bool) bool
}

// Table is a heap-organized sequence of slotted pages, chained via each
// page's NextPageID. Row bytes are JSON-encoded: rows are loosely typed
// (types.Row is a bare map), so there is no fixed-width schema to pack
// against — JSON keeps the on-disk encoding self-describing without
// requiring every row's columns to agree in order or presence.
type Table struct {
	pool        BufferPool
	firstPageID types.PageID
}

// NewTable allocates the first page of a new, empty heap table.
func NewTable(pool BufferPool) (*Table, error) {
	id, buf, err := pool.NewPage()
	if err != nil {
		return nil, fmt.Errorf("heap: allocate first page: %w", err)
	}
	newPage(buf.Data)
	pool.UnpinPage(*id, true)
	return &Table{pool: pool, firstPageID: *id}, nil
}

// OpenTable wraps an existing heap table whose first page is already on
// disk (catalog lookup supplies firstPageID).
func OpenTable(pool BufferPool, firstPageID types.PageID) *Table {
	return &Table{pool: pool, firstPageID: firstPageID}
}

func (t *Table) FirstPageID() types.PageID { return t.firstPageID }

func encodeRow(row types.Row) ([]byte, error) {
	return json.Marshal(row.Values)
}

func decodeRow(data []byte) (types.Row, error) {
	var values map[string]interface{}
	if err := json.Unmarshal(data, &values); err != nil {
		return types.Row{}, err
	}
	return types.Row{Values: values}, nil
}

// InsertRow appends row to the first page with room for it, allocating a
// new page and linking it onto the chain if every existing page is full.
func (t *Table) InsertRow(row types.Row) (types.RID, error) {
	data, err := encodeRow(row)
	if err != nil {
		return types.RID{}, fmt.Errorf("heap: encode row: %w", err)
	}

	pageID := t.firstPageID
	var prevPageID types.PageID = types.InvalidPageID
	var prevBuf *buffer.Page

	for {
		buf, err := t.pool.FetchPage(pageID)
		if err != nil {
			if prevBuf != nil {
				t.pool.UnpinPage(prevPageID, false)
			}
			return types.RID{}, fmt.Errorf("heap: fetch page %d: %w", pageID, err)
		}
		p := &page{data: buf.Data}

		if idx, ok := p.insertRow(data); ok {
			t.pool.UnpinPage(pageID, true)
			if prevBuf != nil {
				t.pool.UnpinPage(prevPageID, false)
			}
			return types.RID{PageID: pageID, SlotIndex: uint32(idx)}, nil
		}

		next := p.nextPageID()
		if next == types.InvalidPageID {
			newID, newBuf, err := t.pool.NewPage()
			if err != nil {
				t.pool.UnpinPage(pageID, false)
				if prevBuf != nil {
					t.pool.UnpinPage(prevPageID, false)
				}
				return types.RID{}, fmt.Errorf("heap: allocate overflow page: %w", err)
			}
			newPage(newBuf.Data)
			p.setNextPageID(*newID)
			t.pool.UnpinPage(pageID, true)
			if prevBuf != nil {
				t.pool.UnpinPage(prevPageID, false)
			}
			prevBuf = nil
			pageID = *newID
			continue
		}

		if prevBuf != nil {
			t.pool.UnpinPage(prevPageID, false)
		}
		t.pool.UnpinPage(pageID, false)
		prevBuf = buf
		prevPageID = pageID
		pageID = next
	}
}

// GetRow returns the row at rid.
func (t *Table) GetRow(rid types.RID) (types.Row, bool, error) {
	buf, err := t.pool.FetchPage(rid.PageID)
	if err != nil {
		return types.Row{}, false, fmt.Errorf("heap: fetch page %d: %w", rid.PageID, err)
	}
	defer t.pool.UnpinPage(rid.PageID, false)

	p := &page{data: buf.Data}
	data, ok := p.getRow(int(rid.SlotIndex))
	if !ok {
		return types.Row{}, false, nil
	}
	row, err := decodeRow(data)
	if err != nil {
		return types.Row{}, false, fmt.Errorf("heap: decode row at %v: %w", rid, err)
	}
	return row, true, nil
}

// UpdateRow overwrites the row at rid. If the new encoding no longer fits
// in the slot's reserved span, the old slot is tombstoned and the row is
// re-inserted elsewhere; the RID therefore may change, which is why
// callers must always use the returned RID afterward (and update every
// index entry that pointed at the old one).
func (t *Table) UpdateRow(rid types.RID, row types.Row) (types.RID, error) {
	data, err := encodeRow(row)
	if err != nil {
		return types.RID{}, fmt.Errorf("heap: encode row: %w", err)
	}

	buf, err := t.pool.FetchPage(rid.PageID)
	if err != nil {
		return types.RID{}, fmt.Errorf("heap: fetch page %d: %w", rid.PageID, err)
	}
	p := &page{data: buf.Data}

	if p.updateRow(int(rid.SlotIndex), data) {
		t.pool.UnpinPage(rid.PageID, true)
		return rid, nil
	}
	p.deleteRow(int(rid.SlotIndex))
	t.pool.UnpinPage(rid.PageID, true)

	return t.InsertRow(row)
}

// DeleteRow tombstones the row at rid.
func (t *Table) DeleteRow(rid types.RID) error {
	buf, err := t.pool.FetchPage(rid.PageID)
	if err != nil {
		return fmt.Errorf("heap: fetch page %d: %w", rid.PageID, err)
	}
	defer t.pool.UnpinPage(rid.PageID, true)

	p := &page{data: buf.Data}
	if !p.deleteRow(int(rid.SlotIndex)) {
		return fmt.Errorf("heap: no live row at %v", rid)
	}
	return nil
}

// Iterator walks every live row in the table, in page-chain then
// slot-index order.
type Iterator struct {
	table      *Table
	pageID     types.PageID
	slotIndex  int
	numSlots   int
	currentBuf *buffer.Page
}

// NewIterator starts a scan from the table's first page.
func (t *Table) NewIterator() *Iterator {
	return &Iterator{table: t, pageID: t.firstPageID, slotIndex: 0}
}

// Next advances to the next live row, returning ok=false once the chain is
// exhausted.
func (it *Iterator) Next() (types.Row, types.RID, bool, error) {
	for {
		if it.pageID == types.InvalidPageID {
			return types.Row{}, types.RID{}, false, nil
		}
		if it.currentBuf == nil {
			buf, err := it.table.pool.FetchPage(it.pageID)
			if err != nil {
				return types.Row{}, types.RID{}, false, fmt.Errorf("heap: fetch page %d: %w", it.pageID, err)
			}
			it.currentBuf = buf
			it.numSlots = (&page{data: buf.Data}).numSlots()
			it.slotIndex = 0
		}

		p := &page{data: it.currentBuf.Data}
		for it.slotIndex < it.numSlots {
			idx := it.slotIndex
			it.slotIndex++
			data, ok := p.getRow(idx)
			if !ok {
				continue
			}
			row, err := decodeRow(data)
			rid := types.RID{PageID: it.pageID, SlotIndex: uint32(idx)}
			if err != nil {
				return types.Row{}, types.RID{}, false, fmt.Errorf("heap: decode row at %v: %w", rid, err)
			}
			return row, rid, true, nil
		}

		next := p.nextPageID()
		it.table.pool.UnpinPage(it.pageID, false)
		it.currentBuf = nil
		it.pageID = next
	}
}

// Close releases any page this iterator is still holding pinned. Safe to
// call after Next has already returned ok=false.
func (it *Iterator) Close() {
	if it.currentBuf != nil {
		it.table.pool.UnpinPage(it.pageID, false)
		it.currentBuf = nil
	}
}
