package heap

import (
	"testing"

	"coredb/buffer"
	"coredb/types"
)

type fakeDisk struct {
	pages map[types.PageID][]byte
}

func newFakeDisk() *fakeDisk {
	return &fakeDisk{pages: make(map[types.PageID][]byte)}
}

func (d *fakeDisk) ReadPage(id types.PageID, buf []byte) error {
	if data, ok := d.pages[id]; ok {
		copy(buf, data)
		return nil
	}
	for i := range buf {
		buf[i] = 0
	}
	return nil
}

func (d *fakeDisk) WritePage(id types.PageID, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	d.pages[id] = cp
	return nil
}

func TestTable_InsertAndGetRow(t *testing.T) {
	pool := buffer.NewInstance(8, newFakeDisk())
	table, err := NewTable(pool)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	row := types.Row{}
	row.Set("id", float64(1))
	row.Set("name", "alice")

	rid, err := table.InsertRow(row)
	if err != nil {
		t.Fatalf("InsertRow: %v", err)
	}

	got, ok, err := table.GetRow(rid)
	if err != nil {
		t.Fatalf("GetRow: %v", err)
	}
	if !ok {
		t.Fatalf("expected row to be found")
	}
	if got.Values["name"] != "alice" {
		t.Fatalf("expected name alice, got %v", got.Values["name"])
	}
}

func TestTable_DeleteRowThenNotFound(t *testing.T) {
	pool := buffer.NewInstance(8, newFakeDisk())
	table, _ := NewTable(pool)

	row := types.Row{}
	row.Set("id", float64(1))
	rid, _ := table.InsertRow(row)

	if err := table.DeleteRow(rid); err != nil {
		t.Fatalf("DeleteRow: %v", err)
	}

	_, ok, err := table.GetRow(rid)
	if err != nil {
		t.Fatalf("GetRow: %v", err)
	}
	if ok {
		t.Fatalf("expected row to be gone after delete")
	}
}

func TestTable_OverflowsToSecondPage(t *testing.T) {
	pool := buffer.NewInstance(8, newFakeDisk())
	table, _ := NewTable(pool)

	n := 400
	rids := make([]types.RID, n)
	for i := 0; i < n; i++ {
		row := types.Row{}
		row.Set("id", float64(i))
		row.Set("payload", "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx")
		rid, err := table.InsertRow(row)
		if err != nil {
			t.Fatalf("InsertRow(%d): %v", i, err)
		}
		rids[i] = rid
	}

	seenPages := map[types.PageID]bool{}
	for _, rid := range rids {
		seenPages[rid.PageID] = true
	}
	if len(seenPages) < 2 {
		t.Fatalf("expected rows to span multiple pages, got %d", len(seenPages))
	}

	for i, rid := range rids {
		row, ok, err := table.GetRow(rid)
		if err != nil || !ok {
			t.Fatalf("GetRow(%d): ok=%v err=%v", i, ok, err)
		}
		if row.Values["id"] != float64(i) {
			t.Fatalf("row %d: expected id %d, got %v", i, i, row.Values["id"])
		}
	}
}

func TestIterator_WalksAllLiveRows(t *testing.T) {
	pool := buffer.NewInstance(8, newFakeDisk())
	table, _ := NewTable(pool)

	for i := 0; i < 5; i++ {
		row := types.Row{}
		row.Set("id", float64(i))
		if _, err := table.InsertRow(row); err != nil {
			t.Fatalf("InsertRow(%d): %v", i, err)
		}
	}

	it := table.NewIterator()
	defer it.Close()

	count := 0
	for {
		_, _, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 5 {
		t.Fatalf("expected 5 rows, got %d", count)
	}
}
