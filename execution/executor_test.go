package execution

import (
	"fmt"
	"testing"

	"coredb/buffer"
	"coredb/heap"
	"coredb/lockmgr"
	"coredb/txn"
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

func newTestContext() *Context {
	tm := txn.NewManager()
	t := tm.Begin(txn.RepeatableRead)
	return &Context{Txn: t, TxnManager: tm, LockMgr: lockmgr.NewManager()}
}

func newTestTable(t *testing.T) *heap.Table {
	pool := buffer.NewInstance(16, newFakeDisk())
	table, err := heap.NewTable(pool)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return table
}

func rowWithID(id float64) types.Row {
	r := types.Row{}
	r.Set("id", id)
	return r
}

func TestInsertThenSeqScan(t *testing.T) {
	table := newTestTable(t)
	ctx := newTestContext()

	values := NewValuesExecutor([]types.Row{rowWithID(1), rowWithID(2), rowWithID(3)})
	insert := NewInsertExecutor(ctx, table, nil, values)
	if err := insert.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	row, _, ok, err := insert.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if row.Values["rows_affected"] != 3 {
		t.Fatalf("expected 3 rows affected, got %v", row.Values["rows_affected"])
	}

	scan := NewSeqScanExecutor(ctx, table)
	if err := scan.Init(); err != nil {
		t.Fatalf("scan Init: %v", err)
	}
	count := 0
	for {
		_, _, ok, err := scan.Next()
		if err != nil {
			t.Fatalf("scan Next: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 3 {
		t.Fatalf("expected 3 rows scanned, got %d", count)
	}
}

func TestDeleteExecutor_RemovesMatchingRows(t *testing.T) {
	table := newTestTable(t)
	ctx := newTestContext()

	values := NewValuesExecutor([]types.Row{rowWithID(1), rowWithID(2)})
	insert := NewInsertExecutor(ctx, table, nil, values)
	insert.Init()
	insert.Next()

	scan := NewSeqScanExecutor(ctx, table)
	del := NewDeleteExecutor(ctx, table, nil, scan)
	if err := del.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	row, _, ok, err := del.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if row.Values["rows_affected"] != 2 {
		t.Fatalf("expected 2 rows deleted, got %v", row.Values["rows_affected"])
	}

	rescan := NewSeqScanExecutor(ctx, table)
	rescan.Init()
	_, _, ok, _ = rescan.Next()
	if ok {
		t.Fatalf("expected no rows remaining after delete")
	}
}

func TestNestedLoopJoin_MatchesOnID(t *testing.T) {
	left := NewValuesExecutor([]types.Row{rowWithID(1), rowWithID(2)})
	right := NewValuesExecutor([]types.Row{rowWithID(2), rowWithID(3)})

	join := NewNestedLoopJoinExecutor(left, right, func(o, i types.Row) bool {
		return o.Values["id"] == i.Values["id"]
	})
	if err := join.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	count := 0
	for {
		_, _, ok, err := join.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 1 {
		t.Fatalf("expected 1 match, got %d", count)
	}
}

func TestHashJoin_MatchesOnID(t *testing.T) {
	left := NewValuesExecutor([]types.Row{rowWithID(1), rowWithID(2), rowWithID(2)})
	right := NewValuesExecutor([]types.Row{rowWithID(2), rowWithID(3)})

	keyFn := func(r types.Row) string {
		return fmt.Sprintf("%v", r.Values["id"])
	}
	join := NewHashJoinExecutor(left, right, keyFn, keyFn)
	if err := join.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	count := 0
	for {
		_, _, ok, err := join.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 matches (two left rows with id=2), got %d", count)
	}
}

func TestAggregation_CountPerGroup(t *testing.T) {
	child := NewValuesExecutor([]types.Row{rowWithID(1), rowWithID(1), rowWithID(2)})
	groupBy := func(r types.Row) string {
		return fmt.Sprintf("%v", r.Values["id"])
	}
	agg := NewAggregationExecutor(child, groupBy, map[string]AggregateFunc{"count": CountAgg}, nil)
	if err := agg.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	total := 0
	for {
		row, _, ok, err := agg.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		total += row.Values["count"].(int)
	}
	if total != 3 {
		t.Fatalf("expected counts to sum to 3, got %d", total)
	}
}

func TestDistinct_DedupsRows(t *testing.T) {
	child := NewValuesExecutor([]types.Row{rowWithID(1), rowWithID(1), rowWithID(2)})
	distinct := NewDistinctExecutor(child, []string{"id"})
	if err := distinct.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	count := 0
	for {
		_, _, ok, err := distinct.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 distinct rows, got %d", count)
	}
}
