package execution

import (
	"fmt"

	"coredb/heap"
	"coredb/types"
)

// InsertExecutor pulls rows from a child executor (typically a values or
// scan executor) and inserts each into the target heap table and every
// index registered against it.
type InsertExecutor struct {
	ctx     *Context
	table   *heap.Table
	indexes []Index
	child   Executor

	inserted int
	done     bool
}

func NewInsertExecutor(ctx *Context, table *heap.Table, indexes []Index, child Executor) *InsertExecutor {
	return &InsertExecutor{ctx: ctx, table: table, indexes: indexes, child: child}
}

func (e *InsertExecutor) Init() error {
	e.inserted = 0
	e.done = false
	return e.child.Init()
}

// Next inserts every row the child produces, then reports the total
// inserted count as a single summary row rather than echoing the inserted
// data back.
func (e *InsertExecutor) Next() (types.Row, types.RID, bool, error) {
	if e.done {
		return types.Row{}, types.RID{}, false, nil
	}

	for {
		row, _, ok, err := e.child.Next()
		if err != nil {
			return types.Row{}, types.RID{}, false, err
		}
		if !ok {
			break
		}

		rid, err := e.table.InsertRow(row)
		if err != nil {
			return types.Row{}, types.RID{}, false, fmt.Errorf("insert: %w", err)
		}
		for _, idx := range e.indexes {
			if err := idx.Insert(row.Values[idx.ColumnName()], rid); err != nil {
				return types.Row{}, types.RID{}, false, fmt.Errorf("insert: index %s: %w", idx.ColumnName(), err)
			}
		}
		e.inserted++
	}

	e.done = true
	summary := types.Row{}
	summary.Set("rows_affected", e.inserted)
	return summary, types.RID{}, true, nil
}
