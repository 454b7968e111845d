package execution

import (
	"fmt"

	"coredb/heap"
	"coredb/txn"
	"coredb/types"
)

// DeleteExecutor pulls (row, rid) pairs from a child (typically a
// SeqScan under a predicate filter) and deletes each from the heap table
// and every index. Every target row is locked exclusively first,
// upgrading from a held shared lock rather than re-acquiring from
// scratch. Under READ_UNCOMMITTED the lock is released immediately after
// the write, since that isolation level never holds locks past the
// statement that took them.
type DeleteExecutor struct {
	ctx     *Context
	table   *heap.Table
	indexes []Index
	child   Executor

	deleted int
	done    bool
}

func NewDeleteExecutor(ctx *Context, table *heap.Table, indexes []Index, child Executor) *DeleteExecutor {
	return &DeleteExecutor{ctx: ctx, table: table, indexes: indexes, child: child}
}

func (e *DeleteExecutor) Init() error {
	e.deleted = 0
	e.done = false
	return e.child.Init()
}

func (e *DeleteExecutor) lockForWrite(rid types.RID) error {
	if e.ctx.Txn.HasExclusiveLock(rid) {
		return nil
	}
	if e.ctx.Txn.HasSharedLock(rid) {
		return e.ctx.LockMgr.LockUpgrade(e.ctx.Txn, rid, e.ctx.TxnManager)
	}
	return e.ctx.LockMgr.LockExclusive(e.ctx.Txn, rid, e.ctx.TxnManager)
}

func (e *DeleteExecutor) Next() (types.Row, types.RID, bool, error) {
	if e.done {
		return types.Row{}, types.RID{}, false, nil
	}

	for {
		row, rid, ok, err := e.child.Next()
		if err != nil {
			return types.Row{}, types.RID{}, false, err
		}
		if !ok {
			break
		}

		if err := e.lockForWrite(rid); err != nil {
			return types.Row{}, types.RID{}, false, fmt.Errorf("delete: lock %v: %w", rid, err)
		}

		if err := e.table.DeleteRow(rid); err != nil {
			return types.Row{}, types.RID{}, false, fmt.Errorf("delete: %w", err)
		}
		for _, idx := range e.indexes {
			if err := idx.Remove(row.Values[idx.ColumnName()], rid); err != nil {
				return types.Row{}, types.RID{}, false, fmt.Errorf("delete: index %s: %w", idx.ColumnName(), err)
			}
		}

		if e.ctx.Txn.IsolationLevel() == txn.ReadUncommitted {
			if err := e.ctx.LockMgr.Unlock(e.ctx.Txn, rid); err != nil {
				return types.Row{}, types.RID{}, false, fmt.Errorf("delete: unlock %v: %w", rid, err)
			}
		}
		e.deleted++
	}

	e.done = true
	summary := types.Row{}
	summary.Set("rows_affected", e.deleted)
	return summary, types.RID{}, true, nil
}
