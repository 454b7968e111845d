package execution

import (
	"fmt"

	"coredb/heap"
	"coredb/txn"
	"coredb/types"
)

// UpdateExecutor pulls (row, rid) pairs from a child, applies transform to
// each, and writes the result back through the heap table and every
// index. Locking mirrors DeleteExecutor: exclusive lock per target row
// (upgrading from shared if already held), released immediately under
// READ_UNCOMMITTED.
type UpdateExecutor struct {
	ctx       *Context
	table     *heap.Table
	indexes   []Index
	child     Executor
	transform func(types.Row) types.Row

	updated int
	done    bool
}

func NewUpdateExecutor(ctx *Context, table *heap.Table, indexes []Index, child Executor, transform func(types.Row) types.Row) *UpdateExecutor {
	return &UpdateExecutor{ctx: ctx, table: table, indexes: indexes, child: child, transform: transform}
}

func (e *UpdateExecutor) Init() error {
	e.updated = 0
	e.done = false
	return e.child.Init()
}

func (e *UpdateExecutor) lockForWrite(rid types.RID) error {
	if e.ctx.Txn.HasExclusiveLock(rid) {
		return nil
	}
	if e.ctx.Txn.HasSharedLock(rid) {
		return e.ctx.LockMgr.LockUpgrade(e.ctx.Txn, rid, e.ctx.TxnManager)
	}
	return e.ctx.LockMgr.LockExclusive(e.ctx.Txn, rid, e.ctx.TxnManager)
}

func (e *UpdateExecutor) Next() (types.Row, types.RID, bool, error) {
	if e.done {
		return types.Row{}, types.RID{}, false, nil
	}

	for {
		oldRow, rid, ok, err := e.child.Next()
		if err != nil {
			return types.Row{}, types.RID{}, false, err
		}
		if !ok {
			break
		}

		if err := e.lockForWrite(rid); err != nil {
			return types.Row{}, types.RID{}, false, fmt.Errorf("update: lock %v: %w", rid, err)
		}

		newRow := e.transform(oldRow.Clone())
		newRID, err := e.table.UpdateRow(rid, newRow)
		if err != nil {
			return types.Row{}, types.RID{}, false, fmt.Errorf("update: %w", err)
		}

		for _, idx := range e.indexes {
			oldKey := oldRow.Values[idx.ColumnName()]
			newKey := newRow.Values[idx.ColumnName()]
			if oldKey != newKey || newRID != rid {
				if err := idx.Remove(oldKey, rid); err != nil {
					return types.Row{}, types.RID{}, false, fmt.Errorf("update: index %s remove: %w", idx.ColumnName(), err)
				}
				if err := idx.Insert(newKey, newRID); err != nil {
					return types.Row{}, types.RID{}, false, fmt.Errorf("update: index %s insert: %w", idx.ColumnName(), err)
				}
			}
		}

		if e.ctx.Txn.IsolationLevel() == txn.ReadUncommitted {
			if err := e.ctx.LockMgr.Unlock(e.ctx.Txn, rid); err != nil {
				return types.Row{}, types.RID{}, false, fmt.Errorf("update: unlock %v: %w", rid, err)
			}
		}
		e.updated++
	}

	e.done = true
	summary := types.Row{}
	summary.Set("rows_affected", e.updated)
	return summary, types.RID{}, true, nil
}
