package execution

import (
	"fmt"

	"coredb/heap"
	"coredb/txn"
	"coredb/types"
)

// SeqScanExecutor walks every live row of a heap table. Under any
// isolation level above READ_UNCOMMITTED it takes a shared lock on each
// row before reading it; under READ_COMMITTED it releases that lock
// immediately after producing the row, unless the row is already
// exclusively locked by this same transaction (in which case holding the
// shared lock would be redundant and releasing it would be wrong).
type SeqScanExecutor struct {
	ctx   *Context
	table *heap.Table

	it *heap.Iterator
}

func NewSeqScanExecutor(ctx *Context, table *heap.Table) *SeqScanExecutor {
	return &SeqScanExecutor{ctx: ctx, table: table}
}

func (e *SeqScanExecutor) Init() error {
	if e.it != nil {
		e.it.Close()
	}
	e.it = e.table.NewIterator()
	return nil
}

func (e *SeqScanExecutor) Next() (types.Row, types.RID, bool, error) {
	for {
		row, rid, ok, err := e.it.Next()
		if err != nil {
			return types.Row{}, types.RID{}, false, err
		}
		if !ok {
			return types.Row{}, types.RID{}, false, nil
		}

		if e.ctx.Txn.IsolationLevel() != txn.ReadUncommitted {
			if !e.ctx.Txn.HasExclusiveLock(rid) {
				if err := e.ctx.LockMgr.LockShared(e.ctx.Txn, rid, e.ctx.TxnManager); err != nil {
					return types.Row{}, types.RID{}, false, fmt.Errorf("seqscan: lock %v: %w", rid, err)
				}
			}
		}

		if e.ctx.Txn.IsolationLevel() == txn.ReadCommitted && !e.ctx.Txn.HasExclusiveLock(rid) {
			if err := e.ctx.LockMgr.Unlock(e.ctx.Txn, rid); err != nil {
				return types.Row{}, types.RID{}, false, fmt.Errorf("seqscan: unlock %v: %w", rid, err)
			}
		}

		return row, rid, true, nil
	}
}
