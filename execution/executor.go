// Package execution implements the pull-based (Volcano-style) executor
// iterator model: every executor exposes Init and Next, composed into a
// tree by the query planner, driven one row at a time from the root.
package execution

import (
	"coredb/lockmgr"
	"coredb/txn"
	"coredb/types"
)

// Executor is the iterator contract every operator implements. Init
// prepares (or re-prepares) the operator to produce rows from the start;
// Next pulls the next row, returning ok=false once exhausted. Pull-based
// and single-threaded per query: a parent never calls Next on more than
// one child concurrently.
type Executor interface {
	Init() error
	Next() (row types.Row, rid types.RID, ok bool, err error)
}

// Context bundles the per-query collaborators every locking executor
// needs: the transaction it runs under, and the lock manager to acquire
// and release record locks through.
type Context struct {
	Txn        *txn.Transaction
	TxnManager *txn.Manager
	LockMgr    *lockmgr.Manager
}

// Index is the subset of hashindex.Table[K] the write executors need,
// narrowed to RID values so Insert/Delete/Update executors can stay
// generic over key type without importing hashindex's generic parameter
// into every call site.
type Index interface {
	Insert(key any, value types.RID) error
	Remove(key any, value types.RID) error
	ColumnName() string
}
