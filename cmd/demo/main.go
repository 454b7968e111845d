// Command demo wires the storage and transaction core together end to
// end: a buffer pool backed by a real disk file, a heap table and a hash
// index registered in the catalog, and a handful of executors running
// under a transaction and the lock manager.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"coredb/buffer"
	"coredb/catalog"
	"coredb/disk"
	"coredb/execution"
	"coredb/hashindex"
	"coredb/heap"
	"coredb/lockmgr"
	"coredb/txn"
	"coredb/types"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("demo failed")
	}
}

func run() error {
	dir, err := os.MkdirTemp("", "coredb-demo-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	heapDisk, err := disk.Open(dir + "/users.heap")
	if err != nil {
		return fmt.Errorf("open heap disk: %w", err)
	}
	defer heapDisk.Close()
	indexDisk, err := disk.Open(dir + "/users_id.idx")
	if err != nil {
		return fmt.Errorf("open index disk: %w", err)
	}
	defer indexDisk.Close()

	heapPool := buffer.NewInstance(32, heapDisk)
	indexPool := buffer.NewInstance(32, indexDisk)

	heapTable, err := heap.NewTable(heapPool)
	if err != nil {
		return fmt.Errorf("create heap table: %w", err)
	}
	idxTable, err := hashindex.NewTable[int64](indexPool, hashindex.Int64Codec{}, hashindex.Int64Comparator{}, hashindex.Int64Hash{})
	if err != nil {
		return fmt.Errorf("create hash index: %w", err)
	}

	cat, err := catalog.New()
	if err != nil {
		return fmt.Errorf("create catalog: %w", err)
	}
	schema := types.TableSchema{TableName: "users"}
	if _, err := cat.CreateTable("users", heapTable.FirstPageID(), schema); err != nil {
		return fmt.Errorf("register table: %w", err)
	}
	if _, err := cat.CreateIndex("users_id_idx", "users", "id", 0); err != nil {
		return fmt.Errorf("register index: %w", err)
	}

	index := execution.NewIndexAdapter(idxTable, "id", execution.Int64KeyFromAny)

	txnManager := txn.NewManager()
	lockManager := lockmgr.NewManager()
	transaction := txnManager.Begin(txn.RepeatableRead)
	ctx := &execution.Context{Txn: transaction, TxnManager: txnManager, LockMgr: lockManager}

	rows := make([]types.Row, 0, 5)
	for i := int64(1); i <= 5; i++ {
		r := types.Row{}
		r.Set("id", float64(i))
		r.Set("name", fmt.Sprintf("user-%d", i))
		rows = append(rows, r)
	}
	values := execution.NewValuesExecutor(rows)
	insert := execution.NewInsertExecutor(ctx, heapTable, []execution.Index{index}, values)
	if err := insert.Init(); err != nil {
		return fmt.Errorf("insert init: %w", err)
	}
	summary, _, _, err := insert.Next()
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	logrus.WithField("rows_affected", summary.Values["rows_affected"]).Info("inserted rows")

	scan := execution.NewSeqScanExecutor(ctx, heapTable)
	if err := scan.Init(); err != nil {
		return fmt.Errorf("scan init: %w", err)
	}
	for {
		row, rid, ok, err := scan.Next()
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if !ok {
			break
		}
		logrus.WithFields(logrus.Fields{"rid": rid, "row": row.Values}).Info("scanned row")
	}

	values3, err := idxTable.GetValue(3)
	if err != nil {
		return fmt.Errorf("index lookup: %w", err)
	}
	logrus.WithField("rid", values3).Info("index lookup for id=3")

	txnManager.Commit(transaction)
	logrus.Info(heapPool.Stats().String())
	return nil
}
