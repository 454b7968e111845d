package execution

import (
	"coredb/hashindex"
	"coredb/types"
)

// indexAdapter narrows a generic hashindex.Table[K] down to the Index
// interface executors use, converting the loosely-typed column values
// Row carries into the table's concrete key type K.
type indexAdapter[K any] struct {
	table      *hashindex.Table[K]
	column     string
	keyFromAny func(any) K
}

// NewIndexAdapter wraps table so write executors can use it without
// knowing its key type K. keyFromAny converts a Row's column value (as
// read from types.Row, typically the result of a JSON decode) into K.
func NewIndexAdapter[K any](table *hashindex.Table[K], column string, keyFromAny func(any) K) Index {
	return &indexAdapter[K]{table: table, column: column, keyFromAny: keyFromAny}
}

func (a *indexAdapter[K]) Insert(key any, value types.RID) error {
	return a.table.Insert(a.keyFromAny(key), value)
}

func (a *indexAdapter[K]) Remove(key any, value types.RID) error {
	return a.table.Remove(a.keyFromAny(key), value)
}

func (a *indexAdapter[K]) ColumnName() string { return a.column }

// Int64KeyFromAny converts a Row value decoded from JSON (float64 for any
// JSON number) into an int64 index key.
func Int64KeyFromAny(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

// StringKeyFromAny converts a Row value into a string index key.
func StringKeyFromAny(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
