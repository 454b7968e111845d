package execution

import (
	"fmt"

	"coredb/types"
)

// DistinctExecutor materializes a set keyed by the configured output
// columns at Init, then replays each distinct row once on Next.
type DistinctExecutor struct {
	child   Executor
	columns []string

	results []types.Row
	index   int
}

func NewDistinctExecutor(child Executor, columns []string) *DistinctExecutor {
	return &DistinctExecutor{child: child, columns: columns}
}

func (e *DistinctExecutor) keyFor(row types.Row) string {
	key := ""
	for _, col := range e.columns {
		key += col + "=" + toComparable(row.Values[col]) + "\x00"
	}
	return key
}

func toComparable(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%v", t)
	}
}

func (e *DistinctExecutor) Init() error {
	if err := e.child.Init(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	e.results = nil
	for {
		row, _, ok, err := e.child.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		key := e.keyFor(row)
		if seen[key] {
			continue
		}
		seen[key] = true
		e.results = append(e.results, row)
	}
	e.index = 0
	return nil
}

func (e *DistinctExecutor) Next() (types.Row, types.RID, bool, error) {
	if e.index >= len(e.results) {
		return types.Row{}, types.RID{}, false, nil
	}
	row := e.results[e.index]
	e.index++
	return row, types.RID{}, true, nil
}
