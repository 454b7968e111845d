package execution

import "coredb/types"

// FilterExecutor passes through only the child rows satisfying predicate.
// Plumbing between a scan and a row-consuming executor wherever a
// predicate needs to run independently of the scan or join itself.
type FilterExecutor struct {
	child     Executor
	predicate func(types.Row) bool
}

func NewFilterExecutor(child Executor, predicate func(types.Row) bool) *FilterExecutor {
	return &FilterExecutor{child: child, predicate: predicate}
}

func (e *FilterExecutor) Init() error {
	return e.child.Init()
}

func (e *FilterExecutor) Next() (types.Row, types.RID, bool, error) {
	for {
		row, rid, ok, err := e.child.Next()
		if err != nil || !ok {
			return row, rid, ok, err
		}
		if e.predicate(row) {
			return row, rid, true, nil
		}
	}
}
