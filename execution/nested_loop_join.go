package execution

import "coredb/types"

// NestedLoopJoinExecutor is driven by the outer child: for each outer
// row, the inner child is re-Init'd and scanned fully, emitting a
// combined row for every inner row that satisfies predicate.
type NestedLoopJoinExecutor struct {
	outer, inner Executor
	predicate    func(outer, inner types.Row) bool

	currentOuter   types.Row
	haveOuter      bool
	outerExhausted bool
}

func NewNestedLoopJoinExecutor(outer, inner Executor, predicate func(outer, inner types.Row) bool) *NestedLoopJoinExecutor {
	return &NestedLoopJoinExecutor{outer: outer, inner: inner, predicate: predicate}
}

func (e *NestedLoopJoinExecutor) Init() error {
	e.haveOuter = false
	e.outerExhausted = false
	return e.outer.Init()
}

func (e *NestedLoopJoinExecutor) advanceOuter() (bool, error) {
	row, _, ok, err := e.outer.Next()
	if err != nil {
		return false, err
	}
	if !ok {
		e.outerExhausted = true
		return false, nil
	}
	e.currentOuter = row
	e.haveOuter = true
	if err := e.inner.Init(); err != nil {
		return false, err
	}
	return true, nil
}

func (e *NestedLoopJoinExecutor) Next() (types.Row, types.RID, bool, error) {
	if !e.haveOuter {
		if e.outerExhausted {
			return types.Row{}, types.RID{}, false, nil
		}
		if ok, err := e.advanceOuter(); err != nil || !ok {
			return types.Row{}, types.RID{}, false, err
		}
	}

	for {
		innerRow, _, ok, err := e.inner.Next()
		if err != nil {
			return types.Row{}, types.RID{}, false, err
		}
		if !ok {
			if ok, err := e.advanceOuter(); err != nil {
				return types.Row{}, types.RID{}, false, err
			} else if !ok {
				return types.Row{}, types.RID{}, false, nil
			}
			continue
		}
		if e.predicate(e.currentOuter, innerRow) {
			return joinRows(e.currentOuter, innerRow), types.RID{}, true, nil
		}
	}
}

func joinRows(outer, inner types.Row) types.Row {
	out := types.Row{Values: make(map[string]interface{}, len(outer.Values)+len(inner.Values))}
	for k, v := range outer.Values {
		out.Values[k] = v
	}
	for k, v := range inner.Values {
		out.Values[k] = v
	}
	return out
}
