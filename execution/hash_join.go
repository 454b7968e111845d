package execution

import "coredb/types"

// HashJoinExecutor materializes the left input into a keyed multimap at
// Init, then probes it with each right-side row on Next — an equi-join
// that avoids the nested-loop's quadratic re-scan of the inner side.
type HashJoinExecutor struct {
	left, right Executor
	leftKey     func(types.Row) string
	rightKey    func(types.Row) string

	buckets map[string][]types.Row

	currentMatches []types.Row
	matchIndex     int
	currentRight   types.Row
}

func NewHashJoinExecutor(left, right Executor, leftKey, rightKey func(types.Row) string) *HashJoinExecutor {
	return &HashJoinExecutor{left: left, right: right, leftKey: leftKey, rightKey: rightKey}
}

func (e *HashJoinExecutor) Init() error {
	if err := e.left.Init(); err != nil {
		return err
	}
	e.buckets = make(map[string][]types.Row)
	for {
		row, _, ok, err := e.left.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		key := e.leftKey(row)
		e.buckets[key] = append(e.buckets[key], row)
	}

	e.currentMatches = nil
	e.matchIndex = 0
	return e.right.Init()
}

func (e *HashJoinExecutor) Next() (types.Row, types.RID, bool, error) {
	for {
		if e.matchIndex < len(e.currentMatches) {
			leftRow := e.currentMatches[e.matchIndex]
			e.matchIndex++
			return joinRows(leftRow, e.currentRight), types.RID{}, true, nil
		}

		row, _, ok, err := e.right.Next()
		if err != nil {
			return types.Row{}, types.RID{}, false, err
		}
		if !ok {
			return types.Row{}, types.RID{}, false, nil
		}

		e.currentRight = row
		e.currentMatches = e.buckets[e.rightKey(row)]
		e.matchIndex = 0
	}
}
