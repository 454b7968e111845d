package execution

import "coredb/types"

// ValuesExecutor replays a fixed, in-memory list of rows. Used as the
// child of InsertExecutor for literal INSERT ... VALUES statements, and
// in tests as a stand-in for any other executor.
type ValuesExecutor struct {
	rows  []types.Row
	index int
}

func NewValuesExecutor(rows []types.Row) *ValuesExecutor {
	return &ValuesExecutor{rows: rows}
}

func (e *ValuesExecutor) Init() error {
	e.index = 0
	return nil
}

func (e *ValuesExecutor) Next() (types.Row, types.RID, bool, error) {
	if e.index >= len(e.rows) {
		return types.Row{}, types.RID{}, false, nil
	}
	row := e.rows[e.index]
	e.index++
	return row, types.RID{}, true, nil
}
