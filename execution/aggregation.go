package execution

import "coredb/types"

// AggregateFunc folds one input row into a running accumulator value,
// returning the updated accumulator.
type AggregateFunc func(acc any, row types.Row) any

// AggregationExecutor materializes a group-by hash table at Init — one
// accumulator per distinct group key, built by folding every input row
// through the configured aggregate functions — then iterates the
// resulting groups on Next, skipping any that fail having.
type AggregationExecutor struct {
	child   Executor
	groupBy func(types.Row) string
	aggs    map[string]AggregateFunc
	having  func(group types.Row) bool

	groups      map[string]map[string]any
	groupKeys   []string
	keyValues   map[string]types.Row
	resultIndex int
	results     []types.Row
}

func NewAggregationExecutor(child Executor, groupBy func(types.Row) string, aggs map[string]AggregateFunc, having func(types.Row) bool) *AggregationExecutor {
	return &AggregationExecutor{child: child, groupBy: groupBy, aggs: aggs, having: having}
}

func (e *AggregationExecutor) Init() error {
	if err := e.child.Init(); err != nil {
		return err
	}
	e.groups = make(map[string]map[string]any)
	e.keyValues = make(map[string]types.Row)

	for {
		row, _, ok, err := e.child.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		key := e.groupBy(row)
		acc, exists := e.groups[key]
		if !exists {
			acc = make(map[string]any)
			e.keyValues[key] = row
		}
		for name, fn := range e.aggs {
			acc[name] = fn(acc[name], row)
		}
		e.groups[key] = acc
	}

	e.results = nil
	for key, acc := range e.groups {
		baseRow := e.keyValues[key]
		groupRow := baseRow.Clone()
		for name, value := range acc {
			groupRow.Set(name, value)
		}
		if e.having == nil || e.having(groupRow) {
			e.results = append(e.results, groupRow)
		}
	}
	e.resultIndex = 0
	return nil
}

func (e *AggregationExecutor) Next() (types.Row, types.RID, bool, error) {
	if e.resultIndex >= len(e.results) {
		return types.Row{}, types.RID{}, false, nil
	}
	row := e.results[e.resultIndex]
	e.resultIndex++
	return row, types.RID{}, true, nil
}

// CountAgg counts the number of rows folded into the group.
func CountAgg(acc any, _ types.Row) any {
	if acc == nil {
		return 1
	}
	return acc.(int) + 1
}

// SumAgg sums column's numeric value (as float64) across the group.
func SumAgg(column string) AggregateFunc {
	return func(acc any, row types.Row) any {
		v, _ := row.Values[column].(float64)
		if acc == nil {
			return v
		}
		return acc.(float64) + v
	}
}
