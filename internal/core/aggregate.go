package core

import (
	"fmt"
	"sort"
)

// AggOp is a reduction over a group's value field.
type AggOp string

const (
	OpSum   AggOp = "sum"
	OpCount AggOp = "count"
	OpMean  AggOp = "mean"
)

// GroupValue is one group's reduced value.
type GroupValue struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// AggregateBy groups records by groupField and reduces valueField within
// each group. Records with a missing group value collect under the empty
// key. Missing values are excluded from sums, counts and means, never
// treated as zero.
//
// Groups come back in first-seen record order. No other order is
// guaranteed; callers wanting largest-first must apply SortByValueDesc
// themselves as an explicit, separate step.
func (d *Dataset) AggregateBy(groupField, valueField string, op AggOp) ([]GroupValue, error) {
	switch op {
	case OpSum, OpCount, OpMean:
	default:
		return nil, fmt.Errorf("unsupported aggregation op %q", op)
	}

	type acc struct {
		sum   float64
		count int
	}
	order := make([]string, 0)
	groups := make(map[string]*acc)
	for _, rec := range d.records {
		key := rec[groupField].key()
		a, ok := groups[key]
		if !ok {
			a = &acc{}
			groups[key] = a
			order = append(order, key)
		}
		if v := rec[valueField]; v.IsNumber() {
			a.sum += v.Num
			a.count++
		}
	}

	out := make([]GroupValue, 0, len(order))
	for _, key := range order {
		a := groups[key]
		switch op {
		case OpSum:
			out = append(out, GroupValue{Key: key, Value: a.sum})
		case OpCount:
			out = append(out, GroupValue{Key: key, Value: float64(a.count)})
		case OpMean:
			if a.count == 0 {
				return nil, fmt.Errorf("mean of %s for group %q: %w: no valid rows", valueField, key, ErrInsufficientData)
			}
			out = append(out, GroupValue{Key: key, Value: a.sum / float64(a.count)})
		}
	}
	return out, nil
}

// SortByValueDesc returns a copy of groups ordered by descending value,
// ties broken by key for stable output.
func SortByValueDesc(groups []GroupValue) []GroupValue {
	out := make([]GroupValue, len(groups))
	copy(out, groups)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Sum totals the non-missing values of a numeric column.
func (d *Dataset) Sum(column string) float64 {
	var total float64
	for _, rec := range d.records {
		if v := rec[column]; v.IsNumber() {
			total += v.Num
		}
	}
	return total
}
