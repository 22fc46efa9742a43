// Package groupby builds grouped views over Collections whose Partitions expose their Rows.
package groupby

import (
	"context"
	"fmt"

	"github.com/go-sif/grouped"
	"github.com/go-sif/grouped/errors"
	"github.com/go-sif/grouped/index"
	iutil "github.com/go-sif/grouped/internal/util"
	"github.com/go-sif/grouped/internal/view"
)

// keyingFunction derives a group Key from a Row
type keyingFunction func(row grouped.Row) (grouped.Key, error)

// CreateGroupedView creates a GroupedView from an existing GroupIndex. Exactly one of columns
// and fn must be supplied, and every position in idx must refer to a Partition of coll.
// idx is copied, so the caller remains free to modify it.
func CreateGroupedView(coll grouped.Collection, columns []string, fn grouped.GroupingFunction, idx grouped.GroupIndex) (grouped.GroupedView, error) {
	return view.CreateGroupedView(coll, columns, fn, idx)
}

// Columns groups the Partitions of a Collection by the values of one or more columns. A single
// column produces ScalarKeys, several columns produce CompositeKeys.
func Columns(ctx context.Context, coll grouped.Collection, columns ...string) (grouped.GroupedView, error) {
	if len(columns) == 0 {
		return nil, errors.InvalidStateError{Reason: "at least one grouping column is required"}
	}
	idx, err := buildIndex(ctx, coll, func(row grouped.Row) (grouped.Key, error) {
		values := make([]interface{}, len(columns))
		for i, col := range columns {
			val, err := row.Get(col)
			if err != nil {
				return nil, err
			}
			values[i] = val
		}
		if len(values) == 1 {
			return grouped.ScalarKey{Value: values[0]}, nil
		}
		return grouped.NewCompositeKey(values...), nil
	})
	if err != nil {
		return nil, err
	}
	return view.CreateGroupedView(coll, columns, nil, idx)
}

// Function groups the Partitions of a Collection by the value a GroupingFunction produces for each Row
func Function(ctx context.Context, coll grouped.Collection, fn grouped.GroupingFunction) (grouped.GroupedView, error) {
	if fn == nil {
		return nil, errors.InvalidStateError{Reason: "a grouping function is required"}
	}
	safeFn := iutil.SafeGroupingFunction(fn)
	idx, err := buildIndex(ctx, coll, func(row grouped.Row) (grouped.Key, error) {
		val, err := safeFn(row)
		if err != nil {
			return nil, err
		}
		return grouped.FunctionKey{Value: val}, nil
	})
	if err != nil {
		return nil, err
	}
	return view.CreateGroupedView(coll, nil, fn, idx)
}

// buildIndex visits every Row of every Partition, recording each Key once per Partition in ascending position order
func buildIndex(ctx context.Context, coll grouped.Collection, keyfn keyingFunction) (grouped.BuildableGroupIndex, error) {
	if coll == nil {
		return nil, errors.InvalidStateError{Reason: "a grouped view requires a collection"}
	}
	idx := index.CreateGroupIndex()
	for pos := 0; pos < coll.NumPartitions(); pos++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, ok := coll.GetPartition(pos).(grouped.RowIterablePartition)
		if !ok {
			return nil, errors.InvalidStateError{Reason: fmt.Sprintf("partition at position %d does not expose its rows", pos)}
		}
		partKeys := index.CreateGroupIndex()
		err := part.ForEachRow(func(row grouped.Row) error {
			key, err := keyfn(row)
			if err != nil {
				return err
			}
			return partKeys.Set(key, []int{pos})
		})
		if err != nil {
			return nil, fmt.Errorf("Unable to group rows of partition %s at position %d: %w", part.ID(), pos, err)
		}
		for _, key := range partKeys.Keys() {
			if err := idx.Append(key, pos); err != nil {
				return nil, err
			}
		}
	}
	return idx, nil
}
