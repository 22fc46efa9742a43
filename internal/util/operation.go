package util

import (
	"fmt"

	"github.com/go-sif/grouped"
)

// SafeGroupingFunction wraps a GroupingFunction such that panics are recovered and nice error messages are constructed
func SafeGroupingFunction(fn grouped.GroupingFunction) (safeFn grouped.GroupingFunction) {
	return func(row grouped.Row) (key interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				if anErr, ok := r.(error); ok {
					err = fmt.Errorf("Grouping Panic: %w\nRow: %s\n%s", anErr, row.Bytes(), GetTrace())
				} else {
					err = fmt.Errorf("Grouping Panic: %v\nRow: %s\n%s", r, row.Bytes(), GetTrace())
				}
			} else if err != nil {
				err = fmt.Errorf("Grouping Error: %w\nRow: %s", err, row.Bytes())
			}
		}()
		key, err = fn(row)
		return
	}
}
