package view

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-sif/grouped"
	"github.com/go-sif/grouped/errors"
	"github.com/go-sif/grouped/internal/compactor"
	"github.com/go-sif/grouped/internal/stats"
	"github.com/go-sif/grouped/logging"
)

// groupedView is the implementation of GroupedView
type groupedView struct {
	coll        grouped.Collection
	columns     []string
	fn          grouped.GroupingFunction
	idx         grouped.BuildableGroupIndex
	elementType grouped.ElementType
	stats       *stats.CompactionStatistics
}

// CreateGroupedView creates a new GroupedView over a Collection. Exactly one of columns and fn must be
// supplied. The GroupedView takes a private copy of idx, so later changes to idx are not observed.
func CreateGroupedView(coll grouped.Collection, columns []string, fn grouped.GroupingFunction, idx grouped.GroupIndex) (grouped.GroupedView, error) {
	if coll == nil {
		return nil, errors.InvalidStateError{Reason: "a grouped view requires a collection"}
	}
	if idx == nil {
		return nil, errors.InvalidStateError{Reason: "a grouped view requires a group index"}
	}
	if len(columns) > 0 && fn != nil {
		return nil, errors.InvalidStateError{Reason: "a grouped view cannot be grouped by both columns and a function"}
	}
	if len(columns) == 0 && fn == nil {
		return nil, errors.InvalidStateError{Reason: "a grouped view must be grouped by either columns or a function"}
	}
	if err := validateIndex(coll.NumPartitions(), columns, idx); err != nil {
		return nil, err
	}
	var cols []string
	if len(columns) > 0 {
		cols = make([]string, len(columns))
		copy(cols, columns)
	}
	return &groupedView{
		coll:    coll,
		columns: cols,
		fn:      fn,
		idx:     idx.Clone(),
		stats:   &stats.CompactionStatistics{},
	}, nil
}

// validateIndex checks that every position is in range and that every Key has the shape implied by the grouping
func validateIndex(numPartitions int, columns []string, idx grouped.GroupIndex) error {
	expected := grouped.FunctionKeyKind
	switch {
	case len(columns) == 1:
		expected = grouped.ScalarKeyKind
	case len(columns) > 1:
		expected = grouped.CompositeKeyKind
	}
	return idx.ForEach(func(key grouped.Key, positions []int) error {
		if key.Kind() != expected {
			return errors.InvalidStateError{Reason: fmt.Sprintf("group key %s does not match the grouping of this view", key)}
		}
		if expected == grouped.CompositeKeyKind && len(key.Components()) != len(columns) {
			return errors.InvalidStateError{Reason: fmt.Sprintf("group key %s does not have one value per grouping column", key)}
		}
		for _, pos := range positions {
			if pos < 0 || pos >= numPartitions {
				return errors.InvalidStateError{Reason: fmt.Sprintf("group key %s references position %d, but there are only %d partitions", key, pos, numPartitions)}
			}
		}
		return nil
	})
}

func (v *groupedView) Collection() grouped.Collection {
	return v.coll
}

func (v *groupedView) Columns() []string {
	if v.columns == nil {
		return nil
	}
	cols := make([]string, len(v.columns))
	copy(cols, v.columns)
	return cols
}

func (v *groupedView) GroupingFunction() grouped.GroupingFunction {
	return v.fn
}

func (v *groupedView) Index() grouped.GroupIndex {
	return v.idx
}

func (v *groupedView) NumGroups() int {
	return v.idx.Size()
}

func (v *groupedView) Keys() []grouped.Key {
	return v.idx.Keys()
}

func (v *groupedView) SortedKeys() ([]grouped.Key, error) {
	return v.idx.SortedKeys()
}

func (v *groupedView) ForEachGroup(fn func(key grouped.Key, positions []int) error) error {
	return v.idx.ForEach(fn)
}

// Lookup first looks key up exactly, then coerces it to the types of the Keys already in the
// index. Indexes may hold Keys of several types (a column holding strings in some rows and numbers
// in others, or missing values), so each distinct type signature is tried in turn. An empty index
// has no key type, so every lookup against it fails.
func (v *groupedView) Lookup(key interface{}) ([]int, error) {
	exemplar, ok := v.idx.KeyType()
	if !ok {
		return nil, errors.NotFoundError{Key: key}
	}
	exact, ok := key.(grouped.Key)
	if !ok {
		exact, ok = grouped.ShapeKey(key, exemplar)
	}
	if ok {
		if positions, err := v.idx.Lookup(exact); err == nil {
			return positions, nil
		}
	}
	if positions, ok := v.lookupCoerced(key, exemplar); ok {
		return positions, nil
	}
	seen := map[string]bool{keySignature(exemplar): true}
	for _, k := range v.idx.Keys() {
		sig := keySignature(k)
		if seen[sig] {
			continue
		}
		seen[sig] = true
		if positions, ok := v.lookupCoerced(key, k); ok {
			return positions, nil
		}
	}
	return nil, errors.NotFoundError{Key: key}
}

func (v *groupedView) lookupCoerced(key interface{}, exemplar grouped.Key) ([]int, bool) {
	coerced, ok := grouped.CoerceKey(key, exemplar)
	if !ok {
		return nil, false
	}
	positions, err := v.idx.Lookup(coerced)
	if err != nil {
		return nil, false
	}
	return positions, true
}

// keySignature describes the component types of a Key
func keySignature(k grouped.Key) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d", k.Kind())
	for _, c := range k.Components() {
		fmt.Fprintf(&sb, "|%T", c)
	}
	return sb.String()
}

func (v *groupedView) Get(key interface{}) (grouped.Collection, error) {
	positions, err := v.Lookup(key)
	if err != nil {
		return nil, err
	}
	return v.Materialize(positions)
}

func (v *groupedView) Materialize(positions []int) (grouped.Collection, error) {
	numPartitions := v.coll.NumPartitions()
	parts := make([]grouped.Partition, len(positions))
	for i, pos := range positions {
		if pos < 0 || pos >= numPartitions {
			return nil, errors.InvalidStateError{Reason: fmt.Sprintf("position %d is out of range for %d partitions", pos, numPartitions)}
		}
		parts[i] = v.coll.GetPartition(pos)
	}
	sub, err := v.coll.WithPartitions(parts)
	if err != nil {
		return nil, err
	}
	if typed, ok := sub.(grouped.TypedCollection); ok && v.elementType != nil {
		return typed.WithElementType(v.elementType), nil
	}
	return sub, nil
}

func (v *groupedView) NumRows(ctx context.Context, key interface{}) (int, error) {
	sub, err := v.Get(key)
	if err != nil {
		return 0, err
	}
	counter, ok := sub.(grouped.RowCounter)
	if !ok {
		return 0, errors.InvalidStateError{Reason: "collection cannot count its rows"}
	}
	return counter.NumRows(ctx)
}

func (v *groupedView) DisplayKey(key grouped.Key) string {
	return grouped.DisplayKey(v.columns, key)
}

func (v *groupedView) ElementType() (grouped.ElementType, bool) {
	return v.elementType, v.elementType != nil
}

// ResolveElementType asks the Collection for its element type. Failure is not an error: the
// untyped record type is returned instead, and nothing is cached.
func (v *groupedView) ResolveElementType(ctx context.Context) grouped.ElementType {
	if v.elementType != nil {
		return v.elementType
	}
	resolver, ok := v.coll.(grouped.ElementTypeResolver)
	if !ok {
		return grouped.UntypedRecord
	}
	t, err := resolver.ResolveElementType(ctx)
	if err != nil || t == nil {
		logging.Logf(logging.DebugLevel, "Unable to resolve element type, using %s: %v", grouped.UntypedRecord, err)
		return grouped.UntypedRecord
	}
	v.elementType = t
	return t
}

// Compact probes every Partition, then commits the compacted Collection and rewritten index together.
// If any step fails, this GroupedView is left exactly as it was.
func (v *groupedView) Compact(ctx context.Context, opts *grouped.ProbeOptions) error {
	start := time.Now()
	res, err := compactor.Compact(ctx, v.coll, v.idx, opts)
	if err != nil {
		return err
	}
	v.coll = res.Collection
	v.idx = res.Index
	v.stats.Finish(start, res.NumPartitionsProbed, res.NumPartitionsRemoved, res.NumKeysRemoved)
	logging.Logf(logging.DebugLevel, "Compacted %d partitions: removed %d empty partitions and %d groups in %s",
		res.NumPartitionsProbed, res.NumPartitionsRemoved, res.NumKeysRemoved, v.stats.GetRuntime())
	return nil
}

func (v *groupedView) Compacted(ctx context.Context, opts *grouped.ProbeOptions) (grouped.GroupedView, error) {
	res := v.clone()
	if err := res.Compact(ctx, opts); err != nil {
		return nil, err
	}
	return res, nil
}

func (v *groupedView) Clone() grouped.GroupedView {
	return v.clone()
}

func (v *groupedView) clone() *groupedView {
	return &groupedView{
		coll:        v.coll,
		columns:     v.Columns(),
		fn:          v.fn,
		idx:         v.idx.Clone(),
		elementType: v.elementType,
		stats:       v.stats.Clone(),
	}
}

func (v *groupedView) Stats() grouped.CompactionStatistics {
	return v.stats
}
