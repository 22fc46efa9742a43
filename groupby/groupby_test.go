package groupby

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/go-sif/grouped"
	"github.com/go-sif/grouped/datasource/memory"
	"github.com/go-sif/grouped/errors"
	"github.com/go-sif/grouped/index"
	"github.com/stretchr/testify/require"
)

func createTestCollection(t *testing.T) *memory.Collection {
	coll, err := memory.CreateCollectionFromJSONL(
		`{"city": "Toronto", "year": 2019, "temp": -4}
		 {"city": "Ottawa", "year": 2019, "temp": -9}`,
		`{"city": "Toronto", "year": 2020, "temp": 2}`,
		``,
		`{"city": "Toronto", "year": 2019, "temp": 1}
		 {"city": "Montreal", "year": 2020, "temp": -11}`,
	)
	require.Nil(t, err)
	return coll
}

// opaquePartition hides its rows
type opaquePartition struct{ id string }

func (p *opaquePartition) ID() string { return p.id }

type opaqueCollection struct {
	*memory.Collection
}

func (c *opaqueCollection) GetPartition(pos int) grouped.Partition {
	return &opaquePartition{id: c.Collection.GetPartition(pos).ID()}
}

func TestColumnsSingle(t *testing.T) {
	v, err := Columns(context.Background(), createTestCollection(t), "city")
	require.Nil(t, err)
	require.Equal(t, 3, v.NumGroups())
	require.Equal(t, []string{"city"}, v.Columns())
	require.Nil(t, v.GroupingFunction())

	positions, err := v.Lookup("Toronto")
	require.Nil(t, err)
	require.Equal(t, []int{0, 1, 3}, positions)
	positions, err = v.Lookup("Ottawa")
	require.Nil(t, err)
	require.Equal(t, []int{0}, positions)
	_, err = v.Lookup("Vancouver")
	require.IsType(t, errors.NotFoundError{}, err)

	keys, err := v.SortedKeys()
	require.Nil(t, err)
	require.Equal(t, []grouped.Key{
		grouped.ScalarKey{Value: "Montreal"},
		grouped.ScalarKey{Value: "Ottawa"},
		grouped.ScalarKey{Value: "Toronto"},
	}, keys)
	require.Equal(t, `city = "Montreal"`, v.DisplayKey(keys[0]))
}

func TestColumnsComposite(t *testing.T) {
	v, err := Columns(context.Background(), createTestCollection(t), "city", "year")
	require.Nil(t, err)
	require.Equal(t, 4, v.NumGroups())

	// JSON numbers decode as float64, but integer lookups are coerced
	positions, err := v.Lookup([]interface{}{"Toronto", 2019})
	require.Nil(t, err)
	require.Equal(t, []int{0, 3}, positions)
	positions, err = v.Lookup(grouped.NewCompositeKey("Toronto", 2020))
	require.Nil(t, err)
	require.Equal(t, []int{1}, positions)
	_, err = v.Lookup([]interface{}{"Toronto", 2019.5})
	require.IsType(t, errors.NotFoundError{}, err)

	keys, err := v.SortedKeys()
	require.Nil(t, err)
	require.Equal(t, grouped.NewCompositeKey("Montreal", float64(2020)), keys[0])
	require.Equal(t, grouped.NewCompositeKey("Toronto", float64(2020)), keys[3])
	require.Equal(t, `(city = "Montreal", year = 2020)`, v.DisplayKey(keys[0]))

	rows, err := v.NumRows(context.Background(), []interface{}{"Toronto", 2019})
	require.Nil(t, err)
	require.Equal(t, 4, rows)
}

func TestColumnsMixedTypes(t *testing.T) {
	coll, err := memory.CreateCollectionFromJSONL(`{"k": "a"}`, `{"k": 1}`, `{"k": "a"}`)
	require.Nil(t, err)
	v, err := Columns(context.Background(), coll, "k")
	require.Nil(t, err)
	require.Equal(t, []grouped.Key{grouped.ScalarKey{Value: "a"}, grouped.ScalarKey{Value: float64(1)}}, v.Keys())

	for _, key := range []interface{}{v.Keys()[1], float64(1), 1} {
		positions, err := v.Lookup(key)
		require.Nil(t, err, "key %#v", key)
		require.Equal(t, []int{1}, positions)
	}
	positions, err := v.Lookup("a")
	require.Nil(t, err)
	require.Equal(t, []int{0, 2}, positions)
	_, err = v.SortedKeys()
	require.IsType(t, errors.UnorderableError{}, err)
}

func TestColumnsNullFirst(t *testing.T) {
	coll, err := memory.CreateCollectionFromJSONL(`{"k": null}`, `{"k": 1}`)
	require.Nil(t, err)
	v, err := Columns(context.Background(), coll, "k")
	require.Nil(t, err)
	require.Equal(t, []grouped.Key{grouped.ScalarKey{Value: nil}, grouped.ScalarKey{Value: float64(1)}}, v.Keys())

	positions, err := v.Lookup(float64(1))
	require.Nil(t, err)
	require.Equal(t, []int{1}, positions)
	positions, err = v.Lookup(1)
	require.Nil(t, err)
	require.Equal(t, []int{1}, positions)
	positions, err = v.Lookup(nil)
	require.Nil(t, err)
	require.Equal(t, []int{0}, positions)
	require.Equal(t, "k = nothing", v.DisplayKey(v.Keys()[0]))
}

type tag struct{ V interface{} }

func TestFunctionKeysHoldingSlices(t *testing.T) {
	coll, err := memory.CreateCollectionFromJSONL(
		`{"a": [1]}
		 {"a": [1]}`,
		`{"a": [1]}`,
		`{"a": [2]}`,
	)
	require.Nil(t, err)
	v, err := Function(context.Background(), coll, func(row grouped.Row) (interface{}, error) {
		a, err := row.Get("a")
		if err != nil {
			return nil, err
		}
		return tag{V: a}, nil
	})
	require.Nil(t, err)
	require.Equal(t, 2, v.NumGroups())
	positions, err := v.Lookup(tag{V: []interface{}{float64(1)}})
	require.Nil(t, err)
	require.Equal(t, []int{0, 1}, positions)
	positions, err = v.Lookup(grouped.FunctionKey{Value: tag{V: []interface{}{float64(2)}}})
	require.Nil(t, err)
	require.Equal(t, []int{2}, positions)
}

func TestFunctionNaNKeys(t *testing.T) {
	coll, err := memory.CreateCollectionFromJSONL(`{"t": 1}`, `{"t": 2}`, `{"t": 3}`)
	require.Nil(t, err)
	v, err := Function(context.Background(), coll, func(row grouped.Row) (interface{}, error) {
		temp, err := row.Get("t")
		if err != nil {
			return nil, err
		}
		if temp.(float64) < 3 {
			return math.NaN(), nil
		}
		return temp, nil
	})
	require.Nil(t, err)
	require.Equal(t, 2, v.NumGroups())
	positions, err := v.Lookup(math.NaN())
	require.Nil(t, err)
	require.Equal(t, []int{0, 1}, positions)
}

func TestFunction(t *testing.T) {
	freezing := func(row grouped.Row) (interface{}, error) {
		temp, err := row.Get("temp")
		if err != nil {
			return nil, err
		}
		return temp.(float64) < 0, nil
	}
	v, err := Function(context.Background(), createTestCollection(t), freezing)
	require.Nil(t, err)
	require.Nil(t, v.Columns())
	require.NotNil(t, v.GroupingFunction())

	positions, err := v.Lookup(true)
	require.Nil(t, err)
	require.Equal(t, []int{0, 3}, positions)
	positions, err = v.Lookup(false)
	require.Nil(t, err)
	require.Equal(t, []int{1, 3}, positions)
	require.Equal(t, "true", v.DisplayKey(grouped.FunctionKey{Value: true}))

	keys, err := v.SortedKeys()
	require.Nil(t, err)
	require.Equal(t, []grouped.Key{grouped.FunctionKey{Value: false}, grouped.FunctionKey{Value: true}}, keys)
}

type bucket struct{ lo, hi int }

func TestFunctionUnorderableKeys(t *testing.T) {
	v, err := Function(context.Background(), createTestCollection(t), func(row grouped.Row) (interface{}, error) {
		year, err := row.Get("year")
		if err != nil {
			return nil, err
		}
		lo := int(year.(float64)) / 10 * 10
		return bucket{lo: lo, hi: lo + 9}, nil
	})
	require.Nil(t, err)
	require.Equal(t, 2, v.NumGroups())
	_, err = v.SortedKeys()
	require.IsType(t, errors.UnorderableError{}, err)
	positions, err := v.Lookup(bucket{lo: 2010, hi: 2019})
	require.Nil(t, err)
	require.Equal(t, []int{0, 3}, positions)
}

func TestGroupingErrors(t *testing.T) {
	ctx := context.Background()
	coll := createTestCollection(t)

	_, err := Columns(ctx, coll)
	require.IsType(t, errors.InvalidStateError{}, err)
	_, err = Function(ctx, coll, nil)
	require.IsType(t, errors.InvalidStateError{}, err)
	_, err = Columns(ctx, &opaqueCollection{Collection: coll}, "city")
	require.IsType(t, errors.InvalidStateError{}, err)

	_, err = Columns(ctx, coll, "country")
	require.NotNil(t, err)
	require.True(t, strings.Contains(err.Error(), "country"))

	boom := fmt.Errorf("boom")
	_, err = Function(ctx, coll, func(row grouped.Row) (interface{}, error) { return nil, boom })
	require.True(t, strings.Contains(err.Error(), "boom"))
	require.True(t, strings.Contains(err.Error(), "Toronto"))
	_, err = Function(ctx, coll, func(row grouped.Row) (interface{}, error) { panic("bad row") })
	require.True(t, strings.Contains(err.Error(), "Grouping Panic: bad row"))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Columns(cancelled, coll, "city")
	require.Equal(t, context.Canceled, err)
}

func TestCreateGroupedViewFromIndex(t *testing.T) {
	coll := createTestCollection(t)
	idx := index.CreateGroupIndex()
	require.Nil(t, idx.Set(grouped.ScalarKey{Value: "hot"}, []int{1}))
	v, err := CreateGroupedView(coll, []string{"label"}, nil, idx)
	require.Nil(t, err)
	positions, err := v.Lookup("hot")
	require.Nil(t, err)
	require.Equal(t, []int{1}, positions)
}

func TestGroupThenCompact(t *testing.T) {
	ctx := context.Background()
	coll := createTestCollection(t)
	v, err := Columns(ctx, coll, "city")
	require.Nil(t, err)

	// partition 1 held the only 2020 Toronto reading, partition 0 held the only Ottawa reading
	coll.GetMemoryPartition(0).Truncate()
	coll.GetMemoryPartition(1).Truncate()
	require.Nil(t, coll.GetMemoryPartition(3).Seal())

	compacted, err := v.Compacted(ctx, &grouped.ProbeOptions{Parallelism: 2})
	require.Nil(t, err)
	require.Equal(t, 1, compacted.Collection().NumPartitions())
	require.Equal(t, coll.GetPartition(3).ID(), compacted.Collection().GetPartition(0).ID())
	require.Equal(t, 2, compacted.NumGroups())
	_, err = compacted.Lookup("Ottawa")
	require.IsType(t, errors.NotFoundError{}, err)
	positions, err := compacted.Lookup("Toronto")
	require.Nil(t, err)
	require.Equal(t, []int{0}, positions)
	positions, err = compacted.Lookup("Montreal")
	require.Nil(t, err)
	require.Equal(t, []int{0}, positions)

	require.Equal(t, 3, v.NumGroups())
	require.Equal(t, 4, v.Collection().NumPartitions())
	require.Equal(t, 1, compacted.Stats().GetNumKeysRemoved())
	require.Equal(t, 3, compacted.Stats().GetNumPartitionsRemoved())
}
