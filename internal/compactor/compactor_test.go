package compactor

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/go-sif/grouped"
	"github.com/go-sif/grouped/datasource/memory"
	"github.com/go-sif/grouped/errors"
	"github.com/go-sif/grouped/index"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

// createLivenessCollection creates a Collection where partition i holds one row iff liveness[i]
func createLivenessCollection(t *testing.T, liveness ...bool) *memory.Collection {
	data := make([][][]byte, len(liveness))
	for i, live := range liveness {
		if live {
			data[i] = [][]byte{[]byte(fmt.Sprintf(`{"part": %d}`, i))}
		}
	}
	coll, err := memory.CreateCollection(data)
	require.Nil(t, err)
	return coll
}

func createIndex(t *testing.T, groups map[string][]int) grouped.BuildableGroupIndex {
	idx := index.CreateGroupIndex()
	for k, positions := range groups {
		require.Nil(t, idx.Set(grouped.ScalarKey{Value: k}, positions))
	}
	return idx
}

func lookup(t *testing.T, idx grouped.GroupIndex, key string) []int {
	positions, err := idx.Lookup(grouped.ScalarKey{Value: key})
	require.Nil(t, err)
	return positions
}

func partitionIDs(coll grouped.Collection) []string {
	ids := make([]string, coll.NumPartitions())
	for i := range ids {
		ids[i] = coll.GetPartition(i).ID()
	}
	return ids
}

type failingCollection struct {
	*memory.Collection
	failAt int
}

func (c *failingCollection) ProbeNonEmpty(ctx context.Context, part grouped.Partition) (bool, error) {
	if part.ID() == c.GetPartition(c.failAt).ID() {
		return false, fmt.Errorf("worker holding %s is unreachable", part.ID())
	}
	return c.Collection.ProbeNonEmpty(ctx, part)
}

type unbuildableCollection struct {
	*memory.Collection
}

func (c *unbuildableCollection) WithPartitions(parts []grouped.Partition) (grouped.Collection, error) {
	return nil, fmt.Errorf("collection is read-only")
}

func TestOffsetsAndSurvivors(t *testing.T) {
	nonEmpty := []bool{false, true, true, false, true}
	require.Equal(t, []int{1, 1, 1, 2, 2}, Offsets(nonEmpty))
	require.Equal(t, []int{1, 2, 4}, Survivors(nonEmpty))
	require.Equal(t, []int{}, Offsets(nil))
	require.Equal(t, []int{}, Survivors(nil))
}

func TestCompactRemovesEmptyPartitions(t *testing.T) {
	coll := createLivenessCollection(t, false, true, true, false)
	idx := createIndex(t, map[string][]int{"K1": {1}, "K2": {2}})
	res, err := Compact(context.Background(), coll, idx, nil)
	require.Nil(t, err)
	require.Equal(t, []string{coll.GetPartition(1).ID(), coll.GetPartition(2).ID()}, partitionIDs(res.Collection))
	require.Equal(t, 2, res.Index.Size())
	require.Equal(t, []int{0}, lookup(t, res.Index, "K1"))
	require.Equal(t, []int{1}, lookup(t, res.Index, "K2"))
	require.Equal(t, 4, res.NumPartitionsProbed)
	require.Equal(t, 2, res.NumPartitionsRemoved)
	require.Equal(t, 0, res.NumKeysRemoved)
	// the input index is untouched
	require.Equal(t, []int{1}, lookup(t, idx, "K1"))
}

func TestCompactDeletesFullyEmptyKeys(t *testing.T) {
	coll := createLivenessCollection(t, false, true)
	idx := createIndex(t, map[string][]int{"K1": {0}, "K2": {1}})
	res, err := Compact(context.Background(), coll, idx, nil)
	require.Nil(t, err)
	require.Equal(t, 1, res.Index.Size())
	_, err = res.Index.Lookup(grouped.ScalarKey{Value: "K1"})
	require.IsType(t, errors.NotFoundError{}, err)
	require.Equal(t, []int{0}, lookup(t, res.Index, "K2"))
	require.Equal(t, 1, res.NumKeysRemoved)
}

func TestCompactMixedKeySurvival(t *testing.T) {
	coll := createLivenessCollection(t, true, false, true)
	idx := createIndex(t, map[string][]int{"K": {0, 1, 2}})
	res, err := Compact(context.Background(), coll, idx, nil)
	require.Nil(t, err)
	require.Equal(t, []int{0, 1}, lookup(t, res.Index, "K"))
	require.Equal(t, []string{coll.GetPartition(0).ID(), coll.GetPartition(2).ID()}, partitionIDs(res.Collection))
}

func TestCompactPreservesRelativeOrder(t *testing.T) {
	coll := createLivenessCollection(t, true, false, true, true, false, true)
	idx := createIndex(t, map[string][]int{"K": {5, 0, 3, 1}})
	res, err := Compact(context.Background(), coll, idx, nil)
	require.Nil(t, err)
	require.Equal(t, []int{3, 0, 2}, lookup(t, res.Index, "K"))
}

func TestCompactIsIdempotent(t *testing.T) {
	coll := createLivenessCollection(t, false, true, false, true, true)
	idx := createIndex(t, map[string][]int{"a": {0, 1}, "b": {2}, "c": {3, 4}})
	first, err := Compact(context.Background(), coll, idx, nil)
	require.Nil(t, err)
	second, err := Compact(context.Background(), first.Collection, first.Index, nil)
	require.Nil(t, err)
	require.True(t, index.Equal(first.Index, second.Index))
	require.Equal(t, first.Collection, second.Collection)
	require.Equal(t, 0, second.NumPartitionsRemoved)
	require.Equal(t, 0, second.NumKeysRemoved)
}

func TestCompactInvariantsAndConservation(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		n := rnd.Intn(30)
		liveness := make([]bool, n)
		for i := range liveness {
			liveness[i] = rnd.Intn(3) > 0
		}
		coll := createLivenessCollection(t, liveness...)
		idx := index.CreateGroupIndex()
		for pos := 0; pos < n; pos++ {
			for k := 0; k < 4; k++ {
				if rnd.Intn(2) == 0 {
					require.Nil(t, idx.Append(grouped.ScalarKey{Value: k}, pos))
				}
			}
		}

		res, err := Compact(context.Background(), coll, idx, &grouped.ProbeOptions{Parallelism: 4})
		require.Nil(t, err)
		newN := res.Collection.NumPartitions()

		// every surviving key is non-empty and in range
		require.Nil(t, res.Index.ForEach(func(key grouped.Key, positions []int) error {
			require.NotEmpty(t, positions)
			for _, p := range positions {
				require.True(t, p >= 0 && p < newN)
			}
			return nil
		}))

		// surviving (key, partition) pairs are conserved, by partition identity
		expected := map[string]bool{}
		require.Nil(t, idx.ForEach(func(key grouped.Key, positions []int) error {
			for _, p := range positions {
				if liveness[p] {
					expected[fmt.Sprintf("%v/%s", key, coll.GetPartition(p).ID())] = true
				}
			}
			return nil
		}))
		actual := map[string]bool{}
		pairs := 0
		require.Nil(t, res.Index.ForEach(func(key grouped.Key, positions []int) error {
			for _, p := range positions {
				actual[fmt.Sprintf("%v/%s", key, res.Collection.GetPartition(p).ID())] = true
				pairs++
			}
			return nil
		}))
		require.Equal(t, expected, actual)
		require.Equal(t, len(expected), pairs)
	}
}

func TestCompactAbortsOnProbeFailure(t *testing.T) {
	coll := &failingCollection{Collection: createLivenessCollection(t, false, true, true, false), failAt: 2}
	idx := createIndex(t, map[string][]int{"K1": {1}, "K2": {2, 3}})
	before := idx.Clone()
	idsBefore := partitionIDs(coll)

	res, err := Compact(context.Background(), coll, idx, nil)
	require.Nil(t, res)
	merr, ok := err.(*multierror.Error)
	require.True(t, ok)
	require.Len(t, merr.Errors, 1)
	failure, ok := merr.Errors[0].(errors.ProbeFailureError)
	require.True(t, ok)
	require.Equal(t, 2, failure.Position)

	require.True(t, index.Equal(before, idx))
	require.Equal(t, idsBefore, partitionIDs(coll))
}

func TestCompactAbortsWhenCollectionCannotBeRebuilt(t *testing.T) {
	coll := &unbuildableCollection{Collection: createLivenessCollection(t, false, true)}
	idx := createIndex(t, map[string][]int{"K1": {0, 1}})
	res, err := Compact(context.Background(), coll, idx, nil)
	require.Nil(t, res)
	require.NotNil(t, err)
	require.Equal(t, []int{0, 1}, lookup(t, idx, "K1"))
}

func TestRewriteRejectsOutOfRangePositions(t *testing.T) {
	idx := createIndex(t, map[string][]int{"K1": {0, 4}})
	_, _, err := Rewrite(idx, []bool{true, true})
	require.IsType(t, errors.InvalidStateError{}, err)
}
