package compactor

import (
	"context"
	"fmt"

	"github.com/go-sif/grouped"
	"github.com/go-sif/grouped/errors"
	"github.com/go-sif/grouped/internal/probe"
)

// Result is the outcome of a successful compaction. Nothing in it aliases the inputs,
// except Collection when no Partition was removed.
type Result struct {
	Collection           grouped.Collection
	Index                grouped.BuildableGroupIndex
	NumPartitionsProbed  int
	NumPartitionsRemoved int
	NumKeysRemoved       int
}

// Offsets computes, for each position i, the number of empty positions at indices <= i.
// A surviving Partition at old position i moves to i - offsets[i].
func Offsets(nonEmpty []bool) []int {
	offsets := make([]int, len(nonEmpty))
	removed := 0
	for i, ok := range nonEmpty {
		if !ok {
			removed++
		}
		offsets[i] = removed
	}
	return offsets
}

// Survivors returns the non-empty positions, in their original order
func Survivors(nonEmpty []bool) []int {
	survivors := make([]int, 0, len(nonEmpty))
	for i, ok := range nonEmpty {
		if ok {
			survivors = append(survivors, i)
		}
	}
	return survivors
}

// Rewrite builds a copy of idx in which every Key maps to the new positions of its surviving
// Partitions. Keys left without any surviving Partition are deleted. The relative order of
// each Key's surviving positions is preserved. idx is not modified.
func Rewrite(idx grouped.GroupIndex, nonEmpty []bool) (grouped.BuildableGroupIndex, int, error) {
	offsets := Offsets(nonEmpty)
	res := idx.Clone()
	removedKeys := 0
	err := idx.ForEach(func(key grouped.Key, positions []int) error {
		remapped := make([]int, 0, len(positions))
		for _, pos := range positions {
			if pos < 0 || pos >= len(nonEmpty) {
				return errors.InvalidStateError{Reason: fmt.Sprintf("group key %s references position %d, but there are only %d partitions", key, pos, len(nonEmpty))}
			}
			if nonEmpty[pos] {
				remapped = append(remapped, pos-offsets[pos])
			}
		}
		if len(remapped) == 0 {
			res.Delete(key)
			removedKeys++
			return nil
		}
		return res.Set(key, remapped)
	})
	if err != nil {
		return nil, 0, err
	}
	return res, removedKeys, nil
}

// Compact probes every Partition of coll, then produces a Collection holding only the non-empty
// Partitions (in their original order) and an index rewritten to reference them. Nothing is
// produced unless every probe succeeds, so a failure leaves the caller's state untouched.
func Compact(ctx context.Context, coll grouped.Collection, idx grouped.GroupIndex, opts *grouped.ProbeOptions) (*Result, error) {
	nonEmpty, err := probe.NonEmpty(ctx, coll, opts)
	if err != nil {
		return nil, err
	}
	newIdx, removedKeys, err := Rewrite(idx, nonEmpty)
	if err != nil {
		return nil, err
	}
	survivors := Survivors(nonEmpty)
	res := &Result{
		Collection:           coll,
		Index:                newIdx,
		NumPartitionsProbed:  len(nonEmpty),
		NumPartitionsRemoved: len(nonEmpty) - len(survivors),
		NumKeysRemoved:       removedKeys,
	}
	if res.NumPartitionsRemoved == 0 {
		return res, nil
	}
	parts := make([]grouped.Partition, len(survivors))
	for i, pos := range survivors {
		parts[i] = coll.GetPartition(pos)
	}
	newColl, err := coll.WithPartitions(parts)
	if err != nil {
		return nil, err
	}
	res.Collection = newColl
	return res, nil
}
