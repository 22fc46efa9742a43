package index

import (
	"fmt"
	"sort"

	xxhash "github.com/cespare/xxhash/v2"
	"github.com/go-sif/grouped"
	"github.com/go-sif/grouped/errors"
)

// tombstoneRatio controls how many deleted entries are tolerated before the entry list is rebuilt
const tombstoneRatio = 2

type entry struct {
	key       grouped.Key
	hash      uint64
	positions []int
	deleted   bool
}

// groupIndex is a GroupIndex which buckets Keys by the xxhash of their canonical
// encoding. Entries are kept in insertion order, which is the iteration order.
type groupIndex struct {
	entries    []*entry
	buckets    map[uint64][]*entry
	numKeys    int
	tombstones int
}

// CreateGroupIndex is a factory for GroupIndices
func CreateGroupIndex() grouped.BuildableGroupIndex {
	return &groupIndex{
		entries: make([]*entry, 0),
		buckets: make(map[uint64][]*entry),
	}
}

// hashKey computes the bucket for a Key. Keys which are Equal always share a bucket.
func hashKey(k grouped.Key) uint64 {
	hasher := xxhash.New()
	fmt.Fprintf(hasher, "%d|", k.Kind())
	for _, c := range k.Components() {
		// -0 is Equal to 0
		switch f := c.(type) {
		case float64:
			if f == 0 {
				c = float64(0)
			}
		case float32:
			if f == 0 {
				c = float32(0)
			}
		}
		fmt.Fprintf(hasher, "%T:%v|", c, c)
	}
	return hasher.Sum64()
}

func cloneKey(k grouped.Key) grouped.Key {
	if ck, ok := k.(grouped.CompositeKey); ok {
		return grouped.NewCompositeKey(ck.Parts...)
	}
	return k
}

func copyPositions(positions []int) []int {
	res := make([]int, len(positions))
	copy(res, positions)
	return res
}

func (idx *groupIndex) find(key grouped.Key) *entry {
	if key == nil {
		return nil
	}
	for _, e := range idx.buckets[hashKey(key)] {
		if e.key.Equal(key) {
			return e
		}
	}
	return nil
}

func (idx *groupIndex) checkKind(key grouped.Key) error {
	if key == nil {
		return errors.InvalidStateError{Reason: "group key cannot be nil"}
	}
	if exemplar, ok := idx.KeyType(); ok && exemplar.Kind() != key.Kind() {
		return errors.InvalidStateError{Reason: fmt.Sprintf("group key %s does not have the same shape as existing keys", key)}
	}
	return nil
}

func (idx *groupIndex) insert(key grouped.Key, positions []int) {
	e := &entry{key: cloneKey(key), hash: hashKey(key), positions: positions}
	idx.entries = append(idx.entries, e)
	idx.buckets[e.hash] = append(idx.buckets[e.hash], e)
	idx.numKeys++
}

// Keys returns the current key set, in iteration order
func (idx *groupIndex) Keys() []grouped.Key {
	keys := make([]grouped.Key, 0, idx.numKeys)
	for _, e := range idx.entries {
		if !e.deleted {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// Lookup returns a copy of the positions for a Key
func (idx *groupIndex) Lookup(key grouped.Key) ([]int, error) {
	e := idx.find(key)
	if e == nil {
		return nil, errors.NotFoundError{Key: key}
	}
	return copyPositions(e.positions), nil
}

// SortedKeys returns all Keys in ascending order
func (idx *groupIndex) SortedKeys() ([]grouped.Key, error) {
	keys := idx.Keys()
	for _, k := range keys {
		if !grouped.IsOrderable(k) {
			return nil, errors.UnorderableError{Key: k}
		}
	}
	var sortErr error
	sort.SliceStable(keys, func(i, j int) bool {
		c, err := grouped.CompareKeys(keys[i], keys[j])
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return c < 0
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return keys, nil
}

// ForEach iterates over (Key, positions) pairs in insertion order
func (idx *groupIndex) ForEach(fn func(key grouped.Key, positions []int) error) error {
	for _, e := range idx.entries {
		if e.deleted {
			continue
		}
		if err := fn(e.key, copyPositions(e.positions)); err != nil {
			return err
		}
	}
	return nil
}

// Size returns the number of Keys
func (idx *groupIndex) Size() int {
	return idx.numKeys
}

// KeyType returns the first live Key, which establishes the shape and value types of all Keys
func (idx *groupIndex) KeyType() (grouped.Key, bool) {
	for _, e := range idx.entries {
		if !e.deleted {
			return e.key, true
		}
	}
	return nil, false
}

// Clone returns an independent deep copy of this index
func (idx *groupIndex) Clone() grouped.BuildableGroupIndex {
	res := &groupIndex{
		entries: make([]*entry, 0, idx.numKeys),
		buckets: make(map[uint64][]*entry, len(idx.buckets)),
	}
	for _, e := range idx.entries {
		if !e.deleted {
			res.insert(e.key, copyPositions(e.positions))
		}
	}
	return res
}

// Append adds a position to a Key's sequence
func (idx *groupIndex) Append(key grouped.Key, pos int) error {
	if pos < 0 {
		return errors.InvalidStateError{Reason: fmt.Sprintf("position %d for group key %s is negative", pos, key)}
	}
	e := idx.find(key)
	if e == nil {
		if err := idx.checkKind(key); err != nil {
			return err
		}
		idx.insert(key, []int{pos})
		return nil
	}
	for _, p := range e.positions {
		if p == pos {
			return errors.InvalidStateError{Reason: fmt.Sprintf("position %d is already present for group key %s", pos, key)}
		}
	}
	e.positions = append(e.positions, pos)
	return nil
}

// Set replaces a Key's positions. An empty sequence deletes the Key.
func (idx *groupIndex) Set(key grouped.Key, positions []int) error {
	if len(positions) == 0 {
		idx.Delete(key)
		return nil
	}
	seen := make(map[int]struct{}, len(positions))
	for _, p := range positions {
		if p < 0 {
			return errors.InvalidStateError{Reason: fmt.Sprintf("position %d for group key %s is negative", p, key)}
		}
		if _, dup := seen[p]; dup {
			return errors.InvalidStateError{Reason: fmt.Sprintf("position %d is repeated for group key %s", p, key)}
		}
		seen[p] = struct{}{}
	}
	if e := idx.find(key); e != nil {
		e.positions = copyPositions(positions)
		return nil
	}
	if err := idx.checkKind(key); err != nil {
		return err
	}
	idx.insert(key, copyPositions(positions))
	return nil
}

// Delete removes a Key
func (idx *groupIndex) Delete(key grouped.Key) bool {
	e := idx.find(key)
	if e == nil {
		return false
	}
	e.deleted = true
	bucket := idx.buckets[e.hash]
	for i := range bucket {
		if bucket[i] == e {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(idx.buckets, e.hash)
	} else {
		idx.buckets[e.hash] = bucket
	}
	idx.numKeys--
	idx.tombstones++
	if idx.tombstones > tombstoneRatio*idx.numKeys {
		idx.vacuum()
	}
	return true
}

// vacuum drops deleted entries from the iteration list, preserving order
func (idx *groupIndex) vacuum() {
	live := make([]*entry, 0, idx.numKeys)
	for _, e := range idx.entries {
		if !e.deleted {
			live = append(live, e)
		}
	}
	idx.entries = live
	idx.tombstones = 0
}

// Equal returns true iff two GroupIndices hold the same Keys, each mapped to the same sequence of positions
func Equal(a grouped.GroupIndex, b grouped.GroupIndex) bool {
	if a.Size() != b.Size() {
		return false
	}
	err := a.ForEach(func(key grouped.Key, positions []int) error {
		other, err := b.Lookup(key)
		if err != nil {
			return err
		}
		if len(other) != len(positions) {
			return errors.NotFoundError{Key: key}
		}
		for i := range positions {
			if positions[i] != other[i] {
				return errors.NotFoundError{Key: key}
			}
		}
		return nil
	})
	return err == nil
}
