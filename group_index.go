package grouped

// A GroupIndex maps group Keys to ordered sequences of unique Partition positions.
// Implementations iterate in a stable order between mutations.
type GroupIndex interface {
	Keys() []Key                                           // Keys returns the current key set
	Lookup(key Key) ([]int, error)                         // Lookup returns the positions for a Key, without coercion. Returns an errors.NotFoundError if absent.
	SortedKeys() ([]Key, error)                            // SortedKeys returns all Keys in ascending order, or an errors.UnorderableError
	ForEach(fn func(key Key, positions []int) error) error // ForEach iterates over (Key, positions) pairs. Stops at the first error returned by fn.
	Size() int                                             // Size returns the number of Keys
	KeyType() (exemplar Key, ok bool)                      // KeyType returns a Key which establishes the canonical key shape and types. ok is false for an empty index.
	Clone() BuildableGroupIndex                            // Clone returns an independent deep copy of this index
}

// A BuildableGroupIndex can be built and rewritten. Used by grouping builders and compaction.
type BuildableGroupIndex interface {
	GroupIndex
	Append(key Key, pos int) error      // Append adds a position to the end of a Key's sequence, creating the Key if necessary. Duplicate positions are rejected.
	Set(key Key, positions []int) error // Set replaces a Key's positions. An empty sequence deletes the Key.
	Delete(key Key) bool                // Delete removes a Key, returning true iff it was present
}
