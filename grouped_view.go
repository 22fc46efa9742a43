package grouped

import "context"

// A GroupedView presents a Collection as a set of named groups, each group being a subset of
// the Collection's Partition positions. A GroupedView is grouped either by a list of columns or
// by a GroupingFunction, never both.
//
// A GroupedView is not safe for concurrent use: Compact mutates it in place and must not run
// concurrently with any other method on the same GroupedView.
type GroupedView interface {
	Collection() Collection                                                 // Collection returns the Collection currently indexed by this GroupedView
	Columns() []string                                                      // Columns returns the grouping columns, or nil if grouped by function
	GroupingFunction() GroupingFunction                                     // GroupingFunction returns the grouping function, or nil if grouped by columns
	Index() GroupIndex                                                      // Index returns the GroupIndex of this GroupedView. It must not be modified.
	NumGroups() int                                                         // NumGroups returns the number of groups
	Keys() []Key                                                            // Keys returns all group keys, in iteration order
	SortedKeys() ([]Key, error)                                             // SortedKeys returns all group keys in ascending order
	ForEachGroup(fn func(key Key, positions []int) error) error             // ForEachGroup iterates over the groups in a stable order
	Lookup(key interface{}) ([]int, error)                                  // Lookup coerces a key to the canonical key type, then returns its positions
	Get(key interface{}) (Collection, error)                                // Get materializes the group for a key as a Collection
	Materialize(positions []int) (Collection, error)                        // Materialize builds a Collection restricted to exactly the given positions, in order
	NumRows(ctx context.Context, key interface{}) (int, error)              // NumRows counts the rows in the group for a key
	DisplayKey(key Key) string                                              // DisplayKey renders a key for presentation
	ElementType() (ElementType, bool)                                       // ElementType returns the cached element type, if it has been resolved
	ResolveElementType(ctx context.Context) ElementType                     // ResolveElementType resolves the element type, falling back to UntypedRecord
	Compact(ctx context.Context, opts *ProbeOptions) error                  // Compact removes empty Partitions and rewrites the index. All-or-nothing.
	Compacted(ctx context.Context, opts *ProbeOptions) (GroupedView, error) // Compacted returns a compacted copy, leaving this GroupedView unchanged
	Clone() GroupedView                                                     // Clone returns a copy with an independent index
	Stats() CompactionStatistics                                            // Stats returns statistics about compactions of this GroupedView
}
