// Package grouped contains the core components of a grouped-partition index: a view over a
// collection which is physically split into an ordered sequence of opaque partitions, presented
// as a set of named groups where each group is a subset of partition positions.
// This root package defines the interfaces which the index, the view and any backing collection
// implement, and is an excellent overview of the key concepts.
package grouped
