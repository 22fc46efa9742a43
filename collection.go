package grouped

import "context"

// A Partition is an opaque reference to a physical shard of a Collection.
// Within a grouped view it is identified solely by its position in the
// Collection's ordered partition sequence; ID is used for logging and addressing.
type Partition interface {
	ID() string // ID retrieves the ID of this Partition
}

// A Collection is an externally owned, ordered sequence of Partitions
type Collection interface {
	NumPartitions() int                                              // NumPartitions returns the current length of the partition sequence
	GetPartition(pos int) Partition                                  // GetPartition returns the Partition at a position in [0, NumPartitions())
	ProbeNonEmpty(ctx context.Context, part Partition) (bool, error) // ProbeNonEmpty reports whether a Partition holds at least one element. Must be safe to call concurrently for distinct Partitions.
	WithPartitions(parts []Partition) (Collection, error)            // WithPartitions constructs a new Collection of the same kind from an ordered list of this Collection's Partitions
}

// An ElementTypeResolver is a Collection which can (on a best-effort basis) determine the type of its elements
type ElementTypeResolver interface {
	ResolveElementType(ctx context.Context) (ElementType, error)
}

// A TypedCollection is a Collection which carries a known ElementType
type TypedCollection interface {
	Collection
	WithElementType(t ElementType) Collection // WithElementType returns a copy of this Collection which reports the given ElementType
}

// A RowCounter is a Collection which can count its elements
type RowCounter interface {
	NumRows(ctx context.Context) (int, error)
}

// A Row is a single element of a Partition, with values addressed by column name
type Row interface {
	Get(colName string) (interface{}, error) // Get returns the value of a column, or an error if it does not exist
	Bytes() []byte                           // Bytes returns the raw representation of this Row
}

// A RowIterablePartition is a Partition whose Rows can be visited in order
type RowIterablePartition interface {
	Partition
	ForEachRow(fn func(row Row) error) error
}

// GroupingFunction derives an opaque group key value from a Row
type GroupingFunction func(row Row) (interface{}, error)
