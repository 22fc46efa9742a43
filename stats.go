package grouped

import "time"

// CompactionStatistics facilitates the retrieval of statistics about the most recent compaction of a grouped view
type CompactionStatistics interface {
	// GetStartTime returns the start time of the most recent compaction
	GetStartTime() time.Time
	// GetRuntime returns the running time of the most recent compaction
	GetRuntime() time.Duration
	// GetNumCompactions returns the number of successful compactions
	GetNumCompactions() int
	// GetNumPartitionsProbed returns the number of Partitions probed by the most recent compaction
	GetNumPartitionsProbed() int
	// GetNumPartitionsRemoved returns the number of empty Partitions removed by the most recent compaction
	GetNumPartitionsRemoved() int
	// GetNumKeysRemoved returns the number of Keys deleted by the most recent compaction
	GetNumKeysRemoved() int
}
