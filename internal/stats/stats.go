package stats

import (
	"time"
)

// CompactionStatistics contains statistics about the compactions of a grouped view
type CompactionStatistics struct {
	started           bool
	startTime         time.Time
	runtime           int64
	numCompactions    int
	partitionsProbed  int
	partitionsRemoved int
	keysRemoved       int
}

// Finish records the outcome of a successful compaction which began at start. Nothing is
// recorded for a compaction until it finishes.
func (cs *CompactionStatistics) Finish(start time.Time, probed int, partitionsRemoved int, keysRemoved int) {
	cs.started = true
	cs.startTime = start
	cs.runtime = time.Since(start).Nanoseconds()
	cs.numCompactions++
	cs.partitionsProbed = probed
	cs.partitionsRemoved = partitionsRemoved
	cs.keysRemoved = keysRemoved
}

// Clone returns a copy of these statistics
func (cs *CompactionStatistics) Clone() *CompactionStatistics {
	res := *cs
	return &res
}

// GetStartTime returns the start time of the most recent successful compaction
func (cs *CompactionStatistics) GetStartTime() time.Time {
	return cs.startTime
}

// GetRuntime returns the running time of the most recent successful compaction
func (cs *CompactionStatistics) GetRuntime() time.Duration {
	if !cs.started {
		return 0
	}
	return time.Duration(cs.runtime)
}

// GetNumCompactions returns the number of successful compactions
func (cs *CompactionStatistics) GetNumCompactions() int {
	return cs.numCompactions
}

// GetNumPartitionsProbed returns the number of Partitions probed by the most recent compaction
func (cs *CompactionStatistics) GetNumPartitionsProbed() int {
	return cs.partitionsProbed
}

// GetNumPartitionsRemoved returns the number of Partitions removed by the most recent compaction
func (cs *CompactionStatistics) GetNumPartitionsRemoved() int {
	return cs.partitionsRemoved
}

// GetNumKeysRemoved returns the number of Keys deleted by the most recent compaction
func (cs *CompactionStatistics) GetNumKeysRemoved() int {
	return cs.keysRemoved
}
