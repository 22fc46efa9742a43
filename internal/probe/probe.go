package probe

import (
	"context"
	"sort"
	"sync"

	"github.com/go-sif/grouped"
	"github.com/go-sif/grouped/errors"
	iutil "github.com/go-sif/grouped/internal/util"
	"github.com/go-sif/grouped/logging"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/semaphore"
)

// failures accumulates probe errors from concurrent goroutines
type failures struct {
	lock     sync.Mutex
	multierr *multierror.Error
}

func (f *failures) add(pos int, part grouped.Partition, err error) {
	id := ""
	if part != nil {
		id = part.ID()
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	f.multierr = multierror.Append(f.multierr, errors.ProbeFailureError{Position: pos, PartitionID: id, Err: err})
}

// NonEmpty probes every Partition of a Collection concurrently, returning a slice where
// result[i] reports whether the Partition at position i holds at least one element.
// All probes are awaited before returning. If any probe fails, the result is nil and the
// error is a *multierror.Error of errors.ProbeFailureError, ordered by position.
func NonEmpty(ctx context.Context, coll grouped.Collection, opts *grouped.ProbeOptions) ([]bool, error) {
	conf := grouped.CloneProbeOptions(opts)
	grouped.EnsureDefaultProbeOptionsValues(conf)
	if conf.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, conf.Timeout)
		defer cancel()
	}
	numPartitions := coll.NumPartitions()
	results := make([]bool, numPartitions)
	var wg sync.WaitGroup
	var failed failures
	limit := semaphore.NewWeighted(int64(conf.Parallelism))
	for i := 0; i < numPartitions; i++ {
		part := coll.GetPartition(i)
		if err := limit.Acquire(ctx, 1); err != nil {
			// nothing more can be scheduled, so every remaining partition has failed
			for j := i; j < numPartitions; j++ {
				failed.add(j, coll.GetPartition(j), err)
			}
			break
		}
		wg.Add(1)
		go asyncProbe(ctx, coll, i, part, results, limit, &wg, &failed)
	}
	wg.Wait()
	if failed.multierr != nil {
		sort.SliceStable(failed.multierr.Errors, func(i, j int) bool {
			return positionOf(failed.multierr.Errors[i]) < positionOf(failed.multierr.Errors[j])
		})
		logging.Logf(logging.WarnLevel, "%d of %d partition probes failed:\n%s", len(failed.multierr.Errors), numPartitions, iutil.FormatMultiError(failed.multierr.Errors))
		return nil, failed.multierr
	}
	return results, nil
}

func positionOf(err error) int {
	if pf, ok := err.(errors.ProbeFailureError); ok {
		return pf.Position
	}
	return -1
}

func asyncProbe(ctx context.Context, coll grouped.Collection, pos int, part grouped.Partition, results []bool, limit *semaphore.Weighted, wg *sync.WaitGroup, failed *failures) {
	defer wg.Done()
	defer limit.Release(1)
	defer func() {
		if r := recover(); r != nil {
			failed.add(pos, part, iutil.PanicToError(r))
		}
	}()
	nonEmpty, err := coll.ProbeNonEmpty(ctx, part)
	if err != nil {
		failed.add(pos, part, err)
		return
	}
	results[pos] = nonEmpty
}
