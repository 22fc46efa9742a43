package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-sif/grouped"
	pb "github.com/go-sif/grouped/internal/rpc"
	iutil "github.com/go-sif/grouped/internal/util"
	"github.com/go-sif/grouped/logging"
	"github.com/golang/protobuf/ptypes/empty"
	"github.com/hashicorp/go-multierror"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// workerConn is a connection to a single Worker, shared by every RemoteCollection derived from the same Connect
type workerConn struct {
	addr   string
	conn   *grpc.ClientConn
	client pb.PartitionServiceClient
}

// RemotePartition is a Partition held by a Worker
type RemotePartition struct {
	id     string
	worker *workerConn
}

// ID retrieves the ID of this Partition
func (p *RemotePartition) ID() string {
	return p.id
}

// Worker returns the address of the Worker holding this Partition
func (p *RemotePartition) Worker() string {
	return p.worker.addr
}

// RemoteCollection is a Collection whose Partitions are held by Workers. Partitions are ordered
// by Worker, in the order the Workers were passed to Connect, then by their order on each Worker.
type RemoteCollection struct {
	opts    *NodeOptions
	workers []*workerConn
	parts   []*RemotePartition
}

// Connect dials a set of Workers and lists the Partitions they hold
func Connect(ctx context.Context, opts *NodeOptions, addrs ...string) (*RemoteCollection, error) {
	if opts == nil {
		opts = &NodeOptions{}
	}
	opts = CloneNodeOptions(opts)
	ensureDefaultNodeOptionsValues(opts)

	workers := make([]*workerConn, len(addrs))
	var wg sync.WaitGroup
	var errorsLock sync.Mutex
	var dialErrors *multierror.Error
	for i, addr := range addrs {
		wg.Add(1)
		go asyncDialWorker(ctx, opts, addr, i, workers, &wg, &errorsLock, &dialErrors)
	}
	wg.Wait()
	res := &RemoteCollection{opts: opts, workers: workers}
	if dialErrors.ErrorOrNil() != nil {
		res.Close()
		return nil, dialErrors
	}

	for _, w := range workers {
		parts, err := listPartitions(ctx, opts, w)
		if err != nil {
			res.Close()
			return nil, err
		}
		res.parts = append(res.parts, parts...)
	}
	logging.Logf(logging.InfoLevel, "Connected to %d workers holding %d partitions", len(workers), len(res.parts))
	return res, nil
}

func asyncDialWorker(ctx context.Context, opts *NodeOptions, addr string, i int, workers []*workerConn, wg *sync.WaitGroup, errorsLock *sync.Mutex, errors **multierror.Error) {
	defer wg.Done()
	dialCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	conn, err := grpc.DialContext(dialCtx, addr,
		grpc.WithInsecure(),
		grpc.WithBlock(),
		grpc.WithUnaryInterceptor(traceInterceptor),
	)
	if err != nil {
		errorsLock.Lock()
		*errors = multierror.Append(*errors, fmt.Errorf("Unable to connect to worker at %s: %v", addr, err))
		errorsLock.Unlock()
		return
	}
	workers[i] = &workerConn{addr: addr, conn: conn, client: pb.NewPartitionServiceClient(conn)}
}

// traceInterceptor logs the duration of every RPC at trace level
func traceInterceptor(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	start := time.Now()
	err := invoker(ctx, method, req, reply, cc, opts...)
	if logging.Enabled(logging.TraceLevel) {
		logging.Logf(logging.TraceLevel, "%s on %s took %s (err: %v)", method, cc.Target(), time.Since(start), err)
	}
	return err
}

func listPartitions(ctx context.Context, opts *NodeOptions, w *workerConn) ([]*RemotePartition, error) {
	rpcCtx, cancel := context.WithTimeout(ctx, opts.RPCTimeout)
	defer cancel()
	ids, err := w.client.ListPartitions(rpcCtx, &empty.Empty{})
	if err != nil {
		return nil, fmt.Errorf("Unable to list partitions of worker at %s: %v", w.addr, err)
	}
	parts := make([]*RemotePartition, len(ids.GetValues()))
	for i, v := range ids.GetValues() {
		parts[i] = &RemotePartition{id: v.GetStringValue(), worker: w}
	}
	return parts, nil
}

// NumPartitions returns the number of Partitions in this Collection
func (c *RemoteCollection) NumPartitions() int {
	return len(c.parts)
}

// GetPartition returns the Partition at a position
func (c *RemoteCollection) GetPartition(pos int) grouped.Partition {
	return c.parts[pos]
}

// ProbeNonEmpty asks the Worker holding a Partition whether it holds at least one row
func (c *RemoteCollection) ProbeNonEmpty(ctx context.Context, part grouped.Partition) (bool, error) {
	rp, ok := part.(*RemotePartition)
	if !ok {
		return false, fmt.Errorf("Partition %s is not held by a worker", part.ID())
	}
	rpcCtx, cancel := context.WithTimeout(ctx, c.opts.RPCTimeout)
	defer cancel()
	res, err := rp.worker.client.IsNonEmpty(rpcCtx, &wrapperspb.StringValue{Value: rp.id})
	if err != nil {
		return false, fmt.Errorf("Unable to probe partition %s on worker at %s: %v", rp.id, rp.worker.addr, err)
	}
	return res.GetValue(), nil
}

// WithPartitions creates a new RemoteCollection from an ordered list of RemotePartitions.
// The new Collection shares Worker connections with this one.
func (c *RemoteCollection) WithPartitions(parts []grouped.Partition) (grouped.Collection, error) {
	res := &RemoteCollection{opts: c.opts, workers: c.workers, parts: make([]*RemotePartition, len(parts))}
	for i, part := range parts {
		rp, ok := part.(*RemotePartition)
		if !ok {
			return nil, fmt.Errorf("Partition %s is not held by a worker", part.ID())
		}
		res.parts[i] = rp
	}
	return res, nil
}

// NumRows returns the total number of rows across all Partitions
func (c *RemoteCollection) NumRows(ctx context.Context) (int, error) {
	total := 0
	for _, rp := range c.parts {
		rpcCtx, cancel := context.WithTimeout(ctx, c.opts.RPCTimeout)
		res, err := rp.worker.client.NumRows(rpcCtx, &wrapperspb.StringValue{Value: rp.id})
		cancel()
		if err != nil {
			return 0, fmt.Errorf("Unable to count rows of partition %s on worker at %s: %v", rp.id, rp.worker.addr, err)
		}
		total += int(res.GetValue())
	}
	return total, nil
}

// Close closes the connections to all Workers. Every RemoteCollection derived from this one
// shares those connections, and is unusable afterwards.
func (c *RemoteCollection) Close() error {
	var closeErrors *multierror.Error
	for _, w := range c.workers {
		if w == nil {
			continue
		}
		if err := w.conn.Close(); err != nil && err != grpc.ErrClientConnClosing {
			closeErrors = multierror.Append(closeErrors, err)
		}
	}
	if closeErrors.ErrorOrNil() != nil {
		logging.Logf(logging.WarnLevel, "Errors while disconnecting from workers:\n%s", iutil.FormatMultiError(closeErrors.Errors))
	}
	return closeErrors.ErrorOrNil()
}
