package cluster

import (
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/go-sif/grouped"
	pb "github.com/go-sif/grouped/internal/rpc"
	"github.com/go-sif/grouped/logging"
	uuid "github.com/gofrs/uuid"
	"google.golang.org/grpc"
)

type worker struct {
	id            string
	opts          *NodeOptions
	coll          grouped.Collection
	server        *grpc.Server
	listener      net.Listener
	lifecycleLock sync.Mutex
}

// createWorker is a factory for Workers
func createWorker(coll grouped.Collection, opts *NodeOptions) (*worker, error) {
	if coll == nil {
		return nil, fmt.Errorf("Collection cannot be nil")
	}
	if opts == nil {
		opts = &NodeOptions{}
	}
	opts = CloneNodeOptions(opts)
	// default certain options if not supplied
	ensureDefaultNodeOptionsValues(opts)
	// generate worker ID
	id, err := uuid.NewV4()
	if err != nil {
		log.Fatalf("failed to generate UUID: %v", err)
	}
	return &worker{id: id.String(), opts: opts, coll: coll}, nil
}

// ID returns the ID of this worker
func (w *worker) ID() string {
	return w.id
}

// Listen binds this worker to its configured address, returning the address actually bound.
// Calling Listen more than once returns the existing address.
func (w *worker) Listen() (net.Addr, error) {
	w.lifecycleLock.Lock()
	defer w.lifecycleLock.Unlock()
	if w.listener != nil {
		return w.listener.Addr(), nil
	}
	lis, err := net.Listen("tcp", w.opts.connectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %v", err)
	}
	w.listener = lis
	w.server = grpc.NewServer()
	pb.RegisterPartitionServiceServer(w.server, createPartitionServer(w.id, w.coll))
	return lis.Addr(), nil
}

// Start the worker - will block the current thread
func (w *worker) Start() error {
	addr, err := w.Listen()
	if err != nil {
		return err
	}
	w.lifecycleLock.Lock()
	server, lis := w.server, w.listener
	w.lifecycleLock.Unlock()
	if server == nil {
		return fmt.Errorf("Worker %s has already been stopped", w.id)
	}
	logging.Logf(logging.InfoLevel, "Worker %s serving %d partitions at %s", w.id, w.coll.NumPartitions(), addr)
	if err := server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("failed to serve: %v", err)
	}
	logging.Logf(logging.InfoLevel, "Worker %s stopped", w.id)
	return nil
}

// GracefulStop the worker, waiting for RPCs to finish
func (w *worker) GracefulStop() error {
	w.lifecycleLock.Lock()
	defer w.lifecycleLock.Unlock()
	if w.server != nil {
		w.server.GracefulStop()
		w.server = nil
		// the listener is only closed by the server if Serve was reached
		w.listener.Close()
	}
	return nil
}

// Stop the worker immediately
func (w *worker) Stop() error {
	w.lifecycleLock.Lock()
	defer w.lifecycleLock.Unlock()
	if w.server != nil {
		w.server.Stop()
		w.server = nil
		// the listener is only closed by the server if Serve was reached
		w.listener.Close()
	}
	return nil
}
