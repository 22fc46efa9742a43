package cluster

import (
	"github.com/go-sif/grouped"
	"github.com/go-sif/grouped/logging"
	"github.com/golang/protobuf/ptypes/empty"
	"golang.org/x/net/context"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// rowCountingPartition is implemented by Partitions which know how many rows they hold
type rowCountingPartition interface {
	GetNumRows() int
}

// rowScanningPartition is implemented by Partitions which must read their rows to count them
type rowScanningPartition interface {
	CountRows() (int, error)
}

type partitionServer struct {
	workerID string
	coll     grouped.Collection
	parts    map[string]grouped.Partition
}

// createPartitionServer creates a new partitionServer for a Collection. The Partitions of coll are
// fixed for the lifetime of the server, although their contents may change.
func createPartitionServer(workerID string, coll grouped.Collection) *partitionServer {
	parts := make(map[string]grouped.Partition, coll.NumPartitions())
	for i := 0; i < coll.NumPartitions(); i++ {
		part := coll.GetPartition(i)
		parts[part.ID()] = part
	}
	return &partitionServer{workerID: workerID, coll: coll, parts: parts}
}

func (s *partitionServer) find(id string) (grouped.Partition, error) {
	part, ok := s.parts[id]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "Partition %s is not held by worker %s", id, s.workerID)
	}
	return part, nil
}

func (s *partitionServer) logRequest(ctx context.Context, method string, id string) {
	if !logging.Enabled(logging.TraceLevel) {
		return
	}
	caller := "unknown"
	if p, ok := peer.FromContext(ctx); ok {
		caller = p.Addr.String()
	}
	logging.Logf(logging.TraceLevel, "Worker %s: %s(%s) from %s", s.workerID, method, id, caller)
}

// ListPartitions lists the IDs of the Partitions held by this Worker, in order
func (s *partitionServer) ListPartitions(ctx context.Context, req *empty.Empty) (*structpb.ListValue, error) {
	s.logRequest(ctx, "ListPartitions", "")
	res := &structpb.ListValue{Values: make([]*structpb.Value, s.coll.NumPartitions())}
	for i := range res.Values {
		res.Values[i] = &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s.coll.GetPartition(i).ID()}}
	}
	return res, nil
}

// IsNonEmpty probes a Partition held by this Worker
func (s *partitionServer) IsNonEmpty(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	s.logRequest(ctx, "IsNonEmpty", req.GetValue())
	part, err := s.find(req.GetValue())
	if err != nil {
		return nil, err
	}
	nonEmpty, err := s.coll.ProbeNonEmpty(ctx, part)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "Unable to probe partition %s: %v", part.ID(), err)
	}
	return &wrapperspb.BoolValue{Value: nonEmpty}, nil
}

// NumRows counts the rows of a Partition held by this Worker
func (s *partitionServer) NumRows(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	s.logRequest(ctx, "NumRows", req.GetValue())
	part, err := s.find(req.GetValue())
	if err != nil {
		return nil, err
	}
	switch counter := part.(type) {
	case rowCountingPartition:
		return &wrapperspb.Int64Value{Value: int64(counter.GetNumRows())}, nil
	case rowScanningPartition:
		n, err := counter.CountRows()
		if err != nil {
			return nil, status.Errorf(codes.Unavailable, "Unable to count rows of partition %s: %v", part.ID(), err)
		}
		return &wrapperspb.Int64Value{Value: int64(n)}, nil
	}
	return nil, status.Errorf(codes.Unimplemented, "Partition %s cannot count its rows", part.ID())
}
