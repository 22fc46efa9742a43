// Package rpc defines the gRPC service through which Workers expose the Partitions they hold.
// Requests and responses are protobuf well-known types, so the service needs no generated messages.
package rpc

import (
	"context"

	"github.com/golang/protobuf/ptypes/empty"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// PartitionServiceName is the fully-qualified name of the partition service
const PartitionServiceName = "grouped.PartitionService"

const (
	listPartitionsMethod = "/" + PartitionServiceName + "/ListPartitions"
	isNonEmptyMethod     = "/" + PartitionServiceName + "/IsNonEmpty"
	numRowsMethod        = "/" + PartitionServiceName + "/NumRows"
)

// PartitionServiceClient is the client API for the partition service
type PartitionServiceClient interface {
	// ListPartitions returns the IDs of every Partition held by a Worker, in order
	ListPartitions(ctx context.Context, in *empty.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error)
	// IsNonEmpty reports whether the Partition with the given ID holds at least one row
	IsNonEmpty(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
	// NumRows returns the number of rows in the Partition with the given ID
	NumRows(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.Int64Value, error)
}

type partitionServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPartitionServiceClient creates a PartitionServiceClient over a connection
func NewPartitionServiceClient(cc grpc.ClientConnInterface) PartitionServiceClient {
	return &partitionServiceClient{cc}
}

func (c *partitionServiceClient) ListPartitions(ctx context.Context, in *empty.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	err := c.cc.Invoke(ctx, listPartitionsMethod, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *partitionServiceClient) IsNonEmpty(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	err := c.cc.Invoke(ctx, isNonEmptyMethod, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *partitionServiceClient) NumRows(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.Int64Value, error) {
	out := new(wrapperspb.Int64Value)
	err := c.cc.Invoke(ctx, numRowsMethod, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PartitionServiceServer is the server API for the partition service
type PartitionServiceServer interface {
	ListPartitions(context.Context, *empty.Empty) (*structpb.ListValue, error)
	IsNonEmpty(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	NumRows(context.Context, *wrapperspb.StringValue) (*wrapperspb.Int64Value, error)
}

// RegisterPartitionServiceServer registers a PartitionServiceServer with a grpc.Server
func RegisterPartitionServiceServer(s *grpc.Server, srv PartitionServiceServer) {
	s.RegisterService(&partitionServiceDesc, srv)
}

func listPartitionsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(empty.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PartitionServiceServer).ListPartitions(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listPartitionsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PartitionServiceServer).ListPartitions(ctx, req.(*empty.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func isNonEmptyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PartitionServiceServer).IsNonEmpty(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: isNonEmptyMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PartitionServiceServer).IsNonEmpty(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func numRowsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PartitionServiceServer).NumRows(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: numRowsMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PartitionServiceServer).NumRows(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

var partitionServiceDesc = grpc.ServiceDesc{
	ServiceName: PartitionServiceName,
	HandlerType: (*PartitionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListPartitions", Handler: listPartitionsHandler},
		{MethodName: "IsNonEmpty", Handler: isNonEmptyHandler},
		{MethodName: "NumRows", Handler: numRowsHandler},
	},
	Streams: []grpc.StreamDesc{},
}
