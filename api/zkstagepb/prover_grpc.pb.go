package zkstagepb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ProverServiceClient is the worker-facing RPC surface the coordinator
// dials: Split, Prove, Aggregate, Snark, and Ping (liveness probe).
type ProverServiceClient interface {
	Split(ctx context.Context, in *SplitRequest, opts ...grpc.CallOption) (*SplitResponse, error)
	Prove(ctx context.Context, in *ProveRequest, opts ...grpc.CallOption) (*ProveResponse, error)
	Aggregate(ctx context.Context, in *AggregateRequest, opts ...grpc.CallOption) (*AggregateResponse, error)
	Snark(ctx context.Context, in *SnarkRequest, opts ...grpc.CallOption) (*SnarkResponse, error)
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
}

type proverServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewProverServiceClient(cc grpc.ClientConnInterface) ProverServiceClient {
	return &proverServiceClient{cc}
}

func (c *proverServiceClient) Split(ctx context.Context, in *SplitRequest, opts ...grpc.CallOption) (*SplitResponse, error) {
	out := new(SplitResponse)
	if err := c.cc.Invoke(ctx, "/zkstage.ProverService/Split", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *proverServiceClient) Prove(ctx context.Context, in *ProveRequest, opts ...grpc.CallOption) (*ProveResponse, error) {
	out := new(ProveResponse)
	if err := c.cc.Invoke(ctx, "/zkstage.ProverService/Prove", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *proverServiceClient) Aggregate(ctx context.Context, in *AggregateRequest, opts ...grpc.CallOption) (*AggregateResponse, error) {
	out := new(AggregateResponse)
	if err := c.cc.Invoke(ctx, "/zkstage.ProverService/Aggregate", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *proverServiceClient) Snark(ctx context.Context, in *SnarkRequest, opts ...grpc.CallOption) (*SnarkResponse, error) {
	out := new(SnarkResponse)
	if err := c.cc.Invoke(ctx, "/zkstage.ProverService/Snark", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *proverServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	out := new(PingResponse)
	if err := c.cc.Invoke(ctx, "/zkstage.ProverService/Ping", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ProverServiceServer is the interface a worker process implements.
type ProverServiceServer interface {
	Split(context.Context, *SplitRequest) (*SplitResponse, error)
	Prove(context.Context, *ProveRequest) (*ProveResponse, error)
	Aggregate(context.Context, *AggregateRequest) (*AggregateResponse, error)
	Snark(context.Context, *SnarkRequest) (*SnarkResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

// UnimplementedProverServiceServer embeds into a real implementation so
// adding a method to the interface later doesn't break existing servers.
type UnimplementedProverServiceServer struct{}

func (UnimplementedProverServiceServer) Split(context.Context, *SplitRequest) (*SplitResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Split not implemented")
}
func (UnimplementedProverServiceServer) Prove(context.Context, *ProveRequest) (*ProveResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Prove not implemented")
}
func (UnimplementedProverServiceServer) Aggregate(context.Context, *AggregateRequest) (*AggregateResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Aggregate not implemented")
}
func (UnimplementedProverServiceServer) Snark(context.Context, *SnarkRequest) (*SnarkResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Snark not implemented")
}
func (UnimplementedProverServiceServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}

func RegisterProverServiceServer(s grpc.ServiceRegistrar, srv ProverServiceServer) {
	s.RegisterService(&proverServiceServiceDesc, srv)
}

func _ProverService_Split_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SplitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProverServiceServer).Split(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/zkstage.ProverService/Split"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProverServiceServer).Split(ctx, req.(*SplitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ProverService_Prove_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ProveRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProverServiceServer).Prove(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/zkstage.ProverService/Prove"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProverServiceServer).Prove(ctx, req.(*ProveRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ProverService_Aggregate_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(AggregateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProverServiceServer).Aggregate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/zkstage.ProverService/Aggregate"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProverServiceServer).Aggregate(ctx, req.(*AggregateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ProverService_Snark_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SnarkRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProverServiceServer).Snark(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/zkstage.ProverService/Snark"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProverServiceServer).Snark(ctx, req.(*SnarkRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ProverService_Ping_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProverServiceServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/zkstage.ProverService/Ping"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProverServiceServer).Ping(ctx, req.(*PingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var proverServiceServiceDesc = grpc.ServiceDesc{
	ServiceName: "zkstage.ProverService",
	HandlerType: (*ProverServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Split", Handler: _ProverService_Split_Handler},
		{MethodName: "Prove", Handler: _ProverService_Prove_Handler},
		{MethodName: "Aggregate", Handler: _ProverService_Aggregate_Handler},
		{MethodName: "Snark", Handler: _ProverService_Snark_Handler},
		{MethodName: "Ping", Handler: _ProverService_Ping_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "prover.proto",
}
