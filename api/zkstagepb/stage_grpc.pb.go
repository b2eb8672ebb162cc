package zkstagepb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// StageServiceClient is the client-facing RPC surface (submission intake
// and status polling).
type StageServiceClient interface {
	GenerateProof(ctx context.Context, in *GenerateProofRequest, opts ...grpc.CallOption) (*GenerateProofResponse, error)
	GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*GetStatusResponse, error)
}

type stageServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewStageServiceClient(cc grpc.ClientConnInterface) StageServiceClient {
	return &stageServiceClient{cc}
}

func (c *stageServiceClient) GenerateProof(ctx context.Context, in *GenerateProofRequest, opts ...grpc.CallOption) (*GenerateProofResponse, error) {
	out := new(GenerateProofResponse)
	if err := c.cc.Invoke(ctx, "/zkstage.StageService/GenerateProof", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *stageServiceClient) GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*GetStatusResponse, error) {
	out := new(GetStatusResponse)
	if err := c.cc.Invoke(ctx, "/zkstage.StageService/GetStatus", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// StageServiceServer is the interface the coordinator's gRPC server implements.
type StageServiceServer interface {
	GenerateProof(context.Context, *GenerateProofRequest) (*GenerateProofResponse, error)
	GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error)
}

type UnimplementedStageServiceServer struct{}

func (UnimplementedStageServiceServer) GenerateProof(context.Context, *GenerateProofRequest) (*GenerateProofResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GenerateProof not implemented")
}
func (UnimplementedStageServiceServer) GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetStatus not implemented")
}

func RegisterStageServiceServer(s grpc.ServiceRegistrar, srv StageServiceServer) {
	s.RegisterService(&stageServiceServiceDesc, srv)
}

func _StageService_GenerateProof_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GenerateProofRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StageServiceServer).GenerateProof(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/zkstage.StageService/GenerateProof"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StageServiceServer).GenerateProof(ctx, req.(*GenerateProofRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _StageService_GetStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StageServiceServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/zkstage.StageService/GetStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StageServiceServer).GetStatus(ctx, req.(*GetStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var stageServiceServiceDesc = grpc.ServiceDesc{
	ServiceName: "zkstage.StageService",
	HandlerType: (*StageServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GenerateProof", Handler: _StageService_GenerateProof_Handler},
		{MethodName: "GetStatus", Handler: _StageService_GetStatus_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stage.proto",
}
