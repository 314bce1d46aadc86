package adminapi

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName is the gRPC service path component; method paths below are
// "/cuemby.raftcore.adminapi/<Method>".
const serviceName = "cuemby.raftcore.adminapi"

func statusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(StatusRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).Status(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Status"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Service).Status(ctx, req.(*StatusRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func serversHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ServersRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).Servers(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Servers"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Service).Servers(ctx, req.(*ServersRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func applyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ApplyRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).Apply(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Apply"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Service).Apply(ctx, req.(*ApplyRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func addServerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(AddServerRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).AddServer(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/AddServer"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Service).AddServer(ctx, req.(*AddServerRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func removeServerHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(RemoveServerRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).RemoveServer(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/RemoveServer"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Service).RemoveServer(ctx, req.(*RemoveServerRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func promoteHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(PromoteRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Service).Promote(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Promote"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Service).Promote(ctx, req.(*PromoteRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// serviceDesc is hand-written in place of a protoc-generated one: no
// .proto or generated stubs existed in the retrieval pack to regenerate
// faithfully, so the six admin RPCs are registered directly against
// grpc.ServiceDesc, decoded with gobCodec instead of protobuf.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Status", Handler: statusHandler},
		{MethodName: "Servers", Handler: serversHandler},
		{MethodName: "Apply", Handler: applyHandler},
		{MethodName: "AddServer", Handler: addServerHandler},
		{MethodName: "RemoveServer", Handler: removeServerHandler},
		{MethodName: "Promote", Handler: promoteHandler},
	},
}

// Register attaches svc to s under the admin API's service name.
func Register(s *grpc.Server, svc *Service) {
	s.RegisterService(&serviceDesc, svc)
}

// NewGRPCServer builds a *grpc.Server with svc registered. Callers add
// their own transport credentials via opts, following the teacher's
// pkg/api.NewServer pattern of building credentials first and passing
// them in as a grpc.ServerOption.
func NewGRPCServer(svc *Service, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	Register(s, svc)
	return s
}
