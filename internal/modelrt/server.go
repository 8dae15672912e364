package modelrt

import (
	"context"

	_ "github.com/nadzzz/podsite/internal/jsoncodec" // registers the json codec
	"google.golang.org/grpc"
)

// RegisterServer exposes impl as the podsite.runtime.v1.Runtime service on s.
// It lets in-process runtimes and test doubles speak the same wire protocol
// as the real model runtime.
func RegisterServer(s grpc.ServiceRegistrar, impl Runtime) {
	s.RegisterService(&serviceDesc, impl)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Runtime)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Devices",
			Handler: unary("Devices", func(ctx context.Context, rt Runtime, _ *Empty) (any, error) {
				return rt.Devices(ctx)
			}),
		},
		{
			MethodName: "Load",
			Handler: unary("Load", func(ctx context.Context, rt Runtime, req *LoadRequest) (any, error) {
				return rt.Load(ctx, req)
			}),
		},
		{
			MethodName: "Generate",
			Handler: unary("Generate", func(ctx context.Context, rt Runtime, req *GenerateRequest) (any, error) {
				return rt.Generate(ctx, req)
			}),
		},
		{
			MethodName: "Unload",
			Handler: unary("Unload", func(ctx context.Context, rt Runtime, _ *Empty) (any, error) {
				return &Empty{}, rt.Unload(ctx)
			}),
		},
		{
			MethodName: "EmptyCache",
			Handler: unary("EmptyCache", func(ctx context.Context, rt Runtime, req *EmptyCacheRequest) (any, error) {
				return &Empty{}, rt.EmptyCache(ctx, req.Device)
			}),
		},
	},
	Metadata: "podsite/runtime/v1/runtime.json",
}

// methodHandler is the signature grpc.MethodDesc expects of Handler.
type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

// unary adapts a typed call into a method handler.
func unary[Req any](method string, call func(context.Context, Runtime, *Req) (any, error)) methodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		rt := srv.(Runtime)
		if interceptor == nil {
			return call(ctx, rt, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		return interceptor(ctx, req, info, func(ctx context.Context, r any) (any, error) {
			return call(ctx, rt, r.(*Req))
		})
	}
}
