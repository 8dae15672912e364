// Package grpc implements the gRPC transport for podsite.
//
// The podsite.v1.Podcast service is described by hand and carried with the
// JSON codec, so clients send the same documents as the HTTP API with
// content subtype "json".
package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	_ "github.com/nadzzz/podsite/internal/jsoncodec" // registers the json codec
	"github.com/nadzzz/podsite/internal/message"
	"github.com/nadzzz/podsite/internal/transport"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "podsite.v1.Podcast"

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port   int
	server *grpc.Server
}

var _ transport.Transport = (*Transport)(nil)

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server and routes incoming requests to svc.
func (t *Transport) Listen(ctx context.Context, svc transport.Service) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	t.server = grpc.NewServer()
	Register(t.server, svc)

	slog.Info("grpc transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.server.GracefulStop()
	}()

	return t.server.Serve(lis)
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	if t.server != nil {
		t.server.GracefulStop()
	}
	return nil
}

// Register exposes svc as the podsite.v1.Podcast service on s.
func Register(s grpc.ServiceRegistrar, svc transport.Service) {
	s.RegisterService(&serviceDesc, &podcastServer{svc: svc})
}

// podcastHandler is the method set served under ServiceName.
type podcastHandler interface {
	Generate(context.Context, *message.GenerateRequest) (*message.GenerateResult, error)
	SetReferenceAudio(context.Context, *message.ReferenceAudioRequest) (*message.ReferenceAudioResult, error)
}

type podcastServer struct {
	svc transport.Service
}

// Generate answers with the run result. A run-level failure is reported in
// the result's error field with an OK status, so the written files still
// reach the caller.
func (p *podcastServer) Generate(ctx context.Context, req *message.GenerateRequest) (*message.GenerateResult, error) {
	req.OutputDir = ""
	res, err := p.svc.Generate(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return res, nil
}

func (p *podcastServer) SetReferenceAudio(ctx context.Context, req *message.ReferenceAudioRequest) (*message.ReferenceAudioResult, error) {
	if err := p.svc.SetReferenceAudio(ctx, req.Path); err != nil {
		return nil, toStatus(err)
	}
	return &message.ReferenceAudioResult{Path: req.Path}, nil
}

func toStatus(err error) error {
	var code codes.Code
	switch transport.Classify(err) {
	case transport.KindBusy, transport.KindUnavailable:
		code = codes.Unavailable
	case transport.KindInvalid:
		code = codes.InvalidArgument
	case transport.KindNotFound:
		code = codes.NotFound
	default:
		slog.Error("grpc request failed", "error", err)
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*podcastHandler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Generate", Handler: unary("Generate", (*podcastServer).Generate)},
		{MethodName: "SetReferenceAudio", Handler: unary("SetReferenceAudio", (*podcastServer).SetReferenceAudio)},
	},
	Metadata: "podsite/v1/podcast.json",
}

// methodHandler is the signature grpc.MethodDesc expects of Handler.
type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

func unary[Req, Resp any](method string, call func(*podcastServer, context.Context, *Req) (*Resp, error)) methodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		p := srv.(*podcastServer)
		if interceptor == nil {
			return call(p, ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		return interceptor(ctx, req, info, func(ctx context.Context, r any) (any, error) {
			return call(p, ctx, r.(*Req))
		})
	}
}
