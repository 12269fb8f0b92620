package advisord

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/perotf-lab/expadvisor/pkg/logger"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "expadvisor.v1.Advisor"

const suggestMethod = "/" + ServiceName + "/Suggest"

// AdvisorServer is the server API. Requests and responses are JSON-shaped
// structs with the same fields as the HTTP API.
type AdvisorServer interface {
	Suggest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// AdvisorServiceDesc describes the service for grpc.Server registration
var AdvisorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdvisorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Suggest", Handler: suggestHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "expadvisor/v1/advisor.proto",
}

func suggestHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdvisorServer).Suggest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: suggestMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AdvisorServer).Suggest(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterAdvisorServer registers srv and marks it serving on hs when non-nil
func RegisterAdvisorServer(s grpc.ServiceRegistrar, srv AdvisorServer, hs *health.Server) {
	s.RegisterService(&AdvisorServiceDesc, srv)
	if hs != nil {
		hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	}
}

// AdvisorClient calls the service
type AdvisorClient struct {
	cc grpc.ClientConnInterface
}

// NewAdvisorClient wraps a connection
func NewAdvisorClient(cc grpc.ClientConnInterface) *AdvisorClient {
	return &AdvisorClient{cc: cc}
}

// Suggest invokes the Suggest method
func (c *AdvisorClient) Suggest(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, suggestMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RecoveryInterceptor turns a handler panic into an Internal status so one
// request cannot take the server down
func RecoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("gRPC handler panicked", "method", info.FullMethod, "panic", fmt.Sprint(r))
			resp, err = nil, status.Errorf(codes.Internal, "internal error in %s", info.FullMethod)
		}
	}()
	return handler(ctx, req)
}

// GRPCServer implements AdvisorServer on top of a Service
type GRPCServer struct {
	service *Service
}

// NewGRPCServer creates the gRPC adapter
func NewGRPCServer(service *Service) *GRPCServer {
	return &GRPCServer{service: service}
}

func (s *GRPCServer) Suggest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	var req SuggestRequest
	if err := convert(in.AsMap(), &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	resp, err := s.service.Suggest(ctx, &req)
	if err != nil {
		return nil, grpcError(err)
	}

	var m map[string]any
	if err := convert(resp, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	logger.Info("suggestions served over gRPC", "batch_id", resp.BatchID)
	return out, nil
}

// convert round-trips v through JSON into out
func convert(v, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func grpcError(err error) error {
	code := codes.Internal
	switch classify(err) {
	case kindInvalid:
		code = codes.InvalidArgument
	case kindUnsatisfiable:
		code = codes.FailedPrecondition
	case kindNotFound:
		code = codes.NotFound
	case kindUnavailable:
		code = codes.Unimplemented
	case kindCanceled:
		code = codes.Canceled
	}
	return status.Error(code, err.Error())
}
