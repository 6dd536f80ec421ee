package oracle

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type oracleServiceServer interface {
	Measure(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDeviceInfo(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var oracleServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*oracleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Measure",
			Handler:    measureHandler,
		},
		{
			MethodName: "GetDeviceInfo",
			Handler:    getDeviceInfoHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "oqtopus/nonlocal/v1/oracle.proto",
}

func measureHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(oracleServiceServer).Measure(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: measureMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(oracleServiceServer).Measure(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getDeviceInfoHandler(srv interface{}, ctx context.Context, dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(oracleServiceServer).GetDeviceInfo(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getDeviceInfoMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(oracleServiceServer).GetDeviceInfo(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Server exposes a core.Oracle over gRPC. It is the counterpart of GatewayOracle.
type Server struct {
	backend core.Oracle
	address string
	gs      *grpc.Server

	served   atomic.Int64
	failed   atomic.Int64
	requests metric.Int64Counter
}

// RequestsMetricName counts measure requests by their gRPC status code.
const RequestsMetricName = "oracle.server.requests"

type ServerMetrics struct {
	Served int64
	Failed int64
}

func NewServer(backend core.Oracle, address string, opts ...grpc.ServerOption) *Server {
	s := &Server{
		backend: backend,
		address: address,
		gs:      grpc.NewServer(opts...),
	}
	requests, err := otel.Meter("github.com/oqtopus-team/oqtopus-nonlocal/oracle").Int64Counter(
		RequestsMetricName, metric.WithDescription("measure requests by status code"))
	if err != nil {
		zap.L().Warn(fmt.Sprintf("failed to create %s counter/reason:%s", RequestsMetricName, err))
		requests = noop.Int64Counter{}
	}
	s.requests = requests
	s.gs.RegisterService(&oracleServiceDesc, s)
	return s
}

func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		zap.L().Error(fmt.Sprintf("failed to listen %s/reason:%s", s.address, err))
		return err
	}
	return s.ServeListener(lis)
}

func (s *Server) ServeListener(lis net.Listener) error {
	zap.L().Info(fmt.Sprintf("oracle server is listening on %s", lis.Addr()))
	return s.gs.Serve(lis)
}

func (s *Server) Shutdown() {
	s.gs.GracefulStop()
}

func (s *Server) Metrics() ServerMetrics {
	return ServerMetrics{
		Served: s.served.Load(),
		Failed: s.failed.Load(),
	}
}

func (s *Server) Measure(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	resp, err := s.measure(ctx, req)
	s.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("code", status.Code(err).String())))
	return resp, err
}

func (s *Server) measure(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ms, err := settingFromStruct(req)
	if err != nil {
		s.failed.Add(1)
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	a, err := s.backend.Measure(ctx, ms)
	if err != nil {
		s.failed.Add(1)
		zap.L().Error(fmt.Sprintf("failed to measure %s/reason:%s", ms.ID, err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, status.FromContextError(ctxErr).Err()
		}
		if errors.Is(err, core.ErrOracleUnavailable) {
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	s.served.Add(1)
	return countsToStruct(core.Counts{a.BitString(): 1}, "ok")
}

func (s *Server) GetDeviceInfo(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return deviceInfoToStruct(s.backend.GetDeviceInfo())
}
