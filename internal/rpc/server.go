package rpc

import (
	p2pv1 "github.com/signalsfoundry/p2p-supplicant/api/p2p/v1"
	"github.com/signalsfoundry/p2p-supplicant/internal/logging"
	"github.com/signalsfoundry/p2p-supplicant/internal/observability"
	"github.com/signalsfoundry/p2p-supplicant/internal/supplicant"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

// NewGRPCServer builds a gRPC server exposing the P2PIface and Supplicant
// services for sup. collector may be nil, in which case RPC metrics are
// not recorded. Extra options are appended after the defaults.
func NewGRPCServer(sup *supplicant.Supplicant, log logging.Logger, collector *observability.Collector, opts ...grpc.ServerOption) *grpc.Server {
	if log == nil {
		log = logging.Noop()
	}

	unary := []grpc.UnaryServerInterceptor{RequestIDUnaryServerInterceptor(log)}
	stream := []grpc.StreamServerInterceptor{RequestIDStreamServerInterceptor(log)}
	if collector != nil {
		unary = append(unary, collector.UnaryServerInterceptor())
		stream = append(stream, collector.StreamServerInterceptor())
	}
	unary = append(unary, TracingUnaryServerInterceptor())
	stream = append(stream, TracingStreamServerInterceptor())

	serverOpts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	}
	serverOpts = append(serverOpts, opts...)

	server := grpc.NewServer(serverOpts...)
	p2pv1.RegisterP2PIfaceServer(server, NewIfaceService(sup, log))
	p2pv1.RegisterSupplicantServer(server, NewSupplicantService(sup, log))
	return server
}
