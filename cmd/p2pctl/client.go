package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	p2pv1 "github.com/signalsfoundry/p2p-supplicant/api/p2p/v1"
	"github.com/signalsfoundry/p2p-supplicant/internal/rpc"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// clients bundles the two services of one connection.
type clients struct {
	conn  *grpc.ClientConn
	iface *p2pv1.P2PIfaceClient
	mgr   *p2pv1.SupplicantClient
}

func (c *clients) Close() error { return c.conn.Close() }

func dial(addr string) (*clients, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithChainUnaryInterceptor(requestIDInterceptor),
		grpc.WithChainStreamInterceptor(requestIDStreamInterceptor),
	)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return &clients{
		conn:  conn,
		iface: p2pv1.NewP2PIfaceClient(conn),
		mgr:   p2pv1.NewSupplicantClient(conn),
	}, nil
}

// withClients dials addr, runs fn and closes the connection.
func withClients(addr string, fn func(*clients) error) error {
	c, err := dial(addr)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func withRequestID(ctx context.Context) context.Context {
	return metadata.AppendToOutgoingContext(ctx, rpc.RequestIDMetadataKey, uuid.NewString())
}

func requestIDInterceptor(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	return invoker(withRequestID(ctx), method, req, reply, cc, opts...)
}

func requestIDStreamInterceptor(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return streamer(withRequestID(ctx), desc, cc, method, opts...)
}
