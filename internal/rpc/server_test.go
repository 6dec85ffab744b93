package rpc

import (
	"context"
	"net"
	"testing"
	"time"

	p2pv1 "github.com/signalsfoundry/p2p-supplicant/api/p2p/v1"
	"github.com/signalsfoundry/p2p-supplicant/internal/engine"
	"github.com/signalsfoundry/p2p-supplicant/internal/logging"
	"github.com/signalsfoundry/p2p-supplicant/internal/supplicant"
	"github.com/signalsfoundry/p2p-supplicant/kb"
	"github.com/signalsfoundry/p2p-supplicant/model"
	"github.com/signalsfoundry/p2p-supplicant/timectrl"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const testDelay = 20 * time.Millisecond

var camera = model.MacAddr{0x02, 0x10, 0x20, 0x30, 0x40, 0x50}

type testEnv struct {
	clock *timectrl.TimeController
	root  *engine.Global
	sup   *supplicant.Supplicant

	iface *p2pv1.P2PIfaceClient
	mgr   *p2pv1.SupplicantClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := timectrl.NewTimeController(time.Unix(1_700_000_000, 0), testDelay, timectrl.Accelerated)
	peers, err := kb.NewKnowledgeBase(4)
	if err != nil {
		t.Fatalf("NewKnowledgeBase: %v", err)
	}
	peers.UpsertPeer(&model.Peer{Address: camera, DeviceName: "camera", ConfigMethods: 0x188})

	limits := engine.DefaultLimits()
	limits.ResponseDelay = testDelay
	root := engine.NewGlobal(clock, peers, engine.WithLimits(limits))
	t.Cleanup(root.Close)

	sup := supplicant.New(root)
	t.Cleanup(func() { _ = sup.Close(context.Background()) })

	lis := bufconn.Listen(1 << 20)
	server := NewGRPCServer(sup, logging.Noop(), nil)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &testEnv{
		clock: clock,
		root:  root,
		sup:   sup,
		iface: p2pv1.NewP2PIfaceClient(conn),
		mgr:   p2pv1.NewSupplicantClient(conn),
	}
}

func (e *testEnv) settle() {
	e.root.RunDue()
	e.clock.Advance(testDelay)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func wantStatus(t *testing.T, err error, code codes.Code, reason string) {
	t.Helper()
	if got := status.Code(err); got != code {
		t.Fatalf("code = %v, want %v (err=%v)", got, code, err)
	}
	if reason != "" {
		if got := ReasonOf(err); got != reason {
			t.Fatalf("reason = %q, want %q", got, reason)
		}
	}
}

type eventStream struct {
	events chan *p2pv1.Event
	errc   chan error
}

func receive(stream grpc.ServerStreamingClient[p2pv1.Event]) *eventStream {
	s := &eventStream{events: make(chan *p2pv1.Event, 64), errc: make(chan error, 1)}
	go func() {
		for {
			ev, err := stream.Recv()
			if err != nil {
				s.errc <- err
				return
			}
			s.events <- ev
		}
	}()
	return s
}

// waitFor drives engine time until an event of type typ arrives.
func (s *eventStream) waitFor(t *testing.T, env *testEnv, typ string) *p2pv1.Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-s.events:
			if ev.Type == typ {
				return ev
			}
		case err := <-s.errc:
			t.Fatalf("stream ended waiting for %s: %v", typ, err)
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
		case <-time.After(5 * time.Millisecond):
			env.settle()
		}
	}
}

func (s *eventStream) waitErr(t *testing.T) error {
	t.Helper()
	select {
	case err := <-s.errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("stream did not end")
		return nil
	}
}

func TestServerInterfaceLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := testContext(t)

	info, err := env.mgr.AddInterface(ctx, &p2pv1.IfaceRequest{Ifname: "p2p0"})
	if err != nil {
		t.Fatalf("AddInterface: %v", err)
	}
	if info.Ifname != "p2p0" || info.Type != "P2P" || len(info.DeviceAddress) != 6 || info.HasCallback {
		t.Fatalf("InterfaceInfo = %+v", info)
	}
	_, err = env.mgr.AddInterface(ctx, &p2pv1.IfaceRequest{Ifname: "p2p0"})
	wantStatus(t, err, codes.AlreadyExists, ReasonIfaceExists)
	_, err = env.mgr.AddInterface(ctx, &p2pv1.IfaceRequest{Ifname: "bad/name"})
	wantStatus(t, err, codes.InvalidArgument, "INVALID_ARGUMENT")

	list, err := env.mgr.ListInterfaces(ctx)
	if err != nil || len(list.Interfaces) != 1 || list.Interfaces[0].Ifname != "p2p0" {
		t.Fatalf("ListInterfaces = %+v, %v", list, err)
	}

	name, err := env.iface.GetName(ctx, &p2pv1.IfaceRequest{Ifname: "p2p0"})
	if err != nil || name.Name != "p2p0" {
		t.Fatalf("GetName = %+v, %v", name, err)
	}
	_, err = env.iface.GetName(ctx, &p2pv1.IfaceRequest{Ifname: "wlan9"})
	wantStatus(t, err, codes.NotFound, ReasonIfaceNotManaged)
	_, err = env.iface.GetName(ctx, &p2pv1.IfaceRequest{})
	wantStatus(t, err, codes.InvalidArgument, "INVALID_ARGUMENT")

	if err := env.sup.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_, err = env.mgr.AddInterface(ctx, &p2pv1.IfaceRequest{Ifname: "p2p1"})
	wantStatus(t, err, codes.Unavailable, ReasonClosed)
}

func TestServerNetworks(t *testing.T) {
	env := newTestEnv(t)
	ctx := testContext(t)
	if _, err := env.mgr.AddInterface(ctx, &p2pv1.IfaceRequest{Ifname: "p2p0"}); err != nil {
		t.Fatalf("AddInterface: %v", err)
	}

	nw, err := env.iface.AddNetwork(ctx, &p2pv1.IfaceRequest{Ifname: "p2p0"})
	if err != nil {
		t.Fatalf("AddNetwork: %v", err)
	}
	ids, err := env.iface.ListNetworks(ctx, &p2pv1.IfaceRequest{Ifname: "p2p0"})
	if err != nil || len(ids.NetworkIDs) != 1 || ids.NetworkIDs[0] != nw.NetworkID {
		t.Fatalf("ListNetworks = %+v, %v", ids, err)
	}
	got, err := env.iface.GetNetwork(ctx, &p2pv1.NetworkRequest{Ifname: "p2p0", NetworkID: nw.NetworkID})
	if err != nil || got.NetworkID != nw.NetworkID {
		t.Fatalf("GetNetwork = %+v, %v", got, err)
	}

	_, err = env.iface.GetNetwork(ctx, &p2pv1.NetworkRequest{Ifname: "p2p0", NetworkID: nw.NetworkID + 100})
	wantStatus(t, err, codes.NotFound, "NOT_FOUND")

	if _, err := env.iface.RemoveNetwork(ctx, &p2pv1.NetworkRequest{Ifname: "p2p0", NetworkID: nw.NetworkID}); err != nil {
		t.Fatalf("RemoveNetwork: %v", err)
	}
	_, err = env.iface.RemoveNetwork(ctx, &p2pv1.NetworkRequest{Ifname: "p2p0", NetworkID: nw.NetworkID})
	wantStatus(t, err, codes.NotFound, "NOT_FOUND")
}

func TestServerConnectValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := testContext(t)
	if _, err := env.mgr.AddInterface(ctx, &p2pv1.IfaceRequest{Ifname: "p2p0"}); err != nil {
		t.Fatalf("AddInterface: %v", err)
	}

	_, err := env.iface.Connect(ctx, &p2pv1.ConnectRequest{Ifname: "p2p0", PeerAddress: []byte{1, 2, 3}})
	wantStatus(t, err, codes.InvalidArgument, "INVALID_ARGUMENT")

	_, err = env.iface.Connect(ctx, &p2pv1.ConnectRequest{
		Ifname:          "p2p0",
		PeerAddress:     camera.Bytes(),
		ProvisionMethod: "nfc",
	})
	wantStatus(t, err, codes.InvalidArgument, "INVALID_ARGUMENT")

	_, err = env.iface.CancelConnect(ctx, &p2pv1.IfaceRequest{Ifname: "p2p0"})
	wantStatus(t, err, codes.Aborted, "ENGINE_REJECTED")
}

func TestServerCallbackStream(t *testing.T) {
	env := newTestEnv(t)
	ctx := testContext(t)
	if _, err := env.mgr.AddInterface(ctx, &p2pv1.IfaceRequest{Ifname: "p2p0"}); err != nil {
		t.Fatalf("AddInterface: %v", err)
	}

	first, err := env.iface.RegisterCallback(ctx, &p2pv1.IfaceRequest{Ifname: "p2p0"})
	if err != nil {
		t.Fatalf("RegisterCallback: %v", err)
	}
	md, err := first.Header()
	if err != nil {
		t.Fatalf("Header: %v", err)
	}
	if len(md.Get(CallbackIDMetadataKey)) != 1 {
		t.Fatalf("missing %s header: %v", CallbackIDMetadataKey, md)
	}
	firstEvents := receive(first)

	if _, err := env.iface.Find(ctx, &p2pv1.FindRequest{Ifname: "p2p0"}); err != nil {
		t.Fatalf("Find: %v", err)
	}
	ev := firstEvents.waitFor(t, env, "DEVICE_FOUND")
	if ev.Ifname != "p2p0" || ev.Device == nil || ev.Device.DeviceName != "camera" {
		t.Fatalf("DEVICE_FOUND = %+v", ev)
	}

	second, err := env.iface.RegisterCallback(ctx, &p2pv1.IfaceRequest{Ifname: "p2p0"})
	if err != nil {
		t.Fatalf("second RegisterCallback: %v", err)
	}
	if _, err := second.Header(); err != nil {
		t.Fatalf("second Header: %v", err)
	}
	wantStatus(t, firstEvents.waitErr(t), codes.Aborted, ReasonCallbackReplaced)

	secondEvents := receive(second)
	if _, err := env.mgr.RemoveInterface(ctx, &p2pv1.IfaceRequest{Ifname: "p2p0"}); err != nil {
		t.Fatalf("RemoveInterface: %v", err)
	}
	wantStatus(t, secondEvents.waitErr(t), codes.FailedPrecondition, "IFACE_INVALID")

	_, err = env.mgr.RemoveInterface(ctx, &p2pv1.IfaceRequest{Ifname: "p2p0"})
	wantStatus(t, err, codes.NotFound, ReasonIfaceNotManaged)
}

func TestServerCallbackReleasedOnDisconnect(t *testing.T) {
	env := newTestEnv(t)
	ctx := testContext(t)
	if _, err := env.mgr.AddInterface(ctx, &p2pv1.IfaceRequest{Ifname: "p2p0"}); err != nil {
		t.Fatalf("AddInterface: %v", err)
	}

	hasCallback := func() bool {
		t.Helper()
		resp, err := env.mgr.ListInterfaces(ctx)
		if err != nil || len(resp.Interfaces) != 1 {
			t.Fatalf("ListInterfaces = %+v, %v", resp, err)
		}
		return resp.Interfaces[0].HasCallback
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := env.iface.RegisterCallback(streamCtx, &p2pv1.IfaceRequest{Ifname: "p2p0"})
	if err != nil {
		t.Fatalf("RegisterCallback: %v", err)
	}
	if _, err := stream.Header(); err != nil {
		t.Fatalf("Header: %v", err)
	}
	if !hasCallback() {
		t.Fatalf("callback not registered")
	}

	cancel()
	deadline := time.Now().Add(5 * time.Second)
	for hasCallback() {
		if time.Now().After(deadline) {
			t.Fatalf("callback still registered after the client left")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServerCallbackUnknownInterface(t *testing.T) {
	env := newTestEnv(t)
	ctx := testContext(t)

	stream, err := env.iface.RegisterCallback(ctx, &p2pv1.IfaceRequest{Ifname: "p2p7"})
	if err == nil {
		_, err = stream.Recv()
	}
	wantStatus(t, err, codes.NotFound, ReasonIfaceNotManaged)
}

func TestRequestIDInterceptor(t *testing.T) {
	interceptor := RequestIDUnaryServerInterceptor(logging.Noop())
	info := &grpc.UnaryServerInfo{FullMethod: "/p2p.v1.P2PIface/GetName"}

	var seen string
	handler := func(ctx context.Context, _ interface{}) (interface{}, error) {
		seen = logging.RequestIDFromContext(ctx)
		return nil, nil
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDMetadataKey, "req-42"))
	if _, err := interceptor(ctx, nil, info, handler); err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if seen != "req-42" {
		t.Fatalf("request id = %q, want req-42", seen)
	}

	if _, err := interceptor(context.Background(), nil, info, handler); err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if seen == "" || seen == "req-42" {
		t.Fatalf("expected a generated request id, got %q", seen)
	}
}
