package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/signalsfoundry/p2p-supplicant/internal/engine"
	"github.com/signalsfoundry/p2p-supplicant/internal/logging"
	"github.com/signalsfoundry/p2p-supplicant/internal/p2p"
	"github.com/signalsfoundry/p2p-supplicant/internal/rpc"
	"github.com/signalsfoundry/p2p-supplicant/internal/supplicant"
	"github.com/signalsfoundry/p2p-supplicant/kb"
	"github.com/signalsfoundry/p2p-supplicant/model"
	"github.com/signalsfoundry/p2p-supplicant/timectrl"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func startServer(t *testing.T) (string, *supplicant.Supplicant) {
	t.Helper()

	clock := timectrl.NewTimeController(time.Now(), 10*time.Millisecond, timectrl.Accelerated)
	peers, err := kb.NewKnowledgeBase(8)
	if err != nil {
		t.Fatalf("NewKnowledgeBase: %v", err)
	}
	root := engine.NewGlobal(clock, peers)
	t.Cleanup(root.Close)

	sup := supplicant.New(root)
	t.Cleanup(func() { _ = sup.Close(context.Background()) })

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	server := rpc.NewGRPCServer(sup, logging.Noop(), nil)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	return lis.Addr().String(), sup
}

func runCLI(t *testing.T, ctx context.Context, addr string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--addr", addr}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestInterfaceAndNetworkCommands(t *testing.T) {
	addr, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out, err := runCLI(t, ctx, addr, "interfaces", "add", "p2p0")
	if err != nil {
		t.Fatalf("interfaces add: %v", err)
	}
	if !strings.HasPrefix(out, "p2p0\tP2P\t") {
		t.Fatalf("interfaces add output = %q", out)
	}

	out, err = runCLI(t, ctx, addr, "ifaces")
	if err != nil || !strings.Contains(out, "p2p0") {
		t.Fatalf("ifaces = %q, %v", out, err)
	}

	out, err = runCLI(t, ctx, addr, "networks", "add", "p2p0")
	if err != nil {
		t.Fatalf("networks add: %v", err)
	}
	id := strings.SplitN(out, "\t", 2)[0]

	out, err = runCLI(t, ctx, addr, "networks", "p2p0")
	if err != nil || !strings.HasPrefix(out, id+"\t") {
		t.Fatalf("networks = %q, %v", out, err)
	}
	if _, err := runCLI(t, ctx, addr, "networks", "remove", "p2p0", id); err != nil {
		t.Fatalf("networks remove: %v", err)
	}
	_, err = runCLI(t, ctx, addr, "networks", "remove", "p2p0", id)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("second remove error = %v, want NotFound", err)
	}

	if _, err := runCLI(t, ctx, addr, "connect", "p2p0", "not-a-mac"); err == nil {
		t.Fatalf("connect with bad address should fail")
	}
	if _, err := runCLI(t, ctx, addr, "interfaces", "remove", "p2p0"); err != nil {
		t.Fatalf("interfaces remove: %v", err)
	}
}

func TestWatchStopsWhenReplaced(t *testing.T) {
	addr, sup := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := sup.AddP2PInterface(ctx, "p2p0"); err != nil {
		t.Fatalf("AddP2PInterface: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := runCLI(t, ctx, addr, "watch", "p2p0")
		errCh <- err
	}()

	// Wait for the watch stream to register, then take over the slot.
	deadline := time.Now().Add(5 * time.Second)
	for {
		f, err := sup.GetP2PInterface("p2p0")
		if err == nil && f.HasCallback() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("watch never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	err := sup.Do(ctx, "p2p0", func(f *p2p.Iface) error {
		return f.RegisterCallback(ctx, p2p.CallbackFunc(func(model.Event) {}))
	})
	if err != nil {
		t.Fatalf("RegisterCallback: %v", err)
	}

	select {
	case err := <-errCh:
		if rpc.ReasonOf(err) != rpc.ReasonCallbackReplaced {
			t.Fatalf("watch error = %v, want CALLBACK_REPLACED", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("watch did not stop after being replaced")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"eof", io.EOF, false},
		{"unavailable", status.Error(codes.Unavailable, "down"), false},
		{"not managed", rpc.ToStatusError(supplicant.ErrIfaceNotFound), false},
		{"iface invalid", rpc.ToStatusError(p2p.ErrIfaceInvalid), false},
		{"replaced", rpc.ToStatusError(p2p.ErrCallbackReplaced), true},
		{"engine rejected", rpc.ToStatusError(p2p.ErrEngineRejected), false},
		{"bad request", status.Error(codes.InvalidArgument, "ifname"), true},
		{"canceled", status.Error(codes.Canceled, "bye"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var perm *backoff.PermanentError
			if got := errors.As(classify(tt.err), &perm); got != tt.permanent {
				t.Fatalf("permanent = %v, want %v", got, tt.permanent)
			}
		})
	}
}
