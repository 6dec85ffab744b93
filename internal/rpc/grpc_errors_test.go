package rpc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/signalsfoundry/p2p-supplicant/internal/engine"
	"github.com/signalsfoundry/p2p-supplicant/internal/p2p"
	"github.com/signalsfoundry/p2p-supplicant/internal/supplicant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToStatusError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   codes.Code
		reason string
	}{
		{"iface invalid", p2p.ErrIfaceInvalid, codes.FailedPrecondition, "IFACE_INVALID"},
		{"network invalid", p2p.ErrNetworkInvalid, codes.FailedPrecondition, "NETWORK_INVALID"},
		{"iface unknown", p2p.ErrIfaceUnknown, codes.NotFound, "IFACE_UNKNOWN"},
		{"not found", fmt.Errorf("lookup: %w", p2p.ErrNotFound), codes.NotFound, "NOT_FOUND"},
		{"invalid argument", p2p.ErrInvalidArgument, codes.InvalidArgument, "INVALID_ARGUMENT"},
		{"engine rejected", p2p.ErrEngineRejected, codes.Aborted, "ENGINE_REJECTED"},
		{"exhausted", p2p.ErrResourceExhausted, codes.ResourceExhausted, "RESOURCE_EXHAUSTED"},
		{"facade unknown", p2p.ErrUnknown, codes.Internal, "UNKNOWN"},
		{"callback replaced", p2p.ErrCallbackReplaced, codes.Aborted, ReasonCallbackReplaced},
		{"bad request", fmt.Errorf("%w: ifname", ErrInvalidRequest), codes.InvalidArgument, "INVALID_ARGUMENT"},
		{"not managed", supplicant.ErrIfaceNotFound, codes.NotFound, ReasonIfaceNotManaged},
		{"exists", supplicant.ErrIfaceExists, codes.AlreadyExists, ReasonIfaceExists},
		{"engine exists", fmt.Errorf("add p2p0: %w", engine.ErrIfaceExists), codes.AlreadyExists, ReasonIfaceExists},
		{"closed", supplicant.ErrClosed, codes.Unavailable, ReasonClosed},
		{"canceled", context.Canceled, codes.Canceled, ""},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded, ""},
		{"foreign", errors.New("boom"), codes.Internal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ToStatusError(tt.err)
			if got := status.Code(err); got != tt.code {
				t.Fatalf("code = %v, want %v (err=%v)", got, tt.code, err)
			}
			if got := ReasonOf(err); got != tt.reason {
				t.Fatalf("reason = %q, want %q", got, tt.reason)
			}
		})
	}
}

func TestToStatusErrorPassesThrough(t *testing.T) {
	if ToStatusError(nil) != nil {
		t.Fatalf("nil error mapped to non-nil")
	}
	in := status.Error(codes.PermissionDenied, "nope")
	if out := ToStatusError(in); out != in {
		t.Fatalf("existing status was rewrapped: %v", out)
	}
	if ReasonOf(errors.New("plain")) != "" {
		t.Fatalf("ReasonOf(plain) should be empty")
	}
}
