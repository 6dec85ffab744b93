package rpc

import (
	"context"
	"errors"

	"github.com/signalsfoundry/p2p-supplicant/internal/engine"
	"github.com/signalsfoundry/p2p-supplicant/internal/p2p"
	"github.com/signalsfoundry/p2p-supplicant/internal/supplicant"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain is the ErrorInfo domain attached to every mapped status.
const ErrorDomain = "p2p.supplicant"

// Reasons that are not facade codes.
const (
	ReasonCallbackReplaced = "CALLBACK_REPLACED"
	ReasonIfaceExists      = "IFACE_EXISTS"
	ReasonIfaceNotManaged  = "IFACE_NOT_MANAGED"
	ReasonClosed           = "CLOSED"
)

var facadeCodes = map[p2p.Code]codes.Code{
	p2p.CodeIfaceInvalid:      codes.FailedPrecondition,
	p2p.CodeNetworkInvalid:    codes.FailedPrecondition,
	p2p.CodeIfaceUnknown:      codes.NotFound,
	p2p.CodeNotFound:          codes.NotFound,
	p2p.CodeInvalidArgument:   codes.InvalidArgument,
	p2p.CodeEngineRejected:    codes.Aborted,
	p2p.CodeResourceExhausted: codes.ResourceExhausted,
	p2p.CodeUnknown:           codes.Internal,
}

// ToStatusError maps facade, manager and request validation errors onto
// gRPC status codes. Mapped statuses carry an ErrorInfo whose Reason names
// the failure (IFACE_INVALID, NOT_FOUND, CALLBACK_REPLACED, ...).
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var fe *p2p.Error
	switch {
	case errors.Is(err, p2p.ErrCallbackReplaced):
		return withReason(codes.Aborted, ReasonCallbackReplaced, err)
	case errors.As(err, &fe):
		code, ok := facadeCodes[fe.Code]
		if !ok {
			code = codes.Internal
		}
		return withReason(code, fe.Code.String(), err)
	case errors.Is(err, ErrInvalidRequest):
		return withReason(codes.InvalidArgument, p2p.CodeInvalidArgument.String(), err)
	case errors.Is(err, supplicant.ErrIfaceNotFound):
		return withReason(codes.NotFound, ReasonIfaceNotManaged, err)
	case errors.Is(err, supplicant.ErrIfaceExists), errors.Is(err, engine.ErrIfaceExists):
		return withReason(codes.AlreadyExists, ReasonIfaceExists, err)
	case errors.Is(err, supplicant.ErrClosed):
		return withReason(codes.Unavailable, ReasonClosed, err)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func withReason(code codes.Code, reason string, err error) error {
	st := status.New(code, err.Error())
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: reason,
		Domain: ErrorDomain,
	})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// ReasonOf extracts the ErrorInfo reason from a status error, or "".
func ReasonOf(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}
