package p2p

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/p2p-supplicant/internal/engine"
)

// Code classifies the outcome of a facade operation.
type Code int

const (
	CodeSuccess Code = iota
	CodeUnknown
	CodeIfaceInvalid
	CodeIfaceUnknown
	CodeNetworkInvalid
	CodeNotFound
	CodeInvalidArgument
	CodeEngineRejected
	CodeResourceExhausted
)

var codeNames = map[Code]string{
	CodeSuccess:           "SUCCESS",
	CodeUnknown:           "UNKNOWN",
	CodeIfaceInvalid:      "IFACE_INVALID",
	CodeIfaceUnknown:      "IFACE_UNKNOWN",
	CodeNetworkInvalid:    "NETWORK_INVALID",
	CodeNotFound:          "NOT_FOUND",
	CodeInvalidArgument:   "INVALID_ARGUMENT",
	CodeEngineRejected:    "ENGINE_REJECTED",
	CodeResourceExhausted: "RESOURCE_EXHAUSTED",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// Error is the failure type returned by every facade operation. Two errors
// match under errors.Is when their codes are equal, so callers can test
// against the sentinels below.
type Error struct {
	Code    Code
	Message string
	err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.err)
	default:
		return e.Code.String()
	}
}

// Unwrap exposes the engine error, if any.
func (e *Error) Unwrap() error { return e.err }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnknown           = &Error{Code: CodeUnknown}
	ErrIfaceInvalid      = &Error{Code: CodeIfaceInvalid, Message: "iface invalid"}
	ErrIfaceUnknown      = &Error{Code: CodeIfaceUnknown, Message: "iface unknown"}
	ErrNetworkInvalid    = &Error{Code: CodeNetworkInvalid, Message: "network invalid"}
	ErrNotFound          = &Error{Code: CodeNotFound}
	ErrInvalidArgument   = &Error{Code: CodeInvalidArgument}
	ErrEngineRejected    = &Error{Code: CodeEngineRejected}
	ErrResourceExhausted = &Error{Code: CodeResourceExhausted}
)

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func invalidArgument(format string, args ...any) *Error {
	return newError(CodeInvalidArgument, format, args...)
}

// CodeOf returns the code carried by err. A nil error is CodeSuccess and a
// foreign error is CodeUnknown.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// translate maps an engine error onto the facade taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}

	code := CodeUnknown
	switch {
	case errors.Is(err, engine.ErrIfaceNotFound):
		code = CodeIfaceUnknown
	case errors.Is(err, engine.ErrNetworkNotFound),
		errors.Is(err, engine.ErrPeerNotFound),
		errors.Is(err, engine.ErrGroupNotFound),
		errors.Is(err, engine.ErrServiceNotFound),
		errors.Is(err, engine.ErrServiceRequestNotFound):
		code = CodeNotFound
	case errors.Is(err, engine.ErrUnsupportedChannel),
		errors.Is(err, engine.ErrInvalidServiceRecord):
		code = CodeInvalidArgument
	case errors.Is(err, engine.ErrBusy),
		errors.Is(err, engine.ErrNothingPending),
		errors.Is(err, engine.ErrNotPersistent),
		errors.Is(err, engine.ErrIfaceExists):
		code = CodeEngineRejected
	case errors.Is(err, engine.ErrNetworkLimit),
		errors.Is(err, engine.ErrNetworkIDsExhausted),
		errors.Is(err, engine.ErrServiceRequestLimit):
		code = CodeResourceExhausted
	}
	return &Error{Code: code, err: err}
}
