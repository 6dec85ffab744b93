package p2p

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/signalsfoundry/p2p-supplicant/internal/logging"
	"github.com/signalsfoundry/p2p-supplicant/model"
)

// ErrCallbackReplaced is the detach reason given to a callback displaced
// by a newer registration.
var ErrCallbackReplaced = errors.New("callback replaced")

// Callback receives asynchronous interface events.
type Callback interface {
	OnEvent(ev model.Event)
}

// CallbackFunc adapts a function to Callback.
type CallbackFunc func(model.Event)

// OnEvent calls fn(ev).
func (fn CallbackFunc) OnEvent(ev model.Event) { fn(ev) }

// DetachableCallback is told when it stops receiving events, either
// because another callback replaced it (ErrCallbackReplaced) or because
// the facade was invalidated (ErrIfaceInvalid).
type DetachableCallback interface {
	Callback
	OnDetached(reason error)
}

type callbackSlot struct {
	cb Callback
	// since is the engine event sequence at registration. Events stamped
	// at or below it were generated before the callback existed.
	since uint64
}

func (s *callbackSlot) accepts(ev model.Event) bool {
	return ev.Seq == 0 || ev.Seq > s.since
}

// sameCallback reports whether a and b are the same endpoint. Endpoints of
// uncomparable types (such as CallbackFunc) are never considered equal.
func sameCallback(a, b Callback) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta == nil || ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func (s *callbackSlot) detach(reason error) {
	if d, ok := s.cb.(DetachableCallback); ok {
		d.OnDetached(reason)
	}
}

// RegisterCallback installs cb as the only receiver of interface events,
// replacing any previous one. Events generated before registration are
// dropped, even when the engine has not emitted them yet. Registering the
// current callback again changes nothing.
func (f *Iface) RegisterCallback(ctx context.Context, cb Callback) error {
	if !f.IsValid() {
		return ErrIfaceInvalid
	}
	if cb == nil {
		return invalidArgument("callback is nil")
	}

	if cur := f.callback.Load(); cur != nil && sameCallback(cur.cb, cb) {
		return nil
	}

	slot := &callbackSlot{cb: cb}
	if w, err := f.retrieveIface(); err == nil {
		slot.since = w.EventSeq()
	}
	if old := f.callback.Swap(slot); old != nil {
		f.log.Info(ctx, "callback replaced")
		old.detach(ErrCallbackReplaced)
	}

	// Invalidate may have cleared the slot between the validity check and
	// the swap; never leave a callback attached to an invalid facade.
	if !f.IsValid() {
		if f.callback.CompareAndSwap(slot, nil) {
			slot.detach(ErrIfaceInvalid)
		}
		return ErrIfaceInvalid
	}
	return nil
}

// UnregisterCallback clears the slot if cb is still the registered
// callback and reports whether it was. cb is not notified.
func (f *Iface) UnregisterCallback(ctx context.Context, cb Callback) bool {
	for {
		slot := f.callback.Load()
		if slot == nil || !sameCallback(slot.cb, cb) {
			return false
		}
		if f.callback.CompareAndSwap(slot, nil) {
			f.log.Info(ctx, "callback unregistered")
			return true
		}
	}
}

// HasCallback reports whether a callback is registered.
func (f *Iface) HasCallback() bool { return f.callback.Load() != nil }

// Deliver hands ev to the registered callback. Events arriving while the
// facade is invalid or no callback is registered are dropped. It reports
// whether the event was delivered.
func (f *Iface) Deliver(ev model.Event) (delivered bool) {
	defer func() {
		if r := recover(); r != nil {
			delivered = false
			f.log.Error(context.Background(), "callback panicked",
				logging.String("event", ev.Type.String()),
				logging.String("panic", fmt.Sprint(r)),
			)
		}
		if f.recorder != nil {
			f.recorder.ObserveCallbackEvent(ev.Type.String(), delivered)
		}
	}()

	if !f.IsValid() || ev.Type == model.EventInterfaceRemoved {
		return false
	}
	slot := f.callback.Load()
	if slot == nil {
		f.log.Debug(context.Background(), "event dropped without callback",
			logging.String("event", ev.Type.String()))
		return false
	}
	if !slot.accepts(ev) {
		f.log.Debug(context.Background(), "event predates callback registration",
			logging.String("event", ev.Type.String()))
		return false
	}
	slot.cb.OnEvent(ev)
	return true
}
