// Package p2p is the control facade for a single Wi-Fi P2P interface. An
// Iface gates every operation on its validity, resolves the live engine
// state by name on each call, translates engine outcomes into a fixed
// error taxonomy and holds the one callback that receives interface
// events.
//
// An Iface expects a single logical caller at a time; the surrounding
// manager serializes calls per interface. Event delivery may run
// concurrently with calls.
package p2p

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/signalsfoundry/p2p-supplicant/internal/engine"
	"github.com/signalsfoundry/p2p-supplicant/internal/logging"
	"github.com/signalsfoundry/p2p-supplicant/model"
)

// Root resolves interface names to live engine state. *engine.Global
// implements it.
type Root interface {
	Lookup(ifname string) (*engine.Iface, bool)
}

// CallbackRecorder observes event delivery outcomes.
type CallbackRecorder interface {
	ObserveCallbackEvent(eventType string, delivered bool)
}

// Option customises an Iface.
type Option func(*Iface)

// WithLogger attaches a structured logger.
func WithLogger(log logging.Logger) Option {
	return func(f *Iface) {
		if log != nil {
			f.log = log
		}
	}
}

// WithCallbackRecorder attaches a recorder for delivered and dropped
// events.
func WithCallbackRecorder(r CallbackRecorder) Option {
	return func(f *Iface) { f.recorder = r }
}

// Iface is the facade for one P2P interface.
type Iface struct {
	root   Root
	ifname string

	log      logging.Logger
	recorder CallbackRecorder

	valid    atomic.Bool
	callback atomic.Pointer[callbackSlot]

	// networks maps model.NetworkID to the *Network handle issued for it.
	networks sync.Map
}

// New constructs a valid facade for ifname. root must outlive the facade.
func New(root Root, ifname string, opts ...Option) *Iface {
	f := &Iface{
		root:   root,
		ifname: ifname,
		log:    logging.Noop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.With(logging.Ifname(ifname))
	f.valid.Store(true)
	return f
}

// Invalidate permanently disables the facade. The registered callback is
// detached and every issued network handle becomes invalid. Calling it
// again has no effect.
func (f *Iface) Invalidate() {
	if !f.valid.CompareAndSwap(true, false) {
		return
	}
	if old := f.callback.Swap(nil); old != nil {
		old.detach(ErrIfaceInvalid)
	}
	f.networks.Range(func(key, value any) bool {
		value.(*Network).invalidate()
		f.networks.Delete(key)
		return true
	})
	f.log.Info(context.Background(), "interface facade invalidated")
}

// IsValid reports whether the facade still accepts operations.
func (f *Iface) IsValid() bool { return f.valid.Load() }

// Ifname returns the interface name without a validity check. It is meant
// for logging and routing, not for callers of the facade contract.
func (f *Iface) Ifname() string { return f.ifname }

// GetName returns the interface name.
func (f *Iface) GetName(ctx context.Context) (string, error) {
	if !f.IsValid() {
		return "", ErrIfaceInvalid
	}
	return f.ifname, nil
}

// GetType returns the interface type, which is always P2P.
func (f *Iface) GetType(ctx context.Context) (model.IfaceType, error) {
	if !f.IsValid() {
		return 0, ErrIfaceInvalid
	}
	return model.IfaceTypeP2P, nil
}
