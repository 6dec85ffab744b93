package p2p

import (
	"context"

	"github.com/signalsfoundry/p2p-supplicant/internal/engine"
	"github.com/signalsfoundry/p2p-supplicant/internal/logging"
	"github.com/signalsfoundry/p2p-supplicant/model"
)

// AddNetwork allocates a new network profile and returns its handle.
func (f *Iface) AddNetwork(ctx context.Context) (*Network, error) {
	return call(ctx, f, "addNetwork", nil, func(w *engine.Iface) (*Network, error) {
		prof, err := w.AddNetwork()
		if err != nil {
			return nil, err
		}
		f.log.Debug(ctx, "network added", logging.NetworkID(uint32(prof.ID)))
		return f.handle(prof.ID), nil
	})
}

// RemoveNetwork deletes a profile and invalidates the handle issued for
// it.
func (f *Iface) RemoveNetwork(ctx context.Context, id model.NetworkID) error {
	return exec(ctx, f, "removeNetwork", nil, func(w *engine.Iface) error {
		if err := w.RemoveNetwork(id); err != nil {
			return err
		}
		if h, ok := f.networks.LoadAndDelete(id); ok {
			h.(*Network).invalidate()
		}
		return nil
	})
}

// GetNetwork returns the handle for a live profile. Repeated calls for the
// same live id return the same handle.
func (f *Iface) GetNetwork(ctx context.Context, id model.NetworkID) (*Network, error) {
	return call(ctx, f, "getNetwork", nil, func(w *engine.Iface) (*Network, error) {
		if _, err := w.GetNetwork(id); err != nil {
			return nil, err
		}
		return f.handle(id), nil
	})
}

// ListNetworks returns live profile ids in allocation order.
func (f *Iface) ListNetworks(ctx context.Context) ([]model.NetworkID, error) {
	return call(ctx, f, "listNetworks", nil, func(w *engine.Iface) ([]model.NetworkID, error) {
		return w.ListNetworks()
	})
}

// handle returns the handle issued for id, creating it on first use.
func (f *Iface) handle(id model.NetworkID) *Network {
	n := newNetwork(f, id)
	if existing, loaded := f.networks.LoadOrStore(id, n); loaded {
		return existing.(*Network)
	}
	return n
}
