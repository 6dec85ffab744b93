package p2p

import (
	"context"

	"github.com/signalsfoundry/p2p-supplicant/internal/engine"
	"github.com/signalsfoundry/p2p-supplicant/model"
)

// AddBonjourService advertises a Bonjour query/response pair.
func (f *Iface) AddBonjourService(ctx context.Context, query, response []byte) error {
	return exec(ctx, f, "addBonjourService", func() error {
		if len(query) == 0 {
			return invalidArgument("bonjour query is empty")
		}
		if err := engine.CheckBonjourRecord(query, response); err != nil {
			return invalidArgument("%v", err)
		}
		return nil
	}, func(w *engine.Iface) error {
		return w.AddBonjourService(query, response)
	})
}

// RemoveBonjourService withdraws a Bonjour service.
func (f *Iface) RemoveBonjourService(ctx context.Context, query []byte) error {
	return exec(ctx, f, "removeBonjourService", func() error {
		if len(query) == 0 {
			return invalidArgument("bonjour query is empty")
		}
		return nil
	}, func(w *engine.Iface) error {
		return w.RemoveBonjourService(query)
	})
}

func validUpnp(version uint32, name string) error {
	if version == 0 {
		return invalidArgument("upnp version is zero")
	}
	if name == "" {
		return invalidArgument("upnp service name is empty")
	}
	if err := engine.CheckUpnpRecord(version, name); err != nil {
		return invalidArgument("%v", err)
	}
	return nil
}

// AddUpnpService advertises a UPnP service.
func (f *Iface) AddUpnpService(ctx context.Context, version uint32, name string) error {
	return exec(ctx, f, "addUpnpService", func() error { return validUpnp(version, name) },
		func(w *engine.Iface) error { return w.AddUpnpService(version, name) })
}

// RemoveUpnpService withdraws a UPnP service.
func (f *Iface) RemoveUpnpService(ctx context.Context, version uint32, name string) error {
	return exec(ctx, f, "removeUpnpService", func() error { return validUpnp(version, name) },
		func(w *engine.Iface) error { return w.RemoveUpnpService(version, name) })
}

// FlushServices withdraws every local service.
func (f *Iface) FlushServices(ctx context.Context) error {
	return exec(ctx, f, "flushServices", nil, func(w *engine.Iface) error { return w.FlushServices() })
}

// RequestServiceDiscovery sends query to peer, or to every peer when the
// address is all zeros, and returns the request identifier. Responses
// arrive as EventServiceDiscoveryResponse.
func (f *Iface) RequestServiceDiscovery(ctx context.Context, peerAddr, query []byte) (uint64, error) {
	var peer model.MacAddr
	return call(ctx, f, "requestServiceDiscovery", func() error {
		var err error
		if peer, err = parseAddr("peer address", peerAddr); err != nil {
			return err
		}
		if len(query) == 0 {
			return invalidArgument("service discovery query is empty")
		}
		return nil
	}, func(w *engine.Iface) (uint64, error) {
		return w.RequestServiceDiscovery(peer, query)
	})
}

// CancelServiceDiscovery cancels an outstanding request.
func (f *Iface) CancelServiceDiscovery(ctx context.Context, id uint64) error {
	return exec(ctx, f, "cancelServiceDiscovery", nil, func(w *engine.Iface) error {
		return w.CancelServiceDiscovery(id)
	})
}
