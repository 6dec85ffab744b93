package p2p

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/signalsfoundry/p2p-supplicant/internal/engine"
	"github.com/signalsfoundry/p2p-supplicant/model"
)

// Network is the handle for one network profile of an interface. It stays
// usable until the profile is removed or the facade is invalidated, after
// which every call returns ErrNetworkInvalid.
type Network struct {
	iface *Iface
	id    model.NetworkID
	valid atomic.Bool
}

func newNetwork(f *Iface, id model.NetworkID) *Network {
	n := &Network{iface: f, id: id}
	n.valid.Store(true)
	return n
}

func (n *Network) invalidate() { n.valid.Store(false) }

// IsValid reports whether the handle still refers to a live profile.
func (n *Network) IsValid() bool { return n.valid.Load() && n.iface.IsValid() }

// ID returns the network id.
func (n *Network) ID() model.NetworkID { return n.id }

// InterfaceName returns the name of the owning interface.
func (n *Network) InterfaceName(ctx context.Context) (string, error) {
	if !n.IsValid() {
		return "", ErrNetworkInvalid
	}
	return n.iface.ifname, nil
}

// Type returns the type of the owning interface.
func (n *Network) Type(ctx context.Context) (model.IfaceType, error) {
	if !n.IsValid() {
		return 0, ErrNetworkInvalid
	}
	return model.IfaceTypeP2P, nil
}

// Info returns a copy of the profile.
func (n *Network) Info(ctx context.Context) (*model.NetworkProfile, error) {
	return networkCall(ctx, n, "network.info", func(w *engine.Iface) (*model.NetworkProfile, error) {
		return w.GetNetwork(n.id)
	})
}

// Ssid returns the SSID of the profile.
func (n *Network) Ssid(ctx context.Context) ([]byte, error) {
	p, err := n.Info(ctx)
	if err != nil {
		return nil, err
	}
	return p.SSID, nil
}

// Bssid returns the BSSID of the profile.
func (n *Network) Bssid(ctx context.Context) (model.MacAddr, error) {
	p, err := n.Info(ctx)
	if err != nil {
		return model.ZeroMacAddr, err
	}
	return p.BSSID, nil
}

// IsCurrent reports whether a group built from this profile is active.
func (n *Network) IsCurrent(ctx context.Context) (bool, error) {
	p, err := n.Info(ctx)
	if err != nil {
		return false, err
	}
	return p.Current, nil
}

// IsPersistent reports whether the profile is a persistent group.
func (n *Network) IsPersistent(ctx context.Context) (bool, error) {
	p, err := n.Info(ctx)
	if err != nil {
		return false, err
	}
	return p.Persistent, nil
}

// IsGroupOwner reports whether this device owned the group.
func (n *Network) IsGroupOwner(ctx context.Context) (bool, error) {
	p, err := n.Info(ctx)
	if err != nil {
		return false, err
	}
	return p.GroupOwner, nil
}

// ClientList returns the stored clients of a persistent group.
func (n *Network) ClientList(ctx context.Context) ([]model.MacAddr, error) {
	p, err := n.Info(ctx)
	if err != nil {
		return nil, err
	}
	return p.ClientList, nil
}

// SetClientList replaces the stored clients of a persistent group. Each
// address must be 6 bytes.
func (n *Network) SetClientList(ctx context.Context, clients [][]byte) error {
	var addrs []model.MacAddr
	_, err := networkCall(ctx, n, "network.setClientList", func(w *engine.Iface) (struct{}, error) {
		return struct{}{}, w.SetNetworkClientList(n.id, addrs)
	}, func() error {
		addrs = make([]model.MacAddr, 0, len(clients))
		for _, c := range clients {
			a, err := parseAddr("client address", c)
			if err != nil {
				return err
			}
			addrs = append(addrs, a)
		}
		return nil
	})
	return err
}

// networkCall runs a handle operation through the owning facade. A
// profile that disappeared from the engine invalidates the handle.
func networkCall[T any](ctx context.Context, n *Network, op string, fn func(*engine.Iface) (T, error), validate ...func() error) (T, error) {
	var zero T
	if !n.valid.Load() {
		return zero, ErrNetworkInvalid
	}
	var check func() error
	if len(validate) > 0 {
		check = validate[0]
	}
	res, err := call(ctx, n.iface, op, check, fn)
	if errors.Is(err, ErrIfaceInvalid) {
		return zero, ErrNetworkInvalid
	}
	if errors.Is(err, engine.ErrNetworkNotFound) {
		n.invalidate()
		n.iface.networks.CompareAndDelete(n.id, n)
		return zero, ErrNetworkInvalid
	}
	return res, err
}
