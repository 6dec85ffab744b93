package p2p

import "github.com/signalsfoundry/p2p-supplicant/internal/engine"

// retrieveIface resolves the live engine state for this facade. The result
// is only valid for the duration of the current call.
func (f *Iface) retrieveIface() (*engine.Iface, error) {
	if f.root == nil {
		return nil, ErrIfaceUnknown
	}
	w, ok := f.root.Lookup(f.ifname)
	if !ok || w == nil {
		return nil, ErrIfaceUnknown
	}
	return w, nil
}
