package engine

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/p2p-supplicant/internal/logging"
	"github.com/signalsfoundry/p2p-supplicant/model"
)

// AddNetwork allocates a new, empty network profile. Ids are handed out
// in increasing order and are never reused while the interface lives.
func (w *Iface) AddNetwork() (*model.NetworkProfile, error) {
	w.mu.Lock()
	if w.removed {
		w.mu.Unlock()
		return nil, ErrIfaceNotFound
	}
	n, err := w.allocNetworkLocked()
	if err != nil {
		w.mu.Unlock()
		return nil, err
	}
	ev := w.event(model.EventNetworkAdded)
	ev.NetworkID = n.ID
	w.mu.Unlock()

	w.g.post(ev)
	w.g.recordCounts()
	return n.Clone(), nil
}

func (w *Iface) allocNetworkLocked() (*model.NetworkProfile, error) {
	if limit := w.g.limits.MaxNetworks; limit > 0 && len(w.networks) >= limit {
		return nil, fmt.Errorf("%w: %d profiles", ErrNetworkLimit, limit)
	}
	if w.idsExhausted {
		return nil, ErrNetworkIDsExhausted
	}
	id := w.nextNetworkID
	if id == model.MaxNetworkID {
		w.idsExhausted = true
	} else {
		w.nextNetworkID++
	}

	n := &model.NetworkProfile{ID: id}
	w.networks[id] = n
	w.order = append(w.order, id)
	return n, nil
}

// RemoveNetwork deletes a profile. A group running from it keeps running
// but loses its backing id.
func (w *Iface) RemoveNetwork(id model.NetworkID) error {
	w.mu.Lock()
	if w.removed {
		w.mu.Unlock()
		return ErrIfaceNotFound
	}
	if _, ok := w.networks[id]; !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNetworkNotFound, id)
	}
	delete(w.networks, id)
	for i, v := range w.order {
		if v == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	for _, grp := range w.groups {
		if grp.NetworkID == id {
			grp.NetworkID = model.NetworkIDNone
		}
	}
	ev := w.event(model.EventNetworkRemoved)
	ev.NetworkID = id
	w.mu.Unlock()

	w.log.Debug(context.Background(), "network removed", logging.NetworkID(uint32(id)))
	w.g.post(ev)
	w.g.recordCounts()
	return nil
}

// GetNetwork returns a copy of a live profile.
func (w *Iface) GetNetwork(id model.NetworkID) (*model.NetworkProfile, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		return nil, ErrIfaceNotFound
	}
	n, ok := w.networks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNetworkNotFound, id)
	}
	return n.Clone(), nil
}

// ListNetworks returns live profile ids in allocation order.
func (w *Iface) ListNetworks() ([]model.NetworkID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		return nil, ErrIfaceNotFound
	}
	return append([]model.NetworkID(nil), w.order...), nil
}

// SetNetworkClientList replaces the stored clients of a persistent group.
func (w *Iface) SetNetworkClientList(id model.NetworkID, clients []model.MacAddr) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		return ErrIfaceNotFound
	}
	n, ok := w.networks[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNetworkNotFound, id)
	}
	if !n.Persistent {
		return fmt.Errorf("%w: %d", ErrNotPersistent, id)
	}
	n.ClientList = append([]model.MacAddr(nil), clients...)
	return nil
}

// persistentLocked returns the live persistent profile with the given id.
func (w *Iface) persistentLocked(id model.NetworkID) (*model.NetworkProfile, error) {
	n, ok := w.networks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNetworkNotFound, id)
	}
	if !n.Persistent {
		return nil, fmt.Errorf("%w: %d", ErrNotPersistent, id)
	}
	return n, nil
}
