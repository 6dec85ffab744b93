package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/signalsfoundry/p2p-supplicant/internal/logging"
	"github.com/signalsfoundry/p2p-supplicant/model"
)

// Find starts device discovery. Peers already on the medium are reported
// once ResponseDelay has elapsed, peers appearing later are reported as
// they show up. A zero timeout searches until StopFind. Calling Find while
// a search runs restarts it.
func (w *Iface) Find(timeout time.Duration) error {
	w.mu.Lock()
	if w.removed {
		w.mu.Unlock()
		return ErrIfaceNotFound
	}
	if w.pending != nil {
		w.mu.Unlock()
		return ErrBusy
	}
	w.stopFindLocked()
	w.finding = true
	w.discovered = make(map[model.MacAddr]struct{})

	w.findTimers = append(w.findTimers, w.scheduleLocked(w.g.limits.ResponseDelay, w.reportDiscovered))
	if timeout > 0 {
		w.findTimers = append(w.findTimers, w.scheduleLocked(timeout, func() {
			w.mu.Lock()
			if !w.finding {
				w.mu.Unlock()
				return
			}
			w.stopFindLocked()
			ev := w.event(model.EventFindStopped)
			w.mu.Unlock()
			w.g.emit(ev)
		}))
	}
	w.mu.Unlock()

	w.log.Debug(context.Background(), "find started", logging.String("timeout", timeout.String()))
	return nil
}

func (w *Iface) reportDiscovered() {
	if w.g.peers == nil {
		return
	}
	peers := w.g.peers.ListPeers()

	w.mu.Lock()
	if !w.finding {
		w.mu.Unlock()
		return
	}
	events := make([]model.Event, 0, len(peers))
	for _, p := range peers {
		if _, seen := w.discovered[p.Address]; seen {
			continue
		}
		w.discovered[p.Address] = struct{}{}
		ev := w.event(model.EventDeviceFound)
		ev.PeerAddress = p.Address
		ev.Device = p
		events = append(events, ev)
	}
	w.mu.Unlock()

	w.g.emit(events...)
}

// stopFindLocked cancels a running search. It reports whether one was
// running.
func (w *Iface) stopFindLocked() bool {
	was := w.finding
	for _, id := range w.findTimers {
		w.cancelLocked(id)
	}
	w.findTimers = nil
	w.finding = false
	return was
}

// StopFind ends a running search. Stopping when idle is not an error.
func (w *Iface) StopFind() error {
	w.mu.Lock()
	if w.removed {
		w.mu.Unlock()
		return ErrIfaceNotFound
	}
	var out []model.Event
	if w.stopFindLocked() {
		out = append(out, w.event(model.EventFindStopped))
	}
	w.mu.Unlock()

	w.g.post(out...)
	return nil
}

// IsFinding reports whether a search is running.
func (w *Iface) IsFinding() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finding
}

// Flush forgets discovery state: it stops a search, drops the pending
// negotiation, clears the discovered and rejected sets and cancels every
// outstanding service discovery request.
func (w *Iface) Flush() error {
	w.mu.Lock()
	if w.removed {
		w.mu.Unlock()
		return ErrIfaceNotFound
	}
	var out []model.Event
	if w.stopFindLocked() {
		out = append(out, w.event(model.EventFindStopped))
	}
	if w.pending != nil {
		w.cancelLocked(w.pending.timer)
		w.pending = nil
	}
	w.discovered = make(map[model.MacAddr]struct{})
	w.rejected = make(map[model.MacAddr]struct{})
	for id, req := range w.sdRequests {
		w.cancelLocked(req.timer)
		delete(w.sdRequests, id)
	}
	w.mu.Unlock()

	w.g.post(out...)
	w.g.recordCounts()
	return nil
}

// ProvisionDiscovery asks a peer which WPS method it will accept. The
// outcome arrives as EventProvisionDiscoveryCompleted.
func (w *Iface) ProvisionDiscovery(peer model.MacAddr, method model.ProvisionMethod) error {
	if err := w.requirePeer(peer); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		return ErrIfaceNotFound
	}
	w.scheduleLocked(w.g.limits.ResponseDelay, func() {
		ev := w.event(model.EventProvisionDiscoveryCompleted)
		ev.PeerAddress = peer
		if w.g.peers.GetPeer(peer) == nil {
			ev.Status = model.StatusFailInfoUnavailable
			w.g.emit(ev)
			return
		}
		pd := &model.ProvisionDiscovery{ConfigMethods: method.ConfigMethod()}
		if method == model.ProvisionDisplay {
			pin, err := generatePin()
			if err != nil {
				w.warn("pin generation failed", logging.Err(err))
				ev.Status = model.StatusFailInfoUnavailable
			}
			pd.GeneratedPin = pin
		}
		ev.Provision = pd
		w.g.emit(ev)
	})
	return nil
}

// Reject refuses further negotiation with peer. A negotiation in progress
// with that peer is aborted.
func (w *Iface) Reject(peer model.MacAddr) error {
	if err := w.requirePeer(peer); err != nil {
		return err
	}
	w.mu.Lock()
	if w.removed {
		w.mu.Unlock()
		return ErrIfaceNotFound
	}
	w.rejected[peer] = struct{}{}
	var out []model.Event
	if w.pending != nil && w.pending.peer == peer {
		w.cancelLocked(w.pending.timer)
		w.pending = nil
		ev := w.event(model.EventGoNegotiationCompleted)
		ev.PeerAddress = peer
		ev.Status = model.StatusFailRejectedByUser
		out = append(out, ev)
	}
	w.mu.Unlock()

	w.g.post(out...)
	return nil
}

// IsRejected reports whether peer was rejected since the last Flush.
func (w *Iface) IsRejected(peer model.MacAddr) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.rejected[peer]
	return ok
}

// PeerSsid returns the SSID of the group peer currently operates, which is
// empty when it owns none.
func (w *Iface) PeerSsid(peer model.MacAddr) ([]byte, error) {
	p, err := w.lookupPeer(peer)
	if err != nil {
		return nil, err
	}
	return p.OperSSID, nil
}

// PeerGroupCapability returns the group capability bitmask of peer.
func (w *Iface) PeerGroupCapability(peer model.MacAddr) (uint8, error) {
	p, err := w.lookupPeer(peer)
	if err != nil {
		return 0, err
	}
	return p.GroupCapability, nil
}

func (w *Iface) lookupPeer(peer model.MacAddr) (*model.Peer, error) {
	if w.g.peers == nil {
		return nil, fmt.Errorf("%w: %s", ErrPeerNotFound, peer)
	}
	p := w.g.peers.GetPeer(peer)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPeerNotFound, peer)
	}
	return p, nil
}

func (w *Iface) requirePeer(peer model.MacAddr) error {
	_, err := w.lookupPeer(peer)
	return err
}
