package engine

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/signalsfoundry/p2p-supplicant/internal/logging"
	"github.com/signalsfoundry/p2p-supplicant/model"
)

// peerGoIntent is the intent every simulated peer announces. Ties go to
// the local device.
const peerGoIntent = 7

const (
	ssidPrefix       = "DIRECT-"
	passphraseLength = 8
)

// ConnectRequest describes a connection attempt to a peer.
type ConnectRequest struct {
	Peer   model.MacAddr
	Method model.ProvisionMethod
	// Pin is the pre-selected WPS PIN. When empty for a PIN method the
	// engine generates one and returns it.
	Pin        string
	Join       bool
	Persistent bool
	GoIntent   uint32
}

type negotiation struct {
	peer  model.MacAddr
	req   ConnectRequest
	timer string
}

// Connect starts group owner negotiation with a peer, or joins the group
// it already operates when req.Join is set. A running find is stopped.
// For PIN methods without a pre-selected PIN the generated PIN is
// returned.
func (w *Iface) Connect(req ConnectRequest) (string, error) {
	if err := w.requirePeer(req.Peer); err != nil {
		return "", err
	}

	pin := req.Pin
	if req.Method != model.ProvisionPBC && pin == "" {
		generated, err := generatePin()
		if err != nil {
			return "", fmt.Errorf("generate pin: %w", err)
		}
		pin = generated
	}

	w.mu.Lock()
	if w.removed {
		w.mu.Unlock()
		return "", ErrIfaceNotFound
	}
	if w.pending != nil {
		w.mu.Unlock()
		return "", ErrBusy
	}
	var out []model.Event
	if w.stopFindLocked() {
		out = append(out, w.event(model.EventFindStopped))
	}
	delete(w.rejected, req.Peer)

	n := &negotiation{peer: req.Peer, req: req}
	n.timer = w.scheduleLocked(w.g.limits.ResponseDelay, func() { w.completeNegotiation(n) })
	w.pending = n
	w.mu.Unlock()

	w.log.Info(context.Background(), "connect started",
		logging.Peer(req.Peer),
		logging.String("method", req.Method.String()),
		logging.Bool("join", req.Join),
	)
	w.g.post(out...)

	if req.Method == model.ProvisionPBC || req.Pin != "" {
		return "", nil
	}
	return pin, nil
}

func (w *Iface) completeNegotiation(n *negotiation) {
	peer := w.g.peers.GetPeer(n.peer)

	w.mu.Lock()
	if w.pending != n {
		w.mu.Unlock()
		return
	}
	w.pending = nil

	var out []model.Event
	switch {
	case peer == nil:
		ev := w.event(model.EventGoNegotiationCompleted)
		ev.PeerAddress = n.peer
		ev.Status = model.StatusFailInfoUnavailable
		fail := w.event(model.EventGroupFormationFailure)
		fail.PeerAddress = n.peer
		fail.Reason = "peer not available"
		out = append(out, ev, fail)

	case n.req.Join && !peer.IsGroupOwner():
		fail := w.event(model.EventGroupFormationFailure)
		fail.PeerAddress = n.peer
		fail.Reason = "peer is not a group owner"
		out = append(out, fail)

	case n.req.Join:
		grp := w.newGroupLocked(false, peer.OperSSID, "", n.peer)
		out = append(out, w.startGroupEventsLocked(grp, n.peer)...)

	default:
		ev := w.event(model.EventGoNegotiationCompleted)
		ev.PeerAddress = n.peer
		ev.Status = model.StatusSuccess
		out = append(out, ev)

		isGO := n.req.GoIntent >= peerGoIntent
		goAddr := n.peer
		if isGO {
			goAddr = w.devAddr
		}
		ssid, pass, err := w.newCredentialsLocked()
		if err != nil {
			fail := w.event(model.EventGroupFormationFailure)
			fail.PeerAddress = n.peer
			fail.Reason = err.Error()
			out = append(out, fail)
			break
		}
		grp := w.newGroupLocked(isGO, ssid, pass, goAddr)
		if n.req.Persistent {
			if prof, err := w.allocNetworkLocked(); err != nil {
				w.warn("persistent profile not stored", logging.Err(err))
			} else {
				fillProfile(prof, grp)
				if isGO {
					prof.ClientList = []model.MacAddr{n.peer}
				}
				grp.Persistent = true
				grp.NetworkID = prof.ID
				added := w.event(model.EventNetworkAdded)
				added.NetworkID = prof.ID
				out = append(out, added)
			}
		}
		out = append(out, w.startGroupEventsLocked(grp, n.peer)...)
	}
	w.mu.Unlock()

	w.g.emit(out...)
	w.g.recordCounts()
}

// startGroupEventsLocked reports formation and start of grp. When the
// local device is GO the peer is reported as an authorized client too.
func (w *Iface) startGroupEventsLocked(grp *model.Group, peer model.MacAddr) []model.Event {
	success := w.event(model.EventGroupFormationSuccess)
	success.PeerAddress = peer
	started := w.event(model.EventGroupStarted)
	started.Group = grp.Clone()
	started.NetworkID = grp.NetworkID
	out := []model.Event{success, started}
	if grp.GroupOwner {
		auth := w.event(model.EventStaAuthorized)
		auth.PeerAddress = peer
		auth.Group = grp.Clone()
		out = append(out, auth)
	}
	return out
}

// CancelConnect aborts the pending negotiation.
func (w *Iface) CancelConnect() error {
	w.mu.Lock()
	if w.removed {
		w.mu.Unlock()
		return ErrIfaceNotFound
	}
	n := w.pending
	if n == nil {
		w.mu.Unlock()
		return ErrNothingPending
	}
	w.cancelLocked(n.timer)
	w.pending = nil
	ev := w.event(model.EventGroupFormationFailure)
	ev.PeerAddress = n.peer
	ev.Reason = "cancelled"
	w.mu.Unlock()

	w.g.post(ev)
	return nil
}

// HasPendingConnect reports whether a negotiation is in progress.
func (w *Iface) HasPendingConnect() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending != nil
}

// AddGroup starts an autonomous group with the local device as owner.
// With persistent set, id selects the stored persistent profile to
// restart, or NetworkIDNone to store a new one. id is ignored otherwise.
func (w *Iface) AddGroup(persistent bool, id model.NetworkID) (*model.Group, error) {
	w.mu.Lock()
	if w.removed {
		w.mu.Unlock()
		return nil, ErrIfaceNotFound
	}

	var out []model.Event
	var grp *model.Group
	switch {
	case persistent && id != model.NetworkIDNone:
		prof, ok := w.networks[id]
		if !ok || !prof.Persistent {
			w.mu.Unlock()
			return nil, fmt.Errorf("%w: %d", ErrNotPersistent, id)
		}
		grp = w.newGroupLocked(true, prof.SSID, prof.Passphrase, w.devAddr)
		grp.Persistent = true
		grp.NetworkID = prof.ID
		prof.Current = true
		prof.GroupOwner = true

	default:
		ssid, pass, err := w.newCredentialsLocked()
		if err != nil {
			w.mu.Unlock()
			return nil, err
		}
		var prof *model.NetworkProfile
		if persistent {
			prof, err = w.allocNetworkLocked()
			if err != nil {
				w.mu.Unlock()
				return nil, err
			}
		}
		grp = w.newGroupLocked(true, ssid, pass, w.devAddr)
		if prof != nil {
			fillProfile(prof, grp)
			grp.Persistent = true
			grp.NetworkID = prof.ID
			added := w.event(model.EventNetworkAdded)
			added.NetworkID = prof.ID
			out = append(out, added)
		}
	}

	started := w.event(model.EventGroupStarted)
	started.Group = grp.Clone()
	started.NetworkID = grp.NetworkID
	out = append(out, started)
	res := grp.Clone()
	w.mu.Unlock()

	w.log.Info(context.Background(), "group added",
		logging.String("group_ifname", res.Ifname),
		logging.Bool("persistent", res.Persistent),
	)
	w.g.post(out...)
	w.g.recordCounts()
	return res, nil
}

// RemoveGroup tears down an active group.
func (w *Iface) RemoveGroup(groupIfname string) error {
	w.mu.Lock()
	if w.removed {
		w.mu.Unlock()
		return ErrIfaceNotFound
	}
	grp, ok := w.groups[groupIfname]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupIfname)
	}
	delete(w.groups, groupIfname)
	if prof, ok := w.networks[grp.NetworkID]; ok {
		prof.Current = false
	}
	ev := w.event(model.EventGroupRemoved)
	ev.Group = grp
	ev.NetworkID = grp.NetworkID
	w.mu.Unlock()

	w.g.post(ev)
	w.g.recordCounts()
	return nil
}

// Invite asks peer to join the group running on groupIfname. The answer
// arrives as EventInvitationResult.
func (w *Iface) Invite(groupIfname string, goDevAddr, peer model.MacAddr) error {
	if err := w.requirePeer(peer); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		return ErrIfaceNotFound
	}
	grp, ok := w.groups[groupIfname]
	if !ok {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupIfname)
	}
	bssid := grp.BSSID
	freq := grp.Frequency

	w.scheduleLocked(w.g.limits.ResponseDelay, func() {
		res := w.event(model.EventInvitationResult)
		res.PeerAddress = peer
		res.Invitation = &model.Invitation{GODeviceAddress: goDevAddr, BSSID: bssid, OperatingFrequency: freq}
		if w.g.peers.GetPeer(peer) == nil {
			res.Status = model.StatusFailInfoUnavailable
			w.g.emit(res)
			return
		}
		res.Status = model.StatusSuccess
		out := []model.Event{res}

		w.mu.Lock()
		if live, ok := w.groups[groupIfname]; ok && live.GroupOwner {
			if prof, ok := w.networks[live.NetworkID]; ok && prof.Persistent {
				prof.ClientList = appendUnique(prof.ClientList, peer)
			}
			auth := w.event(model.EventStaAuthorized)
			auth.PeerAddress = peer
			auth.Group = live.Clone()
			out = append(out, auth)
		}
		w.mu.Unlock()

		w.g.emit(out...)
	})
	return nil
}

// Reinvoke restarts the persistent group id with peer. The invitation
// result and the restarted group are reported asynchronously.
func (w *Iface) Reinvoke(id model.NetworkID, peer model.MacAddr) error {
	if err := w.requirePeer(peer); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		return ErrIfaceNotFound
	}
	if _, err := w.persistentLocked(id); err != nil {
		return fmt.Errorf("%w: %d is not a persistent group", ErrNetworkNotFound, id)
	}

	w.scheduleLocked(w.g.limits.ResponseDelay, func() {
		res := w.event(model.EventInvitationResult)
		res.PeerAddress = peer
		res.NetworkID = id
		if w.g.peers.GetPeer(peer) == nil {
			res.Status = model.StatusFailInfoUnavailable
			w.g.emit(res)
			return
		}

		w.mu.Lock()
		prof, err := w.persistentLocked(id)
		if err != nil {
			w.mu.Unlock()
			res.Status = model.StatusFailInfoUnavailable
			res.Reason = err.Error()
			w.g.emit(res)
			return
		}
		goAddr := peer
		if prof.GroupOwner {
			goAddr = w.devAddr
		}
		grp := w.newGroupLocked(prof.GroupOwner, prof.SSID, prof.Passphrase, goAddr)
		grp.Persistent = true
		grp.NetworkID = prof.ID
		prof.Current = true
		res.Status = model.StatusSuccess
		res.Invitation = &model.Invitation{GODeviceAddress: goAddr, BSSID: grp.BSSID, OperatingFrequency: grp.Frequency}
		started := w.event(model.EventGroupStarted)
		started.Group = grp.Clone()
		started.NetworkID = id
		w.mu.Unlock()

		w.g.emit(res, started)
		w.g.recordCounts()
	})
	return nil
}

// newGroupLocked registers a new active group on the interface.
func (w *Iface) newGroupLocked(isGO bool, ssid []byte, passphrase string, goAddr model.MacAddr) *model.Group {
	ifname := fmt.Sprintf("p2p-%s-%d", w.name, w.groupSeq)
	w.groupSeq++

	bssid := goAddr
	if isGO {
		bssid = w.devAddr
		// The group interface address differs from the device address in
		// the locally administered bit pattern.
		bssid[0] |= 0x04
	}
	grp := &model.Group{
		Ifname:          ifname,
		ParentIfname:    w.name,
		GroupOwner:      isGO,
		SSID:            append([]byte(nil), ssid...),
		Frequency:       channelFrequency(w.listenChannel),
		Passphrase:      passphrase,
		GODeviceAddress: goAddr,
		BSSID:           bssid,
		NetworkID:       model.NetworkIDNone,
		IdleTimeoutSec:  w.groupIdleSec,
		PowerSave:       w.powerSave,
	}
	w.groups[ifname] = grp
	return grp
}

// newCredentialsLocked builds a "DIRECT-xy<postfix>" SSID and a random
// passphrase.
func (w *Iface) newCredentialsLocked() ([]byte, string, error) {
	tag, err := randomString(2)
	if err != nil {
		return nil, "", fmt.Errorf("generate ssid: %w", err)
	}
	pass, err := randomString(passphraseLength)
	if err != nil {
		return nil, "", fmt.Errorf("generate passphrase: %w", err)
	}
	ssid := append([]byte(ssidPrefix+tag), w.ssidPostfix...)
	return ssid, pass, nil
}

func fillProfile(prof *model.NetworkProfile, grp *model.Group) {
	prof.SSID = append([]byte(nil), grp.SSID...)
	prof.BSSID = grp.BSSID
	prof.Passphrase = grp.Passphrase
	prof.Persistent = true
	prof.GroupOwner = grp.GroupOwner
	prof.Current = true
}

func appendUnique(list []model.MacAddr, addr model.MacAddr) []model.MacAddr {
	for _, a := range list {
		if a == addr {
			return list
		}
	}
	return append(list, addr)
}

const credentialAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomString(n int) (string, error) {
	limit := big.NewInt(int64(len(credentialAlphabet)))
	b := make([]byte, n)
	for i := range b {
		v, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = credentialAlphabet[v.Int64()]
	}
	return string(b), nil
}

// generatePin returns a random 8-digit WPS PIN whose last digit is the
// WPS checksum of the first seven.
func generatePin() (string, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(10_000_000))
	if err != nil {
		return "", err
	}
	n := uint32(v.Int64())
	return fmt.Sprintf("%07d%d", n, wpsChecksum(n)), nil
}

// wpsChecksum computes the check digit of a 7-digit WPS PIN.
func wpsChecksum(pin uint32) uint32 {
	var acc uint32
	for pin > 0 {
		acc += 3 * (pin % 10)
		pin /= 10
		acc += pin % 10
		pin /= 10
	}
	return (10 - acc%10) % 10
}

// ValidPinChecksum reports whether an 8-digit PIN carries a valid WPS
// checksum.
func ValidPinChecksum(pin string) bool {
	if len(pin) != 8 {
		return false
	}
	var n uint32
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
		n = n*10 + uint32(c-'0')
	}
	return wpsChecksum(n/10) == n%10
}
