package engine

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/signalsfoundry/p2p-supplicant/internal/logging"
	"github.com/signalsfoundry/p2p-supplicant/model"
)

// Service protocol types used in service discovery TLVs.
const (
	ServiceProtocolAll     byte = 0
	ServiceProtocolBonjour byte = 1
	ServiceProtocolUpnp    byte = 2
)

const (
	// MaxTLVPayload is the largest record a response TLV carries: the
	// 16-bit length also covers protocol, transaction id and status.
	MaxTLVPayload = 0xffff - 3
	// MaxUpnpVersion is the largest UPnP version a response TLV encodes.
	MaxUpnpVersion = 0xff
)

// CheckBonjourRecord reports whether a Bonjour record pair fits one
// response TLV.
func CheckBonjourRecord(query, response []byte) error {
	if n := len(query) + len(response); n > MaxTLVPayload {
		return fmt.Errorf("%w: bonjour record is %d bytes, limit %d", ErrInvalidServiceRecord, n, MaxTLVPayload)
	}
	return nil
}

// CheckUpnpRecord reports whether a UPnP service fits one response TLV.
func CheckUpnpRecord(version uint32, name string) error {
	if version > MaxUpnpVersion {
		return fmt.Errorf("%w: upnp version %d exceeds %d", ErrInvalidServiceRecord, version, MaxUpnpVersion)
	}
	if n := 1 + len(name); n > MaxTLVPayload {
		return fmt.Errorf("%w: upnp record is %d bytes, limit %d", ErrInvalidServiceRecord, n, MaxTLVPayload)
	}
	return nil
}

// ServiceRequest is an outstanding service discovery query.
type ServiceRequest struct {
	ID    uint64
	Peer  model.MacAddr
	Query []byte

	timer string
}

// Broadcast reports whether the request targets every peer.
func (r *ServiceRequest) Broadcast() bool { return r.Peer.IsZero() }

// AddBonjourService advertises a Bonjour record pair. Adding an existing
// query replaces its response.
func (w *Iface) AddBonjourService(query, response []byte) error {
	if err := CheckBonjourRecord(query, response); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		return ErrIfaceNotFound
	}
	w.bonjour[hex.EncodeToString(query)] = append([]byte(nil), response...)
	w.updateIndicator++
	return nil
}

// RemoveBonjourService withdraws a Bonjour record.
func (w *Iface) RemoveBonjourService(query []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		return ErrIfaceNotFound
	}
	key := hex.EncodeToString(query)
	if _, ok := w.bonjour[key]; !ok {
		return fmt.Errorf("%w: bonjour %s", ErrServiceNotFound, key)
	}
	delete(w.bonjour, key)
	w.updateIndicator++
	return nil
}

// AddUpnpService advertises a UPnP service.
func (w *Iface) AddUpnpService(version uint32, name string) error {
	if err := CheckUpnpRecord(version, name); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		return ErrIfaceNotFound
	}
	w.upnp[model.UpnpService{Version: version, Name: name}] = struct{}{}
	w.updateIndicator++
	return nil
}

// RemoveUpnpService withdraws a UPnP service.
func (w *Iface) RemoveUpnpService(version uint32, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		return ErrIfaceNotFound
	}
	key := model.UpnpService{Version: version, Name: name}
	if _, ok := w.upnp[key]; !ok {
		return fmt.Errorf("%w: upnp %s", ErrServiceNotFound, name)
	}
	delete(w.upnp, key)
	w.updateIndicator++
	return nil
}

// FlushServices withdraws every local service.
func (w *Iface) FlushServices() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		return ErrIfaceNotFound
	}
	w.bonjour = make(map[string][]byte)
	w.upnp = make(map[model.UpnpService]struct{})
	w.updateIndicator++
	return nil
}

// LocalServiceCount returns how many Bonjour and UPnP services are
// advertised.
func (w *Iface) LocalServiceCount() (bonjour, upnp int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.bonjour), len(w.upnp)
}

// RequestServiceDiscovery queues a service query. A zero peer address
// broadcasts the query: every peer on the medium answers and the request
// stays outstanding until cancelled. A unicast request to a known peer is
// answered once and then completes; one to an unknown peer stays
// outstanding.
func (w *Iface) RequestServiceDiscovery(peer model.MacAddr, query []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		return 0, ErrIfaceNotFound
	}
	if limit := w.g.limits.MaxServiceRequests; limit > 0 && len(w.sdRequests) >= limit {
		return 0, fmt.Errorf("%w: %d outstanding", ErrServiceRequestLimit, limit)
	}

	req := &ServiceRequest{ID: w.nextSDID, Peer: peer, Query: append([]byte(nil), query...)}
	w.nextSDID++
	w.sdRequests[req.ID] = req
	req.timer = w.scheduleLocked(w.g.limits.ResponseDelay, func() { w.answerServiceRequest(req) })
	return req.ID, nil
}

func (w *Iface) answerServiceRequest(req *ServiceRequest) {
	var peers []*model.Peer
	if req.Broadcast() {
		peers = w.g.peers.ListPeers()
	} else if p := w.g.peers.GetPeer(req.Peer); p != nil {
		peers = []*model.Peer{p}
	}

	w.mu.Lock()
	if w.sdRequests[req.ID] != req {
		w.mu.Unlock()
		return
	}
	if !req.Broadcast() && len(peers) > 0 {
		delete(w.sdRequests, req.ID)
	}
	indicator := w.updateIndicator
	w.mu.Unlock()

	var out []model.Event
	for _, p := range peers {
		tlvs, err := answerQuery(p, req.Query)
		if err != nil {
			w.warn("service records left out of response",
				logging.Peer(p.Address), logging.Err(err))
		}
		if len(tlvs) == 0 && req.Broadcast() {
			continue
		}
		ev := w.event(model.EventServiceDiscoveryResponse)
		ev.PeerAddress = p.Address
		ev.ServiceResponse = &model.ServiceResponse{
			RequestID:       req.ID,
			UpdateIndicator: indicator,
			TLVs:            tlvs,
		}
		out = append(out, ev)
	}
	w.g.emit(out...)
	w.g.recordCounts()
}

// CancelServiceDiscovery drops an outstanding request.
func (w *Iface) CancelServiceDiscovery(id uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		return ErrIfaceNotFound
	}
	req, ok := w.sdRequests[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrServiceRequestNotFound, id)
	}
	w.cancelLocked(req.timer)
	delete(w.sdRequests, id)
	return nil
}

// OutstandingServiceRequests returns the ids of requests not yet completed
// or cancelled, in ascending order.
func (w *Iface) OutstandingServiceRequests() []uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]uint64, 0, len(w.sdRequests))
	for id := range w.sdRequests {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// answerQuery builds the response TLVs a peer returns for query. The
// query is a sequence of TLVs: 2-byte little-endian length, protocol type,
// transaction id, then the query data. Each matching service yields a
// response TLV with the same layout plus a status byte. Records that
// cannot be encoded are left out and reported in err.
func answerQuery(p *model.Peer, query []byte) (tlvs []byte, err error) {
	var out bytes.Buffer
	for len(query) >= 4 {
		length := int(binary.LittleEndian.Uint16(query[:2]))
		if length < 2 || len(query) < 2+length {
			break
		}
		proto, txn, data := query[2], query[3], query[4:2+length]
		query = query[2+length:]

		if proto == ServiceProtocolAll || proto == ServiceProtocolBonjour {
			for _, s := range p.BonjourServices {
				if len(data) == 0 || bytes.Equal(data, s.Query) {
					err = multierr.Append(err, writeTLV(&out, ServiceProtocolBonjour, txn, append(append([]byte(nil), s.Query...), s.Response...)))
				}
			}
		}
		if proto == ServiceProtocolAll || proto == ServiceProtocolUpnp {
			for _, s := range p.UpnpServices {
				if len(data) <= 1 || bytes.Contains([]byte(s.Name), data[1:]) {
					if cerr := CheckUpnpRecord(s.Version, s.Name); cerr != nil {
						err = multierr.Append(err, cerr)
						continue
					}
					err = multierr.Append(err, writeTLV(&out, ServiceProtocolUpnp, txn, append([]byte{byte(s.Version)}, s.Name...)))
				}
			}
		}
	}
	return out.Bytes(), err
}

func writeTLV(buf *bytes.Buffer, proto, txn byte, payload []byte) error {
	if len(payload) > MaxTLVPayload {
		return fmt.Errorf("%w: payload is %d bytes, limit %d", ErrInvalidServiceRecord, len(payload), MaxTLVPayload)
	}
	var hdr [2]byte
	// protocol + transaction id + status + payload
	binary.LittleEndian.PutUint16(hdr[:], uint16(3+len(payload)))
	buf.Write(hdr[:])
	buf.WriteByte(proto)
	buf.WriteByte(txn)
	buf.WriteByte(0) // success
	buf.Write(payload)
	return nil
}
