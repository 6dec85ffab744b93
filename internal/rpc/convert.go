package rpc

import (
	"fmt"
	"strings"

	p2pv1 "github.com/signalsfoundry/p2p-supplicant/api/p2p/v1"
	"github.com/signalsfoundry/p2p-supplicant/model"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// ParseProvisionMethod accepts "PBC", "DISPLAY" or "KEYPAD" in any case.
// An empty string selects PBC.
func ParseProvisionMethod(s string) (model.ProvisionMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "PBC":
		return model.ProvisionPBC, nil
	case "DISPLAY":
		return model.ProvisionDisplay, nil
	case "KEYPAD":
		return model.ProvisionKeypad, nil
	default:
		return 0, fmt.Errorf("%w: unknown provision method %q", ErrInvalidRequest, s)
	}
}

func macBytes(m model.MacAddr) []byte {
	if m.IsZero() {
		return nil
	}
	return m.Bytes()
}

// EventToProto converts an engine event to its wire form.
func EventToProto(ev model.Event) *p2pv1.Event {
	out := &p2pv1.Event{
		Type:        ev.Type.String(),
		Ifname:      ev.Ifname,
		NetworkID:   uint32(ev.NetworkID),
		PeerAddress: macBytes(ev.PeerAddress),
		Status:      ev.Status,
		Reason:      ev.Reason,
	}
	if !ev.At.IsZero() {
		out.At = timestamppb.New(ev.At)
	}
	if d := ev.Device; d != nil {
		out.Device = &p2pv1.Device{
			Address:           d.Address.Bytes(),
			DeviceName:        d.DeviceName,
			PrimaryDeviceType: d.PrimaryDeviceType,
			ConfigMethods:     uint32(d.ConfigMethods),
			DeviceCapability:  uint32(d.DeviceCapability),
			GroupCapability:   uint32(d.GroupCapability),
		}
	}
	if g := ev.Group; g != nil {
		out.Group = &p2pv1.Group{
			Ifname:          g.Ifname,
			GroupOwner:      g.GroupOwner,
			Ssid:            g.SSID,
			Frequency:       int32(g.Frequency),
			Passphrase:      g.Passphrase,
			GoDeviceAddress: g.GODeviceAddress.Bytes(),
			Persistent:      g.Persistent,
			NetworkID:       uint32(g.NetworkID),
		}
	}
	if p := ev.Provision; p != nil {
		out.Provision = &p2pv1.Provision{
			IsRequest:     p.IsRequest,
			ConfigMethods: uint32(p.ConfigMethods),
			GeneratedPin:  p.GeneratedPin,
		}
	}
	if r := ev.ServiceResponse; r != nil {
		out.ServiceResponse = &p2pv1.ServiceResponse{
			RequestID:       r.RequestID,
			UpdateIndicator: uint32(r.UpdateIndicator),
			Tlvs:            r.TLVs,
		}
	}
	if inv := ev.Invitation; inv != nil {
		out.Invitation = &p2pv1.Invitation{
			GoDeviceAddress:    inv.GODeviceAddress.Bytes(),
			Bssid:              macBytes(inv.BSSID),
			OperatingFrequency: int32(inv.OperatingFrequency),
		}
	}
	return out
}

// NetworkToProto converts a network profile to its wire form.
func NetworkToProto(ifname string, p *model.NetworkProfile) *p2pv1.NetworkInfo {
	out := &p2pv1.NetworkInfo{
		Ifname:     ifname,
		NetworkID:  uint32(p.ID),
		Ssid:       p.SSID,
		Bssid:      macBytes(p.BSSID),
		Persistent: p.Persistent,
		GroupOwner: p.GroupOwner,
		Current:    p.Current,
	}
	for _, c := range p.ClientList {
		out.ClientList = append(out.ClientList, c.Bytes())
	}
	return out
}
