package p2pv1

import (
	"encoding/json"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// The messages mirror p2p.proto and encode with its proto3 JSON mapping:
// byte fields travel as base64, 64-bit integers as decimal strings and
// timestamps as RFC 3339 strings. Addresses are 6-byte P2P device
// addresses.

// IfaceRequest names the interface an RPC targets.
type IfaceRequest struct {
	Ifname string `json:"ifname"`
}

// NameResponse carries an interface name.
type NameResponse struct {
	Name string `json:"name"`
}

// TypeResponse carries an interface type ("P2P").
type TypeResponse struct {
	Type string `json:"type"`
}

// AddressResponse carries a device address.
type AddressResponse struct {
	Address []byte `json:"address"`
}

// NetworkRequest targets one network profile.
type NetworkRequest struct {
	Ifname    string `json:"ifname"`
	NetworkID uint32 `json:"network_id"`
}

// NetworkInfo describes a network profile.
type NetworkInfo struct {
	Ifname     string   `json:"ifname"`
	NetworkID  uint32   `json:"network_id"`
	Ssid       []byte   `json:"ssid,omitempty"`
	Bssid      []byte   `json:"bssid,omitempty"`
	Persistent bool     `json:"persistent"`
	GroupOwner bool     `json:"group_owner"`
	Current    bool     `json:"current"`
	ClientList [][]byte `json:"client_list,omitempty"`
}

// ListNetworksResponse lists live profile ids in allocation order.
type ListNetworksResponse struct {
	NetworkIDs []uint32 `json:"network_ids"`
}

// SetClientListRequest replaces the clients of a persistent profile.
type SetClientListRequest struct {
	Ifname    string   `json:"ifname"`
	NetworkID uint32   `json:"network_id"`
	Clients   [][]byte `json:"clients"`
}

// SsidPostfixRequest sets the group SSID postfix.
type SsidPostfixRequest struct {
	Ifname  string `json:"ifname"`
	Postfix []byte `json:"postfix"`
}

// GroupIdleRequest sets the group idle timeout.
type GroupIdleRequest struct {
	Ifname     string `json:"ifname"`
	TimeoutSec uint32 `json:"timeout_sec"`
}

// PowerSaveRequest toggles power save.
type PowerSaveRequest struct {
	Ifname string `json:"ifname"`
	Enable bool   `json:"enable"`
}

// FindRequest starts discovery. Zero timeout searches until StopFind.
type FindRequest struct {
	Ifname     string `json:"ifname"`
	TimeoutSec uint32 `json:"timeout_sec"`
}

// ConnectRequest starts a connection. ProvisionMethod is one of "PBC",
// "DISPLAY" or "KEYPAD".
type ConnectRequest struct {
	Ifname            string `json:"ifname"`
	PeerAddress       []byte `json:"peer_address"`
	ProvisionMethod   string `json:"provision_method"`
	PreSelectedPin    string `json:"pre_selected_pin,omitempty"`
	JoinExistingGroup bool   `json:"join_existing_group"`
	Persistent        bool   `json:"persistent"`
	GoIntent          uint32 `json:"go_intent"`
}

// ConnectResponse carries the generated PIN, empty when none was
// generated.
type ConnectResponse struct {
	GeneratedPin []byte `json:"generated_pin"`
}

// ProvisionDiscoveryRequest asks a peer for its provisioning method.
type ProvisionDiscoveryRequest struct {
	Ifname          string `json:"ifname"`
	PeerAddress     []byte `json:"peer_address"`
	ProvisionMethod string `json:"provision_method"`
}

// AddGroupRequest starts an autonomous group. NetworkID is only read for
// persistent groups; 0xffffffff asks for a new profile.
type AddGroupRequest struct {
	Ifname     string `json:"ifname"`
	Persistent bool   `json:"persistent"`
	NetworkID  uint32 `json:"network_id"`
}

// GroupRequest names a group interface.
type GroupRequest struct {
	Ifname      string `json:"ifname"`
	GroupIfname string `json:"group_ifname"`
}

// PeerRequest names a peer.
type PeerRequest struct {
	Ifname      string `json:"ifname"`
	PeerAddress []byte `json:"peer_address"`
}

// InviteRequest invites a peer into a running group.
type InviteRequest struct {
	Ifname          string `json:"ifname"`
	GroupIfname     string `json:"group_ifname"`
	GoDeviceAddress []byte `json:"go_device_address"`
	PeerAddress     []byte `json:"peer_address"`
}

// ReinvokeRequest restarts a persistent group with a peer.
type ReinvokeRequest struct {
	Ifname      string `json:"ifname"`
	NetworkID   uint32 `json:"network_id"`
	PeerAddress []byte `json:"peer_address"`
}

// ExtListenRequest configures extended listen timing.
type ExtListenRequest struct {
	Ifname     string `json:"ifname"`
	Enable     bool   `json:"enable"`
	PeriodMs   uint32 `json:"period_ms"`
	IntervalMs uint32 `json:"interval_ms"`
}

// ListenChannelRequest selects the listen channel.
type ListenChannelRequest struct {
	Ifname         string `json:"ifname"`
	Channel        uint32 `json:"channel"`
	OperatingClass uint32 `json:"operating_class"`
}

// SsidResponse carries a peer's group SSID.
type SsidResponse struct {
	Ssid []byte `json:"ssid"`
}

// GroupCapabilityResponse carries a peer's group capability bitmask.
type GroupCapabilityResponse struct {
	Capability uint32 `json:"capability"`
}

// BonjourServiceRequest adds or removes a Bonjour service. Response is
// ignored on removal.
type BonjourServiceRequest struct {
	Ifname   string `json:"ifname"`
	Query    []byte `json:"query"`
	Response []byte `json:"response,omitempty"`
}

// UpnpServiceRequest adds or removes a UPnP service.
type UpnpServiceRequest struct {
	Ifname      string `json:"ifname"`
	Version     uint32 `json:"version"`
	ServiceName string `json:"service_name"`
}

// ServiceDiscoveryRequest sends a query to a peer, or to every peer when
// PeerAddress is all zeros.
type ServiceDiscoveryRequest struct {
	Ifname      string `json:"ifname"`
	PeerAddress []byte `json:"peer_address"`
	Query       []byte `json:"query"`
}

// ServiceDiscoveryID identifies an outstanding service discovery request.
type ServiceDiscoveryID struct {
	Ifname    string `json:"ifname,omitempty"`
	RequestID uint64 `json:"request_id,string"`
}

// Event is one asynchronous interface event. Only the fields relevant to
// Type are set.
type Event struct {
	Type        string                 `json:"type"`
	Ifname      string                 `json:"ifname"`
	At          *timestamppb.Timestamp `json:"at,omitempty"`
	NetworkID   uint32                 `json:"network_id,omitempty"`
	PeerAddress []byte                 `json:"peer_address,omitempty"`
	Status      uint32                 `json:"status,omitempty"`
	Reason      string                 `json:"reason,omitempty"`

	Device          *Device          `json:"device,omitempty"`
	Group           *Group           `json:"group,omitempty"`
	Provision       *Provision       `json:"provision,omitempty"`
	ServiceResponse *ServiceResponse `json:"service_response,omitempty"`
	Invitation      *Invitation      `json:"invitation,omitempty"`
}

// eventFields is Event without its JSON methods.
type eventFields Event

// MarshalJSON encodes At in the JSON form of google.protobuf.Timestamp.
func (e Event) MarshalJSON() ([]byte, error) {
	w := struct {
		eventFields
		At json.RawMessage `json:"at,omitempty"`
	}{eventFields: eventFields(e)}
	if e.At != nil {
		at, err := protojson.Marshal(e.At)
		if err != nil {
			return nil, err
		}
		w.At = at
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts At as an RFC 3339 string.
func (e *Event) UnmarshalJSON(data []byte) error {
	w := struct {
		*eventFields
		At json.RawMessage `json:"at,omitempty"`
	}{eventFields: (*eventFields)(e)}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.At = nil
	if len(w.At) == 0 || string(w.At) == "null" {
		return nil
	}
	e.At = &timestamppb.Timestamp{}
	return protojson.Unmarshal(w.At, e.At)
}

// Device describes a discovered peer.
type Device struct {
	Address           []byte `json:"address"`
	DeviceName        string `json:"device_name"`
	PrimaryDeviceType string `json:"primary_device_type,omitempty"`
	ConfigMethods     uint32 `json:"config_methods"`
	DeviceCapability  uint32 `json:"device_capability"`
	GroupCapability   uint32 `json:"group_capability"`
}

// Group describes a started or removed group.
type Group struct {
	Ifname          string `json:"ifname"`
	GroupOwner      bool   `json:"group_owner"`
	Ssid            []byte `json:"ssid"`
	Frequency       int32  `json:"frequency"`
	Passphrase      string `json:"passphrase,omitempty"`
	GoDeviceAddress []byte `json:"go_device_address"`
	Persistent      bool   `json:"persistent"`
	NetworkID       uint32 `json:"network_id"`
}

// Provision describes a completed provision discovery.
type Provision struct {
	IsRequest     bool   `json:"is_request"`
	ConfigMethods uint32 `json:"config_methods"`
	GeneratedPin  string `json:"generated_pin,omitempty"`
}

// ServiceResponse carries service discovery TLVs.
type ServiceResponse struct {
	RequestID       uint64 `json:"request_id,string"`
	UpdateIndicator uint32 `json:"update_indicator"`
	Tlvs            []byte `json:"tlvs"`
}

// Invitation describes an invitation exchange.
type Invitation struct {
	GoDeviceAddress    []byte `json:"go_device_address"`
	Bssid              []byte `json:"bssid,omitempty"`
	OperatingFrequency int32  `json:"operating_frequency"`
}

// InterfaceInfo describes a managed interface.
type InterfaceInfo struct {
	Ifname        string `json:"ifname"`
	Type          string `json:"type"`
	DeviceAddress []byte `json:"device_address"`
	HasCallback   bool   `json:"has_callback"`
}

// ListInterfacesResponse lists managed interfaces sorted by name.
type ListInterfacesResponse struct {
	Interfaces []*InterfaceInfo `json:"interfaces"`
}
