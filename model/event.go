package model

import "time"

// EventType enumerates the asynchronous occurrences an engine reports for
// an interface.
type EventType int

const (
	EventUnknown EventType = iota
	EventNetworkAdded
	EventNetworkRemoved
	EventDeviceFound
	EventDeviceLost
	EventFindStopped
	EventGoNegotiationRequest
	EventGoNegotiationCompleted
	EventGroupFormationSuccess
	EventGroupFormationFailure
	EventGroupStarted
	EventGroupRemoved
	EventInvitationReceived
	EventInvitationResult
	EventProvisionDiscoveryCompleted
	EventServiceDiscoveryResponse
	EventStaAuthorized
	EventStaDeauthorized

	// EventInterfaceRemoved is raised by the engine root when an interface
	// disappears. It is consumed by the interface manager and never
	// forwarded to callbacks.
	EventInterfaceRemoved
)

var eventTypeNames = map[EventType]string{
	EventUnknown:                     "UNKNOWN",
	EventNetworkAdded:                "NETWORK_ADDED",
	EventNetworkRemoved:              "NETWORK_REMOVED",
	EventDeviceFound:                 "DEVICE_FOUND",
	EventDeviceLost:                  "DEVICE_LOST",
	EventFindStopped:                 "FIND_STOPPED",
	EventGoNegotiationRequest:        "GO_NEGOTIATION_REQUEST",
	EventGoNegotiationCompleted:      "GO_NEGOTIATION_COMPLETED",
	EventGroupFormationSuccess:       "GROUP_FORMATION_SUCCESS",
	EventGroupFormationFailure:       "GROUP_FORMATION_FAILURE",
	EventGroupStarted:                "GROUP_STARTED",
	EventGroupRemoved:                "GROUP_REMOVED",
	EventInvitationReceived:          "INVITATION_RECEIVED",
	EventInvitationResult:            "INVITATION_RESULT",
	EventProvisionDiscoveryCompleted: "PROVISION_DISCOVERY_COMPLETED",
	EventServiceDiscoveryResponse:    "SERVICE_DISCOVERY_RESPONSE",
	EventStaAuthorized:               "STA_AUTHORIZED",
	EventStaDeauthorized:             "STA_DEAUTHORIZED",
	EventInterfaceRemoved:            "INTERFACE_REMOVED",
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Status codes carried by negotiation, invitation and provisioning events.
const (
	StatusSuccess             uint32 = 0
	StatusFailInfoUnavailable uint32 = 1
	StatusFailRejectedByUser  uint32 = 11
)

// Event is one asynchronous engine occurrence. Only the fields relevant to
// Type are populated.
type Event struct {
	Type   EventType
	Ifname string
	At     time.Time
	// Seq orders events by the moment the engine generated them. It is
	// assigned once, even when emission is deferred to a later loop pass.
	Seq uint64

	// NetworkID is set for network added/removed and for invitations that
	// reference a persistent group.
	NetworkID NetworkID
	// PeerAddress is the P2P device address of the remote side.
	PeerAddress MacAddr

	Device *Peer
	Group  *Group

	Status uint32
	Reason string

	Provision       *ProvisionDiscovery
	ServiceResponse *ServiceResponse
	Invitation      *Invitation
}

// ProvisionDiscovery describes a completed provision discovery exchange.
type ProvisionDiscovery struct {
	IsRequest     bool
	ConfigMethods uint16
	GeneratedPin  string
}

// ServiceResponse carries the TLVs returned for a service discovery query.
type ServiceResponse struct {
	RequestID       uint64
	UpdateIndicator uint16
	TLVs            []byte
}

// Invitation describes a received invitation or the result of one sent.
type Invitation struct {
	GODeviceAddress    MacAddr
	BSSID              MacAddr
	OperatingFrequency int
}
