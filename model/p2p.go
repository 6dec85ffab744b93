package model

import "math"

// IfaceType identifies the kind of interface a facade controls.
type IfaceType int

const (
	IfaceTypeSta IfaceType = iota
	IfaceTypeP2P
)

func (t IfaceType) String() string {
	switch t {
	case IfaceTypeSta:
		return "STA"
	case IfaceTypeP2P:
		return "P2P"
	default:
		return "UNKNOWN"
	}
}

// ProvisionMethod is the WPS method used to authenticate a new P2P
// connection.
type ProvisionMethod uint32

const (
	ProvisionPBC ProvisionMethod = iota
	ProvisionDisplay
	ProvisionKeypad
)

// Valid reports whether p is one of the recognized variants.
func (p ProvisionMethod) Valid() bool {
	return p <= ProvisionKeypad
}

func (p ProvisionMethod) String() string {
	switch p {
	case ProvisionPBC:
		return "PBC"
	case ProvisionDisplay:
		return "DISPLAY"
	case ProvisionKeypad:
		return "KEYPAD"
	default:
		return "UNKNOWN"
	}
}

// ConfigMethod returns the WPS Config Methods bit advertised for p.
func (p ProvisionMethod) ConfigMethod() uint16 {
	switch p {
	case ProvisionPBC:
		return ConfigMethodPushButton
	case ProvisionDisplay:
		return ConfigMethodDisplay
	case ProvisionKeypad:
		return ConfigMethodKeypad
	default:
		return 0
	}
}

// WPS Config Methods bits.
const (
	ConfigMethodDisplay    uint16 = 0x0008
	ConfigMethodPushButton uint16 = 0x0080
	ConfigMethodKeypad     uint16 = 0x0100
)

// P2P Group Capability bitmask values as carried in the P2P Capability
// attribute.
const (
	GroupCapabilityGroupOwner       uint8 = 1 << 0
	GroupCapabilityPersistentGroup  uint8 = 1 << 1
	GroupCapabilityGroupLimit       uint8 = 1 << 2
	GroupCapabilityIntraBSSDist     uint8 = 1 << 3
	GroupCapabilityCrossConn        uint8 = 1 << 4
	GroupCapabilityPersistentReconn uint8 = 1 << 5
	GroupCapabilityGroupFormation   uint8 = 1 << 6
	GroupCapabilityIPAddrAllocation uint8 = 1 << 7
)

// MaxGoIntent is the highest group-owner intent a device may announce.
const MaxGoIntent = 15

// NetworkID identifies a Network Profile within one interface.
type NetworkID uint32

const (
	// MaxNetworkID is the last id the per-interface allocator hands out.
	MaxNetworkID NetworkID = math.MaxUint32 - 1
	// NetworkIDNone asks AddGroup for a brand new persistent profile.
	NetworkIDNone NetworkID = math.MaxUint32
)
