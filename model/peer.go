package model

// Peer is a P2P device visible on the medium.
type Peer struct {
	Address           MacAddr
	DeviceName        string
	PrimaryDeviceType string // e.g. "10-0050F204-5"
	ConfigMethods     uint16
	DeviceCapability  uint8
	GroupCapability   uint8

	// OperSSID is the SSID of the group the peer currently owns, if any.
	OperSSID []byte

	BonjourServices []BonjourService
	UpnpServices    []UpnpService
}

// IsGroupOwner reports whether the peer currently operates a group.
func (p *Peer) IsGroupOwner() bool {
	return p != nil && p.GroupCapability&GroupCapabilityGroupOwner != 0
}

// Clone returns a deep copy so callers can hold it without sharing
// mutable slices with the peer table.
func (p *Peer) Clone() *Peer {
	if p == nil {
		return nil
	}
	cp := *p
	cp.OperSSID = append([]byte(nil), p.OperSSID...)
	cp.BonjourServices = make([]BonjourService, len(p.BonjourServices))
	for i, s := range p.BonjourServices {
		cp.BonjourServices[i] = BonjourService{
			Query:    append([]byte(nil), s.Query...),
			Response: append([]byte(nil), s.Response...),
		}
	}
	cp.UpnpServices = append([]UpnpService(nil), p.UpnpServices...)
	return &cp
}

// BonjourService is a DNS-SD record pair advertised for service discovery.
type BonjourService struct {
	Query    []byte
	Response []byte
}

// UpnpService is a UPnP service advertised for service discovery.
type UpnpService struct {
	Version uint32
	Name    string
}
