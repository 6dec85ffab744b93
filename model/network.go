package model

// NetworkProfile is a configured P2P network: the credentials of a
// persistent or ephemeral group. The engine owns profiles; callers only
// ever see copies.
type NetworkProfile struct {
	ID NetworkID

	SSID       []byte
	BSSID      MacAddr
	Passphrase string

	// Persistent marks a stored persistent-group credential.
	Persistent bool
	// GroupOwner is true when this device was GO in the group.
	GroupOwner bool
	// Current is true while the group built from this profile is active.
	Current bool

	// ClientList holds the P2P device addresses of clients that joined
	// the persistent group.
	ClientList []MacAddr
}

// Clone returns a deep copy of the profile.
func (n *NetworkProfile) Clone() *NetworkProfile {
	if n == nil {
		return nil
	}
	cp := *n
	cp.SSID = append([]byte(nil), n.SSID...)
	cp.ClientList = append([]MacAddr(nil), n.ClientList...)
	return &cp
}

// Group is an active P2P group hosted on, or joined from, an interface.
type Group struct {
	Ifname       string
	ParentIfname string

	GroupOwner      bool
	SSID            []byte
	Frequency       int
	Passphrase      string
	GODeviceAddress MacAddr
	BSSID           MacAddr

	Persistent bool
	// NetworkID is the backing persistent profile, or NetworkIDNone.
	NetworkID NetworkID

	IdleTimeoutSec uint32
	PowerSave      bool
}

// Clone returns a deep copy of the group.
func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	cp := *g
	cp.SSID = append([]byte(nil), g.SSID...)
	return &cp
}
