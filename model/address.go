package model

import (
	"errors"
	"fmt"
	"net"
)

// ErrInvalidMacAddr is returned when a hardware address is not exactly six
// bytes long or cannot be parsed.
var ErrInvalidMacAddr = errors.New("invalid hardware address")

// MacAddr is a 6-byte IEEE 802 hardware address. P2P device addresses,
// interface addresses and BSSIDs all use this type.
type MacAddr [6]byte

// ZeroMacAddr is the all-zero address. Service discovery treats it as a
// broadcast query to every peer.
var ZeroMacAddr MacAddr

// MacAddrFromBytes converts a length-prefixed wire value into a MacAddr.
func MacAddrFromBytes(b []byte) (MacAddr, error) {
	var m MacAddr
	if len(b) != len(m) {
		return m, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidMacAddr, len(b), len(m))
	}
	copy(m[:], b)
	return m, nil
}

// ParseMacAddr parses the colon/hyphen separated textual form.
func ParseMacAddr(s string) (MacAddr, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MacAddr{}, fmt.Errorf("%w: %v", ErrInvalidMacAddr, err)
	}
	return MacAddrFromBytes(hw)
}

// IsZero reports whether m is the all-zero address.
func (m MacAddr) IsZero() bool { return m == ZeroMacAddr }

// Bytes returns a copy of the address as a slice.
func (m MacAddr) Bytes() []byte {
	b := make([]byte, len(m))
	copy(b, m[:])
	return b
}

func (m MacAddr) String() string { return net.HardwareAddr(m[:]).String() }

// MarshalText implements encoding.TextMarshaler so addresses read naturally
// in YAML and JSON configuration.
func (m MacAddr) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MacAddr) UnmarshalText(text []byte) error {
	parsed, err := ParseMacAddr(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
