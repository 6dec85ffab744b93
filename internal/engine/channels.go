package engine

import (
	"fmt"
	"sort"
)

// SocialOperatingClass is the 2.4 GHz operating class that carries the P2P
// social channels.
const SocialOperatingClass = 81

// ChannelTable lists the listen channels the engine accepts, keyed by
// operating class.
type ChannelTable struct {
	classes map[uint32]map[uint32]struct{}
}

// ChannelClass is one operating class with its permitted channels.
type ChannelClass struct {
	OperatingClass uint32   `yaml:"operating_class" json:"operating_class"`
	Channels       []uint32 `yaml:"channels" json:"channels"`
}

// DefaultChannelTable allows the three 2.4 GHz social channels.
func DefaultChannelTable() *ChannelTable {
	t, _ := NewChannelTable([]ChannelClass{{OperatingClass: SocialOperatingClass, Channels: []uint32{1, 6, 11}}})
	return t
}

// NewChannelTable builds a table from class definitions.
func NewChannelTable(classes []ChannelClass) (*ChannelTable, error) {
	t := &ChannelTable{classes: make(map[uint32]map[uint32]struct{}, len(classes))}
	for _, c := range classes {
		if len(c.Channels) == 0 {
			return nil, fmt.Errorf("operating class %d has no channels", c.OperatingClass)
		}
		set, ok := t.classes[c.OperatingClass]
		if !ok {
			set = make(map[uint32]struct{}, len(c.Channels))
			t.classes[c.OperatingClass] = set
		}
		for _, ch := range c.Channels {
			if ch == 0 || ch > 255 {
				return nil, fmt.Errorf("operating class %d: channel %d out of range", c.OperatingClass, ch)
			}
			set[ch] = struct{}{}
		}
	}
	return t, nil
}

// Supports reports whether channel is permitted in operatingClass.
func (t *ChannelTable) Supports(channel, operatingClass uint32) bool {
	if t == nil {
		return false
	}
	set, ok := t.classes[operatingClass]
	if !ok {
		return false
	}
	_, ok = set[channel]
	return ok
}

// Classes returns the table contents sorted by operating class and channel.
func (t *ChannelTable) Classes() []ChannelClass {
	if t == nil {
		return nil
	}
	res := make([]ChannelClass, 0, len(t.classes))
	for class, set := range t.classes {
		c := ChannelClass{OperatingClass: class}
		for ch := range set {
			c.Channels = append(c.Channels, ch)
		}
		sort.Slice(c.Channels, func(i, j int) bool { return c.Channels[i] < c.Channels[j] })
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].OperatingClass < res[j].OperatingClass })
	return res
}

// channelFrequency converts a channel number to its centre frequency in MHz.
func channelFrequency(channel uint32) int {
	switch {
	case channel == 14:
		return 2484
	case channel >= 1 && channel <= 13:
		return 2407 + 5*int(channel)
	case channel >= 32:
		return 5000 + 5*int(channel)
	default:
		return 0
	}
}
