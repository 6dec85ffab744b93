package p2p

import (
	"context"
	"fmt"
	"time"

	"github.com/signalsfoundry/p2p-supplicant/internal/engine"
	"github.com/signalsfoundry/p2p-supplicant/internal/logging"
	"github.com/signalsfoundry/p2p-supplicant/model"
)

// Input limits enforced before a call reaches the engine.
const (
	// MaxFindTimeoutSec bounds a single discovery run. Zero means "until
	// StopFind".
	MaxFindTimeoutSec = 3600
	// MaxSsidPostfixLen keeps "DIRECT-xy" plus the postfix within the
	// 32-byte SSID limit.
	MaxSsidPostfixLen = 23
	// MaxExtListenMs is the largest extended listen period or interval.
	MaxExtListenMs = 65535
)

// ConnectParams describes a connection attempt.
type ConnectParams struct {
	// PeerAddress is the 6-byte P2P device address of the peer.
	PeerAddress     []byte
	ProvisionMethod model.ProvisionMethod
	// PreSelectedPin is a 4 or 8 digit WPS PIN. Required for KEYPAD,
	// optional for DISPLAY, not allowed for PBC.
	PreSelectedPin    string
	JoinExistingGroup bool
	Persistent        bool
	GoIntent          uint32
}

// call runs one facade operation: validity check, input validation,
// engine resolution, delegation and error translation. Panics are
// recovered and reported as CodeUnknown.
func call[T any](ctx context.Context, f *Iface, op string, validate func() error, fn func(*engine.Iface) (T, error)) (res T, err error) {
	var zero T
	defer func() {
		if r := recover(); r != nil {
			res = zero
			err = newError(CodeUnknown, "%s: internal fault: %v", op, r)
			f.log.Error(ctx, "operation panicked", logging.Op(op), logging.String("panic", fmt.Sprint(r)))
		}
	}()

	if !f.IsValid() {
		return zero, ErrIfaceInvalid
	}
	if validate != nil {
		if err := validate(); err != nil {
			f.log.Debug(ctx, "operation rejected", logging.Op(op), logging.Err(err))
			return zero, err
		}
	}
	w, err := f.retrieveIface()
	if err != nil {
		f.log.Warn(ctx, "interface not resolvable", logging.Op(op))
		return zero, err
	}
	res, err = fn(w)
	if err != nil {
		err = translate(err)
		f.log.Warn(ctx, "engine refused operation", logging.Op(op), logging.Err(err))
		return zero, err
	}
	return res, nil
}

// exec is call for operations without a result.
func exec(ctx context.Context, f *Iface, op string, validate func() error, fn func(*engine.Iface) error) error {
	_, err := call(ctx, f, op, validate, func(w *engine.Iface) (struct{}, error) {
		return struct{}{}, fn(w)
	})
	return err
}

func parseAddr(field string, b []byte) (model.MacAddr, error) {
	addr, err := model.MacAddrFromBytes(b)
	if err != nil {
		return model.ZeroMacAddr, invalidArgument("%s must be 6 bytes, got %d", field, len(b))
	}
	return addr, nil
}

func validMethod(m model.ProvisionMethod) error {
	if !m.Valid() {
		return invalidArgument("unsupported provision method %d", uint32(m))
	}
	return nil
}

func validPin(pin string) error {
	if len(pin) != 4 && len(pin) != 8 {
		return invalidArgument("pin must have 4 or 8 digits")
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return invalidArgument("pin must be numeric")
		}
	}
	return nil
}

// GetDeviceAddress returns the P2P device address of the interface.
func (f *Iface) GetDeviceAddress(ctx context.Context) (model.MacAddr, error) {
	return call(ctx, f, "getDeviceAddress", nil, func(w *engine.Iface) (model.MacAddr, error) {
		return w.DeviceAddress(), nil
	})
}

// Find starts device discovery for timeoutSec seconds; zero searches until
// StopFind.
func (f *Iface) Find(ctx context.Context, timeoutSec uint32) error {
	return exec(ctx, f, "find", func() error {
		if timeoutSec > MaxFindTimeoutSec {
			return invalidArgument("find timeout %ds exceeds %ds", timeoutSec, MaxFindTimeoutSec)
		}
		return nil
	}, func(w *engine.Iface) error {
		return w.Find(time.Duration(timeoutSec) * time.Second)
	})
}

// StopFind ends device discovery.
func (f *Iface) StopFind(ctx context.Context) error {
	return exec(ctx, f, "stopFind", nil, func(w *engine.Iface) error { return w.StopFind() })
}

// Flush clears discovery state, the pending connection and outstanding
// service discovery requests.
func (f *Iface) Flush(ctx context.Context) error {
	return exec(ctx, f, "flush", nil, func(w *engine.Iface) error { return w.Flush() })
}

// Connect starts a connection with a peer. For PIN methods without a
// pre-selected PIN the generated PIN is returned; otherwise the result is
// empty.
func (f *Iface) Connect(ctx context.Context, p ConnectParams) ([]byte, error) {
	var peer model.MacAddr
	return call(ctx, f, "connect", func() error {
		var err error
		if peer, err = parseAddr("peer address", p.PeerAddress); err != nil {
			return err
		}
		if err := validMethod(p.ProvisionMethod); err != nil {
			return err
		}
		if p.GoIntent > model.MaxGoIntent {
			return invalidArgument("go intent %d exceeds %d", p.GoIntent, model.MaxGoIntent)
		}
		switch {
		case p.ProvisionMethod == model.ProvisionPBC && p.PreSelectedPin != "":
			return invalidArgument("pin not used with PBC")
		case p.ProvisionMethod == model.ProvisionKeypad && p.PreSelectedPin == "":
			return invalidArgument("keypad provisioning needs a pin")
		case p.PreSelectedPin != "":
			return validPin(p.PreSelectedPin)
		}
		return nil
	}, func(w *engine.Iface) ([]byte, error) {
		pin, err := w.Connect(engine.ConnectRequest{
			Peer:       peer,
			Method:     p.ProvisionMethod,
			Pin:        p.PreSelectedPin,
			Join:       p.JoinExistingGroup,
			Persistent: p.Persistent,
			GoIntent:   p.GoIntent,
		})
		if err != nil {
			return nil, err
		}
		if pin == "" {
			return []byte{}, nil
		}
		return []byte(pin), nil
	})
}

// CancelConnect aborts the pending connection.
func (f *Iface) CancelConnect(ctx context.Context) error {
	return exec(ctx, f, "cancelConnect", nil, func(w *engine.Iface) error { return w.CancelConnect() })
}

// ProvisionDiscovery asks peer which provisioning method it accepts.
func (f *Iface) ProvisionDiscovery(ctx context.Context, peerAddr []byte, method model.ProvisionMethod) error {
	var peer model.MacAddr
	return exec(ctx, f, "provisionDiscovery", func() error {
		var err error
		if peer, err = parseAddr("peer address", peerAddr); err != nil {
			return err
		}
		return validMethod(method)
	}, func(w *engine.Iface) error {
		return w.ProvisionDiscovery(peer, method)
	})
}

// AddGroup starts an autonomous group. When persistent is set, id names
// the persistent profile to restart, or model.NetworkIDNone for a new one.
func (f *Iface) AddGroup(ctx context.Context, persistent bool, id model.NetworkID) error {
	return exec(ctx, f, "addGroup", nil, func(w *engine.Iface) error {
		_, err := w.AddGroup(persistent, id)
		return err
	})
}

// RemoveGroup tears down the group running on groupIfname.
func (f *Iface) RemoveGroup(ctx context.Context, groupIfname string) error {
	return exec(ctx, f, "removeGroup", func() error {
		if groupIfname == "" {
			return invalidArgument("group ifname is empty")
		}
		return nil
	}, func(w *engine.Iface) error {
		return w.RemoveGroup(groupIfname)
	})
}

// Reject refuses connection attempts from peer.
func (f *Iface) Reject(ctx context.Context, peerAddr []byte) error {
	var peer model.MacAddr
	return exec(ctx, f, "reject", func() error {
		var err error
		peer, err = parseAddr("peer address", peerAddr)
		return err
	}, func(w *engine.Iface) error {
		return w.Reject(peer)
	})
}

// Invite asks peer to join the group on groupIfname owned by goDevAddr.
func (f *Iface) Invite(ctx context.Context, groupIfname string, goDevAddr, peerAddr []byte) error {
	var goAddr, peer model.MacAddr
	return exec(ctx, f, "invite", func() error {
		if groupIfname == "" {
			return invalidArgument("group ifname is empty")
		}
		var err error
		if goAddr, err = parseAddr("go device address", goDevAddr); err != nil {
			return err
		}
		peer, err = parseAddr("peer address", peerAddr)
		return err
	}, func(w *engine.Iface) error {
		return w.Invite(groupIfname, goAddr, peer)
	})
}

// Reinvoke restarts persistent group id with peer.
func (f *Iface) Reinvoke(ctx context.Context, id model.NetworkID, peerAddr []byte) error {
	var peer model.MacAddr
	return exec(ctx, f, "reinvoke", func() error {
		var err error
		peer, err = parseAddr("peer address", peerAddr)
		return err
	}, func(w *engine.Iface) error {
		return w.Reinvoke(id, peer)
	})
}

// ConfigureExtListen enables extended listen with the given timing, or
// disables it when enable is false (both values must then be zero).
func (f *Iface) ConfigureExtListen(ctx context.Context, enable bool, periodMs, intervalMs uint32) error {
	return exec(ctx, f, "configureExtListen", func() error {
		if !enable {
			if periodMs != 0 || intervalMs != 0 {
				return invalidArgument("period and interval must be zero when disabling")
			}
			return nil
		}
		if periodMs == 0 || periodMs > intervalMs || intervalMs > MaxExtListenMs {
			return invalidArgument("need 0 < period (%d) <= interval (%d) <= %d", periodMs, intervalMs, MaxExtListenMs)
		}
		return nil
	}, func(w *engine.Iface) error {
		return w.ConfigureExtListen(engine.ExtListen{Enabled: enable, PeriodMs: periodMs, IntervalMs: intervalMs})
	})
}

// SetListenChannel selects the listen channel.
func (f *Iface) SetListenChannel(ctx context.Context, channel, operatingClass uint32) error {
	return exec(ctx, f, "setListenChannel", nil, func(w *engine.Iface) error {
		return w.SetListenChannel(channel, operatingClass)
	})
}

// GetSsid returns the SSID of the group peer operates, empty if none.
func (f *Iface) GetSsid(ctx context.Context, peerAddr []byte) ([]byte, error) {
	var peer model.MacAddr
	return call(ctx, f, "getSsid", func() error {
		var err error
		peer, err = parseAddr("peer address", peerAddr)
		return err
	}, func(w *engine.Iface) ([]byte, error) {
		return w.PeerSsid(peer)
	})
}

// GetGroupCapability returns the group capability bitmask of peer.
func (f *Iface) GetGroupCapability(ctx context.Context, peerAddr []byte) (uint32, error) {
	var peer model.MacAddr
	return call(ctx, f, "getGroupCapability", func() error {
		var err error
		peer, err = parseAddr("peer address", peerAddr)
		return err
	}, func(w *engine.Iface) (uint32, error) {
		capab, err := w.PeerGroupCapability(peer)
		return uint32(capab), err
	})
}

// SetSsidPostfix sets the suffix of SSIDs for groups this interface
// creates.
func (f *Iface) SetSsidPostfix(ctx context.Context, postfix []byte) error {
	return exec(ctx, f, "setSsidPostfix", func() error {
		if len(postfix) > MaxSsidPostfixLen {
			return invalidArgument("ssid postfix longer than %d bytes", MaxSsidPostfixLen)
		}
		return nil
	}, func(w *engine.Iface) error {
		return w.SetSsidPostfix(postfix)
	})
}

// SetGroupIdle sets the group idle timeout in seconds.
func (f *Iface) SetGroupIdle(ctx context.Context, timeoutSec uint32) error {
	return exec(ctx, f, "setGroupIdle", nil, func(w *engine.Iface) error {
		return w.SetGroupIdle(timeoutSec)
	})
}

// SetPowerSave toggles power save on the interface's groups.
func (f *Iface) SetPowerSave(ctx context.Context, enable bool) error {
	return exec(ctx, f, "setPowerSave", nil, func(w *engine.Iface) error {
		return w.SetPowerSave(enable)
	})
}
