package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/p2p-supplicant/internal/logging"
	"github.com/signalsfoundry/p2p-supplicant/kb"
	"github.com/signalsfoundry/p2p-supplicant/model"
)

// Defaults applied to a freshly added interface.
const (
	DefaultListenChannel uint32 = 6
	DefaultGroupIdleSec  uint32 = 0
)

// ExtListen is the extended listen timing of an interface. Both values are
// zero while disabled.
type ExtListen struct {
	Enabled    bool
	PeriodMs   uint32
	IntervalMs uint32
}

// Iface is the engine's live state for one P2P interface. Its methods are
// safe for concurrent use; asynchronous outcomes are emitted through the
// owning Global.
type Iface struct {
	g       *Global
	name    string
	devAddr model.MacAddr
	log     logging.Logger

	mu      sync.Mutex
	removed bool
	timers  map[string]struct{}

	networks      map[model.NetworkID]*model.NetworkProfile
	order         []model.NetworkID
	nextNetworkID model.NetworkID
	idsExhausted  bool

	ssidPostfix   []byte
	listenChannel uint32
	listenClass   uint32
	extListen     ExtListen
	groupIdleSec  uint32
	powerSave     bool

	finding    bool
	findTimers []string
	discovered map[model.MacAddr]struct{}

	pending  *negotiation
	rejected map[model.MacAddr]struct{}

	groups   map[string]*model.Group
	groupSeq int

	bonjour map[string][]byte
	upnp    map[model.UpnpService]struct{}

	sdRequests      map[uint64]*ServiceRequest
	nextSDID        uint64
	updateIndicator uint16
}

func newIface(g *Global, name string) *Iface {
	return &Iface{
		g:             g,
		name:          name,
		devAddr:       deviceAddressFor(name),
		log:           g.log.With(logging.Ifname(name)),
		timers:        make(map[string]struct{}),
		networks:      make(map[model.NetworkID]*model.NetworkProfile),
		listenChannel: DefaultListenChannel,
		listenClass:   SocialOperatingClass,
		groupIdleSec:  DefaultGroupIdleSec,
		discovered:    make(map[model.MacAddr]struct{}),
		rejected:      make(map[model.MacAddr]struct{}),
		groups:        make(map[string]*model.Group),
		bonjour:       make(map[string][]byte),
		upnp:          make(map[model.UpnpService]struct{}),
		sdRequests:    make(map[uint64]*ServiceRequest),
		nextSDID:      1,
	}
}

// Name returns the interface name.
func (w *Iface) Name() string { return w.name }

// Type always reports a P2P interface.
func (w *Iface) Type() model.IfaceType { return model.IfaceTypeP2P }

// DeviceAddress returns the P2P device address of the interface.
func (w *Iface) DeviceAddress() model.MacAddr { return w.devAddr }

// EventSeq returns the engine-wide sequence number of the most recently
// generated event.
func (w *Iface) EventSeq() uint64 { return w.g.EventSeq() }

// SetSsidPostfix sets the suffix appended to "DIRECT-xy" when this
// interface creates a group.
func (w *Iface) SetSsidPostfix(postfix []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		return ErrIfaceNotFound
	}
	w.ssidPostfix = append([]byte(nil), postfix...)
	return nil
}

// SetGroupIdle sets the idle timeout applied to groups on this interface.
func (w *Iface) SetGroupIdle(sec uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		return ErrIfaceNotFound
	}
	w.groupIdleSec = sec
	for _, grp := range w.groups {
		grp.IdleTimeoutSec = sec
	}
	return nil
}

// SetPowerSave toggles power save on the groups of this interface.
func (w *Iface) SetPowerSave(enable bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		return ErrIfaceNotFound
	}
	w.powerSave = enable
	for _, grp := range w.groups {
		grp.PowerSave = enable
	}
	return nil
}

// ConfigureExtListen stores extended listen timing. The caller validates
// the values.
func (w *Iface) ConfigureExtListen(cfg ExtListen) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		return ErrIfaceNotFound
	}
	if !cfg.Enabled {
		cfg = ExtListen{}
	}
	w.extListen = cfg
	return nil
}

// ExtListen returns the current extended listen timing.
func (w *Iface) ExtListen() ExtListen {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.extListen
}

// SetListenChannel selects the listen channel, which must appear in the
// channel table.
func (w *Iface) SetListenChannel(channel, operatingClass uint32) error {
	if !w.g.channels.Supports(channel, operatingClass) {
		return fmt.Errorf("%w: channel %d in operating class %d", ErrUnsupportedChannel, channel, operatingClass)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		return ErrIfaceNotFound
	}
	w.listenChannel = channel
	w.listenClass = operatingClass
	return nil
}

// ListenChannel returns the current listen channel and operating class.
func (w *Iface) ListenChannel() (channel, operatingClass uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.listenChannel, w.listenClass
}

// Groups returns copies of the active groups on this interface.
func (w *Iface) Groups() []*model.Group {
	w.mu.Lock()
	defer w.mu.Unlock()
	res := make([]*model.Group, 0, len(w.groups))
	for _, grp := range w.groups {
		res = append(res, grp.Clone())
	}
	return res
}

// scheduleLocked registers f to run after d and tracks the timer so that
// teardown can cancel it. f runs without w.mu held and is skipped once the
// interface is removed. Must be called with w.mu held.
func (w *Iface) scheduleLocked(d time.Duration, f func()) string {
	var id string
	id = w.g.sched.Schedule(w.g.Now().Add(d), func() {
		w.mu.Lock()
		_, live := w.timers[id]
		delete(w.timers, id)
		removed := w.removed
		w.mu.Unlock()
		if !live || removed {
			return
		}
		f()
	})
	w.timers[id] = struct{}{}
	return id
}

// cancelLocked drops a timer registered through scheduleLocked.
func (w *Iface) cancelLocked(id string) {
	if id == "" {
		return
	}
	delete(w.timers, id)
	w.g.sched.Cancel(id)
}

// teardown marks the interface removed and cancels every timer it owns.
func (w *Iface) teardown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removed = true
	for id := range w.timers {
		w.g.sched.Cancel(id)
	}
	w.timers = make(map[string]struct{})
	w.pending = nil
	w.finding = false
	w.findTimers = nil
}

// event stamps a new event for this interface.
func (w *Iface) event(t model.EventType) model.Event {
	return model.Event{Type: t, Ifname: w.name, At: w.g.Now()}
}

func (w *Iface) counts() (networks, groups, sdRequests int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.networks), len(w.groups), len(w.sdRequests)
}

// onPeerEvent reacts to changes in the shared peer table while a find is
// running.
func (w *Iface) onPeerEvent(ev kb.Event) {
	w.mu.Lock()
	if w.removed {
		w.mu.Unlock()
		return
	}
	var out []model.Event
	switch ev.Type {
	case kb.EventPeerUpdated:
		if w.finding {
			w.discovered[ev.Peer.Address] = struct{}{}
			e := w.event(model.EventDeviceFound)
			e.PeerAddress = ev.Peer.Address
			e.Device = ev.Peer.Clone()
			out = append(out, e)
		}
	case kb.EventPeerLost:
		if _, ok := w.discovered[ev.Peer.Address]; ok {
			delete(w.discovered, ev.Peer.Address)
			e := w.event(model.EventDeviceLost)
			e.PeerAddress = ev.Peer.Address
			out = append(out, e)
		}
	}
	w.mu.Unlock()

	w.g.post(out...)
}

func (w *Iface) warn(msg string, fields ...logging.Field) {
	w.log.Warn(context.Background(), msg, fields...)
}
