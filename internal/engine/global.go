package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/p2p-supplicant/internal/logging"
	"github.com/signalsfoundry/p2p-supplicant/internal/sched"
	"github.com/signalsfoundry/p2p-supplicant/kb"
	"github.com/signalsfoundry/p2p-supplicant/model"
	"github.com/signalsfoundry/p2p-supplicant/timectrl"
)

// Limits bounds per-interface resources and paces simulated peer replies.
type Limits struct {
	// MaxNetworks caps live network profiles per interface. Zero means
	// unlimited.
	MaxNetworks int
	// MaxServiceRequests caps outstanding service discovery requests per
	// interface. Zero means unlimited.
	MaxServiceRequests int
	// ResponseDelay is how long a simulated peer takes to answer.
	ResponseDelay time.Duration
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxNetworks:        64,
		MaxServiceRequests: 32,
		ResponseDelay:      200 * time.Millisecond,
	}
}

// EngineCounts is a snapshot of engine-wide resource usage.
type EngineCounts struct {
	Interfaces      int
	Networks        int
	Groups          int
	ServiceRequests int
	Peers           int
}

// MetricsRecorder receives count updates after engine mutations.
type MetricsRecorder interface {
	SetEngineCounts(EngineCounts)
}

// Option customises Global construction.
type Option func(*Global)

// WithLogger attaches a structured logger.
func WithLogger(log logging.Logger) Option {
	return func(g *Global) {
		if log != nil {
			g.log = log
		}
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(g *Global) { g.metrics = m }
}

// WithSchedulerObserver reports event loop passes to o.
func WithSchedulerObserver(o sched.Observer) Option {
	return func(g *Global) { g.schedObserver = o }
}

// WithChannelTable replaces the default social-channel table.
func WithChannelTable(t *ChannelTable) Option {
	return func(g *Global) {
		if t != nil {
			g.channels = t
		}
	}
}

// WithLimits overrides DefaultLimits.
func WithLimits(l Limits) Option {
	return func(g *Global) { g.limits = l }
}

// Global is the process-wide engine root. It maps interface names to live
// per-interface state and runs the event loop that produces asynchronous
// P2P outcomes. Global is safe for concurrent use.
type Global struct {
	mu     sync.RWMutex
	ifaces map[string]*Iface

	clock    timectrl.Clock
	sched    sched.EventScheduler
	peers    *kb.KnowledgeBase
	channels *ChannelTable
	limits   Limits

	log           logging.Logger
	metrics       MetricsRecorder
	schedObserver sched.Observer

	subMu   sync.RWMutex
	nextSub int
	subs    map[int]func(model.Event)

	// seq is the last sequence number stamped on an event.
	seq atomic.Uint64

	unsubscribePeers func()
}

// NewGlobal wires an engine root to a clock and the shared peer table.
// When clock also accepts tick listeners (as *timectrl.TimeController
// does), every tick runs due engine work.
func NewGlobal(clock timectrl.Clock, peers *kb.KnowledgeBase, opts ...Option) *Global {
	g := &Global{
		ifaces:   make(map[string]*Iface),
		clock:    clock,
		peers:    peers,
		channels: DefaultChannelTable(),
		limits:   DefaultLimits(),
		log:      logging.Noop(),
		subs:     make(map[int]func(model.Event)),
	}
	for _, opt := range opts {
		opt(g)
	}
	var schedOpts []sched.Option
	if g.schedObserver != nil {
		schedOpts = append(schedOpts, sched.WithObserver(g.schedObserver))
	}
	g.sched = sched.NewEventScheduler(clock, schedOpts...)

	if l, ok := clock.(interface{ AddListener(func(time.Time)) }); ok {
		l.AddListener(func(time.Time) { g.RunDue() })
	}
	if peers != nil {
		g.unsubscribePeers = peers.Subscribe(g.onPeerEvent)
	}
	return g
}

// Close detaches the root from the peer table.
func (g *Global) Close() {
	if g.unsubscribePeers != nil {
		g.unsubscribePeers()
		g.unsubscribePeers = nil
	}
}

// Peers exposes the shared peer table.
func (g *Global) Peers() *kb.KnowledgeBase { return g.peers }

// Channels exposes the listen channel table.
func (g *Global) Channels() *ChannelTable { return g.channels }

// Now returns the current engine time.
func (g *Global) Now() time.Time { return g.sched.Now() }

// RunDue executes all engine work whose time has come. The daemon calls it
// from the clock loop; tests call it after moving a manual clock.
func (g *Global) RunDue() { g.sched.RunDue() }

// Run drives a TimeController until ctx is cancelled.
func (g *Global) Run(ctx context.Context, tc *timectrl.TimeController) {
	g.log.Info(ctx, "engine loop started", logging.String("tick", tc.Tick.String()))
	tc.Run(ctx)
	g.log.Info(context.Background(), "engine loop stopped")
}

// AddInterface brings up a P2P interface with the given name.
func (g *Global) AddInterface(name string) (*Iface, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty interface name", ErrIfaceNotFound)
	}
	g.mu.Lock()
	if _, exists := g.ifaces[name]; exists {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrIfaceExists, name)
	}
	w := newIface(g, name)
	g.ifaces[name] = w
	g.mu.Unlock()

	g.log.Info(context.Background(), "interface added",
		logging.Ifname(name),
		logging.String("device_address", w.devAddr.String()),
	)
	g.recordCounts()
	return w, nil
}

// RemoveInterface tears an interface down. All timers it owns are
// cancelled and an EventInterfaceRemoved is emitted synchronously.
func (g *Global) RemoveInterface(name string) error {
	g.mu.Lock()
	w, ok := g.ifaces[name]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrIfaceNotFound, name)
	}
	delete(g.ifaces, name)
	g.mu.Unlock()

	w.teardown()

	g.log.Info(context.Background(), "interface removed", logging.Ifname(name))
	g.emit(model.Event{Type: model.EventInterfaceRemoved, Ifname: name, At: g.Now()})
	g.recordCounts()
	return nil
}

// Lookup resolves an interface name to its live state. The result must
// not be retained beyond the current call: the interface may be removed
// and recreated at any time.
func (g *Global) Lookup(name string) (*Iface, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	w, ok := g.ifaces[name]
	return w, ok
}

// Interfaces returns the names of all live interfaces, sorted.
func (g *Global) Interfaces() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.ifaces))
	for name := range g.ifaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subscribe registers fn for every event the engine emits. It returns an
// unsubscribe function.
func (g *Global) Subscribe(fn func(model.Event)) (unsubscribe func()) {
	g.subMu.Lock()
	defer g.subMu.Unlock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = fn
	return func() {
		g.subMu.Lock()
		defer g.subMu.Unlock()
		delete(g.subs, id)
	}
}

// EventSeq returns the sequence number of the most recently generated
// event. Every event generated afterwards carries a larger Seq.
func (g *Global) EventSeq() uint64 { return g.seq.Load() }

func (g *Global) stamp(events []model.Event) {
	for i := range events {
		if events[i].Seq == 0 {
			events[i].Seq = g.seq.Add(1)
		}
	}
}

// emit delivers events synchronously. It must not be called with any
// interface lock held.
func (g *Global) emit(events ...model.Event) {
	if len(events) == 0 {
		return
	}
	g.stamp(events)
	g.subMu.RLock()
	subs := make([]func(model.Event), 0, len(g.subs))
	for _, fn := range g.subs {
		subs = append(subs, fn)
	}
	g.subMu.RUnlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}

// post defers emission to the next pass of the event loop. The events are
// stamped now, so they keep their place relative to callback
// registration.
func (g *Global) post(events ...model.Event) {
	g.stamp(events)
	g.postAfter(0, events...)
}

func (g *Global) postAfter(d time.Duration, events ...model.Event) {
	if len(events) == 0 {
		return
	}
	g.sched.Schedule(g.Now().Add(d), func() { g.emit(events...) })
}

func (g *Global) onPeerEvent(ev kb.Event) {
	g.mu.RLock()
	ifaces := make([]*Iface, 0, len(g.ifaces))
	for _, w := range g.ifaces {
		ifaces = append(ifaces, w)
	}
	g.mu.RUnlock()

	for _, w := range ifaces {
		w.onPeerEvent(ev)
	}
	g.recordCounts()
}

func (g *Global) recordCounts() {
	if g.metrics == nil {
		return
	}
	g.mu.RLock()
	counts := EngineCounts{Interfaces: len(g.ifaces)}
	for _, w := range g.ifaces {
		n, grp, sd := w.counts()
		counts.Networks += n
		counts.Groups += grp
		counts.ServiceRequests += sd
	}
	g.mu.RUnlock()
	if g.peers != nil {
		counts.Peers = g.peers.Len()
	}
	g.metrics.SetEngineCounts(counts)
}

// deviceAddressFor derives a stable, locally administered P2P device
// address from the interface name.
func deviceAddressFor(name string) model.MacAddr {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	sum := h.Sum64()

	var m model.MacAddr
	m[0] = 0x02
	for i := 1; i < len(m); i++ {
		m[i] = byte(sum >> (8 * (i - 1)))
	}
	return m
}
