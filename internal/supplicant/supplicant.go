// Package supplicant owns the P2P interface facades of the process. It
// brings interfaces up and down on the engine, hands out facades by name,
// routes engine events to the facade that owns the interface and
// serializes calls per interface.
package supplicant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/p2p-supplicant/internal/engine"
	"github.com/signalsfoundry/p2p-supplicant/internal/logging"
	"github.com/signalsfoundry/p2p-supplicant/internal/p2p"
	"github.com/signalsfoundry/p2p-supplicant/model"
)

var (
	// ErrIfaceExists indicates a facade for that name is already managed.
	ErrIfaceExists = errors.New("interface already exists")
	// ErrIfaceNotFound indicates no managed facade has that name.
	ErrIfaceNotFound = errors.New("interface not found")
	// ErrClosed indicates the manager has been closed.
	ErrClosed = errors.New("supplicant closed")
)

// Option customises a Supplicant.
type Option func(*Supplicant)

// WithLogger attaches a structured logger.
func WithLogger(log logging.Logger) Option {
	return func(s *Supplicant) {
		if log != nil {
			s.log = log
		}
	}
}

// WithCallbackRecorder is passed to every facade the manager creates.
func WithCallbackRecorder(r p2p.CallbackRecorder) Option {
	return func(s *Supplicant) { s.recorder = r }
}

type entry struct {
	// mu serializes facade calls and event delivery for one interface.
	mu    sync.Mutex
	iface *p2p.Iface
}

// Supplicant manages P2P interfaces on top of an engine root.
type Supplicant struct {
	root *engine.Global
	log  logging.Logger

	recorder p2p.CallbackRecorder

	mu     sync.RWMutex
	ifaces map[string]*entry
	closed bool

	unsubscribe func()
}

// New returns a manager bound to root. It starts routing engine events
// immediately.
func New(root *engine.Global, opts ...Option) *Supplicant {
	s := &Supplicant{
		root:   root,
		log:    logging.Noop(),
		ifaces: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.unsubscribe = root.Subscribe(s.route)
	return s
}

// AddP2PInterface brings up ifname on the engine and returns its facade.
func (s *Supplicant) AddP2PInterface(ctx context.Context, ifname string) (*p2p.Iface, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if _, ok := s.ifaces[ifname]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrIfaceExists, ifname)
	}
	if _, err := s.root.AddInterface(ifname); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("add interface %s: %w", ifname, err)
	}
	opts := []p2p.Option{p2p.WithLogger(s.log)}
	if s.recorder != nil {
		opts = append(opts, p2p.WithCallbackRecorder(s.recorder))
	}
	e := &entry{iface: p2p.New(s.root, ifname, opts...)}
	s.ifaces[ifname] = e
	s.mu.Unlock()

	s.log.Info(ctx, "p2p interface added", logging.Ifname(ifname))
	return e.iface, nil
}

// RemoveInterface invalidates the facade of ifname and tears the interface
// down on the engine.
func (s *Supplicant) RemoveInterface(ctx context.Context, ifname string) error {
	s.mu.Lock()
	e, ok := s.ifaces[ifname]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrIfaceNotFound, ifname)
	}
	delete(s.ifaces, ifname)
	s.mu.Unlock()

	e.mu.Lock()
	e.iface.Invalidate()
	e.mu.Unlock()

	if err := s.root.RemoveInterface(ifname); err != nil && !errors.Is(err, engine.ErrIfaceNotFound) {
		return fmt.Errorf("remove interface %s: %w", ifname, err)
	}
	s.log.Info(ctx, "p2p interface removed", logging.Ifname(ifname))
	return nil
}

// GetP2PInterface returns the facade for ifname.
func (s *Supplicant) GetP2PInterface(ifname string) (*p2p.Iface, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.ifaces[ifname]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIfaceNotFound, ifname)
	}
	return e.iface, nil
}

// ListInterfaces returns the managed interface names, sorted.
func (s *Supplicant) ListInterfaces() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.ifaces))
	for name := range s.ifaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Do runs fn with the facade of ifname while holding that interface's
// call lock, so calls on one interface never overlap each other or event
// delivery.
func (s *Supplicant) Do(ctx context.Context, ifname string, fn func(*p2p.Iface) error) error {
	s.mu.RLock()
	e, ok := s.ifaces[ifname]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrIfaceNotFound, ifname)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.iface)
}

// route delivers engine events to the owning facade. An interface removed
// behind the manager's back has its facade invalidated.
func (s *Supplicant) route(ev model.Event) {
	if ev.Type == model.EventInterfaceRemoved {
		s.mu.Lock()
		e, ok := s.ifaces[ev.Ifname]
		if ok {
			delete(s.ifaces, ev.Ifname)
		}
		s.mu.Unlock()
		if ok {
			e.mu.Lock()
			e.iface.Invalidate()
			e.mu.Unlock()
			s.log.Warn(context.Background(), "interface removed by engine", logging.Ifname(ev.Ifname))
		}
		return
	}

	s.mu.RLock()
	e, ok := s.ifaces[ev.Ifname]
	s.mu.RUnlock()
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.iface.Deliver(ev)
}

// Close invalidates every facade, removes the interfaces from the engine
// and stops routing events.
func (s *Supplicant) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	names := make([]string, 0, len(s.ifaces))
	for name := range s.ifaces {
		names = append(names, name)
	}
	s.mu.Unlock()

	var errs []error
	for _, name := range names {
		if err := s.RemoveInterface(ctx, name); err != nil && !errors.Is(err, ErrIfaceNotFound) {
			errs = append(errs, err)
		}
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	return errors.Join(errs...)
}
