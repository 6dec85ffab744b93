package sched

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/p2p-supplicant/timectrl"
)

// EventScheduler runs callbacks at engine times taken from a Clock. The P2P
// engine uses it for everything that happens "later": find timeouts, peer
// responses to negotiation, invitation, provisioning and service queries.
//
// The engine loop advances the clock and then calls RunDue.
type EventScheduler interface {
	// Schedule registers f to run at engine time 'at' and returns an
	// opaque id that can be used to cancel it.
	Schedule(at time.Time, f func()) (id string)

	// Cancel drops a scheduled callback. Unknown or already-run ids are a
	// no-op.
	Cancel(id string)

	// Now returns the current engine time.
	Now() time.Time

	// RunDue executes every callback whose time is <= Now(). Callbacks
	// never run twice.
	RunDue()

	// Pending returns the number of callbacks still waiting to run.
	Pending() int
}

// Observer is told about every RunDue pass that fired at least one
// callback.
type Observer interface {
	ObserveRun(fired, pending int, took time.Duration)
}

// Option customises an EventScheduler.
type Option func(*eventScheduler)

// WithObserver attaches o to the scheduler.
func WithObserver(o Observer) Option {
	return func(s *eventScheduler) { s.observer = o }
}

type scheduledEvent struct {
	id        string
	when      time.Time
	f         func()
	cancelled bool
}

type eventScheduler struct {
	clock timectrl.Clock

	mu      sync.Mutex
	counter uint64
	events  []*scheduledEvent // ordered by 'when' (earliest first)
	index   map[string]*scheduledEvent

	observer Observer
}

// NewEventScheduler creates a scheduler backed by clock.
func NewEventScheduler(clock timectrl.Clock, opts ...Option) EventScheduler {
	s := &eventScheduler{
		clock: clock,
		index: make(map[string]*scheduledEvent),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *eventScheduler) Schedule(at time.Time, f func()) (id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	id = fmt.Sprintf("ev-%d", s.counter)

	ev := &scheduledEvent{
		id:   id,
		when: at,
		f:    f,
	}
	s.addEventLocked(ev)
	s.index[id] = ev

	return id
}

// addEventLocked inserts ev keeping time order; events with equal times run
// in the order they were scheduled. Caller must hold s.mu.
func (s *eventScheduler) addEventLocked(ev *scheduledEvent) {
	idx := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].when.After(ev.when)
	})

	s.events = append(s.events, nil)
	copy(s.events[idx+1:], s.events[idx:])
	s.events[idx] = ev
}

func (s *eventScheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.index[id]
	if !ok {
		return
	}
	ev.cancelled = true
	delete(s.index, id)
	// Removal from s.events is lazy; RunDue skips cancelled events.
}

func (s *eventScheduler) Now() time.Time {
	return s.clock.Now()
}

func (s *eventScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// popDueLocked removes and returns the earliest due, non-cancelled event.
// Caller must hold s.mu.
func (s *eventScheduler) popDueLocked(now time.Time) *scheduledEvent {
	for len(s.events) > 0 {
		ev := s.events[0]
		if ev.cancelled {
			s.events = s.events[1:]
			continue
		}
		if ev.when.After(now) {
			return nil
		}
		s.events = s.events[1:]
		return ev
	}
	return nil
}

func (s *eventScheduler) RunDue() {
	now := s.clock.Now()
	start := time.Now()
	fired := 0
	for {
		s.mu.Lock()
		ev := s.popDueLocked(now)
		if ev == nil {
			pending := len(s.index)
			s.mu.Unlock()
			if s.observer != nil && fired > 0 {
				s.observer.ObserveRun(fired, pending, time.Since(start))
			}
			return
		}
		fired++
		delete(s.index, ev.id)
		s.mu.Unlock()

		// Callbacks run outside the lock so they may schedule or cancel.
		if ev.f != nil {
			ev.f()
		}
	}
}
