package kb

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/signalsfoundry/p2p-supplicant/model"
)

// DefaultPeerTableSize bounds the peer table when no size is configured.
const DefaultPeerTableSize = 128

// ErrPeerNotFound indicates an address has no entry in the peer table.
var ErrPeerNotFound = errors.New("peer not found")

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	// EventPeerUpdated fires when a peer is added or its record refreshed.
	EventPeerUpdated EventType = iota
	// EventPeerLost fires when a peer is removed or evicted.
	EventPeerLost
)

// Event is emitted to subscribers when the peer table changes.
type Event struct {
	Type EventType
	Peer model.Peer
}

// KnowledgeBase is the in-memory, thread-safe table of P2P devices visible
// on the medium. It is bounded: once full, the least recently refreshed
// peer is evicted and reported as lost.
type KnowledgeBase struct {
	mu sync.Mutex

	peers *lru.Cache[model.MacAddr, *model.Peer]
	lost  []*model.Peer

	nextSub int
	subs    map[int]func(Event)
}

// NewKnowledgeBase constructs an empty peer table holding at most size
// entries. A non-positive size selects DefaultPeerTableSize.
func NewKnowledgeBase(size int) (*KnowledgeBase, error) {
	if size <= 0 {
		size = DefaultPeerTableSize
	}
	kb := &KnowledgeBase{subs: make(map[int]func(Event))}
	cache, err := lru.NewWithEvict(size, kb.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create peer table: %w", err)
	}
	kb.peers = cache
	return kb, nil
}

// onEvict runs inside cache operations, which are only invoked with kb.mu
// held.
func (kb *KnowledgeBase) onEvict(_ model.MacAddr, p *model.Peer) {
	kb.lost = append(kb.lost, p)
}

// UpsertPeer adds or refreshes a peer record.
func (kb *KnowledgeBase) UpsertPeer(p *model.Peer) {
	if p == nil {
		return
	}
	stored := p.Clone()

	kb.mu.Lock()
	kb.peers.Add(stored.Address, stored)
	events := kb.drainLostLocked()
	events = append(events, Event{Type: EventPeerUpdated, Peer: *stored.Clone()})
	subs := kb.snapshotSubsLocked()
	kb.mu.Unlock()

	notify(subs, events)
}

// RemovePeer drops a peer from the table. It reports ErrPeerNotFound when
// the address is unknown.
func (kb *KnowledgeBase) RemovePeer(addr model.MacAddr) error {
	kb.mu.Lock()
	if !kb.peers.Remove(addr) {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPeerNotFound, addr)
	}
	events := kb.drainLostLocked()
	subs := kb.snapshotSubsLocked()
	kb.mu.Unlock()

	notify(subs, events)
	return nil
}

// GetPeer returns a copy of the peer with the given address, or nil.
func (kb *KnowledgeBase) GetPeer(addr model.MacAddr) *model.Peer {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	p, ok := kb.peers.Peek(addr)
	if !ok {
		return nil
	}
	return p.Clone()
}

// ListPeers returns copies of all peers, least recently refreshed first.
func (kb *KnowledgeBase) ListPeers() []*model.Peer {
	kb.mu.Lock()
	defer kb.mu.Unlock()

	keys := kb.peers.Keys()
	res := make([]*model.Peer, 0, len(keys))
	for _, k := range keys {
		if p, ok := kb.peers.Peek(k); ok {
			res = append(res, p.Clone())
		}
	}
	return res
}

// Len returns the number of peers currently in the table.
func (kb *KnowledgeBase) Len() int {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	return kb.peers.Len()
}

// Subscribe registers a callback for peer table events. It returns an
// unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextSub
	kb.nextSub++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

func (kb *KnowledgeBase) drainLostLocked() []Event {
	if len(kb.lost) == 0 {
		return nil
	}
	events := make([]Event, 0, len(kb.lost)+1)
	for _, p := range kb.lost {
		events = append(events, Event{Type: EventPeerLost, Peer: *p})
	}
	kb.lost = nil
	return events
}

func (kb *KnowledgeBase) snapshotSubsLocked() []func(Event) {
	subs := make([]func(Event), 0, len(kb.subs))
	for _, fn := range kb.subs {
		subs = append(subs, fn)
	}
	return subs
}

// notify runs subscribers outside the lock to avoid deadlocks.
func notify(subs []func(Event), events []Event) {
	for _, ev := range events {
		for _, sub := range subs {
			sub(ev)
		}
	}
}
