package kb

import (
	"errors"
	"sync"
	"testing"

	"github.com/signalsfoundry/p2p-supplicant/model"
)

func peerAddr(last byte) model.MacAddr {
	return model.MacAddr{0x02, 0, 0, 0, 0, last}
}

func newKB(t *testing.T, size int) *KnowledgeBase {
	t.Helper()
	store, err := NewKnowledgeBase(size)
	if err != nil {
		t.Fatalf("NewKnowledgeBase error: %v", err)
	}
	return store
}

func TestUpsertAndGetPeer(t *testing.T) {
	store := newKB(t, 4)
	store.UpsertPeer(&model.Peer{Address: peerAddr(1), DeviceName: "printer"})

	got := store.GetPeer(peerAddr(1))
	if got == nil || got.DeviceName != "printer" {
		t.Fatalf("GetPeer returned %#v, want device name printer", got)
	}

	// Mutating the returned copy must not leak into the table.
	got.DeviceName = "mutated"
	if again := store.GetPeer(peerAddr(1)); again.DeviceName != "printer" {
		t.Fatalf("GetPeer after mutation = %q, want printer", again.DeviceName)
	}

	if store.GetPeer(peerAddr(9)) != nil {
		t.Fatalf("GetPeer(unknown) = non-nil")
	}
}

func TestRemovePeer(t *testing.T) {
	store := newKB(t, 4)
	store.UpsertPeer(&model.Peer{Address: peerAddr(1)})

	var lost []model.MacAddr
	store.Subscribe(func(ev Event) {
		if ev.Type == EventPeerLost {
			lost = append(lost, ev.Peer.Address)
		}
	})

	if err := store.RemovePeer(peerAddr(1)); err != nil {
		t.Fatalf("RemovePeer error: %v", err)
	}
	if err := store.RemovePeer(peerAddr(1)); !errors.Is(err, ErrPeerNotFound) {
		t.Fatalf("second RemovePeer error = %v, want ErrPeerNotFound", err)
	}
	if len(lost) != 1 || lost[0] != peerAddr(1) {
		t.Fatalf("lost events = %v, want [%v]", lost, peerAddr(1))
	}
}

func TestEvictionReportsLostPeer(t *testing.T) {
	store := newKB(t, 2)

	var updated, lost []model.MacAddr
	unsubscribe := store.Subscribe(func(ev Event) {
		switch ev.Type {
		case EventPeerUpdated:
			updated = append(updated, ev.Peer.Address)
		case EventPeerLost:
			lost = append(lost, ev.Peer.Address)
		}
	})

	store.UpsertPeer(&model.Peer{Address: peerAddr(1)})
	store.UpsertPeer(&model.Peer{Address: peerAddr(2)})
	store.UpsertPeer(&model.Peer{Address: peerAddr(3)})

	if len(lost) != 1 || lost[0] != peerAddr(1) {
		t.Fatalf("lost = %v, want oldest peer evicted", lost)
	}
	if len(updated) != 3 {
		t.Fatalf("updated = %v, want 3 events", updated)
	}
	if store.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", store.Len())
	}

	unsubscribe()
	store.UpsertPeer(&model.Peer{Address: peerAddr(4)})
	if len(updated) != 3 {
		t.Fatalf("events delivered after unsubscribe: %v", updated)
	}
}

func TestListPeersOrder(t *testing.T) {
	store := newKB(t, 8)
	for i := byte(1); i <= 3; i++ {
		store.UpsertPeer(&model.Peer{Address: peerAddr(i)})
	}
	// Refreshing peer 1 makes it the most recent.
	store.UpsertPeer(&model.Peer{Address: peerAddr(1), DeviceName: "again"})

	peers := store.ListPeers()
	want := []model.MacAddr{peerAddr(2), peerAddr(3), peerAddr(1)}
	if len(peers) != len(want) {
		t.Fatalf("ListPeers len = %d, want %d", len(peers), len(want))
	}
	for i, p := range peers {
		if p.Address != want[i] {
			t.Fatalf("ListPeers[%d] = %v, want %v", i, p.Address, want[i])
		}
	}
}

func TestConcurrentUpserts(t *testing.T) {
	store := newKB(t, 64)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.UpsertPeer(&model.Peer{Address: peerAddr(byte(i))})
			_ = store.ListPeers()
		}(i)
	}
	wg.Wait()

	if store.Len() != 16 {
		t.Fatalf("Len() = %d, want 16", store.Len())
	}
}
