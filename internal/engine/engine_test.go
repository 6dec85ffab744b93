package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/p2p-supplicant/kb"
	"github.com/signalsfoundry/p2p-supplicant/model"
	"github.com/signalsfoundry/p2p-supplicant/timectrl"
)

const testDelay = 100 * time.Millisecond

var (
	peerPrinter = model.MacAddr{0x02, 0x11, 0x22, 0x33, 0x44, 0x01}
	peerTV      = model.MacAddr{0x02, 0x11, 0x22, 0x33, 0x44, 0x02}
	peerMissing = model.MacAddr{0x02, 0x11, 0x22, 0x33, 0x44, 0xff}
)

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) record(ev model.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) ofType(t model.EventType) []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Event
	for _, ev := range r.events {
		if ev.Type == t {
			res = append(res, ev)
		}
	}
	return res
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

type fixture struct {
	clock *timectrl.TimeController
	peers *kb.KnowledgeBase
	g     *Global
	w     *Iface
	rec   *recorder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clock := timectrl.NewTimeController(time.Unix(1_700_000_000, 0), testDelay, timectrl.Accelerated)
	peers, err := kb.NewKnowledgeBase(16)
	if err != nil {
		t.Fatalf("NewKnowledgeBase: %v", err)
	}
	peers.UpsertPeer(&model.Peer{
		Address:         peerPrinter,
		DeviceName:      "printer",
		GroupCapability: 0,
		BonjourServices: []model.BonjourService{{Query: []byte("_ipp._tcp"), Response: []byte("printer")}},
	})
	peers.UpsertPeer(&model.Peer{
		Address:         peerTV,
		DeviceName:      "tv",
		GroupCapability: model.GroupCapabilityGroupOwner,
		OperSSID:        []byte("DIRECT-tv"),
		UpnpServices:    []model.UpnpService{{Version: 0x10, Name: "urn:schemas-upnp-org:device:MediaRenderer:1"}},
	})

	limits := DefaultLimits()
	limits.ResponseDelay = testDelay
	g := NewGlobal(clock, peers, append([]Option{WithLimits(limits)}, opts...)...)
	t.Cleanup(g.Close)

	rec := &recorder{}
	g.Subscribe(rec.record)

	w, err := g.AddInterface("p2p0")
	if err != nil {
		t.Fatalf("AddInterface: %v", err)
	}
	return &fixture{clock: clock, peers: peers, g: g, w: w, rec: rec}
}

// settle runs posted events and everything due within d.
func (f *fixture) settle(d time.Duration) {
	f.g.RunDue()
	f.clock.Advance(d)
}

func TestAddInterfaceRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	if _, err := f.g.AddInterface("p2p0"); !errors.Is(err, ErrIfaceExists) {
		t.Fatalf("duplicate AddInterface error = %v, want ErrIfaceExists", err)
	}
	if got, ok := f.g.Lookup("p2p0"); !ok || got != f.w {
		t.Fatalf("Lookup(p2p0) = %v, %v", got, ok)
	}
	if names := f.g.Interfaces(); len(names) != 1 || names[0] != "p2p0" {
		t.Fatalf("Interfaces() = %v", names)
	}
}

func TestRemoveInterfaceEmitsAndCancelsTimers(t *testing.T) {
	f := newFixture(t)
	if err := f.w.Find(time.Minute); err != nil {
		t.Fatalf("Find: %v", err)
	}
	if err := f.g.RemoveInterface("p2p0"); err != nil {
		t.Fatalf("RemoveInterface: %v", err)
	}
	if got := f.rec.ofType(model.EventInterfaceRemoved); len(got) != 1 || got[0].Ifname != "p2p0" {
		t.Fatalf("interface removed events = %+v", got)
	}
	if _, ok := f.g.Lookup("p2p0"); ok {
		t.Fatalf("Lookup succeeded after removal")
	}

	f.settle(2 * time.Minute)
	if got := f.rec.ofType(model.EventDeviceFound); len(got) != 0 {
		t.Fatalf("device found after removal: %+v", got)
	}
	if err := f.w.StopFind(); !errors.Is(err, ErrIfaceNotFound) {
		t.Fatalf("StopFind on removed iface error = %v", err)
	}
	if err := f.g.RemoveInterface("p2p0"); !errors.Is(err, ErrIfaceNotFound) {
		t.Fatalf("second RemoveInterface error = %v", err)
	}
}

func TestDeviceAddressStableAndLocal(t *testing.T) {
	a, b := deviceAddressFor("p2p0"), deviceAddressFor("p2p0")
	if a != b {
		t.Fatalf("device address not stable: %v vs %v", a, b)
	}
	if a[0]&0x02 == 0 {
		t.Fatalf("device address %v is not locally administered", a)
	}
	if deviceAddressFor("p2p1") == a {
		t.Fatalf("distinct interfaces share a device address")
	}
}

func TestNetworkIDsAreNeverReused(t *testing.T) {
	f := newFixture(t)
	var ids []model.NetworkID
	for i := 0; i < 3; i++ {
		n, err := f.w.AddNetwork()
		if err != nil {
			t.Fatalf("AddNetwork: %v", err)
		}
		ids = append(ids, n.ID)
	}
	if err := f.w.RemoveNetwork(ids[1]); err != nil {
		t.Fatalf("RemoveNetwork: %v", err)
	}
	list, err := f.w.ListNetworks()
	if err != nil {
		t.Fatalf("ListNetworks: %v", err)
	}
	if len(list) != 2 || list[0] != ids[0] || list[1] != ids[2] {
		t.Fatalf("ListNetworks = %v, want [%d %d]", list, ids[0], ids[2])
	}

	n, err := f.w.AddNetwork()
	if err != nil {
		t.Fatalf("AddNetwork: %v", err)
	}
	for _, old := range ids {
		if n.ID == old {
			t.Fatalf("AddNetwork reused id %d", old)
		}
	}

	if err := f.w.RemoveNetwork(ids[1]); !errors.Is(err, ErrNetworkNotFound) {
		t.Fatalf("RemoveNetwork(removed) error = %v", err)
	}
	if _, err := f.w.GetNetwork(12345); !errors.Is(err, ErrNetworkNotFound) {
		t.Fatalf("GetNetwork(unknown) error = %v", err)
	}

	f.settle(0)
	if got := f.rec.ofType(model.EventNetworkAdded); len(got) != 4 {
		t.Fatalf("network added events = %d, want 4", len(got))
	}
	if got := f.rec.ofType(model.EventNetworkRemoved); len(got) != 1 || got[0].NetworkID != ids[1] {
		t.Fatalf("network removed events = %+v", got)
	}
}

func TestNetworkLimitAndExhaustion(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxNetworks = 1
	f := newFixture(t, WithLimits(limits))

	if _, err := f.w.AddNetwork(); err != nil {
		t.Fatalf("AddNetwork: %v", err)
	}
	if _, err := f.w.AddNetwork(); !errors.Is(err, ErrNetworkLimit) {
		t.Fatalf("AddNetwork over limit error = %v, want ErrNetworkLimit", err)
	}

	g := newFixture(t)
	g.w.nextNetworkID = model.MaxNetworkID
	last, err := g.w.AddNetwork()
	if err != nil || last.ID != model.MaxNetworkID {
		t.Fatalf("AddNetwork at max = %v, %v", last, err)
	}
	if _, err := g.w.AddNetwork(); !errors.Is(err, ErrNetworkIDsExhausted) {
		t.Fatalf("AddNetwork after max error = %v, want ErrNetworkIDsExhausted", err)
	}
}

func TestFindReportsPeersAndStopsAtTimeout(t *testing.T) {
	f := newFixture(t)
	if err := f.w.Find(time.Second); err != nil {
		t.Fatalf("Find: %v", err)
	}
	f.settle(testDelay)

	found := f.rec.ofType(model.EventDeviceFound)
	if len(found) != 2 {
		t.Fatalf("device found events = %d, want 2", len(found))
	}

	// A peer appearing mid-search is reported too.
	late := model.MacAddr{0x02, 0, 0, 0, 0, 0x42}
	f.peers.UpsertPeer(&model.Peer{Address: late, DeviceName: "phone"})
	f.settle(0)
	if got := f.rec.ofType(model.EventDeviceFound); len(got) != 3 || got[2].PeerAddress != late {
		t.Fatalf("late peer not reported: %+v", got)
	}

	if err := f.peers.RemovePeer(late); err != nil {
		t.Fatalf("RemovePeer: %v", err)
	}
	f.settle(0)
	if got := f.rec.ofType(model.EventDeviceLost); len(got) != 1 || got[0].PeerAddress != late {
		t.Fatalf("device lost events = %+v", got)
	}

	f.settle(time.Second)
	if got := f.rec.ofType(model.EventFindStopped); len(got) != 1 {
		t.Fatalf("find stopped events = %d, want 1", len(got))
	}
	if f.w.IsFinding() {
		t.Fatalf("still finding after timeout")
	}
}

func TestStopFindIsIdempotent(t *testing.T) {
	f := newFixture(t)
	if err := f.w.Find(0); err != nil {
		t.Fatalf("Find: %v", err)
	}
	if err := f.w.StopFind(); err != nil {
		t.Fatalf("StopFind: %v", err)
	}
	if err := f.w.StopFind(); err != nil {
		t.Fatalf("second StopFind: %v", err)
	}
	f.settle(time.Minute)
	if got := f.rec.ofType(model.EventFindStopped); len(got) != 1 {
		t.Fatalf("find stopped events = %d, want 1", len(got))
	}
	if got := f.rec.ofType(model.EventDeviceFound); len(got) != 0 {
		t.Fatalf("device found after stop: %d", len(got))
	}
}

func TestConnectNegotiatesGroup(t *testing.T) {
	f := newFixture(t)
	pin, err := f.w.Connect(ConnectRequest{Peer: peerPrinter, Method: model.ProvisionDisplay, GoIntent: 15, Persistent: true})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !ValidPinChecksum(pin) {
		t.Fatalf("generated pin %q has no valid checksum", pin)
	}

	if _, err := f.w.Connect(ConnectRequest{Peer: peerTV}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Connect error = %v, want ErrBusy", err)
	}
	if err := f.w.Find(0); !errors.Is(err, ErrBusy) {
		t.Fatalf("Find while negotiating error = %v, want ErrBusy", err)
	}

	f.settle(testDelay)

	started := f.rec.ofType(model.EventGroupStarted)
	if len(started) != 1 {
		t.Fatalf("group started events = %d, want 1", len(started))
	}
	grp := started[0].Group
	if !grp.GroupOwner || grp.ParentIfname != "p2p0" || grp.Ifname != "p2p-p2p0-0" {
		t.Fatalf("unexpected group %+v", grp)
	}
	if !grp.Persistent || grp.NetworkID == model.NetworkIDNone {
		t.Fatalf("persistent group has no profile: %+v", grp)
	}
	prof, err := f.w.GetNetwork(grp.NetworkID)
	if err != nil {
		t.Fatalf("GetNetwork: %v", err)
	}
	if !prof.Persistent || !prof.Current || len(prof.ClientList) != 1 || prof.ClientList[0] != peerPrinter {
		t.Fatalf("unexpected profile %+v", prof)
	}
	if got := f.rec.ofType(model.EventStaAuthorized); len(got) != 1 {
		t.Fatalf("sta authorized events = %d, want 1", len(got))
	}
	if f.w.HasPendingConnect() {
		t.Fatalf("negotiation still pending")
	}
}

func TestConnectJoinRequiresGroupOwner(t *testing.T) {
	f := newFixture(t)
	if _, err := f.w.Connect(ConnectRequest{Peer: peerPrinter, Join: true}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	f.settle(testDelay)
	if got := f.rec.ofType(model.EventGroupFormationFailure); len(got) != 1 {
		t.Fatalf("formation failures = %d, want 1", len(got))
	}

	f.rec.reset()
	if _, err := f.w.Connect(ConnectRequest{Peer: peerTV, Join: true}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	f.settle(testDelay)
	started := f.rec.ofType(model.EventGroupStarted)
	if len(started) != 1 || started[0].Group.GroupOwner || string(started[0].Group.SSID) != "DIRECT-tv" {
		t.Fatalf("join did not start client group: %+v", started)
	}
}

func TestConnectUnknownPeer(t *testing.T) {
	f := newFixture(t)
	if _, err := f.w.Connect(ConnectRequest{Peer: peerMissing}); !errors.Is(err, ErrPeerNotFound) {
		t.Fatalf("Connect error = %v, want ErrPeerNotFound", err)
	}
	if f.w.HasPendingConnect() {
		t.Fatalf("failed Connect left a pending negotiation")
	}
}

func TestCancelConnect(t *testing.T) {
	f := newFixture(t)
	if err := f.w.CancelConnect(); !errors.Is(err, ErrNothingPending) {
		t.Fatalf("CancelConnect idle error = %v", err)
	}
	if _, err := f.w.Connect(ConnectRequest{Peer: peerPrinter}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := f.w.CancelConnect(); err != nil {
		t.Fatalf("CancelConnect: %v", err)
	}
	f.settle(time.Second)
	if got := f.rec.ofType(model.EventGroupStarted); len(got) != 0 {
		t.Fatalf("group started after cancel: %+v", got)
	}
}

func TestRejectAbortsNegotiation(t *testing.T) {
	f := newFixture(t)
	if _, err := f.w.Connect(ConnectRequest{Peer: peerPrinter}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := f.w.Reject(peerPrinter); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if !f.w.IsRejected(peerPrinter) {
		t.Fatalf("peer not marked rejected")
	}
	f.settle(time.Second)
	got := f.rec.ofType(model.EventGoNegotiationCompleted)
	if len(got) != 1 || got[0].Status != model.StatusFailRejectedByUser {
		t.Fatalf("negotiation events = %+v", got)
	}
	if err := f.w.Reject(peerMissing); !errors.Is(err, ErrPeerNotFound) {
		t.Fatalf("Reject(unknown) error = %v", err)
	}
}

func TestAddGroupPersistentReuse(t *testing.T) {
	f := newFixture(t)
	if err := f.w.SetSsidPostfix([]byte("-lab")); err != nil {
		t.Fatalf("SetSsidPostfix: %v", err)
	}
	grp, err := f.w.AddGroup(true, model.NetworkIDNone)
	if err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	if len(grp.SSID) != len("DIRECT-xy-lab") || string(grp.SSID[:7]) != "DIRECT-" || string(grp.SSID[9:]) != "-lab" {
		t.Fatalf("ssid = %q", grp.SSID)
	}
	if err := f.w.RemoveGroup(grp.Ifname); err != nil {
		t.Fatalf("RemoveGroup: %v", err)
	}
	if err := f.w.RemoveGroup(grp.Ifname); !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("second RemoveGroup error = %v", err)
	}

	again, err := f.w.AddGroup(true, grp.NetworkID)
	if err != nil {
		t.Fatalf("AddGroup(reuse): %v", err)
	}
	if string(again.SSID) != string(grp.SSID) || again.Passphrase != grp.Passphrase {
		t.Fatalf("restarted group credentials differ: %+v vs %+v", again, grp)
	}

	plain, err := f.w.AddNetwork()
	if err != nil {
		t.Fatalf("AddNetwork: %v", err)
	}
	if _, err := f.w.AddGroup(true, plain.ID); !errors.Is(err, ErrNotPersistent) {
		t.Fatalf("AddGroup(non persistent) error = %v", err)
	}
	if _, err := f.w.AddGroup(true, 999); !errors.Is(err, ErrNotPersistent) {
		t.Fatalf("AddGroup(unknown id) error = %v", err)
	}
}

func TestGroupIdleAndPowerSaveApplyToGroups(t *testing.T) {
	f := newFixture(t)
	grp, err := f.w.AddGroup(false, model.NetworkIDNone)
	if err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	if err := f.w.SetGroupIdle(30); err != nil {
		t.Fatalf("SetGroupIdle: %v", err)
	}
	if err := f.w.SetPowerSave(true); err != nil {
		t.Fatalf("SetPowerSave: %v", err)
	}
	groups := f.w.Groups()
	if len(groups) != 1 || groups[0].Ifname != grp.Ifname {
		t.Fatalf("Groups() = %+v", groups)
	}
	if groups[0].IdleTimeoutSec != 30 || !groups[0].PowerSave {
		t.Fatalf("group settings not applied: %+v", groups[0])
	}
}

func TestInviteAndReinvoke(t *testing.T) {
	f := newFixture(t)
	grp, err := f.w.AddGroup(true, model.NetworkIDNone)
	if err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	if err := f.w.Invite("p2p-p2p0-9", f.w.DeviceAddress(), peerTV); !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("Invite(unknown group) error = %v", err)
	}
	if err := f.w.Invite(grp.Ifname, f.w.DeviceAddress(), peerTV); err != nil {
		t.Fatalf("Invite: %v", err)
	}
	f.settle(testDelay)
	res := f.rec.ofType(model.EventInvitationResult)
	if len(res) != 1 || res[0].Status != model.StatusSuccess {
		t.Fatalf("invitation results = %+v", res)
	}
	prof, err := f.w.GetNetwork(grp.NetworkID)
	if err != nil {
		t.Fatalf("GetNetwork: %v", err)
	}
	if len(prof.ClientList) != 1 || prof.ClientList[0] != peerTV {
		t.Fatalf("client list = %v", prof.ClientList)
	}

	plain, err := f.w.AddNetwork()
	if err != nil {
		t.Fatalf("AddNetwork: %v", err)
	}
	if err := f.w.Reinvoke(plain.ID, peerTV); !errors.Is(err, ErrNetworkNotFound) {
		t.Fatalf("Reinvoke(non persistent) error = %v", err)
	}
	f.rec.reset()
	if err := f.w.Reinvoke(grp.NetworkID, peerTV); err != nil {
		t.Fatalf("Reinvoke: %v", err)
	}
	f.settle(testDelay)
	if got := f.rec.ofType(model.EventGroupStarted); len(got) != 1 || got[0].NetworkID != grp.NetworkID {
		t.Fatalf("reinvoke group started = %+v", got)
	}
}

func TestProvisionDiscovery(t *testing.T) {
	f := newFixture(t)
	if err := f.w.ProvisionDiscovery(peerMissing, model.ProvisionPBC); !errors.Is(err, ErrPeerNotFound) {
		t.Fatalf("ProvisionDiscovery(unknown) error = %v", err)
	}
	if err := f.w.ProvisionDiscovery(peerPrinter, model.ProvisionDisplay); err != nil {
		t.Fatalf("ProvisionDiscovery: %v", err)
	}
	f.settle(testDelay)
	got := f.rec.ofType(model.EventProvisionDiscoveryCompleted)
	if len(got) != 1 || got[0].Provision == nil {
		t.Fatalf("provision events = %+v", got)
	}
	if got[0].Provision.ConfigMethods != model.ConfigMethodDisplay || !ValidPinChecksum(got[0].Provision.GeneratedPin) {
		t.Fatalf("provision result = %+v", got[0].Provision)
	}
}

func TestPeerAccessors(t *testing.T) {
	f := newFixture(t)
	ssid, err := f.w.PeerSsid(peerTV)
	if err != nil || string(ssid) != "DIRECT-tv" {
		t.Fatalf("PeerSsid = %q, %v", ssid, err)
	}
	capab, err := f.w.PeerGroupCapability(peerTV)
	if err != nil || capab != model.GroupCapabilityGroupOwner {
		t.Fatalf("PeerGroupCapability = %d, %v", capab, err)
	}
	if _, err := f.w.PeerSsid(peerMissing); !errors.Is(err, ErrPeerNotFound) {
		t.Fatalf("PeerSsid(unknown) error = %v", err)
	}
}

func TestSetListenChannel(t *testing.T) {
	f := newFixture(t)
	if err := f.w.SetListenChannel(11, SocialOperatingClass); err != nil {
		t.Fatalf("SetListenChannel: %v", err)
	}
	if ch, class := f.w.ListenChannel(); ch != 11 || class != SocialOperatingClass {
		t.Fatalf("ListenChannel = %d/%d", ch, class)
	}
	if err := f.w.SetListenChannel(3, SocialOperatingClass); !errors.Is(err, ErrUnsupportedChannel) {
		t.Fatalf("SetListenChannel(3) error = %v", err)
	}
}

func TestServiceDiscoveryUnicastAndBroadcast(t *testing.T) {
	f := newFixture(t)

	query := ServiceQueryTLV(ServiceProtocolBonjour, 1, []byte("_ipp._tcp"))
	id, err := f.w.RequestServiceDiscovery(peerPrinter, query)
	if err != nil {
		t.Fatalf("RequestServiceDiscovery: %v", err)
	}
	if id != 1 {
		t.Fatalf("first request id = %d, want 1", id)
	}
	f.settle(testDelay)
	resp := f.rec.ofType(model.EventServiceDiscoveryResponse)
	if len(resp) != 1 || resp[0].ServiceResponse.RequestID != id || len(resp[0].ServiceResponse.TLVs) == 0 {
		t.Fatalf("sd responses = %+v", resp)
	}
	if out := f.w.OutstandingServiceRequests(); len(out) != 0 {
		t.Fatalf("completed unicast request still outstanding: %v", out)
	}
	if err := f.w.CancelServiceDiscovery(id); !errors.Is(err, ErrServiceRequestNotFound) {
		t.Fatalf("cancel completed request error = %v", err)
	}

	f.rec.reset()
	bid, err := f.w.RequestServiceDiscovery(model.ZeroMacAddr, ServiceQueryTLV(ServiceProtocolAll, 2, nil))
	if err != nil {
		t.Fatalf("RequestServiceDiscovery(broadcast): %v", err)
	}
	f.settle(testDelay)
	if got := f.rec.ofType(model.EventServiceDiscoveryResponse); len(got) != 2 {
		t.Fatalf("broadcast responses = %d, want 2", len(got))
	}
	if out := f.w.OutstandingServiceRequests(); len(out) != 1 || out[0] != bid {
		t.Fatalf("broadcast request not outstanding: %v", out)
	}
	if err := f.w.CancelServiceDiscovery(bid); err != nil {
		t.Fatalf("CancelServiceDiscovery: %v", err)
	}
	if err := f.w.CancelServiceDiscovery(bid); !errors.Is(err, ErrServiceRequestNotFound) {
		t.Fatalf("second cancel error = %v", err)
	}
}

func TestServiceDiscoveryLimit(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxServiceRequests = 1
	f := newFixture(t, WithLimits(limits))
	if _, err := f.w.RequestServiceDiscovery(peerMissing, []byte{1}); err != nil {
		t.Fatalf("RequestServiceDiscovery: %v", err)
	}
	if _, err := f.w.RequestServiceDiscovery(peerMissing, []byte{1}); !errors.Is(err, ErrServiceRequestLimit) {
		t.Fatalf("over limit error = %v", err)
	}
}

func TestLocalServices(t *testing.T) {
	f := newFixture(t)
	if err := f.w.AddBonjourService([]byte("q"), []byte("r")); err != nil {
		t.Fatalf("AddBonjourService: %v", err)
	}
	if err := f.w.AddUpnpService(0x10, "urn:x"); err != nil {
		t.Fatalf("AddUpnpService: %v", err)
	}
	if err := f.w.RemoveUpnpService(0x10, "urn:y"); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("RemoveUpnpService(unknown) error = %v", err)
	}
	if b, u := f.w.LocalServiceCount(); b != 1 || u != 1 {
		t.Fatalf("LocalServiceCount = %d/%d", b, u)
	}
	if err := f.w.FlushServices(); err != nil {
		t.Fatalf("FlushServices: %v", err)
	}
	if err := f.w.RemoveBonjourService([]byte("q")); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("RemoveBonjourService after flush error = %v", err)
	}
}

func TestFlushClearsDiscoveryState(t *testing.T) {
	f := newFixture(t)
	if _, err := f.w.RequestServiceDiscovery(model.ZeroMacAddr, []byte{1}); err != nil {
		t.Fatalf("RequestServiceDiscovery: %v", err)
	}
	if _, err := f.w.Connect(ConnectRequest{Peer: peerPrinter}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := f.w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if f.w.HasPendingConnect() || len(f.w.OutstandingServiceRequests()) != 0 {
		t.Fatalf("Flush left state behind")
	}
}

type countsRecorder struct {
	mu   sync.Mutex
	last EngineCounts
}

func (c *countsRecorder) SetEngineCounts(counts EngineCounts) {
	c.mu.Lock()
	c.last = counts
	c.mu.Unlock()
}

func TestMetricsRecorderSeesCounts(t *testing.T) {
	rec := &countsRecorder{}
	f := newFixture(t, WithMetricsRecorder(rec))
	if _, err := f.w.AddNetwork(); err != nil {
		t.Fatalf("AddNetwork: %v", err)
	}
	if _, err := f.w.AddGroup(false, model.NetworkIDNone); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := EngineCounts{Interfaces: 1, Networks: 1, Groups: 1, Peers: 2}
	if rec.last != want {
		t.Fatalf("counts = %+v, want %+v", rec.last, want)
	}
}

func TestWPSChecksum(t *testing.T) {
	// 1234567 has check digit 0 under the WPS PIN checksum.
	if !ValidPinChecksum("12345670") {
		t.Fatalf("12345670 rejected")
	}
	if ValidPinChecksum("12345678") {
		t.Fatalf("12345678 accepted")
	}
	for i := 0; i < 20; i++ {
		pin, err := generatePin()
		if err != nil {
			t.Fatalf("generatePin: %v", err)
		}
		if !ValidPinChecksum(pin) {
			t.Fatalf("generated pin %q invalid", pin)
		}
	}
}

func TestChannelTable(t *testing.T) {
	if _, err := NewChannelTable([]ChannelClass{{OperatingClass: 81}}); err == nil {
		t.Fatalf("empty class accepted")
	}
	tbl, err := NewChannelTable([]ChannelClass{
		{OperatingClass: 115, Channels: []uint32{36, 40}},
		{OperatingClass: 81, Channels: []uint32{6, 1}},
	})
	if err != nil {
		t.Fatalf("NewChannelTable: %v", err)
	}
	classes := tbl.Classes()
	if len(classes) != 2 || classes[0].OperatingClass != 81 || classes[0].Channels[0] != 1 {
		t.Fatalf("Classes() = %+v", classes)
	}
	if !tbl.Supports(40, 115) || tbl.Supports(11, 81) {
		t.Fatalf("Supports mismatch")
	}
	if channelFrequency(6) != 2437 || channelFrequency(36) != 5180 {
		t.Fatalf("channelFrequency mismatch")
	}
}
