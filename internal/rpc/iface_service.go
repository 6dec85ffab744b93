package rpc

import (
	"context"

	p2pv1 "github.com/signalsfoundry/p2p-supplicant/api/p2p/v1"
	"github.com/signalsfoundry/p2p-supplicant/internal/logging"
	"github.com/signalsfoundry/p2p-supplicant/internal/p2p"
	"github.com/signalsfoundry/p2p-supplicant/internal/supplicant"
	"github.com/signalsfoundry/p2p-supplicant/model"
	"google.golang.org/protobuf/types/known/emptypb"
)

// DefaultCallbackBuffer is the number of events a callback stream may
// queue before new events are dropped.
const DefaultCallbackBuffer = 64

// IfaceService implements the P2PIface gRPC server on top of the facades
// owned by a Supplicant. Every call runs under the per-interface lock of
// the manager.
type IfaceService struct {
	sup *supplicant.Supplicant
	log logging.Logger

	callbackBuffer int
}

// NewIfaceService constructs an IfaceService bound to sup.
func NewIfaceService(sup *supplicant.Supplicant, log logging.Logger) *IfaceService {
	if log == nil {
		log = logging.Noop()
	}
	return &IfaceService{
		sup:            sup,
		log:            log,
		callbackBuffer: DefaultCallbackBuffer,
	}
}

var _ p2pv1.P2PIfaceServer = (*IfaceService)(nil)

// do validates ifname and runs fn against its facade inside a child span.
// The returned error is already a gRPC status.
func (s *IfaceService) do(ctx context.Context, ifname, op string, fn func(context.Context, *p2p.Iface) error) error {
	if err := ValidateIfname(ifname); err != nil {
		return ToStatusError(err)
	}
	ctx, span := StartChildSpan(ctx, ifname, op)
	defer span.End()

	err := s.sup.Do(ctx, ifname, func(f *p2p.Iface) error { return fn(ctx, f) })
	if err != nil {
		span.RecordError(err)
		logging.FromContext(ctx, s.log).Debug(ctx, "interface operation failed",
			logging.Ifname(ifname),
			logging.Op(op),
			logging.Err(err),
		)
		return ToStatusError(err)
	}
	return nil
}

func empty(err error) (*emptypb.Empty, error) {
	if err != nil {
		return nil, err
	}
	return &emptypb.Empty{}, nil
}

func result[T any](v *T, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	return v, nil
}

// GetName returns the interface name.
func (s *IfaceService) GetName(ctx context.Context, req *p2pv1.IfaceRequest) (*p2pv1.NameResponse, error) {
	out := &p2pv1.NameResponse{}
	return result(out, s.do(ctx, req.Ifname, "getName", func(ctx context.Context, f *p2p.Iface) (err error) {
		out.Name, err = f.GetName(ctx)
		return err
	}))
}

// GetType returns the interface type.
func (s *IfaceService) GetType(ctx context.Context, req *p2pv1.IfaceRequest) (*p2pv1.TypeResponse, error) {
	out := &p2pv1.TypeResponse{}
	return result(out, s.do(ctx, req.Ifname, "getType", func(ctx context.Context, f *p2p.Iface) error {
		t, err := f.GetType(ctx)
		out.Type = t.String()
		return err
	}))
}

// GetDeviceAddress returns the P2P device address.
func (s *IfaceService) GetDeviceAddress(ctx context.Context, req *p2pv1.IfaceRequest) (*p2pv1.AddressResponse, error) {
	out := &p2pv1.AddressResponse{}
	return result(out, s.do(ctx, req.Ifname, "getDeviceAddress", func(ctx context.Context, f *p2p.Iface) error {
		addr, err := f.GetDeviceAddress(ctx)
		out.Address = addr.Bytes()
		return err
	}))
}

// AddNetwork allocates a network profile.
func (s *IfaceService) AddNetwork(ctx context.Context, req *p2pv1.IfaceRequest) (*p2pv1.NetworkInfo, error) {
	var out *p2pv1.NetworkInfo
	err := s.do(ctx, req.Ifname, "addNetwork", func(ctx context.Context, f *p2p.Iface) error {
		n, err := f.AddNetwork(ctx)
		if err != nil {
			return err
		}
		info, err := n.Info(ctx)
		if err != nil {
			return err
		}
		out = NetworkToProto(req.Ifname, info)
		return nil
	})
	return result(out, err)
}

// RemoveNetwork deletes a network profile.
func (s *IfaceService) RemoveNetwork(ctx context.Context, req *p2pv1.NetworkRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "removeNetwork", func(ctx context.Context, f *p2p.Iface) error {
		return f.RemoveNetwork(ctx, model.NetworkID(req.NetworkID))
	}))
}

// GetNetwork describes a live network profile.
func (s *IfaceService) GetNetwork(ctx context.Context, req *p2pv1.NetworkRequest) (*p2pv1.NetworkInfo, error) {
	var out *p2pv1.NetworkInfo
	err := s.do(ctx, req.Ifname, "getNetwork", func(ctx context.Context, f *p2p.Iface) error {
		n, err := f.GetNetwork(ctx, model.NetworkID(req.NetworkID))
		if err != nil {
			return err
		}
		info, err := n.Info(ctx)
		if err != nil {
			return err
		}
		out = NetworkToProto(req.Ifname, info)
		return nil
	})
	return result(out, err)
}

// ListNetworks lists live profile ids.
func (s *IfaceService) ListNetworks(ctx context.Context, req *p2pv1.IfaceRequest) (*p2pv1.ListNetworksResponse, error) {
	out := &p2pv1.ListNetworksResponse{NetworkIDs: []uint32{}}
	return result(out, s.do(ctx, req.Ifname, "listNetworks", func(ctx context.Context, f *p2p.Iface) error {
		ids, err := f.ListNetworks(ctx)
		for _, id := range ids {
			out.NetworkIDs = append(out.NetworkIDs, uint32(id))
		}
		return err
	}))
}

// SetNetworkClientList replaces the clients of a persistent profile.
func (s *IfaceService) SetNetworkClientList(ctx context.Context, req *p2pv1.SetClientListRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "setNetworkClientList", func(ctx context.Context, f *p2p.Iface) error {
		n, err := f.GetNetwork(ctx, model.NetworkID(req.NetworkID))
		if err != nil {
			return err
		}
		return n.SetClientList(ctx, req.Clients)
	}))
}

// SetSsidPostfix sets the group SSID postfix.
func (s *IfaceService) SetSsidPostfix(ctx context.Context, req *p2pv1.SsidPostfixRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "setSsidPostfix", func(ctx context.Context, f *p2p.Iface) error {
		return f.SetSsidPostfix(ctx, req.Postfix)
	}))
}

// SetGroupIdle sets the group idle timeout.
func (s *IfaceService) SetGroupIdle(ctx context.Context, req *p2pv1.GroupIdleRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "setGroupIdle", func(ctx context.Context, f *p2p.Iface) error {
		return f.SetGroupIdle(ctx, req.TimeoutSec)
	}))
}

// SetPowerSave toggles power save.
func (s *IfaceService) SetPowerSave(ctx context.Context, req *p2pv1.PowerSaveRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "setPowerSave", func(ctx context.Context, f *p2p.Iface) error {
		return f.SetPowerSave(ctx, req.Enable)
	}))
}

// ConfigureExtListen configures extended listen timing.
func (s *IfaceService) ConfigureExtListen(ctx context.Context, req *p2pv1.ExtListenRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "configureExtListen", func(ctx context.Context, f *p2p.Iface) error {
		return f.ConfigureExtListen(ctx, req.Enable, req.PeriodMs, req.IntervalMs)
	}))
}

// SetListenChannel selects the listen channel.
func (s *IfaceService) SetListenChannel(ctx context.Context, req *p2pv1.ListenChannelRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "setListenChannel", func(ctx context.Context, f *p2p.Iface) error {
		return f.SetListenChannel(ctx, req.Channel, req.OperatingClass)
	}))
}

// Find starts discovery.
func (s *IfaceService) Find(ctx context.Context, req *p2pv1.FindRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "find", func(ctx context.Context, f *p2p.Iface) error {
		return f.Find(ctx, req.TimeoutSec)
	}))
}

// StopFind ends discovery.
func (s *IfaceService) StopFind(ctx context.Context, req *p2pv1.IfaceRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "stopFind", func(ctx context.Context, f *p2p.Iface) error {
		return f.StopFind(ctx)
	}))
}

// Flush clears discovery state.
func (s *IfaceService) Flush(ctx context.Context, req *p2pv1.IfaceRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "flush", func(ctx context.Context, f *p2p.Iface) error {
		return f.Flush(ctx)
	}))
}

// Connect starts a connection with a peer.
func (s *IfaceService) Connect(ctx context.Context, req *p2pv1.ConnectRequest) (*p2pv1.ConnectResponse, error) {
	method, err := ParseProvisionMethod(req.ProvisionMethod)
	if err != nil {
		return nil, ToStatusError(err)
	}
	out := &p2pv1.ConnectResponse{}
	return result(out, s.do(ctx, req.Ifname, "connect", func(ctx context.Context, f *p2p.Iface) (err error) {
		out.GeneratedPin, err = f.Connect(ctx, p2p.ConnectParams{
			PeerAddress:       req.PeerAddress,
			ProvisionMethod:   method,
			PreSelectedPin:    req.PreSelectedPin,
			JoinExistingGroup: req.JoinExistingGroup,
			Persistent:        req.Persistent,
			GoIntent:          req.GoIntent,
		})
		return err
	}))
}

// CancelConnect aborts the pending connection.
func (s *IfaceService) CancelConnect(ctx context.Context, req *p2pv1.IfaceRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "cancelConnect", func(ctx context.Context, f *p2p.Iface) error {
		return f.CancelConnect(ctx)
	}))
}

// ProvisionDiscovery asks a peer for its provisioning method.
func (s *IfaceService) ProvisionDiscovery(ctx context.Context, req *p2pv1.ProvisionDiscoveryRequest) (*emptypb.Empty, error) {
	method, err := ParseProvisionMethod(req.ProvisionMethod)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return empty(s.do(ctx, req.Ifname, "provisionDiscovery", func(ctx context.Context, f *p2p.Iface) error {
		return f.ProvisionDiscovery(ctx, req.PeerAddress, method)
	}))
}

// AddGroup starts an autonomous group.
func (s *IfaceService) AddGroup(ctx context.Context, req *p2pv1.AddGroupRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "addGroup", func(ctx context.Context, f *p2p.Iface) error {
		return f.AddGroup(ctx, req.Persistent, model.NetworkID(req.NetworkID))
	}))
}

// RemoveGroup tears down a group.
func (s *IfaceService) RemoveGroup(ctx context.Context, req *p2pv1.GroupRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "removeGroup", func(ctx context.Context, f *p2p.Iface) error {
		return f.RemoveGroup(ctx, req.GroupIfname)
	}))
}

// Reject refuses a peer.
func (s *IfaceService) Reject(ctx context.Context, req *p2pv1.PeerRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "reject", func(ctx context.Context, f *p2p.Iface) error {
		return f.Reject(ctx, req.PeerAddress)
	}))
}

// Invite invites a peer into a group.
func (s *IfaceService) Invite(ctx context.Context, req *p2pv1.InviteRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "invite", func(ctx context.Context, f *p2p.Iface) error {
		return f.Invite(ctx, req.GroupIfname, req.GoDeviceAddress, req.PeerAddress)
	}))
}

// Reinvoke restarts a persistent group with a peer.
func (s *IfaceService) Reinvoke(ctx context.Context, req *p2pv1.ReinvokeRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "reinvoke", func(ctx context.Context, f *p2p.Iface) error {
		return f.Reinvoke(ctx, model.NetworkID(req.NetworkID), req.PeerAddress)
	}))
}

// GetSsid returns a peer's group SSID.
func (s *IfaceService) GetSsid(ctx context.Context, req *p2pv1.PeerRequest) (*p2pv1.SsidResponse, error) {
	out := &p2pv1.SsidResponse{}
	return result(out, s.do(ctx, req.Ifname, "getSsid", func(ctx context.Context, f *p2p.Iface) (err error) {
		out.Ssid, err = f.GetSsid(ctx, req.PeerAddress)
		return err
	}))
}

// GetGroupCapability returns a peer's group capability.
func (s *IfaceService) GetGroupCapability(ctx context.Context, req *p2pv1.PeerRequest) (*p2pv1.GroupCapabilityResponse, error) {
	out := &p2pv1.GroupCapabilityResponse{}
	return result(out, s.do(ctx, req.Ifname, "getGroupCapability", func(ctx context.Context, f *p2p.Iface) (err error) {
		out.Capability, err = f.GetGroupCapability(ctx, req.PeerAddress)
		return err
	}))
}

// AddBonjourService advertises a Bonjour service.
func (s *IfaceService) AddBonjourService(ctx context.Context, req *p2pv1.BonjourServiceRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "addBonjourService", func(ctx context.Context, f *p2p.Iface) error {
		return f.AddBonjourService(ctx, req.Query, req.Response)
	}))
}

// RemoveBonjourService withdraws a Bonjour service.
func (s *IfaceService) RemoveBonjourService(ctx context.Context, req *p2pv1.BonjourServiceRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "removeBonjourService", func(ctx context.Context, f *p2p.Iface) error {
		return f.RemoveBonjourService(ctx, req.Query)
	}))
}

// AddUpnpService advertises a UPnP service.
func (s *IfaceService) AddUpnpService(ctx context.Context, req *p2pv1.UpnpServiceRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "addUpnpService", func(ctx context.Context, f *p2p.Iface) error {
		return f.AddUpnpService(ctx, req.Version, req.ServiceName)
	}))
}

// RemoveUpnpService withdraws a UPnP service.
func (s *IfaceService) RemoveUpnpService(ctx context.Context, req *p2pv1.UpnpServiceRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "removeUpnpService", func(ctx context.Context, f *p2p.Iface) error {
		return f.RemoveUpnpService(ctx, req.Version, req.ServiceName)
	}))
}

// FlushServices withdraws every local service.
func (s *IfaceService) FlushServices(ctx context.Context, req *p2pv1.IfaceRequest) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "flushServices", func(ctx context.Context, f *p2p.Iface) error {
		return f.FlushServices(ctx)
	}))
}

// RequestServiceDiscovery sends a service discovery query.
func (s *IfaceService) RequestServiceDiscovery(ctx context.Context, req *p2pv1.ServiceDiscoveryRequest) (*p2pv1.ServiceDiscoveryID, error) {
	out := &p2pv1.ServiceDiscoveryID{Ifname: req.Ifname}
	return result(out, s.do(ctx, req.Ifname, "requestServiceDiscovery", func(ctx context.Context, f *p2p.Iface) (err error) {
		out.RequestID, err = f.RequestServiceDiscovery(ctx, req.PeerAddress, req.Query)
		return err
	}))
}

// CancelServiceDiscovery cancels an outstanding query.
func (s *IfaceService) CancelServiceDiscovery(ctx context.Context, req *p2pv1.ServiceDiscoveryID) (*emptypb.Empty, error) {
	return empty(s.do(ctx, req.Ifname, "cancelServiceDiscovery", func(ctx context.Context, f *p2p.Iface) error {
		return f.CancelServiceDiscovery(ctx, req.RequestID)
	}))
}
