package p2pv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, service, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := cc.Invoke(ctx, "/"+service+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// P2PIfaceClient is the client API of the P2PIface service.
type P2PIfaceClient struct {
	cc grpc.ClientConnInterface
}

// NewP2PIfaceClient returns a client that issues calls on cc.
func NewP2PIfaceClient(cc grpc.ClientConnInterface) *P2PIfaceClient {
	return &P2PIfaceClient{cc: cc}
}

func ifaceCall[Resp any](ctx context.Context, c *P2PIfaceClient, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	return invoke[Resp](ctx, c.cc, P2PIfaceServiceName, method, in, opts)
}

func (c *P2PIfaceClient) GetName(ctx context.Context, in *IfaceRequest, opts ...grpc.CallOption) (*NameResponse, error) {
	return ifaceCall[NameResponse](ctx, c, "GetName", in, opts)
}

func (c *P2PIfaceClient) GetType(ctx context.Context, in *IfaceRequest, opts ...grpc.CallOption) (*TypeResponse, error) {
	return ifaceCall[TypeResponse](ctx, c, "GetType", in, opts)
}

func (c *P2PIfaceClient) GetDeviceAddress(ctx context.Context, in *IfaceRequest, opts ...grpc.CallOption) (*AddressResponse, error) {
	return ifaceCall[AddressResponse](ctx, c, "GetDeviceAddress", in, opts)
}

func (c *P2PIfaceClient) AddNetwork(ctx context.Context, in *IfaceRequest, opts ...grpc.CallOption) (*NetworkInfo, error) {
	return ifaceCall[NetworkInfo](ctx, c, "AddNetwork", in, opts)
}

func (c *P2PIfaceClient) RemoveNetwork(ctx context.Context, in *NetworkRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "RemoveNetwork", in, opts)
}

func (c *P2PIfaceClient) GetNetwork(ctx context.Context, in *NetworkRequest, opts ...grpc.CallOption) (*NetworkInfo, error) {
	return ifaceCall[NetworkInfo](ctx, c, "GetNetwork", in, opts)
}

func (c *P2PIfaceClient) ListNetworks(ctx context.Context, in *IfaceRequest, opts ...grpc.CallOption) (*ListNetworksResponse, error) {
	return ifaceCall[ListNetworksResponse](ctx, c, "ListNetworks", in, opts)
}

func (c *P2PIfaceClient) SetNetworkClientList(ctx context.Context, in *SetClientListRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "SetNetworkClientList", in, opts)
}

// RegisterCallback opens the event stream of an interface. The stream ends
// when another stream registers for the same interface or the interface
// goes away.
func (c *P2PIfaceClient) RegisterCallback(ctx context.Context, in *IfaceRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Event], error) {
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	stream, err := c.cc.NewStream(ctx, &P2PIfaceServiceDesc.Streams[0], "/"+P2PIfaceServiceName+"/RegisterCallback", opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[IfaceRequest, Event]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *P2PIfaceClient) SetSsidPostfix(ctx context.Context, in *SsidPostfixRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "SetSsidPostfix", in, opts)
}

func (c *P2PIfaceClient) SetGroupIdle(ctx context.Context, in *GroupIdleRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "SetGroupIdle", in, opts)
}

func (c *P2PIfaceClient) SetPowerSave(ctx context.Context, in *PowerSaveRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "SetPowerSave", in, opts)
}

func (c *P2PIfaceClient) ConfigureExtListen(ctx context.Context, in *ExtListenRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "ConfigureExtListen", in, opts)
}

func (c *P2PIfaceClient) SetListenChannel(ctx context.Context, in *ListenChannelRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "SetListenChannel", in, opts)
}

func (c *P2PIfaceClient) Find(ctx context.Context, in *FindRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "Find", in, opts)
}

func (c *P2PIfaceClient) StopFind(ctx context.Context, in *IfaceRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "StopFind", in, opts)
}

func (c *P2PIfaceClient) Flush(ctx context.Context, in *IfaceRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "Flush", in, opts)
}

func (c *P2PIfaceClient) Connect(ctx context.Context, in *ConnectRequest, opts ...grpc.CallOption) (*ConnectResponse, error) {
	return ifaceCall[ConnectResponse](ctx, c, "Connect", in, opts)
}

func (c *P2PIfaceClient) CancelConnect(ctx context.Context, in *IfaceRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "CancelConnect", in, opts)
}

func (c *P2PIfaceClient) ProvisionDiscovery(ctx context.Context, in *ProvisionDiscoveryRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "ProvisionDiscovery", in, opts)
}

func (c *P2PIfaceClient) AddGroup(ctx context.Context, in *AddGroupRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "AddGroup", in, opts)
}

func (c *P2PIfaceClient) RemoveGroup(ctx context.Context, in *GroupRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "RemoveGroup", in, opts)
}

func (c *P2PIfaceClient) Reject(ctx context.Context, in *PeerRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "Reject", in, opts)
}

func (c *P2PIfaceClient) Invite(ctx context.Context, in *InviteRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "Invite", in, opts)
}

func (c *P2PIfaceClient) Reinvoke(ctx context.Context, in *ReinvokeRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "Reinvoke", in, opts)
}

func (c *P2PIfaceClient) GetSsid(ctx context.Context, in *PeerRequest, opts ...grpc.CallOption) (*SsidResponse, error) {
	return ifaceCall[SsidResponse](ctx, c, "GetSsid", in, opts)
}

func (c *P2PIfaceClient) GetGroupCapability(ctx context.Context, in *PeerRequest, opts ...grpc.CallOption) (*GroupCapabilityResponse, error) {
	return ifaceCall[GroupCapabilityResponse](ctx, c, "GetGroupCapability", in, opts)
}

func (c *P2PIfaceClient) AddBonjourService(ctx context.Context, in *BonjourServiceRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "AddBonjourService", in, opts)
}

func (c *P2PIfaceClient) RemoveBonjourService(ctx context.Context, in *BonjourServiceRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "RemoveBonjourService", in, opts)
}

func (c *P2PIfaceClient) AddUpnpService(ctx context.Context, in *UpnpServiceRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "AddUpnpService", in, opts)
}

func (c *P2PIfaceClient) RemoveUpnpService(ctx context.Context, in *UpnpServiceRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "RemoveUpnpService", in, opts)
}

func (c *P2PIfaceClient) FlushServices(ctx context.Context, in *IfaceRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "FlushServices", in, opts)
}

func (c *P2PIfaceClient) RequestServiceDiscovery(ctx context.Context, in *ServiceDiscoveryRequest, opts ...grpc.CallOption) (*ServiceDiscoveryID, error) {
	return ifaceCall[ServiceDiscoveryID](ctx, c, "RequestServiceDiscovery", in, opts)
}

func (c *P2PIfaceClient) CancelServiceDiscovery(ctx context.Context, in *ServiceDiscoveryID, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return ifaceCall[emptypb.Empty](ctx, c, "CancelServiceDiscovery", in, opts)
}

// SupplicantClient is the client API of the Supplicant service.
type SupplicantClient struct {
	cc grpc.ClientConnInterface
}

// NewSupplicantClient returns a client that issues calls on cc.
func NewSupplicantClient(cc grpc.ClientConnInterface) *SupplicantClient {
	return &SupplicantClient{cc: cc}
}

func (c *SupplicantClient) ListInterfaces(ctx context.Context, opts ...grpc.CallOption) (*ListInterfacesResponse, error) {
	return invoke[ListInterfacesResponse](ctx, c.cc, SupplicantServiceName, "ListInterfaces", &emptypb.Empty{}, opts)
}

func (c *SupplicantClient) AddInterface(ctx context.Context, in *IfaceRequest, opts ...grpc.CallOption) (*InterfaceInfo, error) {
	return invoke[InterfaceInfo](ctx, c.cc, SupplicantServiceName, "AddInterface", in, opts)
}

func (c *SupplicantClient) RemoveInterface(ctx context.Context, in *IfaceRequest, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, SupplicantServiceName, "RemoveInterface", in, opts)
}
