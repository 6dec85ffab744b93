package p2pv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

// Service names.
const (
	P2PIfaceServiceName   = "p2p.v1.P2PIface"
	SupplicantServiceName = "p2p.v1.Supplicant"
)

// P2PIfaceServer is the server API of the P2PIface service.
type P2PIfaceServer interface {
	GetName(context.Context, *IfaceRequest) (*NameResponse, error)
	GetType(context.Context, *IfaceRequest) (*TypeResponse, error)
	GetDeviceAddress(context.Context, *IfaceRequest) (*AddressResponse, error)

	AddNetwork(context.Context, *IfaceRequest) (*NetworkInfo, error)
	RemoveNetwork(context.Context, *NetworkRequest) (*emptypb.Empty, error)
	GetNetwork(context.Context, *NetworkRequest) (*NetworkInfo, error)
	ListNetworks(context.Context, *IfaceRequest) (*ListNetworksResponse, error)
	SetNetworkClientList(context.Context, *SetClientListRequest) (*emptypb.Empty, error)

	RegisterCallback(*IfaceRequest, grpc.ServerStreamingServer[Event]) error

	SetSsidPostfix(context.Context, *SsidPostfixRequest) (*emptypb.Empty, error)
	SetGroupIdle(context.Context, *GroupIdleRequest) (*emptypb.Empty, error)
	SetPowerSave(context.Context, *PowerSaveRequest) (*emptypb.Empty, error)
	ConfigureExtListen(context.Context, *ExtListenRequest) (*emptypb.Empty, error)
	SetListenChannel(context.Context, *ListenChannelRequest) (*emptypb.Empty, error)

	Find(context.Context, *FindRequest) (*emptypb.Empty, error)
	StopFind(context.Context, *IfaceRequest) (*emptypb.Empty, error)
	Flush(context.Context, *IfaceRequest) (*emptypb.Empty, error)
	Connect(context.Context, *ConnectRequest) (*ConnectResponse, error)
	CancelConnect(context.Context, *IfaceRequest) (*emptypb.Empty, error)
	ProvisionDiscovery(context.Context, *ProvisionDiscoveryRequest) (*emptypb.Empty, error)
	AddGroup(context.Context, *AddGroupRequest) (*emptypb.Empty, error)
	RemoveGroup(context.Context, *GroupRequest) (*emptypb.Empty, error)
	Reject(context.Context, *PeerRequest) (*emptypb.Empty, error)
	Invite(context.Context, *InviteRequest) (*emptypb.Empty, error)
	Reinvoke(context.Context, *ReinvokeRequest) (*emptypb.Empty, error)
	GetSsid(context.Context, *PeerRequest) (*SsidResponse, error)
	GetGroupCapability(context.Context, *PeerRequest) (*GroupCapabilityResponse, error)

	AddBonjourService(context.Context, *BonjourServiceRequest) (*emptypb.Empty, error)
	RemoveBonjourService(context.Context, *BonjourServiceRequest) (*emptypb.Empty, error)
	AddUpnpService(context.Context, *UpnpServiceRequest) (*emptypb.Empty, error)
	RemoveUpnpService(context.Context, *UpnpServiceRequest) (*emptypb.Empty, error)
	FlushServices(context.Context, *IfaceRequest) (*emptypb.Empty, error)
	RequestServiceDiscovery(context.Context, *ServiceDiscoveryRequest) (*ServiceDiscoveryID, error)
	CancelServiceDiscovery(context.Context, *ServiceDiscoveryID) (*emptypb.Empty, error)
}

// SupplicantServer is the server API of the Supplicant service.
type SupplicantServer interface {
	ListInterfaces(context.Context, *emptypb.Empty) (*ListInterfacesResponse, error)
	AddInterface(context.Context, *IfaceRequest) (*InterfaceInfo, error)
	RemoveInterface(context.Context, *IfaceRequest) (*emptypb.Empty, error)
}

// unary builds the method descriptor for one unary RPC of service.
func unary[S, Req, Resp any](service, method string, fn func(S, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(srv.(S), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func ifaceMethod[Req, Resp any](method string, fn func(P2PIfaceServer, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	return unary(P2PIfaceServiceName, method, fn)
}

func registerCallbackHandler(srv any, stream grpc.ServerStream) error {
	in := new(IfaceRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(P2PIfaceServer).RegisterCallback(in, &grpc.GenericServerStream[IfaceRequest, Event]{ServerStream: stream})
}

// P2PIfaceServiceDesc describes the P2PIface service.
var P2PIfaceServiceDesc = grpc.ServiceDesc{
	ServiceName: P2PIfaceServiceName,
	HandlerType: (*P2PIfaceServer)(nil),
	Methods: []grpc.MethodDesc{
		ifaceMethod("GetName", P2PIfaceServer.GetName),
		ifaceMethod("GetType", P2PIfaceServer.GetType),
		ifaceMethod("GetDeviceAddress", P2PIfaceServer.GetDeviceAddress),
		ifaceMethod("AddNetwork", P2PIfaceServer.AddNetwork),
		ifaceMethod("RemoveNetwork", P2PIfaceServer.RemoveNetwork),
		ifaceMethod("GetNetwork", P2PIfaceServer.GetNetwork),
		ifaceMethod("ListNetworks", P2PIfaceServer.ListNetworks),
		ifaceMethod("SetNetworkClientList", P2PIfaceServer.SetNetworkClientList),
		ifaceMethod("SetSsidPostfix", P2PIfaceServer.SetSsidPostfix),
		ifaceMethod("SetGroupIdle", P2PIfaceServer.SetGroupIdle),
		ifaceMethod("SetPowerSave", P2PIfaceServer.SetPowerSave),
		ifaceMethod("ConfigureExtListen", P2PIfaceServer.ConfigureExtListen),
		ifaceMethod("SetListenChannel", P2PIfaceServer.SetListenChannel),
		ifaceMethod("Find", P2PIfaceServer.Find),
		ifaceMethod("StopFind", P2PIfaceServer.StopFind),
		ifaceMethod("Flush", P2PIfaceServer.Flush),
		ifaceMethod("Connect", P2PIfaceServer.Connect),
		ifaceMethod("CancelConnect", P2PIfaceServer.CancelConnect),
		ifaceMethod("ProvisionDiscovery", P2PIfaceServer.ProvisionDiscovery),
		ifaceMethod("AddGroup", P2PIfaceServer.AddGroup),
		ifaceMethod("RemoveGroup", P2PIfaceServer.RemoveGroup),
		ifaceMethod("Reject", P2PIfaceServer.Reject),
		ifaceMethod("Invite", P2PIfaceServer.Invite),
		ifaceMethod("Reinvoke", P2PIfaceServer.Reinvoke),
		ifaceMethod("GetSsid", P2PIfaceServer.GetSsid),
		ifaceMethod("GetGroupCapability", P2PIfaceServer.GetGroupCapability),
		ifaceMethod("AddBonjourService", P2PIfaceServer.AddBonjourService),
		ifaceMethod("RemoveBonjourService", P2PIfaceServer.RemoveBonjourService),
		ifaceMethod("AddUpnpService", P2PIfaceServer.AddUpnpService),
		ifaceMethod("RemoveUpnpService", P2PIfaceServer.RemoveUpnpService),
		ifaceMethod("FlushServices", P2PIfaceServer.FlushServices),
		ifaceMethod("RequestServiceDiscovery", P2PIfaceServer.RequestServiceDiscovery),
		ifaceMethod("CancelServiceDiscovery", P2PIfaceServer.CancelServiceDiscovery),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "RegisterCallback",
			Handler:       registerCallbackHandler,
			ServerStreams: true,
		},
	},
	Metadata: "p2p/v1/p2p.proto",
}

// SupplicantServiceDesc describes the Supplicant service.
var SupplicantServiceDesc = grpc.ServiceDesc{
	ServiceName: SupplicantServiceName,
	HandlerType: (*SupplicantServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(SupplicantServiceName, "ListInterfaces", SupplicantServer.ListInterfaces),
		unary(SupplicantServiceName, "AddInterface", SupplicantServer.AddInterface),
		unary(SupplicantServiceName, "RemoveInterface", SupplicantServer.RemoveInterface),
	},
	Metadata: "p2p/v1/p2p.proto",
}

// RegisterP2PIfaceServer registers srv on s.
func RegisterP2PIfaceServer(s grpc.ServiceRegistrar, srv P2PIfaceServer) {
	s.RegisterService(&P2PIfaceServiceDesc, srv)
}

// RegisterSupplicantServer registers srv on s.
func RegisterSupplicantServer(s grpc.ServiceRegistrar, srv SupplicantServer) {
	s.RegisterService(&SupplicantServiceDesc, srv)
}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

// UnimplementedSupplicantServer can be embedded to satisfy
// SupplicantServer.
type UnimplementedSupplicantServer struct{}

func (UnimplementedSupplicantServer) ListInterfaces(context.Context, *emptypb.Empty) (*ListInterfacesResponse, error) {
	return nil, unimplemented("ListInterfaces")
}
func (UnimplementedSupplicantServer) AddInterface(context.Context, *IfaceRequest) (*InterfaceInfo, error) {
	return nil, unimplemented("AddInterface")
}
func (UnimplementedSupplicantServer) RemoveInterface(context.Context, *IfaceRequest) (*emptypb.Empty, error) {
	return nil, unimplemented("RemoveInterface")
}
