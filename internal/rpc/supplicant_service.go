package rpc

import (
	"context"

	p2pv1 "github.com/signalsfoundry/p2p-supplicant/api/p2p/v1"
	"github.com/signalsfoundry/p2p-supplicant/internal/logging"
	"github.com/signalsfoundry/p2p-supplicant/internal/p2p"
	"github.com/signalsfoundry/p2p-supplicant/internal/supplicant"
	"google.golang.org/protobuf/types/known/emptypb"
)

// SupplicantService implements the Supplicant gRPC server: interface
// lifecycle on top of a supplicant.Supplicant.
type SupplicantService struct {
	p2pv1.UnimplementedSupplicantServer

	sup *supplicant.Supplicant
	log logging.Logger
}

// NewSupplicantService constructs a SupplicantService bound to sup.
func NewSupplicantService(sup *supplicant.Supplicant, log logging.Logger) *SupplicantService {
	if log == nil {
		log = logging.Noop()
	}
	return &SupplicantService{sup: sup, log: log}
}

// ListInterfaces describes every managed interface.
func (s *SupplicantService) ListInterfaces(ctx context.Context, _ *emptypb.Empty) (*p2pv1.ListInterfacesResponse, error) {
	resp := &p2pv1.ListInterfacesResponse{Interfaces: []*p2pv1.InterfaceInfo{}}
	for _, name := range s.sup.ListInterfaces() {
		var info *p2pv1.InterfaceInfo
		err := s.sup.Do(ctx, name, func(f *p2p.Iface) (err error) {
			info, err = interfaceInfo(ctx, f)
			return err
		})
		if err != nil {
			// Removed between listing and describing.
			continue
		}
		resp.Interfaces = append(resp.Interfaces, info)
	}
	return resp, nil
}

// AddInterface brings up a P2P interface.
func (s *SupplicantService) AddInterface(ctx context.Context, req *p2pv1.IfaceRequest) (*p2pv1.InterfaceInfo, error) {
	ctx, reqLog := logging.WithRequestLogger(ctx, s.log)
	reqLog = reqLog.With(logging.Ifname(req.Ifname), logging.String("operation", "add"))

	if err := ValidateIfname(req.Ifname); err != nil {
		reqLog.Debug(ctx, "AddInterface validation failed", logging.Err(err))
		return nil, ToStatusError(err)
	}

	ctx, span := StartChildSpan(ctx, req.Ifname, "addInterface")
	defer span.End()

	f, err := s.sup.AddP2PInterface(ctx, req.Ifname)
	if err != nil {
		reqLog.Warn(ctx, "AddInterface failed", logging.Err(err))
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	info, err := interfaceInfo(ctx, f)
	if err != nil {
		return nil, ToStatusError(err)
	}
	reqLog.Info(ctx, "interface added")
	return info, nil
}

// RemoveInterface tears an interface down.
func (s *SupplicantService) RemoveInterface(ctx context.Context, req *p2pv1.IfaceRequest) (*emptypb.Empty, error) {
	ctx, reqLog := logging.WithRequestLogger(ctx, s.log)
	reqLog = reqLog.With(logging.Ifname(req.Ifname), logging.String("operation", "remove"))

	if err := ValidateIfname(req.Ifname); err != nil {
		return nil, ToStatusError(err)
	}

	ctx, span := StartChildSpan(ctx, req.Ifname, "removeInterface")
	defer span.End()

	if err := s.sup.RemoveInterface(ctx, req.Ifname); err != nil {
		reqLog.Warn(ctx, "RemoveInterface failed", logging.Err(err))
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	reqLog.Info(ctx, "interface removed")
	return &emptypb.Empty{}, nil
}

func interfaceInfo(ctx context.Context, f *p2p.Iface) (*p2pv1.InterfaceInfo, error) {
	name, err := f.GetName(ctx)
	if err != nil {
		return nil, err
	}
	t, err := f.GetType(ctx)
	if err != nil {
		return nil, err
	}
	addr, err := f.GetDeviceAddress(ctx)
	if err != nil {
		return nil, err
	}
	return &p2pv1.InterfaceInfo{
		Ifname:        name,
		Type:          t.String(),
		DeviceAddress: addr.Bytes(),
		HasCallback:   f.HasCallback(),
	}, nil
}
