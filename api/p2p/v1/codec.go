// Package p2pv1 defines the gRPC surface of the P2P supplicant: the
// P2PIface service, with one RPC per interface operation plus a server
// stream for events, and the Supplicant service that manages interfaces.
//
// The contract is p2p.proto. Its messages are plain Go structs here,
// carried by the "json" codec registered in this package with the proto3
// JSON mapping, so protojson clients in any language interoperate.
// Well-known protobuf types (emptypb, timestamppb) are encoded with
// protojson.
package p2pv1

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// CodecName is the gRPC content-subtype of every message in this package.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(Codec{})
}

// Codec marshals protobuf messages with protojson and everything else
// with encoding/json.
type Codec struct{}

// Marshal encodes v.
func (Codec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return protojson.Marshal(m)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("p2pv1: marshal %T: %w", v, err)
	}
	return b, nil
}

// Unmarshal decodes data into v.
func (Codec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(data, m)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("p2pv1: unmarshal %T: %w", v, err)
	}
	return nil
}

// Name returns CodecName.
func (Codec) Name() string { return CodecName }

// CallOption selects the package codec on a client call. The generated
// clients add it automatically.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}
