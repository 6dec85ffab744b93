package p2pv1

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestCodecRegistered(t *testing.T) {
	if c := encoding.GetCodec(CodecName); c == nil {
		t.Fatalf("codec %q not registered", CodecName)
	}
}

func TestCodecPlainStruct(t *testing.T) {
	c := Codec{}
	at := time.Unix(1_700_000_000, 5).UTC()
	in := &Event{
		Type:        "DEVICE_FOUND",
		Ifname:      "p2p0",
		At:          timestamppb.New(at),
		PeerAddress: []byte{0x02, 0, 0, 0, 0, 1},
		Device:      &Device{Address: []byte{0x02, 0, 0, 0, 0, 1}, DeviceName: "camera"},
	}
	data, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"type":"DEVICE_FOUND"`) {
		t.Fatalf("encoded event missing type: %s", data)
	}

	var out Event
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Type != in.Type || out.Ifname != in.Ifname || !bytes.Equal(out.PeerAddress, in.PeerAddress) {
		t.Fatalf("decoded = %+v", out)
	}
	if out.Device == nil || out.Device.DeviceName != "camera" {
		t.Fatalf("decoded device = %+v", out.Device)
	}
	if !out.At.AsTime().Equal(at) {
		t.Fatalf("decoded time = %v, want %v", out.At.AsTime(), at)
	}
}

func TestCodecProtoMessage(t *testing.T) {
	c := Codec{}
	data, err := c.Marshal(&emptypb.Empty{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != "{}" {
		t.Fatalf("empty encoded as %q", data)
	}
	if err := c.Unmarshal([]byte(`{"unknown":1}`), &emptypb.Empty{}); err != nil {
		t.Fatalf("Unmarshal with unknown field: %v", err)
	}
}

func TestCodecRejectsGarbage(t *testing.T) {
	var req IfaceRequest
	if err := (Codec{}).Unmarshal([]byte("{"), &req); err == nil {
		t.Fatalf("expected error for truncated input")
	}
}
