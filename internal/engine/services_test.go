package engine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/signalsfoundry/p2p-supplicant/model"
)

// queryAll asks for every service of every protocol with transaction id 1.
var queryAll = []byte{0x02, 0x00, ServiceProtocolAll, 0x01}

func TestServiceRecordChecks(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"bonjour at limit", CheckBonjourRecord([]byte("q"), make([]byte, MaxTLVPayload-1))},
		{"bonjour over limit", CheckBonjourRecord([]byte("q"), make([]byte, MaxTLVPayload))},
		{"upnp version 255", CheckUpnpRecord(MaxUpnpVersion, "urn:x")},
		{"upnp version 256", CheckUpnpRecord(MaxUpnpVersion+1, "urn:x")},
		{"upnp name over limit", CheckUpnpRecord(1, string(make([]byte, MaxTLVPayload)))},
	}
	want := map[string]bool{
		"bonjour over limit":   true,
		"upnp version 256":     true,
		"upnp name over limit": true,
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := errors.Is(tc.err, ErrInvalidServiceRecord); got != want[tc.name] {
				t.Fatalf("error = %v, want invalid record %v", tc.err, want[tc.name])
			}
		})
	}
}

func TestAddServiceRejectsUnencodableRecords(t *testing.T) {
	f := newFixture(t)
	if err := f.w.AddUpnpService(0x100, "urn:x"); !errors.Is(err, ErrInvalidServiceRecord) {
		t.Fatalf("AddUpnpService(0x100) error = %v", err)
	}
	if err := f.w.AddBonjourService([]byte("q"), make([]byte, MaxTLVPayload)); !errors.Is(err, ErrInvalidServiceRecord) {
		t.Fatalf("AddBonjourService(oversize) error = %v", err)
	}
	if b, u := f.w.LocalServiceCount(); b != 0 || u != 0 {
		t.Fatalf("LocalServiceCount = %d/%d after rejected adds", b, u)
	}
}

func TestAnswerQueryLeavesOutUnencodableRecords(t *testing.T) {
	p := &model.Peer{
		BonjourServices: []model.BonjourService{
			{Query: []byte("big"), Response: make([]byte, MaxTLVPayload)},
			{Query: []byte("q"), Response: []byte("r")},
		},
		UpnpServices: []model.UpnpService{
			{Version: 0x1ff, Name: "urn:wide"},
			{Version: 0x10, Name: "urn:ok"},
		},
	}
	tlvs, err := answerQuery(p, queryAll)
	if !errors.Is(err, ErrInvalidServiceRecord) {
		t.Fatalf("answerQuery error = %v, want ErrInvalidServiceRecord", err)
	}

	var payloads [][]byte
	for len(tlvs) >= 2 {
		n := int(binary.LittleEndian.Uint16(tlvs[:2]))
		if len(tlvs) < 2+n || n < 3 {
			t.Fatalf("malformed TLV stream, length %d with %d bytes left", n, len(tlvs)-2)
		}
		payloads = append(payloads, tlvs[5:2+n])
		tlvs = tlvs[2+n:]
	}
	if len(payloads) != 2 {
		t.Fatalf("got %d TLVs, want 2", len(payloads))
	}
	if !bytes.Equal(payloads[0], []byte("qr")) {
		t.Fatalf("bonjour payload = %q", payloads[0])
	}
	if want := append([]byte{0x10}, "urn:ok"...); !bytes.Equal(payloads[1], want) {
		t.Fatalf("upnp payload = %q, want %q", payloads[1], want)
	}
}

func TestWriteTLVLengthAtLimit(t *testing.T) {
	var buf bytes.Buffer
	if err := writeTLV(&buf, ServiceProtocolBonjour, 7, make([]byte, MaxTLVPayload)); err != nil {
		t.Fatalf("writeTLV at limit: %v", err)
	}
	if got := binary.LittleEndian.Uint16(buf.Bytes()[:2]); got != 0xffff {
		t.Fatalf("length field = %#x, want 0xffff", got)
	}

	buf.Reset()
	if err := writeTLV(&buf, ServiceProtocolBonjour, 7, make([]byte, MaxTLVPayload+1)); !errors.Is(err, ErrInvalidServiceRecord) {
		t.Fatalf("writeTLV over limit error = %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("rejected TLV wrote %d bytes", buf.Len())
	}
}

func TestEventsStampedWhenGenerated(t *testing.T) {
	f := newFixture(t)
	f.settle(0)
	f.rec.reset()

	before := f.g.EventSeq()
	if _, err := f.w.AddNetwork(); err != nil {
		t.Fatalf("AddNetwork: %v", err)
	}
	mark := f.w.EventSeq()
	if mark <= before {
		t.Fatalf("EventSeq did not advance on generation: %d -> %d", before, mark)
	}
	if got := f.rec.ofType(model.EventNetworkAdded); len(got) != 0 {
		t.Fatalf("posted event emitted before the loop ran")
	}

	f.settle(0)
	got := f.rec.ofType(model.EventNetworkAdded)
	if len(got) != 1 || got[0].Seq != mark {
		t.Fatalf("network added events = %+v, want Seq %d", got, mark)
	}
}
