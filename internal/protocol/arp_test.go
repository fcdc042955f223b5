package protocol

import (
	"encoding/binary"
	"testing"

	"icsdissect/internal/asset"
	"icsdissect/internal/capture"
)

func arpRequestPayload() []byte {
	b := make([]byte, arpPayloadLen)
	binary.BigEndian.PutUint16(b[6:8], 1) // request
	copy(b[8:14], []byte{0x00, 0x0c, 0x29, 0x11, 0x22, 0x33})
	copy(b[14:18], []byte{192, 168, 1, 10})
	copy(b[18:24], []byte{0, 0, 0, 0, 0, 0})
	copy(b[24:28], []byte{192, 168, 1, 20})
	return b
}

func TestARPParseRequest(t *testing.T) {
	p := NewARPParser(asset.Empty())
	info := &capture.PacketInfo{EtherType: 0x0806, Timestamp: fixedTime(), Payload: arpRequestPayload()}

	if !p.IsProtocol(info) {
		t.Fatalf("expected IsProtocol true for ARP ethertype")
	}

	recs := p.Parse(info)
	if len(recs) != 1 {
		t.Fatalf("expected one record, got %d", len(recs))
	}
	r := recs[0]
	if r.Dir != "request" {
		t.Fatalf("expected request direction, got %q", r.Dir)
	}
	if r.SIP != "192.168.1.10" {
		t.Fatalf("expected sender ip 192.168.1.10, got %q", r.SIP)
	}
	if r.ARP.TIP != "192.168.1.20" {
		t.Fatalf("expected target ip 192.168.1.20, got %q", r.ARP.TIP)
	}
	if r.ARP.Op != 1 {
		t.Fatalf("expected op 1, got %d", r.ARP.Op)
	}
}

func TestARPParseRejectsShortPayload(t *testing.T) {
	p := NewARPParser(asset.Empty())
	info := &capture.PacketInfo{EtherType: 0x0806, Payload: []byte{1, 2, 3}}
	if recs := p.Parse(info); recs != nil {
		t.Fatalf("expected nil for too-short arp payload, got %+v", recs)
	}
}
