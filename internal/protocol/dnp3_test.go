package protocol

import (
	"encoding/binary"
	"testing"

	"icsdissect/internal/asset"
	"icsdissect/internal/capture"
)

func dnp3Payload(length uint8, ctrl uint8, dst, src uint16) []byte {
	b := make([]byte, 8)
	b[0] = 0x05
	b[1] = 0x64
	b[2] = length
	b[3] = ctrl
	binary.LittleEndian.PutUint16(b[4:6], dst)
	binary.LittleEndian.PutUint16(b[6:8], src)
	return b
}

func TestDNP3ParseRequest(t *testing.T) {
	p := NewDNP3Parser(asset.Empty())
	info := &capture.PacketInfo{L4Proto: l4TCP, DstPort: dnp3Port, Payload: dnp3Payload(10, 0xc0, 4, 3)}

	if !p.IsProtocol(info) {
		t.Fatalf("expected IsProtocol true for dnp3 start bytes on port 20000")
	}
	recs := p.Parse(info)
	if len(recs) != 1 || recs[0].Dir != "request" {
		t.Fatalf("expected one request record, got %+v", recs)
	}
	if recs[0].DNP3.Dst != 4 || recs[0].DNP3.Src != 3 {
		t.Fatalf("expected dst=4 src=3, got %+v", recs[0].DNP3)
	}
}

func TestDNP3ParseResponseWhenDirBitClear(t *testing.T) {
	p := NewDNP3Parser(asset.Empty())
	info := &capture.PacketInfo{L4Proto: l4TCP, SrcPort: dnp3Port, Payload: dnp3Payload(10, 0x40, 3, 4)}

	recs := p.Parse(info)
	if len(recs) != 1 || recs[0].Dir != "response" {
		t.Fatalf("expected response direction, got %+v", recs)
	}
}

func TestDNP3RejectsBadStartBytes(t *testing.T) {
	p := NewDNP3Parser(asset.Empty())
	info := &capture.PacketInfo{L4Proto: l4TCP, DstPort: dnp3Port, Payload: []byte{0x00, 0x00, 0, 0, 0, 0}}
	if p.IsProtocol(info) {
		t.Fatalf("expected IsProtocol false for bad start bytes")
	}
}
