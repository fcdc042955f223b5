package protocol

import (
	"testing"

	"icsdissect/internal/asset"
	"icsdissect/internal/capture"
	"icsdissect/internal/record"
)

func TestGenericParserMatchesConfiguredPort(t *testing.T) {
	p := NewGenericParser(genericSpecs[0], asset.Empty()) // ethernet_ip, tcp/44818
	info := &capture.PacketInfo{L4Proto: l4TCP, DstPort: 44818, Payload: []byte{1, 2, 3}}

	if !p.IsProtocol(info) {
		t.Fatalf("expected IsProtocol true on configured port")
	}
	recs := p.Parse(info)
	if len(recs) != 1 || recs[0].Protocol != record.ProtoEtherIP {
		t.Fatalf("expected ethernet_ip record, got %+v", recs)
	}
	if recs[0].Dir != "request" {
		t.Fatalf("expected request direction when dst is the well-known port, got %q", recs[0].Dir)
	}
}

func TestGenericParserDHCPMatchesBothWellKnownPorts(t *testing.T) {
	p := NewGenericParser(genericSpecs[4], asset.Empty()) // dhcp, udp/67
	server := &capture.PacketInfo{L4Proto: l4UDP, SrcPort: 68, DstPort: 67, Payload: []byte{1}}
	client := &capture.PacketInfo{L4Proto: l4UDP, SrcPort: 67, DstPort: 68, Payload: []byte{1}}

	if !p.IsProtocol(server) || !p.IsProtocol(client) {
		t.Fatalf("expected dhcp to match both client and server well-known ports")
	}
}

func TestGenericParserRejectsWrongTransport(t *testing.T) {
	p := NewGenericParser(genericSpecs[0], asset.Empty()) // ethernet_ip is TCP-only
	info := &capture.PacketInfo{L4Proto: l4UDP, DstPort: 44818, Payload: []byte{1}}
	if p.IsProtocol(info) {
		t.Fatalf("expected IsProtocol false for mismatched transport")
	}
}
