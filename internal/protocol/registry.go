package protocol

import (
	"icsdissect/internal/asset"
	"icsdissect/internal/capture"
	"icsdissect/internal/record"
)

// Registry holds one instance of every parser and implements the two-phase
// dispatch of spec §4.C. Each worker owns its own Registry so that stateful
// parsers (Modbus, S7Comm) never share a pending-request table across
// goroutines.
type Registry struct {
	arp *ARPParser

	// ordered is every IsProtocol-tested parser, in fixed registration
	// order — the deterministic tie-break the spec requires.
	ordered []Parser

	tcpFallback Parser
	udpFallback Parser
}

// NewRegistry builds a fresh parser set backed by the given asset
// catalogue. Call once per worker.
func NewRegistry(assets *asset.Catalogue) *Registry {
	reg := &Registry{
		arp:         NewARPParser(assets),
		tcpFallback: NewTCPSessionParser(assets),
		udpFallback: NewUnknownParser(assets),
	}
	reg.ordered = []Parser{
		NewModbusParser(assets),
		NewS7CommParser(assets),
		NewXGTFenetParser(assets),
		NewDNSParser(assets),
		NewDNP3Parser(assets),
		NewGenericParser(genericSpecs[0], assets), // ethernet_ip
		NewGenericParser(genericSpecs[1], assets), // iec104
		NewGenericParser(genericSpecs[2], assets), // mms
		NewGenericParser(genericSpecs[3], assets), // opc_ua
		NewGenericParser(genericSpecs[4], assets), // dhcp
		NewGenericParser(genericSpecs[5], assets), // bacnet
	}
	return reg
}

// Dispatch runs the two-phase match: ARP short-circuits on EtherType; IP
// packets are offered to every non-fallback parser in registration order;
// unmatched TCP/UDP packets fall through to their respective fallback.
func (r *Registry) Dispatch(info *capture.PacketInfo) []*record.UnifiedRecord {
	if r.arp.IsProtocol(info) {
		return r.arp.Parse(info)
	}

	for _, p := range r.ordered {
		if p.IsProtocol(info) {
			return p.Parse(info)
		}
	}

	switch {
	case info.IsTCP():
		return r.tcpFallback.Parse(info)
	case info.IsUDP():
		return r.udpFallback.Parse(info)
	default:
		return nil
	}
}
