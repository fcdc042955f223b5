// Package protocol implements the ARP/DNS/DNP3/Modbus/S7Comm/XGT FEnet and
// generic decoders, plus the two-phase dispatch registry each worker owns.
package protocol

import (
	"icsdissect/internal/asset"
	"icsdissect/internal/capture"
	"icsdissect/internal/record"
)

// Parser is the closed-variant capability every decoder implements. There is
// no virtual base hierarchy: the dispatch loop only ever needs Name,
// IsProtocol and Parse (spec §9 design notes).
type Parser interface {
	// Name returns the fixed protocol name this parser emits records for.
	Name() string

	// IsProtocol reports whether info's payload belongs to this protocol.
	// It never mutates parser state.
	IsProtocol(info *capture.PacketInfo) bool

	// Parse decodes info's payload into zero or more UnifiedRecords. A
	// framing error returns a nil slice and no error: the caller logs
	// nothing for expected admission failures (spec §7).
	Parse(info *capture.PacketInfo) []*record.UnifiedRecord
}

// commonFields populates the always-set columns of a fresh UnifiedRecord
// from the demultiplexed packet, so every parser starts from the same base.
func commonFields(info *capture.PacketInfo, protocol string, assets *asset.Catalogue) *record.UnifiedRecord {
	r := &record.UnifiedRecord{
		Timestamp: info.TimestampISO(),
		Protocol:  protocol,
		SMAC:      info.SrcMAC,
		DMAC:      info.DstMAC,
		SIP:       info.SrcIP,
		DIP:       info.DstIP,
	}
	if info.SrcIP != "" || info.DstIP != "" {
		r.SP = info.SrcPort
		r.DP = info.DstPort
		r.SQ = info.TCPSeq
		r.AK = info.TCPAck
		r.FL = info.TCPFlags
	}
	if assets != nil {
		if name := assets.DeviceName(info.SrcIP); name != "" {
			r.SrcAssetName = name
		}
		if name := assets.DeviceName(info.DstIP); name != "" {
			r.DstAssetName = name
		}
	}
	return r
}
