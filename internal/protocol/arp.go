package protocol

import (
	"encoding/binary"
	"fmt"

	"icsdissect/internal/asset"
	"icsdissect/internal/capture"
	"icsdissect/internal/record"
)

// ARPParser decodes ARP requests and replies. It is dispatched directly by
// the registry's phase 1 (EtherType 0x0806), never through IsProtocol.
type ARPParser struct {
	assets *asset.Catalogue
}

// NewARPParser constructs an ARP decoder backed by the given asset catalogue.
func NewARPParser(assets *asset.Catalogue) *ARPParser {
	return &ARPParser{assets: assets}
}

func (p *ARPParser) Name() string { return record.ProtoARP }

func (p *ARPParser) IsProtocol(info *capture.PacketInfo) bool {
	return info.EtherType == 0x0806
}

// arpPayloadLen is the fixed length of an Ethernet/IPv4 ARP payload:
// hw type(2) proto type(2) hwlen(1) protolen(1) op(2) sha(6) spa(4)
// tha(6) tpa(4).
const arpPayloadLen = 28

func (p *ARPParser) Parse(info *capture.PacketInfo) []*record.UnifiedRecord {
	if len(info.Payload) < arpPayloadLen {
		return nil
	}
	b := info.Payload

	op := binary.BigEndian.Uint16(b[6:8])
	senderMAC := macString(b[8:14])
	senderIP := ipString(b[14:18])
	targetMAC := macString(b[18:24])
	targetIP := ipString(b[24:28])

	dir := "other"
	switch op {
	case 1:
		dir = "request"
	case 2:
		dir = "response"
	}

	r := commonFields(info, record.ProtoARP, p.assets)
	r.SMAC = senderMAC
	r.SIP = senderIP
	r.Dir = dir
	r.Len = len(info.Payload)
	r.ARP = &record.ARPFields{
		Op:   int(op),
		TMAC: targetMAC,
		TIP:  targetIP,
	}
	if p.assets != nil {
		if name := p.assets.DeviceName(targetIP); name != "" {
			r.DstAssetName = name
		}
	}
	return []*record.UnifiedRecord{r}
}

func macString(b []byte) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", b[0], b[1], b[2], b[3], b[4], b[5])
}

func ipString(b []byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
}
