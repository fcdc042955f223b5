package protocol

import (
	"encoding/binary"

	"icsdissect/internal/asset"
	"icsdissect/internal/capture"
	"icsdissect/internal/record"
)

// DNSParser decodes DNS message headers on UDP/53.
type DNSParser struct {
	assets *asset.Catalogue
}

// NewDNSParser constructs a DNS header decoder.
func NewDNSParser(assets *asset.Catalogue) *DNSParser {
	return &DNSParser{assets: assets}
}

func (p *DNSParser) Name() string { return record.ProtoDNS }

const dnsMinPayload = 12

func (p *DNSParser) IsProtocol(info *capture.PacketInfo) bool {
	if info.L4Proto != l4UDP {
		return false
	}
	if info.SrcPort != 53 && info.DstPort != 53 {
		return false
	}
	return len(info.Payload) >= dnsMinPayload
}

func (p *DNSParser) Parse(info *capture.PacketInfo) []*record.UnifiedRecord {
	b := info.Payload
	if len(b) < dnsMinPayload {
		return nil
	}

	tid := binary.BigEndian.Uint16(b[0:2])
	flags := binary.BigEndian.Uint16(b[2:4])
	qdcount := binary.BigEndian.Uint16(b[4:6])
	ancount := binary.BigEndian.Uint16(b[6:8])

	dir := "query"
	if flags&0x8000 != 0 {
		dir = "response"
	}

	r := commonFields(info, record.ProtoDNS, p.assets)
	r.Dir = dir
	r.Len = len(info.Payload)
	r.DNS = &record.DNSFields{
		TID:     tid,
		Flags:   flags,
		QDCount: qdcount,
		ANCount: ancount,
	}
	return []*record.UnifiedRecord{r}
}
