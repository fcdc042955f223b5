package protocol

import (
	"encoding/binary"

	"icsdissect/internal/asset"
	"icsdissect/internal/capture"
	"icsdissect/internal/record"
)

// DNP3Parser decodes the DNP3 link-layer header on port 20000 (TCP or UDP).
type DNP3Parser struct {
	assets *asset.Catalogue
}

// NewDNP3Parser constructs a DNP3 link-layer decoder.
func NewDNP3Parser(assets *asset.Catalogue) *DNP3Parser {
	return &DNP3Parser{assets: assets}
}

func (p *DNP3Parser) Name() string { return record.ProtoDNP3 }

const dnp3Port = 20000
const dnp3MinPayload = 6

func (p *DNP3Parser) IsProtocol(info *capture.PacketInfo) bool {
	if info.SrcPort != dnp3Port && info.DstPort != dnp3Port {
		return false
	}
	b := info.Payload
	return len(b) >= dnp3MinPayload && b[0] == 0x05 && b[1] == 0x64
}

func (p *DNP3Parser) Parse(info *capture.PacketInfo) []*record.UnifiedRecord {
	b := info.Payload
	if len(b) < dnp3MinPayload {
		return nil
	}

	length := uint16(b[2])
	ctrl := b[3]
	dst := binary.LittleEndian.Uint16(b[4:6])
	var src uint16
	if len(b) >= 8 {
		src = binary.LittleEndian.Uint16(b[6:8])
	}

	dir := "response"
	if ctrl&0x80 != 0 {
		dir = "request"
	}

	r := commonFields(info, record.ProtoDNP3, p.assets)
	r.Dir = dir
	r.Len = len(info.Payload)
	r.DNP3 = &record.DNP3Fields{
		Len:  length,
		Ctrl: ctrl,
		Dst:  dst,
		Src:  src,
	}
	return []*record.UnifiedRecord{r}
}
