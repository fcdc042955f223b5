package protocol

import (
	"icsdissect/internal/asset"
	"icsdissect/internal/capture"
	"icsdissect/internal/record"
)

// UnknownParser is the fallback decoder for any UDP packet that no
// protocol-specific parser claimed. It records only the payload length.
type UnknownParser struct {
	assets *asset.Catalogue
}

// NewUnknownParser constructs the UDP catch-all decoder.
func NewUnknownParser(assets *asset.Catalogue) *UnknownParser {
	return &UnknownParser{assets: assets}
}

func (p *UnknownParser) Name() string { return record.ProtoUnknown }

// IsProtocol is never consulted for unknown: the registry routes to it
// directly as the UDP fallback.
func (p *UnknownParser) IsProtocol(info *capture.PacketInfo) bool { return false }

func (p *UnknownParser) Parse(info *capture.PacketInfo) []*record.UnifiedRecord {
	r := commonFields(info, record.ProtoUnknown, p.assets)
	r.Len = len(info.Payload)
	return []*record.UnifiedRecord{r}
}
