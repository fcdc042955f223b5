package protocol

import (
	"icsdissect/internal/asset"
	"icsdissect/internal/capture"
	"icsdissect/internal/record"
)

// TCPSessionParser is the fallback decoder for any TCP packet that no
// protocol-specific parser claimed. It never inspects the payload.
type TCPSessionParser struct {
	assets *asset.Catalogue
}

// NewTCPSessionParser constructs the TCP fallback decoder.
func NewTCPSessionParser(assets *asset.Catalogue) *TCPSessionParser {
	return &TCPSessionParser{assets: assets}
}

func (p *TCPSessionParser) Name() string { return record.ProtoTCPSession }

// IsProtocol is never consulted for tcp_session: the registry routes to it
// directly as the TCP fallback.
func (p *TCPSessionParser) IsProtocol(info *capture.PacketInfo) bool { return false }

func (p *TCPSessionParser) Parse(info *capture.PacketInfo) []*record.UnifiedRecord {
	r := commonFields(info, record.ProtoTCPSession, p.assets)
	r.Dir = "unknown"
	r.Len = len(info.Payload)
	r.TCPSession = &record.TCPSessionFields{
		SYN: info.TCPFlags&0x02 != 0,
		ACK: info.TCPFlags&0x10 != 0,
		FIN: info.TCPFlags&0x01 != 0,
		RST: info.TCPFlags&0x04 != 0,
	}
	return []*record.UnifiedRecord{r}
}
