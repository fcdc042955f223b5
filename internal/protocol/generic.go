package protocol

import (
	"icsdissect/internal/asset"
	"icsdissect/internal/capture"
	"icsdissect/internal/record"
)

// genericSpec pairs a protocol name with the fixed port/transport test that
// identifies it. No payload inspection is performed for these protocols;
// the specification treats them as length-only decoders.
type genericSpec struct {
	name     string
	port     uint16
	l4       uint8
}

// genericSpecs is the fixed table of length-only protocols, in registration
// order (spec §4.D).
var genericSpecs = []genericSpec{
	{name: record.ProtoEtherIP, port: 44818, l4: l4TCP},
	{name: record.ProtoIEC104, port: 2404, l4: l4TCP},
	{name: record.ProtoMMS, port: 102, l4: l4TCP},
	{name: record.ProtoOPCUA, port: 4840, l4: l4TCP},
	{name: record.ProtoDHCP, port: 67, l4: l4UDP},
	{name: record.ProtoBACnet, port: 47808, l4: l4UDP},
}

const (
	l4TCP = 6
	l4UDP = 17
)

// GenericParser is instantiated once per protocol name in genericSpecs.
type GenericParser struct {
	spec   genericSpec
	assets *asset.Catalogue
}

// NewGenericParser constructs a length-only decoder for one entry of
// genericSpecs.
func NewGenericParser(spec genericSpec, assets *asset.Catalogue) *GenericParser {
	return &GenericParser{spec: spec, assets: assets}
}

func (p *GenericParser) Name() string { return p.spec.name }

func (p *GenericParser) IsProtocol(info *capture.PacketInfo) bool {
	if info.L4Proto != p.spec.l4 {
		return false
	}
	if p.spec.name == record.ProtoDHCP {
		return info.SrcPort == 67 || info.DstPort == 67 || info.SrcPort == 68 || info.DstPort == 68
	}
	return info.SrcPort == p.spec.port || info.DstPort == p.spec.port
}

func (p *GenericParser) Parse(info *capture.PacketInfo) []*record.UnifiedRecord {
	r := commonFields(info, p.spec.name, p.assets)
	r.Len = len(info.Payload)
	if info.DstPort == p.spec.port || (p.spec.name == record.ProtoDHCP && info.DstPort == 67) {
		r.Dir = "request"
	} else {
		r.Dir = "response"
	}
	return []*record.UnifiedRecord{r}
}
