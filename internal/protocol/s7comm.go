package protocol

import (
	"encoding/binary"
	"time"

	"icsdissect/internal/asset"
	"icsdissect/internal/capture"
	"icsdissect/internal/record"
)

const s7Port = 102

type s7PendingInfo struct {
	functionCode uint8
	area         uint8
	db           uint16
	addr         uint32
	createdAt    time.Time
}

// S7CommParser decodes the TPKT/COTP/S7Comm framing, classifies the ROSCTR
// message class, and correlates job requests with their ack-data responses
// per flow. Pending-table ownership is exclusive to this parser instance.
type S7CommParser struct {
	assets *asset.Catalogue

	// pending maps flow-id -> pdu-reference -> request info.
	pending map[string]map[uint16]s7PendingInfo
}

// NewS7CommParser constructs an S7Comm decoder with an empty pending table.
func NewS7CommParser(assets *asset.Catalogue) *S7CommParser {
	return &S7CommParser{assets: assets, pending: make(map[string]map[uint16]s7PendingInfo)}
}

func (p *S7CommParser) Name() string { return record.ProtoS7Comm }

func (p *S7CommParser) IsProtocol(info *capture.PacketInfo) bool {
	if info.L4Proto != l4TCP {
		return false
	}
	if info.SrcPort != s7Port && info.DstPort != s7Port {
		return false
	}
	b := info.Payload
	if len(b) < 17 {
		return false
	}
	return b[0] == 0x03 && b[5] == 0xf0 && b[7] == 0x32
}

const (
	rosctrJob     = 0x01
	rosctrAck     = 0x02
	rosctrAckData = 0x03
	rosctrUser    = 0x07

	s7FuncReadVar  = 0x04
	s7FuncWriteVar = 0x05
)

func (p *S7CommParser) Parse(info *capture.PacketInfo) []*record.UnifiedRecord {
	b := info.Payload
	if len(b) < 17 {
		return nil
	}

	rosctr := b[8]
	pduRef := binary.BigEndian.Uint16(b[11:13])
	paramLen := int(binary.BigEndian.Uint16(b[13:15]))

	headerSize := 12
	if rosctr == rosctrJob || rosctr == rosctrUser {
		headerSize = 10
	}
	paramStart := 7 + headerSize
	if paramStart+paramLen > len(b) {
		paramLen = len(b) - paramStart
		if paramLen < 0 {
			paramLen = 0
		}
	}
	params := b[paramStart : paramStart+paramLen]

	switch rosctr {
	case rosctrJob:
		return p.parseJob(info, pduRef, params)
	case rosctrAck, rosctrAckData:
		return p.parseResponse(info, pduRef, rosctr, params, b[paramStart+paramLen:])
	default:
		return nil
	}
}

func (p *S7CommParser) parseJob(info *capture.PacketInfo, pduRef uint16, params []byte) []*record.UnifiedRecord {
	if len(params) < 2 {
		return nil
	}
	fn := params[0]
	if fn != s7FuncReadVar && fn != s7FuncWriteVar {
		return nil
	}
	itemCount := int(params[1])
	if itemCount == 0 || len(params) < 2+12 {
		return nil
	}

	item0 := params[2:14]
	transportSize := item0[3]
	lengthInItems := binary.BigEndian.Uint16(item0[4:6])
	db := binary.BigEndian.Uint16(item0[6:8])
	area := item0[8]
	addr := s7AddrToInt(item0[9:12]) / 8

	flowID := info.FlowKey
	flow, ok := p.pending[flowID]
	if !ok {
		flow = make(map[uint16]s7PendingInfo)
		p.pending[flowID] = flow
	}
	flow[pduRef] = s7PendingInfo{functionCode: fn, area: area, db: db, addr: addr, createdAt: time.Now()}

	r := commonFields(info, record.ProtoS7Comm, p.assets)
	r.Dir = "request"
	r.Len = len(info.Payload) - 7
	_ = lengthInItems
	_ = transportSize

	pduRefCopy := pduRef
	fnCopy := fn
	areaCopy := area
	dbCopy := db
	addrCopy := addr
	r.S7 = &record.S7Fields{
		PDURef:   &pduRefCopy,
		ROSCTR:   rosctrJob,
		Function: &fnCopy,
		Area:     &areaCopy,
		DB:       &dbCopy,
		Addr:     &addrCopy,
	}

	r.TranslatedAddr = asset.TranslateS7(area, db, addr)
	if p.assets != nil && r.TranslatedAddr != "" {
		r.TagDescription = p.assets.TagDescription(r.TranslatedAddr)
	}
	return []*record.UnifiedRecord{r}
}

func (p *S7CommParser) parseResponse(info *capture.PacketInfo, pduRef uint16, rosctr uint8, params, data []byte) []*record.UnifiedRecord {
	flowID := info.FlowKey
	flow, ok := p.pending[flowID]
	if !ok {
		return nil
	}
	reqInfo, ok := flow[pduRef]
	if !ok {
		return nil
	}
	delete(flow, pduRef)
	if len(flow) == 0 {
		delete(p.pending, flowID)
	}

	r := commonFields(info, record.ProtoS7Comm, p.assets)
	r.Dir = "response"
	r.Len = len(info.Payload) - 7

	pduRefCopy := pduRef
	r.S7 = &record.S7Fields{
		PDURef: &pduRefCopy,
		ROSCTR: rosctr,
	}

	if rosctr == rosctrAckData && reqInfo.functionCode == s7FuncReadVar && len(data) >= 1 {
		rc := data[0]
		r.S7.RC = &rc
		if rc == 0xff && len(data) >= 4 {
			lengthBits := binary.BigEndian.Uint16(data[2:4])
			lengthBytes := uint16((lengthBits + 7) / 8)
			r.S7.Len = &lengthBytes
		}
	}

	r.TranslatedAddr = asset.TranslateS7(reqInfo.area, reqInfo.db, reqInfo.addr)
	if p.assets != nil && r.TranslatedAddr != "" {
		r.TagDescription = p.assets.TagDescription(r.TranslatedAddr)
	}
	return []*record.UnifiedRecord{r}
}

// s7AddrToInt decodes a 24-bit big-endian S7 byte-address field.
func s7AddrToInt(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
