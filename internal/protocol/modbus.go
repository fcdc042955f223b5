package protocol

import (
	"encoding/binary"
	"strconv"
	"time"

	"icsdissect/internal/asset"
	"icsdissect/internal/capture"
	"icsdissect/internal/record"
)

const modbusPort = 502

// modbusPendingInfo is the request-info carried in the per-flow pending
// table: the start address needed to compute a response's register base,
// and a coarse creation timestamp for the idle sweep.
type modbusPendingInfo struct {
	startAddr uint16
	createdAt time.Time
}

// ModbusParser decodes Modbus/TCP and correlates requests with responses
// per flow. It owns its pending-request table exclusively: it must never be
// shared across worker goroutines (spec §5).
type ModbusParser struct {
	assets *asset.Catalogue

	// pending maps flow-key -> ((transaction_id<<8)|function_code) -> info.
	pending map[string]map[uint32]modbusPendingInfo

	lastSweep time.Time
}

// NewModbusParser constructs a Modbus/TCP decoder with an empty pending
// table.
func NewModbusParser(assets *asset.Catalogue) *ModbusParser {
	return &ModbusParser{
		assets:    assets,
		pending:   make(map[string]map[uint32]modbusPendingInfo),
		lastSweep: time.Now(),
	}
}

func (p *ModbusParser) Name() string { return record.ProtoModbus }

func (p *ModbusParser) IsProtocol(info *capture.PacketInfo) bool {
	if info.L4Proto != l4TCP {
		return false
	}
	if info.SrcPort != modbusPort && info.DstPort != modbusPort {
		return false
	}
	b := info.Payload
	if len(b) < 8 {
		return false
	}
	// Protocol ID must be zero.
	if b[2] != 0 || b[3] != 0 {
		return false
	}
	mbapLen := binary.BigEndian.Uint16(b[4:6])
	if mbapLen < 2 {
		return false
	}
	// The payload length must exactly equal 6 + MBAP length: this rejects
	// pure ACKs carrying residual garbage (spec §4.F, scenario 1).
	return len(b) == int(mbapLen)+6
}

func (p *ModbusParser) Parse(info *capture.PacketInfo) []*record.UnifiedRecord {
	p.sweepIfDue()

	b := info.Payload
	if len(b) < 8 {
		return nil
	}

	transID := binary.BigEndian.Uint16(b[0:2])
	pdu := b[7:]
	fcByte := pdu[0]
	fc := fcByte & 0x7f
	isException := fcByte&0x80 != 0

	direction := "response"
	if info.DstPort == modbusPort {
		direction = "request"
	}

	flowKey := modbusFlowKey(info)
	reqKey := (uint32(transID) << 8) | uint32(fc)

	base := commonFields(info, record.ProtoModbus, p.assets)
	base.Dir = direction
	base.Len = len(pdu)

	tidCopy := transID
	base.Modbus = &record.ModbusFields{TID: &tidCopy, FC: fc}

	if isException {
		if len(pdu) >= 2 {
			errCode := pdu[1]
			base.Modbus.Err = &errCode
		}
		return []*record.UnifiedRecord{base}
	}

	if direction == "request" {
		p.recordRequest(flowKey, reqKey, fc, pdu)
		return p.decodeModbusRequest(base, fc, pdu)
	}

	startAddr, hasBase := p.consumeRequest(flowKey, reqKey)
	return p.decodeModbusResponse(base, fc, pdu, startAddr, hasBase)
}

func modbusFlowKey(info *capture.PacketInfo) string {
	if info.DstPort == modbusPort {
		return info.SrcIP + ":" + portString(info.SrcPort) + "->" + info.DstIP + ":" + portString(info.DstPort)
	}
	return info.DstIP + ":" + portString(info.DstPort) + "->" + info.SrcIP + ":" + portString(info.SrcPort)
}

func (p *ModbusParser) recordRequest(flowKey string, reqKey uint32, fc uint8, pdu []byte) {
	switch fc {
	case 1, 2, 3, 4, 5, 6, 15, 16:
		if len(pdu) < 3 {
			return
		}
		addr := binary.BigEndian.Uint16(pdu[1:3])
		flow, ok := p.pending[flowKey]
		if !ok {
			flow = make(map[uint32]modbusPendingInfo)
			p.pending[flowKey] = flow
		}
		flow[reqKey] = modbusPendingInfo{startAddr: addr, createdAt: time.Now()}
	}
}

func (p *ModbusParser) consumeRequest(flowKey string, reqKey uint32) (uint16, bool) {
	flow, ok := p.pending[flowKey]
	if !ok {
		return 0, false
	}
	info, ok := flow[reqKey]
	if !ok {
		return 0, false
	}
	delete(flow, reqKey)
	return info.startAddr, true
}

func (p *ModbusParser) decodeModbusRequest(base *record.UnifiedRecord, fc uint8, pdu []byte) []*record.UnifiedRecord {
	switch fc {
	case 1, 2, 3, 4:
		if len(pdu) < 5 {
			return []*record.UnifiedRecord{base}
		}
		addr := binary.BigEndian.Uint16(pdu[1:3])
		qty := binary.BigEndian.Uint16(pdu[3:5])
		base.Modbus.Addr = &addr
		base.Modbus.Qty = &qty
		base.TranslatedAddr = asset.TranslateModbus(fc, addr)
		p.describe(base)
	case 5, 6:
		if len(pdu) < 5 {
			return []*record.UnifiedRecord{base}
		}
		addr := binary.BigEndian.Uint16(pdu[1:3])
		val := binary.BigEndian.Uint16(pdu[3:5])
		base.Modbus.Addr = &addr
		base.Modbus.Val = &val
		base.TranslatedAddr = asset.TranslateModbus(fc, addr)
		p.describe(base)
	case 15, 16:
		if len(pdu) < 6 {
			return []*record.UnifiedRecord{base}
		}
		addr := binary.BigEndian.Uint16(pdu[1:3])
		qty := binary.BigEndian.Uint16(pdu[3:5])
		bc := pdu[5]
		base.Modbus.Addr = &addr
		base.Modbus.Qty = &qty
		base.Modbus.BC = &bc
		base.TranslatedAddr = asset.TranslateModbus(fc, addr)
		p.describe(base)
	}
	return []*record.UnifiedRecord{base}
}

func (p *ModbusParser) decodeModbusResponse(base *record.UnifiedRecord, fc uint8, pdu []byte, startAddr uint16, hasBase bool) []*record.UnifiedRecord {
	switch fc {
	case 1, 2, 3, 4:
		if len(pdu) < 2 {
			return []*record.UnifiedRecord{base}
		}
		bc := pdu[1]
		base.Modbus.BC = &bc
		data := pdu[2:]
		regCount := int(bc) / 2
		if regCount > len(data)/2 {
			regCount = len(data) / 2
		}
		out := make([]*record.UnifiedRecord, 0, regCount)
		for i := 0; i < regCount; i++ {
			rec := cloneModbusBase(base)
			val := binary.BigEndian.Uint16(data[i*2 : i*2+2])
			rec.Modbus.RegVal = &val
			if hasBase {
				addr := startAddr + uint16(i)
				rec.Modbus.RegAddr = &addr
				rec.TranslatedAddr = asset.TranslateModbus(fc, addr)
				p.describe(rec)
			}
			out = append(out, rec)
		}
		if len(out) == 0 {
			return []*record.UnifiedRecord{base}
		}
		return out
	case 5, 6:
		if len(pdu) < 5 {
			return []*record.UnifiedRecord{base}
		}
		addr := binary.BigEndian.Uint16(pdu[1:3])
		val := binary.BigEndian.Uint16(pdu[3:5])
		base.Modbus.Addr = &addr
		base.Modbus.Val = &val
		base.TranslatedAddr = asset.TranslateModbus(fc, addr)
		p.describe(base)
	case 15, 16:
		if len(pdu) < 5 {
			return []*record.UnifiedRecord{base}
		}
		addr := binary.BigEndian.Uint16(pdu[1:3])
		qty := binary.BigEndian.Uint16(pdu[3:5])
		base.Modbus.Addr = &addr
		base.Modbus.Qty = &qty
		base.TranslatedAddr = asset.TranslateModbus(fc, addr)
		p.describe(base)
	}
	return []*record.UnifiedRecord{base}
}

func cloneModbusBase(base *record.UnifiedRecord) *record.UnifiedRecord {
	cp := *base
	mb := *base.Modbus
	cp.Modbus = &mb
	return &cp
}

func (p *ModbusParser) describe(r *record.UnifiedRecord) {
	if p.assets == nil || r.TranslatedAddr == "" {
		return
	}
	r.TagDescription = p.assets.TagDescription(r.TranslatedAddr)
}

const modbusSweepInterval = time.Minute
const modbusIdleBound = 5 * time.Minute

// sweepIfDue runs the once-per-minute garbage collection of pending entries
// older than the five-minute idle bound (spec §3).
func (p *ModbusParser) sweepIfDue() {
	now := time.Now()
	if now.Sub(p.lastSweep) < modbusSweepInterval {
		return
	}
	p.lastSweep = now
	for flowKey, flow := range p.pending {
		for key, info := range flow {
			if now.Sub(info.createdAt) > modbusIdleBound {
				delete(flow, key)
			}
		}
		if len(flow) == 0 {
			delete(p.pending, flowKey)
		}
	}
}

func portString(port uint16) string {
	return strconv.Itoa(int(port))
}
