package protocol

import (
	"encoding/binary"
	"testing"

	"icsdissect/internal/asset"
	"icsdissect/internal/capture"
)

func modbusRequestPayload(transID uint16, fc uint8, addr, qty uint16) []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint16(b[0:2], transID)
	binary.BigEndian.PutUint16(b[2:4], 0)
	binary.BigEndian.PutUint16(b[4:6], 6)
	b[6] = 1
	b[7] = fc
	binary.BigEndian.PutUint16(b[8:10], addr)
	binary.BigEndian.PutUint16(b[10:12], qty)
	return b
}

func modbusResponsePayload(transID uint16, fc uint8, values []uint16) []byte {
	b := make([]byte, 9+len(values)*2)
	binary.BigEndian.PutUint16(b[0:2], transID)
	binary.BigEndian.PutUint16(b[2:4], 0)
	binary.BigEndian.PutUint16(b[4:6], uint16(3+len(values)*2))
	b[6] = 1
	b[7] = fc
	b[8] = byte(len(values) * 2)
	for i, v := range values {
		binary.BigEndian.PutUint16(b[9+i*2:11+i*2], v)
	}
	return b
}

func TestModbusIsProtocolRejectsResidualACK(t *testing.T) {
	p := NewModbusParser(asset.Empty())
	// mbapLen declares a 6-byte PDU but the observed payload is longer,
	// mimicking a pure ACK carrying residual garbage.
	payload := modbusRequestPayload(1, 3, 0, 4)
	payload = append(payload, 0xff, 0xff)

	info := &capture.PacketInfo{L4Proto: l4TCP, DstPort: modbusPort, Payload: payload}
	if p.IsProtocol(info) {
		t.Fatalf("expected IsProtocol to reject payload with residual trailing bytes")
	}
}

func TestModbusRequestResponseFanOut(t *testing.T) {
	p := NewModbusParser(asset.Empty())

	reqInfo := &capture.PacketInfo{
		L4Proto: l4TCP, SrcIP: "10.0.0.1", DstIP: "10.0.0.2",
		SrcPort: 50000, DstPort: modbusPort, FlowKey: "f1",
		Timestamp: fixedTime(), Payload: modbusRequestPayload(7, 3, 100, 4),
	}
	reqRecs := p.Parse(reqInfo)
	if len(reqRecs) != 1 || reqRecs[0].Dir != "request" {
		t.Fatalf("expected one request record, got %+v", reqRecs)
	}

	respInfo := &capture.PacketInfo{
		L4Proto: l4TCP, SrcIP: "10.0.0.2", DstIP: "10.0.0.1",
		SrcPort: modbusPort, DstPort: 50000, FlowKey: "f1",
		Timestamp: fixedTime(), Payload: modbusResponsePayload(7, 3, []uint16{10, 20, 30, 40}),
	}
	respRecs := p.Parse(respInfo)
	if len(respRecs) != 4 {
		t.Fatalf("expected 4 fanned-out register records, got %d", len(respRecs))
	}
	for i, rec := range respRecs {
		wantAddr := uint16(100 + i)
		if rec.Modbus.RegAddr == nil || *rec.Modbus.RegAddr != wantAddr {
			t.Errorf("record %d: expected addr %d, got %+v", i, wantAddr, rec.Modbus.RegAddr)
		}
		wantVal := uint16(10 * (i + 1))
		if rec.Modbus.RegVal == nil || *rec.Modbus.RegVal != wantVal {
			t.Errorf("record %d: expected val %d, got %+v", i, wantVal, rec.Modbus.RegVal)
		}
	}
}

func TestModbusResponseWithoutRequestStillEmitted(t *testing.T) {
	p := NewModbusParser(asset.Empty())

	respInfo := &capture.PacketInfo{
		L4Proto: l4TCP, SrcIP: "10.0.0.2", DstIP: "10.0.0.1",
		SrcPort: modbusPort, DstPort: 50000, FlowKey: "f-unmatched",
		Timestamp: fixedTime(), Payload: modbusResponsePayload(99, 3, []uint16{1}),
	}
	recs := p.Parse(respInfo)
	if len(recs) != 1 {
		t.Fatalf("expected exactly one record when base address is unknown, got %d", len(recs))
	}
	if recs[0].Modbus.RegAddr != nil {
		t.Fatalf("expected nil RegAddr on a correlation miss, got %v", *recs[0].Modbus.RegAddr)
	}
}
