package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"testing"

	"icsdissect/internal/asset"
	"icsdissect/internal/capture"
)

func xgtContinuousReadResponsePayload(values []byte) []byte {
	header := make([]byte, xgtHeaderLen)
	copy(header[0:8], xgtMagic)
	header[13] = 0x11 // response

	instr := make([]byte, 10)
	binary.LittleEndian.PutUint16(instr[0:2], xgtCmdReadResp)
	binary.LittleEndian.PutUint16(instr[2:4], xgtContinuous)
	binary.LittleEndian.PutUint16(instr[6:8], 0) // error status: none
	binary.LittleEndian.PutUint16(instr[8:10], 0)
	sizeField := make([]byte, 2)
	binary.LittleEndian.PutUint16(sizeField, uint16(len(values)))
	instr = append(instr, sizeField...)
	instr = append(instr, values...)

	binary.LittleEndian.PutUint16(header[16:18], uint16(len(instr)))
	return append(header, instr...)
}

func TestXGTFenetContinuousReadResponse(t *testing.T) {
	p := NewXGTFenetParser(asset.Empty())
	values := []byte{0x01, 0x02, 0x03, 0x04}
	payload := xgtContinuousReadResponsePayload(values)

	info := &capture.PacketInfo{L4Proto: l4TCP, SrcPort: xgtPort, Timestamp: fixedTime(), Payload: payload}
	if !p.IsProtocol(info) {
		t.Fatalf("expected IsProtocol true for LSIS-XGT magic payload")
	}

	recs := p.Parse(info)
	if len(recs) != 1 {
		t.Fatalf("expected one record, got %d", len(recs))
	}
	r := recs[0]
	if r.Dir != "response" {
		t.Fatalf("expected response direction, got %q", r.Dir)
	}
	if r.XGT.Data != hex.EncodeToString(values) {
		t.Fatalf("expected hex data %q, got %q", hex.EncodeToString(values), r.XGT.Data)
	}
	if r.XGT.BlkCnt == nil || *r.XGT.BlkCnt != 1 {
		t.Fatalf("expected block count 1 for continuous mode, got %+v", r.XGT.BlkCnt)
	}
}

func TestXGTFenetRejectsNonMagicPayload(t *testing.T) {
	p := NewXGTFenetParser(asset.Empty())
	info := &capture.PacketInfo{L4Proto: l4TCP, SrcPort: xgtPort, Payload: []byte("not-xgt-data-at-all-000000")}
	if p.IsProtocol(info) {
		t.Fatalf("expected IsProtocol false for non-magic payload")
	}
}
