package protocol

import (
	"testing"

	"icsdissect/internal/asset"
	"icsdissect/internal/capture"
	"icsdissect/internal/record"
)

func TestUnknownParseRecordsLengthOnly(t *testing.T) {
	p := NewUnknownParser(asset.Empty())
	info := &capture.PacketInfo{L4Proto: l4UDP, Payload: []byte{1, 2, 3, 4, 5}}

	recs := p.Parse(info)
	if len(recs) != 1 || recs[0].Protocol != record.ProtoUnknown {
		t.Fatalf("expected one unknown record, got %+v", recs)
	}
	if recs[0].Len != 5 {
		t.Fatalf("expected len 5, got %d", recs[0].Len)
	}
}

func TestUnknownNeverClaimsDispatch(t *testing.T) {
	p := NewUnknownParser(asset.Empty())
	if p.IsProtocol(&capture.PacketInfo{L4Proto: l4UDP}) {
		t.Fatalf("expected IsProtocol always false: unknown is routed as the UDP fallback only")
	}
}
