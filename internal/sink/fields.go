package sink

import (
	"strconv"

	"icsdissect/internal/record"
)

// field describes one column of the wide CSV header and one possible key
// of the JSONL object. Get returns the value and whether it should be
// emitted (present=false means "this protocol group is absent on this
// record", which JSONL omits and CSV renders as an empty cell).
type field struct {
	key string
	get func(r *record.UnifiedRecord) (value interface{}, present bool)
}

func always(v interface{}) (interface{}, bool) { return v, true }

func u16p(p *uint16) (interface{}, bool) {
	if p == nil {
		return nil, false
	}
	return uint64(*p), true
}

func u8p(p *uint8) (interface{}, bool) {
	if p == nil {
		return nil, false
	}
	return uint64(*p), true
}

func u32p(p *uint32) (interface{}, bool) {
	if p == nil {
		return nil, false
	}
	return uint64(*p), true
}

// fieldTable is the fixed, wide column order every CSV row and every JSONL
// object is built from (spec §4.I, §6). It is the single source of truth
// for both writers so they can never drift apart.
var fieldTable = []field{
	{"timestamp", func(r *record.UnifiedRecord) (interface{}, bool) { return always(r.Timestamp) }},
	{"protocol", func(r *record.UnifiedRecord) (interface{}, bool) { return always(r.Protocol) }},
	{"smac", func(r *record.UnifiedRecord) (interface{}, bool) { return always(r.SMAC) }},
	{"dmac", func(r *record.UnifiedRecord) (interface{}, bool) { return always(r.DMAC) }},
	{"sip", func(r *record.UnifiedRecord) (interface{}, bool) { return always(r.SIP) }},
	{"dip", func(r *record.UnifiedRecord) (interface{}, bool) { return always(r.DIP) }},
	{"sp", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.SP == 0 && r.Dir == "" {
			return nil, false
		}
		return uint64(r.SP), true
	}},
	{"dp", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.DP == 0 && r.Dir == "" {
			return nil, false
		}
		return uint64(r.DP), true
	}},
	{"sq", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.Dir == "" {
			return nil, false
		}
		return uint64(r.SQ), true
	}},
	{"ak", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.Dir == "" {
			return nil, false
		}
		return uint64(r.AK), true
	}},
	{"fl", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.Dir == "" {
			return nil, false
		}
		return uint64(r.FL), true
	}},
	{"dir", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.Dir == "" {
			return nil, false
		}
		return r.Dir, true
	}},
	{"len", func(r *record.UnifiedRecord) (interface{}, bool) { return always(uint64(r.Len)) }},
	{"src_asset_name", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.SrcAssetName == "" {
			return nil, false
		}
		return r.SrcAssetName, true
	}},
	{"dst_asset_name", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.DstAssetName == "" {
			return nil, false
		}
		return r.DstAssetName, true
	}},
	{"translated_addr", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.TranslatedAddr == "" {
			return nil, false
		}
		return r.TranslatedAddr, true
	}},
	{"tag_description", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.TagDescription == "" {
			return nil, false
		}
		return r.TagDescription, true
	}},

	{"arp.op", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.ARP == nil {
			return nil, false
		}
		return int64(r.ARP.Op), true
	}},
	{"arp.tmac", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.ARP == nil {
			return nil, false
		}
		return r.ARP.TMAC, true
	}},
	{"arp.tip", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.ARP == nil {
			return nil, false
		}
		return r.ARP.TIP, true
	}},

	{"dns.tid", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.DNS == nil {
			return nil, false
		}
		return uint64(r.DNS.TID), true
	}},
	{"dns.flags", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.DNS == nil {
			return nil, false
		}
		return uint64(r.DNS.Flags), true
	}},
	{"dns.qdcount", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.DNS == nil {
			return nil, false
		}
		return uint64(r.DNS.QDCount), true
	}},
	{"dns.ancount", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.DNS == nil {
			return nil, false
		}
		return uint64(r.DNS.ANCount), true
	}},

	{"dnp3.len", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.DNP3 == nil {
			return nil, false
		}
		return uint64(r.DNP3.Len), true
	}},
	{"dnp3.ctrl", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.DNP3 == nil {
			return nil, false
		}
		return uint64(r.DNP3.Ctrl), true
	}},
	{"dnp3.dst", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.DNP3 == nil {
			return nil, false
		}
		return uint64(r.DNP3.Dst), true
	}},
	{"dnp3.src", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.DNP3 == nil {
			return nil, false
		}
		return uint64(r.DNP3.Src), true
	}},

	{"tcp_session.syn", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.TCPSession == nil {
			return nil, false
		}
		return r.TCPSession.SYN, true
	}},
	{"tcp_session.ack", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.TCPSession == nil {
			return nil, false
		}
		return r.TCPSession.ACK, true
	}},
	{"tcp_session.fin", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.TCPSession == nil {
			return nil, false
		}
		return r.TCPSession.FIN, true
	}},
	{"tcp_session.rst", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.TCPSession == nil {
			return nil, false
		}
		return r.TCPSession.RST, true
	}},

	{"modbus.tid", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.Modbus == nil {
			return nil, false
		}
		return u16p(r.Modbus.TID)
	}},
	{"modbus.fc", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.Modbus == nil {
			return nil, false
		}
		return uint64(r.Modbus.FC), true
	}},
	{"modbus.addr", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.Modbus == nil {
			return nil, false
		}
		return u16p(r.Modbus.Addr)
	}},
	{"modbus.qty", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.Modbus == nil {
			return nil, false
		}
		return u16p(r.Modbus.Qty)
	}},
	{"modbus.bc", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.Modbus == nil {
			return nil, false
		}
		return u8p(r.Modbus.BC)
	}},
	{"modbus.val", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.Modbus == nil {
			return nil, false
		}
		return u16p(r.Modbus.Val)
	}},
	{"modbus.err", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.Modbus == nil {
			return nil, false
		}
		return u8p(r.Modbus.Err)
	}},
	{"modbus.regs.addr", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.Modbus == nil {
			return nil, false
		}
		return u16p(r.Modbus.RegAddr)
	}},
	{"modbus.regs.val", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.Modbus == nil {
			return nil, false
		}
		return u16p(r.Modbus.RegVal)
	}},

	{"s7.prid", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.S7 == nil {
			return nil, false
		}
		return u16p(r.S7.PDURef)
	}},
	{"s7.rosctr", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.S7 == nil {
			return nil, false
		}
		return uint64(r.S7.ROSCTR), true
	}},
	{"s7.fn", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.S7 == nil {
			return nil, false
		}
		return u8p(r.S7.Function)
	}},
	{"s7.area", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.S7 == nil {
			return nil, false
		}
		return u8p(r.S7.Area)
	}},
	{"s7.db", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.S7 == nil {
			return nil, false
		}
		return u16p(r.S7.DB)
	}},
	{"s7.addr", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.S7 == nil {
			return nil, false
		}
		return u32p(r.S7.Addr)
	}},
	{"s7.rc", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.S7 == nil {
			return nil, false
		}
		return u8p(r.S7.RC)
	}},
	{"s7.len", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.S7 == nil {
			return nil, false
		}
		return u16p(r.S7.Len)
	}},

	{"xgt_fen.cmd", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.XGT == nil {
			return nil, false
		}
		return uint64(r.XGT.Cmd), true
	}},
	{"xgt_fen.dtype", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.XGT == nil {
			return nil, false
		}
		return uint64(r.XGT.DType), true
	}},
	{"xgt_fen.errstat", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.XGT == nil {
			return nil, false
		}
		return u16p(r.XGT.ErrStat)
	}},
	{"xgt_fen.blkcnt", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.XGT == nil {
			return nil, false
		}
		return u16p(r.XGT.BlkCnt)
	}},
	{"xgt_fen.datasize", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.XGT == nil {
			return nil, false
		}
		return u16p(r.XGT.DataSize)
	}},
	{"xgt_fen.data", func(r *record.UnifiedRecord) (interface{}, bool) {
		if r.XGT == nil || r.XGT.Data == "" {
			return nil, false
		}
		return r.XGT.Data, true
	}},
}

// csvValue renders a field value as a CSV cell.
func csvValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	default:
		return ""
	}
}
