// Package record defines UnifiedRecord, the single output schema every
// protocol parser emits into, and the field tables used by the CSV and
// JSONL writers in package sink.
package record

// Protocol name constants — the fixed set every emitted record's Protocol
// field must belong to (spec §8).
const (
	ProtoARP        = "arp"
	ProtoDNS        = "dns"
	ProtoDNP3       = "dnp3"
	ProtoModbus     = "modbus"
	ProtoS7Comm     = "s7comm"
	ProtoXGTFenet   = "xgt_fen"
	ProtoTCPSession = "tcp_session"
	ProtoUnknown    = "unknown"
	ProtoDHCP       = "dhcp"
	ProtoEtherIP    = "ethernet_ip"
	ProtoIEC104     = "iec104"
	ProtoMMS        = "mms"
	ProtoOPCUA      = "opc_ua"
	ProtoBACnet     = "bacnet"
)

// ARPFields carries the ARP-specific columns (namespaced "arp.*").
type ARPFields struct {
	Op   int    `json:"op"`
	TMAC string `json:"tmac,omitempty"`
	TIP  string `json:"tip,omitempty"`
}

// DNSFields carries the DNS-specific columns (namespaced "dns.*").
type DNSFields struct {
	TID     uint16 `json:"tid"`
	Flags   uint16 `json:"flags"`
	QDCount uint16 `json:"qdcount"`
	ANCount uint16 `json:"ancount"`
}

// DNP3Fields carries the DNP3-specific columns (namespaced "dnp3.*").
type DNP3Fields struct {
	Len  uint16 `json:"len"`
	Ctrl uint8  `json:"ctrl"`
	Dst  uint16 `json:"dst"`
	Src  uint16 `json:"src"`
}

// TCPSessionFields carries the fallback TCP flag decomposition (namespaced
// "tcp_session.*").
type TCPSessionFields struct {
	SYN bool `json:"syn"`
	ACK bool `json:"ack"`
	FIN bool `json:"fin"`
	RST bool `json:"rst"`
}

// ModbusFields carries the Modbus-specific columns (namespaced "modbus.*").
// Pointers distinguish "absent" from the zero value, which matters for the
// omitempty-style JSONL emission and for correlation-miss fields that are
// deliberately left unfilled.
type ModbusFields struct {
	TID     *uint16 `json:"tid,omitempty"`
	FC      uint8   `json:"fc"`
	Addr    *uint16 `json:"addr,omitempty"`
	Qty     *uint16 `json:"qty,omitempty"`
	BC      *uint8  `json:"bc,omitempty"`
	Val     *uint16 `json:"val,omitempty"`
	Err     *uint8  `json:"err,omitempty"`
	RegAddr *uint16 `json:"regs_addr,omitempty"`
	RegVal  *uint16 `json:"regs_val,omitempty"`
}

// S7Fields carries the S7Comm-specific columns (namespaced "s7.*").
type S7Fields struct {
	PDURef   *uint16 `json:"prid,omitempty"`
	ROSCTR   uint8   `json:"rosctr"`
	Function *uint8  `json:"fn,omitempty"`
	Area     *uint8  `json:"area,omitempty"`
	DB       *uint16 `json:"db,omitempty"`
	Addr     *uint32 `json:"addr,omitempty"`
	RC       *uint8  `json:"rc,omitempty"`
	Len      *uint16 `json:"len,omitempty"`
}

// XGTFields carries the XGT FEnet-specific columns (namespaced "xgt_fen.*").
type XGTFields struct {
	Cmd      uint16  `json:"cmd"`
	DType    uint16  `json:"dtype"`
	ErrStat  *uint16 `json:"errstat,omitempty"`
	BlkCnt   *uint16 `json:"blkcnt,omitempty"`
	DataSize *uint16 `json:"datasize,omitempty"`
	Data     string  `json:"data,omitempty"`
}

// UnifiedRecord is the single output schema of the dissector. Every field in
// the common group is always set; sp/dp/sq/ak/fl/dir are set for IP
// records; the protocol-specific groups are non-nil only for their owning
// protocol.
type UnifiedRecord struct {
	Timestamp string `json:"timestamp"`
	Protocol  string `json:"protocol"`

	SMAC string `json:"smac"`
	DMAC string `json:"dmac"`
	SIP  string `json:"sip"`
	DIP  string `json:"dip"`

	SP  uint16 `json:"sp,omitempty"`
	DP  uint16 `json:"dp,omitempty"`
	SQ  uint32 `json:"sq,omitempty"`
	AK  uint32 `json:"ak,omitempty"`
	FL  uint8  `json:"fl,omitempty"`
	Dir string `json:"dir,omitempty"`

	// Len carries the datagram length at the protocol being reported, not
	// the Ethernet frame length (spec §3, §9 open question).
	Len int `json:"len"`

	SrcAssetName string `json:"src_asset_name,omitempty"`
	DstAssetName string `json:"dst_asset_name,omitempty"`

	TranslatedAddr string `json:"translated_addr,omitempty"`
	TagDescription string `json:"tag_description,omitempty"`

	ARP        *ARPFields        `json:"-"`
	DNS        *DNSFields        `json:"-"`
	DNP3       *DNP3Fields       `json:"-"`
	TCPSession *TCPSessionFields `json:"-"`
	Modbus     *ModbusFields     `json:"-"`
	S7         *S7Fields         `json:"-"`
	XGT        *XGTFields        `json:"-"`
}
