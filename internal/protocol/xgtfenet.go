package protocol

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log"

	"icsdissect/internal/asset"
	"icsdissect/internal/capture"
	"icsdissect/internal/record"
)

const (
	xgtPort       = 2004
	xgtHeaderLen  = 20
	xgtMagic      = "LSIS-XGT"
	xgtContinuous = 0x0014

	xgtCmdReadReq  = 0x0054
	xgtCmdReadResp = 0x0055
	xgtCmdWriteReq = 0x0058
	xgtCmdWriteResp = 0x0059
)

// XGTFenetParser decodes the LSIS XGT FEnet header and instruction body for
// individual and continuous read/write variants.
type XGTFenetParser struct {
	assets *asset.Catalogue
}

// NewXGTFenetParser constructs an XGT FEnet decoder.
func NewXGTFenetParser(assets *asset.Catalogue) *XGTFenetParser {
	return &XGTFenetParser{assets: assets}
}

func (p *XGTFenetParser) Name() string { return record.ProtoXGTFenet }

func (p *XGTFenetParser) IsProtocol(info *capture.PacketInfo) bool {
	if info.L4Proto != l4TCP && info.L4Proto != l4UDP {
		return false
	}
	if info.SrcPort != xgtPort && info.DstPort != xgtPort {
		return false
	}
	b := info.Payload
	return len(b) >= xgtHeaderLen && string(b[0:8]) == xgtMagic
}

func (p *XGTFenetParser) Parse(info *capture.PacketInfo) []*record.UnifiedRecord {
	b := info.Payload
	if len(b) < xgtHeaderLen {
		return nil
	}

	sourceOfFrame := b[13]
	declaredLen := binary.LittleEndian.Uint16(b[16:18])

	if int(xgtHeaderLen)+int(declaredLen) != len(b) {
		log.Printf("xgt_fen: declared length %d does not match payload size %d", declaredLen, len(b))
	}

	dir := "unknown"
	switch sourceOfFrame {
	case 0x33:
		dir = "request"
	case 0x11:
		dir = "response"
	}

	r := commonFields(info, record.ProtoXGTFenet, p.assets)
	r.Dir = dir
	r.Len = int(declaredLen)

	instr := b[xgtHeaderLen:]
	if len(instr) < 4 {
		return []*record.UnifiedRecord{r}
	}
	cmd := binary.LittleEndian.Uint16(instr[0:2])
	dtype := binary.LittleEndian.Uint16(instr[2:4])
	continuous := dtype == xgtContinuous

	r.XGT = &record.XGTFields{Cmd: cmd, DType: dtype}

	var err error
	var primaryName string
	switch cmd {
	case xgtCmdReadResp, xgtCmdWriteResp:
		primaryName, err = p.parseResponseInstr(r, instr, continuous, cmd)
	case xgtCmdReadReq, xgtCmdWriteReq:
		primaryName, err = p.parseRequestInstr(r, instr, continuous, cmd)
	}
	if err != nil {
		log.Printf("xgt_fen: %v", err)
	}

	if primaryName != "" {
		r.TranslatedAddr = asset.TranslateXGT(primaryName)
		if p.assets != nil && r.TranslatedAddr != "" {
			r.TagDescription = p.assets.TagDescription(r.TranslatedAddr)
		}
	}

	return []*record.UnifiedRecord{r}
}

// parseResponseInstr decodes the read/write response instruction body
// starting after the command+dataType fields (instr[4:]).
func (p *XGTFenetParser) parseResponseInstr(r *record.UnifiedRecord, instr []byte, continuous bool, cmd uint16) (string, error) {
	if len(instr) < 10 {
		return "", fmt.Errorf("response instruction too short")
	}
	errorStatus := binary.LittleEndian.Uint16(instr[6:8])
	errInfoOrBlockCount := binary.LittleEndian.Uint16(instr[8:10])

	r.XGT.ErrStat = &errorStatus
	if errorStatus != 0 {
		r.XGT.BlkCnt = &errInfoOrBlockCount
		return "", nil
	}

	off := 10
	switch cmd {
	case xgtCmdReadResp:
		if continuous {
			r.XGT.BlkCnt = ptrU16(1)
			if len(instr) < off+2 {
				return "", fmt.Errorf("read response missing data size")
			}
			dataSize := binary.LittleEndian.Uint16(instr[off : off+2])
			off += 2
			r.XGT.DataSize = &dataSize
			if len(instr) < off+int(dataSize) {
				return "", fmt.Errorf("read response data truncated")
			}
			r.XGT.Data = hex.EncodeToString(instr[off : off+int(dataSize)])
			off += int(dataSize)
		} else {
			blockCount := errInfoOrBlockCount
			r.XGT.BlkCnt = &blockCount
			var allData []byte
			for i := 0; i < int(blockCount); i++ {
				if len(instr) < off+2 {
					return "", fmt.Errorf("read response block %d length truncated", i)
				}
				blen := binary.LittleEndian.Uint16(instr[off : off+2])
				off += 2
				if len(instr) < off+int(blen) {
					return "", fmt.Errorf("read response block %d data truncated", i)
				}
				allData = append(allData, instr[off:off+int(blen)]...)
				off += int(blen)
			}
			r.XGT.Data = hex.EncodeToString(allData)
		}
	case xgtCmdWriteResp:
		// No data for write responses.
	}

	if off != len(instr) {
		return "", fmt.Errorf("consumed offset %d does not match instruction size %d", off, len(instr))
	}
	return "", nil
}

// parseRequestInstr decodes the read/write request instruction body
// starting after the command+dataType fields.
func (p *XGTFenetParser) parseRequestInstr(r *record.UnifiedRecord, instr []byte, continuous bool, cmd uint16) (string, error) {
	if len(instr) < 8 {
		return "", fmt.Errorf("request instruction too short")
	}
	blockCount := binary.LittleEndian.Uint16(instr[6:8])
	r.XGT.BlkCnt = &blockCount
	off := 8

	var primaryName string
	var writeData []byte

	if continuous {
		if blockCount != 1 {
			return "", fmt.Errorf("continuous request blockCount != 1: %d", blockCount)
		}
		name, newOff, err := readXGTNameField(instr, off)
		if err != nil {
			return "", err
		}
		off = newOff
		primaryName = name

		if len(instr) < off+2 {
			return "", fmt.Errorf("request missing data size")
		}
		dataSize := binary.LittleEndian.Uint16(instr[off : off+2])
		off += 2
		r.XGT.DataSize = &dataSize

		if cmd == xgtCmdWriteReq {
			if len(instr) < off+int(dataSize) {
				return "", fmt.Errorf("write request data truncated")
			}
			writeData = instr[off : off+int(dataSize)]
			off += int(dataSize)
		}
	} else {
		names := make([]string, 0, blockCount)
		for i := 0; i < int(blockCount); i++ {
			name, newOff, err := readXGTNameField(instr, off)
			if err != nil {
				return "", err
			}
			off = newOff
			names = append(names, name)
		}
		if len(names) > 0 {
			primaryName = names[0]
		}
		if cmd == xgtCmdWriteReq {
			for i := 0; i < int(blockCount); i++ {
				if len(instr) < off+2 {
					return "", fmt.Errorf("write request block %d length truncated", i)
				}
				dlen := binary.LittleEndian.Uint16(instr[off : off+2])
				off += 2
				if len(instr) < off+int(dlen) {
					return "", fmt.Errorf("write request block %d data truncated", i)
				}
				writeData = append(writeData, instr[off:off+int(dlen)]...)
				off += int(dlen)
			}
		}
	}

	if writeData != nil {
		r.XGT.Data = hex.EncodeToString(writeData)
	}

	if off != len(instr) {
		return primaryName, fmt.Errorf("consumed offset %d does not match instruction size %d", off, len(instr))
	}
	return primaryName, nil
}

func readXGTNameField(instr []byte, off int) (string, int, error) {
	if len(instr) < off+2 {
		return "", off, fmt.Errorf("variable name length truncated")
	}
	nameLen := binary.LittleEndian.Uint16(instr[off : off+2])
	off += 2
	if len(instr) < off+int(nameLen) {
		return "", off, fmt.Errorf("variable name truncated")
	}
	name := string(instr[off : off+int(nameLen)])
	off += int(nameLen)
	return name, off, nil
}

func ptrU16(v uint16) *uint16 { return &v }
