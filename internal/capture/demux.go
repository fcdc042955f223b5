package capture

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	ethHeaderLen = 14
	ethTypeARP   = 0x0806
	ethTypeIPv4  = 0x0800

	minIPHeaderLen  = 20
	minARPPayload   = 28
	udpHeaderLen    = 8
	minTCPHeaderLen = 20
)

// Demux strips the Ethernet/IP/TCP-or-UDP headers from a captured frame and
// produces a PacketInfo carrying the application-layer payload. Short or
// malformed frames are rejected quietly: the caller discards them, which
// matches the "framing errors... no logging for expected cases" rule of
// §7 of the specification.
func Demux(frame []byte, ts time.Time) (*PacketInfo, error) {
	if len(frame) < ethHeaderLen {
		return nil, fmt.Errorf("frame too short for ethernet header: %d bytes", len(frame))
	}

	info := &PacketInfo{
		Timestamp: ts,
		DstMAC:    macString(frame[0:6]),
		SrcMAC:    macString(frame[6:12]),
		EtherType: binary.BigEndian.Uint16(frame[12:14]),
	}

	rest := frame[ethHeaderLen:]

	switch info.EtherType {
	case ethTypeARP:
		if len(rest) < minARPPayload {
			return nil, fmt.Errorf("arp payload too short: %d bytes", len(rest))
		}
		info.Payload = rest[:minARPPayload]
		return info, nil
	case ethTypeIPv4:
		return demuxIPv4(info, rest)
	default:
		return nil, fmt.Errorf("unsupported ethertype: 0x%04x", info.EtherType)
	}
}

func demuxIPv4(info *PacketInfo, ip []byte) (*PacketInfo, error) {
	if len(ip) < minIPHeaderLen {
		return nil, fmt.Errorf("ip header too short: %d bytes", len(ip))
	}

	ihl := int(ip[0]&0x0f) * 4
	if ihl < minIPHeaderLen {
		return nil, fmt.Errorf("invalid ip header length: %d bytes", ihl)
	}
	totalLen := int(binary.BigEndian.Uint16(ip[2:4]))
	if totalLen < ihl || len(ip) < ihl {
		return nil, fmt.Errorf("invalid ip total length: %d (ihl %d)", totalLen, ihl)
	}

	// The L4 payload length is derived from the declared IP total length
	// minus the header length, never from the captured buffer length:
	// short-frame padding or residual bytes on zero-payload ACKs would
	// otherwise be misread as application payload.
	l4Len := totalLen - ihl
	if len(ip) < ihl+l4Len {
		// Capture truncated the frame short of the declared length; clamp
		// to what we actually have rather than reading out of bounds.
		l4Len = len(ip) - ihl
	}

	info.L4Proto = ip[9]
	info.SrcIP = ipString(ip[12:16])
	info.DstIP = ipString(ip[16:20])

	l4 := ip[ihl : ihl+l4Len]

	switch info.L4Proto {
	case l4TCP:
		return demuxTCP(info, l4)
	case l4UDP:
		return demuxUDP(info, l4)
	default:
		info.Payload = l4
		return info, nil
	}
}

func demuxTCP(info *PacketInfo, tcp []byte) (*PacketInfo, error) {
	if len(tcp) < minTCPHeaderLen {
		return nil, fmt.Errorf("tcp header too short: %d bytes", len(tcp))
	}
	info.SrcPort = binary.BigEndian.Uint16(tcp[0:2])
	info.DstPort = binary.BigEndian.Uint16(tcp[2:4])
	info.TCPSeq = binary.BigEndian.Uint32(tcp[4:8])
	info.TCPAck = binary.BigEndian.Uint32(tcp[8:12])
	info.TCPFlags = tcp[13] & 0x3f

	dataOffset := int(tcp[12]>>4) * 4
	if dataOffset < minTCPHeaderLen || dataOffset > len(tcp) {
		return nil, fmt.Errorf("invalid tcp data offset: %d bytes", dataOffset)
	}

	info.Payload = tcp[dataOffset:]
	info.FlowKey = flowKey(info.SrcIP, info.SrcPort, info.DstIP, info.DstPort)
	return info, nil
}

func demuxUDP(info *PacketInfo, udp []byte) (*PacketInfo, error) {
	if len(udp) < udpHeaderLen {
		return nil, fmt.Errorf("udp header too short: %d bytes", len(udp))
	}
	info.SrcPort = binary.BigEndian.Uint16(udp[0:2])
	info.DstPort = binary.BigEndian.Uint16(udp[2:4])
	info.Payload = udp[udpHeaderLen:]
	info.FlowKey = flowKey(info.SrcIP, info.SrcPort, info.DstIP, info.DstPort)
	return info, nil
}

// flowKey computes the canonical, direction-independent flow identifier by
// lexicographically ordering the two (ip, port) endpoints so request and
// response packets of the same flow share a key regardless of direction.
func flowKey(ip1 string, port1 uint16, ip2 string, port2 uint16) string {
	a := fmt.Sprintf("%s:%d", ip1, port1)
	b := fmt.Sprintf("%s:%d", ip2, port2)
	if a <= b {
		return a + "-" + b
	}
	return b + "-" + a
}

func macString(b []byte) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", b[0], b[1], b[2], b[3], b[4], b[5])
}

func ipString(b []byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
}
