// Command replay generates synthetic ICS protocol fixtures into a pcap
// file, the way the teacher's pcapgen tool synthesizes random TCP traffic
// for load-testing its aggregator. Here the payloads are real protocol
// encodings (Modbus, S7Comm, XGT FEnet, ARP) so the dissector under test
// has something to actually decode.
package main

import (
	"encoding/binary"
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var (
	srcMAC = net.HardwareAddr{0x00, 0x0c, 0x29, 0x11, 0x22, 0x33}
	dstMAC = net.HardwareAddr{0x00, 0x0c, 0x29, 0x44, 0x55, 0x66}
	srcIP  = net.IPv4(192, 168, 1, 10)
	dstIP  = net.IPv4(192, 168, 1, 20)
)

func main() {
	outputFile := flag.String("o", "fixture.pcap", "output pcap file path")
	count := flag.Int("c", 200, "number of packets to generate")
	flag.Parse()

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("create output file: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		log.Fatalf("write pcap header: %v", err)
	}

	rand.Seed(time.Now().UnixNano())
	log.Printf("generating %d fixture packets into %s...", *count, *outputFile)

	kinds := []func() ([]byte, error){
		func() ([]byte, error) { return tcpFrame(502, modbusRequest()) },
		func() ([]byte, error) { return tcpFrame(502, modbusResponse()) },
		func() ([]byte, error) { return tcpFrame(102, s7Job()) },
		func() ([]byte, error) { return tcpFrame(102, s7AckData()) },
		func() ([]byte, error) { return tcpFrame(2004, xgtReadResp()) },
		arpFrame,
	}

	for i := 0; i < *count; i++ {
		frame, err := kinds[rand.Intn(len(kinds))]()
		if err != nil {
			log.Fatalf("build packet %d: %v", i, err)
		}
		ci := gopacket.CaptureInfo{Timestamp: time.Now(), CaptureLength: len(frame), Length: len(frame)}
		if err := w.WritePacket(ci, frame); err != nil {
			log.Fatalf("write packet %d: %v", i, err)
		}
	}

	log.Printf("wrote %d packets to %s", *count, *outputFile)
}

// tcpFrame wraps appPayload in an Ethernet/IPv4/TCP frame destined for
// dstPort, the shared envelope for every ICS protocol fixture tested here.
func tcpFrame(dstPort layers.TCPPort, appPayload []byte) ([]byte, error) {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: srcIP, DstIP: dstIP}
	tcp := &layers.TCP{SrcPort: 50000, DstPort: dstPort, Seq: rand.Uint32(), Window: 14600, PSH: true, ACK: true}
	tcp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(appPayload)); err != nil {
		return nil, err
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out, nil
}

// arpFrame builds a standalone Ethernet ARP who-has request.
func arpFrame() ([]byte, error) {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, EthernetType: layers.EthernetTypeARP}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   srcMAC,
		SourceProtAddress: srcIP.To4(),
		DstHwAddress:      net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		DstProtAddress:    dstIP.To4(),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, arp); err != nil {
		return nil, err
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out, nil
}

// modbusRequest encodes a read-holding-registers (FC=3) request.
func modbusRequest() []byte {
	b := make([]byte, 12)
	binary.BigEndian.PutUint16(b[0:2], uint16(rand.Intn(65535)))
	binary.BigEndian.PutUint16(b[2:4], 0)
	binary.BigEndian.PutUint16(b[4:6], 6)
	b[6] = 1
	b[7] = 3
	binary.BigEndian.PutUint16(b[8:10], 0)
	binary.BigEndian.PutUint16(b[10:12], 4)
	return b
}

// modbusResponse encodes a matching FC=3 response with four registers.
func modbusResponse() []byte {
	b := make([]byte, 9+8)
	binary.BigEndian.PutUint16(b[0:2], 1)
	binary.BigEndian.PutUint16(b[2:4], 0)
	binary.BigEndian.PutUint16(b[4:6], 11)
	b[6] = 1
	b[7] = 3
	b[8] = 8
	for i := 0; i < 4; i++ {
		binary.BigEndian.PutUint16(b[9+i*2:11+i*2], uint16(100+i))
	}
	return b
}

// s7Job encodes a TPKT/COTP/S7Comm job request reading one data-block item.
func s7Job() []byte {
	s7 := make([]byte, 10+14)
	s7[0] = 0x32
	s7[1] = 0x01
	binary.BigEndian.PutUint16(s7[4:6], 7)
	binary.BigEndian.PutUint16(s7[6:8], 14)
	s7[10] = 0x04
	s7[11] = 1
	item := s7[12:24]
	item[0] = 0x12
	item[1] = 0x0a
	item[2] = 0x10
	item[3] = 0x02
	binary.BigEndian.PutUint16(item[4:6], 32)
	binary.BigEndian.PutUint16(item[6:8], 1)
	item[8] = 0x84
	var addrBits uint32
	item[9] = byte(addrBits >> 16)
	item[10] = byte(addrBits >> 8)
	item[11] = byte(addrBits)

	return wrapS7(s7)
}

// s7AckData encodes a matching ack-data response with 4 bytes of data.
func s7AckData() []byte {
	s7 := make([]byte, 12+4+4)
	s7[0] = 0x32
	s7[1] = 0x03
	binary.BigEndian.PutUint16(s7[4:6], 7)
	binary.BigEndian.PutUint16(s7[6:8], 2)
	binary.BigEndian.PutUint16(s7[8:10], 4)
	s7[12] = 0x00
	s7[13] = 0x04
	binary.BigEndian.PutUint16(s7[14:16], 32)
	copy(s7[16:20], []byte{0xde, 0xad, 0xbe, 0xef})
	return wrapS7(s7)
}

func wrapS7(s7 []byte) []byte {
	out := make([]byte, 7+len(s7))
	out[0] = 0x03
	binary.BigEndian.PutUint16(out[2:4], uint16(len(out)))
	out[4] = 2
	out[5] = 0xf0
	out[6] = 0x80
	copy(out[7:], s7)
	return out
}

// xgtReadResp encodes a continuous-mode XGT FEnet read response for %DB100.
func xgtReadResp() []byte {
	header := make([]byte, 20)
	copy(header[0:8], "LSIS-XGT")
	header[11] = 0x11
	instr := make([]byte, 4+6+2)
	binary.LittleEndian.PutUint16(instr[0:2], 0x0055)
	binary.LittleEndian.PutUint16(instr[2:4], 0x0014)
	binary.LittleEndian.PutUint16(instr[6:8], 0)
	instr[8] = 2
	binary.LittleEndian.PutUint16(instr[10:12], 2)
	instr = append(instr, 0x01, 0x02)
	binary.LittleEndian.PutUint16(header[16:18], uint16(len(instr)))
	return append(header, instr...)
}
