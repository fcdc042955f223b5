package capture

import (
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
)

// FrameSink receives one captured frame at a time. Implemented by the
// worker pool's Enqueue method; kept as an interface here so the reader
// does not import the worker package.
type FrameSink interface {
	Enqueue(frame []byte, ts time.Time)
}

// Source wraps a live interface or an offline pcap file.
type Source struct {
	handle *pcap.Handle
	live   bool
}

// OpenOffline opens a recorded capture file.
func OpenOffline(path string) (*Source, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, fmt.Errorf("open offline capture %q: %w", path, err)
	}
	return &Source{handle: handle}, nil
}

// OpenLive opens a live network interface in promiscuous mode.
func OpenLive(iface string, snaplen int32, timeout time.Duration) (*Source, error) {
	handle, err := pcap.OpenLive(iface, snaplen, true, timeout)
	if err != nil {
		return nil, fmt.Errorf("open live interface %q: %w", iface, err)
	}
	return &Source{handle: handle, live: true}, nil
}

// SetFilter compiles and installs a BPF filter expression.
func (s *Source) SetFilter(expr string) error {
	if expr == "" {
		return nil
	}
	if err := s.handle.SetBPFFilter(expr); err != nil {
		return fmt.Errorf("compile filter %q: %w", expr, err)
	}
	return nil
}

// Close releases the underlying capture handle.
func (s *Source) Close() {
	s.handle.Close()
}

// Run delivers every frame in the capture to sink until the source is
// exhausted (offline) or stop is closed (live). It never interprets the
// frame itself — that is the worker's job once dequeued.
func (s *Source) Run(sink FrameSink, stop <-chan struct{}) {
	packetSource := gopacket.NewPacketSource(s.handle, s.handle.LinkType())
	packetSource.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}

	for {
		select {
		case <-stop:
			return
		case packet, ok := <-packetSource.Packets():
			if !ok {
				return
			}
			data := packet.Data()
			frame := make([]byte, len(data))
			copy(frame, data)

			ts := time.Now()
			if meta := packet.Metadata(); meta != nil {
				ts = meta.Timestamp
			}
			sink.Enqueue(frame, ts)
		}
	}
}
