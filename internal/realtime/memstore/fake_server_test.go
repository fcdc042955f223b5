package memstore

import (
	"bufio"
	"net"
	"sync"
)

// fakeServer is a minimal RESP-speaking test double: it decodes each
// incoming command with the same readReply decoder the real client uses
// (commands are themselves RESP arrays of bulk strings) and answers via a
// caller-supplied handler, defaulting to a plain +OK.
type fakeServer struct {
	ln net.Listener

	mu      sync.Mutex
	handler func(args []string) []byte
}

func newFakeServer() (*fakeServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &fakeServer{ln: ln}
	go s.acceptLoop()
	return s, nil
}

func (s *fakeServer) addr() string { return s.ln.Addr().String() }

func (s *fakeServer) setHandler(h func(args []string) []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *fakeServer) close() { s.ln.Close() }

func (s *fakeServer) acceptLoop() {
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.serve(nc)
	}
}

func (s *fakeServer) serve(nc net.Conn) {
	defer nc.Close()
	c := &conn{nc: nc, r: bufio.NewReader(nc)}
	for {
		r, err := readReply(c)
		if err != nil {
			return
		}
		args := make([]string, len(r.Array))
		for i, e := range r.Array {
			args[i] = e.Str
		}

		s.mu.Lock()
		h := s.handler
		s.mu.Unlock()

		var resp []byte
		if h != nil {
			resp = h(args)
		}
		if resp == nil {
			resp = []byte("+OK\r\n")
		}
		if _, err := nc.Write(resp); err != nil {
			return
		}
	}
}
