package memstore

import (
	"fmt"
	"sync"
	"testing"
)

func newTestStore(t *testing.T, handler func(args []string) []byte) (*Store, *fakeServer, *Pool, *Writer) {
	srv, err := newFakeServer()
	if err != nil {
		t.Fatalf("newFakeServer: %v", err)
	}
	srv.setHandler(handler)

	p, err := NewPool(PoolConfig{Addr: srv.addr(), PoolSize: 2})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	w := NewWriter(p, 2, 100)
	return New(p, w), srv, p, w
}

func TestGetAssetInfoDecodesCachedValue(t *testing.T) {
	store, srv, p, w := newTestStore(t, func(args []string) []byte {
		if len(args) > 0 && args[0] == "GET" {
			body := `{"name":"PLC-1","tag":"line-a"}`
			return []byte(fmt.Sprintf("$%d\r\n%s\r\n", len(body), body))
		}
		return nil
	})
	defer w.Stop()
	defer p.Shutdown()
	defer srv.close()

	info := store.GetAssetInfo("192.168.1.10")
	if info.Name != "PLC-1" || info.Tag != "line-a" {
		t.Fatalf("expected decoded asset info, got %+v", info)
	}
}

func TestGetAssetInfoMissReturnsDefault(t *testing.T) {
	store, srv, p, w := newTestStore(t, func(args []string) []byte {
		if len(args) > 0 && args[0] == "GET" {
			return []byte("$-1\r\n")
		}
		return nil
	})
	defer w.Stop()
	defer p.Shutdown()
	defer srv.close()

	info := store.GetAssetInfo("10.0.0.1")
	if info.Name != "" || info.Tag != "" {
		t.Fatalf("expected zero-value default on cache miss, got %+v", info)
	}
}

func TestPublishAlertIsSynchronous(t *testing.T) {
	var mu sync.Mutex
	var gotChannel, gotPayload string

	store, srv, p, w := newTestStore(t, func(args []string) []byte {
		if len(args) == 3 && args[0] == "PUBLISH" {
			mu.Lock()
			gotChannel, gotPayload = args[1], args[2]
			mu.Unlock()
		}
		return nil
	})
	defer w.Stop()
	defer p.Shutdown()
	defer srv.close()

	if err := store.PublishAlert("channel:alerts", `{"ok":true}`); err != nil {
		t.Fatalf("PublishAlert: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotChannel != "channel:alerts" || gotPayload != `{"ok":true}` {
		t.Fatalf("expected publish observed immediately, got channel=%q payload=%q", gotChannel, gotPayload)
	}
}

func TestCreateProtocolStreamsSkipsExisting(t *testing.T) {
	var mu sync.Mutex
	seeded := map[string]bool{}

	store, srv, p, w := newTestStore(t, func(args []string) []byte {
		if len(args) >= 2 && args[0] == "XINFO" {
			streamKey := args[2]
			if streamKey == "stream:protocol:arp" {
				return []byte("*2\r\n$6\r\nlength\r\n:1\r\n")
			}
			return []byte("$-1\r\n")
		}
		if len(args) > 0 && args[0] == "XADD" {
			mu.Lock()
			seeded[args[1]] = true
			mu.Unlock()
		}
		return nil
	})
	defer w.Stop()
	defer p.Shutdown()
	defer srv.close()

	store.CreateProtocolStreams()

	mu.Lock()
	defer mu.Unlock()
	if seeded["stream:protocol:arp"] {
		t.Fatalf("expected the already-existing arp stream to be skipped")
	}
	if !seeded["stream:protocol:modbus"] {
		t.Fatalf("expected the missing modbus stream to be seeded")
	}
}
