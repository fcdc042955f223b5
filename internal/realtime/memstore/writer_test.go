package memstore

import (
	"sync"
	"testing"
	"time"
)

func TestWriterEnqueueDropsOnOverflow(t *testing.T) {
	srv, err := newFakeServer()
	if err != nil {
		t.Fatalf("newFakeServer: %v", err)
	}
	defer srv.close()

	// Block every command so the single worker never drains the queue,
	// letting Enqueue observe it full.
	block := make(chan struct{})
	srv.setHandler(func(args []string) []byte {
		<-block
		return nil
	})

	p, err := NewPool(PoolConfig{Addr: srv.addr(), PoolSize: 1})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	w := NewWriter(p, 1, 1)

	// close(block) must run before w.Stop()/p.Shutdown() or the stuck
	// worker's in-flight sendBatch would deadlock the cleanup.
	cleanup := func() {
		close(block)
		w.Stop()
		p.Shutdown()
	}

	if !w.Enqueue(task{kind: taskCounterIncr, key: "k", n: 1}) {
		cleanup()
		t.Fatalf("expected first enqueue on an empty queue to succeed")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if !w.Enqueue(task{kind: taskCounterIncr, key: "k", n: 1}) {
			cleanup()
			return
		}
		time.Sleep(time.Millisecond)
	}
	cleanup()
	t.Fatalf("expected an Enqueue to be dropped once the queue filled")
}

func TestWriterSendsBatchedCommands(t *testing.T) {
	srv, err := newFakeServer()
	if err != nil {
		t.Fatalf("newFakeServer: %v", err)
	}
	defer srv.close()

	var mu sync.Mutex
	var seen []string
	srv.setHandler(func(args []string) []byte {
		if len(args) > 0 {
			mu.Lock()
			seen = append(seen, args[0])
			mu.Unlock()
		}
		return nil
	})

	p, err := NewPool(PoolConfig{Addr: srv.addr(), PoolSize: 2})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Shutdown()

	w := NewWriter(p, 2, 100)
	for i := 0; i < 5; i++ {
		w.Enqueue(task{kind: taskStreamAppend, stream: "modbus", data: "x"})
	}
	w.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 5 {
		t.Fatalf("expected 5 XADD commands observed by the fake server, got %d: %v", len(seen), seen)
	}
	for _, cmd := range seen {
		if cmd != "XADD" {
			t.Fatalf("expected every command to be XADD, got %q", cmd)
		}
	}
}
