package memstore

import (
	"testing"
	"time"
)

func TestNewPoolDialsAndSelectsDB(t *testing.T) {
	srv, err := newFakeServer()
	if err != nil {
		t.Fatalf("newFakeServer: %v", err)
	}
	defer srv.close()

	var sawSelect bool
	srv.setHandler(func(args []string) []byte {
		if len(args) > 0 && args[0] == "SELECT" {
			sawSelect = true
		}
		return nil
	})

	p, err := NewPool(PoolConfig{Addr: srv.addr(), PoolSize: 2})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Shutdown()

	if !sawSelect {
		t.Fatalf("expected SELECT to be issued during dial")
	}
	if len(p.idle) != 2 {
		t.Fatalf("expected 2 idle connections, got %d", len(p.idle))
	}
}

func TestPoolAcquireReleaseRoundTrip(t *testing.T) {
	srv, err := newFakeServer()
	if err != nil {
		t.Fatalf("newFakeServer: %v", err)
	}
	defer srv.close()

	p, err := NewPool(PoolConfig{Addr: srv.addr(), PoolSize: 1})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Shutdown()

	c, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.Release(c)

	if len(p.idle) != 1 {
		t.Fatalf("expected connection returned to idle pool, got %d idle", len(p.idle))
	}
}

func TestPoolAcquireFallsBackToEmergencyConnection(t *testing.T) {
	srv, err := newFakeServer()
	if err != nil {
		t.Fatalf("newFakeServer: %v", err)
	}
	defer srv.close()

	p, err := NewPool(PoolConfig{Addr: srv.addr(), PoolSize: 1, AcquireTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer p.Shutdown()

	held, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire (held): %v", err)
	}
	defer held.nc.Close()

	start := time.Now()
	emergency, err := p.Acquire()
	if err != nil {
		t.Fatalf("expected emergency connection, got error: %v", err)
	}
	defer emergency.nc.Close()

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Acquire took too long to fall back to an emergency connection: %v", elapsed)
	}
}

func TestPoolShutdownRejectsAcquire(t *testing.T) {
	srv, err := newFakeServer()
	if err != nil {
		t.Fatalf("newFakeServer: %v", err)
	}
	defer srv.close()

	p, err := NewPool(PoolConfig{Addr: srv.addr(), PoolSize: 1})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	p.Shutdown()

	if _, err := p.Acquire(); err == nil {
		t.Fatalf("expected Acquire to fail after Shutdown")
	}
}
