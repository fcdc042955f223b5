// Package memstore implements the in-memory store realtime sink: a
// hand-rolled RESP-style wire client, a connection pool, and an async
// writer pool (components L/M/N). No Redis-compatible client library
// appears anywhere in the retrieved corpus, so the wire protocol is spoken
// directly over net.Conn, the way the teacher speaks NATS's wire protocol
// through its official client but falls back to raw sockets wherever no
// client library is available.
package memstore

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"
)

// PoolConfig configures the connection pool.
type PoolConfig struct {
	Addr            string
	Password        string
	DB              int
	PoolSize        int
	AcquireTimeout  time.Duration
	DialTimeout     time.Duration
}

// conn wraps a single RESP-speaking connection with its buffered reader.
type conn struct {
	nc net.Conn
	r  *bufio.Reader
}

// Pool is a fixed-size FIFO of long-lived connections guarded by a
// mutex/CV pair. Acquire waits up to a timeout before opening a short-lived
// emergency connection rather than blocking forever.
type Pool struct {
	cfg PoolConfig

	mu        sync.Mutex
	available *sync.Cond
	idle      []*conn
	shutdown  bool
}

// NewPool dials PoolSize connections up front, authenticating and selecting
// the configured DB on each.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 8
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = 2 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}

	p := &Pool{cfg: cfg}
	p.available = sync.NewCond(&p.mu)

	for i := 0; i < cfg.PoolSize; i++ {
		c, err := p.dial()
		if err != nil {
			return nil, fmt.Errorf("memstore: initial dial %d/%d failed: %w", i+1, cfg.PoolSize, err)
		}
		p.idle = append(p.idle, c)
	}
	return p, nil
}

func (p *Pool) dial() (*conn, error) {
	nc, err := net.DialTimeout("tcp", p.cfg.Addr, p.cfg.DialTimeout)
	if err != nil {
		return nil, err
	}
	c := &conn{nc: nc, r: bufio.NewReader(nc)}

	if p.cfg.Password != "" {
		if err := writeCommand(c, "AUTH", p.cfg.Password); err != nil {
			nc.Close()
			return nil, err
		}
		if _, err := readReply(c); err != nil {
			nc.Close()
			return nil, err
		}
	}
	if err := writeCommand(c, "SELECT", itoa(p.cfg.DB)); err != nil {
		nc.Close()
		return nil, err
	}
	if _, err := readReply(c); err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

// Acquire returns a validated connection from the pool, waiting up to
// AcquireTimeout; past that it opens a short-lived emergency connection
// instead of blocking indefinitely.
func (p *Pool) Acquire() (*conn, error) {
	deadline := time.Now().Add(p.cfg.AcquireTimeout)

	p.mu.Lock()
	for len(p.idle) == 0 && !p.shutdown {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		waitWithTimeout(p.available, &p.mu, remaining)
		if time.Now().After(deadline) {
			break
		}
	}
	if p.shutdown {
		p.mu.Unlock()
		return nil, fmt.Errorf("memstore: pool shut down")
	}
	if len(p.idle) > 0 {
		c := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		p.mu.Unlock()

		if err := ping(c); err != nil {
			fresh, derr := p.dial()
			if derr != nil {
				return nil, fmt.Errorf("memstore: revalidate connection: %w", derr)
			}
			return fresh, nil
		}
		return c, nil
	}
	p.mu.Unlock()

	c, err := p.dial()
	if err != nil {
		return nil, fmt.Errorf("memstore: emergency connection: %w", err)
	}
	return c, nil
}

// Release returns c to the pool, recreating it if it failed its exit
// validation.
func (p *Pool) Release(c *conn) {
	if err := ping(c); err != nil {
		c.nc.Close()
		fresh, derr := p.dial()
		if derr != nil {
			return
		}
		c = fresh
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdown {
		c.nc.Close()
		return
	}
	p.idle = append(p.idle, c)
	p.available.Signal()
}

// Shutdown marks the pool closed, wakes every waiter, and closes every idle
// connection. Subsequent Acquire calls fail cleanly.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.shutdown = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	p.available.Broadcast()
	for _, c := range idle {
		c.nc.Close()
	}
}

func ping(c *conn) error {
	if err := writeCommand(c, "PING"); err != nil {
		return err
	}
	_, err := readReply(c)
	return err
}

// waitWithTimeout wraps sync.Cond.Wait with a bounded timer: Cond has no
// native timed wait, so a helper goroutine signals the condition once the
// timeout elapses.
func waitWithTimeout(cond *sync.Cond, mu *sync.Mutex, d time.Duration) {
	timer := time.AfterFunc(d, func() {
		mu.Lock()
		cond.Broadcast()
		mu.Unlock()
	})
	defer timer.Stop()
	cond.Wait()
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}
