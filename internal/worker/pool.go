// Package worker implements the bounded dissection queue (component J): a
// fixed-size FIFO of captured packets drained by a pool of goroutines, each
// owning its own protocol registry. Unlike the capture-side persistence
// workers this pool's teacher counterpart feeds over a buffered channel, the
// queue here is guarded by an explicit sync.Mutex/sync.Cond pair — the
// dissector spec describes condition-variable push/pop/drain semantics
// directly, so the generalization keeps that vocabulary instead of
// translating it into channel idiom.
package worker

import (
	"log"
	"runtime"
	"sync"

	"icsdissect/internal/asset"
	"icsdissect/internal/capture"
	"icsdissect/internal/protocol"
	"icsdissect/internal/record"
)

const (
	defaultQueueCapacity = 4096
	maxThreads           = 16
)

// Pool is a bounded FIFO of captured packets drained by NumThreads workers.
// Each worker owns a private protocol.Registry, so stateful parsers never
// share pending-request tables across goroutines (spec §4.C, §9).
type Pool struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	drained  *sync.Cond

	queue    []*capture.PacketInfo
	capacity int
	stopping bool

	wg sync.WaitGroup

	assets *asset.Catalogue
	sink   func([]*record.UnifiedRecord)
}

// New builds a worker pool with the given capacity (<=0 uses the default)
// and thread count (<=0 picks max(1, min(8, cores/2)); values above 16 are
// clamped).
func New(capacity, numThreads int, assets *asset.Catalogue, sink func([]*record.UnifiedRecord)) *Pool {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	if numThreads <= 0 {
		numThreads = defaultThreadCount()
	}
	if numThreads > maxThreads {
		numThreads = maxThreads
	}

	p := &Pool{
		queue:    make([]*capture.PacketInfo, 0, capacity),
		capacity: capacity,
		assets:   assets,
		sink:     sink,
	}
	p.notEmpty = sync.NewCond(&p.mu)
	p.notFull = sync.NewCond(&p.mu)
	p.drained = sync.NewCond(&p.mu)

	p.wg.Add(numThreads)
	for i := 0; i < numThreads; i++ {
		go p.runWorker(i)
	}
	return p
}

func defaultThreadCount() int {
	cores := runtime.NumCPU()
	n := cores / 2
	if n < 1 {
		n = 1
	}
	if n > 8 {
		n = 8
	}
	return n
}

// Push enqueues a packet, blocking while the queue is full, and signals a
// single waiting consumer — never a broadcast, so exactly one worker wakes
// per push.
func (p *Pool) Push(info *capture.PacketInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) >= p.capacity && !p.stopping {
		p.notFull.Wait()
	}
	if p.stopping {
		return
	}
	p.queue = append(p.queue, info)
	p.notEmpty.Signal()
}

// Len reports the current queue depth.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// WaitForCompletion blocks, polling queue emptiness, until every queued
// packet has been drained. Intended for offline/bounded-input runs where
// the caller wants all records before flushing the sink.
func (p *Pool) WaitForCompletion() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) > 0 {
		p.drained.Wait()
	}
}

// Stop signals every worker to exit once the queue drains and waits for
// them to return. Safe to call once.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopping = true
	p.mu.Unlock()

	p.notEmpty.Broadcast()
	p.notFull.Broadcast()
	p.wg.Wait()
}

func (p *Pool) runWorker(id int) {
	defer p.wg.Done()

	reg := protocol.NewRegistry(p.assets)

	for {
		info, ok := p.pop()
		if !ok {
			return
		}
		p.dispatchSafely(id, reg, info)
	}
}

// dispatchSafely isolates a single packet's dispatch inside its own
// deferred recover, so a panic loses only that packet instead of the
// worker goroutine: the pool must keep draining the queue afterward.
func (p *Pool) dispatchSafely(id int, reg *protocol.Registry, info *capture.PacketInfo) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("worker %d: recovered from panic: %v", id, r)
		}
	}()

	recs := reg.Dispatch(info)
	if len(recs) > 0 && p.sink != nil {
		p.sink(recs)
	}
}

func (p *Pool) pop() (*capture.PacketInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.stopping {
		p.notEmpty.Wait()
	}
	if len(p.queue) == 0 && p.stopping {
		return nil, false
	}

	info := p.queue[0]
	p.queue = p.queue[1:]
	p.notFull.Signal()
	if len(p.queue) == 0 {
		p.drained.Broadcast()
	}
	return info, true
}
