package memstore

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

const (
	maxBatchSize  = 50
	streamMaxLen  = 100000
	statusPeriod  = 10 * time.Second
	dropLogPeriod = 1000
)

// taskKind selects a command shape for the async writer pipeline.
type taskKind int

const (
	taskStreamAppend taskKind = iota
	taskCounterIncr
	taskAssetCache
)

// task is one queued command. Not every field applies to every kind.
type task struct {
	kind taskKind

	stream string
	data   string

	key string
	n   int64

	ttlSeconds int
	value      string
}

// Writer drains a bounded task queue with N worker goroutines, batching up
// to 50 tasks per iteration and pipelining them (send-all, then
// receive-all) over one pooled connection per batch.
type Writer struct {
	pool *Pool

	mu       sync.Mutex
	notEmpty *sync.Cond
	queue    []task
	capacity int
	stopping bool

	dropped uint64

	wg sync.WaitGroup
}

// NewWriter starts numWorkers goroutines draining a queue of the given
// capacity against pool.
func NewWriter(pool *Pool, numWorkers, capacity int) *Writer {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if capacity <= 0 {
		capacity = 10000
	}

	w := &Writer{pool: pool, queue: make([]task, 0, capacity), capacity: capacity}
	w.notEmpty = sync.NewCond(&w.mu)

	w.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go w.run(i)
	}
	return w
}

// Enqueue appends t to the queue, returning false and bumping the dropped
// counter if the queue is full — drop-on-overflow rather than block.
func (w *Writer) Enqueue(t task) bool {
	w.mu.Lock()
	if len(w.queue) >= w.capacity {
		w.mu.Unlock()
		n := atomic.AddUint64(&w.dropped, 1)
		if n%dropLogPeriod == 0 {
			log.Printf("memstore writer: %d tasks dropped so far", n)
		}
		return false
	}
	w.queue = append(w.queue, t)
	w.mu.Unlock()
	w.notEmpty.Signal()
	return true
}

// Dropped returns the current drop count.
func (w *Writer) Dropped() uint64 { return atomic.LoadUint64(&w.dropped) }

// Stop signals every worker to drain and exit.
func (w *Writer) Stop() {
	w.mu.Lock()
	w.stopping = true
	w.mu.Unlock()
	w.notEmpty.Broadcast()
	w.wg.Wait()
}

func (w *Writer) run(id int) {
	defer w.wg.Done()
	ticker := time.NewTicker(statusPeriod)
	defer ticker.Stop()

	for {
		batch := w.takeBatch()
		if batch == nil {
			return
		}
		if len(batch) > 0 {
			w.sendBatch(batch)
		}

		select {
		case <-ticker.C:
			log.Printf("memstore writer %d: alive, %d dropped total", id, w.Dropped())
		default:
		}
	}
}

// takeBatch pulls up to maxBatchSize tasks, blocking on notEmpty when the
// queue is empty and the writer is not stopping. Returns nil once stopping
// and drained.
func (w *Writer) takeBatch() []task {
	w.mu.Lock()
	defer w.mu.Unlock()

	for len(w.queue) == 0 && !w.stopping {
		w.notEmpty.Wait()
	}
	if len(w.queue) == 0 && w.stopping {
		return nil
	}

	n := len(w.queue)
	if n > maxBatchSize {
		n = maxBatchSize
	}
	batch := make([]task, n)
	copy(batch, w.queue[:n])
	w.queue = w.queue[n:]
	return batch
}

func (w *Writer) sendBatch(batch []task) {
	c, err := w.pool.Acquire()
	if err != nil {
		log.Printf("memstore writer: acquire connection failed: %v", err)
		return
	}
	defer w.pool.Release(c)

	for _, t := range batch {
		if err := writeCommand(c, taskCommand(t)...); err != nil {
			log.Printf("memstore writer: send failed: %v", err)
			return
		}
	}
	for range batch {
		if _, err := readReply(c); err != nil {
			log.Printf("memstore writer: receive failed: %v", err)
			return
		}
	}
}

func taskCommand(t task) []string {
	switch t.kind {
	case taskStreamAppend:
		return []string{"XADD", "stream:protocol:" + t.stream, "MAXLEN", "~", itoa(streamMaxLen), "*", "data", t.data}
	case taskCounterIncr:
		return []string{"INCRBY", t.key, fmt.Sprintf("%d", t.n)}
	case taskAssetCache:
		return []string{"SETEX", t.key, itoa(t.ttlSeconds), t.value}
	default:
		return []string{"PING"}
	}
}
