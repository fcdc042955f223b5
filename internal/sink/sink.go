// Package sink implements the unified record sink: time-bucketed
// in-memory accumulation with a stable-sorted flush to CSV and JSONL, plus
// a synchronous realtime fan-out hook (spec §4.I).
package sink

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"icsdissect/internal/record"
)

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// Sink accumulates UnifiedRecords into time buckets and flushes them to
// disk. It holds no back-reference to the realtime pipeline: the callback
// is a plain function value, avoiding the cyclic ownership the teacher's
// writer/notifier split was designed to dodge (spec §9 design notes).
type Sink struct {
	mu      sync.Mutex
	buckets map[string][]*record.UnifiedRecord

	intervalMinutes int
	outputDir       string
	fileOutput      bool

	callback func(*record.UnifiedRecord)
}

// New creates a Sink writing to outputDir every intervalMinutes (0 collapses
// every record into a single "output_all" bucket). fileOutput controls
// whether Flush ever touches disk — realtime mode turns file output off.
func New(outputDir string, intervalMinutes int, fileOutput bool) *Sink {
	return &Sink{
		buckets:         make(map[string][]*record.UnifiedRecord),
		intervalMinutes: intervalMinutes,
		outputDir:       outputDir,
		fileOutput:      fileOutput,
	}
}

// SetCallback registers the realtime fan-out hook invoked synchronously by
// every Add call.
func (s *Sink) SetCallback(cb func(*record.UnifiedRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

// BucketLabel computes the "output_YYYYMMDD_HHMM" label for a timestamp,
// floor-aligning the minute to the configured rolling interval. Interval
// zero always yields "output_all".
func (s *Sink) BucketLabel(ts time.Time) string {
	if s.intervalMinutes <= 0 {
		return "output_all"
	}
	ts = ts.UTC()
	minute := (ts.Minute() / s.intervalMinutes) * s.intervalMinutes
	return fmt.Sprintf("output_%04d%02d%02d_%02d%02d", ts.Year(), ts.Month(), ts.Day(), ts.Hour(), minute)
}

// Add appends r to its time bucket and synchronously invokes the realtime
// callback, if any. Thread-safe.
func (s *Sink) Add(r *record.UnifiedRecord) {
	ts, err := time.Parse(timestampLayout, r.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}
	label := s.BucketLabel(ts)

	s.mu.Lock()
	s.buckets[label] = append(s.buckets[label], r)
	cb := s.callback
	s.mu.Unlock()

	if cb != nil {
		cb(r)
	}
}

// Flush drains every bucket, stably sorting each by timestamp (preserving
// the Modbus per-register fan-out order) and writing a CSV and a JSONL file
// per bucket when file output is enabled.
func (s *Sink) Flush() error {
	s.mu.Lock()
	buckets := s.buckets
	s.buckets = make(map[string][]*record.UnifiedRecord)
	s.mu.Unlock()

	if !s.fileOutput {
		return nil
	}

	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var firstErr error
	for label, recs := range buckets {
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].Timestamp < recs[j].Timestamp })

		if err := s.writeCSV(label, recs); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := s.writeJSONL(label, recs); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close performs an implicit flush if any bucket still holds records,
// logging a warning; this mirrors the teacher's destructor-time safety net
// for unflushed aggregator state.
func (s *Sink) Close() {
	s.mu.Lock()
	nonEmpty := len(s.buckets) > 0
	s.mu.Unlock()

	if nonEmpty {
		log.Printf("sink: closing with unflushed buckets, performing implicit flush")
		if err := s.Flush(); err != nil {
			log.Printf("sink: implicit flush failed: %v", err)
		}
	}
}

func (s *Sink) writeCSV(label string, recs []*record.UnifiedRecord) error {
	path := filepath.Join(s.outputDir, label+".csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := make([]string, len(fieldTable))
	for i, fld := range fieldTable {
		header[i] = fld.key
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(fieldTable))
	for _, r := range recs {
		for i, fld := range fieldTable {
			if v, ok := fld.get(r); ok {
				row[i] = csvValue(v)
			} else {
				row[i] = ""
			}
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func (s *Sink) writeJSONL(label string, recs []*record.UnifiedRecord) error {
	path := filepath.Join(s.outputDir, label+".jsonl")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create jsonl %q: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	defer bw.Flush()

	for _, r := range recs {
		line, err := marshalRecord(r)
		if err != nil {
			return fmt.Errorf("marshal jsonl record: %w", err)
		}
		if _, err := bw.Write(line); err != nil {
			return err
		}
		if _, err := bw.WriteString("\n"); err != nil {
			return err
		}
	}
	return nil
}

// marshalRecord renders r as one compact JSON object, in fieldTable's
// stable key order, emitting only non-empty protocol-specific keys.
func marshalRecord(r *record.UnifiedRecord) ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for _, fld := range fieldTable {
		v, ok := fld.get(r)
		if !ok {
			continue
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if !first {
			b.WriteByte(',')
		}
		first = false

		keyJSON, err := json.Marshal(fld.key)
		if err != nil {
			return nil, err
		}
		b.Write(keyJSON)
		b.WriteByte(':')
		b.Write(encoded)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}
