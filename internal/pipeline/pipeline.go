// Package pipeline wires the capture source, worker pool, unified sink,
// and optional realtime fan-outs (document store, in-memory store, alert
// bus, digest notifier) into one running system, and owns the documented
// shutdown drain order.
package pipeline

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"icsdissect/internal/asset"
	"icsdissect/internal/capture"
	"icsdissect/internal/config"
	"icsdissect/internal/metrics"
	"icsdissect/internal/notify"
	"icsdissect/internal/realtime/bus"
	"icsdissect/internal/realtime/docstore"
	"icsdissect/internal/realtime/memstore"
	"icsdissect/internal/record"
	"icsdissect/internal/sink"
	"icsdissect/internal/worker"
)

const liveSnaplen = 1600

// Pipeline owns every long-lived component of one dissector run.
type Pipeline struct {
	cfg     *config.Config
	metrics metrics.Counters

	source *capture.Source
	pool   *worker.Pool
	sink   *sink.Sink

	docstore *docstore.Client
	memstore *memstore.Store
	memPool  *memstore.Pool
	memWrite *memstore.Writer
	alertBus *bus.Bus
	notifier *notify.Notifier

	stopCh chan struct{}
}

// New builds every configured component but does not yet start capture.
func New(cfg *config.Config) (*Pipeline, error) {
	assets := asset.Empty()
	if cfg.Assets.IPInventoryPath != "" {
		if err := assets.LoadIPInventory(cfg.Assets.IPInventoryPath); err != nil {
			log.Printf("pipeline: ip inventory not loaded: %v", err)
		}
	}
	if cfg.Assets.InputTagsPath != "" {
		if err := assets.LoadTagFile(cfg.Assets.InputTagsPath); err != nil {
			log.Printf("pipeline: input tags not loaded: %v", err)
		}
	}
	if cfg.Assets.OutputTagsPath != "" {
		if err := assets.LoadTagFile(cfg.Assets.OutputTagsPath); err != nil {
			log.Printf("pipeline: output tags not loaded: %v", err)
		}
	}

	p := &Pipeline{cfg: cfg, stopCh: make(chan struct{})}

	fileOutput := !cfg.Output.Realtime
	p.sink = sink.New(cfg.Output.Dir, cfg.Output.IntervalMinutes, fileOutput)

	if cfg.DocStore.Enabled {
		dc, err := docstore.New(docstore.Config{
			Host:          cfg.DocStore.Host,
			Port:          cfg.DocStore.Port,
			UseTLS:        cfg.DocStore.UseTLS,
			InsecureTLS:   cfg.DocStore.InsecureTLS,
			Username:      cfg.DocStore.Username,
			Password:      cfg.DocStore.Password,
			IndexPrefix:   cfg.DocStore.IndexPrefix,
			BulkSize:      cfg.DocStore.BulkSize,
			FlushInterval: time.Duration(cfg.DocStore.FlushMillis) * time.Millisecond,
		})
		if err != nil {
			return nil, fmt.Errorf("docstore init: %w", err)
		}
		p.docstore = dc
	}

	if cfg.MemStore.Enabled {
		mp, err := memstore.NewPool(memstore.PoolConfig{
			Addr:     cfg.MemStore.Addr,
			Password: cfg.MemStore.Password,
			DB:       cfg.MemStore.DB,
			PoolSize: cfg.MemStore.PoolSize,
		})
		if err != nil {
			return nil, fmt.Errorf("memstore pool init: %w", err)
		}
		p.memPool = mp
		p.memWrite = memstore.NewWriter(mp, cfg.MemStore.NumWriters, cfg.MemStore.WriterQueueCap)
		p.memstore = memstore.New(mp, p.memWrite)
		p.memstore.CreateProtocolStreams()
	}

	if cfg.Bus.Enabled {
		b, err := bus.Connect(cfg.Bus.URL, cfg.Bus.Subject)
		if err != nil {
			return nil, fmt.Errorf("bus connect: %w", err)
		}
		p.alertBus = b
	}

	if cfg.SMTP.Enabled {
		n := notify.New(notify.SMTPConfig{
			Host: cfg.SMTP.Host, Port: cfg.SMTP.Port,
			Username: cfg.SMTP.Username, Password: cfg.SMTP.Password,
			From: cfg.SMTP.From, To: cfg.SMTP.To,
		}, time.Duration(cfg.SMTP.DigestIntervalS)*time.Second)
		n.Start()
		p.notifier = n
	}

	p.sink.SetCallback(p.onRecord)

	p.pool = worker.New(cfg.Workers.QueueCapacity, cfg.Workers.NumThreads, assets, p.onRecords)

	switch {
	case cfg.Capture.File != "":
		src, err := capture.OpenOffline(cfg.Capture.File)
		if err != nil {
			return nil, fmt.Errorf("open capture file: %w", err)
		}
		p.source = src
	case cfg.Capture.Interface != "":
		src, err := capture.OpenLive(cfg.Capture.Interface, liveSnaplen, pcapReadTimeout)
		if err != nil {
			return nil, fmt.Errorf("open capture interface: %w", err)
		}
		p.source = src
	default:
		return nil, fmt.Errorf("no capture source configured: need capture.file or capture.interface")
	}

	if err := p.source.SetFilter(cfg.Capture.Filter); err != nil {
		return nil, err
	}

	return p, nil
}

const pcapReadTimeout = time.Second

// frameEnqueuer adapts the worker pool's PacketInfo queue to capture's
// byte-oriented FrameSink, demuxing each frame before it is queued.
type frameEnqueuer struct {
	pool    *worker.Pool
	metrics *metrics.Counters
}

func (e *frameEnqueuer) Enqueue(frame []byte, ts time.Time) {
	info, err := capture.Demux(frame, ts)
	if err != nil {
		e.metrics.IncFramesRejected()
		return
	}
	e.metrics.IncFramesDemuxed()
	e.pool.Push(info)
}

// Run starts delivering captured frames and blocks until the source is
// exhausted (offline) or Stop is called (live).
func (p *Pipeline) Run() {
	enq := &frameEnqueuer{pool: p.pool, metrics: &p.metrics}
	p.source.Run(enq, p.stopCh)
}

// Stop executes the documented drain order: stop capture, drain the worker
// queue, stop workers, flush the unified sink, stop the async writer
// (flushing pending batches), close the pool, stop the bulk flusher, final
// bulk flush.
func (p *Pipeline) Stop() {
	close(p.stopCh)
	p.source.Close()

	p.pool.WaitForCompletion()
	p.pool.Stop()

	p.sink.Close()

	if p.memWrite != nil {
		p.memWrite.Stop()
	}
	if p.memPool != nil {
		p.memPool.Shutdown()
	}
	if p.docstore != nil {
		p.docstore.Stop()
	}
	if p.alertBus != nil {
		p.alertBus.Close()
	}
	if p.notifier != nil {
		p.notifier.Stop()
	}
}

func (p *Pipeline) onRecords(recs []*record.UnifiedRecord) {
	p.metrics.AddRecordsEmitted(len(recs))
	for _, r := range recs {
		p.sink.Add(r)
	}
}

// onRecord is the sink's realtime callback: it fans one record out to the
// document store, the in-memory store, and (for interesting protocols) the
// alert bus and digest notifier.
func (p *Pipeline) onRecord(r *record.UnifiedRecord) {
	if p.docstore != nil {
		doc := recordToDocument(r)
		if err := p.docstore.AddToBulk(r.Protocol, doc); err != nil {
			p.metrics.IncBulkFlushErrors()
			log.Printf("pipeline: docstore addToBulk failed: %v", err)
		}
	}

	if p.memstore != nil {
		body, err := json.Marshal(r)
		if err == nil {
			p.memstore.PushToStream(r.Protocol, r.Protocol, string(body))
		}
	}

	if isAlertWorthy(r) {
		p.raiseAlert(r)
	}
}

// isAlertWorthy flags write-capable operations against ICS field devices:
// Modbus function codes 5/6/15/16, and S7Comm write-var jobs.
func isAlertWorthy(r *record.UnifiedRecord) bool {
	if r.Modbus != nil {
		switch r.Modbus.FC {
		case 5, 6, 15, 16:
			return true
		}
	}
	if r.S7 != nil && r.S7.Function != nil && *r.S7.Function == 0x05 {
		return true
	}
	return false
}

func (p *Pipeline) raiseAlert(r *record.UnifiedRecord) {
	if p.notifier != nil {
		p.notifier.Alert(r, "write operation observed")
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return
	}
	if p.alertBus != nil {
		if err := p.alertBus.PublishAlert(r); err != nil {
			log.Printf("pipeline: alert bus publish failed: %v", err)
		}
	}
	if p.memstore != nil {
		if err := p.memstore.PublishAlert("channel:alerts", string(payload)); err != nil {
			log.Printf("pipeline: memstore publishAlert failed: %v", err)
		}
	}
}

// recordToDocument renders a UnifiedRecord as the flat field set the
// document-store mapping expects (spec §6).
func recordToDocument(r *record.UnifiedRecord) map[string]interface{} {
	doc := map[string]interface{}{
		"@timestamp": r.Timestamp,
		"protocol":   r.Protocol,
		"src_ip":     r.SIP,
		"dst_ip":     r.DIP,
		"src_port":   r.SP,
		"dst_port":   r.DP,
		"src_mac":    r.SMAC,
		"dst_mac":    r.DMAC,
		"direction":  r.Dir,
		"src_asset":  r.SrcAssetName,
		"dst_asset":  r.DstAssetName,
	}

	var details interface{}
	switch {
	case r.Modbus != nil:
		details = r.Modbus
	case r.S7 != nil:
		details = r.S7
	case r.XGT != nil:
		details = r.XGT
	case r.DNS != nil:
		details = r.DNS
	case r.DNP3 != nil:
		details = r.DNP3
	case r.ARP != nil:
		details = r.ARP
	case r.TCPSession != nil:
		details = r.TCPSession
	}
	doc["protocol_details"] = details
	doc["features"] = map[string]interface{}{
		"translated_addr": r.TranslatedAddr,
		"tag_description": r.TagDescription,
	}
	return doc
}

// Metrics returns a snapshot of the pipeline's operational counters.
func (p *Pipeline) Metrics() metrics.Snapshot { return p.metrics.Snapshot() }
