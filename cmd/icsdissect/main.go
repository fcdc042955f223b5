// Command icsdissect is the dissector's CLI entrypoint: it loads
// configuration from flags, environment variables, and an optional YAML
// file, wires the pipeline, and drains it cleanly on a termination signal.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"icsdissect/internal/config"
	"icsdissect/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file (optional)")
	iface := flag.String("iface", "", "live interface to capture from")
	file := flag.String("file", "", "offline capture file to read from")
	filterExpr := flag.String("filter", "", "BPF filter expression")
	outputDir := flag.String("output", "", "directory for CSV/JSONL output")
	intervalMinutes := flag.Int("interval", -1, "rolling output interval in minutes (0 = single output_all bucket)")
	realtime := flag.Bool("realtime", false, "disable file output, enable realtime sinks only")
	workers := flag.Int("workers", 0, "dissection worker thread count (0 = auto)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("icsdissect: config load failed: %v", err)
	}

	if *iface != "" {
		cfg.Capture.Interface = *iface
	}
	if *file != "" {
		cfg.Capture.File = *file
	}
	if *filterExpr != "" {
		cfg.Capture.Filter = *filterExpr
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *intervalMinutes >= 0 {
		cfg.Output.IntervalMinutes = *intervalMinutes
	}
	if *realtime {
		cfg.Output.Realtime = true
	}
	if *workers != 0 {
		cfg.Workers.NumThreads = *workers
	}

	pl, err := pipeline.New(cfg)
	if err != nil {
		log.Printf("icsdissect: failed to start: %v", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		pl.Run()
		close(done)
	}()

	select {
	case <-sigCh:
		log.Println("icsdissect: shutdown signal received, draining...")
	case <-done:
		log.Println("icsdissect: capture source exhausted, draining...")
	}

	pl.Stop()

	m := pl.Metrics()
	log.Printf("icsdissect: done. frames_demuxed=%d frames_rejected=%d records_emitted=%d bulk_flush_errors=%d queue_dropped=%d",
		m.FramesDemuxed, m.FramesRejected, m.RecordsEmitted, m.BulkFlushErrors, m.QueueDropped)

	os.Exit(0)
}
