package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValues(t *testing.T) {
	cfg := Default()
	if cfg.Output.Dir != "./output" {
		t.Errorf("expected default output dir, got %q", cfg.Output.Dir)
	}
	if cfg.Workers.QueueCapacity != 4096 {
		t.Errorf("expected default queue capacity 4096, got %d", cfg.Workers.QueueCapacity)
	}
	if cfg.DocStore.BulkSize != 100 {
		t.Errorf("expected default bulk size 100, got %d", cfg.DocStore.BulkSize)
	}
	if cfg.MemStore.PoolSize != 8 {
		t.Errorf("expected default pool size 8, got %d", cfg.MemStore.PoolSize)
	}
}

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := "capture:\n  interface: eth0\noutput:\n  dir: /tmp/out\n  interval_minutes: 5\nworkers:\n  num_threads: 4\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Capture.Interface != "eth0" {
		t.Errorf("expected interface eth0, got %q", cfg.Capture.Interface)
	}
	if cfg.Output.Dir != "/tmp/out" || cfg.Output.IntervalMinutes != 5 {
		t.Errorf("expected output overridden, got %+v", cfg.Output)
	}
	if cfg.Workers.NumThreads != 4 {
		t.Errorf("expected 4 worker threads, got %d", cfg.Workers.NumThreads)
	}
	// Fields not set in the file keep their defaults.
	if cfg.DocStore.BulkSize != 100 {
		t.Errorf("expected unset docstore bulk size to keep default, got %d", cfg.DocStore.BulkSize)
	}
}

func TestLoadWithEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Output.Dir != "./output" {
		t.Errorf("expected default applied with empty path, got %q", cfg.Output.Dir)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestEnvOverridesWinOverFileAndDefault(t *testing.T) {
	t.Setenv("ICSDISSECT_OUTPUT_DIR", "/env/out")
	t.Setenv("ICSDISSECT_WORKER_THREADS", "7")
	t.Setenv("ICSDISSECT_REALTIME", "true")
	t.Setenv("ICSDISSECT_DOCSTORE_ENABLED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Output.Dir != "/env/out" {
		t.Errorf("expected env override for output dir, got %q", cfg.Output.Dir)
	}
	if cfg.Workers.NumThreads != 7 {
		t.Errorf("expected env override for worker threads, got %d", cfg.Workers.NumThreads)
	}
	if !cfg.Output.Realtime {
		t.Errorf("expected realtime enabled via env override")
	}
	if !cfg.DocStore.Enabled {
		t.Errorf("expected docstore enabled via env override")
	}
}

func TestEnvOverrideIgnoresUnparsableInt(t *testing.T) {
	t.Setenv("ICSDISSECT_WORKER_THREADS", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers.NumThreads != 0 {
		t.Errorf("expected unparsable int override to leave default intact, got %d", cfg.Workers.NumThreads)
	}
}
