// Package config loads the dissector's YAML configuration file, in the
// same shape-first, flat-struct style the teacher uses for its aggregator
// config, then layers environment-variable overrides on top per option.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// CaptureConfig selects the packet source (spec §6 "Input").
type CaptureConfig struct {
	Interface string `yaml:"interface"`
	File      string `yaml:"file"`
	Filter    string `yaml:"filter"`
}

// OutputConfig controls file-based record output.
type OutputConfig struct {
	Dir             string `yaml:"dir"`
	IntervalMinutes int    `yaml:"interval_minutes"`
	Realtime        bool   `yaml:"realtime"`
}

// AssetsConfig points at the three fixed-layout asset CSVs (spec §4.B).
type AssetsConfig struct {
	IPInventoryPath string `yaml:"ip_inventory_path"`
	InputTagsPath   string `yaml:"input_tags_path"`
	OutputTagsPath  string `yaml:"output_tags_path"`
}

// WorkerConfig controls the bounded dissection queue (spec §4.J).
type WorkerConfig struct {
	NumThreads    int `yaml:"num_threads"`
	QueueCapacity int `yaml:"queue_capacity"`
}

// DocStoreConfig configures the bulk HTTP document-store sink (spec §4.K).
type DocStoreConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	UseTLS      bool   `yaml:"use_tls"`
	InsecureTLS bool   `yaml:"insecure_tls"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	IndexPrefix string `yaml:"index_prefix"`
	BulkSize    int    `yaml:"bulk_size"`
	FlushMillis int    `yaml:"flush_millis"`
}

// MemStoreConfig configures the in-memory store realtime sink (spec §4.L-N).
type MemStoreConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Addr           string `yaml:"addr"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	PoolSize       int    `yaml:"pool_size"`
	NumWriters     int    `yaml:"num_writers"`
	WriterQueueCap int    `yaml:"writer_queue_capacity"`
}

// BusConfig configures the NATS alert pass-through channel.
type BusConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// SMTPConfig configures the optional digest notifier.
type SMTPConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	From            string `yaml:"from"`
	To              string `yaml:"to"`
	DigestIntervalS int    `yaml:"digest_interval_seconds"`
}

// Config is the top-level configuration struct for the dissector.
type Config struct {
	Capture  CaptureConfig  `yaml:"capture"`
	Output   OutputConfig   `yaml:"output"`
	Assets   AssetsConfig   `yaml:"assets"`
	Workers  WorkerConfig   `yaml:"workers"`
	DocStore DocStoreConfig `yaml:"docstore"`
	MemStore MemStoreConfig `yaml:"memstore"`
	Bus      BusConfig      `yaml:"bus"`
	SMTP     SMTPConfig     `yaml:"smtp"`
}

// Default returns a Config with the documented defaults applied before any
// file or environment override.
func Default() Config {
	return Config{
		Output: OutputConfig{Dir: "./output", IntervalMinutes: 0},
		Assets: AssetsConfig{
			IPInventoryPath: "./assets/ip_inventory.csv",
			InputTagsPath:   "./assets/input_tags.csv",
			OutputTagsPath:  "./assets/output_tags.csv",
		},
		Workers:  WorkerConfig{NumThreads: 0, QueueCapacity: 4096},
		DocStore: DocStoreConfig{IndexPrefix: "icsdissect", BulkSize: 100, FlushMillis: 1000},
		MemStore: MemStoreConfig{Addr: "127.0.0.1:6379", PoolSize: 8, NumWriters: 4, WriterQueueCap: 10000},
		Bus:      BusConfig{URL: "nats://127.0.0.1:4222", Subject: "icsdissect.alerts"},
		SMTP:     SMTPConfig{DigestIntervalS: 300},
	}
}

// Load reads filePath if non-empty, merges it over the defaults, and
// applies documented environment-variable overrides. A missing filePath is
// not an error — a pure environment/default configuration is valid.
func Load(filePath string) (*Config, error) {
	cfg := Default()

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config yaml: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	strEnv("ICSDISSECT_CAPTURE_INTERFACE", &cfg.Capture.Interface)
	strEnv("ICSDISSECT_CAPTURE_FILE", &cfg.Capture.File)
	strEnv("ICSDISSECT_CAPTURE_FILTER", &cfg.Capture.Filter)

	strEnv("ICSDISSECT_OUTPUT_DIR", &cfg.Output.Dir)
	intEnv("ICSDISSECT_OUTPUT_INTERVAL_MINUTES", &cfg.Output.IntervalMinutes)
	boolEnv("ICSDISSECT_REALTIME", &cfg.Output.Realtime)

	intEnv("ICSDISSECT_WORKER_THREADS", &cfg.Workers.NumThreads)
	intEnv("ICSDISSECT_WORKER_QUEUE_CAPACITY", &cfg.Workers.QueueCapacity)

	boolEnv("ICSDISSECT_DOCSTORE_ENABLED", &cfg.DocStore.Enabled)
	strEnv("ICSDISSECT_DOCSTORE_HOST", &cfg.DocStore.Host)
	intEnv("ICSDISSECT_DOCSTORE_PORT", &cfg.DocStore.Port)

	boolEnv("ICSDISSECT_MEMSTORE_ENABLED", &cfg.MemStore.Enabled)
	strEnv("ICSDISSECT_MEMSTORE_ADDR", &cfg.MemStore.Addr)

	boolEnv("ICSDISSECT_BUS_ENABLED", &cfg.Bus.Enabled)
	strEnv("ICSDISSECT_BUS_URL", &cfg.Bus.URL)
}

func strEnv(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func intEnv(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func boolEnv(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
