// Package config loads the dashboard configuration from a YAML file plus a
// local .env (environment wins over file values for the backend endpoints,
// mirroring how the deployment injects them).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the resolved application configuration.
type Config struct {
	Backend BackendConfig
	Chart   ChartConfig
	Stream  StreamConfig
	Web     WebConfig
	Log     LogConfig
}

// BackendConfig points at the external data service.
type BackendConfig struct {
	BaseURL   string // REST base, e.g. http://localhost:5000
	StreamURL string // push stream, e.g. ws://localhost:5000/api/live-stream
}

// ChartConfig tunes the windowing core.
type ChartConfig struct {
	WindowCapacity  int           // W, default 150
	RenderBudget    int           // max points handed to a renderer, default 100
	LabelCount      int           // L, default 6
	LabelThreshold  time.Duration // bucket claim distance, default 30m
	Epsilon         float64       // redraw gate, default 0.01
	DefaultRange    int           // initial look-back hours, default 24
	RefreshInterval time.Duration // label refresh cadence, default 60s
}

// StreamConfig tunes the reconnect policy.
type StreamConfig struct {
	BackoffBase  time.Duration // default 1s
	BackoffCap   time.Duration // default 30s
	MaxRetries   int           // default 5
	PollInterval time.Duration // default 30s
}

// WebConfig configures the HTTP surface.
type WebConfig struct {
	Addr string // default :8080
}

// LogConfig mirrors pkg/logger.Config.
type LogConfig struct {
	Level      string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// configFile is the YAML shape on disk.
type configFile struct {
	Backend struct {
		BaseURL   string `yaml:"base_url"`
		StreamURL string `yaml:"stream_url"`
	} `yaml:"backend"`
	Chart struct {
		WindowCapacity  int     `yaml:"window_capacity"`
		RenderBudget    int     `yaml:"render_budget"`
		LabelCount      int     `yaml:"label_count"`
		LabelThresholdS int     `yaml:"label_threshold_seconds"`
		Epsilon         float64 `yaml:"epsilon"`
		DefaultRange    int     `yaml:"default_range_hours"`
		RefreshSeconds  int     `yaml:"refresh_seconds"`
	} `yaml:"chart"`
	Stream struct {
		BackoffBaseMS int `yaml:"backoff_base_ms"`
		BackoffCapS   int `yaml:"backoff_cap_seconds"`
		MaxRetries    int `yaml:"max_retries"`
		PollIntervalS int `yaml:"poll_interval_seconds"`
	} `yaml:"stream"`
	Web struct {
		Addr string `yaml:"addr"`
	} `yaml:"web"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:   "http://localhost:5000",
			StreamURL: "ws://localhost:5000/api/live-stream",
		},
		Chart: ChartConfig{
			WindowCapacity:  150,
			RenderBudget:    100,
			LabelCount:      6,
			LabelThreshold:  30 * time.Minute,
			Epsilon:         0.01,
			DefaultRange:    24,
			RefreshInterval: time.Minute,
		},
		Stream: StreamConfig{
			BackoffBase:  time.Second,
			BackoffCap:   30 * time.Second,
			MaxRetries:   5,
			PollInterval: 30 * time.Second,
		},
		Web: WebConfig{Addr: ":8080"},
		Log: LogConfig{Level: "info", MaxSize: 100, MaxBackups: 3, MaxAge: 7},
	}
}

// Load reads path (YAML, optional) after loading a local .env if present.
// Missing file yields defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to defaults + env
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			var f configFile
			if err := yaml.Unmarshal(data, &f); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
			applyFile(cfg, &f)
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, f *configFile) {
	if f.Backend.BaseURL != "" {
		cfg.Backend.BaseURL = f.Backend.BaseURL
	}
	if f.Backend.StreamURL != "" {
		cfg.Backend.StreamURL = f.Backend.StreamURL
	}
	if f.Chart.WindowCapacity > 0 {
		cfg.Chart.WindowCapacity = f.Chart.WindowCapacity
	}
	if f.Chart.RenderBudget > 0 {
		cfg.Chart.RenderBudget = f.Chart.RenderBudget
	}
	if f.Chart.LabelCount > 0 {
		cfg.Chart.LabelCount = f.Chart.LabelCount
	}
	if f.Chart.LabelThresholdS > 0 {
		cfg.Chart.LabelThreshold = time.Duration(f.Chart.LabelThresholdS) * time.Second
	}
	if f.Chart.Epsilon > 0 {
		cfg.Chart.Epsilon = f.Chart.Epsilon
	}
	if f.Chart.DefaultRange > 0 {
		cfg.Chart.DefaultRange = f.Chart.DefaultRange
	}
	if f.Chart.RefreshSeconds > 0 {
		cfg.Chart.RefreshInterval = time.Duration(f.Chart.RefreshSeconds) * time.Second
	}
	if f.Stream.BackoffBaseMS > 0 {
		cfg.Stream.BackoffBase = time.Duration(f.Stream.BackoffBaseMS) * time.Millisecond
	}
	if f.Stream.BackoffCapS > 0 {
		cfg.Stream.BackoffCap = time.Duration(f.Stream.BackoffCapS) * time.Second
	}
	if f.Stream.MaxRetries > 0 {
		cfg.Stream.MaxRetries = f.Stream.MaxRetries
	}
	if f.Stream.PollIntervalS > 0 {
		cfg.Stream.PollInterval = time.Duration(f.Stream.PollIntervalS) * time.Second
	}
	if f.Web.Addr != "" {
		cfg.Web.Addr = f.Web.Addr
	}
	if f.Log.Level != "" {
		cfg.Log.Level = f.Log.Level
	}
	if f.Log.File != "" {
		cfg.Log.File = f.Log.File
	}
	if f.Log.MaxSize > 0 {
		cfg.Log.MaxSize = f.Log.MaxSize
	}
	if f.Log.MaxBackups > 0 {
		cfg.Log.MaxBackups = f.Log.MaxBackups
	}
	if f.Log.MaxAge > 0 {
		cfg.Log.MaxAge = f.Log.MaxAge
	}
	cfg.Log.Compress = f.Log.Compress
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("STREAMBIT_BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("STREAMBIT_STREAM_URL"); v != "" {
		cfg.Backend.StreamURL = v
	}
	if v := os.Getenv("STREAMBIT_WEB_ADDR"); v != "" {
		cfg.Web.Addr = v
	}
	if v := os.Getenv("STREAMBIT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url must be set")
	}
	if c.Backend.StreamURL == "" {
		return fmt.Errorf("backend.stream_url must be set")
	}
	if c.Chart.RenderBudget > c.Chart.WindowCapacity {
		return fmt.Errorf("chart.render_budget (%d) exceeds window capacity (%d)",
			c.Chart.RenderBudget, c.Chart.WindowCapacity)
	}
	switch c.Chart.DefaultRange {
	case 6, 24, 72:
	default:
		return fmt.Errorf("chart.default_range_hours must be 6, 24 or 72, got %d", c.Chart.DefaultRange)
	}
	return nil
}
