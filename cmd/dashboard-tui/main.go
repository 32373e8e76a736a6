// Command dashboard-tui runs the same windowing core as cmd/dashboard but
// renders into the terminal instead of serving HTTP.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/goth-coder/stream-bit/internal/chart"
	"github.com/goth-coder/stream-bit/internal/domain"
	"github.com/goth-coder/stream-bit/internal/history"
	"github.com/goth-coder/stream-bit/internal/render"
	"github.com/goth-coder/stream-bit/internal/stream"
	"github.com/goth-coder/stream-bit/pkg/config"
	"github.com/goth-coder/stream-bit/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// The terminal owns stdout, so logs go to file only.
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = "logs/dashboard-tui.log"
	}
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: logFile,
		FileOnly:   true,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	initialRange, err := domain.ParseTimeRange(cfg.Chart.DefaultRange)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	hist := history.NewClient(cfg.Backend.BaseURL)

	var orch *chart.Orchestrator
	tui := render.NewTUI("stream-bit", rangeFunc(func(hours int) error {
		return orch.SetRange(hours)
	}))

	client := stream.NewClient(stream.Config{
		URL:          cfg.Backend.StreamURL,
		BackoffBase:  cfg.Stream.BackoffBase,
		BackoffCap:   cfg.Stream.BackoffCap,
		MaxRetries:   cfg.Stream.MaxRetries,
		PollInterval: cfg.Stream.PollInterval,
	}, hist, stream.Callbacks{
		OnObservation: func(o domain.Observation) { orch.OnObservation(o) },
		OnStateChange: func(s domain.ConnectionState) { orch.OnStreamState(s) },
		OnTerminal: func(reason string) {
			logger.Infof("backend ended the stream: %s", reason)
		},
	})

	orch = chart.NewOrchestrator(chart.OrchestratorConfig{
		WindowCapacity:  cfg.Chart.WindowCapacity,
		RenderBudget:    cfg.Chart.RenderBudget,
		LabelCount:      cfg.Chart.LabelCount,
		LabelThreshold:  cfg.Chart.LabelThreshold,
		Epsilon:         cfg.Chart.Epsilon,
		InitialRange:    initialRange,
		RefreshInterval: cfg.Chart.RefreshInterval,
	}, hist, tui, tui, client)

	orch.Start()
	if err := client.Open(""); err != nil {
		fmt.Fprintf(os.Stderr, "stream open: %v\n", err)
		os.Exit(1)
	}

	if _, err := tui.Program().Run(); err != nil {
		logger.Errorf("tui: %v", err)
	}

	orch.Teardown()
	logger.Infof("dashboard-tui stopped")
}

// rangeFunc adapts a closure to render.RangeSwitcher.
type rangeFunc func(hours int) error

func (f rangeFunc) SetRange(hours int) error { return f(hours) }
