// Command dashboard runs the price-stream dashboard: it keeps a bounded
// window of live prices fed by the backend's push stream, decimates and
// labels it, and serves the chart over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goth-coder/stream-bit/internal/chart"
	"github.com/goth-coder/stream-bit/internal/domain"
	"github.com/goth-coder/stream-bit/internal/history"
	"github.com/goth-coder/stream-bit/internal/render"
	"github.com/goth-coder/stream-bit/internal/stream"
	"github.com/goth-coder/stream-bit/internal/web"
	"github.com/goth-coder/stream-bit/pkg/config"
	"github.com/goth-coder/stream-bit/pkg/logger"
	"github.com/goth-coder/stream-bit/pkg/shutdown"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	logger.Infof("stream-bit dashboard starting, backend=%s", cfg.Backend.BaseURL)

	hist := history.NewClient(cfg.Backend.BaseURL)
	page := render.NewLineChart("BTC/BRL", "live price stream")

	initialRange, err := domain.ParseTimeRange(cfg.Chart.DefaultRange)
	if err != nil {
		logger.Errorf("config: %v", err)
		os.Exit(1)
	}

	// The callbacks close over orch and srv, which are wired right after;
	// nothing fires before Open.
	var orch *chart.Orchestrator
	var srv *web.Server

	client := stream.NewClient(stream.Config{
		URL:          cfg.Backend.StreamURL,
		BackoffBase:  cfg.Stream.BackoffBase,
		BackoffCap:   cfg.Stream.BackoffCap,
		MaxRetries:   cfg.Stream.MaxRetries,
		PollInterval: cfg.Stream.PollInterval,
	}, hist, stream.Callbacks{
		OnObservation: func(o domain.Observation) { orch.OnObservation(o) },
		OnStateChange: func(s domain.ConnectionState) { srv.StreamState(s) },
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
	}, hist, page, nil, client)

	srv = web.NewServer(orch, page, client.DroppedFrames)

	orch.Start()
	if err := client.Open(""); err != nil {
		logger.Errorf("stream open: %v", err)
		os.Exit(1)
	}

	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(ctx context.Context) { _ = srv.Shutdown(ctx) })
	mgr.OnShutdown(func(context.Context) { orch.Teardown() })

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(cfg.Web.Addr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Infof("received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			logger.Errorf("http server: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mgr.Shutdown(ctx)
}
