package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voxline/frontdesk/pkg/frontdesk"
	"github.com/voxline/frontdesk/pkg/runner"
)

type engineDrainer struct {
	engine *frontdesk.Engine
}

func (d engineDrainer) Drain() error {
	return d.engine.Stop()
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the service configuration file")
	flag.Parse()

	cfg, err := frontdesk.LoadConfig(*configPath)
	if err != nil {
		slog.Error("config_load_failed", "path", *configPath, "error", err.Error())
		os.Exit(1)
	}

	engine, err := frontdesk.NewEngine(frontdesk.EngineOptions{Config: cfg})
	if err != nil {
		slog.Error("engine_init_failed", "error", err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		slog.Error("engine_start_failed", "error", err.Error())
		os.Exit(1)
	}

	lifecycle := runner.NewLifecycleRunner(engineDrainer{engine}, runner.Hooks{}, 15*time.Second)
	errCh := make(chan error, 1)
	go func() { errCh <- lifecycle.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		slog.Info("shutdown_signal", "signal", sig.String())
		if err := lifecycle.Stop(); err != nil {
			slog.Warn("shutdown_incomplete", "error", err.Error())
		}
	case err := <-errCh:
		if err != nil {
			slog.Warn("shutdown_incomplete", "error", err.Error())
		}
	}
}
