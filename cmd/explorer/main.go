package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/eonet-explorer/internal/app"
	"github.com/couchcryptid/eonet-explorer/internal/config"
	"github.com/couchcryptid/eonet-explorer/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = app.Serve(ctx, cfg, logger, metrics)
	stop()
	if err != nil {
		logger.Error("explorer exited with error", "error", err)
		os.Exit(1)
	}
}
