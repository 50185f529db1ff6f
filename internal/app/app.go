// Package app wires the explorer service from configuration. Both the
// explorer binary and the eonetctl serve command run through Serve.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/eonet-explorer/internal/adapter/eonet"
	httpadapter "github.com/couchcryptid/eonet-explorer/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/eonet-explorer/internal/adapter/kafka"
	"github.com/couchcryptid/eonet-explorer/internal/adapter/mapbox"
	"github.com/couchcryptid/eonet-explorer/internal/adapter/themestore"
	"github.com/couchcryptid/eonet-explorer/internal/config"
	"github.com/couchcryptid/eonet-explorer/internal/domain"
	"github.com/couchcryptid/eonet-explorer/internal/explorer"
	"github.com/couchcryptid/eonet-explorer/internal/observability"
	"github.com/couchcryptid/eonet-explorer/internal/pipeline"
)

// Catalog returns the EONET client for cfg.
func Catalog(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *eonet.Client {
	return eonet.NewClient(cfg.EONETBaseURL, cfg.EONETTimeout, metrics, logger)
}

// Geocoder returns the cached Mapbox reverse geocoder, or nil when geocoding
// is disabled (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
func Geocoder(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) domain.ReverseGeocoder {
	if !cfg.MapboxEnabled {
		logger.Info("mapbox geocoding disabled")
		return nil
	}
	client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
	logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	return mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
}

// Serve runs the HTTP service until ctx is cancelled or the listener fails,
// then drains connections and the layer-set feed within cfg.ShutdownTimeout.
func Serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	opts := explorer.Options{
		Catalog:      Catalog(cfg, metrics, logger),
		Geocoder:     Geocoder(cfg, metrics, logger),
		Themes:       themestore.NewFileStore(cfg.ThemeFile),
		DefaultLimit: cfg.EventLimit,
		DefaultTheme: cfg.ThemeDefault,
		Logger:       logger,
		Metrics:      metrics,
	}

	var f *feed
	if cfg.KafkaEnabled {
		f = startFeed(cfg, logger, metrics)
		defer f.cancel()
		opts.Publisher = f.pipeline
	}

	x := explorer.New(opts)
	logger.Info("theme applied", "theme", x.LoadTheme())

	sessions := explorer.NewRegistry(x, clockwork.NewRealClock(), metrics, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, x, sessions, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sessions.RunSweeper(gctx, max(cfg.SessionIdleTimeout/4, time.Second), cfg.SessionIdleTimeout)
		return nil
	})
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		// Sessions are quiet now, so the feed can drain what they left behind.
		if f != nil {
			f.drain(shutdownCtx, logger)
		}
		return nil
	})

	err := g.Wait()
	logger.Info("shutdown complete")
	return err
}

// feed is the running layer-set pipeline and the Kafka writer behind it.
type feed struct {
	writer   *kafkaadapter.Writer
	pipeline *pipeline.Pipeline
	cancel   context.CancelFunc
	done     chan struct{}
}

// startFeed runs the pipeline on its own context so that cancelling the
// service context does not abandon queued layer sets.
func startFeed(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *feed {
	writer := kafkaadapter.NewWriter(cfg, logger)
	ctx, cancel := context.WithCancel(context.Background())
	f := &feed{
		writer: writer,
		pipeline: pipeline.New(writer, logger, metrics, pipeline.Options{
			BatchSize: cfg.FeedBatchSize,
			QueueSize: cfg.FeedQueueSize,
		}),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(f.done)
		if err := f.pipeline.Run(ctx); err != nil {
			logger.Error("feed pipeline error", "error", err)
		}
	}()
	logger.Info("layer-set feed enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	return f
}

func (f *feed) drain(ctx context.Context, logger *slog.Logger) {
	f.pipeline.Close()
	select {
	case <-f.done:
	case <-ctx.Done():
		logger.Warn("feed drain timed out")
		f.cancel()
		<-f.done
	}
	if err := f.writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
}
