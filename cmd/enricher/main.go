package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/solar-enrichment-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/solar-enrichment-service/internal/adapter/kafka"
	"github.com/couchcryptid/solar-enrichment-service/internal/adapter/mapbox"
	"github.com/couchcryptid/solar-enrichment-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/solar-enrichment-service/internal/adapter/rediscache"
	"github.com/couchcryptid/solar-enrichment-service/internal/adapter/thingsboard"
	"github.com/couchcryptid/solar-enrichment-service/internal/config"
	"github.com/couchcryptid/solar-enrichment-service/internal/domain"
	"github.com/couchcryptid/solar-enrichment-service/internal/observability"
	"github.com/couchcryptid/solar-enrichment-service/internal/pipeline"
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
	defer stop()

	var closers []namedCloser

	// Forecast source: memory LRU -> Redis (optional) -> Open-Meteo.
	var source domain.ForecastSource = openmeteo.NewClient(cfg.ForecastBaseURL, cfg.ForecastTimeout, cfg.ForecastMaxRetries, metrics, logger)
	if cfg.RedisURL != "" {
		client, err := rediscache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, continuing without shared forecast cache", "error", err)
		} else {
			cached := rediscache.New(client, source, cfg.ForecastCacheTTL, metrics, logger)
			source = cached
			closers = append(closers, namedCloser{"redis", cached})
			logger.Info("redis forecast cache enabled", "ttl", cfg.ForecastCacheTTL)
		}
	}
	source = openmeteo.NewCachedSource(source, cfg.ForecastCacheSize, cfg.ForecastCacheTTL, nil, metrics)

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var loader pipeline.BatchLoader
	switch cfg.Sink {
	case config.SinkThingsBoard:
		loader = thingsboard.NewClient(cfg.ThingsBoardURL, cfg.ThingsBoardToken, cfg.ThingsBoardTimeout, metrics, logger)
	default:
		writer := kafkaadapter.NewWriter(cfg, metrics, logger)
		loader = writer
		closers = append(closers, namedCloser{"kafka writer", writer})
	}
	logger.Info("telemetry sink selected", "sink", cfg.Sink)

	transformer := pipeline.NewTransformer(source, geocoder, pipeline.TransformerConfig{
		Fallback:      domain.Coordinates{Lat: cfg.FallbackLatitude, Lon: cfg.FallbackLongitude},
		Window:        domain.Window{PastHours: cfg.WindowPastHours, FutureHours: cfg.WindowFutureHours},
		AllowDegraded: cfg.EnrichAllowDegraded,
	}, nil, metrics, logger)

	var extractor pipeline.BatchExtractor
	if cfg.KafkaSourceEnabled {
		reader := kafkaadapter.NewReader(cfg, logger)
		extractor = reader
		closers = append(closers, namedCloser{"kafka reader", reader})
	}

	p := pipeline.New(extractor, transformer, loader, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, metrics, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the Kafka pipeline. Without a source, samples arrive only over HTTP.
	if extractor != nil {
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	} else {
		logger.Info("kafka source disabled, accepting samples over HTTP only")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("close error", "component", c.name, "error", err)
		}
	}

	logger.Info("shutdown complete")
}

type namedCloser struct {
	name string
	io.Closer
}
