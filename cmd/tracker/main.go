package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/visit-tracker/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/visit-tracker/internal/adapter/kafka"
	"github.com/couchcryptid/visit-tracker/internal/adapter/nominatim"
	"github.com/couchcryptid/visit-tracker/internal/adapter/redisstore"
	"github.com/couchcryptid/visit-tracker/internal/config"
	"github.com/couchcryptid/visit-tracker/internal/geocode"
	"github.com/couchcryptid/visit-tracker/internal/observability"
	"github.com/couchcryptid/visit-tracker/internal/sensor"
	"github.com/couchcryptid/visit-tracker/internal/tracker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	store, err := redisstore.NewStore(cfg, logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	// Geocoding is feature-flagged: without it visits persist unresolved.
	var resolver tracker.PlaceResolver
	if cfg.GeocodeEnabled {
		client := nominatim.NewClient(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.GeocodeTimeout, logger)
		resolver = geocode.NewResolver(client, cfg.GeocodeMinInterval, logger, metrics)
		logger.Info("geocoding enabled", "provider", cfg.NominatimURL, "min_interval", cfg.GeocodeMinInterval)
	} else {
		logger.Info("geocoding disabled")
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	control := kafkaadapter.NewController(cfg, logger)

	controller := tracker.NewModeController(control, store, cfg.ContinuousAutoOffHours, clockwork.NewRealClock(), logger, metrics)
	visits := tracker.NewVisitTracker(store, resolver, writer, controller, cfg.FixAccuracyMaxMeters, logger, metrics)

	restoreCtx, restoreCancel := context.WithTimeout(context.Background(), 5*time.Second)
	controller.Restore(restoreCtx)
	restoreCancel()

	feed := sensor.New(reader, visits, controller, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, feed, visits, controller, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start sensor feed.
	go func() {
		if err := feed.Run(ctx); err != nil {
			logger.Error("sensor feed error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if err := control.Close(); err != nil {
		logger.Error("kafka control writer close error", "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	logger.Info("shutdown complete")
}
