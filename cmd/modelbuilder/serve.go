// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/modelbuilder/pkg/logging"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/config"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/storage"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/telemetry"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/timeseries"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging, cfg.Telemetry.ServiceName)
	if err != nil {
		return err
	}
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry, modelbuilder.ServiceVersion)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	store, err := openStore(cfg.Storage, logger.Slog())
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("store close failed", "error", err)
		}
	}()

	metrics, err := telemetry.NewMetrics(otel.Meter("modelbuilder"))
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	opts := []modelbuilder.Option{
		modelbuilder.WithMetrics(metrics),
		modelbuilder.WithLogger(logger.Slog()),
	}
	if cfg.Influx.Enabled() {
		exporter, err := timeseries.NewInfluxExporter(timeseries.InfluxConfig{
			URL:         cfg.Influx.URL,
			Token:       cfg.Influx.Token,
			Org:         cfg.Influx.Org,
			Bucket:      cfg.Influx.Bucket,
			Measurement: cfg.Influx.Measurement,
		})
		if err != nil {
			return err
		}
		defer exporter.Close()
		opts = append(opts, modelbuilder.WithExporter(exporter))
		logger.Info("daily export enabled", "url", cfg.Influx.URL, "bucket", cfg.Influx.Bucket)
	}
	svc := modelbuilder.NewService(store, cfg.Limits, opts...)

	watcher, err := config.NewWatcher(configPath, func(next config.Config) {
		svc.ApplyConfig(next.Limits)
	}, config.WithWatcherLogger(logger.Slog()))
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		// The config file may not exist yet; serving continues on defaults.
		logger.Warn("config watcher disabled", "path", configPath, "error", err)
	}
	defer watcher.Stop()

	if cfg.Storage.Durable.Backend == "sqlite" && cfg.Storage.Durable.SweepInterval > 0 {
		go sweepLoop(ctx, store, cfg.Storage.Durable.SweepInterval, logger.Slog())
	}

	router := modelbuilder.NewRouter(modelbuilder.NewHandlers(svc), cfg.Telemetry.ServiceName,
		telemetry.NewHTTPMetrics(prometheus.DefaultRegisterer))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting model builder", "port", cfg.Server.Port, "storage", cfg.Storage.Durable.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server exited")
	return nil
}

func newLogger(cfg config.LoggingConfig, service string) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format := logging.FormatAuto
	if cfg.JSON {
		format = logging.FormatJSON
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Dir,
		Service: service,
		Format:  format,
	}), nil
}

// openStore builds the fast tier and the configured durable tier.
func openStore(cfg config.StorageConfig, logger *slog.Logger) (*storage.Store, error) {
	var durable storage.Tier
	switch cfg.Durable.Backend {
	case "badger":
		bcfg := storage.DefaultBadgerConfig(cfg.Durable.Path)
		bcfg.Logger = logger
		tier, err := storage.OpenBadgerTier(bcfg)
		if err != nil {
			return nil, fmt.Errorf("open badger at %s: %w", cfg.Durable.Path, err)
		}
		durable = tier
	case "sqlite":
		tier, err := storage.OpenSQLiteTier(cfg.Durable.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite at %s: %w", cfg.Durable.Path, err)
		}
		durable = tier
	case "none":
	default:
		return nil, fmt.Errorf("%w: storage backend %q", config.ErrInvalidConfig, cfg.Durable.Backend)
	}

	prefix := cfg.KeyPrefix
	if prefix != "" {
		prefix += ":"
	}
	return storage.NewStore(storage.NewMemoryTier(cfg.Fast.Capacity), durable, storage.StoreConfig{
		KeyPrefix:  prefix,
		FastTTL:    cfg.Fast.TTL,
		DurableTTL: cfg.Durable.TTL,
	}, logger), nil
}

func sweepLoop(ctx context.Context, store *storage.Store, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.SweepExpired(ctx)
			if err != nil {
				logger.Warn("sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired sessions removed", "count", n)
			}
		}
	}
}
