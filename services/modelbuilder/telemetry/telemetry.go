// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry initializes OpenTelemetry tracing and metrics for the
// model builder and exposes Prometheus collectors for the HTTP surface.
//
// After Init, otel.Tracer() and otel.Meter() are backed by the configured
// exporters. Packages that record metrics obtain their instruments lazily so
// they work with or without Init.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/config"
)

var (
	// ErrNilContext is returned by Init when ctx is nil.
	ErrNilContext = errors.New("context must not be nil")

	// ErrUnknownExporter is returned for an unsupported exporter name.
	ErrUnknownExporter = errors.New("unknown exporter")
)

// ExporterNone disables a signal.
const ExporterNone = "none"

// spanExporter builds a trace exporter. release frees what the exporter
// does not own itself, such as a dialed connection, and may be nil.
type spanExporter func(ctx context.Context, cfg config.TelemetryConfig) (exp trace.SpanExporter, release func() error, err error)

var spanExporters = map[string]spanExporter{
	"otlp": func(ctx context.Context, cfg config.TelemetryConfig) (trace.SpanExporter, func() error, error) {
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithTimeout(10 * time.Second),
		}
		var release func() error
		if cfg.OTLPInsecure {
			conn, err := grpc.NewClient(cfg.OTLPEndpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return nil, nil, fmt.Errorf("dial %s: %w", cfg.OTLPEndpoint, err)
			}
			release = conn.Close
			opts = append(opts, otlptracegrpc.WithGRPCConn(conn))
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil && release != nil {
			_ = release()
		}
		return exp, release, err
	},
	"stdout": func(context.Context, config.TelemetryConfig) (trace.SpanExporter, func() error, error) {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		return exp, nil, err
	},
}

// metricReaders build the reader behind the meter provider. The
// prometheus reader also publishes MetricsHandler.
var metricReaders = map[string]func() (metric.Reader, error){
	"prometheus": func() (metric.Reader, error) {
		exp, err := promexporter.New()
		if err != nil {
			return nil, err
		}
		setMetricsHandler(promhttp.Handler())
		return exp, nil
	},
	"stdout": func() (metric.Reader, error) {
		exp, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		return metric.NewPeriodicReader(exp), nil
	},
}

// Init installs the global tracer and meter providers described by cfg.
//
// Description:
//
//	An exporter set to "none" or left empty keeps the no-op global
//	provider for that signal. The W3C trace context propagator is
//	installed along with tracing.
//
// Inputs:
//
//	ctx     - Context for exporter connections.
//	cfg     - The telemetry section of the service config.
//	version - Reported as service.version.
//
// Outputs:
//
//	shutdown - Flushes and stops the providers. Call it on exit.
//	error    - ErrNilContext, ErrUnknownExporter, or an exporter failure.
func Init(ctx context.Context, cfg config.TelemetryConfig, version string) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	var stops []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, stop := range stops {
			errs = append(errs, stop(ctx))
		}
		return errors.Join(errs...)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", version),
		attribute.String("deployment.environment", cfg.Environment),
	)

	if enabled(cfg.TraceExporter) {
		build, ok := spanExporters[cfg.TraceExporter]
		if !ok {
			return nil, fmt.Errorf("%w: traces %q", ErrUnknownExporter, cfg.TraceExporter)
		}
		exp, release, err := build(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("trace exporter %s: %w", cfg.TraceExporter, err)
		}
		tp := trace.NewTracerProvider(trace.WithBatcher(exp), trace.WithResource(res))
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{}))
		stops = append(stops, tp.Shutdown)
		if release != nil {
			stops = append(stops, func(context.Context) error { return release() })
		}
	}

	if enabled(cfg.MetricExporter) {
		build, ok := metricReaders[cfg.MetricExporter]
		if !ok {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("%w: metrics %q", ErrUnknownExporter, cfg.MetricExporter)
		}
		reader, err := build()
		if err != nil {
			_ = shutdown(ctx)
			return nil, fmt.Errorf("metric exporter %s: %w", cfg.MetricExporter, err)
		}
		mp := metric.NewMeterProvider(metric.WithResource(res), metric.WithReader(reader))
		otel.SetMeterProvider(mp)
		stops = append(stops, mp.Shutdown)
	}

	return shutdown, nil
}

func enabled(exporter string) bool {
	return exporter != "" && exporter != ExporterNone
}

var (
	metricsHandlerMu sync.RWMutex
	metricsHandler   http.Handler
)

func setMetricsHandler(h http.Handler) {
	metricsHandlerMu.Lock()
	metricsHandler = h
	metricsHandlerMu.Unlock()
}

// MetricsHandler returns the /metrics handler, or nil unless the
// prometheus exporter is active.
func MetricsHandler() http.Handler {
	metricsHandlerMu.RLock()
	defer metricsHandlerMu.RUnlock()
	return metricsHandler
}
