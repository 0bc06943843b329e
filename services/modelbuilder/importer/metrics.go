// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package importer

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("modelbuilder.importer")
	meter  = otel.Meter("modelbuilder.importer")
)

var (
	importDuration metric.Float64Histogram
	importSize     metric.Float64Histogram
	importRejected metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		importDuration, err = meter.Float64Histogram(
			"modelbuilder_import_duration_seconds",
			metric.WithDescription("Duration of graph imports"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		importSize, err = meter.Float64Histogram(
			"modelbuilder_import_payload_megabytes",
			metric.WithDescription("Serialized size of imported graphs"),
			metric.WithUnit("MBy"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		importRejected, err = meter.Int64Counter(
			"modelbuilder_import_rejected_total",
			metric.WithDescription("Imports rejected by the payload ceiling"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordImport(ctx context.Context, d time.Duration, sizeMB float64, ok bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("success", ok))
	importDuration.Record(ctx, d.Seconds(), attrs)
	if ok {
		importSize.Record(ctx, sizeMB)
	}
}

func recordRejected(ctx context.Context, phase Phase) {
	if err := initMetrics(); err != nil {
		return
	}
	importRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", string(phase))))
}

func startImportSpan(ctx context.Context, sizeBytes int, limitMB float64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "importer.Import",
		trace.WithAttributes(
			attribute.Int("import.input_bytes", sizeBytes),
			attribute.Float64("import.limit_mb", limitMB),
		),
	)
}
