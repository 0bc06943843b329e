// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package edit

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("modelbuilder.edit")
	meter  = otel.Meter("modelbuilder.edit")
)

var (
	editsTotal       metric.Int64Counter
	cascadeDeletes   metric.Int64Counter
	mirrorsRefreshed metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		editsTotal, err = meter.Int64Counter(
			"modelbuilder_edits_total",
			metric.WithDescription("Total number of object edits"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cascadeDeletes, err = meter.Int64Counter(
			"modelbuilder_cascade_deletes_total",
			metric.WithDescription("Objects deleted because an edit orphaned them"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		mirrorsRefreshed, err = meter.Int64Counter(
			"modelbuilder_mirror_cards_refreshed_total",
			metric.WithDescription("Mirror cards re-rendered after edits"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordEdit(ctx context.Context, class string, ok bool) {
	if err := initMetrics(); err != nil {
		return
	}
	editsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("class", class),
		attribute.Bool("success", ok),
	))
}

func recordCascade(ctx context.Context, deleted, mirrors int) {
	if err := initMetrics(); err != nil {
		return
	}
	if deleted > 0 {
		cascadeDeletes.Add(ctx, int64(deleted))
	}
	mirrorsRefreshed.Add(ctx, int64(mirrors))
}

func startEditSpan(ctx context.Context, objectID, class string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "edit.Edit",
		trace.WithAttributes(
			attribute.String("edit.object_id", objectID),
			attribute.String("edit.class", class),
		),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
