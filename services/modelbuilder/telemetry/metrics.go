// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the session-level instruments of the model builder service.
// Package-specific instruments (imports, edits) live beside their code.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// SessionsCreated counts created sessions by origin (empty, import).
	SessionsCreated metric.Int64Counter

	// SessionsActive tracks sessions currently held by the service.
	SessionsActive metric.Int64UpDownCounter

	// SavesTotal counts save attempts by status (ok, too_large, error).
	SavesTotal metric.Int64Counter

	// SaveSizeMB records the serialized size of saved sessions.
	SaveSizeMB metric.Float64Histogram

	// ExportsTotal counts daily series exports by status.
	ExportsTotal metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.SessionsCreated, err = meter.Int64Counter(
		"modelbuilder_sessions_created_total",
		metric.WithDescription("Total sessions created"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create sessions_created_total: %w", err)
	}

	m.SessionsActive, err = meter.Int64UpDownCounter(
		"modelbuilder_sessions_active",
		metric.WithDescription("Sessions currently open"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create sessions_active: %w", err)
	}

	m.SavesTotal, err = meter.Int64Counter(
		"modelbuilder_saves_total",
		metric.WithDescription("Total session saves"),
		metric.WithUnit("{save}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create saves_total: %w", err)
	}

	m.SaveSizeMB, err = meter.Float64Histogram(
		"modelbuilder_save_size_mb",
		metric.WithDescription("Serialized session size at save time"),
		metric.WithUnit("MBy"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 20, 30, 50),
	)
	if err != nil {
		return nil, fmt.Errorf("create save_size_mb: %w", err)
	}

	m.ExportsTotal, err = meter.Int64Counter(
		"modelbuilder_exports_total",
		metric.WithDescription("Total daily series exports"),
		metric.WithUnit("{export}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create exports_total: %w", err)
	}

	return m, nil
}
