// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package modelbuilder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/timeseries"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/web"
)

// TotalSeriesName names the aggregate of every usage pattern.
const TotalSeriesName = "total"

// patternSeries are the hourly start series carried by each pattern class.
var patternSeries = []struct{ class, attr string }{
	{domain.ClassUsagePattern, domain.AttrHourlyStarts},
	{domain.ClassEdgeUsagePattern, domain.AttrHourlyEdgeStarts},
}

// DailyTimeseries aggregates the hourly journey starts of every usage
// pattern to days, plus their total when all patterns share a unit.
func (s *Service) DailyTimeseries(ctx context.Context, sessionID string) (*DailyResponse, error) {
	resp := &DailyResponse{Series: []NamedDailySeries{}}
	err := s.read(ctx, sessionID, func(m *web.Model) error {
		series, err := s.dailySeries(m)
		resp.Series = append(resp.Series, series...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) dailySeries(m *web.Model) ([]NamedDailySeries, error) {
	depth := s.Limits().RoundingDepth
	logger := s.logger

	var out []NamedDailySeries
	var all []timeseries.Series
	for _, ps := range patternSeries {
		for _, n := range m.Graph().NodesOfClass(ps.class) {
			hourly, ok := n.Series(ps.attr)
			if !ok || hourly.Hours() == 0 {
				continue
			}
			daily, err := timeseries.AggregateDaily([]timeseries.Series{hourly}, depth, nil, logger)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", n.ID(), err)
			}
			out = append(out, NamedDailySeries{ObjectID: n.ID(), Name: n.Name(), Series: daily})
			all = append(all, hourly)
		}
	}
	if len(all) < 2 {
		return out, nil
	}

	total, err := timeseries.AggregateDaily(all, depth, nil, logger)
	switch {
	case errors.Is(err, timeseries.ErrMixedUnits):
		logger.Warn("skipping daily total", slog.String("error", err.Error()))
	case err != nil:
		return nil, fmt.Errorf("total: %w", err)
	default:
		out = append(out, NamedDailySeries{Name: TotalSeriesName, Series: total})
	}
	return out, nil
}

// ExportDaily writes the daily series of a session to the configured
// exporter. Series are named "<session>/<object>", the total
// "<session>/total".
//
// Outputs:
//
//	int   - Number of series exported.
//	error - ErrExportDisabled without exporter, or the first export error.
func (s *Service) ExportDaily(ctx context.Context, sessionID string) (n int, err error) {
	if s.exporter == nil {
		return 0, ErrExportDisabled
	}
	defer func() {
		if s.metrics == nil {
			return
		}
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.ExportsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	}()

	resp, err := s.DailyTimeseries(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	for _, named := range resp.Series {
		name := sessionID + "/" + named.ObjectID
		if named.ObjectID == "" {
			name = sessionID + "/" + named.Name
		}
		if err := s.exporter.Export(ctx, name, named.Series); err != nil {
			return n, err
		}
		n++
	}
	s.logger.Info("daily series exported", slog.String("session_id", sessionID), slog.Int("series", n))
	return n, nil
}
