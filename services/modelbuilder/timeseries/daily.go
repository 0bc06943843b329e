// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package timeseries

import (
	"fmt"
	"log/slog"
	"math"
	"time"
)

// ToRoundedDailyValues folds an hourly grid into days.
//
// Description:
//
//	Each chunk of 24 hours becomes one value: the sum of its hours for
//	cumulative units, the mean for instantaneous ones. A partial last
//	chunk is aggregated over the hours it has. Values are rounded to
//	depth decimal places.
//
// Inputs:
//
//	hourly     - Hourly values starting at midnight.
//	unit       - Unit of the values.
//	depth      - Decimal places to keep. Negative values keep full precision.
//	classifier - Unit classifier. Nil uses DefaultClassifier.
//
// Outputs:
//
//	[]float64 - ceil(len(hourly)/24) daily values.
//	error     - ErrUnknownUnit.
func ToRoundedDailyValues(hourly []float64, unit string, depth int, classifier UnitClassifier) ([]float64, error) {
	if classifier == nil {
		classifier = DefaultClassifier
	}
	agg, err := classifier.Classify(unit)
	if err != nil {
		return nil, err
	}
	days := (len(hourly) + 23) / 24
	out := make([]float64, 0, days)
	for d := 0; d < days; d++ {
		end := min((d+1)*24, len(hourly))
		chunk := hourly[d*24 : end]
		var sum float64
		for _, v := range chunk {
			sum += v
		}
		if agg == AggregateMean {
			sum /= float64(len(chunk))
		}
		out = append(out, round(sum, depth))
	}
	return out, nil
}

func round(v float64, depth int) float64 {
	if depth < 0 {
		return v
	}
	p := math.Pow(10, float64(depth))
	return math.Round(v*p) / p
}

// DailySeries is the daily aggregation of one or more hourly series.
type DailySeries struct {
	Start       time.Time `json:"start"`
	Unit        string    `json:"unit"`
	Aggregation string    `json:"aggregation"`
	Values      []float64 `json:"values"`
}

// Dates returns the day each value belongs to.
func (d DailySeries) Dates() []time.Time {
	out := make([]time.Time, len(d.Values))
	for i := range d.Values {
		out[i] = d.Start.AddDate(0, 0, i)
	}
	return out
}

// AggregateDaily sums series on a common grid and folds the result into days.
//
// Inputs:
//
//	series     - Series sharing one unit.
//	depth      - Rounding depth.
//	classifier - Unit classifier. Nil uses DefaultClassifier.
//	logger     - Destination for alignment warnings.
//
// Outputs:
//
//	DailySeries - Daily values starting at the global midnight.
//	error       - ErrNoSeries, ErrMixedUnits, ErrUnknownUnit, or a reindex error.
func AggregateDaily(series []Series, depth int, classifier UnitClassifier, logger *slog.Logger) (DailySeries, error) {
	if classifier == nil {
		classifier = DefaultClassifier
	}
	start, hours, err := DetermineGlobalTimeBounds(series, logger)
	if err != nil {
		return DailySeries{}, err
	}
	unit := series[0].Unit
	total := make([]float64, hours)
	for i, s := range series {
		if normalizeUnit(s.Unit) != normalizeUnit(unit) {
			return DailySeries{}, fmt.Errorf("%w: %q and %q", ErrMixedUnits, unit, s.Unit)
		}
		grid, err := Reindex(s, start, hours)
		if err != nil {
			return DailySeries{}, fmt.Errorf("series %d: %w", i, err)
		}
		for h, v := range grid {
			total[h] += v
		}
	}
	agg, err := classifier.Classify(unit)
	if err != nil {
		return DailySeries{}, err
	}
	values, err := ToRoundedDailyValues(total, unit, depth, classifier)
	if err != nil {
		return DailySeries{}, err
	}
	return DailySeries{Start: start, Unit: unit, Aggregation: agg.String(), Values: values}, nil
}
