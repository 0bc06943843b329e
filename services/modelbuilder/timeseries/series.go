// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package timeseries aggregates hourly series into daily values.
//
// Series from different sources rarely share a start. They are first
// placed on a common hourly grid starting at midnight UTC
// (DetermineGlobalTimeBounds and Reindex), then folded into days
// (ToRoundedDailyValues). Whether a day is a sum or a mean of its hours
// depends on the unit: energy, mass and event counts accumulate, while
// instantaneous quantities such as concurrent instances are averaged.
package timeseries

import (
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Series is an hourly series starting at Start.
type Series struct {
	Start  time.Time
	Values []float64
	Unit   string
}

// Hours returns the number of hourly values.
func (s Series) Hours() int { return len(s.Values) }

// End returns the instant right after the last value.
func (s Series) End() time.Time {
	return s.Start.Add(time.Duration(len(s.Values)) * time.Hour)
}

// checkUTC requires the UTC location itself: a zone that happens to have
// a zero offset on that date is still rejected.
func checkUTC(t time.Time) error {
	if t.Location() != time.UTC {
		return fmt.Errorf("%w: %s", ErrNotUTC, t.Format(time.RFC3339))
	}
	return nil
}

// DetermineGlobalTimeBounds computes the common grid of a set of series.
//
// Description:
//
//	The grid starts at midnight UTC of the earliest series start and
//	spans enough whole hours to cover the latest series end. Starts that
//	are not at midnight are accepted and logged at warn level since they
//	shift the first day's aggregation.
//
// Inputs:
//
//	series - At least one series. Starts must be UTC.
//	logger - Destination for alignment warnings. Nil uses slog.Default().
//
// Outputs:
//
//	time.Time - Global start, a UTC midnight.
//	int       - Total hours of the grid.
//	error     - ErrNoSeries or ErrNotUTC.
func DetermineGlobalTimeBounds(series []Series, logger *slog.Logger) (time.Time, int, error) {
	if len(series) == 0 {
		return time.Time{}, 0, ErrNoSeries
	}
	if logger == nil {
		logger = slog.Default()
	}
	var first, last time.Time
	for i, s := range series {
		if err := checkUTC(s.Start); err != nil {
			return time.Time{}, 0, err
		}
		start := s.Start.UTC()
		if !isMidnight(start) {
			logger.Warn("series does not start at midnight",
				slog.Int("series", i),
				slog.Time("start", start))
		}
		end := s.End().UTC()
		if i == 0 || start.Before(first) {
			first = start
		}
		if i == 0 || end.After(last) {
			last = end
		}
	}
	global := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	hours := int(math.Ceil(last.Sub(global).Hours()))
	return global, hours, nil
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// Reindex places a series on a grid of hours starting at start.
//
// Description:
//
//	Hours not covered by the series are zero. The series must begin a
//	whole number of hours after start and end inside the grid.
//
// Outputs:
//
//	[]float64 - Grid values, len == hours.
//	error     - ErrNotUTC, ErrFractionalOffset, or ErrOutOfBounds.
func Reindex(s Series, start time.Time, hours int) ([]float64, error) {
	if err := checkUTC(s.Start); err != nil {
		return nil, err
	}
	offset := s.Start.Sub(start)
	if offset%time.Hour != 0 {
		return nil, fmt.Errorf("%w: offset %s", ErrFractionalOffset, offset)
	}
	off := int(offset / time.Hour)
	if off < 0 || off+len(s.Values) > hours {
		return nil, fmt.Errorf("%w: offset %d hours, %d values, window %d hours",
			ErrOutOfBounds, off, len(s.Values), hours)
	}
	out := make([]float64, hours)
	copy(out[off:], s.Values)
	return out, nil
}
