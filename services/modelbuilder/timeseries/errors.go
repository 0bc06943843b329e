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

import "errors"

var (
	// ErrNoSeries indicates an empty input to DetermineGlobalTimeBounds.
	ErrNoSeries = errors.New("no series given")

	// ErrNotUTC indicates a series start carrying a non-zero UTC offset.
	ErrNotUTC = errors.New("series start must be UTC")

	// ErrFractionalOffset indicates a series that does not start a whole
	// number of hours after the target start.
	ErrFractionalOffset = errors.New("series start is not aligned to the hour")

	// ErrOutOfBounds indicates a series that does not fit the target window.
	ErrOutOfBounds = errors.New("series does not fit the target window")

	// ErrUnknownUnit indicates a unit the classifier cannot place.
	ErrUnknownUnit = errors.New("unknown unit")

	// ErrMixedUnits indicates series with different units summed together.
	ErrMixedUnits = errors.New("series have different units")
)
