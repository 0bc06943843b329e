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
	"strings"
)

// Aggregation is how hours of a day combine into one daily value.
type Aggregation int

const (
	// AggregateSum adds the hours of a day.
	AggregateSum Aggregation = iota

	// AggregateMean averages the hours of a day.
	AggregateMean
)

// String returns "sum" or "mean".
func (a Aggregation) String() string {
	if a == AggregateMean {
		return "mean"
	}
	return "sum"
}

// UnitClassifier maps a unit to its daily aggregation.
type UnitClassifier interface {
	Classify(unit string) (Aggregation, error)
}

// UnitTable is a UnitClassifier backed by a lookup table. Keys are
// normalized: lower case, no spaces.
type UnitTable map[string]Aggregation

// Classify implements UnitClassifier.
func (t UnitTable) Classify(unit string) (Aggregation, error) {
	if a, ok := t[normalizeUnit(unit)]; ok {
		return a, nil
	}
	return AggregateSum, fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
}

func normalizeUnit(unit string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(unit), " ", ""))
}

// DefaultClassifier knows the units produced by the model builder.
var DefaultClassifier UnitClassifier = UnitTable{
	// cumulative
	"":            AggregateSum,
	"occurrence":  AggregateSum,
	"occurrences": AggregateSum,
	"event":       AggregateSum,
	"events":      AggregateSum,
	"request":     AggregateSum,
	"requests":    AggregateSum,
	"wh":          AggregateSum,
	"kwh":         AggregateSum,
	"mwh":         AggregateSum,
	"j":           AggregateSum,
	"kj":          AggregateSum,
	"g":           AggregateSum,
	"kg":          AggregateSum,
	"t":           AggregateSum,
	"tonne":       AggregateSum,
	"gco2e":       AggregateSum,
	"kgco2e":      AggregateSum,
	"b":           AggregateSum,
	"kb":          AggregateSum,
	"mb":          AggregateSum,
	"gb":          AggregateSum,
	"tb":          AggregateSum,
	// instantaneous
	"w":                    AggregateMean,
	"kw":                   AggregateMean,
	"cpu_core":             AggregateMean,
	"gb_ram":               AggregateMean,
	"mb_ram":               AggregateMean,
	"gpu":                  AggregateMean,
	"instance":             AggregateMean,
	"instances":            AggregateMean,
	"concurrent":           AggregateMean,
	"concurrent_instances": AggregateMean,
	"user":                 AggregateMean,
	"users":                AggregateMean,
}
