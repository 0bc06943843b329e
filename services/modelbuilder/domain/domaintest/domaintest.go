// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package domaintest builds small model graphs for tests.
package domaintest

import (
	"testing"
	"time"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/timeseries"
)

// NewGraph returns an empty graph over the standard schema.
func NewGraph(t testing.TB, opts ...domain.Option) *domain.Graph {
	t.Helper()
	return domain.NewGraph(domain.StandardSchema(), opts...)
}

// Add creates a node and applies attrs, failing the test on error.
func Add(t testing.TB, g *domain.Graph, class, id string, attrs domain.ParsedAttributes) *domain.Node {
	t.Helper()
	n, err := g.NewNode(class, id)
	if err != nil {
		t.Fatalf("add %s %s: %v", class, id, err)
	}
	if attrs == nil {
		attrs = domain.ParsedAttributes{}
	}
	if _, ok := attrs["name"]; !ok {
		attrs["name"] = id
	}
	if err := domain.ApplyAttributes(g, n, attrs); err != nil {
		t.Fatalf("apply %s %s: %v", class, id, err)
	}
	return n
}

// Set applies attrs to an existing node, failing the test on error.
func Set(t testing.TB, g *domain.Graph, id string, attrs domain.ParsedAttributes) {
	t.Helper()
	n, ok := g.Node(id)
	if !ok {
		t.Fatalf("node %s not found", id)
	}
	if err := domain.ApplyAttributes(g, n, attrs); err != nil {
		t.Fatalf("apply %s: %v", id, err)
	}
}

// Hourly returns a series of n hours starting at midnight UTC, 2025-01-01.
func Hourly(values ...float64) timeseries.Series {
	return timeseries.Series{
		Start:  time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		Unit:   domain.UnitOccurrence,
		Values: values,
	}
}

// StandardModel builds a small complete model.
//
//	sys-1
//	└─ usage_patterns: up-1 ── usage_journey ──> uj-1
//	                                            └─ uj_steps: step-1, step-2
//	step-1.jobs: job-1, job-shared
//	step-2.jobs: job-shared
//	job-1, job-shared ── server ──> srv-1 ── storage ──> storage-1
//
// job-shared is contained by two steps and therefore has two cards.
func StandardModel(t testing.TB) *domain.Graph {
	t.Helper()
	g := NewGraph(t)
	Add(t, g, domain.ClassStorage, "storage-1", domain.ParsedAttributes{"storage_capacity": 1000})
	Add(t, g, domain.ClassServer, "srv-1", domain.ParsedAttributes{"storage": "storage-1", "power": 300})
	Add(t, g, domain.ClassCountry, "country-fr", domain.ParsedAttributes{"average_carbon_intensity": 50})
	Add(t, g, domain.ClassNetwork, "net-1", nil)
	Add(t, g, domain.ClassDevice, "laptop", nil)
	Add(t, g, domain.ClassJob, "job-1", domain.ParsedAttributes{"server": "srv-1", "data_transferred": 2.5})
	Add(t, g, domain.ClassJob, "job-shared", domain.ParsedAttributes{"server": "srv-1"})
	Add(t, g, domain.ClassUsageJourneyStep, "step-1", domain.ParsedAttributes{"jobs": []string{"job-1", "job-shared"}})
	Add(t, g, domain.ClassUsageJourneyStep, "step-2", domain.ParsedAttributes{"jobs": []string{"job-shared"}})
	Add(t, g, domain.ClassUsageJourney, "uj-1", domain.ParsedAttributes{"uj_steps": []string{"step-1", "step-2"}})
	Add(t, g, domain.ClassUsagePattern, "up-1", domain.ParsedAttributes{
		"usage_journey":               "uj-1",
		"devices":                     []string{"laptop"},
		"network":                     "net-1",
		"country":                     "country-fr",
		"hourly_usage_journey_starts": Hourly(1, 2, 3),
	})
	Add(t, g, domain.ClassSystem, "sys-1", domain.ParsedAttributes{"usage_patterns": []string{"up-1"}})
	return g
}

// MustNode looks up a node, failing the test when it is missing.
func MustNode(t testing.TB, g *domain.Graph, id string) *domain.Node {
	t.Helper()
	n, ok := g.Node(id)
	if !ok {
		t.Fatalf("node %s not found", id)
	}
	return n
}
