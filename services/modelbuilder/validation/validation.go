// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks that a model graph can be computed.
//
// Validation never changes the graph. It reports structural problems a
// user has to fix, each with a message and the names of the offending
// objects.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain"
)

// ErrStructural is wrapped by Result.Err when validation fails.
var ErrStructural = errors.New("model cannot be computed")

// Error codes carried by StructuralError.
const (
	CodeNoUsagePattern     = "NO_USAGE_PATTERN"
	CodeJourneyWithoutStep = "JOURNEY_WITHOUT_STEP"
)

// StructuralError is one reason the graph cannot be computed.
type StructuralError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Names   []string `json:"names"`
}

// Error implements error.
func (e StructuralError) Error() string {
	if len(e.Names) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Names, ", ")
}

// Result aggregates the structural errors of a graph.
type Result struct {
	Errors []StructuralError `json:"errors"`
}

// OK reports whether the graph passed.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// Err returns nil when the graph passed, otherwise an error wrapping
// ErrStructural that lists every problem.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return fmt.Errorf("%w: %s", ErrStructural, strings.Join(msgs, "; "))
}

// ValidateForComputation checks the preconditions of computation.
//
// Description:
//
//	Rule 1: at least one usage pattern or edge usage pattern exists.
//	Rule 2: every usage journey referenced by a usage pattern has at
//	least one step. Journeys no pattern uses are ignored.
//
// Inputs:
//
//	g - The graph to check. Not modified.
//
// Outputs:
//
//	Result - Zero or more structural errors.
func ValidateForComputation(g *domain.Graph) Result {
	res := Result{Errors: []StructuralError{}}

	patterns := g.NodesOfClass(domain.ClassUsagePattern)
	edgePatterns := g.NodesOfClass(domain.ClassEdgeUsagePattern)
	if len(patterns) == 0 && len(edgePatterns) == 0 {
		res.Errors = append(res.Errors, StructuralError{
			Code:    CodeNoUsagePattern,
			Message: "no usage pattern or edge usage pattern",
			Names:   []string{},
		})
	}

	seen := make(map[string]bool)
	var empty []string
	for _, p := range patterns {
		uj := p.Reference(domain.AttrUsageJourney)
		if uj == nil || seen[uj.ID()] {
			continue
		}
		seen[uj.ID()] = true
		if len(uj.List(domain.AttrUJSteps)) == 0 {
			empty = append(empty, uj.Name())
		}
	}
	if len(empty) > 0 {
		res.Errors = append(res.Errors, StructuralError{
			Code:    CodeJourneyWithoutStep,
			Message: "usage journeys without any usage journey step",
			Names:   empty,
		})
	}
	return res
}
