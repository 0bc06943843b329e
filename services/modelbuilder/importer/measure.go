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
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// BytesPerMB converts serialized sizes to megabytes.
const BytesPerMB = 1024 * 1024

// ErrPayloadTooLarge is matched by every SizeLimitError.
var ErrPayloadTooLarge = errors.New("payload too large")

// Phase names a stage of the import pipeline.
type Phase string

const (
	PhaseCompute Phase = "compute"
	PhaseSweep   Phase = "sweep"
	PhaseFinal   Phase = "final"
	PhaseDone    Phase = "done"
	PhaseSave    Phase = "save"
)

// SizeLimitError reports a serialized payload over the ceiling.
type SizeLimitError struct {
	CurrentMB float64
	LimitMB   float64
	Phase     Phase
	NodeID    string
}

// Error implements error.
func (e *SizeLimitError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("payload size %.2f MB exceeds the %.2f MB limit (%s phase, at %s)",
			e.CurrentMB, e.LimitMB, e.Phase, e.NodeID)
	}
	return fmt.Sprintf("payload size %.2f MB exceeds the %.2f MB limit (%s phase)", e.CurrentMB, e.LimitMB, e.Phase)
}

// Is makes errors.Is(err, ErrPayloadTooLarge) true.
func (e *SizeLimitError) Is(target error) bool {
	return target == ErrPayloadTooLarge
}

// Measurement is the size of one serialized value.
type Measurement struct {
	SizeBytes int
	SizeMB    float64
	Elapsed   time.Duration
}

// SizeMeasurer serializes a value and reports its size.
type SizeMeasurer interface {
	Measure(v any) ([]byte, Measurement, error)
}

// JSONMeasurer measures values as compact JSON.
type JSONMeasurer struct{}

// Measure implements SizeMeasurer.
func (JSONMeasurer) Measure(v any) ([]byte, Measurement, error) {
	start := time.Now()
	b, err := json.Marshal(v)
	if err != nil {
		return nil, Measurement{}, fmt.Errorf("measure: %w", err)
	}
	return b, Measurement{
		SizeBytes: len(b),
		SizeMB:    float64(len(b)) / BytesPerMB,
		Elapsed:   time.Since(start),
	}, nil
}
