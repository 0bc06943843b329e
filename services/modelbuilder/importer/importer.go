// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package importer turns a serialized model into a computed, size-checked
// payload without computing graphs that end up rejected.
//
// Computation and serialization are interleaved: every node is
// serialized the moment its calculated attributes are ready, and the
// import stops as soon as the running total crosses the ceiling. Nodes
// the root cannot reach are swept up afterwards, and a final pass
// re-serializes everything against the settled graph.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain"
)

// Config configures an Importer.
type Config struct {
	// MaxPayloadMB is the ceiling on the serialized payload.
	MaxPayloadMB float64
}

// DefaultConfig returns a 30 MB ceiling.
func DefaultConfig() Config {
	return Config{MaxPayloadMB: 30}
}

// Progress is reported after every node serialization and at phase ends.
type Progress struct {
	Phase      Phase   `json:"phase"`
	NodeID     string  `json:"node_id,omitempty"`
	Class      string  `json:"class,omitempty"`
	Serialized int     `json:"serialized"`
	Total      int     `json:"total"`
	TotalMB    float64 `json:"total_mb"`
	LimitMB    float64 `json:"limit_mb"`
}

// ProgressFunc receives progress reports. It runs on the importing goroutine.
type ProgressFunc func(Progress)

// Option configures an Importer.
type Option func(*Importer)

// WithMeasurer replaces JSONMeasurer.
func WithMeasurer(m SizeMeasurer) Option {
	return func(im *Importer) { im.measurer = m }
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(im *Importer) { im.progress = fn }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(im *Importer) { im.logger = l }
}

// WithGraphOptions passes options to the decoded graph.
func WithGraphOptions(opts ...domain.Option) Option {
	return func(im *Importer) { im.graphOpts = append(im.graphOpts, opts...) }
}

// Importer runs the progressive import pipeline.
//
// Thread Safety: An Importer is immutable after New and may run
// concurrent imports; each Import call owns its graph.
type Importer struct {
	schema    *domain.Schema
	cfg       Config
	measurer  SizeMeasurer
	progress  ProgressFunc
	logger    *slog.Logger
	graphOpts []domain.Option
}

// New creates an importer.
func New(schema *domain.Schema, cfg Config, opts ...Option) *Importer {
	if cfg.MaxPayloadMB <= 0 {
		cfg.MaxPayloadMB = DefaultConfig().MaxPayloadMB
	}
	im := &Importer{
		schema:   schema,
		cfg:      cfg,
		measurer: JSONMeasurer{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Result is a successfully imported graph.
type Result struct {
	Graph *domain.Graph
	Index map[string]*domain.Node

	// Output is the serialized payload keyed by class then node ID.
	Output map[string]map[string]json.RawMessage

	TotalMB         float64
	SerializedCount int
}

// Marshal encodes Output as one JSON document.
func (r *Result) Marshal() ([]byte, error) {
	return json.Marshal(r.Output)
}

type run struct {
	im         *Importer
	output     map[string]map[string]json.RawMessage
	sizes      map[string]int
	serialized map[string]bool
	totalBytes int
	nodes      int
	phase      Phase
}

// Import decodes data and produces the computed payload.
//
// Description:
//
//	 1. Decode without computing.
//	 2. Install a one-shot hook on every node that serializes the node
//	    as soon as it is computed and checks the running total.
//	 3. Finish initialization from the System root, which computes every
//	    node reachable from it.
//	 4. Serialize, uncomputed, every node the root did not reach.
//	 5. Re-serialize every node against the settled graph, replacing
//	    the earlier output, and re-check the ceiling.
//
//	Crossing the ceiling at any point aborts the import. Nothing partial
//	is returned.
//
// Inputs:
//
//	ctx  - Context for tracing. Cancellation is checked between phases.
//	data - Serialized {Class: {id: {...}}} document.
//
// Outputs:
//
//	*Result - The graph and its payload.
//	error   - A *SizeLimitError (matching ErrPayloadTooLarge), a decode
//	          error, or a computation error.
func (im *Importer) Import(ctx context.Context, data []byte) (res *Result, err error) {
	started := time.Now()
	ctx, span := startImportSpan(ctx, len(data), im.cfg.MaxPayloadMB)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			var sle *SizeLimitError
			if errors.As(err, &sle) {
				recordRejected(ctx, sle.Phase)
			}
			recordImport(ctx, time.Since(started), 0, false)
		} else {
			recordImport(ctx, time.Since(started), res.TotalMB, true)
		}
		span.End()
	}()

	g, index, err := domain.Deserialize(im.schema, data,
		domain.DeferComputation(), domain.WithGraphOptions(im.graphOpts...))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	r := &run{
		im:         im,
		output:     make(map[string]map[string]json.RawMessage),
		sizes:      make(map[string]int, g.Len()),
		serialized: make(map[string]bool, g.Len()),
		nodes:      g.Len(),
		phase:      PhaseCompute,
	}
	for _, n := range g.Nodes() {
		n.OnComputed(r.onComputed)
	}

	root, rootErr := g.Root()
	if rootErr == nil {
		if err = g.FinishInitialization(root); err != nil {
			return nil, err
		}
	} else {
		im.logger.Warn("imported graph has no System root, every node is swept")
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	r.phase = PhaseSweep
	swept := 0
	for _, n := range g.Nodes() {
		n.OnComputed(nil)
		if r.serialized[n.ID()] {
			continue
		}
		if err = r.serialize(n); err != nil {
			return nil, err
		}
		swept++
	}
	if swept > 0 {
		im.logger.Info("serialized nodes not reached from the root", slog.Int("count", swept))
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	r.phase = PhaseFinal
	for _, n := range g.Nodes() {
		if err = r.serialize(n); err != nil {
			return nil, err
		}
	}

	totalMB := float64(r.totalBytes) / BytesPerMB
	r.report(Progress{Phase: PhaseDone, Serialized: len(r.serialized), Total: r.nodes, TotalMB: totalMB})
	im.logger.Info("import complete",
		slog.Int("nodes", r.nodes),
		slog.Float64("total_mb", totalMB),
		slog.Duration("elapsed", time.Since(started)))

	return &Result{
		Graph:           g,
		Index:           index,
		Output:          r.output,
		TotalMB:         totalMB,
		SerializedCount: len(r.serialized),
	}, nil
}

func (r *run) onComputed(n *domain.Node) error {
	if r.serialized[n.ID()] {
		return nil
	}
	return r.serialize(n)
}

// serialize writes n into the output, replacing any earlier rendering,
// and checks the running total against the ceiling.
func (r *run) serialize(n *domain.Node) error {
	raw, m, err := r.im.measurer.Measure(n.ToJSON(true))
	if err != nil {
		return fmt.Errorf("serialize %s: %w", n.ID(), err)
	}
	byID, ok := r.output[n.Class()]
	if !ok {
		byID = make(map[string]json.RawMessage)
		r.output[n.Class()] = byID
	}
	byID[n.ID()] = raw
	r.totalBytes += m.SizeBytes - r.sizes[n.ID()]
	r.sizes[n.ID()] = m.SizeBytes
	r.serialized[n.ID()] = true

	totalMB := float64(r.totalBytes) / BytesPerMB
	r.report(Progress{
		Phase:      r.phase,
		NodeID:     n.ID(),
		Class:      n.Class(),
		Serialized: len(r.serialized),
		Total:      r.nodes,
		TotalMB:    totalMB,
	})
	if totalMB > r.im.cfg.MaxPayloadMB {
		return &SizeLimitError{CurrentMB: totalMB, LimitMB: r.im.cfg.MaxPayloadMB, Phase: r.phase, NodeID: n.ID()}
	}
	return nil
}

func (r *run) report(p Progress) {
	if r.im.progress == nil {
		return
	}
	p.LimitMB = r.im.cfg.MaxPayloadMB
	r.im.progress(p)
}

// CheckSize serializes a whole graph, calculated attributes included,
// and enforces the ceiling. Used before persisting an edited session.
//
// Outputs:
//
//	[]byte      - The serialized graph, ready to store.
//	Measurement - Its size.
//	error       - A *SizeLimitError in the save phase.
func CheckSize(g *domain.Graph, limitMB float64, m SizeMeasurer) ([]byte, Measurement, error) {
	if m == nil {
		m = JSONMeasurer{}
	}
	raw, meas, err := m.Measure(g.Serialize(true))
	if err != nil {
		return nil, Measurement{}, err
	}
	if limitMB > 0 && meas.SizeMB > limitMB {
		return nil, meas, &SizeLimitError{CurrentMB: meas.SizeMB, LimitMB: limitMB, Phase: PhaseSave}
	}
	return raw, meas, nil
}
