// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/timeseries"
)

// ParsedAttributes maps attribute names to raw values as they arrive from
// a form, a JSON request body, or a serialized graph document.
//
// Accepted shapes per kind:
//
//	scalar     - numbers, numeric strings, bools; strings for text attributes
//	timeseries - timeseries.Series or {"start", "unit", "values"}
//	reference  - node ID string, *Node, or nil/"" to clear
//	list       - []string, []any of strings, []*Node, or a single ID string
type ParsedAttributes map[string]any

// ApplyAttributes coerces and stores every entry of attrs on n.
//
// Description:
//
//	Unknown attribute names are rejected before anything is written. Known
//	attributes are then applied in declaration order, "name" first. There
//	is no rollback: when an entry fails, the entries applied before it
//	stay in place and the error is returned.
//
// Inputs:
//
//	g     - The graph owning n.
//	n     - The node to update.
//	attrs - Raw values keyed by attribute name.
//
// Outputs:
//
//	error - ErrUnknownAttribute, ErrInvalidValue, ErrNodeNotFound, or
//	        ErrClassMismatch wrapped with the failing attribute.
func ApplyAttributes(g *Graph, n *Node, attrs ParsedAttributes) error {
	if err := g.owns(n); err != nil {
		return err
	}
	for name := range attrs {
		if _, ok := g.schema.Attr(n.class, name); !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, n.class, name)
		}
	}
	ordered := append([]AttrSpec{{Name: "name", Kind: KindScalar, Text: true}}, g.schema.Attrs(n.class)...)
	for _, attrSpec := range ordered {
		raw, ok := attrs[attrSpec.Name]
		if !ok {
			continue
		}
		if err := applyOne(g, n, attrSpec, raw); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(g *Graph, n *Node, attrSpec AttrSpec, raw any) error {
	switch attrSpec.Kind {
	case KindScalar:
		v, err := coerceScalar(attrSpec, raw)
		if err != nil {
			return fmt.Errorf("%w: %s.%s: %v", ErrInvalidValue, n.class, attrSpec.Name, err)
		}
		return g.SetScalar(n, attrSpec.Name, v)

	case KindTimeseries:
		s, err := coerceSeries(raw)
		if err != nil {
			return fmt.Errorf("%w: %s.%s: %v", ErrInvalidValue, n.class, attrSpec.Name, err)
		}
		if s.Unit == "" {
			s.Unit = attrSpec.Unit
		}
		return g.SetSeries(n, attrSpec.Name, s)

	case KindReference:
		target, err := resolveRef(g, raw)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", n.class, attrSpec.Name, err)
		}
		return g.SetReference(n, attrSpec.Name, target)

	case KindList:
		items, err := resolveList(g, raw)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", n.class, attrSpec.Name, err)
		}
		return g.SetList(n, attrSpec.Name, items)
	}
	return fmt.Errorf("%w: %s.%s has unsupported kind %s", ErrInvalidValue, n.class, attrSpec.Name, attrSpec.Kind)
}

func coerceScalar(attrSpec AttrSpec, raw any) (any, error) {
	if attrSpec.Text {
		var s string
		if err := mapstructure.WeakDecode(raw, &s); err != nil {
			return nil, err
		}
		return strings.TrimSpace(s), nil
	}
	if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty value")
	}
	if s, ok := raw.(string); ok {
		raw = strings.TrimSpace(s)
	}
	var f float64
	if err := mapstructure.WeakDecode(raw, &f); err != nil {
		return nil, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("not a finite number")
	}
	if f < 0 {
		return nil, fmt.Errorf("must not be negative, got %g", f)
	}
	if attrSpec.Max > 0 && f > attrSpec.Max {
		return nil, fmt.Errorf("must be at most %g, got %g", attrSpec.Max, f)
	}
	return f, nil
}

type seriesDoc struct {
	Start  time.Time `mapstructure:"start"`
	Unit   string    `mapstructure:"unit"`
	Values []float64 `mapstructure:"values"`
}

func coerceSeries(raw any) (timeseries.Series, error) {
	switch v := raw.(type) {
	case timeseries.Series:
		return v, nil
	case *timeseries.Series:
		if v == nil {
			return timeseries.Series{}, fmt.Errorf("nil series")
		}
		return *v, nil
	}
	var doc seriesDoc
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &doc,
	})
	if err != nil {
		return timeseries.Series{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return timeseries.Series{}, err
	}
	if doc.Start.IsZero() {
		return timeseries.Series{}, fmt.Errorf("missing start")
	}
	return timeseries.Series{Start: doc.Start, Unit: doc.Unit, Values: doc.Values}, nil
}

func resolveRef(g *Graph, raw any) (*Node, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case *Node:
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		n, ok := g.nodes[v]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, v)
		}
		return n, nil
	}
	return nil, fmt.Errorf("%w: expected node id, got %T", ErrInvalidValue, raw)
}

func resolveList(g *Graph, raw any) ([]*Node, error) {
	var ids []string
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []*Node:
		return v, nil
	case string:
		if v != "" {
			ids = []string{v}
		}
	case []string:
		ids = v
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: expected node id, got %T", ErrInvalidValue, item)
			}
			ids = append(ids, s)
		}
	default:
		return nil, fmt.Errorf("%w: expected list of node ids, got %T", ErrInvalidValue, raw)
	}
	items := make([]*Node, 0, len(ids))
	for _, id := range ids {
		n, ok := g.nodes[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		items = append(items, n)
	}
	return items, nil
}
