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
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/ohler55/ojg/oj"
)

// CalculatedKey is the document key holding a node's calculated attributes.
const CalculatedKey = "calculated_attributes"

type decodeOptions struct {
	deferred  bool
	graphOpts []Option
}

// DecodeOption configures Deserialize.
type DecodeOption func(*decodeOptions)

// DeferComputation leaves every node uncomputed after decoding so the
// caller can install OnComputed hooks and drive FinishInitialization.
func DeferComputation() DecodeOption {
	return func(o *decodeOptions) { o.deferred = true }
}

// WithGraphOptions passes options to the graph created by Deserialize.
func WithGraphOptions(opts ...Option) DecodeOption {
	return func(o *decodeOptions) { o.graphOpts = append(o.graphOpts, opts...) }
}

// Deserialize decodes a {Class: {id: {...}}} document into a graph.
//
// Description:
//
//	Nodes are created first, classes in schema order and IDs sorted, so
//	references can be resolved in a second pass regardless of where their
//	targets appear. Calculated attributes in the input are ignored. Unless
//	DeferComputation is given the whole graph is computed before return.
//
// Inputs:
//
//	schema - Class registry.
//	data   - JSON document.
//	opts   - Decode options.
//
// Outputs:
//
//	*Graph           - The decoded graph.
//	map[string]*Node - Index of nodes by ID.
//	error            - ErrMalformedDocument, ErrUnknownClass, or an
//	                   attribute error naming the failing node.
func Deserialize(schema *Schema, data []byte, opts ...DecodeOption) (*Graph, map[string]*Node, error) {
	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}

	parsed, err := oj.Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	doc, ok := parsed.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("%w: top level must be an object, got %T", ErrMalformedDocument, parsed)
	}

	for class := range doc {
		if _, ok := schema.Class(class); !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownClass, class)
		}
	}

	type pending struct {
		node  *Node
		attrs ParsedAttributes
	}
	g := NewGraph(schema, o.graphOpts...)
	var todo []pending
	for _, class := range schema.Classes() {
		raw, present := doc[class]
		if !present {
			continue
		}
		objects, ok := raw.(map[string]any)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s must map ids to objects", ErrMalformedDocument, class)
		}
		ids := make([]string, 0, len(objects))
		for id := range objects {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			body, ok := objects[id].(map[string]any)
			if !ok {
				return nil, nil, fmt.Errorf("%w: %s/%s must be an object", ErrMalformedDocument, class, id)
			}
			n, err := g.NewNode(class, id)
			if err != nil {
				return nil, nil, err
			}
			attrs := make(ParsedAttributes, len(body))
			for k, v := range body {
				if k == CalculatedKey || k == "id" || v == nil {
					continue
				}
				attrs[k] = v
			}
			todo = append(todo, pending{node: n, attrs: attrs})
		}
	}

	for _, p := range todo {
		if err := ApplyAttributes(g, p.node, p.attrs); err != nil {
			return nil, nil, fmt.Errorf("decode %s/%s: %w", p.node.class, p.node.id, err)
		}
	}

	if !o.deferred {
		if err := g.ComputeAll(); err != nil {
			return nil, nil, err
		}
	}
	return g, g.index(), nil
}

func (g *Graph) index() map[string]*Node {
	idx := make(map[string]*Node, len(g.nodes))
	for id, n := range g.nodes {
		idx[id] = n
	}
	return idx
}

// ToJSON renders the node as a document object.
//
// Inputs:
//
//	includeCalculated - Adds calculated_attributes when the node has any.
func (n *Node) ToJSON(includeCalculated bool) map[string]any {
	out := make(map[string]any)
	if name, ok := n.scalars["name"]; ok {
		out["name"] = name
	}
	for _, attrSpec := range n.graph.schema.Attrs(n.class) {
		switch attrSpec.Kind {
		case KindScalar:
			if v, ok := n.scalars[attrSpec.Name]; ok {
				out[attrSpec.Name] = v
			}
		case KindTimeseries:
			if s, ok := n.series[attrSpec.Name]; ok {
				out[attrSpec.Name] = map[string]any{
					"start":  s.Start.UTC().Format(time.RFC3339),
					"unit":   s.Unit,
					"values": s.Values,
				}
			}
		case KindReference:
			if target := n.refs[attrSpec.Name]; target != nil {
				out[attrSpec.Name] = target.id
			} else {
				out[attrSpec.Name] = nil
			}
		case KindList:
			ids := make([]string, 0, len(n.lists[attrSpec.Name]))
			for _, item := range n.lists[attrSpec.Name] {
				ids = append(ids, item.id)
			}
			out[attrSpec.Name] = ids
		}
	}
	if includeCalculated && len(n.calculated) > 0 {
		out[CalculatedKey] = n.CalculatedAttrs()
	}
	return out
}

// Serialize renders the whole graph as a {Class: {id: {...}}} document.
func (g *Graph) Serialize(includeCalculated bool) map[string]map[string]any {
	out := make(map[string]map[string]any)
	for _, n := range g.order {
		byID, ok := out[n.class]
		if !ok {
			byID = make(map[string]any)
			out[n.class] = byID
		}
		byID[n.id] = n.ToJSON(includeCalculated)
	}
	return out
}

// Marshal encodes Serialize as JSON. Map keys are sorted so equal graphs
// produce equal bytes.
func (g *Graph) Marshal(includeCalculated bool) ([]byte, error) {
	return json.Marshal(g.Serialize(includeCalculated))
}
