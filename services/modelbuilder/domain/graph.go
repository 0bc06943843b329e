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
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/timeseries"
)

// DefaultMaxNodes is the node ceiling of a graph created without WithMaxNodes.
const DefaultMaxNodes = 50000

// Option configures a Graph.
type Option func(*Graph)

// WithMaxNodes sets the node ceiling. Values <= 0 keep the default.
func WithMaxNodes(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.maxNodes = n
		}
	}
}

// Graph is the typed object graph of one model.
//
// Description:
//
//	Nodes are kept in insertion order. Every mutation of a reference or
//	list attribute keeps the containment index of the target nodes in
//	sync, so Containers() is always exact.
//
// Thread Safety: Not safe for concurrent use.
type Graph struct {
	schema   *Schema
	nodes    map[string]*Node
	order    []*Node
	maxNodes int
}

// NewGraph creates an empty graph over the schema.
func NewGraph(schema *Schema, opts ...Option) *Graph {
	g := &Graph{
		schema:   schema,
		nodes:    make(map[string]*Node),
		maxNodes: DefaultMaxNodes,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Schema returns the graph's schema.
func (g *Graph) Schema() *Schema { return g.schema }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

// NewNode creates and adds a node.
//
// Inputs:
//
//	class - Registered class name.
//	id    - Node ID. Empty generates a UUID.
//
// Outputs:
//
//	*Node - The new node.
//	error - ErrUnknownClass, ErrInvalidID, ErrDuplicateNode, or ErrCapacityExceeded.
func (g *Graph) NewNode(class, id string) (*Node, error) {
	if _, ok := g.schema.Class(class); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}
	if id == "" {
		id = strings.ToLower(class) + "-" + uuid.NewString()
	} else if err := ValidateID(id); err != nil {
		return nil, err
	}
	if _, exists := g.nodes[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, id)
	}
	if len(g.order) >= g.maxNodes {
		return nil, fmt.Errorf("%w: limit %d", ErrCapacityExceeded, g.maxNodes)
	}
	n := newNode(g, class, id)
	g.nodes[id] = n
	g.order = append(g.order, n)
	return n, nil
}

// IDSeparator joins node IDs in rendered card IDs.
const IDSeparator = "__"

// ValidateID rejects IDs that would make a rendered card ID ambiguous:
// IDs containing IDSeparator or ending in '_'.
func ValidateID(id string) error {
	if id == "" || strings.Contains(id, IDSeparator) || strings.HasSuffix(id, "_") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Node looks up a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	return slices.Clone(g.order)
}

// NodesOfClass returns nodes whose class is, or inherits from, class.
func (g *Graph) NodesOfClass(class string) []*Node {
	var out []*Node
	for _, n := range g.order {
		if g.schema.IsA(n.class, class) {
			out = append(out, n)
		}
	}
	return out
}

// Root returns the first System node.
func (g *Graph) Root() (*Node, error) {
	for _, n := range g.order {
		if g.schema.IsA(n.class, ClassSystem) {
			return n, nil
		}
	}
	return nil, ErrNoRoot
}

func (g *Graph) attr(n *Node, attr string, kind AttrKind) (AttrSpec, error) {
	attrSpec, ok := g.schema.Attr(n.class, attr)
	if !ok {
		return AttrSpec{}, fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, n.class, attr)
	}
	if attrSpec.Kind != kind {
		return AttrSpec{}, fmt.Errorf("%w: %s.%s is a %s attribute, not %s",
			ErrInvalidValue, n.class, attr, attrSpec.Kind, kind)
	}
	return attrSpec, nil
}

func (g *Graph) owns(n *Node) error {
	if n == nil || n.graph != g || g.nodes[n.id] != n {
		return fmt.Errorf("%w: node does not belong to this graph", ErrNodeNotFound)
	}
	return nil
}

// SetScalar stores an already coerced scalar value.
func (g *Graph) SetScalar(n *Node, attr string, value any) error {
	if err := g.owns(n); err != nil {
		return err
	}
	if _, err := g.attr(n, attr, KindScalar); err != nil {
		return err
	}
	n.scalars[attr] = value
	return nil
}

// SetSeries stores a timeseries attribute.
func (g *Graph) SetSeries(n *Node, attr string, s timeseries.Series) error {
	if err := g.owns(n); err != nil {
		return err
	}
	if _, err := g.attr(n, attr, KindTimeseries); err != nil {
		return err
	}
	n.series[attr] = s
	return nil
}

// SetReference points a reference attribute at target. A nil target clears it.
func (g *Graph) SetReference(n *Node, attr string, target *Node) error {
	if err := g.owns(n); err != nil {
		return err
	}
	attrSpec, err := g.attr(n, attr, KindReference)
	if err != nil {
		return err
	}
	if target != nil {
		if err := g.owns(target); err != nil {
			return err
		}
		if !g.schema.IsA(target.class, attrSpec.ElemClass) {
			return fmt.Errorf("%w: %s.%s expects %s, got %s",
				ErrClassMismatch, n.class, attr, attrSpec.ElemClass, target.class)
		}
	}
	if old := n.refs[attr]; old != nil {
		old.detach(n, attr)
	}
	if target == nil {
		delete(n.refs, attr)
		return nil
	}
	n.refs[attr] = target
	target.attach(n, attr)
	return nil
}

// SetList replaces a list attribute. The old elements are detached before
// the new ones are attached.
func (g *Graph) SetList(n *Node, attr string, items []*Node) error {
	if err := g.owns(n); err != nil {
		return err
	}
	attrSpec, err := g.attr(n, attr, KindList)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := g.owns(item); err != nil {
			return err
		}
		if !g.schema.IsA(item.class, attrSpec.ElemClass) {
			return fmt.Errorf("%w: %s.%s expects %s, got %s",
				ErrClassMismatch, n.class, attr, attrSpec.ElemClass, item.class)
		}
	}
	for _, old := range n.lists[attr] {
		old.detach(n, attr)
	}
	if len(items) == 0 {
		delete(n.lists, attr)
		return nil
	}
	n.lists[attr] = slices.Clone(items)
	for _, item := range items {
		item.attach(n, attr)
	}
	return nil
}

// Delete removes a node from the graph.
//
// Description:
//
//	Fails while anything still contains the node. On success the node's
//	own outgoing references and list entries are detached so the
//	containment index of its children stays exact.
//
// Outputs:
//
//	error - ErrNodeReferenced naming the remaining containers.
func (g *Graph) Delete(n *Node) error {
	if err := g.owns(n); err != nil {
		return err
	}
	if len(n.containers) > 0 {
		names := make([]string, 0, len(n.containers))
		for _, c := range n.containers {
			names = append(names, c.Node.Name()+"."+c.Attr)
		}
		return fmt.Errorf("%w: %s is used by %s", ErrNodeReferenced, n.Name(), strings.Join(names, ", "))
	}
	for attr, target := range n.refs {
		target.detach(n, attr)
	}
	for attr, items := range n.lists {
		for _, item := range items {
			item.detach(n, attr)
		}
	}
	n.refs = make(map[string]*Node)
	n.lists = make(map[string][]*Node)
	delete(g.nodes, n.id)
	g.order = slices.DeleteFunc(g.order, func(o *Node) bool { return o == n })
	return nil
}
