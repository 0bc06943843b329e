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
	"maps"
	"slices"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/timeseries"
)

// Container is one (container node, attribute) pair pointing at a node.
type Container struct {
	Node *Node
	Attr string
}

type containerKey struct {
	id   string
	attr string
}

// Node is one typed object of the graph.
//
// Thread Safety: Not safe for concurrent use. Sessions serialize access
// to their graph.
type Node struct {
	id    string
	class string
	graph *Graph

	scalars    map[string]any
	series     map[string]timeseries.Series
	refs       map[string]*Node
	lists      map[string][]*Node
	calculated map[string]any

	// containers is ordered by first attachment and holds distinct pairs.
	containers      []Container
	containerCounts map[containerKey]int

	computed   bool
	onComputed func(*Node) error
}

func newNode(g *Graph, class, id string) *Node {
	return &Node{
		id:              id,
		class:           class,
		graph:           g,
		scalars:         make(map[string]any),
		series:          make(map[string]timeseries.Series),
		refs:            make(map[string]*Node),
		lists:           make(map[string][]*Node),
		containerCounts: make(map[containerKey]int),
	}
}

// ID returns the node's unique identifier.
func (n *Node) ID() string { return n.id }

// Class returns the node's class name.
func (n *Node) Class() string { return n.class }

// Name returns the display name, falling back to the ID.
func (n *Node) Name() string {
	if s, ok := n.scalars["name"].(string); ok && s != "" {
		return s
	}
	return n.id
}

// Scalar returns a scalar attribute value.
func (n *Node) Scalar(attr string) (any, bool) {
	v, ok := n.scalars[attr]
	return v, ok
}

// Series returns a timeseries attribute value.
func (n *Node) Series(attr string) (timeseries.Series, bool) {
	s, ok := n.series[attr]
	return s, ok
}

// Reference returns the node a reference attribute points at, or nil.
func (n *Node) Reference(attr string) *Node {
	return n.refs[attr]
}

// List returns a copy of a list attribute.
func (n *Node) List(attr string) []*Node {
	return slices.Clone(n.lists[attr])
}

// Calculated returns one calculated attribute.
func (n *Node) Calculated(attr string) (any, bool) {
	v, ok := n.calculated[attr]
	return v, ok
}

// CalculatedAttrs returns a copy of all calculated attributes.
func (n *Node) CalculatedAttrs() map[string]any {
	return maps.Clone(n.calculated)
}

// IsComputed reports whether the node has been computed at least once.
func (n *Node) IsComputed() bool { return n.computed }

// OnComputed installs a one-shot hook fired right after the node's own
// computation. A nil hook clears any pending one.
func (n *Node) OnComputed(hook func(*Node) error) {
	n.onComputed = hook
}

// HasPendingHook reports whether an OnComputed hook is still installed.
func (n *Node) HasPendingHook() bool { return n.onComputed != nil }

// Value reads any attribute kind by name.
//
// Description:
//
//	Scalars are returned as stored, timeseries as timeseries.Series,
//	references as *Node (nil when unset), lists as []*Node. Calculated
//	attributes are consulted last.
//
// Outputs:
//
//	any  - The value.
//	bool - False when the class does not declare the attribute and no
//	       calculated attribute carries that name.
func (n *Node) Value(attr string) (any, bool) {
	attrSpec, declared := n.graph.schema.Attr(n.class, attr)
	if declared {
		switch attrSpec.Kind {
		case KindScalar:
			return n.scalars[attr], true
		case KindTimeseries:
			s, ok := n.series[attr]
			if !ok {
				return nil, true
			}
			return s, true
		case KindReference:
			return n.refs[attr], true
		case KindList:
			return n.List(attr), true
		}
	}
	v, ok := n.calculated[attr]
	return v, ok
}

// Containers returns the distinct (container, attribute) pairs pointing
// at this node, across both reference and list attributes.
func (n *Node) Containers() []Container {
	return slices.Clone(n.containers)
}

// ListContainers returns the containers that hold this node through a
// list attribute.
func (n *Node) ListContainers() []Container {
	var out []Container
	for _, c := range n.containers {
		if attrSpec, ok := n.graph.schema.Attr(c.Node.class, c.Attr); ok && attrSpec.Kind == KindList {
			out = append(out, c)
		}
	}
	return out
}

// ContainerNodes returns the distinct nodes that contain this node.
func (n *Node) ContainerNodes() []*Node {
	var out []*Node
	for _, c := range n.containers {
		if !slices.Contains(out, c.Node) {
			out = append(out, c.Node)
		}
	}
	return out
}

// Children returns the distinct nodes this node points at through
// reference and list attributes, in declaration order.
func (n *Node) Children() []*Node {
	var out []*Node
	add := func(c *Node) {
		if c != nil && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	for _, attrSpec := range n.graph.schema.Attrs(n.class) {
		switch attrSpec.Kind {
		case KindReference:
			add(n.refs[attrSpec.Name])
		case KindList:
			for _, c := range n.lists[attrSpec.Name] {
				add(c)
			}
		}
	}
	return out
}

func (n *Node) attach(container *Node, attr string) {
	key := containerKey{id: container.id, attr: attr}
	if n.containerCounts[key] == 0 {
		n.containers = append(n.containers, Container{Node: container, Attr: attr})
	}
	n.containerCounts[key]++
}

func (n *Node) detach(container *Node, attr string) {
	key := containerKey{id: container.id, attr: attr}
	count := n.containerCounts[key]
	if count == 0 {
		return
	}
	if count > 1 {
		n.containerCounts[key] = count - 1
		return
	}
	delete(n.containerCounts, key)
	n.containers = slices.DeleteFunc(n.containers, func(c Container) bool {
		return c.Node == container && c.Attr == attr
	})
}
