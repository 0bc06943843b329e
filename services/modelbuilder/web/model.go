// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package web projects the domain graph into renderable cards.
//
// # Description
//
// Every domain node is wrapped by an Object. An Object created from a
// model lookup is a root projection; an Object reached by walking a list
// attribute of another Object carries that Object as its parent, and the
// chain of parents is its card context.
//
// A node held in list attributes of several containers is rendered once
// under each of them. The set of all those renderings is the node's
// mirror set. Nodes held by no list attribute have exactly one card: the
// root projection itself.
//
// Objects never hand raw domain nodes to callers. Node-valued reads come
// back as Objects and writes refuse Objects.
//
// # Thread Safety
//
// A Model and its Objects are not safe for concurrent use. Callers hold
// the owning session's lock.
package web

import (
	"fmt"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain"
)

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithRegistry replaces the default attribute resolver registry.
func WithRegistry(r *Registry) ModelOption {
	return func(m *Model) { m.registry = r }
}

// WithAccordionExclusions hides list attributes of a class (and its
// subclasses) from AccordionChildren.
func WithAccordionExclusions(class string, attrs ...string) ModelOption {
	return func(m *Model) {
		set, ok := m.excluded[class]
		if !ok {
			set = make(map[string]bool)
			m.excluded[class] = set
		}
		for _, a := range attrs {
			set[a] = true
		}
	}
}

// Model is the projection of one domain graph.
type Model struct {
	graph    *domain.Graph
	registry *Registry
	excluded map[string]map[string]bool

	// roots is the identity side table: one root projection per node.
	roots map[string]*Object

	// mirrors memoizes mirror sets until the next mutation.
	mirrors map[string][]*Object
}

// NewModel wraps a graph.
func NewModel(g *domain.Graph, opts ...ModelOption) *Model {
	m := &Model{
		graph:    g,
		registry: DefaultRegistry(),
		excluded: make(map[string]map[string]bool),
		roots:    make(map[string]*Object),
		mirrors:  make(map[string][]*Object),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Graph returns the wrapped domain graph.
func (m *Model) Graph() *domain.Graph { return m.graph }

// Schema returns the graph's schema.
func (m *Model) Schema() *domain.Schema { return m.graph.Schema() }

// Object returns the root projection of a node.
func (m *Model) Object(id string) (*Object, error) {
	n, ok := m.graph.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	return m.wrap(n), nil
}

// Objects returns the root projections of every node of class (and its
// subclasses), in graph order.
func (m *Model) Objects(class string) []*Object {
	nodes := m.graph.NodesOfClass(class)
	out := make([]*Object, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, m.wrap(n))
	}
	return out
}

// Card resolves a card ID to its contextual projection.
//
// Description:
//
//	Walks the card's ancestry from the outermost container, checking at
//	each step that the next node is really held by a list attribute of
//	the previous one.
//
// Outputs:
//
//	*Object - The projection the card renders.
//	error   - ErrObjectNotFound when any step does not exist.
func (m *Model) Card(id CardID) (*Object, error) {
	path := append(id.Ancestors(), id.NodeID)
	current, err := m.Object(path[0])
	if err != nil {
		return nil, err
	}
	for _, next := range path[1:] {
		var found *Object
		for _, child := range current.AccordionChildren() {
			if child.ID() == next {
				found = child
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("%w: card %s", ErrObjectNotFound, id)
		}
		current = found
	}
	return current, nil
}

// Invalidate drops memoized mirror sets. Every mutation goes through it.
func (m *Model) Invalidate() {
	clear(m.mirrors)
}

func (m *Model) wrap(n *domain.Node) *Object {
	if o, ok := m.roots[n.ID()]; ok && o.node == n {
		return o
	}
	o := &Object{model: m, node: n}
	m.roots[n.ID()] = o
	return o
}

func (m *Model) forget(id string) {
	delete(m.roots, id)
	m.Invalidate()
}

func (m *Model) accordionExcluded(class, attr string) bool {
	for class != "" {
		if m.excluded[class][attr] {
			return true
		}
		c, ok := m.Schema().Class(class)
		if !ok {
			return false
		}
		class = c.Base
	}
	return false
}

// mirrorSet computes the cards of n.
//
// A node with list containers gets one card per card of each container,
// deduplicated by card ID. visiting guards against containment cycles.
func (m *Model) mirrorSet(n *domain.Node, visiting map[string]bool) ([]*Object, error) {
	if cached, ok := m.mirrors[n.ID()]; ok {
		return cached, nil
	}
	if visiting[n.ID()] {
		return nil, fmt.Errorf("%w: through %s", ErrContainmentCycle, n.ID())
	}
	visiting[n.ID()] = true
	defer delete(visiting, n.ID())

	containers := n.ListContainers()
	if len(containers) == 0 {
		set := []*Object{m.wrap(n)}
		m.mirrors[n.ID()] = set
		return set, nil
	}

	var set []*Object
	seen := make(map[CardID]bool)
	for _, c := range containers {
		parents, err := m.mirrorSet(c.Node, visiting)
		if err != nil {
			return nil, err
		}
		for _, p := range parents {
			o := &Object{model: m, node: n, parent: p}
			id, err := o.CardID()
			if err != nil {
				return nil, err
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			set = append(set, o)
		}
	}
	m.mirrors[n.ID()] = set
	return set, nil
}

// Snapshot renders every node of the model as a document object keyed
// by class and ID, calculated attributes included.
func (m *Model) Snapshot() map[string]map[string]any {
	return m.graph.Serialize(true)
}
