// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package web

import (
	"fmt"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain"
)

// Object is a projection of one domain node, optionally in the context
// of the card it is displayed under.
type Object struct {
	model  *Model
	node   *domain.Node
	parent *Object
}

// ID returns the wrapped node's ID.
func (o *Object) ID() string { return o.node.ID() }

// Class returns the wrapped node's class.
func (o *Object) Class() string { return o.node.Class() }

// Name returns the display name.
func (o *Object) Name() string { return o.node.Name() }

// ClassLabel returns the human readable class name.
func (o *Object) ClassLabel() string { return o.model.Schema().Label(o.node.Class()) }

// Model returns the owning model.
func (o *Object) Model() *Model { return o.model }

// Parent returns the card this projection is displayed under, or nil for
// a root projection.
func (o *Object) Parent() *Object { return o.parent }

// Exists reports whether the wrapped node is still in the graph.
func (o *Object) Exists() bool {
	n, ok := o.model.graph.Node(o.node.ID())
	return ok && n == o.node
}

// Get reads an attribute.
//
// Description:
//
//	Registered resolvers win over domain attributes. List values come back
//	as projections displayed under o; reference values come back as root
//	projections since references do not create cards.
//
// Outputs:
//
//	any   - The value.
//	error - domain.ErrUnknownAttribute when nothing provides attr, or the
//	        resolver's error.
func (o *Object) Get(attr string) (any, error) {
	if resolve, ok := o.model.registry.Lookup(o.model.Schema(), o.Class(), attr); ok {
		return resolve(o)
	}
	v, ok := o.node.Value(attr)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", domain.ErrUnknownAttribute, o.Class(), attr)
	}
	switch x := v.(type) {
	case *domain.Node:
		if x == nil {
			return nil, nil
		}
		return o.model.wrap(x), nil
	case []*domain.Node:
		out := make([]*Object, 0, len(x))
		for _, n := range x {
			out = append(out, &Object{model: o.model, node: n, parent: o})
		}
		return out, nil
	}
	return v, nil
}

// Set writes one attribute. It refuses projections: node-valued
// attributes are set by ID.
func (o *Object) Set(attr string, value any) error {
	if holdsProjection(value) {
		return fmt.Errorf("%w: cannot store %T in %s.%s, pass object ids", ErrPermission, value, o.Class(), attr)
	}
	return o.ApplyAttributes(domain.ParsedAttributes{attr: value})
}

// ApplyAttributes applies parsed attributes to the wrapped node and
// drops memoized mirror sets.
func (o *Object) ApplyAttributes(attrs domain.ParsedAttributes) error {
	for name, v := range attrs {
		if holdsProjection(v) {
			return fmt.Errorf("%w: cannot store %T in %s.%s, pass object ids", ErrPermission, v, o.Class(), name)
		}
	}
	defer o.model.Invalidate()
	return domain.ApplyAttributes(o.model.graph, o.node, attrs)
}

func holdsProjection(v any) bool {
	switch x := v.(type) {
	case *Object, []*Object, *domain.Node, []*domain.Node:
		return true
	case []any:
		for _, item := range x {
			if holdsProjection(item) {
				return true
			}
		}
	}
	return false
}

// CardID returns the ID of the card this projection renders.
//
// Outputs:
//
//	CardID - The card ID.
//	error  - ErrPermission for a root projection of a node that is held in
//	         list attributes: such a node is only displayed through its
//	         containers, use MirrorSet.
func (o *Object) CardID() (CardID, error) {
	if o.parent != nil {
		pid, err := o.parent.CardID()
		if err != nil {
			return CardID{}, err
		}
		return pid.Child(o.ID()), nil
	}
	if len(o.node.ListContainers()) > 0 {
		return CardID{}, fmt.Errorf("%w: %s is displayed through its containers", ErrPermission, o.ID())
	}
	return NewCardID(o.ID()), nil
}

// Equal compares projections by card ID. Two card-less root projections
// are equal when they wrap the same node.
func (o *Object) Equal(other *Object) bool {
	if o == nil || other == nil {
		return o == other
	}
	a, errA := o.CardID()
	b, errB := other.CardID()
	if errA != nil || errB != nil {
		return errA != nil && errB != nil && o.parent == nil && other.parent == nil && o.node == other.node
	}
	return a == b
}

// MirrorSet returns every card of the wrapped node, whatever the context
// of o itself.
func (o *Object) MirrorSet() ([]*Object, error) {
	return o.model.mirrorSet(o.node, make(map[string]bool))
}

// AccordionChildren returns the projections displayed under this card:
// the elements of every non excluded list attribute, in declaration order.
// A node listed more than once is one card, at its first position.
func (o *Object) AccordionChildren() []*Object {
	var out []*Object
	seen := make(map[string]bool)
	for _, attrSpec := range o.model.Schema().ListAttrs(o.Class()) {
		if o.model.accordionExcluded(o.Class(), attrSpec.Name) {
			continue
		}
		for _, n := range o.node.List(attrSpec.Name) {
			if seen[n.ID()] {
				continue
			}
			seen[n.ID()] = true
			out = append(out, &Object{model: o.model, node: n, parent: o})
		}
	}
	return out
}

// ListIDs returns the IDs held by a list attribute.
func (o *Object) ListIDs(attr string) []string {
	items := o.node.List(attr)
	ids := make([]string, 0, len(items))
	for _, n := range items {
		ids = append(ids, n.ID())
	}
	return ids
}

// Containers returns root projections of the nodes containing this one.
func (o *Object) Containers() []*Object {
	nodes := o.node.ContainerNodes()
	out := make([]*Object, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, o.model.wrap(n))
	}
	return out
}

// ContainerAttrs returns the container pairs of the wrapped node,
// split by whether the attribute is a list.
func (o *Object) ContainerAttrs() (lists, refs []ContainerRef) {
	for _, c := range o.node.Containers() {
		attrSpec, _ := o.model.Schema().Attr(c.Node.Class(), c.Attr)
		ref := ContainerRef{ID: c.Node.ID(), Name: c.Node.Name(), Attr: c.Attr}
		if attrSpec.Kind == domain.KindList {
			lists = append(lists, ref)
		} else {
			refs = append(refs, ref)
		}
	}
	return lists, refs
}

// ContainerRef names one container pair.
type ContainerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Attr string `json:"attr"`
}

// ContainerCount returns the number of distinct containers.
func (o *Object) ContainerCount() int { return len(o.node.ContainerNodes()) }

// Document renders the wrapped node as a document object.
func (o *Object) Document(includeCalculated bool) map[string]any {
	return o.node.ToJSON(includeCalculated)
}
