// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package domain is the reference object graph for the model builder.
//
// A Graph holds typed Nodes whose attributes are declared by a Schema.
// Reference and list attributes create containment edges: every node
// tracks the (container, attribute) pairs that point at it, which is what
// the web projection layer walks to compute mirror cards and what the
// cascade delete logic uses to detect orphans.
//
// Calculated attributes are structural summaries (counts and totals)
// computed bottom-up by FinishInitialization. Each node may carry a
// one-shot OnComputed hook that fires right after its own computation.
package domain

import (
	"fmt"
	"slices"
)

// AttrKind is the storage kind of an attribute.
type AttrKind int

const (
	// KindScalar is a number or a string.
	KindScalar AttrKind = iota

	// KindTimeseries is an hourly series.
	KindTimeseries

	// KindReference points at exactly zero or one node.
	KindReference

	// KindList is an ordered list of nodes. List attributes define card
	// containment in the web projection.
	KindList
)

// String returns the lowercase name of the kind.
func (k AttrKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindTimeseries:
		return "timeseries"
	case KindReference:
		return "reference"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// AttrSpec declares one attribute of a class.
//
// ElemClass is the target class for references and lists; any subclass of
// ElemClass is accepted. Text marks string scalars, all other scalars are
// non-negative numbers bounded by Max when Max is non-zero.
type AttrSpec struct {
	Name      string
	Kind      AttrKind
	ElemClass string
	Unit      string
	Text      bool
	Max       float64
}

// CalcFunc computes the calculated attributes of a node. Children are
// already computed when it runs.
type CalcFunc func(n *Node) map[string]any

// Class declares a node type.
type Class struct {
	// Name is the class name used in serialized documents.
	Name string

	// Base is the optional parent class. Attributes are inherited.
	Base string

	// Label is the human readable name shown on cards.
	Label string

	// Attrs are the attributes declared by this class, excluding inherited ones.
	Attrs []AttrSpec

	// DeletableIfOrphaned marks classes removed by cascade delete when
	// their last container goes away.
	DeletableIfOrphaned bool

	// Compute produces calculated attributes. Nil means none.
	Compute CalcFunc
}

// Schema is a registry of classes.
//
// Thread Safety: A Schema is built once and then only read. Reads are
// safe for concurrent use once registration is finished.
type Schema struct {
	classes map[string]*Class
	order   []string
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{classes: make(map[string]*Class)}
}

// Register adds a class.
//
// Description:
//
//	The base class, when set, must already be registered. Attribute names
//	must be unique across the class and its ancestors, and "name" is
//	reserved for the implicit display name every class carries.
//
// Outputs:
//
//	error - ErrUnknownClass for a missing base, or a plain error for duplicates.
func (s *Schema) Register(c Class) error {
	if c.Name == "" {
		return fmt.Errorf("register class: empty name")
	}
	if _, exists := s.classes[c.Name]; exists {
		return fmt.Errorf("register class %s: already registered", c.Name)
	}
	if c.Base != "" {
		if _, ok := s.classes[c.Base]; !ok {
			return fmt.Errorf("register class %s: base %s: %w", c.Name, c.Base, ErrUnknownClass)
		}
	}
	seen := map[string]bool{"name": true}
	for _, a := range s.inherited(c.Base) {
		seen[a.Name] = true
	}
	for _, a := range c.Attrs {
		if seen[a.Name] {
			return fmt.Errorf("register class %s: duplicate attribute %s", c.Name, a.Name)
		}
		if (a.Kind == KindReference || a.Kind == KindList) && a.ElemClass == "" {
			return fmt.Errorf("register class %s: attribute %s has no element class", c.Name, a.Name)
		}
		seen[a.Name] = true
	}
	if c.Label == "" {
		c.Label = c.Name
	}
	cp := c
	cp.Attrs = slices.Clone(c.Attrs)
	s.classes[c.Name] = &cp
	s.order = append(s.order, c.Name)
	return nil
}

// MustRegister is Register that panics on error. Used for static schemas.
func (s *Schema) MustRegister(classes ...Class) *Schema {
	for _, c := range classes {
		if err := s.Register(c); err != nil {
			panic(err)
		}
	}
	return s
}

// Class returns the class declaration.
func (s *Schema) Class(name string) (*Class, bool) {
	c, ok := s.classes[name]
	return c, ok
}

// Classes returns class names in registration order.
func (s *Schema) Classes() []string {
	return slices.Clone(s.order)
}

// IsA reports whether class equals base or inherits from it.
func (s *Schema) IsA(class, base string) bool {
	for class != "" {
		if class == base {
			return true
		}
		c, ok := s.classes[class]
		if !ok {
			return false
		}
		class = c.Base
	}
	return false
}

// Attrs returns every attribute of the class, ancestors first.
func (s *Schema) Attrs(class string) []AttrSpec {
	return s.inherited(class)
}

func (s *Schema) inherited(class string) []AttrSpec {
	c, ok := s.classes[class]
	if !ok {
		return nil
	}
	return append(s.inherited(c.Base), c.Attrs...)
}

// Attr looks up a single attribute of the class.
func (s *Schema) Attr(class, name string) (AttrSpec, bool) {
	if name == "name" {
		return AttrSpec{Name: "name", Kind: KindScalar, Text: true}, true
	}
	for _, a := range s.inherited(class) {
		if a.Name == name {
			return a, true
		}
	}
	return AttrSpec{}, false
}

// ListAttrs returns the list attributes of the class in declaration order.
func (s *Schema) ListAttrs(class string) []AttrSpec {
	var out []AttrSpec
	for _, a := range s.inherited(class) {
		if a.Kind == KindList {
			out = append(out, a)
		}
	}
	return out
}

// Deletable reports whether cascade delete may remove orphans of this class.
func (s *Schema) Deletable(class string) bool {
	c, ok := s.classes[class]
	return ok && c.DeletableIfOrphaned
}

// Label returns the display label of the class.
func (s *Schema) Label(class string) string {
	if c, ok := s.classes[class]; ok {
		return c.Label
	}
	return class
}

func (s *Schema) computeFor(class string) CalcFunc {
	for class != "" {
		c, ok := s.classes[class]
		if !ok {
			return nil
		}
		if c.Compute != nil {
			return c.Compute
		}
		class = c.Base
	}
	return nil
}
