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
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain"
)

// AnyClass registers a resolver for every class.
const AnyClass = "*"

// Resolver computes a projection-level attribute.
type Resolver func(o *Object) (any, error)

// Registry maps (class, attribute) to resolvers consulted by Object.Get
// before the domain. Lookups walk the class hierarchy, then AnyClass.
//
// Thread Safety: Register during setup only; lookups are read-only.
type Registry struct {
	entries map[string]map[string]Resolver
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]map[string]Resolver)}
}

// Register adds or replaces a resolver.
func (r *Registry) Register(class, attr string, fn Resolver) *Registry {
	byAttr, ok := r.entries[class]
	if !ok {
		byAttr = make(map[string]Resolver)
		r.entries[class] = byAttr
	}
	byAttr[attr] = fn
	return r
}

// Lookup finds the resolver for attr on class.
func (r *Registry) Lookup(schema *domain.Schema, class, attr string) (Resolver, bool) {
	for c := class; c != ""; {
		if fn, ok := r.entries[c][attr]; ok {
			return fn, true
		}
		decl, ok := schema.Class(c)
		if !ok {
			break
		}
		c = decl.Base
	}
	fn, ok := r.entries[AnyClass][attr]
	return fn, ok
}

// DefaultRegistry registers the resolvers every card template uses.
func DefaultRegistry() *Registry {
	return NewRegistry().
		Register(AnyClass, "card_id", func(o *Object) (any, error) {
			id, err := o.CardID()
			if err != nil {
				return nil, err
			}
			return id.String(), nil
		}).
		Register(AnyClass, "mirror_count", func(o *Object) (any, error) {
			set, err := o.MirrorSet()
			if err != nil {
				return nil, err
			}
			return len(set), nil
		}).
		Register(AnyClass, "accordion_children", func(o *Object) (any, error) {
			return o.AccordionChildren(), nil
		}).
		Register(AnyClass, "class_label", func(o *Object) (any, error) {
			return o.ClassLabel(), nil
		}).
		Register(AnyClass, "containers", func(o *Object) (any, error) {
			return o.Containers(), nil
		})
}
