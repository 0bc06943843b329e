// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package edit

import (
	"context"
	"fmt"
	"slices"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/web"
)

// FindListAttributeForChild returns the first list attribute of parent,
// in declaration order, whose element class accepts child.
func FindListAttributeForChild(parent, child *web.Object) (string, bool) {
	schema := parent.Model().Schema()
	for _, attrSpec := range schema.ListAttrs(parent.Class()) {
		if schema.IsA(child.Class(), attrSpec.ElemClass) {
			return attrSpec.Name, true
		}
	}
	return "", false
}

// BuildLinkEditData returns the new full value of attr with childID
// appended at the end.
func BuildLinkEditData(parent *web.Object, childID, attr string) domain.ParsedAttributes {
	ids := append(parent.ListIDs(attr), childID)
	return domain.ParsedAttributes{attr: ids}
}

// LinkResult is the edit to feed to Service.Edit to (un)link a child.
type LinkResult struct {
	Parent   *web.Object
	Attr     string
	EditData domain.ParsedAttributes
}

// Link prepares appending child to the matching list attribute of the
// object parentID.
//
// Outputs:
//
//	*LinkResult - Parent projection and edit data.
//	error       - web.ErrObjectNotFound, or ErrNoMatchingAttribute when the
//	              parent's schema has no list accepting the child's class.
func Link(m *web.Model, parentID string, child *web.Object) (*LinkResult, error) {
	parent, err := m.Object(parentID)
	if err != nil {
		return nil, err
	}
	attr, ok := FindListAttributeForChild(parent, child)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot hold %s", ErrNoMatchingAttribute, parent.Class(), child.Class())
	}
	return &LinkResult{
		Parent:   parent,
		Attr:     attr,
		EditData: BuildLinkEditData(parent, child.ID(), attr),
	}, nil
}

// Unlink prepares removing every occurrence of childID from the list
// attributes of parentID.
func Unlink(m *web.Model, parentID, childID string) (*LinkResult, error) {
	parent, err := m.Object(parentID)
	if err != nil {
		return nil, err
	}
	data := domain.ParsedAttributes{}
	var first string
	for _, attrSpec := range m.Schema().ListAttrs(parent.Class()) {
		ids := parent.ListIDs(attrSpec.Name)
		if !slices.Contains(ids, childID) {
			continue
		}
		data[attrSpec.Name] = slices.DeleteFunc(ids, func(id string) bool { return id == childID })
		if first == "" {
			first = attrSpec.Name
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotLinked, childID, parentID)
	}
	return &LinkResult{Parent: parent, Attr: first, EditData: data}, nil
}

// LinkChild links child under parentID and runs the resulting edit.
func (s *Service) LinkChild(ctx context.Context, m *web.Model, parentID string, child *web.Object) (*Result, error) {
	link, err := Link(m, parentID, child)
	if err != nil {
		return nil, err
	}
	return s.Edit(ctx, link.Parent, link.EditData)
}

// UnlinkChild removes childID from parentID's lists and runs the
// resulting edit, which deletes the child when nothing else holds it.
func (s *Service) UnlinkChild(ctx context.Context, m *web.Model, parentID, childID string) (*Result, error) {
	link, err := Unlink(m, parentID, childID)
	if err != nil {
		return nil, err
	}
	return s.Edit(ctx, link.Parent, link.EditData)
}
