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

import "errors"

// Sentinel errors for graph and schema operations.
var (
	// ErrUnknownClass indicates a class name that is not registered in the schema.
	ErrUnknownClass = errors.New("unknown class")

	// ErrInvalidID indicates a node ID that cannot appear in a card ID.
	ErrInvalidID = errors.New("invalid node id")

	// ErrUnknownAttribute indicates an attribute the class does not declare.
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrNodeNotFound indicates an ID that is not present in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode indicates an attempt to add a node whose ID already exists.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrNodeReferenced indicates a delete of a node that still has containers.
	ErrNodeReferenced = errors.New("node is still referenced")

	// ErrInvalidValue indicates a value that cannot be coerced to the attribute's kind.
	ErrInvalidValue = errors.New("invalid attribute value")

	// ErrClassMismatch indicates a reference to a node of the wrong class.
	ErrClassMismatch = errors.New("referenced node has the wrong class")

	// ErrCapacityExceeded indicates the graph reached its configured node ceiling.
	ErrCapacityExceeded = errors.New("maximum node count exceeded")

	// ErrNoRoot indicates a graph without a System node.
	ErrNoRoot = errors.New("graph has no System root")

	// ErrMalformedDocument indicates a serialized graph that does not follow
	// the {Class: {id: {...}}} layout.
	ErrMalformedDocument = errors.New("malformed graph document")
)
