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

import "errors"

var (
	// ErrNoMatchingAttribute indicates a parent with no list attribute
	// accepting the child's class.
	ErrNoMatchingAttribute = errors.New("no list attribute accepts this child")

	// ErrNotLinked indicates an unlink of a child the parent does not hold.
	ErrNotLinked = errors.New("child is not linked to parent")

	// ErrNoCards indicates an edited object with an empty mirror set.
	ErrNoCards = errors.New("object has no cards")
)
