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

import "errors"

var (
	// ErrObjectNotFound indicates an object ID that is not in the model.
	ErrObjectNotFound = errors.New("object not found")

	// ErrPermission indicates an operation the projection layer forbids:
	// storing a projection into the domain, or asking for the card ID of a
	// projection that is only displayed through its containers.
	ErrPermission = errors.New("operation not permitted on projection")

	// ErrContainmentCycle indicates list containment that loops back on itself.
	ErrContainmentCycle = errors.New("containment cycle")

	// ErrInvalidCardID indicates a card ID string that cannot be parsed.
	ErrInvalidCardID = errors.New("invalid card id")
)
