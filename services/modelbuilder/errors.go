// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package modelbuilder

import "errors"

var (
	// ErrSessionNotFound indicates a session ID with no stored graph.
	ErrSessionNotFound = errors.New("session not found")

	// ErrObjectReferenced indicates a delete of an object still held by a
	// reference attribute. References are not unlinked implicitly.
	ErrObjectReferenced = errors.New("object is referenced")

	// ErrRateLimited indicates too many imports on one session.
	ErrRateLimited = errors.New("import rate limit exceeded")

	// ErrExportDisabled indicates an export request while no InfluxDB
	// target is configured.
	ErrExportDisabled = errors.New("daily series export is not configured")
)
