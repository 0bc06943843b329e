// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage persists serialized model sessions.
//
// Sessions live in two tiers. The fast tier is an in-process LRU with
// per-entry expiry; the durable tier is an embedded database (BadgerDB or
// SQLite) that survives restarts. Store writes to both and reads
// fast-then-durable, refilling the fast tier on a durable hit.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a key that is absent or expired.
var ErrNotFound = errors.New("key not found")

// ErrClosed indicates use of a tier after Close.
var ErrClosed = errors.New("storage tier closed")

// Tier is one storage layer.
//
// A ttl <= 0 stores the value without expiry.
type Tier interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
