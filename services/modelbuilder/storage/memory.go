// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"container/list"
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultMemoryCapacity is used when NewMemoryTier gets a non-positive capacity.
const DefaultMemoryCapacity = 256

// MemoryTier is an LRU cache of sessions with per-entry expiry.
//
// Description:
//
//	Evicts the least recently used entry when full. Expired entries are
//	dropped lazily on access.
//
// Thread Safety: All methods are safe for concurrent use.
type MemoryTier struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // Front = most recent, Back = least recent
	now      func() time.Time
	closed   bool

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

type memoryEntry struct {
	key     string
	value   []byte
	expires time.Time
}

// NewMemoryTier creates a memory tier holding at most capacity sessions.
func NewMemoryTier(capacity int) *MemoryTier {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryTier{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get implements Tier. The returned slice is a copy.
func (m *MemoryTier) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	elem, ok := m.items[key]
	if !ok {
		m.misses.Add(1)
		return nil, false, nil
	}
	entry := elem.Value.(*memoryEntry)
	if !entry.expires.IsZero() && !m.now().Before(entry.expires) {
		m.order.Remove(elem)
		delete(m.items, key)
		m.misses.Add(1)
		return nil, false, nil
	}
	m.order.MoveToFront(elem)
	m.hits.Add(1)
	return slices.Clone(entry.value), true, nil
}

// Set implements Tier.
func (m *MemoryTier) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	var expires time.Time
	if ttl > 0 {
		expires = m.now().Add(ttl)
	}
	if elem, ok := m.items[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.value = slices.Clone(value)
		entry.expires = expires
		m.order.MoveToFront(elem)
		return nil
	}
	for m.order.Len() >= m.capacity {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.items, oldest.Value.(*memoryEntry).key)
		m.evictions.Add(1)
	}
	m.items[key] = m.order.PushFront(&memoryEntry{key: key, value: slices.Clone(value), expires: expires})
	return nil
}

// Delete implements Tier.
func (m *MemoryTier) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if elem, ok := m.items[key]; ok {
		m.order.Remove(elem)
		delete(m.items, key)
	}
	return nil
}

// Close drops every entry.
func (m *MemoryTier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]*list.Element)
	m.order.Init()
	m.closed = true
	return nil
}

// Len returns the number of entries, expired ones included.
func (m *MemoryTier) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// MemoryStats is a snapshot of cache counters.
type MemoryStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// Stats returns the hit, miss and eviction counters.
func (m *MemoryTier) Stats() MemoryStats {
	return MemoryStats{
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Evictions: m.evictions.Load(),
	}
}
