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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// StoreConfig configures a Store.
type StoreConfig struct {
	// KeyPrefix is prepended to every key, e.g. "session:".
	KeyPrefix string

	// FastTTL is the expiry of fast tier entries.
	FastTTL time.Duration

	// DurableTTL is the expiry of durable tier entries. 0 keeps them forever.
	DurableTTL time.Duration
}

// Store combines a fast tier and an optional durable tier.
//
// Thread Safety: Safe for concurrent use. Concurrent misses on the same
// key share one durable read.
type Store struct {
	fast    Tier
	durable Tier
	cfg     StoreConfig
	group   singleflight.Group
	logger  *slog.Logger
}

// NewStore creates a store. durable may be nil for a memory-only setup.
func NewStore(fast, durable Tier, cfg StoreConfig, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{fast: fast, durable: durable, cfg: cfg, logger: logger}
}

func (s *Store) key(k string) string { return s.cfg.KeyPrefix + k }

// Save writes value to every tier.
func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	k := s.key(key)
	if err := s.fast.Set(ctx, k, value, s.cfg.FastTTL); err != nil {
		return fmt.Errorf("fast tier: %w", err)
	}
	if s.durable != nil {
		if err := s.durable.Set(ctx, k, value, s.cfg.DurableTTL); err != nil {
			return fmt.Errorf("durable tier: %w", err)
		}
	}
	return nil
}

// Get reads key from the fast tier, then the durable tier.
//
// Outputs:
//
//	[]byte - The value.
//	error  - ErrNotFound when no tier holds the key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	k := s.key(key)
	value, ok, err := s.fast.Get(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("fast tier: %w", err)
	}
	if ok {
		return value, nil
	}
	if s.durable == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	v, err, shared := s.group.Do(k, func() (any, error) {
		value, ok, err := s.durable.Get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("durable tier: %w", err)
		}
		if !ok {
			return nil, nil
		}
		if err := s.fast.Set(ctx, k, value, s.cfg.FastTTL); err != nil {
			s.logger.Warn("fast tier backfill failed", slog.String("key", k), slog.String("error", err.Error()))
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if shared {
		s.logger.Debug("durable read shared", slog.String("key", k))
	}
	return v.([]byte), nil
}

// Delete removes key from every tier.
func (s *Store) Delete(ctx context.Context, key string) error {
	k := s.key(key)
	err := s.fast.Delete(ctx, k)
	if s.durable != nil {
		err = errors.Join(err, s.durable.Delete(ctx, k))
	}
	return err
}

// SweepExpired asks the durable tier to drop expired entries when it
// supports it. Badger expires entries natively and is skipped.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	sweeper, ok := s.durable.(interface {
		Sweep(ctx context.Context) (int64, error)
	})
	if !ok {
		return 0, nil
	}
	return sweeper.Sweep(ctx)
}

// Close closes every tier.
func (s *Store) Close() error {
	err := s.fast.Close()
	if s.durable != nil {
		err = errors.Join(err, s.durable.Close())
	}
	return err
}
