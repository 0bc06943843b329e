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
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteTier is a durable tier backed by a single SQLite file.
//
// Expired rows are skipped on read and removed by Sweep.
//
// Thread Safety: Safe for concurrent use. Writes are serialized by
// limiting the pool to one connection.
type SQLiteTier struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteTier opens or creates the database at path.
func OpenSQLiteTier(path string) (*SQLiteTier, error) {
	if path == "" {
		return nil, errors.New("path is required for sqlite database")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create database directory for %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close() // ignore error
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		_ = db.Close() // ignore error
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	return &SQLiteTier{db: db, now: time.Now}, nil
}

// Get implements Tier.
func (t *SQLiteTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expires int64
	err := t.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM sessions WHERE key = ?", key).Scan(&value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	if expires != 0 && t.now().UnixNano() >= expires {
		return nil, false, nil
	}
	return value, true, nil
}

// Set implements Tier.
func (t *SQLiteTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires int64
	if ttl > 0 {
		expires = t.now().Add(ttl).UnixNano()
	}
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO sessions (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
	`, key, value, expires)
	if err != nil {
		return fmt.Errorf("sqlite set %s: %w", key, err)
	}
	return nil
}

// Delete implements Tier.
func (t *SQLiteTier) Delete(ctx context.Context, key string) error {
	if _, err := t.db.ExecContext(ctx, "DELETE FROM sessions WHERE key = ?", key); err != nil {
		return fmt.Errorf("sqlite delete %s: %w", key, err)
	}
	return nil
}

// Sweep removes expired rows and returns how many were removed.
func (t *SQLiteTier) Sweep(ctx context.Context) (int64, error) {
	res, err := t.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at != 0 AND expires_at <= ?", t.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqlite sweep: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (t *SQLiteTier) Close() error {
	return t.db.Close()
}
