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

import (
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/edit"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/timeseries"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/validation"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable code, e.g. "SESSION_NOT_FOUND".
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}

// CreateSessionRequest is the optional body of POST /sessions.
type CreateSessionRequest struct {
	// Name of the system root. Defaults to "System".
	Name string `json:"name" binding:"omitempty,max=200"`
}

// SessionResponse describes a stored session.
type SessionResponse struct {
	SessionID string  `json:"session_id"`
	SizeMB    float64 `json:"size_mb"`
	Objects   int     `json:"objects"`
}

// ImportResponse is returned by a completed import.
type ImportResponse struct {
	SessionID       string            `json:"session_id"`
	SerializedCount int               `json:"serialized_count"`
	TotalMB         float64           `json:"total_mb"`
	Validation      validation.Result `json:"validation"`
}

// SnapshotResponse is a whole session: every document and the accordion
// tree under the system root.
type SnapshotResponse struct {
	SessionID string                    `json:"session_id"`
	Objects   map[string]map[string]any `json:"objects"`
	Tree      *TreeNode                 `json:"tree,omitempty"`
}

// TreeNode is one card of the accordion tree.
type TreeNode struct {
	CardID   string      `json:"card_id"`
	ObjectID string      `json:"object_id"`
	Class    string      `json:"class"`
	Name     string      `json:"name"`
	Children []*TreeNode `json:"children,omitempty"`
}

// CardView is one rendered card of an object.
type CardView struct {
	CardID     string         `json:"card_id"`
	ObjectID   string         `json:"object_id"`
	Class      string         `json:"class"`
	ClassLabel string         `json:"class_label"`
	Name       string         `json:"name"`
	ParentCard string         `json:"parent_card,omitempty"`
	Children   []string       `json:"children"`
	Attributes map[string]any `json:"attributes"`
}

// CardsResponse lists the mirror set of an object.
type CardsResponse struct {
	ObjectID string     `json:"object_id"`
	Cards    []CardView `json:"cards"`
}

// CreateObjectRequest is the body of POST /sessions/:id/objects.
type CreateObjectRequest struct {
	Class string `json:"class" binding:"required"`

	// ID is optional; a fresh one is generated when empty.
	ID string `json:"id" binding:"omitempty,max=200,excludes=__"`

	// ParentID links the new object into the first matching list
	// attribute of this parent.
	ParentID string `json:"parent_id"`

	Attributes map[string]any `json:"attributes"`
}

// CreateObjectResponse is returned after a create.
type CreateObjectResponse struct {
	ObjectID string       `json:"object_id"`
	Link     *edit.Result `json:"link,omitempty"`
}

// EditObjectRequest is the body of PATCH /sessions/:id/objects/:object_id.
type EditObjectRequest struct {
	// CardID selects the card the edit was made on. Optional.
	CardID     string         `json:"card_id"`
	Attributes map[string]any `json:"attributes" binding:"required"`
}

// DeleteObjectResponse lists everything removed by a delete.
type DeleteObjectResponse struct {
	ObjectID string             `json:"object_id"`
	Deleted  []string           `json:"deleted"`
	Mirrors  []edit.MirrorDelta `json:"mirrors"`
}

// NamedDailySeries is the daily aggregate of one usage pattern, or of all
// of them when ObjectID is empty.
type NamedDailySeries struct {
	ObjectID string                 `json:"object_id,omitempty"`
	Name     string                 `json:"name"`
	Series   timeseries.DailySeries `json:"series"`
}

// DailyResponse is returned by GET /sessions/:id/timeseries/daily.
type DailyResponse struct {
	Series []NamedDailySeries `json:"series"`
}

// ExportResponse is returned by POST /sessions/:id/timeseries/export.
type ExportResponse struct {
	Exported int `json:"exported"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse is returned by GET /ready.
type ReadyResponse struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}
