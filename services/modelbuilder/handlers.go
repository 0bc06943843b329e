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
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/domain"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/edit"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/importer"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/timeseries"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/validation"
	"github.com/AleutianAI/modelbuilder/services/modelbuilder/web"
)

// maxBodyFactor bounds request documents relative to the payload ceiling.
// Documents arrive without calculated attributes, so the serialized output
// is rarely smaller than its input.
const maxBodyFactor = 4

// Handlers contains the HTTP handlers of the model builder.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// errorStatus maps service errors to an HTTP status and a stable code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, web.ErrObjectNotFound), errors.Is(err, domain.ErrNodeNotFound):
		return http.StatusNotFound, "OBJECT_NOT_FOUND"
	case errors.Is(err, importer.ErrPayloadTooLarge), errors.Is(err, domain.ErrCapacityExceeded):
		return http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"
	case errors.Is(err, validation.ErrStructural):
		return http.StatusUnprocessableEntity, "VALIDATION_FAILED"
	case errors.Is(err, ErrObjectReferenced), errors.Is(err, domain.ErrNodeReferenced):
		return http.StatusConflict, "OBJECT_REFERENCED"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, ErrExportDisabled):
		return http.StatusServiceUnavailable, "EXPORT_DISABLED"
	case errors.Is(err, edit.ErrNoMatchingAttribute):
		return http.StatusInternalServerError, "SCHEMA_MISMATCH"
	case errors.Is(err, domain.ErrInvalidValue),
		errors.Is(err, domain.ErrUnknownAttribute),
		errors.Is(err, domain.ErrUnknownClass),
		errors.Is(err, domain.ErrDuplicateNode),
		errors.Is(err, domain.ErrClassMismatch),
		errors.Is(err, domain.ErrMalformedDocument),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, web.ErrInvalidCardID),
		errors.Is(err, web.ErrPermission),
		errors.Is(err, edit.ErrNotLinked),
		errors.Is(err, timeseries.ErrNotUTC),
		errors.Is(err, timeseries.ErrMixedUnits),
		errors.Is(err, timeseries.ErrUnknownUnit),
		errors.Is(err, timeseries.ErrFractionalOffset),
		errors.Is(err, timeseries.ErrOutOfBounds):
		return http.StatusBadRequest, "INVALID_VALUE"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// writeError logs err and writes the mapped ErrorResponse.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err, "code", code)
	} else {
		logger.Warn("request rejected", "error", err, "code", code)
	}
	c.JSON(status, ErrorResponse{Error: http.StatusText(status), Code: code, Details: err.Error()})
}

func badRequest(c *gin.Context, logger *slog.Logger, err error) {
	logger.Warn("Invalid request body", "error", err)
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "Invalid request body",
		Code:    "INVALID_REQUEST",
		Details: err.Error(),
	})
}

// HandleCreateSession handles POST /v1/modelbuilder/sessions.
//
// Response:
//
//	201 Created: SessionResponse
//	400 Bad Request: Invalid body
func (h *Handlers) HandleCreateSession(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleCreateSession")

	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, logger, err)
			return
		}
	}
	resp, err := h.svc.CreateSession(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// HandleSnapshot handles GET /v1/modelbuilder/sessions/:id.
func (h *Handlers) HandleSnapshot(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleSnapshot")

	resp, err := h.svc.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleDeleteSession handles DELETE /v1/modelbuilder/sessions/:id.
func (h *Handlers) HandleDeleteSession(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleDeleteSession")

	if err := h.svc.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleImport handles POST /v1/modelbuilder/sessions/:id/import.
//
// Description:
//
//	The request body is the document to import. Progress is not streamed
//	on this endpoint; use the websocket variant for that.
//
// Response:
//
//	200 OK: ImportResponse
//	404 Not Found: Unknown session
//	413 Request Entity Too Large: Payload ceiling crossed
//	429 Too Many Requests: Import rate limit
func (h *Handlers) HandleImport(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleImport")

	limit := int64(h.svc.Limits().MaxPayloadMB * importer.BytesPerMB * maxBodyFactor)
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error: "Request body too large",
				Code:  "PAYLOAD_TOO_LARGE",
			})
			return
		}
		badRequest(c, logger, err)
		return
	}

	sessionID := c.Param("id")
	logger.Info("Importing document", "session_id", sessionID, "bytes", len(body))
	resp, err := h.svc.Import(c.Request.Context(), sessionID, body, nil)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleCards handles GET /v1/modelbuilder/sessions/:id/objects/:object_id/cards.
func (h *Handlers) HandleCards(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleCards")

	resp, err := h.svc.Cards(c.Request.Context(), c.Param("id"), c.Param("object_id"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleCreateObject handles POST /v1/modelbuilder/sessions/:id/objects.
//
// Response:
//
//	201 Created: CreateObjectResponse
//	400 Bad Request: Unknown class or invalid attribute
//	404 Not Found: Unknown session or parent
func (h *Handlers) HandleCreateObject(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleCreateObject")

	var req CreateObjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}
	resp, err := h.svc.CreateObject(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// HandleEditObject handles PATCH /v1/modelbuilder/sessions/:id/objects/:object_id.
//
// Response:
//
//	200 OK: edit.Result with one delta per card of the object
//	400 Bad Request: Invalid value
func (h *Handlers) HandleEditObject(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleEditObject")

	var req EditObjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}
	resp, err := h.svc.EditObject(c.Request.Context(), c.Param("id"), c.Param("object_id"), req.CardID, req.Attributes)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleDeleteObject handles DELETE /v1/modelbuilder/sessions/:id/objects/:object_id.
//
// Response:
//
//	200 OK: DeleteObjectResponse
//	409 Conflict: Object held by a reference attribute
func (h *Handlers) HandleDeleteObject(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleDeleteObject")

	resp, err := h.svc.DeleteObject(c.Request.Context(), c.Param("id"), c.Param("object_id"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleValidate handles POST /v1/modelbuilder/sessions/:id/validate.
//
// Response:
//
//	200 OK: validation.Result with no errors
//	422 Unprocessable Entity: validation.Result listing the errors
func (h *Handlers) HandleValidate(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleValidate")

	res, err := h.svc.Validate(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	if !res.OK() {
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// HandleDaily handles GET /v1/modelbuilder/sessions/:id/timeseries/daily.
func (h *Handlers) HandleDaily(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleDaily")

	resp, err := h.svc.DailyTimeseries(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleExport handles POST /v1/modelbuilder/sessions/:id/timeseries/export.
func (h *Handlers) HandleExport(c *gin.Context) {
	logger := slog.With("request_id", getOrCreateRequestID(c), "handler", "HandleExport")

	n, err := h.svc.ExportDaily(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ExportResponse{Exported: n})
}

// HandleHealth handles GET /v1/modelbuilder/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: ServiceVersion})
}

// HandleReady handles GET /v1/modelbuilder/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	if err := h.svc.Ready(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{Ready: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, ReadyResponse{Ready: true})
}
