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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/modelbuilder/services/modelbuilder/importer"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024 * 1024,
	WriteBufferSize: 64 * 1024,
}

// Import websocket message types.
const (
	WSTypeProgress = "progress"
	WSTypeResult   = "result"
	WSTypeError    = "error"
)

// WSMessage is every frame the server sends on the import websocket.
type WSMessage struct {
	Type     string             `json:"type"`
	Progress *importer.Progress `json:"progress,omitempty"`
	Result   *ImportResponse    `json:"result,omitempty"`
	Error    *ErrorResponse     `json:"error,omitempty"`
}

func sendJSON(ws *websocket.Conn, v any) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleImportWebSocket handles GET /v1/modelbuilder/sessions/:id/import/ws.
//
// Description:
//
//	After the upgrade the client sends the document as one message. The
//	server streams a "progress" frame per serialized node and per phase,
//	then one "result" or "error" frame, and closes the connection.
//	Progress frames let the client show how close the import runs to
//	the payload ceiling while it is still running.
func (h *Handlers) HandleImportWebSocket(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	sessionID := c.Param("id")
	logger := slog.With("request_id", requestID, "handler", "HandleImportWebSocket", "session_id", sessionID)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()

	ws.SetReadLimit(int64(h.svc.Limits().MaxPayloadMB * importer.BytesPerMB * maxBodyFactor))
	_, data, err := ws.ReadMessage()
	if err != nil {
		logger.Info("Websocket client disconnected before sending a document", "error", err)
		return
	}

	// A failed progress write means the client left; the import still
	// completes so the session is not left half written.
	clientGone := false
	progress := func(p importer.Progress) {
		if clientGone {
			return
		}
		if err := sendJSON(ws, WSMessage{Type: WSTypeProgress, Progress: &p}); err != nil {
			clientGone = true
		}
	}

	resp, err := h.svc.Import(c.Request.Context(), sessionID, data, progress)
	if err != nil {
		status, code := errorStatus(err)
		logger.Warn("import failed", "error", err, "code", code)
		_ = sendJSON(ws, WSMessage{Type: WSTypeError, Error: &ErrorResponse{
			Error:   http.StatusText(status),
			Code:    code,
			Details: err.Error(),
		}})
		return
	}
	if !clientGone {
		_ = sendJSON(ws, WSMessage{Type: WSTypeResult, Result: resp})
	}
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "import complete"))
}
