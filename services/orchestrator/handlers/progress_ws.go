// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ClarionAI/clarion/pkg/validation"
	"github.com/ClarionAI/clarion/services/assembly/progress"
	"github.com/ClarionAI/clarion/services/orchestrator/datatypes"
	"github.com/ClarionAI/clarion/services/orchestrator/observability"
)

var progressUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Local-first service; the editor plugin connects from a
		// file:// or extension origin.
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
}

// progressWriteTimeout bounds each websocket write so a stalled client
// cannot pin the handler goroutine.
const progressWriteTimeout = 10 * time.Second

func sendJSON(ws *websocket.Conn, v interface{}) error {
	if err := ws.SetWriteDeadline(time.Now().Add(progressWriteTimeout)); err != nil {
		return err
	}
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleProgressWS streams rewrite progress events for one
// (session, block) pair over a websocket. The stream closes after the
// terminal event (completed or cancelled) or when the client
// disconnects.
//
// Query parameters: session_id and block_id, both required.
func HandleProgressWS(tracker *progress.Tracker, metrics *observability.RewriteMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Query("session_id")
		blockID := c.Query("block_id")
		if err := validation.ValidateSessionID(sessionID); err != nil {
			metrics.RecordError(observability.EndpointProgressWS, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error()})
			return
		}
		if err := validation.ValidateBlockID(blockID); err != nil {
			metrics.RecordError(observability.EndpointProgressWS, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		// Subscribe before upgrading so no event between the two is
		// lost.
		events, cancel := tracker.Subscribe(sessionID, blockID)
		defer cancel()

		ws, err := progressUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			metrics.RecordError(observability.EndpointProgressWS, observability.ErrorCodeInternal)
			return
		}
		defer ws.Close()
		slog.Info("Progress subscriber connected", "session_id", sessionID, "block_id", blockID)

		// Drain client frames so ping/pong and close frames are
		// processed; a read error means the client went away.
		clientGone := make(chan struct{})
		go func() {
			defer close(clientGone)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := sendJSON(ws, ev); err != nil {
					metrics.RecordError(observability.EndpointProgressWS, observability.ErrorCodeClientDisconnect)
					return
				}
				if ev.Phase == progress.PhaseCompleted || ev.Phase == progress.PhaseCancelled {
					metrics.RecordRequest(observability.EndpointProgressWS, true)
					slog.Info("Progress stream finished",
						"session_id", sessionID,
						"block_id", blockID,
						"phase", ev.Phase)
					return
				}
			case <-clientGone:
				metrics.RecordError(observability.EndpointProgressWS, observability.ErrorCodeClientDisconnect)
				slog.Info("Progress subscriber disconnected", "session_id", sessionID, "block_id", blockID)
				return
			case <-c.Request.Context().Done():
				return
			}
		}
	}
}
