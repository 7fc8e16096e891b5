// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ClarionAI/clarion/pkg/extensions"
	"github.com/ClarionAI/clarion/pkg/validation"
	"github.com/ClarionAI/clarion/services/analysis"
	"github.com/ClarionAI/clarion/services/assembly"
	"github.com/ClarionAI/clarion/services/orchestrator/datatypes"
	"github.com/ClarionAI/clarion/services/orchestrator/middleware"
	"github.com/ClarionAI/clarion/services/orchestrator/observability"
)

var rewriteTracer = otel.Tracer("clarion.orchestrator.handlers")

// HandleRewrite runs the full pipeline for one block: detection,
// confidence gating, and the assembly-line rewrite. Concurrent
// requests for the same (session, block) pair are rejected with 409 so
// the editor can retry after the in-flight pass settles.
func HandleRewrite(
	analyzer *analysis.Analyzer,
	orch *assembly.Orchestrator,
	opts extensions.ServiceOptions,
	metrics *observability.RewriteMetrics,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := rewriteTracer.Start(c.Request.Context(), "HandleRewrite")
		defer span.End()
		start := time.Now()

		var req datatypes.RewriteRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the rewrite request", "error", err)
			metrics.RecordError(observability.EndpointRewrite, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body"})
			return
		}
		req.EnsureDefaults()
		if err := req.Validate(); err != nil {
			metrics.RecordError(observability.EndpointRewrite, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error(), RequestID: req.RequestID})
			return
		}
		if err := validation.ValidateSessionID(req.SessionID); err != nil {
			metrics.RecordError(observability.EndpointRewrite, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error(), RequestID: req.RequestID})
			return
		}
		if err := validation.ValidateBlockID(req.BlockID); err != nil {
			metrics.RecordError(observability.EndpointRewrite, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error(), RequestID: req.RequestID})
			return
		}
		span.SetAttributes(
			attribute.String("session_id", req.SessionID),
			attribute.String("block_id", req.BlockID),
		)

		// Outbound content filtering runs before anything can reach a
		// hosted backend.
		filtered, err := opts.ContentFilter.FilterOutbound(ctx, req.Content)
		if err != nil {
			span.RecordError(err)
			metrics.RecordError(observability.EndpointRewrite, observability.ErrorCodeInternal)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "content filter failed", RequestID: req.RequestID})
			return
		}
		if filtered.Blocked {
			slog.Warn("Blocked rewrite request by content filter",
				"session_id", req.SessionID, "block_id", req.BlockID,
				"detections", len(filtered.Detections))
			auditEvent(c, opts, "rewrite_blocked", req.SessionID)
			c.JSON(http.StatusForbidden, datatypes.ErrorResponse{Error: "content blocked by filter", RequestID: req.RequestID})
			return
		}
		content := filtered.Content

		auditEvent(c, opts, "rewrite_requested", req.SessionID)

		report := analyzer.AnalyzeBlock(ctx, req.DetectContext(), content)
		for _, v := range report.Violations {
			metrics.RecordViolation(string(v.Detection.Kind), string(v.Severity))
		}

		metrics.RewriteStarted()
		result, err := orch.RewriteBlock(ctx, assembly.Request{
			SessionID:  req.SessionID,
			BlockID:    req.BlockID,
			Content:    content,
			BlockType:  req.DetectContext().BlockType,
			Violations: report.Violations,
		})
		metrics.RewriteEnded()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			switch {
			case errors.Is(err, assembly.ErrRewriteInFlight):
				metrics.RecordError(observability.EndpointRewrite, observability.ErrorCodeInFlight)
				c.JSON(http.StatusConflict, datatypes.ErrorResponse{Error: "a rewrite for this block is already in flight", RequestID: req.RequestID})
			case errors.Is(err, assembly.ErrEmptySession),
				errors.Is(err, assembly.ErrEmptyBlock),
				errors.Is(err, assembly.ErrEmptyContent),
				errors.Is(err, assembly.ErrUnknownBlockType):
				metrics.RecordError(observability.EndpointRewrite, observability.ErrorCodeValidation)
				c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error(), RequestID: req.RequestID})
			default:
				slog.Error("Rewrite failed", "session_id", req.SessionID, "block_id", req.BlockID, "error", err)
				metrics.RecordError(observability.EndpointRewrite, observability.ErrorCodeInternal)
				c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "rewrite failed", RequestID: req.RequestID})
			}
			return
		}

		resp := buildRewriteResponse(&req, result, metrics)
		resp.ProcessingTimeMs = time.Since(start).Milliseconds()

		status := "success"
		if result.Cancelled {
			status = "cancelled"
		}
		metrics.RecordRewrite(status, time.Since(start).Seconds())
		metrics.RecordRequest(observability.EndpointRewrite, true)

		slog.Info("Block rewrite finished",
			"session_id", req.SessionID,
			"block_id", req.BlockID,
			"errors_fixed", resp.ErrorsFixed,
			"confidence", resp.Confidence,
			"cancelled", resp.Cancelled,
			"elapsed_ms", resp.ProcessingTimeMs)
		c.JSON(http.StatusOK, resp)
	}
}

func buildRewriteResponse(req *datatypes.RewriteRequest, result *assembly.Result, metrics *observability.RewriteMetrics) *datatypes.RewriteResponse {
	resp := datatypes.NewRewriteResponse(req.RequestID)
	resp.SessionID = result.SessionID
	resp.BlockID = result.BlockID
	resp.RevisedText = result.RevisedText
	resp.ErrorsFixed = result.ErrorsFixed
	resp.SurgicalFixed = result.SurgicalFixed
	resp.Confidence = result.Confidence
	resp.Cancelled = result.Cancelled

	metrics.RecordFixes("surgical", result.SurgicalFixed)
	for _, run := range result.StationRuns() {
		resp.Stations = append(resp.Stations, datatypes.StationBreakdown{
			Station:    run.Station.Name,
			Ordinal:    run.Station.Ordinal,
			Status:     string(run.Status),
			FixedCount: run.FixedCount,
			Confidence: run.Confidence,
			ElapsedMs:  run.Elapsed.Milliseconds(),
			Reason:     run.Reason,
		})
		metrics.RecordStation(run.Station.Name, string(run.Status), run.Elapsed.Seconds())
		metrics.RecordFixes(run.Station.Name, run.FixedCount)
	}
	return resp
}

// auditEvent records an audit entry without failing the request.
func auditEvent(c *gin.Context, opts extensions.ServiceOptions, eventType, sessionID string) {
	userID := ""
	if info := middleware.GetAuthInfo(c); info != nil {
		userID = info.UserID
	}
	if err := opts.AuditLogger.Log(c.Request.Context(), extensions.AuditEvent{
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		Detail:    map[string]any{"request_id": middleware.GetRequestID(c)},
	}); err != nil {
		slog.Warn("Failed to write audit event", "event_type", eventType, "error", err)
	}
}
