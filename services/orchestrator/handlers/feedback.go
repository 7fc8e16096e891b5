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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/ClarionAI/clarion/services/feedback"
	"github.com/ClarionAI/clarion/services/orchestrator/datatypes"
	"github.com/ClarionAI/clarion/services/orchestrator/middleware"
	"github.com/ClarionAI/clarion/services/orchestrator/observability"
)

var feedbackTracer = otel.Tracer("clarion.orchestrator.handlers")

// HandleFeedback records one accept/reject decision for a flagged
// pattern and schedules a snapshot rebuild so the evidence scorer
// picks the new acceptance rate up without a restart.
func HandleFeedback(store *feedback.Store, refresher *feedback.Refresher, metrics *observability.RewriteMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := feedbackTracer.Start(c.Request.Context(), "HandleFeedback")
		defer span.End()
		start := time.Now()

		var req datatypes.FeedbackRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to parse the feedback request", "error", err)
			metrics.RecordError(observability.EndpointFeedback, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: "invalid request body"})
			return
		}
		req.EnsureDefaults()
		if err := req.Validate(); err != nil {
			metrics.RecordError(observability.EndpointFeedback, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		if err := store.RecordDecision(req.PatternKey(), req.Accepted); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to record feedback decision", "kind", req.Kind, "lemma", req.Lemma, "error", err)
			metrics.RecordError(observability.EndpointFeedback, observability.ErrorCodeFeedbackStore)
			c.JSON(http.StatusInternalServerError, datatypes.ErrorResponse{Error: "failed to record decision"})
			return
		}
		if refresher != nil {
			refresher.Rebuild()
		}

		metrics.RecordFeedback(req.Accepted)
		metrics.RecordRequest(observability.EndpointFeedback, true)

		resp := datatypes.NewFeedbackResponse(middleware.GetRequestID(c))
		slog.Info("Feedback recorded",
			"kind", req.Kind,
			"lemma", req.Lemma,
			"accepted", req.Accepted,
			"elapsed_ms", time.Since(start).Milliseconds())
		c.JSON(http.StatusOK, resp)
	}
}
