// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"time"

	"github.com/google/uuid"

	"github.com/ClarionAI/clarion/services/analysis/detect"
	"github.com/ClarionAI/clarion/services/feedback"
)

// FeedbackRequest is the body for POST /v1/feedback. It records a
// user's accept or reject decision on a flagged pattern, feeding the
// confidence engine's feedback stage.
type FeedbackRequest struct {
	RequestID string `json:"request_id" validate:"omitempty,uuid4"`
	Timestamp int64  `json:"timestamp" validate:"gte=0"`

	// Kind is the detection kind the decision applies to.
	Kind string `json:"kind" validate:"required,max=64"`

	// Lemma is the normalized form of the flagged text.
	Lemma string `json:"lemma" validate:"required,max=128"`

	// ContentType scopes the pattern to an editorial register.
	ContentType string `json:"content_type" validate:"omitempty,oneof=technical creative legal api procedural marketing general"`

	// Accepted is true when the user applied the suggestion.
	Accepted bool `json:"accepted"`
}

// Validate checks the request against its validation tags.
func (r *FeedbackRequest) Validate() error {
	return apiValidate.Struct(r)
}

// EnsureDefaults populates server-side defaults.
func (r *FeedbackRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = uuid.New().String()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
	if r.ContentType == "" {
		r.ContentType = string(detect.ContentGeneral)
	}
}

// PatternKey converts the request to the feedback store's key form.
func (r *FeedbackRequest) PatternKey() feedback.PatternKey {
	return feedback.PatternKey{
		Kind:        detect.Kind(r.Kind),
		Lemma:       r.Lemma,
		ContentType: detect.ContentType(r.ContentType),
	}
}

// FeedbackResponse acknowledges a recorded decision.
type FeedbackResponse struct {
	ResponseID string `json:"response_id"`
	RequestID  string `json:"request_id"`
	Timestamp  int64  `json:"timestamp"`
	Recorded   bool   `json:"recorded"`
}

// NewFeedbackResponse creates an acknowledgement for requestID.
func NewFeedbackResponse(requestID string) *FeedbackResponse {
	return &FeedbackResponse{
		ResponseID: uuid.New().String(),
		RequestID:  requestID,
		Timestamp:  time.Now().UnixMilli(),
		Recorded:   true,
	}
}
