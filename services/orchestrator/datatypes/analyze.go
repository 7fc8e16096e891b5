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

	"github.com/ClarionAI/clarion/services/analysis/gate"
)

// =============================================================================
// Analyze Request
// =============================================================================

// AnalyzeRequest is the body for POST /v1/analyze. The document is
// split into blocks server-side and analyzed concurrently.
type AnalyzeRequest struct {
	RequestID string `json:"request_id" validate:"omitempty,uuid4"`
	Timestamp int64  `json:"timestamp" validate:"gte=0"`

	// Document is the full text to analyze (max 1MB).
	Document string `json:"document" validate:"required,docbytes"`

	// ContentType is the editorial register applied to every block.
	ContentType string `json:"content_type" validate:"omitempty,oneof=technical creative legal api procedural marketing general"`

	Domain   string `json:"domain" validate:"max=128"`
	Audience string `json:"audience" validate:"max=128"`
}

// Validate checks the request against its validation tags.
func (r *AnalyzeRequest) Validate() error {
	return apiValidate.Struct(r)
}

// EnsureDefaults populates server-side defaults.
func (r *AnalyzeRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = uuid.New().String()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
	if r.ContentType == "" {
		r.ContentType = "general"
	}
}

// =============================================================================
// Analyze Response
// =============================================================================

// ViolationInfo is the wire form of an accepted violation.
type ViolationInfo struct {
	Kind        string   `json:"kind"`
	Severity    string   `json:"severity"`
	Confidence  float64  `json:"confidence"`
	FlaggedText string   `json:"flagged_text"`
	Sentence    string   `json:"sentence"`
	BlockIndex  int      `json:"block_index"`
	Suggestions []string `json:"suggestions,omitempty"`
	Validated   bool     `json:"validated,omitempty"`
}

// NewViolationInfo converts a gate violation for the wire.
func NewViolationInfo(v gate.Violation, blockIndex int) ViolationInfo {
	return ViolationInfo{
		Kind:        string(v.Detection.Kind),
		Severity:    string(v.Severity),
		Confidence:  v.Score.Value,
		FlaggedText: v.Detection.FlaggedText,
		Sentence:    v.Detection.Sentence,
		BlockIndex:  blockIndex,
		Suggestions: v.Suggestions,
		Validated:   v.Validated,
	}
}

// AnalyzeResponse is the body returned by POST /v1/analyze.
type AnalyzeResponse struct {
	ResponseID string `json:"response_id"`
	RequestID  string `json:"request_id"`
	Timestamp  int64  `json:"timestamp"`

	BlockCount int             `json:"block_count"`
	Violations []ViolationInfo `json:"violations"`

	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// NewAnalyzeResponse creates a response shell with server-generated
// identifiers.
func NewAnalyzeResponse(requestID string) *AnalyzeResponse {
	return &AnalyzeResponse{
		ResponseID: uuid.New().String(),
		RequestID:  requestID,
		Timestamp:  time.Now().UnixMilli(),
		Violations: []ViolationInfo{},
	}
}
