// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides request and response structures for the
// orchestrator service.
//
// This file contains types for the rewrite endpoints. For analysis
// types, see analyze.go; for feedback types, see feedback.go.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ClarionAI/clarion/services/analysis/detect"
)

// =============================================================================
// Size Limits
// =============================================================================

const (
	// MaxBlockContentBytes is the maximum size of a single block's
	// content. Bounds memory per request; a prose block beyond 64KB is
	// a document, not a block.
	MaxBlockContentBytes = 64 * 1024

	// MaxDocumentBytes is the maximum size of a whole-document analyze
	// request.
	MaxDocumentBytes = 1024 * 1024
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// apiValidate is the validator instance for API datatypes, initialized
// in init() with custom validators.
var apiValidate *validator.Validate

func init() {
	apiValidate = validator.New()
	_ = apiValidate.RegisterValidation("blockbytes", validateBlockBytes)
	_ = apiValidate.RegisterValidation("docbytes", validateDocBytes)
}

// validateBlockBytes enforces MaxBlockContentBytes on a string field.
// Checks byte length, not rune count, to bound memory.
func validateBlockBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxBlockContentBytes
}

// validateDocBytes enforces MaxDocumentBytes on a string field.
func validateDocBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxDocumentBytes
}

// =============================================================================
// Rewrite Request
// =============================================================================

// RewriteRequest is the body for POST /v1/rewrite.
//
// Every request carries a unique ID and timestamp for audit trails.
// SessionID and BlockID identify the editing session and the block
// being rewritten; at most one rewrite per (session, block) pair runs
// at a time.
type RewriteRequest struct {
	RequestID string `json:"request_id" validate:"omitempty,uuid4"`
	Timestamp int64  `json:"timestamp" validate:"gte=0"`

	SessionID string `json:"session_id" validate:"required,max=64"`
	BlockID   string `json:"block_id" validate:"required,max=64"`

	// Content is the block text to rewrite (max 64KB).
	Content string `json:"content" validate:"required,blockbytes"`

	// BlockType is the structural role of the block
	// (paragraph, heading, list_item, ...). Defaults to "paragraph".
	BlockType string `json:"block_type" validate:"omitempty,oneof=paragraph heading list_item code_block inline_code literal_block table_cell admonition quote caption unknown"`

	// ContentType is the document's editorial register
	// (technical, creative, legal, api, procedural, marketing, general).
	ContentType string `json:"content_type" validate:"omitempty,oneof=technical creative legal api procedural marketing general"`

	// Domain and Audience refine scoring without changing structure.
	Domain   string `json:"domain" validate:"max=128"`
	Audience string `json:"audience" validate:"max=128"`
}

// Validate checks the request against its validation tags.
func (r *RewriteRequest) Validate() error {
	return apiValidate.Struct(r)
}

// EnsureDefaults populates RequestID, Timestamp, and type fields when
// the client omitted them.
func (r *RewriteRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = uuid.New().String()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
	if r.BlockType == "" {
		r.BlockType = string(detect.BlockParagraph)
	}
	if r.ContentType == "" {
		r.ContentType = string(detect.ContentGeneral)
	}
}

// DetectContext builds the analysis context for this request.
func (r *RewriteRequest) DetectContext() *detect.Context {
	return &detect.Context{
		BlockType:   detect.BlockType(r.BlockType),
		ContentType: detect.ContentType(r.ContentType),
		Domain:      r.Domain,
		Audience:    r.Audience,
	}
}

// =============================================================================
// Rewrite Response
// =============================================================================

// StationBreakdown reports one station's contribution to a rewrite.
type StationBreakdown struct {
	Station    string  `json:"station"`
	Ordinal    int     `json:"ordinal"`
	Status     string  `json:"status"`
	FixedCount int     `json:"fixed_count"`
	Confidence float64 `json:"confidence"`
	ElapsedMs  int64   `json:"elapsed_ms"`
	Reason     string  `json:"reason,omitempty"`
}

// RewriteResponse is the body returned by POST /v1/rewrite.
type RewriteResponse struct {
	ResponseID string `json:"response_id"`
	RequestID  string `json:"request_id"`
	Timestamp  int64  `json:"timestamp"`

	SessionID string `json:"session_id"`
	BlockID   string `json:"block_id"`

	RevisedText   string             `json:"revised_text"`
	ErrorsFixed   int                `json:"errors_fixed"`
	SurgicalFixed int                `json:"surgical_fixed"`
	Confidence    float64            `json:"confidence"`
	Cancelled     bool               `json:"cancelled,omitempty"`
	Stations      []StationBreakdown `json:"stations,omitempty"`

	ProcessingTimeMs int64 `json:"processing_time_ms"`
}

// NewRewriteResponse creates a response shell with server-generated
// identifiers. Callers fill in the result fields.
func NewRewriteResponse(requestID string) *RewriteResponse {
	return &RewriteResponse{
		ResponseID: uuid.New().String(),
		RequestID:  requestID,
		Timestamp:  time.Now().UnixMilli(),
	}
}

// =============================================================================
// Error Response
// =============================================================================

// ErrorResponse is the uniform error body for all endpoints.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
