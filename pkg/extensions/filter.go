// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import "context"

// FilterResult is the outcome of running content through a filter.
type FilterResult struct {
	// Content is the (possibly redacted) text to use downstream.
	Content string

	// Blocked indicates the content must not be sent at all.
	Blocked bool

	// Detections lists what the filter found.
	Detections []Detection
}

// Detection describes a single sensitive-content finding.
type Detection struct {
	// Type categorizes the finding.
	// Common types: "ssn", "credit_card", "email", "api_key"
	Type string

	// Redacted indicates whether the finding was masked in Content.
	Redacted bool
}

// ContentFilter inspects prose before it is sent to a hosted LLM
// backend. Deployments that route rewrites through external APIs use
// this to redact PII and secrets from the outbound text.
type ContentFilter interface {
	// FilterOutbound processes text about to leave the host.
	FilterOutbound(ctx context.Context, content string) (*FilterResult, error)
}

// NopContentFilter passes content through unchanged. Default for local
// backends, where text never leaves the machine.
type NopContentFilter struct{}

// FilterOutbound returns the content unmodified.
func (f *NopContentFilter) FilterOutbound(_ context.Context, content string) (*FilterResult, error) {
	return &FilterResult{Content: content}, nil
}

var _ ContentFilter = (*NopContentFilter)(nil)
