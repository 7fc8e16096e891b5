// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assembly

import (
	"time"

	"github.com/ClarionAI/clarion/services/analysis/detect"
	"github.com/ClarionAI/clarion/services/analysis/gate"
	"github.com/ClarionAI/clarion/services/analysis/route"
)

// StationStatus is the runtime state of one station within a pass.
type StationStatus string

const (
	StationPending    StationStatus = "pending"
	StationRouting    StationStatus = "routing"
	StationProcessing StationStatus = "processing"
	StationCompleted  StationStatus = "completed"
	StationNoChange   StationStatus = "no_change"
	StationFailed     StationStatus = "failed"
)

// StationRun wraps a routed station with its runtime outcome. Mutated
// only by the orchestrator; discarded at request end.
type StationRun struct {
	Station route.Station
	Status  StationStatus

	// FixedCount is the number of violations the backend reports
	// resolved. Zero unless Status is StationCompleted.
	FixedCount int

	// Confidence is the backend's self-reported confidence for a
	// completed station; NoChange and Failed stations hold 0.
	Confidence float64

	Elapsed time.Duration

	// Reason carries the failure cause for StationFailed.
	Reason string
}

// PassStatus is the lifecycle state of one pass. Always terminal at
// request end regardless of per-station outcomes.
type PassStatus string

const (
	PassPending   PassStatus = "pending"
	PassRunning   PassStatus = "running"
	PassCompleted PassStatus = "completed"
)

// Pass is one full traversal of the station sequence for a block.
type Pass struct {
	Ordinal  int
	Status   PassStatus
	Stations []*StationRun
}

// Request is one block-rewrite request. Violations must already have
// passed the confidence gate.
type Request struct {
	SessionID  string
	BlockID    string
	Content    string
	BlockType  detect.BlockType
	Violations []gate.Violation
}

// Result is the aggregate outcome of a rewrite request. It is produced
// even under partial failure; per-station outcomes stay inspectable so a
// caller can tell real fixes from no-ops.
type Result struct {
	SessionID   string
	BlockID     string
	RevisedText string

	// ErrorsFixed is surgical fixes applied plus the sum of per-station
	// fixed counts.
	ErrorsFixed int

	// SurgicalFixed is the surgical share of ErrorsFixed.
	SurgicalFixed int

	// Confidence is the violation-weighted mean over all stations;
	// NoChange and Failed stations contribute 0 rather than being
	// excluded, so partial success reads as lower confidence.
	Confidence float64

	// Passes holds the full per-station breakdown.
	Passes []*Pass

	// Cancelled is true when the context was cancelled between
	// stations and the result is partial.
	Cancelled bool

	Elapsed time.Duration
}

// StationRuns flattens the per-pass breakdown, in processing order.
func (r *Result) StationRuns() []*StationRun {
	var runs []*StationRun
	for _, p := range r.Passes {
		runs = append(runs, p.Stations...)
	}
	return runs
}
