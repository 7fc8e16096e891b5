// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package evidence converts raw detections into calibrated, explainable
// confidence scores.
//
// # Description
//
// Scoring runs a fixed pipeline of stages: guard, base lookup, then four
// clue categories (linguistic, structural, semantic, feedback). Each clue
// is a pure function contributing an additive delta; the running score is
// clamped to [0, 1] after every stage so an out-of-range value can never
// leak out of the engine. Every applied delta is recorded in the trace for
// explainability.
//
// Stage order is a deliberate design decision: later stages encode broader
// context, so when two stages disagree the later one has the last word.
// The order is not configurable per call.
//
// # Thread Safety
//
// Scorer is immutable after construction and safe for concurrent use.
// Scoring is deterministic: identical inputs produce identical scores and
// identical traces.
package evidence

// Stage names a clue category in trace entries.
type Stage string

const (
	StageGuard      Stage = "guard"
	StageBase       Stage = "base"
	StageLinguistic Stage = "linguistic"
	StageStructural Stage = "structural"
	StageSemantic   Stage = "semantic"
	StageFeedback   Stage = "feedback"
)

// Delta is one applied adjustment in a score trace.
type Delta struct {
	// Stage is the clue category that produced the adjustment.
	Stage Stage `json:"stage"`

	// Clue names the individual clue within the stage.
	Clue string `json:"clue"`

	// Value is the signed adjustment before clamping.
	Value float64 `json:"value"`

	// Reason is a short human-readable justification.
	Reason string `json:"reason"`
}

// Score is a calibrated evidence score in [0, 1] plus the ordered trace
// of adjustments that produced it.
type Score struct {
	// Value is the final clamped score.
	Value float64 `json:"value"`

	// Suppressed is true when the guard stage short-circuited scoring.
	Suppressed bool `json:"suppressed"`

	// SuppressedBy names the guard rule when Suppressed is true.
	SuppressedBy string `json:"suppressed_by,omitempty"`

	// Trace lists every applied delta in application order.
	Trace []Delta `json:"trace"`
}

// clamp bounds v to [0, 1]. Applied after every stage, not only at the
// end; intermediate values outside the range must never escape.
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
