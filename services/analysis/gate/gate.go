// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gate turns scored detections into accepted violations.
//
// # Description
//
// A single configurable threshold (default 0.35) rejects low-evidence
// detections. Scores in a narrow band around the threshold may optionally
// be re-examined by a more expensive Validator; its verdict can flip the
// cheap decision but can never resurrect a guard-suppressed detection,
// and a failing validator silently falls back to the cheap decision so a
// broken second opinion never blocks detection for a whole document.
//
// Both paths are deterministic given the same inputs.
//
// # Thread Safety
//
// Gate is immutable after construction and safe for concurrent use.
package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/ClarionAI/clarion/services/analysis/detect"
	"github.com/ClarionAI/clarion/services/analysis/evidence"
)

// DefaultThreshold is the acceptance threshold used when none is
// configured.
const DefaultThreshold = 0.35

// validationBand is the half-width of the score band around the
// threshold in which the secondary validator is consulted.
const validationBand = 0.08

// Severity buckets an accepted violation for routing.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Violation is a detection that passed the gate. Immutable once created;
// it lives for the duration of one rewrite request.
type Violation struct {
	// Detection is the originating candidate.
	Detection detect.Detection

	// Score is the full evidence score with trace.
	Score evidence.Score

	// Severity derives from the score band with per-kind overrides.
	Severity Severity

	// Suggestions holds optional replacement texts, best first.
	Suggestions []string

	// Validated is true when the secondary validator examined this
	// violation.
	Validated bool

	// ValidationReason carries the validator's reasoning when Validated.
	ValidationReason string
}

// Decision is the gate's verdict for one scored detection.
type Decision struct {
	Accepted  bool
	Violation *Violation // nil when rejected
	Reason    string
}

// Validator is an optional, swappable second opinion for borderline
// scores.
//
// Implementations must be deterministic given identical inputs. Validate
// may be expensive (an LLM call); the gate bounds it with a timeout and
// falls back to the cheap decision on any error.
type Validator interface {
	// Validate re-examines a borderline detection and returns whether it
	// should be accepted, a confidence for that verdict, and a short
	// reasoning string.
	Validate(ctx context.Context, det detect.Detection, sctx *detect.Context, score evidence.Score) (accept bool, confidence float64, reasoning string, err error)
}

// Config tunes the gate. Zero values select defaults.
type Config struct {
	// Threshold is the acceptance threshold in [0, 1]. Default 0.35.
	Threshold float64

	// SeverityOverrides pins specific kinds to a severity regardless of
	// their score band.
	SeverityOverrides map[detect.Kind]Severity

	// Validator, when non-nil, is consulted for scores within the
	// validation band around the threshold.
	Validator Validator

	// ValidatorTimeout bounds each Validate call. Default 10s.
	ValidatorTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Gate applies the acceptance threshold and severity mapping.
type Gate struct {
	threshold        float64
	overrides        map[detect.Kind]Severity
	validator        Validator
	validatorTimeout time.Duration
	logger           *slog.Logger
}

// New creates a gate.
func New(cfg Config) *Gate {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	timeout := cfg.ValidatorTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	overrides := make(map[detect.Kind]Severity, len(cfg.SeverityOverrides))
	for k, v := range cfg.SeverityOverrides {
		overrides[k] = v
	}
	return &Gate{
		threshold:        threshold,
		overrides:        overrides,
		validator:        cfg.Validator,
		validatorTimeout: timeout,
		logger:           logger,
	}
}

// Threshold returns the configured acceptance threshold.
func (g *Gate) Threshold() float64 { return g.threshold }

// Decide converts one scored detection into an accept/reject decision.
//
// Guard-suppressed scores are always rejected and never reach the
// validator. Borderline scores (within the validation band) consult the
// validator when one is configured; any validator failure falls back to
// the cheap threshold decision.
func (g *Gate) Decide(ctx context.Context, det detect.Detection, sctx *detect.Context, score evidence.Score) Decision {
	if score.Suppressed {
		return Decision{Accepted: false, Reason: "guard_suppressed"}
	}

	accepted := score.Value >= g.threshold
	reason := "threshold"
	var validated bool
	var validationReason string

	if g.validator != nil && inBand(score.Value, g.threshold) {
		vctx, cancel := context.WithTimeout(ctx, g.validatorTimeout)
		accept, confidence, reasoning, err := g.validator.Validate(vctx, det, sctx, score)
		cancel()
		if err != nil {
			// A slow or broken validator must never block detection;
			// keep the cheap decision.
			g.logger.Warn("validator failed, using threshold decision",
				"kind", det.Kind,
				"score", score.Value,
				"error", err)
		} else {
			accepted = accept
			validated = true
			validationReason = reasoning
			reason = "validated"
			g.logger.Debug("validator decision",
				"kind", det.Kind,
				"score", score.Value,
				"accept", accept,
				"confidence", confidence)
		}
	}

	if !accepted {
		return Decision{Accepted: false, Reason: reason}
	}
	return Decision{
		Accepted: true,
		Reason:   reason,
		Violation: &Violation{
			Detection:        det,
			Score:            score,
			Severity:         g.severityFor(det.Kind, score.Value),
			Validated:        validated,
			ValidationReason: validationReason,
		},
	}
}

// severityFor maps a score to its band, honoring per-kind overrides.
func (g *Gate) severityFor(kind detect.Kind, score float64) Severity {
	if s, ok := g.overrides[kind]; ok {
		return s
	}
	switch {
	case score >= 0.75:
		return SeverityHigh
	case score >= 0.5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func inBand(score, threshold float64) bool {
	d := score - threshold
	if d < 0 {
		d = -d
	}
	return d <= validationBand
}
