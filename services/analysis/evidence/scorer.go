// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package evidence

import (
	"log/slog"

	"github.com/ClarionAI/clarion/services/analysis/detect"
	"github.com/ClarionAI/clarion/services/feedback"
)

// feedbackMinDecisions is how many recorded decisions a pattern needs
// before the feedback stage trusts it.
const feedbackMinDecisions = 5

// defaultBase maps each kind to its starting evidence. Kinds with
// inherently high certainty start near 0.9; ambiguous kinds start near
// the middle of the scale.
var defaultBase = map[detect.Kind]float64{
	detect.KindRepeatedPunctuation: 0.90,
	detect.KindDoubleSpace:         0.85,
	detect.KindArticleMisuse:       0.80,
	detect.KindSubjectAgreement:    0.75,
	detect.KindMissingActor:        0.75,
	detect.KindTenseShift:          0.70,
	detect.KindWordiness:           0.60,
	detect.KindPassiveVoice:        0.55,
	detect.KindSentenceFragment:    0.55,
	detect.KindWeakWording:         0.50,
}

// fallbackBase is used for kinds produced by detectors this build does
// not know about.
const fallbackBase = 0.50

// ScorerConfig tunes the scorer. Zero values select defaults.
type ScorerConfig struct {
	// BaseOverrides replaces base evidence for individual kinds.
	BaseOverrides map[detect.Kind]float64

	// FeedbackWeight scales the feedback nudge. Default 0.3.
	FeedbackWeight float64

	// Logger receives per-score debug output. Defaults to slog.Default().
	Logger *slog.Logger
}

// Scorer runs the fixed evidence pipeline.
//
// # Thread Safety
//
// Immutable after construction; safe for concurrent use.
type Scorer struct {
	guard          *Guard
	base           map[detect.Kind]float64
	linguistic     []Clue
	structural     []Clue
	semantic       []Clue
	feedbackWeight float64
	logger         *slog.Logger
}

// NewScorer builds a scorer with the default clue pipelines.
func NewScorer(cfg ScorerConfig) *Scorer {
	base := make(map[detect.Kind]float64, len(defaultBase))
	for k, v := range defaultBase {
		base[k] = v
	}
	for k, v := range cfg.BaseOverrides {
		base[k] = clamp(v)
	}
	weight := cfg.FeedbackWeight
	if weight == 0 {
		weight = 0.3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		guard:          NewGuard(),
		base:           base,
		linguistic:     linguisticClues(),
		structural:     structuralClues(),
		semantic:       semanticClues(),
		feedbackWeight: weight,
		logger:         logger,
	}
}

// Score runs the full pipeline for one detection.
//
// # Description
//
// Stage order is fixed: guard, base, linguistic, structural, semantic,
// feedback. The guard can short-circuit to 0.0 before any clue runs.
// The running score is clamped to [0, 1] after every stage. snap may be
// nil, which disables the feedback stage.
//
// # Outputs
//
//   - Score: final value plus the complete delta trace.
func (s *Scorer) Score(det detect.Detection, sctx *detect.Context, doc *DocumentProfile, snap *feedback.Snapshot) Score {
	if doc == nil {
		doc = &DocumentProfile{}
	}

	if rule, suppressed := s.guard.Suppress(det, sctx); suppressed {
		s.logger.Debug("detection suppressed by guard",
			"kind", det.Kind,
			"rule", rule)
		return Score{
			Value:        0,
			Suppressed:   true,
			SuppressedBy: rule,
			Trace: []Delta{{
				Stage:  StageGuard,
				Clue:   rule,
				Value:  0,
				Reason: "known-safe context forces zero evidence",
			}},
		}
	}

	base := s.baseFor(det)
	score := Score{
		Value: clamp(base),
		Trace: []Delta{{Stage: StageBase, Clue: string(det.Kind), Value: base, Reason: "base evidence for kind"}},
	}

	score.Value = s.applyStage(&score, StageLinguistic, s.linguistic, det, sctx, doc)
	score.Value = s.applyStage(&score, StageStructural, s.structural, det, sctx, doc)
	score.Value = s.applyStage(&score, StageSemantic, s.semantic, det, sctx, doc)
	score.Value = s.applyFeedback(&score, det, sctx, snap)

	return score
}

// baseFor resolves the base evidence for a detection, honoring the
// structural sub-case classification where one exists.
func (s *Scorer) baseFor(det detect.Detection) float64 {
	base, ok := s.base[det.Kind]
	if !ok {
		return fallbackBase
	}
	// Structural detections distinguish descriptive fragments (often
	// legitimate) from instructional ones (usually broken steps).
	if det.Kind == detect.KindSentenceFragment {
		switch det.Evidence["construction"] {
		case "instructional":
			return clamp(base + 0.15)
		case "descriptive":
			return base
		}
	}
	return base
}

// applyStage runs one clue list in order, clamping after the stage.
func (s *Scorer) applyStage(score *Score, stage Stage, clues []Clue, det detect.Detection, sctx *detect.Context, doc *DocumentProfile) float64 {
	v := score.Value
	for _, clue := range clues {
		delta, reason := clue.Apply(det, sctx, doc)
		if delta == 0 {
			continue
		}
		v += delta
		score.Trace = append(score.Trace, Delta{
			Stage:  stage,
			Clue:   clue.Name,
			Value:  delta,
			Reason: reason,
		})
	}
	return clamp(v)
}

// applyFeedback nudges the score toward historically observed outcomes
// for this (kind, lemma, content type) pattern.
func (s *Scorer) applyFeedback(score *Score, det detect.Detection, sctx *detect.Context, snap *feedback.Snapshot) float64 {
	if snap == nil {
		return score.Value
	}
	key := feedback.PatternKey{
		Kind:        det.Kind,
		Lemma:       det.Evidence["lemma"],
		ContentType: sctx.ContentType,
	}
	stats, ok := snap.Lookup(key)
	if !ok || stats.Total() < feedbackMinDecisions {
		return score.Value
	}
	delta := (stats.AcceptRate() - 0.5) * s.feedbackWeight
	if delta == 0 {
		return score.Value
	}
	score.Trace = append(score.Trace, Delta{
		Stage:  StageFeedback,
		Clue:   "historical_decisions",
		Value:  delta,
		Reason: "observed reviewer accept rate for this pattern",
	})
	return clamp(score.Value + delta)
}
