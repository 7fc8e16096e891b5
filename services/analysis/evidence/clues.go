// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package evidence

import (
	"strings"

	"github.com/ClarionAI/clarion/services/analysis/detect"
)

// Clue is one pure adjustment function within a stage.
//
// Apply returns a signed delta and a short reason. A zero delta means the
// clue did not fire and is omitted from the trace. Clues must not read
// clocks, randomness, or mutable state.
type Clue struct {
	Name  string
	Apply func(det detect.Detection, sctx *detect.Context, doc *DocumentProfile) (float64, string)
}

// DocumentProfile holds whole-document heuristics computed once per Score
// call and shared by the semantic clues.
type DocumentProfile struct {
	// SentenceCount is the number of sentences in the full document.
	SentenceCount int

	// PassiveRatio is the fraction of sentences containing a passive
	// construction.
	PassiveRatio float64

	// ConfigDocScore is the density of configuration vocabulary
	// ("set", "option", "default", ...) per sentence.
	ConfigDocScore float64
}

var configVocabulary = []string{
	"config", "configuration", "option", "setting", "default",
	"environment variable", "flag", "parameter",
}

var profilePassive = detect.PassiveVoiceSource{}

// ProfileDocument computes the document profile for fullText. Deterministic
// and side-effect free.
func ProfileDocument(fullText string) *DocumentProfile {
	sentences := detect.SplitSentences(fullText)
	profile := &DocumentProfile{SentenceCount: len(sentences)}
	if len(sentences) == 0 {
		return profile
	}

	var passive, configHits int
	lower := strings.ToLower(fullText)
	for _, s := range sentences {
		if len(profilePassive.Detect(nil, nil, s)) > 0 {
			passive++
		}
	}
	for _, word := range configVocabulary {
		configHits += strings.Count(lower, word)
	}
	profile.PassiveRatio = float64(passive) / float64(len(sentences))
	profile.ConfigDocScore = float64(configHits) / float64(len(sentences))
	return profile
}

// -----------------------------------------------------------------------------
// Linguistic clues (micro-level, token-local)
// -----------------------------------------------------------------------------

func linguisticClues() []Clue {
	return []Clue{
		{
			Name: "explicit_agent",
			Apply: func(det detect.Detection, _ *detect.Context, _ *DocumentProfile) (float64, string) {
				if det.Kind != detect.KindPassiveVoice {
					return 0, ""
				}
				if _, ok := det.Agent(); ok {
					return 0.10, "explicit by-phrase makes an active rewrite mechanical"
				}
				return 0, ""
			},
		},
		{
			Name: "progressive_auxiliary",
			Apply: func(det detect.Detection, _ *detect.Context, _ *DocumentProfile) (float64, string) {
				if det.Evidence["auxiliary"] == "being" || det.Evidence["auxiliary"] == "be" {
					return -0.10, "progressive or infinitive passive is often intentional"
				}
				return 0, ""
			},
		},
		{
			Name: "sentence_length",
			Apply: func(det detect.Detection, _ *detect.Context, _ *DocumentProfile) (float64, string) {
				words := len(strings.Fields(det.Sentence))
				switch {
				case words < 6:
					return -0.10, "very short sentence carries little rewrite value"
				case words > 30 && det.Kind == detect.KindWordiness:
					return 0.10, "long sentence amplifies wordiness"
				case words > 30:
					return 0.05, "long sentence raises rewrite value"
				}
				return 0, ""
			},
		},
		{
			Name: "proper_noun_span",
			Apply: func(det detect.Detection, _ *detect.Context, _ *DocumentProfile) (float64, string) {
				fields := strings.Fields(det.FlaggedText)
				if len(fields) == 0 {
					return 0, ""
				}
				capitalized := 0
				for _, f := range fields {
					if f[0] >= 'A' && f[0] <= 'Z' {
						capitalized++
					}
				}
				if capitalized == len(fields) && len(fields) > 1 {
					return -0.05, "flagged span looks like a proper name"
				}
				return 0, ""
			},
		},
	}
}

// -----------------------------------------------------------------------------
// Structural clues (meso-level, enclosing block)
// -----------------------------------------------------------------------------

// Code contexts never reach these clues; the guard short-circuits them.
// Remaining block types only dampen or amplify.
func structuralClues() []Clue {
	return []Clue{
		{
			Name: "heading_block",
			Apply: func(_ detect.Detection, sctx *detect.Context, _ *DocumentProfile) (float64, string) {
				if sctx.BlockType == detect.BlockHeading {
					return -0.25, "headings tolerate fragments and terse phrasing"
				}
				return 0, ""
			},
		},
		{
			Name: "list_item_block",
			Apply: func(det detect.Detection, sctx *detect.Context, _ *DocumentProfile) (float64, string) {
				if sctx.BlockType != detect.BlockListItem {
					return 0, ""
				}
				if det.Kind == detect.KindSentenceFragment {
					return -0.20, "list items are fragments by convention"
				}
				return -0.10, "list items tolerate terse phrasing"
			},
		},
		{
			Name: "table_cell_block",
			Apply: func(_ detect.Detection, sctx *detect.Context, _ *DocumentProfile) (float64, string) {
				if sctx.BlockType == detect.BlockTableCell {
					return -0.20, "table cells are not prose"
				}
				return 0, ""
			},
		},
		{
			Name: "admonition_block",
			Apply: func(det detect.Detection, sctx *detect.Context, _ *DocumentProfile) (float64, string) {
				if sctx.BlockType != detect.BlockAdmonition {
					return 0, ""
				}
				if det.Kind == detect.KindPassiveVoice || det.Kind == detect.KindMissingActor {
					return 0.05, "warnings should name the actor directly"
				}
				return 0, ""
			},
		},
		{
			Name: "caption_block",
			Apply: func(_ detect.Detection, sctx *detect.Context, _ *DocumentProfile) (float64, string) {
				if sctx.BlockType == detect.BlockCaption {
					return -0.10, "captions tolerate fragments"
				}
				return 0, ""
			},
		},
	}
}

// -----------------------------------------------------------------------------
// Semantic clues (macro-level, whole document)
// -----------------------------------------------------------------------------

func semanticClues() []Clue {
	return []Clue{
		{
			Name: "procedural_register",
			Apply: func(det detect.Detection, sctx *detect.Context, _ *DocumentProfile) (float64, string) {
				if sctx.ContentType == detect.ContentProcedural && det.Kind == detect.KindMissingActor {
					return 0.10, "procedures must say who performs each step"
				}
				return 0, ""
			},
		},
		{
			Name: "api_register",
			Apply: func(det detect.Detection, sctx *detect.Context, _ *DocumentProfile) (float64, string) {
				if (sctx.ContentType == detect.ContentAPI || sctx.ContentType == detect.ContentTechnical) &&
					det.Kind == detect.KindPassiveVoice {
					return -0.05, "technical reference tolerates system-subject passive"
				}
				return 0, ""
			},
		},
		{
			Name: "configuration_doc",
			Apply: func(det detect.Detection, _ *detect.Context, doc *DocumentProfile) (float64, string) {
				if doc.ConfigDocScore > 0.5 && det.Kind == detect.KindPassiveVoice {
					return -0.10, "configuration docs describe state, not actors"
				}
				return 0, ""
			},
		},
		{
			Name: "passive_density",
			Apply: func(det detect.Detection, _ *detect.Context, doc *DocumentProfile) (float64, string) {
				if doc.PassiveRatio > 0.3 && det.Kind == detect.KindPassiveVoice {
					return -0.10, "document-wide passive style; flag selectively"
				}
				return 0, ""
			},
		},
		{
			Name: "audience",
			Apply: func(det detect.Detection, sctx *detect.Context, _ *DocumentProfile) (float64, string) {
				switch sctx.Audience {
				case "end_user":
					if det.Kind == detect.KindWordiness || det.Kind == detect.KindWeakWording {
						return 0.05, "end-user prose should be tight"
					}
				case "developer", "expert":
					if det.Kind == detect.KindWordiness || det.Kind == detect.KindWeakWording {
						return -0.05, "expert audience tolerates density"
					}
				}
				return 0, ""
			},
		},
	}
}
