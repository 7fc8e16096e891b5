// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package detect

import (
	"context"
	"regexp"
	"strings"
)

// passiveConstruction matches auxiliary "to be" forms followed by a likely
// past participle, optionally with an intervening adverb. This catches the
// common regular forms ("was configured", "is being processed") plus a
// short list of frequent irregulars.
var passiveConstruction = regexp.MustCompile(
	`(?i)\b(am|is|are|was|were|be|been|being)\b(\s+\w+ly)?\s+(\w+ed|born|built|done|found|given|held|kept|known|made|put|read|run|seen|sent|set|shown|taken|told|written)\b`)

// byAgent matches a trailing "by <agent>" phrase after a participle.
var byAgent = regexp.MustCompile(`(?i)\bby\s+([\w'-]+(?:\s+[\w'-]+)?)`)

// PassiveVoiceSource flags passive constructions.
//
// The second reference detector. It records the auxiliary, the participle,
// and the explicit agent (if any) as structured evidence, which the
// linguistic clue stage consumes downstream.
type PassiveVoiceSource struct{}

func (PassiveVoiceSource) Name() string { return "passive_voice" }

func (PassiveVoiceSource) Detect(_ context.Context, _ *Context, sentence string) []Detection {
	var out []Detection
	for _, loc := range passiveConstruction.FindAllStringSubmatchIndex(sentence, -1) {
		matched := sentence[loc[0]:loc[1]]
		aux := strings.ToLower(sentence[loc[2]:loc[3]])
		participle := strings.ToLower(sentence[loc[6]:loc[7]])

		ev := map[string]string{
			"auxiliary":  aux,
			"participle": participle,
			"lemma":      participleLemma(participle),
		}
		// Only look for the agent in the remainder of the sentence so a
		// "by" phrase before the construction is not misattributed.
		if m := byAgent.FindStringSubmatch(sentence[loc[1]:]); m != nil {
			ev["agent"] = m[1]
		}
		out = append(out, Detection{
			Kind:        KindPassiveVoice,
			FlaggedText: matched,
			Sentence:    sentence,
			Span:        Span{Start: loc[0], End: loc[1]},
			Evidence:    ev,
		})
	}
	return out
}

// participleLemma strips the regular "-ed" suffix to approximate the verb
// lemma. Irregular participles are returned unchanged; the feedback cache
// keys tolerate that.
func participleLemma(p string) string {
	switch {
	case strings.HasSuffix(p, "ied"):
		return p[:len(p)-3] + "y"
	case strings.HasSuffix(p, "ed"):
		return strings.TrimSuffix(p, "ed")
	default:
		return p
	}
}
