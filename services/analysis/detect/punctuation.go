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
	"strconv"
	"strings"
)

// repeatedPunct matches two or more of the same terminal punctuation mark,
// excluding a literal ellipsis which is handled separately. RE2 has no
// backreferences, so each mark gets its own alternative.
var repeatedPunct = regexp.MustCompile(`!!+|\?\?+|,,+|;;+|::+|\.{4,}`)

// doubleSpace matches two or more spaces between words.
var doubleSpace = regexp.MustCompile(`\S(  +)\S`)

// PunctuationSource flags duplicated punctuation and doubled spaces.
//
// This is one of the two reference detectors that ship with the core so the
// pipeline is exercisable end to end. It is intentionally simple; the
// production detector catalog is a separate module.
type PunctuationSource struct{}

func (PunctuationSource) Name() string { return "punctuation" }

func (PunctuationSource) Detect(_ context.Context, _ *Context, sentence string) []Detection {
	var out []Detection
	for _, loc := range repeatedPunct.FindAllStringIndex(sentence, -1) {
		out = append(out, Detection{
			Kind:        KindRepeatedPunctuation,
			FlaggedText: sentence[loc[0]:loc[1]],
			Sentence:    sentence,
			Span:        Span{Start: loc[0], End: loc[1]},
			Evidence: map[string]string{
				"mark": strings.TrimSpace(sentence[loc[0] : loc[0]+1]),
			},
		})
	}
	for _, loc := range doubleSpace.FindAllStringSubmatchIndex(sentence, -1) {
		// Group 1 is the run of spaces; the outer match includes the
		// bracketing non-space characters.
		out = append(out, Detection{
			Kind:        KindDoubleSpace,
			FlaggedText: sentence[loc[2]:loc[3]],
			Sentence:    sentence,
			Span:        Span{Start: loc[2], End: loc[3]},
			Evidence:    map[string]string{"width": strconv.Itoa(loc[3] - loc[2])},
		})
	}
	return out
}
