// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package detect

import (
	"context"
	"log/slog"
	"strings"
)

// DetectionSource produces raw candidate issues for one sentence.
//
// # Description
//
// Implementations must be pure functions of (sctx, sentence): no clock
// reads, no randomness, no retained state between calls. The full catalog
// of linguistic detectors lives outside this repository; this interface is
// the only contract the core depends on.
type DetectionSource interface {
	// Name returns a stable identifier for logging and tracing.
	Name() string

	// Detect returns zero or more Detections for the sentence.
	Detect(ctx context.Context, sctx *Context, sentence string) []Detection
}

// Registry aggregates detection sources and fans a sentence out to all of
// them. The zero value is unusable; use NewRegistry.
type Registry struct {
	sources []DetectionSource
	logger  *slog.Logger
}

// NewRegistry creates a registry over the given sources.
//
// If logger is nil, slog.Default() is used.
func NewRegistry(logger *slog.Logger, sources ...DetectionSource) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{sources: sources, logger: logger}
}

// DetectSentence runs every registered source against one sentence and
// returns the combined detections in registration order.
func (r *Registry) DetectSentence(ctx context.Context, sctx *Context, sentence string, index int) []Detection {
	var out []Detection
	for _, src := range r.sources {
		dets := src.Detect(ctx, sctx, sentence)
		for i := range dets {
			dets[i].SentenceIndex = index
		}
		if len(dets) > 0 {
			r.logger.Debug("source flagged sentence",
				"source", src.Name(),
				"count", len(dets),
				"sentence_index", index)
		}
		out = append(out, dets...)
	}
	return out
}

// DetectBlock splits a block into sentences and runs every source against
// each of them.
func (r *Registry) DetectBlock(ctx context.Context, sctx *Context, block string) []Detection {
	var out []Detection
	for i, sentence := range SplitSentences(block) {
		out = append(out, r.DetectSentence(ctx, sctx, sentence, i)...)
	}
	return out
}

// SplitSentences performs a conservative sentence split on terminal
// punctuation. It deliberately over-merges rather than over-splits:
// abbreviations and decimal points are left alone unless followed by a
// space and an uppercase letter.
func SplitSentences(block string) []string {
	var (
		sentences []string
		start     int
	)
	runes := []rune(block)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		// Consume runs of terminal punctuation ("?!", "...").
		j := i
		for j+1 < len(runes) && (runes[j+1] == '.' || runes[j+1] == '!' || runes[j+1] == '?') {
			j++
		}
		boundary := j+1 >= len(runes)
		if !boundary && runes[j+1] == ' ' {
			k := j + 1
			for k < len(runes) && runes[k] == ' ' {
				k++
			}
			if k < len(runes) && isUpper(runes[k]) {
				boundary = true
			}
		}
		if boundary {
			s := strings.TrimSpace(string(runes[start : j+1]))
			if s != "" {
				sentences = append(sentences, s)
			}
			start = j + 1
		}
		i = j
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}
