// Copyright (C) 2026 Clarion AI (engineering@clarion-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ClarionAI/clarion/services/analysis/detect"
	"github.com/ClarionAI/clarion/services/analysis/evidence"
)

const validatorPromptPreamble = `You review a single flagged writing issue and decide whether it is a real problem worth fixing in this context. Be conservative: technical writing legitimately uses passive voice, fragments in lists, and terse phrasing.

Respond with a single JSON object and nothing else:
{"accept": true|false, "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}`

type validatorVerdict struct {
	Accept     bool    `json:"accept"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// SecondOpinionValidator re-examines borderline detections with a cheap
// model pass; it satisfies the gate's Validator interface. Prompts are
// fully deterministic and generation runs at temperature zero, so
// identical inputs yield identical verdicts from a pinned model.
type SecondOpinionValidator struct {
	client LLMClient
}

// NewSecondOpinionValidator wraps a generation client.
func NewSecondOpinionValidator(client LLMClient) *SecondOpinionValidator {
	return &SecondOpinionValidator{client: client}
}

// Validate returns whether the detection should be accepted, a
// confidence for that verdict, and one sentence of reasoning.
func (v *SecondOpinionValidator) Validate(ctx context.Context, det detect.Detection, sctx *detect.Context, score evidence.Score) (bool, float64, string, error) {
	prompt := buildValidatorPrompt(det, sctx, score)

	temp := float32(0.0)
	maxTokens := 256
	raw, err := v.client.Generate(ctx, prompt, GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return false, 0, "", fmt.Errorf("validator generation: %w", err)
	}

	verdict, err := parseValidatorVerdict(raw)
	if err != nil {
		return false, 0, "", err
	}
	conf := verdict.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return verdict.Accept, conf, verdict.Reasoning, nil
}

func buildValidatorPrompt(det detect.Detection, sctx *detect.Context, score evidence.Score) string {
	var sb strings.Builder
	sb.WriteString(validatorPromptPreamble)
	fmt.Fprintf(&sb, "\n\n## Issue\nkind: %s\nflagged: %q\nsentence: %q\nevidence score: %.2f\n", det.Kind, det.FlaggedText, det.Sentence, score.Value)
	if sctx != nil {
		fmt.Fprintf(&sb, "\n## Context\nblock type: %s\ncontent type: %s\n", sctx.BlockType, sctx.ContentType)
		if sctx.ParagraphContext != "" {
			fmt.Fprintf(&sb, "paragraph: %q\n", sctx.ParagraphContext)
		}
	}
	return sb.String()
}

func parseValidatorVerdict(raw string) (validatorVerdict, error) {
	var verdict validatorVerdict
	trimmed := strings.TrimSpace(raw)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return verdict, fmt.Errorf("validator response has no JSON object")
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &verdict); err != nil {
		return verdict, fmt.Errorf("parsing validator verdict: %w", err)
	}
	return verdict, nil
}
