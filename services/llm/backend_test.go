package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClarionAI/clarion/services/analysis/detect"
	"github.com/ClarionAI/clarion/services/analysis/gate"
	"github.com/ClarionAI/clarion/services/analysis/route"
)

type stubClient struct {
	response string
	err      error
	prompts  []string
}

func (s *stubClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func grammarStation() route.Station {
	return route.Station{
		Name:     route.StationGrammar,
		Ordinal:  1,
		Severity: gate.SeverityMedium,
		Violations: []gate.Violation{
			{
				Detection: detect.Detection{
					Kind:        detect.KindPassiveVoice,
					FlaggedText: "was configured",
					Sentence:    "The server was configured.",
				},
				Severity: gate.SeverityMedium,
			},
		},
	}
}

func TestRewriteAppliesParsedResponse(t *testing.T) {
	client := &stubClient{
		response: `{"revised_text": "We configured the server.", "fixed_count": 1, "confidence": 0.9}`,
	}
	backend := NewLLMRewriteBackend(client, LLMBackendConfig{})

	res, err := backend.Rewrite(context.Background(), grammarStation(), "The server was configured.")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, "We configured the server.", res.RevisedText)
	assert.Equal(t, 1, res.FixedCount)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
}

func TestRewriteToleratesMarkdownFence(t *testing.T) {
	client := &stubClient{
		response: "```json\n{\"revised_text\": \"We configured it.\", \"fixed_count\": 1, \"confidence\": 0.8}\n```",
	}
	backend := NewLLMRewriteBackend(client, LLMBackendConfig{})

	res, err := backend.Rewrite(context.Background(), grammarStation(), "It was configured.")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, "We configured it.", res.RevisedText)
}

func TestRewriteUnparseableKeepsOriginalText(t *testing.T) {
	client := &stubClient{response: "I could not help with that."}
	backend := NewLLMRewriteBackend(client, LLMBackendConfig{})

	original := "The server was configured."
	res, err := backend.Rewrite(context.Background(), grammarStation(), original)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoChange, res.Outcome)
	assert.Equal(t, original, res.RevisedText)
}

func TestRewriteIdenticalTextReportsNoChange(t *testing.T) {
	original := "The server was configured."
	client := &stubClient{
		response: `{"revised_text": "The server was configured.", "fixed_count": 1, "confidence": 0.7}`,
	}
	backend := NewLLMRewriteBackend(client, LLMBackendConfig{})

	res, err := backend.Rewrite(context.Background(), grammarStation(), original)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoChange, res.Outcome)
}

func TestRewriteTransportErrorIsFailed(t *testing.T) {
	client := &stubClient{err: errors.New("connection refused")}
	backend := NewLLMRewriteBackend(client, LLMBackendConfig{})

	res, err := backend.Rewrite(context.Background(), grammarStation(), "Some text.")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Reason, "connection refused")
}

func TestRewriteClampsConfidence(t *testing.T) {
	client := &stubClient{
		response: `{"revised_text": "Better text.", "fixed_count": 2, "confidence": 1.7}`,
	}
	backend := NewLLMRewriteBackend(client, LLMBackendConfig{})

	res, err := backend.Rewrite(context.Background(), grammarStation(), "Worse text.")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestBuildStationPromptIsDeterministic(t *testing.T) {
	st := grammarStation()
	first := BuildStationPrompt(st, "The server was configured.")
	second := BuildStationPrompt(st, "The server was configured.")
	assert.Equal(t, first, second)

	assert.True(t, strings.Contains(first, route.StationGrammar))
	assert.True(t, strings.Contains(first, "passive_voice"))
	assert.True(t, strings.Contains(first, "The server was configured."))
}

func TestParseStationResponseRejectsGarbage(t *testing.T) {
	cases := []string{"", "no json here", "{broken", "```\n```"}
	for _, raw := range cases {
		_, ok := parseStationResponse(raw)
		assert.False(t, ok, "input %q should not parse", raw)
	}
}
