package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClarionAI/clarion/services/analysis/detect"
	"github.com/ClarionAI/clarion/services/analysis/evidence"
)

func scored(v float64) evidence.Score {
	return evidence.Score{Value: v}
}

func TestThresholdDecision(t *testing.T) {
	g := New(Config{})
	det := detect.Detection{Kind: detect.KindPassiveVoice}
	sctx := &detect.Context{BlockType: detect.BlockParagraph}

	// 8 scores against the default 0.35 threshold, exactly 6 accepted.
	scores := []float64{0.9, 0.85, 0.8, 0.75, 0.6, 0.55, 0.2, 0.15}
	var accepted int
	for _, v := range scores {
		if g.Decide(context.Background(), det, sctx, scored(v)).Accepted {
			accepted++
		}
	}
	assert.Equal(t, 6, accepted)
}

func TestGuardSuppressedNeverAccepted(t *testing.T) {
	called := false
	g := New(Config{Validator: validatorFunc(func(context.Context, detect.Detection, *detect.Context, evidence.Score) (bool, float64, string, error) {
		called = true
		return true, 1, "", nil
	})})
	score := evidence.Score{Value: 0, Suppressed: true, SuppressedBy: "code_context"}

	d := g.Decide(context.Background(), detect.Detection{}, &detect.Context{}, score)
	assert.False(t, d.Accepted)
	assert.Equal(t, "guard_suppressed", d.Reason)
	assert.False(t, called, "validator must never see guard-suppressed detections")
}

type validatorFunc func(context.Context, detect.Detection, *detect.Context, evidence.Score) (bool, float64, string, error)

func (f validatorFunc) Validate(ctx context.Context, det detect.Detection, sctx *detect.Context, score evidence.Score) (bool, float64, string, error) {
	return f(ctx, det, sctx, score)
}

func TestValidatorFlipsBorderlineDecision(t *testing.T) {
	reject := validatorFunc(func(context.Context, detect.Detection, *detect.Context, evidence.Score) (bool, float64, string, error) {
		return false, 0.9, "false positive on closer reading", nil
	})
	g := New(Config{Validator: reject})
	det := detect.Detection{Kind: detect.KindPassiveVoice}
	sctx := &detect.Context{}

	// 0.40 is above threshold but inside the band: the validator may
	// flip it to reject.
	d := g.Decide(context.Background(), det, sctx, scored(0.40))
	assert.False(t, d.Accepted)
	assert.Equal(t, "validated", d.Reason)

	// 0.60 is outside the band: the validator is not consulted.
	d = g.Decide(context.Background(), det, sctx, scored(0.60))
	assert.True(t, d.Accepted)
	assert.Equal(t, "threshold", d.Reason)
}

func TestValidatorAcceptsBorderlineReject(t *testing.T) {
	accept := validatorFunc(func(context.Context, detect.Detection, *detect.Context, evidence.Score) (bool, float64, string, error) {
		return true, 0.8, "genuine violation despite weak signal", nil
	})
	g := New(Config{Validator: accept})

	d := g.Decide(context.Background(), detect.Detection{Kind: detect.KindWordiness}, &detect.Context{}, scored(0.30))
	require.True(t, d.Accepted)
	assert.True(t, d.Violation.Validated)
	assert.Equal(t, "genuine violation despite weak signal", d.Violation.ValidationReason)
}

func TestValidatorFailureFallsBackToThreshold(t *testing.T) {
	boom := validatorFunc(func(context.Context, detect.Detection, *detect.Context, evidence.Score) (bool, float64, string, error) {
		return false, 0, "", errors.New("backend timeout")
	})
	g := New(Config{Validator: boom})
	det := detect.Detection{Kind: detect.KindPassiveVoice}

	// In-band and above threshold: fallback keeps the accept.
	d := g.Decide(context.Background(), det, &detect.Context{}, scored(0.40))
	assert.True(t, d.Accepted)
	assert.Equal(t, "threshold", d.Reason)

	// In-band and below threshold: fallback keeps the reject.
	d = g.Decide(context.Background(), det, &detect.Context{}, scored(0.30))
	assert.False(t, d.Accepted)
}

func TestValidatorBandTracksConfiguredThreshold(t *testing.T) {
	var calls int
	counting := validatorFunc(func(_ context.Context, _ detect.Detection, _ *detect.Context, score evidence.Score) (bool, float64, string, error) {
		calls++
		return score.Value >= 0.35, 0.9, "", nil
	})
	// Severity overrides label kinds for routing; they must not move the
	// acceptance threshold or the band around it.
	g := New(Config{
		Validator:         counting,
		SeverityOverrides: map[detect.Kind]Severity{detect.KindPassiveVoice: SeverityHigh},
	})
	det := detect.Detection{Kind: detect.KindPassiveVoice}
	sctx := &detect.Context{BlockType: detect.BlockParagraph}

	tests := []struct {
		name      string
		score     float64
		consulted bool
	}{
		{"well below band", 0.20, false},
		{"inside lower band", 0.28, true},
		{"at threshold", 0.35, true},
		{"inside upper band", 0.42, true},
		{"well above band", 0.60, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := calls
			g.Decide(context.Background(), det, sctx, scored(tt.score))
			assert.Equal(t, tt.consulted, calls > before)
		})
	}
}

func TestSeverityBands(t *testing.T) {
	g := New(Config{})
	tests := []struct {
		score float64
		want  Severity
	}{
		{0.40, SeverityLow},
		{0.50, SeverityMedium},
		{0.74, SeverityMedium},
		{0.75, SeverityHigh},
		{0.95, SeverityHigh},
	}
	for _, tt := range tests {
		d := g.Decide(context.Background(), detect.Detection{Kind: detect.KindPassiveVoice}, &detect.Context{}, scored(tt.score))
		require.True(t, d.Accepted)
		assert.Equal(t, tt.want, d.Violation.Severity, "score %.2f", tt.score)
	}
}

func TestSeverityOverride(t *testing.T) {
	g := New(Config{SeverityOverrides: map[detect.Kind]Severity{
		detect.KindMissingActor: SeverityHigh,
	}})
	d := g.Decide(context.Background(), detect.Detection{Kind: detect.KindMissingActor}, &detect.Context{}, scored(0.40))
	require.True(t, d.Accepted)
	assert.Equal(t, SeverityHigh, d.Violation.Severity)
}
