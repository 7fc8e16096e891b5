package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClarionAI/clarion/services/analysis/detect"
	"github.com/ClarionAI/clarion/services/analysis/gate"
)

func violation(kind detect.Kind, severity gate.Severity, flagged string) gate.Violation {
	return gate.Violation{
		Detection: detect.Detection{Kind: kind, FlaggedText: flagged},
		Severity:  severity,
	}
}

func TestRouteSplitsSurgicalAndContextual(t *testing.T) {
	vs := []gate.Violation{
		violation(detect.KindRepeatedPunctuation, gate.SeverityHigh, "!!"),
		violation(detect.KindMissingActor, gate.SeverityHigh, "must be configured"),
		violation(detect.KindTenseShift, gate.SeverityMedium, "was running"),
		violation(detect.KindPassiveVoice, gate.SeverityLow, "is used"),
	}
	plan := Route(vs)

	require.Len(t, plan.Surgical, 1)
	assert.Equal(t, "!", plan.Surgical[0].Replacement)
	assert.Equal(t, 3, plan.ContextualCount())

	require.Len(t, plan.Stations, 3)
	assert.Equal(t, StationStructural, plan.Stations[0].Name)
	assert.Equal(t, StationGrammar, plan.Stations[1].Name)
	assert.Equal(t, StationStyle, plan.Stations[2].Name)
	for i, st := range plan.Stations {
		assert.Equal(t, i, st.Ordinal)
	}
}

func TestRouteOmitsEmptyStations(t *testing.T) {
	vs := []gate.Violation{
		violation(detect.KindMissingActor, gate.SeverityHigh, "a"),
		violation(detect.KindPassiveVoice, gate.SeverityLow, "b"),
	}
	plan := Route(vs)

	require.Len(t, plan.Stations, 2)
	assert.Equal(t, StationStructural, plan.Stations[0].Name)
	assert.Equal(t, StationStyle, plan.Stations[1].Name)
	// Ordinals stay contiguous even with the middle bucket empty.
	assert.Equal(t, 0, plan.Stations[0].Ordinal)
	assert.Equal(t, 1, plan.Stations[1].Ordinal)
}

func TestRouteEmptyInput(t *testing.T) {
	plan := Route(nil)
	assert.Empty(t, plan.Surgical)
	assert.Empty(t, plan.Stations)
}

func TestCollapsePunctuation(t *testing.T) {
	tests := []struct{ in, want string }{
		{"!!", "!"},
		{"???", "?"},
		{",,", ","},
		{"....", "..."},
		{".....", "..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, collapsePunctuation(tt.in), "input %q", tt.in)
	}
}

func TestApplySurgical(t *testing.T) {
	text := "Wait!!  The server restarted."
	fixes := []SurgicalFix{
		{Original: "!!", Replacement: "!"},
		{Original: "  ", Replacement: " "},
		{Original: "gone", Replacement: "x"}, // no longer present: skipped
	}
	revised, applied := ApplySurgical(text, fixes)
	assert.Equal(t, "Wait! The server restarted.", revised)
	assert.Equal(t, 2, applied)
}

func TestArticleMisuseNeedsSuggestion(t *testing.T) {
	withSuggestion := gate.Violation{
		Detection:   detect.Detection{Kind: detect.KindArticleMisuse, FlaggedText: "a hour"},
		Severity:    gate.SeverityMedium,
		Suggestions: []string{"an hour"},
	}
	without := gate.Violation{
		Detection: detect.Detection{Kind: detect.KindArticleMisuse, FlaggedText: "a hour"},
		Severity:  gate.SeverityMedium,
	}
	plan := Route([]gate.Violation{withSuggestion, without})
	assert.Len(t, plan.Surgical, 1)
	assert.Equal(t, 1, plan.ContextualCount())
}
