package llm

import (
	"fmt"
	"strings"

	"github.com/ClarionAI/clarion/services/analysis/route"
)

const stationPromptPreamble = `You are a precise prose editor. Revise the text below to address ONLY the listed issues. Do not rephrase sentences that have no listed issue. Preserve meaning, terminology, and formatting.

Respond with a single JSON object and nothing else:
{"revised_text": "<full revised text>", "fixed_count": <number of issues you fixed>, "confidence": <0.0-1.0>}

If no issue warrants a change, return the text unmodified with fixed_count 0.`

// BuildStationPrompt renders the deterministic prompt for one station
// pass. Identical stations over identical text always produce the same
// prompt, so reruns are reproducible and cacheable.
func BuildStationPrompt(station route.Station, text string) string {
	var sb strings.Builder
	sb.WriteString(stationPromptPreamble)
	sb.WriteString("\n\n## Pass: ")
	sb.WriteString(station.Name)
	sb.WriteString("\n\n## Issues\n")
	for i, v := range station.Violations {
		fmt.Fprintf(&sb, "%d. [%s] %q", i+1, v.Detection.Kind, v.Detection.FlaggedText)
		if v.Detection.Sentence != "" {
			fmt.Fprintf(&sb, " in sentence: %q", v.Detection.Sentence)
		}
		if len(v.Suggestions) > 0 {
			fmt.Fprintf(&sb, " (suggested: %s)", strings.Join(v.Suggestions, "; "))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n## Text\n")
	sb.WriteString(text)
	return sb.String()
}
