package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearcoreai/clearcore/pkg/models"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want models.PlanStep
		ok   bool
	}{
		{"unicode arrow", "1. fetcher → fetch_articles", models.PlanStep{Index: 1, Agent: "fetcher", Capability: "fetch_articles"}, true},
		{"ascii arrow", "2. summarizer -> summarize", models.PlanStep{Index: 2, Agent: "summarizer", Capability: "summarize"}, true},
		{"leading whitespace", "  3. auditor → audit_trace  ", models.PlanStep{Index: 3, Agent: "auditor", Capability: "audit_trace"}, true},
		{"agent name with spaces", "1. news fetcher → fetch", models.PlanStep{Index: 1, Agent: "news fetcher", Capability: "fetch"}, true},
		{"prose line", "Here is the plan:", models.PlanStep{}, false},
		{"missing number", "fetcher → fetch", models.PlanStep{}, false},
		{"missing arrow", "1. fetcher fetch", models.PlanStep{}, false},
		{"empty line", "", models.PlanStep{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseStepsIgnoresProse(t *testing.T) {
	text := "Here is your plan:\n1. fetcher → fetch\nsome commentary\n2. summarizer -> summarize\n"
	steps := ParseSteps(text)
	require.Len(t, steps, 2)
	assert.Equal(t, "fetcher", steps[0].Agent)
	assert.Equal(t, "summarize", steps[1].Capability)
}

func TestRenderStepsRenumbers(t *testing.T) {
	steps := []models.PlanStep{
		{Index: 4, Agent: "fetcher", Capability: "fetch"},
		{Index: 9, Agent: "auditor", Capability: "audit_trace"},
	}
	assert.Equal(t, "1. fetcher → fetch\n2. auditor → audit_trace", RenderSteps(steps))
}

func TestRenderParseRoundTrip(t *testing.T) {
	steps := []models.PlanStep{
		{Agent: "fetcher", Capability: "fetch"},
		{Agent: "summarizer", Capability: "summarize"},
	}
	parsed := ParseSteps(RenderSteps(steps))
	require.Len(t, parsed, 2)
	assert.Equal(t, "summarizer", parsed[1].Agent)
	assert.Equal(t, 2, parsed[1].Index)
}
