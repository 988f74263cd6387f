package auditor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceValidate(t *testing.T) {
	t.Run("empty trace", func(t *testing.T) {
		err := (&Trace{}).Validate()
		assert.ErrorIs(t, err, ErrEmptyTrace)
	})

	t.Run("missing agent name", func(t *testing.T) {
		err := (&Trace{Steps: []TraceStep{{Agent: "a"}, {}}}).Validate()
		var validErr *ValidationError
		require.ErrorAs(t, err, &validErr)
		assert.Contains(t, validErr.Reason, "steps[1]")
	})

	t.Run("valid trace", func(t *testing.T) {
		assert.NoError(t, (&Trace{Steps: []TraceStep{{Agent: "a"}}}).Validate())
	})
}

func TestAgentNamesFirstAppearanceOrder(t *testing.T) {
	trace := &Trace{Steps: []TraceStep{
		{Agent: "summarizer"},
		{Agent: "fetcher"},
		{Agent: "summarizer"},
	}}
	assert.Equal(t, []string{"summarizer", "fetcher"}, trace.AgentNames())
}

func TestCompactTraceTruncatesStrings(t *testing.T) {
	long := strings.Repeat("x", 2000)
	trace := &Trace{Steps: []TraceStep{{Agent: "a", Output: long}}}

	compact := CompactTrace(trace)
	steps := compact["steps"].([]compactStep)
	require.Len(t, steps, 1)

	preview, ok := steps[0].OutputPreview.(string)
	require.True(t, ok)
	assert.Len(t, preview, previewMaxChars)
}

func TestCompactTraceLimitsListsAndKeys(t *testing.T) {
	items := make([]any, 30)
	for i := range items {
		items[i] = float64(i)
	}
	obj := make(map[string]any, 30)
	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j",
		"k", "l", "m", "n", "o", "p", "q", "r", "s", "t", "u", "v", "w", "x"} {
		obj[k] = "v"
	}

	trace := &Trace{Steps: []TraceStep{{Agent: "a", Input: items, Output: obj}}}
	compact := CompactTrace(trace)
	steps := compact["steps"].([]compactStep)

	inPreview, ok := steps[0].InputPreview.([]any)
	require.True(t, ok)
	assert.Len(t, inPreview, previewMaxItems)

	outPreview, ok := steps[0].OutputPreview.(map[string]any)
	require.True(t, ok)
	assert.Len(t, outPreview, previewMaxKeys)
}

func TestCompactTraceRecursesIntoNestedValues(t *testing.T) {
	long := strings.Repeat("y", 1200)
	trace := &Trace{Steps: []TraceStep{{
		Agent: "a",
		Output: map[string]any{
			"nested": []any{map[string]any{"text": long}},
		},
	}}}

	compact := CompactTrace(trace)
	steps := compact["steps"].([]compactStep)
	nested := steps[0].OutputPreview.(map[string]any)["nested"].([]any)
	inner := nested[0].(map[string]any)["text"].(string)
	assert.Len(t, inner, previewMaxChars)
}

func TestCompactTraceMarksErrors(t *testing.T) {
	msg := "agent call failed"
	trace := &Trace{Steps: []TraceStep{
		{Agent: "a", Error: &msg},
		{Agent: "b"},
	}}

	compact := CompactTrace(trace)
	steps := compact["steps"].([]compactStep)
	assert.True(t, steps[0].HasError)
	assert.False(t, steps[1].HasError)
}
