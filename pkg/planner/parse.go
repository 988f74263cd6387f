package planner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/clearcoreai/clearcore/pkg/models"
)

// stepRe matches one numbered plan line. Both the canonical U+2192 arrow
// and the ASCII "->" the model sometimes emits are accepted; rendering
// always normalizes back to U+2192.
var stepRe = regexp.MustCompile(`^\s*(\d+)\.\s*(.+?)\s*(?:\x{2192}|->)\s*(\S+)\s*$`)

// ParseLine parses a single plan line into a step. The returned index is
// the number written on the line, not the position in the plan.
func ParseLine(line string) (models.PlanStep, bool) {
	m := stepRe.FindStringSubmatch(line)
	if m == nil {
		return models.PlanStep{}, false
	}
	var idx int
	_, _ = fmt.Sscanf(m[1], "%d", &idx)
	return models.PlanStep{Index: idx, Agent: m[2], Capability: m[3]}, true
}

// ParseSteps extracts every well-formed step from plan text. Lines that do
// not match the step format are ignored, so model prose never leaks into
// the plan.
func ParseSteps(text string) []models.PlanStep {
	var steps []models.PlanStep
	for _, line := range strings.Split(text, "\n") {
		if step, ok := ParseLine(line); ok {
			steps = append(steps, step)
		}
	}
	return steps
}

// RenderSteps renders steps back to canonical plan text, renumbering from 1
// with the U+2192 arrow.
func RenderSteps(steps []models.PlanStep) string {
	lines := make([]string, len(steps))
	for i, s := range steps {
		lines[i] = fmt.Sprintf("%d. %s → %s", i+1, s.Agent, s.Capability)
	}
	return strings.Join(lines, "\n")
}
