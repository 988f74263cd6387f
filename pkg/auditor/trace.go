// Package auditor judges execution traces against per-agent audit
// policies. Policies are discovered strictly from the agents referenced in
// the trace; the verdict itself comes from an LLM and is coerced into a
// fixed schema before it leaves this package.
package auditor

import (
	"errors"
	"fmt"
)

// TraceStep is one executed step as published by the orchestrator.
type TraceStep struct {
	Agent  string  `json:"agent"`
	Input  any     `json:"input"`
	Output any     `json:"output"`
	Error  *string `json:"error"`
}

// Trace is the audit input.
type Trace struct {
	Steps []TraceStep `json:"steps"`
}

// ErrEmptyTrace indicates a trace with no steps.
var ErrEmptyTrace = errors.New("execution trace has no steps")

// ValidationError reports a structurally invalid trace.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid execution trace: %s", e.Reason)
}

// Validate checks the trace shape before any network or LLM work.
func (t *Trace) Validate() error {
	if len(t.Steps) == 0 {
		return ErrEmptyTrace
	}
	for i, s := range t.Steps {
		if s.Agent == "" {
			return &ValidationError{Reason: fmt.Sprintf("steps[%d] is missing the agent name", i)}
		}
	}
	return nil
}

// AgentNames returns the unique agent names in trace order of first
// appearance.
func (t *Trace) AgentNames() []string {
	seen := make(map[string]bool, len(t.Steps))
	var names []string
	for _, s := range t.Steps {
		if !seen[s.Agent] {
			seen[s.Agent] = true
			names = append(names, s.Agent)
		}
	}
	return names
}
