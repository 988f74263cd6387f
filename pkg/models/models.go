// Package models holds the wire types shared between the orchestrator,
// the executor and the auditor. These shapes are part of the external
// contract: step traces are consumed by audit agents, and audit results
// are returned verbatim to API clients.
package models

// PlanStep is one (agent, capability) pair from a parsed plan.
type PlanStep struct {
	Index      int    `json:"index"`
	Agent      string `json:"agent"`
	Capability string `json:"capability"`
}

// StepTrace records the execution of a single plan step.
// InputUsed is the exact payload sent to the agent after context cleaning
// and meta-handler expansion. Output is the agent's raw JSON reply,
// annotated with _agent_base_url when it is an object.
type StepTrace struct {
	Step       int     `json:"step"`
	Agent      string  `json:"agent"`
	Capability string  `json:"capability,omitempty"`
	InputUsed  any     `json:"input_used,omitempty"`
	Output     any     `json:"output"`
	Error      *string `json:"error"`
	Skipped    bool    `json:"skipped,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// ExecutionTrace is the full record of a plan execution.
// FinalOutput is the output of the last non-meta step when one exists,
// otherwise the last output produced.
type ExecutionTrace struct {
	Steps               []StepTrace `json:"steps"`
	FinalOutput         any         `json:"final_output"`
	TotalWaterdropsUsed float64     `json:"total_waterdrops_used"`
}

// AuditFeedback is the auditor's verdict for one agent in a trace.
type AuditFeedback struct {
	Agent   string  `json:"agent"`
	Status  string  `json:"status"` // valid | warning | fail
	Comment string  `json:"comment"`
	Score   float64 `json:"score"` // clamped to [0, 1]
}

// AuditResult is the full audit report across a trace.
type AuditResult struct {
	Status  string          `json:"status"` // ok | partial | fail
	Summary string          `json:"summary"`
	Details []AuditFeedback `json:"details"`
}

// Audit status values.
const (
	AuditStatusOK      = "ok"
	AuditStatusPartial = "partial"
	AuditStatusFail    = "fail"

	FeedbackStatusValid   = "valid"
	FeedbackStatusWarning = "warning"
	FeedbackStatusFail    = "fail"
)

// Reserved payload keys owned by the orchestrator. Agents must treat them
// as opaque; the executor threads them through inputs and outputs.
const (
	KeyAgentBaseURL   = "_agent_base_url"
	KeyWaterdropsUsed = "waterdrops_used"
	KeyWrappedValue   = "_value"
)

// UseExecutionTrace is the custom_input_handler value that marks a
// capability as trace-consuming: the executor sends it the projection of
// all prior step traces instead of the rolling context.
const UseExecutionTrace = "use_execution_trace"
