// Package events provides real-time run progress delivery over WebSocket.
// Events are published in-process by the executor and fanned out to every
// connection subscribed to the matching channel. There is no persistence:
// a client that connects mid-run only sees events from that point on.
package events

// Event types published during a run.
const (
	EventTypeRunStarted    = "run.started"
	EventTypeStepStarted   = "step.started"
	EventTypeStepCompleted = "step.completed"
	EventTypeRunCompleted  = "run.completed"
)

// ChannelRuns carries lifecycle events for every run.
const ChannelRuns = "runs"

// ChannelRun returns the per-run channel name.
func ChannelRun(runID string) string { return "run:" + runID }

// ClientMessage is a message from a WebSocket client.
type ClientMessage struct {
	Action  string `json:"action"`  // subscribe | unsubscribe | ping
	Channel string `json:"channel"` // required for subscribe/unsubscribe
}

// RunStartedPayload announces a new run.
type RunStartedPayload struct {
	Type  string `json:"type"`
	RunID string `json:"run_id"`
	Goal  string `json:"goal,omitempty"`
	Steps int    `json:"steps"`
}

// StepPayload reports one step starting or finishing.
type StepPayload struct {
	Type       string `json:"type"`
	RunID      string `json:"run_id"`
	Step       int    `json:"step"`
	Agent      string `json:"agent"`
	Capability string `json:"capability"`
	Error      string `json:"error,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
}

// RunCompletedPayload closes out a run.
type RunCompletedPayload struct {
	Type           string  `json:"type"`
	RunID          string  `json:"run_id"`
	Steps          int     `json:"steps"`
	WaterdropsUsed float64 `json:"waterdrops_used"`
	HaltedOnError  bool    `json:"halted_on_error,omitempty"`
}

// Publisher is the producer-side surface of the hub. The executor holds a
// Publisher; NopPublisher keeps library use simple when no hub is wired.
type Publisher interface {
	Publish(channel string, payload any)
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(string, any) {}
