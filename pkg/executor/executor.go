// Package executor runs plans step by step against registered agents.
// Execution is strictly sequential; the trace records every step in plan
// order, and the first transport failure halts the run. Bad steps that
// never reach the network (unknown agent, unadvertised capability,
// malformed line) are recorded and skipped without halting.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/clearcoreai/clearcore/pkg/events"
	"github.com/clearcoreai/clearcore/pkg/models"
	"github.com/clearcoreai/clearcore/pkg/planner"
	"github.com/clearcoreai/clearcore/pkg/registry"
	"github.com/clearcoreai/clearcore/pkg/water"
)

// Config holds executor tuning knobs.
type Config struct {
	StepTimeout time.Duration // per agent call, default 30s
}

// Executor dispatches plan steps to agents over HTTP.
type Executor struct {
	cfg        Config
	httpClient *http.Client
	water      *water.Accountant
	events     events.Publisher
	logger     *slog.Logger
}

// New creates an executor. pub may be events.NopPublisher{}.
func New(acct *water.Accountant, pub events.Publisher, cfg Config) *Executor {
	if cfg.StepTimeout == 0 {
		cfg.StepTimeout = 30 * time.Second
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Executor{
		cfg:        cfg,
		httpClient: &http.Client{},
		water:      acct,
		events:     pub,
		logger:     slog.Default().With("component", "executor"),
	}
}

const (
	errUnrecognizedFormat = "Unrecognized format"
	reasonNotAdvertised   = "Capability not advertised by agent manifest"
)

// Execute runs plan text against the registry view taken at plan start.
// It always returns a trace; step failures live inside it. goal is carried
// into run events only and may be empty. Water cost: +0.02 flat, agents
// account for their own work.
func (e *Executor) Execute(ctx context.Context, runID, goal, planText string, view *registry.View) *models.ExecutionTrace {
	trace := &models.ExecutionTrace{Steps: []models.StepTrace{}}

	var (
		rolling  any  // last step output, object or not
		business any  // last non-meta output
		halted   bool
	)

	lines := strings.Split(planText, "\n")
	started := events.RunStartedPayload{
		Type:  events.EventTypeRunStarted,
		RunID: runID,
		Goal:  goal,
		Steps: len(planner.ParseSteps(planText)),
	}
	e.events.Publish(events.ChannelRuns, started)
	e.events.Publish(events.ChannelRun(runID), started)

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		position := len(trace.Steps) + 1

		step, ok := planner.ParseLine(line)
		if !ok {
			msg := errUnrecognizedFormat
			trace.Steps = append(trace.Steps, models.StepTrace{Step: position, Error: &msg})
			continue
		}

		e.events.Publish(events.ChannelRun(runID), events.StepPayload{
			Type:       events.EventTypeStepStarted,
			RunID:      runID,
			Step:       position,
			Agent:      step.Agent,
			Capability: step.Capability,
		})

		entry, output, meta, halt := e.runStep(ctx, position, step, rolling, trace, view)
		trace.Steps = append(trace.Steps, entry)

		e.events.Publish(events.ChannelRun(runID), events.StepPayload{
			Type:       events.EventTypeStepCompleted,
			RunID:      runID,
			Step:       position,
			Agent:      step.Agent,
			Capability: step.Capability,
			Error:      derefOrEmpty(entry.Error),
			Skipped:    entry.Skipped,
		})

		if halt {
			halted = true
			break
		}
		if entry.Error != nil || entry.Skipped {
			continue
		}

		rolling = output
		if !meta {
			business = output
		}
	}

	final := business
	if final == nil {
		final = rolling
	}
	trace.FinalOutput = final
	trace.TotalWaterdropsUsed = extractWaterdrops(final)

	e.water.Add(water.CostExecutePlan)
	completed := events.RunCompletedPayload{
		Type:           events.EventTypeRunCompleted,
		RunID:          runID,
		Steps:          len(trace.Steps),
		WaterdropsUsed: trace.TotalWaterdropsUsed,
		HaltedOnError:  halted,
	}
	e.events.Publish(events.ChannelRuns, completed)
	e.events.Publish(events.ChannelRun(runID), completed)
	e.logger.Info("Plan executed", "run_id", runID, "steps", len(trace.Steps), "halted", halted)
	return trace
}

// runStep prepares the payload and dispatches one step. The returned meta
// flag reports whether the capability consumed the execution trace instead
// of the rolling context; halt is set when a dispatched call failed at the
// transport or HTTP level.
func (e *Executor) runStep(ctx context.Context, position int, step models.PlanStep, rolling any, trace *models.ExecutionTrace, view *registry.View) (entry models.StepTrace, output any, meta, halt bool) {
	entry = models.StepTrace{Step: position, Agent: step.Agent, Capability: step.Capability}

	rec, ok := view.Get(step.Agent)
	if !ok {
		msg := fmt.Sprintf("Agent %q is not registered", step.Agent)
		entry.Error = &msg
		return entry, nil, false, false
	}

	capability, ok := rec.Capability(step.Capability)
	if !ok {
		entry.Skipped = true
		entry.Reason = reasonNotAdvertised
		return entry, nil, false, false
	}

	meta = capability.CustomInputHandler == models.UseExecutionTrace

	var payload map[string]any
	if meta {
		payload = traceProjection(trace)
	} else {
		payload = normalizeContext(rolling)
	}
	payload[models.KeyAgentBaseURL] = rec.BaseURL
	entry.InputUsed = payload

	output, err := e.dispatch(ctx, rec.BaseURL, step.Capability, payload)
	if err != nil {
		msg := err.Error()
		entry.Error = &msg
		entry.Output = nil
		return entry, nil, meta, true
	}

	// Annotate object outputs so downstream consumers (the auditor in
	// particular) can rediscover the agent. Idempotent.
	if obj, ok := output.(map[string]any); ok {
		obj[models.KeyAgentBaseURL] = rec.BaseURL
	}
	entry.Output = output
	return entry, output, meta, false
}

func (e *Executor) dispatch(ctx context.Context, baseURL, capability string, input map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.StepTimeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"capability": capability,
		"input":      input,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent call failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read agent response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent returned status %d: %s", resp.StatusCode, truncate(string(respBody), 256))
	}

	var output any
	if err := json.Unmarshal(respBody, &output); err != nil {
		return nil, fmt.Errorf("agent response is not JSON: %v", err)
	}
	return output, nil
}

// normalizeContext shapes the rolling context into an object payload:
// nil becomes {}, objects are copied with the waterdrops_used meta key
// stripped, anything else is wrapped under _value.
func normalizeContext(rolling any) map[string]any {
	switch v := rolling.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			if k == models.KeyWaterdropsUsed {
				continue
			}
			out[k] = val
		}
		return out
	default:
		return map[string]any{models.KeyWrappedValue: v}
	}
}

// traceProjection builds the input for trace-consuming capabilities from
// the entries recorded so far.
func traceProjection(trace *models.ExecutionTrace) map[string]any {
	steps := make([]map[string]any, 0, len(trace.Steps))
	for _, s := range trace.Steps {
		steps = append(steps, map[string]any{
			"agent":  s.Agent,
			"input":  s.InputUsed,
			"output": s.Output,
			"error":  s.Error,
		})
	}
	return map[string]any{"steps": steps}
}

func extractWaterdrops(output any) float64 {
	obj, ok := output.(map[string]any)
	if !ok {
		return 0
	}
	if v, ok := obj[models.KeyWaterdropsUsed].(float64); ok {
		return v
	}
	return 0
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
