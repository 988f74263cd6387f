// Package planner turns a natural-language goal into an executable plan:
// a feasibility gate, LLM plan generation against the capability catalog,
// strict parsing, and schema-driven validation and repair. The model is
// never trusted; every emitted step is checked against the catalog.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/clearcoreai/clearcore/pkg/llm"
	"github.com/clearcoreai/clearcore/pkg/models"
	"github.com/clearcoreai/clearcore/pkg/registry"
	"github.com/clearcoreai/clearcore/pkg/water"
)

// ChatClient is the slice of the LLM client the planner needs.
type ChatClient interface {
	HasKey() bool
	Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error)
}

// Config holds planner tuning knobs.
type Config struct {
	Model                  string
	FeasibilityTemperature float64       // default 0.0
	PlanTemperature        float64       // default 0.5
	FeasibilityTimeout     time.Duration // feasibility call, default 20s
	Timeout                time.Duration // plan generation call, default 30s
}

// Planner generates and validates plans.
type Planner struct {
	llm    ChatClient
	water  *water.Accountant
	cfg    Config
	logger *slog.Logger
}

// New creates a planner.
func New(client ChatClient, acct *water.Accountant, cfg Config) *Planner {
	if cfg.PlanTemperature == 0 {
		cfg.PlanTemperature = 0.5
	}
	if cfg.FeasibilityTimeout == 0 {
		cfg.FeasibilityTimeout = 20 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Planner{
		llm:    client,
		water:  acct,
		cfg:    cfg,
		logger: slog.Default().With("component", "planner"),
	}
}

// Result is an emitted plan: canonical text plus the parsed steps it
// renders, renumbered from 1.
type Result struct {
	PlanText string
	Steps    []models.PlanStep
}

const unsupportedPrefix = "UNSUPPORTED"

// Plan runs the full pipeline for one goal. Water cost: +1 on success.
func (p *Planner) Plan(ctx context.Context, goal string, cat *registry.Catalog) (*Result, error) {
	if cat.Empty() {
		return nil, fmt.Errorf("%w: no agents registered", ErrNoExecutableSteps)
	}

	if !p.checkFeasibility(ctx, goal, cat) {
		return nil, &UnsupportedGoalError{Reason: "goal judged infeasible with the registered agents"}
	}

	text, err := p.generate(ctx, goal, cat)
	if err != nil {
		return nil, err
	}

	if reason, ok := parseUnsupported(text); ok {
		return nil, &UnsupportedGoalError{Reason: reason}
	}

	steps := p.validateAndRepair(ParseSteps(text), cat)
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: every generated step was rejected", ErrNoExecutableSteps)
	}

	for i := range steps {
		steps[i].Index = i + 1
	}
	p.water.Add(water.CostPlan)
	p.logger.Info("Plan generated", "goal_len", len(goal), "steps", len(steps))

	return &Result{PlanText: RenderSteps(steps), Steps: steps}, nil
}

const feasibilitySystemPrompt = `You are a strict feasibility checker for an AI agent orchestration system.
You receive a catalog of registered agents and a user goal.
Answer ONLY with a JSON object of the exact form {"feasible": true} or {"feasible": false}.
Answer true only if the goal can plausibly be achieved by chaining the listed capabilities.
Do not add any other text.`

// checkFeasibility asks the model for a yes/no verdict. Any failure, from
// transport errors to malformed replies, counts as infeasible.
func (p *Planner) checkFeasibility(ctx context.Context, goal string, cat *registry.Catalog) bool {
	messages := []llm.Message{
		{Role: "system", Content: feasibilitySystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Agent catalog:\n%s\n\nGoal: %s", cat.CompactJSON(), goal)},
	}
	reply, err := p.llm.Chat(ctx, messages, llm.ChatOptions{
		Model:       p.cfg.Model,
		Temperature: p.cfg.FeasibilityTemperature,
		Timeout:     p.cfg.FeasibilityTimeout,
	})
	if err != nil {
		p.logger.Warn("Feasibility check failed, treating goal as infeasible", "error", err)
		return false
	}

	obj, err := llm.ExtractJSONObject(reply)
	if err != nil {
		p.logger.Warn("Feasibility reply was not JSON, treating goal as infeasible")
		return false
	}
	feasible, _ := obj["feasible"].(bool)
	return feasible
}

const generateSystemPrompt = `You are a planning assistant for an AI agent orchestration system.
Your task is to generate a strictly step-by-step execution plan to fulfill a user goal using ONLY the agents in the catalog below.

Agent catalog (JSON):
%s

Rules:
- Use ONLY agent names and capability names that appear in the catalog. Never invent agents or capabilities.
- Your entire response must be numbered plan steps, one per line, in the exact format "N. AgentName → capability_name".
- Do NOT mention code, external tools, or add any explanations.
- If the catalog contains an audit capability (named "audit_trace", marked with custom_input_handler "use_execution_trace", or whose name contains "audit"), include it exactly once as the final step.
- If the goal cannot be achieved with the listed capabilities, respond with exactly "UNSUPPORTED | <short reason>" and nothing else.`

func (p *Planner) generate(ctx context.Context, goal string, cat *registry.Catalog) (string, error) {
	messages := []llm.Message{
		{Role: "system", Content: fmt.Sprintf(generateSystemPrompt, cat.CompactJSON())},
		{Role: "user", Content: fmt.Sprintf("Goal: %s\n\nRespond strictly in the format above.", goal)},
	}
	reply, err := p.llm.Chat(ctx, messages, llm.ChatOptions{
		Model:       p.cfg.Model,
		Temperature: p.cfg.PlanTemperature,
		Timeout:     p.cfg.Timeout,
	})
	if err != nil {
		return "", fmt.Errorf("plan generation: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

func parseUnsupported(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, unsupportedPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(trimmed, unsupportedPrefix)
	rest = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), "|"))
	if rest == "" {
		rest = "goal not supported by the registered agents"
	}
	return rest, true
}

// validateAndRepair enforces the catalog on model output:
//  1. steps naming unknown agent/capability pairs are dropped;
//  2. when at least one agent declares specs, consecutive steps must have
//     compatible specs, with a one-shot substitution of another agent that
//     advertises the same capability and a compatible input spec;
//  3. a detected audit capability is kept as a single terminal step.
func (p *Planner) validateAndRepair(steps []models.PlanStep, cat *registry.Catalog) []models.PlanStep {
	var kept []models.PlanStep
	for _, s := range steps {
		if cat.Has(s.Agent, s.Capability) {
			kept = append(kept, s)
		} else {
			p.logger.Warn("Dropping step not present in catalog", "agent", s.Agent, "capability", s.Capability)
		}
	}

	if cat.HasSpecs() {
		kept = p.repairSpecChain(kept, cat)
	}

	if audit, ok := cat.FindAuditStep(); ok {
		kept = ensureTerminalAudit(kept, audit)
	}
	return kept
}

func (p *Planner) repairSpecChain(steps []models.PlanStep, cat *registry.Catalog) []models.PlanStep {
	var (
		kept    []models.PlanStep
		prevOut map[string]any
	)
	for i, s := range steps {
		entry := cat.Agents[s.Agent]
		if i == 0 {
			kept = append(kept, s)
			prevOut = entry.OutputSpec
			continue
		}
		if registry.CompatibleSpecs(prevOut, entry.InputSpec) {
			kept = append(kept, s)
			prevOut = entry.OutputSpec
			continue
		}

		if sub, ok := p.findSubstitute(s, prevOut, cat); ok {
			p.logger.Info("Substituting agent for spec compatibility",
				"capability", s.Capability, "from", s.Agent, "to", sub.Agent)
			kept = append(kept, sub)
			prevOut = cat.Agents[sub.Agent].OutputSpec
			continue
		}
		p.logger.Warn("Dropping spec-incompatible step", "agent", s.Agent, "capability", s.Capability)
	}
	return kept
}

// findSubstitute searches, in sorted agent order for determinism, for
// another agent that advertises the same capability with a compatible
// input spec.
func (p *Planner) findSubstitute(s models.PlanStep, prevOut map[string]any, cat *registry.Catalog) (models.PlanStep, bool) {
	for _, name := range cat.AgentNames() {
		if name == s.Agent {
			continue
		}
		entry := cat.Agents[name]
		if !cat.Has(name, s.Capability) {
			continue
		}
		if registry.CompatibleSpecs(prevOut, entry.InputSpec) {
			return models.PlanStep{Agent: name, Capability: s.Capability}, true
		}
	}
	return models.PlanStep{}, false
}

// ensureTerminalAudit leaves exactly one audit step, at the end.
func ensureTerminalAudit(steps []models.PlanStep, audit registry.AuditStep) []models.PlanStep {
	var out []models.PlanStep
	for _, s := range steps {
		if s.Agent == audit.Agent && s.Capability == audit.Capability {
			continue
		}
		out = append(out, s)
	}
	return append(out, models.PlanStep{Agent: audit.Agent, Capability: audit.Capability})
}
