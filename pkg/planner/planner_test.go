package planner

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearcoreai/clearcore/pkg/llm"
	"github.com/clearcoreai/clearcore/pkg/models"
	"github.com/clearcoreai/clearcore/pkg/registry"
	"github.com/clearcoreai/clearcore/pkg/water"
)

// scriptedChat replays canned replies in call order: the feasibility check
// consumes the first reply, plan generation the second. Options are
// recorded per call.
type scriptedChat struct {
	replies []string
	err     error
	calls   int
	opts    []llm.ChatOptions
}

func (f *scriptedChat) HasKey() bool { return true }

func (f *scriptedChat) Chat(_ context.Context, _ []llm.Message, opts llm.ChatOptions) (string, error) {
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return "", f.err
	}
	if f.calls >= len(f.replies) {
		return "", errors.New("no scripted reply left")
	}
	reply := f.replies[f.calls]
	f.calls++
	return reply, nil
}

func testCatalog() *registry.Catalog {
	return &registry.Catalog{Agents: map[string]registry.CatalogAgent{
		"fetcher": {
			Capabilities:   []string{"fetch"},
			CapabilityMeta: map[string]registry.CapabilityMeta{"fetch": {}},
			OutputSpec:     map[string]any{"type": "articles"},
		},
		"summarizer": {
			Capabilities:   []string{"summarize"},
			CapabilityMeta: map[string]registry.CapabilityMeta{"summarize": {}},
			InputSpec:      map[string]any{"type": "articles"},
			OutputSpec:     map[string]any{"type": "summaries"},
		},
		"auditor": {
			Capabilities: []string{"audit_trace"},
			CapabilityMeta: map[string]registry.CapabilityMeta{
				"audit_trace": {CustomInputHandler: "use_execution_trace"},
			},
		},
	}}
}

func newTestPlanner(t *testing.T, chat ChatClient) (*Planner, *water.Accountant) {
	t.Helper()
	acct := water.NewAccountant(filepath.Join(t.TempDir(), "aiwaterdrops.json"))
	return New(chat, acct, Config{Model: "mistral-small"}), acct
}

func TestPlanHappyPath(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		`{"feasible": true}`,
		"1. fetcher → fetch\n2. summarizer → summarize\n3. auditor → audit_trace",
	}}
	p, acct := newTestPlanner(t, chat)

	result, err := p.Plan(context.Background(), "summarize the news", testCatalog())
	require.NoError(t, err)

	require.Len(t, result.Steps, 3)
	assert.Equal(t, models.PlanStep{Index: 1, Agent: "fetcher", Capability: "fetch"}, result.Steps[0])
	assert.Equal(t, "auditor", result.Steps[2].Agent)
	assert.Equal(t, "1. fetcher → fetch\n2. summarizer → summarize\n3. auditor → audit_trace", result.PlanText)
	assert.InDelta(t, water.CostPlan, acct.Get(), 1e-9)
}

func TestPlanEmptyCatalog(t *testing.T) {
	p, _ := newTestPlanner(t, &scriptedChat{})

	_, err := p.Plan(context.Background(), "anything", &registry.Catalog{Agents: map[string]registry.CatalogAgent{}})
	assert.ErrorIs(t, err, ErrNoExecutableSteps)
}

func TestPlanInfeasibleGoal(t *testing.T) {
	chat := &scriptedChat{replies: []string{`{"feasible": false}`}}
	p, acct := newTestPlanner(t, chat)

	_, err := p.Plan(context.Background(), "fly to the moon", testCatalog())

	var unsupported *UnsupportedGoalError
	require.ErrorAs(t, err, &unsupported, "a refused goal is unsupported, not an internal failure")
	assert.Contains(t, unsupported.Reason, "infeasible")
	assert.Equal(t, 0.0, acct.Get(), "rejected goals must not be charged")
}

func TestPlanFeasibilityTransportErrorIsInfeasible(t *testing.T) {
	p, _ := newTestPlanner(t, &scriptedChat{err: errors.New("connection refused")})

	_, err := p.Plan(context.Background(), "anything", testCatalog())

	var unsupported *UnsupportedGoalError
	assert.ErrorAs(t, err, &unsupported)
}

func TestPlanPerCallTimeouts(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		chat := &scriptedChat{replies: []string{
			`{"feasible": true}`,
			"1. fetcher → fetch",
		}}
		acct := water.NewAccountant(filepath.Join(t.TempDir(), "aiwaterdrops.json"))
		p := New(chat, acct, Config{Model: "mistral-small"})

		_, err := p.Plan(context.Background(), "fetch the news", testCatalog())
		require.NoError(t, err)

		require.Len(t, chat.opts, 2)
		assert.Equal(t, 20*time.Second, chat.opts[0].Timeout, "feasibility call")
		assert.Equal(t, 30*time.Second, chat.opts[1].Timeout, "plan generation call")
	})

	t.Run("configured", func(t *testing.T) {
		chat := &scriptedChat{replies: []string{
			`{"feasible": true}`,
			"1. fetcher → fetch",
		}}
		acct := water.NewAccountant(filepath.Join(t.TempDir(), "aiwaterdrops.json"))
		p := New(chat, acct, Config{
			Model:              "mistral-small",
			FeasibilityTimeout: 5 * time.Second,
			Timeout:            15 * time.Second,
		})

		_, err := p.Plan(context.Background(), "fetch the news", testCatalog())
		require.NoError(t, err)

		require.Len(t, chat.opts, 2)
		assert.Equal(t, 5*time.Second, chat.opts[0].Timeout)
		assert.Equal(t, 15*time.Second, chat.opts[1].Timeout)
	})
}

func TestPlanUnsupportedGoal(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		`{"feasible": true}`,
		"UNSUPPORTED | no agent can send email",
	}}
	p, _ := newTestPlanner(t, chat)

	_, err := p.Plan(context.Background(), "send an email", testCatalog())

	var unsupported *UnsupportedGoalError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "no agent can send email", unsupported.Reason)
}

func TestPlanDropsHallucinatedSteps(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		`{"feasible": true}`,
		"1. fetcher → fetch\n2. mailer → send_email\n3. auditor → audit_trace",
	}}
	p, _ := newTestPlanner(t, chat)

	result, err := p.Plan(context.Background(), "summarize the news", testCatalog())
	require.NoError(t, err)

	require.Len(t, result.Steps, 2)
	assert.Equal(t, "fetcher", result.Steps[0].Agent)
	assert.Equal(t, "auditor", result.Steps[1].Agent)
}

func TestPlanAllStepsRejected(t *testing.T) {
	cat := &registry.Catalog{Agents: map[string]registry.CatalogAgent{
		"fetcher": {
			Capabilities:   []string{"fetch"},
			CapabilityMeta: map[string]registry.CapabilityMeta{"fetch": {}},
		},
	}}
	chat := &scriptedChat{replies: []string{
		`{"feasible": true}`,
		"1. mailer → send_email",
	}}
	p, _ := newTestPlanner(t, chat)

	_, err := p.Plan(context.Background(), "send an email", cat)
	assert.ErrorIs(t, err, ErrNoExecutableSteps)
}

func TestPlanAppendsMissingAuditStep(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		`{"feasible": true}`,
		"1. fetcher → fetch\n2. summarizer → summarize",
	}}
	p, _ := newTestPlanner(t, chat)

	result, err := p.Plan(context.Background(), "summarize the news", testCatalog())
	require.NoError(t, err)

	require.Len(t, result.Steps, 3)
	last := result.Steps[len(result.Steps)-1]
	assert.Equal(t, "auditor", last.Agent)
	assert.Equal(t, "audit_trace", last.Capability)
}

func TestPlanDeduplicatesAuditStep(t *testing.T) {
	chat := &scriptedChat{replies: []string{
		`{"feasible": true}`,
		"1. auditor → audit_trace\n2. fetcher → fetch\n3. auditor → audit_trace",
	}}
	p, _ := newTestPlanner(t, chat)

	result, err := p.Plan(context.Background(), "summarize the news", testCatalog())
	require.NoError(t, err)

	var auditCount int
	for _, s := range result.Steps {
		if s.Capability == "audit_trace" {
			auditCount++
		}
	}
	assert.Equal(t, 1, auditCount)
	assert.Equal(t, "audit_trace", result.Steps[len(result.Steps)-1].Capability)
}

func TestPlanSpecChainSubstitution(t *testing.T) {
	// two summarizers advertise the same capability with different input
	// specs; only one can consume the fetcher's articles.
	cat := &registry.Catalog{Agents: map[string]registry.CatalogAgent{
		"fetcher": {
			Capabilities:   []string{"fetch"},
			CapabilityMeta: map[string]registry.CapabilityMeta{"fetch": {}},
			OutputSpec:     map[string]any{"type": "articles"},
		},
		"video-summarizer": {
			Capabilities:   []string{"summarize"},
			CapabilityMeta: map[string]registry.CapabilityMeta{"summarize": {}},
			InputSpec:      map[string]any{"type": "videos"},
		},
		"text-summarizer": {
			Capabilities:   []string{"summarize"},
			CapabilityMeta: map[string]registry.CapabilityMeta{"summarize": {}},
			InputSpec:      map[string]any{"type": "articles"},
		},
	}}
	chat := &scriptedChat{replies: []string{
		`{"feasible": true}`,
		"1. fetcher → fetch\n2. video-summarizer → summarize",
	}}
	p, _ := newTestPlanner(t, chat)

	result, err := p.Plan(context.Background(), "summarize the news", cat)
	require.NoError(t, err)

	require.Len(t, result.Steps, 2)
	assert.Equal(t, "text-summarizer", result.Steps[1].Agent)
}

func TestPlanDropsIncompatibleStepWithoutSubstitute(t *testing.T) {
	cat := &registry.Catalog{Agents: map[string]registry.CatalogAgent{
		"fetcher": {
			Capabilities:   []string{"fetch"},
			CapabilityMeta: map[string]registry.CapabilityMeta{"fetch": {}},
			OutputSpec:     map[string]any{"type": "articles"},
		},
		"transcriber": {
			Capabilities:   []string{"transcribe"},
			CapabilityMeta: map[string]registry.CapabilityMeta{"transcribe": {}},
			InputSpec:      map[string]any{"type": "audio"},
		},
	}}
	chat := &scriptedChat{replies: []string{
		`{"feasible": true}`,
		"1. fetcher → fetch\n2. transcriber → transcribe",
	}}
	p, _ := newTestPlanner(t, chat)

	result, err := p.Plan(context.Background(), "transcribe the news", cat)
	require.NoError(t, err)

	require.Len(t, result.Steps, 1)
	assert.Equal(t, "fetcher", result.Steps[0].Agent)
}

func TestParseUnsupported(t *testing.T) {
	reason, ok := parseUnsupported("UNSUPPORTED | nothing can do this")
	require.True(t, ok)
	assert.Equal(t, "nothing can do this", reason)

	reason, ok = parseUnsupported("UNSUPPORTED")
	require.True(t, ok)
	assert.NotEmpty(t, reason)

	_, ok = parseUnsupported("1. fetcher → fetch")
	assert.False(t, ok)
}
