package auditor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/clearcoreai/clearcore/pkg/llm"
	"github.com/clearcoreai/clearcore/pkg/models"
	"github.com/clearcoreai/clearcore/pkg/water"
)

// ChatClient is the slice of the LLM client the auditor needs.
type ChatClient interface {
	HasKey() bool
	Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error)
}

// Config holds auditor tuning knobs.
type Config struct {
	Model         string
	Temperature   float64       // default 0.2
	LLMTimeout    time.Duration // default 45s
	PolicyTimeout time.Duration // per policy fetch, default 4s
	LastCheckPath string        // last_check persistence, optional
}

// Core runs policy-driven audits over execution traces.
type Core struct {
	cfg        Config
	llm        ChatClient
	httpClient *http.Client
	water      *water.Accountant
	logger     *slog.Logger
}

// NewCore creates an auditor core.
func NewCore(client ChatClient, acct *water.Accountant, cfg Config) *Core {
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.2
	}
	if cfg.LLMTimeout == 0 {
		cfg.LLMTimeout = 45 * time.Second
	}
	if cfg.PolicyTimeout == 0 {
		cfg.PolicyTimeout = 4 * time.Second
	}
	return &Core{
		cfg:        cfg,
		llm:        client,
		httpClient: &http.Client{},
		water:      acct,
		logger:     slog.Default().With("component", "auditor"),
	}
}

const systemPrompt = `You are a rigorous pipeline auditor for a multi-agent orchestration system.
You will receive:
  (1) A compact execution trace (list of steps from different agents)
  (2) A dictionary of per-agent audit policies

Your job:
- Apply the per-agent policies STRICTLY to evaluate each step:
    - If a policy rule indicates a FAIL condition for a step, mark that step 'fail'.
    - Use 'warning' for policy soft breaches (quality/length/etc.).
    - Use 'valid' only when the step output clearly satisfies all required rules.
- Derive the GLOBAL status: 'ok' if ALL details are 'valid'; 'partial' if any 'warning' and none 'fail'; 'fail' if ANY step is 'fail'.
- Return ONLY a JSON object that matches EXACTLY this schema:
{
  "status": "ok" | "partial" | "fail",
  "summary": "string",
  "details": [
    {
      "agent": "string",
      "status": "valid" | "warning" | "fail",
      "comment": "string",
      "score": number between 0.0 and 1.0
    }
  ]
}
- Do NOT include extra keys or any text outside JSON.`

// Run audits a trace: strict policy discovery, LLM judgment, schema
// coercion. Water cost: 6 + 0.5 per step.
func (c *Core) Run(ctx context.Context, t *Trace) (*models.AuditResult, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if !c.llm.HasKey() {
		return nil, llm.ErrMissingAPIKey
	}

	policies, err := c.discoverPolicies(ctx, t)
	if err != nil {
		return nil, err
	}

	policiesJSON, err := json.Marshal(policies)
	if err != nil {
		policiesJSON = []byte("{}")
	}
	compactJSON, err := json.Marshal(CompactTrace(t))
	if err != nil {
		return nil, fmt.Errorf("compact trace: %w", err)
	}

	user := fmt.Sprintf(
		"Per-agent policies (MUST APPLY AS WRITTEN):\n%s\n\n"+
			"Compact execution trace to audit (use for evidence, but policies govern decisions):\n%s\n"+
			"Return ONLY the JSON object.",
		policiesJSON, compactJSON)

	reply, err := c.llm.Chat(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user},
	}, llm.ChatOptions{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		Timeout:     c.cfg.LLMTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("audit llm call: %w", err)
	}

	parsed, err := llm.ExtractJSONObject(reply)
	if err != nil {
		return nil, fmt.Errorf("audit reply: %w", err)
	}
	result := CoerceAudit(parsed)

	c.water.Add(water.AuditCost(len(t.Steps)))
	c.persistLastCheck(result.Summary)
	c.logger.Info("Audit completed",
		"steps", len(t.Steps),
		"status", result.Status,
		"details", len(result.Details))
	return result, nil
}

// lastCheckState is the small state file the auditor keeps next to its
// water snapshot.
type lastCheckState struct {
	LastCheck *string `json:"last_check"`
}

// persistLastCheck records the latest audit summary. Best effort; failures
// are logged and swallowed.
func (c *Core) persistLastCheck(summary string) {
	if c.cfg.LastCheckPath == "" {
		return
	}
	state := lastCheckState{LastCheck: &summary}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return
	}

	dir := filepath.Dir(c.cfg.LastCheckPath)
	tmp, err := os.CreateTemp(dir, ".last-check-*.json")
	if err != nil {
		c.logger.Warn("Could not persist last check", "error", err)
		return
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		_ = os.Remove(tmpName)
		c.logger.Warn("Could not persist last check", "error", writeErr)
		return
	}
	if err := os.Rename(tmpName, c.cfg.LastCheckPath); err != nil {
		_ = os.Remove(tmpName)
		c.logger.Warn("Could not persist last check", "error", err)
	}
}

// LastCheck returns the persisted summary of the most recent audit.
func (c *Core) LastCheck() (string, bool) {
	if c.cfg.LastCheckPath == "" {
		return "", false
	}
	data, err := os.ReadFile(c.cfg.LastCheckPath)
	if err != nil {
		return "", false
	}
	var state lastCheckState
	if err := json.Unmarshal(data, &state); err != nil || state.LastCheck == nil {
		return "", false
	}
	return *state.LastCheck, true
}
