package auditor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/clearcoreai/clearcore/pkg/models"
)

// PolicyDiscoveryError reports a failed strict policy discovery: a trace
// agent without a discoverable base URL, an unreachable /audit_policy, or
// a policy without substance. Mapped to 422 at the HTTP boundary.
type PolicyDiscoveryError struct {
	Agent  string
	Reason string
}

func (e *PolicyDiscoveryError) Error() string {
	return fmt.Sprintf("policy discovery failed for agent %q: %s", e.Agent, e.Reason)
}

// discoverPolicies fetches the audit policy of every agent in the trace.
// Discovery is strict: every agent must yield a policy object with a
// non-empty rules list, or the whole audit is refused.
func (c *Core) discoverPolicies(ctx context.Context, t *Trace) (map[string]any, error) {
	policies := make(map[string]any)
	for _, agent := range t.AgentNames() {
		baseURL, ok := findBaseURL(t, agent)
		if !ok {
			return nil, &PolicyDiscoveryError{Agent: agent, Reason: "no _agent_base_url found in trace inputs or outputs"}
		}
		policy, err := c.fetchPolicy(ctx, agent, baseURL)
		if err != nil {
			return nil, err
		}
		policies[agent] = policy
	}
	return policies, nil
}

// findBaseURL searches the agent's steps for a base URL annotation, inputs
// before outputs.
func findBaseURL(t *Trace, agent string) (string, bool) {
	for _, s := range t.Steps {
		if s.Agent != agent {
			continue
		}
		if url, ok := baseURLFrom(s.Input); ok {
			return url, true
		}
		if url, ok := baseURLFrom(s.Output); ok {
			return url, true
		}
	}
	return "", false
}

func baseURLFrom(value any) (string, bool) {
	obj, ok := value.(map[string]any)
	if !ok {
		return "", false
	}
	url, ok := obj[models.KeyAgentBaseURL].(string)
	return url, ok && url != ""
}

func (c *Core) fetchPolicy(ctx context.Context, agent, baseURL string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PolicyTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/audit_policy", nil)
	if err != nil {
		return nil, &PolicyDiscoveryError{Agent: agent, Reason: err.Error()}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &PolicyDiscoveryError{Agent: agent, Reason: fmt.Sprintf("GET %s/audit_policy: %v", baseURL, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &PolicyDiscoveryError{Agent: agent, Reason: fmt.Sprintf("read policy response: %v", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &PolicyDiscoveryError{Agent: agent, Reason: fmt.Sprintf("GET /audit_policy returned status %d", resp.StatusCode)}
	}

	var policy map[string]any
	if err := json.Unmarshal(body, &policy); err != nil {
		return nil, &PolicyDiscoveryError{Agent: agent, Reason: "audit policy is not a JSON object"}
	}
	rules, ok := policy["rules"].([]any)
	if !ok || len(rules) == 0 {
		return nil, &PolicyDiscoveryError{Agent: agent, Reason: "audit policy has no rules"}
	}
	return policy, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
