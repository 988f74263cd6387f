package registry

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/clearcoreai/clearcore/pkg/manifest"
	"github.com/clearcoreai/clearcore/pkg/models"
)

// CapabilityMeta is the catalog's per-capability descriptor.
type CapabilityMeta struct {
	Description        string `json:"description,omitempty"`
	CustomInputHandler string `json:"custom_input_handler,omitempty"`
}

// CatalogAgent is one agent's projection in the catalog.
type CatalogAgent struct {
	Capabilities   []string                  `json:"capabilities"`
	CapabilityMeta map[string]CapabilityMeta `json:"capability_meta"`
	InputSpec      map[string]any            `json:"input_spec,omitempty"`
	OutputSpec     map[string]any            `json:"output_spec,omitempty"`
}

// Catalog is the read-only projection of the registry handed to the planner
// and to the LLM. It is rebuilt from a registry view and never mutated.
type Catalog struct {
	Agents map[string]CatalogAgent `json:"agents"`
}

// BuildCatalog projects a registry view into a catalog.
func BuildCatalog(v *View) *Catalog {
	cat := &Catalog{Agents: make(map[string]CatalogAgent, len(v.agents))}
	for name, rec := range v.agents {
		entry := CatalogAgent{
			Capabilities:   rec.Manifest.CapabilityNames(),
			CapabilityMeta: make(map[string]CapabilityMeta, len(rec.Manifest.Capabilities)),
			InputSpec:      rec.Manifest.InputSpec,
			OutputSpec:     rec.Manifest.OutputSpec,
		}
		for _, c := range rec.Manifest.Capabilities {
			entry.CapabilityMeta[c.Name] = CapabilityMeta{
				Description:        c.Description,
				CustomInputHandler: c.CustomInputHandler,
			}
		}
		cat.Agents[name] = entry
	}
	return cat
}

// Has reports whether agent advertises capability in this catalog.
func (c *Catalog) Has(agent, capability string) bool {
	entry, ok := c.Agents[agent]
	if !ok {
		return false
	}
	_, ok = entry.CapabilityMeta[capability]
	return ok
}

// AgentNames returns the catalog's agent names, sorted.
func (c *Catalog) AgentNames() []string { return sortedKeys(c.Agents) }

// Empty reports whether the catalog has no agents.
func (c *Catalog) Empty() bool { return len(c.Agents) == 0 }

// HasSpecs reports whether any agent declares an input or output spec.
// When nothing declares specs, spec-based plan repair is skipped entirely.
func (c *Catalog) HasSpecs() bool {
	for _, entry := range c.Agents {
		if entry.InputSpec != nil || entry.OutputSpec != nil {
			return true
		}
	}
	return false
}

// SpecType extracts the top-level type tag of a spec object.
func SpecType(spec map[string]any) string {
	if spec == nil {
		return ""
	}
	t, _ := spec["type"].(string)
	return t
}

// CompatibleSpecs reports whether an upstream output spec can feed a
// downstream input spec. Compatibility is by top-level type tag; an absent
// spec on either side is permissive.
func CompatibleSpecs(out, in map[string]any) bool {
	ot, it := SpecType(out), SpecType(in)
	if ot == "" || it == "" {
		return true
	}
	return ot == it
}

// AuditStep identifies the catalog's audit capability, when one exists.
type AuditStep struct {
	Agent      string
	Capability string
}

// FindAuditStep locates the audit capability: an exact audit_trace name, a
// trace-consuming meta handler, or failing those any capability whose name
// contains "audit". Agents are scanned in sorted order so detection is
// deterministic.
func (c *Catalog) FindAuditStep() (AuditStep, bool) {
	type candidate struct {
		step AuditStep
		rank int
	}
	best := candidate{rank: 4}

	for _, agent := range sortedKeys(c.Agents) {
		entry := c.Agents[agent]
		for _, cap := range entry.Capabilities {
			meta := entry.CapabilityMeta[cap]
			rank := 4
			switch {
			case cap == "audit_trace":
				rank = 1
			case meta.CustomInputHandler == models.UseExecutionTrace:
				rank = 2
			case strings.Contains(cap, "audit"):
				rank = 3
			}
			if rank < best.rank {
				best = candidate{step: AuditStep{Agent: agent, Capability: cap}, rank: rank}
			}
		}
	}
	return best.step, best.rank < 4
}

// IsMetaCapability reports whether the capability consumes the execution
// trace instead of the rolling context.
func IsMetaCapability(c manifest.Capability) bool {
	return c.CustomInputHandler == models.UseExecutionTrace
}

// CompactJSON renders the catalog as the compact JSON document embedded in
// LLM prompts.
func (c *Catalog) CompactJSON() string {
	data, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func sortedKeys(m map[string]CatalogAgent) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
