// Package manifest validates and normalizes agent manifests.
//
// Agents declare capabilities in one of three wire forms (a list of names, a
// list of objects, or a name→description map). Normalization converges all
// three to the object form before the manifest is validated against the
// manifest schema and stored in the registry.
package manifest

import (
	"encoding/json"
	"fmt"
)

// Capability is the normalized form of one declared capability.
type Capability struct {
	Name               string `json:"name"`
	Description        string `json:"description,omitempty"`
	CustomInputHandler string `json:"custom_input_handler,omitempty"`
}

// Manifest is the normalized form of an agent manifest. Fields the
// orchestrator does not interpret are preserved in Extra so that
// /agents/raw and /agent_manifest return what the agent declared.
type Manifest struct {
	Capabilities []Capability   `json:"capabilities"`
	InputSpec    map[string]any `json:"input_spec,omitempty"`
	OutputSpec   map[string]any `json:"output_spec,omitempty"`
	Extra        map[string]any `json:"-"`
}

// MarshalJSON renders the normalized fields merged with the preserved
// passthrough fields.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Capabilities != nil {
		out["capabilities"] = m.Capabilities
	} else {
		out["capabilities"] = []Capability{}
	}
	if m.InputSpec != nil {
		out["input_spec"] = m.InputSpec
	}
	if m.OutputSpec != nil {
		out["output_spec"] = m.OutputSpec
	}
	return json.Marshal(out)
}

// UnmarshalJSON re-normalizes a previously marshalled manifest. Used when
// loading the registry snapshot from disk.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	norm, err := Normalize(raw)
	if err != nil {
		return err
	}
	*m = *norm
	return nil
}

// Capability returns the declared capability with the given name.
func (m *Manifest) Capability(name string) (Capability, bool) {
	for _, c := range m.Capabilities {
		if c.Name == name {
			return c, true
		}
	}
	return Capability{}, false
}

// CapabilityNames returns the declared capability names in manifest order.
func (m *Manifest) CapabilityNames() []string {
	names := make([]string, 0, len(m.Capabilities))
	for _, c := range m.Capabilities {
		names = append(names, c.Name)
	}
	return names
}

// Normalize converges a raw manifest into the normalized form. Entries
// without a non-empty name are dropped; duplicate names keep the first
// occurrence. Normalize is pure and idempotent.
func Normalize(raw map[string]any) (*Manifest, error) {
	if raw == nil {
		return nil, &SchemaError{Field: "manifest", Reason: "manifest must be a JSON object"}
	}

	m := &Manifest{Extra: make(map[string]any)}

	caps, err := normalizeCapabilities(raw["capabilities"])
	if err != nil {
		return nil, err
	}
	m.Capabilities = caps

	if spec, ok := raw["input_spec"]; ok {
		obj, err := specObject("input_spec", spec)
		if err != nil {
			return nil, err
		}
		m.InputSpec = obj
	}
	if spec, ok := raw["output_spec"]; ok {
		obj, err := specObject("output_spec", spec)
		if err != nil {
			return nil, err
		}
		m.OutputSpec = obj
	}

	for k, v := range raw {
		switch k {
		case "capabilities", "input_spec", "output_spec":
		default:
			m.Extra[k] = v
		}
	}

	return m, nil
}

// normalizeCapabilities accepts the three wire forms:
//
//	["fetch", "summarize"]
//	[{"name": "fetch", "description": "..."}]
//	{"fetch": "description"}
func normalizeCapabilities(v any) ([]Capability, error) {
	if v == nil {
		return nil, &SchemaError{Field: "capabilities", Reason: "field is required"}
	}

	seen := make(map[string]bool)
	var out []Capability
	add := func(c Capability) {
		if c.Name == "" || seen[c.Name] {
			return
		}
		seen[c.Name] = true
		out = append(out, c)
	}

	switch caps := v.(type) {
	case []any:
		for _, item := range caps {
			switch entry := item.(type) {
			case string:
				add(Capability{Name: entry})
			case map[string]any:
				add(Capability{
					Name:               stringField(entry, "name"),
					Description:        stringField(entry, "description"),
					CustomInputHandler: stringField(entry, "custom_input_handler"),
				})
			default:
				return nil, &SchemaError{
					Field:  "capabilities",
					Reason: fmt.Sprintf("entries must be strings or objects, got %T", item),
				}
			}
		}
	case map[string]any:
		// Map form: name → description. Iteration order is not stable, but
		// capability sets are small and lookups are by name.
		for name, desc := range caps {
			c := Capability{Name: name}
			if s, ok := desc.(string); ok {
				c.Description = s
			}
			add(c)
		}
	default:
		return nil, &SchemaError{
			Field:  "capabilities",
			Reason: fmt.Sprintf("must be a list or a name→description map, got %T", v),
		}
	}

	return out, nil
}

func specObject(field string, v any) (map[string]any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &SchemaError{Field: field, Reason: "must be a JSON object"}
	}
	if _, ok := obj["type"].(string); !ok {
		return nil, &SchemaError{Field: field, Reason: "must carry a top-level string 'type' tag"}
	}
	return obj, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
