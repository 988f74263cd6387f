package manifest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCapabilityShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want []Capability
	}{
		{
			name: "list of strings",
			raw:  map[string]any{"capabilities": []any{"fetch", "summarize"}},
			want: []Capability{{Name: "fetch"}, {Name: "summarize"}},
		},
		{
			name: "list of objects",
			raw: map[string]any{"capabilities": []any{
				map[string]any{"name": "audit_trace", "description": "audits", "custom_input_handler": "use_execution_trace"},
			}},
			want: []Capability{{Name: "audit_trace", Description: "audits", CustomInputHandler: "use_execution_trace"}},
		},
		{
			name: "map of name to description",
			raw:  map[string]any{"capabilities": map[string]any{"fetch": "fetches articles"}},
			want: []Capability{{Name: "fetch", Description: "fetches articles"}},
		},
		{
			name: "empty names dropped",
			raw:  map[string]any{"capabilities": []any{"", "fetch"}},
			want: []Capability{{Name: "fetch"}},
		},
		{
			name: "duplicates keep first",
			raw: map[string]any{"capabilities": []any{
				map[string]any{"name": "fetch", "description": "first"},
				map[string]any{"name": "fetch", "description": "second"},
			}},
			want: []Capability{{Name: "fetch", Description: "first"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Normalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Capabilities)
		})
	}
}

func TestNormalizeKeepsSpecsAndExtras(t *testing.T) {
	m, err := Normalize(map[string]any{
		"capabilities": []any{"fetch"},
		"input_spec":   map[string]any{"type": "articles"},
		"output_spec":  map[string]any{"type": "summaries"},
		"version":      "0.1.0",
	})
	require.NoError(t, err)

	assert.Equal(t, "articles", m.InputSpec["type"])
	assert.Equal(t, "summaries", m.OutputSpec["type"])
	assert.Equal(t, "0.1.0", m.Extra["version"])
}

func TestManifestMarshalNilCapabilities(t *testing.T) {
	m := &Manifest{}
	data, err := json.Marshal(m)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	caps, ok := out["capabilities"].([]any)
	require.True(t, ok, "capabilities must marshal as an array, not null")
	assert.Empty(t, caps)
}

func TestManifestJSONRoundTrip(t *testing.T) {
	orig := &Manifest{
		Capabilities: []Capability{{Name: "audit_trace", CustomInputHandler: "use_execution_trace"}},
		InputSpec:    map[string]any{"type": "object"},
		Extra:        map[string]any{"version": "1.0"},
	}
	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var back Manifest
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, orig.Capabilities, back.Capabilities)
	assert.Equal(t, orig.InputSpec, back.InputSpec)
	assert.Equal(t, "1.0", back.Extra["version"])
}

func TestValidatorAcceptsWellFormedManifest(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	m, err := v.Validate(map[string]any{
		"capabilities": []any{
			map[string]any{"name": "fetch", "description": "fetches"},
		},
		"input_spec":  map[string]any{"type": "none"},
		"output_spec": map[string]any{"type": "articles"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fetch"}, m.CapabilityNames())
}

func TestValidatorRejections(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  map[string]any
	}{
		{"missing capabilities", map[string]any{"version": "1.0"}},
		{"capabilities not a list", map[string]any{"capabilities": 42}},
		{"spec without type", map[string]any{
			"capabilities": []any{"fetch"},
			"input_spec":   map[string]any{"format": "json"},
		}},
		{"spec type not a string", map[string]any{
			"capabilities": []any{"fetch"},
			"output_spec":  map[string]any{"type": 1},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestNewValidatorFromFileMissingFallsBack(t *testing.T) {
	v, err := NewValidatorFromFile("/nonexistent/schema.json")
	require.NoError(t, err)

	_, err = v.Validate(map[string]any{"capabilities": []any{"fetch"}})
	assert.NoError(t, err)
}
