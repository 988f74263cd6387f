package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaError reports a manifest that does not satisfy the manifest schema.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid manifest: %s: %s", e.Field, e.Reason)
}

// defaultSchema is the built-in manifest schema, used when no schema file is
// configured. A schema file with the same shape may override it.
const defaultSchema = `{
  "type": "object",
  "required": ["capabilities"],
  "properties": {
    "capabilities": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "custom_input_handler": {"type": "string"}
        }
      }
    },
    "input_spec": {
      "type": "object",
      "required": ["type"],
      "properties": {"type": {"type": "string"}}
    },
    "output_spec": {
      "type": "object",
      "required": ["type"],
      "properties": {"type": {"type": "string"}}
    }
  }
}`

// Validator validates normalized manifests against a compiled JSON schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the built-in manifest schema.
func NewValidator() (*Validator, error) {
	return newValidatorFromBytes([]byte(defaultSchema))
}

// NewValidatorFromFile compiles the schema template at path. A missing file
// falls back to the built-in schema.
func NewValidatorFromFile(path string) (*Validator, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewValidator()
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest schema %s: %w", path, err)
	}
	return newValidatorFromBytes(data)
}

func newValidatorFromBytes(data []byte) (*Validator, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal manifest schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("manifest_schema.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile("manifest_schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate normalizes raw and checks the result against the schema.
// Returns the normalized manifest or a *SchemaError.
func (v *Validator) Validate(raw map[string]any) (*Manifest, error) {
	m, err := Normalize(raw)
	if err != nil {
		return nil, err
	}

	// Round-trip through JSON so the schema sees the normalized wire form.
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal normalized manifest: %w", err)
	}
	var doc any
	if err := json.Unmarshal(encoded, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal normalized manifest: %w", err)
	}

	if err := v.schema.Validate(doc); err != nil {
		return nil, &SchemaError{Field: "manifest", Reason: err.Error()}
	}
	return m, nil
}
