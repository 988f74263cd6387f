package auditor

import "fmt"

// Preview limits for prompt economy.
const (
	previewMaxChars = 800
	previewMaxItems = 10
	previewMaxKeys  = 20
)

// compactStep is the prompt-safe projection of one trace step.
type compactStep struct {
	Agent         string  `json:"agent"`
	HasError      bool    `json:"has_error"`
	InputPreview  any     `json:"input_preview"`
	OutputPreview any     `json:"output_preview"`
	Error         *string `json:"error"`
}

// CompactTrace shrinks a trace for prompt inclusion: strings truncate to
// previewMaxChars, lists keep previewMaxItems entries, objects keep
// previewMaxKeys keys, recursively.
func CompactTrace(t *Trace) map[string]any {
	steps := make([]compactStep, 0, len(t.Steps))
	for _, s := range t.Steps {
		steps = append(steps, compactStep{
			Agent:         s.Agent,
			HasError:      s.Error != nil && *s.Error != "",
			InputPreview:  preview(s.Input, previewMaxChars),
			OutputPreview: preview(s.Output, previewMaxChars),
			Error:         s.Error,
		})
	}
	return map[string]any{"steps": steps}
}

func preview(value any, maxChars int) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return truncate(v, maxChars)
	case bool, float64, int, int64:
		return v
	case []any:
		n := len(v)
		if n > previewMaxItems {
			n = previewMaxItems
		}
		out := make([]any, 0, n)
		for _, item := range v[:n] {
			out = append(out, preview(item, maxChars))
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		kept := 0
		for _, k := range sortedKeys(v) {
			if kept == previewMaxKeys {
				break
			}
			out[k] = preview(v[k], maxChars)
			kept++
		}
		return out
	default:
		return truncate(fmt.Sprintf("%v", v), maxChars)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
