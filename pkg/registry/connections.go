package registry

import (
	"fmt"
	"sort"
)

// Connection is a directed compatibility edge between two agents: the
// upstream agent's declared output can feed the downstream agent's input.
type Connection struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// DetectConnections scans all manifest pairs and returns the edges where
// both sides declare specs and the top-level type tags match. Self-pairs
// are excluded. Pure read; no network I/O.
func (r *Registry) DetectConnections() []Connection {
	v := r.Snapshot()

	var conns []Connection
	names := v.Names()
	for _, from := range names {
		fromRec, _ := v.Get(from)
		outType := SpecType(fromRec.Manifest.OutputSpec)
		if outType == "" {
			continue
		}
		for _, to := range names {
			if to == from {
				continue
			}
			toRec, _ := v.Get(to)
			inType := SpecType(toRec.Manifest.InputSpec)
			if inType == "" || inType != outType {
				continue
			}
			conns = append(conns, Connection{
				From:   from,
				To:     to,
				Reason: fmt.Sprintf("output_spec.type %q matches input_spec.type", outType),
			})
		}
	}

	sort.Slice(conns, func(i, j int) bool {
		if conns[i].From != conns[j].From {
			return conns[i].From < conns[j].From
		}
		return conns[i].To < conns[j].To
	})
	return conns
}
