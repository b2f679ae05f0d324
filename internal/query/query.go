// Package query provides jsonpath scripting over the canonical state
// JSON, called through internal/ifaces.Runtime.Query; no CLI command takes
// a `--query` flag.
package query

import (
	"encoding/json"
	"fmt"

	"github.com/PaesslerAG/jsonpath"
)

// Eval evaluates a jsonpath expression against any JSON-marshalable
// value, round-tripping through encoding/json so callers can pass a
// typed struct (statemodel.State) directly.
func Eval(value any, expr string) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("query: marshal value: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("query: unmarshal value: %w", err)
	}
	result, err := jsonpath.Get(expr, generic)
	if err != nil {
		return nil, fmt.Errorf("query: evaluate %q: %w", expr, err)
	}
	return result, nil
}
