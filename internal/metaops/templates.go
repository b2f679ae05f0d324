package metaops

import (
	"fmt"

	"github.com/noesis-run/noesis/internal/catalog"
	"github.com/noesis-run/noesis/internal/statemodel"
)

// readFieldHandler projects a single named field out of state, limited to
// the handful of scalar fields readScalarField supports.
func readFieldHandler(params map[string]any) (catalog.Handler, error) {
	field, _ := params["field"].(string)
	if field == "" {
		return nil, fmt.Errorf("metaops: read_field requires a \"field\" parameter")
	}
	return func(state statemodel.State, _ map[string]any) (catalog.Result, error) {
		value, ok := readScalarField(state, field)
		if !ok {
			return catalog.Result{Success: false, Message: fmt.Sprintf("unknown field %q", field)}, nil
		}
		return catalog.Result{Success: true, Message: fmt.Sprintf("%s=%v", field, value), Effects: map[string]any{field: value}}, nil
	}, nil
}

// setFieldHandler writes a single named field via StateChanges, reusing
// the same field name the applier in internal/statemodel recognizes.
func setFieldHandler(params map[string]any) (catalog.Handler, error) {
	field, _ := params["field"].(string)
	if field == "" {
		return nil, fmt.Errorf("metaops: set_field requires a \"field\" parameter")
	}
	if !writableField(field) {
		return nil, fmt.Errorf("metaops: set_field does not support field %q", field)
	}
	return func(_ statemodel.State, callParams map[string]any) (catalog.Result, error) {
		value, ok := callParams["value"]
		if !ok {
			return catalog.Result{Success: false, Message: "value parameter required"}, nil
		}
		return catalog.Result{
			Success:      true,
			Message:      fmt.Sprintf("%s set", field),
			StateChanges: map[string]any{field: value},
		}, nil
	}, nil
}

// composeHandler reports the configured component ids as its effect; it
// does not invoke the components' handlers and makes no state changes.
// Compose never re-derives
// energy or coupling gates itself — catalog.Exec already enforced those
// against the composed definition's own totals before invoking this.
func composeHandler(params map[string]any) (catalog.Handler, error) {
	raw, _ := params["components"].([]any)
	components := make([]string, 0, len(raw))
	for _, c := range raw {
		if s, ok := c.(string); ok {
			components = append(components, s)
		}
	}
	if len(components) == 0 {
		if s, ok := params["components"].([]string); ok {
			components = s
		}
	}
	return func(state statemodel.State, callParams map[string]any) (catalog.Result, error) {
		effects := map[string]any{"components": components}
		return catalog.Result{
			Success: true,
			Message: fmt.Sprintf("composed %d operations", len(components)),
			Effects: effects,
		}, nil
	}, nil
}

// conditionalHandler evaluates a single scalar field against a threshold
// and reports which branch fired; it never mutates state itself (a
// conditional is a decision primitive, not an action).
func conditionalHandler(params map[string]any) (catalog.Handler, error) {
	field, _ := params["field"].(string)
	threshold, _ := params["threshold"].(float64)
	if field == "" {
		return nil, fmt.Errorf("metaops: conditional requires a \"field\" parameter")
	}
	return func(state statemodel.State, _ map[string]any) (catalog.Result, error) {
		value, ok := readScalarField(state, field)
		if !ok {
			return catalog.Result{Success: false, Message: fmt.Sprintf("unknown field %q", field)}, nil
		}
		f, ok := value.(float64)
		if !ok {
			return catalog.Result{Success: false, Message: fmt.Sprintf("field %q is not numeric", field)}, nil
		}
		branch := "below"
		if f >= threshold {
			branch = "at_or_above"
		}
		return catalog.Result{Success: true, Message: branch, Effects: map[string]any{"branch": branch, "value": f}}, nil
	}, nil
}

// transformHandler applies a fixed scalar multiplier to a numeric field
// and writes the result back via StateChanges.
func transformHandler(params map[string]any) (catalog.Handler, error) {
	field, _ := params["field"].(string)
	factor, _ := params["factor"].(float64)
	if field == "" || factor == 0 {
		return nil, fmt.Errorf("metaops: transform requires \"field\" and a non-zero \"factor\"")
	}
	if !writableField(field) {
		return nil, fmt.Errorf("metaops: transform does not support field %q", field)
	}
	return func(state statemodel.State, _ map[string]any) (catalog.Result, error) {
		value, ok := readScalarField(state, field)
		if !ok {
			return catalog.Result{Success: false, Message: fmt.Sprintf("unknown field %q", field)}, nil
		}
		f, ok := value.(float64)
		if !ok {
			return catalog.Result{Success: false, Message: fmt.Sprintf("field %q is not numeric", field)}, nil
		}
		transformed := f * factor
		return catalog.Result{
			Success:      true,
			Message:      fmt.Sprintf("%s transformed to %v", field, transformed),
			StateChanges: map[string]any{field: transformed},
		}, nil
	}, nil
}

// aggregateHandler reports a fixed summary across the important-memory
// list length and current energy — a stand-in aggregate useful for
// generated dashboards without any external I/O.
func aggregateHandler(_ map[string]any) (catalog.Handler, error) {
	return func(state statemodel.State, _ map[string]any) (catalog.Result, error) {
		return catalog.Result{
			Success: true,
			Message: "aggregate computed",
			Effects: map[string]any{
				"important_memory_count": len(state.ImportantMemory),
				"energy_current":         state.Energy.Current,
				"v":                      state.Lyapunov.V,
			},
		}, nil
	}, nil
}

// echoHandler returns its call-time params verbatim; used mainly for
// quarantine-trial smoke testing of the generator pipeline itself.
func echoHandler(_ map[string]any) (catalog.Handler, error) {
	return func(_ statemodel.State, callParams map[string]any) (catalog.Result, error) {
		return catalog.Result{Success: true, Message: "echo", Effects: callParams}, nil
	}, nil
}

// readScalarField and writableField enumerate the small set of State
// fields the generator templates are allowed to touch — intentionally
// narrow, since generated operations must never reach into fields that
// would let them forge invariant-bound bookkeeping (event_count,
// last_event_hash, organization_hash).
func readScalarField(state statemodel.State, field string) (any, bool) {
	switch field {
	case "energy_current":
		return state.Energy.Current, true
	case "v":
		return state.Lyapunov.V, true
	case "human_notes":
		return state.HumanContext.Notes, true
	default:
		return nil, false
	}
}

func writableField(field string) bool {
	switch field {
	case "energy_current", "v", "human_notes":
		return true
	default:
		return false
	}
}
