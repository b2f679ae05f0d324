package catalog

import (
	"fmt"

	"github.com/noesis-run/noesis/internal/statemodel"
)

// RegisterBuiltins wires the starter operation set a complete deployment
// ships, supplementing spec.md's bare mention of "a catalog of
// operations" (SPEC_FULL.md §5.7).
func RegisterBuiltins(c *Catalog) {
	c.Register(Definition{
		ID:         "state.summary",
		Category:   "introspection",
		Complexity: 1,
		EnergyCost: 0,
		Handler:    stateSummary,
	})
	c.Register(Definition{
		ID:         "system.health",
		Category:   "introspection",
		Complexity: 1,
		EnergyCost: 0,
		Handler:    systemHealth,
	})
	c.Register(Definition{
		ID:         "energy.status",
		Category:   "energy",
		Complexity: 1,
		EnergyCost: 0,
		Handler:    energyStatus,
	})
	c.Register(Definition{
		ID:         "energy.recharge",
		Category:   "energy",
		Complexity: 2,
		EnergyCost: 0,
		Handler:    energyRecharge,
	})
	c.Register(Definition{
		ID:               "memory.add",
		Category:         "memory",
		Complexity:       2,
		EnergyCost:       0.02,
		RequiresCoupling: true,
		Handler:          memoryAdd,
	})
	c.Register(Definition{
		ID:         "session.note",
		Category:   "coupling",
		Complexity: 1,
		EnergyCost: 0.01,
		Handler:    sessionNote,
	})
	c.Register(Definition{
		ID:         "coupling.ping",
		Category:   "coupling",
		Complexity: 1,
		EnergyCost: 0,
		Handler:    couplingPing,
	})
}

func stateSummary(state statemodel.State, _ map[string]any) (Result, error) {
	return Result{
		Success: true,
		Message: "state summary",
		Effects: map[string]any{
			"event_count": state.Memory.EventCount,
			"v":           state.Lyapunov.V,
			"status":      string(state.Integrity.Status),
			"energy":      state.Energy.Current,
		},
	}, nil
}

func systemHealth(state statemodel.State, _ map[string]any) (Result, error) {
	healthy := state.Integrity.Status == statemodel.StatusNominal
	return Result{
		Success: true,
		Message: fmt.Sprintf("status=%s", state.Integrity.Status),
		Effects: map[string]any{
			"healthy":         healthy,
			"violation_count": state.Integrity.ViolationCount,
		},
	}, nil
}

func energyStatus(state statemodel.State, _ map[string]any) (Result, error) {
	return Result{
		Success: true,
		Message: fmt.Sprintf("energy=%.3f", state.Energy.Current),
		Effects: map[string]any{
			"current":   state.Energy.Current,
			"min":       state.Energy.Min,
			"threshold": state.Energy.Threshold,
		},
	}, nil
}

// energyRecharge restores energy toward 1.0 by a bounded amount; it is a
// state-only change with no external resource, so its cost is zero and
// its effect flows entirely through StateChanges.
func energyRecharge(state statemodel.State, params map[string]any) (Result, error) {
	amount := 0.1
	if v, ok := params["amount"]; ok {
		if f, ok := v.(float64); ok && f > 0 {
			amount = f
		}
	}
	newEnergy := state.Energy.Current + amount
	if newEnergy > 1.0 {
		newEnergy = 1.0
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("recharged to %.3f", newEnergy),
		StateChanges: map[string]any{
			"energy_current": newEnergy,
		},
	}, nil
}

func memoryAdd(state statemodel.State, params map[string]any) (Result, error) {
	note, _ := params["note"].(string)
	if note == "" {
		return Result{Success: false, Message: "note parameter required"}, nil
	}
	return Result{
		Success: true,
		Message: "memory recorded",
		StateChanges: map[string]any{
			"important_memory": []any{note},
		},
	}, nil
}

func sessionNote(state statemodel.State, params map[string]any) (Result, error) {
	note, _ := params["note"].(string)
	return Result{
		Success: true,
		Message: "session note recorded",
		StateChanges: map[string]any{
			"human_notes": note,
		},
	}, nil
}

func couplingPing(state statemodel.State, _ map[string]any) (Result, error) {
	return Result{
		Success: true,
		Message: "pong",
		Effects: map[string]any{
			"coupling_active": state.Coupling.Active,
			"partner":         state.Coupling.Partner,
		},
	}, nil
}
