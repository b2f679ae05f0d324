// Package catalog holds the closed map of operation identifiers to
// definitions and implements the six-step exec contract of spec.md §4.7,
// grounded on services/automation's dispatch-by-id shape in the teacher
// repo.
package catalog

import (
	"fmt"
	"time"

	"github.com/noesis-run/noesis/internal/eventlog"
	"github.com/noesis-run/noesis/internal/rerr"
	"github.com/noesis-run/noesis/internal/statemanager"
	"github.com/noesis-run/noesis/internal/statemodel"
)

// Result is what a handler returns: a human-facing summary, effects for
// the caller to observe, and a state delta to apply atomically.
type Result struct {
	Success      bool           `json:"success"`
	Message      string         `json:"message"`
	Effects      map[string]any `json:"effects,omitempty"`
	StateChanges map[string]any `json:"state_changes,omitempty"`
}

// Handler is a pure function of (state, params); it must not perform I/O.
type Handler func(state statemodel.State, params map[string]any) (Result, error)

// Definition is a catalog entry (spec.md §3.1).
type Definition struct {
	ID               string
	Category         string
	Complexity       int
	EnergyCost       float64
	RequiresCoupling bool
	Handler          Handler
}

// Catalog is the id → definition map. Built-ins are registered at
// composition-root time; generated operations from internal/metaops are
// registered into it when they are created and again at startup, while
// their durable record lives in state (spec.md §4.7, §4.8).
type Catalog struct {
	definitions map[string]Definition
}

// New builds an empty catalog. Callers register built-ins via Register.
func New() *Catalog {
	return &Catalog{definitions: make(map[string]Definition)}
}

// Register adds a definition. Panics on duplicate id — a programming
// error at composition-root time, not a runtime condition.
func (c *Catalog) Register(def Definition) {
	if _, exists := c.definitions[def.ID]; exists {
		panic(fmt.Sprintf("catalog: duplicate operation id %q", def.ID))
	}
	c.definitions[def.ID] = def
}

// Lookup returns a registered definition by id.
func (c *Catalog) Lookup(id string) (Definition, bool) {
	def, ok := c.definitions[id]
	return def, ok
}

// IDs returns every registered identifier, for Unknown-id diagnostics and
// the define meta-operation's uniqueness check.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.definitions))
	for id := range c.definitions {
		ids = append(ids, id)
	}
	return ids
}

// Exec implements the six-step contract verbatim (spec.md §4.7):
//  1. Resolve definition — unknown id fails with UnknownOperation.
//  2. requires_coupling gate.
//  3. Energy margin gate.
//  4. Invoke handler in-process.
//  5. On success: atomically apply state changes, debit energy, append OPERATION.
//  6. On failure: append BLOCK (energy untouched).
func (c *Catalog) Exec(sm *statemanager.Manager, id string, params map[string]any) (Result, error) {
	def, found := c.Lookup(id)
	if !found {
		return Result{}, rerr.UnknownOperation(id)
	}

	state := sm.ReadState()

	if def.RequiresCoupling && !state.Coupling.Active {
		c.appendBlock(sm, id, params, "coupling required but inactive")
		return Result{}, rerr.CouplingRequired(id)
	}

	if state.Energy.Current < def.EnergyCost {
		c.appendBlock(sm, id, params, "insufficient energy")
		return Result{}, rerr.InsufficientEnergy(id, def.EnergyCost, state.Energy.Current)
	}

	result, err := def.Handler(state, params)
	if err != nil {
		c.appendBlock(sm, id, params, err.Error())
		return Result{}, err
	}
	if !result.Success {
		c.appendBlock(sm, id, params, result.Message)
		return result, nil
	}

	_, _, appendErr := sm.AppendEventAtomic(eventlog.TypeOperation, map[string]any{
		"operation_id":  id,
		"params":        params,
		"message":       result.Message,
		"effects":       result.Effects,
		"state_changes": result.StateChanges,
		"energy_cost":   def.EnergyCost,
		"energy_after":  state.Energy.Current - def.EnergyCost,
		"executed_at":   time.Now().UTC().Format(time.RFC3339Nano),
	})
	if appendErr != nil {
		return Result{}, appendErr
	}
	return result, nil
}

func (c *Catalog) appendBlock(sm *statemanager.Manager, id string, params map[string]any, reason string) {
	_, _, _ = sm.AppendEventAtomic(eventlog.TypeBlock, map[string]any{
		"operation_id": id,
		"params":       params,
		"reason":       reason,
		"blocked_at":   time.Now().UTC().Format(time.RFC3339Nano),
	})
}
