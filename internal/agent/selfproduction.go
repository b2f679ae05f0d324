package agent

import (
	"time"

	"github.com/noesis-run/noesis/internal/catalog"
	"github.com/noesis-run/noesis/internal/eventlog"
	"github.com/noesis-run/noesis/internal/metaops"
	"github.com/noesis-run/noesis/internal/statemanager"
	"github.com/noesis-run/noesis/internal/statemodel"
)

// UsageCounters tracks per-action invocation counts; process-local,
// reset across restarts, since it only feeds the self-production gate
// and is explicitly not part of durable state (spec.md §3.3 "agent owns
// its runtime statistics").
type UsageCounters map[string]int

func (u UsageCounters) Record(action string) UsageCounters {
	out := make(UsageCounters, len(u))
	for k, v := range u {
		out[k] = v
	}
	out[action]++
	return out
}

// mostUsed returns the action with the highest usage count, excluding
// already-self-produced ids (spec.md §4.10.6: "source not already
// self-produced").
func (u UsageCounters) mostUsed(generated []statemodel.GeneratedOperation) (string, int, bool) {
	generatedIDs := map[string]bool{}
	for _, g := range generated {
		generatedIDs[g.ID] = true
	}
	var best string
	bestCount := 0
	found := false
	for action, count := range u {
		if action == "" || generatedIDs[action] {
			continue
		}
		if count > bestCount {
			best = action
			bestCount = count
			found = true
		}
	}
	return best, bestCount, found
}

// SelfProductionGate is the spec.md §4.10.6 gate: only active in priority
// = growth, only in the production context, subject to the 10-total cap
// and cooldown.
type SelfProductionGate struct {
	Threshold       int
	Cooldown        int
	MaxTotal        int
	CyclesSinceLast int
}

// MaybeSelfProduce runs the self-production check for the current cycle
// and, if every condition holds, specializes the most-used built-in
// operation into a new QUARANTINED generated operation (spec.md §4.10.6).
// It is a no-op outside priority=growth/context=production — callers
// enforce that by only invoking this when both hold.
func MaybeSelfProduce(sm *statemanager.Manager, cat *catalog.Catalog, usage UsageCounters, gate SelfProductionGate, currentCycle uint64) (bool, error) {
	state := sm.ReadState()
	if len(state.Autopoiesis.Generated) >= gate.MaxTotal {
		return false, nil
	}
	if gate.CyclesSinceLast < gate.Cooldown {
		return false, nil
	}

	action, count, found := usage.mostUsed(state.Autopoiesis.Generated)
	if !found || count < gate.Threshold {
		return false, nil
	}

	def, found := cat.Lookup(action)
	if !found {
		return false, nil
	}

	childID := action + ".specialized." + time.Now().UTC().Format("20060102T150405")
	child, err := metaops.Specialize(cat, state.Autopoiesis.Generated, metaops.SpecializeRequest{
		ID:               childID,
		SourceID:         action,
		Complexity:       def.Complexity,
		EnergyCost:       def.EnergyCost,
		RequiresCoupling: def.RequiresCoupling,
		TemplateParams:   map[string]any{},
		CurrentCycle:     currentCycle,
	})
	if err != nil {
		return false, err
	}

	generated := append(append([]statemodel.GeneratedOperation(nil), state.Autopoiesis.Generated...), child)
	if err := persistGenerated(sm, generated); err != nil {
		return false, err
	}
	registerGenerated(cat, child)
	return true, nil
}

// registerGenerated compiles a freshly created operation's handler and
// adds it to the catalog immediately, so op_exec (and, once ACTIVE,
// SelectAction) can reach it without waiting for the next process
// restart's rehydration pass. A no-op if the id is already registered or
// the operation's template can't be compiled — specializing a built-in
// source carries no template of its own (spec.md §4.8's template enum
// only covers generated-from-generated specialization), same tolerance
// rehydrateGeneratedOperations applies at startup.
func registerGenerated(cat *catalog.Catalog, op statemodel.GeneratedOperation) {
	if _, found := cat.Lookup(op.ID); found {
		return
	}
	handler, err := metaops.BuildHandler(op)
	if err != nil {
		return
	}
	cat.Register(catalog.Definition{
		ID:               op.ID,
		Category:         op.Category,
		Complexity:       op.Complexity,
		EnergyCost:       op.EnergyCost,
		RequiresCoupling: op.RequiresCoupling,
		Handler:          handler,
	})
}

// AdvanceLifecycles runs one quarantine/trial transition check per
// generated operation and persists the result through a META_OPERATION
// event (spec.md §4.8, §4.10.6 "per cycle the agent also advances
// quarantine lifecycles").
func AdvanceLifecycles(sm *statemanager.Manager, currentCycle uint64) error {
	state := sm.ReadState()
	if len(state.Autopoiesis.Generated) == 0 {
		return nil
	}
	changed := false
	advanced := make([]statemodel.GeneratedOperation, len(state.Autopoiesis.Generated))
	for i, op := range state.Autopoiesis.Generated {
		next := metaops.Advance(op, currentCycle)
		if next.Status != op.Status {
			next.StatusChangedAt = time.Now().UTC()
			changed = true
		}
		advanced[i] = next
	}
	if !changed {
		return nil
	}
	return persistGenerated(sm, advanced)
}

// RecordGeneratedUse folds one cycle's observed deltas into a generated
// operation's TRIAL metrics, when the executed action is in fact a TRIAL
// generated operation — a no-op for built-ins and for generated operations
// outside TRIAL, since Uses/Blocks/MaxDeltaV/MaxDeltaSurprise only gate the
// TRIAL→ACTIVE/DEPRECATED transition (spec.md §4.8).
func RecordGeneratedUse(sm *statemanager.Manager, generated []statemodel.GeneratedOperation, actionID string, blocked bool, deltaV, deltaSurprise float64) error {
	idx := -1
	for i, op := range generated {
		if op.ID == actionID {
			idx = i
			break
		}
	}
	if idx == -1 || generated[idx].Status != statemodel.LifecycleTrial {
		return nil
	}
	updated := append([]statemodel.GeneratedOperation(nil), generated...)
	updated[idx] = metaops.RecordTrialUse(updated[idx], blocked, deltaV, deltaSurprise)
	return persistGenerated(sm, updated)
}

func persistGenerated(sm *statemanager.Manager, generated []statemodel.GeneratedOperation) error {
	_, _, err := sm.AppendEventAtomic(eventlog.TypeMetaOperation, map[string]any{
		"generated": generated,
	})
	return err
}
