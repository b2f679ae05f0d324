package agent

import (
	"sort"

	"github.com/noesis-run/noesis/internal/catalog"
	"github.com/noesis-run/noesis/internal/metaops"
	"github.com/noesis-run/noesis/internal/statemodel"
)

// Priority is the constitutional priority hierarchy (spec.md §4.10.3),
// strict descending order: survival > integrity > stability > growth > rest.
type Priority string

const (
	PrioritySurvival  Priority = "survival"
	PriorityIntegrity Priority = "integrity"
	PriorityStability Priority = "stability"
	PriorityGrowth    Priority = "growth"
	PriorityRest      Priority = "rest"
)

// candidateActions is the fixed action set active inference scores over
// (spec.md §4.10.3); "" denotes no action (rest/conserve).
var candidateActions = []string{"", "state.summary", "system.health", "energy.status"}

// ActionModel is the learned per-action model active inference scores
// against: average observed deltas and a confidence in [0,1] (spec.md
// §4.10.3).
type ActionModel struct {
	AvgDeltaEnergy float64
	AvgDeltaV      float64
	Confidence     float64
	Observations   int
}

// LearnedModels is the full per-action learned-model table, keyed by
// action id (empty string = no-op/rest).
type LearnedModels map[string]ActionModel

// Update folds one observed transition into the model for an action,
// using a simple exponential moving average with a confidence that grows
// toward 1 as observations accumulate — deliberately simple, since
// spec.md leaves the learning rule's exact form unspecified.
func (m LearnedModels) Update(action string, deltaEnergy, deltaV float64) LearnedModels {
	out := make(LearnedModels, len(m))
	for k, v := range m {
		out[k] = v
	}
	model := out[action]
	const alpha = 0.2
	if model.Observations == 0 {
		model.AvgDeltaEnergy = deltaEnergy
		model.AvgDeltaV = deltaV
	} else {
		model.AvgDeltaEnergy = (1-alpha)*model.AvgDeltaEnergy + alpha*deltaEnergy
		model.AvgDeltaV = (1-alpha)*model.AvgDeltaV + alpha*deltaV
	}
	model.Observations++
	model.Confidence = 1 - 1/float64(1+model.Observations)
	out[action] = model
	return out
}

// CycleRecord is one stored cycle in the bounded cycle-memory buffer
// (spec.md §3.1 "Cycle record").
type CycleRecord struct {
	Before        Feeling
	After         Feeling
	Priority      Priority
	Action        string
	Blocked       bool
	Effectiveness float64
	SurpriseDrop  float64
	EnergyCost    float64
}

// CycleMemory is a bounded ring of recent cycle records (spec.md §5
// back-pressure: default 200).
type CycleMemory struct {
	records []CycleRecord
	cap     int
}

func NewCycleMemory(capacity int) *CycleMemory {
	if capacity <= 0 {
		capacity = 200
	}
	return &CycleMemory{cap: capacity}
}

func (cm *CycleMemory) Add(rec CycleRecord) {
	cm.records = append(cm.records, rec)
	if len(cm.records) > cm.cap {
		cm.records = cm.records[len(cm.records)-cm.cap:]
	}
}

func (cm *CycleMemory) Len() int { return len(cm.records) }

// similarCycles finds past records with the same priority whose
// before-feeling is close in energy/V/integrity space (spec.md §4.10.3).
func (cm *CycleMemory) similarCycles(priority Priority, before Feeling) []CycleRecord {
	var out []CycleRecord
	for _, rec := range cm.records {
		if rec.Priority != priority {
			continue
		}
		if distance(rec.Before, before) < 0.15 {
			out = append(out, rec)
		}
	}
	return out
}

func distance(a, b Feeling) float64 {
	energyA := energyFeelingScalar(a.Energy)
	energyB := energyFeelingScalar(b.Energy)
	dE := energyA - energyB
	dV := a.VerifyResult.V - b.VerifyResult.V
	dI := integrityFeelingScalar(a.Integrity) - integrityFeelingScalar(b.Integrity)
	return abs(dE) + abs(dV) + abs(dI)
}

func energyFeelingScalar(f EnergyFeeling) float64 {
	switch f {
	case EnergyCritical:
		return 0
	case EnergyLow:
		return 0.33
	case EnergyAdequate:
		return 0.66
	default:
		return 1
	}
}

func integrityFeelingScalar(f IntegrityFeeling) float64 {
	switch f {
	case IntegrityViolated:
		return 0
	case IntegrityStressed:
		return 0.5
	default:
		return 1
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// Decision is RESPOND's output: the selected priority and chosen action
// (empty string = rest/no-op), before admission checks.
type Decision struct {
	Priority Priority
	Action   string
}

// SelectPriority applies the strict constitutional hierarchy (spec.md
// §4.10.3).
func SelectPriority(f Feeling) Priority {
	switch {
	case f.ThreatsExistence:
		return PrioritySurvival
	case f.Integrity == IntegrityViolated:
		return PriorityIntegrity
	case f.ThreatsStability && (f.Stability == StabilityUnstable || f.Stability == StabilityDrifting):
		return PriorityStability
	case f.NeedsGrowth:
		return PriorityGrowth
	default:
		return PriorityRest
	}
}

// SelectAction picks a candidate action for priorities that require one.
// survival and integrity never select an action (conserve / delegate to
// recovery); stability/growth/rest score the candidates with active
// inference when it is enabled, hinted by cycle memory, and pick
// state.summary when it is disabled (spec.md §4.10.3). generated carries
// the organization's self-produced operations; only ones metaops.Selectable
// admits (status ACTIVE, no admin override from the autonomous policy) join
// the built-in candidate set (spec.md §4.8).
func SelectAction(priority Priority, f Feeling, models LearnedModels, memory *CycleMemory, activeInferenceEnabled bool, generated []statemodel.GeneratedOperation) string {
	switch priority {
	case PrioritySurvival:
		if f.Energy == EnergyCritical {
			return ""
		}
		return "system.health"
	case PriorityIntegrity:
		return ""
	}

	if !activeInferenceEnabled {
		return "state.summary"
	}

	candidates := append([]string(nil), candidateActions...)
	for _, op := range generated {
		if metaops.Selectable(op, false) {
			candidates = append(candidates, op.ID)
		}
	}
	if memory != nil {
		if hints := memory.similarCycles(priority, f); len(hints) >= 3 {
			candidates = reorderByHints(candidates, hints)
		}
	}

	best := candidates[0]
	bestScore := expectedFreeEnergy(best, f, models)
	for _, action := range candidates[1:] {
		score := expectedFreeEnergy(action, f, models)
		if score < bestScore || (score == bestScore && action < best) {
			best = action
			bestScore = score
		}
	}
	return best
}

// reorderByHints moves actions with a confident, effective history for
// this priority to the front of the candidate list; active inference
// still makes the final scored choice (spec.md §4.10.3).
func reorderByHints(candidates []string, hints []CycleRecord) []string {
	effectiveness := map[string]float64{}
	counts := map[string]int{}
	for _, h := range hints {
		effectiveness[h.Action] += h.Effectiveness
		counts[h.Action]++
	}
	scored := append([]string(nil), candidates...)
	sort.SliceStable(scored, func(i, j int) bool {
		avgI := 0.0
		if c := counts[scored[i]]; c > 0 {
			avgI = effectiveness[scored[i]] / float64(c)
		}
		avgJ := 0.0
		if c := counts[scored[j]]; c > 0 {
			avgJ = effectiveness[scored[j]] / float64(c)
		}
		return avgI > avgJ
	})
	return scored
}

const epistemicWeight = 0.3

// expectedFreeEnergy = pragmatic(goal distance after action) − β·epistemic(information gain).
// Pragmatic value is the predicted post-action distance from the V=0/full-energy
// attractor; epistemic value rewards acting on low-confidence models (spec.md §4.10.3).
func expectedFreeEnergy(action string, f Feeling, models LearnedModels) float64 {
	model := models[action]
	predictedV := f.VerifyResult.V + model.AvgDeltaV
	if predictedV < 0 {
		predictedV = 0
	}
	predictedEnergyDeficit := -model.AvgDeltaEnergy
	if predictedEnergyDeficit < 0 {
		predictedEnergyDeficit = 0
	}
	pragmatic := predictedV + predictedEnergyDeficit
	epistemic := 1 - model.Confidence
	return pragmatic - epistemicWeight*epistemic
}

// AdmissionResult is the constitutional admission check's verdict
// (spec.md §4.10.3).
type AdmissionResult struct {
	Admitted   bool
	Reason     string
	FeelingCost float64
}

// FeelingCost is the fixed energy cost of running FEEL itself every
// cycle — a small, constant debit distinct from any chosen operation's
// own energy_cost (an Open Question resolved here since
// spec.md states "energy debit is only the feeling cost" for blocked
// cycles but never gives its magnitude).
const FeelingCost = 0.001

// Admit runs the constitutional admission check (spec.md §4.10.3).
func Admit(c *catalog.Catalog, action string, energyCurrent, energyMin float64, couplingActive bool) AdmissionResult {
	if action == "" {
		return AdmissionResult{Admitted: true, FeelingCost: FeelingCost}
	}
	def, found := c.Lookup(action)
	if !found {
		return AdmissionResult{Admitted: false, Reason: "operation does not exist", FeelingCost: FeelingCost}
	}
	if energyCurrent-(def.EnergyCost+FeelingCost) < energyMin {
		return AdmissionResult{Admitted: false, Reason: "insufficient energy margin", FeelingCost: FeelingCost}
	}
	if def.RequiresCoupling && !couplingActive {
		return AdmissionResult{Admitted: false, Reason: "coupling required but inactive", FeelingCost: FeelingCost}
	}
	return AdmissionResult{Admitted: true, FeelingCost: FeelingCost}
}
