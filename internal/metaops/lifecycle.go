package metaops

import "github.com/noesis-run/noesis/internal/statemodel"

// Lifecycle tuning constants (spec.md §4.8). QuarantineCycles and
// TrialUsesRequired are deliberately small so a quarantined operation can
// reach ACTIVE within a practical demo window; MaxSurpriseDrift is the
// epsilon tolerance on both the maximum single surprise delta (promotion)
// and the trial-average V delta (deprecation).
const (
	QuarantineCycles  = 10
	TrialUsesRequired = 5
	MaxSurpriseDrift  = 0.05
)

// Advance runs one lifecycle transition check for a single generated
// operation against the agent's current cycle number. It never mutates
// the operation in place — callers persist the returned copy through
// statemanager, same as every other state change.
func Advance(op statemodel.GeneratedOperation, currentCycle uint64) statemodel.GeneratedOperation {
	switch op.Status {
	case statemodel.LifecycleQuarantined:
		if currentCycle-op.QuarantineStartCycle >= QuarantineCycles {
			op.Status = statemodel.LifecycleTrial
			op.TrialMetrics = &statemodel.TrialMetrics{}
		}
		return op

	case statemodel.LifecycleTrial:
		if op.TrialMetrics == nil {
			return op
		}
		m := op.TrialMetrics
		if m.Blocks > 0 || m.MaxDeltaV > 0 || averageDrift(m) > MaxSurpriseDrift {
			op.Status = statemodel.LifecycleDeprecated
			return op
		}
		if m.Uses >= TrialUsesRequired && m.Blocks == 0 && m.MaxDeltaV <= 0 && m.MaxDeltaSurprise <= MaxSurpriseDrift {
			op.Status = statemodel.LifecycleActive
		}
		return op

	default:
		return op
	}
}

func averageDrift(m *statemodel.TrialMetrics) float64 {
	if m.Uses == 0 {
		return 0
	}
	return m.SumDeltaV / float64(m.Uses)
}

// RecordTrialUse folds one execution's observed deltas into a TRIAL
// operation's cumulative and maximum metrics (spec.md §4.8: "maximum
// captures single spikes; zero-tolerance on V spikes").
func RecordTrialUse(op statemodel.GeneratedOperation, blocked bool, deltaV, deltaSurprise float64) statemodel.GeneratedOperation {
	if op.TrialMetrics == nil {
		op.TrialMetrics = &statemodel.TrialMetrics{}
	}
	m := *op.TrialMetrics
	m.Uses++
	if blocked {
		m.Blocks++
	}
	if deltaV > m.MaxDeltaV {
		m.MaxDeltaV = deltaV
	}
	if deltaSurprise > m.MaxDeltaSurprise {
		m.MaxDeltaSurprise = deltaSurprise
	}
	m.SumDeltaV += deltaV
	op.TrialMetrics = &m
	return op
}

// Selectable reports whether a generated operation may be chosen by
// policy without an explicit admin override flag (spec.md §4.8: "only
// ACTIVE operations are selectable by the policy").
func Selectable(op statemodel.GeneratedOperation, adminOverride bool) bool {
	if adminOverride {
		return true
	}
	return op.Status == statemodel.LifecycleActive
}
