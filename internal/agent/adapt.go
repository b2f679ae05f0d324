package agent

import (
	"time"

	"github.com/noesis-run/noesis/internal/eventlog"
	"github.com/noesis-run/noesis/internal/statemanager"
)

// ViolationFamily classifies a recorded violation for ultrastability's
// per-family majority rule (spec.md §4.10.5).
type ViolationFamily string

const (
	FamilyEnergy    ViolationFamily = "energy"
	FamilyStability ViolationFamily = "stability"
	FamilyIntegrity ViolationFamily = "integrity"
)

// ViolationRecord is one entry in the bounded violation window (default
// 50, spec.md §5 back-pressure).
type ViolationRecord struct {
	Family ViolationFamily
	At     time.Time
}

// ViolationWindow is a bounded ring buffer of recent violations.
type ViolationWindow struct {
	records []ViolationRecord
	cap     int
}

func NewViolationWindow(capacity int) *ViolationWindow {
	if capacity <= 0 {
		capacity = 50
	}
	return &ViolationWindow{cap: capacity}
}

func (w *ViolationWindow) Add(family ViolationFamily) {
	w.records = append(w.records, ViolationRecord{Family: family, At: time.Now().UTC()})
	if len(w.records) > w.cap {
		w.records = w.records[len(w.records)-w.cap:]
	}
}

func (w *ViolationWindow) Len() int { return len(w.records) }

func (w *ViolationWindow) majorityFamily() (ViolationFamily, bool) {
	if len(w.records) == 0 {
		return "", false
	}
	counts := map[ViolationFamily]int{}
	for _, r := range w.records {
		counts[r.Family]++
	}
	var best ViolationFamily
	bestCount := 0
	for family, count := range counts {
		if count > bestCount {
			best = family
			bestCount = count
		}
	}
	return best, float64(bestCount) >= float64(len(w.records))/2
}

// ParameterSnapshot is one entry in the bounded adaptive-parameter
// history (default 20, spec.md §5).
type ParameterSnapshot struct {
	At                 time.Time
	CriticalThreshold  float64
	UrgencyThreshold   float64
	RestThreshold      float64
	DecisionInterval   time.Duration
}

// ParameterHistory is a bounded ring of parameter snapshots.
type ParameterHistory struct {
	records []ParameterSnapshot
	cap     int
}

func NewParameterHistory(capacity int) *ParameterHistory {
	if capacity <= 0 {
		capacity = 20
	}
	return &ParameterHistory{cap: capacity}
}

func (h *ParameterHistory) Add(snap ParameterSnapshot) {
	h.records = append(h.records, snap)
	if len(h.records) > h.cap {
		h.records = h.records[len(h.records)-h.cap:]
	}
}

// AdaptationBounds caps the parameters ultrastability may tune (spec.md
// §4.10.5).
type AdaptationBounds struct {
	MaxCriticalThreshold float64
	MaxUrgencyThreshold  float64
	MinRestThreshold     float64
	MinDecisionInterval  time.Duration
}

var DefaultAdaptationBounds = AdaptationBounds{
	MaxCriticalThreshold: 0.15,
	MaxUrgencyThreshold:  0.3,
	MinRestThreshold:     0.02,
	MinDecisionInterval:  time.Second,
}

const adaptationRate = 0.1

// Adapt runs one ultrastability tuning pass against the recent violation
// window and current thresholds, returning the updated thresholds/interval
// and whether any parameter actually changed (spec.md §4.10.5).
func Adapt(thresholds AdaptiveThresholds, decisionInterval time.Duration, window *ViolationWindow, stabilityScore float64, bounds AdaptationBounds) (AdaptiveThresholds, time.Duration, bool) {
	family, hasMajority := window.majorityFamily()

	changed := false
	switch {
	case hasMajority && family == FamilyEnergy:
		newCritical := thresholds.CriticalThreshold * (1 + adaptationRate)
		if newCritical > bounds.MaxCriticalThreshold {
			newCritical = bounds.MaxCriticalThreshold
		}
		newUrgency := thresholds.UrgencyThreshold * (1 + adaptationRate)
		if newUrgency > bounds.MaxUrgencyThreshold {
			newUrgency = bounds.MaxUrgencyThreshold
		}
		if newCritical != thresholds.CriticalThreshold || newUrgency != thresholds.UrgencyThreshold {
			thresholds.CriticalThreshold = newCritical
			thresholds.UrgencyThreshold = newUrgency
			changed = true
		}

	case hasMajority && family == FamilyStability:
		newRest := thresholds.RestThreshold * (1 - adaptationRate)
		if newRest < bounds.MinRestThreshold {
			newRest = bounds.MinRestThreshold
		}
		newInterval := time.Duration(float64(decisionInterval) * (1 - adaptationRate))
		if newInterval < bounds.MinDecisionInterval {
			newInterval = bounds.MinDecisionInterval
		}
		if newRest != thresholds.RestThreshold || newInterval != decisionInterval {
			thresholds.RestThreshold = newRest
			decisionInterval = newInterval
			changed = true
		}

	case !hasMajority && window.Len() == 0 && stabilityScore >= 0.9:
		// Relax slowly, and never faster than the tightening rate above.
		const relaxRate = adaptationRate / 2
		relaxedCritical := thresholds.CriticalThreshold * (1 - relaxRate)
		if relaxedCritical != thresholds.CriticalThreshold {
			thresholds.CriticalThreshold = relaxedCritical
			changed = true
		}
	}

	return thresholds, decisionInterval, changed
}

// EmitUltrastability appends the AGENT_ULTRASTABILITY event recording an
// adaptation's new parameters (spec.md §4.10.5).
func EmitUltrastability(sm *statemanager.Manager, thresholds AdaptiveThresholds, decisionInterval time.Duration) error {
	_, _, err := sm.AppendEventAtomic(eventlog.TypeAgentUltrastability, map[string]any{
		"critical_threshold": thresholds.CriticalThreshold,
		"urgency_threshold":  thresholds.UrgencyThreshold,
		"rest_threshold":     thresholds.RestThreshold,
		"decision_interval":  decisionInterval.String(),
		"adapted_at":         time.Now().UTC().Format(time.RFC3339Nano),
	})
	return err
}
