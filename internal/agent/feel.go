package agent

import (
	"github.com/noesis-run/noesis/internal/eventlog"
	"github.com/noesis-run/noesis/internal/statemodel"
	"github.com/noesis-run/noesis/internal/verifier"
)

type EnergyFeeling string

const (
	EnergyVital     EnergyFeeling = "vital"
	EnergyAdequate  EnergyFeeling = "adequate"
	EnergyLow       EnergyFeeling = "low"
	EnergyCritical  EnergyFeeling = "critical"
)

type StabilityFeeling string

const (
	StabilityAttractor StabilityFeeling = "attractor"
	StabilityStable    StabilityFeeling = "stable"
	StabilityDrifting  StabilityFeeling = "drifting"
	StabilityUnstable  StabilityFeeling = "unstable"
)

type IntegrityFeeling string

const (
	IntegrityWhole     IntegrityFeeling = "whole"
	IntegrityStressed  IntegrityFeeling = "stressed"
	IntegrityViolated  IntegrityFeeling = "violated"
)

// AdaptiveThresholds are the parameters ADAPT tunes; FEEL consults them to
// classify energy/stability feelings (spec.md §4.10.1, §4.10.5).
type AdaptiveThresholds struct {
	CriticalThreshold float64
	UrgencyThreshold  float64
	RestThreshold     float64
}

// Feeling is one cycle's FEEL-phase output (spec.md §4.10.1).
type Feeling struct {
	Surprise          float64
	Energy            EnergyFeeling
	Stability         StabilityFeeling
	Integrity         IntegrityFeeling
	ThreatsExistence  bool
	ThreatsStability  bool
	NeedsGrowth       bool
	VerifyResult      verifier.Result
}

// Feel reads state and the event log, runs pure verify, and classifies
// the result into a Feeling (spec.md §4.10.1). It performs no mutation —
// this is the one place Sigillo 2 requires pure verify, never logged
// verify.
func Feel(state statemodel.State, events []eventlog.Event, hashOrg verifier.OrganizationHasher, thresholds AdaptiveThresholds) Feeling {
	result := verifier.Pure(state, events, hashOrg)

	energyFeeling := classifyEnergy(state.Energy.Current, thresholds)
	stabilityFeeling := classifyStability(state.Lyapunov.V, thresholds)
	integrityFeeling := classifyIntegrity(result)

	energySurprise := energySurpriseValue(state.Energy.Current, thresholds)
	integritySurprise := integritySurpriseValue(result)
	surprise := 0.4*energySurprise + 0.4*result.V + 0.2*integritySurprise

	return Feeling{
		Surprise:         surprise,
		Energy:           energyFeeling,
		Stability:        stabilityFeeling,
		Integrity:        integrityFeeling,
		ThreatsExistence: energyFeeling == EnergyCritical,
		ThreatsStability: result.V > 0.1 || !result.Satisfied(),
		NeedsGrowth:      energyFeeling == EnergyVital && stabilityFeeling == StabilityAttractor && integrityFeeling == IntegrityWhole,
		VerifyResult:     result,
	}
}

func classifyEnergy(current float64, t AdaptiveThresholds) EnergyFeeling {
	switch {
	case current <= t.CriticalThreshold:
		return EnergyCritical
	case current <= t.UrgencyThreshold:
		return EnergyLow
	case current < 0.7:
		return EnergyAdequate
	default:
		return EnergyVital
	}
}

// classifyStability bands V against the rest threshold and the fixed
// {0.1, 0.3} bands (spec.md §4.10.1).
func classifyStability(v float64, t AdaptiveThresholds) StabilityFeeling {
	switch {
	case v <= t.RestThreshold:
		return StabilityAttractor
	case v <= 0.1:
		return StabilityStable
	case v <= 0.3:
		return StabilityDrifting
	default:
		return StabilityUnstable
	}
}

func classifyIntegrity(result verifier.Result) IntegrityFeeling {
	total := len(result.Checks)
	if total == 0 {
		return IntegrityWhole
	}
	satisfied := total - result.ViolationCount
	switch {
	case satisfied == total:
		return IntegrityWhole
	case result.Status == statemodel.StatusTerminal:
		// Any violation short of terminal status reads as merely stressed,
		// not violated — PriorityIntegrity therefore only fires once
		// recovery has already escalated the organization to terminal,
		// not on every partial check failure.
		return IntegrityViolated
	default:
		return IntegrityStressed
	}
}

func energySurpriseValue(current float64, t AdaptiveThresholds) float64 {
	if current >= t.UrgencyThreshold {
		return 0
	}
	span := t.UrgencyThreshold
	if span <= 0 {
		return 1
	}
	d := (t.UrgencyThreshold - current) / span
	if d > 1 {
		return 1
	}
	if d < 0 {
		return 0
	}
	return d
}

func integritySurpriseValue(result verifier.Result) float64 {
	if len(result.Checks) == 0 {
		return 0
	}
	return float64(result.ViolationCount) / float64(len(result.Checks))
}
