package agent

import (
	"time"

	"github.com/noesis-run/noesis/internal/catalog"
	"github.com/noesis-run/noesis/internal/config"
	"github.com/noesis-run/noesis/internal/eventlog"
	"github.com/noesis-run/noesis/internal/rerr"
	"github.com/noesis-run/noesis/internal/statemanager"
	"github.com/noesis-run/noesis/internal/verifier"
)

// Agent is the composition root's sense-making control loop: one
// statemanager, one catalog, and the process-local runtime statistics
// spec.md §3.3 says live outside durable state entirely.
type Agent struct {
	sm      *statemanager.Manager
	catalog *catalog.Catalog
	hashOrg verifier.OrganizationHasher
	cfg     *config.Config
	log     *CycleLogger
	metrics *Metrics

	thresholds       AdaptiveThresholds
	decisionInterval time.Duration
	models           LearnedModels
	memory           *CycleMemory
	violations       *ViolationWindow
	paramHistory     *ParameterHistory
	usage            UsageCounters
	restCyclesSinceLog int
	cyclesSinceProduction int
	override         ManualOverride
}

// New builds an Agent from its collaborators and the loaded config's
// agent defaults.
func New(sm *statemanager.Manager, cat *catalog.Catalog, hashOrg verifier.OrganizationHasher, cfg *config.Config, log *CycleLogger, metrics *Metrics) *Agent {
	return &Agent{
		sm:      sm,
		catalog: cat,
		hashOrg: hashOrg,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		thresholds: AdaptiveThresholds{
			CriticalThreshold: cfg.CriticalThreshold,
			UrgencyThreshold:  cfg.UrgencyThreshold,
			RestThreshold:     cfg.RestThreshold,
		},
		decisionInterval: cfg.DecisionInterval,
		models:           LearnedModels{},
		memory:           NewCycleMemory(cfg.CycleMemoryWindow),
		violations:       NewViolationWindow(cfg.ViolationWindow),
		paramHistory:     NewParameterHistory(cfg.ParameterHistory),
		usage:            UsageCounters{},
	}
}

// SetManualOverride pins a non-test cycle context (spec.md §4.11); it has
// no effect once config.IsTestContext() is true.
func (a *Agent) SetManualOverride(ctx CycleContext) {
	a.override = ManualOverride{Set: true, Context: ctx}
}

func (a *Agent) ClearManualOverride() {
	a.override = ManualOverride{}
}

// CycleOutcome summarizes one RunCycle invocation for callers (the CLI's
// agent_force_cycle, the scheduler's periodic tick).
type CycleOutcome struct {
	Context  CycleContext
	Deferred bool
	Priority Priority
	Action   string
	Admitted bool
	Blocked  bool
	Feeling  Feeling
}

// RunCycle executes one full pass of the five phases: FEEL, COUPLING
// DEFERENCE, RESPOND, REMEMBER, ADAPT (plus the SELF-PRODUCTION gate),
// exactly as spec.md §4.10 orders them.
func (a *Agent) RunCycle() (CycleOutcome, error) {
	state := a.sm.ReadState()
	cycleContext := DeriveContext(config.IsTestContext(), a.override, state.Coupling)

	events, err := a.sm.Events()
	if err != nil {
		return CycleOutcome{}, err
	}
	feeling := Feel(state, events, a.hashOrg, a.thresholds)

	if state.Coupling.Active && !a.cfg.Features.ActiveWhenCoupled {
		a.log.LogDeferred(state.Agent.CycleCount, state.Coupling.Partner)
		return CycleOutcome{Context: cycleContext, Deferred: true, Feeling: feeling}, nil
	}

	priority := SelectPriority(feeling)
	action := SelectAction(priority, feeling, a.models, a.memory, a.cfg.Features.ActiveInference, state.Autopoiesis.Generated)

	admission := Admit(a.catalog, action, state.Energy.Current, state.Energy.Min, state.Coupling.Active)
	blocked := !admission.Admitted

	var execResult catalog.Result
	if admission.Admitted && action != "" {
		result, err := a.catalog.Exec(a.sm, action, nil)
		if err != nil {
			blocked = true
		} else {
			execResult = result
			if cycleContext.SideEffectsEnabled() {
				a.usage = a.usage.Record(action)
			}
		}
	}

	if priority == PriorityRest {
		a.restCyclesSinceLog++
	} else {
		a.restCyclesSinceLog = 0
	}

	_, newState, logged, err := Remember(a.sm, priority, action, admission.Admitted, blocked, admission.FeelingCost, a.restCyclesSinceLog)
	if err != nil {
		return CycleOutcome{}, err
	}
	if logged && priority == PriorityRest {
		a.restCyclesSinceLog = 0
	}

	if !feeling.VerifyResult.Satisfied() {
		a.violations.Add(violationFamilyFor(feeling.VerifyResult))
	}

	after := Feel(newState, events, a.hashOrg, a.thresholds)
	a.memory.Add(CycleRecord{
		Before:        feeling,
		After:         after,
		Priority:      priority,
		Action:        action,
		Blocked:       blocked,
		Effectiveness: effectivenessScore(priority, feeling, after),
		SurpriseDrop:  feeling.Surprise - after.Surprise,
		EnergyCost:    admission.FeelingCost,
	})
	if action != "" {
		a.models = a.models.Update(action, newState.Energy.Current-state.Energy.Current, after.VerifyResult.V-feeling.VerifyResult.V)
	}

	if cycleContext.SideEffectsEnabled() {
		a.runAdaptation(newState.Agent.CycleCount)
		a.cyclesSinceProduction++
		if priority == PriorityGrowth {
			a.runSelfProduction(newState.Agent.CycleCount)
		}
		if action != "" && admission.Admitted {
			deltaV := after.VerifyResult.V - feeling.VerifyResult.V
			deltaSurprise := after.Surprise - feeling.Surprise
			if err := RecordGeneratedUse(a.sm, state.Autopoiesis.Generated, action, blocked, deltaV, deltaSurprise); err != nil {
				return CycleOutcome{}, err
			}
		}
		if err := AdvanceLifecycles(a.sm, newState.Agent.CycleCount); err != nil {
			return CycleOutcome{}, err
		}
	}

	if a.metrics != nil {
		a.metrics.Observe(newState.Energy.Current, newState.Lyapunov.V, blocked)
	}
	a.log.LogCycle(newState.Agent.CycleCount, priority, action, admission.Admitted, blocked, newState.Energy.Current, newState.Lyapunov.V)

	return CycleOutcome{
		Context:  cycleContext,
		Priority: priority,
		Action:   action,
		Admitted: admission.Admitted,
		Blocked:  blocked,
		Feeling:  feeling,
	}, nil
}

func (a *Agent) runAdaptation(cycleCount uint64) {
	if int(cycleCount)%a.cfg.AdaptationInterval != 0 {
		return
	}
	stabilityScore := 1.0
	if a.violations.Len() > 0 {
		stabilityScore = 0
	}
	newThresholds, newInterval, changed := Adapt(a.thresholds, a.decisionInterval, a.violations, stabilityScore, DefaultAdaptationBounds)
	if !changed {
		return
	}
	a.thresholds = newThresholds
	a.decisionInterval = newInterval
	a.paramHistory.Add(ParameterSnapshot{
		At:                time.Now().UTC(),
		CriticalThreshold: newThresholds.CriticalThreshold,
		UrgencyThreshold:  newThresholds.UrgencyThreshold,
		RestThreshold:     newThresholds.RestThreshold,
		DecisionInterval:  newInterval,
	})
	if err := EmitUltrastability(a.sm, newThresholds, newInterval); err == nil {
		if family, ok := a.violations.majorityFamily(); ok {
			a.log.LogAdaptation(cycleCount, family)
		}
		if a.metrics != nil {
			a.metrics.AdaptationsTotal.Inc()
		}
	}
}

func (a *Agent) runSelfProduction(cycleCount uint64) {
	gate := SelfProductionGate{
		Threshold:       a.cfg.SelfProductionThreshold,
		Cooldown:        a.cfg.SelfProductionCooldown,
		MaxTotal:        a.cfg.SelfProductionMaxTotal,
		CyclesSinceLast: a.cyclesSinceProduction,
	}
	produced, err := MaybeSelfProduce(a.sm, a.catalog, a.usage, gate, cycleCount)
	if err != nil || !produced {
		return
	}
	a.cyclesSinceProduction = 0
	if a.metrics != nil {
		a.metrics.SelfProduced.Inc()
	}
}

func violationFamilyFor(result verifier.Result) ViolationFamily {
	if check, found := result.CheckByID(verifier.InvEnergyViable); found && !check.Satisfied {
		return FamilyEnergy
	}
	if check, found := result.CheckByID(verifier.InvLyapunovMonotonic); found && !check.Satisfied {
		return FamilyStability
	}
	return FamilyIntegrity
}

// effectivenessScore is a priority-weighted sum of before/after
// improvements, clamped to [-1, 1] (spec.md §4.10.3).
func effectivenessScore(priority Priority, before, after Feeling) float64 {
	deltaEnergy := energyFeelingScalar(after.Energy) - energyFeelingScalar(before.Energy)
	deltaV := before.VerifyResult.V - after.VerifyResult.V
	deltaIntegrity := integrityFeelingScalar(after.Integrity) - integrityFeelingScalar(before.Integrity)
	deltaSurprise := before.Surprise - after.Surprise

	weight := priorityWeight(priority)
	score := weight * (0.3*deltaEnergy + 0.3*deltaV + 0.2*deltaIntegrity + 0.2*deltaSurprise)
	if score > 1 {
		return 1
	}
	if score < -1 {
		return -1
	}
	return score
}

func priorityWeight(p Priority) float64 {
	switch p {
	case PrioritySurvival:
		return 1.5
	case PriorityIntegrity:
		return 1.3
	case PriorityStability:
		return 1.1
	default:
		return 1.0
	}
}

// Wake transitions the agent to awake; it is rejected only when the agent
// is already awake — no enabled/disabled setting is consulted.
func Wake(sm *statemanager.Manager) error {
	state := sm.ReadState()
	if state.Agent.Awake {
		return rerr.New(rerr.PreconditionViolated, "agent is already awake")
	}
	_, _, err := sm.AppendEventAtomic(eventlog.TypeAgentWake, map[string]any{
		"woke_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	return err
}

// Sleep transitions the agent to asleep; rejected if already asleep
// (spec.md §4.12).
func Sleep(sm *statemanager.Manager) error {
	state := sm.ReadState()
	if !state.Agent.Awake {
		return rerr.New(rerr.PreconditionViolated, "agent is already asleep")
	}
	_, _, err := sm.AppendEventAtomic(eventlog.TypeAgentSleep, map[string]any{
		"slept_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	return err
}
