// Package statemodel defines the State record and its single replay
// applier (spec.md §3.1, §4.3). The applier in transition.go is shared,
// verbatim, by Replay and by internal/statemanager's in-place path — the
// one place spec.md §9's design note #1 requires them to live together.
package statemodel

import "time"

const CurrentSchemaVersion = 1

// SessionDecay is the fixed energy debit applied once a session closes
// (spec.md §4.12, §8 scenario S1: start + end leaves energy.current at
// 1.0 − session_decay).
const SessionDecay = 0.05

// Identity is the instantiation-time identity block.
type Identity struct {
	Name            string    `json:"name"`
	Instantiator    string    `json:"instantiator"`
	InstantiatedAt  time.Time `json:"instantiated_at"`
}

// Coupling is the active-session block.
type Coupling struct {
	Active  bool      `json:"active"`
	Partner string    `json:"partner,omitempty"`
	Since   time.Time `json:"since,omitempty"`
}

// Energy is the energy-viability block (INV-005).
type Energy struct {
	Current   float64 `json:"current"`
	Min       float64 `json:"min"`
	Threshold float64 `json:"threshold"`
}

// LyapunovBlock carries the current and previous scalar V (INV-004).
type LyapunovBlock struct {
	V         float64 `json:"v"`
	VPrevious float64 `json:"v_previous"`
}

// Memory is the replay bookkeeping block (INV-002).
type Memory struct {
	EventCount     uint64     `json:"event_count"`
	LastEventHash  string     `json:"last_event_hash"`
	LastSnapshotAt *time.Time `json:"last_snapshot_at,omitempty"`
}

// IntegrityStatus is one of the integrity state machine's states (spec.md §4.12).
type IntegrityStatus string

const (
	StatusNominal  IntegrityStatus = "nominal"
	StatusDegraded IntegrityStatus = "degraded"
	StatusDormant  IntegrityStatus = "dormant"
	StatusTerminal IntegrityStatus = "terminal"
)

// Integrity is the invariant-health block.
type Integrity struct {
	Status          IntegrityStatus `json:"status"`
	ViolationCount  int             `json:"violation_count"`
	LastVerification *time.Time     `json:"last_verification,omitempty"`
}

// Session is the coupling/session counters block.
type Session struct {
	TotalCount int    `json:"total_count"`
	CurrentID  string `json:"current_id,omitempty"`
}

// PendingRequest is a queued, unresolved coupling request (supplemented
// detail, SPEC_FULL.md §5.11).
type PendingRequest struct {
	ID          string    `json:"id"`
	From        string    `json:"from"`
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// HumanContext carries free-form operator-facing context, including the
// supplemented open-ended Labels bag (SPEC_FULL.md §4).
type HumanContext struct {
	Notes  string            `json:"notes,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
}

// Learning is the pattern-learning bookkeeping block.
type Learning struct {
	LastLearnedAt *time.Time `json:"last_learned_at,omitempty"`
	PatternsHash  string     `json:"patterns_hash,omitempty"`
}

// TemplateTag is one of the closed set of generated-operation templates
// (spec.md §3.1, §4.8, §9 "dynamic handlers").
type TemplateTag string

const (
	TemplateReadField  TemplateTag = "read_field"
	TemplateSetField   TemplateTag = "set_field"
	TemplateCompose    TemplateTag = "compose"
	TemplateConditional TemplateTag = "conditional"
	TemplateTransform  TemplateTag = "transform"
	TemplateAggregate  TemplateTag = "aggregate"
	TemplateEcho       TemplateTag = "echo"
)

// LifecycleStatus is a generated operation's position in the quarantine
// state machine (spec.md §4.8).
type LifecycleStatus string

const (
	LifecycleQuarantined LifecycleStatus = "quarantined"
	LifecycleTrial       LifecycleStatus = "trial"
	LifecycleActive      LifecycleStatus = "active"
	LifecycleDeprecated  LifecycleStatus = "deprecated"
)

// TrialMetrics accumulates the observations that decide a TRIAL
// operation's promotion or deprecation.
type TrialMetrics struct {
	Uses        int     `json:"uses"`
	Blocks      int     `json:"blocks"`
	MaxDeltaV   float64 `json:"max_delta_v"`
	MaxDeltaSurprise float64 `json:"max_delta_surprise"`
	SumDeltaV   float64 `json:"sum_delta_v"`
}

// GeneratedOperation is a self-produced operation definition owned by the
// autopoiesis sub-record (spec.md §3.1).
type GeneratedOperation struct {
	ID                string          `json:"id"`
	Category          string          `json:"category"`
	Complexity        int             `json:"complexity"`
	EnergyCost        float64         `json:"energy_cost"`
	RequiresCoupling  bool            `json:"requires_coupling"`
	Template          TemplateTag     `json:"template"`
	TemplateParams    map[string]any  `json:"template_params"`
	Depth             int             `json:"depth"`
	ParentOperations  []string        `json:"parent_operations"`
	Status            LifecycleStatus `json:"status"`
	StatusChangedAt   time.Time       `json:"status_changed_at"`
	QuarantineStartCycle uint64       `json:"quarantine_start_cycle"`
	TrialMetrics      *TrialMetrics   `json:"trial_metrics,omitempty"`
}

// Autopoiesis is the self-production sub-record of state.
type Autopoiesis struct {
	Generated []GeneratedOperation `json:"generated"`
}

// Agent is the agent's durable counters (process-local statistics live
// outside State entirely — spec.md §9 "global mutable state").
type Agent struct {
	CycleCount       uint64         `json:"cycle_count"`
	Awake            bool           `json:"awake"`
	PriorityCounts   map[string]int `json:"priority_counts"`
	ResponseCount    uint64         `json:"response_count"`
	BlockedCount     uint64         `json:"blocked_count"`
	RestCount        uint64         `json:"rest_count"`
	TotalEnergySpent float64        `json:"total_energy_spent"`
	LastRestEventAt  *time.Time     `json:"last_rest_event_at,omitempty"`
}

// State is the fully derived-from-events record (spec.md §3.1).
type State struct {
	SchemaVersion    int                  `json:"schema_version"`
	SpecificationID  string               `json:"specification_id"`
	OrganizationHash string               `json:"organization_hash"`
	Identity         Identity             `json:"identity"`
	Coupling         Coupling             `json:"coupling"`
	Energy           Energy               `json:"energy"`
	Lyapunov         LyapunovBlock        `json:"lyapunov"`
	Memory           Memory               `json:"memory"`
	Integrity        Integrity            `json:"integrity"`
	HumanContext     HumanContext         `json:"human_context"`
	ImportantMemory  []string             `json:"important_memory"`
	Learning         Learning             `json:"learning"`
	Autopoiesis      Autopoiesis          `json:"autopoiesis"`
	Agent            Agent                `json:"agent"`
	Session          Session              `json:"session"`
	PendingCoupling  []PendingRequest     `json:"pending_coupling,omitempty"`
}
