package statemodel

import (
	"fmt"
	"time"

	"github.com/noesis-run/noesis/internal/eventlog"
)

// Replay reconstructs State by folding events from GENESIS (spec.md §4.3).
func Replay(events []eventlog.Event) (State, error) {
	if len(events) == 0 {
		return State{}, fmt.Errorf("statemodel: cannot replay an empty event log")
	}
	if events[0].Type != eventlog.TypeGenesis {
		return State{}, fmt.Errorf("statemodel: first event must be GENESIS, got %s", events[0].Type)
	}

	state := genesisState(events[0])
	state = touchMemory(state, events[0])

	for _, ev := range events[1:] {
		state = apply(state, ev)
		state = touchMemory(state, ev)
	}
	return state, nil
}

// genesisState builds the documented defaults from the GENESIS event's
// payload: everything else starts at energy=1.0, V=0, empty memories,
// nominal status (spec.md §4.3).
func genesisState(ev eventlog.Event) State {
	return State{
		SchemaVersion:    CurrentSchemaVersion,
		SpecificationID:  payloadString(ev.Data, "specification"),
		OrganizationHash: payloadString(ev.Data, "organization_hash"),
		Identity: Identity{
			Name:           payloadString(ev.Data, "name"),
			Instantiator:   payloadString(ev.Data, "instantiated_by"),
			InstantiatedAt: parseTimestamp(ev.Timestamp),
		},
		Energy: Energy{
			Current:   1.0,
			Min:       0.01,
			Threshold: 0.1,
		},
		Lyapunov: LyapunovBlock{V: 0, VPrevious: 0},
		Integrity: Integrity{
			Status: StatusNominal,
		},
		Agent: Agent{
			PriorityCounts: map[string]int{},
		},
	}
}

// applyFieldChanges conditionally updates energy, Lyapunov, human context
// and important memories from a flat field map — the common shape shared
// by STATE_UPDATE's own payload and an OPERATION event's nested
// "state_changes" (spec.md §4.3, §4.7 step 5a).
func applyFieldChanges(s State, changes map[string]any) State {
	if energy, ok := payloadFloat(changes, "energy_current"); ok {
		s.Energy.Current = energy
	}
	if v, ok := payloadFloat(changes, "v"); ok {
		s.Lyapunov.VPrevious = s.Lyapunov.V
		s.Lyapunov.V = v
	}
	if notes := payloadString(changes, "human_notes"); notes != "" {
		s.HumanContext.Notes = notes
	}
	if mems := payloadStringSlice(changes, "important_memory"); mems != nil {
		s.ImportantMemory = append(s.ImportantMemory, mems...)
	}
	return s
}

// touchMemory updates memory.event_count and memory.last_event_hash from
// the event's own seq/hash — every transition does this (spec.md §4.3).
func touchMemory(s State, ev eventlog.Event) State {
	s.Memory.EventCount = ev.Seq
	s.Memory.LastEventHash = ev.Hash
	return s
}

// ApplyOne runs the single shared transition (plus the genesis special
// case and the memory-bookkeeping touch) against an already-derived state
// for exactly one new event. This is what internal/statemanager calls on
// its in-place path — the same apply switch Replay folds over, so the two
// paths can never diverge (spec.md §4.3, §9 design note #1).
func ApplyOne(s State, ev eventlog.Event) State {
	if ev.Type == eventlog.TypeGenesis {
		s = genesisState(ev)
	} else {
		s = apply(s, ev)
	}
	return touchMemory(s, ev)
}

// apply is the single type-switch transition table shared, verbatim, by
// Replay and by internal/statemanager's in-place applier. Unknown event
// types are no-ops for forward compatibility (spec.md §4.3).
func apply(s State, ev eventlog.Event) State {
	switch ev.Type {
	case eventlog.TypeGenesis:
		// Only ever the first event; already handled by genesisState.
		return s

	case eventlog.TypeSessionStart:
		s.Session.TotalCount++
		s.Session.CurrentID = payloadString(ev.Data, "session_id")
		s.Coupling.Active = true
		s.Coupling.Partner = payloadString(ev.Data, "partner")
		s.Coupling.Since = parseTimestamp(ev.Timestamp)
		return s

	case eventlog.TypeSessionEnd:
		s.Coupling.Active = false
		s.Coupling.Partner = ""
		s.Coupling.Since = time.Time{}
		s.Session.CurrentID = ""
		s.Energy.Current -= SessionDecay
		if s.Energy.Current < 0 {
			s.Energy.Current = 0
		}
		return s

	case eventlog.TypeStateUpdate:
		return applyFieldChanges(s, ev.Data)

	case eventlog.TypeOperation:
		// An OPERATION event's state changes live nested under
		// "state_changes" (catalog.Exec step 5a); the energy debit is
		// carried directly as the already-computed "energy_after" rather
		// than a delta, so replay never has to re-derive the cost.
		if after, ok := payloadFloat(ev.Data, "energy_after"); ok {
			s.Energy.Current = after
		}
		if changes, ok := ev.Data["state_changes"].(map[string]any); ok {
			s = applyFieldChanges(s, changes)
		}
		return s

	case eventlog.TypeVerification:
		t := parseTimestamp(ev.Timestamp)
		s.Integrity.LastVerification = &t
		if vc, ok := payloadInt(ev.Data, "violation_count"); ok {
			s.Integrity.ViolationCount = vc
		}
		if status := payloadString(ev.Data, "status"); status != "" {
			s.Integrity.Status = IntegrityStatus(status)
		}
		return s

	case eventlog.TypeSnapshot:
		t := parseTimestamp(ev.Timestamp)
		s.Memory.LastSnapshotAt = &t
		return s

	case eventlog.TypeLearning:
		t := parseTimestamp(ev.Timestamp)
		s.Learning.LastLearnedAt = &t
		if hash := payloadString(ev.Data, "patterns_hash"); hash != "" {
			s.Learning.PatternsHash = hash
		}
		return s

	case eventlog.TypeMetaOperation:
		s.Autopoiesis.Generated = payloadGeneratedOperations(ev.Data)
		return s

	case eventlog.TypeAgentWake:
		s.Agent.Awake = true
		return s

	case eventlog.TypeAgentSleep:
		s.Agent.Awake = false
		return s

	case eventlog.TypeAgentResponse:
		// Cycle count is advanced once per cycle by AGENT_RESPONSE or
		// AGENT_REST, never both, to avoid double-counting (spec.md §4.3).
		s.Agent.CycleCount++
		s.Agent.ResponseCount++
		if priority := payloadString(ev.Data, "priority"); priority != "" {
			if s.Agent.PriorityCounts == nil {
				s.Agent.PriorityCounts = map[string]int{}
			}
			s.Agent.PriorityCounts[priority]++
		}
		if blocked, ok := payloadBool(ev.Data, "blocked"); ok && blocked {
			s.Agent.BlockedCount++
		}
		if cost, ok := payloadFloat(ev.Data, "energy_cost"); ok {
			// energy_cost on this event is always the feeling cost (Admit
			// never adds a chosen operation's own cost here — that is
			// debited separately through OPERATION's energy_after), so it
			// both accumulates into the lifetime counter and is actually
			// debited from current energy (spec.md §4.10.3/§4.10.4).
			s.Agent.TotalEnergySpent += cost
			s.Energy.Current -= cost
			if s.Energy.Current < 0 {
				s.Energy.Current = 0
			}
		}
		return s

	case eventlog.TypeAgentRest:
		s.Agent.CycleCount++
		s.Agent.RestCount++
		t := parseTimestamp(ev.Timestamp)
		s.Agent.LastRestEventAt = &t
		return s

	case eventlog.TypeAgentUltrastability:
		// Parameter snapshots are process-local history (internal/agent);
		// state only needs to know it happened, which memory.event_count
		// already captures. No additional field changes here.
		return s

	default:
		// Forward compatibility: unknown event types are no-ops.
		return s
	}
}
