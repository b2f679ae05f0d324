// Package verifier implements the five named invariant checks with the
// strict pure/logged separation spec.md §4.5 requires (Sigillo 2:
// observer/actor context separation). Pure verify is read-only and is the
// only form internal/agent's FEEL phase may call; logged verify appends a
// VERIFICATION event through internal/statemanager.
package verifier

import (
	"context"
	"fmt"
	"time"

	"github.com/noesis-run/noesis/internal/chainhash"
	"github.com/noesis-run/noesis/internal/eventlog"
	"github.com/noesis-run/noesis/internal/lyapunov"
	"github.com/noesis-run/noesis/internal/statemanager"
	"github.com/noesis-run/noesis/internal/statemodel"
)

const (
	InvOrganizationImmutable = "INV-001"
	InvStateDeterminism      = "INV-002"
	InvChainIntegrity        = "INV-003"
	InvLyapunovMonotonic     = "INV-004"
	InvEnergyViable          = "INV-005"
)

// Check is a single invariant's outcome.
type Check struct {
	ID        string `json:"id"`
	Satisfied bool   `json:"satisfied"`
	Detail    string `json:"detail,omitempty"`
}

// Result is the pure verifier's full report, including the computed V.
type Result struct {
	Checks         []Check `json:"checks"`
	V              float64 `json:"v"`
	ViolationCount int     `json:"violation_count"`
	Status         statemodel.IntegrityStatus `json:"status"`
}

// Satisfied reports whether every invariant in the result holds.
func (r Result) Satisfied() bool {
	return r.ViolationCount == 0
}

// Violations returns only the failing checks, in invariant order.
func (r Result) Violations() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Satisfied {
			out = append(out, c)
		}
	}
	return out
}

// CheckByID finds a single check by invariant id.
func (r Result) CheckByID(id string) (Check, bool) {
	for _, c := range r.Checks {
		if c.ID == id {
			return c, true
		}
	}
	return Check{}, false
}

// OrganizationHasher recomputes the organization fingerprint, INV-001's
// subject (spec.md §3.2). It is injected so tests can substitute a fixed
// hash without touching the filesystem.
type OrganizationHasher func() (string, error)

// Pure runs all five invariant checks against the given state and event
// log, in order, with no I/O beyond the already-loaded inputs. It appends
// no events and mutates nothing — idempotent, side-effect free (spec.md
// §4.5). This is the only verification path internal/agent's FEEL phase
// may call.
func Pure(state statemodel.State, events []eventlog.Event, hashOrg OrganizationHasher) Result {
	checks := []Check{
		checkOrganizationImmutable(state, hashOrg),
		checkChainIntegrity(events),
		checkStateDeterminism(state, events),
		checkLyapunovMonotonic(state),
		checkEnergyViable(state),
	}

	violations := 0
	for _, c := range checks {
		if !c.Satisfied {
			violations++
		}
	}

	v := lyapunov.Compute(lyapunov.Input{
		Invariants:      toLyapunovInvariants(checks),
		EnergyCurrent:   state.Energy.Current,
		EnergyThreshold: state.Energy.Threshold,
	})

	return Result{
		Checks:         checks,
		V:              v,
		ViolationCount: violations,
		Status:         classify(checks, state),
	}
}

func toLyapunovInvariants(checks []Check) []lyapunov.InvariantStatus {
	out := make([]lyapunov.InvariantStatus, len(checks))
	for i, c := range checks {
		out[i] = lyapunov.InvariantStatus{ID: c.ID, Satisfied: c.Satisfied}
	}
	return out
}

// classify derives the integrity status from the check results: an
// INV-001 violation is always terminal; an INV-005 violation is terminal
// when energy is exhausted (<= 0) and dormant otherwise; any other
// violation is degraded (spec.md §4.12).
func classify(checks []Check, state statemodel.State) statemodel.IntegrityStatus {
	for _, c := range checks {
		if c.ID == InvOrganizationImmutable && !c.Satisfied {
			return statemodel.StatusTerminal
		}
	}
	energyOK, _ := CheckByID(checks, InvEnergyViable)
	if !energyOK.Satisfied {
		if state.Energy.Current <= 0 {
			return statemodel.StatusTerminal
		}
		return statemodel.StatusDormant
	}
	for _, c := range checks {
		if !c.Satisfied {
			return statemodel.StatusDegraded
		}
	}
	return statemodel.StatusNominal
}

// CheckByID is the package-level helper used before a Result exists yet.
func CheckByID(checks []Check, id string) (Check, bool) {
	for _, c := range checks {
		if c.ID == id {
			return c, true
		}
	}
	return Check{}, false
}

func checkOrganizationImmutable(state statemodel.State, hashOrg OrganizationHasher) Check {
	if hashOrg == nil {
		return Check{ID: InvOrganizationImmutable, Satisfied: true, Detail: "no organization hasher configured"}
	}
	current, err := hashOrg()
	if err != nil {
		return Check{ID: InvOrganizationImmutable, Satisfied: false, Detail: fmt.Sprintf("hash organization: %v", err)}
	}
	if state.OrganizationHash == "" {
		return Check{ID: InvOrganizationImmutable, Satisfied: true, Detail: "no organization hash recorded yet"}
	}
	if current != state.OrganizationHash {
		return Check{ID: InvOrganizationImmutable, Satisfied: false, Detail: "organization fingerprint mismatch"}
	}
	return Check{ID: InvOrganizationImmutable, Satisfied: true}
}

func checkChainIntegrity(events []eventlog.Event) Check {
	if len(events) == 0 {
		return Check{ID: InvChainIntegrity, Satisfied: true, Detail: "empty log"}
	}
	links := make([]chainhash.ChainLink, len(events))
	byHash := make(map[uint64]eventlog.Event, len(events))
	for i, ev := range events {
		links[i] = chainhash.ChainLink{Seq: ev.Seq, Type: string(ev.Type), Hash: ev.Hash, PrevHash: ev.PrevHash}
		byHash[ev.Seq] = ev
	}
	ok, detail := chainhash.VerifyChain(links, func(seq uint64) (string, error) {
		ev, found := byHash[seq]
		if !found {
			return "", fmt.Errorf("missing event seq %d", seq)
		}
		return ev.ComputeHash()
	})
	return Check{ID: InvChainIntegrity, Satisfied: ok, Detail: detail}
}

func checkStateDeterminism(state statemodel.State, events []eventlog.Event) Check {
	if len(events) == 0 {
		return Check{ID: InvStateDeterminism, Satisfied: true, Detail: "empty log"}
	}
	replayed, err := statemodel.Replay(events)
	if err != nil {
		return Check{ID: InvStateDeterminism, Satisfied: false, Detail: fmt.Sprintf("replay failed: %v", err)}
	}
	if replayed.OrganizationHash != state.OrganizationHash {
		return Check{ID: InvStateDeterminism, Satisfied: false, Detail: "organization_hash mismatch between replay and cached state"}
	}
	if replayed.Memory.EventCount != state.Memory.EventCount {
		return Check{ID: InvStateDeterminism, Satisfied: false, Detail: "event_count mismatch between replay and cached state"}
	}
	if replayed.Memory.LastEventHash != state.Memory.LastEventHash {
		return Check{ID: InvStateDeterminism, Satisfied: false, Detail: "last_event_hash mismatch between replay and cached state"}
	}
	return Check{ID: InvStateDeterminism, Satisfied: true}
}

func checkLyapunovMonotonic(state statemodel.State) Check {
	if state.Lyapunov.V > state.Lyapunov.VPrevious {
		return Check{ID: InvLyapunovMonotonic, Satisfied: false, Detail: fmt.Sprintf("V increased from %v to %v without a declared admissible disturbance", state.Lyapunov.VPrevious, state.Lyapunov.V)}
	}
	return Check{ID: InvLyapunovMonotonic, Satisfied: true}
}

func checkEnergyViable(state statemodel.State) Check {
	if state.Energy.Current >= state.Energy.Min {
		return Check{ID: InvEnergyViable, Satisfied: true}
	}
	if state.Integrity.Status == statemodel.StatusTerminal {
		return Check{ID: InvEnergyViable, Satisfied: true, Detail: "below minimum but already terminal"}
	}
	return Check{ID: InvEnergyViable, Satisfied: false, Detail: fmt.Sprintf("energy %v below minimum %v", state.Energy.Current, state.Energy.Min)}
}

// Logged runs Pure against the manager's current state and log, then
// atomically appends a VERIFICATION event recording the outcome. This is
// the only verification path allowed outside the agent's FEEL phase
// (spec.md §4.5) — periodic external audits and the CLI's `verify`
// command use this, never Pure directly outside of FEEL.
func Logged(ctx context.Context, sm *statemanager.Manager, hashOrg OrganizationHasher) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	events, err := sm.Events()
	if err != nil {
		return Result{}, err
	}
	state := sm.ReadState()
	result := Pure(state, events, hashOrg)

	checksPayload := make([]map[string]any, len(result.Checks))
	for i, c := range result.Checks {
		checksPayload[i] = map[string]any{"id": c.ID, "satisfied": c.Satisfied, "detail": c.Detail}
	}

	_, _, err = sm.AppendEventAtomic(eventlog.TypeVerification, map[string]any{
		"checks":           checksPayload,
		"v":                result.V,
		"violation_count":  result.ViolationCount,
		"status":           string(result.Status),
		"verified_at":      time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

