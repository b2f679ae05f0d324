// Package coupling implements the partner-bound session lifecycle and the
// pending coupling-request queue (spec.md §4.12, §3.1). Sessions are
// opaque labels; there is no authentication layer (explicit Non-goal).
package coupling

import (
	"time"

	"github.com/google/uuid"

	"github.com/noesis-run/noesis/internal/eventlog"
	"github.com/noesis-run/noesis/internal/rerr"
	"github.com/noesis-run/noesis/internal/statemanager"
	"github.com/noesis-run/noesis/internal/statemodel"
)

// PendingCap bounds the pending-request queue (SPEC_FULL.md §5.11 /
// config.PendingCouplingCap default).
const PendingCap = 20

// Start begins a new session: appends SESSION_START with a fresh session
// id, incrementing the session counter and marking coupling active
// (spec.md §4.12 "set by SESSION_START/SESSION_END only").
func Start(sm *statemanager.Manager, partner string) (statemodel.State, error) {
	if partner == "" {
		return statemodel.State{}, rerr.New(rerr.PreconditionViolated, "partner label required to start a session")
	}
	state := sm.ReadState()
	if state.Coupling.Active {
		return statemodel.State{}, rerr.New(rerr.PreconditionViolated, "a session is already active").
			WithDetail("current_partner", state.Coupling.Partner)
	}

	sessionID := uuid.NewString()
	_, newState, err := sm.AppendEventAtomic(eventlog.TypeSessionStart, map[string]any{
		"session_id": sessionID,
		"partner":    partner,
		"started_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	return newState, err
}

// End closes the active session (spec.md §4.12).
func End(sm *statemanager.Manager) (statemodel.State, error) {
	state := sm.ReadState()
	if !state.Coupling.Active {
		return statemodel.State{}, rerr.New(rerr.PreconditionViolated, "no session is active")
	}
	_, newState, err := sm.AppendEventAtomic(eventlog.TypeSessionEnd, map[string]any{
		"ended_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	return newState, err
}

// Request queues an unresolved coupling request from a prospective
// partner (SPEC_FULL.md §5.11 supplemented detail). The caller persists
// the returned record through its own STATE_UPDATE path; coupling itself
// has no dedicated event type for this supplemented feature, matching
// how human_context extensions ride on STATE_UPDATE.
func Request(existing []statemodel.PendingRequest, from, reason string) ([]statemodel.PendingRequest, statemodel.PendingRequest, error) {
	if len(existing) >= PendingCap {
		return nil, statemodel.PendingRequest{}, rerr.New(rerr.PreconditionViolated, "pending coupling request queue is full").
			WithDetail("cap", PendingCap)
	}
	req := statemodel.PendingRequest{
		ID:          uuid.NewString(),
		From:        from,
		Reason:      reason,
		RequestedAt: time.Now().UTC(),
	}
	return append(existing, req), req, nil
}

// Withdraw removes a pending request by id, reporting whether it was found.
func Withdraw(existing []statemodel.PendingRequest, id string) ([]statemodel.PendingRequest, bool) {
	for i, r := range existing {
		if r.ID == id {
			out := make([]statemodel.PendingRequest, 0, len(existing)-1)
			out = append(out, existing[:i]...)
			out = append(out, existing[i+1:]...)
			return out, true
		}
	}
	return existing, false
}
