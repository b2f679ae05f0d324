package agent

import (
	"time"

	"github.com/noesis-run/noesis/internal/eventlog"
	"github.com/noesis-run/noesis/internal/statemanager"
	"github.com/noesis-run/noesis/internal/statemodel"
)

// RestLogInterval bounds log growth: an AGENT_REST event is appended once
// every this many consecutive rest cycles rather than every cycle
// (spec.md §4.10.4).
const RestLogInterval = 10

// Remember appends exactly one event for this cycle through
// statemanager, matching the replay applier byte-for-byte (spec.md
// §4.10.4, §9 design note #1): AGENT_RESPONSE when an action was chosen
// or admission was attempted (even if blocked), AGENT_REST when resting
// and the rest-cycle counter reaches RestLogInterval.
func Remember(sm *statemanager.Manager, priority Priority, action string, admitted bool, blocked bool, energyCost float64, restCyclesSinceLog int) (eventlog.Event, statemodel.State, bool, error) {
	if priority == PriorityRest && action == "" {
		if restCyclesSinceLog < RestLogInterval {
			return eventlog.Event{}, sm.ReadState(), false, nil
		}
		ev, state, err := sm.AppendEventAtomic(eventlog.TypeAgentRest, map[string]any{
			"logged_at": time.Now().UTC().Format(time.RFC3339Nano),
		})
		return ev, state, true, err
	}

	ev, state, err := sm.AppendEventAtomic(eventlog.TypeAgentResponse, map[string]any{
		"priority":    string(priority),
		"action":      action,
		"blocked":     blocked || !admitted,
		"energy_cost": energyCost,
		"responded_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	return ev, state, true, err
}
