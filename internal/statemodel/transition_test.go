package statemodel

import (
	"testing"

	"github.com/noesis-run/noesis/internal/eventlog"
)

func genesisEvent() eventlog.Event {
	ev := eventlog.Event{
		Seq:       1,
		Timestamp: "2026-01-01T00:00:00Z",
		Type:      eventlog.TypeGenesis,
		Data: map[string]any{
			"specification":     "noesis-v1",
			"organization_hash": "deadbeef",
			"name":              "alpha",
			"instantiated_by":   "operator",
		},
	}
	h, err := ev.ComputeHash()
	if err != nil {
		panic(err)
	}
	ev.Hash = h
	return ev
}

func TestReplayGenesisDefaults(t *testing.T) {
	ev := genesisEvent()
	state, err := Replay([]eventlog.Event{ev})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Energy.Current != 1.0 {
		t.Fatalf("expected energy.current=1.0, got %v", state.Energy.Current)
	}
	if state.Lyapunov.V != 0 {
		t.Fatalf("expected V=0, got %v", state.Lyapunov.V)
	}
	if state.Integrity.Status != StatusNominal {
		t.Fatalf("expected nominal status, got %v", state.Integrity.Status)
	}
	if state.Memory.EventCount != 1 {
		t.Fatalf("expected event_count=1, got %v", state.Memory.EventCount)
	}
	if state.Memory.LastEventHash != ev.Hash {
		t.Fatalf("expected last_event_hash to match genesis hash")
	}
}

func TestReplayRejectsNonGenesisFirst(t *testing.T) {
	ev := genesisEvent()
	ev.Type = eventlog.TypeStateUpdate
	if _, err := Replay([]eventlog.Event{ev}); err == nil {
		t.Fatal("expected error when first event is not GENESIS")
	}
}

func TestReplayRejectsEmptyLog(t *testing.T) {
	if _, err := Replay(nil); err == nil {
		t.Fatal("expected error replaying an empty event log")
	}
}

func TestApplyOneMatchesReplay(t *testing.T) {
	genesis := genesisEvent()
	second := eventlog.Event{
		Seq:       2,
		Timestamp: "2026-01-01T00:05:00Z",
		Type:      eventlog.TypeStateUpdate,
		Data: map[string]any{
			"energy_current": 0.8,
			"v":               0.1,
		},
		PrevHash: genesis.Hash,
	}
	h, err := second.ComputeHash()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second.Hash = h

	replayed, err := Replay([]eventlog.Event{genesis, second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	genesisOnly, err := Replay([]eventlog.Event{genesis})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inPlace := ApplyOne(genesisOnly, second)

	if replayed.Energy.Current != inPlace.Energy.Current {
		t.Fatalf("replay and in-place diverge on energy: %v vs %v", replayed.Energy.Current, inPlace.Energy.Current)
	}
	if replayed.Lyapunov.V != inPlace.Lyapunov.V {
		t.Fatalf("replay and in-place diverge on V: %v vs %v", replayed.Lyapunov.V, inPlace.Lyapunov.V)
	}
	if replayed.Memory.EventCount != inPlace.Memory.EventCount {
		t.Fatalf("replay and in-place diverge on event_count: %v vs %v", replayed.Memory.EventCount, inPlace.Memory.EventCount)
	}
	if replayed.Memory.LastEventHash != inPlace.Memory.LastEventHash {
		t.Fatalf("replay and in-place diverge on last_event_hash")
	}
}

func TestSessionStartAndEnd(t *testing.T) {
	genesis := genesisEvent()
	start := eventlog.Event{Seq: 2, Type: eventlog.TypeSessionStart, Timestamp: "2026-01-01T00:01:00Z",
		Data: map[string]any{"session_id": "s1", "partner": "watcher"}, PrevHash: genesis.Hash}
	h, _ := start.ComputeHash()
	start.Hash = h

	state, err := Replay([]eventlog.Event{genesis, start})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.Coupling.Active || state.Coupling.Partner != "watcher" {
		t.Fatalf("expected active coupling with partner watcher, got %+v", state.Coupling)
	}

	end := eventlog.Event{Seq: 3, Type: eventlog.TypeSessionEnd, Timestamp: "2026-01-01T00:02:00Z", PrevHash: start.Hash}
	h2, _ := end.ComputeHash()
	end.Hash = h2

	state2, err := Replay([]eventlog.Event{genesis, start, end})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state2.Coupling.Active {
		t.Fatal("expected coupling to be inactive after SESSION_END")
	}
	if d := state2.Energy.Current - 0.95; d > 1e-9 || d < -1e-9 {
		t.Fatalf("expected session_start+session_end to debit session_decay, leaving energy.current=0.95, got %v", state2.Energy.Current)
	}
}

func TestAgentResponseDebitsFeelingCostFromCurrentEnergy(t *testing.T) {
	genesis := genesisEvent()
	resp := eventlog.Event{
		Seq:       2,
		Type:      eventlog.TypeAgentResponse,
		Timestamp: "2026-01-01T00:01:00Z",
		Data: map[string]any{
			"priority":    "rest",
			"action":      "",
			"blocked":     false,
			"energy_cost": 0.001,
		},
		PrevHash: genesis.Hash,
	}
	h, _ := resp.ComputeHash()
	resp.Hash = h

	state, err := Replay([]eventlog.Event{genesis, resp})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Agent.TotalEnergySpent != 0.001 {
		t.Fatalf("expected total_energy_spent=0.001, got %v", state.Agent.TotalEnergySpent)
	}
	if d := state.Energy.Current - 0.999; d > 1e-9 || d < -1e-9 {
		t.Fatalf("expected feeling cost debited from energy.current, got %v", state.Energy.Current)
	}
}
