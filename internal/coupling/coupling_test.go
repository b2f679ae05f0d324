package coupling

import (
	"os"
	"testing"

	"github.com/noesis-run/noesis/internal/statemanager"
	"github.com/noesis-run/noesis/internal/statemodel"
)

func newTestManager(t *testing.T) *statemanager.Manager {
	t.Helper()
	dir, err := os.MkdirTemp("", "noesis-coupling-*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	sm, err := statemanager.Open(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := sm.Instantiate(map[string]any{"specification": "noesis-v1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return sm
}

func TestStartAndEnd(t *testing.T) {
	sm := newTestManager(t)

	state, err := Start(sm, "watcher")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.Coupling.Active || state.Coupling.Partner != "watcher" {
		t.Fatalf("expected active coupling with partner watcher, got %+v", state.Coupling)
	}
	if state.Session.TotalCount != 1 {
		t.Fatalf("expected session total count 1, got %v", state.Session.TotalCount)
	}

	state, err = End(sm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Coupling.Active {
		t.Fatal("expected coupling inactive after End")
	}
}

func TestStartRejectsDoubleSession(t *testing.T) {
	sm := newTestManager(t)
	if _, err := Start(sm, "watcher"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Start(sm, "another"); err == nil {
		t.Fatal("expected error starting a second concurrent session")
	}
}

func TestEndRejectsWithoutActiveSession(t *testing.T) {
	sm := newTestManager(t)
	if _, err := End(sm); err == nil {
		t.Fatal("expected error ending a session when none is active")
	}
}

func TestRequestEnforcesCap(t *testing.T) {
	var existing []statemodel.PendingRequest
	var err error
	for i := 0; i < PendingCap; i++ {
		existing, _, err = Request(existing, "partner", "reason")
		if err != nil {
			t.Fatalf("unexpected error at %d: %v", i, err)
		}
	}
	if _, _, err := Request(existing, "partner", "reason"); err == nil {
		t.Fatal("expected error once the pending queue is at capacity")
	}
}

func TestWithdraw(t *testing.T) {
	existing, req, err := Request(nil, "partner", "reason")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	remaining, found := Withdraw(existing, req.ID)
	if !found {
		t.Fatal("expected to find the requested id")
	}
	if len(remaining) != 0 {
		t.Fatalf("expected empty queue after withdraw, got %d", len(remaining))
	}
}
