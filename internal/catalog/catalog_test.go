package catalog

import (
	"os"
	"testing"

	"github.com/noesis-run/noesis/internal/statemanager"
	"github.com/noesis-run/noesis/internal/statemodel"
)

func newTestManager(t *testing.T) *statemanager.Manager {
	t.Helper()
	dir, err := os.MkdirTemp("", "noesis-catalog-*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	sm, err := statemanager.Open(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := sm.Instantiate(map[string]any{
		"specification":     "noesis-v1",
		"organization_hash": "fixed-hash",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return sm
}

func TestExecUnknownOperation(t *testing.T) {
	c := New()
	RegisterBuiltins(c)
	sm := newTestManager(t)

	if _, err := c.Exec(sm, "does.not.exist", nil); err == nil {
		t.Fatal("expected UnknownOperation error")
	}
}

func TestExecCouplingRequiredGate(t *testing.T) {
	c := New()
	RegisterBuiltins(c)
	sm := newTestManager(t)

	if _, err := c.Exec(sm, "memory.add", map[string]any{"note": "hello"}); err == nil {
		t.Fatal("expected CouplingRequired error when no session is active")
	}
}

func TestExecSuccessDebitsEnergyAndAppendsOperation(t *testing.T) {
	c := New()
	RegisterBuiltins(c)
	sm := newTestManager(t)

	before := sm.ReadState()
	result, err := c.Exec(sm, "session.note", map[string]any{"note": "checked in"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}

	after := sm.ReadState()
	if after.Energy.Current != before.Energy.Current-0.01 {
		t.Fatalf("expected energy debited by 0.01, before=%v after=%v", before.Energy.Current, after.Energy.Current)
	}
	if after.HumanContext.Notes != "checked in" {
		t.Fatalf("expected human_notes to be updated, got %+v", after.HumanContext)
	}
	if after.Memory.EventCount != before.Memory.EventCount+1 {
		t.Fatal("expected exactly one new event to be appended")
	}
}

func TestExecInsufficientEnergyBlocksWithoutDebit(t *testing.T) {
	c := New()
	c.Register(Definition{
		ID:         "test.expensive",
		EnergyCost: 2.0,
		Handler: func(state statemodel.State, params map[string]any) (Result, error) {
			return Result{Success: true, Message: "should never run"}, nil
		},
	})
	sm := newTestManager(t)
	before := sm.ReadState()

	if _, err := c.Exec(sm, "test.expensive", nil); err == nil {
		t.Fatal("expected InsufficientEnergy error")
	}
	after := sm.ReadState()
	if after.Energy.Current != before.Energy.Current {
		t.Fatal("energy must not be debited on a blocked exec")
	}
}
