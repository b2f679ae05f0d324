package recovery

import (
	"context"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/noesis-run/noesis/internal/statemanager"
	"github.com/noesis-run/noesis/internal/verifier"
)

func newTestManager(t *testing.T) *statemanager.Manager {
	t.Helper()
	dir, err := os.MkdirTemp("", "noesis-recovery-*")
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

func TestRecoverNoViolationsIsNoop(t *testing.T) {
	sm := newTestManager(t)
	log := zap.NewNop()

	result := verifier.Result{Checks: []verifier.Check{
		{ID: verifier.InvOrganizationImmutable, Satisfied: true},
	}}
	status, err := Recover(context.Background(), sm, log, result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusRecovered {
		t.Fatalf("expected recovered, got %v", status)
	}
}

func TestRecoverOrganizationViolationIsTerminal(t *testing.T) {
	sm := newTestManager(t)
	log := zap.NewNop()

	result := verifier.Result{
		ViolationCount: 1,
		Checks: []verifier.Check{
			{ID: verifier.InvOrganizationImmutable, Satisfied: false, Detail: "mismatch"},
		},
	}
	status, err := Recover(context.Background(), sm, log, result)
	if status != StatusTerminal {
		t.Fatalf("expected terminal status, got %v", status)
	}
	if err == nil {
		t.Fatal("expected an error for an INV-001 violation")
	}
}

func TestRecoverChainBreakRequiresOperator(t *testing.T) {
	sm := newTestManager(t)
	log := zap.NewNop()

	result := verifier.Result{
		ViolationCount: 1,
		Checks: []verifier.Check{
			{ID: verifier.InvOrganizationImmutable, Satisfied: true},
			{ID: verifier.InvChainIntegrity, Satisfied: false, Detail: "hash mismatch at seq 3"},
		},
	}
	status, err := Recover(context.Background(), sm, log, result)
	if status != StatusTerminal {
		t.Fatalf("expected terminal (operator-required) status, got %v", status)
	}
	if err == nil {
		t.Fatal("expected an error for an INV-003 violation")
	}
}

func TestRecoverEnergyBelowMinimumMarksDormant(t *testing.T) {
	sm := newTestManager(t)
	log := zap.NewNop()

	result := verifier.Result{
		ViolationCount: 1,
		Checks: []verifier.Check{
			{ID: verifier.InvOrganizationImmutable, Satisfied: true},
			{ID: verifier.InvChainIntegrity, Satisfied: true},
			{ID: verifier.InvStateDeterminism, Satisfied: true},
			{ID: verifier.InvLyapunovMonotonic, Satisfied: true},
			{ID: verifier.InvEnergyViable, Satisfied: false, Detail: "below minimum"},
		},
	}
	status, err := Recover(context.Background(), sm, log, result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != StatusDegraded {
		t.Fatalf("expected degraded (dormant) status, got %v", status)
	}
}
