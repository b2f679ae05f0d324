package agent

import (
	"testing"

	"github.com/noesis-run/noesis/internal/statemanager"
	"github.com/noesis-run/noesis/internal/statemodel"
)

func newTestManager(t *testing.T) *statemanager.Manager {
	t.Helper()
	sm, err := statemanager.Open(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := sm.Instantiate(map[string]any{"name": "test-org"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return sm
}

func TestRecordGeneratedUseIgnoresBuiltinActions(t *testing.T) {
	sm := newTestManager(t)
	if err := RecordGeneratedUse(sm, nil, "state.summary", false, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sm.ReadState().Autopoiesis.Generated) != 0 {
		t.Fatal("expected no generated operations to be persisted for a built-in action")
	}
}

func TestRecordGeneratedUseIgnoresNonTrialStatus(t *testing.T) {
	sm := newTestManager(t)
	generated := []statemodel.GeneratedOperation{{ID: "custom.quarantined", Status: statemodel.LifecycleQuarantined}}
	if err := RecordGeneratedUse(sm, generated, "custom.quarantined", false, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sm.ReadState().Autopoiesis.Generated) != 0 {
		t.Fatal("expected a QUARANTINED operation's metrics to be left untouched")
	}
}

func TestRecordGeneratedUseFeedsTrialMetrics(t *testing.T) {
	sm := newTestManager(t)
	generated := []statemodel.GeneratedOperation{
		{ID: "custom.trial", Status: statemodel.LifecycleTrial, TrialMetrics: &statemodel.TrialMetrics{}},
	}
	if err := RecordGeneratedUse(sm, generated, "custom.trial", false, -0.01, 0.01); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := sm.ReadState().Autopoiesis.Generated
	if len(got) != 1 {
		t.Fatalf("expected exactly one generated operation, got %d", len(got))
	}
	if got[0].TrialMetrics == nil || got[0].TrialMetrics.Uses != 1 {
		t.Fatalf("expected one recorded trial use, got %+v", got[0].TrialMetrics)
	}
}

func TestMaybeSelfProducePersistsSpecializedOperation(t *testing.T) {
	sm := newTestManager(t)
	cat := newTestCatalog()
	usage := UsageCounters{}.Record("state.summary").Record("state.summary").Record("state.summary")
	gate := SelfProductionGate{Threshold: 3, Cooldown: 0, MaxTotal: 10, CyclesSinceLast: 10}

	produced, err := MaybeSelfProduce(sm, cat, usage, gate, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !produced {
		t.Fatal("expected self-production to fire once threshold and cooldown are satisfied")
	}

	generated := sm.ReadState().Autopoiesis.Generated
	if len(generated) != 1 {
		t.Fatalf("expected one specialized operation to be persisted, got %d", len(generated))
	}
	if generated[0].Status != statemodel.LifecycleQuarantined {
		t.Fatalf("expected a freshly specialized operation to start quarantined, got %v", generated[0].Status)
	}
}

func TestRegisterGeneratedAddsAnExecutableGeneratedOperation(t *testing.T) {
	cat := newTestCatalog()
	op := statemodel.GeneratedOperation{
		ID:             "custom.echo",
		Template:       statemodel.TemplateEcho,
		TemplateParams: map[string]any{"message": "hi"},
	}
	registerGenerated(cat, op)
	if _, found := cat.Lookup("custom.echo"); !found {
		t.Fatal("expected a template-backed generated operation to be registered")
	}
}

func TestRegisterGeneratedSkipsUncompilableTemplate(t *testing.T) {
	cat := newTestCatalog()
	registerGenerated(cat, statemodel.GeneratedOperation{ID: "custom.unbuildable", Template: ""})
	if _, found := cat.Lookup("custom.unbuildable"); found {
		t.Fatal("expected an operation with no compilable template to be skipped, not registered")
	}
}
