package metaops

import (
	"testing"

	"github.com/noesis-run/noesis/internal/catalog"
	"github.com/noesis-run/noesis/internal/statemodel"
)

func newCatalogWithBuiltins() *catalog.Catalog {
	c := catalog.New()
	catalog.RegisterBuiltins(c)
	return c
}

func TestDefineRejectsDuplicateBuiltinID(t *testing.T) {
	c := newCatalogWithBuiltins()
	_, err := Define(c, nil, DefineRequest{
		ID:       "state.summary",
		Template: statemodel.TemplateEcho,
	})
	if err == nil {
		t.Fatal("expected error when id collides with a built-in")
	}
}

func TestDefineProducesQuarantinedOperation(t *testing.T) {
	c := newCatalogWithBuiltins()
	op, err := Define(c, nil, DefineRequest{
		ID:             "custom.echo",
		Template:       statemodel.TemplateEcho,
		TemplateParams: map[string]any{},
		CurrentCycle:   3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.Status != statemodel.LifecycleQuarantined {
		t.Fatalf("expected quarantined status, got %v", op.Status)
	}
	if op.QuarantineStartCycle != 3 {
		t.Fatalf("expected quarantine_start_cycle=3, got %v", op.QuarantineStartCycle)
	}
}

func TestComposeSumsComponentsAndIncrementsDepth(t *testing.T) {
	c := newCatalogWithBuiltins()
	existing := []statemodel.GeneratedOperation{
		{ID: "gen.one", Complexity: 2, EnergyCost: 0.1, Depth: 1},
	}
	op, err := Compose(c, existing, ComposeRequest{
		ID:         "gen.bundle",
		Components: []string{"session.note", "gen.one"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op.Complexity != 1+2 {
		t.Fatalf("expected summed complexity 3, got %v", op.Complexity)
	}
	if op.Depth != 2 {
		t.Fatalf("expected depth = max(component depth)+1 = 2, got %v", op.Depth)
	}
}

func TestComposeRejectsUnknownComponent(t *testing.T) {
	c := newCatalogWithBuiltins()
	if _, err := Compose(c, nil, ComposeRequest{ID: "gen.bad", Components: []string{"nope"}}); err == nil {
		t.Fatal("expected error for unknown component")
	}
}

func TestSpecializeCannotExceedParentComplexity(t *testing.T) {
	c := newCatalogWithBuiltins()
	existing := []statemodel.GeneratedOperation{
		{ID: "gen.parent", Complexity: 2, EnergyCost: 0.1, RequiresCoupling: false, Depth: 0, Template: statemodel.TemplateEcho},
	}
	_, err := Specialize(c, existing, SpecializeRequest{
		ID:         "gen.child",
		SourceID:   "gen.parent",
		Complexity: 5,
		EnergyCost: 0.05,
	})
	if err == nil {
		t.Fatal("expected bounds violation when child complexity exceeds parent")
	}
}

func TestSpecializeCannotWeakenCoupling(t *testing.T) {
	c := newCatalogWithBuiltins()
	existing := []statemodel.GeneratedOperation{
		{ID: "gen.parent", Complexity: 2, EnergyCost: 0.1, RequiresCoupling: true, Depth: 0, Template: statemodel.TemplateEcho},
	}
	_, err := Specialize(c, existing, SpecializeRequest{
		ID:               "gen.child",
		SourceID:         "gen.parent",
		Complexity:       1,
		EnergyCost:       0.05,
		RequiresCoupling: false,
	})
	if err == nil {
		t.Fatal("expected bounds violation when child weakens requires_coupling")
	}
}

func TestSpecializeRespectsMaxDepth(t *testing.T) {
	c := newCatalogWithBuiltins()
	existing := []statemodel.GeneratedOperation{
		{ID: "gen.parent", Complexity: 2, EnergyCost: 0.1, Depth: MaxDepth, Template: statemodel.TemplateEcho},
	}
	_, err := Specialize(c, existing, SpecializeRequest{
		ID:         "gen.child",
		SourceID:   "gen.parent",
		Complexity: 1,
		EnergyCost: 0.05,
	})
	if err == nil {
		t.Fatal("expected bounds violation when depth would exceed MAX_DEPTH")
	}
}

func TestLifecycleAdvanceQuarantinedToTrial(t *testing.T) {
	op := statemodel.GeneratedOperation{Status: statemodel.LifecycleQuarantined, QuarantineStartCycle: 0}
	op = Advance(op, QuarantineCycles)
	if op.Status != statemodel.LifecycleTrial {
		t.Fatalf("expected trial status after quarantine age elapses, got %v", op.Status)
	}
}

func TestLifecycleTrialPromotesToActive(t *testing.T) {
	op := statemodel.GeneratedOperation{Status: statemodel.LifecycleTrial, TrialMetrics: &statemodel.TrialMetrics{}}
	for i := 0; i < TrialUsesRequired; i++ {
		op = RecordTrialUse(op, false, -0.01, 0.01)
	}
	op = Advance(op, 100)
	if op.Status != statemodel.LifecycleActive {
		t.Fatalf("expected active status after clean trial, got %v", op.Status)
	}
}

func TestLifecycleTrialDeprecatesOnBlock(t *testing.T) {
	op := statemodel.GeneratedOperation{Status: statemodel.LifecycleTrial, TrialMetrics: &statemodel.TrialMetrics{}}
	op = RecordTrialUse(op, true, 0, 0)
	op = Advance(op, 100)
	if op.Status != statemodel.LifecycleDeprecated {
		t.Fatalf("expected deprecated status after a block, got %v", op.Status)
	}
}

func TestLifecycleTrialDeprecatesOnVSpike(t *testing.T) {
	op := statemodel.GeneratedOperation{Status: statemodel.LifecycleTrial, TrialMetrics: &statemodel.TrialMetrics{}}
	op = RecordTrialUse(op, false, 0.2, 0)
	op = Advance(op, 100)
	if op.Status != statemodel.LifecycleDeprecated {
		t.Fatalf("expected deprecated status after a V spike, got %v", op.Status)
	}
}

func TestSelectableRequiresActiveWithoutOverride(t *testing.T) {
	op := statemodel.GeneratedOperation{Status: statemodel.LifecycleTrial}
	if Selectable(op, false) {
		t.Fatal("trial operation must not be selectable without admin override")
	}
	if !Selectable(op, true) {
		t.Fatal("admin override must make any operation selectable")
	}
}

func TestBuildHandlerUnknownTemplate(t *testing.T) {
	_, err := BuildHandler(statemodel.GeneratedOperation{Template: "bogus"})
	if err == nil {
		t.Fatal("expected error for unknown template tag")
	}
}

func TestReadFieldHandler(t *testing.T) {
	h, err := BuildHandler(statemodel.GeneratedOperation{
		Template:       statemodel.TemplateReadField,
		TemplateParams: map[string]any{"field": "energy_current"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state := statemodel.State{Energy: statemodel.Energy{Current: 0.75}}
	result, err := h(state, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.Effects["energy_current"] != 0.75 {
		t.Fatalf("expected read_field to report energy_current=0.75, got %+v", result)
	}
}
