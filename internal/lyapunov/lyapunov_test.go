package lyapunov

import "testing"

func TestComputeZeroWhenHealthy(t *testing.T) {
	in := Input{
		Invariants: []InvariantStatus{
			{ID: "INV-001", Satisfied: true},
			{ID: "INV-002", Satisfied: true},
			{ID: "INV-003", Satisfied: true},
		},
		EnergyCurrent:   1.0,
		EnergyThreshold: 0.1,
	}
	if v := Compute(in); v != 0 {
		t.Fatalf("expected V=0 when all invariants satisfied and energy above threshold, got %v", v)
	}
}

func TestComputeNonNegative(t *testing.T) {
	in := Input{
		Invariants: []InvariantStatus{
			{ID: "INV-001", Satisfied: false},
			{ID: "INV-002", Satisfied: true},
		},
		EnergyCurrent:   0.05,
		EnergyThreshold: 0.1,
	}
	v := Compute(in)
	if v < 0 {
		t.Fatalf("V must never be negative, got %v", v)
	}
	if v <= 0 {
		t.Fatalf("expected positive V when an invariant is violated and energy is below threshold, got %v", v)
	}
}

func TestEnergyDistanceClampsAtZero(t *testing.T) {
	if d := energyDistance(1.0, 0.1); d != 0 {
		t.Fatalf("energy above threshold must distance to 0, got %v", d)
	}
}

func TestEnergyDistanceZeroThreshold(t *testing.T) {
	if d := energyDistance(0.5, 0); d != 0 {
		t.Fatalf("zero threshold must not divide-by-zero, got %v", d)
	}
}

func TestIntegrityDistanceEmptyInvariants(t *testing.T) {
	if d := integrityDistance(nil); d != 0 {
		t.Fatalf("empty invariant set must distance to 0, got %v", d)
	}
}
