package hostvitals

import "testing"

func TestSampleReturnsNonNegativeValues(t *testing.T) {
	snap := Sample()
	if snap.CPUPercent < 0 || snap.MemPercent < 0 {
		t.Fatalf("expected non-negative cpu/mem percentages, got %+v", snap)
	}
	if snap.Load1 < 0 || snap.Load5 < 0 || snap.Load15 < 0 {
		t.Fatalf("expected non-negative load averages, got %+v", snap)
	}
}
