package rerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorStringIncludesKindAndWrappedCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(Corruption, "malformed event file", cause)
	got := err.Error()
	want := "[corruption] malformed event file: disk full"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAsExtractsRuntimeErrorThroughWrap(t *testing.T) {
	inner := UnknownOperation("energy.recharg")
	wrapped := fmt.Errorf("wrapper: %w", inner)

	re, ok := As(wrapped)
	if !ok {
		t.Fatal("expected a RuntimeError to be extracted")
	}
	if re.Kind != PreconditionViolated {
		t.Fatalf("expected precondition_violated, got %s", re.Kind)
	}
	if re.Details["id"] != "energy.recharg" {
		t.Fatalf("expected id detail to survive, got %v", re.Details)
	}
}

func TestWithDetailChainsAndAccumulates(t *testing.T) {
	err := InsufficientEnergy("op.a", 0.5, 0.1).WithDetail("note", "below threshold")
	if err.Details["required"] != 0.5 || err.Details["available"] != 0.1 {
		t.Fatalf("expected required/available details, got %v", err.Details)
	}
	if err.Details["note"] != "below threshold" {
		t.Fatalf("expected chained detail to be present, got %v", err.Details)
	}
}

func TestExitCodeMapsAnyErrorToOne(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Fatalf("expected exit code 0 for nil error, got %d", got)
	}
	if got := ExitCode(New(IntegrityViolation, "boom")); got != 1 {
		t.Fatalf("expected exit code 1 for any error, got %d", got)
	}
	if got := ExitCode(errors.New("generic")); got != 1 {
		t.Fatalf("expected exit code 1 for a non-RuntimeError too, got %d", got)
	}
}
